package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salvage-market/model"
	"salvage-market/pkg/payment"
)

// soldBid runs the 1000/1200 sale and returns the accepted bid.
func (h *harness) soldBid() *model.Bid {
	h.t.Helper()
	l := h.createListing("seller", "1000", 7)
	b := h.placeBid("buyer", l.ID, "1200")
	_, err := h.bids.AcceptBid(h.ctx, user("seller"), b.ID)
	require.NoError(h.t, err)
	return b
}

func TestInitiateCaptureSucceeds(t *testing.T) {
	h := newHarness(t)
	b := h.soldBid()

	p, err := h.payments.InitiateCapture(h.ctx, user("buyer"), b.ID, "pm_card")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentSucceeded, p.Status)
	assert.Equal(t, int64(120000), p.AmountMinor)
	assert.Equal(t, "AUD", p.Currency)
	assert.Equal(t, "ch_ok", p.ReferenceID)
	assert.Equal(t, 1, p.Attempts)

	calls := h.processor.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, int64(120000), calls[0].AmountMinor)
	assert.Equal(t, "pm_card", calls[0].PaymentMethodToken)

	again, err := h.payments.InitiateCapture(h.ctx, user("buyer"), b.ID, "pm_card")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentSucceeded, again.Status)
	assert.Len(t, h.processor.calls(), 1, "a captured payment is not charged twice")
}

func TestInitiateCaptureDeclineKeepsSale(t *testing.T) {
	h := newHarness(t)
	b := h.soldBid()
	h.processor.push(&payment.CaptureResponse{Reason: "card_declined"}, nil)

	p, err := h.payments.InitiateCapture(h.ctx, user("buyer"), b.ID, "pm_card")
	require.ErrorIs(t, err, model.ErrPayment)
	require.NotNil(t, p)
	assert.Equal(t, model.PaymentFailed, p.Status)
	assert.Equal(t, "card_declined", p.FailureReason)

	bid, err := h.bids.GetBid(h.ctx, user("buyer"), b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BidAccepted, bid.Status)
	listing, err := h.listings.GetListing(h.ctx, user("seller"), b.ListingID)
	require.NoError(t, err)
	assert.Equal(t, model.ListingSold, listing.Status)

	retried, err := h.payments.InitiateCapture(h.ctx, user("buyer"), b.ID, "pm_other")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentSucceeded, retried.Status)
	assert.Empty(t, retried.FailureReason)
	assert.Equal(t, 2, retried.Attempts)

	calls := h.processor.calls()
	require.Len(t, calls, 2)
	assert.NotEqual(t, calls[0].IdempotencyKey, calls[1].IdempotencyKey)
}

func TestInitiateCaptureTimeoutIsFailure(t *testing.T) {
	h := newHarness(t)
	b := h.soldBid()
	h.processor.push(nil, context.DeadlineExceeded)

	p, err := h.payments.InitiateCapture(h.ctx, user("buyer"), b.ID, "pm_card")
	require.ErrorIs(t, err, model.ErrPayment)
	assert.Equal(t, model.PaymentFailed, p.Status)
	assert.Contains(t, p.FailureReason, "unavailable")
}

func TestInitiateCaptureGuards(t *testing.T) {
	h := newHarness(t)
	l := h.createListing("seller", "10", 7)
	pending := h.placeBid("buyer", l.ID, "10")

	_, err := h.payments.InitiateCapture(h.ctx, user("buyer"), pending.ID, "pm_card")
	assert.ErrorIs(t, err, model.ErrInvalidState)

	_, err = h.bids.AcceptBid(h.ctx, user("seller"), pending.ID)
	require.NoError(t, err)
	_, err = h.payments.InitiateCapture(h.ctx, user("seller"), pending.ID, "pm_card")
	assert.ErrorIs(t, err, model.ErrAuthorization)
	_, err = h.payments.InitiateCapture(h.ctx, user("buyer"), pending.ID, " ")
	assert.ErrorIs(t, err, model.ErrValidation)
	_, err = h.payments.InitiateCapture(h.ctx, user("buyer"), "missing", "pm_card")
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.Empty(t, h.processor.calls())
}

func TestConfirmCapture(t *testing.T) {
	h := newHarness(t)
	b := h.soldBid()

	_, err := h.payments.ConfirmCapture(h.ctx, b.ID, model.CaptureResult{Success: true})
	require.ErrorIs(t, err, model.ErrNotFound, "nothing to confirm before a capture starts")

	secret, err := h.payments.CreateIntent(h.ctx, user("buyer"), b.ID)
	require.NoError(t, err)
	assert.Equal(t, "secret_AUD", secret)

	_, err = h.payments.RecordCaptureResult(h.ctx, user("buyer"), b.ID, model.CaptureResult{Success: true})
	require.ErrorIs(t, err, model.ErrAuthorization)

	p, err := h.payments.RecordCaptureResult(h.ctx, operator, b.ID, model.CaptureResult{Success: true, ReferenceID: "ch_hook"})
	require.NoError(t, err)
	assert.Equal(t, model.PaymentSucceeded, p.Status)

	p, err = h.payments.ConfirmCapture(h.ctx, b.ID, model.CaptureResult{Reason: "late decline"})
	require.NoError(t, err, "a late failure does not undo a success")
	assert.Equal(t, model.PaymentSucceeded, p.Status)
	assert.Equal(t, "ch_hook", p.ReferenceID)

	_, err = h.payments.CreateIntent(h.ctx, user("buyer"), b.ID)
	assert.ErrorIs(t, err, model.ErrInvalidState)
}

func TestGetPaymentVisibility(t *testing.T) {
	h := newHarness(t)
	b := h.soldBid()
	_, err := h.payments.InitiateCapture(h.ctx, user("buyer"), b.ID, "pm_card")
	require.NoError(t, err)

	for _, a := range []model.Actor{user("buyer"), user("seller"), operator} {
		_, err := h.payments.GetPayment(h.ctx, a, b.ID)
		assert.NoError(t, err, a.UserID)
	}
	_, err = h.payments.GetPayment(h.ctx, user("stranger"), b.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
}
