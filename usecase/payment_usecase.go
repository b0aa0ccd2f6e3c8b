package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"salvage-market/dao"
	"salvage-market/model"
	"salvage-market/pkg/clock"
	"salvage-market/pkg/payment"
)

// PaymentProcessor is the external processor. *payment.Client
// implements it.
type PaymentProcessor interface {
	AuthorizeAndCapture(ctx context.Context, req payment.CaptureRequest) (*payment.CaptureResponse, error)
	CreateIntent(ctx context.Context, amountMinor int64, currency string) (string, error)
}

type PaymentUsecase struct {
	bidRepo     *dao.BidRepository
	listingRepo *dao.ListingRepository
	paymentRepo *dao.PaymentRepository
	processor   PaymentProcessor
	currency    string
	timeout     time.Duration
	clock       clock.Clock
	logger      *slog.Logger
}

func NewPaymentUsecase(bidRepo *dao.BidRepository, listingRepo *dao.ListingRepository, paymentRepo *dao.PaymentRepository,
	processor PaymentProcessor, currency string, timeout time.Duration, c clock.Clock, logger *slog.Logger) *PaymentUsecase {
	return &PaymentUsecase{
		bidRepo:     bidRepo,
		listingRepo: listingRepo,
		paymentRepo: paymentRepo,
		processor:   processor,
		currency:    strings.ToUpper(currency),
		timeout:     timeout,
		clock:       c,
		logger:      logger,
	}
}

// acceptedBid loads a bid the actor won.
func (u *PaymentUsecase) acceptedBid(ctx context.Context, actor model.Actor, bidID string) (*model.Bid, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	bid, err := u.bidRepo.GetByID(ctx, bidID)
	if err != nil {
		return nil, err
	}
	if bid == nil {
		return nil, model.NotFound("bid not found")
	}
	if bid.BidderID != actor.UserID {
		return nil, model.Unauthorized("only the buyer can pay for this bid")
	}
	if bid.Status != model.BidAccepted {
		return nil, model.InvalidState("bid is " + string(bid.Status) + ", not accepted")
	}
	return bid, nil
}

// ensurePayment returns the bid's payment row, creating it on first use.
func (u *PaymentUsecase) ensurePayment(ctx context.Context, bid *model.Bid) (*model.Payment, error) {
	p, err := u.paymentRepo.GetByBidID(ctx, bid.ID)
	if err != nil || p != nil {
		return p, err
	}
	now := stamp(u.clock)
	p = &model.Payment{
		ID:             newID(),
		BidID:          bid.ID,
		ListingID:      bid.ListingID,
		BuyerID:        bid.BidderID,
		Amount:         bid.Amount,
		AmountMinor:    model.MinorUnits(bid.Amount),
		Currency:       u.currency,
		Status:         model.PaymentPending,
		IdempotencyKey: uuid.NewString(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if _, err := u.paymentRepo.InsertIfAbsent(ctx, p); err != nil {
		return nil, err
	}
	// Whoever inserted first owns the row and its key.
	return u.paymentRepo.GetByBidID(ctx, bid.ID)
}

// InitiateCapture charges the buyer for an accepted bid and records the
// outcome through ConfirmCapture. A processor timeout or transport error
// counts as a failed capture. A payment that already succeeded is
// returned without contacting the processor.
func (u *PaymentUsecase) InitiateCapture(ctx context.Context, actor model.Actor, bidID, paymentMethodToken string) (*model.Payment, error) {
	bid, err := u.acceptedBid(ctx, actor, bidID)
	if err != nil {
		return nil, err
	}
	paymentMethodToken = strings.TrimSpace(paymentMethodToken)
	if paymentMethodToken == "" {
		return nil, model.Invalid("payment_method_token", "is required")
	}

	p, err := u.ensurePayment(ctx, bid)
	if err != nil {
		return nil, err
	}
	if p.Status == model.PaymentSucceeded {
		return p, nil
	}
	started, err := u.paymentRepo.BeginAttempt(ctx, bid.ID, stamp(u.clock))
	if err != nil {
		return nil, err
	}
	if !started {
		return u.paymentRepo.GetByBidID(ctx, bid.ID)
	}

	req := payment.CaptureRequest{
		AmountMinor:        p.AmountMinor,
		Currency:           p.Currency,
		PaymentMethodToken: paymentMethodToken,
		// Each attempt gets its own key so a retry after a decline is a
		// new charge, while replays of one attempt are deduplicated.
		IdempotencyKey: fmt.Sprintf("%s-%d", p.IdempotencyKey, p.Attempts+1),
		Description:    "bid " + bid.ID,
	}
	callCtx, cancel := context.WithTimeout(ctx, u.timeout)
	resp, err := u.processor.AuthorizeAndCapture(callCtx, req)
	cancel()

	var result model.CaptureResult
	if err != nil {
		u.logger.WarnContext(ctx, "capture call failed", "bid_id", bid.ID, "error", err)
		result = model.CaptureResult{Reason: "payment processor unavailable: " + err.Error()}
	} else {
		result = model.CaptureResult{Success: resp.Success, ReferenceID: resp.ReferenceID, Reason: resp.Reason}
	}
	return u.ConfirmCapture(ctx, bid.ID, result)
}

// ConfirmCapture records a processor verdict. Success is idempotent. A
// failure returns a payment error; the bid stays accepted and the
// listing sold, so the buyer can retry.
func (u *PaymentUsecase) ConfirmCapture(ctx context.Context, bidID string, result model.CaptureResult) (*model.Payment, error) {
	if tooLong(result.ReferenceID, maxNameLen) {
		return nil, model.Invalid("reference_id", "is too long")
	}
	p, err := u.paymentRepo.GetByBidID(ctx, bidID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, model.NotFound("no payment for this bid")
	}
	now := stamp(u.clock)

	if result.Success {
		changed, err := u.paymentRepo.MarkSucceeded(ctx, bidID, result.ReferenceID, now)
		if err != nil {
			return nil, err
		}
		if changed {
			u.logger.InfoContext(ctx, "payment captured", "bid_id", bidID, "reference_id", result.ReferenceID,
				"amount_minor", p.AmountMinor, "currency", p.Currency)
		}
		return u.paymentRepo.GetByBidID(ctx, bidID)
	}

	if p.Status == model.PaymentSucceeded {
		return p, nil
	}
	reason := clip(result.Reason, maxNotesLen)
	if reason == "" {
		reason = "payment declined"
	}
	changed, err := u.paymentRepo.MarkFailed(ctx, bidID, reason, now)
	if err != nil {
		return nil, err
	}
	current, err := u.paymentRepo.GetByBidID(ctx, bidID)
	if err != nil {
		return nil, err
	}
	if !changed && current.Status == model.PaymentSucceeded {
		return current, nil
	}
	u.logger.WarnContext(ctx, "payment failed", "bid_id", bidID, "reason", reason, "attempts", current.Attempts)
	return current, model.PaymentError(reason, nil)
}

// RecordCaptureResult is the operator entry point for relaying a
// processor notification.
func (u *PaymentUsecase) RecordCaptureResult(ctx context.Context, actor model.Actor, bidID string, result model.CaptureResult) (*model.Payment, error) {
	if !actor.IsOperator {
		return nil, model.Unauthorized("operator access required")
	}
	return u.ConfirmCapture(ctx, bidID, result)
}

// CreateIntent starts the two-phase flow and returns the processor's
// client secret for the accepted bid's amount.
func (u *PaymentUsecase) CreateIntent(ctx context.Context, actor model.Actor, bidID string) (string, error) {
	bid, err := u.acceptedBid(ctx, actor, bidID)
	if err != nil {
		return "", err
	}
	p, err := u.ensurePayment(ctx, bid)
	if err != nil {
		return "", err
	}
	if p.Status == model.PaymentSucceeded {
		return "", model.InvalidState("payment already captured")
	}
	callCtx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()
	secret, err := u.processor.CreateIntent(callCtx, p.AmountMinor, p.Currency)
	if err != nil {
		return "", model.PaymentError("could not start payment", err)
	}
	return secret, nil
}

// GetPayment is visible to the buyer, the listing owner and operators.
func (u *PaymentUsecase) GetPayment(ctx context.Context, actor model.Actor, bidID string) (*model.Payment, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	p, err := u.paymentRepo.GetByBidID(ctx, bidID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, model.NotFound("payment not found")
	}
	if actor.IsOperator || p.BuyerID == actor.UserID {
		return p, nil
	}
	listing, err := u.listingRepo.GetByID(ctx, p.ListingID)
	if err != nil {
		return nil, err
	}
	if listing == nil || listing.OwnerID != actor.UserID {
		return nil, model.NotFound("payment not found")
	}
	return p, nil
}
