package dao

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salvage-market/model"
)

func TestPaymentLifecycle(t *testing.T) {
	conn := openDB(t)
	bids := NewBidRepository(conn)
	repo := NewPaymentRepository(conn)
	ctx := context.Background()

	seedListing(t, conn, "L1", "seller", 1000, t0, 7)
	_, err := bids.InsertIfOpen(ctx, newBid("B1", "L1", "buyer", 1200, t0), t0)
	require.NoError(t, err)

	p := &model.Payment{
		ID: "P1", BidID: "B1", ListingID: "L1", BuyerID: "buyer", Amount: decimal.NewFromInt(1200),
		AmountMinor: 120000, Currency: "AUD", Status: model.PaymentPending, IdempotencyKey: "key-1",
		CreatedAt: t0, UpdatedAt: t0,
	}
	ok, err := repo.InsertIfAbsent(ctx, p)
	require.NoError(t, err)
	assert.True(t, ok)

	dup := *p
	dup.ID = "P2"
	ok, err = repo.InsertIfAbsent(ctx, &dup)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.BeginAttempt(ctx, "B1", t0)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkFailed(ctx, "B1", "card declined", t0)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkSucceeded(ctx, "B1", "ch_123", t0)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkSucceeded(ctx, "B1", "ch_456", t0)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = repo.MarkFailed(ctx, "B1", "late failure", t0)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.GetByBidID(ctx, "B1")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentSucceeded, got.Status)
	assert.Equal(t, "ch_123", got.ReferenceID)
	assert.Equal(t, "", got.FailureReason)
	assert.Equal(t, 1, got.Attempts)
	assert.Equal(t, "key-1", got.IdempotencyKey)
}
