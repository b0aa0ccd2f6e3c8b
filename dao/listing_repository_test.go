package dao

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salvage-market/model"
)

func TestListingRoundTrip(t *testing.T) {
	conn := openDB(t)
	repo := NewListingRepository(conn)
	ctx := context.Background()

	want := seedListing(t, conn, "L1", "seller", 1000, t0, 7)

	got, err := repo.GetByID(ctx, "L1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.OwnerID, got.OwnerID)
	assert.True(t, want.Price.Equal(got.Price))
	assert.Equal(t, []string{"img/1.jpg"}, got.ImageRefs)
	assert.True(t, want.ExpiresAt.Equal(got.ExpiresAt))

	missing, err := repo.GetByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestListActiveExcludesExpiryInstant(t *testing.T) {
	conn := openDB(t)
	repo := NewListingRepository(conn)
	ctx := context.Background()

	l := seedListing(t, conn, "L1", "seller", 1000, t0, 7)
	seedListing(t, conn, "L2", "seller", 1000, t0.Add(time.Hour), 7)

	got, err := repo.ListActive(ctx, l.ExpiresAt.Add(-time.Second), model.ListingFilter{})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = repo.ListActive(ctx, l.ExpiresAt, model.ListingFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "L2", got[0].ID)
}

func TestListActiveFilters(t *testing.T) {
	conn := openDB(t)
	repo := NewListingRepository(conn)
	ctx := context.Background()

	seedListing(t, conn, "L1", "seller", 1000, t0, 7)

	got, err := repo.ListActive(ctx, t0, model.ListingFilter{Kind: model.KindSalvage})
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = repo.ListActive(ctx, t0, model.ListingFilter{Kind: model.KindRecycle, Category: "metals"})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestMarkSoldIsCompareAndSet(t *testing.T) {
	conn := openDB(t)
	repo := NewListingRepository(conn)
	ctx := context.Background()

	seedListing(t, conn, "L1", "seller", 1000, t0, 7)

	ok, err := repo.MarkSold(ctx, "L1", t0.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkSold(ctx, "L1", t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.GetByID(ctx, "L1")
	require.NoError(t, err)
	assert.Equal(t, model.ListingSold, got.Status)
}

func TestMarkSoldRefusesExpiredListing(t *testing.T) {
	conn := openDB(t)
	repo := NewListingRepository(conn)

	l := seedListing(t, conn, "L1", "seller", 1000, t0, 7)

	ok, err := repo.MarkSold(context.Background(), "L1", l.ExpiresAt)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCancelRequiresOwnerAndActive(t *testing.T) {
	conn := openDB(t)
	repo := NewListingRepository(conn)
	ctx := context.Background()

	seedListing(t, conn, "L1", "seller", 1000, t0, 7)

	ok, err := repo.Cancel(ctx, "L1", "intruder", t0)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.Cancel(ctx, "L1", "seller", t0)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Cancel(ctx, "L1", "seller", t0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExpireDueIsIdempotent(t *testing.T) {
	conn := openDB(t)
	repo := NewListingRepository(conn)
	ctx := context.Background()

	seedListing(t, conn, "L1", "seller", 1000, t0, 7)
	seedListing(t, conn, "L2", "seller", 1000, t0, 30)
	now := t0.AddDate(0, 0, 8)

	n, err := repo.ExpireDue(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repo.ExpireDue(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	got, err := repo.GetByID(ctx, "L1")
	require.NoError(t, err)
	assert.Equal(t, model.ListingExpired, got.Status)
}

func TestUpdateMetadataOnlyWhileActive(t *testing.T) {
	conn := openDB(t)
	repo := NewListingRepository(conn)
	ctx := context.Background()

	l := seedListing(t, conn, "L1", "seller", 1000, t0, 7)
	l.Title = "Copper pipe, 20kg"
	l.Price = decimal.RequireFromString("950.50")
	l.ImageRefs = nil

	ok, err := repo.UpdateMetadata(ctx, l)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := repo.GetByID(ctx, "L1")
	require.NoError(t, err)
	assert.Equal(t, "Copper pipe, 20kg", got.Title)
	assert.True(t, decimal.RequireFromString("950.5").Equal(got.Price))
	assert.Equal(t, []string{}, got.ImageRefs)

	_, err = repo.MarkSold(ctx, "L1", t0)
	require.NoError(t, err)
	ok, err = repo.UpdateMetadata(ctx, l)
	require.NoError(t, err)
	assert.False(t, ok)
}
