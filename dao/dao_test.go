package dao

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"salvage-market/db/dbtest"
	"salvage-market/model"
)

var t0 = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

func seedListing(t *testing.T, conn *sql.DB, id, owner string, price int64, created time.Time, days int) *model.Listing {
	t.Helper()
	l := &model.Listing{
		ID:           id,
		OwnerID:      owner,
		Title:        "Copper offcuts",
		Description:  "Clean copper pipe offcuts",
		Kind:         model.KindRecycle,
		Category:     "metals",
		Price:        decimal.NewFromInt(price),
		Location:     "Brunswick",
		ImageRefs:    []string{"img/1.jpg"},
		Status:       model.ListingActive,
		DurationDays: days,
		CreatedAt:    created,
		ExpiresAt:    created.AddDate(0, 0, days),
		UpdatedAt:    created,
	}
	require.NoError(t, NewListingRepository(conn).Insert(context.Background(), l))
	return l
}

func seedAgent(t *testing.T, conn *sql.DB, id, userID string) *model.Agent {
	t.Helper()
	a := &model.Agent{ID: id, UserID: userID, Name: "Agent " + id, Email: id + "@agents.test", Available: true, CreatedAt: t0}
	require.NoError(t, NewAgentRepository(conn).Insert(context.Background(), a))
	return a
}

func openDB(t *testing.T) *sql.DB {
	return dbtest.Open(t)
}
