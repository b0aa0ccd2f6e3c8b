package dao

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salvage-market/model"
)

func TestContainerTransition(t *testing.T) {
	conn := openDB(t)
	repo := NewContainerRepository(conn)
	ctx := context.Background()

	requester := "user-1"
	c := &model.ContainerRequest{
		ID: "C1", RequesterID: &requester, ContactName: "Sam", ContactEmail: "sam@example.com",
		ContactPhone: "0400 000 000", Address: "1 Yard St", ContainerType: "240L Bins", Quantity: 5,
		Status: model.ContainerPending, CreatedAt: t0, UpdatedAt: t0,
	}
	require.NoError(t, repo.Insert(ctx, c))

	ok, err := repo.Transition(ctx, "C1", model.ContainerApproved, model.ContainerDelivered, t0)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.Transition(ctx, "C1", model.ContainerPending, model.ContainerApproved, t0)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := repo.GetByID(ctx, "C1")
	require.NoError(t, err)
	assert.Equal(t, model.ContainerApproved, got.Status)
	require.NotNil(t, got.RequesterID)
	assert.Equal(t, "user-1", *got.RequesterID)

	mine, err := repo.List(ctx, "user-1", "")
	require.NoError(t, err)
	assert.Len(t, mine, 1)
	none, err := repo.List(ctx, "user-2", "")
	require.NoError(t, err)
	assert.Empty(t, none)
	pending, err := repo.List(ctx, "", model.ContainerPending)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
