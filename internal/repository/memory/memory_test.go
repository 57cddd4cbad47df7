package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flicky/qbcart/internal/model"
	"github.com/flicky/qbcart/internal/repository"
)

func TestInTx_RollsBackOnError(t *testing.T) {
	s := New()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.InTx(ctx, func(tx repository.Store) error {
		require.NoError(t, tx.Users().Create(ctx, &model.User{Username: "ghost"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	u, err := s.Users().GetByUsername(ctx, "ghost")
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestUpsertDraft_OneDraftPerProduct(t *testing.T) {
	s := New()
	ctx := context.Background()
	buyer := &model.User{Username: "b"}
	require.NoError(t, s.Users().Create(ctx, buyer))
	p := &model.Product{Name: "P", Cost: decimal.NewFromInt(3), OwnerID: buyer.ID}
	require.NoError(t, s.Products().Create(ctx, p))

	created, err := s.Orders().UpsertDraft(ctx, &model.Order{UserID: buyer.ID, ProductID: p.ID, Quantity: 1})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.Orders().UpsertDraft(ctx, &model.Order{UserID: buyer.ID, ProductID: p.ID, Quantity: 2})
	require.NoError(t, err)
	assert.False(t, created)

	drafts, _ := s.Orders().ListByUserStatus(ctx, buyer.ID, model.OrderStatusNotPlaced)
	require.Len(t, drafts, 1)
	assert.Equal(t, 2, drafts[0].Quantity)
}

func TestDeleteProduct_Cascades(t *testing.T) {
	s := New()
	ctx := context.Background()
	u := &model.User{Username: "u"}
	require.NoError(t, s.Users().Create(ctx, u))
	p := &model.Product{Name: "P", OwnerID: u.ID}
	require.NoError(t, s.Products().Create(ctx, p))
	line := &model.CartLine{UserID: u.ID, ProductID: p.ID, Quantity: 1}
	require.NoError(t, s.Carts().Create(ctx, line))

	require.NoError(t, s.Products().Delete(ctx, p.ID))
	got, err := s.Carts().GetByID(ctx, line.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.ErrorIs(t, s.Products().Delete(ctx, p.ID), repository.ErrNotFound)
}

func TestUpdateQuantity_VersionCheck(t *testing.T) {
	s := New()
	ctx := context.Background()
	line := &model.CartLine{Quantity: 1}
	require.NoError(t, s.Carts().Create(ctx, line))

	_, err := s.Carts().UpdateQuantity(ctx, line.ID, 3, 2)
	assert.ErrorIs(t, err, repository.ErrVersionConflict)

	updated, err := s.Carts().UpdateQuantity(ctx, line.ID, 3, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)
}
