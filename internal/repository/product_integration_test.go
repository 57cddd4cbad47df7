//go:build integration

package repository

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flicky/qbcart/internal/model"
)

func TestProductRepository_Integration(t *testing.T) {
	cleanupAll(t)

	store := NewStore(testPool)
	ctx := context.Background()
	seller, lamp := seedSeller(t, ctx, store, "sam")

	book := &model.Product{
		Name: "Go Book", Description: "programming", Cost: decimal.NewFromFloat(39.99),
		Stock: 5, Category: model.CategoryBooks, OwnerID: seller.ID,
	}
	require.NoError(t, store.Products().Create(ctx, book))

	// Read
	found, err := store.Products().GetByID(ctx, book.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.True(t, book.Cost.Equal(found.Cost))

	// Update
	found.Stock = 42
	require.NoError(t, store.Products().Update(ctx, found))
	updated, _ := store.Products().GetByID(ctx, book.ID)
	assert.Equal(t, 42, updated.Stock)

	// List by category
	products, total, err := store.Products().List(ctx, ProductFilter{Category: model.CategoryBooks})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, products, 1)
	assert.Equal(t, "Go Book", products[0].Name)

	// Search and sort
	products, total, err = store.Products().List(ctx, ProductFilter{Search: "lamp", Sort: "cost", Order: "asc"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, lamp.ID, products[0].ID)

	// Delete cascades into cart lines
	line := &model.CartLine{UserID: seller.ID, ProductID: book.ID, Quantity: 1}
	require.NoError(t, store.Carts().Create(ctx, line))
	require.NoError(t, store.Products().Delete(ctx, book.ID))

	gone, err := store.Carts().GetByID(ctx, line.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
	assert.ErrorIs(t, store.Products().Delete(ctx, book.ID), ErrNotFound)
}
