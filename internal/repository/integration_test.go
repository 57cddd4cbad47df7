package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flicky/qbcart/internal/model"
)

func seedSeller(t *testing.T, ctx context.Context, s Store, username string) (*model.User, *model.Product) {
	t.Helper()
	seller := &model.User{Username: username, Email: username + "@example.com", Password: "h", Role: model.RoleSeller}
	require.NoError(t, s.Users().Create(ctx, seller))

	product := &model.Product{
		Name: "Lamp", Description: "desk lamp", Cost: decimal.NewFromFloat(12.5),
		Stock: 10, Category: model.CategoryHome, OwnerID: seller.ID,
	}
	require.NoError(t, s.Products().Create(ctx, product))
	return seller, product
}

func TestUserRepo_CreateAndGetByUsername(t *testing.T) {
	cleanupAll(t)

	repo := NewUserRepository(testPool)
	ctx := context.Background()

	user := &model.User{Username: "alice", Email: "alice@example.com", Password: "hashed", Role: model.RoleBuyer}
	require.NoError(t, repo.Create(ctx, user))
	assert.NotEqual(t, uuid.Nil, user.ID)

	found, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, user.ID, found.ID)
	assert.Equal(t, model.RoleBuyer, found.Role)

	missing, err := repo.GetByUsername(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestCartRepo_VersionedQuantity(t *testing.T) {
	cleanupAll(t)

	store := NewStore(testPool)
	ctx := context.Background()
	buyer, product := seedSeller(t, ctx, store, "vera")

	line := &model.CartLine{UserID: buyer.ID, ProductID: product.ID, Quantity: 1, ProductKey: 7}
	require.NoError(t, store.Carts().Create(ctx, line))
	assert.Equal(t, model.CartInOrder, line.Status)
	assert.Equal(t, 1, line.Version)

	updated, err := store.Carts().UpdateQuantity(ctx, line.ID, 4, 1)
	require.NoError(t, err)
	assert.Equal(t, 4, updated.Quantity)
	assert.Equal(t, 2, updated.Version)

	_, err = store.Carts().UpdateQuantity(ctx, line.ID, 5, 1)
	assert.True(t, errors.Is(err, ErrVersionConflict))

	_, err = store.Carts().UpdateQuantity(ctx, uuid.New(), 5, 0)
	assert.True(t, errors.Is(err, ErrNotFound))

	n, err := store.Carts().DeleteByUserStatus(ctx, buyer.ID, model.CartInOrder)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestOrderRepo_UpsertDraftKeepsOneRow(t *testing.T) {
	cleanupAll(t)

	store := NewStore(testPool)
	ctx := context.Background()
	buyer, product := seedSeller(t, ctx, store, "otto")

	first := &model.Order{UserID: buyer.ID, ProductID: product.ID, Quantity: 2, Price: decimal.NewFromInt(25)}
	created, err := store.Orders().UpsertDraft(ctx, first)
	require.NoError(t, err)
	assert.True(t, created)

	second := &model.Order{UserID: buyer.ID, ProductID: product.ID, Quantity: 3, Price: decimal.NewFromFloat(37.5)}
	created, err = store.Orders().UpsertDraft(ctx, second)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	drafts, err := store.Orders().ListByUserStatus(ctx, buyer.ID, model.OrderStatusNotPlaced)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, 3, drafts[0].Quantity)

	now := time.Now()
	require.NoError(t, store.Orders().MarkPlaced(ctx, []uuid.UUID{first.ID}, now))

	placed, err := store.Orders().ListPlacedBetween(ctx, now.Add(-time.Minute), now.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, placed, 1)
	assert.Equal(t, model.OrderStatusPlaced, placed[0].Status)

	// a placed order frees the draft slot
	created, err = store.Orders().UpsertDraft(ctx, &model.Order{UserID: buyer.ID, ProductID: product.ID, Quantity: 1, Price: decimal.NewFromFloat(12.5)})
	require.NoError(t, err)
	assert.True(t, created)
}

func TestStore_InTxRollsBack(t *testing.T) {
	cleanupAll(t)

	store := NewStore(testPool)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.InTx(ctx, func(tx Store) error {
		require.NoError(t, tx.Users().Create(ctx, &model.User{Username: "ghost", Password: "h", Role: model.RoleBuyer}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	found, err := store.Users().GetByUsername(ctx, "ghost")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestActivityAndScheduleRepos(t *testing.T) {
	cleanupAll(t)

	store := NewStore(testPool)
	ctx := context.Background()

	entry := &model.ActivityLogEntry{
		Username: "alice", Action: model.ActionAddedToCart, Product: "Lamp",
		Comments: "added to cart", DateTime: "2024-05-01 10:00",
	}
	require.NoError(t, store.Activity().Create(ctx, entry))

	entries, total, err := store.Activity().List(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, entries, 1)
	assert.Equal(t, model.ActionAddedToCart, entries[0].Action)

	sched := &model.Schedule{
		Name: "hourly_mail", Task: string(model.TaskSendHourlyReport),
		Minute: "0", Hour: "*/1", DayOfWeek: "*", DayOfMonth: "*", MonthOfYear: "*", Enabled: true,
	}
	created, err := store.Schedules().CreateIfAbsent(ctx, sched)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = store.Schedules().CreateIfAbsent(ctx, &model.Schedule{Name: "hourly_mail", Task: "other", Minute: "5"})
	require.NoError(t, err)
	assert.False(t, created)

	stored, err := store.Schedules().GetByName(ctx, "hourly_mail")
	require.NoError(t, err)
	assert.Equal(t, "0 */1 * * *", stored.CronSpec())
}
