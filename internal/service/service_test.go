package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/flicky/qbcart/internal/model"
	"github.com/flicky/qbcart/internal/repository/memory"
)

type recorded struct {
	User     string
	Action   model.Action
	Product  string
	Comments string
}

type fakeRecorder struct {
	mu      sync.Mutex
	entries []recorded
}

func (f *fakeRecorder) Record(_ context.Context, user *model.User, action model.Action, product, comments string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, recorded{User: user.Username, Action: action, Product: product, Comments: comments})
}

func (f *fakeRecorder) actions() []model.Action {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Action, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e.Action)
	}
	return out
}

func (f *fakeRecorder) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = nil
}

type confirmation struct {
	UserID   uuid.UUID
	OrderIDs []uuid.UUID
}

type fakeNotifier struct {
	sent []confirmation
}

func (f *fakeNotifier) SendConfirmation(_ context.Context, userID uuid.UUID, orderIDs []uuid.UUID) {
	f.sent = append(f.sent, confirmation{UserID: userID, OrderIDs: orderIDs})
}

type fixture struct {
	ctx      context.Context
	store    *memory.Store
	recorder *fakeRecorder
	notifier *fakeNotifier
	carts    *CartService
	orders   *OrderService
	products *ProductService

	seller *model.User
	buyer  *model.User
	lamp   *model.Product
	book   *model.Product
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &fixture{
		ctx:      context.Background(),
		store:    memory.New(),
		recorder: &fakeRecorder{},
		notifier: &fakeNotifier{},
	}
	f.carts = NewCartService(f.store, f.recorder, log)
	f.orders = NewOrderService(f.store, f.recorder, f.notifier, log)
	f.products = NewProductService(f.store, nil, f.recorder)

	f.seller = f.user(t, "sam", model.RoleSeller)
	f.buyer = f.user(t, "bob", model.RoleBuyer)
	f.lamp = f.product(t, "Lamp", "12.50")
	f.book = f.product(t, "Book", "4")
	return f
}

func (f *fixture) user(t *testing.T, name string, role model.Role) *model.User {
	t.Helper()
	u := &model.User{Username: name, Email: name + "@example.com", Role: role}
	require.NoError(t, f.store.Users().Create(f.ctx, u))
	return u
}

func (f *fixture) product(t *testing.T, name, cost string) *model.Product {
	t.Helper()
	p := &model.Product{
		Name: name, Cost: decimal.RequireFromString(cost), Stock: 10,
		Category: model.CategoryHome, OwnerID: f.seller.ID,
	}
	require.NoError(t, f.store.Products().Create(f.ctx, p))
	return p
}

func (f *fixture) lines(t *testing.T, userID uuid.UUID) []model.CartLine {
	t.Helper()
	lines, err := f.store.Carts().ListByUser(f.ctx, userID)
	require.NoError(t, err)
	return lines
}

func (f *fixture) ordersOf(t *testing.T, userID uuid.UUID) []model.Order {
	t.Helper()
	orders, err := f.store.Orders().ListByUser(f.ctx, userID)
	require.NoError(t, err)
	return orders
}
