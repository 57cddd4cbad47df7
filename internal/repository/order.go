package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/flicky/qbcart/internal/model"
)

type OrderRepository interface {
	// UpsertDraft writes quantity and price onto the user's NotPlaced order for
	// the product, creating it when none exists. created reports which happened.
	UpsertDraft(ctx context.Context, order *model.Order) (created bool, err error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error)
	LockByID(ctx context.Context, id uuid.UUID) (*model.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Order, error)
	ListByUserStatus(ctx context.Context, userID uuid.UUID, status model.OrderStatus) ([]model.Order, error)
	LockByUserStatus(ctx context.Context, userID uuid.UUID, status model.OrderStatus) ([]model.Order, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Order, error)
	ListPlacedBetween(ctx context.Context, start, end time.Time) ([]model.Order, error)
	SetStatus(ctx context.Context, id uuid.UUID, status model.OrderStatus) error
	MarkPlaced(ctx context.Context, ids []uuid.UUID, at time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type pgOrderRepo struct{ db DBTX }

func NewOrderRepository(db DBTX) OrderRepository {
	return &pgOrderRepo{db: db}
}

const orderColumns = `id, user_id, product_id, order_date, placed_at, status, quantity, price`

func scanOrder(row scanner, o *model.Order) error {
	return row.Scan(&o.ID, &o.UserID, &o.ProductID, &o.OrderDate, &o.PlacedAt, &o.Status, &o.Quantity, &o.Price)
}

func (r *pgOrderRepo) UpsertDraft(ctx context.Context, order *model.Order) (bool, error) {
	var created bool
	err := r.db.QueryRow(ctx,
		`INSERT INTO orders (id, user_id, product_id, order_date, status, quantity, price)
		 VALUES ($1, $2, $3, NOW(), 'NP', $4, $5)
		 ON CONFLICT (user_id, product_id) WHERE status = 'NP'
		 DO UPDATE SET quantity = EXCLUDED.quantity, price = EXCLUDED.price
		 RETURNING id, order_date, status, (xmax = 0) AS created`,
		uuid.New(), order.UserID, order.ProductID, order.Quantity, order.Price,
	).Scan(&order.ID, &order.OrderDate, &order.Status, &created)
	if err != nil {
		return false, fmt.Errorf("upsert draft order: %w", err)
	}
	return created, nil
}

func (r *pgOrderRepo) getOne(ctx context.Context, query string, args ...any) (*model.Order, error) {
	order := &model.Order{}
	if err := scanOrder(r.db.QueryRow(ctx, query, args...), order); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return order, nil
}

func (r *pgOrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

func (r *pgOrderRepo) LockByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
}

func (r *pgOrderRepo) list(ctx context.Context, query string, args ...any) ([]model.Order, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		var o model.Order
		if err := scanOrder(rows, &o); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (r *pgOrderRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY order_date DESC`, userID)
}

func (r *pgOrderRepo) ListByUserStatus(ctx context.Context, userID uuid.UUID, status model.OrderStatus) ([]model.Order, error) {
	return r.list(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 AND status = $2 ORDER BY order_date`,
		userID, status)
}

func (r *pgOrderRepo) LockByUserStatus(ctx context.Context, userID uuid.UUID, status model.OrderStatus) ([]model.Order, error) {
	return r.list(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 AND status = $2 ORDER BY order_date FOR UPDATE`,
		userID, status)
}

func (r *pgOrderRepo) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ANY($1) ORDER BY order_date`, ids)
}

func (r *pgOrderRepo) ListPlacedBetween(ctx context.Context, start, end time.Time) ([]model.Order, error) {
	return r.list(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE placed_at >= $1 AND placed_at <= $2 ORDER BY placed_at`,
		start, end)
}

func (r *pgOrderRepo) SetStatus(ctx context.Context, id uuid.UUID, status model.OrderStatus) error {
	ct, err := r.db.Exec(ctx, `UPDATE orders SET status = $2 WHERE id = $1`, id, status)
	return affected(ct, err, "set order status")
}

func (r *pgOrderRepo) MarkPlaced(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE orders SET status = 'PL', placed_at = $2 WHERE id = ANY($1) AND status = 'NP'`, ids, at)
	if err != nil {
		return fmt.Errorf("mark orders placed: %w", err)
	}
	return nil
}

func (r *pgOrderRepo) Delete(ctx context.Context, id uuid.UUID) error {
	ct, err := r.db.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	return affected(ct, err, "delete order")
}
