package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/flicky/qbcart/internal/model"
)

type CartRepository interface {
	Create(ctx context.Context, line *model.CartLine) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.CartLine, error)
	// LockByID is GetByID holding a row lock until the transaction ends.
	LockByID(ctx context.Context, id uuid.UUID) (*model.CartLine, error)
	FindByUserProduct(ctx context.Context, userID, productID uuid.UUID) (*model.CartLine, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.CartLine, error)
	LockByUserStatus(ctx context.Context, userID uuid.UUID, status model.CartStatus) ([]model.CartLine, error)
	// UpdateQuantity sets the quantity and bumps the version. A non-zero
	// expectedVersion must match the stored one or ErrVersionConflict is returned.
	UpdateQuantity(ctx context.Context, id uuid.UUID, quantity, expectedVersion int) (*model.CartLine, error)
	SetStatus(ctx context.Context, id uuid.UUID, status model.CartStatus) error
	SetStatusByUserProduct(ctx context.Context, userID, productID uuid.UUID, status model.CartStatus) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByUserStatus(ctx context.Context, userID uuid.UUID, status model.CartStatus) (int64, error)
}

type pgCartRepo struct{ db DBTX }

func NewCartRepository(db DBTX) CartRepository {
	return &pgCartRepo{db: db}
}

const cartColumns = `id, user_id, product_id, quantity, status, product_key, version, created_at, updated_at`

func scanCartLine(row scanner, l *model.CartLine) error {
	return row.Scan(&l.ID, &l.UserID, &l.ProductID, &l.Quantity, &l.Status, &l.ProductKey, &l.Version, &l.CreatedAt, &l.UpdatedAt)
}

func (r *pgCartRepo) Create(ctx context.Context, line *model.CartLine) error {
	line.ID = uuid.New()
	if line.Status == "" {
		line.Status = model.CartInOrder
	}
	query := `INSERT INTO cart_lines (id, user_id, product_id, quantity, status, product_key, version, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, 1, NOW(), NOW())
			  RETURNING version, created_at, updated_at`
	err := r.db.QueryRow(ctx, query,
		line.ID, line.UserID, line.ProductID, line.Quantity, line.Status, line.ProductKey,
	).Scan(&line.Version, &line.CreatedAt, &line.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create cart line: %w", err)
	}
	return nil
}

func (r *pgCartRepo) getOne(ctx context.Context, query string, args ...any) (*model.CartLine, error) {
	line := &model.CartLine{}
	if err := scanCartLine(r.db.QueryRow(ctx, query, args...), line); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cart line: %w", err)
	}
	return line, nil
}

func (r *pgCartRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.CartLine, error) {
	return r.getOne(ctx, `SELECT `+cartColumns+` FROM cart_lines WHERE id = $1`, id)
}

func (r *pgCartRepo) LockByID(ctx context.Context, id uuid.UUID) (*model.CartLine, error) {
	return r.getOne(ctx, `SELECT `+cartColumns+` FROM cart_lines WHERE id = $1 FOR UPDATE`, id)
}

func (r *pgCartRepo) FindByUserProduct(ctx context.Context, userID, productID uuid.UUID) (*model.CartLine, error) {
	return r.getOne(ctx,
		`SELECT `+cartColumns+` FROM cart_lines WHERE user_id = $1 AND product_id = $2
		 ORDER BY created_at LIMIT 1 FOR UPDATE`, userID, productID)
}

func (r *pgCartRepo) list(ctx context.Context, query string, args ...any) ([]model.CartLine, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list cart lines: %w", err)
	}
	defer rows.Close()

	var lines []model.CartLine
	for rows.Next() {
		var l model.CartLine
		if err := scanCartLine(rows, &l); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *pgCartRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.CartLine, error) {
	return r.list(ctx, `SELECT `+cartColumns+` FROM cart_lines WHERE user_id = $1 ORDER BY created_at`, userID)
}

func (r *pgCartRepo) LockByUserStatus(ctx context.Context, userID uuid.UUID, status model.CartStatus) ([]model.CartLine, error) {
	return r.list(ctx,
		`SELECT `+cartColumns+` FROM cart_lines WHERE user_id = $1 AND status = $2 ORDER BY created_at FOR UPDATE`,
		userID, status)
}

func (r *pgCartRepo) UpdateQuantity(ctx context.Context, id uuid.UUID, quantity, expectedVersion int) (*model.CartLine, error) {
	line := &model.CartLine{}
	err := scanCartLine(r.db.QueryRow(ctx,
		`UPDATE cart_lines SET quantity = $2, version = version + 1, updated_at = NOW()
		 WHERE id = $1 AND ($3 = 0 OR version = $3)
		 RETURNING `+cartColumns,
		id, quantity, expectedVersion,
	), line)
	if err == nil {
		return line, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("update cart quantity: %w", err)
	}
	existing, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrNotFound
	}
	return nil, ErrVersionConflict
}

func (r *pgCartRepo) SetStatus(ctx context.Context, id uuid.UUID, status model.CartStatus) error {
	ct, err := r.db.Exec(ctx,
		`UPDATE cart_lines SET status = $2, version = version + 1, updated_at = NOW() WHERE id = $1`, id, status)
	return affected(ct, err, "set cart status")
}

func (r *pgCartRepo) SetStatusByUserProduct(ctx context.Context, userID, productID uuid.UUID, status model.CartStatus) (int64, error) {
	ct, err := r.db.Exec(ctx,
		`UPDATE cart_lines SET status = $3, version = version + 1, updated_at = NOW()
		 WHERE user_id = $1 AND product_id = $2`, userID, productID, status)
	if err != nil {
		return 0, fmt.Errorf("set cart status: %w", err)
	}
	return ct.RowsAffected(), nil
}

func (r *pgCartRepo) Delete(ctx context.Context, id uuid.UUID) error {
	ct, err := r.db.Exec(ctx, `DELETE FROM cart_lines WHERE id = $1`, id)
	return affected(ct, err, "delete cart line")
}

func (r *pgCartRepo) DeleteByUserStatus(ctx context.Context, userID uuid.UUID, status model.CartStatus) (int64, error) {
	ct, err := r.db.Exec(ctx, `DELETE FROM cart_lines WHERE user_id = $1 AND status = $2`, userID, status)
	if err != nil {
		return 0, fmt.Errorf("clear cart lines: %w", err)
	}
	return ct.RowsAffected(), nil
}
