package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/flicky/qbcart/internal/model"
)

// ActivityRepository is append-only apart from admin deletes.
type ActivityRepository interface {
	Create(ctx context.Context, entry *model.ActivityLogEntry) error
	List(ctx context.Context, limit, offset int) ([]model.ActivityLogEntry, int, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type pgActivityRepo struct{ db DBTX }

func NewActivityRepository(db DBTX) ActivityRepository {
	return &pgActivityRepo{db: db}
}

func (r *pgActivityRepo) Create(ctx context.Context, entry *model.ActivityLogEntry) error {
	entry.ID = uuid.New()
	err := r.db.QueryRow(ctx,
		`INSERT INTO activity_log (id, username, email, action, product, comments, date_time)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING created_at`,
		entry.ID, entry.Username, entry.Email, entry.Action, entry.Product, entry.Comments, entry.DateTime,
	).Scan(&entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("create activity entry: %w", err)
	}
	return nil
}

func (r *pgActivityRepo) List(ctx context.Context, limit, offset int) ([]model.ActivityLogEntry, int, error) {
	if limit <= 0 {
		limit = 50
	}
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM activity_log`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count activity: %w", err)
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, username, email, action, product, comments, date_time, created_at
		 FROM activity_log ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	var entries []model.ActivityLogEntry
	for rows.Next() {
		var e model.ActivityLogEntry
		if err := rows.Scan(&e.ID, &e.Username, &e.Email, &e.Action, &e.Product, &e.Comments, &e.DateTime, &e.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan activity: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

func (r *pgActivityRepo) Delete(ctx context.Context, id uuid.UUID) error {
	ct, err := r.db.Exec(ctx, `DELETE FROM activity_log WHERE id = $1`, id)
	return affected(ct, err, "delete activity entry")
}
