package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/flicky/qbcart/internal/model"
)

type ScheduleRepository interface {
	GetByName(ctx context.Context, name string) (*model.Schedule, error)
	// CreateIfAbsent inserts s unless a schedule with the same name exists.
	CreateIfAbsent(ctx context.Context, s *model.Schedule) (created bool, err error)
	Update(ctx context.Context, s *model.Schedule) error
	List(ctx context.Context) ([]model.Schedule, error)
}

type pgScheduleRepo struct{ db DBTX }

func NewScheduleRepository(db DBTX) ScheduleRepository {
	return &pgScheduleRepo{db: db}
}

const scheduleColumns = `id, name, task, minute, hour, day_of_week, day_of_month, month_of_year, enabled, updated_at`

func scanSchedule(row scanner, s *model.Schedule) error {
	return row.Scan(&s.ID, &s.Name, &s.Task, &s.Minute, &s.Hour, &s.DayOfWeek, &s.DayOfMonth, &s.MonthOfYear, &s.Enabled, &s.UpdatedAt)
}

func (r *pgScheduleRepo) GetByName(ctx context.Context, name string) (*model.Schedule, error) {
	s := &model.Schedule{}
	err := scanSchedule(r.db.QueryRow(ctx, `SELECT `+scheduleColumns+` FROM schedules WHERE name = $1`, name), s)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	return s, nil
}

func (r *pgScheduleRepo) CreateIfAbsent(ctx context.Context, s *model.Schedule) (bool, error) {
	id := uuid.New()
	ct, err := r.db.Exec(ctx,
		`INSERT INTO schedules (id, name, task, minute, hour, day_of_week, day_of_month, month_of_year, enabled, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		 ON CONFLICT (name) DO NOTHING`,
		id, s.Name, s.Task, s.Minute, s.Hour, s.DayOfWeek, s.DayOfMonth, s.MonthOfYear, s.Enabled)
	if err != nil {
		return false, fmt.Errorf("create schedule: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return false, nil
	}
	s.ID = id
	return true, nil
}

func (r *pgScheduleRepo) Update(ctx context.Context, s *model.Schedule) error {
	err := r.db.QueryRow(ctx,
		`UPDATE schedules SET task=$2, minute=$3, hour=$4, day_of_week=$5, day_of_month=$6, month_of_year=$7,
		 enabled=$8, updated_at=NOW() WHERE name=$1 RETURNING id, updated_at`,
		s.Name, s.Task, s.Minute, s.Hour, s.DayOfWeek, s.DayOfMonth, s.MonthOfYear, s.Enabled,
	).Scan(&s.ID, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("update schedule: %w", err)
	}
	return nil
}

func (r *pgScheduleRepo) List(ctx context.Context) ([]model.Schedule, error) {
	rows, err := r.db.Query(ctx, `SELECT `+scheduleColumns+` FROM schedules ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	var schedules []model.Schedule
	for rows.Next() {
		var s model.Schedule
		if err := scanSchedule(rows, &s); err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		schedules = append(schedules, s)
	}
	return schedules, rows.Err()
}
