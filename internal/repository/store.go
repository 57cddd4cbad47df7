package repository

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrVersionConflict = errors.New("version conflict")
)

//go:embed schema.sql
var schemaSQL string

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store groups the repositories that make up one unit of work.
type Store interface {
	Users() UserRepository
	Products() ProductRepository
	Carts() CartRepository
	Orders() OrderRepository
	Activity() ActivityRepository
	Schedules() ScheduleRepository
	// InTx runs fn against a Store bound to a single transaction. fn's error
	// rolls back every write made through the Store it was given.
	InTx(ctx context.Context, fn func(Store) error) error
}

type PgStore struct {
	pool *pgxpool.Pool
	db   DBTX
}

func NewStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool, db: pool}
}

func (s *PgStore) Users() UserRepository { return NewUserRepository(s.db) }
func (s *PgStore) Products() ProductRepository { return NewProductRepository(s.db) }
func (s *PgStore) Carts() CartRepository { return NewCartRepository(s.db) }
func (s *PgStore) Orders() OrderRepository { return NewOrderRepository(s.db) }
func (s *PgStore) Activity() ActivityRepository { return NewActivityRepository(s.db) }
func (s *PgStore) Schedules() ScheduleRepository { return NewScheduleRepository(s.db) }

func (s *PgStore) InTx(ctx context.Context, fn func(Store) error) error {
	if s.pool == nil {
		// already inside a transaction
		return fn(s)
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&PgStore{db: tx})
	})
}

func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func affected(ct pgconn.CommandTag, err error, op string) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
