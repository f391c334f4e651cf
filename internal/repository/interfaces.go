package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
)

// PgxPool is the subset of *pgxpool.Pool the repositories use. pgxmock's
// pool satisfies it in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// ResultRepositoryInterface defines operations for violation tallies
type ResultRepositoryInterface interface {
	Increment(ctx context.Context, tally domain.Tally) (*domain.Result, error)
	Get(ctx context.Context, sessionKey, candidateEmail string) (*domain.Result, error)
	ListBySession(ctx context.Context, sessionKey string) ([]domain.Result, error)
}
