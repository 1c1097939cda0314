package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/BradenHooton/riskgate/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is satisfied by both the pool and an open transaction, so
// repositories can run inside or outside WithTransaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// constraintErrors maps SQLSTATE codes raised by the schema's constraints
// to domain errors.
var constraintErrors = map[string]error{
	"23505": models.ErrConflict,   // unique_violation
	"23P01": models.ErrConflict,   // exclusion_violation
	"23503": models.ErrBadRequest, // foreign_key_violation
	"23502": models.ErrBadRequest, // not_null_violation
	"23514": models.ErrBadRequest, // check_violation
	"22P02": models.ErrBadRequest, // invalid_text_representation, e.g. a malformed uuid
}

// MapPostgresError translates driver errors into the models error set and
// passes anything else through unchanged.
func MapPostgresError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if mapped, ok := constraintErrors[pgErr.Code]; ok {
			return mapped
		}
	}
	return err
}

// WithTransaction runs fn in a transaction, committing when fn returns nil
// and rolling back on error or panic.
func (db *DB) WithTransaction(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}
