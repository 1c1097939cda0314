package repositories

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/BradenHooton/riskgate/internal/database"
)

// rowScanner interface for scanning rows (supports both single row and multiple rows)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// queries binds every repository to one Querier.
type queries struct {
	q database.Querier
}

func (s queries) Accounts() AccountStore { return &AccountRepository{q: s.q} }
func (s queries) Attempts() LoginAttemptStore { return &LoginAttemptRepository{q: s.q} }
func (s queries) Detections() DetectionStore { return &DetectionRepository{q: s.q} }
func (s queries) Delays() DelayStore { return &DelayedLoginRepository{q: s.q} }
func (s queries) Events() SecurityEventStore { return &SecurityEventRepository{q: s.q} }
func (s queries) Decisions() AdminDecisionStore { return &AdminDecisionRepository{q: s.q} }

// PostgresStore is the pgx-backed Store.
type PostgresStore struct {
	queries
	db *database.DB
}

func NewPostgresStore(db *database.DB) *PostgresStore {
	return &PostgresStore{queries: queries{q: db.Pool}, db: db}
}

func (s *PostgresStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	return s.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		return fn(queries{q: tx})
	})
}
