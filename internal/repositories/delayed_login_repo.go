package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/BradenHooton/riskgate/internal/database"
	"github.com/BradenHooton/riskgate/internal/models"
)

const delayColumns = `id, account_id, login_attempt_id, delay_seconds, started_at, ends_at,
	status, ip_address, user_agent, resolved_at, password_verified, claimed_at`

// DelayedLoginRepository handles database operations for delayed logins
type DelayedLoginRepository struct {
	q database.Querier
}

func NewDelayedLoginRepository(q database.Querier) *DelayedLoginRepository {
	return &DelayedLoginRepository{q: q}
}

func scanDelayRow(scanner rowScanner) (*models.DelayedLogin, error) {
	var d models.DelayedLogin
	err := scanner.Scan(
		&d.ID, &d.AccountID, &d.LoginAttemptID, &d.DelaySeconds, &d.StartedAt, &d.EndsAt,
		&d.Status, &d.IPAddress, &d.UserAgent, &d.ResolvedAt, &d.PasswordVerified, &d.ClaimedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &d, nil
}

// Create inserts a waiting delay. The partial unique index on
// (account_id) WHERE status = 'waiting' turns a duplicate into ErrConflict.
func (r *DelayedLoginRepository) Create(ctx context.Context, d *models.DelayedLogin) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	query := `INSERT INTO delayed_logins (` + delayColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.q.Exec(ctx, query,
		d.ID, d.AccountID, d.LoginAttemptID, d.DelaySeconds, d.StartedAt, d.EndsAt,
		d.Status, d.IPAddress, d.UserAgent, d.ResolvedAt, d.PasswordVerified, d.ClaimedAt,
	)
	return database.MapPostgresError(err)
}

func (r *DelayedLoginRepository) GetByID(ctx context.Context, id string) (*models.DelayedLogin, error) {
	query := `SELECT ` + delayColumns + ` FROM delayed_logins WHERE id = $1`
	return scanDelayRow(r.q.QueryRow(ctx, query, id))
}

// FindWaiting returns the account's waiting delay or ErrNotFound.
func (r *DelayedLoginRepository) FindWaiting(ctx context.Context, accountID string) (*models.DelayedLogin, error) {
	query := `SELECT ` + delayColumns + ` FROM delayed_logins
		WHERE account_id = $1 AND status = 'waiting'`
	return scanDelayRow(r.q.QueryRow(ctx, query, accountID))
}

// Resolve moves a waiting delay to a terminal status. A delay that is no
// longer waiting is left alone and reported as ErrConflict.
func (r *DelayedLoginRepository) Resolve(ctx context.Context, id string, status models.DelayStatus, at time.Time) error {
	query := `UPDATE delayed_logins SET status = $2, resolved_at = $3
		WHERE id = $1 AND status = 'waiting'`
	tag, err := r.q.Exec(ctx, query, id, status, at)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrConflict
	}
	return nil
}

func (r *DelayedLoginRepository) Claim(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE delayed_logins SET claimed_at = $2
		WHERE id = $1 AND status = 'completed' AND password_verified AND claimed_at IS NULL`
	tag, err := r.q.Exec(ctx, query, id, at)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrConflict
	}
	return nil
}

func (r *DelayedLoginRepository) CancelWaiting(ctx context.Context, accountID string, at time.Time) (int, error) {
	query := `UPDATE delayed_logins SET status = 'cancelled', resolved_at = $2
		WHERE account_id = $1 AND status = 'waiting'`
	tag, err := r.q.Exec(ctx, query, accountID, at)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return int(tag.RowsAffected()), nil
}
