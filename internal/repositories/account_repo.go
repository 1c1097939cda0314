package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/BradenHooton/riskgate/internal/database"
	"github.com/BradenHooton/riskgate/internal/models"
)

const accountColumns = `id, username, password_hash, role, status,
	blocked_at, blocked_reason, blocked_by,
	monitored, monitoring_start, monitoring_end,
	last_login_at, last_login_ip, created_at, updated_at`

// AccountRepository handles database operations for accounts
type AccountRepository struct {
	q database.Querier
}

func NewAccountRepository(q database.Querier) *AccountRepository {
	return &AccountRepository{q: q}
}

// scanAccountRow populates an Account from a database row
func scanAccountRow(scanner rowScanner) (*models.Account, error) {
	var a models.Account
	err := scanner.Scan(
		&a.ID, &a.Username, &a.PasswordHash, &a.Role, &a.Status,
		&a.BlockedAt, &a.BlockedReason, &a.BlockedBy,
		&a.Monitored, &a.MonitoringStart, &a.MonitoringEnd,
		&a.LastLoginAt, &a.LastLoginIP, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &a, nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccountRow(r.q.QueryRow(ctx, query, id))
}

func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE username = $1`
	return scanAccountRow(r.q.QueryRow(ctx, query, username))
}

// LockByID reads the account with a row lock held until the surrounding
// transaction ends. Outside a transaction the lock is released immediately.
func (r *AccountRepository) LockByID(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 FOR UPDATE`
	return scanAccountRow(r.q.QueryRow(ctx, query, id))
}

func (r *AccountRepository) Create(ctx context.Context, a *models.Account) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = models.AccountStatusActive
	}
	if a.Role == "" {
		a.Role = models.RoleUser
	}
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now

	query := `
		INSERT INTO accounts (id, username, password_hash, role, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.q.Exec(ctx, query, a.ID, a.Username, a.PasswordHash, a.Role, a.Status, a.CreatedAt, a.UpdatedAt)
	return database.MapPostgresError(err)
}

// Update writes every mutable account field.
func (r *AccountRepository) Update(ctx context.Context, a *models.Account) error {
	a.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE accounts SET
			password_hash = $2, role = $3, status = $4,
			blocked_at = $5, blocked_reason = $6, blocked_by = $7,
			monitored = $8, monitoring_start = $9, monitoring_end = $10,
			last_login_at = $11, last_login_ip = $12, updated_at = $13
		WHERE id = $1
	`
	tag, err := r.q.Exec(ctx, query,
		a.ID, a.PasswordHash, a.Role, a.Status,
		a.BlockedAt, a.BlockedReason, a.BlockedBy,
		a.Monitored, a.MonitoringStart, a.MonitoringEnd,
		a.LastLoginAt, a.LastLoginIP, a.UpdatedAt,
	)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *AccountRepository) ListMonitored(ctx context.Context, limit int) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts
		WHERE monitored = true
		ORDER BY monitoring_start DESC NULLS LAST
		LIMIT $1`
	rows, err := r.q.Query(ctx, query, limit)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		a, err := scanAccountRow(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *AccountRepository) Stats(ctx context.Context) (*models.AccountStats, error) {
	query := `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE status = 'active'),
			COUNT(*) FILTER (WHERE status = 'blocked'),
			COUNT(*) FILTER (WHERE status = 'delayed'),
			COUNT(*) FILTER (WHERE monitored)
		FROM accounts
	`
	var s models.AccountStats
	err := r.q.QueryRow(ctx, query).Scan(&s.Total, &s.Active, &s.Blocked, &s.Delayed, &s.Monitored)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &s, nil
}
