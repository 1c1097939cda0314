package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/BradenHooton/riskgate/internal/database"
	"github.com/BradenHooton/riskgate/internal/models"
)

// SecurityEventRepository appends and reads security events. Rows are never
// updated or deleted.
type SecurityEventRepository struct {
	q database.Querier
}

func NewSecurityEventRepository(q database.Querier) *SecurityEventRepository {
	return &SecurityEventRepository{q: q}
}

func (r *SecurityEventRepository) Create(ctx context.Context, e *models.SecurityEvent) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO security_events (id, account_id, event_type, actor, admin_id, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.q.Exec(ctx, query, e.ID, e.AccountID, e.Type, e.Actor, e.AdminID, e.Reason, e.CreatedAt)
	return database.MapPostgresError(err)
}

func (r *SecurityEventRepository) ListByAccount(ctx context.Context, accountID string, limit int) ([]*models.SecurityEvent, error) {
	query := `
		SELECT id, account_id, event_type, actor, admin_id, reason, created_at
		FROM security_events
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.q.Query(ctx, query, accountID, limit)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	var events []*models.SecurityEvent
	for rows.Next() {
		var e models.SecurityEvent
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Type, &e.Actor, &e.AdminID, &e.Reason, &e.CreatedAt); err != nil {
			return nil, database.MapPostgresError(err)
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}
