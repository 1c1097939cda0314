package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/BradenHooton/riskgate/internal/database"
	"github.com/BradenHooton/riskgate/internal/models"
)

// AdminDecisionRepository stores review decisions. detection_id is unique,
// so a second decision on the same detection is ErrConflict.
type AdminDecisionRepository struct {
	q database.Querier
}

func NewAdminDecisionRepository(q database.Querier) *AdminDecisionRepository {
	return &AdminDecisionRepository{q: q}
}

func (r *AdminDecisionRepository) Create(ctx context.Context, d *models.AdminDecision) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO admin_decisions (id, detection_id, admin_id, action, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.q.Exec(ctx, query, d.ID, d.DetectionID, d.AdminID, d.Action, d.Note, d.CreatedAt)
	return database.MapPostgresError(err)
}

func (r *AdminDecisionRepository) GetByDetection(ctx context.Context, detectionID string) (*models.AdminDecision, error) {
	query := `
		SELECT id, detection_id, admin_id, action, note, created_at
		FROM admin_decisions WHERE detection_id = $1
	`
	var d models.AdminDecision
	err := r.q.QueryRow(ctx, query, detectionID).Scan(&d.ID, &d.DetectionID, &d.AdminID, &d.Action, &d.Note, &d.CreatedAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &d, nil
}
