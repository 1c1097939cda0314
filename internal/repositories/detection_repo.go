package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/BradenHooton/riskgate/internal/database"
	"github.com/BradenHooton/riskgate/internal/models"
)

const detectionColumns = `id, account_id, login_attempt_id, score, tier, action,
	admin_required, auto_block, detail, source, review_status, created_at`

// DetectionRepository handles database operations for anomaly detections
type DetectionRepository struct {
	q database.Querier
}

func NewDetectionRepository(q database.Querier) *DetectionRepository {
	return &DetectionRepository{q: q}
}

func scanDetectionRow(scanner rowScanner) (*models.AnomalyDetection, error) {
	var d models.AnomalyDetection
	err := scanner.Scan(
		&d.ID, &d.AccountID, &d.LoginAttemptID, &d.Score, &d.Tier, &d.Action,
		&d.AdminRequired, &d.AutoBlock, &d.Detail, &d.Source, &d.ReviewStatus, &d.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &d, nil
}

func (r *DetectionRepository) Create(ctx context.Context, d *models.AnomalyDetection) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO anomaly_detections (` + detectionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.q.Exec(ctx, query,
		d.ID, d.AccountID, d.LoginAttemptID, d.Score, d.Tier, d.Action,
		d.AdminRequired, d.AutoBlock, d.Detail, d.Source, d.ReviewStatus, d.CreatedAt,
	)
	return database.MapPostgresError(err)
}

func (r *DetectionRepository) GetByID(ctx context.Context, id string) (*models.AnomalyDetection, error) {
	query := `SELECT ` + detectionColumns + ` FROM anomaly_detections WHERE id = $1`
	return scanDetectionRow(r.q.QueryRow(ctx, query, id))
}

// List returns detections newest first. An empty status lists every detection.
func (r *DetectionRepository) List(ctx context.Context, status models.ReviewStatus, limit int) ([]*models.AnomalyDetection, error) {
	query := `SELECT ` + detectionColumns + ` FROM anomaly_detections
		WHERE ($1 = '' OR review_status = $1)
		ORDER BY created_at DESC
		LIMIT $2`
	rows, err := r.q.Query(ctx, query, string(status), limit)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	var out []*models.AnomalyDetection
	for rows.Next() {
		d, err := scanDetectionRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *DetectionRepository) MarkReviewed(ctx context.Context, id string) error {
	tag, err := r.q.Exec(ctx, `UPDATE anomaly_detections SET review_status = 'reviewed' WHERE id = $1`, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *DetectionRepository) CountUnreviewed(ctx context.Context) (int, error) {
	var count int
	err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM anomaly_detections WHERE review_status = 'unreviewed'`).Scan(&count)
	return count, database.MapPostgresError(err)
}

func (r *DetectionRepository) CountByTier(ctx context.Context) (models.TierCounts, error) {
	rows, err := r.q.Query(ctx, `SELECT tier, COUNT(*) FROM anomaly_detections GROUP BY tier`)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	counts := models.TierCounts{}
	for rows.Next() {
		var tier models.RiskTier
		var n int
		if err := rows.Scan(&tier, &n); err != nil {
			return nil, database.MapPostgresError(err)
		}
		counts[tier] = n
	}
	return counts, rows.Err()
}
