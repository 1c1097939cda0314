package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/BradenHooton/riskgate/internal/database"
	"github.com/BradenHooton/riskgate/internal/models"
)

// LoginAttemptRepository handles database operations for login attempts
type LoginAttemptRepository struct {
	q database.Querier
}

func NewLoginAttemptRepository(q database.Querier) *LoginAttemptRepository {
	return &LoginAttemptRepository{q: q}
}

// Create records a login attempt with its feature vector
func (r *LoginAttemptRepository) Create(ctx context.Context, a *models.LoginAttempt) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO login_attempts (
			id, account_id, username, ip_address, user_agent,
			location, country, city, device, os, browser,
			ip_score, location_score, device_score, os_score, browser_score,
			login_hour, ip_frequency, high_risk_country, night_login, combo_frequency,
			status, outcome, score, tier, message, failure_reason, attempt_number, created_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10, $11,
			$12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21,
			$22, $23, $24, $25, $26, $27, $28, $29
		)
	`
	f := a.Features
	_, err := r.q.Exec(ctx, query,
		a.ID, a.AccountID, a.Username, a.IPAddress, a.UserAgent,
		a.Location, a.Country, a.City, a.Device, a.OS, a.Browser,
		f.IPScore, f.LocationScore, f.DeviceScore, f.OSScore, f.BrowserScore,
		f.LoginHour, f.IPFrequency, f.HighRiskCountry, f.NightLogin, f.ComboFrequency,
		a.Status, a.Outcome, a.Score, a.Tier, a.Message, a.FailureReason, a.AttemptNumber, a.CreatedAt,
	)
	return database.MapPostgresError(err)
}

// CountByOrigin returns how many attempts the account made from ip
func (r *LoginAttemptRepository) CountByOrigin(ctx context.Context, accountID, ip string) (int, error) {
	query := `SELECT COUNT(*) FROM login_attempts WHERE account_id = $1 AND ip_address = $2`

	var count int
	err := r.q.QueryRow(ctx, query, accountID, ip).Scan(&count)
	return count, database.MapPostgresError(err)
}

// CountByDeviceCombo returns how many attempts the account made from the
// same device family and operating system
func (r *LoginAttemptRepository) CountByDeviceCombo(ctx context.Context, accountID, device, os string) (int, error) {
	query := `SELECT COUNT(*) FROM login_attempts WHERE account_id = $1 AND device = $2 AND os = $3`

	var count int
	err := r.q.QueryRow(ctx, query, accountID, device, os).Scan(&count)
	return count, database.MapPostgresError(err)
}

// CountFailuresSince returns the failed attempts for the account at or after since
func (r *LoginAttemptRepository) CountFailuresSince(ctx context.Context, accountID string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM login_attempts
		WHERE account_id = $1 AND status = 'failed' AND created_at >= $2
	`

	var count int
	err := r.q.QueryRow(ctx, query, accountID, since).Scan(&count)
	return count, database.MapPostgresError(err)
}

// ListTrainingFeatures returns feature vectors of successful attempts, newest first
func (r *LoginAttemptRepository) ListTrainingFeatures(ctx context.Context, limit int) ([]models.FeatureVector, error) {
	query := `
		SELECT ip_score, location_score, device_score, os_score, browser_score,
			login_hour, ip_frequency, high_risk_country, night_login, combo_frequency
		FROM login_attempts
		WHERE status = 'success'
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := r.q.Query(ctx, query, limit)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	var out []models.FeatureVector
	for rows.Next() {
		var f models.FeatureVector
		if err := rows.Scan(
			&f.IPScore, &f.LocationScore, &f.DeviceScore, &f.OSScore, &f.BrowserScore,
			&f.LoginHour, &f.IPFrequency, &f.HighRiskCountry, &f.NightLogin, &f.ComboFrequency,
		); err != nil {
			return nil, database.MapPostgresError(err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
