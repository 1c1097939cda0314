package repositories

import (
	"context"
	"time"

	"github.com/BradenHooton/riskgate/internal/models"
)

// AccountStore reads and writes account rows.
type AccountStore interface {
	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetByUsername(ctx context.Context, username string) (*models.Account, error)
	// LockByID reads the account and holds it until the transaction ends.
	LockByID(ctx context.Context, id string) (*models.Account, error)
	Create(ctx context.Context, account *models.Account) error
	Update(ctx context.Context, account *models.Account) error
	ListMonitored(ctx context.Context, limit int) ([]*models.Account, error)
	Stats(ctx context.Context) (*models.AccountStats, error)
}

// LoginAttemptStore records attempts and answers the history counts the
// feature extractor and brute-force counter need.
type LoginAttemptStore interface {
	Create(ctx context.Context, attempt *models.LoginAttempt) error
	CountByOrigin(ctx context.Context, accountID, ip string) (int, error)
	CountByDeviceCombo(ctx context.Context, accountID, device, os string) (int, error)
	CountFailuresSince(ctx context.Context, accountID string, since time.Time) (int, error)
	ListTrainingFeatures(ctx context.Context, limit int) ([]models.FeatureVector, error)
}

type DetectionStore interface {
	Create(ctx context.Context, detection *models.AnomalyDetection) error
	GetByID(ctx context.Context, id string) (*models.AnomalyDetection, error)
	List(ctx context.Context, status models.ReviewStatus, limit int) ([]*models.AnomalyDetection, error)
	MarkReviewed(ctx context.Context, id string) error
	CountUnreviewed(ctx context.Context) (int, error)
	CountByTier(ctx context.Context) (models.TierCounts, error)
}

// DelayStore persists delay records. Create returns models.ErrConflict
// when the account already has a waiting record.
type DelayStore interface {
	Create(ctx context.Context, delay *models.DelayedLogin) error
	GetByID(ctx context.Context, id string) (*models.DelayedLogin, error)
	FindWaiting(ctx context.Context, accountID string) (*models.DelayedLogin, error)
	Resolve(ctx context.Context, id string, status models.DelayStatus, at time.Time) error
	// Claim stamps claimed_at on a completed, password-verified delay that
	// was not claimed before. Anything else is models.ErrConflict.
	Claim(ctx context.Context, id string, at time.Time) error
	CancelWaiting(ctx context.Context, accountID string, at time.Time) (int, error)
}

type SecurityEventStore interface {
	Create(ctx context.Context, event *models.SecurityEvent) error
	ListByAccount(ctx context.Context, accountID string, limit int) ([]*models.SecurityEvent, error)
}

type AdminDecisionStore interface {
	Create(ctx context.Context, decision *models.AdminDecision) error
	GetByDetection(ctx context.Context, detectionID string) (*models.AdminDecision, error)
}

// Tx exposes every store bound to one unit of work.
type Tx interface {
	Accounts() AccountStore
	Attempts() LoginAttemptStore
	Detections() DetectionStore
	Delays() DelayStore
	Events() SecurityEventStore
	Decisions() AdminDecisionStore
}

// Store is the persistence contract of the login gate. Calls made through
// the embedded Tx outside InTx run on their own.
type Store interface {
	Tx
	InTx(ctx context.Context, fn func(tx Tx) error) error
}
