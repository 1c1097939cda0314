package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/riskgate/internal/anomaly"
	"github.com/BradenHooton/riskgate/internal/metrics"
	"github.com/BradenHooton/riskgate/internal/models"
	"github.com/BradenHooton/riskgate/internal/repositories"
	pkgauth "github.com/BradenHooton/riskgate/pkg/auth"
	pkglogger "github.com/BradenHooton/riskgate/pkg/logger"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// ModelInspector describes the loaded anomaly model.
type ModelInspector interface {
	Info() (*anomaly.Info, error)
}

// ActionResult is the outcome of an admin override.
type ActionResult struct {
	Account  *models.Account
	Decision *models.AdminDecision
	// TemporaryPassword is set only by password resets and is never stored.
	TemporaryPassword string
	Changed           bool
}

type Dashboard struct {
	Accounts             *models.AccountStats `json:"accounts"`
	UnreviewedDetections int                  `json:"unreviewed_detections"`
	DetectionsByTier     models.TierCounts    `json:"detections_by_tier"`
}

type ModelStatus struct {
	Available bool          `json:"available"`
	Status    string        `json:"status"`
	Info      *anomaly.Info `json:"info,omitempty"`
}

// InterventionService applies admin overrides to accounts and detections.
type InterventionService struct {
	store    repositories.Store
	model    ModelInspector
	security *pkglogger.SecurityLogger
	logger   *slog.Logger
	now      func() time.Time
}

func NewInterventionService(store repositories.Store, model ModelInspector, security *pkglogger.SecurityLogger, logger *slog.Logger) *InterventionService {
	return &InterventionService{
		store:    store,
		model:    model,
		security: security,
		logger:   logger,
		now:      time.Now,
	}
}

// ReviewDetection records the single admin decision on a detection and
// applies its action to the account.
func (s *InterventionService) ReviewDetection(ctx context.Context, detectionID, adminID string, action models.AdminAction, note string) (*ActionResult, error) {
	if !validAction(action) {
		return nil, fmt.Errorf("unknown action %q: %w", action, models.ErrBadRequest)
	}

	now := s.now().UTC()
	var res *ActionResult
	err := s.store.InTx(ctx, func(tx repositories.Tx) error {
		detection, err := tx.Detections().GetByID(ctx, detectionID)
		if err != nil {
			return err
		}
		if _, err := tx.Decisions().GetByDetection(ctx, detectionID); err == nil {
			return fmt.Errorf("detection already reviewed: %w", models.ErrConflict)
		} else if !errors.Is(err, models.ErrNotFound) {
			return fmt.Errorf("get decision: %w", err)
		}

		acct, err := tx.Accounts().LockByID(ctx, detection.AccountID)
		if err != nil {
			return err
		}

		res, err = s.apply(ctx, tx, acct, adminID, action, now)
		if err != nil {
			return err
		}
		if err := saveIfChanged(ctx, tx, res); err != nil {
			return err
		}

		if err := tx.Detections().MarkReviewed(ctx, detectionID); err != nil {
			return fmt.Errorf("mark detection reviewed: %w", err)
		}
		decision := &models.AdminDecision{
			DetectionID: detectionID,
			AdminID:     adminID,
			Action:      action,
			Note:        pkglogger.SanitizeField(note),
			CreatedAt:   now,
		}
		if err := tx.Decisions().Create(ctx, decision); err != nil {
			return fmt.Errorf("record decision: %w", err)
		}
		res.Decision = decision
		return nil
	})
	if err != nil {
		return nil, s.actionFailed(action, adminID, err)
	}

	s.record(ctx, action, adminID, res.Account, map[string]string{"detection_id": detectionID})
	return res, nil
}

// Unblock returns a blocked account to active, optionally issuing a
// temporary password in the same step.
func (s *InterventionService) Unblock(ctx context.Context, accountID, adminID string, resetPassword bool) (*ActionResult, error) {
	res, err := s.onAccount(ctx, accountID, func(tx repositories.Tx, acct *models.Account, now time.Time) (*ActionResult, error) {
		res, err := s.unblock(ctx, tx, acct, adminID, now)
		if err != nil || !resetPassword {
			return res, err
		}
		temp, err := setTemporaryPassword(acct)
		if err != nil {
			return nil, err
		}
		res.TemporaryPassword = temp
		return res, nil
	})
	if err != nil {
		return nil, s.actionFailed(models.AdminUnblock, adminID, err)
	}
	s.record(ctx, models.AdminUnblock, adminID, res.Account, map[string]string{"password_reset": fmt.Sprint(resetPassword)})
	return res, nil
}

func (s *InterventionService) StopMonitoring(ctx context.Context, accountID, adminID string) (*ActionResult, error) {
	return s.accountAction(ctx, accountID, adminID, models.AdminStopMonitoring)
}

func (s *InterventionService) ResetPassword(ctx context.Context, accountID, adminID string) (*ActionResult, error) {
	return s.accountAction(ctx, accountID, adminID, models.AdminResetPassword)
}

func (s *InterventionService) accountAction(ctx context.Context, accountID, adminID string, action models.AdminAction) (*ActionResult, error) {
	res, err := s.onAccount(ctx, accountID, func(tx repositories.Tx, acct *models.Account, now time.Time) (*ActionResult, error) {
		return s.apply(ctx, tx, acct, adminID, action, now)
	})
	if err != nil {
		return nil, s.actionFailed(action, adminID, err)
	}
	s.record(ctx, action, adminID, res.Account, nil)
	return res, nil
}

func (s *InterventionService) onAccount(ctx context.Context, accountID string, fn func(tx repositories.Tx, acct *models.Account, now time.Time) (*ActionResult, error)) (*ActionResult, error) {
	now := s.now().UTC()
	var res *ActionResult
	err := s.store.InTx(ctx, func(tx repositories.Tx) error {
		acct, err := tx.Accounts().LockByID(ctx, accountID)
		if err != nil {
			return err
		}
		res, err = fn(tx, acct, now)
		if err != nil {
			return err
		}
		return saveIfChanged(ctx, tx, res)
	})
	return res, err
}

func saveIfChanged(ctx context.Context, tx repositories.Tx, res *ActionResult) error {
	if !res.Changed {
		return nil
	}
	if err := tx.Accounts().Update(ctx, res.Account); err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	return nil
}

// apply performs one admin action on a locked account. The caller saves
// the account when the result reports a change.
func (s *InterventionService) apply(ctx context.Context, tx repositories.Tx, acct *models.Account, adminID string, action models.AdminAction, now time.Time) (*ActionResult, error) {
	switch action {
	case models.AdminResetPassword:
		return s.resetPassword(ctx, tx, acct, adminID, now)
	case models.AdminPermanentBlock:
		return s.permanentBlock(ctx, tx, acct, adminID, now)
	case models.AdminUnblock:
		return s.unblock(ctx, tx, acct, adminID, now)
	case models.AdminStopMonitoring:
		return s.stopMonitoring(ctx, tx, acct, adminID, now)
	case models.AdminDismiss:
		return s.dismiss(ctx, tx, acct, adminID, now)
	}
	return nil, fmt.Errorf("unknown action %q: %w", action, models.ErrBadRequest)
}

func (s *InterventionService) resetPassword(ctx context.Context, tx repositories.Tx, acct *models.Account, adminID string, now time.Time) (*ActionResult, error) {
	temp, err := setTemporaryPassword(acct)
	if err != nil {
		return nil, err
	}
	if acct.IsBlocked() {
		acct.Unblock()
	}
	if err := createEvent(ctx, tx, acct.ID, models.EventPasswordReset, models.ActorAdmin, &adminID,
		"password reset by admin", now); err != nil {
		return nil, err
	}
	return &ActionResult{Account: acct, TemporaryPassword: temp, Changed: true}, nil
}

func (s *InterventionService) permanentBlock(ctx context.Context, tx repositories.Tx, acct *models.Account, adminID string, now time.Time) (*ActionResult, error) {
	if acct.IsBlocked() && acct.BlockedBy != nil && *acct.BlockedBy == models.ActorAdmin {
		return nil, fmt.Errorf("account already blocked by an admin: %w", models.ErrInvalidState)
	}
	const reason = "blocked by admin"
	acct.Block(now, reason, models.ActorAdmin)
	if _, err := tx.Delays().CancelWaiting(ctx, acct.ID, now); err != nil {
		return nil, fmt.Errorf("cancel waiting delays: %w", err)
	}
	if err := createEvent(ctx, tx, acct.ID, models.EventBlocked, models.ActorAdmin, &adminID, reason, now); err != nil {
		return nil, err
	}
	return &ActionResult{Account: acct, Changed: true}, nil
}

func (s *InterventionService) unblock(ctx context.Context, tx repositories.Tx, acct *models.Account, adminID string, now time.Time) (*ActionResult, error) {
	if !acct.IsBlocked() {
		return nil, fmt.Errorf("account is not blocked: %w", models.ErrInvalidState)
	}
	acct.Unblock()
	if err := createEvent(ctx, tx, acct.ID, models.EventUnblocked, models.ActorAdmin, &adminID,
		"unblocked by admin", now); err != nil {
		return nil, err
	}
	return &ActionResult{Account: acct, Changed: true}, nil
}

func (s *InterventionService) stopMonitoring(ctx context.Context, tx repositories.Tx, acct *models.Account, adminID string, now time.Time) (*ActionResult, error) {
	if !acct.StopMonitoring(now) {
		return nil, fmt.Errorf("account is not monitored: %w", models.ErrInvalidState)
	}
	if err := createEvent(ctx, tx, acct.ID, models.EventMonitoringEnd, models.ActorAdmin, &adminID,
		"monitoring stopped by admin", now); err != nil {
		return nil, err
	}
	return &ActionResult{Account: acct, Changed: true}, nil
}

// dismiss clears pending friction. With nothing to clear it only records
// the review.
func (s *InterventionService) dismiss(ctx context.Context, tx repositories.Tx, acct *models.Account, adminID string, now time.Time) (*ActionResult, error) {
	res := &ActionResult{Account: acct}

	cancelled, err := tx.Delays().CancelWaiting(ctx, acct.ID, now)
	if err != nil {
		return nil, fmt.Errorf("cancel waiting delays: %w", err)
	}
	if cancelled > 0 || acct.Status == models.AccountStatusDelayed {
		if acct.Status == models.AccountStatusDelayed {
			acct.Status = models.AccountStatusActive
		}
		res.Changed = true
	}

	if acct.StopMonitoring(now) {
		res.Changed = true
		if err := createEvent(ctx, tx, acct.ID, models.EventMonitoringEnd, models.ActorAdmin, &adminID,
			"detection dismissed by admin", now); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func setTemporaryPassword(acct *models.Account) (string, error) {
	temp, err := pkgauth.GenerateTemporaryPassword()
	if err != nil {
		return "", fmt.Errorf("generate temporary password: %w", err)
	}
	hash, err := pkgauth.HashPassword(temp)
	if err != nil {
		return "", fmt.Errorf("hash temporary password: %w", err)
	}
	acct.PasswordHash = hash
	return temp, nil
}

func (s *InterventionService) actionFailed(action models.AdminAction, adminID string, err error) error {
	switch {
	case errors.Is(err, models.ErrNotFound),
		errors.Is(err, models.ErrConflict),
		errors.Is(err, models.ErrInvalidState),
		errors.Is(err, models.ErrBadRequest):
		s.logger.Info("admin action rejected",
			slog.String("action", string(action)),
			slog.String("admin_id", adminID),
			slog.Any("error", err))
		return err
	default:
		s.logger.Error("admin action failed",
			slog.String("action", string(action)),
			slog.String("admin_id", adminID),
			slog.Any("error", err))
		return fmt.Errorf("%s: %w", action, err)
	}
}

func (s *InterventionService) record(ctx context.Context, action models.AdminAction, adminID string, acct *models.Account, meta map[string]string) {
	metrics.RecordAdminAction(string(action))
	s.security.Log(ctx, pkglogger.SecurityEvent{
		EventType: "admin_" + string(action),
		AccountID: acct.ID,
		Username:  acct.Username,
		Actor:     string(models.ActorAdmin),
		AdminID:   adminID,
		Action:    string(action),
		Metadata:  meta,
	}, false)
}

func validAction(a models.AdminAction) bool {
	switch a {
	case models.AdminResetPassword, models.AdminPermanentBlock, models.AdminUnblock,
		models.AdminStopMonitoring, models.AdminDismiss:
		return true
	}
	return false
}

func (s *InterventionService) ListMonitored(ctx context.Context, limit int) ([]*models.Account, error) {
	return s.store.Accounts().ListMonitored(ctx, clampLimit(limit))
}

// ListDetections lists detections newest first. An empty status lists all.
func (s *InterventionService) ListDetections(ctx context.Context, status models.ReviewStatus, limit int) ([]*models.AnomalyDetection, error) {
	switch status {
	case "", models.ReviewUnreviewed, models.ReviewReviewed:
	default:
		return nil, fmt.Errorf("unknown review status %q: %w", status, models.ErrBadRequest)
	}
	return s.store.Detections().List(ctx, status, clampLimit(limit))
}

func (s *InterventionService) ListEvents(ctx context.Context, accountID string, limit int) ([]*models.SecurityEvent, error) {
	if _, err := s.store.Accounts().GetByID(ctx, accountID); err != nil {
		return nil, err
	}
	return s.store.Events().ListByAccount(ctx, accountID, clampLimit(limit))
}

func (s *InterventionService) Dashboard(ctx context.Context) (*Dashboard, error) {
	stats, err := s.store.Accounts().Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("account stats: %w", err)
	}
	unreviewed, err := s.store.Detections().CountUnreviewed(ctx)
	if err != nil {
		return nil, fmt.Errorf("count unreviewed detections: %w", err)
	}
	byTier, err := s.store.Detections().CountByTier(ctx)
	if err != nil {
		return nil, fmt.Errorf("count detections by tier: %w", err)
	}
	return &Dashboard{Accounts: stats, UnreviewedDetections: unreviewed, DetectionsByTier: byTier}, nil
}

// ModelInfo reports the loaded bundle, or that the rule-based fallback is
// in use.
func (s *InterventionService) ModelInfo() *ModelStatus {
	if s.model == nil {
		return &ModelStatus{Status: "unavailable"}
	}
	info, err := s.model.Info()
	if err != nil {
		return &ModelStatus{Status: "unavailable"}
	}
	return &ModelStatus{Available: true, Status: "loaded", Info: info}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
