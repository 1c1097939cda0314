package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/riskgate/internal/metrics"
	"github.com/BradenHooton/riskgate/internal/models"
	"github.com/BradenHooton/riskgate/internal/repositories"
	"github.com/BradenHooton/riskgate/internal/risk"
	pkglogger "github.com/BradenHooton/riskgate/pkg/logger"
)

const criticalBlockReason = "auto block: critical anomaly"

// Outcome is the committed result of applying a verdict to an account.
type Outcome struct {
	Verdict        models.Verdict
	AttemptID      string
	DetectionID    string
	AttemptNumber  int
	Delay          *models.DelayedLogin
	Account        *models.Account
	NewlyMonitored bool
}

// RiskService scores login attempts and applies the resulting verdicts.
type RiskService struct {
	store     repositories.Store
	extractor *risk.Extractor
	engine    *risk.Engine
	notifier  EscalationNotifier
	security  *pkglogger.SecurityLogger
	logger    *slog.Logger
	now       func() time.Time
}

func NewRiskService(store repositories.Store, extractor *risk.Extractor, engine *risk.Engine, notifier EscalationNotifier, security *pkglogger.SecurityLogger, logger *slog.Logger) *RiskService {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &RiskService{
		store:     store,
		extractor: extractor,
		engine:    engine,
		notifier:  notifier,
		security:  security,
		logger:    logger,
		now:       time.Now,
	}
}

// EvaluateLogin runs a password-verified attempt through the model and
// applies the verdict in one transaction.
func (s *RiskService) EvaluateLogin(ctx context.Context, account *models.Account, lc risk.LoginContext) (*Outcome, error) {
	lc = s.stamp(lc)
	ext := s.extractor.Extract(ctx, lc, account.ID)

	verdict, err := s.engine.Evaluate(ext.Vector)
	if err != nil {
		s.logger.Error("failed to evaluate login", slog.String("account_id", account.ID), slog.Any("error", err))
		return nil, err
	}

	out, err := s.commit(ctx, func(tx repositories.Tx) (*Outcome, error) {
		acct, err := tx.Accounts().LockByID(ctx, account.ID)
		if err != nil {
			return nil, err
		}
		attempt := newAttempt(acct.Username, &acct.ID, lc, ext, models.AttemptSuccess)
		setVerdict(attempt, verdict)
		return s.applyVerdict(ctx, tx, acct, attempt, verdict, lc, criticalBlockReason)
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, out, ext.Display)
	return out, nil
}

// EvaluateFailedLogin records a wrong-password attempt and applies the
// brute-force ladder. A nil account only records the attempt.
func (s *RiskService) EvaluateFailedLogin(ctx context.Context, account *models.Account, username string, lc risk.LoginContext, reason string) (*Outcome, error) {
	lc = s.stamp(lc)
	if account == nil {
		return s.recordUnattributed(ctx, username, lc, reason)
	}

	ext := s.extractor.Extract(ctx, lc, account.ID)
	classifier := s.engine.Classifier()
	window := classifier.Policy().BruteForce.Window

	out, err := s.commit(ctx, func(tx repositories.Tx) (*Outcome, error) {
		acct, err := tx.Accounts().LockByID(ctx, account.ID)
		if err != nil {
			return nil, err
		}

		prior, err := tx.Attempts().CountFailuresSince(ctx, acct.ID, lc.Time.Add(-window))
		if err != nil {
			return nil, fmt.Errorf("count failed attempts: %w", err)
		}
		n := prior + 1
		verdict := classifier.ClassifyFailures(n)

		attempt := newAttempt(acct.Username, &acct.ID, lc, ext, models.AttemptFailed)
		setVerdict(attempt, verdict)
		attempt.FailureReason = &reason
		attempt.AttemptNumber = n

		out, err := s.applyVerdict(ctx, tx, acct, attempt, verdict, lc,
			fmt.Sprintf("auto block: %d failed login attempts", n))
		if err != nil {
			return nil, err
		}
		out.AttemptNumber = n
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, out, ext.Display)
	return out, nil
}

// RecordRejected logs an attempt refused before the password was checked,
// such as a login against a blocked account.
func (s *RiskService) RecordRejected(ctx context.Context, account *models.Account, lc risk.LoginContext, reason string) error {
	lc = s.stamp(lc)
	ext := s.extractor.Extract(ctx, lc, account.ID)

	attempt := newAttempt(account.Username, &account.ID, lc, ext, models.AttemptRejected)
	attempt.Outcome = models.OutcomeBlock
	attempt.FailureReason = &reason
	attempt.Message = reason
	if err := s.store.Attempts().Create(ctx, attempt); err != nil {
		return fmt.Errorf("record rejected attempt: %w", err)
	}
	return nil
}

func (s *RiskService) recordUnattributed(ctx context.Context, username string, lc risk.LoginContext, reason string) (*Outcome, error) {
	ext := s.extractor.Extract(ctx, lc, "")
	attempt := newAttempt(username, nil, lc, ext, models.AttemptFailed)
	attempt.Outcome = models.OutcomeNormal
	attempt.FailureReason = &reason
	if err := s.store.Attempts().Create(ctx, attempt); err != nil {
		return nil, fmt.Errorf("record failed attempt: %w", err)
	}
	return &Outcome{AttemptID: attempt.ID}, nil
}

// commit runs fn in a transaction. A conflict, which means a concurrent
// attempt created the waiting delay first, is retried once; under the row
// lock the retry finds that delay and reuses it.
func (s *RiskService) commit(ctx context.Context, fn func(tx repositories.Tx) (*Outcome, error)) (*Outcome, error) {
	var out *Outcome
	run := func() error {
		return s.store.InTx(ctx, func(tx repositories.Tx) error {
			o, err := fn(tx)
			out = o
			return err
		})
	}

	err := run()
	if errors.Is(err, models.ErrConflict) {
		s.logger.Warn("verdict write conflicted, retrying once")
		err = run()
	}
	if err != nil {
		return nil, fmt.Errorf("apply verdict: %w", err)
	}
	return out, nil
}

// applyVerdict writes the attempt, the detection and the account
// transition for v. It must run inside a transaction holding acct's lock.
func (s *RiskService) applyVerdict(ctx context.Context, tx repositories.Tx, acct *models.Account, attempt *models.LoginAttempt, v models.Verdict, lc risk.LoginContext, blockReason string) (*Outcome, error) {
	now := lc.Time

	if err := tx.Attempts().Create(ctx, attempt); err != nil {
		return nil, fmt.Errorf("record attempt: %w", err)
	}
	out := &Outcome{Verdict: v, AttemptID: attempt.ID}

	if v.Escalates() {
		detection := models.NewDetection(acct.ID, attempt.ID, v, now)
		if err := tx.Detections().Create(ctx, detection); err != nil {
			return nil, fmt.Errorf("record detection: %w", err)
		}
		out.DetectionID = detection.ID
	}

	switch v.Action {
	case models.ActionAllow:
		if attempt.Status == models.AttemptSuccess {
			acct.RecordLogin(now, attempt.IPAddress)
		}

	case models.ActionWarn:
		out.NewlyMonitored = acct.StartMonitoring(now)
		if attempt.Status == models.AttemptSuccess {
			acct.RecordLogin(now, attempt.IPAddress)
		}

	case models.ActionDelay:
		delay, err := s.ensureDelay(ctx, tx, acct, attempt, v, lc)
		if err != nil {
			return nil, err
		}
		out.Delay = delay
		acct.Status = models.AccountStatusDelayed
		if acct.StartMonitoring(now) {
			out.NewlyMonitored = true
			if err := createEvent(ctx, tx, acct.ID, models.EventMonitoringStart, models.ActorSystem, nil,
				"login delayed, account placed under monitoring", now); err != nil {
				return nil, err
			}
		}

	case models.ActionBlock:
		acct.Block(now, blockReason, models.ActorSystem)
		if _, err := tx.Delays().CancelWaiting(ctx, acct.ID, now); err != nil {
			return nil, fmt.Errorf("cancel waiting delays: %w", err)
		}
		if err := createEvent(ctx, tx, acct.ID, models.EventBlocked, models.ActorSystem, nil, blockReason, now); err != nil {
			return nil, err
		}
	}

	if err := tx.Accounts().Update(ctx, acct); err != nil {
		return nil, fmt.Errorf("update account: %w", err)
	}
	out.Account = acct
	return out, nil
}

// ensureDelay returns the account's waiting delay, creating one if none
// exists. An existing waiting delay is authoritative.
func (s *RiskService) ensureDelay(ctx context.Context, tx repositories.Tx, acct *models.Account, attempt *models.LoginAttempt, v models.Verdict, lc risk.LoginContext) (*models.DelayedLogin, error) {
	existing, err := tx.Delays().FindWaiting(ctx, acct.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("find waiting delay: %w", err)
	}

	delay := &models.DelayedLogin{
		AccountID:      acct.ID,
		LoginAttemptID: attempt.ID,
		DelaySeconds:   v.DelaySeconds,
		StartedAt:      lc.Time,
		EndsAt:         lc.Time.Add(time.Duration(v.DelaySeconds) * time.Second),
		Status:         models.DelayWaiting,
		IPAddress:      attempt.IPAddress,
		UserAgent:      attempt.UserAgent,

		PasswordVerified: attempt.Status == models.AttemptSuccess,
	}
	if err := tx.Delays().Create(ctx, delay); err != nil {
		return nil, fmt.Errorf("create delay: %w", err)
	}
	return delay, nil
}

func (s *RiskService) afterCommit(ctx context.Context, out *Outcome, display risk.Display) {
	v := out.Verdict
	metrics.RecordVerdict(v)

	s.security.Log(ctx, pkglogger.SecurityEvent{
		EventType: "login_verdict",
		AccountID: out.Account.ID,
		Username:  out.Account.Username,
		IPAddress: display.IPAddress,
		Actor:     string(models.ActorSystem),
		Tier:      string(v.Tier),
		Action:    string(v.Action),
		Reason:    v.Detail,
		Metadata:  map[string]string{"source": string(v.Source)},
	}, v.Escalates())

	if !v.AdminRequired {
		return
	}
	err := s.notifier.NotifyEscalation(ctx, Escalation{
		AccountID:   out.Account.ID,
		Username:    out.Account.Username,
		DetectionID: out.DetectionID,
		IPAddress:   display.IPAddress,
		Location:    display.Location,
		Verdict:     v,
		At:          s.now(),
	})
	if err != nil {
		// The verdict is already committed; a lost alert is not fatal.
		s.logger.Warn("escalation notification failed",
			slog.String("detection_id", out.DetectionID),
			slog.Any("error", err))
	}
}

func (s *RiskService) stamp(lc risk.LoginContext) risk.LoginContext {
	if lc.Time.IsZero() {
		lc.Time = s.now()
	}
	lc.Time = lc.Time.UTC()
	lc.UserAgent = pkglogger.SanitizeField(lc.UserAgent)
	return lc
}

func newAttempt(username string, accountID *string, lc risk.LoginContext, ext risk.Extraction, status models.AttemptStatus) *models.LoginAttempt {
	d := ext.Display
	return &models.LoginAttempt{
		AccountID: accountID,
		Username:  username,
		IPAddress: d.IPAddress,
		UserAgent: lc.UserAgent,
		Location:  d.Location,
		Country:   d.Country,
		City:      d.City,
		Device:    d.Device,
		OS:        d.OS,
		Browser:   d.Browser,
		Features:  ext.Vector,
		Status:    status,
		CreatedAt: lc.Time,
	}
}

func setVerdict(a *models.LoginAttempt, v models.Verdict) {
	score, tier := v.Score, v.Tier
	a.Outcome = v.Action.Outcome()
	a.Score = &score
	a.Tier = &tier
	a.Message = v.Message
}

func createEvent(ctx context.Context, tx repositories.Tx, accountID string, typ models.SecurityEventType, actor models.Actor, adminID *string, reason string, at time.Time) error {
	err := tx.Events().Create(ctx, &models.SecurityEvent{
		AccountID: accountID,
		Type:      typ,
		Actor:     actor,
		AdminID:   adminID,
		Reason:    reason,
		CreatedAt: at,
	})
	if err != nil {
		return fmt.Errorf("record %s event: %w", typ, err)
	}
	return nil
}
