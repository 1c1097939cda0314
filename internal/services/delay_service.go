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
)

// DefaultClaimWindow is how long after a delay ends that it can still be
// claimed.
const DefaultClaimWindow = 15 * time.Minute

// DelayStatus is the observed state of a delayed login.
type DelayStatus struct {
	Delay            *models.DelayedLogin
	Status           models.DelayStatus
	RemainingSeconds int
	DelayEnd         time.Time
	MayProceed       bool
}

// DelayService resolves delayed logins lazily, when they are polled.
type DelayService struct {
	store       repositories.Store
	claimWindow time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

func NewDelayService(store repositories.Store, claimWindow time.Duration, logger *slog.Logger) *DelayService {
	if claimWindow <= 0 {
		claimWindow = DefaultClaimWindow
	}
	return &DelayService{store: store, claimWindow: claimWindow, logger: logger, now: time.Now}
}

// Poll reports the state of a delay, completing or expiring it if its end
// time has passed.
func (s *DelayService) Poll(ctx context.Context, delayID string) (*DelayStatus, error) {
	d, err := s.store.Delays().GetByID(ctx, delayID)
	if err != nil {
		return nil, err
	}
	st, err := s.observe(ctx, d)
	if err != nil {
		return nil, err
	}
	metrics.RecordDelayPoll(st.Status)
	return st, nil
}

// ResolveForAccount resolves the account's waiting delay. It returns nil
// when the account has none.
func (s *DelayService) ResolveForAccount(ctx context.Context, accountID string) (*DelayStatus, error) {
	d, err := s.store.Delays().FindWaiting(ctx, accountID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find waiting delay: %w", err)
	}
	return s.observe(ctx, d)
}

// Claimable reports whether a completed delay can still be exchanged for a
// session. Delays raised by wrong passwords never can.
func (s *DelayService) Claimable(d *models.DelayedLogin) bool {
	return d.Status == models.DelayCompleted &&
		d.PasswordVerified &&
		d.ClaimedAt == nil &&
		s.now().Before(d.EndsAt.Add(s.claimWindow))
}

// Claim marks a delay as exchanged for a session. Each delay is claimed at
// most once.
func (s *DelayService) Claim(ctx context.Context, d *models.DelayedLogin) error {
	if !s.Claimable(d) {
		return fmt.Errorf("delay %s: %w", d.ID, models.ErrDelayNotClaimable)
	}
	err := s.store.Delays().Claim(ctx, d.ID, s.now())
	if errors.Is(err, models.ErrConflict) {
		return fmt.Errorf("delay %s already claimed: %w", d.ID, models.ErrDelayNotClaimable)
	}
	if err != nil {
		return fmt.Errorf("claim delay: %w", err)
	}
	return nil
}

func (s *DelayService) observe(ctx context.Context, d *models.DelayedLogin) (*DelayStatus, error) {
	now := s.now()

	if d.Status != models.DelayWaiting {
		return statusOf(d, now), nil
	}
	if now.Before(d.EndsAt) {
		return statusOf(d, now), nil
	}

	next := models.DelayCompleted
	if !now.Before(d.EndsAt.Add(s.claimWindow)) {
		next = models.DelayExpired
	}

	var resolved *models.DelayedLogin
	err := s.store.InTx(ctx, func(tx repositories.Tx) error {
		acct, err := tx.Accounts().LockByID(ctx, d.AccountID)
		if err != nil {
			return err
		}

		current, err := tx.Delays().GetByID(ctx, d.ID)
		if err != nil {
			return err
		}
		if current.Status != models.DelayWaiting {
			// Resolved by a concurrent poll or an admin.
			resolved = current
			return nil
		}

		if err := tx.Delays().Resolve(ctx, d.ID, next, now); err != nil {
			return fmt.Errorf("resolve delay: %w", err)
		}
		current.Status = next
		current.ResolvedAt = &now
		resolved = current

		if acct.Status == models.AccountStatusDelayed {
			acct.Status = models.AccountStatusActive
			if err := tx.Accounts().Update(ctx, acct); err != nil {
				return fmt.Errorf("update account: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("delayed login resolved",
		slog.String("delay_id", resolved.ID),
		slog.String("account_id", resolved.AccountID),
		slog.String("status", string(resolved.Status)))
	return statusOf(resolved, now), nil
}

func statusOf(d *models.DelayedLogin, now time.Time) *DelayStatus {
	st := &DelayStatus{Delay: d, Status: d.Status, DelayEnd: d.EndsAt}
	switch d.Status {
	case models.DelayWaiting:
		st.RemainingSeconds = d.Remaining(now)
	case models.DelayCompleted:
		st.MayProceed = true
	}
	return st
}
