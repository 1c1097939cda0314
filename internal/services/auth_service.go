package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/BradenHooton/riskgate/internal/auth"
	"github.com/BradenHooton/riskgate/internal/models"
	"github.com/BradenHooton/riskgate/internal/repositories"
	"github.com/BradenHooton/riskgate/internal/risk"
	pkgauth "github.com/BradenHooton/riskgate/pkg/auth"
	pkglogger "github.com/BradenHooton/riskgate/pkg/logger"
)

// Login result statuses
const (
	StatusSuccess            = "success"
	StatusSuccessWithWarning = "success_with_warning"
)

// BootstrapAdmin is the admin account created at startup when missing.
type BootstrapAdmin struct {
	Username string
	Password string
}

// LoginRequest is a login attempt as received by the HTTP layer.
type LoginRequest struct {
	Username string
	Password string
	Context  risk.LoginContext
}

// LoginResult is returned for a login the gate allowed.
type LoginResult struct {
	Status      string          `json:"status"`
	Message     string          `json:"message"`
	AccessToken string          `json:"access_token"`
	ExpiresAt   time.Time       `json:"expires_at"`
	AccountID   string          `json:"account_id"`
	Username    string          `json:"username"`
	Role        string          `json:"role"`
	AttemptID   string          `json:"attempt_id"`
	Score       float64         `json:"score"`
	Tier        models.RiskTier `json:"risk_level"`
	Warning     bool            `json:"warning"`
	Monitored   bool            `json:"monitored"`
}

// DelayCheck is the answer to a delayed-login status poll.
type DelayCheck struct {
	Status           models.DelayStatus `json:"status"`
	Message          string             `json:"message"`
	RemainingSeconds int                `json:"remaining_seconds,omitempty"`
	DelayEnd         time.Time          `json:"delay_end"`
	AccessToken      string             `json:"access_token,omitempty"`
	ExpiresAt        *time.Time         `json:"expires_at,omitempty"`
	AccountID        string             `json:"account_id,omitempty"`
	Username         string             `json:"username,omitempty"`
}

// AuthService is the login gate: it checks credentials and account state and
// hands password-verified attempts to the risk service.
type AuthService struct {
	accounts  repositories.AccountStore
	risk      *RiskService
	delays    *DelayService
	tm        *auth.TokenManager
	security  *pkglogger.SecurityLogger
	logger    *slog.Logger
	bootstrap BootstrapAdmin
	now       func() time.Time
}

func NewAuthService(store repositories.Store, riskSvc *RiskService, delays *DelayService, tm *auth.TokenManager, security *pkglogger.SecurityLogger, logger *slog.Logger, bootstrap BootstrapAdmin) *AuthService {
	return &AuthService{
		accounts:  store.Accounts(),
		risk:      riskSvc,
		delays:    delays,
		tm:        tm,
		security:  security,
		logger:    logger,
		bootstrap: bootstrap,
		now:       time.Now,
	}
}

var (
	dummyHashOnce sync.Once
	dummyHash     string
)

// burnPasswordCheck spends a bcrypt comparison so unknown usernames take as
// long as wrong passwords.
func burnPasswordCheck(password string) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = pkgauth.HashPassword("riskgate-timing-equalizer")
	})
	if dummyHash != "" {
		_ = pkgauth.ComparePassword(dummyHash, password)
	}
}

// Login runs an attempt through the gate. Refusals are returned as
// *models.BlockedError, *models.DelayedError or *models.CredentialsError.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	username := strings.TrimSpace(req.Username)

	account, err := s.accounts.GetByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			s.logger.Error("failed to get account by username", slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
		if _, err := s.risk.EvaluateFailedLogin(ctx, nil, username, req.Context, "unknown account"); err != nil {
			s.logger.Error("failed to record unknown-account attempt", slog.Any("error", err))
		}
		burnPasswordCheck(req.Password)
		s.logger.Info("login failed: invalid credentials")
		return nil, models.ErrInvalidCredentials
	}

	if account.IsBlocked() {
		if err := s.risk.RecordRejected(ctx, account, req.Context, "account blocked"); err != nil {
			s.logger.Error("failed to record rejected attempt", slog.String("account_id", account.ID), slog.Any("error", err))
		}
		s.logger.Info("login refused: account blocked", slog.String("account_id", account.ID))
		return nil, blockedError(account, "")
	}

	pending, err := s.delays.ResolveForAccount(ctx, account.ID)
	if err != nil {
		s.logger.Error("failed to resolve delayed login", slog.String("account_id", account.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if pending != nil {
		if pending.Status == models.DelayWaiting {
			// The password has not been checked yet, so the delay id stays hidden.
			e := delayedError(pending.Delay, pending.RemainingSeconds,
				fmt.Sprintf("Login is delayed. Please wait %d more seconds.", pending.RemainingSeconds))
			e.DelayID = ""
			return nil, e
		}
		// The delay has run out and the account is active again.
		reloaded, err := s.accounts.GetByID(ctx, account.ID)
		if err != nil {
			s.logger.Error("failed to reload account", slog.String("account_id", account.ID), slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
		account = reloaded
	}

	if err := pkgauth.ComparePassword(account.PasswordHash, req.Password); err != nil {
		return nil, s.failedPassword(ctx, account, username, req.Context)
	}

	out, err := s.risk.EvaluateLogin(ctx, account, req.Context)
	if err != nil {
		return nil, err
	}
	v := out.Verdict

	switch v.Action {
	case models.ActionBlock:
		return nil, blockedError(out.Account, v.Message)
	case models.ActionDelay:
		return nil, delayedError(out.Delay, out.Delay.Remaining(s.now()), v.Message)
	}

	token, expiresAt, err := s.tm.IssueAccessToken(out.Account)
	if err != nil {
		s.logger.Error("failed to generate access token", slog.String("account_id", account.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	status := StatusSuccess
	if v.Action == models.ActionWarn {
		status = StatusSuccessWithWarning
	}
	s.logger.Info("account logged in", slog.String("account_id", account.ID), slog.String("tier", string(v.Tier)))

	return &LoginResult{
		Status:      status,
		Message:     v.Message,
		AccessToken: token,
		ExpiresAt:   expiresAt,
		AccountID:   out.Account.ID,
		Username:    out.Account.Username,
		Role:        out.Account.Role,
		AttemptID:   out.AttemptID,
		Score:       v.Score,
		Tier:        v.Tier,
		Warning:     v.Action == models.ActionWarn,
		Monitored:   out.Account.Monitored,
	}, nil
}

func (s *AuthService) failedPassword(ctx context.Context, account *models.Account, username string, lc risk.LoginContext) error {
	out, err := s.risk.EvaluateFailedLogin(ctx, account, username, lc, "invalid password")
	if err != nil {
		s.logger.Error("failed to record failed login", slog.String("account_id", account.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	v := out.Verdict
	s.logger.Info("login failed: invalid credentials",
		slog.String("account_id", account.ID),
		slog.Int("attempt_number", out.AttemptNumber))

	switch v.Action {
	case models.ActionBlock:
		return blockedError(out.Account, v.Message)
	case models.ActionDelay:
		return delayedError(out.Delay, out.Delay.Remaining(s.now()), v.Message)
	}
	return &models.CredentialsError{
		AttemptNumber: out.AttemptNumber,
		Warning:       v.Tier != models.TierLow,
		Message:       v.Message,
	}
}

// CheckDelay polls a delayed login. A delay raised after a correct password
// is exchanged for a token once, after it has run out. A delay raised by
// wrong passwords only reports that the caller may log in again.
func (s *AuthService) CheckDelay(ctx context.Context, delayID string) (*DelayCheck, error) {
	st, err := s.delays.Poll(ctx, delayID)
	if err != nil {
		return nil, err
	}

	switch st.Status {
	case models.DelayWaiting:
		return &DelayCheck{
			Status:           st.Status,
			Message:          "Login is still delayed.",
			RemainingSeconds: st.RemainingSeconds,
			DelayEnd:         st.DelayEnd,
		}, nil
	case models.DelayCompleted:
		if !st.Delay.PasswordVerified {
			return &DelayCheck{
				Status:   st.Status,
				Message:  "The delay has ended. Please log in again.",
				DelayEnd: st.DelayEnd,
			}, nil
		}
		if !s.delays.Claimable(st.Delay) {
			return nil, fmt.Errorf("delay already claimed or claim window passed: %w", models.ErrDelayNotClaimable)
		}
	default:
		return nil, fmt.Errorf("delay is %s: %w", st.Status, models.ErrDelayNotClaimable)
	}

	account, err := s.accounts.GetByID(ctx, st.Delay.AccountID)
	if err != nil {
		return nil, err
	}
	if account.IsBlocked() {
		return nil, blockedError(account, "")
	}
	if err := s.delays.Claim(ctx, st.Delay); err != nil {
		return nil, err
	}

	token, expiresAt, err := s.tm.IssueAccessToken(account)
	if err != nil {
		s.logger.Error("failed to generate access token", slog.String("account_id", account.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.security.Log(ctx, pkglogger.SecurityEvent{
		EventType: "delay_claimed",
		AccountID: account.ID,
		Username:  account.Username,
		Actor:     string(models.ActorSystem),
		Metadata:  map[string]string{"delay_id": st.Delay.ID},
	}, false)

	return &DelayCheck{
		Status:      st.Status,
		Message:     "The delay has ended. You may log in now.",
		DelayEnd:    st.DelayEnd,
		AccessToken: token,
		ExpiresAt:   &expiresAt,
		AccountID:   account.ID,
		Username:    account.Username,
	}, nil
}

// EnsureBootstrapAdmin creates the configured admin account when it does
// not exist yet.
func (s *AuthService) EnsureBootstrapAdmin(ctx context.Context) error {
	username := strings.TrimSpace(s.bootstrap.Username)
	if username == "" {
		return nil
	}

	existing, err := s.accounts.GetByUsername(ctx, username)
	if err == nil {
		if existing.Role != models.RoleAdmin {
			s.logger.Warn("bootstrap admin username belongs to a non-admin account", slog.String("account_id", existing.ID))
		}
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("look up bootstrap admin: %w", err)
	}

	if err := pkgauth.ValidatePassword(s.bootstrap.Password); err != nil {
		return fmt.Errorf("bootstrap admin password rejected: %w", err)
	}
	hash, err := pkgauth.HashPassword(s.bootstrap.Password)
	if err != nil {
		return err
	}

	admin := &models.Account{
		Username:     username,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
		Status:       models.AccountStatusActive,
	}
	if err := s.accounts.Create(ctx, admin); err != nil {
		return fmt.Errorf("create bootstrap admin: %w", err)
	}

	s.logger.Info("bootstrap admin created", slog.String("account_id", admin.ID))
	return nil
}

func blockedError(a *models.Account, message string) *models.BlockedError {
	reason := "suspicious activity"
	if a.BlockedReason != nil && *a.BlockedReason != "" {
		reason = *a.BlockedReason
	}
	if message == "" {
		message = fmt.Sprintf("Your account is blocked. Reason: %s. Contact an administrator to unblock it.", reason)
	}
	by := models.ActorSystem
	if a.BlockedBy != nil {
		by = *a.BlockedBy
	}
	return &models.BlockedError{
		Reason:    reason,
		BlockedAt: a.BlockedAt,
		BlockedBy: by,
		Message:   message,
	}
}

func delayedError(d *models.DelayedLogin, remaining int, message string) *models.DelayedError {
	return &models.DelayedError{
		DelayID:          d.ID,
		RemainingSeconds: remaining,
		DelayEnd:         d.EndsAt,
		Message:          message,
	}
}
