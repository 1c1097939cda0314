package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/BradenHooton/riskgate/internal/anomaly"
	"github.com/BradenHooton/riskgate/internal/auth"
	"github.com/BradenHooton/riskgate/internal/models"
	"github.com/BradenHooton/riskgate/internal/repositories"
	"github.com/BradenHooton/riskgate/internal/risk"
	pkglogger "github.com/BradenHooton/riskgate/pkg/logger"
)

const (
	testPassword  = "Correct-Horse-42"
	testIP        = "203.0.113.10"
	testUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Scores against testThresholds.
const (
	lowScore      = 0.20
	mediumScore   = 0.10
	highScore     = 0.00
	criticalScore = -0.10
)

var testThresholds = anomaly.Thresholds{LowMin: 0.15, MediumMin: 0.05, HighMin: -0.05}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// stubScorer returns a fixed score, or err when set.
type stubScorer struct {
	mu    sync.Mutex
	score float64
	err   error
}

func (s *stubScorer) Score(models.FeatureVector) (float64, anomaly.Thresholds, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.score, testThresholds, s.err
}

func (s *stubScorer) set(score float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.score, s.err = score, nil
}

// MockNotifier implements EscalationNotifier for testing
type MockNotifier struct {
	mu                   sync.Mutex
	NotifyEscalationFunc func(ctx context.Context, e Escalation) error
	Calls                []Escalation
}

func (m *MockNotifier) NotifyEscalation(ctx context.Context, e Escalation) error {
	m.mu.Lock()
	m.Calls = append(m.Calls, e)
	m.mu.Unlock()
	if m.NotifyEscalationFunc != nil {
		return m.NotifyEscalationFunc(ctx, e)
	}
	return nil
}

func (m *MockNotifier) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// MockModelInspector implements ModelInspector for testing
type MockModelInspector struct {
	InfoFunc func() (*anomaly.Info, error)
}

func (m *MockModelInspector) Info() (*anomaly.Info, error) {
	if m.InfoFunc != nil {
		return m.InfoFunc()
	}
	return nil, anomaly.ErrModelUnavailable
}

// gate wires every service over one memory store and one clock.
type gate struct {
	store        *repositories.MemoryStore
	clock        *fakeClock
	scorer       *stubScorer
	notifier     *MockNotifier
	tokens       *auth.TokenManager
	risk         *RiskService
	delays       *DelayService
	auth         *AuthService
	intervention *InterventionService
}

func newGate(t *testing.T) *gate {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	security := pkglogger.NewSecurityLogger(logger)
	store := repositories.NewMemoryStore()
	clock := &fakeClock{t: time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)}
	scorer := &stubScorer{score: lowScore}
	notifier := &MockNotifier{}

	extractor := risk.NewExtractor(store.Attempts(), risk.HeaderResolver{}, time.UTC, []string{"KP", "IR"}, logger)
	engine := risk.NewEngine(scorer, risk.NewClassifier(risk.DefaultPolicy()))
	tm := auth.NewTokenManager("test-secret-key-that-is-long-enough-1234", 15*time.Minute)

	riskSvc := NewRiskService(store, extractor, engine, notifier, security, logger)
	riskSvc.now = clock.Now
	delays := NewDelayService(store, DefaultClaimWindow, logger)
	delays.now = clock.Now
	authSvc := NewAuthService(store, riskSvc, delays, tm, security, logger, BootstrapAdmin{})
	authSvc.now = clock.Now
	intervention := NewInterventionService(store, &MockModelInspector{}, security, logger)
	intervention.now = clock.Now

	return &gate{
		store:        store,
		clock:        clock,
		scorer:       scorer,
		notifier:     notifier,
		tokens:       tm,
		risk:         riskSvc,
		delays:       delays,
		auth:         authSvc,
		intervention: intervention,
	}
}

// seedAccount stores an active account whose password is testPassword.
func (g *gate) seedAccount(t *testing.T, username string, mutate ...func(*models.Account)) *models.Account {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)

	a := &models.Account{
		Username:     username,
		PasswordHash: string(hash),
		Role:         models.RoleUser,
		Status:       models.AccountStatusActive,
	}
	for _, m := range mutate {
		m(a)
	}
	require.NoError(t, g.store.Accounts().Create(context.Background(), a))
	return a
}

func (g *gate) account(t *testing.T, id string) *models.Account {
	t.Helper()
	a, err := g.store.Accounts().GetByID(context.Background(), id)
	require.NoError(t, err)
	return a
}

// loginContext is a daytime attempt from a resolvable location.
func (g *gate) loginContext() risk.LoginContext {
	return risk.LoginContext{
		IPAddress: testIP,
		UserAgent: testUserAgent,
		Geo:       risk.GeoHints{City: "Berlin", Country: "DE"},
		Time:      g.clock.Now(),
	}
}

func (g *gate) login(username, password string) (*LoginResult, error) {
	return g.auth.Login(context.Background(), LoginRequest{
		Username: username,
		Password: password,
		Context:  g.loginContext(),
	})
}

func (g *gate) events(t *testing.T, accountID string) []*models.SecurityEvent {
	t.Helper()
	events, err := g.store.Events().ListByAccount(context.Background(), accountID, 100)
	require.NoError(t, err)
	return events
}

func eventTypes(events []*models.SecurityEvent) []models.SecurityEventType {
	out := make([]models.SecurityEventType, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}
