package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/riskgate/internal/models"
)

const testSecret = "test-secret-that-is-long-enough-for-hs256!"

type MockAccountReader struct {
	GetByIDFunc func(ctx context.Context, id string) (*models.Account, error)
}

func (m *MockAccountReader) GetByID(ctx context.Context, id string) (*models.Account, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func TestTokenManager_RoundTrip(t *testing.T) {
	tm := NewTokenManager(testSecret, 15*time.Minute)
	account := &models.Account{ID: "acc-1", Username: "alice", Role: models.RoleAdmin}

	token, expiresAt, err := tm.IssueAccessToken(account)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, 5*time.Second)

	claims, err := tm.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", claims.AccountID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, models.RoleAdmin, claims.Role)
	assert.NotEmpty(t, claims.ID)
}

func TestTokenManager_RejectsExpiredAndForeignTokens(t *testing.T) {
	tm := NewTokenManager(testSecret, time.Minute)
	account := &models.Account{ID: "acc-1", Username: "alice", Role: models.RoleUser}

	token, _, err := tm.IssueAccessToken(account)
	require.NoError(t, err)

	later := NewTokenManager(testSecret, time.Minute)
	later.now = func() time.Time { return time.Now().Add(time.Hour) }
	_, err = later.ValidateToken(token)
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	other := NewTokenManager("a-completely-different-secret-of-some-length", time.Minute)
	_, err = other.ValidateToken(token)
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	_, err = tm.ValidateToken("not-a-token")
	assert.Error(t, err)
}

func TestAuthMiddleware(t *testing.T) {
	tm := NewTokenManager(testSecret, time.Minute)
	token, _, err := tm.IssueAccessToken(&models.Account{ID: "acc-1", Username: "alice", Role: models.RoleUser})
	require.NoError(t, err)

	var seen *models.TokenClaims
	handler := AuthMiddleware(tm)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"empty token", "Bearer  ", http.StatusUnauthorized},
		{"valid token", "Bearer " + token, http.StatusOK},
		{"lowercase scheme", "bearer " + token, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}

	require.NotNil(t, seen)
	assert.Equal(t, "acc-1", seen.AccountID)
}

func TestRequireAdmin(t *testing.T) {
	accounts := map[string]*models.Account{
		"admin":   {ID: "admin", Role: models.RoleAdmin, Status: models.AccountStatusActive},
		"user":    {ID: "user", Role: models.RoleUser, Status: models.AccountStatusActive},
		"blocked": {ID: "blocked", Role: models.RoleAdmin, Status: models.AccountStatusBlocked},
	}
	reader := &MockAccountReader{GetByIDFunc: func(ctx context.Context, id string) (*models.Account, error) {
		if id == "broken" {
			return nil, errors.New("db down")
		}
		if a, ok := accounts[id]; ok {
			return a, nil
		}
		return nil, models.ErrNotFound
	}}
	handler := RequireAdmin(reader)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name      string
		accountID string
		want      int
	}{
		{"no claims", "", http.StatusUnauthorized},
		{"admin", "admin", http.StatusOK},
		{"plain user", "user", http.StatusForbidden},
		{"blocked admin", "blocked", http.StatusForbidden},
		{"deleted account", "gone", http.StatusUnauthorized},
		{"lookup failure", "broken", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.accountID != "" {
				ctx := context.WithValue(req.Context(), ClaimsContextKey, &models.TokenClaims{AccountID: tt.accountID})
				req = req.WithContext(ctx)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}
