package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/BradenHooton/riskgate/internal/models"
)

type contextKey string

// ClaimsContextKey holds the *models.TokenClaims of an authenticated request.
const ClaimsContextKey contextKey = "claims"

// AccountReader fetches the current state of an account.
type AccountReader interface {
	GetByID(ctx context.Context, id string) (*models.Account, error)
}

var (
	errNoCredentials = errors.New("missing authorization header")
	errBadScheme     = errors.New("invalid authorization header format")
)

// bearerToken returns the token of an "Authorization: Bearer <token>" header.
// The scheme is matched case-insensitively.
func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errNoCredentials
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", errBadScheme
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errBadScheme
	}
	return token, nil
}

// AuthMiddleware rejects requests without a valid access token and stores
// the token claims in the request context.
func AuthMiddleware(tm *TokenManager) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}
			claims, err := tm.ValidateToken(token)
			if err != nil {
				http.Error(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ClaimsContextKey, claims)))
		})
	}
}

// RequireAdmin checks the role on the stored account rather than the token,
// so a demoted or blocked admin loses access before the token expires.
// It must run after AuthMiddleware.
func RequireAdmin(accounts AccountReader) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			status, msg := authorizeAdmin(r.Context(), accounts)
			if status != http.StatusOK {
				http.Error(w, msg, status)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func authorizeAdmin(ctx context.Context, accounts AccountReader) (int, string) {
	claims := ClaimsFromContext(ctx)
	if claims == nil {
		return http.StatusUnauthorized, "unauthorized"
	}
	account, err := accounts.GetByID(ctx, claims.AccountID)
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusUnauthorized, "account not found"
	case err != nil:
		return http.StatusInternalServerError, "internal server error"
	case account.Role != models.RoleAdmin, account.IsBlocked():
		return http.StatusForbidden, "forbidden: insufficient permissions"
	}
	return http.StatusOK, ""
}

// ClaimsFromContext returns the claims stored by AuthMiddleware, or nil.
func ClaimsFromContext(ctx context.Context) *models.TokenClaims {
	claims, _ := ctx.Value(ClaimsContextKey).(*models.TokenClaims)
	return claims
}
