package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/BradenHooton/riskgate/internal/models"
	"github.com/BradenHooton/riskgate/internal/risk"
	"github.com/BradenHooton/riskgate/internal/services"
	pkghttp "github.com/BradenHooton/riskgate/pkg/http"
	pkglogger "github.com/BradenHooton/riskgate/pkg/logger"
)

// Geo headers set by the edge proxy.
const (
	HeaderCity     = "X-City"
	HeaderCountry  = "X-Country"
	HeaderLocation = "X-Location"
)

// AuthServiceInterface defines the interface for login gate business logic
type AuthServiceInterface interface {
	Login(ctx context.Context, req services.LoginRequest) (*services.LoginResult, error)
	CheckDelay(ctx context.Context, delayID string) (*services.DelayCheck, error)
}

// AuthHandler handles login and delayed-login HTTP requests
type AuthHandler struct {
	service  AuthServiceInterface
	ipConfig *pkghttp.IPConfig
	now      func() time.Time
}

func NewAuthHandler(service AuthServiceInterface, ipConfig *pkghttp.IPConfig) *AuthHandler {
	return &AuthHandler{service: service, ipConfig: ipConfig, now: time.Now}
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=150"`
	Password string `json:"password" validate:"required,max=128"`
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if details := ValidateRequest(req); details != "" {
		pkghttp.WriteValidationError(w, details)
		return
	}

	result, err := h.service.Login(r.Context(), services.LoginRequest{
		Username: req.Username,
		Password: req.Password,
		Context:  h.loginContext(r),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, result)
}

// CheckDelay handles GET /auth/delays/{id}. A waiting delay answers 202,
// a finished one 200 with an access token.
func (h *AuthHandler) CheckDelay(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		pkghttp.WriteNotFound(w, "Delayed login not found")
		return
	}

	check, err := h.service.CheckDelay(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	status := http.StatusOK
	if check.Status == models.DelayWaiting {
		status = http.StatusAccepted
		w.Header().Set("Retry-After", strconv.Itoa(check.RemainingSeconds))
	}
	pkghttp.WriteJSON(w, status, check)
}

// loginContext collects the client description the risk engine scores.
func (h *AuthHandler) loginContext(r *http.Request) risk.LoginContext {
	return risk.LoginContext{
		IPAddress: pkghttp.ExtractClientIP(r, h.ipConfig),
		UserAgent: r.UserAgent(),
		Geo: risk.GeoHints{
			City:     pkglogger.SanitizeField(pkghttp.TrustedHeader(r, h.ipConfig, HeaderCity)),
			Country:  pkglogger.SanitizeField(pkghttp.TrustedHeader(r, h.ipConfig, HeaderCountry)),
			Location: pkglogger.SanitizeField(pkghttp.TrustedHeader(r, h.ipConfig, HeaderLocation)),
		},
		Time: h.now().UTC(),
	}
}
