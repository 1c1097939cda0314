package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/BradenHooton/riskgate/internal/auth"
	"github.com/BradenHooton/riskgate/internal/models"
	"github.com/BradenHooton/riskgate/internal/services"
	pkghttp "github.com/BradenHooton/riskgate/pkg/http"
)

// InterventionServiceInterface defines the admin override contract.
type InterventionServiceInterface interface {
	ReviewDetection(ctx context.Context, detectionID, adminID string, action models.AdminAction, note string) (*services.ActionResult, error)
	Unblock(ctx context.Context, accountID, adminID string, resetPassword bool) (*services.ActionResult, error)
	StopMonitoring(ctx context.Context, accountID, adminID string) (*services.ActionResult, error)
	ResetPassword(ctx context.Context, accountID, adminID string) (*services.ActionResult, error)
	ListMonitored(ctx context.Context, limit int) ([]*models.Account, error)
	ListDetections(ctx context.Context, status models.ReviewStatus, limit int) ([]*models.AnomalyDetection, error)
	ListEvents(ctx context.Context, accountID string, limit int) ([]*models.SecurityEvent, error)
	Dashboard(ctx context.Context) (*services.Dashboard, error)
	ModelInfo() *services.ModelStatus
}

// AdminHandler handles admin review and override HTTP requests.
type AdminHandler struct {
	service InterventionServiceInterface
}

func NewAdminHandler(service InterventionServiceInterface) *AdminHandler {
	return &AdminHandler{service: service}
}

// ReviewRequest represents the request body for a detection review
type ReviewRequest struct {
	Action string `json:"action" validate:"required,oneof=reset_password permanent_block unblock stop_monitoring dismiss"`
	Note   string `json:"note" validate:"max=500"`
}

// UnblockRequest represents the optional body of an unblock
type UnblockRequest struct {
	ResetPassword bool `json:"reset_password"`
}

// AccountResponse is the admin view of an account. The password hash is
// never exposed.
type AccountResponse struct {
	ID              string               `json:"id"`
	Username        string               `json:"username"`
	Role            string               `json:"role"`
	Status          models.AccountStatus `json:"status"`
	BlockedAt       *time.Time           `json:"blocked_at,omitempty"`
	BlockedReason   *string              `json:"blocked_reason,omitempty"`
	BlockedBy       *models.Actor        `json:"blocked_by,omitempty"`
	Monitored       bool                 `json:"monitored"`
	MonitoringStart *time.Time           `json:"monitoring_start,omitempty"`
	MonitoringEnd   *time.Time           `json:"monitoring_end,omitempty"`
	LastLoginAt     *time.Time           `json:"last_login_at,omitempty"`
	LastLoginIP     *string              `json:"last_login_ip,omitempty"`
}

// ActionResponse is returned by every override.
type ActionResponse struct {
	Account           AccountResponse       `json:"account"`
	Decision          *models.AdminDecision `json:"decision,omitempty"`
	TemporaryPassword string                `json:"temporary_password,omitempty"`
	Changed           bool                  `json:"changed"`
}

// ListResponse wraps list endpoints.
type ListResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

func toAccountResponse(a *models.Account) AccountResponse {
	return AccountResponse{
		ID:              a.ID,
		Username:        a.Username,
		Role:            a.Role,
		Status:          a.Status,
		BlockedAt:       a.BlockedAt,
		BlockedReason:   a.BlockedReason,
		BlockedBy:       a.BlockedBy,
		Monitored:       a.Monitored,
		MonitoringStart: a.MonitoringStart,
		MonitoringEnd:   a.MonitoringEnd,
		LastLoginAt:     a.LastLoginAt,
		LastLoginIP:     a.LastLoginIP,
	}
}

func toActionResponse(res *services.ActionResult) ActionResponse {
	return ActionResponse{
		Account:           toAccountResponse(res.Account),
		Decision:          res.Decision,
		TemporaryPassword: res.TemporaryPassword,
		Changed:           res.Changed,
	}
}

func newList[T any](items []T) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Items: items, Count: len(items)}
}

// GetDashboard handles GET /admin/dashboard
func (h *AdminHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.service.Dashboard(r.Context())
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to retrieve dashboard")
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, d)
}

// GetModel handles GET /admin/model
func (h *AdminHandler) GetModel(w http.ResponseWriter, r *http.Request) {
	pkghttp.WriteJSON(w, http.StatusOK, h.service.ModelInfo())
}

// ListDetections handles GET /admin/detections?status=unreviewed&limit=N
func (h *AdminHandler) ListDetections(w http.ResponseWriter, r *http.Request) {
	status := models.ReviewStatus(r.URL.Query().Get("status"))
	detections, err := h.service.ListDetections(r.Context(), status, queryLimit(r))
	if err != nil {
		if errors.Is(err, models.ErrBadRequest) {
			pkghttp.WriteBadRequest(w, "status must be unreviewed or reviewed")
			return
		}
		writeServiceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, newList(detections))
}

// ReviewDetection handles POST /admin/detections/{id}/actions
func (h *AdminHandler) ReviewDetection(w http.ResponseWriter, r *http.Request) {
	adminID, ok := adminFromRequest(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "Detection not found")
	if !ok {
		return
	}

	var req ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if details := ValidateRequest(req); details != "" {
		pkghttp.WriteValidationError(w, details)
		return
	}

	res, err := h.service.ReviewDetection(r.Context(), id, adminID, models.AdminAction(req.Action), req.Note)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, toActionResponse(res))
}

// ListMonitored handles GET /admin/accounts/monitored
func (h *AdminHandler) ListMonitored(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.ListMonitored(r.Context(), queryLimit(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]AccountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toAccountResponse(a))
	}
	pkghttp.WriteJSON(w, http.StatusOK, newList(out))
}

// ListEvents handles GET /admin/accounts/{id}/events
func (h *AdminHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "Account not found")
	if !ok {
		return
	}
	events, err := h.service.ListEvents(r.Context(), id, queryLimit(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, newList(events))
}

// Unblock handles POST /admin/accounts/{id}/unblock. The body is optional.
func (h *AdminHandler) Unblock(w http.ResponseWriter, r *http.Request) {
	adminID, ok := adminFromRequest(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "Account not found")
	if !ok {
		return
	}

	var req UnblockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	res, err := h.service.Unblock(r.Context(), id, adminID, req.ResetPassword)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, toActionResponse(res))
}

// StopMonitoring handles POST /admin/accounts/{id}/stop-monitoring
func (h *AdminHandler) StopMonitoring(w http.ResponseWriter, r *http.Request) {
	h.accountAction(w, r, h.service.StopMonitoring)
}

// ResetPassword handles POST /admin/accounts/{id}/reset-password
func (h *AdminHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	h.accountAction(w, r, h.service.ResetPassword)
}

func (h *AdminHandler) accountAction(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, accountID, adminID string) (*services.ActionResult, error)) {
	adminID, ok := adminFromRequest(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "Account not found")
	if !ok {
		return
	}
	res, err := fn(r.Context(), id, adminID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, toActionResponse(res))
}

func adminFromRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return "", false
	}
	return claims.AccountID, true
}

// pathID reads the {id} URL parameter. Malformed ids cannot exist, so they
// answer 404.
func pathID(w http.ResponseWriter, r *http.Request, notFound string) (string, bool) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		pkghttp.WriteNotFound(w, notFound)
		return "", false
	}
	return id, true
}

// queryLimit reads ?limit=N. Out-of-range values are clamped by the service.
func queryLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		return 0
	}
	return n
}
