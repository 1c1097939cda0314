package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/BradenHooton/riskgate/internal/auth"
	"github.com/BradenHooton/riskgate/internal/models"
	"github.com/BradenHooton/riskgate/internal/services"
	pkghttp "github.com/BradenHooton/riskgate/pkg/http"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithAdminContext adds admin claims to the request context
func WithAdminContext(req *http.Request, accountID string) *http.Request {
	claims := &models.TokenClaims{AccountID: accountID, Username: "admin", Role: models.RoleAdmin}
	ctx := context.WithValue(req.Context(), auth.ClaimsContextKey, claims)
	return req.WithContext(ctx)
}

// WithURLParam sets a chi route parameter on the request
func WithURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.RouteContext(req.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target any) {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"), "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	LoginFunc      func(ctx context.Context, req services.LoginRequest) (*services.LoginResult, error)
	CheckDelayFunc func(ctx context.Context, delayID string) (*services.DelayCheck, error)
}

func (m *MockAuthService) Login(ctx context.Context, req services.LoginRequest) (*services.LoginResult, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, req)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAuthService) CheckDelay(ctx context.Context, delayID string) (*services.DelayCheck, error) {
	if m.CheckDelayFunc != nil {
		return m.CheckDelayFunc(ctx, delayID)
	}
	return nil, models.ErrNotFound
}

// MockInterventionService implements InterventionServiceInterface for testing
type MockInterventionService struct {
	ReviewDetectionFunc func(ctx context.Context, detectionID, adminID string, action models.AdminAction, note string) (*services.ActionResult, error)
	UnblockFunc         func(ctx context.Context, accountID, adminID string, resetPassword bool) (*services.ActionResult, error)
	StopMonitoringFunc  func(ctx context.Context, accountID, adminID string) (*services.ActionResult, error)
	ResetPasswordFunc   func(ctx context.Context, accountID, adminID string) (*services.ActionResult, error)
	ListMonitoredFunc   func(ctx context.Context, limit int) ([]*models.Account, error)
	ListDetectionsFunc  func(ctx context.Context, status models.ReviewStatus, limit int) ([]*models.AnomalyDetection, error)
	ListEventsFunc      func(ctx context.Context, accountID string, limit int) ([]*models.SecurityEvent, error)
	DashboardFunc       func(ctx context.Context) (*services.Dashboard, error)
	ModelInfoFunc       func() *services.ModelStatus
}

func (m *MockInterventionService) ReviewDetection(ctx context.Context, detectionID, adminID string, action models.AdminAction, note string) (*services.ActionResult, error) {
	if m.ReviewDetectionFunc != nil {
		return m.ReviewDetectionFunc(ctx, detectionID, adminID, action, note)
	}
	return nil, models.ErrNotFound
}

func (m *MockInterventionService) Unblock(ctx context.Context, accountID, adminID string, resetPassword bool) (*services.ActionResult, error) {
	if m.UnblockFunc != nil {
		return m.UnblockFunc(ctx, accountID, adminID, resetPassword)
	}
	return nil, models.ErrNotFound
}

func (m *MockInterventionService) StopMonitoring(ctx context.Context, accountID, adminID string) (*services.ActionResult, error) {
	if m.StopMonitoringFunc != nil {
		return m.StopMonitoringFunc(ctx, accountID, adminID)
	}
	return nil, models.ErrNotFound
}

func (m *MockInterventionService) ResetPassword(ctx context.Context, accountID, adminID string) (*services.ActionResult, error) {
	if m.ResetPasswordFunc != nil {
		return m.ResetPasswordFunc(ctx, accountID, adminID)
	}
	return nil, models.ErrNotFound
}

func (m *MockInterventionService) ListMonitored(ctx context.Context, limit int) ([]*models.Account, error) {
	if m.ListMonitoredFunc != nil {
		return m.ListMonitoredFunc(ctx, limit)
	}
	return nil, nil
}

func (m *MockInterventionService) ListDetections(ctx context.Context, status models.ReviewStatus, limit int) ([]*models.AnomalyDetection, error) {
	if m.ListDetectionsFunc != nil {
		return m.ListDetectionsFunc(ctx, status, limit)
	}
	return nil, nil
}

func (m *MockInterventionService) ListEvents(ctx context.Context, accountID string, limit int) ([]*models.SecurityEvent, error) {
	if m.ListEventsFunc != nil {
		return m.ListEventsFunc(ctx, accountID, limit)
	}
	return nil, nil
}

func (m *MockInterventionService) Dashboard(ctx context.Context) (*services.Dashboard, error) {
	if m.DashboardFunc != nil {
		return m.DashboardFunc(ctx)
	}
	return &services.Dashboard{}, nil
}

func (m *MockInterventionService) ModelInfo() *services.ModelStatus {
	if m.ModelInfoFunc != nil {
		return m.ModelInfoFunc()
	}
	return &services.ModelStatus{Status: "unavailable"}
}
