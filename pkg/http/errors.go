package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

// ErrorResponse represents a standard API error response
type ErrorResponse struct {
	Error   string `json:"error"`             // Machine-readable error code
	Message string `json:"message"`           // Human-readable message
	Details string `json:"details,omitempty"` // Optional additional context
}

// BlockedResponse is returned when the login gate refuses a blocked account.
type BlockedResponse struct {
	ErrorResponse
	Reason    string     `json:"reason,omitempty"`
	BlockedAt *time.Time `json:"blocked_at,omitempty"`
	BlockedBy string     `json:"blocked_by,omitempty"`
}

// DelayedResponse is returned while a delayed login is still waiting.
type DelayedResponse struct {
	ErrorResponse
	DelayID          string    `json:"delay_id,omitempty"`
	RemainingSeconds int       `json:"remaining_seconds"`
	DelayEnd         time.Time `json:"delay_end"`
}

// WriteJSON writes v as a JSON body with the given status code
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	// Encoding errors are not exposed to the client
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes a JSON error response with the given status code
func WriteError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	WriteErrorWithDetails(w, statusCode, errorCode, message, "")
}

// WriteErrorWithDetails writes a JSON error response with additional details
func WriteErrorWithDetails(w http.ResponseWriter, statusCode int, errorCode, message, details string) {
	WriteJSON(w, statusCode, ErrorResponse{
		Error:   errorCode,
		Message: message,
		Details: details,
	})
}

// WriteBlocked writes a 403 carrying the block metadata.
func WriteBlocked(w http.ResponseWriter, message, reason string, blockedAt *time.Time, blockedBy string) {
	WriteJSON(w, http.StatusForbidden, BlockedResponse{
		ErrorResponse: ErrorResponse{Error: "account_blocked", Message: message},
		Reason:        reason,
		BlockedAt:     blockedAt,
		BlockedBy:     blockedBy,
	})
}

// WriteDelayed writes a 429 with the remaining wait and a matching Retry-After.
func WriteDelayed(w http.ResponseWriter, message, delayID string, remaining int, end time.Time) {
	w.Header().Set("Retry-After", strconv.Itoa(remaining))
	WriteJSON(w, http.StatusTooManyRequests, DelayedResponse{
		ErrorResponse:    ErrorResponse{Error: "login_delayed", Message: message},
		DelayID:          delayID,
		RemainingSeconds: remaining,
		DelayEnd:         end,
	})
}

// Common error writers for consistency
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, "bad_request", message)
}

func WriteValidationError(w http.ResponseWriter, details string) {
	WriteErrorWithDetails(w, http.StatusBadRequest, "validation_failed", "Request validation failed", details)
}

func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, "unauthorized", message)
}

func WriteForbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, "forbidden", message)
}

func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, "not_found", message)
}

func WriteConflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, "conflict", message)
}

func WriteTooManyRequests(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusTooManyRequests, "rate_limit_exceeded", message)
}

func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, "internal_error", message)
}
