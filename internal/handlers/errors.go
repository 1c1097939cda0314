package handlers

import (
	"errors"
	"net/http"

	"github.com/BradenHooton/riskgate/internal/models"
	pkghttp "github.com/BradenHooton/riskgate/pkg/http"
)

// CredentialsResponse is the 401 body of a failed password check.
type CredentialsResponse struct {
	pkghttp.ErrorResponse
	Warning        bool `json:"warning"`
	FailedAttempts int  `json:"failed_attempts,omitempty"`
}

// writeServiceError maps service errors onto the JSON error envelope.
// Anything unrecognised is a generic 500.
func writeServiceError(w http.ResponseWriter, err error) {
	var (
		blocked *models.BlockedError
		delayed *models.DelayedError
		creds   *models.CredentialsError
	)

	switch {
	case errors.As(err, &blocked):
		pkghttp.WriteBlocked(w, blocked.Message, blocked.Reason, blocked.BlockedAt, string(blocked.BlockedBy))
	case errors.As(err, &delayed):
		pkghttp.WriteDelayed(w, delayed.Message, delayed.DelayID, delayed.RemainingSeconds, delayed.DelayEnd)
	case errors.As(err, &creds):
		pkghttp.WriteJSON(w, http.StatusUnauthorized, CredentialsResponse{
			ErrorResponse: pkghttp.ErrorResponse{
				Error:   "invalid_credentials",
				Message: creds.Message,
			},
			Warning:        creds.Warning,
			FailedAttempts: creds.AttemptNumber,
		})
	case errors.Is(err, models.ErrInvalidCredentials):
		pkghttp.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid username or password.")
	case errors.Is(err, models.ErrAccountBlocked):
		pkghttp.WriteBlocked(w, "Your account is blocked.", "", nil, "")
	case errors.Is(err, models.ErrDelayNotClaimable):
		pkghttp.WriteError(w, http.StatusForbidden, "delay_not_claimable", "This delayed login can no longer proceed. Please log in again.")
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "Resource not found")
	case errors.Is(err, models.ErrInvalidState):
		pkghttp.WriteError(w, http.StatusConflict, "invalid_state", "The action does not match the account's current state")
	case errors.Is(err, models.ErrConflict):
		pkghttp.WriteConflict(w, "The resource was already changed")
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, "Invalid request")
	case errors.Is(err, models.ErrUnauthorized):
		pkghttp.WriteUnauthorized(w, "Authentication required")
	case errors.Is(err, models.ErrForbidden):
		pkghttp.WriteForbidden(w, "Access denied")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}
