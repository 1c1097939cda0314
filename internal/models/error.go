package models

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Login gate errors
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAccountBlocked     = errors.New("account is blocked")
	ErrLoginDelayed       = errors.New("login is delayed")
	ErrDelayNotClaimable  = errors.New("delayed login can no longer proceed")

	// ErrInvalidState is returned when an admin action does not match the
	// account's current state (unblock on an active account, etc).
	ErrInvalidState = errors.New("action does not match current account state")
)

// BlockedError carries the block metadata shown to a rejected caller.
type BlockedError struct {
	Reason    string
	BlockedAt *time.Time
	BlockedBy Actor
	Message   string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("account is blocked: %s", e.Reason)
}

func (e *BlockedError) Unwrap() error { return ErrAccountBlocked }

// DelayedError carries the countdown a delayed caller must wait out.
type DelayedError struct {
	DelayID          string
	RemainingSeconds int
	DelayEnd         time.Time
	Message          string
}

func (e *DelayedError) Error() string {
	return fmt.Sprintf("login delayed for %d more seconds", e.RemainingSeconds)
}

func (e *DelayedError) Unwrap() error { return ErrLoginDelayed }

// CredentialsError is a failed password check. Warning is set once the
// failure count reaches the warning tier.
type CredentialsError struct {
	AttemptNumber int
	Warning       bool
	Message       string
}

func (e *CredentialsError) Error() string {
	return fmt.Sprintf("invalid credentials (attempt %d)", e.AttemptNumber)
}

func (e *CredentialsError) Unwrap() error { return ErrInvalidCredentials }
