package api

import "net/http"

// Error is a domain failure carrying its intended HTTP status and a stable
// machine-readable code. Handlers return these instead of inspecting error
// strings at the boundary.
type Error struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *Error) Error() string {
	return e.Message
}

// NewError builds a one-off typed error.
func NewError(status int, code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message}
}

// The closed set of failure categories the service can report.
var (
	ErrInvalidCredentials = &Error{http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid email or password"}
	ErrAuthRequired       = &Error{http.StatusUnauthorized, "AUTH_REQUIRED", "authentication required"}
	ErrTokenExpired       = &Error{http.StatusUnauthorized, "TOKEN_EXPIRED", "token has expired"}
	ErrInvalidToken       = &Error{http.StatusUnauthorized, "INVALID_TOKEN", "invalid token"}
	ErrAPIKeyRequired     = &Error{http.StatusUnauthorized, "API_KEY_REQUIRED", "API key required"}
	ErrInvalidAPIKey      = &Error{http.StatusUnauthorized, "INVALID_API_KEY", "invalid or inactive API key"}
	ErrExpiredAPIKey      = &Error{http.StatusUnauthorized, "EXPIRED_API_KEY", "API key has expired"}
	ErrInsufficientScope  = &Error{http.StatusForbidden, "INSUFFICIENT_SCOPE", "API key does not grant this operation"}
	ErrNotFound           = &Error{http.StatusNotFound, "NOT_FOUND", "not found or access denied"}
	ErrEmailTaken         = &Error{http.StatusConflict, "EMAIL_TAKEN", "email already registered"}
	ErrKeyNameTaken       = &Error{http.StatusConflict, "KEY_NAME_TAKEN", "an API key with this name already exists"}
	ErrUpstream           = &Error{http.StatusBadRequest, "UPSTREAM_ERROR", "failed to fetch data from provider"}
	ErrStoreUnavailable   = &Error{http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "database unavailable"}
)

// Validation builds a 400 for malformed or missing input.
func Validation(message string) *Error {
	return &Error{http.StatusBadRequest, "VALIDATION_ERROR", message}
}
