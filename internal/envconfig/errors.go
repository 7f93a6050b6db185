package envconfig

import (
	"errors"
	"fmt"
	"net/http"
)

// Domain-level errors (no HTTP status codes)
var (
	ErrUnknownField       = errors.New("unknown firebase config field")
	ErrIncompleteConfig   = errors.New("firebase config is incomplete")
	ErrConfigurationError = errors.New("configuration error")
	ErrTemplateNotFound   = errors.New("config template not found")
	ErrReloadFailed       = errors.New("config reload failed")
	ErrProjectMismatch    = errors.New("credentials project does not match FIREBASE_PROJECT_ID")
	ErrCacheKeyNotFound   = errors.New("cache key not found")

	ErrInvalidToken        = errors.New("invalid token")
	ErrTokenExpired        = errors.New("token expired")
	ErrInvalidIssuer       = errors.New("invalid issuer")
	ErrInvalidAudience     = errors.New("invalid audience")
	ErrFirebaseUnavailable = errors.New("firebase admin client unavailable")
	ErrMissingProjectID    = errors.New("project ID is required")
	ErrInvalidCredentials  = errors.New("invalid service account credentials")
)

// HTTPError provides structured error information for HTTP responses
type HTTPError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *HTTPError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Details)
	}
	return e.Message
}

// IsUserError reports whether err was caused by the caller rather than the service.
func IsUserError(err error) bool {
	return errors.Is(err, ErrInvalidToken) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrInvalidIssuer) ||
		errors.Is(err, ErrInvalidAudience)
}

// ErrorToHTTPStatus maps domain errors to HTTP status codes
func ErrorToHTTPStatus(err error) int {
	switch {
	case IsUserError(err):
		return http.StatusUnauthorized

	case errors.Is(err, ErrFirebaseUnavailable):
		return http.StatusServiceUnavailable

	case errors.Is(err, ErrIncompleteConfig),
		errors.Is(err, ErrReloadFailed),
		errors.Is(err, ErrProjectMismatch):
		return http.StatusUnprocessableEntity

	default:
		return http.StatusInternalServerError
	}
}

// ErrorToHTTPError converts domain errors to structured HTTP errors. Details
// never carry wrapped error text, which can name files on the server.
func ErrorToHTTPError(err error) *HTTPError {
	switch {
	case errors.Is(err, ErrInvalidToken):
		return &HTTPError{Code: "INVALID_TOKEN", Message: "Invalid authentication token"}
	case errors.Is(err, ErrTokenExpired):
		return &HTTPError{Code: "TOKEN_EXPIRED", Message: "Authentication token has expired"}
	case errors.Is(err, ErrInvalidIssuer):
		return &HTTPError{Code: "INVALID_ISSUER", Message: "Token issuer is invalid"}
	case errors.Is(err, ErrInvalidAudience):
		return &HTTPError{Code: "INVALID_AUDIENCE", Message: "Token audience is invalid"}
	case errors.Is(err, ErrFirebaseUnavailable):
		return &HTTPError{Code: "FIREBASE_UNAVAILABLE", Message: "Firebase admin client is not available"}
	case errors.Is(err, ErrIncompleteConfig):
		return &HTTPError{Code: "INCOMPLETE_CONFIG", Message: "Firebase config is incomplete", Details: err.Error()}
	case errors.Is(err, ErrProjectMismatch):
		return &HTTPError{Code: "PROJECT_MISMATCH", Message: "Credentials belong to a different project"}
	case errors.Is(err, ErrReloadFailed):
		return &HTTPError{Code: "RELOAD_FAILED", Message: "Config reload failed"}
	case errors.Is(err, ErrConfigurationError):
		return &HTTPError{Code: "CONFIGURATION_ERROR", Message: "Service configuration error"}
	default:
		return &HTTPError{Code: "INTERNAL_ERROR", Message: "Internal error"}
	}
}
