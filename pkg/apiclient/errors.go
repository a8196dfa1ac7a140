package apiclient

import (
	"fmt"
	"net/http"
	"time"
)

// APIError represents an error response from the API. The server reports
// failures as {"detail": "..."} with a meaningful status code.
type APIError struct {
	StatusCode int           `json:"-"`
	Detail     string        `json:"detail"`
	RetryAfter time.Duration `json:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Detail)
}

// IsAuthError returns true if the request was rejected for authentication
// or authorization reasons.
func (e *APIError) IsAuthError() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// IsNotFound returns true if this is a not found error.
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// IsConflict returns true if this is a conflict error.
func (e *APIError) IsConflict() bool {
	return e.StatusCode == http.StatusConflict
}

// IsRateLimited returns true if the request hit the upload rate limit.
// RetryAfter carries the server's suggested backoff when set.
func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// IsServerError returns true for 5xx responses, which are worth retrying.
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500
}
