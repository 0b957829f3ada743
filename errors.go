package hemat

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType classifies an APIError into one of the failure families the
// client distinguishes when deciding whether to retry.
type ErrorType string

const (
	// ErrorTypeConnection covers DNS, dial, and transport level failures.
	ErrorTypeConnection ErrorType = "Connection"
	// ErrorTypeTimeout covers deadlines exceeded while connecting or reading.
	// A timeout is a special case of a connection failure and matches both
	// families under errors.Is.
	ErrorTypeTimeout ErrorType = "Timeout"
	// ErrorTypeRateLimit corresponds to HTTP 429 responses.
	ErrorTypeRateLimit ErrorType = "RateLimit"
	// ErrorTypeAuth corresponds to HTTP 401 responses.
	ErrorTypeAuth ErrorType = "Auth"
	// ErrorTypeNotFound corresponds to HTTP 404 responses.
	ErrorTypeNotFound ErrorType = "NotFound"
	// ErrorTypeValidation covers invalid arguments and HTTP 4xx responses
	// other than 401, 404, and 429.
	ErrorTypeValidation ErrorType = "Validation"
	// ErrorTypeServer corresponds to HTTP 5xx responses.
	ErrorTypeServer ErrorType = "Server"
	// ErrorTypePagination covers malformed page payloads encountered while
	// walking a cursor sequence.
	ErrorTypePagination ErrorType = "Pagination"
	// ErrorTypeBudgetExceeded is returned when a call would overrun the
	// daily spending budget. No request is sent.
	ErrorTypeBudgetExceeded ErrorType = "BudgetExceeded"
	// ErrorTypeCircuitOpen is returned when the circuit breaker refuses a
	// request.
	ErrorTypeCircuitOpen ErrorType = "CircuitOpen"
	// ErrorTypeAPI covers responses the client could not classify: invalid
	// JSON bodies and payloads reporting an error status on HTTP 200.
	ErrorTypeAPI ErrorType = "API"
)

// Sentinel errors for common failure scenarios
var (
	// ErrBudgetExceeded is returned when the daily budget cannot cover a call
	ErrBudgetExceeded = errors.New("hemat: daily budget exceeded")

	// ErrCircuitOpen is returned when the circuit breaker is in open state
	ErrCircuitOpen = errors.New("hemat: circuit open")

	// ErrInvalidConfig is returned when client configuration fails validation
	ErrInvalidConfig = errors.New("hemat: invalid configuration")
)

// APIError carries the full context of a failed call: its classification,
// the HTTP status and body when a response was received, and retry metadata.
type APIError struct {
	Type       ErrorType
	Message    string
	Cause      error
	RequestID  string
	Method     string
	Endpoint   string
	StatusCode int
	Body       string
	ResetAt    time.Time
	Attempt    int
	MaxRetries int
	Timestamp  time.Time
	Duration   time.Duration
}

// IsRetryable reports whether an error represents a failure that might
// succeed on retry: connection problems, timeouts, 5xx responses, rate
// limiting, unclassified API errors, and an open circuit. Authentication,
// not-found, validation, budget, and pagination errors are permanent.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrCircuitOpen) {
		return true
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Type {
		case ErrorTypeConnection, ErrorTypeTimeout, ErrorTypeServer, ErrorTypeRateLimit, ErrorTypeAPI, ErrorTypeCircuitOpen:
			return true
		default:
			return false
		}
	}

	return false
}

// IsBudgetExceeded reports whether err means the daily budget is exhausted.
func IsBudgetExceeded(err error) bool {
	if errors.Is(err, ErrBudgetExceeded) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Type == ErrorTypeBudgetExceeded
}

// IsRateLimited reports whether err was caused by an HTTP 429 response.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Type == ErrorTypeRateLimit
}

// IsNotFound reports whether err was caused by an HTTP 404 response.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Type == ErrorTypeNotFound
}

// IsAuthError reports whether err was caused by an HTTP 401 response.
func IsAuthError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Type == ErrorTypeAuth
}

// Error implements error interface.
func (e *APIError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause != nil {
		msg := fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Cause)
		if e.RequestID != "" {
			msg = fmt.Sprintf("[%s] %s", e.RequestID, msg)
		}
		if e.Attempt > 0 {
			msg = fmt.Sprintf("%s (attempt %d/%d)", msg, e.Attempt, e.MaxRetries)
		}
		return msg
	}

	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.RequestID != "" {
		msg = fmt.Sprintf("[%s] %s", e.RequestID, msg)
	}
	if e.Attempt > 0 {
		msg = fmt.Sprintf("%s (attempt %d/%d)", msg, e.Attempt, e.MaxRetries)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *APIError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is compares error types for errors.Is. A Timeout error also matches a
// Connection target so callers checking for connection failures catch both.
func (e *APIError) Is(target error) bool {
	if e == nil {
		return false
	}
	if targetErr, ok := target.(*APIError); ok {
		if e.Type == targetErr.Type {
			return true
		}
		return e.Type == ErrorTypeTimeout && targetErr.Type == ErrorTypeConnection
	}
	switch target {
	case ErrBudgetExceeded:
		return e.Type == ErrorTypeBudgetExceeded
	case ErrCircuitOpen:
		return e.Type == ErrorTypeCircuitOpen
	}
	return false
}

// DebugInfo renders a multi-line string with diagnostic context.
func (e *APIError) DebugInfo() string {
	if e == nil {
		return "Error: <nil>"
	}
	info := fmt.Sprintf("Error Type: %s\n", e.Type)
	info += fmt.Sprintf("Message: %s\n", e.Message)
	if e.RequestID != "" {
		info += fmt.Sprintf("Request ID: %s\n", e.RequestID)
	}
	if e.Method != "" {
		info += fmt.Sprintf("Method: %s\n", e.Method)
	}
	if e.Endpoint != "" {
		info += fmt.Sprintf("Endpoint: %s\n", e.Endpoint)
	}
	if e.StatusCode > 0 {
		info += fmt.Sprintf("Status Code: %d\n", e.StatusCode)
	}
	if e.Body != "" {
		info += fmt.Sprintf("Body: %s\n", e.Body)
	}
	if !e.ResetAt.IsZero() {
		info += fmt.Sprintf("Reset At: %s\n", e.ResetAt.Format(time.RFC3339))
	}
	if e.Attempt > 0 {
		info += fmt.Sprintf("Attempt: %d/%d\n", e.Attempt, e.MaxRetries)
	}
	if !e.Timestamp.IsZero() {
		info += fmt.Sprintf("Timestamp: %s\n", e.Timestamp.Format(time.RFC3339))
	}
	if e.Duration > 0 {
		info += fmt.Sprintf("Duration: %v\n", e.Duration)
	}
	if e.Cause != nil {
		info += fmt.Sprintf("Cause: %v\n", e.Cause)
	}
	return info
}

// newValidationError builds a permanent Validation error for bad arguments.
func newValidationError(format string, args ...interface{}) *APIError {
	return &APIError{
		Type:    ErrorTypeValidation,
		Message: fmt.Sprintf(format, args...),
	}
}
