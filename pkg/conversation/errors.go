package conversation

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingAgentID indicates the agent ID was not provided.
	ErrMissingAgentID = errors.New("conversation: agent ID is required")

	// ErrMissingURL indicates no websocket endpoint is configured.
	ErrMissingURL = errors.New("conversation: websocket URL is required")

	// ErrNotConnected indicates no session is live.
	ErrNotConnected = errors.New("conversation: not connected")

	// ErrAlreadyConnected indicates a session is already live.
	ErrAlreadyConnected = errors.New("conversation: already connected")

	// ErrConnectionClosed indicates the connection was closed unexpectedly.
	ErrConnectionClosed = errors.New("conversation: connection closed")

	// ErrNoSignedURL indicates the signed URL response carried no URL.
	ErrNoSignedURL = errors.New("conversation: signed URL missing from response")
)

// APIError is an error reported by the agent platform, either over HTTP or
// as an error event on the websocket.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Retryable  bool
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("conversation: API error [%s]: %s", e.Code, e.Message)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("conversation: API error (HTTP %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("conversation: API error: %s", e.Message)
}

// IsRetryable returns true if the request can be retried.
func (e *APIError) IsRetryable() bool {
	return e.Retryable
}

// NewAPIError creates a new APIError.
func NewAPIError(statusCode int, code, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
		Retryable:  statusCode == 429 || statusCode >= 500,
	}
}

// ConnectionError represents a websocket connection failure.
type ConnectionError struct {
	Reason    string
	Cause     error
	Retryable bool
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("conversation: connection error: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("conversation: connection error: %s", e.Reason)
}

// Unwrap returns the underlying cause.
func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// IsRetryable returns true if reconnection should be attempted.
func (e *ConnectionError) IsRetryable() bool {
	return e.Retryable
}

// NewConnectionError creates a new ConnectionError.
func NewConnectionError(reason string, cause error, retryable bool) *ConnectionError {
	return &ConnectionError{Reason: reason, Cause: cause, Retryable: retryable}
}

// IsNotConnected returns true if the error indicates no connection.
func IsNotConnected(err error) bool {
	return errors.Is(err, ErrNotConnected) || errors.Is(err, ErrConnectionClosed)
}

// IsRetryable returns true if the error can be retried.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsRetryable()
	}
	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return connErr.IsRetryable()
	}
	return false
}
