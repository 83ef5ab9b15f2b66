package tts

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	ErrNoAPIKey     = errors.New("tts: API key required")
	ErrNoVoiceID    = errors.New("tts: voice ID required")
	ErrEmptyText    = errors.New("tts: text is empty")
	ErrNotPCM       = errors.New("tts: audio is not PCM")
	ErrUnavailable  = errors.New("tts: provider unavailable")
	ErrStreamClosed = errors.New("tts: stream closed")
)

// APIError is an error response from the TTS API.
type APIError struct {
	StatusCode int
	Message    string
	Code       string
	Provider   string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tts [%s]: API error %d (%s): %s", e.Provider, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("tts [%s]: API error %d: %s", e.Provider, e.StatusCode, e.Message)
}

// IsUnauthorized reports an authentication failure.
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == 401
}

// IsRetryable reports rate limits and server errors.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode == 429 || (e.StatusCode >= 500 && e.StatusCode < 600)
}

// ProviderError wraps an error with provider context.
type ProviderError struct {
	Provider string
	Err      error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("tts [%s]: %v", e.Provider, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// WrapError wraps err with provider context.
func WrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Provider: provider, Err: err}
}
