package helpers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type AgentError struct {
	Message string
	Cause   error
}

func (e *AgentError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AgentError) Unwrap() error {
	return e.Cause
}

// Distinct error classes for the stage-boundary handlers.
type ConfigurationError struct{ AgentError }
type NetworkError struct{ AgentError }
type DataSourceError struct{ AgentError }
type DatabaseError struct{ AgentError }
type ValidationError struct{ AgentError }
type AuthError struct {
	AgentError
	Classification string // UNAUTHORIZED / FORBIDDEN
}

// -----------------------------------------------------------------------------

// NewValidationError builds a structured validation failure.
func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{AgentError{Message: fmt.Sprintf(format, args...)}}
}

// -----------------------------------------------------------------------------

// IsValidationError reports whether err is a ValidationError anywhere in its
// chain.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// -----------------------------------------------------------------------------

var authPatterns = []string{"unauthorized", "401", "invalid key", "invalid api key", "forbidden", "403"}

// IsAuthError classifies an error as authentication-class by pattern-matching
// its text, the way broker/LLM SDK errors surface.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}
	var ae *AuthError
	if errors.As(err, &ae) {
		return true
	}
	text := strings.ToLower(err.Error())
	for _, p := range authPatterns {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

// -----------------------------------------------------------------------------
// Retry Logic
// -----------------------------------------------------------------------------

// RetryWithBackoff attempts fn up to maxRetries times with exponential backoff.
// Auth-class errors are returned immediately: retrying them only burns quota.
// Context cancellation aborts the backoff sleep as well as further attempts.
func RetryWithBackoff(ctx context.Context, operation string, maxRetries int, baseDelay time.Duration, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if IsAuthError(err) {
			return err
		}

		lastErr = err
		if attempt == maxRetries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", operation, ctx.Err())
		case <-time.After(baseDelay * (1 << attempt)):
		}
	}

	return fmt.Errorf("%s: max retries exceeded: %w", operation, lastErr)
}
