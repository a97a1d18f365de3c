package helpers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"market-viewer/src/logger"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type MarketViewerError struct {
	Message string
	Cause   error
}

func (e *MarketViewerError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *MarketViewerError) Unwrap() error {
	return e.Cause
}

// Distinct error types for errors.As
type ConfigurationError struct{ MarketViewerError }
type TransportError struct{ MarketViewerError }
type ProtocolError struct{ MarketViewerError }
type ServerError struct{ MarketViewerError }
type DatabaseError struct{ MarketViewerError }
type ValidationError struct{ MarketViewerError }

var (
	ErrNotConnected  = errors.New("transport not connected")
	ErrSendQueueFull = errors.New("send queue full")
)

// -----------------------------------------------------------------------------

func NewTransportError(msg string, cause error) error {
	return &TransportError{MarketViewerError{Message: msg, Cause: cause}}
}

func NewProtocolError(msg string, cause error) error {
	return &ProtocolError{MarketViewerError{Message: msg, Cause: cause}}
}

// ServerError carries a message reported by the feed in an error frame.
func NewServerError(msg string) error {
	return &ServerError{MarketViewerError{Message: msg}}
}

func NewDatabaseError(msg string, cause error) error {
	return &DatabaseError{MarketViewerError{Message: msg, Cause: cause}}
}

func NewConfigurationError(msg string, cause error) error {
	return &ConfigurationError{MarketViewerError{Message: msg, Cause: cause}}
}

func NewValidationError(msg string) error {
	return &ValidationError{MarketViewerError{Message: msg}}
}

// -----------------------------------------------------------------------------
// Retry Logic
// -----------------------------------------------------------------------------

// RetryWithBackoff attempts fn up to maxRetries times with exponential backoff.
// It stops early when ctx is done.
func RetryWithBackoff(ctx context.Context, operation string, maxRetries int, baseDelay time.Duration, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err
		if attempt == maxRetries-1 {
			break
		}

		delay := baseDelay * (1 << attempt)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	if lastErr == nil {
		return &MarketViewerError{Message: fmt.Sprintf("%s: no attempts made", operation)}
	}
	return &MarketViewerError{Message: fmt.Sprintf("%s failed after %d attempts", operation, maxRetries), Cause: lastErr}
}

// -----------------------------------------------------------------------------
// Error Handler
// -----------------------------------------------------------------------------

type ErrorHandler struct {
	Logger *logger.Logger
}

func NewErrorHandler(log *logger.Logger) *ErrorHandler {
	if log == nil {
		log = logger.NewLogger(nil, "ErrorHandler")
	}
	return &ErrorHandler{Logger: log}
}

// -----------------------------------------------------------------------------

func (e *ErrorHandler) Handle(err error, context string) {
	if err != nil {
		e.Logger.Error("Error in %s: %v", context, err)
	}
}

// -----------------------------------------------------------------------------

// Recover logs a recovered panic. Use as `defer h.Recover("context")`.
func (e *ErrorHandler) Recover(context string) {
	if r := recover(); r != nil {
		e.Logger.Error("panic in %s: %v", context, r)
	}
}
