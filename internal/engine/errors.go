package engine

import (
	"errors"
	"fmt"
)

// ErrServerError marks a 500 response: terminal, never retried.
var ErrServerError = errors.New("server returned internal error")

// ErrRetryBudgetExhausted marks a call whose retryable failures used up
// every allowed attempt.
var ErrRetryBudgetExhausted = errors.New("retry budget exhausted")

// TransportError wraps a client-detected failure: connection errors,
// deadline expiry, and undecodable response bodies.
type TransportError struct {
	Attempt int
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure on attempt %d: %v", e.Attempt, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
