package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrRateLimited    = errors.New("rate limited")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidOrder   = errors.New("invalid order parameters")
	ErrLockHeld       = errors.New("lock already held")
	ErrNoLiquidity    = errors.New("no liquidity")
	ErrAlreadyRunning = errors.New("already running")
	ErrNotRunning     = errors.New("not running")
)

// AdapterError is a network, auth, or venue failure on a single adapter call.
// The engine logs it and skips the current cycle.
type AdapterError struct {
	Venue string
	Op    string
	Err   error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Venue, e.Op, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }

// NewAdapterError wraps err unless it already is an AdapterError.
func NewAdapterError(venue, op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *AdapterError
	if errors.As(err, &ae) {
		return err
	}
	return &AdapterError{Venue: venue, Op: op, Err: err}
}

// InsufficientDataError reports an order book that cannot be used for
// detection: an empty side or a crossed book.
type InsufficientDataError struct {
	Venue  string
	Symbol string
	Reason string
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: %s %s: %s", e.Venue, e.Symbol, e.Reason)
}

// PartialExecutionError means exactly one leg of a two-leg execution
// succeeded. The filled leg is left unhedged.
type PartialExecutionError struct {
	FilledLeg string // "maker" or "taker"
	FailedLeg string
	Err       error
}

func (e *PartialExecutionError) Error() string {
	return fmt.Sprintf("partial execution: %s leg filled, %s leg failed: %v", e.FilledLeg, e.FailedLeg, e.Err)
}

func (e *PartialExecutionError) Unwrap() error { return e.Err }

// ConfigurationError is fatal at startup. Problems lists every invalid or
// missing value found.
type ConfigurationError struct {
	Problems []string
}

func (e *ConfigurationError) Error() string {
	if len(e.Problems) == 1 {
		return "configuration error: " + e.Problems[0]
	}
	return fmt.Sprintf("config validation failed:\n  - %s", strings.Join(e.Problems, "\n  - "))
}

// ProcessCrash is reported when the supervised process exits while RUNNING
// without a stop request.
type ProcessCrash struct {
	PID      int
	ExitCode int
	Err      error
}

func (e *ProcessCrash) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("process %d crashed (exit code %d): %v", e.PID, e.ExitCode, e.Err)
	}
	return fmt.Sprintf("process %d crashed (exit code %d)", e.PID, e.ExitCode)
}

func (e *ProcessCrash) Unwrap() error { return e.Err }
