// Package errors consolidates error definitions for rrdsink.
//
// This package provides:
// - Sentinel errors for all error conditions
// - Host return-code mapping (the collector host speaks in codes)
// - Error category checking functions
// - Is/As re-exports so callers need only one errors import
package errors

import (
	"errors"
	"fmt"
)

// ============================================================================
// Host return codes
// ============================================================================

// The collector host binds the sink's callbacks to integer results: 0 for
// success, -1 for a hard runtime failure, and 1 from the configuration
// callback for a value that should abort startup.
const (
	CodeOK          = 0
	CodeError       = -1
	CodeConfigAbort = 1
)

// HostCode maps an error to the code the host callback surface returns.
func HostCode(err error) int {
	switch {
	case err == nil:
		return CodeOK
	case errors.Is(err, ErrInvalidConfig):
		return CodeConfigAbort
	default:
		return CodeError
	}
}

// ============================================================================
// Sentinel errors
// ============================================================================

var (
	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrUnknownKey    = errors.New("unknown configuration key")

	// Write-path errors
	ErrNonMonotonic      = errors.New("non-monotonic sample")
	ErrPathTooLong       = errors.New("archive path too long")
	ErrNotRegularFile    = errors.New("not a regular file")
	ErrValueArity        = errors.New("value count does not match schema")
	ErrUnknownSourceKind = errors.New("unknown data source kind")
	ErrInvalidSchema     = errors.New("invalid schema")
	ErrInvalidSample     = errors.New("invalid sample")
	ErrUnknownType       = errors.New("unknown type")

	// Planner errors
	ErrNoArchives = errors.New("no round-robin archives survive the layout")

	// Engine errors
	ErrEngine = errors.New("engine error")

	// State errors
	ErrShutdown = errors.New("sink is shut down")
)

// ============================================================================
// Helper functions for error checking
// ============================================================================

// Is is a convenience wrapper for errors.Is
var Is = errors.Is

// As is a convenience wrapper for errors.As
var As = errors.As

// New is a convenience wrapper for errors.New
var New = errors.New

// IsConfig returns true if err should abort startup rather than be absorbed.
func IsConfig(err error) bool {
	return errors.Is(err, ErrInvalidConfig) || errors.Is(err, ErrUnknownKey)
}

// IsRejected returns true if err is a per-sample rejection that the host
// should surface to the producing plugin (everything else is logged and
// absorbed to keep the collector running).
func IsRejected(err error) bool {
	return errors.Is(err, ErrNonMonotonic)
}

// Wrap wraps an error with additional context.
// Returns nil if err is nil.
func Wrap(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
