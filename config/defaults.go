// Package config provides configuration defaults and utilities
// for the rrdsink application.
//
// This package defines all configurable constants with documented defaults.
// Users can override these values via rrdsink.yaml or the key/value
// configuration surface the collector host exposes.
package config

// =============================================================================
// Archive Layout Defaults
// =============================================================================

const (
	// DefaultRRARows is the number of rows kept per round-robin archive.
	// Every retention timespan is consolidated down to roughly this many
	// points. Override via config: rra_rows / key RRARows
	DefaultRRARows = 1200

	// DefaultXFF is the xfiles factor: the fraction of unknown primary
	// data points tolerated per consolidated point. Must stay in [0, 1).
	// Override via config: xff / key XFF
	DefaultXFF = 0.1

	// HeartbeatFactor derives the data-source heartbeat from the global
	// collection interval when no explicit heartbeat is configured.
	HeartbeatFactor = 2
)

// DefaultTimespans are the built-in RRA retention timespans in seconds:
// one hour, one day, one week, one month (31 days), one year (366 days).
// Override via config: rra_timespans / key RRATimespan
var DefaultTimespans = []int{3600, 86400, 604800, 2678400, 31622400}

// =============================================================================
// Cache Defaults
// =============================================================================

const (
	// DefaultCacheTimeout is the coalescing window in seconds. Values for
	// one archive are batched until the oldest is this many seconds older
	// than the newest, then flushed in a single update. Values below
	// MinCacheTimeout disable coalescing entirely.
	// Override via config: cache_timeout / key CacheTimeout
	DefaultCacheTimeout = 0

	// MinCacheTimeout is the smallest coalescing window that makes sense.
	// A timeout of 0 or 1 second buys nothing over direct writes, so the
	// cache treats anything below this as "disabled".
	MinCacheTimeout = 2

	// CacheFlushFactor derives the idle-entry sweep interval from the
	// cache timeout when the configured flush interval is smaller than
	// the timeout itself.
	// Override via config: cache_flush / key CacheFlush
	CacheFlushFactor = 10
)

// =============================================================================
// Collection Defaults
// =============================================================================

const (
	// DefaultInterval is the collector's global sample interval in seconds.
	// StepSize and HeartBeat default to multiples of it.
	// Override via config: interval
	DefaultInterval = 10
)

// =============================================================================
// Path Defaults
// =============================================================================

const (
	// MaxFilenameLen caps the derived archive path length. Identity tuples
	// whose path renders to this many bytes or more are rejected, so the
	// longest accepted path is MaxFilenameLen-1 bytes.
	MaxFilenameLen = 512
)

// =============================================================================
// Engine Defaults
// =============================================================================

const (
	// DefaultEnginePath is the round-robin database tool the flush worker
	// shells out to for create and update operations.
	// Override via config: engine
	DefaultEnginePath = "rrdtool"
)
