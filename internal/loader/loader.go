// Package loader handles configuration loading, validation, and resolution.
//
// Configuration reaches the sink two ways, and both land in the same Config:
//   - the collector host's key/value surface (Apply, case-insensitive keys)
//   - a YAML file (Load), which additionally carries the types table mapping
//     type names to data-source descriptors
//
// Resolve finishes the job: it derives dependent values (step from the
// global interval, heartbeat from the global interval, the cache flush interval from the
// cache timeout) and validates the result.
package loader

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/xtxerr/rrdsink/config"
	"github.com/xtxerr/rrdsink/internal/errors"
	"github.com/xtxerr/rrdsink/internal/logging"
	"github.com/xtxerr/rrdsink/internal/schema"
)

var log = logging.Component("config")

// SourceDef is the YAML form of one data-source descriptor. Nil bounds mean
// unbounded (U).
type SourceDef struct {
	Name string   `yaml:"name"`
	Kind string   `yaml:"kind"`
	Min  *float64 `yaml:"min"`
	Max  *float64 `yaml:"max"`
}

// Config is the complete sink configuration. Values are written during
// startup only; after Resolve the struct is read-only.
type Config struct {
	// DataDir is the path prefix for all archive files. Empty means
	// relative to the working directory.
	DataDir string `yaml:"data_dir"`

	// StepSize is the nominal seconds between primary data points.
	// 0 defaults to the global interval at Resolve.
	StepSize int `yaml:"step_size"`

	// HeartBeat is the maximum seconds between samples before a data
	// source reads as unknown. 0 defaults to twice the global interval.
	HeartBeat int `yaml:"heartbeat"`

	// RRARows is the target number of rows per round-robin archive.
	RRARows int `yaml:"rra_rows"`

	// XFF is the xfiles factor in [0, 1).
	XFF float64 `yaml:"xff"`

	// RRATimespans lists retention timespans in seconds. Empty means the
	// built-in ladder.
	RRATimespans []int `yaml:"rra_timespans"`

	// CacheTimeout is the coalescing window in seconds. Below 2 disables
	// coalescing.
	CacheTimeout int `yaml:"cache_timeout"`

	// CacheFlush is the idle-entry sweep interval in seconds.
	CacheFlush int `yaml:"cache_flush"`

	// Interval is the collector's global sample interval in seconds.
	Interval int `yaml:"interval"`

	// Engine is the round-robin database tool binary.
	Engine string `yaml:"engine"`

	// MetricsListen, when non-empty, is the address the daemon serves
	// Prometheus metrics on (e.g. ":9199").
	MetricsListen string `yaml:"metrics_listen"`

	// Socket, when non-empty, is the UNIX socket path the daemon accepts
	// the text protocol on. Empty means stdin.
	Socket string `yaml:"socket"`

	// Types maps type names to their data-source descriptors.
	Types map[string][]SourceDef `yaml:"types"`
}

// DefaultConfig returns a config with documented defaults applied.
func DefaultConfig() *Config {
	return &Config{
		RRARows:  config.DefaultRRARows,
		XFF:      config.DefaultXFF,
		Interval: config.DefaultInterval,
		Engine:   config.DefaultEnginePath,
	}
}

// Load loads configuration from a YAML file, expanding environment
// variables, on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, errors.Wrap(errors.ErrInvalidConfig, "parse config: %v", err)
	}

	return cfg, nil
}

// Apply sets one configuration value through the host's key/value surface.
// Keys are case-insensitive; unknown keys are rejected with ErrUnknownKey,
// bad values with ErrInvalidConfig.
func (c *Config) Apply(key, value string) error {
	switch {
	case strings.EqualFold(key, "CacheTimeout"):
		n, err := parseInt(key, value)
		if err != nil {
			return err
		}
		if n < 0 {
			return errors.Wrap(errors.ErrInvalidConfig, "CacheTimeout must not be negative, got %d", n)
		}
		c.CacheTimeout = n

	case strings.EqualFold(key, "CacheFlush"):
		n, err := parseInt(key, value)
		if err != nil {
			return err
		}
		if n < 0 {
			return errors.Wrap(errors.ErrInvalidConfig, "CacheFlush must not be negative, got %d", n)
		}
		c.CacheFlush = n

	case strings.EqualFold(key, "DataDir"):
		c.DataDir = strings.TrimRight(value, "/")

	case strings.EqualFold(key, "StepSize"):
		n, err := parsePositiveInt(key, value)
		if err != nil {
			return err
		}
		c.StepSize = n

	case strings.EqualFold(key, "HeartBeat"):
		n, err := parsePositiveInt(key, value)
		if err != nil {
			return err
		}
		c.HeartBeat = n

	case strings.EqualFold(key, "RRARows"):
		n, err := parsePositiveInt(key, value)
		if err != nil {
			return err
		}
		c.RRARows = n

	case strings.EqualFold(key, "RRATimespan"):
		spans, err := parseTimespans(value)
		if err != nil {
			return err
		}
		c.RRATimespans = append(c.RRATimespans, spans...)

	case strings.EqualFold(key, "XFF"):
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return errors.Wrap(errors.ErrInvalidConfig, "XFF: %q is not a number", value)
		}
		if f < 0.0 || f >= 1.0 {
			return errors.Wrap(errors.ErrInvalidConfig, "XFF must be in the range 0 to 1 (exclusive), got %g", f)
		}
		c.XFF = f

	default:
		return errors.Wrap(errors.ErrUnknownKey, "%q", key)
	}

	return nil
}

// parseTimespans splits a comma/space/tab-separated list of seconds. Zero
// entries are silently dropped; anything unparseable or negative is an
// error.
func parseTimespans(value string) ([]int, error) {
	fields := strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})

	var spans []int
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, errors.Wrap(errors.ErrInvalidConfig, "RRATimespan: %q is not a number", f)
		}
		if n < 0 {
			return nil, errors.Wrap(errors.ErrInvalidConfig, "RRATimespan: %d is negative", n)
		}
		if n == 0 {
			continue
		}
		spans = append(spans, n)
	}
	return spans, nil
}

func parseInt(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, errors.Wrap(errors.ErrInvalidConfig, "%s: %q is not a number", key, value)
	}
	return n, nil
}

func parsePositiveInt(key, value string) (int, error) {
	n, err := parseInt(key, value)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, errors.Wrap(errors.ErrInvalidConfig, "%s must be greater than 0, got %d", key, n)
	}
	return n, nil
}

// Resolve derives dependent values and validates the result. Must be called
// once, after all Apply calls and before the config is handed to the sink.
func (c *Config) Resolve() error {
	if c.Interval <= 0 {
		c.Interval = config.DefaultInterval
	}
	if c.StepSize <= 0 {
		c.StepSize = c.Interval
	}
	if c.HeartBeat <= 0 {
		c.HeartBeat = config.HeartbeatFactor * c.Interval
	}

	if c.HeartBeat < c.Interval {
		log.Warn("heartbeat is smaller than the interval, gaps will read as unknown",
			"heartbeat", c.HeartBeat, "interval", c.Interval)
	} else if c.StepSize < c.Interval {
		log.Warn("step size is smaller than the interval, archives will be needlessly big",
			"step_size", c.StepSize, "interval", c.Interval)
	}

	if c.RRARows <= 0 {
		return errors.Wrap(errors.ErrInvalidConfig, "rra_rows must be greater than 0, got %d", c.RRARows)
	}
	if c.XFF < 0.0 || c.XFF >= 1.0 {
		return errors.Wrap(errors.ErrInvalidConfig, "xff must be in the range 0 to 1 (exclusive), got %g", c.XFF)
	}
	for _, span := range c.RRATimespans {
		if span <= 0 {
			return errors.Wrap(errors.ErrInvalidConfig, "rra_timespans holds %d", span)
		}
	}

	if c.CacheTimeout < config.MinCacheTimeout {
		c.CacheTimeout = 0
		c.CacheFlush = 0
	} else if c.CacheFlush < c.CacheTimeout {
		c.CacheFlush = config.CacheFlushFactor * c.CacheTimeout
	}

	c.DataDir = strings.TrimRight(c.DataDir, "/")
	if c.Engine == "" {
		c.Engine = config.DefaultEnginePath
	}

	for name, defs := range c.Types {
		if _, err := buildSchema(name, defs); err != nil {
			return err
		}
	}

	return nil
}

// Schema builds the schema for a type from the types table.
func (c *Config) Schema(typ string) (*schema.Schema, error) {
	defs, ok := c.Types[typ]
	if !ok {
		return nil, errors.Wrap(errors.ErrUnknownType, "%q", typ)
	}
	return buildSchema(typ, defs)
}

func buildSchema(typ string, defs []SourceDef) (*schema.Schema, error) {
	sch := &schema.Schema{Type: typ, Sources: make([]schema.Source, 0, len(defs))}
	for _, d := range defs {
		kind, err := schema.ParseKind(d.Kind)
		if err != nil {
			return nil, errors.Wrap(errors.ErrInvalidConfig, "type %q source %q: %v", typ, d.Name, err)
		}
		sch.Sources = append(sch.Sources, schema.Source{
			Name: d.Name,
			Kind: kind,
			Min:  bound(d.Min),
			Max:  bound(d.Max),
		})
	}
	if err := sch.Validate(); err != nil {
		return nil, errors.Wrap(errors.ErrInvalidConfig, "%v", err)
	}
	return sch, nil
}

func bound(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
