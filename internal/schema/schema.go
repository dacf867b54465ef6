// Package schema defines the sample model flowing into the sink: data-source
// descriptors, the per-type schema, and the identity-tagged sample.
package schema

import (
	"math"
	"strconv"
	"strings"

	"github.com/xtxerr/rrdsink/internal/errors"
)

// SourceKind indicates how the engine consolidates a data source.
type SourceKind int

const (
	// KindGauge is a point-in-time measurement (e.g., temperature, CPU usage).
	KindGauge SourceKind = iota
	// KindCounter is a monotonically increasing counter (e.g., bytes received).
	KindCounter
)

// String returns a human-readable representation of the SourceKind.
func (k SourceKind) String() string {
	switch k {
	case KindGauge:
		return "gauge"
	case KindCounter:
		return "counter"
	default:
		return "unknown"
	}
}

// ParseKind parses a textual source kind. Matching is case-insensitive.
func ParseKind(s string) (SourceKind, error) {
	switch strings.ToLower(s) {
	case "gauge":
		return KindGauge, nil
	case "counter":
		return KindCounter, nil
	default:
		return 0, errors.Wrap(errors.ErrUnknownSourceKind, "%q", s)
	}
}

// Source describes one data source within an archive: a named value stream
// with a kind and optional bounds. NaN bounds mean "unknown" and render as U
// in the engine's definition syntax.
type Source struct {
	Name string
	Kind SourceKind
	Min  float64
	Max  float64
}

// Schema describes the value layout of one type: the ordered list of data
// sources every sample of that type must carry.
type Schema struct {
	Type    string
	Sources []Source
}

// Value holds one sample value. The schema's source kind at the same index
// selects which field is meaningful.
type Value struct {
	Counter uint64
	Gauge   float64
}

// GaugeValue returns a gauge Value.
func GaugeValue(v float64) Value { return Value{Gauge: v} }

// CounterValue returns a counter Value.
func CounterValue(v uint64) Value { return Value{Counter: v} }

// Sample is one measurement: the identity tuple locating the archive file,
// the values matching the schema, and the unix timestamp supplied by the
// collection loop.
type Sample struct {
	Host           string
	Plugin         string
	PluginInstance string
	TypeInstance   string
	Time           int64
	Values         []Value
}

// sourceNameMaxLen is the engine's limit on data-source names.
const sourceNameMaxLen = 19

// Validate checks the schema: a non-empty type name and at least one source,
// each with an engine-legal name (1-19 characters of [a-zA-Z0-9_]) and a
// known kind.
func (s *Schema) Validate() error {
	if s.Type == "" {
		return errors.Wrap(errors.ErrInvalidSchema, "empty type name")
	}
	if len(s.Sources) == 0 {
		return errors.Wrap(errors.ErrInvalidSchema, "type %q has no data sources", s.Type)
	}
	for _, src := range s.Sources {
		if src.Name == "" || len(src.Name) > sourceNameMaxLen {
			return errors.Wrap(errors.ErrInvalidSchema,
				"type %q: source name %q must be 1-%d characters", s.Type, src.Name, sourceNameMaxLen)
		}
		for _, r := range src.Name {
			if !isSourceNameRune(r) {
				return errors.Wrap(errors.ErrInvalidSchema,
					"type %q: source name %q contains %q", s.Type, src.Name, r)
			}
		}
		if src.Kind != KindGauge && src.Kind != KindCounter {
			return errors.Wrap(errors.ErrUnknownSourceKind, "type %q source %q: kind %d", s.Type, src.Name, src.Kind)
		}
	}
	return nil
}

func isSourceNameRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_'
}

// ValidateSample checks the sample against the schema. Host and plugin must
// be non-empty (instances may be empty), the timestamp positive, and the
// value count must match the schema's source count.
func ValidateSample(sch *Schema, smp *Sample) error {
	if smp.Host == "" {
		return errors.Wrap(errors.ErrInvalidSample, "empty host")
	}
	if smp.Plugin == "" {
		return errors.Wrap(errors.ErrInvalidSample, "empty plugin")
	}
	if smp.Time <= 0 {
		return errors.Wrap(errors.ErrInvalidSample, "timestamp %d", smp.Time)
	}
	if len(smp.Values) != len(sch.Sources) {
		return errors.Wrap(errors.ErrValueArity,
			"type %q expects %d values, sample has %d", sch.Type, len(sch.Sources), len(smp.Values))
	}
	return nil
}

// FormatLine renders the sample as one engine update line:
// <unix_time>:<value>[:<value>...]. Counters render as unsigned decimals,
// gauges as fixed-point decimals independent of locale. A NaN gauge renders
// as U, which the engine reads as "unknown".
func FormatLine(sch *Schema, smp *Sample) (string, error) {
	if err := ValidateSample(sch, smp); err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(strconv.FormatInt(smp.Time, 10))

	for i, src := range sch.Sources {
		b.WriteByte(':')
		switch src.Kind {
		case KindCounter:
			b.WriteString(strconv.FormatUint(smp.Values[i].Counter, 10))
		case KindGauge:
			g := smp.Values[i].Gauge
			if math.IsNaN(g) {
				b.WriteByte('U')
			} else {
				b.WriteString(strconv.FormatFloat(g, 'f', 6, 64))
			}
		default:
			return "", errors.Wrap(errors.ErrUnknownSourceKind, "type %q source %q", sch.Type, src.Name)
		}
	}

	return b.String(), nil
}

// Identifier renders the sample's identity tuple in the host's textual form
// host/plugin[-instance]/type[-instance]. Used for logging and the text
// protocol; the archive path derivation lives in the naming package.
func (s *Sample) Identifier(typ string) string {
	var b strings.Builder
	b.WriteString(s.Host)
	b.WriteByte('/')
	b.WriteString(s.Plugin)
	if s.PluginInstance != "" {
		b.WriteByte('-')
		b.WriteString(s.PluginInstance)
	}
	b.WriteByte('/')
	b.WriteString(typ)
	if s.TypeInstance != "" {
		b.WriteByte('-')
		b.WriteString(s.TypeInstance)
	}
	return b.String()
}
