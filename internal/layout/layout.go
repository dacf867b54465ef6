// Package layout plans the on-disk shape of a new archive file: the
// data-source definitions and the round-robin archive definitions handed to
// the engine's create command.
//
// The planner is pure: it derives everything from the schema and the resolved
// configuration, and a given input always yields the same argument vector.
package layout

import (
	"fmt"
	"math"
	"strconv"

	"github.com/xtxerr/rrdsink/config"
	"github.com/xtxerr/rrdsink/internal/errors"
	"github.com/xtxerr/rrdsink/internal/schema"
)

// aggregations are the consolidation functions built for every retention
// timespan.
var aggregations = []string{"AVERAGE", "MIN", "MAX"}

// Config carries the resolved layout parameters.
type Config struct {
	// Step is the nominal interval between primary data points, in seconds.
	Step int

	// Heartbeat is the maximum gap between samples before a data source
	// reads as unknown, in seconds.
	Heartbeat int

	// Rows is the target number of rows per round-robin archive.
	Rows int

	// XFF is the xfiles factor in [0, 1).
	XFF float64

	// Timespans lists the retention timespans in seconds, in order.
	// Empty means the built-in defaults.
	Timespans []int
}

// DSDefs returns one DS definition per schema source, in schema order:
// DS:<name>:<KIND>:<heartbeat>:<min>:<max>. Unknown bounds render as U.
func DSDefs(sch *schema.Schema, heartbeat int) ([]string, error) {
	defs := make([]string, 0, len(sch.Sources))
	for _, src := range sch.Sources {
		var kind string
		switch src.Kind {
		case schema.KindCounter:
			kind = "COUNTER"
		case schema.KindGauge:
			kind = "GAUGE"
		default:
			return nil, errors.Wrap(errors.ErrUnknownSourceKind,
				"type %q source %q kind %d", sch.Type, src.Name, src.Kind)
		}

		defs = append(defs, fmt.Sprintf("DS:%s:%s:%d:%s:%s",
			src.Name, kind, heartbeat, formatBound(src.Min), formatBound(src.Max)))
	}
	return defs, nil
}

// formatBound renders a data-source bound: U for unknown (NaN), otherwise a
// fixed-point decimal independent of locale.
func formatBound(v float64) string {
	if math.IsNaN(v) {
		return "U"
	}
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// RRADefs returns the round-robin archive definitions for the configured
// timespans: RRA:<aggregation>:<xff>:<cdp_len>:<cdp_num> for each surviving
// (timespan, aggregation) pair, in timespan order.
//
// A timespan is skipped when it holds fewer than Rows primary data points.
// The first surviving timespan archives primary points unconsolidated
// (cdp_len 1); later timespans consolidate floor(span/(rows*step)) primary
// points per archived point, and retain ceil(span/(cdp_len*step)) points.
func RRADefs(cfg Config) ([]string, error) {
	if cfg.Step <= 0 || cfg.Rows <= 0 {
		return nil, errors.Wrap(errors.ErrInvalidConfig,
			"step %d and rows %d must be positive", cfg.Step, cfg.Rows)
	}

	spans := cfg.Timespans
	if len(spans) == 0 {
		spans = config.DefaultTimespans
	}

	defs := make([]string, 0, len(spans)*len(aggregations))
	cdpLen := 0
	for _, span := range spans {
		if span/cfg.Step < cfg.Rows {
			continue
		}

		if cdpLen == 0 {
			cdpLen = 1
		} else {
			cdpLen = int(math.Floor(float64(span) / float64(cfg.Rows*cfg.Step)))
		}
		cdpNum := int(math.Ceil(float64(span) / float64(cdpLen*cfg.Step)))

		for _, agg := range aggregations {
			defs = append(defs, fmt.Sprintf("RRA:%s:%3.1f:%d:%d", agg, cfg.XFF, cdpLen, cdpNum))
		}
	}

	return defs, nil
}

// CreateArgs builds the full create argument vector for a new archive file:
// create <filename> -s <step> <DS definition>... <RRA definition>...
//
// Planning fails when the schema holds an unknown source kind, when step or
// rows are out of range, or when every timespan is skipped (an archive with
// no RRAs cannot hold data).
func CreateArgs(filename string, sch *schema.Schema, cfg Config) ([]string, error) {
	rraDefs, err := RRADefs(cfg)
	if err != nil {
		return nil, err
	}
	if len(rraDefs) == 0 {
		return nil, errors.Wrap(errors.ErrNoArchives,
			"every timespan holds fewer than %d points at step %d", cfg.Rows, cfg.Step)
	}

	dsDefs, err := DSDefs(sch, cfg.Heartbeat)
	if err != nil {
		return nil, err
	}

	args := make([]string, 0, len(dsDefs)+len(rraDefs)+4)
	args = append(args, "create", filename, "-s", strconv.Itoa(cfg.Step))
	args = append(args, dsDefs...)
	args = append(args, rraDefs...)
	return args, nil
}
