// Package protocol parses the plain-text sample protocol the daemon accepts
// on stdin or its UNIX socket:
//
//	PUTVAL <host>/<plugin>[-instance]/<type>[-instance] [interval=N] <time>:<value>[:<value>...]
//
// The timestamp may be N for "now". Gauge values may be U for unknown.
package protocol

import (
	"math"
	"strconv"
	"strings"

	"github.com/xtxerr/rrdsink/internal/errors"
	"github.com/xtxerr/rrdsink/internal/schema"
)

// Putval is one parsed PUTVAL command: the identity tuple plus the raw value
// tokens, which are typed later against the schema.
type Putval struct {
	Host           string
	Plugin         string
	PluginInstance string
	Type           string
	TypeInstance   string
	Interval       int
	Time           int64 // 0 means "now"
	Raw            []string
}

// Parse parses one protocol line. Blank lines and comments return nil, nil.
func Parse(line string) (*Putval, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil, nil
	}

	fields := strings.Fields(line)
	if len(fields) < 3 || !strings.EqualFold(fields[0], "PUTVAL") {
		return nil, errors.Wrap(errors.ErrInvalidSample, "malformed line %q", line)
	}

	p := &Putval{}
	if err := p.parseIdentifier(fields[1]); err != nil {
		return nil, err
	}

	rest := fields[2:]
	for len(rest) > 1 {
		opt, ok := strings.CutPrefix(rest[0], "interval=")
		if !ok {
			break
		}
		n, err := strconv.Atoi(opt)
		if err != nil || n <= 0 {
			return nil, errors.Wrap(errors.ErrInvalidSample, "bad interval %q", rest[0])
		}
		p.Interval = n
		rest = rest[1:]
	}
	if len(rest) != 1 {
		return nil, errors.Wrap(errors.ErrInvalidSample, "malformed line %q", line)
	}

	return p, p.parseValues(rest[0])
}

// parseIdentifier splits host/plugin[-instance]/type[-instance]. Instances
// are separated at the first dash, matching the host's identifier syntax.
func (p *Putval) parseIdentifier(id string) error {
	parts := strings.Split(id, "/")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return errors.Wrap(errors.ErrInvalidSample, "bad identifier %q", id)
	}

	p.Host = parts[0]
	p.Plugin, p.PluginInstance, _ = strings.Cut(parts[1], "-")
	p.Type, p.TypeInstance, _ = strings.Cut(parts[2], "-")

	if p.Plugin == "" || p.Type == "" {
		return errors.Wrap(errors.ErrInvalidSample, "bad identifier %q", id)
	}
	return nil
}

// parseValues splits <time>:<value>[:<value>...]. Values stay textual until
// the schema is known.
func (p *Putval) parseValues(s string) error {
	parts := strings.Split(s, ":")
	if len(parts) < 2 {
		return errors.Wrap(errors.ErrInvalidSample, "bad value list %q", s)
	}

	if parts[0] == "N" {
		p.Time = 0
	} else {
		t, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil || t <= 0 {
			return errors.Wrap(errors.ErrInvalidSample, "bad timestamp %q", parts[0])
		}
		p.Time = t
	}

	p.Raw = parts[1:]
	return nil
}

// Sample types the raw values against the schema and returns the finished
// sample. now supplies the timestamp for lines that said N.
func (p *Putval) Sample(sch *schema.Schema, now int64) (*schema.Sample, error) {
	if len(p.Raw) != len(sch.Sources) {
		return nil, errors.Wrap(errors.ErrValueArity,
			"type %q expects %d values, line has %d", sch.Type, len(sch.Sources), len(p.Raw))
	}

	smp := &schema.Sample{
		Host:           p.Host,
		Plugin:         p.Plugin,
		PluginInstance: p.PluginInstance,
		TypeInstance:   p.TypeInstance,
		Time:           p.Time,
		Values:         make([]schema.Value, len(p.Raw)),
	}
	if smp.Time == 0 {
		smp.Time = now
	}

	for i, raw := range p.Raw {
		switch sch.Sources[i].Kind {
		case schema.KindCounter:
			n, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				return nil, errors.Wrap(errors.ErrInvalidSample, "counter value %q", raw)
			}
			smp.Values[i] = schema.CounterValue(n)
		case schema.KindGauge:
			if raw == "U" || raw == "u" {
				smp.Values[i] = schema.GaugeValue(math.NaN())
				continue
			}
			g, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, errors.Wrap(errors.ErrInvalidSample, "gauge value %q", raw)
			}
			smp.Values[i] = schema.GaugeValue(g)
		default:
			return nil, errors.Wrap(errors.ErrUnknownSourceKind, "type %q index %d", sch.Type, i)
		}
	}

	return smp, nil
}
