package protocol

import (
	"math"
	"testing"

	"github.com/xtxerr/rrdsink/internal/errors"
	"github.com/xtxerr/rrdsink/internal/schema"
)

func TestParse(t *testing.T) {
	pv, err := Parse("PUTVAL h1/cpu-0/cpu-user interval=10 1700000000:42.5")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if pv.Host != "h1" || pv.Plugin != "cpu" || pv.PluginInstance != "0" {
		t.Errorf("plugin tuple = %s/%s-%s", pv.Host, pv.Plugin, pv.PluginInstance)
	}
	if pv.Type != "cpu" || pv.TypeInstance != "user" {
		t.Errorf("type tuple = %s-%s", pv.Type, pv.TypeInstance)
	}
	if pv.Interval != 10 || pv.Time != 1700000000 {
		t.Errorf("interval/time = %d/%d", pv.Interval, pv.Time)
	}
	if len(pv.Raw) != 1 || pv.Raw[0] != "42.5" {
		t.Errorf("raw = %v", pv.Raw)
	}
}

func TestParse_NoInstances(t *testing.T) {
	pv, err := Parse("PUTVAL h1/load/load N:0.5")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if pv.PluginInstance != "" || pv.TypeInstance != "" {
		t.Errorf("instances = %q/%q", pv.PluginInstance, pv.TypeInstance)
	}
	if pv.Time != 0 {
		t.Errorf("N timestamp should parse to 0, got %d", pv.Time)
	}
}

func TestParse_BlankAndComment(t *testing.T) {
	for _, line := range []string{"", "   ", "# comment"} {
		pv, err := Parse(line)
		if pv != nil || err != nil {
			t.Errorf("Parse(%q) = (%v, %v)", line, pv, err)
		}
	}
}

func TestParse_Malformed(t *testing.T) {
	bad := []string{
		"GETVAL h1/cpu/cpu 1000:1",
		"PUTVAL h1/cpu 1000:1",   // two-part identifier
		"PUTVAL h1//cpu 1000:1",  // empty plugin
		"PUTVAL h1/cpu/cpu 1000", // no values
		"PUTVAL h1/cpu/cpu x:1",  // bad timestamp
		"PUTVAL h1/cpu/cpu interval=x 1000:1",
		"PUTVAL h1/cpu/cpu",
	}
	for _, line := range bad {
		if _, err := Parse(line); err == nil {
			t.Errorf("Parse(%q): expected error", line)
		}
	}
}

func TestSample_Typing(t *testing.T) {
	sch := &schema.Schema{Type: "if_octets", Sources: []schema.Source{
		{Name: "rx", Kind: schema.KindCounter},
		{Name: "tx", Kind: schema.KindCounter},
	}}

	pv, err := Parse("PUTVAL h1/interface-eth0/if_octets 1700000000:123:456")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	smp, err := pv.Sample(sch, 0)
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if smp.Values[0].Counter != 123 || smp.Values[1].Counter != 456 {
		t.Errorf("counters = %d/%d", smp.Values[0].Counter, smp.Values[1].Counter)
	}
}

func TestSample_UnknownGaugeAndNow(t *testing.T) {
	sch := &schema.Schema{Type: "cpu", Sources: []schema.Source{
		{Name: "value", Kind: schema.KindGauge},
	}}

	pv, err := Parse("PUTVAL h1/cpu/cpu N:U")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	smp, err := pv.Sample(sch, 1700000123)
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if smp.Time != 1700000123 {
		t.Errorf("N time = %d, want the supplied now", smp.Time)
	}
	if !math.IsNaN(smp.Values[0].Gauge) {
		t.Errorf("U gauge = %g, want NaN", smp.Values[0].Gauge)
	}
}

func TestSample_Arity(t *testing.T) {
	sch := &schema.Schema{Type: "cpu", Sources: []schema.Source{
		{Name: "value", Kind: schema.KindGauge},
	}}

	pv, err := Parse("PUTVAL h1/cpu/cpu 1000:1:2")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := pv.Sample(sch, 0); !errors.Is(err, errors.ErrValueArity) {
		t.Errorf("got %v, want ErrValueArity", err)
	}
}

func TestSample_BadCounter(t *testing.T) {
	sch := &schema.Schema{Type: "c", Sources: []schema.Source{
		{Name: "v", Kind: schema.KindCounter},
	}}

	pv, err := Parse("PUTVAL h1/p/c 1000:-5")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := pv.Sample(sch, 0); !errors.Is(err, errors.ErrInvalidSample) {
		t.Errorf("got %v, want ErrInvalidSample", err)
	}
}
