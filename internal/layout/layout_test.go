package layout

import (
	"math"
	"strings"
	"testing"

	"github.com/xtxerr/rrdsink/internal/errors"
	"github.com/xtxerr/rrdsink/internal/schema"
)

func TestRRADefs_DefaultLadder(t *testing.T) {
	// step 10s, 1200 rows: the one-hour timespan holds only 360 points and
	// is skipped; the remaining four each produce AVERAGE/MIN/MAX.
	defs, err := RRADefs(Config{Step: 10, Rows: 1200, XFF: 0.1})
	if err != nil {
		t.Fatalf("RRADefs: %v", err)
	}

	if len(defs) != 12 {
		t.Fatalf("expected 12 RRA definitions, got %d: %v", len(defs), defs)
	}

	expected := []string{
		"RRA:AVERAGE:0.1:1:8640",
		"RRA:MIN:0.1:1:8640",
		"RRA:MAX:0.1:1:8640",
		"RRA:AVERAGE:0.1:50:1210",
		"RRA:MIN:0.1:50:1210",
		"RRA:MAX:0.1:50:1210",
		"RRA:AVERAGE:0.1:223:1202",
		"RRA:MIN:0.1:223:1202",
		"RRA:MAX:0.1:223:1202",
		"RRA:AVERAGE:0.1:2635:1201",
		"RRA:MIN:0.1:2635:1201",
		"RRA:MAX:0.1:2635:1201",
	}
	for i, want := range expected {
		if defs[i] != want {
			t.Errorf("defs[%d] = %q, want %q", i, defs[i], want)
		}
	}
}

func TestRRADefs_AllTimespansSurvive(t *testing.T) {
	// step 1s, 3600 rows: every built-in timespan holds at least 3600
	// points, so all five survive, 15 definitions total.
	defs, err := RRADefs(Config{Step: 1, Rows: 3600, XFF: 0.5})
	if err != nil {
		t.Fatalf("RRADefs: %v", err)
	}

	if len(defs) != 15 {
		t.Fatalf("expected 15 RRA definitions, got %d", len(defs))
	}

	// cdp_len 1 for the first surviving timespan, floor(span/(rows*step))
	// after that.
	wantLens := []string{":1:", ":24:", ":168:", ":744:", ":8784:"}
	for i, frag := range wantLens {
		def := defs[i*3]
		if !strings.Contains(def, frag) {
			t.Errorf("defs[%d] = %q, want cdp_len fragment %q", i*3, def, frag)
		}
	}
	if defs[0] != "RRA:AVERAGE:0.5:1:3600" {
		t.Errorf("defs[0] = %q", defs[0])
	}
}

func TestRRADefs_CustomTimespans(t *testing.T) {
	defs, err := RRADefs(Config{Step: 10, Rows: 100, XFF: 0.1, Timespans: []int{7200}})
	if err != nil {
		t.Fatalf("RRADefs: %v", err)
	}
	// 7200/10 = 720 >= 100 rows, cdp_len 1, cdp_num 720.
	if len(defs) != 3 {
		t.Fatalf("expected 3 definitions, got %d", len(defs))
	}
	if defs[0] != "RRA:AVERAGE:0.1:1:720" {
		t.Errorf("defs[0] = %q", defs[0])
	}
}

func TestRRADefs_InvalidConfig(t *testing.T) {
	if _, err := RRADefs(Config{Step: 0, Rows: 1200}); !errors.Is(err, errors.ErrInvalidConfig) {
		t.Errorf("step 0: got %v", err)
	}
	if _, err := RRADefs(Config{Step: 10, Rows: 0}); !errors.Is(err, errors.ErrInvalidConfig) {
		t.Errorf("rows 0: got %v", err)
	}
}

func TestDSDefs(t *testing.T) {
	sch := &schema.Schema{
		Type: "if_octets",
		Sources: []schema.Source{
			{Name: "rx", Kind: schema.KindCounter, Min: 0, Max: math.NaN()},
			{Name: "tx", Kind: schema.KindCounter, Min: 0, Max: math.NaN()},
		},
	}

	defs, err := DSDefs(sch, 20)
	if err != nil {
		t.Fatalf("DSDefs: %v", err)
	}
	if len(defs) != 2 {
		t.Fatalf("expected 2 definitions, got %d", len(defs))
	}
	if defs[0] != "DS:rx:COUNTER:20:0.000000:U" {
		t.Errorf("defs[0] = %q", defs[0])
	}
	if defs[1] != "DS:tx:COUNTER:20:0.000000:U" {
		t.Errorf("defs[1] = %q", defs[1])
	}
}

func TestDSDefs_Gauge(t *testing.T) {
	sch := &schema.Schema{
		Type: "temperature",
		Sources: []schema.Source{
			{Name: "value", Kind: schema.KindGauge, Min: -273.15, Max: math.NaN()},
		},
	}

	defs, err := DSDefs(sch, 120)
	if err != nil {
		t.Fatalf("DSDefs: %v", err)
	}
	if defs[0] != "DS:value:GAUGE:120:-273.150000:U" {
		t.Errorf("defs[0] = %q", defs[0])
	}
}

func TestDSDefs_UnknownKind(t *testing.T) {
	sch := &schema.Schema{
		Type:    "broken",
		Sources: []schema.Source{{Name: "v", Kind: schema.SourceKind(99)}},
	}
	if _, err := DSDefs(sch, 20); !errors.Is(err, errors.ErrUnknownSourceKind) {
		t.Errorf("got %v", err)
	}
}

func TestCreateArgs(t *testing.T) {
	sch := &schema.Schema{
		Type:    "cpu",
		Sources: []schema.Source{{Name: "value", Kind: schema.KindGauge, Min: 0, Max: math.NaN()}},
	}
	cfg := Config{Step: 10, Heartbeat: 20, Rows: 1200, XFF: 0.1}

	args, err := CreateArgs("/var/lib/collect/h1/cpu/cpu-user.rrd", sch, cfg)
	if err != nil {
		t.Fatalf("CreateArgs: %v", err)
	}

	// create <file> -s <step> DS... RRA...
	if args[0] != "create" || args[1] != "/var/lib/collect/h1/cpu/cpu-user.rrd" {
		t.Errorf("prefix = %v", args[:2])
	}
	if args[2] != "-s" || args[3] != "10" {
		t.Errorf("step args = %v", args[2:4])
	}
	if args[4] != "DS:value:GAUGE:20:0.000000:U" {
		t.Errorf("args[4] = %q", args[4])
	}
	if len(args) != 4+1+12 {
		t.Errorf("expected 17 args, got %d: %v", len(args), args)
	}
}

func TestCreateArgs_NoSurvivingTimespan(t *testing.T) {
	// One hour of data at a one-hour step can never fill 1200 rows; the
	// only timespan is skipped and planning must fail.
	sch := &schema.Schema{
		Type:    "cpu",
		Sources: []schema.Source{{Name: "value", Kind: schema.KindGauge, Min: 0, Max: math.NaN()}},
	}
	cfg := Config{Step: 3600, Heartbeat: 7200, Rows: 1200, XFF: 0.1, Timespans: []int{3600}}

	_, err := CreateArgs("x.rrd", sch, cfg)
	if !errors.Is(err, errors.ErrNoArchives) {
		t.Errorf("got %v, want ErrNoArchives", err)
	}
}
