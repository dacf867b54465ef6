package engine

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/xtxerr/rrdsink/internal/errors"
)

// fakeTool writes a shell script standing in for the engine binary.
func fakeTool(t *testing.T, script string) *Tool {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell fixture")
	}

	path := filepath.Join(t.TempDir(), "rrdtool")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatal(err)
	}
	return NewTool(path)
}

func TestTool_Success(t *testing.T) {
	tool := fakeTool(t, `echo "$@" > "$OUT"`)

	out := filepath.Join(t.TempDir(), "args")
	t.Setenv("OUT", out)

	err := tool.Exec(context.Background(), []string{"update", "a.rrd", "1000:1"})
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(string(data)); got != "update a.rrd 1000:1" {
		t.Errorf("engine saw %q", got)
	}
}

func TestTool_ErrorStringSurfaced(t *testing.T) {
	tool := fakeTool(t, `echo "illegal attempt to update using time 1000" >&2; exit 1`)

	err := tool.Exec(context.Background(), []string{"update", "a.rrd", "1000:1"})
	if !errors.Is(err, errors.ErrEngine) {
		t.Fatalf("got %v, want ErrEngine", err)
	}
	if !strings.Contains(err.Error(), "illegal attempt") {
		t.Errorf("engine error string lost: %v", err)
	}
}

func TestRecorder(t *testing.T) {
	rec := &Recorder{}

	if err := rec.Exec(context.Background(), []string{"create", "a.rrd"}); err != nil {
		t.Fatal(err)
	}
	if err := rec.Exec(context.Background(), []string{"update", "a.rrd", "1:1"}); err != nil {
		t.Fatal(err)
	}

	if got := len(rec.Calls()); got != 2 {
		t.Fatalf("recorded %d calls", got)
	}
	if got := rec.CallsFor("update"); len(got) != 1 || got[0][2] != "1:1" {
		t.Errorf("updates = %v", got)
	}

	rec.SetFail(errors.ErrEngine)
	if err := rec.Exec(context.Background(), []string{"update", "a.rrd", "2:1"}); !errors.Is(err, errors.ErrEngine) {
		t.Errorf("injected failure lost: %v", err)
	}
}
