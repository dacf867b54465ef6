// Package engine is the boundary to the round-robin database engine. The
// sink never touches archive file contents itself; it hands the engine a
// textual argument vector ("create ..." or "update ...") and inspects the
// engine's error string on failure.
package engine

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/xtxerr/rrdsink/internal/errors"
)

// Engine executes one archive operation. args is the full textual argument
// vector, starting with the command word ("create" or "update").
type Engine interface {
	Exec(ctx context.Context, args []string) error
}

// Tool shells out to the rrdtool binary. The argument vector is passed
// through verbatim; stderr is captured and surfaced as the engine's error
// string.
type Tool struct {
	// Path is the binary to execute, e.g. "rrdtool" or "/usr/bin/rrdtool".
	Path string
}

// NewTool returns a Tool for the given binary path.
func NewTool(path string) *Tool {
	return &Tool{Path: path}
}

// Exec runs one engine command and waits for it to finish.
func (t *Tool) Exec(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, t.Path, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return errors.Wrap(errors.ErrEngine, "%s %s: %s", t.Path, args[0], msg)
	}
	return nil
}
