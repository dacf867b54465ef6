// Package sink is the host-facing surface of rrdsink: the four callbacks a
// collector binds (configure, init, write, shutdown) and the write path
// gluing path derivation, archive creation, the coalescing cache, and the
// engine together.
package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/xtxerr/rrdsink/internal/cache"
	"github.com/xtxerr/rrdsink/internal/engine"
	"github.com/xtxerr/rrdsink/internal/errors"
	"github.com/xtxerr/rrdsink/internal/layout"
	"github.com/xtxerr/rrdsink/internal/loader"
	"github.com/xtxerr/rrdsink/internal/logging"
	"github.com/xtxerr/rrdsink/internal/metrics"
	"github.com/xtxerr/rrdsink/internal/naming"
	"github.com/xtxerr/rrdsink/internal/schema"
)

var log = logging.Component("sink")

// Sink accepts samples and flushes them to round-robin archive files
// through a single background worker.
//
// Lifecycle: Config (zero or more times) → Init → Write (concurrently) →
// Shutdown. Writes racing with Shutdown observe either a successful insert
// or ErrShutdown; producers must stop writing before Shutdown returns the
// cache to the host.
type Sink struct {
	cfg *loader.Config
	eng engine.Engine

	cache   *cache.Cache
	creates singleflight.Group

	running atomic.Bool
}

// New creates a sink. cfg nil means defaults (configure via Config); eng
// nil means the rrdtool binary from the resolved configuration.
func New(cfg *loader.Config, eng engine.Engine) *Sink {
	if cfg == nil {
		cfg = loader.DefaultConfig()
	}
	return &Sink{cfg: cfg, eng: eng}
}

// Config applies one key/value pair from the host's configuration surface.
// Must be called before Init.
func (s *Sink) Config(key, value string) error {
	if s.running.Load() {
		return errors.Wrap(errors.ErrInvalidConfig, "configuration after init")
	}
	return s.cfg.Apply(key, value)
}

// Init resolves the configuration, creates the cache, and starts the flush
// worker.
func (s *Sink) Init() error {
	if s.running.Load() {
		return errors.Wrap(errors.ErrInvalidConfig, "already initialized")
	}

	if err := s.cfg.Resolve(); err != nil {
		return err
	}

	if s.eng == nil {
		s.eng = engine.NewTool(s.cfg.Engine)
	}

	s.cache = cache.New(cache.Options{
		Timeout:      s.cfg.CacheTimeout,
		FlushTimeout: s.cfg.CacheFlush,
	})
	s.cache.Start(s.applyBatch)
	s.running.Store(true)

	log.Info("sink initialized",
		"data_dir", s.cfg.DataDir,
		"step_size", s.cfg.StepSize,
		"heartbeat", s.cfg.HeartBeat,
		"rra_rows", s.cfg.RRARows,
		"xff", s.cfg.XFF,
		"cache_timeout", s.cfg.CacheTimeout,
		"cache_flush", s.cfg.CacheFlush)

	return nil
}

// Write accepts one sample: derive the archive path, create the archive on
// first use, and insert the formatted line into the coalescing cache.
func (s *Sink) Write(sch *schema.Schema, smp *schema.Sample) error {
	if !s.running.Load() {
		return errors.ErrShutdown
	}

	filename, err := naming.Filename(s.cfg.DataDir, sch, smp)
	if err != nil {
		log.Error("cannot derive archive path",
			"identifier", smp.Identifier(sch.Type), "error", err)
		return err
	}

	line, err := schema.FormatLine(sch, smp)
	if err != nil {
		log.Error("cannot format sample", "file", filename, "error", err)
		return err
	}

	if err := s.ensureArchive(filename, sch); err != nil {
		log.Error("cannot create archive", "file", filename, "error", err)
		return err
	}

	return s.cache.Insert(filename, line, smp.Time)
}

// ensureArchive probes for the archive file and creates it, with its parent
// directories, when missing. Concurrent first writes to the same path
// collapse into one create.
func (s *Sink) ensureArchive(filename string, sch *schema.Schema) error {
	st, err := os.Stat(filename)
	if err == nil {
		if !st.Mode().IsRegular() {
			return errors.Wrap(errors.ErrNotRegularFile, "%s", filename)
		}
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat %s: %w", filename, err)
	}

	_, err, _ = s.creates.Do(filename, func() (any, error) {
		// Re-probe: a concurrent writer may have won the flight before us.
		if _, err := os.Stat(filename); err == nil {
			return nil, nil
		}

		if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
			return nil, fmt.Errorf("mkdir for %s: %w", filename, err)
		}

		args, err := layout.CreateArgs(filename, sch, s.layoutConfig())
		if err != nil {
			return nil, err
		}

		if err := s.eng.Exec(context.Background(), args); err != nil {
			metrics.EngineErrorsTotal.Inc()
			return nil, err
		}

		metrics.CreatesTotal.Inc()
		log.Info("created archive", "file", filename)
		return nil, nil
	})
	return err
}

func (s *Sink) layoutConfig() layout.Config {
	return layout.Config{
		Step:      s.cfg.StepSize,
		Heartbeat: s.cfg.HeartBeat,
		Rows:      s.cfg.RRARows,
		XFF:       s.cfg.XFF,
		Timespans: s.cfg.RRATimespans,
	}
}

// applyBatch is the flush worker's update callback. Engine failures are
// logged and the batch is discarded; the queue keeps draining.
func (s *Sink) applyBatch(filename string, values []string) {
	args := make([]string, 0, len(values)+2)
	args = append(args, "update", filename)
	args = append(args, values...)

	if err := s.eng.Exec(context.Background(), args); err != nil {
		metrics.EngineErrorsTotal.Inc()
		log.Error("update failed", "file", filename, "lines", len(values), "error", err)
		return
	}
	metrics.UpdatesTotal.Inc()
}

// Shutdown drains the cache once: every pending batch is handed to the
// worker, the worker is signalled, and no further writes are accepted. The
// host may join the worker via Done.
func (s *Sink) Shutdown() error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	s.cache.Shutdown()
	return nil
}

// Done is closed once the flush worker has drained the queue and exited.
func (s *Sink) Done() <-chan struct{} {
	return s.cache.Done()
}
