// rrdsinkd accepts plain-text samples and writes them to round-robin
// archive files through the coalescing cache.
package main

import (
	"bufio"
	"errors"
	"flag"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xtxerr/rrdsink/internal/loader"
	"github.com/xtxerr/rrdsink/internal/logging"
	"github.com/xtxerr/rrdsink/internal/metrics"
	"github.com/xtxerr/rrdsink/internal/protocol"
	"github.com/xtxerr/rrdsink/internal/sink"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfgPath := flag.String("config", "rrdsink.yaml", "config file path")
	dataDir := flag.String("data-dir", "", "archive directory (overrides config)")
	socket := flag.String("socket", "", "UNIX socket to listen on (overrides config; empty reads stdin)")
	enginePath := flag.String("engine", "", "rrdtool binary (overrides config)")
	metricsAddr := flag.String("metrics", "", "Prometheus listen address (overrides config)")
	debug := flag.Bool("debug", false, "debug logging")
	jsonLog := flag.Bool("json-log", false, "JSON log output")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logging.Init(level, *jsonLog)
	log := logging.Component("main")

	log.Info("rrdsinkd starting", "version", Version)

	cfg, err := loader.Load(*cfgPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Info("no config file found, using defaults", "path", *cfgPath)
			cfg = loader.DefaultConfig()
		} else {
			log.Error("load config", "error", err)
			os.Exit(1)
		}
	}

	// CLI overrides
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *socket != "" {
		cfg.Socket = *socket
	}
	if *enginePath != "" {
		cfg.Engine = *enginePath
	}
	if *metricsAddr != "" {
		cfg.MetricsListen = *metricsAddr
	}

	s := sink.New(cfg, nil)
	if err := s.Init(); err != nil {
		log.Error("init", "error", err)
		os.Exit(1)
	}

	if cfg.MetricsListen != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			log.Info("serving metrics", "addr", cfg.MetricsListen)
			if err := http.ListenAndServe(cfg.MetricsListen, mux); err != nil {
				log.Error("metrics server", "error", err)
			}
		}()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	if cfg.Socket != "" {
		ln, err := net.Listen("unix", cfg.Socket)
		if err != nil {
			log.Error("listen", "socket", cfg.Socket, "error", err)
			os.Exit(1)
		}
		defer os.Remove(cfg.Socket)
		go func() {
			defer close(done)
			serveSocket(ln, cfg, s)
		}()
		log.Info("listening", "socket", cfg.Socket)
	} else {
		go func() {
			defer close(done)
			consume(os.Stdin, cfg, s)
		}()
		log.Info("reading samples from stdin")
	}

	select {
	case <-sig:
		log.Info("signal received, shutting down")
	case <-done:
		log.Info("input closed, shutting down")
	}

	s.Shutdown()
	<-s.Done()
	log.Info("flush worker drained, bye")
}

// serveSocket accepts protocol connections until the listener fails.
func serveSocket(ln net.Listener, cfg *loader.Config, s *sink.Sink) {
	log := logging.Component("server")
	for {
		conn, err := ln.Accept()
		if err != nil {
			log.Error("accept", "error", err)
			return
		}
		go func() {
			defer conn.Close()
			consume(conn, cfg, s)
		}()
	}
}

// consume reads protocol lines from r and feeds them to the sink. Per-line
// failures are logged and skipped; the stream keeps flowing.
func consume(r io.Reader, cfg *loader.Config, s *sink.Sink) {
	log := logging.Component("protocol")
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		pv, err := protocol.Parse(scanner.Text())
		if err != nil {
			log.Warn("bad line", "error", err)
			continue
		}
		if pv == nil {
			continue
		}

		sch, err := cfg.Schema(pv.Type)
		if err != nil {
			log.Warn("unknown type", "type", pv.Type, "error", err)
			continue
		}

		smp, err := pv.Sample(sch, time.Now().Unix())
		if err != nil {
			log.Warn("bad sample", "type", pv.Type, "error", err)
			continue
		}

		if err := s.Write(sch, smp); err != nil {
			log.Warn("write rejected",
				"identifier", smp.Identifier(sch.Type), "error", err)
		}
	}

	if err := scanner.Err(); err != nil {
		log.Error("read", "error", err)
	}
}
