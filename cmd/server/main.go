// Command replayconsole-server hosts console message stores for replay
// sessions. It loads configuration, initialises node identity, replays the
// session archive and starts the HTTP/WebSocket server.
//
// Usage:
//
//	replayconsole-server [--config path/to/config.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/snehjoshi/replayconsole/internal/config"
	"github.com/snehjoshi/replayconsole/internal/console"
	"github.com/snehjoshi/replayconsole/internal/metrics"
	"github.com/snehjoshi/replayconsole/internal/node"
	"github.com/snehjoshi/replayconsole/internal/session"
	"github.com/snehjoshi/replayconsole/internal/storage"
	"github.com/snehjoshi/replayconsole/internal/storage/local"
	"github.com/snehjoshi/replayconsole/internal/storage/memory"
	transphttp "github.com/snehjoshi/replayconsole/internal/transport/http"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "replayconsole: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "config.yaml", "path to config file")
	debug := flag.Bool("debug", false, "log console reducer trace events")
	flag.Parse()

	// ── 1. Load configuration ────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// ── 2. Set up structured logger ──────────────────────────────────────────
	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	// ── 3. Initialise node identity ──────────────────────────────────────────
	n, err := node.New(cfg.Node.DataDir, cfg.Node.ID)
	if err != nil {
		return fmt.Errorf("init node: %w", err)
	}

	slog.Info("replayconsole starting",
		"node_id", n.ID(),
		"host", cfg.Node.Host,
		"port", cfg.Node.Port,
		"data_dir", n.DataDir(),
		"storage_enabled", cfg.Storage.Enabled,
		"log_limit", cfg.Console.LogLimit,
	)

	// ── 4. Open the session archive ──────────────────────────────────────────
	var archive storage.Archive
	if cfg.Storage.Enabled {
		archive, err = local.Open(n.DataDir(), local.Config{Fsync: local.FsyncPolicy(cfg.Storage.Fsync)})
		if err != nil {
			return fmt.Errorf("open archive: %w", err)
		}
	} else {
		archive = memory.New()
	}

	// ── 5. Initialise metrics registry ───────────────────────────────────────
	var metricsReg *metrics.Registry
	if cfg.Metrics.Enabled {
		metricsReg = metrics.New()
	}

	// ── 6. Rebuild sessions from the archive ─────────────────────────────────
	mgr, err := session.NewManager(archive,
		session.WithMetrics(metricsReg),
		session.WithLogger(logger),
		session.WithDefaultFilters(cfg.Console.Filters.Value()),
		session.WithCompactOnClear(cfg.Storage.CompactOnClear),
		session.WithConsoleOptions(
			console.WithLogLimit(cfg.Console.LogLimit),
			console.WithGroupWarnings(cfg.Console.GroupWarnings),
		),
	)
	if err != nil {
		_ = archive.Close()
		return fmt.Errorf("init sessions: %w", err)
	}

	// ── 7. Start HTTP / WebSocket transport ──────────────────────────────────
	srv := transphttp.New(mgr, n.ID().String(), cfg, metricsReg)
	addr := fmt.Sprintf("%s:%d", cfg.Node.Host, cfg.Node.Port)

	// Serve in a background goroutine so we can handle signals.
	serveErr := make(chan error, 1)
	go func() {
		slog.Info("replayconsole ready", "node_id", n.ID(), "addr", addr, "sessions", len(mgr.List()))
		if err := srv.ListenAndServe(addr); !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		} else {
			serveErr <- nil
		}
	}()

	// ── 8. Graceful shutdown on SIGINT / SIGTERM ─────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-quit:
		slog.Info("shutting down", "signal", sig)
	case err := <-serveErr:
		if err != nil {
			runErr = fmt.Errorf("http server: %w", err)
		}
	}

	// Give in-flight requests 5 seconds to complete.
	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutCtx); err != nil {
		slog.Warn("server shutdown error", "err", err)
	}
	mgr.Close()
	if err := archive.Close(); err != nil {
		slog.Warn("archive close error", "err", err)
	}

	slog.Info("replayconsole stopped")
	return runErr
}
