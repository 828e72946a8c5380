// Command procfiled exposes an in-memory append-only byte store as a
// pseudo-file over HTTP, with Prometheus metrics, websocket tailing and
// optional NATS append notifications.
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

	"github.com/TomZ28/proc-module/pkg/bytestore"
	"github.com/TomZ28/proc-module/pkg/config"
	"github.com/TomZ28/proc-module/pkg/notify"
	obs "github.com/TomZ28/proc-module/pkg/observability/prometheus"
	"github.com/TomZ28/proc-module/pkg/procfs"
	"github.com/TomZ28/proc-module/pkg/web"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("procfiled failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to YAML or JSON config file")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	flag.Parse()

	logger := newLogger(*logLevel)
	slog.SetDefault(logger)

	cfg := config.Default()
	if *configPath != "" {
		if err := config.LoadWithEnv(*configPath, "PROCFILE", &cfg); err != nil {
			return err
		}
	} else if err := config.ApplyEnvOverrides("PROCFILE", &cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	mode, err := cfg.FileMode()
	if err != nil {
		return err
	}

	metrics := obs.GetMetrics()
	observers := []bytestore.Observer{obs.NewStoreObserver(metrics)}

	hub := web.NewTailHub(cfg.File.Name, logger)
	observers = append(observers, hub)

	var notifier *notify.Notifier
	if cfg.Notify.Enabled {
		notifier, err = notify.New(notify.Config{
			URL:    cfg.Notify.URL,
			Prefix: cfg.Notify.Prefix,
			Name:   cfg.Notify.Name,
		}, cfg.File.Name, logger)
		if err != nil {
			return fmt.Errorf("failed to connect notifier: %w", err)
		}
		defer notifier.Close()
		observers = append(observers, notifier)
	}

	store := bytestore.NewMemStore(bytestore.MemStoreConfig{
		MaxStoreBytes: cfg.Store.MaxStoreBytes,
		Observer:      bytestore.MultiObserver(observers...),
	})

	registry := procfs.NewRegistry()
	entry, err := registry.Register(cfg.File.Name, mode, procfs.StoreFileOps(store))
	if err != nil {
		return fmt.Errorf("failed to register pseudo-file: %w", err)
	}
	logger.Info("created pseudo-file", "name", cfg.File.Name, "mode", mode)

	serverCfg := &web.ServerConfig{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		Workers:      cfg.Server.Workers,
		Queue:        cfg.Server.Queue,
	}
	if cfg.Auth.Enabled {
		serverCfg.AuthSecret = cfg.Auth.Secret
	}
	dataServer := web.NewServer(serverCfg, registry, metrics, logger)
	adminServer := web.NewAdminServer(cfg.Admin.Addr, obs.Handler(), hub, logger)

	errCh := make(chan error, 2)
	go func() {
		if err := dataServer.ListenAndServe(); err != nil {
			errCh <- fmt.Errorf("data server: %w", err)
		}
	}()
	go func() {
		if err := adminServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("admin server: %w", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := dataServer.Shutdown(ctx); err != nil {
		logger.Error("data server shutdown failed", "error", err)
	}
	if err := adminServer.Shutdown(ctx); err != nil {
		logger.Error("admin server shutdown failed", "error", err)
	}

	if err := registry.Unregister(entry); err != nil {
		logger.Error("unregister failed", "error", err)
	}
	store.Teardown()

	logger.Info("exited")
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
