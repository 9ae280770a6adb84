// Command mycodo-output runs the output control daemon.
//
// It loads the configured outputs from SQLite, drives them through the
// GPIO simulator, shell commands, scripts, MQTT or serial pumps, and serves
// the REST API and Prometheus metrics.
//
// Usage:
//
//	mycodo-output [flags]
//
// Flags:
//
//	-config string      YAML configuration file
//	-env string         .env file with MYCODO_* overrides (default ".env")
//	-listen string      HTTP listen address (overrides config)
//	-db string          SQLite database path (overrides config)
//	-events string      CBOR event log path (overrides config)
//	-log-level string   Log level: debug, info, warn, error (overrides config)
//	-interactive        Enable the interactive console
//	-version            Show version information
//
// Examples:
//
//	# Run with defaults (simulated GPIO, ./mycodo-outputs.db)
//	mycodo-output
//
//	# Run with a config file and the console
//	mycodo-output -config /etc/mycodo/outputs.yaml -interactive
//
//	# Throwaway database for experiments
//	mycodo-output -db :memory: -log-level debug
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mycodo-go/mycodo-go/cmd/mycodo-output/interactive"
	"github.com/mycodo-go/mycodo-go/pkg/config"
	"github.com/mycodo-go/mycodo-go/pkg/metrics"
	"github.com/mycodo-go/mycodo-go/pkg/persistence"
	"github.com/mycodo-go/mycodo-go/pkg/service"
)

// Version information - set at build time via ldflags
var (
	Version   = "0.1.0"
	BuildDate = "dev"
	GitCommit = "unknown"
)

var (
	configFile  = flag.String("config", "", "YAML configuration file")
	envFile     = flag.String("env", ".env", ".env file with MYCODO_* overrides")
	listen      = flag.String("listen", "", "HTTP listen address (overrides config)")
	dbPath      = flag.String("db", "", "SQLite database path (overrides config)")
	eventLog    = flag.String("events", "", "CBOR event log path (overrides config)")
	logLevel    = flag.String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
	interact    = flag.Bool("interactive", false, "Enable the interactive console")
	showVersion = flag.Bool("version", false, "Show version information")
)

const shutdownTimeout = 10 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()

	if *showVersion {
		fmt.Printf("mycodo-output %s (built %s, commit %s)\n", Version, BuildDate, GitCommit)
		return 0
	}

	cfg, err := config.Load(*configFile, *envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	applyFlags(&cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	level, _ := config.ParseLevel(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// The console owns the terminal; logs go through it when enabled.
	var (
		console *interactive.Console
		logOut  io.Writer = os.Stderr
	)
	if *interact {
		console, err = interactive.New()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		logOut = console.Stdout()
	}
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: level}))

	logger.Info("mycodo output daemon",
		"version", Version,
		"listen", cfg.Listen,
		"database", cfg.Database,
		"simulate", cfg.Simulate)

	if err := serve(ctx, cancel, cfg, logger, logOut, console); err != nil {
		logger.Error("daemon failed", "error", err)
		return 1
	}
	logger.Info("goodbye")
	return 0
}

func applyFlags(cfg *config.Config) {
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *dbPath != "" {
		cfg.Database = *dbPath
	}
	if *eventLog != "" {
		cfg.EventLog = *eventLog
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
}

func serve(ctx context.Context, cancel context.CancelFunc, cfg config.Config, logger *slog.Logger, accessLog io.Writer, console *interactive.Console) error {
	store, err := persistence.NewStore(cfg.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	m := metrics.New()

	mqttClient, err := connectMQTT(cfg, logger)
	if err != nil {
		return err
	}
	if mqttClient != nil {
		defer mqttClient.Disconnect(250)
	}

	events, err := buildEventLogger(cfg, logger, m, mqttClient)
	if err != nil {
		return err
	}
	defer events.Close()

	drivers := buildDrivers(cfg, logger, mqttClient)

	svcCfg := service.DefaultConfig()
	svcCfg.DriverTimeout = cfg.DriverTimeout
	svcCfg.Logger = logger
	svcCfg.EventLogger = events.Logger()
	svcCfg.Metrics = m

	svc, err := service.New(store, drivers, svcCfg)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := svc.Stop(); err != nil {
			logger.Warn("stop service", "error", err)
		}
	}()
	logger.Info("outputs loaded", "count", len(svc.List()), "drivers", drivers.Types())

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           NewServer(svc, ServerConfig{Version: Version, Metrics: m, Logger: logger, AccessLog: accessLog}).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.MDNS.Advertise {
		adv, err := advertise(cfg, logger, drivers.Types())
		if err != nil {
			// Discovery is a convenience; the API stays reachable by address.
			logger.Warn("mdns advertisement failed", "error", err)
		} else {
			defer adv.Stop()
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	events.Start(gctx, g)

	g.Go(func() error {
		logger.Info("listening", "addr", cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
		defer done()
		return srv.Shutdown(shutdownCtx)
	})
	if console != nil {
		g.Go(func() error {
			console.Run(gctx, svc, cancel)
			return nil
		})
	}

	return g.Wait()
}
