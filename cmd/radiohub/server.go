package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"radiohub/internal/api"
	"radiohub/internal/app"
	"radiohub/internal/config"
	"radiohub/internal/event"
	"radiohub/internal/logging"
	"radiohub/internal/metrics"
	"radiohub/internal/protocol"
	"radiohub/internal/schedule"
)

const readHeaderTimeout = 5 * time.Second

func run(args []string) int {
	flags, err := parseFlags(args, os.Stdout)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) || errors.Is(err, errVersionShown) {
			return 0
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}

	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}

	output, closeOutput := logOutput(cfg)
	defer closeOutput()
	logger := logging.NewLoggerWithOutput(logging.NewLogBuffer(logging.DefaultBufferSize), flags.logLevel(cfg.Level()), output)

	// Validate guarantees the timezone loads.
	location, _ := cfg.Location()
	logger.SetLocation(location)
	logger.Info("configuration loaded", map[string]string{
		"network":     cfg.System.NetworkName,
		"address":     cfg.Address(),
		"https":       strconv.FormatBool(cfg.Configuration.HTTPSEnable),
		"acl_backend": cfg.Configuration.ACLBackend,
		"threshold":   strconv.Itoa(cfg.Configuration.GrantDenyOccurrence),
		"timezone":    location.String(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := metrics.Default
	store, closeStore, err := app.LoadStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("acl store unavailable", map[string]string{"error": err.Error()})
		return 1
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warn("acl store close failed", map[string]string{"error": err.Error()})
		}
	}()

	notifier := app.LoadNotifier(ctx, cfg, logger, registry)
	defer notifier.Wait()

	loop := schedule.NewLoop(logger.ForCategory("schedule"))
	go loop.Run(ctx)

	bus := event.NewBus[protocol.Message](ctx, event.BusOptions{
		Name:                 "console",
		SubscriberBufferSize: cfg.Configuration.SubscriberBuffer,
		Registry:             registry,
		Logger:               logger.ForCategory("event"),
		TraceEvents:          flags.Verbose,
		Unbounded:            true,
	})

	console, err := app.Build(app.BuildOptions{
		Context:   ctx,
		Logger:    logger,
		Metrics:   registry,
		Scheduler: loop,
		Publisher: bus,
		Store:     store,
		Notifier:  notifier,
		Stamper:   protocol.NewStamper(location),
		Polarity:  cfg.Polarity(),
		Threshold: cfg.Configuration.GrantDenyOccurrence,
		SystemRID: cfg.System.SystemRID,
	})
	if err != nil {
		logger.Error("console build failed", map[string]string{"error": err.Error()})
		return 1
	}

	mux := http.NewServeMux()
	api.RegisterRoutes(mux, api.RoutesOptions{
		Router:         console.Router,
		Bus:            bus,
		Metrics:        registry,
		Logger:         logger,
		AllowedOrigins: cfg.Configuration.AllowedOrigins,
		NetworkName:    cfg.System.NetworkName,
	})
	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serve := server.ListenAndServe
	if cfg.Configuration.HTTPSEnable {
		serve = func() error {
			return server.ListenAndServeTLS(cfg.Paths.TLSCert, cfg.Paths.TLSKey)
		}
	}

	stopSignals := make(chan os.Signal, 2)
	signal.Notify(stopSignals, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stopSignals)
	stopCtx, stop := context.WithCancel(ctx)
	defer stop()
	stopWatching := watchShutdownSignals(logger, stop, stopSignals)
	defer stopWatching()

	logger.Info("radiohub listening", map[string]string{
		"addr":  server.Addr,
		"https": strconv.FormatBool(cfg.Configuration.HTTPSEnable),
	})

	runner := &ServerRunner{
		Logger:          logger,
		ShutdownTimeout: httpServerShutdownTimeout,
	}
	serverErr := runner.Run(stopCtx, ManagedServer{
		Name:     "console",
		Serve:    serve,
		Shutdown: server.Shutdown,
	})
	drainConsole(console.Gatekeeper, cancel, loop.Done(), drainTimeout, logger)
	if serverErr != nil {
		return 1
	}
	logger.Info("radiohub stopped", nil)
	return 0
}

// logOutput writes to stdout and, when configured, a rotated log file.
func logOutput(cfg *config.Config) (io.Writer, func()) {
	if cfg.Paths.LogFile == "" {
		return os.Stdout, func() {}
	}
	file := logging.NewFileOutput(logging.FileOptions{
		Path:       cfg.Paths.LogFile,
		MaxSizeMB:  cfg.System.LogMaxSizeMB,
		MaxBackups: cfg.System.LogMaxBackups,
	})
	return io.MultiWriter(os.Stdout, file), func() { _ = file.Close() }
}
