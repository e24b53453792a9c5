package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"parking-ledger/internal/config"
	"parking-ledger/internal/logging"
	"parking-ledger/internal/parking"
	"parking-ledger/internal/scheduler"
	"parking-ledger/internal/server"
	"parking-ledger/internal/storage"
)

var (
	mode       = flag.String("mode", "cli", "Mode to run: cli, server, or both")
	port       = flag.String("port", "", "Port for HTTP server (overrides config)")
	configPath = flag.String("config", "parking.toml", "Path to the TOML config file")
)

type app struct {
	cfg       *config.Config
	telemetry *parking.TelemetryProvider
	store     storage.Store
	ledger    *parking.InstrumentedLedger
}

func main() {
	flag.Parse()

	if err := validateMode(*mode); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *port != "" {
		cfg.Server.Port = *port
	}

	// The shell owns stdout in interactive modes.
	var logOut io.Writer = os.Stdout
	if *mode != "server" {
		logOut = os.Stderr
	}
	logging.Init(logOut, cfg.IsDevelopment(), cfg.Logs.Level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, cfg)
	if err != nil {
		logging.Logger().Fatal().Err(err).Msg("failed to start")
	}
	defer a.close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	switch *mode {
	case "cli":
		a.runCLI(ctx, cancel, sigChan)
	case "server":
		a.runServer(ctx, cancel, sigChan)
	case "both":
		a.runBoth(ctx, cancel, sigChan)
	}
}

func validateMode(m string) error {
	switch m {
	case "cli", "server", "both":
		return nil
	default:
		return fmt.Errorf("invalid mode %q, must be cli, server, or both", m)
	}
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	telemetryProvider, err := parking.NewTelemetryProvider(ctx, parking.TelemetryOptions{
		Enabled:     cfg.Telemetry.Enabled,
		ServiceName: cfg.Telemetry.ServiceName,
		Endpoint:    cfg.Telemetry.Endpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize telemetry: %w", err)
	}

	rates, err := parking.RatesFromConfig(cfg.Rates)
	if err != nil {
		return nil, fmt.Errorf("configure rates: %w", err)
	}

	store, err := storage.Open(storage.Options{
		Driver:    cfg.Storage.Driver,
		Path:      cfg.Storage.Path,
		BadgerDir: cfg.Storage.BadgerDir,
	})
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	ledger, err := parking.NewInstrumentedLedger(
		parking.NewLedger(cfg.Lot.TotalSpots, parking.WithRates(rates)),
		store,
		telemetryProvider,
	)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("create ledger: %w", err)
	}

	if err := ledger.Load(ctx); err != nil {
		logging.Warn(ctx).Err(err).Msg("could not load saved state, starting with an empty ledger")
	}

	return &app{
		cfg:       cfg,
		telemetry: telemetryProvider,
		store:     store,
		ledger:    ledger,
	}, nil
}

func (a *app) runCLI(ctx context.Context, cancel context.CancelFunc, sigChan chan os.Signal) {
	go func() {
		<-sigChan
		logging.Logger().Info().Msg("shutting down")
		cancel()
	}()

	shell := parking.NewShell(a.ledger, a.telemetry, os.Stdin, os.Stdout, a.cfg.Reports.Dir)
	shell.Run(ctx)
}

func (a *app) runServer(ctx context.Context, cancel context.CancelFunc, sigChan chan os.Signal) {
	srv, stopBackground := a.startServer(ctx)

	go func() {
		<-sigChan
		logging.Logger().Info().Msg("received shutdown signal")
		a.shutdownServer(srv)
		cancel()
	}()

	logging.Logger().Info().Str("url", srv.GetAddress()).Msg("parking ledger API available")
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logging.Logger().Error().Err(err).Msg("server error")
	}

	stopBackground()
}

func (a *app) runBoth(ctx context.Context, cancel context.CancelFunc, sigChan chan os.Signal) {
	srv, stopBackground := a.startServer(ctx)

	logging.Logger().Info().Str("url", srv.GetAddress()).Msg("parking ledger API available")
	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Start()
	}()

	cliDone := make(chan bool, 1)
	go func() {
		shell := parking.NewShell(a.ledger, a.telemetry, os.Stdin, os.Stdout, a.cfg.Reports.Dir)
		shell.Run(ctx)
		cliDone <- true
	}()

	go func() {
		<-sigChan
		logging.Logger().Info().Msg("received shutdown signal")
		cancel()
	}()

	select {
	case err := <-serverDone:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Logger().Error().Err(err).Msg("server error")
		}
	case <-cliDone:
		logging.Logger().Info().Msg("CLI exited")
	case <-ctx.Done():
		logging.Logger().Info().Msg("context cancelled")
	}

	a.shutdownServer(srv)
	cancel()
	stopBackground()
}

// startServer builds the HTTP server, its websocket hub and the optional
// report scheduler. The returned func stops the hub and scheduler.
func (a *app) startServer(ctx context.Context) (*server.Server, func()) {
	hubCtx, stopHub := context.WithCancel(ctx)
	hub := server.NewHub(a.ledger)
	go hub.Run(hubCtx)
	a.ledger.OnChange(hub.Publish)

	var reports *scheduler.ReportScheduler
	if a.cfg.Reports.Schedule != "" {
		s, err := scheduler.New(a.ledger, a.cfg.Reports.Dir, a.cfg.Reports.Schedule)
		if err != nil {
			logging.Logger().Error().Err(err).Msg("report scheduler disabled")
		} else {
			reports = s
			reports.Start()
		}
	}

	srv := server.NewServer(server.Options{
		Port:        a.cfg.Server.Port,
		ReportDir:   a.cfg.Reports.Dir,
		ServiceName: a.cfg.Telemetry.ServiceName,
	}, a.ledger, hub)

	return srv, func() {
		stopHub()
		if reports != nil {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer stopCancel()
			reports.Stop(stopCtx)
		}
	}
}

func (a *app) shutdownServer(srv *server.Server) {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Logger().Error().Err(err).Msg("server shutdown error")
	}
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		logging.Logger().Error().Err(err).Msg("error closing storage")
	}

	logging.Logger().Info().Msg("shutting down telemetry")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := a.telemetry.Shutdown(shutdownCtx); err != nil {
		logging.Logger().Error().Err(err).Msg("error shutting down telemetry")
	}
}
