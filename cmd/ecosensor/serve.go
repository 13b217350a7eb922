package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/saveecobot/ecosensor/internal/api"
	"github.com/saveecobot/ecosensor/internal/api/middleware"
	"github.com/saveecobot/ecosensor/internal/entity"
	"github.com/saveecobot/ecosensor/internal/provider/resilience"
	"github.com/saveecobot/ecosensor/internal/saveecobot/upstream"
	"github.com/saveecobot/ecosensor/internal/telemetry"
	"github.com/saveecobot/ecosensor/internal/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Poll SaveEcoBot and serve sensors over HTTP",
	Long: `Set up the configured sensors, update them on every poll interval and
serve stations, sensors and operational status over HTTP.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg := app.cfg
	log := app.logger

	log.Info().
		Str("build_time", BuildTime).
		Str("api_url", cfg.API.URL).
		Msg("starting ecosensor")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Telemetry.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
		SampleRatio:    cfg.Telemetry.SampleRatio,
		Logger:         log,
	})
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()
	if cfg.Telemetry.Enabled {
		log.Info().Str("otlp_endpoint", cfg.Telemetry.OTLPEndpoint).Msg("OpenTelemetry initialized")
	}

	httpMetrics, err := middleware.NewMetrics()
	if err != nil {
		return fmt.Errorf("initialize http metrics: %w", err)
	}
	providerMetrics, err := telemetry.NewProviderMetrics(upstream.ProviderName)
	if err != nil {
		return fmt.Errorf("initialize provider metrics: %w", err)
	}

	providers := resilience.NewRegistry()
	svc := newStationService(cfg.API, log, providers, providerMetrics)

	sensors, err := setupWithRetry(ctx, svc, cfg.Selection, log)
	if err != nil {
		return err
	}
	registry := entity.NewRegistry()
	added := registry.Add(sensors...)
	log.Info().Int("sensors", added).Msg("sensors registered")

	updaters := make([]worker.Updater, 0, added)
	for _, s := range registry.All() {
		updaters = append(updaters, s)
	}
	poller := worker.NewPollJob(worker.PollJobConfig{
		Config: worker.PollConfig{
			Interval:    cfg.Poll.Interval,
			Concurrency: cfg.Poll.Concurrency,
			Timeout:     cfg.API.Timeout,
		},
		Logger:  log.With().Str("component", "poller").Logger(),
		Sensors: updaters,
	})
	pollDone := make(chan struct{})
	go func() {
		defer close(pollDone)
		poller.Start(ctx)
	}()

	router := api.NewRouter(api.RouterConfig{
		Version:     Version,
		BuildTime:   BuildTime,
		Logger:      log,
		ServiceName: serviceName,
		Metrics:     httpMetrics,
		Catalog:     svc,
		Sensors:     registry,
		Providers:   providers,
		Poller:      poller,
		RateLimit:   cfg.Server.RateLimit,
	})

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			stop()
			<-pollDone
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	<-pollDone

	log.Info().Msg("server stopped")
	return nil
}
