package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/saveecobot/ecosensor/internal/config"
	"github.com/saveecobot/ecosensor/internal/entity"
	"github.com/saveecobot/ecosensor/internal/provider/resilience"
	"github.com/saveecobot/ecosensor/internal/saveecobot"
	"github.com/saveecobot/ecosensor/internal/saveecobot/upstream"
	"github.com/saveecobot/ecosensor/internal/telemetry"
)

// setupMaxElapsed bounds how long serve keeps retrying an unreachable feed at startup.
const setupMaxElapsed = 5 * time.Minute

func newStationService(cfg config.APIConfig, logger zerolog.Logger, providers *resilience.Registry, metrics *telemetry.ProviderMetrics) *saveecobot.Service {
	client := upstream.NewClient(upstream.ClientConfig{
		URL:      cfg.URL,
		Timeout:  cfg.Timeout,
		Registry: providers,
		Logger:   logger,
	})

	return saveecobot.NewService(saveecobot.ServiceConfig{
		Provider:    client,
		Logger:      logger.With().Str("component", "saveecobot").Logger(),
		CacheWindow: cfg.CacheWindow,
		Metrics:     metrics,
	})
}

// loadStations performs one forced refresh for the query commands.
func loadStations(ctx context.Context, svc *saveecobot.Service) error {
	refreshed, err := svc.Refresh(ctx, true)
	if err != nil {
		return err
	}
	if !refreshed {
		return errors.New("saveecobot returned an unusable response")
	}
	return nil
}

func setupSensors(ctx context.Context, svc *saveecobot.Service, sel config.SelectionConfig, logger zerolog.Logger) ([]*entity.Sensor, error) {
	if sel.UsesEntry() {
		return entity.SetupEntry(ctx, svc, sel.Entry(), logger)
	}
	return entity.SetupPlatform(ctx, svc, sel.Platform(), logger)
}

// setupWithRetry retries setup with exponential backoff while the feed is unreachable.
func setupWithRetry(ctx context.Context, svc *saveecobot.Service, sel config.SelectionConfig, logger zerolog.Logger) ([]*entity.Sensor, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 2 * time.Second
	bo.MaxInterval = time.Minute
	bo.MaxElapsedTime = setupMaxElapsed

	var sensors []*entity.Sensor
	operation := func() error {
		var err error
		sensors, err = setupSensors(ctx, svc, sel, logger)
		if err != nil && !errors.Is(err, saveecobot.ErrNotReady) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn().Err(err).Dur("retry_in", wait).Msg("saveecobot not ready, retrying setup")
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(bo, ctx), notify); err != nil {
		return nil, fmt.Errorf("setup sensors: %w", err)
	}
	return sensors, nil
}
