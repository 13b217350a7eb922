// Package api provides the HTTP surface of ecosensor.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/saveecobot/ecosensor/internal/api/handler"
	"github.com/saveecobot/ecosensor/internal/api/middleware"
	"github.com/saveecobot/ecosensor/internal/entity"
	"github.com/saveecobot/ecosensor/internal/provider/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	Catalog   handler.StationCatalog
	Sensors   *entity.Registry
	Providers *resilience.Registry
	Poller    handler.PollReporter

	// RateLimit overrides the per-IP limit of read endpoints.
	RateLimit int
}

// NewRouter creates a new chi router with all routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "ecosensor"
	}
	sensors := cfg.Sensors
	if sensors == nil {
		sensors = entity.NewRegistry()
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.ContentTypeJSON)

	opsHandler := handler.NewOpsHandler(handler.OpsHandlerConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Cache:     cfg.Catalog,
		Providers: cfg.Providers,
		Poller:    cfg.Poller,
	})
	stationsHandler := handler.NewStationsHandler(cfg.Catalog, cfg.Logger)
	sensorsHandler := handler.NewSensorsHandler(sensors)

	readLimit := middleware.StandardRateLimit
	if cfg.RateLimit > 0 {
		readLimit.RequestLimit = cfg.RateLimit
	}
	standardRateLimit := middleware.RateLimitByIP(readLimit)
	refreshRateLimit := middleware.RateLimitByIP(middleware.RefreshRateLimit)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})

		r.Group(func(r chi.Router) {
			r.Use(standardRateLimit)

			r.Get("/cities", stationsHandler.ListCities)
			r.Get("/cities/{city}/stations", stationsHandler.ListCityStations)
			r.Get("/stations", stationsHandler.ListStations)

			r.Get("/sensors", sensorsHandler.ListSensors)
			r.Get("/sensors/{uniqueId}", sensorsHandler.GetSensor)
		})

		// Forces an upstream fetch, so it gets a much tighter limit.
		r.With(refreshRateLimit).Post("/refresh", stationsHandler.Refresh)
	})

	return r
}
