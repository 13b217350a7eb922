package saveecobot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/saveecobot/ecosensor/internal/telemetry"
)

const (
	// DefaultCacheWindow is the minimum interval between non-forced fetches.
	DefaultCacheWindow = 30 * time.Second

	tracerName = "github.com/saveecobot/ecosensor/internal/saveecobot"
)

// ErrBadResponse marks an upstream reply that arrived but could not be used,
// such as a non-200 status or an unreadable body.
var ErrBadResponse = errors.New("bad upstream response")

// Provider fetches the raw station array from the upstream API.
// Errors wrapping ErrBadResponse are routine; anything else is a transport failure.
type Provider interface {
	FetchStations(ctx context.Context) ([]json.RawMessage, error)
}

// ServiceConfig holds configuration for the station service.
type ServiceConfig struct {
	// Provider is the upstream data source.
	Provider Provider

	// Logger for service operations.
	Logger zerolog.Logger

	// CacheWindow is how long a refresh stays fresh (default: 30 seconds).
	CacheWindow time.Duration

	// Metrics records cache and request statistics. Optional.
	Metrics *telemetry.ProviderMetrics

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Service fetches, validates and caches SaveEcoBot stations.
type Service struct {
	provider    Provider
	logger      zerolog.Logger
	cacheWindow time.Duration
	metrics     *telemetry.ProviderMetrics
	tracer      trace.Tracer
	now         func() time.Time

	// fetchMu serializes upstream fetches so overlapping refreshes share one.
	fetchMu sync.Mutex

	mu          sync.RWMutex
	snapshot    *snapshot
	refreshedAt time.Time
}

// snapshot is never mutated after it is published.
type snapshot struct {
	stations []Station
	rejected int
}

// NewService creates a new station service.
func NewService(cfg ServiceConfig) *Service {
	window := cfg.CacheWindow
	if window == 0 {
		window = DefaultCacheWindow
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		provider:    cfg.Provider,
		logger:      cfg.Logger,
		cacheWindow: window,
		metrics:     cfg.Metrics,
		tracer:      otel.Tracer(tracerName),
		now:         now,
	}
}

// Refresh brings the cached stations up to date.
//
// Within the cache window, and unless force is set, it returns (true, nil) without
// contacting the upstream API. A bad upstream reply yields (false, nil) and leaves the
// cache untouched. Transport failures yield (false, err) with err wrapping ErrNotReady.
func (s *Service) Refresh(ctx context.Context, force bool) (bool, error) {
	if !force && s.isFresh() {
		s.logger.Debug().Msg("refresh called, using cached stations")
		s.metrics.RecordCacheHit("refresh")
		return true, nil
	}

	s.fetchMu.Lock()
	defer s.fetchMu.Unlock()

	// Another caller may have completed a fetch while we waited.
	if !force && s.isFresh() {
		s.logger.Debug().Msg("refresh completed by concurrent caller, using cached stations")
		s.metrics.RecordCacheHit("refresh")
		return true, nil
	}

	s.metrics.RecordCacheMiss("refresh")
	return s.fetch(ctx)
}

func (s *Service) fetch(ctx context.Context) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "saveecobot.fetch_stations")
	defer span.End()

	s.logger.Info().Msg("performing saveecobot api call")

	start := time.Now()
	entries, err := s.provider.FetchStations(ctx)
	s.metrics.RecordRequest("fetch_stations", time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		if errors.Is(err, ErrBadResponse) {
			s.logger.Error().Err(err).Msg("failed api response, keeping cached stations")
			return false, nil
		}

		s.logger.Error().Err(err).Msg("failed to connect to saveecobot api")
		return false, fmt.Errorf("%w: %w", ErrNotReady, err)
	}

	stations, rejects := ParseStations(entries)
	for _, r := range rejects {
		s.logger.Warn().
			Err(r.Err).
			Int("index", r.Index).
			RawJSON("payload", r.Payload).
			Msg("validation error, skipping station")
	}

	now := s.now()
	s.mu.Lock()
	s.snapshot = &snapshot{
		stations: stations,
		rejected: len(rejects),
	}
	s.refreshedAt = now
	s.mu.Unlock()

	s.metrics.RecordSnapshot(len(stations), len(rejects))
	span.SetAttributes(
		attribute.Int("saveecobot.stations", len(stations)),
		attribute.Int("saveecobot.rejected", len(rejects)),
	)

	s.logger.Debug().
		Int("stations", len(stations)).
		Int("rejected", len(rejects)).
		Msg("updated from api call")

	return true, nil
}

func (s *Service) isFresh() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.refreshedAt.IsZero() {
		return false
	}
	return s.now().Sub(s.refreshedAt) < s.cacheWindow
}

func (s *Service) current() []Station {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil {
		return nil
	}
	return s.snapshot.stations
}

// Stations returns a copy of every cached station.
func (s *Service) Stations() []Station {
	return FilterStations(s.current(), Filter{})
}

// FilterStations returns copies of the cached stations matching f.
func (s *Service) FilterStations(f Filter) []Station {
	return FilterStations(s.current(), f)
}

// Cities returns the sorted distinct city names in the cache.
func (s *Service) Cities() []string {
	return Cities(s.current())
}

// CityStations lists the cached stations of a city.
func (s *Service) CityStations(city string) []StationRef {
	return CityStations(s.current(), city)
}

// FindSensor looks up the sensor record for a station and kind.
func (s *Service) FindSensor(stationID string, kind Kind) (SensorRecord, bool) {
	return FindSensor(s.current(), stationID, kind)
}

// CacheStatus represents the current state of the cache.
type CacheStatus struct {
	HasData      bool
	RefreshedAt  time.Time
	IsFresh      bool
	StationCount int
	Rejected     int
}

// Status returns information about the current cache state.
func (s *Service) Status() CacheStatus {
	fresh := s.isFresh()

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.snapshot == nil {
		return CacheStatus{}
	}
	return CacheStatus{
		HasData:      true,
		RefreshedAt:  s.refreshedAt,
		IsFresh:      fresh,
		StationCount: len(s.snapshot.stations),
		Rejected:     s.snapshot.rejected,
	}
}
