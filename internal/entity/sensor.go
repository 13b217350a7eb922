// Package entity exposes SaveEcoBot readings as host sensor entities.
package entity

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/saveecobot/ecosensor/internal/saveecobot"
)

// StationSource is the part of the station service sensors depend on.
type StationSource interface {
	Refresh(ctx context.Context, force bool) (bool, error)
	FindSensor(stationID string, kind saveecobot.Kind) (saveecobot.SensorRecord, bool)
}

// Sensor is one registered reading of a station.
type Sensor struct {
	source StationSource
	logger zerolog.Logger
	name   string

	mu     sync.RWMutex
	record saveecobot.SensorRecord
}

// NewSensor creates a sensor entity from a projected record.
func NewSensor(source StationSource, record saveecobot.SensorRecord, logger zerolog.Logger) *Sensor {
	return &Sensor{
		source: source,
		logger: logger.With().Str("sensor", record.UniqueID).Logger(),
		name:   record.Name,
		record: record,
	}
}

// Name is fixed at registration and does not follow upstream renames.
func (s *Sensor) Name() string {
	return s.name
}

// UniqueID returns the stable identity of the sensor.
func (s *Sensor) UniqueID() string {
	return s.Record().UniqueID
}

// StationID returns the station the sensor reads from.
func (s *Sensor) StationID() string {
	return s.Record().StationID
}

// Kind returns the measured quantity.
func (s *Sensor) Kind() saveecobot.Kind {
	return s.Record().Kind
}

// Record returns a copy of the current sensor record.
func (s *Sensor) Record() saveecobot.SensorRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.record
}

// Available reports whether the sensor currently has upstream data.
func (s *Sensor) Available() bool {
	return !s.Record().Stale
}

// NativeValue returns the current reading, or nil when unavailable.
func (s *Sensor) NativeValue() *float64 {
	rec := s.Record()
	if rec.Stale || rec.State == nil {
		return nil
	}
	v := *rec.State
	return &v
}

// Unit returns the display unit of the reading.
func (s *Sensor) Unit() string {
	return s.Record().Attributes.UnitOfMeasurement
}

// DeviceClass returns the host classification of the reading.
func (s *Sensor) DeviceClass() string {
	return s.Kind().Info().DeviceClass
}

// StateClass returns the host state class of the reading.
func (s *Sensor) StateClass() string {
	return s.Kind().Info().StateClass
}

// ExtraAttributes returns the state attributes without the unit of measurement.
func (s *Sensor) ExtraAttributes() map[string]any {
	attrs := s.Record().Attributes
	var updatedAt any
	if attrs.UpdatedAt != nil {
		updatedAt = *attrs.UpdatedAt
	}
	return map[string]any{
		"city":       attrs.City,
		"address":    attrs.Address,
		"local_name": attrs.LocalName,
		"timezone":   attrs.Timezone,
		"latitude":   attrs.Latitude,
		"longitude":  attrs.Longitude,
		"updated_at": updatedAt,
		"averaging":  attrs.Averaging,
	}
}

// Update refreshes the station cache if due and reloads the sensor's record.
// A missing station or kind marks the sensor unavailable; it is not an error.
// Transport failures are returned so the host can log them.
func (s *Sensor) Update(ctx context.Context) error {
	if _, err := s.source.Refresh(ctx, false); err != nil {
		return fmt.Errorf("update %s: %w", s.name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.source.FindSensor(s.record.StationID, s.record.Kind)
	if !ok {
		s.record.Stale = true
		s.logger.Debug().
			Str("station_id", s.record.StationID).
			Str("kind", s.record.Kind.Label()).
			Msg("got no data from api, sensor unavailable")
		return nil
	}

	s.record = rec
	s.logger.Debug().Msg("sensor updated")
	return nil
}
