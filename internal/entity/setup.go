package entity

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/saveecobot/ecosensor/internal/saveecobot"
)

// Catalog is the station service as seen by the setup paths.
type Catalog interface {
	StationSource
	FilterStations(f saveecobot.Filter) []saveecobot.Station
	Cities() []string
	CityStations(city string) []saveecobot.StationRef
}

// EntryOptions is the selection stored by the interactive setup flow:
// one city, optionally narrowed to explicit station ids.
type EntryOptions struct {
	City       string   `json:"city" mapstructure:"city"`
	StationIDs []string `json:"station_ids" mapstructure:"station_ids"`
}

// Filter returns the station filter for the options.
// Station ids take precedence over the city. Empty options select nothing.
func (o EntryOptions) Filter() (saveecobot.Filter, bool) {
	switch {
	case len(o.StationIDs) > 0:
		return saveecobot.Filter{StationIDs: o.StationIDs}, true
	case o.City != "":
		return saveecobot.Filter{CityNames: []string{o.City}}, true
	default:
		return saveecobot.Filter{}, false
	}
}

// Selection is the declarative platform selection. All non-empty lists must match.
type Selection struct {
	StationIDs   []string `json:"station_ids" mapstructure:"station_ids"`
	CityNames    []string `json:"city_names" mapstructure:"city_names"`
	StationNames []string `json:"station_names" mapstructure:"station_names"`
}

// Filter returns the station filter for the selection.
// An empty selection selects nothing.
func (s Selection) Filter() (saveecobot.Filter, bool) {
	f := saveecobot.Filter{
		StationIDs:   s.StationIDs,
		CityNames:    s.CityNames,
		StationNames: s.StationNames,
	}
	return f, !f.IsEmpty()
}

// SetupEntry force-refreshes the catalog and creates sensors for the entry options.
// It returns an error wrapping saveecobot.ErrNotReady when the API is unreachable.
func SetupEntry(ctx context.Context, cat Catalog, opts EntryOptions, logger zerolog.Logger) ([]*Sensor, error) {
	f, ok := opts.Filter()
	return setup(ctx, cat, f, ok, logger.With().Str("setup", "entry").Str("city", opts.City).Logger())
}

// SetupPlatform force-refreshes the catalog and creates sensors for the selection.
// It returns an error wrapping saveecobot.ErrNotReady when the API is unreachable.
func SetupPlatform(ctx context.Context, cat Catalog, sel Selection, logger zerolog.Logger) ([]*Sensor, error) {
	f, ok := sel.Filter()
	return setup(ctx, cat, f, ok, logger.With().Str("setup", "platform").Logger())
}

func setup(ctx context.Context, cat Catalog, f saveecobot.Filter, selected bool, logger zerolog.Logger) ([]*Sensor, error) {
	refreshed, err := cat.Refresh(ctx, true)
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to saveecobot servers")
		return nil, fmt.Errorf("setup sensors: %w", err)
	}
	if !refreshed {
		logger.Warn().Msg("initial refresh failed, using cached stations")
	}

	sensors := make([]*Sensor, 0)
	if !selected {
		logger.Info().Msg("empty selection, no sensors added")
		return sensors, nil
	}

	for _, st := range cat.FilterStations(f) {
		for _, rec := range saveecobot.Project(st) {
			sensors = append(sensors, NewSensor(cat, rec, logger))
		}
	}

	if len(sensors) == 0 {
		logger.Info().Msg("selection matched no stations, no sensors added")
		return sensors, nil
	}

	logger.Debug().Int("sensors", len(sensors)).Msg("setup done")
	return sensors, nil
}
