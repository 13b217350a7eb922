package entity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/saveecobot/ecosensor/internal/saveecobot"
)

// Action and notification identifiers.
const (
	ActionShowCities       = "show_cities"
	ActionShowCityStations = "show_city_stations"

	NotificationCities       = "save_eco_bot_show_cities"
	NotificationCityStations = "save_eco_bot_show_city_stations"

	missingCityPlaceholder = "<please provide `city: city_name` in service data>"
)

// ErrNoCities is returned by the setup flow when the API reports no cities.
var ErrNoCities = errors.New("no cities available")

// Notification is human-readable output of a host action.
type Notification struct {
	ID      string `json:"notification_id"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// ShowCities lists every city in the catalog.
func ShowCities(cat Catalog) Notification {
	return Notification{
		ID:      NotificationCities,
		Title:   "SaveEcoBot Cities",
		Message: "Available cities:\n" + strings.Join(cat.Cities(), "\n"),
	}
}

// ShowCityStations lists the stations of a city as "<id> - <name>" lines.
func ShowCityStations(cat Catalog, city string) Notification {
	if city == "" {
		city = missingCityPlaceholder
	}

	lines := make([]string, 0)
	for _, ref := range cat.CityStations(city) {
		lines = append(lines, ref.ID+" - "+ref.Name)
	}

	return Notification{
		ID:      NotificationCityStations,
		Title:   "SaveEcoBot Stations",
		Message: fmt.Sprintf("Stations in %s:\n\n%s", city, strings.Join(lines, "\n")),
	}
}

// CityChoices force-refreshes the catalog and returns the selectable cities.
func CityChoices(ctx context.Context, cat Catalog) ([]string, error) {
	if _, err := cat.Refresh(ctx, true); err != nil {
		return nil, err
	}
	cities := cat.Cities()
	if len(cities) == 0 {
		return nil, ErrNoCities
	}
	return cities, nil
}

// StationChoices force-refreshes the catalog and returns the stations of a city.
func StationChoices(ctx context.Context, cat Catalog, city string) ([]saveecobot.StationRef, error) {
	if _, err := cat.Refresh(ctx, true); err != nil {
		return nil, err
	}
	return cat.CityStations(city), nil
}

// ResolveEntry turns the station step of the setup flow into entry options.
// Selecting all stations stores no ids so new stations in the city are picked up.
func ResolveEntry(city string, selectAll bool, picked []string) EntryOptions {
	ids := []string{}
	if !selectAll {
		ids = append(ids, picked...)
	}
	return EntryOptions{City: city, StationIDs: ids}
}

// EntryTitle is the display title of an entry for a city.
func EntryTitle(city string) string {
	return "SaveEcoBot: " + city
}
