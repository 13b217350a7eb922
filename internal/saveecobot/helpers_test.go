package saveecobot_test

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/saveecobot/ecosensor/internal/saveecobot"
)

// stationJSON builds an upstream station object with one pollutant per label.
func stationJSON(id, city, name string, labels ...string) json.RawMessage {
	pols := make([]string, 0, len(labels))
	for i, label := range labels {
		pols = append(pols, fmt.Sprintf(
			`{"pol":%q,"unit":"mg/m3","time":"2024-03-05 14:07:09","value":%d.5,"averaging":"2 minutes"}`,
			label, i+10,
		))
	}
	return json.RawMessage(fmt.Sprintf(
		`{"id":%q,"cityName":%q,"stationName":%q,"localName":"local %s","timezone":"+0200","latitude":"50.45","longitude":30.52,"pollutants":[%s]}`,
		id, city, name, name, strings.Join(pols, ","),
	))
}

func ptr[T any](v T) *T {
	return &v
}

func testStations() []saveecobot.Station {
	observed := time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)
	return []saveecobot.Station{
		{
			ID:          "SAVEDNIPRO_1",
			CityName:    "Kyiv",
			StationName: "Khreshchatyk St, 1",
			LocalName:   "Хрещатик, 1",
			Timezone:    "+0200",
			Latitude:    50.45,
			Longitude:   30.52,
			Pollutants: []saveecobot.Pollutant{
				{Kind: saveecobot.KindPM25, RawUnit: "mg/m3", ObservedAt: &observed, Value: ptr(12.5), Averaging: "2 minutes"},
				{Kind: saveecobot.KindTemperature, RawUnit: "Celcius", ObservedAt: &observed, Value: ptr(-3.0), Averaging: "2 minutes"},
			},
		},
		{
			ID:          "SAVEDNIPRO_2",
			CityName:    "Kyiv",
			StationName: "StationA",
			Timezone:    "+0200",
			Pollutants: []saveecobot.Pollutant{
				{Kind: saveecobot.KindPM10, RawUnit: "mg/m3", Averaging: "1 hour"},
			},
		},
		{
			ID:          "SAVEDNIPRO_3",
			CityName:    "Lviv",
			StationName: "StationA",
			Timezone:    "+0200",
		},
		{
			ID:          "SAVEDNIPRO_4",
			CityName:    "Dnipro",
			StationName: "Central",
			Timezone:    "+0200",
			Pollutants: []saveecobot.Pollutant{
				{Kind: saveecobot.KindAQI, RawUnit: "", Value: ptr(42.0), Averaging: "1 hour"},
			},
		},
	}
}

// mockProvider is a test provider that returns configurable data.
type mockProvider struct {
	mu         sync.Mutex
	entries    []json.RawMessage
	err        error
	fetchCount atomic.Int32
	fetchDelay time.Duration
}

func (m *mockProvider) FetchStations(ctx context.Context) ([]json.RawMessage, error) {
	m.fetchCount.Add(1)
	if m.fetchDelay > 0 {
		select {
		case <-time.After(m.fetchDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.entries, nil
}

func (m *mockProvider) set(entries []json.RawMessage, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = entries
	m.err = err
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
