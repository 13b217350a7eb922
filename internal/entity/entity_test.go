package entity_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saveecobot/ecosensor/internal/entity"
	"github.com/saveecobot/ecosensor/internal/saveecobot"
)

const feed = `[
	{"id":"S1","cityName":"Kyiv","stationName":"Khreshchatyk","localName":"Хрещатик","timezone":"+0200","latitude":50.4,"longitude":30.5,
	 "pollutants":[
		{"pol":"PM2.5","unit":"mg/m3","time":"2024-03-05 14:07:09","value":12.5,"averaging":"2 minutes"},
		{"pol":"Temperature","unit":"Celcius","time":"2024-03-05 14:07:09","value":-3,"averaging":"2 minutes"}
	 ]},
	{"id":"S2","cityName":"Kyiv","stationName":"StationA","localName":"","timezone":"+0200","latitude":50.5,"longitude":30.6,
	 "pollutants":[{"pol":"PM10","unit":"mg/m3","time":null,"value":20,"averaging":"1 hour"}]},
	{"id":"S3","cityName":"Lviv","stationName":"StationA","localName":"","timezone":"+0200","latitude":49.8,"longitude":24.0,
	 "pollutants":[{"pol":"Humidity","unit":"%","time":null,"value":81,"averaging":"1 hour"}]}
]`

type stubProvider struct {
	mu   sync.Mutex
	body string
	err  error
}

func (p *stubProvider) FetchStations(_ context.Context) ([]json.RawMessage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	var entries []json.RawMessage
	if err := json.Unmarshal([]byte(p.body), &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (p *stubProvider) set(body string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.body = body
	p.err = err
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newService(provider saveecobot.Provider) (*saveecobot.Service, *clock) {
	c := &clock{now: time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)}
	svc := saveecobot.NewService(saveecobot.ServiceConfig{
		Provider: provider,
		Logger:   zerolog.New(io.Discard),
		Now:      c.Now,
	})
	return svc, c
}

var discard = zerolog.New(io.Discard)

func uniqueIDs(sensors []*entity.Sensor) []string {
	ids := make([]string, 0, len(sensors))
	for _, s := range sensors {
		ids = append(ids, s.UniqueID())
	}
	return ids
}

func TestSetupEntry(t *testing.T) {
	tests := []struct {
		name     string
		opts     entity.EntryOptions
		expected []string
	}{
		{
			name:     "city selects all its stations",
			opts:     entity.EntryOptions{City: "Kyiv"},
			expected: []string{"s1_kyiv_pm2_5", "s1_kyiv_temperature", "s2_kyiv_pm10"},
		},
		{
			name:     "station ids take precedence over city",
			opts:     entity.EntryOptions{City: "Kyiv", StationIDs: []string{"S3"}},
			expected: []string{"s3_lviv_humidity"},
		},
		{
			name:     "empty options select nothing",
			opts:     entity.EntryOptions{},
			expected: []string{},
		},
		{
			name:     "unknown city selects nothing",
			opts:     entity.EntryOptions{City: "Atlantis"},
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newService(&stubProvider{body: feed})

			sensors, err := entity.SetupEntry(context.Background(), svc, tt.opts, discard)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, uniqueIDs(sensors))
		})
	}
}

func TestSetupPlatform(t *testing.T) {
	tests := []struct {
		name     string
		sel      entity.Selection
		expected []string
	}{
		{
			name:     "cities and names intersect",
			sel:      entity.Selection{CityNames: []string{"Kyiv"}, StationNames: []string{"StationA"}},
			expected: []string{"s2_kyiv_pm10"},
		},
		{
			name:     "names only",
			sel:      entity.Selection{StationNames: []string{"StationA"}},
			expected: []string{"s2_kyiv_pm10", "s3_lviv_humidity"},
		},
		{
			name:     "ids only",
			sel:      entity.Selection{StationIDs: []string{"S1"}},
			expected: []string{"s1_kyiv_pm2_5", "s1_kyiv_temperature"},
		},
		{
			name:     "empty selection",
			sel:      entity.Selection{},
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newService(&stubProvider{body: feed})

			sensors, err := entity.SetupPlatform(context.Background(), svc, tt.sel, discard)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, uniqueIDs(sensors))
		})
	}
}

func TestSetup_NotReady(t *testing.T) {
	svc, _ := newService(&stubProvider{err: errors.New("connection refused")})

	sensors, err := entity.SetupEntry(context.Background(), svc, entity.EntryOptions{City: "Kyiv"}, discard)
	assert.ErrorIs(t, err, saveecobot.ErrNotReady)
	assert.Nil(t, sensors)

	sensors, err = entity.SetupPlatform(context.Background(), svc, entity.Selection{CityNames: []string{"Kyiv"}}, discard)
	assert.ErrorIs(t, err, saveecobot.ErrNotReady)
	assert.Nil(t, sensors)
}

func TestSensor_Properties(t *testing.T) {
	svc, _ := newService(&stubProvider{body: feed})
	sensors, err := entity.SetupPlatform(context.Background(), svc, entity.Selection{StationIDs: []string{"S1"}}, discard)
	require.NoError(t, err)
	require.Len(t, sensors, 2)

	pm := sensors[0]
	assert.Equal(t, "PM2_5 (Kyiv, Khreshchatyk)", pm.Name())
	assert.Equal(t, "S1", pm.StationID())
	assert.Equal(t, saveecobot.KindPM25, pm.Kind())
	assert.True(t, pm.Available())
	require.NotNil(t, pm.NativeValue())
	assert.Equal(t, 12.5, *pm.NativeValue())
	assert.Equal(t, "mg/m³", pm.Unit())
	assert.Equal(t, "pm25", pm.DeviceClass())
	assert.Equal(t, "measurement", pm.StateClass())

	attrs := pm.ExtraAttributes()
	assert.NotContains(t, attrs, "unit_of_measurement")
	assert.Equal(t, "Kyiv", attrs["city"])
	assert.Equal(t, "Khreshchatyk", attrs["address"])
	assert.Equal(t, "Хрещатик", attrs["local_name"])
	assert.Equal(t, "05.03.2024, 14:07:09", attrs["updated_at"])
	assert.Equal(t, "2 minutes", attrs["averaging"])

	temp := sensors[1]
	assert.Equal(t, "°C", temp.Unit())
	assert.Equal(t, "temperature", temp.DeviceClass())
}

func TestSensor_Update(t *testing.T) {
	provider := &stubProvider{body: feed}
	svc, clk := newService(provider)
	ctx := context.Background()

	sensors, err := entity.SetupPlatform(ctx, svc, entity.Selection{StationIDs: []string{"S2"}}, discard)
	require.NoError(t, err)
	require.Len(t, sensors, 1)
	sensor := sensors[0]

	// New reading, still inside the cache window: nothing changes.
	provider.set(`[{"id":"S2","cityName":"Kyiv","stationName":"StationA","localName":"","timezone":"+0200","latitude":50.5,"longitude":30.6,
		"pollutants":[{"pol":"PM10","unit":"mg/m3","time":null,"value":35,"averaging":"1 hour"}]}]`, nil)
	require.NoError(t, sensor.Update(ctx))
	assert.Equal(t, 20.0, *sensor.NativeValue())

	clk.Advance(31 * time.Second)
	require.NoError(t, sensor.Update(ctx))
	assert.Equal(t, 35.0, *sensor.NativeValue())
	assert.True(t, sensor.Available())
}

func TestSensor_Update_StationRemoved(t *testing.T) {
	provider := &stubProvider{body: feed}
	svc, clk := newService(provider)
	ctx := context.Background()

	sensors, err := entity.SetupPlatform(ctx, svc, entity.Selection{StationIDs: []string{"S3"}}, discard)
	require.NoError(t, err)
	require.Len(t, sensors, 1)
	sensor := sensors[0]
	id := sensor.UniqueID()

	provider.set(`[]`, nil)
	clk.Advance(31 * time.Second)

	require.NoError(t, sensor.Update(ctx))
	assert.False(t, sensor.Available())
	assert.Nil(t, sensor.NativeValue())
	assert.Equal(t, id, sensor.UniqueID())
	assert.True(t, sensor.Record().Stale)

	// The station comes back.
	provider.set(feed, nil)
	clk.Advance(31 * time.Second)

	require.NoError(t, sensor.Update(ctx))
	assert.True(t, sensor.Available())
	assert.Equal(t, 81.0, *sensor.NativeValue())
}

func TestSensor_Update_TransportError(t *testing.T) {
	provider := &stubProvider{body: feed}
	svc, clk := newService(provider)
	ctx := context.Background()

	sensors, err := entity.SetupPlatform(ctx, svc, entity.Selection{StationIDs: []string{"S3"}}, discard)
	require.NoError(t, err)
	sensor := sensors[0]

	provider.set("", context.DeadlineExceeded)
	clk.Advance(31 * time.Second)

	err = sensor.Update(ctx)
	assert.ErrorIs(t, err, saveecobot.ErrNotReady)
	assert.True(t, sensor.Available(), "last good reading is kept")
	assert.Equal(t, 81.0, *sensor.NativeValue())
}

func TestShowCities(t *testing.T) {
	svc, _ := newService(&stubProvider{body: feed})
	_, err := svc.Refresh(context.Background(), true)
	require.NoError(t, err)

	n := entity.ShowCities(svc)
	assert.Equal(t, entity.NotificationCities, n.ID)
	assert.Equal(t, "SaveEcoBot Cities", n.Title)
	assert.Equal(t, "Available cities:\nKyiv\nLviv", n.Message)
}

func TestShowCityStations(t *testing.T) {
	svc, _ := newService(&stubProvider{body: feed})
	_, err := svc.Refresh(context.Background(), true)
	require.NoError(t, err)

	n := entity.ShowCityStations(svc, "Kyiv")
	assert.Equal(t, entity.NotificationCityStations, n.ID)
	assert.Equal(t, "SaveEcoBot Stations", n.Title)
	assert.Equal(t, "Stations in Kyiv:\n\nS1 - Khreshchatyk\nS2 - StationA", n.Message)

	assert.Equal(t, "Stations in Atlantis:\n\n", entity.ShowCityStations(svc, "Atlantis").Message)
	assert.Contains(t, entity.ShowCityStations(svc, "").Message, "please provide `city: city_name`")
}

func TestCityChoices(t *testing.T) {
	svc, _ := newService(&stubProvider{body: feed})
	cities, err := entity.CityChoices(context.Background(), svc)
	require.NoError(t, err)
	assert.Equal(t, []string{"Kyiv", "Lviv"}, cities)

	empty, _ := newService(&stubProvider{body: `[]`})
	_, err = entity.CityChoices(context.Background(), empty)
	assert.ErrorIs(t, err, entity.ErrNoCities)

	down, _ := newService(&stubProvider{err: errors.New("no route to host")})
	_, err = entity.CityChoices(context.Background(), down)
	assert.ErrorIs(t, err, saveecobot.ErrNotReady)
}

func TestStationChoices(t *testing.T) {
	svc, _ := newService(&stubProvider{body: feed})
	refs, err := entity.StationChoices(context.Background(), svc, "Lviv")
	require.NoError(t, err)
	assert.Equal(t, []saveecobot.StationRef{{ID: "S3", Name: "StationA"}}, refs)
}

func TestResolveEntry(t *testing.T) {
	assert.Equal(t,
		entity.EntryOptions{City: "Kyiv", StationIDs: []string{}},
		entity.ResolveEntry("Kyiv", true, []string{"S1"}),
	)
	assert.Equal(t,
		entity.EntryOptions{City: "Kyiv", StationIDs: []string{"S1", "S2"}},
		entity.ResolveEntry("Kyiv", false, []string{"S1", "S2"}),
	)
	assert.Equal(t, "SaveEcoBot: Kyiv", entity.EntryTitle("Kyiv"))
}

func TestRegistry(t *testing.T) {
	svc, _ := newService(&stubProvider{body: feed})
	sensors, err := entity.SetupPlatform(context.Background(), svc, entity.Selection{CityNames: []string{"Kyiv"}}, discard)
	require.NoError(t, err)
	require.Len(t, sensors, 3)

	reg := entity.NewRegistry()
	assert.Equal(t, 3, reg.Add(sensors...))
	assert.Equal(t, 0, reg.Add(sensors[0]), "duplicate ids are skipped")
	assert.Equal(t, 3, reg.Len())
	assert.Equal(t, uniqueIDs(sensors), uniqueIDs(reg.All()))

	s, ok := reg.Get("s2_kyiv_pm10")
	require.True(t, ok)
	assert.Equal(t, "S2", s.StationID())

	_, ok = reg.Get("missing")
	assert.False(t, ok)
}
