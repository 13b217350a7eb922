package upstream_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saveecobot/ecosensor/internal/provider/resilience"
	"github.com/saveecobot/ecosensor/internal/saveecobot"
	"github.com/saveecobot/ecosensor/internal/saveecobot/upstream"
)

const feedBody = `[
	{"id":"SAVEDNIPRO_1","cityName":"Kyiv","stationName":"A","localName":"","timezone":"+0200","latitude":50.4,"longitude":30.5,
	 "pollutants":[{"pol":"PM2.5","unit":"mg/m3","time":"2024-03-05 14:07:09","value":12.5,"averaging":"2 minutes"}]},
	{"id":"SAVEDNIPRO_2","cityName":"Lviv","stationName":"B","localName":"","timezone":"+0200","latitude":49.8,"longitude":24.0,"pollutants":[]}
]`

func TestClient_FetchStations(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/output.json", r.URL.Path)
		assert.Empty(t, r.URL.RawQuery)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(feedBody))
	}))
	defer server.Close()

	client := upstream.NewClient(upstream.ClientConfig{
		URL:        server.URL + "/output.json",
		HTTPClient: http.DefaultClient,
	})

	entries, err := client.FetchStations(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)

	stations, rejects := saveecobot.ParseStations(entries)
	assert.Empty(t, rejects)
	require.Len(t, stations, 2)
	assert.Equal(t, "SAVEDNIPRO_1", stations[0].ID)
	assert.Equal(t, "Lviv", stations[1].CityName)
}

func TestClient_FetchStations_BadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("no such feed"))
	}))
	defer server.Close()

	client := upstream.NewClient(upstream.ClientConfig{
		URL:        server.URL,
		HTTPClient: http.DefaultClient,
	})

	_, err := client.FetchStations(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, saveecobot.ErrBadResponse)

	var statusErr *upstream.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.Equal(t, "no such feed", statusErr.Body)
}

func TestClient_FetchStations_NotAnArray(t *testing.T) {
	for _, body := range []string{`{"error":"maintenance"}`, `null`, `<html>`} {
		t.Run(body, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			defer server.Close()

			client := upstream.NewClient(upstream.ClientConfig{
				URL:        server.URL,
				HTTPClient: http.DefaultClient,
			})

			_, err := client.FetchStations(context.Background())
			assert.ErrorIs(t, err, saveecobot.ErrBadResponse)

			var decodeErr *upstream.DecodeError
			assert.ErrorAs(t, err, &decodeErr)
		})
	}
}

func TestClient_FetchStations_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	url := server.URL
	server.Close()

	client := upstream.NewClient(upstream.ClientConfig{
		URL:     url,
		Timeout: time.Second,
	})

	_, err := client.FetchStations(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, saveecobot.ErrBadResponse), "transport errors are not bad responses")
}

func TestClient_FetchStations_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(300 * time.Millisecond)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := upstream.NewClient(upstream.ClientConfig{
		URL:     server.URL,
		Timeout: 50 * time.Millisecond,
	})

	_, err := client.FetchStations(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, saveecobot.ErrBadResponse))
}

func TestClient_DefaultClientDoesNotRetry(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	registry := resilience.NewRegistry()
	client := upstream.NewClient(upstream.ClientConfig{
		URL:      server.URL,
		Registry: registry,
	})

	_, err := client.FetchStations(context.Background())
	assert.ErrorIs(t, err, saveecobot.ErrBadResponse)
	assert.Equal(t, int32(1), attempts.Load())

	health := registry.GetHealth(upstream.ProviderName)
	require.NotNil(t, health)
	require.NotNil(t, health.LastFailureAt)
	assert.Nil(t, health.LastSuccessAt)
}

func TestClient_RegistryRecordsSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	registry := resilience.NewRegistry()
	client := upstream.NewClient(upstream.ClientConfig{
		URL:      server.URL,
		Registry: registry,
	})

	entries, err := client.FetchStations(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)

	health := registry.GetHealth(upstream.ProviderName)
	require.NotNil(t, health)
	assert.NotNil(t, health.LastSuccessAt)
	assert.True(t, health.IsHealthy())
}

func newService(client *upstream.Client) *saveecobot.Service {
	return saveecobot.NewService(saveecobot.ServiceConfig{
		Provider: client,
		Logger:   zerolog.Nop(),
	})
}

func TestService_RepeatedBadStatusNeverEscalates(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	registry := resilience.NewRegistry()
	svc := newService(upstream.NewClient(upstream.ClientConfig{URL: server.URL, Registry: registry}))

	for i := 0; i < 8; i++ {
		ok, err := svc.Refresh(context.Background(), true)
		require.NoError(t, err, "refresh %d", i+1)
		assert.False(t, ok, "refresh %d", i+1)
	}
	assert.Equal(t, int32(8), attempts.Load(), "every refresh reaches upstream")

	health := registry.GetHealth(upstream.ProviderName)
	require.NotNil(t, health)
	assert.Equal(t, gobreaker.StateClosed, health.CircuitState)
	assert.Equal(t, uint64(8), health.Failures)
	assert.True(t, health.IsDegraded())
}

func TestService_TransportFailuresOpenCircuit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	svc := newService(upstream.NewClient(upstream.ClientConfig{URL: url, Timeout: time.Second}))

	var err error
	for i := 0; i < 6; i++ {
		var ok bool
		ok, err = svc.Refresh(context.Background(), true)
		assert.False(t, ok)
		require.ErrorIs(t, err, saveecobot.ErrNotReady)
	}
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
}

func TestClient_FetchStations_StalledBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":`))
		w.(http.Flusher).Flush()
		select {
		case <-time.After(500 * time.Millisecond):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	client := upstream.NewClient(upstream.ClientConfig{
		URL:     server.URL,
		Timeout: 100 * time.Millisecond,
	})

	_, err := client.FetchStations(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, saveecobot.ErrBadResponse), "a timeout mid-body is a transport failure")
	var decodeErr *upstream.DecodeError
	assert.False(t, errors.As(err, &decodeErr))

	ok, err := newService(client).Refresh(context.Background(), true)
	assert.False(t, ok)
	assert.ErrorIs(t, err, saveecobot.ErrNotReady)
}

func TestClient_FetchStations_TruncatedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Length", "64")
		_, _ = w.Write([]byte(`[{"id":"SAVEDNIPRO_1"`))
	}))
	defer server.Close()

	client := upstream.NewClient(upstream.ClientConfig{URL: server.URL, HTTPClient: http.DefaultClient})

	_, err := client.FetchStations(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, saveecobot.ErrBadResponse))
}
