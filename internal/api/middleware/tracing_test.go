package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/saveecobot/ecosensor/internal/api/middleware"
)

// tracedSensorRoute serves GET /v1/sensors/{uniqueId} answering status, records spans
// in memory and returns the single ended span.
func tracedSensorRoute(t *testing.T, req *http.Request, status int, before ...func(http.Handler) http.Handler) sdktrace.ReadOnlySpan {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	r := chi.NewRouter()
	r.Use(before...)
	r.Use(middleware.Tracing("ecosensor"))
	r.Get("/v1/sensors/{uniqueId}", func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, trace.SpanFromContext(r.Context()).SpanContext().IsValid())
		w.WriteHeader(status)
	})

	r.ServeHTTP(httptest.NewRecorder(), req)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	return spans[0]
}

func spanAttr(span sdktrace.ReadOnlySpan, key attribute.Key) (attribute.Value, bool) {
	for _, attr := range span.Attributes() {
		if attr.Key == key {
			return attr.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTracing_Span(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/sensors/s1_kyiv_pm10?x=1", http.NoBody)
	span := tracedSensorRoute(t, req, http.StatusOK)

	assert.Equal(t, "GET /v1/sensors/{uniqueId}", span.Name())
	assert.Equal(t, trace.SpanKindServer, span.SpanKind())
	assert.Equal(t, codes.Unset, span.Status().Code)

	want := map[attribute.Key]string{
		"service.name":        "ecosensor",
		"http.route":          "/v1/sensors/{uniqueId}",
		"url.path":            "/v1/sensors/s1_kyiv_pm10",
		"url.query":           "x=1",
		"http.request.method": "GET",
	}
	for key, value := range want {
		got, ok := spanAttr(span, key)
		require.True(t, ok, "missing %s", key)
		assert.Equal(t, value, got.AsString(), key)
	}
}

func TestTracing_StatusCodes(t *testing.T) {
	tests := []struct {
		name   string
		status int
		code   codes.Code
	}{
		{name: "unknown sensor", status: http.StatusNotFound, code: codes.Unset},
		{name: "bad upstream", status: http.StatusBadGateway, code: codes.Error},
		{name: "upstream down", status: http.StatusServiceUnavailable, code: codes.Error},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/sensors/s9_lviv_humidity", http.NoBody)
			span := tracedSensorRoute(t, req, tt.status)

			value, ok := spanAttr(span, "http.response.status_code")
			require.True(t, ok)
			assert.Equal(t, int64(tt.status), value.AsInt64())
			assert.Equal(t, tt.code, span.Status().Code)
			if tt.code == codes.Error {
				assert.Equal(t, http.StatusText(tt.status), span.Status().Description)
			}
		})
	}
}

func TestTracing_ContinuesIncomingTrace(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/sensors/s1_kyiv_pm10", http.NoBody)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")

	span := tracedSensorRoute(t, req, http.StatusOK)

	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", span.SpanContext().TraceID().String())
	assert.Equal(t, "00f067aa0ba902b7", span.Parent().SpanID().String())
}

func TestTracing_RequestIDAttribute(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/sensors/s1_kyiv_pm10", http.NoBody)
	req.Header.Set(middleware.RequestIDHeader, "ha-refresh-1")

	span := tracedSensorRoute(t, req, http.StatusOK, middleware.RequestID)

	value, ok := spanAttr(span, "request.id")
	require.True(t, ok)
	assert.Equal(t, "ha-refresh-1", value.AsString())
}
