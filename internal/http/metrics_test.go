package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestHTTPMetrics_MetricsMiddleware(t *testing.T) {
	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader))
	m := newHTTPMetrics(mp.Meter(httpInstrumentationName), nil)

	e := echo.New()
	e.Use(m.MetricsMiddleware())
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.POST("/solve", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"solution": "4"})
	})
	e.POST("/feedback", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusBadRequest, "rating is required")
	})

	for _, r := range []struct{ method, path string }{
		{http.MethodGet, "/health"},
		{http.MethodPost, "/solve"},
		{http.MethodPost, "/feedback"},
	} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(r.method, r.path, nil))
	}

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	found := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			found[md.Name] = true
			if md.Name != "mathrag.http.requests_total" {
				continue
			}
			sum, ok := md.Data.(metricdata.Sum[int64])
			require.True(t, ok)

			var total int64
			statusByEndpoint := map[string]int64{}
			for _, dp := range sum.DataPoints {
				total += dp.Value
				ep, _ := dp.Attributes.Value(attribute.Key("endpoint"))
				st, _ := dp.Attributes.Value(attribute.Key("status"))
				statusByEndpoint[ep.AsString()] = st.AsInt64()
			}
			assert.Equal(t, int64(3), total)
			assert.Equal(t, int64(http.StatusBadRequest), statusByEndpoint["/feedback"])
			assert.Equal(t, int64(http.StatusOK), statusByEndpoint["/solve"])
		}
	}

	assert.True(t, found["mathrag.http.requests_total"])
	assert.True(t, found["mathrag.http.request_duration_seconds"])
	assert.True(t, found["mathrag.http.response_size_bytes"])
}

func TestHTTPMetrics_NilSafe(t *testing.T) {
	var m *HTTPMetrics
	e := echo.New()
	e.Use(m.MetricsMiddleware())
	e.GET("/", func(c echo.Context) error { return errors.New("boom") })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"", "unmatched"},
		{"/solve", "/solve"},
		{"/solve/stream", "/solve/stream"},
		{"/feedback/analytics", "/feedback/analytics"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizePath(tt.path))
		})
	}
}
