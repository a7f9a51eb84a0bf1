package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestNew_Disabled(t *testing.T) {
	tel, err := New(context.Background(), nil)
	require.NoError(t, err)

	assert.NotNil(t, tel.Tracer("test"))
	assert.NotNil(t, tel.Meter("test"))
	assert.False(t, tel.IsEnabled())
	assert.NoError(t, tel.Check(context.Background()))
	assert.True(t, tel.Health().Healthy)
}

func TestNew_InvalidConfig(t *testing.T) {
	tel, err := New(context.Background(), &Config{Enabled: true})
	assert.ErrorContains(t, err, "invalid telemetry config")
	assert.Nil(t, tel)
}

func TestNew_EnabledUsesLazyExporters(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Enabled = true
	cfg.Protocol = ProtocolHTTP
	cfg.Endpoint = "http://localhost:4318"

	// OTLP exporters connect lazily, so no collector is needed here
	tel, err := New(context.Background(), cfg)
	require.NoError(t, err)
	assert.True(t, tel.IsEnabled())
	assert.False(t, tel.Health().Degraded)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = tel.Shutdown(ctx)
	assert.False(t, tel.IsEnabled())
}

func TestTelemetry_Degraded(t *testing.T) {
	tel, err := New(context.Background(), nil)
	require.NoError(t, err)

	tel.setDegraded("tracer provider: %s", "refused")

	h := tel.Health()
	assert.True(t, h.Degraded)
	assert.Equal(t, []string{"tracer provider: refused"}, h.Reasons)
	assert.ErrorContains(t, tel.Check(context.Background()), "refused")
}

func TestTelemetry_NilSafe(t *testing.T) {
	var tel *Telemetry

	assert.NotNil(t, tel.Tracer("x"))
	assert.NotNil(t, tel.Meter("x"))
	assert.Nil(t, tel.LoggerProvider())
	assert.False(t, tel.IsEnabled())
	assert.True(t, tel.Health().Degraded)
	assert.NoError(t, tel.Shutdown(context.Background()))
	assert.NoError(t, tel.ForceFlush(context.Background()))
	tel.SetLoggerProvider(nil)
}

func TestNewResource(t *testing.T) {
	res := newResource(NewDefaultConfig())

	v, ok := res.Set().Value(attribute.Key("service.name"))
	require.True(t, ok)
	assert.Equal(t, "mathrag", v.AsString())
}

func TestStripScheme(t *testing.T) {
	assert.Equal(t, "otel:4318", stripScheme("https://otel:4318"))
	assert.Equal(t, "otel:4318", stripScheme("http://otel:4318"))
	assert.Equal(t, "otel:4318", stripScheme("otel:4318"))
}

func TestTestTelemetry_Spans(t *testing.T) {
	tt := NewTestTelemetry()
	ctx := context.Background()

	_, span := tt.Tracer("test").Start(ctx, "ChromemStore.Search")
	span.SetAttributes(attribute.Int("k", 3), attribute.String("collection", "jee_math"))
	span.End()

	tt.AssertSpanExists(t, "ChromemStore.Search")
	tt.AssertSpanAttribute(t, "ChromemStore.Search", "k", int64(3))
	tt.AssertSpanAttribute(t, "ChromemStore.Search", "collection", "jee_math")
	assert.Nil(t, tt.SpanByName("missing"))
}

func TestTestTelemetry_Metrics(t *testing.T) {
	tt := NewTestTelemetry()
	ctx := context.Background()

	counter, err := tt.Meter("test").Int64Counter("mathrag.test.count")
	require.NoError(t, err)
	counter.Add(ctx, 2)

	assert.Contains(t, tt.MetricNames(ctx), "mathrag.test.count")
	require.NoError(t, tt.ForceFlush(ctx))
	require.NoError(t, tt.MetricReader.ForceFlush(ctx))
	assert.Len(t, tt.MetricReader.Metrics(), 1)
}
