package observability

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("json", "debug")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	logger, err = NewLogger("console", "warn")
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))

	_, err = NewLogger("xml", "info")
	assert.Error(t, err)
	_, err = NewLogger("json", "loud")
	assert.Error(t, err)
}

func TestPrometheusTelemetryRecordsCycles(t *testing.T) {
	telemetry, err := NewPrometheusTelemetry()
	require.NoError(t, err)
	ctx := context.Background()

	telemetry.Record(ctx, "sentinel.poll.ok", map[string]any{"panel": "dashboard", "duration_ms": int64(120)})
	telemetry.Record(ctx, "sentinel.poll.error", map[string]any{"panel": "dashboard", "duration_ms": int64(40)})
	telemetry.Record(ctx, "sentinel.poll.skipped", map[string]any{"panel": "dashboard"})
	telemetry.Record(ctx, "sentinel.gate", map[string]any{"reason": "missing_token"})

	assert.Equal(t, 1.0, testutil.ToFloat64(telemetry.events.WithLabelValues("sentinel.poll.ok", "dashboard")))
	assert.Equal(t, 1.0, testutil.ToFloat64(telemetry.events.WithLabelValues("sentinel.poll.skipped", "dashboard")))
	assert.Equal(t, 1.0, testutil.ToFloat64(telemetry.gate.WithLabelValues("missing_token")))
	assert.Equal(t, 2, testutil.CollectAndCount(telemetry.cycles))

	rec := httptest.NewRecorder()
	telemetry.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), "sentinel_poll_cycle_duration_seconds")
	assert.Contains(t, string(body), `sentinel_events_total{event="sentinel.poll.ok",panel="dashboard"} 1`)
}

func TestLogTelemetryAndFanout(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	prom, err := NewPrometheusTelemetry()
	require.NoError(t, err)

	sink := Fanout{LogTelemetry{Logger: zap.New(core)}, prom, nil}
	sink.Record(context.Background(), "sentinel.login", map[string]any{"scope": "op"})

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "sentinel.login", logs.All()[0].Message)
	assert.Equal(t, 1.0, testutil.ToFloat64(prom.events.WithLabelValues("sentinel.login", "")))

	LogTelemetry{}.Record(context.Background(), "ignored", nil)
}
