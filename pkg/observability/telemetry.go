package observability

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	sentinel "github.com/goliatone/go-sentinel/components/sentinel"
)

// PrometheusTelemetry turns sentinel telemetry events into Prometheus series.
type PrometheusTelemetry struct {
	events   *prometheus.CounterVec
	cycles   *prometheus.HistogramVec
	gate     *prometheus.CounterVec
	gatherer prometheus.Gatherer
}

var _ sentinel.Telemetry = (*PrometheusTelemetry)(nil)

// NewPrometheusTelemetry registers the collectors on a fresh registry.
func NewPrometheusTelemetry() (*PrometheusTelemetry, error) {
	reg := prometheus.NewRegistry()
	t := &PrometheusTelemetry{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sentinel",
			Name:      "events_total",
			Help:      "Telemetry events by name and panel.",
		}, []string{"event", "panel"}),
		cycles: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sentinel",
			Name:      "poll_cycle_duration_seconds",
			Help:      "Refresh cycle latencies by panel and outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"panel", "outcome"}),
		gate: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sentinel",
			Name:      "gate_decisions_total",
			Help:      "Auth gate decisions by reason.",
		}, []string{"reason"}),
		gatherer: reg,
	}
	for _, c := range []prometheus.Collector{t.events, t.cycles, t.gate} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Record implements sentinel.Telemetry.
func (t *PrometheusTelemetry) Record(_ context.Context, event string, payload map[string]any) {
	panel, _ := payload["panel"].(string)
	t.events.WithLabelValues(event, panel).Inc()

	if outcome, ok := strings.CutPrefix(event, "sentinel.poll."); ok && outcome != "skipped" {
		if ms, ok := durationMillis(payload["duration_ms"]); ok {
			t.cycles.WithLabelValues(panel, outcome).Observe((time.Duration(ms) * time.Millisecond).Seconds())
		}
	}
	if event == "sentinel.gate" {
		reason, _ := payload["reason"].(string)
		t.gate.WithLabelValues(reason).Inc()
	}
}

// Gatherer exposes the registry, mostly for tests.
func (t *PrometheusTelemetry) Gatherer() prometheus.Gatherer { return t.gatherer }

// Handler serves the metrics in the Prometheus exposition format.
func (t *PrometheusTelemetry) Handler() http.Handler {
	return promhttp.HandlerFor(t.gatherer, promhttp.HandlerOpts{})
}

func durationMillis(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

// LogTelemetry writes every event to a zap logger at debug level.
type LogTelemetry struct {
	Logger *zap.Logger
}

// Record implements sentinel.Telemetry.
func (t LogTelemetry) Record(_ context.Context, event string, payload map[string]any) {
	if t.Logger == nil {
		return
	}
	t.Logger.Debug(event, zap.Any("payload", payload))
}

// Fanout forwards events to every wrapped sink.
type Fanout []sentinel.Telemetry

// Record implements sentinel.Telemetry.
func (f Fanout) Record(ctx context.Context, event string, payload map[string]any) {
	for _, sink := range f {
		if sink != nil {
			sink.Record(ctx, event, payload)
		}
	}
}
