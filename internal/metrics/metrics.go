// Package metrics exposes probe and switching activity as Prometheus metrics.
package metrics

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hazz-dev/dnsswitch/internal/events"
	"github.com/hazz-dev/dnsswitch/internal/prober"
	"github.com/hazz-dev/dnsswitch/internal/selector"
)

// Metrics holds the instruments on a private registry.
type Metrics struct {
	r             *prometheus.Registry
	Latency       *prometheus.GaugeVec
	Up            *prometheus.GaugeVec
	Rounds        prometheus.Counter
	RoundDuration prometheus.Histogram
	Reachable     prometheus.Gauge
	Decisions     *prometheus.CounterVec
	Drifts        prometheus.Counter
}

// New creates and registers every instrument.
func New() *Metrics {
	r := prometheus.NewRegistry()

	m := &Metrics{
		r: r,
		Latency: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dnsswitch_probe_latency_seconds",
			Help: "latency of the last probe of each candidate",
		}, []string{"endpoint"}),
		Up: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dnsswitch_probe_up",
			Help: "1 if the last probe of the candidate succeeded",
		}, []string{"endpoint"}),
		Rounds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dnsswitch_rounds_total",
			Help: "count of completed probing rounds",
		}),
		RoundDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dnsswitch_round_duration_seconds",
			Help:    "wall-clock duration of probing rounds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		Reachable: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dnsswitch_reachable_candidates",
			Help: "number of candidates reachable in the last round",
		}),
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dnsswitch_decisions_total",
			Help: "count of round decisions",
		}, []string{"action", "need_switch"}),
		Drifts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dnsswitch_drift_total",
			Help: "count of out-of-band resolver changes adopted",
		}),
	}

	r.MustRegister(m.Latency, m.Up, m.Rounds, m.RoundDuration, m.Reachable, m.Decisions, m.Drifts)

	return m
}

// Handler serves the registry in the Prometheus exposition formats.
func (m *Metrics) Handler(logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return promhttp.HandlerFor(m.r, promhttp.HandlerOpts{
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
		Registry:          m.r,
		EnableOpenMetrics: true,
	})
}

// Observe records per-endpoint results from the event stream.
func (m *Metrics) Observe(e events.Event) {
	if e.Kind != events.ResultUpdated {
		return
	}
	if !e.Reachable {
		m.Up.WithLabelValues(e.Endpoint).Set(0)
		m.Latency.DeleteLabelValues(e.Endpoint)
		return
	}
	m.Up.WithLabelValues(e.Endpoint).Set(1)
	m.Latency.WithLabelValues(e.Endpoint).Set(e.Latency.Seconds())
}

// ObserveRound implements monitor.RoundObserver.
func (m *Metrics) ObserveRound(d time.Duration, results []prober.Result, dec selector.Decision) {
	m.Rounds.Inc()
	m.RoundDuration.Observe(d.Seconds())
	m.Reachable.Set(float64(len(dec.Ranked)))

	needSwitch := "false"
	if dec.NeedSwitch {
		needSwitch = "true"
	}
	m.Decisions.WithLabelValues(dec.Action.String(), needSwitch).Inc()
}

// ObserveDrift implements monitor.DriftObserver.
func (m *Metrics) ObserveDrift(prev, observed selector.Pair) {
	m.Drifts.Inc()
}
