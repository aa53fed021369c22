package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Metrics collects the outcome of runs. A nil *Metrics records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	Fetches       *prometheus.CounterVec
	Rate          *prometheus.GaugeVec
	Changes       prometheus.Counter
	Notifications *prometheus.CounterVec
	PersistErrors prometheus.Counter
	LastRun       prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ratewatch_fetch_total",
			Help: "Rate fetches by product and result.",
		}, []string{"product", "result"}),
		Rate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ratewatch_rate_percent",
			Help: "Last fetched best rate per product.",
		}, []string{"product"}),
		Changes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ratewatch_changes_total",
			Help: "Products whose rate changed.",
		}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ratewatch_notifications_total",
			Help: "Alert emails by result.",
		}, []string{"result"}),
		PersistErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ratewatch_persist_errors_total",
			Help: "Failed snapshot writes.",
		}),
		LastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ratewatch_last_run_timestamp_seconds",
			Help: "Unix time the last run finished.",
		}),
	}
	m.Registry.MustRegister(m.Fetches, m.Rate, m.Changes, m.Notifications, m.PersistErrors, m.LastRun)
	return m
}

func (m *Metrics) FetchOK(product string, rate float64) {
	if m == nil {
		return
	}
	m.Fetches.WithLabelValues(product, "ok").Inc()
	m.Rate.WithLabelValues(product).Set(rate)
}

func (m *Metrics) FetchFailed(product string) {
	if m == nil {
		return
	}
	m.Fetches.WithLabelValues(product, "error").Inc()
}

func (m *Metrics) Changed(n int) {
	if m == nil {
		return
	}
	m.Changes.Add(float64(n))
}

// Notified records an alert outcome: sent, skipped or error.
func (m *Metrics) Notified(result string) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(result).Inc()
}

func (m *Metrics) PersistFailed() {
	if m == nil {
		return
	}
	m.PersistErrors.Inc()
}

func (m *Metrics) Finished(at time.Time) {
	if m == nil {
		return
	}
	m.LastRun.Set(float64(at.Unix()))
}

// Push sends the registry to a Pushgateway under job.
func (m *Metrics) Push(url, job string) error {
	if m == nil || url == "" {
		return nil
	}
	if err := push.New(url, job).Gatherer(m.Registry).Push(); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
