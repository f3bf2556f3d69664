// Package metrics exposes Prometheus counters and histograms for the daemon.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the application. Each collector
// owns its registry so tests can create as many as they like.
type Collector struct {
	registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	Dispatches *prometheus.CounterVec

	Summaries       *prometheus.CounterVec
	SummaryDuration *prometheus.HistogramVec
	ChannelResets   prometheus.Counter
	BreakerState    *prometheus.GaugeVec

	Splits *prometheus.CounterVec
	Jobs   *prometheus.CounterVec
}

// NewCollector creates and registers all metrics under namespace.
func NewCollector(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		Dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_messages_total",
			Help:      "Dispatched messages by action and outcome",
		}, []string{"action", "success"}),
		Summaries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summaries_total",
			Help:      "Summary generations by kind (node, report) and outcome",
		}, []string{"kind", "outcome"}),
		SummaryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "summary_duration_seconds",
			Help:      "Summary generation duration in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 90, 120},
		}, []string{"kind"}),
		ChannelResets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summary_channel_resets_total",
			Help:      "Times the summarization channel was torn down after a timeout",
		}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ai_breaker_open",
			Help:      "1 while the AI backend circuit breaker is not closed",
		}, []string{"state"}),
		Splits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chain_splits_total",
			Help:      "Chain splits by trigger (daily, manual)",
		}, []string{"trigger"}),
		Jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Background jobs by type and outcome",
		}, []string{"type", "outcome"}),
	}

	c.registry.MustRegister(
		c.HTTPRequests, c.HTTPDuration, c.Dispatches,
		c.Summaries, c.SummaryDuration, c.ChannelResets, c.BreakerState,
		c.Splits, c.Jobs,
	)
	return c
}

// Handler serves the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) ObserveSummary(kind, outcome string, d time.Duration) {
	c.Summaries.WithLabelValues(kind, outcome).Inc()
	c.SummaryDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func (c *Collector) ChannelReset() {
	c.ChannelResets.Inc()
}

// BreakerChanged records a circuit breaker transition.
func (c *Collector) BreakerChanged(from, to string) {
	c.BreakerState.WithLabelValues(from).Set(0)
	c.BreakerState.WithLabelValues(to).Set(1)
}

func (c *Collector) ObserveSplit(trigger string) {
	c.Splits.WithLabelValues(trigger).Inc()
}

func (c *Collector) ObserveJob(jobType, outcome string) {
	c.Jobs.WithLabelValues(jobType, outcome).Inc()
}

func (c *Collector) ObserveDispatch(action string, success bool) {
	s := "false"
	if success {
		s = "true"
	}
	c.Dispatches.WithLabelValues(action, s).Inc()
}

// ObserveHTTP records one HTTP request.
func (c *Collector) ObserveHTTP(method, route string, status int, d time.Duration) {
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
