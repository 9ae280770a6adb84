// Package metrics exposes Prometheus collectors for output control.
//
// All methods are safe on a nil *Metrics, so components take an optional
// *Metrics and never check it.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mycodo"

// Metrics holds the collectors and the registry they are registered with.
type Metrics struct {
	registry *prometheus.Registry

	commandsTotal   *prometheus.CounterVec
	driverDuration  *prometheus.HistogramVec
	queueWait       prometheus.Histogram
	timersFired     *prometheus.CounterVec
	publishFailures *prometheus.CounterVec

	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "output_commands_total",
			Help:      "Output commands by type, action and result.",
		}, []string{"output_type", "action", "result"}),
		driverDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "output_driver_duration_seconds",
			Help:      "Duration of driver calls by output type and action.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10, 30},
		}, []string{"output_type", "action"}),
		queueWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "output_queue_wait_seconds",
			Help:      "Time commands waited for their output's execution lock.",
			Buckets:   prometheus.DefBuckets,
		}),
		timersFired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "output_timers_fired_total",
			Help:      "Timed-on expirations, split by whether the automatic off ran.",
		}, []string{"outcome"}),
		publishFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_publish_failures_total",
			Help:      "Events that could not be published, by sink.",
		}, []string{"sink"}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request durations by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	m.registry.MustRegister(
		m.commandsTotal,
		m.driverDuration,
		m.queueWait,
		m.timersFired,
		m.publishFailures,
		m.httpRequestsTotal,
		m.httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveCommand records a command result. driverTime is zero when no
// driver call was made.
func (m *Metrics) ObserveCommand(outputType, action, result string, driverTime time.Duration) {
	if m == nil {
		return
	}
	m.commandsTotal.WithLabelValues(outputType, action, result).Inc()
	if driverTime > 0 {
		m.driverDuration.WithLabelValues(outputType, action).Observe(driverTime.Seconds())
	}
}

// ObserveQueueWait records the time a command waited for its output.
func (m *Metrics) ObserveQueueWait(d time.Duration) {
	if m == nil {
		return
	}
	m.queueWait.Observe(d.Seconds())
}

// TimerFired records a timer expiry. superseded is true when a newer
// command made the automatic off unnecessary.
func (m *Metrics) TimerFired(superseded bool) {
	if m == nil {
		return
	}
	outcome := "off"
	if superseded {
		outcome = "superseded"
	}
	m.timersFired.WithLabelValues(outcome).Inc()
}

// PublishFailed records an event a sink could not deliver.
func (m *Metrics) PublishFailed(sink string) {
	if m == nil {
		return
	}
	m.publishFailures.WithLabelValues(sink).Inc()
}

// StatusCounter returns the number of outputs per status name.
type StatusCounter func() map[string]int

// RegisterStatusGauge exports mycodo_outputs{status} computed from fn at
// scrape time.
func (m *Metrics) RegisterStatusGauge(fn StatusCounter) {
	if m == nil {
		return
	}
	m.registry.MustRegister(&statusCollector{
		desc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "outputs"),
			"Configured outputs by current status.",
			[]string{"status"}, nil,
		),
		count: fn,
	})
}

type statusCollector struct {
	desc  *prometheus.Desc
	count StatusCounter
}

func (c *statusCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

func (c *statusCollector) Collect(ch chan<- prometheus.Metric) {
	for status, n := range c.count() {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, float64(n), status)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// WrapHandler counts and times requests to next under the route label.
func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
