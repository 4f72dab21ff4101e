package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var stageBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600}

type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal      *prometheus.CounterVec
	httpRequestDuration    *prometheus.HistogramVec
	upstreamRequestsTotal  *prometheus.CounterVec
	upstreamDuration       *prometheus.HistogramVec
	poolInUse              prometheus.Gauge
	poolAcquireWait        prometheus.Histogram
	jobsTotal              *prometheus.CounterVec
	jobDuration            *prometheus.HistogramVec
	stageDuration          *prometheus.HistogramVec
	transcriptionFallbacks prometheus.Counter
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scribeflow_http_requests_total",
				Help: "Total number of HTTP requests handled.",
			},
			[]string{"route", "method", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scribeflow_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method", "status"},
		),
		upstreamRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scribeflow_inference_requests_total",
				Help: "Total requests sent to model workers.",
			},
			[]string{"device", "endpoint", "status"},
		),
		upstreamDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scribeflow_inference_request_duration_seconds",
				Help:    "Model worker request duration in seconds.",
				Buckets: stageBuckets,
			},
			[]string{"device", "endpoint", "status"},
		),
		poolInUse: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "scribeflow_pool_slots_in_use",
				Help: "Number of model replicas currently leased to a job.",
			},
		),
		poolAcquireWait: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scribeflow_pool_acquire_wait_seconds",
				Help:    "Time jobs spent waiting for a free model replica.",
				Buckets: stageBuckets,
			},
		),
		jobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scribeflow_jobs_total",
				Help: "Jobs processed, by outcome.",
			},
			[]string{"outcome"},
		),
		jobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scribeflow_job_duration_seconds",
				Help:    "End-to-end job duration in seconds, including the wait for a replica.",
				Buckets: stageBuckets,
			},
			[]string{"outcome"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scribeflow_job_stage_duration_seconds",
				Help:    "Duration of individual job stages in seconds.",
				Buckets: stageBuckets,
			},
			[]string{"stage"},
		),
		transcriptionFallbacks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "scribeflow_transcription_fallback_total",
				Help: "Number of transcription passes retried after an empty result.",
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.upstreamRequestsTotal,
		m.upstreamDuration,
		m.poolInUse,
		m.poolAcquireWait,
		m.jobsTotal,
		m.jobDuration,
		m.stageDuration,
		m.transcriptionFallbacks,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveHTTP(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	if method == "" {
		method = "UNKNOWN"
	}
	statusLabel := strconv.Itoa(status)
	m.httpRequestsTotal.WithLabelValues(route, method, statusLabel).Inc()
	m.httpRequestDuration.WithLabelValues(route, method, statusLabel).Observe(duration.Seconds())
}

// UpstreamObserver returns a callback for the inference client of device.
func (m *Metrics) UpstreamObserver(device int) func(endpoint string, status int, duration time.Duration) {
	deviceLabel := strconv.Itoa(device)
	return func(endpoint string, status int, duration time.Duration) {
		m.observeUpstream(deviceLabel, endpoint, status, duration)
	}
}

func (m *Metrics) observeUpstream(device, endpoint string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	statusLabel := strconv.Itoa(status)
	m.upstreamRequestsTotal.WithLabelValues(device, endpoint, statusLabel).Inc()
	m.upstreamDuration.WithLabelValues(device, endpoint, statusLabel).Observe(duration.Seconds())
}

func (m *Metrics) ObservePoolAcquire(wait time.Duration) {
	if m == nil {
		return
	}
	m.poolAcquireWait.Observe(wait.Seconds())
}

func (m *Metrics) SetPoolInUse(n int) {
	if m == nil {
		return
	}
	m.poolInUse.Set(float64(n))
}

func (m *Metrics) ObserveJob(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.jobsTotal.WithLabelValues(outcome).Inc()
	m.jobDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (m *Metrics) ObserveStage(stage string, duration time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

func (m *Metrics) IncTranscriptionFallback() {
	if m == nil {
		return
	}
	m.transcriptionFallbacks.Inc()
}
