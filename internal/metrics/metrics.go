package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels successful pipeline runs and dataset loads.
	OutcomeSuccess = "success"
	// OutcomeError labels failed pipeline runs and dataset loads.
	OutcomeError = "error"
)

var (
	pipelineRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "retaildash",
			Name:      "pipeline_runs_total",
			Help:      "Total number of filter-and-aggregate runs, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	pipelineDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "retaildash",
			Name:      "pipeline_seconds",
			Help:      "Filter-and-aggregate latency in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	datasetLoadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "retaildash",
			Name:      "dataset_loads_total",
			Help:      "Dataset loads from the configured source, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	datasetRows = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "retaildash",
			Name:      "dataset_rows",
			Help:      "Rows in the most recently loaded dataset.",
		},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "retaildash",
			Name:      "http_requests_total",
			Help:      "HTTP requests served, partitioned by status code.",
		},
		[]string{"code"},
	)

	rateLimitedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "retaildash",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by a rate limiter, partitioned by limiter.",
		},
		[]string{"limiter"},
	)

	suspiciousRequestsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "retaildash",
			Name:      "suspicious_requests_total",
			Help:      "Requests matching a known attack pattern.",
		},
	)

	websocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "retaildash",
			Name:      "websocket_clients",
			Help:      "Connected dashboard websocket clients.",
		},
	)
)

// Register attaches retaildash collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		pipelineRunsTotal,
		pipelineDurationSeconds,
		datasetLoadsTotal,
		datasetRows,
		httpRequestsTotal,
		rateLimitedTotal,
		suspiciousRequestsTotal,
		websocketClients,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObservePipelineRun records a pipeline duration and outcome label.
func ObservePipelineRun(duration time.Duration, outcome string) {
	pipelineRunsTotal.WithLabelValues(normalizeOutcome(outcome)).Inc()
	if duration < 0 {
		duration = 0
	}
	pipelineDurationSeconds.Observe(duration.Seconds())
}

// ObserveDatasetLoad records a dataset load and, on success, its row count.
func ObserveDatasetLoad(rows int, outcome string) {
	label := normalizeOutcome(outcome)
	datasetLoadsTotal.WithLabelValues(label).Inc()
	if label == OutcomeSuccess {
		datasetRows.Set(float64(rows))
	}
}

// ObserveHTTPRequest counts a served request by status code.
func ObserveHTTPRequest(status int) {
	httpRequestsTotal.WithLabelValues(strconv.Itoa(status)).Inc()
}

// ObserveRateLimited counts a request rejected by the named limiter.
func ObserveRateLimited(limiter string) {
	rateLimitedTotal.WithLabelValues(limiter).Inc()
}

func ObserveSuspiciousRequest() {
	suspiciousRequestsTotal.Inc()
}

// SetWebSocketClients records the number of connected websocket clients.
func SetWebSocketClients(n int) {
	websocketClients.Set(float64(n))
}

func normalizeOutcome(outcome string) string {
	if outcome != OutcomeError {
		return OutcomeSuccess
	}
	return OutcomeError
}
