package observability

import (
	"context"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PromRecorder exports hook and request metrics to a Prometheus registry.
type PromRecorder struct {
	fetches        *prometheus.CounterVec
	fetchLatency   *prometheus.HistogramVec
	circuitsOpened *prometheus.CounterVec
	requests       *prometheus.CounterVec
	retries        *prometheus.CounterVec
}

var (
	_ Recorder        = (*PromRecorder)(nil)
	_ RequestObserver = (*PromRecorder)(nil)
)

// NewPromRecorder registers the campus metrics with reg.
func NewPromRecorder(reg prometheus.Registerer) *PromRecorder {
	factory := promauto.With(reg)
	return &PromRecorder{
		fetches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campus_hook_fetches_total",
				Help: "Resource hook fetch attempts by outcome",
			},
			[]string{"key", "outcome"},
		),
		fetchLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "campus_hook_fetch_duration_seconds",
				Help:    "Resource hook fetch latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"key"},
		),
		circuitsOpened: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campus_hook_circuit_open_total",
				Help: "Times a resource hook stopped retrying automatically",
			},
			[]string{"key"},
		),
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campus_api_requests_total",
				Help: "School API requests by method and status",
			},
			[]string{"method", "status"},
		),
		retries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campus_api_retries_total",
				Help: "School API request retries",
			},
			[]string{"method"},
		),
	}
}

func (p *PromRecorder) FetchStarted(e FetchEvent) {
	p.fetches.WithLabelValues(e.Key, "started").Inc()
}

func (p *PromRecorder) FetchSucceeded(e FetchEvent) {
	p.fetches.WithLabelValues(e.Key, "success").Inc()
	p.fetchLatency.WithLabelValues(e.Key).Observe(e.Duration.Seconds())
}

func (p *PromRecorder) FetchFailed(e FetchEvent) {
	p.fetches.WithLabelValues(e.Key, "failure").Inc()
	p.fetchLatency.WithLabelValues(e.Key).Observe(e.Duration.Seconds())
}

func (p *PromRecorder) FetchDiscarded(e FetchEvent) {
	p.fetches.WithLabelValues(e.Key, "discarded").Inc()
}

func (p *PromRecorder) CircuitOpened(e FetchEvent) {
	p.circuitsOpened.WithLabelValues(e.Key).Inc()
}

func (p *PromRecorder) OnRequestStart(context.Context, RequestInfo) {}

func (p *PromRecorder) OnRequestEnd(_ context.Context, info RequestInfo, result RequestResult) {
	status := "error"
	if result.StatusCode > 0 {
		status = strconv.Itoa(result.StatusCode)
	}
	p.requests.WithLabelValues(info.Method, status).Inc()
}

func (p *PromRecorder) OnRetry(_ context.Context, info RequestInfo, _ int, _ error) {
	p.retries.WithLabelValues(info.Method).Inc()
}
