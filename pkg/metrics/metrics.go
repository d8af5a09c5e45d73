package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder counts dispatched requests per route prefix.
type Recorder struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	faultsTotal     *prometheus.CounterVec
}

func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "edgegate",
				Name:      "requests_total",
				Help:      "Total number of dispatched HTTP requests",
			},
			[]string{"prefix", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "edgegate",
				Name:      "request_duration_seconds",
				Help:      "Handler execution time in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"prefix"},
		),
		faultsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "edgegate",
				Name:      "handler_faults_total",
				Help:      "Handler executions that panicked or returned an error",
			},
			[]string{"prefix"},
		),
	}

	r.registry.MustRegister(
		r.requestsTotal,
		r.requestDuration,
		r.faultsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Observe records one dispatched request. An empty prefix means the route
// matched nothing.
func (r *Recorder) Observe(prefix string, status int, d time.Duration, fault bool) {
	if prefix == "" {
		prefix = "unmatched"
	}
	r.requestsTotal.WithLabelValues(prefix, strconv.Itoa(status)).Inc()
	r.requestDuration.WithLabelValues(prefix).Observe(d.Seconds())
	if fault {
		r.faultsTotal.WithLabelValues(prefix).Inc()
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry returns the registry every recorder collector is registered on.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}
