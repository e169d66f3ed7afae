package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "trusthire"

// Recorder holds the collectors for calls to the verification service and
// for interview question enrichment. A nil *Recorder is valid and records
// nothing.
type Recorder struct {
	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	enrichments *prometheus.CounterVec
	discarded   prometheus.Counter
}

func New() *Recorder {
	return &Recorder{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transport_requests_total",
			Help:      "Number of calls to the verification service partitioned by operation and outcome.",
		}, []string{"op", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transport_request_duration_seconds",
			Help:      "Time spent on calls to the verification service partitioned by operation.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30},
		}, []string{"op"}),
		enrichments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichment_total",
			Help:      "Number of interview question enrichments partitioned by final status.",
		}, []string{"status"}),
		discarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichment_discarded_total",
			Help:      "Number of enrichment outcomes dropped because a newer result superseded them.",
		}),
	}
}

func (r *Recorder) ObserveRequest(op, outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.requests.WithLabelValues(op, outcome).Inc()
	r.latency.WithLabelValues(op).Observe(d.Seconds())
}

func (r *Recorder) EnrichmentFinished(status string) {
	if r == nil {
		return
	}
	r.enrichments.WithLabelValues(status).Inc()
}

func (r *Recorder) EnrichmentDiscarded() {
	if r == nil {
		return
	}
	r.discarded.Inc()
}

// Collectors returns the collectors for your own registry.
func (r *Recorder) Collectors() []prometheus.Collector {
	if r == nil {
		return nil
	}
	return []prometheus.Collector{r.requests, r.latency, r.enrichments, r.discarded}
}

// Register adds all collectors to reg.
func (r *Recorder) Register(reg prometheus.Registerer) error {
	for _, c := range r.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
