package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/huangken8511429/ticketmaster-loadtest/internal/protocol"
)

// PromObserver mirrors attempt results onto Prometheus collectors so a long
// run can be watched live. It is a side channel only: the authoritative
// end-of-run numbers always come from the in-process Snapshot.
type PromObserver struct {
	outcomes *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

func NewPromObserver(reg prometheus.Registerer) *PromObserver {
	o := &PromObserver{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loadtest",
			Name:      "reservation_outcomes_total",
			Help:      "Terminal reservation outcomes by kind.",
		}, []string{"outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "loadtest",
			Name:      "reservation_latency_seconds",
			Help:      "Per-phase attempt latency.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14), // 5ms .. ~40s
		}, []string{"phase"}),
	}
	reg.MustRegister(o.outcomes, o.latency)
	return o
}

func (o *PromObserver) Observe(res protocol.Result) {
	o.outcomes.WithLabelValues(res.Outcome.Kind.String()).Inc()
	o.latency.WithLabelValues(string(PhaseSubmit)).Observe(res.Submit.Seconds())
	if res.Resolved() {
		o.latency.WithLabelValues(string(PhaseResolve)).Observe(res.Resolve.Seconds())
		o.latency.WithLabelValues(string(PhaseEndToEnd)).Observe(res.EndToEnd().Seconds())
	}
}

// AttachPrometheus wires a PromObserver into the aggregator. Must be called
// before any Record.
func (a *Aggregator) AttachPrometheus(reg prometheus.Registerer) {
	a.prom = NewPromObserver(reg)
}
