// Package metrics aggregates per-outcome counters and per-phase latency
// distributions across all concurrent attempts of a run. The aggregator is
// an injected instance, not a global: its lifecycle (init, concurrent
// updates, one snapshot at run end) belongs to the run that owns it.
package metrics

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/huangken8511429/ticketmaster-loadtest/internal/protocol"
)

// Phase labels the latency distributions the aggregator keeps.
type Phase string

const (
	PhaseSubmit   Phase = "submit"
	PhaseResolve  Phase = "resolve"
	PhaseEndToEnd Phase = "end_to_end"
)

// Phases lists all phases in reporting order.
func Phases() []Phase { return []Phase{PhaseSubmit, PhaseResolve, PhaseEndToEnd} }

// Aggregator accumulates results from arbitrarily interleaved attempts.
// Counter updates are atomic; latency appends are guarded per phase. No
// ordering across attempts is assumed.
type Aggregator struct {
	start  time.Time
	counts []atomic.Int64 // indexed by protocol.OutcomeKind

	mu        sync.Mutex
	latencies map[Phase][]time.Duration

	prom *PromObserver // optional, may be nil
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		start:  time.Now(),
		counts: make([]atomic.Int64, len(protocol.Kinds())),
		latencies: map[Phase][]time.Duration{
			PhaseSubmit:   nil,
			PhaseResolve:  nil,
			PhaseEndToEnd: nil,
		},
	}
}

// Record folds one attempt's result into the aggregate. Safe under arbitrary
// concurrent invocation; exactly one call per attempt.
func (a *Aggregator) Record(res protocol.Result) {
	a.counts[res.Outcome.Kind].Add(1)

	a.mu.Lock()
	a.latencies[PhaseSubmit] = append(a.latencies[PhaseSubmit], res.Submit)
	if res.Resolved() {
		a.latencies[PhaseResolve] = append(a.latencies[PhaseResolve], res.Resolve)
		a.latencies[PhaseEndToEnd] = append(a.latencies[PhaseEndToEnd], res.EndToEnd())
	}
	a.mu.Unlock()

	if a.prom != nil {
		a.prom.Observe(res)
	}
}

// Snapshot captures the aggregate state for end-of-run evaluation. Every
// outcome kind is present in Counts, zero included.
func (a *Aggregator) Snapshot() Snapshot {
	snap := Snapshot{
		Counts:  make(map[protocol.OutcomeKind]int64, len(protocol.Kinds())),
		Phases:  make(map[Phase]Distribution, 3),
		Elapsed: time.Since(a.start),
	}
	for _, k := range protocol.Kinds() {
		n := a.counts[k].Load()
		snap.Counts[k] = n
		snap.Total += n
	}

	a.mu.Lock()
	for phase, samples := range a.latencies {
		sorted := make([]time.Duration, len(samples))
		copy(sorted, samples)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		snap.Phases[phase] = Distribution{sorted: sorted}
	}
	a.mu.Unlock()
	return snap
}

// Snapshot is the read-once aggregate of a finished run.
type Snapshot struct {
	Total   int64
	Counts  map[protocol.OutcomeKind]int64
	Phases  map[Phase]Distribution
	Elapsed time.Duration
}

// SuccessRate is successes over total. In submit-only runs accepted
// submissions are the success signal; otherwise confirmations are.
func (s Snapshot) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	success := s.Counts[protocol.OutcomeConfirmed]
	if s.Counts[protocol.OutcomeAccepted] > 0 {
		success += s.Counts[protocol.OutcomeAccepted]
	}
	return float64(success) / float64(s.Total)
}

// FailureRate is the share of attempts that never reached a terminal service
// decision: submit failures plus resolution timeouts.
func (s Snapshot) FailureRate() float64 {
	if s.Total == 0 {
		return 0
	}
	failed := s.Counts[protocol.OutcomeSubmitFailed] + s.Counts[protocol.OutcomeTimeout]
	return float64(failed) / float64(s.Total)
}

// Throughput is completed attempts per second over the run.
func (s Snapshot) Throughput() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Total) / s.Elapsed.Seconds()
}

// Distribution is an immutable sorted latency sample set for one phase.
type Distribution struct {
	sorted []time.Duration
}

func (d Distribution) Count() int { return len(d.sorted) }

func (d Distribution) Min() time.Duration {
	if len(d.sorted) == 0 {
		return 0
	}
	return d.sorted[0]
}

func (d Distribution) Max() time.Duration {
	if len(d.sorted) == 0 {
		return 0
	}
	return d.sorted[len(d.sorted)-1]
}

func (d Distribution) Mean() time.Duration {
	if len(d.sorted) == 0 {
		return 0
	}
	var sum time.Duration
	for _, v := range d.sorted {
		sum += v
	}
	return sum / time.Duration(len(d.sorted))
}

// Percentile returns the nearest-rank percentile: the ceil(p/100*N)-th order
// statistic, 1-based. This is the one percentile definition used everywhere
// in the harness; it is well defined at small sample sizes (p50 of one
// sample is that sample, p99 of two is the larger) and monotone in p for any
// non-empty sample set.
func (d Distribution) Percentile(p float64) time.Duration {
	n := len(d.sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return d.sorted[0]
	}
	if p >= 100 {
		return d.sorted[n-1]
	}
	rank := int(math.Ceil(float64(n) * p / 100))
	if rank < 1 {
		rank = 1
	}
	return d.sorted[rank-1]
}
