package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huangken8511429/ticketmaster-loadtest/internal/protocol"
)

func result(kind protocol.OutcomeKind, submit, resolve time.Duration) protocol.Result {
	return protocol.Result{
		Outcome: protocol.Outcome{Kind: kind},
		Submit:  submit,
		Resolve: resolve,
	}
}

func TestRecordCountsEveryOutcomeExactlyOnce(t *testing.T) {
	a := NewAggregator()
	a.Record(result(protocol.OutcomeConfirmed, 10*time.Millisecond, 50*time.Millisecond))
	a.Record(result(protocol.OutcomeConfirmed, 12*time.Millisecond, 40*time.Millisecond))
	a.Record(result(protocol.OutcomeRejected, 9*time.Millisecond, 30*time.Millisecond))
	a.Record(result(protocol.OutcomeTimeout, 8*time.Millisecond, 500*time.Millisecond))
	a.Record(result(protocol.OutcomeSubmitFailed, 5*time.Millisecond, 0))

	snap := a.Snapshot()
	assert.Equal(t, int64(5), snap.Total)
	assert.Equal(t, int64(2), snap.Counts[protocol.OutcomeConfirmed])
	assert.Equal(t, int64(1), snap.Counts[protocol.OutcomeRejected])
	assert.Equal(t, int64(1), snap.Counts[protocol.OutcomeTimeout])
	assert.Equal(t, int64(1), snap.Counts[protocol.OutcomeSubmitFailed])
	assert.Equal(t, int64(0), snap.Counts[protocol.OutcomeAccepted], "zero counts are still present")

	// Sum of per-outcome counters equals total scheduled attempts exactly.
	var sum int64
	for _, n := range snap.Counts {
		sum += n
	}
	assert.Equal(t, snap.Total, sum)

	assert.InDelta(t, 0.4, snap.SuccessRate(), 1e-9)
	assert.InDelta(t, 0.4, snap.FailureRate(), 1e-9)
}

func TestRecordAcceptsEveryDeclaredKind(t *testing.T) {
	// The counter slice is sized from the outcome enum, so recording any kind
	// the protocol package declares must be in bounds.
	a := NewAggregator()
	require.Equal(t, len(protocol.Kinds()), len(a.counts))

	for _, k := range protocol.Kinds() {
		a.Record(result(k, time.Millisecond, time.Millisecond))
	}
	snap := a.Snapshot()
	assert.Equal(t, int64(len(protocol.Kinds())), snap.Total)
	for _, k := range protocol.Kinds() {
		assert.Equal(t, int64(1), snap.Counts[k], "kind %s", k)
	}
}

func TestRecordPhaseSampleRouting(t *testing.T) {
	a := NewAggregator()
	a.Record(result(protocol.OutcomeConfirmed, 10*time.Millisecond, 20*time.Millisecond))
	a.Record(result(protocol.OutcomeSubmitFailed, 5*time.Millisecond, 0))

	snap := a.Snapshot()
	assert.Equal(t, 2, snap.Phases[PhaseSubmit].Count(), "submit latency recorded even for submit failures")
	assert.Equal(t, 1, snap.Phases[PhaseResolve].Count(), "no resolve sample without resolution")
	assert.Equal(t, 1, snap.Phases[PhaseEndToEnd].Count())
	assert.Equal(t, 30*time.Millisecond, snap.Phases[PhaseEndToEnd].Max())
}

func TestRecordConcurrentNoLostUpdates(t *testing.T) {
	a := NewAggregator()
	const workers = 32
	const perWorker = 200

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				kind := protocol.OutcomeKind(i % 4)
				a.Record(result(kind, time.Duration(i)*time.Microsecond, time.Duration(i)*time.Microsecond))
			}
		}(w)
	}
	wg.Wait()

	snap := a.Snapshot()
	require.Equal(t, int64(workers*perWorker), snap.Total)
	assert.Equal(t, workers*perWorker, snap.Phases[PhaseSubmit].Count())
}

func TestPercentileNearestRank(t *testing.T) {
	d := distribution(t, 100*time.Millisecond)
	assert.Equal(t, 100*time.Millisecond, d.Percentile(50), "p50 of one sample is that sample")
	assert.Equal(t, 100*time.Millisecond, d.Percentile(99))

	d = distribution(t, 10*time.Millisecond, 20*time.Millisecond)
	assert.Equal(t, 10*time.Millisecond, d.Percentile(50))
	assert.Equal(t, 20*time.Millisecond, d.Percentile(95), "p95 of two samples is the larger")

	// 10 samples 1..10ms: nearest rank p90 = ceil(9) = 9th value.
	var ten []time.Duration
	for i := 1; i <= 10; i++ {
		ten = append(ten, time.Duration(i)*time.Millisecond)
	}
	d = distribution(t, ten...)
	assert.Equal(t, 5*time.Millisecond, d.Percentile(50))
	assert.Equal(t, 9*time.Millisecond, d.Percentile(90))
	assert.Equal(t, 10*time.Millisecond, d.Percentile(95))
	assert.Equal(t, 1*time.Millisecond, d.Percentile(0))
	assert.Equal(t, 10*time.Millisecond, d.Percentile(100))
}

func TestPercentileMonotonic(t *testing.T) {
	for _, samples := range [][]time.Duration{
		{time.Millisecond},
		{3 * time.Millisecond, time.Millisecond},
		{5, 1, 4, 2, 3},
		{7, 7, 7, 7, 7, 7, 1},
	} {
		d := distribution(t, samples...)
		p50, p95, p99 := d.Percentile(50), d.Percentile(95), d.Percentile(99)
		assert.LessOrEqual(t, p50, p95)
		assert.LessOrEqual(t, p95, p99)
	}
}

func TestEmptyDistribution(t *testing.T) {
	var d Distribution
	assert.Zero(t, d.Percentile(95))
	assert.Zero(t, d.Min())
	assert.Zero(t, d.Max())
	assert.Zero(t, d.Mean())
}

// distribution builds a Distribution through the aggregator so the sorted
// invariant comes from the same code path production uses.
func distribution(t *testing.T, samples ...time.Duration) Distribution {
	t.Helper()
	a := NewAggregator()
	for _, s := range samples {
		a.Record(result(protocol.OutcomeConfirmed, s, s))
	}
	return a.Snapshot().Phases[PhaseSubmit]
}
