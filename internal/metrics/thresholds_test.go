package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huangken8511429/ticketmaster-loadtest/internal/protocol"
)

func snapshotFor(t *testing.T) Snapshot {
	t.Helper()
	a := NewAggregator()
	for i := 0; i < 9; i++ {
		a.Record(result(protocol.OutcomeConfirmed, 10*time.Millisecond, 90*time.Millisecond))
	}
	a.Record(result(protocol.OutcomeTimeout, 10*time.Millisecond, 2*time.Second))
	return a.Snapshot()
}

func TestEvaluatePass(t *testing.T) {
	th := Thresholds{
		MaxP95EndToEnd: 5 * time.Second,
		MaxP99EndToEnd: 10 * time.Second,
		MinSuccessRate: 0.5,
		MaxFailureRate: 0.2,
	}
	assert.Empty(t, th.Evaluate(snapshotFor(t)))
}

func TestEvaluateViolations(t *testing.T) {
	snap := snapshotFor(t)

	th := Thresholds{MaxP95EndToEnd: 50 * time.Millisecond}
	violations := th.Evaluate(snap)
	require.Len(t, violations, 1)
	assert.Equal(t, "p95_end_to_end", violations[0].Name)

	th = Thresholds{MinSuccessRate: 0.99, MaxFailureRate: 0.05}
	violations = th.Evaluate(snap)
	require.Len(t, violations, 2)
	assert.Equal(t, "success_rate", violations[0].Name)
	assert.Equal(t, "failure_rate", violations[1].Name)
}

func TestEvaluateZeroValuesDisableBounds(t *testing.T) {
	assert.Empty(t, Thresholds{}.Evaluate(snapshotFor(t)))
}

func TestEvaluateIsPure(t *testing.T) {
	snap := snapshotFor(t)
	th := Thresholds{MaxP95EndToEnd: 50 * time.Millisecond, MinSuccessRate: 0.99}
	first := th.Evaluate(snap)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, th.Evaluate(snap))
	}
}
