package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/huangken8511429/ticketmaster-loadtest/internal/protocol"
)

func TestPromObserverMirrorsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := NewAggregator()
	a.AttachPrometheus(reg)

	a.Record(result(protocol.OutcomeConfirmed, 10*time.Millisecond, 20*time.Millisecond))
	a.Record(result(protocol.OutcomeSubmitFailed, 5*time.Millisecond, 0))

	assert.Equal(t, float64(1), testutil.ToFloat64(
		a.prom.outcomes.WithLabelValues("CONFIRMED")))
	assert.Equal(t, float64(1), testutil.ToFloat64(
		a.prom.outcomes.WithLabelValues("SUBMIT_FAILED")))

	// submit observed twice, resolve/e2e only for the resolved attempt
	count := testutil.CollectAndCount(a.prom.latency)
	assert.Equal(t, 3, count, "submit, resolve and end_to_end series exist")
}
