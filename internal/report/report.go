// Package report renders the end-of-run summary in two forms: a JSON
// document for machine parsing and a text block for humans. Both always list
// every outcome kind (zero included), the configured peak load, per-phase
// percentiles, and an explicit pass/fail line for the duplicate-seat check.
package report

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/huangken8511429/ticketmaster-loadtest/internal/metrics"
	"github.com/huangken8511429/ticketmaster-loadtest/internal/protocol"
	"github.com/huangken8511429/ticketmaster-loadtest/internal/verify"
)

// PhaseStats is one latency distribution flattened for output.
type PhaseStats struct {
	Count int           `json:"count"`
	Min   time.Duration `json:"min"`
	Mean  time.Duration `json:"mean"`
	P50   time.Duration `json:"p50"`
	P95   time.Duration `json:"p95"`
	P99   time.Duration `json:"p99"`
	Max   time.Duration `json:"max"`
}

// Summary is the complete result of one run.
type Summary struct {
	RunID        string                `json:"runId"`
	Profile      string                `json:"profile"`
	PeakTarget   int                   `json:"peakTarget"`
	Elapsed      time.Duration         `json:"elapsed"`
	Total        int64                 `json:"totalAttempts"`
	Outcomes     map[string]int64      `json:"outcomes"`
	SuccessRate  float64               `json:"successRate"`
	Throughput   float64               `json:"throughputPerSec"`
	Phases       map[string]PhaseStats `json:"phases"`
	Violations   []string              `json:"thresholdViolations"`
	Verification *verify.Report        `json:"verification,omitempty"`
	Passed       bool                  `json:"passed"`
}

// Build folds the snapshot, the threshold evaluation and the verifier's
// finding into one summary. The duplicate-seat check is the primary pass
// condition; threshold violations are the secondary one.
func Build(runID, profile string, peak int, snap metrics.Snapshot, violations []metrics.Violation, vr *verify.Report) Summary {
	s := Summary{
		RunID:        runID,
		Profile:      profile,
		PeakTarget:   peak,
		Elapsed:      snap.Elapsed,
		Total:        snap.Total,
		Outcomes:     make(map[string]int64, len(snap.Counts)),
		SuccessRate:  snap.SuccessRate(),
		Throughput:   snap.Throughput(),
		Phases:       make(map[string]PhaseStats, len(snap.Phases)),
		Violations:   make([]string, 0, len(violations)),
		Verification: vr,
	}
	for _, k := range protocol.Kinds() {
		s.Outcomes[k.String()] = snap.Counts[k]
	}
	for _, phase := range metrics.Phases() {
		d := snap.Phases[phase]
		s.Phases[string(phase)] = PhaseStats{
			Count: d.Count(),
			Min:   d.Min(),
			Mean:  d.Mean(),
			P50:   d.Percentile(50),
			P95:   d.Percentile(95),
			P99:   d.Percentile(99),
			Max:   d.Max(),
		}
	}
	for _, v := range violations {
		s.Violations = append(s.Violations, v.String())
	}
	s.Passed = len(s.Violations) == 0 && (vr == nil || vr.Passed())
	return s
}

// JSON renders the machine-readable form.
func (s Summary) JSON() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// Render produces the human-readable report.
func (s Summary) Render() string {
	var b strings.Builder
	line := strings.Repeat("=", 40)

	fmt.Fprintf(&b, "%s\nLoad Test Results (%s)\n%s\n", line, s.Profile, line)
	fmt.Fprintf(&b, "Run:         %s\n", s.RunID)
	fmt.Fprintf(&b, "Peak target: %d\n", s.PeakTarget)
	fmt.Fprintf(&b, "Duration:    %.2fs\n", s.Elapsed.Seconds())
	fmt.Fprintf(&b, "Throughput:  %.2f attempts/s\n", s.Throughput)

	fmt.Fprintf(&b, "\nOutcomes (total %d):\n", s.Total)
	for _, k := range protocol.Kinds() {
		name := k.String()
		fmt.Fprintf(&b, "  %-14s %d\n", name+":", s.Outcomes[name])
	}
	fmt.Fprintf(&b, "  success rate:  %.2f%%\n", s.SuccessRate*100)

	fmt.Fprintf(&b, "\nLatency:\n")
	for _, phase := range metrics.Phases() {
		st := s.Phases[string(phase)]
		if st.Count == 0 {
			fmt.Fprintf(&b, "  %-11s no samples\n", string(phase)+":")
			continue
		}
		fmt.Fprintf(&b, "  %-11s min=%s p50=%s p95=%s p99=%s max=%s avg=%s\n",
			string(phase)+":", st.Min, st.P50, st.P95, st.P99, st.Max, st.Mean)
	}

	if s.Verification != nil {
		v := s.Verification
		fmt.Fprintf(&b, "\nSeat verification:\n")
		fmt.Fprintf(&b, "  total tickets:   %d\n", v.TotalTickets)
		fmt.Fprintf(&b, "  allocated:       %d\n", v.AllocatedCount)
		fmt.Fprintf(&b, "  still available: %d\n", v.AvailableCount)
		fmt.Fprintf(&b, "  duplicate seats: %d", len(v.DuplicateSeats))
		if v.Passed() {
			b.WriteString(" (PASS)\n")
		} else {
			fmt.Fprintf(&b, " (FAIL)\n  duplicates: %s\n", strings.Join(v.DuplicateSeats, ", "))
		}
	}

	if len(s.Violations) > 0 {
		fmt.Fprintf(&b, "\nThreshold violations:\n")
		for _, v := range s.Violations {
			fmt.Fprintf(&b, "  %s\n", v)
		}
	}

	if s.Passed {
		fmt.Fprintf(&b, "\nRESULT: PASS\n%s\n", line)
	} else {
		fmt.Fprintf(&b, "\nRESULT: FAIL\n%s\n", line)
	}
	return b.String()
}
