package metrics

import (
	"fmt"
	"time"
)

// Thresholds are the performance pass conditions evaluated against the final
// snapshot. Zero values disable a bound. Evaluation is a pure function of
// the snapshot.
type Thresholds struct {
	MaxP95EndToEnd time.Duration
	MaxP99EndToEnd time.Duration
	MaxP95Submit   time.Duration
	MinSuccessRate float64
	MaxFailureRate float64 // 0 disables; set explicitly to bound failures
}

// Violation names one threshold the run breached.
type Violation struct {
	Name   string
	Detail string
}

func (v Violation) String() string { return v.Name + ": " + v.Detail }

// Evaluate checks every configured bound. An empty result is a pass.
func (t Thresholds) Evaluate(s Snapshot) []Violation {
	var out []Violation

	if t.MaxP95EndToEnd > 0 {
		if got := s.Phases[PhaseEndToEnd].Percentile(95); got > t.MaxP95EndToEnd {
			out = append(out, Violation{
				Name:   "p95_end_to_end",
				Detail: fmt.Sprintf("%s > %s", got, t.MaxP95EndToEnd),
			})
		}
	}
	if t.MaxP99EndToEnd > 0 {
		if got := s.Phases[PhaseEndToEnd].Percentile(99); got > t.MaxP99EndToEnd {
			out = append(out, Violation{
				Name:   "p99_end_to_end",
				Detail: fmt.Sprintf("%s > %s", got, t.MaxP99EndToEnd),
			})
		}
	}
	if t.MaxP95Submit > 0 {
		if got := s.Phases[PhaseSubmit].Percentile(95); got > t.MaxP95Submit {
			out = append(out, Violation{
				Name:   "p95_submit",
				Detail: fmt.Sprintf("%s > %s", got, t.MaxP95Submit),
			})
		}
	}
	if t.MinSuccessRate > 0 {
		if got := s.SuccessRate(); got < t.MinSuccessRate {
			out = append(out, Violation{
				Name:   "success_rate",
				Detail: fmt.Sprintf("%.4f < %.4f", got, t.MinSuccessRate),
			})
		}
	}
	if t.MaxFailureRate > 0 {
		if got := s.FailureRate(); got > t.MaxFailureRate {
			out = append(out, Violation{
				Name:   "failure_rate",
				Detail: fmt.Sprintf("%.4f > %.4f", got, t.MaxFailureRate),
			})
		}
	}
	return out
}
