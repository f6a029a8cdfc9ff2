// Package scenario declares traffic shapes for a run. A Profile is pure
// data: the runner interprets it, nothing here performs I/O.
package scenario

import (
	"errors"
	"fmt"
	"time"
)

// Executor selects how the runner drives virtual clients.
type Executor int

const (
	// SharedIterations: a fixed pool of VUs shares a fixed iteration count.
	SharedIterations Executor = iota
	// RampingVUs: the active VU count follows Stages by linear interpolation.
	RampingVUs
	// RampingArrivalRate: attempts start at a paced rate following Stages,
	// executed by a bounded pool of PreAllocatedVUs reusable slots.
	RampingArrivalRate
)

func (e Executor) String() string {
	switch e {
	case SharedIterations:
		return "shared-iterations"
	case RampingVUs:
		return "ramping-vus"
	case RampingArrivalRate:
		return "ramping-arrival-rate"
	default:
		return "unknown"
	}
}

// Stage is one leg of a ramp: reach Target (VUs or arrivals/sec depending on
// the executor) over Duration.
type Stage struct {
	Target   int
	Duration time.Duration
}

// Profile is the declarative description of a run's traffic shape.
// Immutable once the run starts.
type Profile struct {
	Name     string
	Executor Executor

	// SharedIterations fields.
	VUs        int
	Iterations int

	// Ramping fields.
	StartRate int // RampingArrivalRate only: rate before the first stage
	Stages    []Stage
	// PreAllocatedVUs bounds the reusable slot pool for arrival-rate runs.
	PreAllocatedVUs int

	// MaxDuration caps issuance of new attempts; zero means unbounded
	// (ramping profiles always end when their stages end).
	MaxDuration time.Duration
	// GracefulStop is how long in-flight attempts (including an open
	// long-poll) may drain after issuance stops.
	GracefulStop time.Duration
}

var ErrInvalidProfile = errors.New("invalid scenario profile")

// Validate rejects profiles the runner cannot honor. Caught here, before the
// run, so a misconfiguration can never silently drop attempts mid-run.
func (p Profile) Validate() error {
	if p.MaxDuration < 0 || p.GracefulStop < 0 {
		return fmt.Errorf("%w %q: negative duration bound", ErrInvalidProfile, p.Name)
	}
	for i, st := range p.Stages {
		if st.Target < 0 {
			return fmt.Errorf("%w %q: stage %d has negative target %d", ErrInvalidProfile, p.Name, i, st.Target)
		}
		if st.Duration < 0 {
			return fmt.Errorf("%w %q: stage %d has negative duration %s", ErrInvalidProfile, p.Name, i, st.Duration)
		}
	}

	switch p.Executor {
	case SharedIterations:
		if p.VUs <= 0 {
			return fmt.Errorf("%w %q: shared-iterations needs VUs > 0", ErrInvalidProfile, p.Name)
		}
		if p.Iterations <= 0 {
			return fmt.Errorf("%w %q: shared-iterations needs Iterations > 0", ErrInvalidProfile, p.Name)
		}
	case RampingVUs:
		if len(p.Stages) == 0 {
			return fmt.Errorf("%w %q: ramping-vus needs at least one stage", ErrInvalidProfile, p.Name)
		}
	case RampingArrivalRate:
		if len(p.Stages) == 0 {
			return fmt.Errorf("%w %q: ramping-arrival-rate needs at least one stage", ErrInvalidProfile, p.Name)
		}
		if p.StartRate < 0 {
			return fmt.Errorf("%w %q: negative start rate %d", ErrInvalidProfile, p.Name, p.StartRate)
		}
		if p.PreAllocatedVUs <= 0 {
			return fmt.Errorf("%w %q: ramping-arrival-rate needs PreAllocatedVUs > 0", ErrInvalidProfile, p.Name)
		}
		// The slot pool must at least cover one second of peak arrivals,
		// otherwise the pacer is guaranteed to outrun the pool even with
		// instant attempts.
		if peak := p.PeakTarget(); peak > p.PreAllocatedVUs {
			return fmt.Errorf("%w %q: peak rate %d/s exceeds %d preallocated slots",
				ErrInvalidProfile, p.Name, peak, p.PreAllocatedVUs)
		}
	default:
		return fmt.Errorf("%w %q: unknown executor %d", ErrInvalidProfile, p.Name, p.Executor)
	}
	return nil
}

// PeakTarget is the configured peak load: the largest stage target, or the
// VU count for shared-iterations profiles.
func (p Profile) PeakTarget() int {
	if p.Executor == SharedIterations {
		return p.VUs
	}
	peak := p.StartRate
	for _, st := range p.Stages {
		if st.Target > peak {
			peak = st.Target
		}
	}
	return peak
}

// StageSpan is the total duration of all stages.
func (p Profile) StageSpan() time.Duration {
	var total time.Duration
	for _, st := range p.Stages {
		total += st.Duration
	}
	return total
}

// TargetAt interpolates the desired target (VUs or rate) at elapsed time into
// the stage sequence, ramping linearly from each stage's predecessor. Past
// the final stage it holds the final target.
func (p Profile) TargetAt(elapsed time.Duration) int {
	prev := 0
	if p.Executor == RampingArrivalRate {
		prev = p.StartRate
	}
	for _, st := range p.Stages {
		if elapsed < st.Duration {
			if st.Duration == 0 {
				return st.Target
			}
			frac := float64(elapsed) / float64(st.Duration)
			return prev + int(frac*float64(st.Target-prev))
		}
		elapsed -= st.Duration
		prev = st.Target
	}
	return prev
}
