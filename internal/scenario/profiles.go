package scenario

import "time"

// Built-in profiles. These mirror the shapes the team actually runs against
// staging: a smoke pass, the opening-rush contention scenario, a sustained
// arrival-rate stress run, and a staircase ramp hunting for the saturation
// knee.

// Smoke is a single client running a handful of sequential iterations.
// It verifies the system is alive and the full reserve-then-resolve flow
// works before anything heavier is pointed at it.
func Smoke() Profile {
	return Profile{
		Name:         "smoke",
		Executor:     SharedIterations,
		VUs:          1,
		Iterations:   20,
		MaxDuration:  2 * time.Minute,
		GracefulStop: 30 * time.Second,
	}
}

// Rush models an on-sale opening: a burst of clients fighting for the same
// inventory at once. With iterations == vus every client fires exactly once,
// which makes the confirmed/rejected split directly comparable to the seat
// count.
func Rush(vus, iterations int) Profile {
	return Profile{
		Name:         "rush",
		Executor:     SharedIterations,
		VUs:          vus,
		Iterations:   iterations,
		MaxDuration:  60 * time.Second,
		GracefulStop: 30 * time.Second,
	}
}

// Stress sustains a high arrival rate: warm up at half the peak, ramp to the
// peak, hold it, then cool down. Slots are preallocated at twice the peak
// rate (capped) so open long-polls never starve the pacer.
func Stress(peakRPS int) Profile {
	half := peakRPS / 2
	prealloc := peakRPS * 2
	if prealloc > 10000 {
		prealloc = 10000
	}
	return Profile{
		Name:      "stress",
		Executor:  RampingArrivalRate,
		StartRate: half,
		Stages: []Stage{
			{Target: half, Duration: 30 * time.Second},
			{Target: peakRPS, Duration: 30 * time.Second},
			{Target: peakRPS, Duration: 2 * time.Minute},
			{Target: half, Duration: 30 * time.Second},
		},
		PreAllocatedVUs: prealloc,
		GracefulStop:    30 * time.Second,
	}
}

// RampUp is the staircase capacity probe: keep doubling-ish the concurrent
// client count until the service's latency thresholds give out.
func RampUp() Profile {
	return Profile{
		Name:     "rampup",
		Executor: RampingVUs,
		Stages: []Stage{
			{Target: 100, Duration: 90 * time.Second},
			{Target: 200, Duration: 90 * time.Second},
			{Target: 400, Duration: 90 * time.Second},
			{Target: 700, Duration: 90 * time.Second},
			{Target: 1400, Duration: 90 * time.Second},
			{Target: 0, Duration: 60 * time.Second},
		},
		GracefulStop: 30 * time.Second,
	}
}

// Saturation keeps a fixed pool of clients reserving until the venue sells
// out. Iterations is sized from the inventory so the run ends shortly after
// the last seat goes; the verifier then expects zero seats left.
func Saturation(vus, totalSeats, seatsPerAttempt int) Profile {
	if seatsPerAttempt < 1 {
		seatsPerAttempt = 1
	}
	// Enough attempts to drain the inventory plus headroom for rejections.
	iterations := totalSeats/seatsPerAttempt + vus
	return Profile{
		Name:         "saturation",
		Executor:     SharedIterations,
		VUs:          vus,
		Iterations:   iterations,
		MaxDuration:  5 * time.Minute,
		GracefulStop: 30 * time.Second,
	}
}
