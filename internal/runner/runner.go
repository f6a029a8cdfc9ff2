// Package runner schedules concurrent virtual clients according to a
// scenario profile. Three executors cover the shapes the team runs: a fixed
// pool sharing an iteration budget, a ramping concurrent-VU count, and a
// ramping arrival rate over a preallocated slot pool. In every mode an
// attempt failure (including a panic inside the protocol client) is
// contained and counted; nothing an attempt does can abort the run.
package runner

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/huangken8511429/ticketmaster-loadtest/internal/metrics"
	"github.com/huangken8511429/ticketmaster-loadtest/internal/protocol"
	"github.com/huangken8511429/ticketmaster-loadtest/internal/scenario"
)

// controlInterval is how often ramping executors re-evaluate their stage
// target.
const controlInterval = 100 * time.Millisecond

// AttemptFunc runs one complete protocol attempt for a run-unique client
// index and returns its terminal result. It must not be called twice with
// the same index.
type AttemptFunc func(ctx context.Context, index uint64) protocol.Result

// Runner drives attempts for one run.
type Runner struct {
	profile scenario.Profile
	attempt AttemptFunc
	agg     *metrics.Aggregator
	logger  *zap.Logger

	index atomic.Uint64
}

// New validates the profile up front; a profile the runner cannot honor is a
// configuration error surfaced before the run starts, never a silent drop.
func New(profile scenario.Profile, attempt AttemptFunc, agg *metrics.Aggregator, logger *zap.Logger) (*Runner, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{profile: profile, attempt: attempt, agg: agg, logger: logger}, nil
}

// Scheduled is the number of attempts started so far.
func (r *Runner) Scheduled() uint64 { return r.index.Load() }

// Run executes the profile to completion. It returns ctx.Err() if the caller
// cancelled, nil otherwise; per-attempt failures never surface here.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("run starting",
		zap.String("profile", r.profile.Name),
		zap.String("executor", r.profile.Executor.String()),
		zap.Int("peak_target", r.profile.PeakTarget()))

	switch r.profile.Executor {
	case scenario.SharedIterations:
		return r.runSharedIterations(ctx)
	case scenario.RampingVUs:
		return r.runRampingVUs(ctx)
	case scenario.RampingArrivalRate:
		return r.runArrivalRate(ctx)
	}
	return nil // unreachable after Validate
}

// execute runs one attempt and records exactly one outcome for it. A panic
// inside the attempt is converted into SUBMIT_FAILED so the sibling clients
// keep running.
func (r *Runner) execute(ctx context.Context, index uint64) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("attempt panicked",
				zap.Uint64("index", index),
				zap.Any("panic", rec))
			r.agg.Record(protocol.Result{
				Outcome: protocol.Outcome{Kind: protocol.OutcomeSubmitFailed},
			})
		}
	}()
	r.agg.Record(r.attempt(ctx, index))
}

func (r *Runner) nextIndex() uint64 { return r.index.Add(1) - 1 }

func (r *Runner) runSharedIterations(ctx context.Context) error {
	issueCtx := ctx
	if r.profile.MaxDuration > 0 {
		var cancel context.CancelFunc
		issueCtx, cancel = context.WithTimeout(ctx, r.profile.MaxDuration)
		defer cancel()
	}
	// Attempts outlive issuance: they are only cancelled once the graceful
	// stop window elapses.
	attemptCtx, cancelAttempts := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelAttempts()

	// Workers claim their own index when they pick up a token, so an index
	// is only ever minted for an attempt that actually runs.
	work := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < r.profile.VUs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range work {
				r.execute(attemptCtx, r.nextIndex())
			}
		}()
	}

feed:
	for i := 0; i < r.profile.Iterations; i++ {
		select {
		case work <- struct{}{}:
		case <-issueCtx.Done():
			break feed
		}
	}
	close(work)

	r.drain(&wg, cancelAttempts)
	return ctx.Err()
}

func (r *Runner) runRampingVUs(ctx context.Context) error {
	duration := r.issueWindow()
	attemptCtx, cancelAttempts := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelAttempts()

	var (
		wg    sync.WaitGroup
		stops []chan struct{}
	)
	scale := func(target int) {
		for len(stops) < target {
			stop := make(chan struct{})
			stops = append(stops, stop)
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					select {
					case <-stop:
						return
					default:
					}
					r.execute(attemptCtx, r.nextIndex())
				}
			}()
		}
		for len(stops) > target {
			last := len(stops) - 1
			close(stops[last])
			stops = stops[:last]
		}
	}

	start := time.Now()
	ticker := time.NewTicker(controlInterval)
	defer ticker.Stop()

	for {
		elapsed := time.Since(start)
		if elapsed >= duration || ctx.Err() != nil {
			break
		}
		scale(r.profile.TargetAt(elapsed))
		select {
		case <-ticker.C:
		case <-ctx.Done():
		}
	}
	scale(0)

	r.drain(&wg, cancelAttempts)
	return ctx.Err()
}

func (r *Runner) runArrivalRate(ctx context.Context) error {
	duration := r.issueWindow()
	issueCtx, cancelIssue := context.WithTimeout(ctx, duration)
	defer cancelIssue()
	attemptCtx, cancelAttempts := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelAttempts()

	limiter := rate.NewLimiter(arrivalLimit(r.profile.TargetAt(0)), 1)

	// Controller: follow the stage ramp by adjusting the pacer.
	start := time.Now()
	go func() {
		ticker := time.NewTicker(controlInterval)
		defer ticker.Stop()
		for {
			select {
			case <-issueCtx.Done():
				return
			case <-ticker.C:
				limiter.SetLimit(arrivalLimit(r.profile.TargetAt(time.Since(start))))
			}
		}
	}()

	// Reusable slot pool. Validate guarantees the pool covers one second of
	// peak arrivals; if long attempts still exhaust it, issuance blocks on a
	// free slot rather than dropping the attempt.
	slots := make(chan struct{}, r.profile.PreAllocatedVUs)
	for i := 0; i < r.profile.PreAllocatedVUs; i++ {
		slots <- struct{}{}
	}

	var wg sync.WaitGroup
	for {
		if err := limiter.Wait(issueCtx); err != nil {
			if issueCtx.Err() != nil {
				break
			}
			// While the ramp holds the target at zero the required wait
			// exceeds the issue deadline, so Wait fails fast instead of
			// blocking. Hold a control interval and re-check the pacer.
			select {
			case <-issueCtx.Done():
			case <-time.After(controlInterval):
				continue
			}
			break
		}
		select {
		case <-slots:
		case <-issueCtx.Done():
		}
		if issueCtx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(idx uint64) {
			defer wg.Done()
			defer func() { slots <- struct{}{} }()
			r.execute(attemptCtx, idx)
		}(r.nextIndex())
	}

	r.drain(&wg, cancelAttempts)
	return ctx.Err()
}

// arrivalLimit converts a stage target to a pacer rate. The limiter treats a
// literal zero limit as a fixed token pool and burns its burst on the first
// reservation, which would wedge the pacer for the rest of the run; a zero
// target is applied as a floor far below one arrival per issue window.
func arrivalLimit(target int) rate.Limit {
	if target <= 0 {
		return rate.Limit(1e-9)
	}
	return rate.Limit(target)
}

// issueWindow is how long new attempts may be issued: the stage span,
// tightened by MaxDuration when set.
func (r *Runner) issueWindow() time.Duration {
	d := r.profile.StageSpan()
	if r.profile.MaxDuration > 0 && (d == 0 || r.profile.MaxDuration < d) {
		d = r.profile.MaxDuration
	}
	return d
}

// drain waits for in-flight attempts through the graceful stop window, then
// cancels whatever is still open (an attempt cut off mid-poll resolves as
// TIMEOUT inside the protocol client).
func (r *Runner) drain(wg *sync.WaitGroup, cancelAttempts context.CancelFunc) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	grace := time.NewTimer(r.profile.GracefulStop)
	defer grace.Stop()
	select {
	case <-done:
	case <-grace.C:
		r.logger.Warn("graceful stop window elapsed, cancelling in-flight attempts",
			zap.Duration("window", r.profile.GracefulStop))
	}
	cancelAttempts()
	<-done
}
