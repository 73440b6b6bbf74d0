package scheduler

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/deli-labs/sayl/internal/executor"
	"github.com/deli-labs/sayl/internal/reqprep"
	"github.com/deli-labs/sayl/internal/vu"
	"github.com/deli-labs/sayl/pkg/model"
)

// tickInterval is the scheduler's coarse recompute interval, per
// spec.md §4.5 ("at a coarse tick, e.g. every 250ms").
const tickInterval = 250 * time.Millisecond

// GracePeriod is how long Run waits for in-flight requests to finish
// after signalling stop, per spec.md §4.5's default 5s.
const GracePeriod = 5 * time.Second

// Scheduler spawns, ramps, holds, and tears down VUs to track N(t).
type Scheduler struct {
	cfg      model.RunConfig
	requests []model.ParsedRequest
	client   *executor.Client
	cache    *reqprep.Cache
	results  chan<- model.RequestResult

	// dispatchLimiter staggers the first request of VUs spawned within
	// the same reconcile tick during ramp-up, smoothing what would
	// otherwise be a burst of N simultaneous dispatches. It is built once
	// in New for the gradual scenario and kept for the whole run; it is
	// nil (no smoothing) for constant and spike.
	dispatchLimiter *rate.Limiter

	mu sync.Mutex
	// active holds VUs currently counted toward N(t). retiring holds
	// VUs reconcile has asked to stop during a ramp-down but that may
	// still be mid-request (Stop is cooperative, checked only between
	// requests); they stay tracked here so waitAll still waits for them
	// instead of letting their goroutine outlive the run and send on a
	// results channel the caller has since closed.
	active   []*managedVU
	retiring []*managedVU
}

type managedVU struct {
	v      *vu.VU
	cancel context.CancelFunc
	done   chan struct{}
}

// New constructs a Scheduler for one run. results must be drained by a
// single consumer; Run does not close it (the caller closes it after
// Run returns, once the grace period has elapsed).
func New(cfg model.RunConfig, requests []model.ParsedRequest, client *executor.Client, cache *reqprep.Cache, results chan<- model.RequestResult) *Scheduler {
	return &Scheduler{
		cfg: cfg, requests: requests, client: client, cache: cache, results: results,
		dispatchLimiter: rampDispatchLimiter(cfg),
	}
}

// rampDispatchLimiter returns a limiter that paces new-VU first
// dispatches across the ramp window for the gradual scenario, or nil
// for constant/spike where an instantaneous batch is the intended
// shape.
func rampDispatchLimiter(cfg model.RunConfig) *rate.Limiter {
	if cfg.Scenario != model.ScenarioGradual || cfg.RampUpSeconds <= 0 || cfg.Users <= 0 {
		return nil
	}
	vusPerSecond := float64(cfg.Users) / float64(cfg.RampUpSeconds)
	return rate.NewLimiter(rate.Limit(vusPerSecond), maxInt(1, cfg.Users/cfg.RampUpSeconds))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// ActiveCount returns the current number of live VUs (for tests and
// dashboards that want concurrency-tracking visibility).
func (s *Scheduler) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Run drives the ramp loop until the configured duration elapses, then
// signals all VUs to stop and waits up to GracePeriod for them to
// finish in-flight requests.
func (s *Scheduler) Run(ctx context.Context) {
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	start := time.Now()
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	duration := time.Duration(s.cfg.DurationSeconds) * time.Second

	for {
		elapsed := time.Since(start)
		target := TargetUsers(s.cfg, elapsed.Seconds())
		s.reconcile(runCtx, target)

		if elapsed >= duration {
			break
		}

		select {
		case <-ctx.Done():
			s.stopAll()
			s.waitAll(GracePeriod)
			return
		case <-ticker.C:
		}
	}

	s.stopAll()
	s.waitAll(GracePeriod)
}

// reconcile spawns or gracefully stops VUs so the live count converges
// toward target within one tick, per spec.md §4.5.
func (s *Scheduler) reconcile(ctx context.Context, target int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := len(s.active)
	if current < target {
		for i := 0; i < target-current; i++ {
			s.spawnLocked(ctx)
		}
		return
	}
	if current > target {
		// Oldest-first cancellation: spec.md §4.5 allows either policy
		// as an implementation choice; oldest-first keeps the newest
		// (most recently ramped-in) VUs, matching a typical ramp-down.
		toStop := current - target
		for i := 0; i < toStop; i++ {
			mv := s.active[i]
			mv.v.Stop()
			s.retiring = append(s.retiring, mv)
		}
		s.active = s.active[toStop:]
		s.reapRetiringLocked()
	}
}

// reapRetiringLocked drops retiring VUs that have already exited, so a
// long run with repeated ramp-up/ramp-down cycles (e.g. a spike
// scenario) doesn't accumulate one retiring entry per cycle forever.
func (s *Scheduler) reapRetiringLocked() {
	live := s.retiring[:0]
	for _, mv := range s.retiring {
		select {
		case <-mv.done:
		default:
			live = append(live, mv)
		}
	}
	s.retiring = live
}

func (s *Scheduler) spawnLocked(ctx context.Context) {
	vuCtx, cancel := context.WithCancel(ctx)
	v := vu.New(vu.Spec{
		Requests:        s.requests,
		Client:          s.client,
		Cache:           s.cache,
		Iterations:      s.cfg.Iterations,
		ThinkTime:       time.Duration(s.cfg.ThinkTimeMs) * time.Millisecond,
		Results:         s.results,
		DispatchLimiter: s.dispatchLimiter,
	})
	mv := &managedVU{v: v, cancel: cancel, done: make(chan struct{})}
	s.active = append(s.active, mv)

	go func() {
		defer close(mv.done)
		v.Run(vuCtx)
	}()
}

func (s *Scheduler) stopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, mv := range s.active {
		mv.v.Stop()
	}
}

// waitAll blocks until every VU has exited or the grace period elapses,
// at which point remaining VUs are hard-cancelled, matching spec.md
// §5's cooperative-then-forced cancellation policy.
func (s *Scheduler) waitAll(grace time.Duration) {
	s.mu.Lock()
	pending := make([]*managedVU, 0, len(s.active)+len(s.retiring))
	pending = append(pending, s.active...)
	pending = append(pending, s.retiring...)
	s.mu.Unlock()

	deadline := time.After(grace)
	remaining := make(map[*managedVU]bool, len(pending))
	for _, mv := range pending {
		remaining[mv] = true
	}

	finished := make(chan *managedVU, len(remaining))
	var wg sync.WaitGroup
	for mv := range remaining {
		wg.Add(1)
		go func(mv *managedVU) {
			defer wg.Done()
			select {
			case <-mv.done:
				finished <- mv
			case <-deadline:
			}
		}(mv)
	}
	wg.Wait()
	close(finished)
	for mv := range finished {
		delete(remaining, mv)
	}

	for mv := range remaining {
		mv.cancel()
	}
	s.mu.Lock()
	s.active = nil
	s.retiring = nil
	s.mu.Unlock()
}
