// Package stress implements the StressController: a phased ramp that
// runs constant-concurrency phases, evaluates SLA at each phase
// boundary, and halts on breach — deriving the breaking point and
// maximum sustainable load, per spec.md §4.6.
package stress

import (
	"context"
	"fmt"
	"time"

	"github.com/deli-labs/sayl/internal/executor"
	"github.com/deli-labs/sayl/internal/metrics"
	"github.com/deli-labs/sayl/internal/reqprep"
	"github.com/deli-labs/sayl/internal/scheduler"
	"github.com/deli-labs/sayl/internal/sla"
	"github.com/deli-labs/sayl/pkg/model"
)

// nonlinearSlopeThreshold: a phase's p95 jump is "non-linear" once it
// exceeds this multiple of the previous phase-to-phase slope.
const nonlinearSlopeThreshold = 2.0

// Controller drives phases against a shared request source and client.
type Controller struct {
	requests []model.ParsedRequest
	client   *executor.Client
	cache    *reqprep.Cache
}

// New builds a Controller sharing one HTTPExecutor client and
// RequestPrep cache across every phase, the way a single load test
// does — phases are windows within one run, not independent runs.
func New(requests []model.ParsedRequest, client *executor.Client, cache *reqprep.Cache) *Controller {
	return &Controller{requests: requests, client: client, cache: cache}
}

// Run executes the configured stress scenario end to end.
func (c *Controller) Run(ctx context.Context, cfg model.StressConfig) model.StressResult {
	thresholds := sla.FromStressConfig(cfg)

	var phases []model.PhaseResult
	maxSustainable := cfg.InitialUsers
	breakingPoint := 0

	switch cfg.Scenario {
	case model.StressSpike:
		if cfg.SpikeUsers > 0 {
			hold := cfg.SpikeHoldSeconds
			if hold <= 0 {
				hold = 30
			}
			pr := c.runPhase(ctx, 0, cfg.SpikeUsers, hold, cfg.ThinkTimeMs, thresholds)
			phases = append(phases, pr)
			if pr.Breached {
				breakingPoint = cfg.SpikeUsers
				maxSustainable = 0
			} else {
				maxSustainable = cfg.SpikeUsers
			}
			return finalize(phases, maxSustainable, breakingPoint)
		}

	case model.StressSoak:
		if cfg.SoakUsers > 0 && cfg.SoakDurationSeconds > 0 {
			pr := c.runPhase(ctx, 0, cfg.SoakUsers, cfg.SoakDurationSeconds, cfg.ThinkTimeMs, thresholds)
			phases = append(phases, pr)
			if pr.Breached {
				return finalize(phases, 0, cfg.SoakUsers)
			}
			maxSustainable = cfg.SoakUsers
		}
	}

	phaseIdx := len(phases)
	current := cfg.InitialUsers

	for current <= cfg.MaxUsers {
		pr := c.runPhase(ctx, phaseIdx, current, cfg.StepIntervalSeconds, cfg.ThinkTimeMs, thresholds)
		phases = append(phases, pr)

		if pr.Breached {
			breakingPoint = current
			if phaseIdx > 0 {
				maxSustainable = maxInt(0, current-cfg.StepUsers)
			} else {
				maxSustainable = 0
			}
			break
		}

		maxSustainable = current
		phaseIdx++
		current += cfg.StepUsers
	}

	return finalize(phases, maxSustainable, breakingPoint)
}

func finalize(phases []model.PhaseResult, maxSustainable, breakingPoint int) model.StressResult {
	return model.StressResult{
		Phases:                  phases,
		MaxSustainableLoad:      maxSustainable,
		BreakingPoint:           breakingPoint,
		FirstErrorAtUsers:       firstErrorUsers(phases),
		NonlinearLatencyAtUsers: detectNonlinearLatency(phases),
	}
}

// runPhase holds target concurrency constant for durationSec, takes a
// phase-window aggregate from a fresh per-phase collector (tee'd from
// the main stream by simply running an isolated scheduler+collector
// pair for the phase window, per spec.md §4.6 step 2), and evaluates
// SLA against it.
func (c *Controller) runPhase(ctx context.Context, phaseIdx, users, durationSec, thinkTimeMs int, thresholds sla.Thresholds) model.PhaseResult {
	runStart := time.Now()
	collector := metrics.New(runStart.UnixNano(), metrics.DefaultMaxResults)

	results := make(chan model.RequestResult, 20_000)
	cfg := model.RunConfig{
		Users:           users,
		DurationSeconds: durationSec,
		ThinkTimeMs:     thinkTimeMs,
		Scenario:        model.ScenarioConstant,
	}
	sched := scheduler.New(cfg, c.requests, c.client, c.cache, results)

	phaseCtx, cancel := context.WithTimeout(ctx, time.Duration(durationSec)*time.Second+scheduler.GracePeriod)
	defer cancel()

	drainDone := make(chan struct{})
	go func() {
		defer close(drainDone)
		for r := range results {
			collector.Add(r)
		}
	}()

	sched.Run(phaseCtx)
	close(results)
	<-drainDone

	collector.SetEndTime(time.Now().UnixNano())
	agg := collector.FullAggregate(false)

	verdict := sla.Evaluate(agg, thresholds)
	reasons := verdict.Violations
	// spec.md §4.6 evaluates p95/p99/error_rate/timeout_rate in that
	// priority order and halts on the first breach; sla.Evaluate
	// already returns violations in that order.
	breached := len(reasons) > 0
	if breached {
		reasons = reasons[:1]
	}

	return model.PhaseResult{
		PhaseIndex:    phaseIdx,
		TargetUsers:   users,
		ReachedUsers:  sched.ActiveCount(),
		Duration:      time.Since(runStart),
		Aggregate:     agg,
		Breached:      breached,
		BreachReasons: reasons,
	}
}

func firstErrorUsers(phases []model.PhaseResult) int {
	for _, p := range phases {
		if p.Aggregate.ErrorRatePct > 0 {
			return p.TargetUsers
		}
	}
	return 0
}

// detectNonlinearLatency mirrors stress_runner.py's slope comparison:
// flags the user count at which p95 jumped more than
// nonlinearSlopeThreshold times the previous phase-to-phase slope.
func detectNonlinearLatency(phases []model.PhaseResult) int {
	if len(phases) < 3 {
		return 0
	}
	for i := 2; i < len(phases); i++ {
		slopePrev := phases[i-1].Aggregate.P95Ms - phases[i-2].Aggregate.P95Ms
		slopeCurr := phases[i].Aggregate.P95Ms - phases[i-1].Aggregate.P95Ms
		if slopePrev > 0 && slopeCurr > nonlinearSlopeThreshold*slopePrev {
			return phases[i].TargetUsers
		}
	}
	return 0
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Summary renders a one-line human summary, grounded on the source's
// logger.info("Stress test finished: max_sustainable=%s, breaking_point=%s", ...).
func Summary(r model.StressResult) string {
	return fmt.Sprintf("stress test finished: max_sustainable_load=%d breaking_point=%d phases=%d",
		r.MaxSustainableLoad, r.BreakingPoint, len(r.Phases))
}
