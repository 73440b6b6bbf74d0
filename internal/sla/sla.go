// Package sla implements the pure SLA evaluator: compare an Aggregate
// against a set of thresholds and produce a Verdict, per spec.md §4.7.
// Grounded on internal/circuitbreaker's pure-function, explicit-reason
// evaluation style, generalized from a single stop_if expression to
// the fixed four-metric threshold set spec.md names.
package sla

import "github.com/deli-labs/sayl/pkg/model"

// Thresholds holds the four SLA metrics spec.md §4.6/§4.7 evaluate
// against, each optional (nil/zero means "not configured").
type Thresholds struct {
	P95Ms          *float64
	P99Ms          *float64
	ErrorRatePct   *float64
	TimeoutRatePct *float64
}

// FromRunConfig builds Thresholds from a load-test ScenarioConfig.
func FromRunConfig(cfg model.RunConfig) Thresholds {
	return Thresholds{
		P95Ms:          cfg.SLAP95Ms,
		P99Ms:          cfg.SLAP99Ms,
		ErrorRatePct:   cfg.SLAErrorRatePct,
		TimeoutRatePct: cfg.SLATimeoutRatePct,
	}
}

// FromStressConfig builds Thresholds from a StressConfig, whose four
// SLA fields are required (not optional), per spec.md §6.
func FromStressConfig(cfg model.StressConfig) Thresholds {
	p95, p99, errPct, toPct := cfg.SLAP95Ms, cfg.SLAP99Ms, cfg.SLAErrorRatePct, cfg.SLATimeoutRatePct
	return Thresholds{P95Ms: &p95, P99Ms: &p99, ErrorRatePct: &errPct, TimeoutRatePct: &toPct}
}

// Evaluate compares agg against thresholds and returns a Verdict.
// Violations are reported in the priority order spec.md §4.6 names —
// p95, then p99, then error_rate, then timeout_rate — so a caller that
// wants "the first breach" (stress mode) can take Violations[0].
func Evaluate(agg model.Aggregate, t Thresholds) model.Verdict {
	var violations []model.Violation

	if t.P95Ms != nil && agg.P95Ms > *t.P95Ms {
		violations = append(violations, model.Violation{MetricName: "p95_ms", Observed: agg.P95Ms, Threshold: *t.P95Ms})
	}
	if t.P99Ms != nil && agg.P99Ms > *t.P99Ms {
		violations = append(violations, model.Violation{MetricName: "p99_ms", Observed: agg.P99Ms, Threshold: *t.P99Ms})
	}
	if t.ErrorRatePct != nil && agg.ErrorRatePct > *t.ErrorRatePct {
		violations = append(violations, model.Violation{MetricName: "error_rate_pct", Observed: agg.ErrorRatePct, Threshold: *t.ErrorRatePct})
	}
	if t.TimeoutRatePct != nil && agg.TimeoutRatePct > *t.TimeoutRatePct {
		violations = append(violations, model.Violation{MetricName: "timeout_rate_pct", Observed: agg.TimeoutRatePct, Threshold: *t.TimeoutRatePct})
	}

	return model.Verdict{Pass: len(violations) == 0, Violations: violations}
}
