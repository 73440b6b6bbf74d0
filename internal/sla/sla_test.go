package sla

import (
	"testing"

	"github.com/deli-labs/sayl/pkg/model"
)

func TestEvaluatePass(t *testing.T) {
	p95 := 50.0
	agg := model.Aggregate{P95Ms: 20}
	v := Evaluate(agg, Thresholds{P95Ms: &p95})
	if !v.Pass {
		t.Fatalf("expected pass, got %+v", v)
	}
}

func TestEvaluateFailReportsObservedAndThreshold(t *testing.T) {
	p95 := 5.0
	agg := model.Aggregate{P95Ms: 20}
	v := Evaluate(agg, Thresholds{P95Ms: &p95})
	if v.Pass {
		t.Fatalf("expected fail")
	}
	if len(v.Violations) != 1 {
		t.Fatalf("expected 1 violation, got %d", len(v.Violations))
	}
	got := v.Violations[0]
	if got.MetricName != "p95_ms" || got.Observed != 20 || got.Threshold != 5 {
		t.Fatalf("unexpected violation: %+v", got)
	}
}

func TestEvaluatePriorityOrder(t *testing.T) {
	p95, errPct := 5.0, 1.0
	agg := model.Aggregate{P95Ms: 20, ErrorRatePct: 10}
	v := Evaluate(agg, Thresholds{P95Ms: &p95, ErrorRatePct: &errPct})
	if v.Violations[0].MetricName != "p95_ms" {
		t.Fatalf("expected p95 violation first, got %s", v.Violations[0].MetricName)
	}
}
