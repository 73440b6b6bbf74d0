package scheduler

import (
	"testing"

	"github.com/deli-labs/sayl/pkg/model"
)

func TestGradualRamp(t *testing.T) {
	cfg := model.RunConfig{Users: 10, RampUpSeconds: 2, DurationSeconds: 4, Scenario: model.ScenarioGradual}
	if n := TargetUsers(cfg, 1); n != 5 {
		t.Fatalf("at t=1s expected ~5, got %d", n)
	}
	if n := TargetUsers(cfg, 3); n != 10 {
		t.Fatalf("at t=3s expected 10 (held), got %d", n)
	}
}

func TestSpikeTrace(t *testing.T) {
	// S3: users=2, duration=6, spike_users=8, spike_duration=2 ->
	// active VUs: 2 for [0,3), 10 for [3,5), 2 for [5,6).
	cfg := model.RunConfig{
		Users: 2, DurationSeconds: 6, Scenario: model.ScenarioSpike,
		SpikeUsers: 8, SpikeDurationSec: 2,
	}
	cases := []struct {
		t    float64
		want int
	}{
		{1, 2}, {2.9, 2}, {3.5, 10}, {4.9, 10}, {5.5, 2},
	}
	for _, c := range cases {
		if got := TargetUsers(cfg, c.t); got != c.want {
			t.Fatalf("t=%.1f: want %d got %d", c.t, c.want, got)
		}
	}
}

func TestConstantScenario(t *testing.T) {
	cfg := model.RunConfig{Users: 5, DurationSeconds: 3, Scenario: model.ScenarioConstant}
	for _, tt := range []float64{0, 1, 2, 3} {
		if n := TargetUsers(cfg, tt); n != 5 {
			t.Fatalf("constant scenario must hold steady, got %d at t=%.1f", n, tt)
		}
	}
}

func TestNegativeElapsedIsZero(t *testing.T) {
	cfg := model.RunConfig{Users: 5, Scenario: model.ScenarioConstant}
	if n := TargetUsers(cfg, -1); n != 0 {
		t.Fatalf("expected 0 before start, got %d", n)
	}
}
