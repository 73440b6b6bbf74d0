package configio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/deli-labs/sayl/pkg/model"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadRunConfig(t *testing.T) {
	path := writeTemp(t, "scenario.yaml", `
users: 10
ramp_up_seconds: 2
duration_seconds: 30
scenario: gradual
think_time_ms: 100
sla_p95_ms: 200
`)
	cfg, err := LoadRunConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Users != 10 || cfg.Scenario != model.ScenarioGradual {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.SLAP95Ms == nil || *cfg.SLAP95Ms != 200 {
		t.Fatalf("expected sla_p95_ms=200, got %+v", cfg.SLAP95Ms)
	}
}

func TestLoadRunConfigRejectsInvalid(t *testing.T) {
	path := writeTemp(t, "bad.yaml", `
users: 0
duration_seconds: 10
scenario: constant
`)
	if _, err := LoadRunConfig(path); err == nil {
		t.Fatal("expected validation error for users=0")
	}
}

func TestLoadStressConfig(t *testing.T) {
	path := writeTemp(t, "stress.yaml", `
scenario: linear_overload
initial_users: 5
step_users: 5
step_interval_seconds: 10
max_users: 50
sla_p95_ms: 200
sla_p99_ms: 400
sla_error_rate_pct: 5
sla_timeout_rate_pct: 2
`)
	cfg, err := LoadStressConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MaxUsers != 50 || cfg.Scenario != model.StressLinearOverload {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}
