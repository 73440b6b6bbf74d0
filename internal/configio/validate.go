package configio

import (
	"fmt"

	"github.com/deli-labs/sayl/pkg/model"
)

// ValidateRunConfig enforces spec.md §6's ScenarioConfig field bounds
// before a run starts — a client misconfiguration, surfaced with exit
// code 2 per spec.md §7.
func ValidateRunConfig(cfg model.RunConfig) error {
	if cfg.Users < 1 {
		return fmt.Errorf("%w: users must be >= 1, got %d", model.ErrConfigInvalid, cfg.Users)
	}
	if cfg.RampUpSeconds < 0 {
		return fmt.Errorf("%w: ramp_up_seconds must be >= 0", model.ErrConfigInvalid)
	}
	if cfg.DurationSeconds < 1 {
		return fmt.Errorf("%w: duration_seconds must be >= 1, got %d", model.ErrConfigInvalid, cfg.DurationSeconds)
	}
	if cfg.Iterations < 0 {
		return fmt.Errorf("%w: iterations must be >= 0", model.ErrConfigInvalid)
	}
	if cfg.ThinkTimeMs < 0 {
		return fmt.Errorf("%w: think_time_ms must be >= 0", model.ErrConfigInvalid)
	}
	switch cfg.Scenario {
	case model.ScenarioConstant, model.ScenarioGradual, model.ScenarioSpike:
	default:
		return fmt.Errorf("%w: unknown scenario %q", model.ErrConfigInvalid, cfg.Scenario)
	}
	if cfg.Scenario == model.ScenarioSpike && cfg.SpikeDurationSec <= 0 {
		return fmt.Errorf("%w: spike scenario requires spike_duration_seconds > 0", model.ErrConfigInvalid)
	}
	return nil
}

// ValidateStressConfig enforces spec.md §6's StressConfig field
// bounds.
func ValidateStressConfig(cfg model.StressConfig) error {
	switch cfg.Scenario {
	case model.StressLinearOverload, model.StressSpike, model.StressSoak:
	default:
		return fmt.Errorf("%w: unknown stress scenario %q", model.ErrConfigInvalid, cfg.Scenario)
	}
	if cfg.Scenario == model.StressLinearOverload || cfg.Scenario == model.StressSoak {
		if cfg.InitialUsers < 1 {
			return fmt.Errorf("%w: initial_users must be >= 1", model.ErrConfigInvalid)
		}
		if cfg.StepUsers < 1 {
			return fmt.Errorf("%w: step_users must be >= 1", model.ErrConfigInvalid)
		}
		if cfg.StepIntervalSeconds < 1 {
			return fmt.Errorf("%w: step_interval_seconds must be >= 1", model.ErrConfigInvalid)
		}
		if cfg.MaxUsers < cfg.InitialUsers {
			return fmt.Errorf("%w: max_users must be >= initial_users", model.ErrConfigInvalid)
		}
	}
	if cfg.Scenario == model.StressSpike && cfg.SpikeUsers < 1 {
		return fmt.Errorf("%w: spike_stress requires spike_users >= 1", model.ErrConfigInvalid)
	}
	if cfg.Scenario == model.StressSoak && (cfg.SoakUsers < 1 || cfg.SoakDurationSeconds < 1) {
		return fmt.Errorf("%w: soak_stress requires soak_users >= 1 and soak_duration_seconds >= 1", model.ErrConfigInvalid)
	}
	if cfg.SLAP95Ms <= 0 || cfg.SLAP99Ms <= 0 {
		return fmt.Errorf("%w: stress tests require sla_p95_ms and sla_p99_ms > 0", model.ErrConfigInvalid)
	}
	return nil
}
