// Package scheduler translates a model.RunConfig scenario into a
// time-varying target concurrency N(t) and drives a pool of vu.VU
// goroutines to track it, per spec.md §4.5.
package scheduler

import "github.com/deli-labs/sayl/pkg/model"

// TargetUsers computes N(t): the target active-VU count at elapsedSec
// seconds into the run, for the three load-test scenario shapes.
//
// spike holds at Users, adds SpikeUsers from duration/2 for
// SpikeDurationSec seconds, then returns to Users; a ramp-up, when
// set, takes precedence while it lasts.
func TargetUsers(cfg model.RunConfig, elapsedSec float64) int {
	if elapsedSec < 0 {
		return 0
	}

	switch cfg.Scenario {
	case model.ScenarioGradual:
		if cfg.RampUpSeconds <= 0 {
			return cfg.Users
		}
		progress := elapsedSec / float64(cfg.RampUpSeconds)
		if progress > 1 {
			progress = 1
		}
		n := int(float64(cfg.Users) * progress)
		if n < 1 {
			n = 1
		}
		return n

	case model.ScenarioSpike:
		ramp := float64(cfg.RampUpSeconds)
		spikeDur := float64(cfg.SpikeDurationSec)
		spikeStart := float64(cfg.DurationSeconds) / 2
		spikeEnd := spikeStart + spikeDur

		if elapsedSec < ramp {
			if ramp <= 0 {
				return cfg.Users
			}
			progress := elapsedSec / ramp
			n := int(float64(cfg.Users) * progress)
			if n < 1 {
				n = 1
			}
			return n
		}
		if elapsedSec >= spikeStart && elapsedSec < spikeEnd {
			return cfg.Users + cfg.SpikeUsers
		}
		return cfg.Users

	case model.ScenarioConstant:
		fallthrough
	default:
		return cfg.Users
	}
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
