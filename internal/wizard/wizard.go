// Package wizard implements the interactive setup flow used when the
// CLI is launched with no -config/-collection/-url flags, grounded on
// internal/tui/setup.go's huh-based form sequence (one field per step,
// with validation on duration/numeric inputs) collapsed into a single
// multi-group huh.Form producing a model.RunConfig plus a target URL,
// since spec.md's ScenarioConfig is a flatter shape than the teacher's
// staged-attack Config.
package wizard

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/huh"

	"github.com/deli-labs/sayl/pkg/model"
)

// Answers holds the raw string fields bound to the form before
// conversion to a model.RunConfig.
type Answers struct {
	URL             string
	Scenario        string
	Users           string
	RampUpSeconds   string
	DurationSeconds string
	ThinkTimeMs     string
	SLAP95Ms        string
}

// Run drives the interactive wizard and returns the target URL and a
// validated RunConfig. Blocks on terminal input.
func Run() (string, model.RunConfig, error) {
	a := Answers{
		Scenario:        "constant",
		Users:           "10",
		RampUpSeconds:   "0",
		DurationSeconds: "30",
		ThinkTimeMs:     "0",
		SLAP95Ms:        "",
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Target URL").
				Placeholder("https://api.example.com/health").
				Value(&a.URL).
				Validate(func(s string) error {
					if len(s) < 8 || (s[:7] != "http://" && s[:8] != "https://") {
						return fmt.Errorf("URL must start with http:// or https://")
					}
					return nil
				}),
			huh.NewSelect[string]().
				Title("Scenario shape").
				Options(
					huh.NewOption("Constant", "constant"),
					huh.NewOption("Gradual ramp", "gradual"),
					huh.NewOption("Spike", "spike"),
				).
				Value(&a.Scenario),
		),
		huh.NewGroup(
			huh.NewInput().Title("Virtual users").Value(&a.Users).Validate(positiveInt),
			huh.NewInput().Title("Ramp-up seconds").Value(&a.RampUpSeconds).Validate(nonNegativeInt),
			huh.NewInput().Title("Duration (seconds)").Value(&a.DurationSeconds).Validate(positiveInt),
			huh.NewInput().Title("Think time (ms)").Value(&a.ThinkTimeMs).Validate(nonNegativeInt),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("SLA p95 threshold (ms, optional)").
				Value(&a.SLAP95Ms),
		),
	).WithTheme(huh.ThemeCharm())

	if err := form.Run(); err != nil {
		return "", model.RunConfig{}, fmt.Errorf("setup wizard cancelled: %w", err)
	}

	users, _ := strconv.Atoi(a.Users)
	ramp, _ := strconv.Atoi(a.RampUpSeconds)
	duration, _ := strconv.Atoi(a.DurationSeconds)
	think, _ := strconv.Atoi(a.ThinkTimeMs)

	cfg := model.RunConfig{
		Users:           users,
		RampUpSeconds:   ramp,
		DurationSeconds: duration,
		ThinkTimeMs:     think,
		Scenario:        model.Scenario(a.Scenario),
	}
	if a.Scenario == string(model.ScenarioSpike) {
		cfg.SpikeUsers = users * 3
		cfg.SpikeDurationSec = maxInt(1, duration/5)
	}
	if a.SLAP95Ms != "" {
		if v, err := strconv.ParseFloat(a.SLAP95Ms, 64); err == nil {
			cfg.SLAP95Ms = &v
		}
	}
	return a.URL, cfg, nil
}

func positiveInt(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return fmt.Errorf("must be a positive integer")
	}
	return nil
}

func nonNegativeInt(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return fmt.Errorf("must be a non-negative integer")
	}
	return nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
