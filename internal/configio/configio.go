// Package configio loads ScenarioConfig (load-test) and StressConfig
// (stress-test) definitions from YAML, per spec.md §6. This is named
// an "external collaborator" interface in spec.md §1/§6, but is built
// out rather than left abstract so the engine is runnable end to end;
// grounded on pkg/config/config.go's YAMLConfig/LoadConfig shape.
package configio

import (
	"fmt"
	"os"

	"github.com/deli-labs/sayl/pkg/model"
	"gopkg.in/yaml.v3"
)

// LoadRunConfig reads and validates a load-test ScenarioConfig file.
// model.RunConfig carries its own yaml tags, so no intermediate struct
// is needed here.
func LoadRunConfig(path string) (model.RunConfig, error) {
	var cfg model.RunConfig
	if err := readYAML(path, &cfg); err != nil {
		return model.RunConfig{}, err
	}
	if cfg.Scenario == "" {
		cfg.Scenario = model.ScenarioConstant
	}
	return cfg, ValidateRunConfig(cfg)
}

// LoadStressConfig reads and validates a StressConfig file.
func LoadStressConfig(path string) (model.StressConfig, error) {
	var cfg model.StressConfig
	if err := readYAML(path, &cfg); err != nil {
		return model.StressConfig{}, err
	}
	if cfg.Scenario == "" {
		cfg.Scenario = model.StressLinearOverload
	}
	return cfg, ValidateStressConfig(cfg)
}

func readYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: reading %s: %v", model.ErrConfigInvalid, path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: parsing %s: %v", model.ErrConfigInvalid, path, err)
	}
	return nil
}
