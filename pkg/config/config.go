// Copyright 2025 PlanOpt Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/planopt-systems/seqopt-core/pkg/constants"
	"github.com/planopt-systems/seqopt-core/pkg/env"
)

// WeightsConfig holds the optimizer objective coefficients.
type WeightsConfig struct {
	ChangeOver float64 `yaml:"changeOver"`
	PaintBar   float64 `yaml:"paintBar"`
	MultiColor float64 `yaml:"multiColor"`
	Overflow   float64 `yaml:"overflow"`
}

// OptimizerConfig is the tunable search policy. The defaults live in
// pkg/constants; everything here is exposed as configuration rather
// than baked in.
type OptimizerConfig struct {
	WindowDays         int           `yaml:"windowDays"`
	StagnationLimit    int           `yaml:"stagnationLimit"`
	MaxIterations      int           `yaml:"maxIterations"`
	InitialTemperature float64       `yaml:"initialTemperature"`
	CoolingFactor      float64       `yaml:"coolingFactor"`
	Weights            WeightsConfig `yaml:"weights"`
}

// EngineConfig is the full engine configuration.
type EngineConfig struct {
	// Workers bounds how many optimizer runs execute concurrently.
	Workers int `yaml:"workers"`

	// MetricsPort is where the metrics endpoint listens.
	MetricsPort int `yaml:"metricsPort"`

	// DefaultBudget is the wall-clock budget applied to jobs submitted
	// without one.
	DefaultBudget time.Duration `yaml:"defaultBudget"`

	Optimizer OptimizerConfig `yaml:"optimizer"`
}

// DefaultEngineConfig returns the engine defaults: one worker per
// available core minus one, never fewer than one.
func DefaultEngineConfig() EngineConfig {
	workers := runtime.NumCPU() - 1
	if workers < 1 {
		workers = 1
	}

	return EngineConfig{
		Workers:       workers,
		MetricsPort:   constants.DefaultMetricsPort,
		DefaultBudget: constants.DefaultJobBudget,
		Optimizer: OptimizerConfig{
			WindowDays:         constants.DefaultReassignmentWindowDays,
			StagnationLimit:    constants.DefaultStagnationLimit,
			MaxIterations:      constants.DefaultMaxIterations,
			InitialTemperature: constants.DefaultInitialTemperature,
			CoolingFactor:      constants.DefaultCoolingFactor,
			Weights: WeightsConfig{
				ChangeOver: constants.DefaultChangeOverWeight,
				PaintBar:   constants.DefaultPaintBarWeight,
				MultiColor: constants.DefaultMultiColorWeight,
				Overflow:   constants.DefaultOverflowWeight,
			},
		},
	}
}

// ParseEngineConfig unmarshals YAML on top of the defaults, so a partial
// file only overrides what it names.
func ParseEngineConfig(data []byte) (EngineConfig, error) {
	cfg := DefaultEngineConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return EngineConfig{}, fmt.Errorf("failed to parse engine config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return EngineConfig{}, err
	}
	return cfg, nil
}

// LoadEngineConfig reads the config file if it exists and applies
// environment variable overrides on top.
//
// Order of precedence (highest to lowest):
// 1. Environment variables (SEQOPT_WORKERS, SEQOPT_METRICS_PORT, SEQOPT_DEFAULT_BUDGET, SEQOPT_WINDOW_DAYS)
// 2. Config file values
// 3. Defaults
func LoadEngineConfig(path string) (EngineConfig, error) {
	cfg := DefaultEngineConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			cfg, err = ParseEngineConfig(data)
			if err != nil {
				return EngineConfig{}, err
			}
		case os.IsNotExist(err):
			// Missing file means defaults; env can still override.
		default:
			return EngineConfig{}, fmt.Errorf("failed to read engine config %s: %w", path, err)
		}
	}

	workers, err := env.GetAsInt("SEQOPT_WORKERS", false, cfg.Workers)
	if err != nil {
		return EngineConfig{}, err
	}
	cfg.Workers = workers

	metricsPort, err := env.GetAsInt("SEQOPT_METRICS_PORT", false, cfg.MetricsPort)
	if err != nil {
		return EngineConfig{}, err
	}
	cfg.MetricsPort = metricsPort

	budget, err := env.GetAsDuration("SEQOPT_DEFAULT_BUDGET", false, cfg.DefaultBudget)
	if err != nil {
		return EngineConfig{}, err
	}
	cfg.DefaultBudget = budget

	window, err := env.GetAsInt("SEQOPT_WINDOW_DAYS", false, cfg.Optimizer.WindowDays)
	if err != nil {
		return EngineConfig{}, err
	}
	cfg.Optimizer.WindowDays = window

	if err := cfg.validate(); err != nil {
		return EngineConfig{}, err
	}
	return cfg, nil
}

func (c EngineConfig) validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("engine config: workers must be at least 1, got %d", c.Workers)
	}
	if c.Optimizer.WindowDays < 0 {
		return fmt.Errorf("engine config: windowDays must not be negative, got %d", c.Optimizer.WindowDays)
	}
	if c.Optimizer.CoolingFactor <= 0 || c.Optimizer.CoolingFactor >= 1 {
		return fmt.Errorf("engine config: coolingFactor must be in (0, 1), got %g", c.Optimizer.CoolingFactor)
	}
	return nil
}
