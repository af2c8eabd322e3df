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

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/planopt-systems/seqopt-core/pkg/catalog"
	"github.com/planopt-systems/seqopt-core/pkg/config"
	"github.com/planopt-systems/seqopt-core/pkg/env"
	"github.com/planopt-systems/seqopt-core/pkg/logger"
	"github.com/planopt-systems/seqopt-core/pkg/metrics"
	"github.com/planopt-systems/seqopt-core/pkg/optimizer"
	"github.com/planopt-systems/seqopt-core/pkg/scheduler"
)

func main() {
	// Initialize the global logger first thing
	logger.Initialize()
	defer func() {
		_ = logger.Sync()
	}()

	log := logger.For(logger.ComponentEngine)
	log.Info("Starting seqopt-core...")

	configPath, err := env.GetAsString("SEQOPT_CONFIG_PATH", false, "/data/seqopt.yaml")
	if err != nil {
		log.Errorf("Failed to read config path: %v", err)
		os.Exit(1)
	}

	engineConfig, err := config.LoadEngineConfig(configPath)
	if err != nil {
		log.Errorf("Failed to load config: %v", err)
		os.Exit(1)
	}
	log.Infow("Configuration loaded",
		"workers", engineConfig.Workers,
		"metricsPort", engineConfig.MetricsPort,
		"defaultBudget", engineConfig.DefaultBudget)

	// Start the metrics server
	server := metrics.SetupMetricsEndpoint(fmt.Sprintf(":%d", engineConfig.MetricsPort))
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Errorf("Failed to shutdown metrics server: %v", err)
		}
	}()

	registry := catalog.New()

	sched := scheduler.New(registry, scheduler.Options{
		Workers:       engineConfig.Workers,
		DefaultBudget: engineConfig.DefaultBudget,
		MaxIterations: engineConfig.Optimizer.MaxIterations,
		Optimizer: optimizer.Options{
			Weights: optimizer.Weights{
				ChangeOver: engineConfig.Optimizer.Weights.ChangeOver,
				PaintBar:   engineConfig.Optimizer.Weights.PaintBar,
				MultiColor: engineConfig.Optimizer.Weights.MultiColor,
				Overflow:   engineConfig.Optimizer.Weights.Overflow,
			},
			WindowDays:         engineConfig.Optimizer.WindowDays,
			StagnationLimit:    engineConfig.Optimizer.StagnationLimit,
			InitialTemperature: engineConfig.Optimizer.InitialTemperature,
			CoolingFactor:      engineConfig.Optimizer.CoolingFactor,
		},
	})
	registry.SetUsageChecker(sched)

	log.Info("Engine ready")

	// Block until asked to stop, then drain the scheduler.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigs
	log.Infow("Shutting down", "signal", sig.String())

	drainCtx, drainCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer drainCancel()
	if err := sched.Shutdown(drainCtx); err != nil {
		log.Errorf("Scheduler did not drain cleanly: %v", err)
	}
}
