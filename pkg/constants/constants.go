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

package constants

import "time"

const (
	// DefaultReassignmentWindowDays bounds how far an order may move from its
	// planned production date, in either direction.
	DefaultReassignmentWindowDays = 3

	// DefaultStagnationLimit is the number of consecutive non-improving
	// iterations after which the search gives up.
	DefaultStagnationLimit = 500

	// DefaultMaxIterations bounds a single optimizer run.
	DefaultMaxIterations = 200_000

	// DefaultInitialTemperature and DefaultCoolingFactor define the annealing
	// schedule. The temperature is multiplied by the cooling factor after
	// every iteration and floored at a small epsilon.
	DefaultInitialTemperature = 50.0
	DefaultCoolingFactor      = 0.9995

	// CancellationCheckInterval is the number of iterations between
	// cooperative cancellation checks in the optimizer main loop.
	CancellationCheckInterval = 128

	// Objective weights. Capacity overflow dominates so that hard violations
	// are always eliminated before cosmetic improvements are considered.
	DefaultOverflowWeight   = 10_000.0
	DefaultChangeOverWeight = 10.0
	DefaultPaintBarWeight   = 5.0
	DefaultMultiColorWeight = 3.0

	// MultiColorThreshold is the number of distinct colors above which a
	// production day counts as multi-color.
	MultiColorThreshold = 3

	// DefaultJobBudget is the wall-clock budget applied to a job when the
	// submission does not carry one.
	DefaultJobBudget = 2 * time.Minute

	// CancelGracePeriod is how long the scheduler waits for a running
	// optimizer to observe a cancellation signal before reclaiming the
	// worker.
	CancelGracePeriod = 2 * time.Second

	// DefaultMetricsPort is the port the metrics endpoint listens on.
	DefaultMetricsPort = 8091
)
