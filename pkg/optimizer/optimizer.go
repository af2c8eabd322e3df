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

// Package optimizer searches for a build sequence that minimizes
// change-overs, paint-bar peaks and multi-color days without violating
// capacity or calendar constraints. The search is simulated annealing
// over day reassignment within a bounded window plus in-day regrouping.
package optimizer

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/planopt-systems/seqopt-core/pkg/constants"
	"github.com/planopt-systems/seqopt-core/pkg/evaluator"
	"github.com/planopt-systems/seqopt-core/pkg/logger"
	"github.com/planopt-systems/seqopt-core/pkg/models"
	"github.com/planopt-systems/seqopt-core/pkg/standarderrors"
)

// Weights are the objective coefficients. Overflow dominates by orders of
// magnitude so a hard violation is never traded for cosmetic gains.
type Weights struct {
	ChangeOver float64 `yaml:"changeOver"`
	PaintBar   float64 `yaml:"paintBar"`
	MultiColor float64 `yaml:"multiColor"`
	Overflow   float64 `yaml:"overflow"`
}

// DefaultWeights returns the default objective coefficients.
func DefaultWeights() Weights {
	return Weights{
		ChangeOver: constants.DefaultChangeOverWeight,
		PaintBar:   constants.DefaultPaintBarWeight,
		MultiColor: constants.DefaultMultiColorWeight,
		Overflow:   constants.DefaultOverflowWeight,
	}
}

// Options tune a single optimizer run. The zero value is not usable; start
// from DefaultOptions.
type Options struct {
	Weights            Weights
	WindowDays         int
	StagnationLimit    int
	InitialTemperature float64
	CoolingFactor      float64
	Seed               int64
}

// DefaultOptions returns the default search policy with the given seed.
func DefaultOptions(seed int64) Options {
	return Options{
		Weights:            DefaultWeights(),
		WindowDays:         constants.DefaultReassignmentWindowDays,
		StagnationLimit:    constants.DefaultStagnationLimit,
		InitialTemperature: constants.DefaultInitialTemperature,
		CoolingFactor:      constants.DefaultCoolingFactor,
		Seed:               seed,
	}
}

// Budget bounds a run. Wall-clock limits are enforced through the context
// deadline the scheduler sets.
type Budget struct {
	MaxIterations int
}

// Diagnostics describe how a run went. BestTrajectory holds the accepted
// best objective each time it improved, so it is non-increasing by
// construction.
type Diagnostics struct {
	Seed             int64
	Iterations       int
	AcceptedMoves    int
	ImprovedMoves    int
	InitialObjective float64
	BestObjective    float64
	BestTrajectory   []float64
	AcceptedMean     float64
	AcceptedStdDev   float64
	Elapsed          time.Duration
}

// Optimizer runs seeded annealing searches. It is stateless between runs
// and safe for concurrent use with distinct seeds per call.
type Optimizer struct {
	opts Options
	log  *zap.SugaredLogger
}

// New creates an optimizer with the given policy.
func New(opts Options) *Optimizer {
	return &Optimizer{
		opts: opts,
		log:  logger.For(logger.ComponentOptimizer),
	}
}

// objective collapses a breakdown into the weighted scalar the annealer
// minimizes. Orders stranded on inactive days are priced like overflow so
// the search always pulls them back onto active days first.
func (o *Optimizer) objective(b evaluator.CostBreakdown) float64 {
	return o.opts.Weights.Overflow*(b.OverflowHours+float64(b.InactiveOrders)) +
		o.opts.Weights.ChangeOver*float64(b.ChangeOverCount) +
		o.opts.Weights.PaintBar*float64(b.PaintBarPeak) +
		o.opts.Weights.MultiColor*float64(b.MultiColorDays)
}

// preflight rejects structurally impossible inputs before any search is
// spent on them.
func (o *Optimizer) preflight(plan *models.ProductionPlan, cfg *models.Configuration) error {
	if err := cfg.CoversPlan(plan); err != nil {
		return err
	}

	activeDays := cfg.ActiveDays()
	capacity := float64(len(activeDays)) * cfg.AvailableHoursPerDay()

	// Lower bound per line: pure processing time with zero change-overs.
	// If even that exceeds the whole horizon's capacity, no reordering can
	// help.
	for _, line := range models.BodyLines {
		hours := 0.0
		for _, ord := range plan.Orders {
			if models.LineForModel(ord.Model) != line {
				continue
			}
			hours += float64(ord.Quantity) / cfg.JPHFor(ord.Model)
		}
		if hours > capacity {
			return fmt.Errorf("%w: line %s needs %.1fh but the calendar only provides %.1fh",
				standarderrors.ErrInfeasibleConfiguration, line, hours, capacity)
		}
	}

	// Every order must have at least one active day inside its window that
	// its month actually contains (a 31-day calendar can name days a short
	// month does not have).
	for _, ord := range plan.Orders {
		usable := 0
		for _, d := range candidateDays(activeDays, ord.Day(), o.opts.WindowDays) {
			if dayExistsIn(ord.ProductionDate, d) {
				usable++
			}
		}
		if usable == 0 {
			return fmt.Errorf("%w: order %s has no active day within ±%d days of day %d",
				standarderrors.ErrInfeasibleConfiguration, ord.ItemCode, o.opts.WindowDays, ord.Day())
		}
	}

	return nil
}

// Optimize searches for a feasible, lower-cost sequence for the plan under
// the configuration. It honors ctx cancellation at iteration-batch
// boundaries and never returns an infeasible result: if no feasible
// assignment is found within the budget it fails with ErrInfeasible.
func (o *Optimizer) Optimize(ctx context.Context, plan *models.ProductionPlan, cfg *models.Configuration, budget Budget) (*models.OptimizedResult, Diagnostics, error) {
	start := time.Now()
	diag := Diagnostics{Seed: o.opts.Seed}

	if len(plan.Orders) == 0 {
		return o.buildResult(plan, nil), diag, nil
	}

	if err := o.preflight(plan, cfg); err != nil {
		return nil, diag, err
	}

	if budget.MaxIterations <= 0 {
		budget.MaxIterations = constants.DefaultMaxIterations
	}

	rng := rand.New(rand.NewSource(o.opts.Seed))
	activeDays := cfg.ActiveDays()

	current := newState(plan.Orders)
	currentObj := o.objective(evaluator.Evaluate(current.seq, cfg))
	diag.InitialObjective = currentObj

	var bestFeasible []models.BuildOrder
	bestObj := math.Inf(1)
	record := func(seq []models.BuildOrder, obj float64) {
		bestFeasible = make([]models.BuildOrder, len(seq))
		copy(bestFeasible, seq)
		bestObj = obj
		diag.BestTrajectory = append(diag.BestTrajectory, obj)
	}
	if initial := evaluator.Evaluate(current.seq, cfg); initial.Feasible {
		record(current.seq, currentObj)
	}

	temperature := o.opts.InitialTemperature
	stagnation := 0
	accepted := make([]float64, 0, 1024)

	for i := 0; i < budget.MaxIterations; i++ {
		if i%constants.CancellationCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				diag.Iterations = i
				diag.Elapsed = time.Since(start)
				return nil, diag, err
			}
		}

		candidate, ok := o.mutate(rng, current, activeDays)
		if !ok {
			continue
		}

		breakdown := evaluator.Evaluate(candidate.seq, cfg)
		candObj := o.objective(breakdown)
		delta := candObj - currentObj

		if delta <= 0 || rng.Float64() < math.Exp(-delta/temperature) {
			current = candidate
			currentObj = candObj
			diag.AcceptedMoves++
			accepted = append(accepted, candObj)

			if breakdown.Feasible && candObj < bestObj {
				record(current.seq, candObj)
				diag.ImprovedMoves++
				stagnation = 0
			} else {
				stagnation++
			}
		} else {
			stagnation++
		}

		temperature *= o.opts.CoolingFactor
		if temperature < 1e-9 {
			temperature = 1e-9
		}

		diag.Iterations = i + 1
		if stagnation >= o.opts.StagnationLimit {
			break
		}
	}

	diag.Elapsed = time.Since(start)
	if len(accepted) > 1 {
		diag.AcceptedMean = stat.Mean(accepted, nil)
		diag.AcceptedStdDev = stat.StdDev(accepted, nil)
	}

	if bestFeasible == nil {
		return nil, diag, fmt.Errorf("%w: %d iterations, best objective %.1f",
			standarderrors.ErrInfeasible, diag.Iterations, currentObj)
	}

	diag.BestObjective = bestObj
	o.log.Debugw("optimization finished",
		"seed", o.opts.Seed,
		"iterations", diag.Iterations,
		"accepted", diag.AcceptedMoves,
		"objective", bestObj,
		"elapsed", diag.Elapsed)

	return o.buildResult(plan, bestFeasible), diag, nil
}

// buildResult assembles the immutable result value from the winning
// sequence: orders sorted by day (stable, keeping in-day grouping), the
// per-day metrics from a final hard evaluation, and the original-sequence
// KPIs for comparison.
func (o *Optimizer) buildResult(plan *models.ProductionPlan, seq []models.BuildOrder) *models.OptimizedResult {
	final := make([]models.BuildOrder, len(seq))
	copy(final, seq)
	sort.SliceStable(final, func(i, j int) bool {
		return final[i].Day() < final[j].Day()
	})

	result := &models.OptimizedResult{
		Orders: final,
		Seed:   o.opts.Seed,
	}
	for _, ord := range final {
		result.TotalVehicles += ord.Quantity
		if models.IsLargeVehicle(ord.Model) {
			result.LargeVehicles += ord.Quantity
		}
	}
	return result
}

// Finalize fills in the evaluation-derived metrics of a result. Split from
// buildResult so the scheduler can attach both sequences' KPIs with a
// single evaluator pass each.
func Finalize(result *models.OptimizedResult, plan *models.ProductionPlan, cfg *models.Configuration) {
	optimized := evaluator.Evaluate(result.Orders, cfg)
	original := evaluator.Evaluate(plan.Orders, cfg)

	result.Days = make([]models.DayMetrics, 0, len(optimized.Days))
	for _, d := range optimized.Days {
		result.Days = append(result.Days, d.DayMetrics)
	}
	result.PaintBarPeak = optimized.PaintBarPeak
	result.Optimized = optimized.KPIs()
	result.Original = original.KPIs()
}
