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

// Package evaluator scores a candidate build sequence against a workshop
// configuration. It is pure: the same sequence and configuration always
// produce the same breakdown, and nothing blocks, so the optimizer can
// call it from its hot loop.
package evaluator

import (
	"math"
	"sort"

	"github.com/planopt-systems/seqopt-core/pkg/constants"
	"github.com/planopt-systems/seqopt-core/pkg/models"
)

// DayCost is the evaluation of a single production day.
type DayCost struct {
	models.DayMetrics

	// LineHours is the consumed capacity per body line, change-over
	// overhead included.
	LineHours map[string]float64

	// OverflowHours is how far the day exceeds its capacity, summed over
	// lines. Zero on a feasible day.
	OverflowHours float64

	// InactiveOrders counts orders scheduled on this day although the
	// calendar marks it inactive.
	InactiveOrders int
}

// CostBreakdown is the structured result of evaluating a sequence. The
// optimizer applies its own weights to the individual terms; callers that
// only care about hard constraints read Feasible.
type CostBreakdown struct {
	Days []DayCost

	ChangeOverCount int
	PaintBarPeak    int
	MultiColorDays  int
	OverflowHours   float64
	InactiveOrders  int

	Feasible bool
}

// KPIs reduces the breakdown to the two dashboard summary indicators.
func (b CostBreakdown) KPIs() models.SequenceKPIs {
	return models.SequenceKPIs{
		ChangeOvers:    b.ChangeOverCount,
		MultiColorDays: b.MultiColorDays,
	}
}

// paintBarsFor returns the continuous paint-bar concurrency one model
// needs on one day: once production has run for a full routing time the
// pipeline is saturated at rate x routing bars; with fewer units than
// that, every unit is in flight at once.
func paintBarsFor(cfg *models.Configuration, model string, quantity int) int {
	mc, ok := cfg.Body.Models[model]
	if !ok || mc.RoutingHours <= 0 || quantity <= 0 {
		return 0
	}

	saturated := int(math.Ceil(cfg.JPHFor(model) * mc.RoutingHours))
	if quantity < saturated {
		return quantity
	}
	return saturated
}

// Evaluate computes the per-day cost breakdown of a build sequence under
// the given configuration. Sequence order is significant: orders sharing
// a production day are assumed to run through the body lines in slice
// order, which is what determines change-overs. Orders are grouped by
// day-of-month, so the sequence must come from a single-month plan
// (NewProductionPlan enforces this); orders from different months would
// otherwise collapse onto the same day.
func Evaluate(seq []models.BuildOrder, cfg *models.Configuration) CostBreakdown {
	// Group by day, preserving in-day sequence order.
	byDay := make(map[int][]models.BuildOrder)
	days := make([]int, 0)
	for _, o := range seq {
		day := o.Day()
		if _, seen := byDay[day]; !seen {
			days = append(days, day)
		}
		byDay[day] = append(byDay[day], o)
	}
	sort.Ints(days)

	available := cfg.AvailableHoursPerDay()
	breakdown := CostBreakdown{Days: make([]DayCost, 0, len(days))}

	for _, day := range days {
		orders := byDay[day]
		dc := DayCost{
			DayMetrics: models.DayMetrics{
				Day:             day,
				Date:            orders[0].ProductionDate.Format("02/01"),
				LineCounts:      make(map[string]int),
				LineChangeOvers: make(map[string]int),
				ModelCounts:     make(map[string]int),
				PaintBars:       make(map[string]int),
			},
			LineHours: make(map[string]float64),
		}

		if !cfg.IsActiveDay(day) {
			dc.InactiveOrders = len(orders)
			breakdown.InactiveOrders += len(orders)
		}

		// Line load and change-overs, walking each line's orders in
		// sequence order.
		colors := make(map[string]bool)
		dayTotal := 0
		for _, line := range models.BodyLines {
			lastModel := ""
			hours := 0.0
			changeOvers := 0
			for _, o := range orders {
				if models.LineForModel(o.Model) != line {
					continue
				}
				if lastModel != "" && lastModel != o.Model {
					changeOvers++
				}
				lastModel = o.Model
				if jph := cfg.JPHFor(o.Model); jph > 0 {
					hours += float64(o.Quantity) / jph
				}
				dc.LineCounts[line] += o.Quantity
			}
			if dc.LineCounts[line] == 0 {
				continue
			}
			hours += float64(changeOvers) * cfg.Body.ChangeOverHours
			dc.LineHours[line] = hours
			dc.LineChangeOvers[line] = changeOvers
			breakdown.ChangeOverCount += changeOvers
			if hours > available {
				dc.OverflowHours += hours - available
			}
		}

		for _, o := range orders {
			dc.ModelCounts[o.Model] += o.Quantity
			colors[o.Color] = true
			dayTotal += o.Quantity
		}

		// The finishing line is shared by all body lines.
		if cfg.Body.FinishingLineJPH > 0 {
			finishingHours := float64(dayTotal) / cfg.Body.FinishingLineJPH
			if finishingHours > available {
				dc.OverflowHours += finishingHours - available
			}
		}

		// Paint-bar concurrency per model; the day's demand is the sum
		// because the models run on their lines simultaneously.
		dayBars := 0
		for _, m := range models.KnownModels {
			qty := dc.ModelCounts[m]
			if qty == 0 {
				continue
			}
			bars := paintBarsFor(cfg, m, qty)
			dc.PaintBars[m] = bars
			dayBars += bars
		}
		if dayBars > breakdown.PaintBarPeak {
			breakdown.PaintBarPeak = dayBars
		}

		dc.Colors = len(colors)
		if dc.Colors > constants.MultiColorThreshold {
			breakdown.MultiColorDays++
		}

		breakdown.OverflowHours += dc.OverflowHours
		breakdown.Days = append(breakdown.Days, dc)
	}

	breakdown.Feasible = breakdown.OverflowHours == 0 && breakdown.InactiveOrders == 0
	return breakdown
}
