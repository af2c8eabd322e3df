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

// Package reporter turns a completed optimization into the comparison
// view the dashboards consume: original-vs-optimized series keyed by
// dd/mm date strings, plus the two summary KPI rows. Building a report is
// a pure transformation of its inputs.
package reporter

import (
	"math"
	"strconv"

	json "github.com/goccy/go-json"

	"github.com/planopt-systems/seqopt-core/pkg/evaluator"
	"github.com/planopt-systems/seqopt-core/pkg/models"
)

// Ratio slice labels for the large/small vehicle split.
const (
	LargeVehicleLabel = "Large (VF8/9/e34)"
	SmallVehicleLabel = "Small (VF3/5/6/7)"
)

// SeriesPoint is one per-date entry of a chart series. It marshals flat,
// the way the dashboards expect: {"date":"01/01","VF3":45,...}.
type SeriesPoint struct {
	Date   string
	Values map[string]int
}

// MarshalJSON flattens the point into a single JSON object.
func (p SeriesPoint) MarshalJSON() ([]byte, error) {
	flat := make(map[string]interface{}, len(p.Values)+1)
	flat["date"] = p.Date
	for k, v := range p.Values {
		flat[k] = v
	}
	return json.Marshal(flat)
}

// ColorPoint is the distinct-color count of one day.
type ColorPoint struct {
	Date   string `json:"date"`
	Colors int    `json:"colors"`
}

// TotalPoint is the total vehicle count of one day.
type TotalPoint struct {
	Date  string `json:"date"`
	Total int    `json:"total"`
}

// RatioSlice is one slice of the large/small vehicle pie.
type RatioSlice struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// Improvement carries the percentage-improvement strings of the KPI
// table, e.g. "35.7%".
type Improvement struct {
	ChangeOver     string `json:"changeOver"`
	MultiColorDays string `json:"multiColorDays"`
}

// SummaryKPIs is the two-row KPI table plus the improvement row.
type SummaryKPIs struct {
	Original    models.SequenceKPIs `json:"original"`
	Optimized   models.SequenceKPIs `json:"optimized"`
	Improvement Improvement         `json:"improvement"`
}

// Report is the full comparison view for one job.
type Report struct {
	BodyLine         []SeriesPoint `json:"bodyLineData"`
	OriginalBodyLine []SeriesPoint `json:"originalBodyLineData"`

	ChangeOver         []SeriesPoint `json:"changeOverData"`
	OriginalChangeOver []SeriesPoint `json:"originalChangeOverData"`

	PaintBar         []SeriesPoint `json:"paintBarData"`
	OriginalPaintBar []SeriesPoint `json:"originalPaintBarData"`

	PaintColor         []ColorPoint `json:"paintColorData"`
	OriginalPaintColor []ColorPoint `json:"originalPaintColorData"`

	GACapacity         []SeriesPoint `json:"gaCapacityData"`
	OriginalGACapacity []SeriesPoint `json:"originalGaCapacityData"`

	TotalVehicle         []TotalPoint `json:"totalVehicleData"`
	OriginalTotalVehicle []TotalPoint `json:"originalTotalVehicleData"`

	VehicleRatio         []RatioSlice `json:"vehicleRatioData"`
	OriginalVehicleRatio []RatioSlice `json:"originalVehicleRatioData"`

	OptimizedProduction []models.BuildOrder `json:"optimizedProductionData"`

	Summary SummaryKPIs `json:"summaryKPIs"`
}

// ToJSON serializes the report for persistence or transport.
func (r *Report) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}

// sequenceSeries is the per-sequence half of the report, derived from one
// evaluator pass.
type sequenceSeries struct {
	bodyLine   []SeriesPoint
	changeOver []SeriesPoint
	paintBar   []SeriesPoint
	gaCapacity []SeriesPoint
	paintColor []ColorPoint
	total      []TotalPoint
	ratio      []RatioSlice
	kpis       models.SequenceKPIs
}

func seriesFor(seq []models.BuildOrder, cfg *models.Configuration) sequenceSeries {
	breakdown := evaluator.Evaluate(seq, cfg)

	s := sequenceSeries{kpis: breakdown.KPIs()}
	for _, d := range breakdown.Days {
		s.bodyLine = append(s.bodyLine, SeriesPoint{Date: d.Date, Values: d.LineCounts})
		s.changeOver = append(s.changeOver, SeriesPoint{Date: d.Date, Values: d.LineChangeOvers})
		s.paintBar = append(s.paintBar, SeriesPoint{Date: d.Date, Values: d.PaintBars})
		s.gaCapacity = append(s.gaCapacity, SeriesPoint{Date: d.Date, Values: d.ModelCounts})
		s.paintColor = append(s.paintColor, ColorPoint{Date: d.Date, Colors: d.Colors})

		dayTotal := 0
		for _, m := range models.KnownModels {
			dayTotal += d.ModelCounts[m]
		}
		s.total = append(s.total, TotalPoint{Date: d.Date, Total: dayTotal})
	}

	total, large := 0, 0
	for _, o := range seq {
		total += o.Quantity
		if models.IsLargeVehicle(o.Model) {
			large += o.Quantity
		}
	}
	largePct := 0
	if total > 0 {
		largePct = int(math.Round(float64(large) / float64(total) * 100))
	}
	s.ratio = []RatioSlice{
		{Name: LargeVehicleLabel, Value: largePct},
		{Name: SmallVehicleLabel, Value: 100 - largePct},
	}

	return s
}

// improvementPct formats (original − optimized)/original as a percentage
// string with at most one decimal, "0%" when original is zero.
func improvementPct(original, optimized int) string {
	if original == 0 {
		return "0%"
	}
	pct := float64(original-optimized) / float64(original) * 100
	pct = math.Round(pct*10) / 10
	return strconv.FormatFloat(pct, 'f', -1, 64) + "%"
}

// BuildReport assembles the comparison view from the source plan and the
// job's result under the job's configuration snapshot.
func BuildReport(plan *models.ProductionPlan, result *models.OptimizedResult, cfg *models.Configuration) *Report {
	original := seriesFor(plan.Orders, cfg)
	optimized := seriesFor(result.Orders, cfg)

	return &Report{
		BodyLine:         optimized.bodyLine,
		OriginalBodyLine: original.bodyLine,

		ChangeOver:         optimized.changeOver,
		OriginalChangeOver: original.changeOver,

		PaintBar:         optimized.paintBar,
		OriginalPaintBar: original.paintBar,

		PaintColor:         optimized.paintColor,
		OriginalPaintColor: original.paintColor,

		GACapacity:         optimized.gaCapacity,
		OriginalGACapacity: original.gaCapacity,

		TotalVehicle:         optimized.total,
		OriginalTotalVehicle: original.total,

		VehicleRatio:         optimized.ratio,
		OriginalVehicleRatio: original.ratio,

		OptimizedProduction: result.Orders,

		Summary: SummaryKPIs{
			Original:  original.kpis,
			Optimized: optimized.kpis,
			Improvement: Improvement{
				ChangeOver:     improvementPct(original.kpis.ChangeOvers, optimized.kpis.ChangeOvers),
				MultiColorDays: improvementPct(original.kpis.MultiColorDays, optimized.kpis.MultiColorDays),
			},
		},
	}
}
