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

package models

// DayMetrics captures what one production day looks like for a given
// build sequence.
type DayMetrics struct {
	Day             int            `json:"day"`
	Date            string         `json:"date"` // dd/mm, the dashboard key
	LineCounts      map[string]int `json:"lineCounts"`
	LineChangeOvers map[string]int `json:"lineChangeOvers"`
	ModelCounts     map[string]int `json:"modelCounts"`
	PaintBars       map[string]int `json:"paintBars"`
	Colors          int            `json:"colors"`
}

// SequenceKPIs are the two summary indicators the dashboards compare
// between the original and the optimized sequence.
type SequenceKPIs struct {
	ChangeOvers    int `json:"changeOver"`
	MultiColorDays int `json:"multiColorDays"`
}

// OptimizedResult is the outcome of a completed optimization job: the
// reordered build sequence plus the metrics derived from it. A result is
// created once when its job completes and never mutated afterwards.
type OptimizedResult struct {
	Orders []BuildOrder `json:"orders"`

	Days          []DayMetrics `json:"days"`
	TotalVehicles int          `json:"totalVehicles"`
	LargeVehicles int          `json:"largeVehicles"`
	PaintBarPeak  int          `json:"paintBarPeak"`

	Original  SequenceKPIs `json:"original"`
	Optimized SequenceKPIs `json:"optimized"`

	// Seed is the random seed the optimizer ran with, recorded for
	// reproducibility.
	Seed int64 `json:"seed"`
}
