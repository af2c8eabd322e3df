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

package reporter

import (
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planopt-systems/seqopt-core/pkg/models"
)

func testConfig(t *testing.T) *models.Configuration {
	t.Helper()
	calendar := make([]models.CalendarDay, 0, 7)
	for d := 1; d <= 7; d++ {
		calendar = append(calendar, models.CalendarDay{Day: d, Active: true})
	}

	cfg, err := models.NewConfiguration("test", "tester",
		models.GAConfig{
			ShiftsPerDay:  2,
			HoursPerShift: 8,
			OverallJPH:    10,
		},
		models.BodyConfig{
			ChangeOverHours:  1,
			FinishingLineJPH: 40,
			Models: map[string]models.BodyModelConfig{
				"VF5": {JPH: 8, PaintBars: 4, RoutingHours: 2},
				"VF6": {JPH: 8, PaintBars: 4, RoutingHours: 2},
				"VF8": {JPH: 5, PaintBars: 3, RoutingHours: 3},
			},
		},
		calendar,
	)
	require.NoError(t, err)
	return cfg
}

func order(day int, model, color string, qty int) models.BuildOrder {
	return models.BuildOrder{
		ProductionDate: time.Date(2025, time.January, day, 0, 0, 0, 0, time.UTC),
		ItemCode:       model + "-" + color,
		Model:          model,
		Color:          color,
		Drive:          models.DriveLeft,
		Quantity:       qty,
	}
}

func testInputs(t *testing.T) (*models.ProductionPlan, *models.OptimizedResult) {
	t.Helper()
	plan, err := models.NewProductionPlan("plan", "tester", []models.BuildOrder{
		order(3, "VF5", "Red", 8),
		order(3, "VF6", "Red", 8),
		order(3, "VF5", "Red", 8),
		order(3, "VF8", "Blue", 4),
	})
	require.NoError(t, err)

	// The optimized sequence groups the VF5 orders, removing one
	// change-over.
	result := &models.OptimizedResult{
		Orders: []models.BuildOrder{
			plan.Orders[0],
			plan.Orders[2],
			plan.Orders[1],
			plan.Orders[3],
		},
		TotalVehicles: 28,
		LargeVehicles: 4,
		Seed:          1,
	}
	return plan, result
}

func TestBuildReportSeries(t *testing.T) {
	cfg := testConfig(t)
	plan, result := testInputs(t)

	report := BuildReport(plan, result, cfg)

	require.Len(t, report.BodyLine, 1)
	assert.Equal(t, "03/01", report.BodyLine[0].Date)
	assert.Equal(t, 24, report.BodyLine[0].Values["VF5/6/7"])
	assert.Equal(t, 4, report.BodyLine[0].Values["VF8/9/e34"])

	assert.Equal(t, 2, report.OriginalChangeOver[0].Values["VF5/6/7"])
	assert.Equal(t, 1, report.ChangeOver[0].Values["VF5/6/7"])

	assert.Equal(t, 24, report.GACapacity[0].Values["VF5"]+report.GACapacity[0].Values["VF6"])
	assert.Equal(t, 28, report.TotalVehicle[0].Total)
	assert.Equal(t, 2, report.PaintColor[0].Colors)

	assert.Equal(t, result.Orders, report.OptimizedProduction)
}

func TestBuildReportVehicleRatio(t *testing.T) {
	cfg := testConfig(t)
	plan, result := testInputs(t)

	report := BuildReport(plan, result, cfg)

	require.Len(t, report.VehicleRatio, 2)
	assert.Equal(t, LargeVehicleLabel, report.VehicleRatio[0].Name)
	assert.Equal(t, 14, report.VehicleRatio[0].Value) // 4 of 28
	assert.Equal(t, SmallVehicleLabel, report.VehicleRatio[1].Name)
	assert.Equal(t, 86, report.VehicleRatio[1].Value)
}

func TestBuildReportSummaryKPIs(t *testing.T) {
	cfg := testConfig(t)
	plan, result := testInputs(t)

	report := BuildReport(plan, result, cfg)

	assert.Equal(t, 2, report.Summary.Original.ChangeOvers)
	assert.Equal(t, 1, report.Summary.Optimized.ChangeOvers)
	assert.Equal(t, "50%", report.Summary.Improvement.ChangeOver)
	assert.Equal(t, "0%", report.Summary.Improvement.MultiColorDays)
}

func TestImprovementPct(t *testing.T) {
	assert.Equal(t, "0%", improvementPct(0, 0))
	assert.Equal(t, "0%", improvementPct(0, 5))
	assert.Equal(t, "50%", improvementPct(4, 2))
	assert.Equal(t, "100%", improvementPct(3, 0))
	assert.Equal(t, "35.7%", improvementPct(14, 9))
	assert.Equal(t, "-50%", improvementPct(2, 3))
}

func TestSeriesPointMarshalsFlat(t *testing.T) {
	p := SeriesPoint{Date: "03/01", Values: map[string]int{"VF3": 45, "VF5/6/7": 12}}

	data, err := json.Marshal(p)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "03/01", decoded["date"])
	assert.EqualValues(t, 45, decoded["VF3"])
	assert.EqualValues(t, 12, decoded["VF5/6/7"])
}

func TestReportJSONRoundTrip(t *testing.T) {
	cfg := testConfig(t)
	plan, result := testInputs(t)
	report := BuildReport(plan, result, cfg)

	data, err := report.ToJSON()
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	for _, key := range []string{
		"bodyLineData", "originalBodyLineData",
		"changeOverData", "originalChangeOverData",
		"paintBarData", "paintColorData", "gaCapacityData",
		"totalVehicleData", "vehicleRatioData",
		"optimizedProductionData", "summaryKPIs",
	} {
		assert.Contains(t, decoded, key)
	}
}
