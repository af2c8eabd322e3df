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

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planopt-systems/seqopt-core/pkg/standarderrors"
)

func date(day int) time.Time {
	return time.Date(2025, time.January, day, 0, 0, 0, 0, time.UTC)
}

func TestLineForModel(t *testing.T) {
	assert.Equal(t, "VF3", LineForModel("VF3"))
	assert.Equal(t, "VF5/6/7", LineForModel("VF5"))
	assert.Equal(t, "VF5/6/7", LineForModel("VF6"))
	assert.Equal(t, "VF5/6/7", LineForModel("VF7"))
	assert.Equal(t, "VF8/9/e34", LineForModel("VF8"))
	assert.Equal(t, "VF8/9/e34", LineForModel("VF9"))
	assert.Equal(t, "VF8/9/e34", LineForModel("VFe34"))
}

func TestIsLargeVehicle(t *testing.T) {
	assert.False(t, IsLargeVehicle("VF3"))
	assert.False(t, IsLargeVehicle("VF7"))
	assert.True(t, IsLargeVehicle("VF8"))
	assert.True(t, IsLargeVehicle("VFe34"))
}

func TestNewProductionPlanValid(t *testing.T) {
	plan, err := NewProductionPlan("week-3", "planner", []BuildOrder{
		{ProductionDate: date(6), ItemCode: "A-1", Model: "VF3", Color: "Red", Drive: DriveLeft, Quantity: 40},
		{ProductionDate: date(6), ItemCode: "A-2", Model: "VF8", Color: "Blue", Drive: DriveRight, Quantity: 12},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, plan.ID)
	assert.Equal(t, "week-3", plan.Name)
	assert.Equal(t, 52, plan.TotalQuantity())
	assert.Equal(t, []string{"VF3", "VF8"}, plan.ModelsReferenced())
}

func TestNewProductionPlanCopiesOrders(t *testing.T) {
	orders := []BuildOrder{
		{ProductionDate: date(6), ItemCode: "A-1", Model: "VF3", Color: "Red", Drive: DriveLeft, Quantity: 40},
	}
	plan, err := NewProductionPlan("p", "planner", orders)
	require.NoError(t, err)

	orders[0].Quantity = 999
	assert.Equal(t, 40, plan.Orders[0].Quantity)
}

func TestNewProductionPlanRejectsBadInput(t *testing.T) {
	cases := map[string]BuildOrder{
		"zero quantity":     {ProductionDate: date(6), ItemCode: "A", Model: "VF3", Drive: DriveLeft, Quantity: 0},
		"negative quantity": {ProductionDate: date(6), ItemCode: "A", Model: "VF3", Drive: DriveLeft, Quantity: -4},
		"unknown model":     {ProductionDate: date(6), ItemCode: "A", Model: "VF4", Drive: DriveLeft, Quantity: 1},
		"bad drive":         {ProductionDate: date(6), ItemCode: "A", Model: "VF3", Drive: "MID", Quantity: 1},
		"no date":           {ItemCode: "A", Model: "VF3", Drive: DriveLeft, Quantity: 1},
	}

	for name, order := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewProductionPlan("p", "planner", []BuildOrder{order})
			assert.ErrorIs(t, err, standarderrors.ErrValidation)
		})
	}

	_, err := NewProductionPlan("", "planner", nil)
	assert.ErrorIs(t, err, standarderrors.ErrValidation)
}

func TestNewProductionPlanRejectsMixedMonths(t *testing.T) {
	_, err := NewProductionPlan("p", "planner", []BuildOrder{
		{ProductionDate: date(28), ItemCode: "A", Model: "VF3", Drive: DriveLeft, Quantity: 1},
		{ProductionDate: time.Date(2025, time.February, 3, 0, 0, 0, 0, time.UTC),
			ItemCode: "B", Model: "VF3", Drive: DriveLeft, Quantity: 1},
	})
	assert.ErrorIs(t, err, standarderrors.ErrValidation)
	assert.ErrorContains(t, err, "outside the plan month")
}

func TestBuildOrderDay(t *testing.T) {
	o := BuildOrder{ProductionDate: date(17)}
	assert.Equal(t, 17, o.Day())
}
