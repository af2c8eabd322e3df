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
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/planopt-systems/seqopt-core/pkg/standarderrors"
)

// DrivePosition is the steering position a vehicle is built for.
type DrivePosition string

const (
	// DriveLeft is a left-hand-drive vehicle.
	DriveLeft DrivePosition = "LHD"
	// DriveRight is a right-hand-drive vehicle.
	DriveRight DrivePosition = "RHD"
)

// KnownModels is the set of vehicle models the workshops can build.
// Order matters: report series and the optimizer iterate models in this
// order to stay deterministic.
var KnownModels = []string{"VF3", "VF5", "VF6", "VF7", "VF8", "VF9", "VFe34"}

// BodyLines are the three physical body lines, each handling a fixed group
// of models.
var BodyLines = []string{"VF3", "VF5/6/7", "VF8/9/e34"}

// LineForModel returns the body line that builds the given model.
func LineForModel(model string) string {
	switch model {
	case "VF3":
		return "VF3"
	case "VF5", "VF6", "VF7":
		return "VF5/6/7"
	default:
		return "VF8/9/e34"
	}
}

// IsLargeVehicle reports whether the model counts toward the large-vehicle
// ratio (VF8/VF9/VFe34 platforms).
func IsLargeVehicle(model string) bool {
	return LineForModel(model) == "VF8/9/e34"
}

// IsKnownModel reports whether the model code is part of the known set.
func IsKnownModel(model string) bool {
	for _, m := range KnownModels {
		if m == model {
			return true
		}
	}
	return false
}

// BuildOrder is a single line item of a production plan: a quantity of one
// model/color/drive combination planned for one production date.
type BuildOrder struct {
	ProductionDate time.Time     `json:"productionDate" yaml:"productionDate"`
	ItemCode       string        `json:"itemCode"       yaml:"itemCode"`
	Model          string        `json:"model"          yaml:"model"`
	Color          string        `json:"color"          yaml:"color"`
	Drive          DrivePosition `json:"drivePosition"  yaml:"drivePosition"`
	Quantity       int           `json:"quantity"       yaml:"quantity"`
}

// Day returns the calendar day number the order is planned for.
func (o BuildOrder) Day() int {
	return o.ProductionDate.Day()
}

// ProductionPlan is an ordered sequence of build orders submitted by a
// planner. All orders belong to one calendar month: day-of-month is the
// unit the calendar, the reassignment window and the day grouping in the
// evaluator work in, so a plan spanning months would alias distinct days.
// Plans are validated at construction and treated as immutable: the
// scheduler snapshots them on job submission, and updates go through the
// catalog which replaces the whole value.
type ProductionPlan struct {
	ID        string       `json:"id"        yaml:"id"`
	Name      string       `json:"name"      yaml:"name"`
	CreatedBy string       `json:"createdBy" yaml:"createdBy"`
	CreatedAt time.Time    `json:"createdAt" yaml:"createdAt"`
	Orders    []BuildOrder `json:"orders"    yaml:"orders"`
}

// NewProductionPlan validates the given orders and assembles a plan.
// Orders are copied so later mutation of the caller's slice cannot reach
// the plan.
func NewProductionPlan(name, createdBy string, orders []BuildOrder) (*ProductionPlan, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: plan name must not be empty", standarderrors.ErrValidation)
	}

	for i, o := range orders {
		if o.Quantity <= 0 {
			return nil, fmt.Errorf("%w: order %d (%s) has non-positive quantity %d",
				standarderrors.ErrValidation, i, o.ItemCode, o.Quantity)
		}
		if !IsKnownModel(o.Model) {
			return nil, fmt.Errorf("%w: order %d (%s) references unknown model %q",
				standarderrors.ErrValidation, i, o.ItemCode, o.Model)
		}
		if o.Drive != DriveLeft && o.Drive != DriveRight {
			return nil, fmt.Errorf("%w: order %d (%s) has invalid drive position %q",
				standarderrors.ErrValidation, i, o.ItemCode, o.Drive)
		}
		if o.ProductionDate.IsZero() {
			return nil, fmt.Errorf("%w: order %d (%s) has no production date",
				standarderrors.ErrValidation, i, o.ItemCode)
		}
		if first := orders[0].ProductionDate; o.ProductionDate.Year() != first.Year() ||
			o.ProductionDate.Month() != first.Month() {
			return nil, fmt.Errorf("%w: order %d (%s) is planned for %s, outside the plan month %s",
				standarderrors.ErrValidation, i, o.ItemCode,
				o.ProductionDate.Format("2006-01"), first.Format("2006-01"))
		}
	}

	copied := make([]BuildOrder, len(orders))
	copy(copied, orders)

	return &ProductionPlan{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedBy: createdBy,
		CreatedAt: time.Now().UTC(),
		Orders:    copied,
	}, nil
}

// TotalQuantity returns the number of vehicles across all orders.
func (p *ProductionPlan) TotalQuantity() int {
	total := 0
	for _, o := range p.Orders {
		total += o.Quantity
	}
	return total
}

// ModelsReferenced returns the distinct models used by the plan, in
// KnownModels order.
func (p *ProductionPlan) ModelsReferenced() []string {
	present := make(map[string]bool, len(p.Orders))
	for _, o := range p.Orders {
		present[o.Model] = true
	}

	referenced := make([]string, 0, len(present))
	for _, m := range KnownModels {
		if present[m] {
			referenced = append(referenced, m)
		}
	}
	return referenced
}
