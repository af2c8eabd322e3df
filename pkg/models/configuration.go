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

// GAConfig holds the general-assembly workshop constraints.
type GAConfig struct {
	ShiftsPerDay  int                `json:"shiftsPerDay"  yaml:"shiftsPerDay"`
	HoursPerShift float64            `json:"hoursPerShift" yaml:"hoursPerShift"`
	OverallJPH    float64            `json:"overallJPH"    yaml:"overallJPH"`
	ModelJPH      map[string]float64 `json:"modelJPH"      yaml:"modelJPH"`
}

// BodyModelConfig holds the per-model body workshop parameters.
type BodyModelConfig struct {
	JPH          float64 `json:"jph"          yaml:"jph"`
	PaintBars    int     `json:"paintBars"    yaml:"paintBars"`
	RoutingHours float64 `json:"routingTime"  yaml:"routingTime"`
}

// BodyConfig holds the body workshop constraints.
type BodyConfig struct {
	ChangeOverHours  float64                    `json:"changeOverTime"         yaml:"changeOverTime"`
	FinishingLineJPH float64                    `json:"finishingLineCapacity"  yaml:"finishingLineCapacity"`
	Models           map[string]BodyModelConfig `json:"models"                 yaml:"models"`
}

// CalendarDay marks one day of the scheduling horizon as active or not.
// Inactive days have zero capacity.
type CalendarDay struct {
	Day    int  `json:"day"      yaml:"day"`
	Active bool `json:"isActive" yaml:"isActive"`
}

// Configuration is a workshop-scoped constraint set a job is optimized
// against. Like plans, configurations are validated at construction and
// snapshotted on job submission.
type Configuration struct {
	ID        string        `json:"id"        yaml:"id"`
	Name      string        `json:"name"      yaml:"name"`
	CreatedBy string        `json:"createdBy" yaml:"createdBy"`
	CreatedAt time.Time     `json:"createdAt" yaml:"createdAt"`
	GA        GAConfig      `json:"gaConfig"  yaml:"gaConfig"`
	Body      BodyConfig    `json:"bodyConfig" yaml:"bodyConfig"`
	Calendar  []CalendarDay `json:"calendarDays" yaml:"calendarDays"`
}

// NewConfiguration validates the constraint sets and assembles a
// configuration.
func NewConfiguration(name, createdBy string, ga GAConfig, body BodyConfig, calendar []CalendarDay) (*Configuration, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: configuration name must not be empty", standarderrors.ErrValidation)
	}
	if ga.ShiftsPerDay <= 0 || ga.HoursPerShift <= 0 {
		return nil, fmt.Errorf("%w: shiftsPerDay and hoursPerShift must be positive", standarderrors.ErrValidation)
	}
	if ga.OverallJPH < 0 {
		return nil, fmt.Errorf("%w: overallJPH must not be negative", standarderrors.ErrValidation)
	}
	for model, jph := range ga.ModelJPH {
		if jph < 0 {
			return nil, fmt.Errorf("%w: modelJPH for %s must not be negative", standarderrors.ErrValidation, model)
		}
	}
	if body.ChangeOverHours < 0 {
		return nil, fmt.Errorf("%w: changeOverTime must not be negative", standarderrors.ErrValidation)
	}
	for model, mc := range body.Models {
		if mc.JPH < 0 || mc.RoutingHours < 0 || mc.PaintBars < 0 {
			return nil, fmt.Errorf("%w: body parameters for %s must not be negative", standarderrors.ErrValidation, model)
		}
	}

	seen := make(map[int]bool, len(calendar))
	for _, d := range calendar {
		if seen[d.Day] {
			return nil, fmt.Errorf("%w: duplicate calendar day %d", standarderrors.ErrValidation, d.Day)
		}
		seen[d.Day] = true
	}

	copied := make([]CalendarDay, len(calendar))
	copy(copied, calendar)

	return &Configuration{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedBy: createdBy,
		CreatedAt: time.Now().UTC(),
		GA:        ga,
		Body:      body,
		Calendar:  copied,
	}, nil
}

// AvailableHoursPerDay returns the working hours one active day provides.
func (c *Configuration) AvailableHoursPerDay() float64 {
	return float64(c.GA.ShiftsPerDay) * c.GA.HoursPerShift
}

// JPHFor returns the throughput used for line-load computation: the body
// line rate for the model when set, the GA model rate as fallback, and the
// overall rate when neither is configured.
func (c *Configuration) JPHFor(model string) float64 {
	if mc, ok := c.Body.Models[model]; ok && mc.JPH > 0 {
		return mc.JPH
	}
	if jph, ok := c.GA.ModelJPH[model]; ok && jph > 0 {
		return jph
	}
	return c.GA.OverallJPH
}

// IsActiveDay reports whether the given calendar day number has capacity.
// Days without a calendar entry are inactive.
func (c *Configuration) IsActiveDay(day int) bool {
	for _, d := range c.Calendar {
		if d.Day == day {
			return d.Active
		}
	}
	return false
}

// ActiveDays returns the active day numbers in ascending order.
func (c *Configuration) ActiveDays() []int {
	days := make([]int, 0, len(c.Calendar))
	for _, d := range c.Calendar {
		if d.Active {
			days = append(days, d.Day)
		}
	}
	for i := 1; i < len(days); i++ {
		for j := i; j > 0 && days[j] < days[j-1]; j-- {
			days[j], days[j-1] = days[j-1], days[j]
		}
	}
	return days
}

// CoversPlan verifies that every model the plan references has a body
// entry or a usable JPH fallback. It returns ErrInfeasibleConfiguration
// when a model has no throughput at all.
func (c *Configuration) CoversPlan(plan *ProductionPlan) error {
	for _, m := range plan.ModelsReferenced() {
		if c.JPHFor(m) <= 0 {
			return fmt.Errorf("%w: no throughput configured for model %s",
				standarderrors.ErrInfeasibleConfiguration, m)
		}
	}
	if len(plan.Orders) > 0 && len(c.ActiveDays()) == 0 {
		return fmt.Errorf("%w: no active calendar days", standarderrors.ErrInfeasibleConfiguration)
	}
	return nil
}
