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

// Package catalog is the in-memory registry of production plans and
// workshop configurations. It hands out deep copies, so callers can
// never mutate a stored entry behind the registry's back, and it refuses
// to delete entries that a live job still references.
package catalog

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	deepcopy "github.com/tiendc/go-deepcopy"
	"go.uber.org/zap"

	"github.com/planopt-systems/seqopt-core/pkg/logger"
	"github.com/planopt-systems/seqopt-core/pkg/models"
	"github.com/planopt-systems/seqopt-core/pkg/standarderrors"
)

// UsageChecker answers whether an entry is still referenced by a
// non-terminal job. The scheduler implements it.
type UsageChecker interface {
	PlanInUse(planID string) bool
	ConfigurationInUse(configID string) bool
}

// Catalog stores plans and configurations keyed by generated ids.
type Catalog struct {
	mu      sync.RWMutex
	plans   map[string]*models.ProductionPlan
	configs map[string]*models.Configuration

	usage UsageChecker
	log   *zap.SugaredLogger
}

// New creates an empty catalog.
func New() *Catalog {
	return &Catalog{
		plans:   make(map[string]*models.ProductionPlan),
		configs: make(map[string]*models.Configuration),
		log:     logger.For(logger.ComponentCatalog),
	}
}

// SetUsageChecker wires the in-use guard. Called once at startup, after
// the scheduler exists; deletes before that are unguarded.
func (c *Catalog) SetUsageChecker(usage UsageChecker) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.usage = usage
}

func copyPlan(p *models.ProductionPlan) (*models.ProductionPlan, error) {
	cp := &models.ProductionPlan{}
	if err := deepcopy.Copy(cp, p); err != nil {
		return nil, fmt.Errorf("failed to copy plan: %w", err)
	}
	return cp, nil
}

func copyConfiguration(cfg *models.Configuration) (*models.Configuration, error) {
	cp := &models.Configuration{}
	if err := deepcopy.Copy(cp, cfg); err != nil {
		return nil, fmt.Errorf("failed to copy configuration: %w", err)
	}
	return cp, nil
}

// CreatePlan stores a copy of the plan and returns its new id.
func (c *Catalog) CreatePlan(plan *models.ProductionPlan) (string, error) {
	if plan == nil {
		return "", fmt.Errorf("%w: plan is nil", standarderrors.ErrValidation)
	}
	cp, err := copyPlan(plan)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	cp.ID = id

	c.mu.Lock()
	c.plans[id] = cp
	c.mu.Unlock()

	c.log.Infow("Plan created", "plan", id, "name", cp.Name, "orders", len(cp.Orders))
	return id, nil
}

// GetPlan returns a copy of the stored plan.
func (c *Catalog) GetPlan(id string) (*models.ProductionPlan, error) {
	c.mu.RLock()
	plan, ok := c.plans[id]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: plan %s not found", standarderrors.ErrValidation, id)
	}
	return copyPlan(plan)
}

// UpdatePlan replaces the stored plan. Jobs already submitted keep their
// snapshot of the previous version.
func (c *Catalog) UpdatePlan(id string, plan *models.ProductionPlan) error {
	if plan == nil {
		return fmt.Errorf("%w: plan is nil", standarderrors.ErrValidation)
	}
	cp, err := copyPlan(plan)
	if err != nil {
		return err
	}
	cp.ID = id

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.plans[id]; !ok {
		return fmt.Errorf("%w: plan %s not found", standarderrors.ErrValidation, id)
	}
	c.plans[id] = cp
	return nil
}

// DeletePlan removes the plan unless a non-terminal job references it.
func (c *Catalog) DeletePlan(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.plans[id]; !ok {
		return fmt.Errorf("%w: plan %s not found", standarderrors.ErrValidation, id)
	}
	if c.usage != nil && c.usage.PlanInUse(id) {
		return fmt.Errorf("%w: plan %s has unfinished jobs", standarderrors.ErrResourceInUse, id)
	}
	delete(c.plans, id)
	c.log.Infow("Plan deleted", "plan", id)
	return nil
}

// ListPlans returns copies of all stored plans.
func (c *Catalog) ListPlans() ([]*models.ProductionPlan, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*models.ProductionPlan, 0, len(c.plans))
	for _, p := range c.plans {
		cp, err := copyPlan(p)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, nil
}

// CreateConfiguration stores a copy of the configuration and returns its
// new id.
func (c *Catalog) CreateConfiguration(cfg *models.Configuration) (string, error) {
	if cfg == nil {
		return "", fmt.Errorf("%w: configuration is nil", standarderrors.ErrValidation)
	}
	cp, err := copyConfiguration(cfg)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	cp.ID = id

	c.mu.Lock()
	c.configs[id] = cp
	c.mu.Unlock()

	c.log.Infow("Configuration created", "config", id, "name", cp.Name)
	return id, nil
}

// GetConfiguration returns a copy of the stored configuration.
func (c *Catalog) GetConfiguration(id string) (*models.Configuration, error) {
	c.mu.RLock()
	cfg, ok := c.configs[id]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: configuration %s not found", standarderrors.ErrValidation, id)
	}
	return copyConfiguration(cfg)
}

// UpdateConfiguration replaces the stored configuration.
func (c *Catalog) UpdateConfiguration(id string, cfg *models.Configuration) error {
	if cfg == nil {
		return fmt.Errorf("%w: configuration is nil", standarderrors.ErrValidation)
	}
	cp, err := copyConfiguration(cfg)
	if err != nil {
		return err
	}
	cp.ID = id

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.configs[id]; !ok {
		return fmt.Errorf("%w: configuration %s not found", standarderrors.ErrValidation, id)
	}
	c.configs[id] = cp
	return nil
}

// DeleteConfiguration removes the configuration unless a non-terminal
// job references it.
func (c *Catalog) DeleteConfiguration(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.configs[id]; !ok {
		return fmt.Errorf("%w: configuration %s not found", standarderrors.ErrValidation, id)
	}
	if c.usage != nil && c.usage.ConfigurationInUse(id) {
		return fmt.Errorf("%w: configuration %s has unfinished jobs", standarderrors.ErrResourceInUse, id)
	}
	delete(c.configs, id)
	c.log.Infow("Configuration deleted", "config", id)
	return nil
}

// ListConfigurations returns copies of all stored configurations.
func (c *Catalog) ListConfigurations() ([]*models.Configuration, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*models.Configuration, 0, len(c.configs))
	for _, cfg := range c.configs {
		cp, err := copyConfiguration(cfg)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, nil
}
