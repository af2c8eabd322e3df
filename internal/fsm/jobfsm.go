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

// Package fsm implements the optimization-job lifecycle state machine.
// Every job owns one machine with its own lock, so transitions on
// unrelated jobs never serialize each other.
package fsm

import (
	"context"
	"fmt"
	"sync"

	"github.com/looplab/fsm"
	"go.uber.org/zap"

	"github.com/planopt-systems/seqopt-core/pkg/standarderrors"
)

// Job lifecycle states.
const (
	StateQueued    = "queued"
	StateRunning   = "running"
	StateCompleted = "completed"
	StateCancelled = "cancelled"
	StateFailed    = "failed"
)

// Job lifecycle events.
const (
	EventDispatch = "dispatch"
	EventComplete = "complete"
	EventCancel   = "cancel"
	EventFail     = "fail"
)

// IsTerminalState reports whether the state permits no further
// transitions.
func IsTerminalState(state string) bool {
	switch state {
	case StateCompleted, StateCancelled, StateFailed:
		return true
	}
	return false
}

// JobMachine drives one job through
// queued -> running -> {completed | cancelled | failed}. All access goes
// through the machine's own lock; Transition lets the caller attach field
// updates that must be observable atomically with the state change.
type JobMachine struct {
	id string

	mu  sync.RWMutex
	fsm *fsm.FSM

	callbacks map[string]fsm.Callback
	logger    *zap.SugaredLogger
}

// NewJobMachine creates a machine in the queued state.
func NewJobMachine(id string, logger *zap.SugaredLogger) *JobMachine {
	m := &JobMachine{
		id:        id,
		callbacks: make(map[string]fsm.Callback),
		logger:    logger,
	}

	m.fsm = fsm.NewFSM(
		StateQueued,
		fsm.Events{
			{Name: EventDispatch, Src: []string{StateQueued}, Dst: StateRunning},
			{Name: EventComplete, Src: []string{StateRunning}, Dst: StateCompleted},
			{Name: EventCancel, Src: []string{StateQueued, StateRunning}, Dst: StateCancelled},
			{Name: EventFail, Src: []string{StateQueued, StateRunning}, Dst: StateFailed},
		},
		fsm.Callbacks{
			"enter_state": func(ctx context.Context, e *fsm.Event) {
				if cb, ok := m.callbacks["enter_"+e.Dst]; ok {
					cb(ctx, e)
				}
			},
		},
	)

	return m
}

// AddCallback registers a callback for a given event name, e.g.
// "enter_running". Callbacks run while the machine lock is held; keep
// them short.
func (m *JobMachine) AddCallback(eventName string, callback fsm.Callback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks[eventName] = callback
}

// Current returns the current lifecycle state.
func (m *JobMachine) Current() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fsm.Current()
}

// IsTerminal reports whether the job has reached a terminal state.
func (m *JobMachine) IsTerminal() bool {
	return IsTerminalState(m.Current())
}

// Transition fires the event and, if the machine accepts it, runs apply
// under the same lock. An observer reading through this machine can never
// see the new state without the effects of apply, which is how the
// completed-implies-result invariant is kept.
func (m *JobMachine) Transition(ctx context.Context, event string, apply func()) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fsm.Event(ctx, event); err != nil {
		return fmt.Errorf("%w: job %s cannot %s from %s: %v",
			standarderrors.ErrInvalidTransition, m.id, event, m.fsm.Current(), err)
	}
	if apply != nil {
		apply()
	}

	m.logger.Debugf("Job %s transitioned to %s", m.id, m.fsm.Current())
	return nil
}

// Read runs fn under the machine's read lock, so a set of job fields can
// be read consistently with the state they were written with.
func (m *JobMachine) Read(fn func(state string)) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fn(m.fsm.Current())
}
