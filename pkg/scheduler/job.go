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

package scheduler

import (
	"context"
	"hash/fnv"
	"time"

	"github.com/planopt-systems/seqopt-core/internal/fsm"
	"github.com/planopt-systems/seqopt-core/pkg/models"
)

// JobStatus is the externally visible lifecycle status of a job.
type JobStatus string

const (
	StatusQueued    JobStatus = "Queued"
	StatusRunning   JobStatus = "Running"
	StatusCompleted JobStatus = "Completed"
	StatusCancelled JobStatus = "Cancelled"
	StatusFailed    JobStatus = "Failed"
)

func statusFromState(state string) JobStatus {
	switch state {
	case fsm.StateQueued:
		return StatusQueued
	case fsm.StateRunning:
		return StatusRunning
	case fsm.StateCompleted:
		return StatusCompleted
	case fsm.StateCancelled:
		return StatusCancelled
	case fsm.StateFailed:
		return StatusFailed
	}
	return JobStatus(state)
}

// Job is one optimization job. The plan and configuration are private
// deep copies taken at submission, so later edits to the catalog entries
// never leak into a job that is already queued or running.
//
// result, failureReason and completedAt are only written inside machine
// transitions and only read through the machine's lock, which makes
// "Completed implies result present" atomic for every observer.
type Job struct {
	ID          string
	PlanID      string
	ConfigID    string
	SubmittedBy string
	CreatedAt   time.Time
	Seed        int64
	Budget      time.Duration

	plan *models.ProductionPlan
	cfg  *models.Configuration

	machine *fsm.JobMachine
	cancel  context.CancelFunc

	result        *models.OptimizedResult
	failureReason string
	completedAt   *time.Time
}

// JobView is a consistent, copyable snapshot of a job's externally
// visible fields.
type JobView struct {
	ID            string     `json:"id"`
	PlanID        string     `json:"planId"`
	ConfigID      string     `json:"configId"`
	Status        JobStatus  `json:"status"`
	SubmittedBy   string     `json:"submittedBy"`
	CreatedAt     time.Time  `json:"createdAt"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
	FailureReason string     `json:"failureReason,omitempty"`
	Seed          int64      `json:"seed"`
}

// View snapshots the job under its machine lock, so the status and the
// fields written with it are always seen together.
func (j *Job) View() JobView {
	view := JobView{
		ID:          j.ID,
		PlanID:      j.PlanID,
		ConfigID:    j.ConfigID,
		SubmittedBy: j.SubmittedBy,
		CreatedAt:   j.CreatedAt,
		Seed:        j.Seed,
	}
	j.machine.Read(func(state string) {
		view.Status = statusFromState(state)
		view.FailureReason = j.failureReason
		if j.completedAt != nil {
			t := *j.completedAt
			view.CompletedAt = &t
		}
	})
	return view
}

// seedForJob derives the optimizer seed from the job id, so re-running
// the same submission sequence on the same day reproduces results
// bit-for-bit.
func seedForJob(id string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	return int64(h.Sum64())
}
