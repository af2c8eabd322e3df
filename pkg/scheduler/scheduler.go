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

// Package scheduler owns the optimization jobs: it accepts submissions,
// bounds concurrent optimizer runs with a worker pool, drives each job
// through its lifecycle state machine and serves status, results and
// reports.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	loopfsm "github.com/looplab/fsm"
	cache "github.com/patrickmn/go-cache"
	deepcopy "github.com/tiendc/go-deepcopy"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/planopt-systems/seqopt-core/internal/fsm"
	"github.com/planopt-systems/seqopt-core/pkg/constants"
	"github.com/planopt-systems/seqopt-core/pkg/logger"
	"github.com/planopt-systems/seqopt-core/pkg/metrics"
	"github.com/planopt-systems/seqopt-core/pkg/models"
	"github.com/planopt-systems/seqopt-core/pkg/optimizer"
	"github.com/planopt-systems/seqopt-core/pkg/reporter"
	"github.com/planopt-systems/seqopt-core/pkg/standarderrors"
)

// PlanSource resolves plan and configuration references at submission
// time. The catalog implements it.
type PlanSource interface {
	GetPlan(id string) (*models.ProductionPlan, error)
	GetConfiguration(id string) (*models.Configuration, error)
}

// ResultSink receives completed results for persistence. Persistence
// failures never affect the job outcome; the scheduler retries with
// backoff and gives up with a log line.
type ResultSink interface {
	PersistResult(jobID string, result *models.OptimizedResult) error
}

// StatusNotifier is told about every externally visible status change.
// Notifications are dispatched asynchronously, so a slow notifier cannot
// block a transition.
type StatusNotifier interface {
	NotifyStatusChange(jobID string, status JobStatus)
}

// Options configure a scheduler instance.
type Options struct {
	// Workers bounds how many optimizer runs execute concurrently.
	Workers int

	// DefaultBudget is applied to submissions that carry no budget.
	DefaultBudget time.Duration

	// MaxIterations bounds each optimizer run.
	MaxIterations int

	// Optimizer is the search policy template. Its Seed is ignored; every
	// job runs with a seed derived from its id.
	Optimizer optimizer.Options

	// Sink and Notifier are optional collaborators.
	Sink     ResultSink
	Notifier StatusNotifier
}

// SubmitRequest is one job submission.
type SubmitRequest struct {
	PlanID      string
	ConfigID    string
	SubmittedBy string

	// Budget overrides the scheduler default when positive.
	Budget time.Duration
}

// Scheduler is the job engine. The table lock only guards the jobs map
// and the per-day id counter; per-job state is guarded by each job's own
// machine, so a long transition on one job never blocks reads on another.
type Scheduler struct {
	source PlanSource
	opts   Options

	workers *semaphore.Weighted
	log     *zap.SugaredLogger

	mu     sync.RWMutex
	jobs   map[string]*Job
	daySeq map[string]int

	reports *cache.Cache

	wg  sync.WaitGroup
	now func() time.Time
}

// New creates a scheduler serving jobs from the given source.
func New(source PlanSource, opts Options) *Scheduler {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.DefaultBudget <= 0 {
		opts.DefaultBudget = constants.DefaultJobBudget
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = constants.DefaultMaxIterations
	}

	return &Scheduler{
		source:  source,
		opts:    opts,
		workers: semaphore.NewWeighted(int64(opts.Workers)),
		log:     logger.For(logger.ComponentScheduler),
		jobs:    make(map[string]*Job),
		daySeq:  make(map[string]int),
		reports: cache.New(10*time.Minute, 30*time.Minute),
		now:     time.Now,
	}
}

// nextJobID hands out {yyyymmdd}_{n} ids, n restarting at 1 per day.
// Must be called with s.mu held.
func (s *Scheduler) nextJobID() string {
	key := s.now().Format("20060102")
	s.daySeq[key]++
	return fmt.Sprintf("%s_%d", key, s.daySeq[key])
}

// SubmitJob validates the request, snapshots the referenced plan and
// configuration and enqueues a new job. It returns the job id
// immediately; the optimization runs asynchronously.
func (s *Scheduler) SubmitJob(ctx context.Context, req SubmitRequest) (string, error) {
	plan, err := s.source.GetPlan(req.PlanID)
	if err != nil {
		return "", fmt.Errorf("%w: plan %s: %v", standarderrors.ErrValidation, req.PlanID, err)
	}
	cfg, err := s.source.GetConfiguration(req.ConfigID)
	if err != nil {
		return "", fmt.Errorf("%w: configuration %s: %v", standarderrors.ErrValidation, req.ConfigID, err)
	}

	planCopy := &models.ProductionPlan{}
	if err := deepcopy.Copy(planCopy, plan); err != nil {
		return "", fmt.Errorf("failed to snapshot plan %s: %w", req.PlanID, err)
	}
	cfgCopy := &models.Configuration{}
	if err := deepcopy.Copy(cfgCopy, cfg); err != nil {
		return "", fmt.Errorf("failed to snapshot configuration %s: %w", req.ConfigID, err)
	}

	budget := req.Budget
	if budget <= 0 {
		budget = s.opts.DefaultBudget
	}

	// The job context is detached from the submission context: the caller
	// returning must not cancel a queued job.
	jobCtx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	id := s.nextJobID()
	job := &Job{
		ID:          id,
		PlanID:      req.PlanID,
		ConfigID:    req.ConfigID,
		SubmittedBy: req.SubmittedBy,
		CreatedAt:   s.now(),
		Seed:        seedForJob(id),
		Budget:      budget,
		plan:        planCopy,
		cfg:         cfgCopy,
		machine:     fsm.NewJobMachine(id, logger.For(logger.ComponentJobFSM)),
		cancel:      cancel,
	}
	s.jobs[id] = job
	s.mu.Unlock()

	// Status changes ride on the machine's enter-state hooks, so every
	// transition notifies exactly once no matter which path fired it. The
	// initial queued state is never entered, so it is announced here.
	for _, state := range []string{fsm.StateRunning, fsm.StateCompleted, fsm.StateCancelled, fsm.StateFailed} {
		status := statusFromState(state)
		job.machine.AddCallback("enter_"+state, func(context.Context, *loopfsm.Event) {
			s.notify(id, status)
		})
	}

	metrics.IncJobsSubmitted()
	s.notify(id, StatusQueued)
	s.log.Infow("Job submitted", "job", id, "plan", req.PlanID, "config", req.ConfigID, "budget", budget)

	s.wg.Add(1)
	go s.runJob(jobCtx, job)

	return id, nil
}

// SubmitAll submits a batch concurrently and returns the ids in request
// order. A failed submission aborts the batch but already accepted jobs
// keep running.
func (s *Scheduler) SubmitAll(ctx context.Context, reqs []SubmitRequest) ([]string, error) {
	ids := make([]string, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	for i, req := range reqs {
		g.Go(func() error {
			id, err := s.SubmitJob(gctx, req)
			if err != nil {
				return err
			}
			ids[i] = id
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ids, nil
}

// runJob takes the job through its whole lifecycle on a pool worker.
func (s *Scheduler) runJob(jobCtx context.Context, job *Job) {
	defer s.wg.Done()

	runCtx, cancelRun := context.WithTimeout(jobCtx, job.Budget)
	defer cancelRun()

	if err := s.workers.Acquire(runCtx, 1); err != nil {
		// Cancelled or timed out while still queued. A cancellation has
		// already been applied by CancelJob; a timeout is ours to record.
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			s.finish(job, fsm.EventFail, func() {
				job.failureReason = standarderrors.ErrDeadlineExceeded.Error()
			}, StatusFailed)
		}
		return
	}
	defer s.workers.Release(1)

	if err := job.machine.Transition(runCtx, fsm.EventDispatch, nil); err != nil {
		// Lost the race against a cancellation between acquire and dispatch.
		return
	}
	metrics.SetRunningDelta(1)
	defer metrics.SetRunningDelta(-1)

	opts := s.opts.Optimizer
	opts.Seed = job.Seed
	opt := optimizer.New(opts)

	result, diag, err := opt.Optimize(runCtx, job.plan, job.cfg, optimizer.Budget{MaxIterations: s.opts.MaxIterations})
	metrics.ObserveOptimizeTime(diag.Elapsed)
	metrics.ObserveOptimizeIterations(diag.Iterations)

	switch {
	case err == nil:
		optimizer.Finalize(result, job.plan, job.cfg)
		completed := s.now()
		s.finish(job, fsm.EventComplete, func() {
			job.result = result
			job.completedAt = &completed
		}, StatusCompleted)
		s.log.Infow("Job completed", "job", job.ID,
			"iterations", diag.Iterations, "objective", diag.BestObjective, "elapsed", diag.Elapsed)
		if s.opts.Sink != nil {
			s.wg.Add(1)
			go s.persistResult(job.ID, result)
		}

	case errors.Is(err, context.Canceled):
		s.finish(job, fsm.EventCancel, nil, StatusCancelled)
		s.log.Infow("Job cancelled while running", "job", job.ID, "iterations", diag.Iterations)

	case errors.Is(err, context.DeadlineExceeded):
		s.finish(job, fsm.EventFail, func() {
			job.failureReason = standarderrors.ErrDeadlineExceeded.Error()
		}, StatusFailed)
		s.log.Warnw("Job exceeded its budget", "job", job.ID, "budget", job.Budget)

	default:
		s.finish(job, fsm.EventFail, func() {
			job.failureReason = err.Error()
		}, StatusFailed)
		s.log.Warnw("Job failed", "job", job.ID, "reason", err)
	}
}

// finish attempts a terminal transition. A false return means another
// path already finished the job, which is fine: terminal states are
// final and the first writer wins. Notification happens through the
// machine's enter-state hook.
func (s *Scheduler) finish(job *Job, event string, apply func(), status JobStatus) bool {
	if err := job.machine.Transition(context.Background(), event, apply); err != nil {
		return false
	}
	metrics.IncJobsFinished(string(status))
	return true
}

func (s *Scheduler) notify(jobID string, status JobStatus) {
	if s.opts.Notifier == nil {
		return
	}
	go s.opts.Notifier.NotifyStatusChange(jobID, status)
}

// persistResult hands the result to the sink, retrying transient
// failures with exponential backoff.
func (s *Scheduler) persistResult(jobID string, result *models.OptimizedResult) {
	defer s.wg.Done()

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 30 * time.Second

	err := backoff.Retry(func() error {
		return s.opts.Sink.PersistResult(jobID, result)
	}, policy)
	if err != nil {
		s.log.Errorf("Giving up persisting result for job %s: %v", jobID, err)
	}
}

func (s *Scheduler) job(id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", standarderrors.ErrJobNotFound, id)
	}
	return job, nil
}

// CancelJob cancels a job. Queued jobs cancel instantly; running jobs
// get their context cancelled and up to the grace period to stop before
// the state is forced. Cancelling a terminal job is a no-op.
func (s *Scheduler) CancelJob(id string) error {
	job, err := s.job(id)
	if err != nil {
		return err
	}

	if job.machine.IsTerminal() {
		return nil
	}

	// Instant path for queued jobs: transition first so the worker
	// goroutine can never dispatch it afterwards.
	if job.machine.Current() == fsm.StateQueued {
		if s.finish(job, fsm.EventCancel, nil, StatusCancelled) {
			job.cancel()
			s.log.Infow("Queued job cancelled", "job", id)
			return nil
		}
		// The job was dispatched between the check and the transition;
		// fall through to the running path.
	}

	job.cancel()

	deadline := time.After(constants.CancelGracePeriod)
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-tick.C:
			if job.machine.IsTerminal() {
				return nil
			}
		case <-deadline:
			if s.finish(job, fsm.EventCancel, nil, StatusCancelled) {
				s.log.Warnw("Job did not stop within grace period, state forced", "job", id)
			}
			return nil
		}
	}
}

// GetJobStatus returns a consistent snapshot of the job.
func (s *Scheduler) GetJobStatus(id string) (JobView, error) {
	job, err := s.job(id)
	if err != nil {
		return JobView{}, err
	}
	return job.View(), nil
}

// ListJobs returns all known jobs, oldest first.
func (s *Scheduler) ListJobs() []JobView {
	s.mu.RLock()
	views := make([]JobView, 0, len(s.jobs))
	for _, job := range s.jobs {
		views = append(views, job.View())
	}
	s.mu.RUnlock()

	sort.Slice(views, func(i, j int) bool {
		if views[i].CreatedAt.Equal(views[j].CreatedAt) {
			return views[i].ID < views[j].ID
		}
		return views[i].CreatedAt.Before(views[j].CreatedAt)
	})
	return views
}

// GetResult returns the job's result. Only completed jobs have one;
// everything else answers ErrNotReady.
func (s *Scheduler) GetResult(id string) (*models.OptimizedResult, error) {
	job, err := s.job(id)
	if err != nil {
		return nil, err
	}

	var result *models.OptimizedResult
	job.machine.Read(func(state string) {
		if state == fsm.StateCompleted {
			result = job.result
		}
	})
	if result == nil {
		return nil, fmt.Errorf("%w: job %s", standarderrors.ErrNotReady, id)
	}
	return result, nil
}

// GetReport builds the dashboard comparison report for a completed job.
// Reports are derived data, so they are memoized per job id.
func (s *Scheduler) GetReport(id string) (*reporter.Report, error) {
	if cached, ok := s.reports.Get(id); ok {
		return cached.(*reporter.Report), nil
	}

	job, err := s.job(id)
	if err != nil {
		return nil, err
	}
	result, err := s.GetResult(id)
	if err != nil {
		return nil, err
	}

	report := reporter.BuildReport(job.plan, result, job.cfg)
	s.reports.Set(id, report, cache.DefaultExpiration)
	return report, nil
}

// PlanInUse reports whether a non-terminal job references the plan.
func (s *Scheduler) PlanInUse(planID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, job := range s.jobs {
		if job.PlanID == planID && !job.machine.IsTerminal() {
			return true
		}
	}
	return false
}

// ConfigurationInUse reports whether a non-terminal job references the
// configuration.
func (s *Scheduler) ConfigurationInUse(configID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, job := range s.jobs {
		if job.ConfigID == configID && !job.machine.IsTerminal() {
			return true
		}
	}
	return false
}

// Shutdown cancels every non-terminal job and waits for all job
// goroutines to drain, up to the context deadline.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	jobs := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}
	s.mu.RUnlock()

	for _, job := range jobs {
		if !job.machine.IsTerminal() {
			if job.machine.Current() == fsm.StateQueued {
				s.finish(job, fsm.EventCancel, nil, StatusCancelled)
			}
			job.cancel()
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("Scheduler drained")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler shutdown: %w", ctx.Err())
	}
}
