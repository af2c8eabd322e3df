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
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/planopt-systems/seqopt-core/pkg/models"
	"github.com/planopt-systems/seqopt-core/pkg/optimizer"
	"github.com/planopt-systems/seqopt-core/pkg/standarderrors"
)

var _ = Describe("Scheduler", func() {
	var (
		source   *fakeSource
		sink     *fakeSink
		notifier *fakeNotifier
	)

	BeforeEach(func() {
		source = newFakeSource()
		sink = newFakeSink()
		notifier = newFakeNotifier()

		source.addPlan("plan-1", specPlan(
			specOrder(3, "VF5", "Red", 8),
			specOrder(3, "VF6", "Red", 8),
			specOrder(3, "VF5", "Blue", 8),
			specOrder(4, "VF3", "Red", 20),
		))
		source.addConfig("config-1", specConfig(specWeek()))
	})

	// fastScheduler finishes small plans in milliseconds.
	fastScheduler := func(workers int) *Scheduler {
		return New(source, Options{
			Workers:       workers,
			DefaultBudget: 30 * time.Second,
			Optimizer:     optimizer.DefaultOptions(0),
			Sink:          sink,
			Notifier:      notifier,
		})
	}

	// slowScheduler never stagnates, so runs only end via budget or
	// cancellation.
	slowScheduler := func(workers int) *Scheduler {
		opts := optimizer.DefaultOptions(0)
		opts.StagnationLimit = 1 << 30
		return New(source, Options{
			Workers:       workers,
			DefaultBudget: 30 * time.Second,
			MaxIterations: 1 << 30,
			Optimizer:     opts,
			Sink:          sink,
			Notifier:      notifier,
		})
	}

	drain := func(s *Scheduler) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		Expect(s.Shutdown(ctx)).To(Succeed())
	}

	status := func(s *Scheduler, id string) func() JobStatus {
		return func() JobStatus {
			view, err := s.GetJobStatus(id)
			Expect(err).NotTo(HaveOccurred())
			return view.Status
		}
	}

	Describe("submitting jobs", func() {
		It("assigns date-scoped sequential ids", func() {
			s := fastScheduler(2)
			defer drain(s)
			s.now = func() time.Time {
				return time.Date(2025, time.January, 15, 9, 0, 0, 0, time.UTC)
			}

			id1, err := s.SubmitJob(context.Background(), SubmitRequest{PlanID: "plan-1", ConfigID: "config-1"})
			Expect(err).NotTo(HaveOccurred())
			id2, err := s.SubmitJob(context.Background(), SubmitRequest{PlanID: "plan-1", ConfigID: "config-1"})
			Expect(err).NotTo(HaveOccurred())

			Expect(id1).To(Equal("20250115_1"))
			Expect(id2).To(Equal("20250115_2"))
		})

		It("rejects unresolvable references without creating a job", func() {
			s := fastScheduler(1)
			defer drain(s)

			_, err := s.SubmitJob(context.Background(), SubmitRequest{PlanID: "missing", ConfigID: "config-1"})
			Expect(err).To(MatchError(standarderrors.ErrValidation))

			_, err = s.SubmitJob(context.Background(), SubmitRequest{PlanID: "plan-1", ConfigID: "missing"})
			Expect(err).To(MatchError(standarderrors.ErrValidation))

			Expect(s.ListJobs()).To(BeEmpty())
		})

		It("snapshots the plan at submission", func() {
			s := fastScheduler(1)
			defer drain(s)

			id, err := s.SubmitJob(context.Background(), SubmitRequest{PlanID: "plan-1", ConfigID: "config-1"})
			Expect(err).NotTo(HaveOccurred())

			// Replacing the stored plan must not affect the queued job.
			source.addPlan("plan-1", specPlan(specOrder(2, "VF3", "Red", 1)))

			Eventually(status(s, id), "10s", "20ms").Should(Equal(StatusCompleted))
			result, err := s.GetResult(id)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Orders).To(HaveLen(4))
		})
	})

	Describe("running to completion", func() {
		It("completes the job with a result and timestamps", func() {
			s := fastScheduler(2)
			defer drain(s)

			id, err := s.SubmitJob(context.Background(), SubmitRequest{PlanID: "plan-1", ConfigID: "config-1", SubmittedBy: "tester"})
			Expect(err).NotTo(HaveOccurred())

			Eventually(status(s, id), "10s", "20ms").Should(Equal(StatusCompleted))

			view, err := s.GetJobStatus(id)
			Expect(err).NotTo(HaveOccurred())
			Expect(view.CompletedAt).NotTo(BeNil())
			Expect(view.SubmittedBy).To(Equal("tester"))

			result, err := s.GetResult(id)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Orders).To(HaveLen(4))
			Expect(result.TotalVehicles).To(Equal(44))
			Expect(result.Optimized.ChangeOvers).To(BeNumerically("<=", result.Original.ChangeOvers))
		})

		It("notifies every status change", func() {
			s := fastScheduler(1)
			defer drain(s)

			id, err := s.SubmitJob(context.Background(), SubmitRequest{PlanID: "plan-1", ConfigID: "config-1"})
			Expect(err).NotTo(HaveOccurred())

			Eventually(func() []JobStatus { return notifier.seen(id) }, "10s", "20ms").
				Should(ContainElements(StatusQueued, StatusRunning, StatusCompleted))
		})

		It("persists the result through the sink, retrying transient failures", func() {
			sink.failFirst = 2
			s := fastScheduler(1)
			defer drain(s)

			id, err := s.SubmitJob(context.Background(), SubmitRequest{PlanID: "plan-1", ConfigID: "config-1"})
			Expect(err).NotTo(HaveOccurred())

			Eventually(func() *models.OptimizedResult { return sink.get(id) }, "20s", "50ms").
				ShouldNot(BeNil())
		})

		It("runs many jobs across a bounded worker pool", func() {
			s := fastScheduler(4)
			defer drain(s)

			reqs := make([]SubmitRequest, 10)
			for i := range reqs {
				reqs[i] = SubmitRequest{PlanID: "plan-1", ConfigID: "config-1"}
			}
			ids, err := s.SubmitAll(context.Background(), reqs)
			Expect(err).NotTo(HaveOccurred())
			Expect(ids).To(HaveLen(10))

			seen := map[string]bool{}
			for _, id := range ids {
				Expect(seen[id]).To(BeFalse(), "job ids must be unique")
				seen[id] = true
			}

			for _, id := range ids {
				Eventually(status(s, id), "30s", "20ms").Should(Equal(StatusCompleted))
			}
		})

		It("produces identical results for identical submissions", func() {
			s := fastScheduler(1)
			defer drain(s)
			s.now = func() time.Time {
				return time.Date(2025, time.January, 15, 9, 0, 0, 0, time.UTC)
			}

			// Same-day resubmission gets a different id, hence a different
			// seed; determinism is per job id.
			id, err := s.SubmitJob(context.Background(), SubmitRequest{PlanID: "plan-1", ConfigID: "config-1"})
			Expect(err).NotTo(HaveOccurred())
			Eventually(status(s, id), "10s", "20ms").Should(Equal(StatusCompleted))

			result, err := s.GetResult(id)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Seed).To(Equal(seedForJob("20250115_1")))
		})
	})

	Describe("failure paths", func() {
		It("fails a job whose configuration cannot fit the plan", func() {
			// One active 16h day against 20h of single-line work.
			source.addPlan("big-plan", specPlan(specOrder(4, "VF3", "Red", 200)))
			source.addConfig("tight-config", specConfig([]models.CalendarDay{{Day: 4, Active: true}}))

			s := fastScheduler(1)
			defer drain(s)

			id, err := s.SubmitJob(context.Background(), SubmitRequest{PlanID: "big-plan", ConfigID: "tight-config"})
			Expect(err).NotTo(HaveOccurred())

			Eventually(status(s, id), "10s", "20ms").Should(Equal(StatusFailed))

			view, err := s.GetJobStatus(id)
			Expect(err).NotTo(HaveOccurred())
			Expect(view.FailureReason).To(ContainSubstring("infeasible configuration"))

			_, err = s.GetResult(id)
			Expect(err).To(MatchError(standarderrors.ErrNotReady))
		})

		It("fails a job that exceeds its budget", func() {
			s := slowScheduler(1)
			defer drain(s)

			id, err := s.SubmitJob(context.Background(), SubmitRequest{
				PlanID:   "plan-1",
				ConfigID: "config-1",
				Budget:   50 * time.Millisecond,
			})
			Expect(err).NotTo(HaveOccurred())

			Eventually(status(s, id), "10s", "20ms").Should(Equal(StatusFailed))

			view, err := s.GetJobStatus(id)
			Expect(err).NotTo(HaveOccurred())
			Expect(view.FailureReason).To(Equal(standarderrors.ErrDeadlineExceeded.Error()))
		})

		It("answers ErrJobNotFound for unknown ids", func() {
			s := fastScheduler(1)
			defer drain(s)

			_, err := s.GetJobStatus("20250101_99")
			Expect(err).To(MatchError(standarderrors.ErrJobNotFound))
			Expect(s.CancelJob("20250101_99")).To(MatchError(standarderrors.ErrJobNotFound))
		})
	})

	Describe("cancellation", func() {
		It("cancels a queued job instantly and without a result", func() {
			s := slowScheduler(1)
			defer drain(s)

			// Occupy the only worker so the second job stays queued.
			running, err := s.SubmitJob(context.Background(), SubmitRequest{PlanID: "plan-1", ConfigID: "config-1"})
			Expect(err).NotTo(HaveOccurred())
			Eventually(status(s, running), "10s", "20ms").Should(Equal(StatusRunning))

			queued, err := s.SubmitJob(context.Background(), SubmitRequest{PlanID: "plan-1", ConfigID: "config-1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(status(s, queued)()).To(Equal(StatusQueued))

			_, err = s.GetResult(queued)
			Expect(err).To(MatchError(standarderrors.ErrNotReady))

			Expect(s.CancelJob(queued)).To(Succeed())
			Expect(status(s, queued)()).To(Equal(StatusCancelled))

			_, err = s.GetResult(queued)
			Expect(err).To(MatchError(standarderrors.ErrNotReady))

			Expect(s.CancelJob(running)).To(Succeed())
		})

		It("cancels a running job within the grace period", func() {
			s := slowScheduler(1)
			defer drain(s)

			id, err := s.SubmitJob(context.Background(), SubmitRequest{PlanID: "plan-1", ConfigID: "config-1"})
			Expect(err).NotTo(HaveOccurred())
			Eventually(status(s, id), "10s", "20ms").Should(Equal(StatusRunning))

			Expect(s.CancelJob(id)).To(Succeed())
			Expect(status(s, id)()).To(Equal(StatusCancelled))

			// Cancellation reaches the notifier through the same machine
			// hook as every other status change.
			Eventually(func() []JobStatus { return notifier.seen(id) }, "5s", "20ms").
				Should(ContainElement(StatusCancelled))
		})

		It("treats cancel on a terminal job as a no-op", func() {
			s := fastScheduler(1)
			defer drain(s)

			id, err := s.SubmitJob(context.Background(), SubmitRequest{PlanID: "plan-1", ConfigID: "config-1"})
			Expect(err).NotTo(HaveOccurred())
			Eventually(status(s, id), "10s", "20ms").Should(Equal(StatusCompleted))

			Expect(s.CancelJob(id)).To(Succeed())
			Expect(status(s, id)()).To(Equal(StatusCompleted))
		})
	})

	Describe("reports", func() {
		It("builds and memoizes the comparison report", func() {
			s := fastScheduler(1)
			defer drain(s)

			id, err := s.SubmitJob(context.Background(), SubmitRequest{PlanID: "plan-1", ConfigID: "config-1"})
			Expect(err).NotTo(HaveOccurred())
			Eventually(status(s, id), "10s", "20ms").Should(Equal(StatusCompleted))

			report, err := s.GetReport(id)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Summary.Original.ChangeOvers).To(BeNumerically(">=", report.Summary.Optimized.ChangeOvers))
			Expect(report.OptimizedProduction).To(HaveLen(4))

			again, err := s.GetReport(id)
			Expect(err).NotTo(HaveOccurred())
			Expect(again).To(BeIdenticalTo(report))
		})

		It("refuses a report for an unfinished job", func() {
			s := slowScheduler(1)
			defer drain(s)

			id, err := s.SubmitJob(context.Background(), SubmitRequest{PlanID: "plan-1", ConfigID: "config-1"})
			Expect(err).NotTo(HaveOccurred())

			_, err = s.GetReport(id)
			Expect(err).To(MatchError(standarderrors.ErrNotReady))

			Expect(s.CancelJob(id)).To(Succeed())
		})
	})

	Describe("resource usage tracking", func() {
		It("reports plans and configurations of live jobs as in use", func() {
			s := slowScheduler(1)
			defer drain(s)

			id, err := s.SubmitJob(context.Background(), SubmitRequest{PlanID: "plan-1", ConfigID: "config-1"})
			Expect(err).NotTo(HaveOccurred())

			Expect(s.PlanInUse("plan-1")).To(BeTrue())
			Expect(s.ConfigurationInUse("config-1")).To(BeTrue())
			Expect(s.PlanInUse("other")).To(BeFalse())

			Expect(s.CancelJob(id)).To(Succeed())
			Eventually(func() bool { return s.PlanInUse("plan-1") }, "5s", "20ms").Should(BeFalse())
			Expect(s.ConfigurationInUse("config-1")).To(BeFalse())
		})
	})

	Describe("shutdown", func() {
		It("cancels outstanding work and drains", func() {
			s := slowScheduler(1)

			id1, err := s.SubmitJob(context.Background(), SubmitRequest{PlanID: "plan-1", ConfigID: "config-1"})
			Expect(err).NotTo(HaveOccurred())
			id2, err := s.SubmitJob(context.Background(), SubmitRequest{PlanID: "plan-1", ConfigID: "config-1"})
			Expect(err).NotTo(HaveOccurred())

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			Expect(s.Shutdown(ctx)).To(Succeed())

			for _, id := range []string{id1, id2} {
				view, err := s.GetJobStatus(id)
				Expect(err).NotTo(HaveOccurred())
				Expect(view.Status).To(BeElementOf(StatusCancelled, StatusFailed))
			}
		})
	})
})
