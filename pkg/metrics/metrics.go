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

package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/planopt-systems/seqopt-core/pkg/logger"
)

var (
	// Namespace and subsystem for all metrics.
	namespace = "seqopt"
	subsystem = "core"

	jobsSubmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "jobs_submitted_total",
			Help:      "Total number of optimization jobs submitted",
		},
	)

	jobsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "jobs_finished_total",
			Help:      "Total number of optimization jobs that reached a terminal state, by status",
		},
		[]string{"status"},
	)

	jobsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "jobs_running",
			Help:      "Number of optimizer runs currently occupying a worker",
		},
	)

	optimizeDuration = promauto.NewSummary(
		prometheus.SummaryOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "optimize_duration_milliseconds",
			Help:      "Time taken by a single optimizer run (in milliseconds)",
			Objectives: map[float64]float64{
				0.5:  0.01,
				0.9:  0.01,
				0.95: 0.01,
				0.99: 0.01,
			},
		},
	)

	optimizeIterations = promauto.NewSummary(
		prometheus.SummaryOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "optimize_iterations",
			Help:      "Search iterations spent by a single optimizer run",
		},
	)
)

// IncJobsSubmitted counts one accepted submission.
func IncJobsSubmitted() {
	jobsSubmitted.Inc()
}

// IncJobsFinished counts one terminal transition with its final status.
func IncJobsFinished(status string) {
	jobsFinished.WithLabelValues(status).Inc()
}

// SetRunningDelta adjusts the running-jobs gauge by +1/-1 around a worker
// occupation.
func SetRunningDelta(delta float64) {
	jobsRunning.Add(delta)
}

// ObserveOptimizeTime records the duration of one optimizer run.
func ObserveOptimizeTime(duration time.Duration) {
	optimizeDuration.Observe(float64(duration.Milliseconds()))
}

// ObserveOptimizeIterations records the iteration count of one run.
func ObserveOptimizeIterations(iterations int) {
	optimizeIterations.Observe(float64(iterations))
}

// SetupMetricsEndpoint starts an HTTP server exposing /metrics on the
// given address and returns it so the caller can shut it down.
func SetupMetricsEndpoint(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.For(logger.ComponentMetrics).Errorf("Metrics server failed: %v", err)
		}
	}()

	return server
}
