// Copyright 2023 The Cockroach Authors
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
//
// SPDX-License-Identifier: Apache-2.0

// Package metrics holds the process's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DestinationLabels names the label applied to all per-destination
// metrics in this package.
var DestinationLabels = []string{"destination"}

// LatencyBuckets is the shared histogram bucket set for all duration
// metrics emitted by this process.
var LatencyBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

var (
	// QueueDepth reports the current number of pending records per
	// destination queue.
	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "recordsync_queue_depth",
		Help: "the number of records currently pending for a destination",
	}, DestinationLabels)

	// EnqueueTotal counts records accepted into a destination queue.
	EnqueueTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recordsync_enqueue_total",
		Help: "the number of records enqueued for a destination",
	}, DestinationLabels)

	// RateLimitRejectedTotal counts records dropped at enqueue because
	// the per-destination rate limiter refused admission.
	RateLimitRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recordsync_rate_limit_rejected_total",
		Help: "the number of records dropped because the rate limiter refused admission",
	}, DestinationLabels)

	// BreakerTripsTotal counts circuit breaker CLOSED/HALF-OPEN to OPEN
	// transitions per destination.
	BreakerTripsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recordsync_breaker_trips_total",
		Help: "the number of times a destination's circuit breaker opened",
	}, DestinationLabels)

	// BreakerRejectedTotal counts pushes refused locally because the
	// breaker was OPEN.
	BreakerRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recordsync_breaker_rejected_total",
		Help: "the number of pushes refused locally because the circuit breaker was open",
	}, DestinationLabels)

	// FlushDurations records how long a batch flush to a destination
	// took.
	FlushDurations = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "recordsync_flush_duration_seconds",
		Help:    "the length of time it took to flush a batch to a destination",
		Buckets: LatencyBuckets,
	}, DestinationLabels)

	// SyncedTotal counts records that reached terminal status synced.
	SyncedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recordsync_synced_total",
		Help: "the number of records successfully synced to a destination",
	}, DestinationLabels)

	// FailedTotal counts records that reached terminal status failed.
	FailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recordsync_failed_total",
		Help: "the number of records that failed to sync to a destination",
	}, DestinationLabels)

	// RetriesPending gauges the number of in-flight retry attempts.
	RetriesPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "recordsync_retries_pending",
		Help: "the number of record pushes currently being retried",
	})

	// PollIterations counts completed poller iterations.
	PollIterations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recordsync_poll_iterations_total",
		Help: "the number of poll iterations completed by a poller",
	}, []string{"poller"})

	// PollErrors counts poller iterations that ended in an error.
	PollErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recordsync_poll_errors_total",
		Help: "the number of poll iterations that ended in an error",
	}, []string{"poller"})
)
