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

// Package status tracks process-wide sync counters and the per-record
// terminal/non-terminal status surfaced to the command surface.
package status

import (
	"sync"
	"time"

	"github.com/pratapdesai/record-sync/internal/metrics"
	"github.com/pratapdesai/record-sync/internal/types"
)

// Snapshot is the aggregate status returned by Tracker.Snapshot.
type Snapshot struct {
	Uptime           time.Duration
	TotalSynced      int64
	RetriesPending   int64
	QueueSize        int64
	LastSyncSuccess  time.Time
	LastSyncFailed   time.Time
	ActivePollers    []string
}

// Tracker is the process-wide status surface: counters, timestamps,
// an active-poller set, and a per-record status map.
type Tracker struct {
	startTime time.Time

	mu              sync.Mutex
	totalSynced     int64
	retriesPending  int64
	queueSize       int64
	lastSyncSuccess time.Time
	lastSyncFailed  time.Time
	activePollers   map[string]struct{}

	recordsMu sync.Mutex
	records   map[string]types.Status
}

// New returns an empty Tracker with its start time set to now.
func New() *Tracker {
	return &Tracker{
		startTime:     time.Now(),
		activePollers: make(map[string]struct{}),
		records:       make(map[string]types.Status),
	}
}

// IncrementSynced records one more successfully synced record for
// destination dest, stamping last-sync-success.
func (t *Tracker) IncrementSynced(dest string) {
	t.mu.Lock()
	t.totalSynced++
	t.lastSyncSuccess = time.Now()
	t.mu.Unlock()
	metrics.SyncedTotal.WithLabelValues(dest).Inc()
}

// MarkFailed stamps last-sync-failed for destination dest.
func (t *Tracker) MarkFailed(dest string) {
	t.mu.Lock()
	t.lastSyncFailed = time.Now()
	t.mu.Unlock()
	metrics.FailedTotal.WithLabelValues(dest).Inc()
}

// SetQueueSize updates the process-wide queue_size counter to report
// the total number of records pending across every destination.
func (t *Tracker) SetQueueSize(n int) {
	t.mu.Lock()
	t.queueSize = int64(n)
	t.mu.Unlock()
}

// IncrementRetriesPending is called by RetryManager on entry to a
// retry loop.
func (t *Tracker) IncrementRetriesPending() {
	t.mu.Lock()
	t.retriesPending++
	t.mu.Unlock()
	metrics.RetriesPending.Inc()
}

// DecrementRetriesPending is called by RetryManager on a terminal
// outcome (success or exhausted retries).
func (t *Tracker) DecrementRetriesPending() {
	t.mu.Lock()
	if t.retriesPending > 0 {
		t.retriesPending--
	}
	t.mu.Unlock()
	metrics.RetriesPending.Dec()
}

// PollerStarted adds name to the active-poller set.
func (t *Tracker) PollerStarted(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.activePollers[name] = struct{}{}
}

// PollerStopped removes name from the active-poller set.
func (t *Tracker) PollerStopped(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.activePollers, name)
}

// SetRecordStatus records the per-record status for recordID.
func (t *Tracker) SetRecordStatus(recordID string, status types.Status) {
	t.recordsMu.Lock()
	defer t.recordsMu.Unlock()
	t.records[recordID] = status
}

// RecordStatus returns the current status for recordID, or
// StatusUnknown if it has never been observed.
func (t *Tracker) RecordStatus(recordID string) types.Status {
	t.recordsMu.Lock()
	defer t.recordsMu.Unlock()
	if s, ok := t.records[recordID]; ok {
		return s
	}
	return types.StatusUnknown
}

// Snapshot returns the current aggregate status.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	pollers := make([]string, 0, len(t.activePollers))
	for name := range t.activePollers {
		pollers = append(pollers, name)
	}

	return Snapshot{
		Uptime:          time.Since(t.startTime),
		TotalSynced:     t.totalSynced,
		RetriesPending:  t.retriesPending,
		QueueSize:       t.queueSize,
		LastSyncSuccess: t.lastSyncSuccess,
		LastSyncFailed:  t.lastSyncFailed,
		ActivePollers:   pollers,
	}
}
