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

package sync

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/pratapdesai/record-sync/internal/metrics"
	"github.com/pratapdesai/record-sync/internal/queue"
	"github.com/pratapdesai/record-sync/internal/retry"
	"github.com/pratapdesai/record-sync/internal/rules"
	"github.com/pratapdesai/record-sync/internal/status"
	"github.com/pratapdesai/record-sync/internal/types"
)

// DefaultBatchSize bounds how many queued records try_flush drains in
// one call.
const DefaultBatchSize = 20

// Manager is the command-driven sync path: it gates enqueue on
// registered destinations and the rules engine, queues admitted
// records, and flushes queued batches through each destination's
// retry-wrapped push.
type Manager struct {
	destinations map[string]types.CrmAdapter
	queue        *queue.Manager
	rules        *rules.Engine
	status       *status.Tracker
	retry        *retry.Manager
	batchSize    atomic.Int64
}

// NewManager returns a Manager serving the given destinations.
func NewManager(
	destinations map[string]types.CrmAdapter,
	q *queue.Manager,
	r *rules.Engine,
	s *status.Tracker,
) *Manager {
	m := &Manager{
		destinations: destinations,
		queue:        q,
		rules:        r,
		status:       s,
		retry:        retry.New(s),
	}
	m.batchSize.Store(DefaultBatchSize)
	return m
}

// SetBatchSize overrides the number of records try_flush drains in one
// call, effective on the next flush. Used by the destination config
// override command.
func (m *Manager) SetBatchSize(n int) {
	m.batchSize.Store(int64(n))
}

// EnqueueSync admits record for dest, subject to the rules engine and
// rate limiter, then attempts an immediate flush.
func (m *Manager) EnqueueSync(ctx context.Context, dest string, record types.Record) error {
	if _, ok := m.destinations[dest]; !ok {
		return fmt.Errorf("unsupported destination %q", dest)
	}

	if !m.rules.ShouldSync(dest, record) {
		logrus.WithField("record_id", record.RecordID).Info("skipping sync due to rule evaluation")
		m.status.SetRecordStatus(record.RecordID, types.StatusSkippedByRule)
		return nil
	}

	if !m.queue.Enqueue(dest, record) {
		// Rate-limit rejection at enqueue is a silent drop: the caller
		// must reissue, and no status is recorded.
		return nil
	}
	m.status.SetRecordStatus(record.RecordID, types.StatusQueued)

	m.tryFlush(ctx, dest)
	return nil
}

// tryFlush drains up to batchSize records for dest and pushes each
// through the destination's retry-wrapped adapter. One record's
// failure does not abort the batch.
func (m *Manager) tryFlush(ctx context.Context, dest string) {
	batch := m.queue.Flush(dest, int(m.batchSize.Load()))
	if len(batch) == 0 {
		return
	}

	adapter := m.destinations[dest]
	timer := metrics.FlushDurations.WithLabelValues(dest)
	stop := startTimer(timer)
	defer stop()

	for _, record := range batch {
		err := m.retry.Push(ctx, dest, record, adapter.Transform, adapter.Push)
		if err != nil {
			m.status.SetRecordStatus(record.RecordID, types.StatusFailed)
			logrus.WithField("destination", dest).WithField("record_id", record.RecordID).
				WithError(err).Error("failed to push record")
			continue
		}
		m.status.SetRecordStatus(record.RecordID, types.StatusSynced)
		m.status.IncrementSynced(dest)
	}
}
