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

// Package queue implements the per-destination bounded FIFO that sits
// between admission (rate limiting) and the CRM push path.
package queue

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/pratapdesai/record-sync/internal/metrics"
	"github.com/pratapdesai/record-sync/internal/ratelimit"
	"github.com/pratapdesai/record-sync/internal/types"
)

// A Manager holds one FIFO per destination, gated on enqueue by a
// shared rate limiter. It never blocks a caller: a rate-limited
// enqueue is dropped, not queued.
type Manager struct {
	limiter *ratelimit.Limiter

	mu     sync.Mutex
	queues map[string][]types.Record

	// sizeFn, if set, is invoked with the total number of records
	// pending across every destination after each enqueue/flush.
	sizeFn func(total int)
}

// New returns a Manager gating enqueue on limiter.
func New(limiter *ratelimit.Limiter) *Manager {
	return &Manager{
		limiter: limiter,
		queues:  make(map[string][]types.Record),
	}
}

// OnSizeChanged registers a callback invoked with the total queued
// record count whenever it changes. Intended for wiring a
// status.Tracker without making this package depend on it.
func (m *Manager) OnSizeChanged(fn func(total int)) {
	m.mu.Lock()
	m.sizeFn = fn
	m.mu.Unlock()
}

// Enqueue admits record for destination dest, subject to the shared
// rate limiter. It reports whether the record was queued.
func (m *Manager) Enqueue(dest string, record types.Record) bool {
	if !m.limiter.Allow(dest) {
		logrus.WithField("destination", dest).Warn("rate limit exceeded, dropping record")
		metrics.RateLimitRejectedTotal.WithLabelValues(dest).Inc()
		return false
	}

	m.mu.Lock()
	m.queues[dest] = append(m.queues[dest], record)
	depth := len(m.queues[dest])
	total := m.totalLocked()
	fn := m.sizeFn
	m.mu.Unlock()

	metrics.EnqueueTotal.WithLabelValues(dest).Inc()
	metrics.QueueDepth.WithLabelValues(dest).Set(float64(depth))
	logrus.WithFields(logrus.Fields{"destination": dest, "depth": depth}).Debug("queued record")

	if fn != nil {
		fn(total)
	}
	return true
}

// Flush removes and returns up to batchSize records queued for dest,
// in FIFO order. It returns an empty, non-nil slice if nothing is
// queued.
//
// The original implementation's drain loop tested `len(batch) and
// len(batch) < batch_size` before batch had been appended to, so the
// loop body never ran and flush always returned nothing. This drains
// from the front of the destination's queue instead.
func (m *Manager) Flush(dest string, batchSize int) []types.Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	q := m.queues[dest]
	if batchSize > len(q) {
		batchSize = len(q)
	}
	batch := make([]types.Record, batchSize)
	copy(batch, q[:batchSize])
	m.queues[dest] = q[batchSize:]

	depth := len(m.queues[dest])
	metrics.QueueDepth.WithLabelValues(dest).Set(float64(depth))
	logrus.WithFields(logrus.Fields{"destination": dest, "flushed": len(batch)}).Info("flushed batch")

	if fn := m.sizeFn; fn != nil {
		total := m.totalLocked()
		fn(total)
	}
	return batch
}

// Pending returns a snapshot of every record currently queued for
// dest, without removing them.
func (m *Manager) Pending(dest string) []types.Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]types.Record, len(m.queues[dest]))
	copy(out, m.queues[dest])
	return out
}

// totalLocked returns the sum of all destination queue lengths. Callers
// must hold m.mu.
func (m *Manager) totalLocked() int {
	total := 0
	for _, q := range m.queues {
		total += len(q)
	}
	return total
}
