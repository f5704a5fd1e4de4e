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

package retry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pratapdesai/record-sync/internal/types"
)

type fakeStatus struct {
	pending int
	failed  []string
}

func (f *fakeStatus) IncrementRetriesPending() { f.pending++ }
func (f *fakeStatus) DecrementRetriesPending() { f.pending-- }
func (f *fakeStatus) MarkFailed(dest string)   { f.failed = append(f.failed, dest) }

func noSleep(context.Context, time.Duration) error { return nil }

func TestPushSucceedsFirstAttempt(t *testing.T) {
	status := &fakeStatus{}
	m := New(status)
	m.sleep = noSleep

	calls := 0
	err := m.Push(context.Background(), "sf", types.Record{RecordID: "1"},
		func(r types.Record) types.Record { return r },
		func(ctx context.Context, r types.Record) error { calls++; return nil })

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, status.pending)
	assert.Empty(t, status.failed)
}

func TestPushRetriesThenSucceeds(t *testing.T) {
	status := &fakeStatus{}
	m := New(status)
	m.sleep = noSleep

	calls := 0
	err := m.Push(context.Background(), "sf", types.Record{RecordID: "1"},
		func(r types.Record) types.Record { return r },
		func(ctx context.Context, r types.Record) error {
			calls++
			if calls < 2 {
				return assert.AnError
			}
			return nil
		})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Empty(t, status.failed)
}

func TestPushExhaustsAttemptsAndMarksFailed(t *testing.T) {
	status := &fakeStatus{}
	m := New(status)
	m.sleep = noSleep

	calls := 0
	err := m.Push(context.Background(), "sf", types.Record{RecordID: "1"},
		func(r types.Record) types.Record { return r },
		func(ctx context.Context, r types.Record) error { calls++; return assert.AnError })

	require.Error(t, err)
	assert.Equal(t, maxAttempts, calls)
	assert.Equal(t, []string{"sf"}, status.failed)
	assert.Equal(t, 0, status.pending)
}

func TestBackoffForIsBoundedExponential(t *testing.T) {
	assert.Equal(t, time.Second, backoffFor(1))
	assert.Equal(t, 2*time.Second, backoffFor(2))
	assert.Equal(t, 4*time.Second, backoffFor(3))
	assert.Equal(t, 10*time.Second, backoffFor(10))
}

func TestPushCanceledDuringBackoffReturnsContextError(t *testing.T) {
	status := &fakeStatus{}
	m := New(status)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.Push(ctx, "sf", types.Record{RecordID: "1"},
		func(r types.Record) types.Record { return r },
		func(ctx context.Context, r types.Record) error { return assert.AnError })

	require.Error(t, err)
	assert.Equal(t, []string{"sf"}, status.failed)
}
