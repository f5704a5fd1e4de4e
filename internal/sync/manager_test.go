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
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pratapdesai/record-sync/internal/queue"
	"github.com/pratapdesai/record-sync/internal/ratelimit"
	"github.com/pratapdesai/record-sync/internal/rules"
	"github.com/pratapdesai/record-sync/internal/status"
	"github.com/pratapdesai/record-sync/internal/types"
)

type fakeAdapter struct {
	mu       sync.Mutex
	pushed   []types.Record
	pushErrs []error
	calls    int
}

func (f *fakeAdapter) Identify() string                      { return "fake" }
func (f *fakeAdapter) ConfigSchema() map[string]string        { return nil }
func (f *fakeAdapter) Transform(r types.Record) types.Record { return r }
func (f *fakeAdapter) Push(ctx context.Context, r types.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var err error
	if f.calls < len(f.pushErrs) {
		err = f.pushErrs[f.calls]
	}
	f.calls++
	if err == nil {
		f.pushed = append(f.pushed, r)
	}
	return err
}

func newTestManager(t *testing.T, adapter types.CrmAdapter) (*Manager, *status.Tracker) {
	t.Helper()
	e := rules.New(filepath.Join(t.TempDir(), "rules.json"))
	s := status.New()
	q := queue.New(ratelimit.New(100, time.Minute))
	m := NewManager(map[string]types.CrmAdapter{"fake": adapter}, q, e, s)
	return m, s
}

func TestEnqueueSyncRejectsUnsupportedDestination(t *testing.T) {
	m, _ := newTestManager(t, &fakeAdapter{})
	err := m.EnqueueSync(context.Background(), "nope", types.Record{RecordID: "1"})
	require.Error(t, err)
}

func TestEnqueueSyncSkipsByRule(t *testing.T) {
	adapter := &fakeAdapter{}
	m, s := newTestManager(t, adapter)
	require.NoError(t, m.rules.UpdateRules(rules.Document{
		Destinations: map[string]rules.DestinationRule{
			"fake": {RequiredFields: []string{"email"}},
		},
	}))

	require.NoError(t, m.EnqueueSync(context.Background(), "fake", types.Record{RecordID: "1", Data: map[string]any{}}))
	assert.Equal(t, types.StatusSkippedByRule, s.RecordStatus("1"))
	assert.Empty(t, adapter.pushed)
}

func TestEnqueueSyncQueuesAndFlushesToSynced(t *testing.T) {
	adapter := &fakeAdapter{}
	m, s := newTestManager(t, adapter)

	require.NoError(t, m.EnqueueSync(context.Background(), "fake", types.Record{RecordID: "1", Data: map[string]any{}}))

	assert.Equal(t, types.StatusSynced, s.RecordStatus("1"))
	require.Len(t, adapter.pushed, 1)
	assert.Equal(t, int64(1), s.Snapshot().TotalSynced)
}

func TestEnqueueSyncMarksFailedAfterRetriesExhausted(t *testing.T) {
	adapter := &fakeAdapter{pushErrs: []error{assert.AnError, assert.AnError, assert.AnError}}
	m, s := newTestManager(t, adapter)

	require.NoError(t, m.EnqueueSync(context.Background(), "fake", types.Record{RecordID: "1", Data: map[string]any{}}))
	assert.Equal(t, types.StatusFailed, s.RecordStatus("1"))
}
