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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pratapdesai/record-sync/internal/types"
)

type fakeSource struct {
	records []types.Record
	err     error
}

func (f *fakeSource) FetchRecords(ctx context.Context) ([]types.Record, error) {
	return f.records, f.err
}

type fakeSink struct {
	written []types.Record
	failAt  int
}

func (f *fakeSink) WriteRecord(ctx context.Context, record types.Record, allowDuplicates bool) error {
	if f.failAt != 0 && len(f.written)+1 == f.failAt {
		return assert.AnError
	}
	f.written = append(f.written, record)
	return nil
}

func TestSyncAllWritesEveryRecord(t *testing.T) {
	source := &fakeSource{records: []types.Record{{RecordID: "1"}, {RecordID: "2"}}}
	sink := &fakeSink{}
	o := NewOrchestrator(source, sink)

	n, err := o.SyncAll(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, sink.written, 2)
}

func TestSyncAllStopsOnWriteError(t *testing.T) {
	source := &fakeSource{records: []types.Record{{RecordID: "1"}, {RecordID: "2"}}}
	sink := &fakeSink{failAt: 2}
	o := NewOrchestrator(source, sink)

	n, err := o.SyncAll(context.Background(), false)
	require.Error(t, err)
	assert.Equal(t, 1, n)
}
