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

package sqladapter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pratapdesai/record-sync/internal/types"
)

func openMemory(t *testing.T) *Adapter {
	t.Helper()
	a, err := Open(SQLite, ":memory:", "records")
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestWriteThenFetchRoundTrips(t *testing.T) {
	a := openMemory(t)
	ctx := context.Background()

	require.NoError(t, a.WriteRecord(ctx, types.Record{
		RecordID:  "1",
		Operation: types.OpCreate,
		Data:      map[string]any{"email": "a@b"},
	}, false))

	records, err := a.FetchRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "1", records[0].RecordID)
	assert.Equal(t, "a@b", records[0].Data["email"])
}

func TestWriteRecordWithoutAllowDuplicatesSkipsConflict(t *testing.T) {
	a := openMemory(t)
	ctx := context.Background()

	require.NoError(t, a.WriteRecord(ctx, types.Record{RecordID: "1", Data: map[string]any{"v": 1.0}}, false))
	require.NoError(t, a.WriteRecord(ctx, types.Record{RecordID: "1", Data: map[string]any{"v": 2.0}}, false))

	records, err := a.FetchRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 1.0, records[0].Data["v"])
}

func TestWriteRecordWithAllowDuplicatesOverwrites(t *testing.T) {
	a := openMemory(t)
	ctx := context.Background()

	require.NoError(t, a.WriteRecord(ctx, types.Record{RecordID: "1", Data: map[string]any{"v": 1.0}}, false))
	require.NoError(t, a.WriteRecord(ctx, types.Record{RecordID: "1", Data: map[string]any{"v": 2.0}}, true))

	records, err := a.FetchRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 2.0, records[0].Data["v"])
}

func TestFetchNewRecordsOnlyReturnsUnseen(t *testing.T) {
	a := openMemory(t)
	ctx := context.Background()

	require.NoError(t, a.WriteRecord(ctx, types.Record{RecordID: "1", Data: map[string]any{}}, false))
	first, err := a.FetchNewRecords(ctx)
	require.NoError(t, err)
	assert.Len(t, first, 1)

	second, err := a.FetchNewRecords(ctx)
	require.NoError(t, err)
	assert.Empty(t, second)

	require.NoError(t, a.WriteRecord(ctx, types.Record{RecordID: "2", Data: map[string]any{}}, false))
	third, err := a.FetchNewRecords(ctx)
	require.NoError(t, err)
	require.Len(t, third, 1)
	assert.Equal(t, "2", third[0].RecordID)
}
