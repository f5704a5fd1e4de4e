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

package file

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pratapdesai/record-sync/internal/types"
)

func writeJSON(t *testing.T, path string, records []types.Record) {
	t.Helper()
	data, err := json.Marshal(records)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestFetchRecordsOnMissingFileReturnsEmpty(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "missing.json"))
	records, err := s.FetchRecords(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestFetchNewRecordsOnlyReturnsUnseen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.json")
	writeJSON(t, path, []types.Record{{RecordID: "1"}, {RecordID: "2"}})

	s := New(path)
	first, err := s.FetchNewRecords(context.Background())
	require.NoError(t, err)
	assert.Len(t, first, 2)

	second, err := s.FetchNewRecords(context.Background())
	require.NoError(t, err)
	assert.Empty(t, second)

	writeJSON(t, path, []types.Record{{RecordID: "1"}, {RecordID: "2"}, {RecordID: "3"}})
	third, err := s.FetchNewRecords(context.Background())
	require.NoError(t, err)
	require.Len(t, third, 1)
	assert.Equal(t, "3", third[0].RecordID)
}
