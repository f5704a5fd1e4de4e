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

func TestWriteRecordDedupsByRecordID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	s := New(path)

	require.NoError(t, s.WriteRecord(context.Background(), types.Record{RecordID: "1"}, false))
	require.NoError(t, s.WriteRecord(context.Background(), types.Record{RecordID: "1"}, false))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var records []types.Record
	require.NoError(t, json.Unmarshal(data, &records))
	assert.Len(t, records, 1)
}

func TestWriteRecordAllowDuplicatesAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	s := New(path)

	require.NoError(t, s.WriteRecord(context.Background(), types.Record{RecordID: "1"}, true))
	require.NoError(t, s.WriteRecord(context.Background(), types.Record{RecordID: "1"}, true))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var records []types.Record
	require.NoError(t, json.Unmarshal(data, &records))
	assert.Len(t, records, 2)
}
