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

// Package file implements a read-only, JSON-array-backed Source.
package file

import (
	"context"
	"encoding/json"
	"os"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/pratapdesai/record-sync/internal/types"
)

// Source reads records from a JSON array file. FetchRecords returns
// the file's full contents; FetchNewRecords returns only record IDs
// not previously seen by this Source instance, tracked with an
// in-memory set.
type Source struct {
	path string

	mu      sync.Mutex
	seenIDs map[string]struct{}
}

// New returns a Source reading from path.
func New(path string) *Source {
	return &Source{path: path, seenIDs: make(map[string]struct{})}
}

// FetchRecords returns every record currently in the file. A missing
// file is treated as empty, not an error.
func (s *Source) FetchRecords(ctx context.Context) ([]types.Record, error) {
	records, err := readAll(s.path)
	if err != nil {
		return nil, err
	}
	logrus.WithField("path", s.path).WithField("count", len(records)).Debug("read file source")
	return records, nil
}

// FetchNewRecords returns records whose RecordID has not yet been
// returned by this Source instance. Malformed JSON is treated as an
// empty file, matching the original poller's tolerant decode.
func (s *Source) FetchNewRecords(ctx context.Context) ([]types.Record, error) {
	records, err := readAll(s.path)
	if err != nil {
		records = nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var fresh []types.Record
	for _, r := range records {
		if r.RecordID == "" {
			continue
		}
		if _, seen := s.seenIDs[r.RecordID]; seen {
			continue
		}
		s.seenIDs[r.RecordID] = struct{}{}
		fresh = append(fresh, r)
	}
	return fresh, nil
}

func readAll(path string) ([]types.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, types.NewKindError(types.KindTransientIO, errors.Wrap(err, "read file source"))
	}

	var records []types.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, nil
	}
	return records, nil
}
