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

// Package file implements a write-only, JSON-array-backed Sink.
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

// Sink appends records to a JSON array file, deduplicating on
// RecordID unless allowDuplicates is set. Every read-modify-write
// cycle is serialized under a single mutex.
type Sink struct {
	path string
	mu   sync.Mutex
}

// New returns a Sink writing to path.
func New(path string) *Sink {
	return &Sink{path: path}
}

// WriteRecord appends record to the file. If allowDuplicates is
// false and a record with the same RecordID is already present, the
// write is skipped without error.
func (s *Sink) WriteRecord(ctx context.Context, record types.Record, allowDuplicates bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.readExisting()
	if err != nil {
		return err
	}

	if !allowDuplicates {
		for _, r := range existing {
			if r.RecordID == record.RecordID {
				logrus.WithField("record_id", record.RecordID).Info("skipping already synced record")
				return nil
			}
		}
	}

	existing = append(existing, record)
	data, err := json.MarshalIndent(existing, "", "  ")
	if err != nil {
		return types.NewKindError(types.KindPermanentIO, errors.Wrap(err, "marshal file sink contents"))
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return types.NewKindError(types.KindTransientIO, errors.Wrap(err, "write file sink"))
	}

	logrus.WithField("record_id", record.RecordID).WithField("path", s.path).Info("wrote record")
	return nil
}

func (s *Sink) readExisting() ([]types.Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, types.NewKindError(types.KindTransientIO, errors.Wrap(err, "read file sink"))
	}
	var records []types.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, nil
	}
	return records, nil
}
