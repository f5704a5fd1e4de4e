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

// Package sync implements the two entry points onto the record
// pipeline: the one-shot Orchestrator and the command-driven Manager.
package sync

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/pratapdesai/record-sync/internal/types"
)

// Orchestrator drives the one-shot bulk mode described in section
// 4.9: fetch everything from source, write everything to sink,
// bypassing the queueing pipeline entirely.
type Orchestrator struct {
	Source types.Source
	Sink   types.Sink
}

// NewOrchestrator returns an Orchestrator moving records from source
// to sink.
func NewOrchestrator(source types.Source, sink types.Sink) *Orchestrator {
	return &Orchestrator{Source: source, Sink: sink}
}

// SyncAll fetches every record from the source and writes each to the
// sink, returning the count written.
func (o *Orchestrator) SyncAll(ctx context.Context, allowDuplicates bool) (int, error) {
	logrus.Info("starting record-to-record sync")

	records, err := o.Source.FetchRecords(ctx)
	if err != nil {
		return 0, err
	}

	synced := 0
	for _, record := range records {
		if err := o.Sink.WriteRecord(ctx, record, allowDuplicates); err != nil {
			return synced, err
		}
		synced++
	}

	logrus.WithField("count", len(records)).Info("finished syncing records")
	return synced, nil
}
