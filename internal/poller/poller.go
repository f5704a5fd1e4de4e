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

// Package poller implements the interval-driven source-to-sink loop.
//
// A naive port would give each concrete source (file, embedded SQL,
// CRM) its own near-identical poller, differing only in how it
// fetches new records and whether the destination exposes
// write_record or push. Instead there is one Poller type per
// (source, sink) pair, parameterized over those two seams.
package poller

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pratapdesai/record-sync/internal/lifecycle"
	"github.com/pratapdesai/record-sync/internal/metrics"
	"github.com/pratapdesai/record-sync/internal/rules"
	"github.com/pratapdesai/record-sync/internal/status"
	"github.com/pratapdesai/record-sync/internal/types"
)

// DefaultInterval is the default interval for file and embedded SQL
// pollers. The wired pollers take their interval from the
// --poll-interval flag, whose default has the same value.
const DefaultInterval = 5 * time.Second

// DefaultCRMInterval is the default interval for CRM-pull pollers. The
// wired pollers take their interval from the --crm-poll-interval flag,
// whose default has the same value.
const DefaultCRMInterval = 300 * time.Second

// Deliver writes or pushes one transformed record to a destination.
// CrmAdapter.Push satisfies this signature; Sink.WriteRecord takes an
// extra allowDuplicates flag and is wrapped in a closure to fit it.
type Deliver func(ctx context.Context, record types.Record) error

// Fetch retrieves the batch of records due for this iteration.
// NewRecordFetcher.FetchNewRecords satisfies this signature; a CRM's
// RecentChangeFetcher is wrapped in a closure that keeps its own
// timestamp watermark.
type Fetch func(ctx context.Context) ([]types.Record, error)

// Poller owns one interval-driven loop pairing a Fetch with a
// Deliver, filtered and reshaped by a shared rules.Engine.
type Poller struct {
	Name     string
	Interval time.Duration
	Fetch    Fetch
	Deliver  Deliver
	Rules    *rules.Engine
	Status   *status.Tracker
}

// Run starts the poll loop under group, returning immediately. At
// startup the poller is added to the active-poller set; on shutdown
// it is removed.
func (p *Poller) Run(group *lifecycle.Group) {
	p.Status.PollerStarted(p.Name)
	group.Go(func(ctx context.Context) error {
		defer p.Status.PollerStopped(p.Name)

		ticker := time.NewTicker(p.Interval)
		defer ticker.Stop()

		for {
			p.iterate(ctx)
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	})
}

// RunOnce runs a single fetch/filter/transform/deliver cycle
// synchronously, for manual "trigger one poll" requests.
func (p *Poller) RunOnce(ctx context.Context) {
	p.iterate(ctx)
}

// iterate runs exactly one fetch/filter/transform/deliver cycle. A
// failure anywhere in the cycle is logged and does not propagate: a
// poller never dies on a single-iteration failure.
func (p *Poller) iterate(ctx context.Context) {
	records, err := p.Fetch(ctx)
	if err != nil {
		logrus.WithField("poller", p.Name).WithError(err).Error("poll iteration failed")
		metrics.PollErrors.WithLabelValues(p.Name).Inc()
		return
	}

	for _, record := range records {
		if !p.Rules.Match(record) {
			continue
		}
		transformed := p.Rules.Transform(record)
		if len(transformed.Data) == 0 {
			logrus.WithField("record_id", record.RecordID).Warn("skipping empty transformed record")
			continue
		}
		if err := p.Deliver(ctx, transformed); err != nil {
			logrus.WithField("poller", p.Name).WithField("record_id", record.RecordID).
				WithError(err).Error("delivery failed")
			continue
		}
		logrus.WithField("poller", p.Name).WithField("record_id", record.RecordID).Info("synced record")
	}

	metrics.PollIterations.WithLabelValues(p.Name).Inc()
}
