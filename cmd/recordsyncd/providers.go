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

package main

import (
	"context"
	"fmt"
	stdsync "sync"
	"time"

	"github.com/google/wire"

	"github.com/pratapdesai/record-sync/internal/api"
	"github.com/pratapdesai/record-sync/internal/config"
	"github.com/pratapdesai/record-sync/internal/crm"
	sinkfile "github.com/pratapdesai/record-sync/internal/sink/file"
	sourcefile "github.com/pratapdesai/record-sync/internal/source/file"
	"github.com/pratapdesai/record-sync/internal/poller"
	"github.com/pratapdesai/record-sync/internal/queue"
	"github.com/pratapdesai/record-sync/internal/ratelimit"
	"github.com/pratapdesai/record-sync/internal/rules"
	"github.com/pratapdesai/record-sync/internal/sqladapter"
	"github.com/pratapdesai/record-sync/internal/status"
	"github.com/pratapdesai/record-sync/internal/sync"
	"github.com/pratapdesai/record-sync/internal/types"
)

// ProviderSet is used by Wire.
var ProviderSet = wire.NewSet(
	ProvideCredentials,
	ProvideTopology,
	ProvideRules,
	ProvideStatus,
	ProvideQueue,
	ProvideSystems,
	ProvideDestinations,
	ProvideManager,
	ProvideOrchestrator,
	ProvidePollers,
	ProvideSurface,
)

// ProvideCredentials loads the destination credential sections named
// by cfg.CredentialFile. A missing file loads as empty per
// config.LoadCredentials.
func ProvideCredentials(cfg *config.Config) (*config.Credentials, error) {
	return config.LoadCredentials(cfg.CredentialFile)
}

// ProvideTopology loads and validates the sync topology.
func ProvideTopology(cfg *config.Config) (config.Topology, error) {
	return config.LoadTopology(cfg.TopologyFile)
}

// ProvideRules loads the rules engine from cfg.RulesFile, falling
// back to the built-in default document if the file is absent.
func ProvideRules(cfg *config.Config) *rules.Engine {
	return rules.New(cfg.RulesFile)
}

// ProvideStatus returns a fresh process-wide status tracker.
func ProvideStatus() *status.Tracker {
	return status.New()
}

// ProvideQueue wires a rate-limited queue.Manager whose depth feeds
// the status tracker's queue-size gauge.
func ProvideQueue(cfg *config.Config, st *status.Tracker) *queue.Manager {
	limiter := ratelimit.New(cfg.RateLimitPerMin, time.Minute)
	q := queue.New(limiter)
	q.OnSizeChanged(st.SetQueueSize)
	return q
}

// System is one constructed topology node. Exactly one of Source,
// Sink, or Crm is populated, mirroring the "type" tag that drove its
// construction.
type System struct {
	Name   string
	Source types.Source
	Sink   types.Sink
	Crm    types.CrmAdapter
}

// Systems is every constructed topology node, keyed by its topology
// name, plus the close functions for any adapter holding a live
// connection.
type Systems struct {
	ByName  map[string]*System
	Closers []func() error
}

// ProvideSystems builds one System per topology entry. Entries whose
// type names a relational or file backend construct that adapter
// directly; any other type is looked up in the CRM registry by name.
func ProvideSystems(topo config.Topology, creds *config.Credentials) (*Systems, error) {
	out := &Systems{ByName: make(map[string]*System, len(topo))}

	for name, entry := range topo {
		sys := &System{Name: name}

		switch entry.Type {
		case config.TypeFileSource:
			sys.Source = sourcefile.New(entry.StringField("path"))
		case config.TypeFileSink:
			sys.Sink = sinkfile.New(entry.StringField("path"))
		case config.TypeSQLiteSource, config.TypeSQLiteSink,
			config.TypePostgresSource, config.TypePostgresSink,
			config.TypeRedshiftSink, config.TypeMySQLSource, config.TypeMySQLSink:
			adapter, err := openRelational(entry)
			if err != nil {
				return nil, fmt.Errorf("system %q: %w", name, err)
			}
			out.Closers = append(out.Closers, adapter.Close)
			switch entry.Type {
			case config.TypeSQLiteSource, config.TypePostgresSource, config.TypeMySQLSource:
				sys.Source = adapter
			default:
				sys.Sink = adapter
			}
		default:
			section := entry.StringField("credentials")
			if section == "" {
				section = name
			}
			adapter, err := crm.Build(entry.Type, creds.Section(section))
			if err != nil {
				return nil, fmt.Errorf("system %q: %w", name, err)
			}
			sys.Crm = adapter
		}

		out.ByName[name] = sys
	}
	return out, nil
}

func openRelational(entry config.SystemEntry) (*sqladapter.Adapter, error) {
	dsn := entry.StringField("dsn")
	table := entry.StringField("table")
	switch entry.Type {
	case config.TypeSQLiteSource, config.TypeSQLiteSink:
		return sqladapter.Open(sqladapter.SQLite, dsn, table)
	case config.TypePostgresSource, config.TypePostgresSink:
		return sqladapter.Open(sqladapter.Postgres, dsn, table)
	case config.TypeRedshiftSink:
		return sqladapter.Open(sqladapter.Redshift, dsn, table)
	case config.TypeMySQLSource, config.TypeMySQLSink:
		return sqladapter.Open(sqladapter.MySQL, dsn, table)
	default:
		return nil, fmt.Errorf("unhandled relational type %q", entry.Type)
	}
}

// ProvideDestinations collects every CRM system into the map
// sync.Manager needs, keyed by the CRM's registered name.
func ProvideDestinations(systems *Systems) map[string]types.CrmAdapter {
	destinations := make(map[string]types.CrmAdapter)
	for _, sys := range systems.ByName {
		if sys.Crm != nil {
			destinations[sys.Crm.Identify()] = sys.Crm
		}
	}
	return destinations
}

// ProvideManager wires the command-driven sync path, seeding its flush
// batch size from cfg.BatchSize rather than sync.DefaultBatchSize.
func ProvideManager(
	cfg *config.Config, destinations map[string]types.CrmAdapter, q *queue.Manager, r *rules.Engine, st *status.Tracker,
) *sync.Manager {
	m := sync.NewManager(destinations, q, r, st)
	m.SetBatchSize(cfg.BatchSize)
	return m
}

// ProvideOrchestrator picks one file/relational source and one sink
// from the topology to back the one-shot bulk command. Systems are
// visited in map order, so when several sources or sinks are declared
// which one is picked is not defined. Returns nil if
// the topology declares no such pair; TriggerBulkSync then reports an
// unsupported-operation error.
func ProvideOrchestrator(systems *Systems) *sync.Orchestrator {
	var source types.Source
	var sink types.Sink
	for _, sys := range systems.ByName {
		if source == nil && sys.Source != nil {
			source = sys.Source
		}
		if sink == nil && sys.Sink != nil {
			sink = sys.Sink
		}
	}
	if source == nil || sink == nil {
		return nil
	}
	return sync.NewOrchestrator(source, sink)
}

// ProvidePollers builds one poller.Poller per (source, destination)
// pair in the topology's cross product, skipping a system paired with
// itself: every source is polled into every other declared
// destination.
func ProvidePollers(
	cfg *config.Config, systems *Systems, r *rules.Engine, st *status.Tracker,
) map[string]*poller.Poller {
	pollers := make(map[string]*poller.Poller)

	for _, src := range systems.ByName {
		fetch := fetchFor(src)
		if fetch == nil {
			continue
		}
		for _, dst := range systems.ByName {
			if dst.Name == src.Name {
				continue
			}
			deliver := deliverFor(dst)
			if deliver == nil {
				continue
			}

			interval := cfg.PollInterval
			if src.Crm != nil || dst.Crm != nil {
				interval = cfg.CRMPollInterval
			}
			name := src.Name + "->" + dst.Name
			pollers[name] = &poller.Poller{
				Name:     name,
				Interval: interval,
				Fetch:    fetch,
				Deliver:  deliver,
				Rules:    r,
				Status:   st,
			}
		}
	}
	return pollers
}

// fetchFor resolves src into a poller.Fetch. A file/embedded-SQL
// source delta-reads via its seen-ids set; a CRM adapter implementing
// RecentChangeFetcher delta-reads via a timestamp watermark, backing
// a CRM-pull poller.
func fetchFor(sys *System) poller.Fetch {
	if sys.Source != nil {
		if nrf, ok := sys.Source.(types.NewRecordFetcher); ok {
			return nrf.FetchNewRecords
		}
		return sys.Source.FetchRecords
	}
	if sys.Crm != nil {
		if rcf, ok := sys.Crm.(types.RecentChangeFetcher); ok {
			return crmPullFetch(rcf)
		}
	}
	return nil
}

// crmPullFetch adapts a RecentChangeFetcher's watermark-based API into
// a poller.Fetch, advancing the watermark to "now" after every
// successful call the same way a file source's seen-ids set advances.
func crmPullFetch(rcf types.RecentChangeFetcher) poller.Fetch {
	var mu stdsync.Mutex
	var since time.Time

	return func(ctx context.Context) ([]types.Record, error) {
		mu.Lock()
		watermark := since
		mu.Unlock()

		records, err := rcf.FetchRecentChanges(ctx, watermark)
		if err != nil {
			return nil, err
		}

		mu.Lock()
		since = time.Now()
		mu.Unlock()
		return records, nil
	}
}

func deliverFor(sys *System) poller.Deliver {
	switch {
	case sys.Sink != nil:
		sink := sys.Sink
		return func(ctx context.Context, r types.Record) error {
			return sink.WriteRecord(ctx, r, false)
		}
	case sys.Crm != nil:
		adapter := sys.Crm
		return func(ctx context.Context, r types.Record) error {
			return adapter.Push(ctx, adapter.Transform(r))
		}
	default:
		return nil
	}
}

// ProvideSurface assembles the transport-independent command surface.
func ProvideSurface(
	manager *sync.Manager, orchestrator *sync.Orchestrator, r *rules.Engine,
	st *status.Tracker, pollers map[string]*poller.Poller, creds *config.Credentials,
) *api.Surface {
	return &api.Surface{
		Manager:      manager,
		Orchestrator: orchestrator,
		Rules:        r,
		Status:       st,
		Pollers:      pollers,
		Credentials:  creds,
	}
}
