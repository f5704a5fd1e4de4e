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

// Package api implements the transport-independent command surface,
// plus a minimal net/http front end over it.
package api

import (
	"context"
	"fmt"
	"strconv"

	"github.com/pratapdesai/record-sync/internal/config"
	"github.com/pratapdesai/record-sync/internal/crm"
	"github.com/pratapdesai/record-sync/internal/poller"
	"github.com/pratapdesai/record-sync/internal/rules"
	"github.com/pratapdesai/record-sync/internal/status"
	"github.com/pratapdesai/record-sync/internal/sync"
	"github.com/pratapdesai/record-sync/internal/types"
)

// Surface is the transport-independent command surface, with no
// knowledge of HTTP.
type Surface struct {
	Manager      *sync.Manager
	Orchestrator *sync.Orchestrator
	Rules        *rules.Engine
	Status       *status.Tracker
	Pollers      map[string]*poller.Poller
	Credentials  *config.Credentials
}

// DestinationConfigOverride is the input to OverrideDestinationConfig.
// Zero-value fields (empty string) are left unchanged.
type DestinationConfigOverride struct {
	CRM                string
	BatchSize          string
	FlushInterval      string
	RateLimitPerMinute string
}

// SyncRequest is the input to SubmitSync.
type SyncRequest struct {
	Operation types.Operation
	RecordID  string
	Data      map[string]any
	Dest      string
}

// SubmitSync enqueues a sync request onto the command-driven path.
func (s *Surface) SubmitSync(ctx context.Context, req SyncRequest) error {
	return s.Manager.EnqueueSync(ctx, req.Dest, types.Record{
		RecordID:    req.RecordID,
		Operation:   req.Operation,
		Data:        req.Data,
		Destination: req.Dest,
	})
}

// RecordStatus returns the per-record status for recordID.
func (s *Surface) RecordStatus(recordID string) types.Status {
	return s.Status.RecordStatus(recordID)
}

// AggregateStatus returns the process-wide status snapshot.
func (s *Surface) AggregateStatus() status.Snapshot {
	return s.Status.Snapshot()
}

// ReplaceRules atomically swaps the active rules document.
func (s *Surface) ReplaceRules(doc rules.Document) error {
	return s.Rules.UpdateRules(doc)
}

// CurrentRules returns the active rules document.
func (s *Surface) CurrentRules() rules.Document {
	return s.Rules.Snapshot()
}

// OverrideDestinationConfig persists the given destination's batch
// size, flush interval, and rate limit to the credentials file,
// matching the original ConfigManager.override behavior. BatchSize is
// additionally applied live, since SyncManager's flush batch size is
// process-wide; flush interval and rate limit take effect on the next
// process restart, as overriding a single shared rate limiter or
// poller interval per destination is out of this engine's scope.
func (s *Surface) OverrideDestinationConfig(dest string, override DestinationConfigOverride) error {
	if override.BatchSize != "" {
		n, err := strconv.Atoi(override.BatchSize)
		if err != nil {
			return fmt.Errorf("batch_size: %w", err)
		}
		if n <= 0 {
			return fmt.Errorf("batch_size must be positive")
		}
		if err := s.Credentials.Override(dest, "batch_size", override.BatchSize); err != nil {
			return err
		}
		s.Manager.SetBatchSize(n)
	}
	if override.FlushInterval != "" {
		if err := s.Credentials.Override(dest, "flush_interval", override.FlushInterval); err != nil {
			return err
		}
	}
	if override.RateLimitPerMinute != "" {
		if _, err := strconv.Atoi(override.RateLimitPerMinute); err != nil {
			return fmt.Errorf("rate_limit_per_minute: %w", err)
		}
		if err := s.Credentials.Override(dest, "rate_limit_per_minute", override.RateLimitPerMinute); err != nil {
			return err
		}
	}
	if override.CRM != "" {
		if err := s.Credentials.Override(dest, "crm", override.CRM); err != nil {
			return err
		}
	}
	return nil
}

// TriggerPoll runs one iteration of the named poller immediately,
// independent of its interval.
func (s *Surface) TriggerPoll(ctx context.Context, name string) error {
	p, ok := s.Pollers[name]
	if !ok {
		return fmt.Errorf("poller %q not found", name)
	}
	p.RunOnce(ctx)
	return nil
}

// TriggerBulkSync runs the one-shot orchestrator.
func (s *Surface) TriggerBulkSync(ctx context.Context, allowDuplicates bool) (int, error) {
	if s.Orchestrator == nil {
		return 0, fmt.Errorf("bulk sync unavailable: topology declares no source/sink pair")
	}
	return s.Orchestrator.SyncAll(ctx, allowDuplicates)
}

// ListDestinations returns every registered CRM adapter name.
func (s *Surface) ListDestinations() []string {
	return crm.Names()
}

// DestinationSchema returns the config schema for a registered CRM
// adapter.
func (s *Surface) DestinationSchema(name string) (map[string]string, error) {
	return crm.Schema(name)
}
