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

package types

import (
	"context"
	"time"
)

// A Source yields Records, either in bulk or as a delta since the
// last call.
type Source interface {
	// FetchRecords returns every record the source currently holds.
	FetchRecords(ctx context.Context) ([]Record, error)
}

// NewRecordFetcher is implemented by sources that support delta reads.
// File and embedded-SQL sources implement it with an in-memory seen-ids
// set. CRM pull sources do not implement it; they expose
// RecentChangeFetcher and a timestamp watermark instead.
type NewRecordFetcher interface {
	FetchNewRecords(ctx context.Context) ([]Record, error)
}

// A Sink persists or forwards Records. WriteRecord is idempotent on
// RecordID unless allowDuplicates is set.
type Sink interface {
	WriteRecord(ctx context.Context, record Record, allowDuplicates bool) error
}

// A Pusher delivers a single Record to a remote system. CRM adapters
// implement Pusher; RetryManager and SyncManager both push through
// this capability.
type Pusher interface {
	Push(ctx context.Context, record Record) error
}

// A Transformer performs adapter-specific field renaming prior to
// Push. Every CrmAdapter is a Transformer.
type Transformer interface {
	Transform(record Record) Record
}

// A RecentChangeFetcher reads records changed since a watermark,
// backing a CRM-pull poller. Optional capability exposed by some CRM
// adapters, asserted for with a type assertion in
// cmd/recordsyncd/providers.go's fetchFor.
type RecentChangeFetcher interface {
	FetchRecentChanges(ctx context.Context, since time.Time) ([]Record, error)
}

// CrmAdapter is the full capability set a registered CRM exposes.
// Push and Transform are mandatory; RecentChangeFetcher is asserted
// for optionally.
type CrmAdapter interface {
	Pusher
	Transformer
	// Identify returns the adapter's registered name.
	Identify() string
	// ConfigSchema returns the expected config keys and a human
	// description of each. The registry checks a credential section
	// against it right after the factory has built the adapter, and
	// rejects the adapter if a key is missing.
	ConfigSchema() map[string]string
}

// A Factory constructs a CrmAdapter from a config map that has not yet
// been checked against the adapter's ConfigSchema. Each CRM package
// registers a Factory into the CrmRegistry at init time.
type Factory func(config map[string]string) (CrmAdapter, error)
