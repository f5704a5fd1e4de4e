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

package config

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"

	"github.com/pratapdesai/record-sync/internal/types"
)

// Recognized topology entry types.
const (
	TypeFileSource     = "file_source"
	TypeFileSink       = "file_sink"
	TypeSQLiteSource   = "sqlite_source"
	TypeSQLiteSink     = "sqlite_sink"
	TypePostgresSource = "postgres_source"
	TypePostgresSink   = "postgres_sink"
	TypeRedshiftSink   = "redshift_sink"
	TypeMySQLSource    = "mysql_source"
	TypeMySQLSink      = "mysql_sink"
)

// SystemEntry is one named node in the topology file: a type tag plus
// its typed fields. Typed fields vary by Type and are read out of
// Fields by the loader that constructs the concrete adapter.
type SystemEntry struct {
	Type   string         `json:"type"`
	Fields map[string]any `json:"-"`
}

// UnmarshalJSON captures the type tag into Type and everything else
// into Fields, since the typed fields vary per Type.
func (s *SystemEntry) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	typ, _ := raw["type"].(string)
	s.Type = typ
	delete(raw, "type")
	s.Fields = raw
	return nil
}

// Topology is the sync topology file: a mapping from a human-chosen
// system name to its entry.
type Topology map[string]SystemEntry

// LoadTopology reads and parses the topology file at path.
// Unparseable configuration at startup is a fatal ConfigError.
func LoadTopology(path string) (Topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, types.NewKindError(types.KindConfig, errors.Wrapf(err, "read topology file %s", path))
	}

	var topo Topology
	if err := json.Unmarshal(data, &topo); err != nil {
		return nil, types.NewKindError(types.KindConfig, errors.Wrapf(err, "parse topology file %s", path))
	}

	for name, entry := range topo {
		if entry.Type == "" {
			return nil, types.NewKindError(types.KindConfig,
				errors.Errorf("topology entry %q has no type", name))
		}
	}
	return topo, nil
}

// StringField returns entry's field named key as a string, or an
// empty string if absent or not a string.
func (s SystemEntry) StringField(key string) string {
	v, _ := s.Fields[key].(string)
	return v
}
