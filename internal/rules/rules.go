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

// Package rules implements the hot-reloadable admission and
// field-mapping document: a per-destination required_fields/disallow_if
// predicate, a top-level filters predicate, and a mappings-based
// transform.
package rules

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/pratapdesai/record-sync/internal/types"
)

// DestinationRule is the admission predicate for one destination:
// every field in RequiredFields must be present and truthy in
// record.Data, and no field in DisallowIf may equal its configured
// value.
type DestinationRule struct {
	RequiredFields []string       `json:"required_fields"`
	DisallowIf     map[string]any `json:"disallow_if"`
}

// Document is the rules document: a per-destination admission map
// plus top-level filters and mappings
// applied regardless of destination. On the wire this is a flat JSON
// object keyed directly by destination name, with "filters" and
// "mappings" reserved as the two non-destination keys — there is no
// nested "destinations" wrapper.
type Document struct {
	Destinations map[string]DestinationRule
	Filters      map[string]any
	Mappings     map[string]string
}

// UnmarshalJSON folds every top-level key other than the reserved
// "filters" and "mappings" into Destinations, the same
// unrecognized-key-capture pattern config.SystemEntry uses for
// topology entries.
func (d *Document) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	destinations := make(map[string]DestinationRule, len(raw))
	for key, value := range raw {
		switch key {
		case "filters":
			if err := json.Unmarshal(value, &d.Filters); err != nil {
				return errors.Wrap(err, "unmarshal filters")
			}
		case "mappings":
			if err := json.Unmarshal(value, &d.Mappings); err != nil {
				return errors.Wrap(err, "unmarshal mappings")
			}
		default:
			var rule DestinationRule
			if err := json.Unmarshal(value, &rule); err != nil {
				return errors.Wrapf(err, "unmarshal destination %q", key)
			}
			destinations[key] = rule
		}
	}
	d.Destinations = destinations
	return nil
}

// MarshalJSON spreads Destinations at the top level alongside the
// reserved filters/mappings keys, mirroring UnmarshalJSON.
func (d Document) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Destinations)+2)
	for name, rule := range d.Destinations {
		out[name] = rule
	}
	if d.Filters != nil {
		out["filters"] = d.Filters
	}
	if d.Mappings != nil {
		out["mappings"] = d.Mappings
	}
	return json.Marshal(out)
}

// defaultDocument mirrors the built-in fallback used when no rules
// file is present on disk.
func defaultDocument() Document {
	return Document{
		Destinations: map[string]DestinationRule{
			"salesforce": {
				RequiredFields: []string{"email"},
				DisallowIf:     map[string]any{"do_not_sync": true},
			},
		},
	}
}

// Engine holds the current rules document under a mutex and persists
// updates to a local JSON file.
type Engine struct {
	path string

	mu  sync.RWMutex
	doc Document
}

// New loads the rules document from path, falling back to a built-in
// default if the file does not exist or cannot be parsed.
func New(path string) *Engine {
	e := &Engine{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		logrus.WithField("path", path).Warn("no local rules file found, using defaults")
		e.doc = defaultDocument()
		return e
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		logrus.WithError(err).WithField("path", path).Warn("rules file is not valid JSON, using defaults")
		e.doc = defaultDocument()
		return e
	}
	e.doc = doc
	return e
}

// ShouldSync applies dest's required_fields and disallow_if against
// record.Data. A destination with no rules entry is always admitted.
func (e *Engine) ShouldSync(dest string, record types.Record) bool {
	e.mu.RLock()
	rule, ok := e.doc.Destinations[dest]
	e.mu.RUnlock()
	if !ok {
		return true
	}

	for _, field := range rule.RequiredFields {
		v, present := record.Data[field]
		if !present || isFalsy(v) {
			return false
		}
	}
	for field, want := range rule.DisallowIf {
		if got, present := record.Data[field]; present && got == want {
			return false
		}
	}
	return true
}

// Match applies the document's top-level filters against
// record.Data. A document with no filters always matches.
func (e *Engine) Match(record types.Record) bool {
	e.mu.RLock()
	filters := e.doc.Filters
	e.mu.RUnlock()

	for field, want := range filters {
		if got, present := record.Data[field]; !present || got != want {
			return false
		}
	}
	return true
}

// Transform builds a new record from the document's mappings: the
// output's Data has one entry per mapping whose source field is
// present on the input. Fields the input lacks are omitted, so the
// result may come back empty; callers surface that as a warning
// signal rather than treating it as an error.
func (e *Engine) Transform(record types.Record) types.Record {
	e.mu.RLock()
	mappings := e.doc.Mappings
	e.mu.RUnlock()

	out := record.Clone()
	out.Data = make(map[string]any, len(mappings))
	for from, to := range mappings {
		if v, ok := record.Data[from]; ok {
			out.Data[to] = v
		}
	}
	return out
}

// UpdateRules atomically swaps the in-memory document and persists it
// to e.path before returning.
func (e *Engine) UpdateRules(doc Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal rules document")
	}

	e.mu.Lock()
	e.doc = doc
	e.mu.Unlock()

	if err := os.WriteFile(e.path, data, 0o644); err != nil {
		return errors.Wrap(err, "persist rules document")
	}
	logrus.WithField("path", e.path).Info("rules updated and persisted")
	return nil
}

// Snapshot returns a copy of the currently active document.
func (e *Engine) Snapshot() Document {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.doc
}

func isFalsy(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case bool:
		return !x
	case float64:
		return x == 0
	default:
		return false
	}
}

// ErrNotAMapping describes a rules document that is not a JSON object.
// No function in this module returns it: Document.UnmarshalJSON reports
// a non-object document with the encoding/json error instead.
var ErrNotAMapping = fmt.Errorf("rules document must be a JSON object")
