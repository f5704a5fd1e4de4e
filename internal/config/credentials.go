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
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/ini.v1"

	"github.com/pratapdesai/record-sync/internal/types"
)

// Credentials holds the key-value credential sections, one per source
// or destination, keyed by a human name, the same shape as Python's
// configparser-backed ConfigManager.
type Credentials struct {
	path string

	mu   sync.RWMutex
	file *ini.File
}

// LoadCredentials reads the credentials file at path. A missing file
// is not an error: it starts from an empty document, matching the
// tolerant startup behavior of the original ConfigManager.
func LoadCredentials(path string) (*Credentials, error) {
	file, err := ini.LooseLoad(path)
	if err != nil {
		return nil, types.NewKindError(types.KindConfig, errors.Wrapf(err, "parse credentials file %s", path))
	}
	return &Credentials{path: path, file: file}, nil
}

// Section returns every key/value pair under name as a plain map,
// suitable for passing to crm.Build.
func (c *Credentials) Section(name string) map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]string)
	if !c.file.HasSection(name) {
		return out
	}
	for _, key := range c.file.Section(name).Keys() {
		out[key.Name()] = key.Value()
	}
	return out
}

// Override sets section/key to value and persists the document to
// disk before returning, matching ConfigManager.override.
func (c *Credentials) Override(section, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.file.Section(section).Key(key).SetValue(value)
	if err := c.file.SaveTo(c.path); err != nil {
		return types.NewKindError(types.KindConfig, errors.Wrap(err, "persist credentials file"))
	}
	return nil
}
