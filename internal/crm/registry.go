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

// Package crm holds the CRM adapter registry and its concrete
// adapters.
package crm

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pratapdesai/record-sync/internal/types"
)

// Registry maps a lowercased adapter name to its factory. Adapters
// register themselves with Register at process start via an init
// function, mirroring the teacher's package-level decorator idiom.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]types.Factory
}

// global is the process-wide registry adapters register into from
// their init functions.
var global = NewRegistry()

// NewRegistry returns an empty Registry. Most callers use the
// package-level Register/Build against the process-wide registry
// instead of constructing their own.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]types.Factory)}
}

// Register adds factory under the lowercased name. It panics on a
// duplicate registration, since that can only happen from a
// programming error in an init function.
func (r *Registry) Register(name string, factory types.Factory) {
	name = strings.ToLower(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		panic(fmt.Sprintf("crm adapter %q already registered", name))
	}
	r.factories[name] = factory
}

// Build looks up name's factory, validates that config carries every
// key the adapter's schema requires, and constructs the adapter.
func (r *Registry) Build(name string, config map[string]string) (types.CrmAdapter, error) {
	name = strings.ToLower(name)
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported destination %q", name)
	}

	adapter, err := factory(config)
	if err != nil {
		return nil, err
	}
	for key := range adapter.ConfigSchema() {
		if _, present := config[key]; !present {
			return nil, fmt.Errorf("crm %q: missing required config key %q", name, key)
		}
	}
	return adapter, nil
}

// Schema returns name's config schema without requiring a populated
// config, by constructing a throwaway instance from its factory.
func (r *Registry) Schema(name string) (map[string]string, error) {
	name = strings.ToLower(name)
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported destination %q", name)
	}
	adapter, err := factory(map[string]string{})
	if err != nil {
		return nil, err
	}
	return adapter.ConfigSchema(), nil
}

// Names returns every registered adapter name.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	return names
}

// Register adds factory to the process-wide registry under name.
func Register(name string, factory types.Factory) { global.Register(name, factory) }

// Build constructs a registered adapter from the process-wide
// registry.
func Build(name string, config map[string]string) (types.CrmAdapter, error) {
	return global.Build(name, config)
}

// Names returns every adapter name registered with the process-wide
// registry.
func Names() []string { return global.Names() }

// Schema returns name's config schema from the process-wide registry.
func Schema(name string) (map[string]string, error) { return global.Schema(name) }
