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
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreflightRejectsZeroBatchSize(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	c := &Config{}
	c.Bind(flags)
	require.NoError(t, flags.Parse([]string{"--batch-size=0"}))

	assert.Error(t, c.Preflight())
}

func TestPreflightAcceptsDefaults(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	c := &Config{}
	c.Bind(flags)
	require.NoError(t, flags.Parse(nil))

	assert.NoError(t, c.Preflight())
}

func TestLoadTopologyParsesTypedEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "topology.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"inbound": {"type": "file_source", "path": "records.json"},
		"salesforce": {"type": "salesforce"}
	}`), 0o644))

	topo, err := LoadTopology(path)
	require.NoError(t, err)
	require.Contains(t, topo, "inbound")
	assert.Equal(t, TypeFileSource, topo["inbound"].Type)
	assert.Equal(t, "records.json", topo["inbound"].StringField("path"))
}

func TestLoadTopologyRejectsMissingType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "topology.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"inbound": {"path": "x"}}`), 0o644))

	_, err := LoadTopology(path)
	assert.Error(t, err)
}

func TestLoadTopologyRejectsUnreadableFile(t *testing.T) {
	_, err := LoadTopology(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestCredentialsSectionAndOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.ini")
	creds, err := LoadCredentials(path)
	require.NoError(t, err)

	require.NoError(t, creds.Override("salesforce", "client_id", "abc123"))
	section := creds.Section("salesforce")
	assert.Equal(t, "abc123", section["client_id"])

	reloaded, err := LoadCredentials(path)
	require.NoError(t, err)
	assert.Equal(t, "abc123", reloaded.Section("salesforce")["client_id"])
}

func TestCredentialsSectionMissingReturnsEmptyMap(t *testing.T) {
	creds, err := LoadCredentials(filepath.Join(t.TempDir(), "missing.ini"))
	require.NoError(t, err)
	assert.Empty(t, creds.Section("nope"))
}
