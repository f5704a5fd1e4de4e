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

// Package config holds the process's flag-bound configuration and its
// topology/credentials file loaders.
package config

import (
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

// Config is the user-visible configuration for running recordsyncd.
type Config struct {
	BindAddr       string
	TopologyFile   string
	CredentialFile string
	RulesFile      string

	PollInterval    time.Duration
	CRMPollInterval time.Duration
	BatchSize       int
	RateLimitPerMin int
}

// Bind registers every flag this Config understands.
func (c *Config) Bind(flags *pflag.FlagSet) {
	flags.StringVar(&c.BindAddr, "bind-addr", ":8080", "the network address the command surface listens on")
	flags.StringVar(&c.TopologyFile, "topology", "topology.json", "path to the sync topology file")
	flags.StringVar(&c.CredentialFile, "credentials", "credentials.ini", "path to the destination credentials file")
	flags.StringVar(&c.RulesFile, "rules", "rules.json", "path to the rules document")
	flags.DurationVar(&c.PollInterval, "poll-interval", 5*time.Second, "default interval for file/embedded-sql pollers")
	flags.DurationVar(&c.CRMPollInterval, "crm-poll-interval", 300*time.Second, "default interval for CRM-pull pollers")
	flags.IntVar(&c.BatchSize, "batch-size", 20, "maximum records drained per flush")
	flags.IntVar(&c.RateLimitPerMin, "rate-limit-per-minute", 60, "maximum admitted records per destination per minute")
}

// Preflight validates the configuration after flags have been parsed.
func (c *Config) Preflight() error {
	if c.TopologyFile == "" {
		return errors.New("topology file path unset")
	}
	if c.CredentialFile == "" {
		return errors.New("credentials file path unset")
	}
	if c.RulesFile == "" {
		return errors.New("rules file path unset")
	}
	if c.BatchSize <= 0 {
		return errors.New("batch-size must be positive")
	}
	if c.RateLimitPerMin <= 0 {
		return errors.New("rate-limit-per-minute must be positive")
	}
	if c.PollInterval <= 0 {
		return errors.New("poll-interval must be positive")
	}
	if c.CRMPollInterval <= 0 {
		return errors.New("crm-poll-interval must be positive")
	}
	return nil
}
