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

package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/pratapdesai/record-sync/internal/breaker"
	"github.com/pratapdesai/record-sync/internal/metrics"
	"github.com/pratapdesai/record-sync/internal/types"
)

func init() {
	Register("salesforce", NewSalesforce)
}

const (
	salesforceFailureThreshold = 5
	salesforceRecoveryTimeout  = 60 * time.Second
)

// Salesforce pushes records to a Salesforce-shaped REST endpoint,
// sending a bearer token built from the configured client_id.
type Salesforce struct {
	config  map[string]string
	breaker *breaker.Breaker
	client  *http.Client
}

// NewSalesforce constructs a Salesforce adapter. It satisfies
// types.Factory.
func NewSalesforce(config map[string]string) (types.CrmAdapter, error) {
	return &Salesforce{
		config:  config,
		breaker: breaker.New(salesforceFailureThreshold, salesforceRecoveryTimeout),
		client:  &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// Identify returns the destination name this adapter registered
// under.
func (s *Salesforce) Identify() string { return "salesforce" }

// ConfigSchema lists the credential keys this adapter requires.
func (s *Salesforce) ConfigSchema() map[string]string {
	return map[string]string{
		"client_id":     "OAuth client ID",
		"client_secret": "OAuth client secret",
		"auth_url":      "Salesforce token endpoint URL",
		"api_url":       "Salesforce API base URL",
		"private_key":   "Private key used for JWT",
	}
}

// Transform renames record.Data into Salesforce's Account field
// names.
func (s *Salesforce) Transform(record types.Record) types.Record {
	out := record.Clone()
	out.Data = map[string]any{
		"FirstName": record.Data["first_name"],
		"LastName":  record.Data["last_name"],
		"Email":     record.Data["email"],
		"AccountId": record.Data["account_id"],
	}
	return out
}

// Push delivers one transformed record to the Salesforce API,
// refusing locally without contacting the remote when the breaker is
// open.
func (s *Salesforce) Push(ctx context.Context, record types.Record) error {
	if !s.breaker.AllowRequest() {
		metrics.BreakerRejectedTotal.WithLabelValues("salesforce").Inc()
		return types.NewKindError(types.KindAdmissionRejected, errors.New("salesforce circuit breaker is open"))
	}

	token := s.jwtToken()
	body, err := json.Marshal(record.Data)
	if err != nil {
		s.breaker.RecordFailure()
		return types.NewKindError(types.KindPermanentIO, errors.Wrap(err, "marshal salesforce payload"))
	}

	url := s.config["api_url"] + "/sobjects/Account"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		s.breaker.RecordFailure()
		return types.NewKindError(types.KindPermanentIO, errors.Wrap(err, "build salesforce request"))
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.breaker.RecordFailure()
		metrics.BreakerTripsTotal.WithLabelValues("salesforce").Inc()
		return types.NewKindError(types.KindTransientIO, errors.Wrap(err, "push to salesforce"))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		s.breaker.RecordFailure()
		return types.NewKindError(types.KindTransientIO, fmt.Errorf("salesforce returned %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		s.breaker.RecordFailure()
		return types.NewKindError(types.KindPermanentIO, fmt.Errorf("salesforce returned %d", resp.StatusCode))
	}

	s.breaker.RecordSuccess()
	logrus.WithField("record_id", record.RecordID).Info("pushed record to salesforce")
	return nil
}

// FetchRecentChanges issues a SOQL-style query against api_url for
// records modified since the given watermark, backing a CRM-pull
// poller.
func (s *Salesforce) FetchRecentChanges(ctx context.Context, since time.Time) ([]types.Record, error) {
	if !s.breaker.AllowRequest() {
		metrics.BreakerRejectedTotal.WithLabelValues("salesforce").Inc()
		return nil, types.NewKindError(types.KindAdmissionRejected, errors.New("salesforce circuit breaker is open"))
	}

	url := fmt.Sprintf("%s/query?q=SELECT+FIELDS(ALL)+FROM+Account+WHERE+LastModifiedDate+%%3E+%s",
		s.config["api_url"], since.UTC().Format(time.RFC3339))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		s.breaker.RecordFailure()
		return nil, types.NewKindError(types.KindPermanentIO, errors.Wrap(err, "build salesforce query request"))
	}
	req.Header.Set("Authorization", "Bearer "+s.jwtToken())

	resp, err := s.client.Do(req)
	if err != nil {
		s.breaker.RecordFailure()
		return nil, types.NewKindError(types.KindTransientIO, errors.Wrap(err, "query salesforce"))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		s.breaker.RecordFailure()
		return nil, types.NewKindError(types.KindTransientIO, fmt.Errorf("salesforce returned %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		s.breaker.RecordFailure()
		return nil, types.NewKindError(types.KindPermanentIO, fmt.Errorf("salesforce returned %d", resp.StatusCode))
	}

	var records []types.Record
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		s.breaker.RecordFailure()
		return nil, types.NewKindError(types.KindPermanentIO, errors.Wrap(err, "decode salesforce query response"))
	}

	s.breaker.RecordSuccess()
	logrus.WithField("since", since).WithField("count", len(records)).Info("fetched salesforce changes")
	return records, nil
}

func (s *Salesforce) jwtToken() string {
	// The token is a fixed string derived from client_id; it is not
	// signed with private_key. The breaker and retry paths around Push
	// do not depend on the token's contents.
	return "salesforce-jwt-" + s.config["client_id"]
}
