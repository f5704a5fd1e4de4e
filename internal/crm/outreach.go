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
	Register("outreach", NewOutreach)
}

const (
	outreachFailureThreshold = 5
	outreachRecoveryTimeout  = 60 * time.Second
)

// Outreach pushes records to an Outreach-shaped prospects endpoint.
type Outreach struct {
	config  map[string]string
	breaker *breaker.Breaker
	client  *http.Client
}

// NewOutreach constructs an Outreach adapter. It satisfies
// types.Factory.
func NewOutreach(config map[string]string) (types.CrmAdapter, error) {
	return &Outreach{
		config:  config,
		breaker: breaker.New(outreachFailureThreshold, outreachRecoveryTimeout),
		client:  &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// Identify returns the destination name this adapter registered
// under.
func (o *Outreach) Identify() string { return "outreach" }

// ConfigSchema lists the credential keys this adapter requires.
func (o *Outreach) ConfigSchema() map[string]string {
	return map[string]string{
		"client_id":     "OAuth client ID",
		"client_secret": "OAuth client secret",
		"token_url":     "Outreach token endpoint URL",
		"api_url":       "Outreach API base URL",
	}
}

// Transform renames record.Data into Outreach's prospect field names.
func (o *Outreach) Transform(record types.Record) types.Record {
	out := record.Clone()
	out.Data = map[string]any{
		"firstName": record.Data["first_name"],
		"lastName":  record.Data["last_name"],
		"emails": []map[string]any{
			{"type": "work", "value": record.Data["email"]},
		},
		"externalId": record.Data["account_id"],
	}
	if allow, _ := record.Data["allow_duplicate"].(bool); allow {
		out.Data["allowDuplicate"] = true
	}
	return out
}

// Push delivers one transformed record to the Outreach API.
func (o *Outreach) Push(ctx context.Context, record types.Record) error {
	if !o.breaker.AllowRequest() {
		metrics.BreakerRejectedTotal.WithLabelValues("outreach").Inc()
		return types.NewKindError(types.KindAdmissionRejected, errors.New("outreach circuit breaker is open"))
	}

	token := o.jwtToken()
	body, err := json.Marshal(record.Data)
	if err != nil {
		o.breaker.RecordFailure()
		return types.NewKindError(types.KindPermanentIO, errors.Wrap(err, "marshal outreach payload"))
	}

	url := o.config["api_url"] + "/api/v2/prospects"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		o.breaker.RecordFailure()
		return types.NewKindError(types.KindPermanentIO, errors.Wrap(err, "build outreach request"))
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		o.breaker.RecordFailure()
		metrics.BreakerTripsTotal.WithLabelValues("outreach").Inc()
		return types.NewKindError(types.KindTransientIO, errors.Wrap(err, "push to outreach"))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		o.breaker.RecordFailure()
		return types.NewKindError(types.KindTransientIO, fmt.Errorf("outreach returned %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		o.breaker.RecordFailure()
		return types.NewKindError(types.KindPermanentIO, fmt.Errorf("outreach returned %d", resp.StatusCode))
	}

	o.breaker.RecordSuccess()
	logrus.WithField("record_id", record.RecordID).Info("pushed record to outreach")
	return nil
}

// FetchRecentChanges calls the Outreach prospects list endpoint
// filtered by updatedAt, backing a CRM-pull poller.
func (o *Outreach) FetchRecentChanges(ctx context.Context, since time.Time) ([]types.Record, error) {
	if !o.breaker.AllowRequest() {
		metrics.BreakerRejectedTotal.WithLabelValues("outreach").Inc()
		return nil, types.NewKindError(types.KindAdmissionRejected, errors.New("outreach circuit breaker is open"))
	}

	url := fmt.Sprintf("%s/api/v2/prospects?filter%%5BupdatedAt%%5D%%5Bgt%%5D=%s",
		o.config["api_url"], since.UTC().Format(time.RFC3339))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		o.breaker.RecordFailure()
		return nil, types.NewKindError(types.KindPermanentIO, errors.Wrap(err, "build outreach query request"))
	}
	req.Header.Set("Authorization", "Bearer "+o.jwtToken())

	resp, err := o.client.Do(req)
	if err != nil {
		o.breaker.RecordFailure()
		return nil, types.NewKindError(types.KindTransientIO, errors.Wrap(err, "query outreach"))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		o.breaker.RecordFailure()
		return nil, types.NewKindError(types.KindTransientIO, fmt.Errorf("outreach returned %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		o.breaker.RecordFailure()
		return nil, types.NewKindError(types.KindPermanentIO, fmt.Errorf("outreach returned %d", resp.StatusCode))
	}

	var records []types.Record
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		o.breaker.RecordFailure()
		return nil, types.NewKindError(types.KindPermanentIO, errors.Wrap(err, "decode outreach query response"))
	}

	o.breaker.RecordSuccess()
	logrus.WithField("since", since).WithField("count", len(records)).Info("fetched outreach changes")
	return records, nil
}

func (o *Outreach) jwtToken() string {
	return "outreach-jwt-" + o.config["client_id"]
}
