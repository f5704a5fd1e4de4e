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

package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pratapdesai/record-sync/internal/config"
	"github.com/pratapdesai/record-sync/internal/crm"
	"github.com/pratapdesai/record-sync/internal/poller"
	"github.com/pratapdesai/record-sync/internal/queue"
	"github.com/pratapdesai/record-sync/internal/ratelimit"
	"github.com/pratapdesai/record-sync/internal/rules"
	"github.com/pratapdesai/record-sync/internal/status"
	"github.com/pratapdesai/record-sync/internal/sync"
	"github.com/pratapdesai/record-sync/internal/types"
)

func newTestSurface(t *testing.T) *Surface {
	t.Helper()
	e := rules.New(filepath.Join(t.TempDir(), "rules.json"))
	s := status.New()
	q := queue.New(ratelimit.New(100, time.Minute))

	creds, err := config.LoadCredentials(filepath.Join(t.TempDir(), "credentials.ini"))
	require.NoError(t, err)

	salesforce, err := crm.Build("salesforce", map[string]string{
		"client_id": "x", "client_secret": "x", "auth_url": "https://example.com",
		"api_url": "https://example.com", "private_key": "x",
	})
	require.NoError(t, err)

	manager := sync.NewManager(map[string]types.CrmAdapter{"salesforce": salesforce}, q, e, s)
	return &Surface{
		Manager:     manager,
		Rules:       e,
		Status:      s,
		Pollers:     map[string]*poller.Poller{},
		Credentials: creds,
	}
}

func TestHandleSyncAcceptsValidRequest(t *testing.T) {
	surface := newTestSurface(t)
	require.NoError(t, surface.Rules.UpdateRules(rules.Document{
		Destinations: map[string]rules.DestinationRule{
			"salesforce": {RequiredFields: []string{"never_present"}},
		},
	}))
	mux := NewMux(surface)

	body := strings.NewReader(`{"operation":"create","record_id":"1","data":{"email":"a@b"},"crm":"salesforce"}`)
	req := httptest.NewRequest(http.MethodPost, "/sync", body)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, types.StatusSkippedByRule, surface.RecordStatus("1"))
}

func TestHandleRecordStatusReturnsUnknownForUnseenRecord(t *testing.T) {
	surface := newTestSurface(t)
	mux := NewMux(surface)

	req := httptest.NewRequest(http.MethodGet, "/status/never-seen", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, string(types.StatusUnknown), body["status"])
}

func TestHandleRulesGetAndPost(t *testing.T) {
	surface := newTestSurface(t)
	mux := NewMux(surface)

	postReq := httptest.NewRequest(http.MethodPost, "/rules", strings.NewReader(`{"filters":{"status":"active"}}`))
	postRec := httptest.NewRecorder()
	mux.ServeHTTP(postRec, postReq)
	require.Equal(t, http.StatusOK, postRec.Code)

	getReq := httptest.NewRequest(http.MethodGet, "/rules", nil)
	getRec := httptest.NewRecorder()
	mux.ServeHTTP(getRec, getReq)
	require.Equal(t, http.StatusOK, getRec.Code)
	assert.Contains(t, getRec.Body.String(), "active")
}

func TestHandleOverrideDestinationConfig(t *testing.T) {
	surface := newTestSurface(t)
	mux := NewMux(surface)

	body := strings.NewReader(`{"batch_size":"5","rate_limit_per_minute":"30"}`)
	req := httptest.NewRequest(http.MethodPut, "/config/salesforce", body)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "30", surface.Credentials.Section("salesforce")["rate_limit_per_minute"])
}

func TestHandleOverrideDestinationConfigRejectsBadBatchSize(t *testing.T) {
	surface := newTestSurface(t)
	mux := NewMux(surface)

	body := strings.NewReader(`{"batch_size":"not-a-number"}`)
	req := httptest.NewRequest(http.MethodPut, "/config/salesforce", body)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleListDestinations(t *testing.T) {
	surface := newTestSurface(t)
	mux := NewMux(surface)

	req := httptest.NewRequest(http.MethodGet, "/destinations", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "salesforce")
}
