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

package types

import "github.com/pkg/errors"

// Kind classifies an engine error without requiring callers to type-
// switch on concrete error values.
type Kind int

// The error kinds the engine recognizes.
const (
	// KindConfig is a missing section, unknown type, or missing
	// required schema key. Fatal at load time.
	KindConfig Kind = iota
	// KindAdmissionRejected covers rules rejection, an open circuit
	// breaker, or a tripped rate limit.
	KindAdmissionRejected
	// KindTransientIO covers adapter I/O failures and 5xx responses;
	// retried by RetryManager.
	KindTransientIO
	// KindPermanentIO covers 4xx responses (other than 429) and
	// malformed payloads; never retried.
	KindPermanentIO
	// KindUnsupportedOperation means a sink or source lacks a
	// requested capability.
	KindUnsupportedOperation
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindAdmissionRejected:
		return "admission_rejected"
	case KindTransientIO:
		return "transient_io"
	case KindPermanentIO:
		return "permanent_io"
	case KindUnsupportedOperation:
		return "unsupported_operation"
	default:
		return "unknown"
	}
}

// KindError pairs a Kind with an underlying cause so that callers can
// classify an error before deciding how status should be updated.
type KindError struct {
	Kind  Kind
	Cause error
}

func (e *KindError) Error() string {
	if e.Cause == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Cause.Error()
}

func (e *KindError) Unwrap() error { return e.Cause }

// NewKindError wraps cause with the given Kind, preserving a stack
// trace via pkg/errors when cause does not already carry one.
func NewKindError(kind Kind, cause error) *KindError {
	return &KindError{Kind: kind, Cause: errors.WithStack(cause)}
}

// ClassOf returns the Kind of err if it (or something it wraps) is a
// *KindError, and ok=false otherwise.
func ClassOf(err error) (kind Kind, ok bool) {
	var ke *KindError
	if errors.As(err, &ke) {
		return ke.Kind, true
	}
	return 0, false
}
