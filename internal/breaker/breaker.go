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

// Package breaker implements a per-endpoint circuit breaker: a small
// three-state FSM that isolates callers from a consistently failing
// remote system.
package breaker

import (
	"sync"
	"time"
)

// State is one of the three states a Breaker can be in.
type State int

// The three states of the FSM.
const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "CLOSED"
	case Open:
		return "OPEN"
	case HalfOpen:
		return "HALF-OPEN"
	default:
		return "UNKNOWN"
	}
}

// A Breaker protects a single remote endpoint. State transitions are
// evaluated lazily on AllowRequest; no background timer is used.
type Breaker struct {
	failureThreshold int
	recoveryTimeout  time.Duration

	mu              sync.Mutex
	state           State
	failureCount    int
	lastFailureTime time.Time
}

// New returns a Breaker that opens after failureThreshold consecutive
// failures and probes again recoveryTimeout after the last failure.
func New(failureThreshold int, recoveryTimeout time.Duration) *Breaker {
	return &Breaker{
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
		state:            Closed,
	}
}

// AllowRequest reports whether a caller may proceed. In CLOSED it
// always returns true. In OPEN it returns true exactly once the
// recovery timeout has elapsed since the last failure, transitioning
// to HALF-OPEN as a side effect (this is the probing request). In
// HALF-OPEN it returns true for every caller until a success or a
// failure is recorded.
func (b *Breaker) AllowRequest() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		if time.Since(b.lastFailureTime) > b.recoveryTimeout {
			b.state = HalfOpen
			return true
		}
		return false
	default:
		return true
	}
}

// RecordSuccess resets the failure count to zero and, if the breaker
// was OPEN or HALF-OPEN, closes it.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == Open || b.state == HalfOpen {
		b.state = Closed
	}
	b.failureCount = 0
	b.lastFailureTime = time.Time{}
}

// RecordFailure increments the consecutive failure count. If the
// count reaches the threshold (from any state), the breaker opens and
// re-stamps its last-failure time.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount++
	if b.failureCount >= b.failureThreshold {
		b.state = Open
		b.lastFailureTime = time.Now()
	}
}

// State returns the breaker's current state without evaluating a
// lazy transition; intended for diagnostics and tests.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
