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

package breaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClosesOnSuccess(t *testing.T) {
	b := New(3, 2*time.Second)
	require.True(t, b.AllowRequest())
	b.RecordSuccess()
	assert.Equal(t, Closed, b.State())
}

func TestOpensOnConsecutiveFailures(t *testing.T) {
	b := New(2, 2*time.Second)
	b.RecordFailure()
	b.RecordFailure()
	assert.Equal(t, Open, b.State())
	assert.False(t, b.AllowRequest())
}

func TestHalfOpenProbeThenRecover(t *testing.T) {
	b := New(2, 10*time.Millisecond)
	b.RecordFailure()
	b.RecordFailure()
	require.Equal(t, Open, b.State())

	time.Sleep(15 * time.Millisecond)
	require.True(t, b.AllowRequest())
	assert.Equal(t, HalfOpen, b.State())

	b.RecordSuccess()
	assert.Equal(t, Closed, b.State())
}

func TestHalfOpenReopensOnFailure(t *testing.T) {
	b := New(2, 10*time.Millisecond)
	b.RecordFailure()
	b.RecordFailure()
	time.Sleep(15 * time.Millisecond)
	require.True(t, b.AllowRequest())

	b.RecordFailure()
	assert.Equal(t, Open, b.State())
}

func TestStaysClosedWithoutFailures(t *testing.T) {
	b := New(2, 2*time.Second)
	for i := 0; i < 5; i++ {
		b.RecordSuccess()
	}
	assert.Equal(t, Closed, b.State())
	assert.True(t, b.AllowRequest())
}

// threshold 2, recovery 1s.
func TestScenarioS2(t *testing.T) {
	b := New(2, time.Second)
	b.RecordFailure()
	b.RecordFailure()
	require.False(t, b.AllowRequest(), "third attempt must fail locally without contacting the remote")

	time.Sleep(1100 * time.Millisecond)
	require.True(t, b.AllowRequest())
}
