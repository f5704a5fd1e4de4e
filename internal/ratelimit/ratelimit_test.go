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

package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// max=3, window=10s.
func TestScenarioS3(t *testing.T) {
	l := New(3, 10*time.Second)

	assert.True(t, l.Allow("sf"))
	assert.True(t, l.Allow("sf"))
	assert.True(t, l.Allow("sf"))
	assert.False(t, l.Allow("sf"))
}

func TestWindowExpires(t *testing.T) {
	l := New(1, 20*time.Millisecond)

	assert.True(t, l.Allow("sf"))
	assert.False(t, l.Allow("sf"))

	time.Sleep(25 * time.Millisecond)
	assert.True(t, l.Allow("sf"))
}

func TestKeysAreIndependent(t *testing.T) {
	l := New(1, time.Second)

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("b"))
	assert.False(t, l.Allow("a"))
}
