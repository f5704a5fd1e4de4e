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

// Package lifecycle provides the cooperative task-group primitive that
// pollers and the HTTP server's shutdown run under: a context cancelable on
// shutdown, paired with a WaitGroup that lets Stop block for
// in-flight iterations to wind down.
package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Group owns a context that is canceled on Stop, and tracks every
// goroutine started with Go so that Stop can wait for them (up to a
// deadline) before returning.
type Group struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// WithContext returns a Group deriving its cancellation from parent.
func WithContext(parent context.Context) *Group {
	ctx, cancel := context.WithCancel(parent)
	return &Group{ctx: ctx, cancel: cancel}
}

// Context returns the group's context. It is canceled when Stop is
// called or the parent context passed to WithContext is canceled.
func (g *Group) Context() context.Context {
	return g.ctx
}

// Go starts fn in a new goroutine, tracked so Stop can wait for it. A
// non-nil return value is logged unless the group's context has already
// been canceled; Go never propagates the error to a caller, matching a
// background loop's fire-and-forget contract.
func (g *Group) Go(fn func(ctx context.Context) error) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		if err := fn(g.ctx); err != nil && g.ctx.Err() == nil {
			logrus.WithError(err).Warn("lifecycle task exited with error")
		}
	}()
}

// Stop cancels the group's context, then waits up to timeout for every
// goroutine started with Go to return. It reports whether every
// goroutine returned before the deadline.
func (g *Group) Stop(timeout time.Duration) bool {
	g.cancel()

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		logrus.Warn("lifecycle group stop timed out waiting for tasks")
		return false
	}
}
