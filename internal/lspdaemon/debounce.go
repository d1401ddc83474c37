// Copyright Cairo-M Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0
package lspdaemon

import (
	"context"
	"sync"
	"time"

	"go.lsp.dev/protocol"
	"go.uber.org/atomic"
)

// debouncer coalesces didChange bursts for a file into a single diagnostic
// request. Each URI gets a generation counter rather than a stored
// context.CancelFunc: scheduling or cancelling bumps the counter, and a
// pending timer only runs fn if its captured generation is still current by
// the time it fires. This is cheaper than a cancel-by-handle per request
// (no per-request goroutine or context needed) while giving the same
// guarantee that scheduling a new callback for a URI cancels any pending
// one for that same URI.
type debouncer struct {
	mu    sync.Mutex
	delay time.Duration
	gens  map[protocol.DocumentURI]*atomic.Int64
}

func newDebouncer(delay time.Duration) *debouncer {
	return &debouncer{delay: delay, gens: make(map[protocol.DocumentURI]*atomic.Int64)}
}

func (d *debouncer) generation(uri protocol.DocumentURI) *atomic.Int64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	g, ok := d.gens[uri]
	if !ok {
		g = atomic.NewInt64(0)
		d.gens[uri] = g
	}

	return g
}

// schedule arranges for fn to run after the debounce delay, unless another
// schedule or cancel for the same uri happens first.
func (d *debouncer) schedule(uri protocol.DocumentURI, fn func(ctx context.Context)) {
	g := d.generation(uri)
	mine := g.Inc()

	time.AfterFunc(d.delay, func() {
		if g.Load() != mine {
			return
		}

		fn(context.Background())
	})
}

// cancel aborts uri's pending request, if any, without scheduling a new one.
// Used on didClose.
func (d *debouncer) cancel(uri protocol.DocumentURI) {
	d.generation(uri).Inc()
}

// cancelAll invalidates every pending request, used when the connection is
// shutting down.
func (d *debouncer) cancelAll() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, g := range d.gens {
		g.Inc()
	}
}
