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
	"testing"
	"time"

	"go.lsp.dev/protocol"
)

func Test_Debouncer_LastScheduleWins(t *testing.T) {
	d := newDebouncer(20 * time.Millisecond)
	uri := protocol.DocumentURI("file:///a.cm")

	fired := make(chan int, 4)

	d.schedule(uri, func(context.Context) { fired <- 1 })
	d.schedule(uri, func(context.Context) { fired <- 2 })
	d.schedule(uri, func(context.Context) { fired <- 3 })

	select {
	case got := <-fired:
		if got != 3 {
			t.Fatalf("fired = %d, want 3 (only the last schedule before the delay elapses)", got)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timed out waiting for debounced callback")
	}

	select {
	case got := <-fired:
		t.Fatalf("unexpected second callback fired: %d", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func Test_Debouncer_CancelPreventsFire(t *testing.T) {
	d := newDebouncer(20 * time.Millisecond)
	uri := protocol.DocumentURI("file:///a.cm")

	fired := make(chan struct{}, 1)
	d.schedule(uri, func(context.Context) { fired <- struct{}{} })
	d.cancel(uri)

	select {
	case <-fired:
		t.Fatal("callback fired after cancel")
	case <-time.After(60 * time.Millisecond):
	}
}

func Test_Debouncer_IndependentURIs(t *testing.T) {
	d := newDebouncer(20 * time.Millisecond)
	a := protocol.DocumentURI("file:///a.cm")
	b := protocol.DocumentURI("file:///b.cm")

	fired := make(chan protocol.DocumentURI, 2)
	d.schedule(a, func(context.Context) { fired <- a })
	d.schedule(b, func(context.Context) { fired <- b })

	seen := map[protocol.DocumentURI]bool{}

	for i := 0; i < 2; i++ {
		select {
		case uri := <-fired:
			seen[uri] = true
		case <-time.After(200 * time.Millisecond):
			t.Fatal("timed out waiting for both debounced callbacks")
		}
	}

	if !seen[a] || !seen[b] {
		t.Fatalf("seen = %v, want both %q and %q", seen, a, b)
	}
}

func Test_Debouncer_CancelAll(t *testing.T) {
	d := newDebouncer(20 * time.Millisecond)
	a := protocol.DocumentURI("file:///a.cm")
	b := protocol.DocumentURI("file:///b.cm")

	fired := make(chan protocol.DocumentURI, 2)
	d.schedule(a, func(context.Context) { fired <- a })
	d.schedule(b, func(context.Context) { fired <- b })
	d.cancelAll()

	select {
	case uri := <-fired:
		t.Fatalf("unexpected callback fired for %q after cancelAll", uri)
	case <-time.After(60 * time.Millisecond):
	}
}
