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

// Package lspdaemon hosts the compiler behind a long-lived jsonrpc2
// connection. There is no tokenizer/parser in this repository (see
// pkg/ast's package doc and internal/astio), so an open document's text is
// the same JSON envelope internal/astio reads and writes for the CLI: a
// source string paired with its already-parsed tree. A real front end
// would keep this daemon's document store in sync the same way it feeds
// internal/driver.
package lspdaemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"

	"github.com/cairo-m/cairom/pkg/ast"
	"github.com/cairo-m/cairom/pkg/semantic"
	"github.com/cairo-m/cairom/pkg/util/source"
)

// Config is the subset of `initializationOptions` this daemon understands.
type Config struct {
	// DebounceMS is how long to wait after the last didChange before
	// re-running semantic analysis. Zero uses the 300ms default.
	DebounceMS int
}

func (c Config) debounceDelay() time.Duration {
	if c.DebounceMS <= 0 {
		return 300 * time.Millisecond
	}

	return time.Duration(c.DebounceMS) * time.Millisecond
}

const gcInterval = 5 * time.Minute

var errPoisoned = errors.New("lspdaemon: analysis state poisoned by a prior panic, restart the daemon")

// fileState is everything the daemon keeps per open document.
type fileState struct {
	open    bool
	version int32
	text    *source.File
	tree    *ast.File
	index   *semantic.Index
	diags   []semantic.Diagnostic
}

// analysisDB is the single piece of shared, mutex-guarded state a Daemon
// mutates: one fileState per open document, keyed by URI.
type analysisDB struct {
	files map[protocol.DocumentURI]*fileState
}

func newAnalysisDB() *analysisDB {
	return &analysisDB{files: make(map[protocol.DocumentURI]*fileState)}
}

// compact drops cached analysis for documents that are no longer open,
// bounding memory growth across a long-lived editing session.
func (db *analysisDB) compact() (dropped int) {
	for uri, fs := range db.files {
		if !fs.open {
			delete(db.files, uri)
			dropped++
		}
	}

	return dropped
}

// Daemon is the LSP server: one mutex-guarded analysisDB, a blocking-offload
// pool so that mutex is never held across real compiler work, and a
// per-file debouncer so a burst of didChange events becomes one diagnostic
// pass.
type Daemon struct {
	mu      sync.Mutex
	broken  bool
	cfg     Config
	db      *analysisDB
	deb     *debouncer
	pool    *blockingPool
	conn    jsonrpc2.Conn
	workers sync.WaitGroup

	root      string
	rootOnce  sync.Once
	rootReady chan struct{}
}

// NewDaemon constructs a Daemon from initializationOptions. Call Run to
// start serving a connection.
func NewDaemon(cfg Config) *Daemon {
	return &Daemon{
		cfg:       cfg,
		db:        newAnalysisDB(),
		deb:       newDebouncer(cfg.debounceDelay()),
		pool:      newBlockingPool(4),
		rootReady: make(chan struct{}),
	}
}

// setRoot records the workspace root reported by `initialize` and wakes
// watchProjectLoop, which otherwise blocks until this is known. Safe to call
// at most once per daemon; later calls are no-ops.
func (d *Daemon) setRoot(root string) {
	d.rootOnce.Do(func() {
		d.root = root
		close(d.rootReady)
	})
}

// withState runs fn while holding the daemon's mutex, recovering a panic by
// marking the state broken instead of crashing the process — Go has no
// native mutex poisoning, so this is panic/recover standing in for one.
// Once broken, every subsequent withState call fails fast instead of
// operating on possibly-torn state.
func (d *Daemon) withState(fn func() error) (err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.broken {
		return errPoisoned
	}

	defer func() {
		if r := recover(); r != nil {
			d.broken = true
			err = fmt.Errorf("lspdaemon: internal panic, analysis state discarded: %v", r)
		}
	}()

	return fn()
}

// Run serves one client connection over rwc until it disconnects or ctx is
// cancelled. It starts the background GC worker and the project-discovery
// watcher alongside the request-handling goroutine jsonrpc2.Conn.Go spawns.
func (d *Daemon) Run(ctx context.Context, rwc io.ReadWriteCloser) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream := jsonrpc2.NewStream(rwc)
	conn := jsonrpc2.NewConn(stream, jsonrpc2.WithLogger(zapLogger()))
	d.conn = conn

	conn.Go(ctx, d.handle)

	d.workers.Add(2)

	go func() {
		defer d.workers.Done()
		d.gcLoop(ctx)
	}()

	go func() {
		defer d.workers.Done()
		d.watchProjectLoop(ctx)
	}()

	<-conn.Done()
	cancel()

	d.deb.cancelAll()
	d.pool.Close()
	d.workers.Wait()

	return conn.Err()
}

func (d *Daemon) gcLoop(ctx context.Context) {
	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := d.withState(func() error {
				dropped := d.db.compact()
				if dropped > 0 {
					log.WithField("dropped", dropped).Debug("lspdaemon: compacted analysis database")
				}

				return nil
			})
			if err != nil {
				log.WithError(err).Error("lspdaemon: background compaction failed")
			}
		}
	}
}

// watchProjectLoop waits for `initialize` to report a workspace root, then
// watches it for filesystem changes until ctx is cancelled. It only logs
// the changes it sees; no model of source files outside the open editor
// buffers is built from them.
func (d *Daemon) watchProjectLoop(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-d.rootReady:
	}

	if d.root == "" {
		return
	}

	events, stop := watchDir(ctx, d.root)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return
		case path, ok := <-events:
			if !ok {
				return
			}

			log.WithField("path", path).Debug("lspdaemon: project file changed")
		}
	}
}
