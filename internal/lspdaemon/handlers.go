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
	"encoding/json"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"

	"github.com/cairo-m/cairom/internal/astio"
	"github.com/cairo-m/cairom/pkg/semantic"
)

// noImportResolver is used for the single-document analysis a didOpen /
// didChange handler can afford to do synchronously-ish (offloaded to the
// blocking pool, but without reaching across the whole open-document set).
// A `use` of another module simply reports "not found" rather than being
// resolved, same as handing the compiler one file with no project context.
type noImportResolver struct{}

func (noImportResolver) ResolveModule([]string) (*semantic.Index, bool) { return nil, false }

// handle is the single jsonrpc2.Handler this daemon installs; it is a thin
// dispatcher onto one method per named LSP operation; handlers stay thin
// translators onto the synchronous analysis core, with no protocol logic
// of their own.
func (d *Daemon) handle(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	switch req.Method() {
	case "initialize":
		return d.onInitialize(ctx, reply, req)
	case "initialized":
		return reply(ctx, nil, nil)
	case "shutdown":
		return reply(ctx, nil, nil)
	case "exit":
		return d.conn.Close()
	case "textDocument/didOpen":
		return d.onDidOpen(ctx, reply, req)
	case "textDocument/didChange":
		return d.onDidChange(ctx, reply, req)
	case "textDocument/didClose":
		return d.onDidClose(ctx, reply, req)
	case "textDocument/definition":
		return d.onDefinition(ctx, reply, req)
	case "textDocument/hover":
		return d.onHover(ctx, reply, req)
	case "textDocument/completion":
		return d.onCompletion(ctx, reply, req)
	default:
		return reply(ctx, nil, fmt.Errorf("lspdaemon: unhandled method %q", req.Method()))
	}
}

func (d *Daemon) onInitialize(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.InitializeParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return reply(ctx, nil, err)
	}

	// initializationOptions is only read for logging here: the debounce delay
	// is fixed for the daemon's lifetime from the --debounce-ms flag (see
	// NewDaemon), so there is no live debouncer to swap out mid-connection
	// without racing onDidChange's unsynchronized reads of d.deb.
	var raw struct {
		InitializationOptions struct {
			DebounceMS int `json:"debounce_ms"`
		} `json:"initializationOptions"`
	}

	if err := json.Unmarshal(req.Params(), &raw); err == nil && raw.InitializationOptions.DebounceMS > 0 {
		log.WithField("debounce_ms", raw.InitializationOptions.DebounceMS).
			Debug("lspdaemon: ignoring client-requested debounce override, using daemon configuration")
	}

	d.setRoot(string(params.RootURI))

	result := protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync:   protocol.TextDocumentSyncKindFull,
			DefinitionProvider: true,
			HoverProvider:      true,
			CompletionProvider: &protocol.CompletionOptions{},
		},
	}

	return reply(ctx, result, nil)
}

func (d *Daemon) onDidOpen(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.DidOpenTextDocumentParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return reply(ctx, nil, err)
	}

	uri := params.TextDocument.URI
	text := params.TextDocument.Text
	version := params.TextDocument.Version

	d.analyzeAsync(ctx, uri, text, version)

	return reply(ctx, nil, nil)
}

func (d *Daemon) onDidChange(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.DidChangeTextDocumentParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return reply(ctx, nil, err)
	}

	uri := params.TextDocument.URI
	version := params.TextDocument.Version

	if len(params.ContentChanges) == 0 {
		return reply(ctx, nil, nil)
	}

	// Full-document sync only (protocol.TextDocumentSyncKindFull above), so
	// the last change carries the complete new text.
	text := params.ContentChanges[len(params.ContentChanges)-1].Text

	d.deb.schedule(uri, func(debCtx context.Context) {
		d.analyze(debCtx, uri, text, version)
	})

	return reply(ctx, nil, nil)
}

func (d *Daemon) onDidClose(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.DidCloseTextDocumentParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return reply(ctx, nil, err)
	}

	uri := params.TextDocument.URI
	d.deb.cancel(uri)

	_ = d.withState(func() error {
		if fs, ok := d.db.files[uri]; ok {
			fs.open = false
		}

		return nil
	})

	return reply(ctx, nil, nil)
}

// analyzeAsync offloads analyze to the blocking pool so the jsonrpc2 read
// loop that called us is free to keep reading frames.
func (d *Daemon) analyzeAsync(ctx context.Context, uri protocol.DocumentURI, text string, version int32) {
	go func() {
		<-d.pool.Submit(ctx, func() error {
			d.analyze(ctx, uri, text, version)
			return nil
		})
	}()
}

// analyze decodes uri's document text as an astio.Unit, rebuilds its
// semantic index, stores the result and publishes diagnostics. Runs on the
// blocking pool; all analysisDB mutation happens inside withState so a
// panic here poisons the daemon instead of corrupting shared state.
func (d *Daemon) analyze(ctx context.Context, uri protocol.DocumentURI, text string, version int32) {
	select {
	case <-ctx.Done():
		return
	default:
	}

	unit, err := astio.DecodeUnit(strings.NewReader(text))
	if err != nil {
		d.publishDiagnostics(uri, version, nil)
		log.WithError(err).WithField("uri", uri).Debug("lspdaemon: malformed document, skipping analysis")

		return
	}

	idx, diags := semantic.BuildIndex(unit.Text, unit.Tree, noImportResolver{})
	diags = append(diags, semantic.DetectCyclicImports([]*semantic.Index{idx})...)

	err = d.withState(func() error {
		d.db.files[uri] = &fileState{
			open:    true,
			version: version,
			text:    unit.Text,
			tree:    unit.Tree,
			index:   idx,
			diags:   diags,
		}

		return nil
	})
	if err != nil {
		log.WithError(err).Error("lspdaemon: storing analysis result failed")

		return
	}

	d.publishDiagnostics(uri, version, diags)
}

func (d *Daemon) publishDiagnostics(uri protocol.DocumentURI, version int32, diags []semantic.Diagnostic) {
	fs := d.lookup(uri)

	out := make([]protocol.Diagnostic, 0, len(diags))

	for _, diag := range diags {
		sev := protocol.DiagnosticSeverityError
		if diag.Severity() == semantic.SeverityWarning {
			sev = protocol.DiagnosticSeverityWarning
		}

		rng := protocol.Range{}
		if fs != nil {
			rng = spanToRange(fs.text, diag.Span)
		}

		out = append(out, protocol.Diagnostic{
			Range:    rng,
			Severity: sev,
			Source:   "cairom",
			Message:  diag.Message,
		})
	}

	_ = d.conn.Notify(context.Background(), "textDocument/publishDiagnostics", protocol.PublishDiagnosticsParams{
		URI:         uri,
		Version:     uint32(version),
		Diagnostics: out,
	})
}

func (d *Daemon) lookup(uri protocol.DocumentURI) *fileState {
	var fs *fileState

	_ = d.withState(func() error {
		fs = d.db.files[uri]
		return nil
	})

	return fs
}

func (d *Daemon) onDefinition(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.DefinitionParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return reply(ctx, nil, err)
	}

	fs := d.lookup(params.TextDocument.URI)
	if fs == nil || fs.index == nil {
		return reply(ctx, nil, nil)
	}

	offset := offsetForPosition(fs.text, params.Position)

	exprID, ok := fs.index.ExpressionIDAtOffset(offset)
	if !ok {
		return reply(ctx, nil, nil)
	}

	_, def, ok := fs.index.DefinitionForIdentifierExpr(exprID)
	if !ok {
		return reply(ctx, nil, nil)
	}

	loc := protocol.Location{
		URI:   params.TextDocument.URI,
		Range: spanToRange(fs.text, def.NameSpan),
	}

	return reply(ctx, []protocol.Location{loc}, nil)
}

func (d *Daemon) onHover(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.HoverParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return reply(ctx, nil, err)
	}

	fs := d.lookup(params.TextDocument.URI)
	if fs == nil || fs.index == nil {
		return reply(ctx, nil, nil)
	}

	offset := offsetForPosition(fs.text, params.Position)

	exprID, ok := fs.index.ExpressionIDAtOffset(offset)
	if !ok {
		return reply(ctx, nil, nil)
	}

	_, def, ok := fs.index.DefinitionForIdentifierExpr(exprID)
	if !ok {
		return reply(ctx, nil, nil)
	}

	hover := protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.PlainText,
			Value: fmt.Sprintf("%s: %T", def.Name, def.Kind),
		},
		Range: rangePtr(spanToRange(fs.text, def.FullSpan)),
	}

	return reply(ctx, hover, nil)
}

func (d *Daemon) onCompletion(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.CompletionParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return reply(ctx, nil, err)
	}

	fs := d.lookup(params.TextDocument.URI)
	if fs == nil || fs.index == nil {
		return reply(ctx, protocol.CompletionList{}, nil)
	}

	offset := offsetForPosition(fs.text, params.Position)
	span := sourceSpanAt(offset)
	scope := fs.index.ScopeForSpan(span)

	var items []protocol.CompletionItem

	// Walk from the innermost enclosing scope out to the module root,
	// offering every name visible at the cursor.
	for {
		for _, defID := range fs.index.DefinitionsInScope(scope) {
			def := fs.index.Definition(defID)
			items = append(items, protocol.CompletionItem{
				Label:  def.Name,
				Detail: fmt.Sprintf("%T", def.Kind),
			})
		}

		parent := fs.index.Scope(scope).Parent
		if parent.IsEmpty() {
			break
		}

		scope = parent.Unwrap()
	}

	return reply(ctx, protocol.CompletionList{Items: items}, nil)
}

func rangePtr(r protocol.Range) *protocol.Range { return &r }
