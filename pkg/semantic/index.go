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

// Package semantic builds, for each source file, the scope tree, per-scope
// symbol tables, definitions, identifier-usage records, use-def edges, a
// span->scope map and a span->expression-id map. This is the contract the
// MIR builder consumes; see pkg/mir.Builder.
package semantic

import (
	"github.com/cairo-m/cairom/pkg/ast"
	"github.com/cairo-m/cairom/pkg/util/source"
)

// ImportResolver resolves a module path named by a `use` declaration to the
// already-built Index of that module. It is supplied by the driver, which
// owns the module graph and build order; pkg/semantic never reaches into a
// global registry itself.
type ImportResolver interface {
	ResolveModule(path []string) (*Index, bool)
}

type spanScope struct {
	span    source.Span
	scope   ScopeID
	breadth int // span length, used to find the smallest enclosing span
}

// Index is the immutable, pure-function-of-file-content result of semantic
// analysis for a single file. It is built once by BuildIndex and never
// mutated afterwards.
type Index struct {
	File string

	scopes      []Scope
	places      []Place
	definitions []Definition
	expressions []ExpressionInfo
	usages      []IdentifierUsage

	useDef map[UsageID]DefinitionID

	exprBySpan    map[source.Span]ExprID
	defByNameSpan map[source.Span]DefinitionID
	scopeSpans    []spanScope
	importEdges   []importEdge

	Diagnostics []Diagnostic
}

type importEdge struct {
	modulePath []string
	item       string
	span       source.Span
}

// RootScope returns the id of the top-level module scope.
func (idx *Index) RootScope() ScopeID { return 0 }

// Scope returns the scope record for the given id.
func (idx *Index) Scope(id ScopeID) *Scope { return &idx.scopes[id] }

// PlaceTable returns the places declared directly within the given scope.
func (idx *Index) PlaceTable(scope ScopeID) []PlaceID { return idx.scopes[scope].places }

// Place returns the place record for the given id.
func (idx *Index) Place(id PlaceID) *Place { return &idx.places[id] }

// Definition returns the definition record for the given id.
func (idx *Index) Definition(id DefinitionID) *Definition { return &idx.definitions[id] }

// Expression returns the expression-info record for the given id.
func (idx *Index) Expression(id ExprID) *ExpressionInfo { return &idx.expressions[id] }

// Usage returns the identifier-usage record for the given id.
func (idx *Index) Usage(id UsageID) *IdentifierUsage { return &idx.usages[id] }

// ExpressionIDBySpan looks up the expression recorded for an exact span.
func (idx *Index) ExpressionIDBySpan(span source.Span) (ExprID, bool) {
	id, ok := idx.exprBySpan[span]
	return id, ok
}

// DefinitionByNameSpan looks up the definition whose declaration-site name
// span exactly matches span. The MIR builder uses this to recover "the
// definition this let/param/loop-variable declares" without re-deriving
// scope-lookup order, which (being last-definition-wins) cannot by itself
// disambiguate two same-named bindings declared in the same scope.
func (idx *Index) DefinitionByNameSpan(span source.Span) (DefinitionID, bool) {
	id, ok := idx.defByNameSpan[span]
	return id, ok
}

// ExpressionIDAtOffset returns the innermost recorded expression whose span
// contains offset, for callers (the LSP daemon's hover/definition handlers)
// that only have a cursor position rather than an exact node span.
func (idx *Index) ExpressionIDAtOffset(offset int) (ExprID, bool) {
	best := ExprID(0)
	found := false
	bestLen := -1

	for i, e := range idx.expressions {
		if e.Span.Start() > offset || offset > e.Span.End() {
			continue
		}

		length := e.Span.End() - e.Span.Start()
		if bestLen == -1 || length < bestLen {
			best = ExprID(i)
			bestLen = length
			found = true
		}
	}

	return best, found
}

// ScopeForSpan returns the innermost scope whose recorded span encloses the
// given span.
func (idx *Index) ScopeForSpan(span source.Span) ScopeID {
	best := idx.RootScope()
	bestBreadth := -1

	for _, ss := range idx.scopeSpans {
		if ss.span.Start() <= span.Start() && span.End() <= ss.span.End() {
			if bestBreadth == -1 || ss.breadth < bestBreadth {
				best = ss.scope
				bestBreadth = ss.breadth
			}
		}
	}

	return best
}

// DefinitionsInScope returns every definition declared directly within scope.
func (idx *Index) DefinitionsInScope(scope ScopeID) []DefinitionID {
	var out []DefinitionID

	for i, d := range idx.definitions {
		if d.Scope == scope {
			out = append(out, DefinitionID(i))
		}
	}

	return out
}

// DefinitionForIdentifierExpr resolves the identifier expression at exprID
// (which must be an *ast.Identifier) to its definition, if the usage was
// resolved.
func (idx *Index) DefinitionForIdentifierExpr(exprID ExprID) (DefinitionID, *Definition, bool) {
	for uid, u := range idx.usages {
		info := idx.expressions[exprID]
		if u.Span == info.Span {
			defID, ok := idx.useDef[UsageID(uid)]
			if !ok {
				return 0, nil, false
			}

			return defID, &idx.definitions[defID], true
		}
	}

	return 0, nil, false
}

// ResolveNameWithImports walks local scopes outward from startingScope, then
// (if nothing is found locally) the file's imports, to find the definition
// bound to name. It returns the resolving file's Index so cross-module
// definitions carry their own defining context.
func (idx *Index) ResolveNameWithImports(name string, startingScope ScopeID, imports ImportResolver) (DefinitionID, *Definition, *Index, bool) {
	for scope := startingScope; ; {
		for i := len(idx.scopes[scope].places) - 1; i >= 0; i-- {
			pid := idx.scopes[scope].places[i]
			if idx.places[pid].Name != name {
				continue
			}
			// Find the definition tied to this place (last one registered).
			for di := len(idx.definitions) - 1; di >= 0; di-- {
				if idx.definitions[di].Place == pid {
					return DefinitionID(di), &idx.definitions[di], idx, true
				}
			}
		}

		if idx.scopes[scope].Parent.IsEmpty() {
			break
		}

		scope = idx.scopes[scope].Parent.Unwrap()
	}
	// Not found locally: walk imports recorded for this file.
	if imports == nil {
		return 0, nil, nil, false
	}

	for _, e := range idx.importEdges {
		if e.item != name {
			continue
		}

		other, ok := imports.ResolveModule(e.modulePath)
		if !ok {
			continue
		}

		for di := range other.definitions {
			if other.definitions[di].Name == name && other.definitions[di].Scope == other.RootScope() {
				return DefinitionID(di), &other.definitions[di], other, true
			}
		}
	}

	return 0, nil, nil, false
}

// BuildIndex runs the two-pass construction protocol over a single parsed
// file: pass 1 declares every top-level item so forward references resolve,
// pass 2 visits bodies and records usages/use-def edges/expression info.
func BuildIndex(file *source.File, tree *ast.File, imports ImportResolver) (*Index, []Diagnostic) {
	b := &builder{
		idx: &Index{
			File:          tree.Path,
			useDef:        map[UsageID]DefinitionID{},
			exprBySpan:    map[source.Span]ExprID{},
			defByNameSpan: map[source.Span]DefinitionID{},
		},
		imports: imports,
	}
	b.idx.scopes = append(b.idx.scopes, NewModuleScope())

	b.declareTopLevel(tree.Items, b.idx.RootScope())
	b.resolveTopLevel(tree.Items, b.idx.RootScope())
	b.checkUnusedImports()

	return b.idx, b.idx.Diagnostics
}
