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
package semantic

import (
	"github.com/cairo-m/cairom/pkg/ast"
	"github.com/cairo-m/cairom/pkg/util"
	"github.com/cairo-m/cairom/pkg/util/source"
)

// builder carries the mutable state of a single BuildIndex run. It is
// discarded once construction finishes; only the resulting Index survives.
type builder struct {
	idx     *Index
	imports ImportResolver

	// itemScope remembers the scope created at declaration time for items
	// that introduce one (Function bodies, Namespace bodies), so the second
	// pass visits bodies in the same scope their members were declared into.
	itemScope map[ast.Item]ScopeID
	// constDef remembers the definition id created at declaration time for
	// each Const item, so pass 2 can patch in the value expression id once
	// the value has been visited.
	constDef map[ast.Item]DefinitionID

	importUses []importUse
}

type importUse struct {
	place PlaceID
	name  string
	span  source.Span
}

func newBuilderState(idx *Index, imports ImportResolver) *builder {
	return &builder{
		idx:       idx,
		imports:   imports,
		itemScope: map[ast.Item]ScopeID{},
		constDef:  map[ast.Item]DefinitionID{},
	}
}

func (b *builder) newScope(parent ScopeID, kind ScopeKind, loopDepth uint) ScopeID {
	id := ScopeID(len(b.idx.scopes))
	b.idx.scopes = append(b.idx.scopes, NewChildScope(parent, kind, loopDepth))

	return id
}

func (b *builder) newLoopScope(parent ScopeID) ScopeID {
	return b.newScope(parent, ScopeLoop, b.idx.scopes[parent].LoopDepth+1)
}

func (b *builder) recordScopeSpan(span source.Span, scope ScopeID) {
	b.idx.scopeSpans = append(b.idx.scopeSpans, spanScope{span: span, scope: scope, breadth: span.Length()})
}

// declarePlace registers a new place in scope without checking for
// collisions; used for bindings where redeclaration is ordinary shadowing
// (let, const-stmt, loop variables).
func (b *builder) declarePlace(scope ScopeID, name string, flags PlaceFlag) PlaceID {
	id := PlaceID(len(b.idx.places))
	b.idx.places = append(b.idx.places, Place{Scope: scope, Name: name, Flags: flags})
	b.idx.scopes[scope].places = append(b.idx.scopes[scope].places, id)

	return id
}

// declarePlaceChecked is declarePlace plus a duplicate-definition diagnostic
// when scope already directly declares a place with the same name; used for
// top-level items, struct-scoped names and parameters, where a repeat name
// is a mistake rather than intentional shadowing.
func (b *builder) declarePlaceChecked(scope ScopeID, name string, flags PlaceFlag, span source.Span) PlaceID {
	for _, pid := range b.idx.scopes[scope].places {
		if b.idx.places[pid].Name != name {
			continue
		}

		firstSpan := span
		for di := range b.idx.definitions {
			if b.idx.definitions[di].Place == pid {
				firstSpan = b.idx.definitions[di].NameSpan
				break
			}
		}

		b.idx.Diagnostics = append(b.idx.Diagnostics, duplicateDefinition(name, span, firstSpan))

		break
	}

	return b.declarePlace(scope, name, flags)
}

func (b *builder) addDefinition(scope ScopeID, place PlaceID, name string, nameSpan, fullSpan source.Span, kind DefinitionKind) DefinitionID {
	id := DefinitionID(len(b.idx.definitions))
	b.idx.definitions = append(b.idx.definitions, Definition{
		File:     b.idx.File,
		Scope:    scope,
		Place:    place,
		Name:     name,
		NameSpan: nameSpan,
		FullSpan: fullSpan,
		Kind:     kind,
	})
	b.idx.defByNameSpan[nameSpan] = id

	return id
}

func (b *builder) recordExpr(scope ScopeID, node ast.Expr) ExprID {
	id := ExprID(len(b.idx.expressions))
	span := node.ExprSpan()
	b.idx.expressions = append(b.idx.expressions, ExpressionInfo{File: b.idx.File, Span: span, Scope: scope, Node: node})
	b.idx.exprBySpan[span] = id

	return id
}

func (b *builder) recordUsage(scope ScopeID, name string, span source.Span) UsageID {
	id := UsageID(len(b.idx.usages))
	b.idx.usages = append(b.idx.usages, IdentifierUsage{Name: name, Span: span, Scope: scope})

	return id
}

// lookupLocal walks scope and its ancestors looking for a place named name,
// returning the most recently registered definition bound to it.
func (b *builder) lookupLocal(scope ScopeID, name string) (PlaceID, DefinitionID, bool) {
	for s := scope; ; {
		places := b.idx.scopes[s].places
		for i := len(places) - 1; i >= 0; i-- {
			pid := places[i]
			if b.idx.places[pid].Name != name {
				continue
			}

			for di := len(b.idx.definitions) - 1; di >= 0; di-- {
				if b.idx.definitions[di].Place == pid {
					return pid, DefinitionID(di), true
				}
			}
		}

		if b.idx.scopes[s].Parent.IsEmpty() {
			return 0, 0, false
		}

		s = b.idx.scopes[s].Parent.Unwrap()
	}
}

// declareTopLevel is pass 1: it walks a flat item list (module-level or
// namespace-level) and declares a place and definition for every item,
// descending eagerly into namespace bodies so that forward references
// anywhere in the file resolve regardless of declaration order.
func (b *builder) declareTopLevel(items []ast.Item, scope ScopeID) {
	if b.itemScope == nil {
		b.itemScope = map[ast.Item]ScopeID{}
	}

	if b.constDef == nil {
		b.constDef = map[ast.Item]DefinitionID{}
	}

	for _, item := range items {
		switch it := item.(type) {
		case *ast.Function:
			place := b.declarePlaceChecked(scope, it.Name, FlagDefined|FlagFunction, it.NameSpan)
			b.addDefinition(scope, place, it.Name, it.NameSpan, it.Span, FunctionDef{Params: it.Params, ReturnType: it.ReturnType})

			fnScope := b.newScope(scope, ScopeFunction, 0)
			b.recordScopeSpan(it.Span, fnScope)
			b.itemScope[item] = fnScope

			for _, p := range it.Params {
				pplace := b.declarePlaceChecked(fnScope, p.Name, FlagDefined|FlagParameter, p.NameSpan)
				b.addDefinition(fnScope, pplace, p.Name, p.NameSpan, p.NameSpan, ParameterDef{Type: p.Type})
			}
		case *ast.Struct:
			place := b.declarePlaceChecked(scope, it.Name, FlagDefined|FlagStruct, it.NameSpan)
			b.addDefinition(scope, place, it.Name, it.NameSpan, it.Span, StructDef{Fields: it.Fields})
		case *ast.Namespace:
			place := b.declarePlaceChecked(scope, it.Name, FlagDefined, it.NameSpan)

			nsScope := b.newScope(scope, ScopeNamespace, 0)
			b.recordScopeSpan(it.Span, nsScope)
			b.itemScope[item] = nsScope

			b.addDefinition(scope, place, it.Name, it.NameSpan, it.Span, NamespaceDef{Body: it.Body, BodyScope: nsScope})
			b.declareTopLevel(it.Body, nsScope)
		case *ast.Use:
			for _, ui := range it.Items {
				localName := ui.Name
				if ui.Alias != "" {
					localName = ui.Alias
				}

				place := b.declarePlaceChecked(scope, localName, FlagDefined, ui.NameSpan)
				b.addDefinition(scope, place, localName, ui.NameSpan, it.Span, UseDef{ModulePath: it.ModulePath, ImportedItem: ui.Name})
				b.idx.importEdges = append(b.idx.importEdges, importEdge{modulePath: it.ModulePath, item: ui.Name, span: ui.NameSpan})
				b.importUses = append(b.importUses, importUse{place: place, name: localName, span: ui.NameSpan})
			}
		case *ast.Const:
			place := b.declarePlaceChecked(scope, it.Name, FlagDefined|FlagConstant, it.NameSpan)
			b.constDef[item] = b.addDefinition(scope, place, it.Name, it.NameSpan, it.Span, ConstDef{Type: it.Type})
		}
	}
}

// resolveTopLevel is pass 2: it visits bodies, recording expression info,
// identifier usages and use-def edges, and patching in the value expression
// id for top-level consts (whose definition was created during pass 1).
func (b *builder) resolveTopLevel(items []ast.Item, scope ScopeID) {
	for _, item := range items {
		switch it := item.(type) {
		case *ast.Function:
			fnScope := b.itemScope[item]
			if it.Body != nil {
				b.visitStmts(it.Body.Stmts, fnScope)
			}
		case *ast.Namespace:
			b.resolveTopLevel(it.Body, b.itemScope[item])
		case *ast.Const:
			exprID := b.visitExpr(it.Value, scope)
			defID := b.constDef[item]
			def := b.idx.definitions[defID]
			def.Kind = ConstDef{Type: it.Type, ValueExpr: exprID}
			b.idx.definitions[defID] = def
		}
	}
}

func (b *builder) visitBlock(block *ast.Block, parentScope ScopeID) ScopeID {
	scope := b.newScope(parentScope, ScopeBlock, b.idx.scopes[parentScope].LoopDepth)
	b.recordScopeSpan(block.Span, scope)
	b.visitStmts(block.Stmts, scope)

	return scope
}

func (b *builder) visitStmts(stmts []ast.Stmt, scope ScopeID) {
	for _, stmt := range stmts {
		b.visitStmt(stmt, scope)
	}
}

func (b *builder) visitStmt(stmt ast.Stmt, scope ScopeID) {
	switch s := stmt.(type) {
	case *ast.LetStmt:
		exprID := b.visitExpr(s.Value, scope)

		destructure := util.None[int]()
		if s.DestructureIndex != nil {
			destructure = util.Some(*s.DestructureIndex)
		}

		place := b.declarePlace(scope, s.Name, FlagDefined)
		b.addDefinition(scope, place, s.Name, s.NameSpan, s.Span, LetDef{Type: s.Type, ValueExpr: exprID, DestructureIndex: destructure})
	case *ast.ConstStmt:
		exprID := b.visitExpr(s.Value, scope)
		place := b.declarePlace(scope, s.Name, FlagDefined|FlagConstant)
		b.addDefinition(scope, place, s.Name, s.NameSpan, s.Span, ConstDef{Type: s.Type, ValueExpr: exprID})
	case *ast.ExprStmt:
		b.visitExpr(s.Value, scope)
	case *ast.AssignStmt:
		b.visitExpr(s.Target, scope)
		b.visitExpr(s.Value, scope)
	case *ast.IfStmt:
		b.visitExpr(s.Cond, scope)
		b.visitBlock(s.Then, scope)

		if s.Else != nil {
			b.visitBlock(s.Else, scope)
		}
	case *ast.WhileStmt:
		b.visitExpr(s.Cond, scope)

		loopScope := b.newLoopScope(scope)
		b.recordScopeSpan(s.Body.Span, loopScope)
		b.visitStmts(s.Body.Stmts, loopScope)
	case *ast.LoopStmt:
		loopScope := b.newLoopScope(scope)
		b.recordScopeSpan(s.Body.Span, loopScope)
		b.visitStmts(s.Body.Stmts, loopScope)
	case *ast.ForStmt:
		b.visitExpr(s.Range, scope)

		loopScope := b.newLoopScope(scope)
		b.recordScopeSpan(s.Body.Span, loopScope)

		place := b.declarePlace(loopScope, s.Name, FlagDefined)
		b.addDefinition(loopScope, place, s.Name, s.NameSpan, s.Span, LoopVariableDef{})
		b.visitStmts(s.Body.Stmts, loopScope)
	case *ast.ReturnStmt:
		if s.Value != nil {
			b.visitExpr(s.Value, scope)
		}
	case *ast.BreakStmt, *ast.ContinueStmt:
		// Nothing to resolve; loop placement validity is a type-checker concern.
	}
}

func (b *builder) visitExpr(expr ast.Expr, scope ScopeID) ExprID {
	exprID := b.recordExpr(scope, expr)

	switch e := expr.(type) {
	case *ast.IntLiteral, *ast.BoolLiteral:
		// Leaves.
	case *ast.Identifier:
		b.resolveIdentifier(e.Name, e.Span, scope)
	case *ast.BinaryExpr:
		b.visitExpr(e.Left, scope)
		b.visitExpr(e.Right, scope)
	case *ast.UnaryExpr:
		b.visitExpr(e.Operand, scope)
	case *ast.CallExpr:
		b.visitExpr(e.Callee, scope)

		for _, a := range e.Args {
			b.visitExpr(a, scope)
		}
	case *ast.MemberExpr:
		b.visitExpr(e.Base, scope)
	case *ast.IndexExpr:
		b.visitExpr(e.Base, scope)
		b.visitExpr(e.Index, scope)
	case *ast.TupleExpr:
		for _, el := range e.Elements {
			b.visitExpr(el, scope)
		}
	case *ast.StructLiteralExpr:
		for _, f := range e.Fields {
			b.visitExpr(f.Value, scope)
		}
	case *ast.ArrayLiteralExpr:
		for _, el := range e.Elements {
			b.visitExpr(el, scope)
		}
	}

	return exprID
}

func (b *builder) resolveIdentifier(name string, span source.Span, scope ScopeID) {
	usageID := b.recordUsage(scope, name, span)

	if placeID, defID, ok := b.lookupLocal(scope, name); ok {
		b.idx.useDef[usageID] = defID
		b.idx.places[placeID].Flags |= FlagUsed

		return
	}

	b.idx.Diagnostics = append(b.idx.Diagnostics, undeclaredVariable(name, span))
}

func (b *builder) checkUnusedImports() {
	for _, iu := range b.importUses {
		if !b.idx.places[iu.place].Has(FlagUsed) {
			b.idx.Diagnostics = append(b.idx.Diagnostics, unusedImport(iu.name, iu.span))
		}
	}
}
