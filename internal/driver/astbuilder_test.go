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
package driver_test

import (
	"github.com/cairo-m/cairom/pkg/ast"
	"github.com/cairo-m/cairom/pkg/util/source"
)

// spans mints a fresh, non-overlapping source.Span on every call. The
// semantic index keys both its expression table and its declaration-name
// table by exact span, so every node built for one file needs a span found
// nowhere else in that same file; sequential non-overlapping integers are
// the simplest way to guarantee that without a real tokenizer behind these
// trees.
type spans struct{ n int }

func (s *spans) next() source.Span {
	s.n++
	return source.NewSpan(s.n, s.n+1)
}

func felt(sp *spans, v uint64) *ast.IntLiteral {
	e := &ast.IntLiteral{Value: v}
	e.Span = sp.next()

	return e
}

func boolLit(sp *spans, v bool) *ast.BoolLiteral {
	e := &ast.BoolLiteral{Value: v}
	e.Span = sp.next()

	return e
}

func ident(sp *spans, name string) *ast.Identifier {
	e := &ast.Identifier{Name: name}
	e.Span = sp.next()

	return e
}

func bin(sp *spans, op ast.BinaryOp, l, r ast.Expr) *ast.BinaryExpr {
	e := &ast.BinaryExpr{Op: op, Left: l, Right: r}
	e.Span = sp.next()

	return e
}

func call(sp *spans, callee ast.Expr, args ...ast.Expr) *ast.CallExpr {
	e := &ast.CallExpr{Callee: callee, Args: args}
	e.Span = sp.next()

	return e
}

func member(sp *spans, base ast.Expr, field string) *ast.MemberExpr {
	e := &ast.MemberExpr{Base: base, Field: field}
	e.Span = sp.next()

	return e
}

func tuple(sp *spans, elems ...ast.Expr) *ast.TupleExpr {
	e := &ast.TupleExpr{Elements: elems}
	e.Span = sp.next()

	return e
}

func feltTy() ast.Type { return ast.Type{Kind: ast.TypeFelt} }

func boolTy() ast.Type { return ast.Type{Kind: ast.TypeBool} }

func letStmt(sp *spans, name string, value ast.Expr) *ast.LetStmt {
	span := sp.next()
	return &ast.LetStmt{Name: name, NameSpan: span, Value: value, Span: span}
}

func assignStmt(sp *spans, target, value ast.Expr) *ast.AssignStmt {
	return &ast.AssignStmt{Target: target, Value: value, Span: sp.next()}
}

func exprStmt(sp *spans, value ast.Expr) *ast.ExprStmt {
	return &ast.ExprStmt{Value: value, Span: sp.next()}
}

func retStmt(sp *spans, value ast.Expr) *ast.ReturnStmt {
	return &ast.ReturnStmt{Value: value, Span: sp.next()}
}

func ifStmt(sp *spans, cond ast.Expr, then, els *ast.Block) *ast.IfStmt {
	return &ast.IfStmt{Cond: cond, Then: then, Else: els, Span: sp.next()}
}

func whileStmt(sp *spans, cond ast.Expr, body *ast.Block) *ast.WhileStmt {
	return &ast.WhileStmt{Cond: cond, Body: body, Span: sp.next()}
}

func block(sp *spans, stmts ...ast.Stmt) *ast.Block {
	return &ast.Block{Stmts: stmts, Span: sp.next()}
}

func param(sp *spans, name string, ty ast.Type) ast.Param {
	return ast.Param{Name: name, NameSpan: sp.next(), Type: ty}
}

func fn(sp *spans, name string, params []ast.Param, ret []ast.Type, body *ast.Block) *ast.Function {
	return &ast.Function{Name: name, NameSpan: sp.next(), Params: params, ReturnType: ret, Body: body, Span: sp.next()}
}

func useDecl(sp *spans, modulePath []string, items ...string) *ast.Use {
	useItems := make([]ast.UseItem, len(items))
	for i, name := range items {
		useItems[i] = ast.UseItem{Name: name, NameSpan: sp.next()}
	}

	return &ast.Use{ModulePath: modulePath, Items: useItems, Span: sp.next()}
}

func file(path string, items ...ast.Item) *ast.File {
	return &ast.File{Path: path, Items: items}
}

func sourceFile(path string) *source.File {
	return source.NewSourceFile(path, []byte(path))
}
