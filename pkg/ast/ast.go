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

// Package ast defines the source-language shapes that the semantic index and
// MIR builder consume. The surface parser which produces these trees is an
// external collaborator (out of scope here, per the parser/LSP boundary);
// this package exists so the rest of the pipeline has a concrete contract to
// build against and so tests can construct trees directly.
package ast

import "github.com/cairo-m/cairom/pkg/util/source"

// Type is the closed set of type annotations that appear in source.
type Type struct {
	Kind TypeKind
	// Name is set when Kind is TypeStruct (struct name) or TypeNamed
	// (unresolved named type, e.g. used before resolution completes).
	Name string
	// Elem is set when Kind is TypeArray.
	Elem *Type
	// Size is set when Kind is TypeArray.
	Size uint64
	Span source.Span
}

// TypeKind enumerates the surface type forms.
type TypeKind int

// Surface type kinds.
const (
	TypeFelt TypeKind = iota
	TypeU32
	TypeBool
	TypeUnit
	TypeNamed
	TypeTuple
	TypeArray
)

// File is a single parsed source file: a flat list of top-level items.
type File struct {
	Path  string
	Items []Item
}

// Item is a top-level declaration: Function, Struct, Namespace, Use, or Const.
type Item interface{ isItem() }

// Function declares `fn name(params) -> ret_ty { body }`.
type Function struct {
	Name       string
	NameSpan   source.Span
	Params     []Param
	ReturnType []Type
	Body       *Block
	Span       source.Span
}

// Param is one function parameter.
type Param struct {
	Name     string
	NameSpan source.Span
	Type     Type
}

// Struct declares `struct Name { field: ty, ... }`.
type Struct struct {
	Name     string
	NameSpan source.Span
	Fields   []StructField
	Span     source.Span
}

// StructField is one field of a struct declaration.
type StructField struct {
	Name string
	Type Type
	Span source.Span
}

// Namespace declares `namespace Name { items... }`.
type Namespace struct {
	Name     string
	NameSpan source.Span
	Body     []Item
	Span     source.Span
}

// Use declares `use path::item;` or `use path::{item, item2};`.
type Use struct {
	ModulePath []string
	// Items is the list of imported names; a single import has exactly one
	// entry, a braced import has one entry per imported item.
	Items []UseItem
	Span  source.Span
}

// UseItem is one name imported by a Use declaration.
type UseItem struct {
	Name     string
	NameSpan source.Span
	// Alias is set for `use path::item as other;`; empty otherwise.
	Alias string
}

// Const declares `const name = expr;`.
type Const struct {
	Name     string
	NameSpan source.Span
	Type     *Type
	Value    Expr
	Span     source.Span
}

func (*Function) isItem()  {}
func (*Struct) isItem()    {}
func (*Namespace) isItem() {}
func (*Use) isItem()       {}
func (*Const) isItem()     {}

// Block is a brace-delimited sequence of statements.
type Block struct {
	Stmts []Stmt
	Span  source.Span
}

// Stmt is the closed set of statement forms.
type Stmt interface{ isStmt() }

// LetStmt declares `let pattern: ty? = expr;`.
type LetStmt struct {
	Name     string
	NameSpan source.Span
	Type     *Type
	Value    Expr
	// DestructureIndex is set when this let destructures one element of a
	// tuple-valued expression, e.g. `let (a, b) = pair;` desugars to two
	// LetStmts sharing Value with DestructureIndex 0 and 1 respectively.
	DestructureIndex *int
	Span             source.Span
}

// ConstStmt declares a function-local `const name = expr;`.
type ConstStmt struct {
	Name     string
	NameSpan source.Span
	Type     *Type
	Value    Expr
	Span     source.Span
}

// ExprStmt is a bare expression used for its side effect.
type ExprStmt struct {
	Value Expr
	Span  source.Span
}

// AssignStmt is `lvalue = expr;`.
type AssignStmt struct {
	Target Expr
	Value  Expr
	Span   source.Span
}

// IfStmt is `if cond { then } else { else }`; Else is nil when absent.
type IfStmt struct {
	Cond Expr
	Then *Block
	Else *Block
	Span source.Span
}

// WhileStmt is `while cond { body }`.
type WhileStmt struct {
	Cond Expr
	Body *Block
	Span source.Span
}

// LoopStmt is `loop { body }`, an unconditional loop broken out of via break.
type LoopStmt struct {
	Body *Block
	Span source.Span
}

// ForStmt is `for name in range { body }`. Parsed, never lowered: the
// iterator/range protocol is an open question inherited unresolved from the
// original implementation (see DESIGN.md Open Question 1).
type ForStmt struct {
	Name     string
	NameSpan source.Span
	Range    Expr
	Body     *Block
	Span     source.Span
}

// BreakStmt is `break;`.
type BreakStmt struct{ Span source.Span }

// ContinueStmt is `continue;`.
type ContinueStmt struct{ Span source.Span }

// ReturnStmt is `return expr?;`.
type ReturnStmt struct {
	Value Expr // nil for bare `return;`
	Span  source.Span
}

func (*LetStmt) isStmt()      {}
func (*ConstStmt) isStmt()    {}
func (*ExprStmt) isStmt()     {}
func (*AssignStmt) isStmt()   {}
func (*IfStmt) isStmt()       {}
func (*WhileStmt) isStmt()    {}
func (*LoopStmt) isStmt()     {}
func (*ForStmt) isStmt()      {}
func (*BreakStmt) isStmt()    {}
func (*ContinueStmt) isStmt() {}
func (*ReturnStmt) isStmt()   {}

// Expr is the closed set of expression forms.
type Expr interface {
	isExpr()
	ExprSpan() source.Span
}

// exprBase is embedded by concrete expression types to share the Span field
// and satisfy ExprSpan without repeating the accessor everywhere.
type exprBase struct{ Span source.Span }

func (e exprBase) ExprSpan() source.Span { return e.Span }

// IntLiteral is an integer literal (felt or u32 depending on context).
type IntLiteral struct {
	exprBase
	Value uint64
}

// BoolLiteral is `true` or `false`.
type BoolLiteral struct {
	exprBase
	Value bool
}

// Identifier is a bare name reference.
type Identifier struct {
	exprBase
	Name string
}

// BinaryExpr is `left op right`.
type BinaryExpr struct {
	exprBase
	Op    BinaryOp
	Left  Expr
	Right Expr
}

// BinaryOp enumerates binary operators.
type BinaryOp int

// Binary operators.
const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpEq
	OpNeq
	OpLt
	OpLte
	OpGt
	OpGte
	OpAnd
	OpOr
)

// UnaryExpr is `op operand`.
type UnaryExpr struct {
	exprBase
	Op      UnaryOp
	Operand Expr
}

// UnaryOp enumerates unary operators.
type UnaryOp int

// Unary operators.
const (
	OpNeg UnaryOp = iota
	OpNot
)

// CallExpr is `callee(args...)`.
type CallExpr struct {
	exprBase
	Callee Expr
	Args   []Expr
}

// MemberExpr is `base.field`, used for both struct field access and
// `module.function` qualified references.
type MemberExpr struct {
	exprBase
	Base  Expr
	Field string
}

// IndexExpr is `base[index]`.
type IndexExpr struct {
	exprBase
	Base  Expr
	Index Expr
}

// TupleExpr is `(e0, e1, ...)`.
type TupleExpr struct {
	exprBase
	Elements []Expr
}

// StructLiteralExpr is `Name { field: expr, ... }`.
type StructLiteralExpr struct {
	exprBase
	StructName string
	Fields     []StructFieldInit
}

// StructFieldInit is one `field: expr` entry of a struct literal.
type StructFieldInit struct {
	Name  string
	Value Expr
	Span  source.Span
}

// ArrayLiteralExpr is `[e0, e1, ...]`.
type ArrayLiteralExpr struct {
	exprBase
	Elements []Expr
}

func (*IntLiteral) isExpr()        {}
func (*BoolLiteral) isExpr()       {}
func (*Identifier) isExpr()        {}
func (*BinaryExpr) isExpr()        {}
func (*UnaryExpr) isExpr()         {}
func (*CallExpr) isExpr()          {}
func (*MemberExpr) isExpr()        {}
func (*IndexExpr) isExpr()         {}
func (*TupleExpr) isExpr()         {}
func (*StructLiteralExpr) isExpr() {}
func (*ArrayLiteralExpr) isExpr()  {}
