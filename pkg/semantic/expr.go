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
	"github.com/cairo-m/cairom/pkg/util/source"
)

// ExprID indexes into an Index's expression arena.
type ExprID uint32

// ExpressionInfo is the per-expression record the semantic index maintains:
// owning file, span, enclosing scope, and the AST node itself, which later
// type/MIR queries read.
type ExpressionInfo struct {
	File  string
	Span  source.Span
	Scope ScopeID
	Node  ast.Expr
}

// IdentifierUsage records one occurrence of a name being referenced.
type IdentifierUsage struct {
	Name  string
	Span  source.Span
	Scope ScopeID
}

// UsageID indexes into an Index's usage arena.
type UsageID uint32
