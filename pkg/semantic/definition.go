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

// DefinitionID indexes into an Index's definition arena.
type DefinitionID uint32

// DefinitionKind is the closed set of ways a Definition can originate.
type DefinitionKind interface{ isDefinitionKind() }

// FunctionDef ties a Definition to a function declaration.
type FunctionDef struct {
	Params     []ast.Param
	ReturnType []ast.Type
}

// ParameterDef ties a Definition to one function parameter.
type ParameterDef struct {
	Type ast.Type
}

// LetDef ties a Definition to a `let` binding.
type LetDef struct {
	Type             *ast.Type
	ValueExpr        ExprID
	DestructureIndex util.Option[int]
}

// ConstDef ties a Definition to a `const` binding.
type ConstDef struct {
	Type      *ast.Type
	ValueExpr ExprID
}

// StructDef ties a Definition to a struct declaration.
type StructDef struct {
	Fields []ast.StructField
}

// UseDef ties a Definition to one imported name.
type UseDef struct {
	ModulePath []string
	// ImportedItem is the original name in the source module, which may
	// differ from the local Definition.Name when an alias is used.
	ImportedItem string
}

// NamespaceDef ties a Definition to a namespace declaration. BodyScope is
// the scope created for the namespace's items, letting a consumer resolve a
// qualified `namespace.member` reference without re-deriving scope nesting.
type NamespaceDef struct {
	Body      []ast.Item
	BodyScope ScopeID
}

// LoopVariableDef ties a Definition to a `for` loop induction variable.
type LoopVariableDef struct{}

func (FunctionDef) isDefinitionKind()     {}
func (ParameterDef) isDefinitionKind()    {}
func (LetDef) isDefinitionKind()          {}
func (ConstDef) isDefinitionKind()        {}
func (StructDef) isDefinitionKind()       {}
func (UseDef) isDefinitionKind()          {}
func (NamespaceDef) isDefinitionKind()    {}
func (LoopVariableDef) isDefinitionKind() {}

// Definition ties a Place to its AST origin.
type Definition struct {
	File     string
	Scope    ScopeID
	Place    PlaceID
	Name     string
	NameSpan source.Span
	FullSpan source.Span
	Kind     DefinitionKind
}
