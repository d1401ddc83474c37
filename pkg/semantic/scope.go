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

import "github.com/cairo-m/cairom/pkg/util"

// ScopeID indexes into an Index's scope arena.
type ScopeID uint32

// ScopeKind classifies the kind of lexical region a Scope represents.
type ScopeKind uint8

// Scope kinds.
const (
	ScopeModule ScopeKind = iota
	ScopeNamespace
	ScopeFunction
	ScopeBlock
	ScopeLoop
)

// Scope is a node in the hierarchical scope tree. Only the module root has
// no parent. Scopes are created during a single traversal pass and are
// immutable afterwards.
type Scope struct {
	Parent util.Option[ScopeID]
	Kind   ScopeKind
	// LoopDepth counts the loops enclosing this scope, including this one
	// when Kind is ScopeLoop; a block scope inherits its parent's depth.
	// Nothing in this package checks break/continue placement against it.
	LoopDepth uint
	// places holds the PlaceIDs declared directly within this scope, in
	// declaration order. Within a scope, direct lookup by name finds the
	// *last* entry with that name (shadowing via redeclaration); lookups
	// that miss walk Parent.
	places []PlaceID
}

// NewModuleScope constructs the root scope of a file.
func NewModuleScope() Scope {
	return Scope{Parent: util.None[ScopeID](), Kind: ScopeModule}
}

// NewChildScope constructs a scope nested within parent.
func NewChildScope(parent ScopeID, kind ScopeKind, loopDepth uint) Scope {
	return Scope{Parent: util.Some(parent), Kind: kind, LoopDepth: loopDepth}
}

// IsLoop reports whether this scope is a loop body.
func (s *Scope) IsLoop() bool { return s.Kind == ScopeLoop }
