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
package mir

// Terminator is the closed set of ways a basic block can end. Every block
// has exactly one, checked by ValidateFunction.
type Terminator interface {
	isTerminator()
	// Successors lists the blocks control can transfer to, in a
	// deterministic order (used by dominance computation and printing).
	Successors() []BlockID
}

// Return ends a function, yielding values to the caller.
type Return struct{ Values []Value }

// Jump is an unconditional branch.
type Jump struct{ Target BlockID }

// If branches on a boolean condition.
type If struct {
	Condition Value
	Then      BlockID
	Else      BlockID
}

// BranchCmp folds a comparison directly into the terminator. Codegen
// materializes an equality comparison into a scratch slot and branches on it
// with Jnz; ordering comparisons are rejected as unsupported.
type BranchCmp struct {
	Op    BinaryOpKind
	Left  Value
	Right Value
	Then  BlockID
	Else  BlockID
}

// Unreachable marks a block that control can never reach (e.g. both arms of
// an exhaustive match return). Codegen may lower it to a trap or omit it.
type Unreachable struct{}

func (*Return) isTerminator()      {}
func (*Jump) isTerminator()        {}
func (*If) isTerminator()          {}
func (*BranchCmp) isTerminator()   {}
func (*Unreachable) isTerminator() {}

func (*Return) Successors() []BlockID      { return nil }
func (t *Jump) Successors() []BlockID      { return []BlockID{t.Target} }
func (t *If) Successors() []BlockID        { return []BlockID{t.Then, t.Else} }
func (t *BranchCmp) Successors() []BlockID { return []BlockID{t.Then, t.Else} }
func (*Unreachable) Successors() []BlockID { return nil }
