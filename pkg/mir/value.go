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

import "fmt"

// ValueID names one SSA value, either an instruction result, a phi result,
// or a function parameter. Values are never redefined: the builder's SSA
// protocol guarantees each ValueID is written exactly once.
type ValueID uint32

// BlockID names one basic block within a function.
type BlockID uint32

// FunctionID names one function within a module.
type FunctionID uint32

// Value is the closed sum of things a MIR operand can be: a reference to an
// already-computed SSA value, an inline literal, or a recovery marker for
// code that failed earlier validation.
type Value interface {
	isValue()
	String() string
}

// Operand references a previously computed SSA value.
type Operand struct{ ID ValueID }

// Literal is an inline constant.
type Literal struct{ Kind LiteralKind }

// LiteralKind is the closed set of inline constant forms.
type LiteralKind interface{ isLiteralKind() }

// IntegerLiteral is a felt or u32 constant, represented as its canonical
// uint64 value (narrowed to 31 or 32 bits depending on use-site type).
type IntegerLiteral struct{ Value uint64 }

// BooleanLiteral is `true` or `false`.
type BooleanLiteral struct{ Value bool }

// UnitLiteral is the sole value of the Unit type.
type UnitLiteral struct{}

func (IntegerLiteral) isLiteralKind() {}
func (BooleanLiteral) isLiteralKind() {}
func (UnitLiteral) isLiteralKind()    {}

// Error marks an operand that could not be computed; it must never reach
// codegen. Its presence anywhere in a function after the builder finishes
// is an internal-compiler-error condition upstream (semantic validation is
// supposed to reject code that would require one).
type Error struct{}

func (Operand) isValue() {}
func (Literal) isValue() {}
func (Error) isValue()   {}

func (v Operand) String() string { return fmt.Sprintf("v%d", v.ID) }

func (v Literal) String() string {
	switch k := v.Kind.(type) {
	case IntegerLiteral:
		return fmt.Sprintf("%d", k.Value)
	case BooleanLiteral:
		if k.Value {
			return "true"
		}

		return "false"
	case UnitLiteral:
		return "()"
	default:
		return "<literal>"
	}
}

func (Error) String() string { return "<error>" }

// Int constructs an integer Literal value.
func Int(v uint64) Value { return Literal{Kind: IntegerLiteral{Value: v}} }

// BoolVal constructs a boolean Literal value.
func BoolVal(v bool) Value { return Literal{Kind: BooleanLiteral{Value: v}} }

// UnitVal is the canonical Unit literal.
var UnitVal Value = Literal{Kind: UnitLiteral{}}

// Op constructs an Operand value.
func Op(id ValueID) Value { return Operand{ID: id} }
