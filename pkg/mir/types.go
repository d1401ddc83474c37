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

// Package mir is the SSA middle intermediate representation: a function is
// an ordered list of basic blocks, each block a phi prefix followed by
// non-phi instructions and exactly one terminator. Passes in pkg/mir/passes
// transform functions in place; pkg/codegen lowers the result to CASM.
package mir

import "fmt"

// Type is the closed set of MIR-level types. Every MIR value is tagged with
// exactly one.
type Type struct {
	Kind TypeKind
	// Elem is set when Kind is Pointer or FixedArray.
	Elem *Type
	// Elements is set when Kind is Tuple.
	Elements []Type
	// Name and Fields are set when Kind is Struct.
	Name   string
	Fields []StructField
	// Size is set when Kind is FixedArray (element count).
	Size uint64
}

// StructField is one named, ordered field of a Struct type.
type StructField struct {
	Name string
	Type Type
}

// TypeKind enumerates the MIR type forms.
type TypeKind int

// MIR type kinds.
const (
	KindFelt TypeKind = iota
	KindBool
	KindU32
	KindUnit
	KindPointer
	KindTuple
	KindStruct
	KindFixedArray
	// KindUnknown marks error-recovery types; a function containing one must
	// never reach codegen.
	KindUnknown
)

// Felt, Bool, U32 and Unit are the singleton scalar types.
var (
	Felt = Type{Kind: KindFelt}
	Bool = Type{Kind: KindBool}
	U32  = Type{Kind: KindU32}
	Unit = Type{Kind: KindUnit}
	// Unknown marks a value whose type could not be determined; present
	// only during error recovery.
	Unknown = Type{Kind: KindUnknown}
)

// PointerTo constructs Pointer(elem).
func PointerTo(elem Type) Type { return Type{Kind: KindPointer, Elem: &elem} }

// TupleOf constructs Tuple(elements...).
func TupleOf(elements ...Type) Type { return Type{Kind: KindTuple, Elements: elements} }

// StructOf constructs a named Struct type with the given ordered fields.
func StructOf(name string, fields ...StructField) Type {
	return Type{Kind: KindStruct, Name: name, Fields: fields}
}

// ArrayOf constructs FixedArray{elem, size}.
func ArrayOf(elem Type, size uint64) Type {
	return Type{Kind: KindFixedArray, Elem: &elem, Size: size}
}

// IsAggregate reports whether t is a Tuple, Struct, or FixedArray: a type
// the backend cannot hold in a single register-transfer operand.
func (t Type) IsAggregate() bool {
	return t.Kind == KindTuple || t.Kind == KindStruct || t.Kind == KindFixedArray
}

// IsScalar reports whether t occupies value slots directly (as opposed to
// being addressed through a pointer or decomposed into elements).
func (t Type) IsScalar() bool {
	return t.Kind == KindFelt || t.Kind == KindBool || t.Kind == KindU32 || t.Kind == KindUnit
}

// Equal reports structural equality of two MIR types.
func (t Type) Equal(other Type) bool {
	if t.Kind != other.Kind {
		return false
	}

	switch t.Kind {
	case KindPointer:
		return t.Elem.Equal(*other.Elem)
	case KindFixedArray:
		return t.Size == other.Size && t.Elem.Equal(*other.Elem)
	case KindTuple:
		if len(t.Elements) != len(other.Elements) {
			return false
		}

		for i := range t.Elements {
			if !t.Elements[i].Equal(other.Elements[i]) {
				return false
			}
		}

		return true
	case KindStruct:
		if t.Name != other.Name || len(t.Fields) != len(other.Fields) {
			return false
		}

		for i := range t.Fields {
			if t.Fields[i].Name != other.Fields[i].Name || !t.Fields[i].Type.Equal(other.Fields[i].Type) {
				return false
			}
		}

		return true
	default:
		return true
	}
}

// String renders a type in the textual MIR form (see pkg/mir.PrintFunction).
func (t Type) String() string {
	switch t.Kind {
	case KindFelt:
		return "felt"
	case KindBool:
		return "bool"
	case KindU32:
		return "u32"
	case KindUnit:
		return "()"
	case KindPointer:
		return fmt.Sprintf("*%s", t.Elem)
	case KindTuple:
		s := "("
		for i, e := range t.Elements {
			if i > 0 {
				s += ", "
			}

			s += e.String()
		}

		return s + ")"
	case KindStruct:
		return t.Name
	case KindFixedArray:
		return fmt.Sprintf("[%s; %d]", t.Elem, t.Size)
	default:
		return "<unknown>"
	}
}
