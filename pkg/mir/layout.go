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

// DataLayout answers size and offset questions about MIR types in slot
// units (1 slot per felt/bool, 2 for u32). Both the aggregate-lowering pass
// and the code generator consult the same DataLayout so their notions of
// "where field i lives" never diverge.
type DataLayout struct{}

// NewDataLayout constructs the single layout policy used throughout the
// pipeline. It takes no configuration today; it exists as a type (rather
// than a set of free functions) so passes can be unit-tested against a
// substitute layout if the slot-size policy ever needs to vary per target.
func NewDataLayout() *DataLayout { return &DataLayout{} }

// SizeOf returns the number of fp-relative slots ty occupies when stored by
// value (as opposed to through a pointer, which always occupies one slot).
func (l *DataLayout) SizeOf(ty Type) int {
	switch ty.Kind {
	case KindFelt, KindBool, KindUnit, KindPointer:
		return 1
	case KindU32:
		return 2
	case KindTuple:
		total := 0
		for _, e := range ty.Elements {
			total += l.SizeOf(e)
		}

		return total
	case KindStruct:
		total := 0
		for _, f := range ty.Fields {
			total += l.SizeOf(f.Type)
		}

		return total
	case KindFixedArray:
		return l.SizeOf(*ty.Elem) * int(ty.Size)
	default:
		panic(fmt.Sprintf("mir: SizeOf called on unresolved type %v", ty))
	}
}

// TupleOffset returns the slot offset of element index within a
// Tuple(elements) value's storage, relative to the tuple's own base.
func (l *DataLayout) TupleOffset(ty Type, index int) int {
	offset := 0

	for i := 0; i < index; i++ {
		offset += l.SizeOf(ty.Elements[i])
	}

	return offset
}

// FieldOffset returns the slot offset of the named field within a Struct
// value's storage, relative to the struct's own base.
func (l *DataLayout) FieldOffset(ty Type, name string) int {
	offset := 0

	for _, f := range ty.Fields {
		if f.Name == name {
			return offset
		}

		offset += l.SizeOf(f.Type)
	}

	panic(fmt.Sprintf("mir: struct %q has no field %q", ty.Name, name))
}

// FieldType returns the MIR type of the named field of a Struct type.
func (l *DataLayout) FieldType(ty Type, name string) Type {
	for _, f := range ty.Fields {
		if f.Name == name {
			return f.Type
		}
	}

	panic(fmt.Sprintf("mir: struct %q has no field %q", ty.Name, name))
}

// ElementOffset returns the slot offset of array element index relative to
// a FixedArray value's base, given the known element size.
func (l *DataLayout) ElementOffset(ty Type, index int) int {
	return l.SizeOf(*ty.Elem) * index
}
