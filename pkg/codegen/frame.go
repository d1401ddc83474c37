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

// Package codegen lowers an optimized pkg/mir.Module into a resolved
// pkg/casm.Program: one fp-relative slot per SSA value, the calling
// convention pkg/vm executes, and opcode selection over pkg/mir's
// instruction set.
package codegen

import (
	"github.com/cairo-m/cairom/pkg/mir"
	"github.com/cairo-m/cairom/pkg/util/math"
)

// CallFrame assigns every SSA value in one function an fp-relative slot.
// Parameters and return values live at negative offsets (below fp, shared
// with the caller's outgoing-argument staging area); locals and
// intermediate values live at positive offsets, above a reserved region
// sized for the function's own outgoing calls.
//
// This is a flat, one-slot(-or-more)-per-value allocation with no reuse
// across non-overlapping liveness ranges: CASM has no general-purpose
// registers to spill from, so every value that survives SROA/LowerAggregates
// simply gets a permanent home for the function's lifetime. A register
// allocator would reduce frame size, but nothing in pkg/mir needs it to be
// correct.
type CallFrame struct {
	layout *mir.DataLayout

	slots  map[mir.ValueID]int
	cursor int

	paramSlots  int
	returnSlots int
}

// NewCallFrame computes fn's parameter/return layout and the reserved
// outgoing-argument area, and assigns every parameter its fixed negative
// offset.
func NewCallFrame(fn *mir.Function, layout *mir.DataLayout) *CallFrame {
	f := &CallFrame{layout: layout, slots: map[mir.ValueID]int{}}

	paramSizes := make([]int, len(fn.ParamTypes))
	for i, t := range fn.ParamTypes {
		paramSizes[i] = layout.SizeOf(t)
	}

	returnSizes := make([]int, len(fn.ReturnType))
	for i, t := range fn.ReturnType {
		returnSizes[i] = layout.SizeOf(t)
	}

	f.paramSlots = math.Sum(paramSizes...)
	f.returnSlots = math.Sum(returnSizes...)

	base := -(f.paramSlots + f.returnSlots + 2)
	offset := base

	for _, id := range fn.Params {
		f.slots[id] = offset
		offset += layout.SizeOf(fn.TypeOf(id))
	}

	f.cursor = outgoingReserve(fn, layout)

	return f
}

// outgoingReserve scans fn for Call/VoidCall instructions and returns the
// largest (argument slots + return slots) any call site needs, so the
// reserved staging area is big enough for every call fn makes.
func outgoingReserve(fn *mir.Function, layout *mir.DataLayout) int {
	max := 0

	for _, b := range fn.Blocks {
		for _, instr := range b.Instructions {
			var sig mir.CallSignature

			switch ins := instr.(type) {
			case *mir.Call:
				sig = ins.Signature
			case *mir.VoidCall:
				sig = ins.Signature
			default:
				continue
			}

			need := 0
			for _, t := range sig.ParamTypes {
				need += layout.SizeOf(t)
			}

			for _, t := range sig.ReturnTypes {
				need += layout.SizeOf(t)
			}

			if need > max {
				max = need
			}
		}
	}

	return max
}

// ReturnBase is the offset of return slot 0, i.e. -(returnSlots+2).
func (f *CallFrame) ReturnBase() int { return -(f.returnSlots + 2) }

// SlotOf returns the base offset assigned to id, allocating one lazily
// (sized for ty) if this is the first time id has been asked for.
func (f *CallFrame) SlotOf(id mir.ValueID, ty mir.Type) int {
	if off, ok := f.slots[id]; ok {
		return off
	}

	size := f.layout.SizeOf(ty)
	off := f.cursor
	f.slots[id] = off
	f.cursor += size

	return off
}

// Reserve allocates size fresh, unnamed slots (used for codegen-internal
// scratch values that have no MIR ValueID of their own) and returns the
// base offset.
func (f *CallFrame) Reserve(size int) int {
	off := f.cursor
	f.cursor += size

	return off
}

// OffsetOf returns id's assigned offset without allocating one, for values
// that must already have a home (a GetElementPtr's base, an AddressOf's
// operand).
func (f *CallFrame) OffsetOf(id mir.ValueID) (int, bool) {
	off, ok := f.slots[id]
	return off, ok
}

// Alias records that id refers to the same storage as offset, for
// GetElementPtr/AddressOf: both name an existing location rather than
// allocating a new one, since this compiler never materializes a pointer
// to a local as a runtime value (see DESIGN.md's codegen section) — every
// address chain is resolved to a frame offset at code-generation time.
func (f *CallFrame) Alias(id mir.ValueID, offset int) {
	f.slots[id] = offset
}
