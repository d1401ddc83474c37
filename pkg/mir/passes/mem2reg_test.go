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
package passes_test

import (
	"testing"

	"github.com/cairo-m/cairom/pkg/mir"
	"github.com/cairo-m/cairom/pkg/mir/passes"
)

func countInstructions(fn *mir.Function, match func(mir.Instruction) bool) int {
	n := 0

	for _, b := range fn.Blocks {
		for _, instr := range b.Instructions {
			if match(instr) {
				n++
			}
		}
	}

	return n
}

func isFrameAlloc(i mir.Instruction) bool { _, ok := i.(*mir.FrameAlloc); return ok }
func isLoad(i mir.Instruction) bool       { _, ok := i.(*mir.Load); return ok }
func isStore(i mir.Instruction) bool      { _, ok := i.(*mir.Store); return ok }

// TestMem2RegSSA_01_PromotesSingleSlotLocal builds `alloc; store 5; x =
// load; return x` in one block and checks the alloc/store/load triple is
// gone afterward, replaced by direct use of the stored SSA value.
func TestMem2RegSSA_01_PromotesSingleSlotLocal(t *testing.T) {
	fn := mir.NewFunction("f", nil, []mir.Type{mir.Felt})
	layout := mir.NewDataLayout()

	addr := fn.NewValue(mir.PointerTo(mir.Felt))
	fn.AppendInstruction(fn.EntryID, &mir.FrameAlloc{DestID: addr, Ty: mir.Felt}, mir.PointerTo(mir.Felt))
	fn.AppendInstruction(fn.EntryID, &mir.Store{
		Address: mir.Op(addr),
		Src:     mir.Literal{Kind: mir.IntegerLiteral{Value: 5}},
		Ty:      mir.Felt,
	}, mir.Unit)

	loaded := fn.NewValue(mir.Felt)
	fn.AppendInstruction(fn.EntryID, &mir.Load{DestID: loaded, Address: mir.Op(addr), Ty: mir.Felt}, mir.Felt)
	fn.SetTerminator(fn.EntryID, &mir.Return{Values: []mir.Value{mir.Op(loaded)}})

	passes.Mem2RegSSA(fn, layout)

	if n := countInstructions(fn, isFrameAlloc); n != 0 {
		t.Fatalf("got %d surviving FrameAlloc, want 0", n)
	}

	if n := countInstructions(fn, isStore); n != 0 {
		t.Fatalf("got %d surviving Store, want 0", n)
	}

	if n := countInstructions(fn, isLoad); n != 0 {
		t.Fatalf("got %d surviving Load, want 0", n)
	}
}

// TestMem2RegSSA_02_LeavesEscapingAllocAlone takes the address of a local
// with AddressOf, the one operation computeEscaping must recognize as an
// escape; the alloc must survive untouched.
func TestMem2RegSSA_02_LeavesEscapingAllocAlone(t *testing.T) {
	fn := mir.NewFunction("f", nil, []mir.Type{mir.Felt})
	layout := mir.NewDataLayout()

	addr := fn.NewValue(mir.PointerTo(mir.Felt))
	fn.AppendInstruction(fn.EntryID, &mir.FrameAlloc{DestID: addr, Ty: mir.Felt}, mir.PointerTo(mir.Felt))

	escaped := fn.NewValue(mir.PointerTo(mir.PointerTo(mir.Felt)))
	fn.AppendInstruction(fn.EntryID, &mir.AddressOf{DestID: escaped, Operand: mir.Op(addr)}, mir.PointerTo(mir.PointerTo(mir.Felt)))

	loaded := fn.NewValue(mir.Felt)
	fn.AppendInstruction(fn.EntryID, &mir.Load{DestID: loaded, Address: mir.Op(addr), Ty: mir.Felt}, mir.Felt)
	fn.SetTerminator(fn.EntryID, &mir.Return{Values: []mir.Value{mir.Op(loaded)}})

	passes.Mem2RegSSA(fn, layout)

	if n := countInstructions(fn, isFrameAlloc); n != 1 {
		t.Fatalf("got %d surviving FrameAlloc, want 1 (escaping alloc must be left alone)", n)
	}
}

// TestMem2RegSSA_03_PromotesAcrossIfJoin reassigns a local in one arm of an
// if/else and reads it after the join, checking that Mem2Reg removes the
// alloc and places exactly one phi in the join block, the iterated
// dominance frontier of the two store blocks.
func TestMem2RegSSA_03_PromotesAcrossIfJoin(t *testing.T) {
	fn := mir.NewFunction("f", []mir.Type{mir.Bool}, []mir.Type{mir.Felt})
	layout := mir.NewDataLayout()
	cond := fn.Params[0]

	addr := fn.NewValue(mir.PointerTo(mir.Felt))
	fn.AppendInstruction(fn.EntryID, &mir.FrameAlloc{DestID: addr, Ty: mir.Felt}, mir.PointerTo(mir.Felt))
	fn.AppendInstruction(fn.EntryID, &mir.Store{
		Address: mir.Op(addr), Src: mir.Literal{Kind: mir.IntegerLiteral{Value: 1}}, Ty: mir.Felt,
	}, mir.Unit)

	thenBlock := fn.NewBlock()
	elseBlock := fn.NewBlock()
	joinBlock := fn.NewBlock()

	fn.SetTerminator(fn.EntryID, &mir.If{Condition: mir.Op(cond), Then: thenBlock.ID, Else: elseBlock.ID})

	fn.AppendInstruction(thenBlock.ID, &mir.Store{
		Address: mir.Op(addr), Src: mir.Literal{Kind: mir.IntegerLiteral{Value: 2}}, Ty: mir.Felt,
	}, mir.Unit)
	fn.SetTerminator(thenBlock.ID, &mir.Jump{Target: joinBlock.ID})
	fn.SetTerminator(elseBlock.ID, &mir.Jump{Target: joinBlock.ID})

	loaded := fn.NewValue(mir.Felt)
	fn.AppendInstruction(joinBlock.ID, &mir.Load{DestID: loaded, Address: mir.Op(addr), Ty: mir.Felt}, mir.Felt)
	fn.SetTerminator(joinBlock.ID, &mir.Return{Values: []mir.Value{mir.Op(loaded)}})

	passes.Mem2RegSSA(fn, layout)

	if n := countInstructions(fn, isFrameAlloc); n != 0 {
		t.Fatalf("got %d surviving FrameAlloc, want 0", n)
	}

	if len(fn.Block(joinBlock.ID).Phis) != 1 {
		t.Fatalf("got %d phis in join block, want 1", len(fn.Block(joinBlock.ID).Phis))
	}
}
