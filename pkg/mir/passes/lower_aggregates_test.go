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

// TestLowerAggregates_01_ReplacesSurvivingTupleWithFrameStorage runs the
// same tuple round trip SROA scalarizes, but with SROA skipped entirely (as
// if the aggregate had crossed a block boundary and survived to this late
// pass), and checks LowerAggregates converts the MakeTuple/Extract pair
// into an explicit FrameAlloc/Store/GetElementPtr/Load sequence instead of
// leaving an aggregate-typed value for codegen to choke on.
func TestLowerAggregates_01_ReplacesSurvivingTupleWithFrameStorage(t *testing.T) {
	fn := buildTupleRoundTrip()
	layout := mir.NewDataLayout()

	passes.LowerAggregates(fn, layout)

	if n := countInstructions(fn, isMakeTuple); n != 0 {
		t.Fatalf("got %d surviving MakeTuple, want 0", n)
	}

	if n := countInstructions(fn, isExtractTupleElement); n != 0 {
		t.Fatalf("got %d surviving ExtractTupleElement, want 0", n)
	}

	if n := countInstructions(fn, isFrameAlloc); n != 1 {
		t.Fatalf("got %d FrameAlloc backing the tuple, want 1", n)
	}

	if n := countInstructions(fn, isLoad); n != 2 {
		t.Fatalf("got %d Load (one per extracted element), want 2", n)
	}
}

// TestLowerAggregates_02_CrossBlockTupleSurvivesJoin builds the shape
// `let t = (2, 3); if c { return 0; } return t.0 + t.1;`: t is built in the
// entry block, but both extracts live in the block after the if, which has
// a single predecessor (the then-arm returns directly rather than joining),
// so Mem2Reg/SROA never touch it and it is exactly the case that used to
// reach codegen unlowered.
func TestLowerAggregates_02_CrossBlockTupleSurvivesJoin(t *testing.T) {
	fn := mir.NewFunction("f", []mir.Type{mir.Bool}, []mir.Type{mir.Felt})
	layout := mir.NewDataLayout()
	cond := fn.Params[0]
	tupleTy := mir.TupleOf(mir.Felt, mir.Felt)

	p := fn.NewValue(tupleTy)
	fn.AppendInstruction(fn.EntryID, &mir.MakeTuple{
		DestID: p,
		Elements: []mir.Value{
			mir.Literal{Kind: mir.IntegerLiteral{Value: 2}},
			mir.Literal{Kind: mir.IntegerLiteral{Value: 3}},
		},
		Ty: tupleTy,
	}, tupleTy)

	thenBlock := fn.NewBlock()
	afterBlock := fn.NewBlock()

	fn.SetTerminator(fn.EntryID, &mir.If{Condition: mir.Op(cond), Then: thenBlock.ID, Else: afterBlock.ID})
	fn.SetTerminator(thenBlock.ID, &mir.Return{Values: []mir.Value{mir.Literal{Kind: mir.IntegerLiteral{Value: 0}}}})

	e0 := fn.NewValue(mir.Felt)
	fn.AppendInstruction(afterBlock.ID, &mir.ExtractTupleElement{DestID: e0, Tuple: mir.Op(p), Index: 0, Ty: mir.Felt}, mir.Felt)
	e1 := fn.NewValue(mir.Felt)
	fn.AppendInstruction(afterBlock.ID, &mir.ExtractTupleElement{DestID: e1, Tuple: mir.Op(p), Index: 1, Ty: mir.Felt}, mir.Felt)
	sum := fn.NewValue(mir.Felt)
	fn.AppendInstruction(afterBlock.ID, &mir.BinaryOp{DestID: sum, Op: mir.Add, Left: mir.Op(e0), Right: mir.Op(e1), Ty: mir.Felt}, mir.Felt)
	fn.SetTerminator(afterBlock.ID, &mir.Return{Values: []mir.Value{mir.Op(sum)}})

	passes.LowerAggregates(fn, layout)

	if n := countInstructions(fn, isMakeTuple); n != 0 {
		t.Fatalf("got %d surviving MakeTuple, want 0", n)
	}

	if n := countInstructions(fn, isExtractTupleElement); n != 0 {
		t.Fatalf("got %d surviving ExtractTupleElement, want 0", n)
	}

	if n := countInstructions(fn, isFrameAlloc); n != 1 {
		t.Fatalf("got %d FrameAlloc backing the tuple, want 1", n)
	}

	entryAllocs := 0
	for _, instr := range fn.Block(fn.EntryID).Instructions {
		if isFrameAlloc(instr) {
			entryAllocs++
		}
	}

	if entryAllocs != 1 {
		t.Fatalf("got %d FrameAlloc in the entry block, want 1 (must dominate the cross-block use)", entryAllocs)
	}
}

// TestLowerAggregates_03_AggregatePhiDropsToSharedStorage builds two arms
// that each construct their own tuple, joined by an aggregate-typed Phi,
// and checks the Phi is gone and both arms write into the one FrameAlloc
// the join's extracts read back from.
func TestLowerAggregates_03_AggregatePhiDropsToSharedStorage(t *testing.T) {
	fn := mir.NewFunction("f", []mir.Type{mir.Bool}, []mir.Type{mir.Felt})
	layout := mir.NewDataLayout()
	cond := fn.Params[0]
	tupleTy := mir.TupleOf(mir.Felt, mir.Felt)

	thenBlock := fn.NewBlock()
	elseBlock := fn.NewBlock()
	joinBlock := fn.NewBlock()

	fn.SetTerminator(fn.EntryID, &mir.If{Condition: mir.Op(cond), Then: thenBlock.ID, Else: elseBlock.ID})

	pThen := fn.NewValue(tupleTy)
	fn.AppendInstruction(thenBlock.ID, &mir.MakeTuple{
		DestID: pThen,
		Elements: []mir.Value{
			mir.Literal{Kind: mir.IntegerLiteral{Value: 2}},
			mir.Literal{Kind: mir.IntegerLiteral{Value: 3}},
		},
		Ty: tupleTy,
	}, tupleTy)
	fn.SetTerminator(thenBlock.ID, &mir.Jump{Target: joinBlock.ID})

	pElse := fn.NewValue(tupleTy)
	fn.AppendInstruction(elseBlock.ID, &mir.MakeTuple{
		DestID: pElse,
		Elements: []mir.Value{
			mir.Literal{Kind: mir.IntegerLiteral{Value: 5}},
			mir.Literal{Kind: mir.IntegerLiteral{Value: 7}},
		},
		Ty: tupleTy,
	}, tupleTy)
	fn.SetTerminator(elseBlock.ID, &mir.Jump{Target: joinBlock.ID})

	pJoin := fn.NewValue(tupleTy)
	fn.AppendPhi(joinBlock.ID, &mir.Phi{
		DestID: pJoin,
		Ty:     tupleTy,
		Sources: []mir.PhiSource{
			{Predecessor: thenBlock.ID, Value: mir.Op(pThen)},
			{Predecessor: elseBlock.ID, Value: mir.Op(pElse)},
		},
	})

	e0 := fn.NewValue(mir.Felt)
	fn.AppendInstruction(joinBlock.ID, &mir.ExtractTupleElement{DestID: e0, Tuple: mir.Op(pJoin), Index: 0, Ty: mir.Felt}, mir.Felt)
	e1 := fn.NewValue(mir.Felt)
	fn.AppendInstruction(joinBlock.ID, &mir.ExtractTupleElement{DestID: e1, Tuple: mir.Op(pJoin), Index: 1, Ty: mir.Felt}, mir.Felt)
	sum := fn.NewValue(mir.Felt)
	fn.AppendInstruction(joinBlock.ID, &mir.BinaryOp{DestID: sum, Op: mir.Add, Left: mir.Op(e0), Right: mir.Op(e1), Ty: mir.Felt}, mir.Felt)
	fn.SetTerminator(joinBlock.ID, &mir.Return{Values: []mir.Value{mir.Op(sum)}})

	passes.LowerAggregates(fn, layout)

	if got := len(fn.Block(joinBlock.ID).Phis); got != 0 {
		t.Fatalf("got %d surviving phis in join block, want 0", got)
	}

	if n := countInstructions(fn, isMakeTuple); n != 0 {
		t.Fatalf("got %d surviving MakeTuple, want 0", n)
	}

	if n := countInstructions(fn, isFrameAlloc); n != 1 {
		t.Fatalf("got %d FrameAlloc, want 1 (both arms must share one backing slot)", n)
	}

	storesToJoinedSlot := 0
	for _, b := range []*mir.Block{thenBlock, elseBlock} {
		for _, instr := range b.Instructions {
			if _, ok := instr.(*mir.Store); ok {
				storesToJoinedSlot++
			}
		}
	}

	if storesToJoinedSlot != 4 {
		t.Fatalf("got %d stores across both arms, want 4 (2 elements x 2 arms)", storesToJoinedSlot)
	}
}

// TestLowerAggregates_04_ScalarValuesUntouched confirms the pass is a
// no-op over a function with no aggregate-producing instructions at all.
func TestLowerAggregates_04_ScalarValuesUntouched(t *testing.T) {
	fn := mir.NewFunction("f", nil, []mir.Type{mir.Felt})
	layout := mir.NewDataLayout()

	sum := fn.NewValue(mir.Felt)
	fn.AppendInstruction(fn.EntryID, &mir.BinaryOp{
		DestID: sum, Op: mir.Add,
		Left:  mir.Literal{Kind: mir.IntegerLiteral{Value: 2}},
		Right: mir.Literal{Kind: mir.IntegerLiteral{Value: 3}},
		Ty:    mir.Felt,
	}, mir.Felt)
	fn.SetTerminator(fn.EntryID, &mir.Return{Values: []mir.Value{mir.Op(sum)}})

	before := len(fn.Block(fn.EntryID).Instructions)

	passes.LowerAggregates(fn, layout)

	after := len(fn.Block(fn.EntryID).Instructions)
	if before != after {
		t.Fatalf("LowerAggregates changed instruction count from %d to %d on an all-scalar function", before, after)
	}
}
