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

func isMakeTuple(i mir.Instruction) bool           { _, ok := i.(*mir.MakeTuple); return ok }
func isExtractTupleElement(i mir.Instruction) bool { _, ok := i.(*mir.ExtractTupleElement); return ok }

// buildTupleRoundTrip constructs `p = (2, 3); return p.0 + p.1` entirely
// within one block, the shape SROA scalarizes since both the construction
// and every use live in the same block.
func buildTupleRoundTrip() *mir.Function {
	fn := mir.NewFunction("f", nil, []mir.Type{mir.Felt})
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

	e0 := fn.NewValue(mir.Felt)
	fn.AppendInstruction(fn.EntryID, &mir.ExtractTupleElement{DestID: e0, Tuple: mir.Op(p), Index: 0, Ty: mir.Felt}, mir.Felt)

	e1 := fn.NewValue(mir.Felt)
	fn.AppendInstruction(fn.EntryID, &mir.ExtractTupleElement{DestID: e1, Tuple: mir.Op(p), Index: 1, Ty: mir.Felt}, mir.Felt)

	sum := fn.NewValue(mir.Felt)
	fn.AppendInstruction(fn.EntryID, &mir.BinaryOp{DestID: sum, Op: mir.Add, Left: mir.Op(e0), Right: mir.Op(e1), Ty: mir.Felt}, mir.Felt)
	fn.SetTerminator(fn.EntryID, &mir.Return{Values: []mir.Value{mir.Op(sum)}})

	return fn
}

// TestSROA_01_ScalarizesSameBlockTuple checks the MakeTuple/Extract pair is
// gone once SROA runs with tuples enabled and a size cap that admits a
// 2-element tuple.
func TestSROA_01_ScalarizesSameBlockTuple(t *testing.T) {
	fn := buildTupleRoundTrip()

	passes.SROA(fn, passes.SROAConfig{EnableTuples: true, MaxAggregateSize: 8})

	if n := countInstructions(fn, isMakeTuple); n != 0 {
		t.Fatalf("got %d surviving MakeTuple, want 0", n)
	}

	if n := countInstructions(fn, isExtractTupleElement); n != 0 {
		t.Fatalf("got %d surviving ExtractTupleElement, want 0", n)
	}
}

// TestSROA_02_DisabledConfigLeavesTupleAlone confirms EnableTuples: false
// is an honored off switch, not merely a default.
func TestSROA_02_DisabledConfigLeavesTupleAlone(t *testing.T) {
	fn := buildTupleRoundTrip()

	passes.SROA(fn, passes.SROAConfig{EnableTuples: false, MaxAggregateSize: 8})

	if n := countInstructions(fn, isMakeTuple); n != 1 {
		t.Fatalf("got %d surviving MakeTuple, want 1 (SROA disabled)", n)
	}
}

// TestSROA_03_OversizedAggregateLeftAlone confirms MaxAggregateSize is
// enforced: a 3-element tuple against a cap of 2 must survive untouched.
func TestSROA_03_OversizedAggregateLeftAlone(t *testing.T) {
	fn := mir.NewFunction("f", nil, []mir.Type{mir.Felt})
	tupleTy := mir.TupleOf(mir.Felt, mir.Felt, mir.Felt)

	p := fn.NewValue(tupleTy)
	fn.AppendInstruction(fn.EntryID, &mir.MakeTuple{
		DestID: p,
		Elements: []mir.Value{
			mir.Literal{Kind: mir.IntegerLiteral{Value: 1}},
			mir.Literal{Kind: mir.IntegerLiteral{Value: 2}},
			mir.Literal{Kind: mir.IntegerLiteral{Value: 3}},
		},
		Ty: tupleTy,
	}, tupleTy)

	e0 := fn.NewValue(mir.Felt)
	fn.AppendInstruction(fn.EntryID, &mir.ExtractTupleElement{DestID: e0, Tuple: mir.Op(p), Index: 0, Ty: mir.Felt}, mir.Felt)
	fn.SetTerminator(fn.EntryID, &mir.Return{Values: []mir.Value{mir.Op(e0)}})

	passes.SROA(fn, passes.SROAConfig{EnableTuples: true, MaxAggregateSize: 2})

	if n := countInstructions(fn, isMakeTuple); n != 1 {
		t.Fatalf("got %d surviving MakeTuple, want 1 (over the size cap)", n)
	}
}
