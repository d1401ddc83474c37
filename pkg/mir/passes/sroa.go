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
package passes

import "github.com/cairo-m/cairom/pkg/mir"

// SROAConfig controls which aggregate kinds scalar replacement of
// aggregates applies to, and the size above which an aggregate is left
// alone even if it would otherwise qualify (very large tuples/structs gain
// little from per-field SSA and cost more phi/rename bookkeeping).
type SROAConfig struct {
	EnableTuples     bool
	EnableStructs    bool
	MaxAggregateSize int
}

// DefaultSROAConfig is the general-purpose setting: both aggregate kinds
// enabled, up to 8 fields/elements.
var DefaultSROAConfig = SROAConfig{EnableTuples: true, EnableStructs: true, MaxAggregateSize: 8}

// ConservativeSROAConfig caps aggregate size at 4, for callers that want
// SROA's rewrite without its worst-case blowup on wide structs.
var ConservativeSROAConfig = SROAConfig{EnableTuples: true, EnableStructs: true, MaxAggregateSize: 4}

// aggState is the per-block, per-value tracked decomposition of one
// aggregate: an ordered vector of its component values, mirroring the
// field/element order of the aggregate's MIR type.
type aggState struct {
	ty   mir.Type
	vals []mir.Value
}

// SROA replaces in-register tuple/struct lifetimes with per-field SSA
// values wherever the aggregate's definition and every use live in the same
// block. Aggregates whose definition block differs from a use's block are
// left untouched for the late aggregate-lowering pass.
func SROA(fn *mir.Function, cfg SROAConfig) {
	crossesBlock := detectCrossBlockAggregates(fn)

	for _, b := range fn.Blocks {
		sroaBlock(fn, b, cfg, crossesBlock)
	}
}

// detectCrossBlockAggregates records, for every aggregate-producing value,
// whether it is used outside the block that defines it (including via a phi
// operand, which counts as a use in the phi's own block). Those aggregates
// are excluded from this pass's per-block tracking.
func detectCrossBlockAggregates(fn *mir.Function) map[mir.ValueID]bool {
	defBlock := map[mir.ValueID]mir.BlockID{}

	for _, b := range fn.Blocks {
		for _, instr := range b.Instructions {
			switch ins := instr.(type) {
			case *mir.MakeTuple:
				defBlock[ins.DestID] = b.ID
			case *mir.MakeStruct:
				defBlock[ins.DestID] = b.ID
			}
		}
	}

	crosses := map[mir.ValueID]bool{}

	markUse := func(useBlock mir.BlockID, v mir.Value) {
		op, ok := v.(mir.Operand)
		if !ok {
			return
		}

		if db, ok := defBlock[op.ID]; ok && db != useBlock {
			crosses[op.ID] = true
		}
	}

	for _, b := range fn.Blocks {
		for _, phi := range b.Phis {
			for _, src := range phi.Sources {
				markUse(src.Predecessor, src.Value)
			}
		}

		for _, instr := range b.Instructions {
			switch ins := instr.(type) {
			case *mir.InsertTuple:
				markUse(b.ID, ins.TupleVal)
				markUse(b.ID, ins.NewValue)
			case *mir.InsertField:
				markUse(b.ID, ins.StructVal)
				markUse(b.ID, ins.NewValue)
			case *mir.ExtractTupleElement:
				markUse(b.ID, ins.Tuple)
			case *mir.ExtractStructField:
				markUse(b.ID, ins.StructVal)
			case *mir.Assign:
				markUse(b.ID, ins.Source)
			case *mir.Call:
				for _, a := range ins.Args {
					markUse(b.ID, a)
				}
			case *mir.VoidCall:
				for _, a := range ins.Args {
					markUse(b.ID, a)
				}
			case *mir.Store:
				markUse(b.ID, ins.Src)
			}
		}

		if ret, ok := b.Terminator.(*mir.Return); ok {
			for _, v := range ret.Values {
				markUse(b.ID, v)
			}
		}
	}

	return crosses
}

func eligible(ty mir.Type, cfg SROAConfig) bool {
	switch ty.Kind {
	case mir.KindTuple:
		return cfg.EnableTuples && len(ty.Elements) <= cfg.MaxAggregateSize
	case mir.KindStruct:
		return cfg.EnableStructs && len(ty.Fields) <= cfg.MaxAggregateSize
	default:
		return false
	}
}

// sroaBlock runs the per-block tracking-and-rewrite pass. It skips the
// whole block outright if any phi in its prefix has an aggregate
// destination: cross-block aggregate phis are left for LowerAggregates.
func sroaBlock(fn *mir.Function, b *mir.Block, cfg SROAConfig, crossesBlock map[mir.ValueID]bool) {
	for _, phi := range b.Phis {
		if phi.Ty.IsAggregate() {
			return
		}
	}

	states := map[mir.ValueID]*aggState{}
	kept := b.Instructions[:0]

	materialize := func(v mir.Value) mir.Value {
		op, ok := v.(mir.Operand)
		if !ok {
			return v
		}

		st, tracked := states[op.ID]
		if !tracked {
			return v
		}

		dest := fn.NewValue(st.ty)

		switch st.ty.Kind {
		case mir.KindTuple:
			kept = append(kept, &mir.MakeTuple{DestID: dest, Elements: append([]mir.Value{}, st.vals...), Ty: st.ty})
		case mir.KindStruct:
			fields := make([]mir.StructFieldInit, len(st.ty.Fields))
			for i, f := range st.ty.Fields {
				fields[i] = mir.StructFieldInit{Name: f.Name, Value: st.vals[i]}
			}

			kept = append(kept, &mir.MakeStruct{DestID: dest, Fields: fields, Ty: st.ty})
		}

		return mir.Op(dest)
	}

	for _, instr := range b.Instructions {
		switch ins := instr.(type) {
		case *mir.MakeTuple:
			if crossesBlock[ins.DestID] || !eligible(ins.Ty, cfg) {
				kept = append(kept, ins)
				continue
			}

			states[ins.DestID] = &aggState{ty: ins.Ty, vals: append([]mir.Value{}, ins.Elements...)}
		case *mir.MakeStruct:
			if crossesBlock[ins.DestID] || !eligible(ins.Ty, cfg) {
				kept = append(kept, ins)
				continue
			}

			vals := make([]mir.Value, len(ins.Fields))
			for i, f := range ins.Fields {
				vals[i] = f.Value
			}

			states[ins.DestID] = &aggState{ty: ins.Ty, vals: vals}
		case *mir.InsertTuple:
			src, ok := asOperand(ins.TupleVal)
			st, tracked := states[src]

			if !ok || !tracked {
				kept = append(kept, ins)
				continue
			}

			next := &aggState{ty: st.ty, vals: append([]mir.Value{}, st.vals...)}
			next.vals[ins.Index] = ins.NewValue
			states[ins.DestID] = next
		case *mir.InsertField:
			src, ok := asOperand(ins.StructVal)
			st, tracked := states[src]

			if !ok || !tracked {
				kept = append(kept, ins)
				continue
			}

			idx := fieldIndex(st.ty, ins.FieldName)
			if idx < 0 {
				kept = append(kept, ins)
				continue
			}

			next := &aggState{ty: st.ty, vals: append([]mir.Value{}, st.vals...)}
			next.vals[idx] = ins.NewValue
			states[ins.DestID] = next
		case *mir.ExtractTupleElement:
			src, ok := asOperand(ins.Tuple)
			st, tracked := states[src]

			if !ok || !tracked {
				kept = append(kept, ins)
				continue
			}

			val := st.vals[ins.Index]
			if nested, ok := asOperand(val); ok {
				if nestedState, isAgg := states[nested]; isAgg {
					states[ins.DestID] = nestedState
					continue
				}
			}

			kept = append(kept, &mir.Assign{DestID: ins.DestID, Source: val, Ty: ins.Ty})
		case *mir.ExtractStructField:
			src, ok := asOperand(ins.StructVal)
			st, tracked := states[src]

			if !ok || !tracked {
				kept = append(kept, ins)
				continue
			}

			idx := fieldIndex(st.ty, ins.FieldName)
			if idx < 0 {
				kept = append(kept, ins)
				continue
			}

			val := st.vals[idx]
			if nested, ok := asOperand(val); ok {
				if nestedState, isAgg := states[nested]; isAgg {
					states[ins.DestID] = nestedState
					continue
				}
			}

			kept = append(kept, &mir.Assign{DestID: ins.DestID, Source: val, Ty: ins.Ty})
		case *mir.Assign:
			if ins.Ty.IsAggregate() {
				if src, ok := asOperand(ins.Source); ok {
					if st, tracked := states[src]; tracked {
						states[ins.DestID] = st
						continue
					}
				}
			}

			kept = append(kept, ins)
		case *mir.Call:
			for i, a := range ins.Args {
				ins.Args[i] = materialize(a)
			}

			kept = append(kept, ins)
		case *mir.VoidCall:
			for i, a := range ins.Args {
				ins.Args[i] = materialize(a)
			}

			kept = append(kept, ins)
		case *mir.Store:
			if ins.Ty.IsAggregate() {
				ins.Src = materialize(ins.Src)
			}

			kept = append(kept, ins)
		default:
			kept = append(kept, ins)
		}
	}

	if ret, ok := b.Terminator.(*mir.Return); ok {
		for i, v := range ret.Values {
			ret.Values[i] = materialize(v)
		}
	}

	b.Instructions = kept
}

func asOperand(v mir.Value) (mir.ValueID, bool) {
	op, ok := v.(mir.Operand)
	if !ok {
		return 0, false
	}

	return op.ID, true
}

func fieldIndex(ty mir.Type, name string) int {
	for i, f := range ty.Fields {
		if f.Name == name {
			return i
		}
	}

	return -1
}
