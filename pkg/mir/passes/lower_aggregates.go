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

// LowerAggregates rewrites whatever MakeTuple/MakeStruct/MakeFixedArray and
// Extract*/Insert*/ArrayIndex/ArrayInsert instructions survived Mem2Reg and
// SROA into explicit frame storage: every aggregate value still alive at
// this point gets a backing FrameAlloc, construction becomes a sequence of
// field/element stores, and extraction becomes a GEP plus a load. Shares
// layout with the code generator so both compute identical slot offsets.
//
// Storage is tracked per function, not per block: SROA only scalarizes an
// aggregate whose every use is local to the block that built it (sroa.go's
// "crosses" check), so anything still here can flow between blocks — a
// branch's tuple literal read back after the join, or a value merged by an
// aggregate-typed Phi. An aggregate-typed Phi never gets its own storage:
// its Phi group (the phi's destination unioned with every source it reads)
// shares one FrameAlloc, so whichever predecessor actually ran already left
// the right value behind and the Phi itself is simply dropped.
func LowerAggregates(fn *mir.Function, layout *mir.DataLayout) {
	groups := newValueGroups()

	for _, b := range fn.Blocks {
		for _, phi := range b.Phis {
			if !phi.Ty.IsAggregate() {
				continue
			}

			for _, src := range phi.Sources {
				if op, ok := src.Value.(mir.Operand); ok {
					groups.union(phi.DestID, op.ID)
				}
			}
		}
	}

	types := aggregateTypes(fn)

	slot := map[mir.ValueID]mir.ValueID{} // canonical group root -> backing FrameAlloc ValueID
	var entryAllocs []mir.Instruction

	allocFor := func(id mir.ValueID, ty mir.Type) mir.ValueID {
		root := groups.find(id)
		if a, ok := slot[root]; ok {
			return a
		}

		a := fn.NewValue(mir.PointerTo(ty))
		entryAllocs = append(entryAllocs, &mir.FrameAlloc{DestID: a, Ty: ty})
		slot[root] = a

		return a
	}

	addrOf := func(v mir.Value) (mir.Value, bool) {
		op, ok := v.(mir.Operand)
		if !ok {
			return nil, false
		}

		a, ok := slot[groups.find(op.ID)]
		if !ok {
			return nil, false
		}

		return mir.Op(a), true
	}

	for _, b := range fn.Blocks {
		lowerAggregatesInBlock(fn, b, layout, groups, types, allocFor, addrOf)
	}

	// FrameAllocs for groups first touched in a block other than the entry
	// still need to dominate every use, so they all land at the front of the
	// entry block regardless of which block allocated them.
	entry := fn.Block(fn.EntryID)
	entry.Instructions = append(append([]mir.Instruction{}, entryAllocs...), entry.Instructions...)
}

func lowerAggregatesInBlock(
	fn *mir.Function,
	b *mir.Block,
	layout *mir.DataLayout,
	groups *valueGroups,
	types map[mir.ValueID]mir.Type,
	allocFor func(mir.ValueID, mir.Type) mir.ValueID,
	addrOf func(mir.Value) (mir.Value, bool),
) {
	var remainingPhis []*mir.Phi

	for _, phi := range b.Phis {
		if !phi.Ty.IsAggregate() {
			remainingPhis = append(remainingPhis, phi)
			continue
		}

		// Registers (or reuses) the group's FrameAlloc; every predecessor's
		// producer stores into it directly, so the Phi itself carries no
		// information once lowering is done.
		allocFor(phi.DestID, phi.Ty)
	}

	b.Phis = remainingPhis

	var out []mir.Instruction

	for _, instr := range b.Instructions {
		switch ins := instr.(type) {
		case *mir.MakeTuple:
			alloc := allocFor(ins.DestID, ins.Ty)

			for i, el := range ins.Elements {
				offset := layout.TupleOffset(ins.Ty, i)
				gepDest := fn.NewValue(mir.PointerTo(ins.Ty.Elements[i]))
				out = append(out, &mir.GetElementPtr{DestID: gepDest, Base: mir.Op(alloc), Offset: offset, Constant: true})
				out = append(out, &mir.Store{Address: mir.Op(gepDest), Src: el, Ty: ins.Ty.Elements[i]})
			}
		case *mir.MakeStruct:
			alloc := allocFor(ins.DestID, ins.Ty)

			for _, f := range ins.Fields {
				offset := layout.FieldOffset(ins.Ty, f.Name)
				fieldTy := layout.FieldType(ins.Ty, f.Name)
				gepDest := fn.NewValue(mir.PointerTo(fieldTy))
				out = append(out, &mir.GetElementPtr{DestID: gepDest, Base: mir.Op(alloc), Offset: offset, Constant: true})
				out = append(out, &mir.Store{Address: mir.Op(gepDest), Src: f.Value, Ty: fieldTy})
			}
		case *mir.MakeFixedArray:
			arrTy := mir.ArrayOf(ins.ElementTy, uint64(len(ins.Elements)))
			alloc := allocFor(ins.DestID, arrTy)

			for i, el := range ins.Elements {
				offset := layout.ElementOffset(arrTy, i)
				gepDest := fn.NewValue(mir.PointerTo(ins.ElementTy))
				out = append(out, &mir.GetElementPtr{DestID: gepDest, Base: mir.Op(alloc), Offset: offset, Constant: true})
				out = append(out, &mir.Store{Address: mir.Op(gepDest), Src: el, Ty: ins.ElementTy})
			}
		case *mir.ExtractTupleElement:
			if addr, ok := addrOf(ins.Tuple); ok {
				tupleTy := aggregateTypeOf(types, ins.Tuple)
				offset := layout.TupleOffset(tupleTy, ins.Index)
				gepDest := fn.NewValue(mir.PointerTo(ins.Ty))
				out = append(out, &mir.GetElementPtr{DestID: gepDest, Base: addr, Offset: offset, Constant: true})
				out = append(out, &mir.Load{DestID: ins.DestID, Address: mir.Op(gepDest), Ty: ins.Ty})

				continue
			}

			out = append(out, ins)
		case *mir.ExtractStructField:
			if addr, ok := addrOf(ins.StructVal); ok {
				structTy := aggregateTypeOf(types, ins.StructVal)
				offset := layout.FieldOffset(structTy, ins.FieldName)
				gepDest := fn.NewValue(mir.PointerTo(ins.Ty))
				out = append(out, &mir.GetElementPtr{DestID: gepDest, Base: addr, Offset: offset, Constant: true})
				out = append(out, &mir.Load{DestID: ins.DestID, Address: mir.Op(gepDest), Ty: ins.Ty})

				continue
			}

			out = append(out, ins)
		case *mir.InsertTuple:
			// A surviving InsertTuple (cross-block, so SROA left it alone)
			// lowers to: alias the source's storage, overwrite one slot,
			// and keep using that same storage under the new ValueID —
			// functional update becomes in-place mutation of a fresh copy.
			if addr, ok := addrOf(ins.TupleVal); ok {
				newAlloc := allocFor(ins.DestID, ins.Ty)
				copyAggregate(fn, &out, layout, ins.Ty, mir.Op(newAlloc), addr)
				offset := layout.TupleOffset(ins.Ty, ins.Index)
				gepDest := fn.NewValue(mir.PointerTo(ins.Ty.Elements[ins.Index]))
				out = append(out, &mir.GetElementPtr{DestID: gepDest, Base: mir.Op(newAlloc), Offset: offset, Constant: true})
				out = append(out, &mir.Store{Address: mir.Op(gepDest), Src: ins.NewValue, Ty: ins.Ty.Elements[ins.Index]})

				continue
			}

			out = append(out, ins)
		case *mir.InsertField:
			if addr, ok := addrOf(ins.StructVal); ok {
				newAlloc := allocFor(ins.DestID, ins.Ty)
				copyAggregate(fn, &out, layout, ins.Ty, mir.Op(newAlloc), addr)
				offset := layout.FieldOffset(ins.Ty, ins.FieldName)
				fieldTy := layout.FieldType(ins.Ty, ins.FieldName)
				gepDest := fn.NewValue(mir.PointerTo(fieldTy))
				out = append(out, &mir.GetElementPtr{DestID: gepDest, Base: mir.Op(newAlloc), Offset: offset, Constant: true})
				out = append(out, &mir.Store{Address: mir.Op(gepDest), Src: ins.NewValue, Ty: fieldTy})

				continue
			}

			out = append(out, ins)
		case *mir.ArrayIndex:
			if addr, ok := addrOf(ins.Array); ok {
				arrTy := aggregateTypeOf(types, ins.Array)
				if idx, isConst := constIndex(ins.Index); isConst {
					offset := layout.ElementOffset(arrTy, idx)
					gepDest := fn.NewValue(mir.PointerTo(ins.ElementTy))
					out = append(out, &mir.GetElementPtr{DestID: gepDest, Base: addr, Offset: offset, Constant: true})
					out = append(out, &mir.Load{DestID: ins.DestID, Address: mir.Op(gepDest), Ty: ins.ElementTy})

					continue
				}
			}

			out = append(out, ins)
		case *mir.ArrayInsert:
			if addr, ok := addrOf(ins.Array); ok {
				if idx, isConst := constIndex(ins.Index); isConst {
					newAlloc := allocFor(ins.DestID, ins.ArrayTy)
					copyAggregate(fn, &out, layout, ins.ArrayTy, mir.Op(newAlloc), addr)
					offset := layout.ElementOffset(ins.ArrayTy, idx)
					gepDest := fn.NewValue(mir.PointerTo(*ins.ArrayTy.Elem))
					out = append(out, &mir.GetElementPtr{DestID: gepDest, Base: mir.Op(newAlloc), Offset: offset, Constant: true})
					out = append(out, &mir.Store{Address: mir.Op(gepDest), Src: ins.NewValue, Ty: *ins.ArrayTy.Elem})

					continue
				}
			}

			out = append(out, ins)
		case *mir.Assign:
			if ins.Ty.IsAggregate() {
				if addr, ok := addrOf(ins.Source); ok {
					groups.union(ins.DestID, mustOperand(ins.Source))
					out = append(out, &mir.Assign{DestID: ins.DestID, Source: addr, Ty: mir.PointerTo(ins.Ty)})

					continue
				}
			}

			out = append(out, ins)
		default:
			out = append(out, ins)
		}
	}

	b.Instructions = out
}

// copyAggregate emits a field-by-field store sequence copying src's backing
// storage into dest's, used by InsertTuple/InsertField to build the
// "functional update" copy before overwriting one slot.
func copyAggregate(fn *mir.Function, out *[]mir.Instruction, layout *mir.DataLayout, ty mir.Type, dest, src mir.Value) {
	switch ty.Kind {
	case mir.KindTuple:
		for i, elTy := range ty.Elements {
			offset := layout.TupleOffset(ty, i)
			srcGep := fn.NewValue(mir.PointerTo(elTy))
			*out = append(*out, &mir.GetElementPtr{DestID: srcGep, Base: src, Offset: offset, Constant: true})
			loadDest := fn.NewValue(elTy)
			*out = append(*out, &mir.Load{DestID: loadDest, Address: mir.Op(srcGep), Ty: elTy})
			destGep := fn.NewValue(mir.PointerTo(elTy))
			*out = append(*out, &mir.GetElementPtr{DestID: destGep, Base: dest, Offset: offset, Constant: true})
			*out = append(*out, &mir.Store{Address: mir.Op(destGep), Src: mir.Op(loadDest), Ty: elTy})
		}
	case mir.KindStruct:
		for _, f := range ty.Fields {
			offset := layout.FieldOffset(ty, f.Name)
			srcGep := fn.NewValue(mir.PointerTo(f.Type))
			*out = append(*out, &mir.GetElementPtr{DestID: srcGep, Base: src, Offset: offset, Constant: true})
			loadDest := fn.NewValue(f.Type)
			*out = append(*out, &mir.Load{DestID: loadDest, Address: mir.Op(srcGep), Ty: f.Type})
			destGep := fn.NewValue(mir.PointerTo(f.Type))
			*out = append(*out, &mir.GetElementPtr{DestID: destGep, Base: dest, Offset: offset, Constant: true})
			*out = append(*out, &mir.Store{Address: mir.Op(destGep), Src: mir.Op(loadDest), Ty: f.Type})
		}
	case mir.KindFixedArray:
		elTy := *ty.Elem
		for i := 0; i < int(ty.Size); i++ {
			offset := layout.ElementOffset(ty, i)
			srcGep := fn.NewValue(mir.PointerTo(elTy))
			*out = append(*out, &mir.GetElementPtr{DestID: srcGep, Base: src, Offset: offset, Constant: true})
			loadDest := fn.NewValue(elTy)
			*out = append(*out, &mir.Load{DestID: loadDest, Address: mir.Op(srcGep), Ty: elTy})
			destGep := fn.NewValue(mir.PointerTo(elTy))
			*out = append(*out, &mir.GetElementPtr{DestID: destGep, Base: dest, Offset: offset, Constant: true})
			*out = append(*out, &mir.Store{Address: mir.Op(destGep), Src: mir.Op(loadDest), Ty: elTy})
		}
	}
}

// aggregateTypes scans every block of fn once up front and records the MIR
// type of every value defined by an aggregate-producing instruction or an
// aggregate-typed Phi, so a use reached from any block — not just the one
// that defined it — can recover its operand's type.
func aggregateTypes(fn *mir.Function) map[mir.ValueID]mir.Type {
	types := map[mir.ValueID]mir.Type{}

	for _, b := range fn.Blocks {
		for _, phi := range b.Phis {
			if phi.Ty.IsAggregate() {
				types[phi.DestID] = phi.Ty
			}
		}

		for _, instr := range b.Instructions {
			switch ins := instr.(type) {
			case *mir.MakeTuple:
				types[ins.DestID] = ins.Ty
			case *mir.MakeStruct:
				types[ins.DestID] = ins.Ty
			case *mir.InsertTuple:
				types[ins.DestID] = ins.Ty
			case *mir.InsertField:
				types[ins.DestID] = ins.Ty
			case *mir.MakeFixedArray:
				types[ins.DestID] = mir.ArrayOf(ins.ElementTy, uint64(len(ins.Elements)))
			case *mir.ArrayInsert:
				types[ins.DestID] = ins.ArrayTy
			case *mir.Assign:
				if ins.Ty.IsAggregate() {
					types[ins.DestID] = ins.Ty
				}
			}
		}
	}

	return types
}

// aggregateTypeOf recovers the MIR type of the aggregate that produced v,
// by value id rather than by scanning a single block: LowerAggregates runs
// after Mem2Reg/SROA on already-validated MIR, so every tracked aggregate
// value has exactly one definition somewhere in the function.
func aggregateTypeOf(types map[mir.ValueID]mir.Type, v mir.Value) mir.Type {
	op, ok := v.(mir.Operand)
	if !ok {
		panic("mir: aggregateTypeOf called on a non-operand value")
	}

	ty, ok := types[op.ID]
	if !ok {
		panic("mir: aggregateTypeOf found no defining instruction for value")
	}

	return ty
}

func constIndex(v mir.Value) (int, bool) {
	lit, ok := v.(mir.Literal)
	if !ok {
		return 0, false
	}

	intLit, ok := lit.Kind.(mir.IntegerLiteral)
	if !ok {
		return 0, false
	}

	return int(intLit.Value), true
}

func mustOperand(v mir.Value) mir.ValueID {
	op, ok := v.(mir.Operand)
	if !ok {
		panic("mir: mustOperand called on a non-operand value")
	}

	return op.ID
}

// valueGroups is a union-find over ValueIDs, used to put every value an
// aggregate-typed Phi merges into one storage group ahead of the main
// lowering pass, independent of which block is visited first.
type valueGroups struct {
	parent map[mir.ValueID]mir.ValueID
}

func newValueGroups() *valueGroups {
	return &valueGroups{parent: map[mir.ValueID]mir.ValueID{}}
}

func (g *valueGroups) find(id mir.ValueID) mir.ValueID {
	p, ok := g.parent[id]
	if !ok || p == id {
		return id
	}

	root := g.find(p)
	g.parent[id] = root

	return root
}

func (g *valueGroups) union(a, b mir.ValueID) {
	ra, rb := g.find(a), g.find(b)
	if ra == rb {
		return
	}

	g.parent[ra] = rb
}
