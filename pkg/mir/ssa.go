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

import "github.com/bits-and-blooms/bitset"

// VarKey names one source-level variable (a semantic.DefinitionID, widened
// here so pkg/mir has no import-time dependency on pkg/semantic; Builder
// does the narrow cast at the call site).
type VarKey uint32

// ssaBuilder implements the sealed-block, lazy-phi SSA construction
// algorithm: writes are recorded per (variable, block); reads walk sealed
// predecessors eagerly and park an incomplete phi at the join point
// otherwise, to be completed once the block's predecessor set is known.
type ssaBuilder struct {
	fn *Function

	currentDef map[VarKey]map[BlockID]Value
	varType    map[VarKey]Type

	sealed *bitset.BitSet

	// incompletePhis holds, per not-yet-sealed block, the phi destination
	// created for each variable read before the block's predecessors were
	// final. sealBlock drains these by filling their operands.
	incompletePhis map[BlockID]map[VarKey]ValueID
	// phiVar maps a phi's destination back to the variable it was created
	// for, needed when draining incompletePhis and when collapsing a
	// trivial phi's current-def entry.
	phiVar map[ValueID]VarKey
}

func newSSABuilder(fn *Function) *ssaBuilder {
	return &ssaBuilder{
		fn:             fn,
		currentDef:     map[VarKey]map[BlockID]Value{},
		varType:        map[VarKey]Type{},
		sealed:         bitset.New(0),
		incompletePhis: map[BlockID]map[VarKey]ValueID{},
		phiVar:         map[ValueID]VarKey{},
	}
}

func (s *ssaBuilder) setVarType(v VarKey, ty Type) {
	if _, ok := s.varType[v]; !ok {
		s.varType[v] = ty
	}
}

func (s *ssaBuilder) isSealed(block BlockID) bool { return s.sealed.Test(uint(block)) }

// writeVariable records that v holds val as of the end of block.
func (s *ssaBuilder) writeVariable(v VarKey, block BlockID, val Value) {
	m, ok := s.currentDef[v]
	if !ok {
		m = map[BlockID]Value{}
		s.currentDef[v] = m
	}

	m[block] = val
}

// readVariable resolves v's current value at block, inserting or completing
// phis as needed per the sealed-block protocol.
func (s *ssaBuilder) readVariable(v VarKey, block BlockID, ty Type) Value {
	s.setVarType(v, ty)

	if val, ok := s.currentDef[v][block]; ok {
		return val
	}

	return s.readVariableRecursive(v, block, ty)
}

func (s *ssaBuilder) readVariableRecursive(v VarKey, block BlockID, ty Type) Value {
	b := s.fn.Block(block)

	var val Value

	switch {
	case !s.isSealed(block):
		// Block not yet sealed: park an incomplete phi, to be filled when
		// seal_block later learns the final predecessor set.
		dest := s.fn.NewValue(ty)
		phi := &Phi{DestID: dest, Ty: ty}
		s.fn.AppendPhi(block, phi)
		s.phiVar[dest] = v

		if s.incompletePhis[block] == nil {
			s.incompletePhis[block] = map[VarKey]ValueID{}
		}

		s.incompletePhis[block][v] = dest
		val = Op(dest)
	case len(b.Predecessors) == 1:
		val = s.readVariable(v, b.Predecessors[0], ty)
	default:
		dest := s.fn.NewValue(ty)
		phi := &Phi{DestID: dest, Ty: ty}
		s.fn.AppendPhi(block, phi)
		s.phiVar[dest] = v
		s.writeVariable(v, block, Op(dest))
		s.addPhiOperands(v, dest, block, ty)
		val = s.tryRemoveTrivialPhi(dest)
	}

	s.writeVariable(v, block, val)

	return val
}

func (s *ssaBuilder) findPhi(dest ValueID) *Phi {
	for _, b := range s.fn.Blocks {
		for _, p := range b.Phis {
			if p.DestID == dest {
				return p
			}
		}
	}

	return nil
}

func (s *ssaBuilder) addPhiOperands(v VarKey, phiDest ValueID, block BlockID, ty Type) {
	phi := s.findPhi(phiDest)
	if phi == nil {
		return
	}

	for _, pred := range s.fn.Block(block).Predecessors {
		phi.Sources = append(phi.Sources, PhiSource{Predecessor: pred, Value: s.readVariable(v, pred, ty)})
	}
}

// tryRemoveTrivialPhi collapses a phi whose operands (ignoring references to
// itself) are all the same value into that value, rewriting every use of
// the phi's destination in the function built so far.
func (s *ssaBuilder) tryRemoveTrivialPhi(phiDest ValueID) Value {
	phi := s.findPhi(phiDest)
	if phi == nil {
		return Op(phiDest)
	}

	var same Value

	for _, src := range phi.Sources {
		if op, ok := src.Value.(Operand); ok && op.ID == phiDest {
			continue // self-reference, ignored
		}

		if same != nil && !valuesEqual(same, src.Value) {
			return Op(phiDest) // genuinely merges distinct values
		}

		same = src.Value
	}

	if same == nil {
		same = Error{} // unreachable block; operand set was empty or self-only
	}

	removePhi(s.fn, phiDest)
	ReplaceAllUses(s.fn, phiDest, same)

	if v, ok := s.phiVar[phiDest]; ok {
		for block, val := range s.currentDef[v] {
			if op, ok := val.(Operand); ok && op.ID == phiDest {
				s.currentDef[v][block] = same
			}
		}
	}

	return same
}

func valuesEqual(a, b Value) bool {
	ao, aok := a.(Operand)
	bo, bok := b.(Operand)

	if aok && bok {
		return ao.ID == bo.ID
	}

	return false
}

func removePhi(fn *Function, dest ValueID) {
	for _, b := range fn.Blocks {
		for i, p := range b.Phis {
			if p.DestID == dest {
				b.Phis = append(b.Phis[:i], b.Phis[i+1:]...)
				return
			}
		}
	}
}

// sealBlock marks block sealed (its predecessor set is now final) and
// completes every phi that was parked incomplete while it waited.
func (s *ssaBuilder) sealBlock(block BlockID) {
	for v, dest := range s.incompletePhis[block] {
		s.addPhiOperands(v, dest, block, s.varType[v])
		s.tryRemoveTrivialPhi(dest)
	}

	delete(s.incompletePhis, block)
	s.sealed.Set(uint(block))
}

// ReplaceAllUses rewrites every operand in fn equal to Operand{old} to
// newVal. Shared by the SSA builder's trivial-phi collapse and by the
// optimization passes in pkg/mir/passes that forward stores to loads.
func ReplaceAllUses(fn *Function, old ValueID, newVal Value) {
	sub := func(v Value) Value {
		if op, ok := v.(Operand); ok && op.ID == old {
			return newVal
		}

		return v
	}

	for _, b := range fn.Blocks {
		for _, p := range b.Phis {
			for i := range p.Sources {
				p.Sources[i].Value = sub(p.Sources[i].Value)
			}
		}

		for _, instr := range b.Instructions {
			replaceOperandsIn(instr, sub)
		}

		if b.Terminator != nil {
			replaceTerminatorOperandsIn(b.Terminator, sub)
		}
	}
}

// WalkOperands calls visit once for every operand Value referenced anywhere
// in fn: phi sources, instruction operands, and terminator operands. Used
// by the cleanup pass to compute liveness without duplicating the per-
// instruction operand layout that ReplaceAllUses already knows.
func WalkOperands(fn *Function, visit func(Value)) {
	record := func(v Value) Value {
		visit(v)
		return v
	}

	for _, b := range fn.Blocks {
		for _, p := range b.Phis {
			for _, s := range p.Sources {
				visit(s.Value)
			}
		}

		for _, instr := range b.Instructions {
			replaceOperandsIn(instr, record)
		}

		if b.Terminator != nil {
			replaceTerminatorOperandsIn(b.Terminator, record)
		}
	}
}

func replaceOperandsIn(instr Instruction, sub func(Value) Value) {
	switch ins := instr.(type) {
	case *BinaryOp:
		ins.Left, ins.Right = sub(ins.Left), sub(ins.Right)
	case *UnaryOp:
		ins.Source = sub(ins.Source)
	case *Cast:
		ins.Source = sub(ins.Source)
	case *Assign:
		ins.Source = sub(ins.Source)
	case *GetElementPtr:
		ins.Base = sub(ins.Base)
	case *Load:
		ins.Address = sub(ins.Address)
	case *Store:
		ins.Address, ins.Src = sub(ins.Address), sub(ins.Src)
	case *AddressOf:
		ins.Operand = sub(ins.Operand)
	case *MakeTuple:
		for i := range ins.Elements {
			ins.Elements[i] = sub(ins.Elements[i])
		}
	case *MakeStruct:
		for i := range ins.Fields {
			ins.Fields[i].Value = sub(ins.Fields[i].Value)
		}
	case *ExtractTupleElement:
		ins.Tuple = sub(ins.Tuple)
	case *ExtractStructField:
		ins.StructVal = sub(ins.StructVal)
	case *InsertTuple:
		ins.TupleVal, ins.NewValue = sub(ins.TupleVal), sub(ins.NewValue)
	case *InsertField:
		ins.StructVal, ins.NewValue = sub(ins.StructVal), sub(ins.NewValue)
	case *MakeFixedArray:
		for i := range ins.Elements {
			ins.Elements[i] = sub(ins.Elements[i])
		}
	case *ArrayIndex:
		ins.Array, ins.Index = sub(ins.Array), sub(ins.Index)
	case *ArrayInsert:
		ins.Array, ins.Index, ins.NewValue = sub(ins.Array), sub(ins.Index), sub(ins.NewValue)
	case *Call:
		for i := range ins.Args {
			ins.Args[i] = sub(ins.Args[i])
		}
	case *VoidCall:
		for i := range ins.Args {
			ins.Args[i] = sub(ins.Args[i])
		}
	case *Debug:
		for i := range ins.Values {
			ins.Values[i] = sub(ins.Values[i])
		}
	}
}

func replaceTerminatorOperandsIn(term Terminator, sub func(Value) Value) {
	switch t := term.(type) {
	case *Return:
		for i := range t.Values {
			t.Values[i] = sub(t.Values[i])
		}
	case *If:
		t.Condition = sub(t.Condition)
	case *BranchCmp:
		t.Left, t.Right = sub(t.Left), sub(t.Right)
	}
}
