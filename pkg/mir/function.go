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

// Block is one basic block: a phi prefix, a body of non-phi instructions,
// and exactly one terminator once sealed by the builder.
type Block struct {
	ID           BlockID
	Phis         []*Phi
	Instructions []Instruction
	Terminator   Terminator
	// Predecessors is maintained incrementally as Jump/If/BranchCmp
	// terminators are attached elsewhere; it is the set the SSA builder's
	// read_variable/seal_block consult.
	Predecessors []BlockID
}

// AddPredecessor records that from can transfer control into this block,
// if it is not already recorded.
func (b *Block) AddPredecessor(from BlockID) {
	for _, p := range b.Predecessors {
		if p == from {
			return
		}
	}

	b.Predecessors = append(b.Predecessors, from)
}

// Function is one MIR function: an owned, mutable graph of blocks. Passes
// take a *Function and return it transformed in place.
type Function struct {
	Name       string
	Params     []ValueID
	ParamTypes []Type
	ReturnType []Type

	Blocks  []*Block
	EntryID BlockID

	// types maps every value-id ever defined (params, instruction results,
	// phis) to its MIR type.
	types map[ValueID]Type

	nextValue ValueID
	nextBlock BlockID
}

// NewFunction constructs an empty function with one entry block.
func NewFunction(name string, paramTypes, returnTypes []Type) *Function {
	f := &Function{
		Name:       name,
		ParamTypes: paramTypes,
		ReturnType: returnTypes,
		types:      map[ValueID]Type{},
	}

	entry := f.NewBlock()
	f.EntryID = entry.ID

	for _, pt := range paramTypes {
		id := f.NewValue(pt)
		f.Params = append(f.Params, id)
	}

	return f
}

// NewValue allocates a fresh ValueID of the given type. Every call returns
// a distinct id; this is the sole place value-ids are minted, preserving
// the single-assignment invariant.
func (f *Function) NewValue(ty Type) ValueID {
	id := f.nextValue
	f.nextValue++
	f.types[id] = ty

	return id
}

// TypeOf returns the MIR type recorded for id.
func (f *Function) TypeOf(id ValueID) Type { return f.types[id] }

// NewBlock allocates and appends a fresh, initially terminator-less block.
func (f *Function) NewBlock() *Block {
	b := &Block{ID: f.nextBlock}
	f.nextBlock++
	f.Blocks = append(f.Blocks, b)

	return b
}

// Block looks up a block by id, panicking (an internal-compiler-error
// condition) if it does not exist: every BlockID in a well-formed function
// was minted by NewBlock on this same function.
func (f *Function) Block(id BlockID) *Block {
	for _, b := range f.Blocks {
		if b.ID == id {
			return b
		}
	}

	panic(fmt.Sprintf("mir: unknown block %d in function %q", id, f.Name))
}

// AppendInstruction appends instr to block and records its destination's
// type, if any.
func (f *Function) AppendInstruction(block BlockID, instr Instruction, ty Type) {
	b := f.Block(block)
	if id, ok := instr.Dest(); ok {
		f.types[id] = ty
	}

	b.Instructions = append(b.Instructions, instr)
}

// AppendPhi appends a phi to block's phi prefix.
func (f *Function) AppendPhi(block BlockID, phi *Phi) {
	b := f.Block(block)
	f.types[phi.DestID] = phi.Ty
	b.Phis = append(b.Phis, phi)
}

// SetTerminator attaches term to block and wires predecessor links on every
// successor.
func (f *Function) SetTerminator(block BlockID, term Terminator) {
	b := f.Block(block)
	b.Terminator = term

	for _, succ := range term.Successors() {
		f.Block(succ).AddPredecessor(block)
	}
}

// ValidateFunction checks the structural invariants every pass must
// preserve: one terminator per block, phis-before-instructions, and phi
// operand counts matching predecessor counts. It panics (an
// internal-compiler-error condition: see pkg/mir.Builder's doc comment) on
// violation rather than returning an error, since a broken invariant here
// means an earlier pass has a bug, not that the input program is invalid.
func ValidateFunction(f *Function) {
	for _, b := range f.Blocks {
		if b.Terminator == nil {
			panic(fmt.Sprintf("mir: block %d of %q has no terminator", b.ID, f.Name))
		}

		for _, phi := range b.Phis {
			if len(phi.Sources) != len(b.Predecessors) {
				panic(fmt.Sprintf("mir: phi v%d in block %d of %q has %d operands for %d predecessors",
					phi.DestID, b.ID, f.Name, len(phi.Sources), len(b.Predecessors)))
			}
		}
	}
}
