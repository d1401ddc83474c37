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
package casm

import (
	"fmt"
	"strings"

	"github.com/cairo-m/cairom/internal/m31"
)

// Instruction is one CASM instruction word: an opcode plus its three
// operands, each a field element. Operand meaning is opcode-dependent (an
// fp-relative offset, an immediate, or unused/zero); the on-disk tuple
// form is `(opcode, a, b, c)`.
type Instruction struct {
	Opcode Opcode
	A, B, C m31.Element
}

// NewInstruction constructs an Instruction from raw operand values, wrapping
// them as M31 elements.
func NewInstruction(op Opcode, a, b, c uint64) Instruction {
	return Instruction{Opcode: op, A: m31.New(a), B: m31.New(b), C: m31.New(c)}
}

// String renders the instruction in `opcode a, b, c` form, matching the
// inline comments the original instruction stream used to document test
// programs.
func (i Instruction) String() string {
	return fmt.Sprintf("%s %s, %s, %s", i.Opcode, i.A, i.B, i.C)
}

// Words returns how many consecutive instruction slots i occupies in a
// Program's flat instruction stream (see Opcode.Width).
func (i Instruction) Words() int { return i.Opcode.Width() }

// Label names a not-yet-resolved jump or call target during code
// generation; Program.Resolve replaces every operand holding one with the
// concrete instruction-index it names.
type Label string

// PendingFixup records one operand of one instruction that still names a
// Label instead of a resolved index.
type PendingFixup struct {
	InstructionIndex int
	Operand          OperandSlot
	Target           Label
	// Relative marks a fixup whose operand wants target-InstructionIndex
	// (the form JnzFpImm/JmpRel* expect) rather than the target's raw
	// instruction index.
	Relative bool
}

// OperandSlot names which of an instruction's three operand fields a fixup
// applies to.
type OperandSlot int

const (
	OperandA OperandSlot = iota
	OperandB
	OperandC
)

// Program is the flat, fully-resolved instruction stream the code generator
// produces and the VM executes: the CASM analogue of a linked executable.
// It is loaded into VM memory starting at address 0; the entry call's
// argument/return slots and (pc, fp) link start just past the last
// instruction word, with fp just above them.
type Program struct {
	Instructions []Instruction
	// EntryLabel names the function the VM should call first (normally
	// "main"); Labels maps every function's label to its first
	// instruction's index once fully linked.
	EntryLabel Label
	Labels     map[Label]int
}

// NewProgram constructs an empty, unresolved Program.
func NewProgram() *Program {
	return &Program{Labels: map[Label]int{}}
}

// Len returns the number of instruction words, i.e. the VM's final_pc.
func (p *Program) Len() int { return len(p.Instructions) }

// Append adds instr to the end of the stream and returns the index of its
// first word.
func (p *Program) Append(instr Instruction) int {
	idx := len(p.Instructions)
	p.Instructions = append(p.Instructions, instr)

	return idx
}

// MarkLabel records that label names the next instruction to be appended.
func (p *Program) MarkLabel(label Label) {
	p.Labels[label] = len(p.Instructions)
}

// String renders the whole program one instruction per line, prefixed with
// its index, for `cairom asm`-style dumps.
func (p *Program) String() string {
	var b strings.Builder

	for i, instr := range p.Instructions {
		fmt.Fprintf(&b, "%4d: %s\n", i, instr)
	}

	return b.String()
}

// Resolve replaces every fixup's operand with the concrete instruction
// index its Label now maps to. Returns an error naming the first unresolved
// label encountered (a label referenced but never marked is an internal
// code generation error, not a user-facing one: the generator is supposed
// to have emitted every function it refers to).
func (p *Program) Resolve(fixups []PendingFixup) error {
	for _, f := range fixups {
		target, ok := p.Labels[f.Target]
		if !ok {
			return fmt.Errorf("casm: unresolved label %q referenced by instruction %d", f.Target, f.InstructionIndex)
		}

		instr := &p.Instructions[f.InstructionIndex]

		var value m31.Element
		if f.Relative {
			value = m31.NewFromInt64(int64(target) - int64(f.InstructionIndex))
		} else {
			value = m31.New(uint64(target))
		}

		switch f.Operand {
		case OperandA:
			instr.A = value
		case OperandB:
			instr.B = value
		case OperandC:
			instr.C = value
		}
	}

	return nil
}
