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

// Package casm defines the fixed CASM opcode catalog and the flat
// instruction/program representation the code generator emits and the VM
// executes.
package casm

import "fmt"

// Opcode is one member of the fixed 32-entry CASM instruction catalog. Every
// opcode addresses operands either as an fp-relative offset, an fp-relative
// offset plus an immediate, or a "double deref" (the value at [fp+off] is
// itself treated as a base address for a further +imm offset) — the two
// addressing forms the code generator's opcode-selection step folds every
// MIR addressing pattern down to.
type Opcode uint32

const (
	// Store* write a value to [fp+dst]; the Fp/Imm suffix combination names
	// where the two operands come from.
	StoreAddFpFp Opcode = iota
	StoreAddFpImm
	StoreSubFpFp
	StoreSubFpImm
	StoreMulFpFp
	StoreMulFpImm
	StoreDivFpFp
	StoreDivFpImm
	StoreDerefFp
	StoreDoubleDerefFp
	StoreImm

	// Jnz* jump relative to pc by their target operand when [fp+cond] is
	// nonzero, and fall through to the next instruction otherwise.
	JnzFpFp
	JnzFpImm

	// JmpAbs*/JmpRel* unconditionally redirect pc, either to an absolute
	// target or relative to the current pc, computed from the named operand
	// forms.
	JmpAbsAddFpFp
	JmpAbsAddFpImm
	JmpAbsDerefFp
	JmpAbsDoubleDerefFp
	JmpAbsImm
	JmpAbsMulFpFp
	JmpAbsMulFpImm
	JmpRelAddFpFp
	JmpRelAddFpImm
	JmpRelDerefFp
	JmpRelDoubleDerefFp
	JmpRelImm
	JmpRelMulFpFp
	JmpRelMulFpImm

	// Call*/Ret implement the calling convention: Call's first operand is
	// the callee's extra frame size (argument + return slots), its second
	// the target; it pushes a (pc, fp) link pair above those slots and
	// sets fp past it. Ret restores both from the two words above the
	// callee's own frame.
	CallAbsFp
	CallAbsImm
	CallRelFp
	CallRelImm
	Ret

	numOpcodes
)

// NumOpcodes is the size of the fixed catalog (32, matching the prover's
// opcode component count).
const NumOpcodes = int(numOpcodes)

var opcodeNames = [numOpcodes]string{
	StoreAddFpFp:        "store_add_fp_fp",
	StoreAddFpImm:       "store_add_fp_imm",
	StoreSubFpFp:        "store_sub_fp_fp",
	StoreSubFpImm:       "store_sub_fp_imm",
	StoreMulFpFp:        "store_mul_fp_fp",
	StoreMulFpImm:       "store_mul_fp_imm",
	StoreDivFpFp:        "store_div_fp_fp",
	StoreDivFpImm:       "store_div_fp_imm",
	StoreDerefFp:        "store_deref_fp",
	StoreDoubleDerefFp:  "store_double_deref_fp",
	StoreImm:            "store_imm",
	JnzFpFp:             "jnz_fp_fp",
	JnzFpImm:            "jnz_fp_imm",
	JmpAbsAddFpFp:       "jmp_abs_add_fp_fp",
	JmpAbsAddFpImm:      "jmp_abs_add_fp_imm",
	JmpAbsDerefFp:       "jmp_abs_deref_fp",
	JmpAbsDoubleDerefFp: "jmp_abs_double_deref_fp",
	JmpAbsImm:           "jmp_abs_imm",
	JmpAbsMulFpFp:       "jmp_abs_mul_fp_fp",
	JmpAbsMulFpImm:      "jmp_abs_mul_fp_imm",
	JmpRelAddFpFp:       "jmp_rel_add_fp_fp",
	JmpRelAddFpImm:      "jmp_rel_add_fp_imm",
	JmpRelDerefFp:       "jmp_rel_deref_fp",
	JmpRelDoubleDerefFp: "jmp_rel_double_deref_fp",
	JmpRelImm:           "jmp_rel_imm",
	JmpRelMulFpFp:       "jmp_rel_mul_fp_fp",
	JmpRelMulFpImm:      "jmp_rel_mul_fp_imm",
	CallAbsFp:           "call_abs_fp",
	CallAbsImm:          "call_abs_imm",
	CallRelFp:           "call_rel_fp",
	CallRelImm:          "call_rel_imm",
	Ret:                 "ret",
}

// String implements fmt.Stringer.
func (op Opcode) String() string {
	if int(op) < 0 || int(op) >= NumOpcodes {
		return fmt.Sprintf("Opcode(%d)", uint32(op))
	}

	return opcodeNames[op]
}

// IsCall reports whether op is one of the Call variants.
func (op Opcode) IsCall() bool {
	switch op {
	case CallAbsFp, CallAbsImm, CallRelFp, CallRelImm:
		return true
	default:
		return false
	}
}

// IsJump reports whether op unconditionally redirects pc.
func (op Opcode) IsJump() bool {
	switch op {
	case JmpAbsAddFpFp, JmpAbsAddFpImm, JmpAbsDerefFp, JmpAbsDoubleDerefFp,
		JmpAbsImm, JmpAbsMulFpFp, JmpAbsMulFpImm,
		JmpRelAddFpFp, JmpRelAddFpImm, JmpRelDerefFp, JmpRelDoubleDerefFp,
		JmpRelImm, JmpRelMulFpFp, JmpRelMulFpImm:
		return true
	default:
		return false
	}
}

// IsConditionalJump reports whether op is one of the Jnz family.
func (op Opcode) IsConditionalJump() bool {
	return op == JnzFpFp || op == JnzFpImm
}

// Width reports how many instruction words op occupies. Every opcode in the
// catalog, including the Call family, is a single three-operand word: a
// Call's frame size travels in its own first operand rather than a second
// instruction word.
func (op Opcode) Width() int {
	return 1
}

var opcodeByName map[string]Opcode

func init() {
	opcodeByName = make(map[string]Opcode, NumOpcodes)
	for op, name := range opcodeNames {
		opcodeByName[name] = Opcode(op)
	}
}

// ParseOpcode looks up an Opcode by its String() name, the inverse used by
// Program's JSON codec to read a `program.json` instruction stream back in.
func ParseOpcode(name string) (Opcode, error) {
	op, ok := opcodeByName[name]
	if !ok {
		return 0, fmt.Errorf("casm: unknown opcode %q", name)
	}

	return op, nil
}
