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
package codegen

import (
	"fmt"

	"github.com/cairo-m/cairom/internal/m31"
	"github.com/cairo-m/cairom/pkg/casm"
	"github.com/cairo-m/cairom/pkg/mir"
)

// operand is a resolved MIR value: either an fp-relative offset (for an
// Operand) or an immediate (for a Literal). off is a plain slot index;
// elem() converts it to the m31 value an Fp-addressing instruction operand
// wants.
type operand struct {
	imm    bool
	off    int
	immVal m31.Element
}

func fpOperand(off int) operand { return operand{off: off} }

func (o operand) elem() m31.Element { return m31.NewFromInt64(int64(o.off)) }

// at returns the operand for the slot i words past o (for walking a
// multi-slot value one word at a time).
func (o operand) at(i int) operand { return operand{off: o.off + i} }

func (g *funcGen) resolve(v mir.Value) operand {
	switch val := v.(type) {
	case mir.Operand:
		return fpOperand(g.frame.SlotOf(val.ID, g.fn.TypeOf(val.ID)))
	case mir.Literal:
		return operand{imm: true, immVal: literalValue(val.Kind)}
	default:
		panic(fmt.Sprintf("codegen: unresolved value %v reached codegen", v))
	}
}

func literalValue(kind mir.LiteralKind) m31.Element {
	switch k := kind.(type) {
	case mir.IntegerLiteral:
		return m31.New(k.Value)
	case mir.BooleanLiteral:
		if k.Value {
			return m31.One
		}

		return m31.Zero
	case mir.UnitLiteral:
		return m31.Zero
	default:
		panic(fmt.Sprintf("codegen: unhandled literal kind %T", kind))
	}
}

// storeFpFp emits `[fp+dst] = [fp+a] op [fp+b]`, selecting the FpImm
// variant when one side is a compile-time literal. op's two opcodes are
// (fpFp, fpImm); Sub/Div are not commutative, so a literal left operand is
// first materialized into a scratch slot rather than silently swapped.
type binOpcodes struct {
	fpFp, fpImm casm.Opcode
	commutative bool
}

var (
	addOps = binOpcodes{casm.StoreAddFpFp, casm.StoreAddFpImm, true}
	subOps = binOpcodes{casm.StoreSubFpFp, casm.StoreSubFpImm, false}
	mulOps = binOpcodes{casm.StoreMulFpFp, casm.StoreMulFpImm, true}
	divOps = binOpcodes{casm.StoreDivFpFp, casm.StoreDivFpImm, false}
)

func (g *funcGen) emitFelt2(ops binOpcodes, left, right operand, dst int) {
	l, r := left, right

	if l.imm && !r.imm && ops.commutative {
		l, r = r, l
	}

	switch {
	case !l.imm && r.imm:
		g.emit(ops.fpImm, l.elem(), r.immVal, fpOperand(dst).elem())
	case !l.imm && !r.imm:
		g.emit(ops.fpFp, l.elem(), r.elem(), fpOperand(dst).elem())
	case l.imm && r.imm:
		// Both sides constant: stage the immediate left operand through a
		// scratch slot, since every Store*FpImm form reads its non-literal
		// operand from memory.
		scratch := g.frame.Reserve(1)
		g.emit(casm.StoreImm, l.immVal, m31.Zero, fpOperand(scratch).elem())
		g.emit(ops.fpImm, fpOperand(scratch).elem(), r.immVal, fpOperand(dst).elem())
	default: // l.imm && !r.imm, non-commutative: same scratch staging
		scratch := g.frame.Reserve(1)
		g.emit(casm.StoreImm, l.immVal, m31.Zero, fpOperand(scratch).elem())
		g.emit(ops.fpFp, fpOperand(scratch).elem(), r.elem(), fpOperand(dst).elem())
	}
}

// emitZeroTest materializes a 0/1 result at dst: 1 if the value at valueOff
// is zero (want==true, i.e. Eq) or nonzero (want==false, i.e. Neq).
func (g *funcGen) emitZeroTest(valueOff operand, want bool, dst int) {
	nonzeroLabel := g.scratch.next()
	doneLabel := g.scratch.next()

	g.emitJnz(valueOff.elem(), nonzeroLabel)

	// valueOff == 0 here (Jnz above only jumps away on nonzero).
	g.emitBool(want, dst)
	g.emitJmp(doneLabel)

	g.markLabel(nonzeroLabel)
	g.emitBool(!want, dst)

	g.markLabel(doneLabel)
}

func (g *funcGen) emitBool(v bool, dst int) {
	val := m31.Zero
	if v {
		val = m31.One
	}

	g.emit(casm.StoreImm, val, m31.Zero, fpOperand(dst).elem())
}

// emitLogicalAnd/Or implement bool && / || arithmetically: operands are
// always canonical 0/1, so a*b is AND and a+b-a*b is OR.
func (g *funcGen) emitLogicalAnd(left, right operand, dst int) {
	g.emitFelt2(mulOps, left, right, dst)
}

func (g *funcGen) emitLogicalOr(left, right operand, dst int) {
	scratch := g.frame.Reserve(1)
	g.emitFelt2(mulOps, left, right, scratch)
	sum := g.frame.Reserve(1)
	g.emitFelt2(addOps, left, right, sum)
	g.emitFelt2(subOps, fpOperand(sum), fpOperand(scratch), dst)
}

// emitNeg computes -x as x * -1.
func (g *funcGen) emitNeg(src operand, dst int) {
	negOne := m31.NewFromInt64(-1)
	if src.imm {
		g.emit(casm.StoreImm, src.immVal.Mul(negOne), m31.Zero, fpOperand(dst).elem())
		return
	}

	g.emit(casm.StoreMulFpImm, src.elem(), negOne, fpOperand(dst).elem())
}

// emitNot computes !x as 1 - x for canonical 0/1 x.
func (g *funcGen) emitNot(src operand, dst int) {
	if src.imm {
		g.emit(casm.StoreImm, m31.One.Sub(src.immVal), m31.Zero, fpOperand(dst).elem())
		return
	}

	scratch := g.frame.Reserve(1)
	g.emitNeg(src, scratch)
	g.emit(casm.StoreAddFpImm, fpOperand(scratch).elem(), m31.One, fpOperand(dst).elem())
}
