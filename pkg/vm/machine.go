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
package vm

import (
	"fmt"

	"github.com/cairo-m/cairom/internal/m31"
	"github.com/cairo-m/cairom/pkg/casm"
)

// ExecutionError wraps a failure raised while stepping a specific
// instruction, naming where in the program it occurred.
type ExecutionError struct {
	PC     uint32
	Opcode casm.Opcode
	Err    error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("vm: pc %d (%s): %v", e.PC, e.Opcode, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// DivisionByZeroError is raised by a Store*Div instruction whose divisor is
// the field's zero element.
type DivisionByZeroError struct{}

func (e *DivisionByZeroError) Error() string { return "vm: division by zero" }

// Machine executes a resolved casm.Program against a Memory, tracking pc/fp
// registers and recording the step and memory-access trace as it runs.
type Machine struct {
	Program *casm.Program
	Memory  *Memory

	PC    uint32
	FP    m31.Element
	clock uint32

	Trace Trace
}

// New constructs a Machine ready to Run prog.
func New(prog *casm.Program) *Machine {
	return &Machine{Program: prog, Memory: NewMemory()}
}

// Run sets up the two-word calling convention for a synthetic call into
// prog.EntryLabel with args, executes until the machine's Ret unwinds past
// the end of the program, and returns the numReturns values the entry
// function left in its return slots.
//
// The frame is set up exactly as a real Call would: fp is advanced past
// len(args)+numReturns argument/return slots plus the two-word (pc, fp)
// link, with the link's saved pc set to the program's length. Because
// nothing in the program ever jumps to an instruction index equal to its
// own length, the entry function's own Ret naturally halts the machine
// instead of transferring control anywhere real.
func (m *Machine) Run(args []m31.Element, numReturns int) ([]m31.Element, error) {
	entryPC, ok := m.Program.Labels[m.Program.EntryLabel]
	if !ok {
		return nil, fmt.Errorf("vm: entry label %q not found in program", m.Program.EntryLabel)
	}

	base := uint32(m.Program.Len())
	extra := uint32(len(args) + numReturns)
	fp := m31.New(uint64(base + extra + 2))

	m.FP = fp
	m.PC = entryPC

	m.storeAbs(fp.Sub(m31.New(2)).ToUint32(), m31.New(uint64(base)))
	m.storeAbs(fp.Sub(m31.New(1)).ToUint32(), fp)

	argBase := fp.Sub(m31.New(uint64(extra + 2)))
	for i, a := range args {
		m.storeAbs(argBase.Add(m31.New(uint64(i))).ToUint32(), a)
	}

	for m.PC != base {
		if err := m.Step(); err != nil {
			return nil, err
		}
	}

	retBase := fp.Sub(m31.New(uint64(numReturns + 2)))
	returns := make([]m31.Element, numReturns)

	for j := 0; j < numReturns; j++ {
		val, err := m.loadAbs(retBase.Add(m31.New(uint64(j))).ToUint32())
		if err != nil {
			return nil, err
		}

		returns[j] = val
	}

	m.Trace.Returns = returns

	return returns, nil
}

// Step fetches and executes the instruction at PC, advancing PC (or
// replacing it, for jumps and calls) and FP (for calls and returns).
func (m *Machine) Step() error {
	if int(m.PC) >= m.Program.Len() {
		return fmt.Errorf("vm: pc %d out of bounds (program has %d instructions)", m.PC, m.Program.Len())
	}

	instr := m.Program.Instructions[m.PC]
	m.Trace.recordStep(TraceEntry{PC: m.PC, FP: m.FP, Instruction: instr})

	next := m.PC + uint32(instr.Words())
	a, b, c := instr.A, instr.B, instr.C

	if err := m.execute(instr.Opcode, a, b, c, next); err != nil {
		return &ExecutionError{PC: m.PC, Opcode: instr.Opcode, Err: err}
	}

	return nil
}

//nolint:gocyclo // one dispatch arm per catalog opcode; splitting it obscures the direct opcode-to-arm mapping.
func (m *Machine) execute(op casm.Opcode, a, b, c m31.Element, next uint32) error {
	switch op {
	case casm.StoreAddFpFp:
		return m.storeBinFpFp(a, b, c, m31.Element.Add, next)
	case casm.StoreAddFpImm:
		return m.storeBinFpImm(a, b, c, m31.Element.Add, next)
	case casm.StoreSubFpFp:
		return m.storeBinFpFp(a, b, c, m31.Element.Sub, next)
	case casm.StoreSubFpImm:
		return m.storeBinFpImm(a, b, c, m31.Element.Sub, next)
	case casm.StoreMulFpFp:
		return m.storeBinFpFp(a, b, c, m31.Element.Mul, next)
	case casm.StoreMulFpImm:
		return m.storeBinFpImm(a, b, c, m31.Element.Mul, next)
	case casm.StoreDivFpFp:
		return m.storeDivFpFp(a, b, c, next)
	case casm.StoreDivFpImm:
		return m.storeDivFpImm(a, b, c, next)
	case casm.StoreDerefFp:
		val, err := m.load(a)
		if err != nil {
			return err
		}

		m.store(c, val)
		m.PC = next

		return nil
	case casm.StoreDoubleDerefFp:
		val, err := m.doubleDeref(a, b)
		if err != nil {
			return err
		}

		m.store(c, val)
		m.PC = next

		return nil
	case casm.StoreImm:
		m.store(c, a)
		m.PC = next

		return nil
	case casm.JnzFpFp:
		return m.jnz(a, func() (m31.Element, error) { return m.load(b) }, next)
	case casm.JnzFpImm:
		return m.jnz(a, func() (m31.Element, error) { return b, nil }, next)
	case casm.JmpAbsAddFpFp:
		return m.jmpAbs(func() (m31.Element, error) { return m.binFpFp(a, b, m31.Element.Add) })
	case casm.JmpAbsAddFpImm:
		return m.jmpAbs(func() (m31.Element, error) { return m.binFpImm(a, b, m31.Element.Add) })
	case casm.JmpAbsDerefFp:
		return m.jmpAbs(func() (m31.Element, error) { return m.load(a) })
	case casm.JmpAbsDoubleDerefFp:
		return m.jmpAbs(func() (m31.Element, error) { return m.doubleDeref(a, b) })
	case casm.JmpAbsImm:
		m.PC = a.ToUint32()
		return nil
	case casm.JmpAbsMulFpFp:
		return m.jmpAbs(func() (m31.Element, error) { return m.binFpFp(a, b, m31.Element.Mul) })
	case casm.JmpAbsMulFpImm:
		return m.jmpAbs(func() (m31.Element, error) { return m.binFpImm(a, b, m31.Element.Mul) })
	case casm.JmpRelAddFpFp:
		return m.jmpRel(func() (m31.Element, error) { return m.binFpFp(a, b, m31.Element.Add) })
	case casm.JmpRelAddFpImm:
		return m.jmpRel(func() (m31.Element, error) { return m.binFpImm(a, b, m31.Element.Add) })
	case casm.JmpRelDerefFp:
		return m.jmpRel(func() (m31.Element, error) { return m.load(a) })
	case casm.JmpRelDoubleDerefFp:
		return m.jmpRel(func() (m31.Element, error) { return m.doubleDeref(a, b) })
	case casm.JmpRelImm:
		m.PC = uint32(int64(m.PC) + signedDelta(a))
		return nil
	case casm.JmpRelMulFpFp:
		return m.jmpRel(func() (m31.Element, error) { return m.binFpFp(a, b, m31.Element.Mul) })
	case casm.JmpRelMulFpImm:
		return m.jmpRel(func() (m31.Element, error) { return m.binFpImm(a, b, m31.Element.Mul) })
	case casm.CallAbsFp:
		target, err := m.load(b)
		if err != nil {
			return err
		}

		m.call(a, target.ToUint32(), next)

		return nil
	case casm.CallAbsImm:
		m.call(a, b.ToUint32(), next)
		return nil
	case casm.CallRelFp:
		target, err := m.load(b)
		if err != nil {
			return err
		}

		m.call(a, uint32(int64(m.PC)+signedDelta(target)), next)

		return nil
	case casm.CallRelImm:
		m.call(a, uint32(int64(m.PC)+signedDelta(b)), next)
		return nil
	case casm.Ret:
		return m.ret()
	default:
		return fmt.Errorf("vm: unhandled opcode %s", op)
	}
}

// binOp is an internal-arithmetic dispatch, matching m31.Element's own
// binary method signatures.
type binOp func(m31.Element, m31.Element) m31.Element

func (m *Machine) storeBinFpFp(a, b, c m31.Element, op binOp, next uint32) error {
	val, err := m.binFpFp(a, b, op)
	if err != nil {
		return err
	}

	m.store(c, val)
	m.PC = next

	return nil
}

func (m *Machine) storeBinFpImm(a, b, c m31.Element, op binOp, next uint32) error {
	val, err := m.binFpImm(a, b, op)
	if err != nil {
		return err
	}

	m.store(c, val)
	m.PC = next

	return nil
}

func (m *Machine) binFpFp(a, b m31.Element, op binOp) (m31.Element, error) {
	lhs, err := m.load(a)
	if err != nil {
		return m31.Zero, err
	}

	rhs, err := m.load(b)
	if err != nil {
		return m31.Zero, err
	}

	return op(lhs, rhs), nil
}

func (m *Machine) binFpImm(a, imm m31.Element, op binOp) (m31.Element, error) {
	lhs, err := m.load(a)
	if err != nil {
		return m31.Zero, err
	}

	return op(lhs, imm), nil
}

func (m *Machine) storeDivFpFp(a, b, c m31.Element, next uint32) error {
	lhs, err := m.load(a)
	if err != nil {
		return err
	}

	rhs, err := m.load(b)
	if err != nil {
		return err
	}

	if rhs.IsZero() {
		return &DivisionByZeroError{}
	}

	m.store(c, lhs.Mul(rhs.Inverse()))
	m.PC = next

	return nil
}

func (m *Machine) storeDivFpImm(a, imm, c m31.Element, next uint32) error {
	lhs, err := m.load(a)
	if err != nil {
		return err
	}

	if imm.IsZero() {
		return &DivisionByZeroError{}
	}

	m.store(c, lhs.Mul(imm.Inverse()))
	m.PC = next

	return nil
}

func (m *Machine) doubleDeref(baseOff, imm m31.Element) (m31.Element, error) {
	ptr, err := m.load(baseOff)
	if err != nil {
		return m31.Zero, err
	}

	return m.loadAbs(ptr.Add(imm).ToUint32())
}

func (m *Machine) jnz(condOff m31.Element, target func() (m31.Element, error), next uint32) error {
	cond, err := m.load(condOff)
	if err != nil {
		return err
	}

	if cond.IsZero() {
		m.PC = next
		return nil
	}

	t, err := target()
	if err != nil {
		return err
	}

	m.PC = uint32(int64(m.PC) + signedDelta(t))

	return nil
}

func (m *Machine) jmpAbs(target func() (m31.Element, error)) error {
	t, err := target()
	if err != nil {
		return err
	}

	m.PC = t.ToUint32()

	return nil
}

func (m *Machine) jmpRel(target func() (m31.Element, error)) error {
	t, err := target()
	if err != nil {
		return err
	}

	m.PC = uint32(int64(m.PC) + signedDelta(t))

	return nil
}

// call advances fp past extra argument/return slots plus the two-word
// (pc, fp) link, writes that link, and jumps to targetPC. returnPC is the
// instruction index execution resumes at once the callee's Ret runs.
func (m *Machine) call(extra m31.Element, targetPC uint32, returnPC uint32) {
	newFP := m.FP.Add(extra).Add(m31.New(2))

	m.storeAbs(newFP.Sub(m31.New(2)).ToUint32(), m31.New(uint64(returnPC)))
	m.storeAbs(newFP.Sub(m31.New(1)).ToUint32(), m.FP)

	m.FP = newFP
	m.PC = targetPC
}

// ret restores (pc, fp) from the two words directly above the current
// frame, the inverse of call.
func (m *Machine) ret() error {
	savedPC, err := m.loadAbs(m.FP.Sub(m31.New(2)).ToUint32())
	if err != nil {
		return err
	}

	savedFP, err := m.loadAbs(m.FP.Sub(m31.New(1)).ToUint32())
	if err != nil {
		return err
	}

	m.PC = savedPC.ToUint32()
	m.FP = savedFP

	return nil
}

// load reads the value at [fp+offset], appending the resulting access event
// to the trace.
func (m *Machine) load(offset m31.Element) (m31.Element, error) {
	return m.loadAbs(m.FP.Add(offset).ToUint32())
}

// store writes val to [fp+offset], appending the resulting access event to
// the trace.
func (m *Machine) store(offset, val m31.Element) {
	m.storeAbs(m.FP.Add(offset).ToUint32(), val)
}

func (m *Machine) loadAbs(addr uint32) (m31.Element, error) {
	val, event, err := m.Memory.Read(addr, m.clock)
	m.clock++

	if err != nil {
		return m31.Zero, err
	}

	m.Trace.recordAccess(event)

	return val, nil
}

func (m *Machine) storeAbs(addr uint32, val m31.Element) {
	event := m.Memory.Write(addr, val, m.clock)
	m.clock++
	m.Trace.recordAccess(event)
}

// signedDelta reinterprets a field element as a signed relative jump
// distance: values in the upper half of the field are negative, following
// the usual two's-complement-style convention for modular field encodings.
func signedDelta(e m31.Element) int64 {
	v := int64(e.ToUint32())
	if v > int64(m31.Modulus/2) {
		v -= int64(m31.Modulus)
	}

	return v
}
