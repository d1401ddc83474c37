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

	"go.uber.org/multierr"

	"github.com/cairo-m/cairom/internal/m31"
	"github.com/cairo-m/cairom/pkg/casm"
	"github.com/cairo-m/cairom/pkg/mir"
)

// EntryFunction names the function Generate wires as the program's
// EntryLabel, matching the convention every example program in the
// original toolchain's test suite uses.
const EntryFunction = "main"

// codegenErrorKind distinguishes the three ways codegen can fail: a
// genuinely malformed input program, a construct this codegen declines to
// lower by design, or an invariant an earlier pass should have upheld.
type codegenErrorKind int

const (
	kindInvalidMir codegenErrorKind = iota
	kindUnsupportedInstruction
	kindInternalError
)

// CodegenError reports a lowering failure. Construct one via InvalidMir,
// UnsupportedInstruction, or InternalError rather than the struct literal.
type CodegenError struct {
	kind     codegenErrorKind
	Function string
	Detail   string
}

func (e *CodegenError) Error() string {
	var prefix string

	switch e.kind {
	case kindInvalidMir:
		prefix = "invalid mir"
	case kindUnsupportedInstruction:
		prefix = "unsupported"
	default:
		prefix = "internal error"
	}

	return fmt.Sprintf("codegen: %s: %s: %s", e.Function, prefix, e.Detail)
}

// InvalidMir reports a MIR program that violates a codegen precondition
// (e.g. a compile-time-constant division by zero).
func InvalidMir(function, detail string) *CodegenError {
	return &CodegenError{kind: kindInvalidMir, Function: function, Detail: detail}
}

// UnsupportedInstruction reports a construct this codegen deliberately
// declines to lower: ordering comparisons (Lt/Lte/Gt/Gte), dynamic
// (non-constant) u32 arithmetic, and dynamic array/pointer addressing all
// need either a bit-decomposition range-check gadget or a materialized
// runtime pointer value, neither of which this opcode catalog provides
// (see DESIGN.md's codegen section).
func UnsupportedInstruction(function, detail string) *CodegenError {
	return &CodegenError{kind: kindUnsupportedInstruction, Function: function, Detail: detail}
}

// InternalError reports a MIR invariant that should have been enforced by
// an earlier pass (SROA, LowerAggregates, Mem2Reg) and was not — a bug
// upstream of codegen, not a malformed input program.
func InternalError(function, detail string) *CodegenError {
	return &CodegenError{kind: kindInternalError, Function: function, Detail: detail}
}

// Generator lowers a *mir.Module into a resolved *casm.Program.
type Generator struct {
	module *mir.Module
	layout *mir.DataLayout
}

// New constructs a Generator for module.
func New(module *mir.Module) *Generator {
	return &Generator{module: module, layout: mir.NewDataLayout()}
}

// Generate lowers every function in the module into one resolved Program.
func Generate(module *mir.Module) (*casm.Program, error) {
	return New(module).Generate()
}

// Generate lowers every function in g's module into one resolved Program.
// Every function is attempted regardless of an earlier function's failure,
// so a caller sees every unsupported construct a module hits in one pass
// instead of only the first; the returned error, if any, is a
// multierr-joined list of every failing function's CodegenError.
func (g *Generator) Generate() (*casm.Program, error) {
	prog := casm.NewProgram()
	prog.EntryLabel = casm.Label(EntryFunction)

	var fixups []casm.PendingFixup

	var errs error

	for _, fn := range g.module.Functions() {
		LowerPhis(fn)

		fg := &funcGen{
			g:       g,
			fn:      fn,
			prog:    prog,
			frame:   NewCallFrame(fn, g.layout),
			scratch: newScratchLabels(fn),
		}

		if err := fg.generate(); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}

		fixups = append(fixups, fg.fixups...)
	}

	if errs != nil {
		return nil, errs
	}

	if err := prog.Resolve(fixups); err != nil {
		return nil, err
	}

	return prog, nil
}

// funcGen holds the state for lowering one function's body.
type funcGen struct {
	g       *Generator
	fn      *mir.Function
	prog    *casm.Program
	frame   *CallFrame
	scratch *scratchLabels
	fixups  []casm.PendingFixup
}

func (fg *funcGen) layout() *mir.DataLayout { return fg.g.layout }

func (fg *funcGen) generate() error {
	for _, b := range fg.fn.Blocks {
		fg.prog.MarkLabel(labelOf(fg.fn, b))

		for _, instr := range b.Instructions {
			if err := fg.emitInstruction(instr); err != nil {
				return err
			}
		}

		if err := fg.emitTerminator(b.Terminator); err != nil {
			return err
		}
	}

	return nil
}

func (fg *funcGen) emit(op casm.Opcode, a, b, c m31.Element) int {
	return fg.prog.Append(casm.Instruction{Opcode: op, A: a, B: b, C: c})
}

func (fg *funcGen) emitJnz(condOff m31.Element, target casm.Label) {
	idx := fg.emit(casm.JnzFpImm, condOff, m31.Zero, m31.Zero)
	fg.fixups = append(fg.fixups, casm.PendingFixup{InstructionIndex: idx, Operand: casm.OperandB, Target: target, Relative: true})
}

func (fg *funcGen) emitJmp(target casm.Label) {
	idx := fg.emit(casm.JmpAbsImm, m31.Zero, m31.Zero, m31.Zero)
	fg.fixups = append(fg.fixups, casm.PendingFixup{InstructionIndex: idx, Operand: casm.OperandA, Target: target})
}

func (fg *funcGen) emitCall(extra int, target casm.Label) {
	idx := fg.emit(casm.CallAbsImm, m31.New(uint64(extra)), m31.Zero, m31.Zero)
	fg.fixups = append(fg.fixups, casm.PendingFixup{InstructionIndex: idx, Operand: casm.OperandB, Target: target})
}

func (fg *funcGen) markLabel(l casm.Label) { fg.prog.MarkLabel(l) }

func isOrdering(op mir.BinaryOpKind) bool {
	switch op {
	case mir.Lt, mir.Lte, mir.Gt, mir.Gte:
		return true
	default:
		return false
	}
}

// operandType returns the MIR type of v: the recorded type of an Operand, or
// Felt for a Literal, which carries no type tag of its own (a bare integer
// literal reaching a scalar context is always felt-sized; the one multi-slot
// literal case, u32 arithmetic, is handled separately via constU32 before
// operandType would ever be consulted for it).
func (fg *funcGen) operandType(v mir.Value) mir.Type {
	if op, ok := v.(mir.Operand); ok {
		return fg.fn.TypeOf(op.ID)
	}

	return mir.Felt
}

// constU32 reports the compile-time value of v if it is an integer literal,
// for the constant-folded subset of u32 arithmetic this codegen supports.
func constU32(v mir.Value) (uint32, bool) {
	lit, ok := v.(mir.Literal)
	if !ok {
		return 0, false
	}

	intLit, ok := lit.Kind.(mir.IntegerLiteral)
	if !ok {
		return 0, false
	}

	return uint32(intLit.Value), true
}

//nolint:gocyclo // one case per mir.Instruction variant; matches instr.go's own enumeration.
func (fg *funcGen) emitInstruction(instr mir.Instruction) error {
	switch ins := instr.(type) {
	case *mir.BinaryOp:
		return fg.emitBinaryOp(ins)
	case *mir.UnaryOp:
		return fg.emitUnaryOp(ins)
	case *mir.Cast:
		return fg.emitCast(ins)
	case *mir.Assign:
		dst := fg.frame.SlotOf(ins.DestID, ins.Ty)
		fg.emitMove(fg.resolve(ins.Source), dst, fg.layout().SizeOf(ins.Ty))

		return nil
	case *mir.FrameAlloc:
		// The allocation itself is just a reserved, addressable region;
		// AddressOf/GetElementPtr below alias it by offset, never by a
		// materialized runtime pointer value.
		fg.frame.SlotOf(ins.DestID, ins.Ty)
		return nil
	case *mir.GetElementPtr:
		baseOff, ok := fg.frame.OffsetOf(fg.operandID(ins.Base))
		if !ok {
			return InternalError(fg.fn.Name, "GetElementPtr of a value with no frame slot")
		}

		fg.frame.Alias(ins.DestID, baseOff+ins.Offset)

		return nil
	case *mir.Load:
		return fg.emitLoad(ins)
	case *mir.Store:
		return fg.emitStore(ins)
	case *mir.AddressOf:
		baseOff, ok := fg.frame.OffsetOf(fg.operandID(ins.Operand))
		if !ok {
			return InternalError(fg.fn.Name, "AddressOf a value with no frame slot")
		}

		fg.frame.Alias(ins.DestID, baseOff)

		return nil
	case *mir.Call:
		return fg.emitCallInstr(ins.Callee, ins.Args, ins.Signature, ins.DestIDs)
	case *mir.VoidCall:
		return fg.emitCallInstr(ins.Callee, ins.Args, ins.Signature, nil)
	case *mir.ArrayIndex:
		return UnsupportedInstruction(fg.fn.Name, "array indexing by a non-constant index needs a materialized runtime pointer, unsupported by this opcode catalog")
	case *mir.ArrayInsert:
		return UnsupportedInstruction(fg.fn.Name, "array update by a non-constant index needs a materialized runtime pointer, unsupported by this opcode catalog")
	case *mir.Debug:
		return nil // never lowered to CASM
	case *mir.Nop:
		return nil
	default:
		return InternalError(fg.fn.Name, fmt.Sprintf("instruction %T reached codegen (should have been eliminated by SROA/LowerAggregates)", instr))
	}
}

// operandID extracts the ValueID a GetElementPtr/AddressOf base must name.
// Both only ever address values already living in this function's frame, so
// a literal base (an internal-compiler-error condition: nothing in pkg/mir's
// builders ever takes the address of an immediate) has no ValueID to return.
func (fg *funcGen) operandID(v mir.Value) mir.ValueID {
	op, ok := v.(mir.Operand)
	if !ok {
		panic(fmt.Sprintf("codegen: %s: address chain based on a literal %v", fg.fn.Name, v))
	}

	return op.ID
}

func (fg *funcGen) emitMove(src operand, dst int, size int) {
	for i := 0; i < size; i++ {
		if src.imm {
			// Only valid for size-1 scalars; multi-slot literals are not
			// constructed by the builder (aggregates/u32 come from MakeX
			// instructions, not a single Literal).
			fg.emit(casm.StoreImm, src.immVal, m31.Zero, fpOperand(dst+i).elem())
			continue
		}

		fg.emit(casm.StoreDerefFp, src.at(i).elem(), m31.Zero, fpOperand(dst+i).elem())
	}
}

// emitLoad and emitStore both resolve their address to a compile-time frame
// offset (see CallFrame.Alias): Load/Store through a GetElementPtr/AddressOf
// chain is always, in this compiler, just a copy to or from that offset.
// There is no double-deref write opcode in the catalog (only
// StoreDoubleDerefFp, an indirect *read*), so a true indirect store through
// a runtime-computed pointer value is not expressible; since no pointer
// value ever escapes the frame it was taken from, one is never needed here.
func (fg *funcGen) emitLoad(ins *mir.Load) error {
	addrOff, ok := fg.frame.OffsetOf(fg.operandID(ins.Address))
	if !ok {
		return InternalError(fg.fn.Name, "Load from a value with no frame slot")
	}

	dst := fg.frame.SlotOf(ins.DestID, ins.Ty)
	size := fg.layout().SizeOf(ins.Ty)
	fg.emitMove(fpOperand(addrOff), dst, size)

	return nil
}

func (fg *funcGen) emitStore(ins *mir.Store) error {
	addrOff, ok := fg.frame.OffsetOf(fg.operandID(ins.Address))
	if !ok {
		return InternalError(fg.fn.Name, "Store to a value with no frame slot")
	}

	src := fg.resolve(ins.Src)
	size := fg.layout().SizeOf(ins.Ty)
	fg.emitMove(src, addrOff, size)

	return nil
}

func feltOps(op mir.BinaryOpKind) binOpcodes {
	switch op {
	case mir.Add:
		return addOps
	case mir.Sub:
		return subOps
	case mir.Mul:
		return mulOps
	case mir.Div:
		return divOps
	default:
		panic(fmt.Sprintf("codegen: feltOps called with non-arithmetic op %v", op))
	}
}

func (fg *funcGen) emitBinaryOp(ins *mir.BinaryOp) error {
	if isOrdering(ins.Op) {
		return UnsupportedInstruction(fg.fn.Name, "ordering comparisons have no native opcode (Jnz only tests exact zero); only equality is lowered")
	}

	dst := fg.frame.SlotOf(ins.DestID, ins.Ty)

	switch ins.Op {
	case mir.Eq, mir.Neq:
		size := fg.layout().SizeOf(fg.operandType(ins.Left))
		if rs := fg.layout().SizeOf(fg.operandType(ins.Right)); rs > size {
			size = rs
		}

		return fg.emitEqual(ins.Left, ins.Right, size, ins.Op == mir.Eq, dst)
	case mir.And:
		fg.emitLogicalAnd(fg.resolve(ins.Left), fg.resolve(ins.Right), dst)
		return nil
	case mir.Or:
		fg.emitLogicalOr(fg.resolve(ins.Left), fg.resolve(ins.Right), dst)
		return nil
	}

	if ins.Ty.Kind == mir.KindU32 {
		return fg.emitU32Arith(ins, dst)
	}

	fg.emitFelt2(feltOps(ins.Op), fg.resolve(ins.Left), fg.resolve(ins.Right), dst)

	return nil
}

// emitEqual lowers Eq/Neq for operands of size slots each: a single
// subtract-then-zero-test for scalars, a per-slot zero-test ANDed together
// for multi-slot (u32) operands.
func (fg *funcGen) emitEqual(left, right mir.Value, size int, want bool, dst int) error {
	if size == 1 {
		l, r := fg.resolve(left), fg.resolve(right)
		diff := fg.frame.Reserve(1)
		fg.emitFelt2(subOps, l, r, diff)
		fg.emitZeroTest(fpOperand(diff), want, dst)

		return nil
	}

	l, r := fg.resolve(left), fg.resolve(right)
	if l.imm || r.imm {
		return UnsupportedInstruction(fg.fn.Name, "comparison of a multi-slot literal")
	}

	eqAll := fg.frame.Reserve(1)

	for i := 0; i < size; i++ {
		diff := fg.frame.Reserve(1)
		fg.emitFelt2(subOps, l.at(i), r.at(i), diff)

		bit := fg.frame.Reserve(1)
		fg.emitZeroTest(fpOperand(diff), true, bit)

		if i == 0 {
			fg.emitMove(fpOperand(bit), eqAll, 1)
		} else {
			fg.emitLogicalAnd(fpOperand(eqAll), fpOperand(bit), eqAll)
		}
	}

	if want {
		fg.emitMove(fpOperand(eqAll), dst, 1)
	} else {
		fg.emitNot(fpOperand(eqAll), dst)
	}

	return nil
}

// emitU32Arith supports only the constant-folded subset of u32 arithmetic:
// both operands known at compile time. A dynamic u32 add/sub/mul/div needs a
// carry/borrow bit-decomposition range-check gadget to keep each limb within
// 16 bits; the u32_store_*_fp_*.rs prover components that would provide one
// were not included in this opcode catalog (see DESIGN.md).
func (fg *funcGen) emitU32Arith(ins *mir.BinaryOp, dst int) error {
	lv, lok := constU32(ins.Left)
	rv, rok := constU32(ins.Right)

	if !lok || !rok {
		return UnsupportedInstruction(fg.fn.Name, "dynamic u32 arithmetic needs a bit-decomposition range-check gadget not present in this opcode catalog")
	}

	var result uint32

	switch ins.Op {
	case mir.Add:
		result = lv + rv
	case mir.Sub:
		result = lv - rv
	case mir.Mul:
		result = lv * rv
	case mir.Div:
		if rv == 0 {
			return InvalidMir(fg.fn.Name, "u32 division by zero in constant fold")
		}

		result = lv / rv
	}

	fg.emit(casm.StoreImm, m31.New(uint64(result&0xFFFF)), m31.Zero, fpOperand(dst).elem())
	fg.emit(casm.StoreImm, m31.New(uint64(result>>16)), m31.Zero, fpOperand(dst+1).elem())

	return nil
}

func (fg *funcGen) emitUnaryOp(ins *mir.UnaryOp) error {
	dst := fg.frame.SlotOf(ins.DestID, ins.Ty)
	src := fg.resolve(ins.Source)

	switch ins.Op {
	case mir.Neg:
		fg.emitNeg(src, dst)
	case mir.Not:
		fg.emitNot(src, dst)
	}

	return nil
}

// emitCast handles the scalar conversions this language's type system
// allows: felt<->bool is a same-width reinterpretation (a plain move, since
// both are one canonical-0/1-or-arbitrary-felt slot), and u32<->felt is a
// limb combine/split. Only the constant-folded direction of felt->u32 is
// supported, for the same range-check reason as emitU32Arith.
func (fg *funcGen) emitCast(ins *mir.Cast) error {
	dst := fg.frame.SlotOf(ins.DestID, ins.ToTy)

	switch {
	case ins.FromTy.Kind == mir.KindU32 && ins.ToTy.Kind == mir.KindFelt:
		src := fg.resolve(ins.Source)
		if src.imm {
			return UnsupportedInstruction(fg.fn.Name, "cast of a multi-slot literal")
		}
		// value = hi*65536 + lo
		scaled := fg.frame.Reserve(1)
		fg.emit(casm.StoreMulFpImm, src.at(1).elem(), m31.New(65536), fpOperand(scaled).elem())
		fg.emitFelt2(addOps, fpOperand(scaled), src.at(0), dst)

		return nil
	case ins.FromTy.Kind == mir.KindFelt && ins.ToTy.Kind == mir.KindU32:
		v, ok := constU32(ins.Source)
		if !ok {
			return UnsupportedInstruction(fg.fn.Name, "felt->u32 cast of a non-constant value needs a range-check gadget not present in this opcode catalog")
		}

		fg.emit(casm.StoreImm, m31.New(uint64(v&0xFFFF)), m31.Zero, fpOperand(dst).elem())
		fg.emit(casm.StoreImm, m31.New(uint64(v>>16)), m31.Zero, fpOperand(dst+1).elem())

		return nil
	default:
		// felt<->bool and any same-kind cast: single-slot reinterpretation.
		fg.emitMove(fg.resolve(ins.Source), dst, 1)
		return nil
	}
}

// emitCallInstr writes args into the outgoing-argument staging area at this
// frame's own low positive offsets (see CallFrame's doc comment), emits the
// Call, then copies return values out of the slots the callee wrote just
// above its own argument area back into this function's destination slots.
func (fg *funcGen) emitCallInstr(callee mir.FunctionID, args []mir.Value, sig mir.CallSignature, destIDs []mir.ValueID) error {
	calleeFn := fg.g.module.Function(callee)

	argOff := 0
	for i, arg := range args {
		size := fg.layout().SizeOf(sig.ParamTypes[i])
		fg.emitMove(fg.resolve(arg), argOff, size)
		argOff += size
	}

	paramSlots := argOff

	returnSlots := 0
	for _, t := range sig.ReturnTypes {
		returnSlots += fg.layout().SizeOf(t)
	}

	fg.emitCall(paramSlots+returnSlots, functionLabel(calleeFn))

	retOff := paramSlots

	for i, id := range destIDs {
		size := fg.layout().SizeOf(sig.ReturnTypes[i])
		dst := fg.frame.SlotOf(id, sig.ReturnTypes[i])
		fg.emitMove(fpOperand(retOff), dst, size)
		retOff += size
	}

	return nil
}

func (fg *funcGen) emitTerminator(term mir.Terminator) error {
	switch t := term.(type) {
	case *mir.Return:
		base := fg.frame.ReturnBase()

		for _, v := range t.Values {
			size := fg.layout().SizeOf(fg.operandType(v))
			fg.emitMove(fg.resolve(v), base, size)
			base += size
		}

		fg.emit(casm.Ret, m31.Zero, m31.Zero, m31.Zero)

		return nil
	case *mir.Jump:
		fg.emitJmp(labelOf(fg.fn, fg.fn.Block(t.Target)))
		return nil
	case *mir.If:
		cond := fg.resolve(t.Condition)
		if cond.imm {
			// A constant condition should have been folded away by an
			// earlier pass; lower it directly rather than erroring, since
			// the behavior is still well-defined.
			if cond.immVal != m31.Zero {
				fg.emitJmp(labelOf(fg.fn, fg.fn.Block(t.Then)))
			} else {
				fg.emitJmp(labelOf(fg.fn, fg.fn.Block(t.Else)))
			}

			return nil
		}

		fg.emitJnz(cond.elem(), labelOf(fg.fn, fg.fn.Block(t.Then)))
		fg.emitJmp(labelOf(fg.fn, fg.fn.Block(t.Else)))

		return nil
	case *mir.BranchCmp:
		if isOrdering(t.Op) {
			return UnsupportedInstruction(fg.fn.Name, "ordering comparisons have no native opcode (Jnz only tests exact zero); only equality is lowered")
		}

		size := fg.layout().SizeOf(fg.operandType(t.Left))
		if rs := fg.layout().SizeOf(fg.operandType(t.Right)); rs > size {
			size = rs
		}

		cond := fg.frame.Reserve(1)
		if err := fg.emitEqual(t.Left, t.Right, size, t.Op == mir.Eq, cond); err != nil {
			return err
		}

		fg.emitJnz(fpOperand(cond).elem(), labelOf(fg.fn, fg.fn.Block(t.Then)))
		fg.emitJmp(labelOf(fg.fn, fg.fn.Block(t.Else)))

		return nil
	case *mir.Unreachable:
		// Nothing should ever reach this point; emitting no instructions
		// leaves the preceding block falling through to whatever follows in
		// program order, which is never executed for a well-formed input.
		return nil
	default:
		return InternalError(fg.fn.Name, fmt.Sprintf("terminator %T reached codegen", term))
	}
}
