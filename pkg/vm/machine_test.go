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
package vm_test

import (
	"testing"

	"github.com/cairo-m/cairom/internal/m31"
	"github.com/cairo-m/cairom/pkg/casm"
	"github.com/cairo-m/cairom/pkg/vm"
)

// off builds the fp-relative offset operand for a negative (below-fp) slot;
// the field wraps modularly, so a literal negative index is never a valid
// operand value.
func off(n int64) m31.Element { return m31.NewFromInt64(n) }

// TestMachine_01_StoreImmReturnsConstant is the smallest possible program:
// one instruction writes a literal straight into the entry call's single
// return slot, at fp-3 (no args, one return, per Machine.Run's frame
// layout), then returns.
func TestMachine_01_StoreImmReturnsConstant(t *testing.T) {
	prog := casm.NewProgram()
	prog.EntryLabel = "main"
	prog.MarkLabel("main")
	prog.Append(casm.Instruction{Opcode: casm.StoreImm, A: m31.New(7), C: off(-3)})
	prog.Append(casm.Instruction{Opcode: casm.Ret})

	returns, err := vm.New(prog).Run(nil, 1)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(returns) != 1 || returns[0] != m31.New(7) {
		t.Fatalf("got %v, want [7]", returns)
	}
}

// TestMachine_02_ConditionalBranch hand-assembles `if n == 0 { 42 } else {
// n + 1 }` out of JnzFpImm and JmpRelImm, exercising both the conditional
// and unconditional jump families together.
func TestMachine_02_ConditionalBranch(t *testing.T) {
	// 0: jnz [fp-4], +3            -> pc 3 if n != 0, else fall through to 1
	// 1: [fp-3] = 42               -> then-branch
	// 2: jmp +2                    -> skip the else-branch, land on the Ret at 4
	// 3: [fp-3] = [fp-4] + 1       -> else-branch
	// 4: ret
	prog := casm.NewProgram()
	prog.EntryLabel = "main"
	prog.MarkLabel("main")
	prog.Append(casm.Instruction{Opcode: casm.JnzFpImm, A: off(-4), B: off(3)})
	prog.Append(casm.Instruction{Opcode: casm.StoreImm, A: m31.New(42), C: off(-3)})
	prog.Append(casm.Instruction{Opcode: casm.JmpRelImm, A: off(2)})
	prog.Append(casm.Instruction{Opcode: casm.StoreAddFpImm, A: off(-4), B: m31.New(1), C: off(-3)})
	prog.Append(casm.Instruction{Opcode: casm.Ret})

	cases := []struct {
		n    uint64
		want uint64
	}{
		{n: 0, want: 42},
		{n: 5, want: 6},
	}

	for _, c := range cases {
		returns, err := vm.New(prog).Run([]m31.Element{m31.New(c.n)}, 1)
		if err != nil {
			t.Fatalf("Run(n=%d): %v", c.n, err)
		}

		if len(returns) != 1 || returns[0] != m31.New(c.want) {
			t.Fatalf("Run(n=%d) = %v, want [%d]", c.n, returns, c.want)
		}
	}
}

// TestMachine_03_CallAndReturn hand-assembles two functions, main and
// double, linked by a direct CallAbsImm, checking the two-word (pc, fp)
// link and the argument/return slot convention Call and Ret share with
// Machine.Run's own synthetic entry frame.
func TestMachine_03_CallAndReturn(t *testing.T) {
	// main:
	//   0: [fp+0] = 21                 -- write double's one argument
	//   1: call extra=2, target=double -- 1 arg + 1 return slot
	//   2: [fp-3] = [fp+1] + 0         -- copy double's result into main's own return slot
	//   3: ret
	// double:
	//   4: [fp-3] = [fp-4] + [fp-4]
	//   5: ret
	prog := casm.NewProgram()
	prog.EntryLabel = "main"

	prog.MarkLabel("main")
	prog.Append(casm.Instruction{Opcode: casm.StoreImm, A: m31.New(21), C: m31.New(0)})
	prog.Append(casm.Instruction{Opcode: casm.CallAbsImm, A: m31.New(2), B: m31.New(4)})
	prog.Append(casm.Instruction{Opcode: casm.StoreAddFpImm, A: m31.New(1), B: m31.New(0), C: off(-3)})
	prog.Append(casm.Instruction{Opcode: casm.Ret})

	prog.MarkLabel("double")
	prog.Append(casm.Instruction{Opcode: casm.StoreAddFpFp, A: off(-4), B: off(-4), C: off(-3)})
	prog.Append(casm.Instruction{Opcode: casm.Ret})

	returns, err := vm.New(prog).Run(nil, 1)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(returns) != 1 || returns[0] != m31.New(42) {
		t.Fatalf("got %v, want [42]", returns)
	}
}

// TestMachine_04_DivisionByZeroError checks that StoreDivFpImm rejects a
// zero divisor with a DivisionByZeroError rather than letting m31.Inverse
// panic or silently return zero.
func TestMachine_04_DivisionByZeroError(t *testing.T) {
	prog := casm.NewProgram()
	prog.EntryLabel = "main"
	prog.MarkLabel("main")
	prog.Append(casm.Instruction{Opcode: casm.StoreDivFpImm, A: off(-3), B: m31.Zero, C: off(-3)})
	prog.Append(casm.Instruction{Opcode: casm.Ret})

	_, err := vm.New(prog).Run([]m31.Element{m31.New(1)}, 0)
	if err == nil {
		t.Fatalf("expected a division-by-zero error, got none")
	}

	var execErr *vm.ExecutionError
	if !asExecutionError(err, &execErr) {
		t.Fatalf("expected a *vm.ExecutionError, got %T: %v", err, err)
	}

	if _, ok := execErr.Err.(*vm.DivisionByZeroError); !ok {
		t.Fatalf("expected a *vm.DivisionByZeroError, got %T", execErr.Err)
	}
}

func asExecutionError(err error, target **vm.ExecutionError) bool {
	if ee, ok := err.(*vm.ExecutionError); ok {
		*target = ee
		return true
	}

	return false
}
