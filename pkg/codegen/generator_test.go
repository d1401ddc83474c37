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
package codegen_test

import (
	"strings"
	"testing"

	"github.com/cairo-m/cairom/internal/m31"
	"github.com/cairo-m/cairom/pkg/codegen"
	"github.com/cairo-m/cairom/pkg/mir"
	"github.com/cairo-m/cairom/pkg/vm"
)

// run generates and executes module, returning the EntryFunction's result
// words.
func run(t *testing.T, module *mir.Module, args []m31.Element, numReturns int) []m31.Element {
	t.Helper()

	prog, err := codegen.Generate(module)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	returns, err := vm.New(prog).Run(args, numReturns)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	return returns
}

// TestGenerate_01_AddConstants lowers `return 2 + 3` with no parameters.
func TestGenerate_01_AddConstants(t *testing.T) {
	fn := mir.NewFunction(codegen.EntryFunction, nil, []mir.Type{mir.Felt})

	sum := fn.NewValue(mir.Felt)
	fn.AppendInstruction(fn.EntryID, &mir.BinaryOp{
		DestID: sum,
		Op:     mir.Add,
		Left:   mir.Literal{Kind: mir.IntegerLiteral{Value: 2}},
		Right:  mir.Literal{Kind: mir.IntegerLiteral{Value: 3}},
		Ty:     mir.Felt,
	}, mir.Felt)
	fn.SetTerminator(fn.EntryID, &mir.Return{Values: []mir.Value{mir.Op(sum)}})

	module := mir.NewModule()
	module.AddFunction(fn)

	returns := run(t, module, nil, 1)
	if len(returns) != 1 || returns[0] != m31.New(5) {
		t.Fatalf("got %v, want [5]", returns)
	}
}

// TestGenerate_02_ParameterPassthroughAndCall lowers a two-function module:
// double(x) = x + x, and EntryFunction returning double(21), exercising
// Call lowering and argument/return-slot placement together.
func TestGenerate_02_ParameterPassthroughAndCall(t *testing.T) {
	double := mir.NewFunction("double", []mir.Type{mir.Felt}, []mir.Type{mir.Felt})
	x := double.Params[0]

	doubled := double.NewValue(mir.Felt)
	double.AppendInstruction(double.EntryID, &mir.BinaryOp{
		DestID: doubled,
		Op:     mir.Add,
		Left:   mir.Op(x),
		Right:  mir.Op(x),
		Ty:     mir.Felt,
	}, mir.Felt)
	double.SetTerminator(double.EntryID, &mir.Return{Values: []mir.Value{mir.Op(doubled)}})

	module := mir.NewModule()
	doubleID := module.AddFunction(double)

	entry := mir.NewFunction(codegen.EntryFunction, nil, []mir.Type{mir.Felt})
	result := entry.NewValue(mir.Felt)
	entry.AppendInstruction(entry.EntryID, &mir.Call{
		DestIDs:   []mir.ValueID{result},
		Callee:    doubleID,
		Args:      []mir.Value{mir.Literal{Kind: mir.IntegerLiteral{Value: 21}}},
		Signature: mir.CallSignature{ParamTypes: []mir.Type{mir.Felt}, ReturnTypes: []mir.Type{mir.Felt}},
	}, mir.Felt)
	entry.SetTerminator(entry.EntryID, &mir.Return{Values: []mir.Value{mir.Op(result)}})
	module.AddFunction(entry)

	returns := run(t, module, nil, 1)
	if len(returns) != 1 || returns[0] != m31.New(42) {
		t.Fatalf("got %v, want [42]", returns)
	}
}

// TestGenerate_03_UnsupportedOrderingComparison confirms that a dynamic
// ordering comparison is rejected with UnsupportedInstruction rather than
// silently miscompiled, per the opcode catalog's lack of a magnitude
// comparison primitive.
func TestGenerate_03_UnsupportedOrderingComparison(t *testing.T) {
	fn := mir.NewFunction(codegen.EntryFunction, []mir.Type{mir.Felt}, []mir.Type{mir.Bool})
	lt := fn.NewValue(mir.Bool)
	fn.AppendInstruction(fn.EntryID, &mir.BinaryOp{
		DestID: lt,
		Op:     mir.Lt,
		Left:   mir.Op(fn.Params[0]),
		Right:  mir.Literal{Kind: mir.IntegerLiteral{Value: 10}},
		Ty:     mir.Bool,
	}, mir.Bool)
	fn.SetTerminator(fn.EntryID, &mir.Return{Values: []mir.Value{mir.Op(lt)}})

	module := mir.NewModule()
	module.AddFunction(fn)

	_, err := codegen.Generate(module)
	if err == nil {
		t.Fatalf("expected an UnsupportedInstruction error, got none")
	}

	var cgErr *codegen.CodegenError
	if !asCodegenError(err, &cgErr) {
		t.Fatalf("expected a *codegen.CodegenError, got %T: %v", err, err)
	}

	if !strings.Contains(cgErr.Error(), ": unsupported: ") {
		t.Fatalf("expected an UnsupportedInstruction error, got %v", cgErr)
	}
}

func asCodegenError(err error, target **codegen.CodegenError) bool {
	if ce, ok := err.(*codegen.CodegenError); ok {
		*target = ce
		return true
	}
	// multierr.Errors extracts the individual joined errors when Generate
	// aggregated more than one function's failure.
	type unwrapper interface{ Unwrap() []error }
	if u, ok := err.(unwrapper); ok {
		for _, e := range u.Unwrap() {
			if asCodegenError(e, target) {
				return true
			}
		}
	}

	return false
}
