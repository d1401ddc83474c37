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

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// PrintFunction writes fn's deterministic textual form to w: blocks in id
// order, instructions in insertion order, values as v<index>. Two
// invocations over the same *Function always produce byte-identical output.
func PrintFunction(w io.Writer, fn *Function) error {
	tw := tabwriter.NewWriter(w, 0, 4, 1, ' ', 0)

	params := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = fmt.Sprintf("v%d: %s", p, fn.TypeOf(p))
	}

	rets := make([]string, len(fn.ReturnType))
	for i, t := range fn.ReturnType {
		rets[i] = t.String()
	}

	fmt.Fprintf(tw, "fn %s(%s) -> (%s) {\n", fn.Name, strings.Join(params, ", "), strings.Join(rets, ", "))

	for _, b := range fn.Blocks {
		fmt.Fprintf(tw, "  bb%d:\n", b.ID)

		for _, phi := range b.Phis {
			fmt.Fprintf(tw, "    v%d\t= %s\n", phi.DestID, phiText(phi))
		}

		for _, instr := range b.Instructions {
			printInstruction(tw, instr)
		}

		printTerminator(tw, b.Terminator)
	}

	fmt.Fprint(tw, "}\n")

	return tw.Flush()
}

func phiText(phi *Phi) string {
	parts := make([]string, len(phi.Sources))
	for i, s := range phi.Sources {
		parts[i] = fmt.Sprintf("bb%d -> %s", s.Predecessor, s.Value)
	}

	return fmt.Sprintf("phi(%s) : %s", strings.Join(parts, ", "), phi.Ty)
}

func destText(id ValueID, hasDest bool) string {
	if !hasDest {
		return "   "
	}

	return fmt.Sprintf("v%d", id)
}

func printInstruction(tw *tabwriter.Writer, instr Instruction) {
	id, hasDest := instr.Dest()
	lhs := destText(id, hasDest)

	var rhs string

	switch i := instr.(type) {
	case *BinaryOp:
		rhs = fmt.Sprintf("%s %s, %s : %s", binOpText(i.Op), i.Left, i.Right, i.Ty)
	case *UnaryOp:
		rhs = fmt.Sprintf("%s %s : %s", unOpText(i.Op), i.Source, i.Ty)
	case *Cast:
		rhs = fmt.Sprintf("cast %s : %s -> %s", i.Source, i.FromTy, i.ToTy)
	case *Assign:
		rhs = fmt.Sprintf("%s : %s", i.Source, i.Ty)
	case *FrameAlloc:
		rhs = fmt.Sprintf("alloc : %s", i.Ty)
	case *GetElementPtr:
		rhs = fmt.Sprintf("gep %s, %d", i.Base, i.Offset)
	case *Load:
		rhs = fmt.Sprintf("load %s : %s", i.Address, i.Ty)
	case *Store:
		fmt.Fprintf(tw, "    %s\tstore %s, %s : %s\n", "   ", i.Address, i.Src, i.Ty)
		return
	case *AddressOf:
		rhs = fmt.Sprintf("addrof %s", i.Operand)
	case *MakeTuple:
		rhs = fmt.Sprintf("maketuple(%s) : %s", joinValues(i.Elements), i.Ty)
	case *MakeStruct:
		rhs = fmt.Sprintf("makestruct %s{%s}", i.Ty, joinFieldInits(i.Fields))
	case *ExtractTupleElement:
		rhs = fmt.Sprintf("%s.%d : %s", i.Tuple, i.Index, i.Ty)
	case *ExtractStructField:
		rhs = fmt.Sprintf("%s.%s : %s", i.StructVal, i.FieldName, i.Ty)
	case *InsertTuple:
		rhs = fmt.Sprintf("insert %s[%d] = %s : %s", i.TupleVal, i.Index, i.NewValue, i.Ty)
	case *InsertField:
		rhs = fmt.Sprintf("insert %s.%s = %s : %s", i.StructVal, i.FieldName, i.NewValue, i.Ty)
	case *MakeFixedArray:
		rhs = fmt.Sprintf("makearray(%s) : %s", joinValues(i.Elements), i.ElementTy)
	case *ArrayIndex:
		rhs = fmt.Sprintf("%s[%s] : %s", i.Array, i.Index, i.ElementTy)
	case *ArrayInsert:
		rhs = fmt.Sprintf("insert %s[%s] = %s : %s", i.Array, i.Index, i.NewValue, i.ArrayTy)
	case *Call:
		rhs = fmt.Sprintf("call fn%d(%s)", i.Callee, joinValues(i.Args))
	case *VoidCall:
		fmt.Fprintf(tw, "    %s\tcall fn%d(%s)\n", "   ", i.Callee, joinValues(i.Args))
		return
	case *Debug:
		fmt.Fprintf(tw, "    %s\tdebug %q %s\n", "   ", i.Message, joinValues(i.Values))
		return
	case *Nop:
		fmt.Fprintf(tw, "    %s\tnop\n", "   ")
		return
	default:
		rhs = "<unknown instruction>"
	}

	fmt.Fprintf(tw, "    %s\t= %s\n", lhs, rhs)
}

func printTerminator(tw *tabwriter.Writer, term Terminator) {
	switch t := term.(type) {
	case *Return:
		fmt.Fprintf(tw, "    return %s\n", joinValues(t.Values))
	case *Jump:
		fmt.Fprintf(tw, "    jump bb%d\n", t.Target)
	case *If:
		fmt.Fprintf(tw, "    if %s then bb%d else bb%d\n", t.Condition, t.Then, t.Else)
	case *BranchCmp:
		fmt.Fprintf(tw, "    branch %s %s, %s then bb%d else bb%d\n", binOpText(t.Op), t.Left, t.Right, t.Then, t.Else)
	case *Unreachable:
		fmt.Fprint(tw, "    unreachable\n")
	case nil:
		fmt.Fprint(tw, "    <missing terminator>\n")
	}
}

func joinValues(vs []Value) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = v.String()
	}

	return strings.Join(parts, ", ")
}

func joinFieldInits(fs []StructFieldInit) string {
	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = fmt.Sprintf("%s: %s", f.Name, f.Value)
	}

	return strings.Join(parts, ", ")
}

func binOpText(op BinaryOpKind) string {
	switch op {
	case Add:
		return "add"
	case Sub:
		return "sub"
	case Mul:
		return "mul"
	case Div:
		return "div"
	case Eq:
		return "eq"
	case Neq:
		return "neq"
	case Lt:
		return "lt"
	case Lte:
		return "lte"
	case Gt:
		return "gt"
	case Gte:
		return "gte"
	case And:
		return "and"
	case Or:
		return "or"
	default:
		return "?"
	}
}

func unOpText(op UnaryOpKind) string {
	switch op {
	case Neg:
		return "neg"
	case Not:
		return "not"
	default:
		return "?"
	}
}
