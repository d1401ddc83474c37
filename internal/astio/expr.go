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
package astio

import (
	"fmt"

	"github.com/cairo-m/cairom/pkg/ast"
)

// wireExpr is a flat union of every ast.Expr kind, discriminated by Kind.
// Each concrete expression only populates the fields it needs; the rest stay
// at their zero value and are omitted on encode.
type wireExpr struct {
	Kind string   `json:"kind"`
	Span wireSpan `json:"span"`

	IntValue  uint64 `json:"int_value,omitempty"`
	BoolValue bool   `json:"bool_value,omitempty"`
	Name      string `json:"name,omitempty"`

	Op string `json:"op,omitempty"`

	Left     *wireExpr  `json:"left,omitempty"`
	Right    *wireExpr  `json:"right,omitempty"`
	Operand  *wireExpr  `json:"operand,omitempty"`
	Callee   *wireExpr  `json:"callee,omitempty"`
	Args     []wireExpr `json:"args,omitempty"`
	Base     *wireExpr  `json:"base,omitempty"`
	Field    string     `json:"field,omitempty"`
	Index    *wireExpr  `json:"index,omitempty"`
	Elements []wireExpr `json:"elements,omitempty"`

	StructName string                 `json:"struct_name,omitempty"`
	Fields     []wireStructFieldInit  `json:"fields,omitempty"`
}

type wireStructFieldInit struct {
	Name  string   `json:"name"`
	Value wireExpr `json:"value"`
	Span  wireSpan `json:"span"`
}

var binaryOpNames = map[ast.BinaryOp]string{
	ast.OpAdd: "add", ast.OpSub: "sub", ast.OpMul: "mul", ast.OpDiv: "div",
	ast.OpEq: "eq", ast.OpNeq: "neq", ast.OpLt: "lt", ast.OpLte: "lte",
	ast.OpGt: "gt", ast.OpGte: "gte", ast.OpAnd: "and", ast.OpOr: "or",
}

var binaryOpValues = map[string]ast.BinaryOp{}

var unaryOpNames = map[ast.UnaryOp]string{ast.OpNeg: "neg", ast.OpNot: "not"}

var unaryOpValues = map[string]ast.UnaryOp{}

func init() {
	for op, name := range binaryOpNames {
		binaryOpValues[name] = op
	}

	for op, name := range unaryOpNames {
		unaryOpValues[name] = op
	}
}

func fromExpr(e ast.Expr) (wireExpr, error) {
	switch n := e.(type) {
	case *ast.IntLiteral:
		return wireExpr{Kind: "int", Span: fromSpan(n.Span), IntValue: n.Value}, nil
	case *ast.BoolLiteral:
		return wireExpr{Kind: "bool", Span: fromSpan(n.Span), BoolValue: n.Value}, nil
	case *ast.Identifier:
		return wireExpr{Kind: "ident", Span: fromSpan(n.Span), Name: n.Name}, nil
	case *ast.BinaryExpr:
		opName, ok := binaryOpNames[n.Op]
		if !ok {
			return wireExpr{}, fmt.Errorf("unknown BinaryOp %d", n.Op)
		}

		left, err := fromExpr(n.Left)
		if err != nil {
			return wireExpr{}, err
		}

		right, err := fromExpr(n.Right)
		if err != nil {
			return wireExpr{}, err
		}

		return wireExpr{Kind: "binary", Span: fromSpan(n.Span), Op: opName, Left: &left, Right: &right}, nil
	case *ast.UnaryExpr:
		opName, ok := unaryOpNames[n.Op]
		if !ok {
			return wireExpr{}, fmt.Errorf("unknown UnaryOp %d", n.Op)
		}

		operand, err := fromExpr(n.Operand)
		if err != nil {
			return wireExpr{}, err
		}

		return wireExpr{Kind: "unary", Span: fromSpan(n.Span), Op: opName, Operand: &operand}, nil
	case *ast.CallExpr:
		callee, err := fromExpr(n.Callee)
		if err != nil {
			return wireExpr{}, err
		}

		args, err := fromExprs(n.Args)
		if err != nil {
			return wireExpr{}, err
		}

		return wireExpr{Kind: "call", Span: fromSpan(n.Span), Callee: &callee, Args: args}, nil
	case *ast.MemberExpr:
		base, err := fromExpr(n.Base)
		if err != nil {
			return wireExpr{}, err
		}

		return wireExpr{Kind: "member", Span: fromSpan(n.Span), Base: &base, Field: n.Field}, nil
	case *ast.IndexExpr:
		base, err := fromExpr(n.Base)
		if err != nil {
			return wireExpr{}, err
		}

		idx, err := fromExpr(n.Index)
		if err != nil {
			return wireExpr{}, err
		}

		return wireExpr{Kind: "index", Span: fromSpan(n.Span), Base: &base, Index: &idx}, nil
	case *ast.TupleExpr:
		elems, err := fromExprs(n.Elements)
		if err != nil {
			return wireExpr{}, err
		}

		return wireExpr{Kind: "tuple", Span: fromSpan(n.Span), Elements: elems}, nil
	case *ast.ArrayLiteralExpr:
		elems, err := fromExprs(n.Elements)
		if err != nil {
			return wireExpr{}, err
		}

		return wireExpr{Kind: "array", Span: fromSpan(n.Span), Elements: elems}, nil
	case *ast.StructLiteralExpr:
		fields := make([]wireStructFieldInit, len(n.Fields))

		for i, f := range n.Fields {
			v, err := fromExpr(f.Value)
			if err != nil {
				return wireExpr{}, err
			}

			fields[i] = wireStructFieldInit{Name: f.Name, Value: v, Span: fromSpan(f.Span)}
		}

		return wireExpr{Kind: "struct_literal", Span: fromSpan(n.Span), StructName: n.StructName, Fields: fields}, nil
	default:
		return wireExpr{}, fmt.Errorf("unknown expression type %T", e)
	}
}

func fromExprs(es []ast.Expr) ([]wireExpr, error) {
	out := make([]wireExpr, len(es))

	for i, e := range es {
		w, err := fromExpr(e)
		if err != nil {
			return nil, err
		}

		out[i] = w
	}

	return out, nil
}

func toExpr(w wireExpr) (ast.Expr, error) {
	span := toSpan(w.Span)

	switch w.Kind {
	case "int":
		n := &ast.IntLiteral{Value: w.IntValue}
		n.Span = span

		return n, nil
	case "bool":
		n := &ast.BoolLiteral{Value: w.BoolValue}
		n.Span = span

		return n, nil
	case "ident":
		n := &ast.Identifier{Name: w.Name}
		n.Span = span

		return n, nil
	case "binary":
		op, ok := binaryOpValues[w.Op]
		if !ok {
			return nil, fmt.Errorf("unknown binary op %q", w.Op)
		}

		left, err := toExpr(*w.Left)
		if err != nil {
			return nil, err
		}

		right, err := toExpr(*w.Right)
		if err != nil {
			return nil, err
		}

		n := &ast.BinaryExpr{Op: op, Left: left, Right: right}
		n.Span = span

		return n, nil
	case "unary":
		op, ok := unaryOpValues[w.Op]
		if !ok {
			return nil, fmt.Errorf("unknown unary op %q", w.Op)
		}

		operand, err := toExpr(*w.Operand)
		if err != nil {
			return nil, err
		}

		n := &ast.UnaryExpr{Op: op, Operand: operand}
		n.Span = span

		return n, nil
	case "call":
		callee, err := toExpr(*w.Callee)
		if err != nil {
			return nil, err
		}

		args, err := toExprs(w.Args)
		if err != nil {
			return nil, err
		}

		n := &ast.CallExpr{Callee: callee, Args: args}
		n.Span = span

		return n, nil
	case "member":
		base, err := toExpr(*w.Base)
		if err != nil {
			return nil, err
		}

		n := &ast.MemberExpr{Base: base, Field: w.Field}
		n.Span = span

		return n, nil
	case "index":
		base, err := toExpr(*w.Base)
		if err != nil {
			return nil, err
		}

		idx, err := toExpr(*w.Index)
		if err != nil {
			return nil, err
		}

		n := &ast.IndexExpr{Base: base, Index: idx}
		n.Span = span

		return n, nil
	case "tuple":
		elems, err := toExprs(w.Elements)
		if err != nil {
			return nil, err
		}

		n := &ast.TupleExpr{Elements: elems}
		n.Span = span

		return n, nil
	case "array":
		elems, err := toExprs(w.Elements)
		if err != nil {
			return nil, err
		}

		n := &ast.ArrayLiteralExpr{Elements: elems}
		n.Span = span

		return n, nil
	case "struct_literal":
		fields := make([]ast.StructFieldInit, len(w.Fields))

		for i, f := range w.Fields {
			v, err := toExpr(f.Value)
			if err != nil {
				return nil, err
			}

			fields[i] = ast.StructFieldInit{Name: f.Name, Value: v, Span: toSpan(f.Span)}
		}

		n := &ast.StructLiteralExpr{StructName: w.StructName, Fields: fields}
		n.Span = span

		return n, nil
	default:
		return nil, fmt.Errorf("unknown expression kind %q", w.Kind)
	}
}

func toExprs(ws []wireExpr) ([]ast.Expr, error) {
	out := make([]ast.Expr, len(ws))

	for i, w := range ws {
		e, err := toExpr(w)
		if err != nil {
			return nil, err
		}

		out[i] = e
	}

	return out, nil
}
