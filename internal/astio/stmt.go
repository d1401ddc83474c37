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

// wireStmt is a flat union of every ast.Stmt kind, discriminated by Kind.
type wireStmt struct {
	Kind string   `json:"kind"`
	Span wireSpan `json:"span"`

	Name             string    `json:"name,omitempty"`
	NameSpan         wireSpan  `json:"name_span,omitempty"`
	Type             *wireType `json:"type,omitempty"`
	Value            *wireExpr `json:"value,omitempty"`
	DestructureIndex *int      `json:"destructure_index,omitempty"`

	Target *wireExpr `json:"target,omitempty"`

	Cond  *wireExpr `json:"cond,omitempty"`
	Then  *wireBlock `json:"then,omitempty"`
	Else  *wireBlock `json:"else,omitempty"`
	Body  *wireBlock `json:"body,omitempty"`
	Range *wireExpr  `json:"range,omitempty"`
}

// wireBlock shadows ast.Block.
type wireBlock struct {
	Stmts []wireStmt `json:"stmts"`
	Span  wireSpan   `json:"span"`
}

func fromBlock(b *ast.Block) (wireBlock, error) {
	stmts := make([]wireStmt, len(b.Stmts))

	for i, s := range b.Stmts {
		w, err := fromStmt(s)
		if err != nil {
			return wireBlock{}, err
		}

		stmts[i] = w
	}

	return wireBlock{Stmts: stmts, Span: fromSpan(b.Span)}, nil
}

func toBlock(w wireBlock) (*ast.Block, error) {
	stmts := make([]ast.Stmt, len(w.Stmts))

	for i, s := range w.Stmts {
		st, err := toStmt(s)
		if err != nil {
			return nil, err
		}

		stmts[i] = st
	}

	return &ast.Block{Stmts: stmts, Span: toSpan(w.Span)}, nil
}

func fromBlockPtr(b *ast.Block) (*wireBlock, error) {
	if b == nil {
		return nil, nil
	}

	w, err := fromBlock(b)
	if err != nil {
		return nil, err
	}

	return &w, nil
}

func toBlockPtr(w *wireBlock) (*ast.Block, error) {
	if w == nil {
		return nil, nil
	}

	return toBlock(*w)
}

func fromStmt(s ast.Stmt) (wireStmt, error) {
	switch n := s.(type) {
	case *ast.LetStmt:
		val, err := fromExpr(n.Value)
		if err != nil {
			return wireStmt{}, err
		}

		ty, err := fromTypePtr(n.Type)
		if err != nil {
			return wireStmt{}, err
		}

		return wireStmt{
			Kind: "let", Span: fromSpan(n.Span), Name: n.Name, NameSpan: fromSpan(n.NameSpan),
			Type: ty, Value: &val, DestructureIndex: n.DestructureIndex,
		}, nil
	case *ast.ConstStmt:
		val, err := fromExpr(n.Value)
		if err != nil {
			return wireStmt{}, err
		}

		ty, err := fromTypePtr(n.Type)
		if err != nil {
			return wireStmt{}, err
		}

		return wireStmt{
			Kind: "const", Span: fromSpan(n.Span), Name: n.Name, NameSpan: fromSpan(n.NameSpan),
			Type: ty, Value: &val,
		}, nil
	case *ast.ExprStmt:
		val, err := fromExpr(n.Value)
		if err != nil {
			return wireStmt{}, err
		}

		return wireStmt{Kind: "expr", Span: fromSpan(n.Span), Value: &val}, nil
	case *ast.AssignStmt:
		target, err := fromExpr(n.Target)
		if err != nil {
			return wireStmt{}, err
		}

		val, err := fromExpr(n.Value)
		if err != nil {
			return wireStmt{}, err
		}

		return wireStmt{Kind: "assign", Span: fromSpan(n.Span), Target: &target, Value: &val}, nil
	case *ast.IfStmt:
		cond, err := fromExpr(n.Cond)
		if err != nil {
			return wireStmt{}, err
		}

		then, err := fromBlock(n.Then)
		if err != nil {
			return wireStmt{}, err
		}

		els, err := fromBlockPtr(n.Else)
		if err != nil {
			return wireStmt{}, err
		}

		return wireStmt{Kind: "if", Span: fromSpan(n.Span), Cond: &cond, Then: &then, Else: els}, nil
	case *ast.WhileStmt:
		cond, err := fromExpr(n.Cond)
		if err != nil {
			return wireStmt{}, err
		}

		body, err := fromBlock(n.Body)
		if err != nil {
			return wireStmt{}, err
		}

		return wireStmt{Kind: "while", Span: fromSpan(n.Span), Cond: &cond, Body: &body}, nil
	case *ast.LoopStmt:
		body, err := fromBlock(n.Body)
		if err != nil {
			return wireStmt{}, err
		}

		return wireStmt{Kind: "loop", Span: fromSpan(n.Span), Body: &body}, nil
	case *ast.ForStmt:
		rng, err := fromExpr(n.Range)
		if err != nil {
			return wireStmt{}, err
		}

		body, err := fromBlock(n.Body)
		if err != nil {
			return wireStmt{}, err
		}

		return wireStmt{
			Kind: "for", Span: fromSpan(n.Span), Name: n.Name, NameSpan: fromSpan(n.NameSpan),
			Range: &rng, Body: &body,
		}, nil
	case *ast.BreakStmt:
		return wireStmt{Kind: "break", Span: fromSpan(n.Span)}, nil
	case *ast.ContinueStmt:
		return wireStmt{Kind: "continue", Span: fromSpan(n.Span)}, nil
	case *ast.ReturnStmt:
		w := wireStmt{Kind: "return", Span: fromSpan(n.Span)}

		if n.Value != nil {
			val, err := fromExpr(n.Value)
			if err != nil {
				return wireStmt{}, err
			}

			w.Value = &val
		}

		return w, nil
	default:
		return wireStmt{}, fmt.Errorf("unknown statement type %T", s)
	}
}

func toStmt(w wireStmt) (ast.Stmt, error) {
	span := toSpan(w.Span)

	switch w.Kind {
	case "let":
		val, err := toExpr(*w.Value)
		if err != nil {
			return nil, err
		}

		ty, err := toTypePtr(w.Type)
		if err != nil {
			return nil, err
		}

		return &ast.LetStmt{
			Name: w.Name, NameSpan: toSpan(w.NameSpan), Type: ty, Value: val,
			DestructureIndex: w.DestructureIndex, Span: span,
		}, nil
	case "const":
		val, err := toExpr(*w.Value)
		if err != nil {
			return nil, err
		}

		ty, err := toTypePtr(w.Type)
		if err != nil {
			return nil, err
		}

		return &ast.ConstStmt{Name: w.Name, NameSpan: toSpan(w.NameSpan), Type: ty, Value: val, Span: span}, nil
	case "expr":
		val, err := toExpr(*w.Value)
		if err != nil {
			return nil, err
		}

		return &ast.ExprStmt{Value: val, Span: span}, nil
	case "assign":
		target, err := toExpr(*w.Target)
		if err != nil {
			return nil, err
		}

		val, err := toExpr(*w.Value)
		if err != nil {
			return nil, err
		}

		return &ast.AssignStmt{Target: target, Value: val, Span: span}, nil
	case "if":
		cond, err := toExpr(*w.Cond)
		if err != nil {
			return nil, err
		}

		then, err := toBlock(*w.Then)
		if err != nil {
			return nil, err
		}

		els, err := toBlockPtr(w.Else)
		if err != nil {
			return nil, err
		}

		return &ast.IfStmt{Cond: cond, Then: then, Else: els, Span: span}, nil
	case "while":
		cond, err := toExpr(*w.Cond)
		if err != nil {
			return nil, err
		}

		body, err := toBlock(*w.Body)
		if err != nil {
			return nil, err
		}

		return &ast.WhileStmt{Cond: cond, Body: body, Span: span}, nil
	case "loop":
		body, err := toBlock(*w.Body)
		if err != nil {
			return nil, err
		}

		return &ast.LoopStmt{Body: body, Span: span}, nil
	case "for":
		rng, err := toExpr(*w.Range)
		if err != nil {
			return nil, err
		}

		body, err := toBlock(*w.Body)
		if err != nil {
			return nil, err
		}

		return &ast.ForStmt{Name: w.Name, NameSpan: toSpan(w.NameSpan), Range: rng, Body: body, Span: span}, nil
	case "break":
		return &ast.BreakStmt{Span: span}, nil
	case "continue":
		return &ast.ContinueStmt{Span: span}, nil
	case "return":
		var val ast.Expr

		if w.Value != nil {
			v, err := toExpr(*w.Value)
			if err != nil {
				return nil, err
			}

			val = v
		}

		return &ast.ReturnStmt{Value: val, Span: span}, nil
	default:
		return nil, fmt.Errorf("unknown statement kind %q", w.Kind)
	}
}
