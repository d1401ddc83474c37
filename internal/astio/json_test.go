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
package astio_test

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/cairo-m/cairom/internal/astio"
	"github.com/cairo-m/cairom/pkg/ast"
	"github.com/cairo-m/cairom/pkg/util/source"
)

// exprSpan sets e's embedded exprBase.Span. exprBase is unexported, so a
// composite literal outside the ast package cannot name it as a field key;
// the promoted Span field is still reachable through a plain selector.
func exprSpan[E ast.Expr](e E, span source.Span) E {
	switch v := any(e).(type) {
	case *ast.BinaryExpr:
		v.Span = span
	case *ast.Identifier:
		v.Span = span
	case *ast.IntLiteral:
		v.Span = span
	}

	return e
}

func sampleFile() *ast.File {
	span := source.NewSpan(0, 1)

	return &ast.File{
		Path: "sample.cm",
		Items: []ast.Item{
			&ast.Function{
				Name:       "add",
				NameSpan:   span,
				Params:     []ast.Param{{Name: "a", NameSpan: span, Type: ast.Type{Kind: ast.TypeFelt, Span: span}}},
				ReturnType: []ast.Type{{Kind: ast.TypeFelt, Span: span}},
				Span:       span,
				Body: &ast.Block{
					Span: span,
					Stmts: []ast.Stmt{
						&ast.LetStmt{
							Name:     "x",
							NameSpan: span,
							Type:     &ast.Type{Kind: ast.TypeU32, Span: span},
							Value: exprSpan(&ast.BinaryExpr{
								Op:    ast.OpAdd,
								Left:  exprSpan(&ast.Identifier{Name: "a"}, span),
								Right: exprSpan(&ast.IntLiteral{Value: 7}, span),
							}, span),
							Span: span,
						},
						&ast.ReturnStmt{
							Value: exprSpan(&ast.Identifier{Name: "x"}, span),
							Span:  span,
						},
					},
				},
			},
			&ast.Struct{
				Name:     "Pair",
				NameSpan: span,
				Span:     span,
				Fields: []ast.StructField{
					{Name: "fst", Type: ast.Type{Kind: ast.TypeFelt, Span: span}, Span: span},
					{Name: "snd", Type: ast.Type{Kind: ast.TypeArray, Elem: &ast.Type{Kind: ast.TypeFelt, Span: span}, Size: 4, Span: span}, Span: span},
				},
			},
			&ast.Use{
				ModulePath: []string{"std", "math"},
				Items:      []ast.UseItem{{Name: "sqrt", NameSpan: span}},
				Span:       span,
			},
		},
	}
}

func Test_EncodeDecodeFile_RoundTrip(t *testing.T) {
	want := sampleFile()

	var buf bytes.Buffer
	if err := astio.EncodeFile(&buf, want); err != nil {
		t.Fatalf("encode: %v", err)
	}

	got, err := astio.DecodeFile(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if !reflect.DeepEqual(want, got) {
		t.Errorf("round trip mismatch:\n got  = %#v\n want = %#v", got, want)
	}
}

func Test_EncodeDecodeUnit_RoundTrip(t *testing.T) {
	tree := sampleFile()
	unit := &astio.Unit{
		Text: source.NewSourceFile("sample.cm", []byte("fn add(a: felt) -> felt { let x: u32 = a + 7; return x; }")),
		Tree: tree,
	}

	var buf bytes.Buffer
	if err := astio.EncodeUnit(&buf, unit); err != nil {
		t.Fatalf("encode: %v", err)
	}

	got, err := astio.DecodeUnit(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if got.Text.Filename() != unit.Text.Filename() {
		t.Errorf("filename = %q, want %q", got.Text.Filename(), unit.Text.Filename())
	}

	if string(got.Text.Contents()) != string(unit.Text.Contents()) {
		t.Errorf("source text = %q, want %q", string(got.Text.Contents()), string(unit.Text.Contents()))
	}

	if !reflect.DeepEqual(tree, got.Tree) {
		t.Errorf("tree round trip mismatch:\n got  = %#v\n want = %#v", got.Tree, tree)
	}
}

func Test_DecodeFile_UnknownTypeKindErrors(t *testing.T) {
	_, err := astio.DecodeFile(bytes.NewReader([]byte(
		`{"path":"bad.cm","items":[{"kind":"struct","name":"S","name_span":{"start":0,"end":1},` +
			`"span":{"start":0,"end":1},"fields":[{"name":"f","type":{"kind":"not_a_type","span":{"start":0,"end":1}},"span":{"start":0,"end":1}}]}]}`,
	)))
	if err == nil {
		t.Fatal("expected an error for an unrecognized type kind")
	}
}
