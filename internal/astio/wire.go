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
	"github.com/cairo-m/cairom/pkg/util/source"
)

// wireSpan shadows source.Span, whose start/end fields are unexported.
type wireSpan struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func fromSpan(s source.Span) wireSpan { return wireSpan{Start: s.Start(), End: s.End()} }
func toSpan(w wireSpan) source.Span   { return source.NewSpan(w.Start, w.End) }

// wireType shadows ast.Type. Kind is one of the TypeKind names below; Elem is
// present only for "array", Size only for "array", Name only for "named".
type wireType struct {
	Kind string    `json:"kind"`
	Name string    `json:"name,omitempty"`
	Elem *wireType `json:"elem,omitempty"`
	Size uint64    `json:"size,omitempty"`
	Span wireSpan  `json:"span"`
}

var typeKindNames = map[ast.TypeKind]string{
	ast.TypeFelt:  "felt",
	ast.TypeU32:   "u32",
	ast.TypeBool:  "bool",
	ast.TypeUnit:  "unit",
	ast.TypeNamed: "named",
	ast.TypeTuple: "tuple",
	ast.TypeArray: "array",
}

var typeKindValues = map[string]ast.TypeKind{
	"felt": ast.TypeFelt, "u32": ast.TypeU32, "bool": ast.TypeBool, "unit": ast.TypeUnit,
	"named": ast.TypeNamed, "tuple": ast.TypeTuple, "array": ast.TypeArray,
}

func fromType(t ast.Type) (wireType, error) {
	name, ok := typeKindNames[t.Kind]
	if !ok {
		return wireType{}, fmt.Errorf("unknown TypeKind %d", t.Kind)
	}

	w := wireType{Kind: name, Name: t.Name, Size: t.Size, Span: fromSpan(t.Span)}

	if t.Elem != nil {
		elem, err := fromType(*t.Elem)
		if err != nil {
			return wireType{}, err
		}

		w.Elem = &elem
	}

	return w, nil
}

func toType(w wireType) (ast.Type, error) {
	kind, ok := typeKindValues[w.Kind]
	if !ok {
		return ast.Type{}, fmt.Errorf("unknown type kind %q", w.Kind)
	}

	t := ast.Type{Kind: kind, Name: w.Name, Size: w.Size, Span: toSpan(w.Span)}

	if w.Elem != nil {
		elem, err := toType(*w.Elem)
		if err != nil {
			return ast.Type{}, err
		}

		t.Elem = &elem
	}

	return t, nil
}

func toTypePtr(w *wireType) (*ast.Type, error) {
	if w == nil {
		return nil, nil
	}

	t, err := toType(*w)
	if err != nil {
		return nil, err
	}

	return &t, nil
}

func fromTypePtr(t *ast.Type) (*wireType, error) {
	if t == nil {
		return nil, nil
	}

	w, err := fromType(*t)
	if err != nil {
		return nil, err
	}

	return &w, nil
}

func fromTypes(ts []ast.Type) ([]wireType, error) {
	out := make([]wireType, len(ts))

	for i, t := range ts {
		w, err := fromType(t)
		if err != nil {
			return nil, err
		}

		out[i] = w
	}

	return out, nil
}

func toTypes(ws []wireType) ([]ast.Type, error) {
	out := make([]ast.Type, len(ws))

	for i, w := range ws {
		t, err := toType(w)
		if err != nil {
			return nil, err
		}

		out[i] = t
	}

	return out, nil
}
