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

type wireParam struct {
	Name     string   `json:"name"`
	NameSpan wireSpan `json:"name_span"`
	Type     wireType `json:"type"`
}

type wireStructField struct {
	Name string   `json:"name"`
	Type wireType `json:"type"`
	Span wireSpan `json:"span"`
}

type wireUseItem struct {
	Name     string   `json:"name"`
	NameSpan wireSpan `json:"name_span"`
	Alias    string   `json:"alias,omitempty"`
}

// wireItem is a flat union of every ast.Item kind, discriminated by Kind.
type wireItem struct {
	Kind     string   `json:"kind"`
	Name     string   `json:"name,omitempty"`
	NameSpan wireSpan `json:"name_span,omitempty"`
	Span     wireSpan `json:"span"`

	Params     []wireParam `json:"params,omitempty"`
	ReturnType []wireType  `json:"return_type,omitempty"`
	Body       *wireBlock  `json:"body,omitempty"`

	Fields []wireStructField `json:"fields,omitempty"`

	Items []wireItem `json:"items,omitempty"`

	ModulePath []string      `json:"module_path,omitempty"`
	UseItems   []wireUseItem `json:"use_items,omitempty"`

	Type  *wireType `json:"type,omitempty"`
	Value *wireExpr `json:"value,omitempty"`
}

// wireFile shadows ast.File.
type wireFile struct {
	Path  string     `json:"path"`
	Items []wireItem `json:"items"`
}

func fromFile(f *ast.File) (wireFile, error) {
	items := make([]wireItem, len(f.Items))

	for i, it := range f.Items {
		w, err := fromItem(it)
		if err != nil {
			return wireFile{}, err
		}

		items[i] = w
	}

	return wireFile{Path: f.Path, Items: items}, nil
}

func toFile(w wireFile) (*ast.File, error) {
	items := make([]ast.Item, len(w.Items))

	for i, it := range w.Items {
		item, err := toItem(it)
		if err != nil {
			return nil, err
		}

		items[i] = item
	}

	return &ast.File{Path: w.Path, Items: items}, nil
}

func fromItem(item ast.Item) (wireItem, error) {
	switch n := item.(type) {
	case *ast.Function:
		params := make([]wireParam, len(n.Params))

		for i, p := range n.Params {
			ty, err := fromType(p.Type)
			if err != nil {
				return wireItem{}, err
			}

			params[i] = wireParam{Name: p.Name, NameSpan: fromSpan(p.NameSpan), Type: ty}
		}

		retTy, err := fromTypes(n.ReturnType)
		if err != nil {
			return wireItem{}, err
		}

		body, err := fromBlockPtr(n.Body)
		if err != nil {
			return wireItem{}, err
		}

		return wireItem{
			Kind: "function", Name: n.Name, NameSpan: fromSpan(n.NameSpan), Span: fromSpan(n.Span),
			Params: params, ReturnType: retTy, Body: body,
		}, nil
	case *ast.Struct:
		fields := make([]wireStructField, len(n.Fields))

		for i, f := range n.Fields {
			ty, err := fromType(f.Type)
			if err != nil {
				return wireItem{}, err
			}

			fields[i] = wireStructField{Name: f.Name, Type: ty, Span: fromSpan(f.Span)}
		}

		return wireItem{
			Kind: "struct", Name: n.Name, NameSpan: fromSpan(n.NameSpan), Span: fromSpan(n.Span),
			Fields: fields,
		}, nil
	case *ast.Namespace:
		items := make([]wireItem, len(n.Body))

		for i, it := range n.Body {
			w, err := fromItem(it)
			if err != nil {
				return wireItem{}, err
			}

			items[i] = w
		}

		return wireItem{
			Kind: "namespace", Name: n.Name, NameSpan: fromSpan(n.NameSpan), Span: fromSpan(n.Span),
			Items: items,
		}, nil
	case *ast.Use:
		useItems := make([]wireUseItem, len(n.Items))

		for i, it := range n.Items {
			useItems[i] = wireUseItem{Name: it.Name, NameSpan: fromSpan(it.NameSpan), Alias: it.Alias}
		}

		return wireItem{
			Kind: "use", Span: fromSpan(n.Span), ModulePath: n.ModulePath, UseItems: useItems,
		}, nil
	case *ast.Const:
		val, err := fromExpr(n.Value)
		if err != nil {
			return wireItem{}, err
		}

		ty, err := fromTypePtr(n.Type)
		if err != nil {
			return wireItem{}, err
		}

		return wireItem{
			Kind: "const", Name: n.Name, NameSpan: fromSpan(n.NameSpan), Span: fromSpan(n.Span),
			Type: ty, Value: &val,
		}, nil
	default:
		return wireItem{}, fmt.Errorf("unknown item type %T", item)
	}
}

func toItem(w wireItem) (ast.Item, error) {
	span := toSpan(w.Span)

	switch w.Kind {
	case "function":
		params := make([]ast.Param, len(w.Params))

		for i, p := range w.Params {
			ty, err := toType(p.Type)
			if err != nil {
				return nil, err
			}

			params[i] = ast.Param{Name: p.Name, NameSpan: toSpan(p.NameSpan), Type: ty}
		}

		retTy, err := toTypes(w.ReturnType)
		if err != nil {
			return nil, err
		}

		body, err := toBlockPtr(w.Body)
		if err != nil {
			return nil, err
		}

		return &ast.Function{
			Name: w.Name, NameSpan: toSpan(w.NameSpan), Params: params, ReturnType: retTy,
			Body: body, Span: span,
		}, nil
	case "struct":
		fields := make([]ast.StructField, len(w.Fields))

		for i, f := range w.Fields {
			ty, err := toType(f.Type)
			if err != nil {
				return nil, err
			}

			fields[i] = ast.StructField{Name: f.Name, Type: ty, Span: toSpan(f.Span)}
		}

		return &ast.Struct{Name: w.Name, NameSpan: toSpan(w.NameSpan), Fields: fields, Span: span}, nil
	case "namespace":
		items := make([]ast.Item, len(w.Items))

		for i, it := range w.Items {
			item, err := toItem(it)
			if err != nil {
				return nil, err
			}

			items[i] = item
		}

		return &ast.Namespace{Name: w.Name, NameSpan: toSpan(w.NameSpan), Body: items, Span: span}, nil
	case "use":
		useItems := make([]ast.UseItem, len(w.UseItems))

		for i, it := range w.UseItems {
			useItems[i] = ast.UseItem{Name: it.Name, NameSpan: toSpan(it.NameSpan), Alias: it.Alias}
		}

		return &ast.Use{ModulePath: w.ModulePath, Items: useItems, Span: span}, nil
	case "const":
		val, err := toExpr(*w.Value)
		if err != nil {
			return nil, err
		}

		ty, err := toTypePtr(w.Type)
		if err != nil {
			return nil, err
		}

		return &ast.Const{Name: w.Name, NameSpan: toSpan(w.NameSpan), Type: ty, Value: val, Span: span}, nil
	default:
		return nil, fmt.Errorf("unknown item kind %q", w.Kind)
	}
}
