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

// Package astio reads and writes the JSON shape of a pkg/ast tree. No parser
// lives in this repo (see pkg/ast's package doc): a real front end parses
// source text and hands the rest of the pipeline this JSON, the wire format
// cmd/cairom's compile command reads from disk.
package astio

import (
	"fmt"
	"io"

	"github.com/segmentio/encoding/json"

	"github.com/cairo-m/cairom/pkg/ast"
	"github.com/cairo-m/cairom/pkg/util/source"
)

// Unit is one decoded compilation unit: the original source text (kept so
// diagnostics can report line/column spans) paired with its parsed tree.
type Unit struct {
	Text *source.File
	Tree *ast.File
}

// unitJSON is the on-disk envelope: a real external parser would hand off
// exactly this pair, since util/source.File needs the original bytes to
// resolve a Span to a line and column.
type unitJSON struct {
	Path   string   `json:"path"`
	Source string   `json:"source"`
	Ast    wireFile `json:"ast"`
}

// DecodeUnit reads one compilation unit from r.
func DecodeUnit(r io.Reader) (*Unit, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("astio: reading unit: %w", err)
	}

	var w unitJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("astio: decoding unit: %w", err)
	}

	tree, err := toFile(w.Ast)
	if err != nil {
		return nil, fmt.Errorf("astio: decoding unit %q: %w", w.Path, err)
	}

	path := w.Path
	if path == "" {
		path = tree.Path
	}

	return &Unit{Text: source.NewSourceFile(path, []byte(w.Source)), Tree: tree}, nil
}

// EncodeUnit writes u to w in the same envelope DecodeUnit reads.
func EncodeUnit(w io.Writer, u *Unit) error {
	wireTree, err := fromFile(u.Tree)
	if err != nil {
		return fmt.Errorf("astio: encoding unit %q: %w", u.Text.Filename(), err)
	}

	data, err := json.Marshal(unitJSON{
		Path:   u.Text.Filename(),
		Source: string(u.Text.Contents()),
		Ast:    wireTree,
	})
	if err != nil {
		return fmt.Errorf("astio: encoding unit %q: %w", u.Text.Filename(), err)
	}

	_, err = w.Write(data)

	return err
}

// DecodeFile reads a bare ast.File with no accompanying source text,
// for tooling (such as `cairom mir`) that only ever prints a tree back out
// and never needs to resolve a Span against the original text.
func DecodeFile(r io.Reader) (*ast.File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("astio: reading file: %w", err)
	}

	var w wireFile
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("astio: decoding file: %w", err)
	}

	return toFile(w)
}

// EncodeFile writes a bare ast.File, the inverse of DecodeFile.
func EncodeFile(w io.Writer, f *ast.File) error {
	wireTree, err := fromFile(f)
	if err != nil {
		return fmt.Errorf("astio: encoding file %q: %w", f.Path, err)
	}

	data, err := json.Marshal(wireTree)
	if err != nil {
		return fmt.Errorf("astio: encoding file %q: %w", f.Path, err)
	}

	_, err = w.Write(data)

	return err
}
