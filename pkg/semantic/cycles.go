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
package semantic

import (
	"path/filepath"
	"strings"

	"github.com/cairo-m/cairom/pkg/util/source"
)

// moduleNameOf derives a module's name from its file path: the base name
// without extension, the same convention internal/driver and pkg/mir use to
// map a `use` path's first segment back to the file that defines it.
func moduleNameOf(file string) string {
	base := filepath.Base(file)
	if ext := filepath.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}

	return base
}

type moduleEdge struct {
	to   string
	span source.Span
}

// DetectCyclicImports walks the import graph across every unit's Index and
// returns one CyclicImport diagnostic per cycle found, including a module
// that imports itself. It must run after every unit in a compilation has
// been built, since a cycle is only visible once the whole module graph is
// known.
func DetectCyclicImports(indices []*Index) []Diagnostic {
	byModule := make(map[string]*Index, len(indices))
	for _, idx := range indices {
		byModule[moduleNameOf(idx.File)] = idx
	}

	adjacency := map[string][]moduleEdge{}

	for _, idx := range indices {
		from := moduleNameOf(idx.File)

		seen := map[string]bool{}

		for _, e := range idx.importEdges {
			if len(e.modulePath) == 0 {
				continue
			}

			to := e.modulePath[0]
			if seen[to] {
				continue
			}

			seen[to] = true

			adjacency[from] = append(adjacency[from], moduleEdge{to: to, span: e.span})
		}
	}

	const (
		white = iota
		gray
		black
	)

	color := map[string]int{}

	var diags []Diagnostic

	var stack []string

	var visit func(m string)

	visit = func(m string) {
		color[m] = gray
		stack = append(stack, m)

		for _, edge := range adjacency[m] {
			switch color[edge.to] {
			case white:
				if _, ok := byModule[edge.to]; ok {
					visit(edge.to)
				}
			case gray:
				start := 0
				for i, s := range stack {
					if s == edge.to {
						start = i
						break
					}
				}

				path := append(append([]string{}, stack[start:]...), edge.to)
				diags = append(diags, cyclicImport(path, edge.span))
			case black:
				// Already fully explored with no cycle through it.
			}
		}

		stack = stack[:len(stack)-1]
		color[m] = black
	}

	for _, idx := range indices {
		m := moduleNameOf(idx.File)
		if color[m] == white {
			visit(m)
		}
	}

	return diags
}
