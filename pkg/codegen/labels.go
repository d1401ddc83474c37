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
package codegen

import (
	"fmt"

	"github.com/cairo-m/cairom/pkg/casm"
	"github.com/cairo-m/cairom/pkg/mir"
)

// functionLabel names a function's entry instruction. Functions are called
// by name, so this is just the function name itself.
func functionLabel(fn *mir.Function) casm.Label { return casm.Label(fn.Name) }

// blockLabel names a non-entry block's first instruction.
func blockLabel(fn *mir.Function, id mir.BlockID) casm.Label {
	return casm.Label(fmt.Sprintf("%s$bb%d", fn.Name, id))
}

// labelOf returns the label that should be marked immediately before b is
// emitted: the function's own label for its entry block, a synthetic
// per-block label otherwise.
func labelOf(fn *mir.Function, b *mir.Block) casm.Label {
	if b.ID == fn.EntryID {
		return functionLabel(fn)
	}

	return blockLabel(fn, b.ID)
}

// scratchLabels hands out fresh synthetic labels for codegen-internal
// control flow (bool materialization in equality tests) that
// has no corresponding mir.Block of its own.
type scratchLabels struct {
	fn string
	n  int
}

func newScratchLabels(fn *mir.Function) *scratchLabels {
	return &scratchLabels{fn: fn.Name}
}

func (s *scratchLabels) next() casm.Label {
	s.n++
	return casm.Label(fmt.Sprintf("%s$s%d", s.fn, s.n))
}
