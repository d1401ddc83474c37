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
package lspdaemon

import (
	"go.lsp.dev/protocol"

	"github.com/cairo-m/cairom/pkg/util/source"
)

// offsetForPosition converts an LSP line/character position into a rune
// offset into file's contents. Positions are counted in UTF-16 code units
// per the LSP spec; felt/u32 source text is expected to be ASCII, so the
// rune and UTF-16 counts coincide in practice and this does not carry a
// separate UTF-16 pass.
func offsetForPosition(file *source.File, pos protocol.Position) int {
	contents := file.Contents()

	line, col := uint32(0), uint32(0)

	for i, r := range contents {
		if line == pos.Line && col == pos.Character {
			return i
		}

		if r == '\n' {
			line++
			col = 0
		} else {
			col++
		}
	}

	return len(contents)
}

// positionForOffset is offsetForPosition's inverse, used to turn a
// definition's source.Span back into a protocol.Position for a Location.
func positionForOffset(file *source.File, offset int) protocol.Position {
	if offset < 0 {
		offset = 0
	}

	if offset > len(file.Contents()) {
		offset = len(file.Contents())
	}

	line := file.FindFirstEnclosingLine(source.NewSpan(offset, offset))

	return protocol.Position{
		Line:      uint32(line.Number() - 1),
		Character: uint32(offset - line.Start()),
	}
}

// sourceSpanAt builds a zero-length span at offset, used to probe the
// semantic index's scope tree (ScopeForSpan) at a cursor position.
func sourceSpanAt(offset int) source.Span { return source.NewSpan(offset, offset) }

func spanToRange(file *source.File, span source.Span) protocol.Range {
	return protocol.Range{
		Start: positionForOffset(file, span.Start()),
		End:   positionForOffset(file, span.End()),
	}
}
