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
	"testing"

	"go.lsp.dev/protocol"

	"github.com/cairo-m/cairom/pkg/util/source"
)

func Test_OffsetForPosition(t *testing.T) {
	file := source.NewSourceFile("t.cm", []byte("fn main() {\n  let x = 1;\n}\n"))

	cases := []struct {
		pos  protocol.Position
		want int
	}{
		{protocol.Position{Line: 0, Character: 0}, 0},
		{protocol.Position{Line: 0, Character: 3}, 3},
		{protocol.Position{Line: 1, Character: 0}, 12},
		{protocol.Position{Line: 1, Character: 6}, 18},
	}

	for _, c := range cases {
		got := offsetForPosition(file, c.pos)
		if got != c.want {
			t.Errorf("offsetForPosition(%+v) = %d, want %d", c.pos, got, c.want)
		}
	}
}

func Test_PositionForOffset_RoundTrips(t *testing.T) {
	file := source.NewSourceFile("t.cm", []byte("fn main() {\n  let x = 1;\n}\n"))

	for offset := 0; offset < len(file.Contents()); offset++ {
		pos := positionForOffset(file, offset)
		back := offsetForPosition(file, pos)

		if back != offset {
			t.Errorf("offset %d -> position %+v -> offset %d, want round trip", offset, pos, back)
		}
	}
}

func Test_PositionForOffset_ClampsOutOfRange(t *testing.T) {
	file := source.NewSourceFile("t.cm", []byte("abc"))

	if pos := positionForOffset(file, -5); pos.Line != 0 || pos.Character != 0 {
		t.Errorf("negative offset clamped to %+v, want start of file", pos)
	}

	end := positionForOffset(file, 1000)
	if end != positionForOffset(file, len(file.Contents())) {
		t.Errorf("overlong offset clamped to %+v, want end of file", end)
	}
}

func Test_SpanToRange(t *testing.T) {
	file := source.NewSourceFile("t.cm", []byte("abcdef"))
	span := source.NewSpan(1, 4)

	got := spanToRange(file, span)
	want := protocol.Range{
		Start: protocol.Position{Line: 0, Character: 1},
		End:   protocol.Position{Line: 0, Character: 4},
	}

	if got != want {
		t.Errorf("spanToRange(%v) = %+v, want %+v", span, got, want)
	}
}
