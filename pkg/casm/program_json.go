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
package casm

import (
	"github.com/segmentio/encoding/json"

	"github.com/cairo-m/cairom/internal/m31"
)

// programJSON is the on-disk shape of a `program.json` file: opcodes
// round-trip through their String() name rather than their raw
// numeric value, so the file stays readable and stable across a catalog
// reordering.
type programJSON struct {
	Instructions []instructionJSON `json:"instructions"`
	EntryLabel   string            `json:"entry_label"`
	Labels       map[string]int    `json:"labels"`
}

type instructionJSON struct {
	Opcode string `json:"opcode"`
	A      uint64 `json:"a"`
	B      uint64 `json:"b"`
	C      uint64 `json:"c"`
}

// MarshalJSON implements json.Marshaler, giving Program the program.json
// wire format pkg/cli's `compile`/`asm`/`run` commands exchange.
func (p *Program) MarshalJSON() ([]byte, error) {
	w := programJSON{
		EntryLabel:   string(p.EntryLabel),
		Labels:       make(map[string]int, len(p.Labels)),
		Instructions: make([]instructionJSON, len(p.Instructions)),
	}

	for label, idx := range p.Labels {
		w.Labels[string(label)] = idx
	}

	for i, instr := range p.Instructions {
		w.Instructions[i] = instructionJSON{
			Opcode: instr.Opcode.String(),
			A:      uint64(instr.A.ToUint32()),
			B:      uint64(instr.B.ToUint32()),
			C:      uint64(instr.C.ToUint32()),
		}
	}

	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler, the inverse of MarshalJSON.
func (p *Program) UnmarshalJSON(data []byte) error {
	var w programJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	p.EntryLabel = Label(w.EntryLabel)
	p.Labels = make(map[Label]int, len(w.Labels))

	for label, idx := range w.Labels {
		p.Labels[Label(label)] = idx
	}

	p.Instructions = make([]Instruction, len(w.Instructions))

	for i, wi := range w.Instructions {
		op, err := ParseOpcode(wi.Opcode)
		if err != nil {
			return err
		}

		p.Instructions[i] = Instruction{Opcode: op, A: m31.New(wi.A), B: m31.New(wi.B), C: m31.New(wi.C)}
	}

	return nil
}
