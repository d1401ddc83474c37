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
	"encoding/json"
	"testing"
)

func Test_ProgramJSON_RoundTrip(t *testing.T) {
	prog := NewProgram()
	prog.Append(NewInstruction(StoreAddFpImm, 0, 1, 7))
	prog.MarkLabel("loop")
	prog.Append(NewInstruction(JnzFpImm, 2, 3, 0))
	prog.Append(NewInstruction(CallAbsImm, 0, 0, 5))
	prog.Append(NewInstruction(Ret, 0, 0, 0))
	prog.EntryLabel = "main"
	prog.Labels["main"] = 2

	data, err := json.Marshal(prog)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	got := &Program{}
	if err := json.Unmarshal(data, got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if got.EntryLabel != prog.EntryLabel {
		t.Errorf("entry label = %q, want %q", got.EntryLabel, prog.EntryLabel)
	}

	if len(got.Instructions) != len(prog.Instructions) {
		t.Fatalf("instruction count = %d, want %d", len(got.Instructions), len(prog.Instructions))
	}

	for i, want := range prog.Instructions {
		if got.Instructions[i] != want {
			t.Errorf("instruction %d = %+v, want %+v", i, got.Instructions[i], want)
		}
	}

	for label, idx := range prog.Labels {
		if got.Labels[label] != idx {
			t.Errorf("label %q = %d, want %d", label, got.Labels[label], idx)
		}
	}
}

// Test_ProgramJSON_OpcodeNames confirms opcodes round-trip through their
// String() name rather than their numeric value, so program.json stays
// stable across a reordering of the opcode catalog.
func Test_ProgramJSON_OpcodeNames(t *testing.T) {
	prog := NewProgram()
	prog.Append(NewInstruction(StoreDoubleDerefFp, 1, 2, 3))
	prog.EntryLabel = "main"

	data, err := json.Marshal(prog)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal raw: %v", err)
	}

	instrs, ok := raw["instructions"].([]any)
	if !ok || len(instrs) != 1 {
		t.Fatalf("instructions = %v, want one entry", raw["instructions"])
	}

	instr, ok := instrs[0].(map[string]any)
	if !ok {
		t.Fatalf("instruction entry = %v, want object", instrs[0])
	}

	if instr["opcode"] != "store_double_deref_fp" {
		t.Errorf("opcode = %v, want %q", instr["opcode"], "store_double_deref_fp")
	}
}

func Test_ProgramJSON_UnknownOpcodeErrors(t *testing.T) {
	data := []byte(`{"instructions":[{"opcode":"not_a_real_opcode","a":0,"b":0,"c":0}],"entry_label":"main","labels":{}}`)

	got := &Program{}
	if err := json.Unmarshal(data, got); err == nil {
		t.Fatal("expected an error for an unrecognized opcode name")
	}
}
