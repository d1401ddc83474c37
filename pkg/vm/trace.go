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
package vm

import (
	"github.com/cairo-m/cairom/internal/m31"
	"github.com/cairo-m/cairom/pkg/casm"
)

// TraceEntry records the (pc, fp) register state the machine was in before
// executing one step.
type TraceEntry struct {
	PC uint32
	FP m31.Element
	// Instruction is the instruction fetched at PC, kept alongside the
	// registers so a trace can be replayed or dumped without re-opening
	// the originating Program.
	Instruction casm.Instruction
}

// Trace accumulates the step-by-step register trace and the full memory
// access log a run produced.
type Trace struct {
	Steps   []TraceEntry
	Memory  []AccessEvent
	Returns []m31.Element
}

func (t *Trace) recordStep(entry TraceEntry) {
	t.Steps = append(t.Steps, entry)
}

func (t *Trace) recordAccess(event AccessEvent) {
	t.Memory = append(t.Memory, event)
}
