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

// Package vm executes a resolved casm.Program: flat field-element memory,
// pc/fp registers, and a fetch-dispatch-step loop over the 32-opcode
// catalog, recording the timestamped access trace the prover consumes.
package vm

import (
	"fmt"

	"github.com/cairo-m/cairom/internal/m31"
)

// AccessEvent is one timestamped memory access: the address, the clock of
// the previous access to it (read or write), the value observed or written, and the
// clock of this access. A memory-consistency argument over the trace needs
// exactly this tuple for every access.
type AccessEvent struct {
	Addr      uint32
	PrevClock uint32
	Value     m31.Element
	NewClock  uint32
	IsWrite   bool
}

// UninitializedReadError reports a read of an address with no prior write.
type UninitializedReadError struct {
	Addr uint32
}

func (e *UninitializedReadError) Error() string {
	return fmt.Sprintf("vm: read of uninitialized address %d", e.Addr)
}

// Memory is flat field-element storage addressed by a reduced uint32, with
// a table of each address's most recent access clock (reads and writes
// both update it) giving O(1) previous-clock lookup for every access.
type Memory struct {
	cells     map[uint32]m31.Element
	lastWrite map[uint32]uint32
}

// NewMemory constructs an empty Memory.
func NewMemory() *Memory {
	return &Memory{
		cells:     map[uint32]m31.Element{},
		lastWrite: map[uint32]uint32{},
	}
}

// Read returns the value at addr and the access event it generates, at the
// given clock. Reading an address with no prior Write is an error: every
// cell the VM ever reads must have been written first, matching the
// memory-consistency requirement of the trace this VM produces.
func (m *Memory) Read(addr uint32, clock uint32) (m31.Element, AccessEvent, error) {
	val, ok := m.cells[addr]
	if !ok {
		return m31.Zero, AccessEvent{}, &UninitializedReadError{Addr: addr}
	}

	prev := m.lastWrite[addr]
	event := AccessEvent{Addr: addr, PrevClock: prev, Value: val, NewClock: clock}
	m.lastWrite[addr] = clock

	return val, event, nil
}

// Write stores val at addr at the given clock and returns the access event.
func (m *Memory) Write(addr uint32, val m31.Element, clock uint32) AccessEvent {
	prev := m.lastWrite[addr]
	m.cells[addr] = val
	m.lastWrite[addr] = clock

	return AccessEvent{Addr: addr, PrevClock: prev, Value: val, NewClock: clock, IsWrite: true}
}
