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
package cli

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/cairo-m/cairom/pkg/casm"
	"github.com/cairo-m/cairom/pkg/vm"
)

// writeProgramJSON writes prog to path using casm.Program's own MarshalJSON,
// the program.json external-interface artifact a `compile` invocation always
// produces.
func writeProgramJSON(path string, prog *casm.Program) {
	data, err := prog.MarshalJSON()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// writeTraceFile writes trace.bin: concatenated little-endian (fp, pc) u32
// pairs, one per executed step.
func writeTraceFile(path string, steps []vm.TraceEntry) {
	buf := make([]byte, 0, len(steps)*8)

	for _, s := range steps {
		var pair [8]byte

		binary.LittleEndian.PutUint32(pair[0:4], s.FP.ToUint32())
		binary.LittleEndian.PutUint32(pair[4:8], s.PC)
		buf = append(buf, pair[:]...)
	}

	if err := os.WriteFile(path, buf, 0o644); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// writeMemoryTraceFile writes memory_trace.bin: the program length as a u32,
// followed by one little-endian (addr, v0, v1, v2, v3) u32 quintuple per
// memory access. This VM's cells hold a single m31.Element rather than the
// four-limb word the wire format reserves room for, so v1..v3 are always 0.
func writeMemoryTraceFile(path string, programLen uint32, events []vm.AccessEvent) {
	buf := make([]byte, 4, 4+len(events)*20)
	binary.LittleEndian.PutUint32(buf[0:4], programLen)

	for _, e := range events {
		var quintuple [20]byte

		binary.LittleEndian.PutUint32(quintuple[0:4], e.Addr)
		binary.LittleEndian.PutUint32(quintuple[4:8], e.Value.ToUint32())
		// v1..v3 stay zero: single-limb felt cells, not four-limb words.
		buf = append(buf, quintuple[:]...)
	}

	if err := os.WriteFile(path, buf, 0o644); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
