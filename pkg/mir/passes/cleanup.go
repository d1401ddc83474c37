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
package passes

import "github.com/cairo-m/cairom/pkg/mir"

// Cleanup runs store-to-load forwarding followed by dead code elimination,
// iterating the two to a fixed point: forwarding a load can leave values it
// used dead, and removing a dead instruction can make its operands dead in
// turn. Stores are never removed. Safe to run after Mem2Reg/SROA/LowerAggregates, or as a
// standalone pass over unoptimized MIR.
func Cleanup(fn *mir.Function) {
	for {
		forwarded := forwardStores(fn)
		removed := eliminateDeadCode(fn)

		if !forwarded && !removed {
			return
		}
	}
}

// forwardStores replaces `load addr` with the most recently stored value to
// that exact address within the same block, when no intervening call or
// store could have aliased it. Address identity is syntactic (same
// ValueID), which is exact for the GetElementPtr chains LowerAggregates
// emits but conservative about pointers produced by equivalent-but-distinct
// instructions.
func forwardStores(fn *mir.Function) bool {
	changed := false

	for _, b := range fn.Blocks {
		last := map[mir.ValueID]mir.Value{}
		kept := b.Instructions[:0]

		for _, instr := range b.Instructions {
			switch ins := instr.(type) {
			case *mir.Store:
				// A store through one pointer may alias any other forwarded
				// address, so only this store's own address stays known.
				addr, ok := asOperand(ins.Address)
				last = map[mir.ValueID]mir.Value{}

				if ok {
					last[addr] = ins.Src
				}

				kept = append(kept, ins)
			case *mir.Load:
				addr, ok := asOperand(ins.Address)
				if ok {
					if val, ok := last[addr]; ok {
						mir.ReplaceAllUses(fn, ins.DestID, val)
						changed = true

						continue
					}
				}

				kept = append(kept, ins)
			case *mir.Call, *mir.VoidCall:
				// A call may read or write through any pointer that
				// escaped to it; conservatively forget every forwarded
				// address rather than track which ones the callee reaches.
				last = map[mir.ValueID]mir.Value{}
				kept = append(kept, ins)
			default:
				kept = append(kept, ins)
			}
		}

		b.Instructions = kept
	}

	return changed
}

// eliminateDeadCode removes instructions whose destination is never used
// and that have no side effect of their own (stores, calls, and debug
// instructions are kept regardless of whether their nominal destination,
// if any, is live).
func eliminateDeadCode(fn *mir.Function) bool {
	used := map[mir.ValueID]bool{}

	mir.WalkOperands(fn, func(v mir.Value) {
		if op, ok := v.(mir.Operand); ok {
			used[op.ID] = true
		}
	})

	changed := false

	for _, b := range fn.Blocks {
		keptPhis := b.Phis[:0]

		for _, p := range b.Phis {
			if used[p.DestID] {
				keptPhis = append(keptPhis, p)
			} else {
				changed = true
			}
		}

		b.Phis = keptPhis

		kept := b.Instructions[:0]

		for _, instr := range b.Instructions {
			if hasSideEffect(instr) {
				kept = append(kept, instr)
				continue
			}

			dest, ok := instr.Dest()
			if ok && !used[dest] {
				changed = true
				continue
			}

			kept = append(kept, instr)
		}

		b.Instructions = kept
	}

	return changed
}

func hasSideEffect(instr mir.Instruction) bool {
	switch instr.(type) {
	case *mir.Store, *mir.Call, *mir.VoidCall, *mir.Debug:
		return true
	default:
		return false
	}
}
