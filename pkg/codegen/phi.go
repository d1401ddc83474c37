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

import "github.com/cairo-m/cairom/pkg/mir"

// LowerPhis eliminates every phi in fn by inserting an Assign `dest = src`
// at the end of each predecessor, before its terminator, and dropping the
// phi prefix. CASM has no phi-equivalent; sequential fp-slot writes are the
// lowering every stack-machine/register-poor target uses.
//
// This does a plain sequential insertion, not full parallel-copy resolution
// (breaking cycles where one phi's incoming value is another phi's
// destination in the same predecessor). Mem2Reg/SROA never produce such a
// cycle for the straight-line variable promotion and loop-counter patterns
// this compiler generates today; a source construct that required swapping
// two live values through phis would need a temporary-introducing
// sequentializer here instead.
func LowerPhis(fn *mir.Function) {
	for _, b := range fn.Blocks {
		if len(b.Phis) == 0 {
			continue
		}

		for _, phi := range b.Phis {
			for _, src := range phi.Sources {
				pred := fn.Block(src.Predecessor)
				pred.Instructions = append(pred.Instructions, &mir.Assign{
					DestID: phi.DestID,
					Source: src.Value,
					Ty:     phi.Ty,
				})
			}
		}

		b.Phis = nil
	}
}
