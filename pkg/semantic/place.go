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
package semantic

// PlaceID indexes into an Index's place arena.
type PlaceID uint32

// PlaceFlag is one bit of a Place's flag set. There are few enough flags
// (six) that a plain bitmask is the idiomatic choice here rather than
// reaching for a dynamic bit-set type; the MIR builder's sealed-block
// tracking, which is genuinely dynamic and sized per function, uses
// bitset.BitSet instead (see pkg/mir.Builder).
type PlaceFlag uint8

// Place flags.
const (
	FlagDefined PlaceFlag = 1 << iota
	FlagUsed
	FlagFunction
	FlagStruct
	FlagParameter
	FlagConstant
)

// Place is a named storage location within one scope. Within a scope, names
// are unique for direct lookup purposes: the last definition registered
// under a name wins, and shadowing across nested scopes is resolved by
// walking parent scopes.
type Place struct {
	Scope ScopeID
	Name  string
	Flags PlaceFlag
}

// Has reports whether the given flag(s) are all set.
func (p *Place) Has(f PlaceFlag) bool { return p.Flags&f == f }

// Set returns a copy of this place with the given flag(s) added.
func (p Place) Set(f PlaceFlag) Place {
	p.Flags |= f
	return p
}
