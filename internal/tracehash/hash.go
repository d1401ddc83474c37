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

// Package tracehash content-addresses a compiled program; no cairom
// subcommand calls it. It has nothing to do with M31 or VM semantics:
// it exists purely so a build artifact can be named by a stable digest
// without reaching for a general-purpose hash library the rest of the
// toolchain has no other use for.
package tracehash

import (
	"github.com/consensys/gnark-crypto/ecc/bls12-377/fr"
)

// Digest is the canonical 32-byte big-endian encoding of a BLS12-377 scalar
// field element.
type Digest [fr.Bytes]byte

// Hash folds data through a Horner-scheme accumulator over BLS12-377's
// scalar field: each 31-byte chunk (kept strictly below the field's modulus
// so SetBytes never reduces) is absorbed as acc = acc*x + chunk for a fixed
// generator x, then the final element's canonical bytes are the digest.
// This is a convenience content-address, not a cryptographic commitment —
// nothing downstream relies on collision resistance.
func Hash(data []byte) Digest {
	var acc fr.Element

	var x fr.Element
	x.SetUint64(generator)

	const chunkSize = 31

	for i := 0; i < len(data); i += chunkSize {
		end := i + chunkSize
		if end > len(data) {
			end = len(data)
		}

		var chunk fr.Element
		chunk.SetBytes(data[i:end])

		acc.Mul(&acc, &x)
		acc.Add(&acc, &chunk)
	}

	var lenElem fr.Element
	lenElem.SetUint64(uint64(len(data)))
	acc.Mul(&acc, &x)
	acc.Add(&acc, &lenElem)

	return Digest(acc.Bytes())
}

// generator is an arbitrary fixed nonzero constant; any such constant
// yields a well-defined, deterministic digest.
const generator = 0x5a827999
