// The package doc, Modulus and Element below match tools/genfield's
// element.go.tmpl (bavard); the rest of this file is not in that template.
//
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

// Package m31 implements arithmetic over the Mersenne-31 prime field, the
// field underlying every memory cell and register value in the Cairo-M VM.
package m31

import "fmt"

// Modulus is the Mersenne-31 prime 2^31 - 1.
const Modulus uint64 = (1 << 31) - 1

// Element is a value of the Mersenne-31 field, always held in canonical
// (reduced) form in [0, Modulus).
type Element struct {
	value uint32
}

// Zero is the additive identity.
var Zero = Element{0}

// One is the multiplicative identity.
var One = Element{1}

// New reduces a uint64 into a canonical Element.
func New(v uint64) Element {
	return Element{uint32(reduce(v))}
}

// NewFromInt64 reduces a possibly-negative int64 into a canonical Element.
func NewFromInt64(v int64) Element {
	m := int64(Modulus)
	v %= m
	if v < 0 {
		v += m
	}

	return Element{uint32(v)}
}

func reduce(v uint64) uint64 {
	// Mersenne reduction: v mod (2^31 - 1) by folding the high bits back in.
	for v>>31 != 0 {
		v = (v & Modulus) + (v >> 31)
	}

	if v == Modulus {
		v = 0
	}

	return v
}

// Add returns x+y.
func (x Element) Add(y Element) Element {
	return Element{uint32(reduce(uint64(x.value) + uint64(y.value)))}
}

// Sub returns x-y.
func (x Element) Sub(y Element) Element {
	if x.value >= y.value {
		return Element{x.value - y.value}
	}

	return Element{uint32(Modulus) - (y.value - x.value)}
}

// AddUint32 returns x+y. It's the canonical way to create a new element from a
// raw integer.
func (x Element) AddUint32(y uint32) Element {
	return x.Add(New(uint64(y)))
}

// ToUint32 returns the numerical value of x.
func (x Element) ToUint32() uint32 {
	return x.value
}

// Mul returns x*y.
func (x Element) Mul(y Element) Element {
	return Element{uint32(reduce(uint64(x.value) * uint64(y.value)))}
}

// Cmp returns 1 if x > y, 0 if x = y, and -1 if x < y, comparing canonical
// representatives.
func (x Element) Cmp(y Element) int {
	switch {
	case x.value > y.value:
		return 1
	case x.value < y.value:
		return -1
	default:
		return 0
	}
}

// Double returns 2x.
func (x Element) Double() Element {
	return x.Add(x)
}

// Half returns x/2, i.e. x multiplied by the inverse of 2.
func (x Element) Half() Element {
	if x.value&1 == 0 {
		return Element{x.value >> 1}
	}

	return Element{uint32((uint64(x.value) + Modulus) >> 1)}
}

// Inverse returns x⁻¹, or 0 if x = 0. Computed via Fermat's little theorem
// since Modulus is prime: x^(p-2) = x^-1 mod p.
func (x Element) Inverse() Element {
	if x.value == 0 {
		return Zero
	}

	return x.Pow(Modulus - 2)
}

// Pow raises x to the given exponent via square-and-multiply.
func (x Element) Pow(exp uint64) Element {
	result := One
	base := x

	for exp > 0 {
		if exp&1 == 1 {
			result = result.Mul(base)
		}

		base = base.Mul(base)
		exp >>= 1
	}

	return result
}

// IsZero reports whether x is the additive identity.
func (x Element) IsZero() bool {
	return x.value == 0
}

// Bytes returns the big-endian encoded Element, possibly with leading zeros.
func (x Element) Bytes() []byte {
	return []byte{
		byte(x.value >> 24),
		byte(x.value >> 16),
		byte(x.value >> 8),
		byte(x.value),
	}
}

// AddBytes adds Element to the given big-endian value, with a strict length
// requirement of 4 bytes.
func (x Element) AddBytes(b []byte) Element {
	if len(b) != 4 {
		panic(fmt.Sprintf("m31: AddBytes requires 4 bytes, got %d", len(b)))
	}

	v := uint64(b[0])<<24 | uint64(b[1])<<16 | uint64(b[2])<<8 | uint64(b[3])

	return x.Add(New(v))
}

// String implements fmt.Stringer.
func (x Element) String() string {
	return fmt.Sprintf("%d", x.value)
}

// Text returns the numerical value of x in the given base.
func (x Element) Text(base int) string {
	return fmt.Sprintf("%s", formatUint(uint64(x.value), base))
}

func formatUint(v uint64, base int) string {
	switch base {
	case 10:
		return fmt.Sprintf("%d", v)
	case 16:
		return fmt.Sprintf("%x", v)
	case 2:
		return fmt.Sprintf("%b", v)
	default:
		return fmt.Sprintf("%d", v)
	}
}
