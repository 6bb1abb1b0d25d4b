// Copyright (c) 2013-2014 The btcsuite developers
// Copyright (c) 2015-2022 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package u256 implements the overflow-safe modular arithmetic the
// signature-exploitation engine is built on: addition, subtraction and
// multiplication modulo an odd modulus n < 2^256, plus modular inverse via
// the extended Euclidean algorithm.
//
// Every intermediate value produced here fits in 256 bits. That is not
// incidental: the headroom-based add and the compare-then-double
// multiplication loop exist specifically so that no operation ever needs a
// wider-than-256-bit accumulator, which is what lets the hot path in
// internal/fastsig run without a big-integer library on its critical path.
package u256

import "github.com/holiman/uint256"

// Int is a 256-bit unsigned integer. It is a thin alias over uint256.Int,
// which supplies fixed-width storage, comparison and shifts; the modular
// arithmetic below is hand-written rather than delegated to the library's
// own modular helpers, so that the exact overflow-safe algorithm mandated
// for this engine is preserved bit-for-bit.
type Int = uint256.Int

// New returns a fresh zero-valued Int.
func New() *Int {
	return new(Int)
}

// FromUint64 returns n as an Int.
func FromUint64(n uint64) *Int {
	return new(Int).SetUint64(n)
}

// FromBytes32 interprets b (which must be 32 bytes) as a big-endian
// unsigned integer.
func FromBytes32(b []byte) *Int {
	var z Int
	return z.SetBytes32(b)
}

// One shifted left by i bits, as a plain (unreduced) 256-bit integer. Used
// to build the sequence of nonce inverses k^-1 = 2^i.
func PowTwo(i uint) *Int {
	return new(Int).Lsh(FromUint64(1), i)
}

// AddMod returns (a+b) mod n. a and b must already be in [0, n).
//
// It never forms a+b directly when that sum could exceed 256 bits; instead
// it computes the headroom h = (n-1)-a and compares b against it, per the
// mandated contract.
func AddMod(a, b, n *Int) *Int {
	h := new(Int).Sub(subOne(n), a)
	if b.Cmp(h) <= 0 {
		return new(Int).Add(a, b)
	}
	r := new(Int).Sub(b, h)
	return r.Sub(r, one())
}

// SubMod returns (a-b) mod n.
func SubMod(a, b, n *Int) *Int {
	if a.Cmp(b) >= 0 {
		return new(Int).Sub(a, b)
	}
	r := new(Int).Sub(b, a)
	return r.Sub(n, r)
}

// dbl returns (2*x) mod n without ever computing 2*x in a wider-than-256-bit
// accumulator: it compares x against n-x and either doubles directly (safe
// because x < n-x implies 2x < n) or subtracts the complement.
func dbl(x, n *Int) *Int {
	complement := new(Int).Sub(n, x)
	if x.Cmp(complement) < 0 {
		return new(Int).Lsh(x, 1)
	}
	return new(Int).Sub(x, complement)
}

// MulMod returns (a*b) mod n via double-and-add, using only the
// overflow-safe AddMod/dbl primitives above.
func MulMod(a, b, n *Int) *Int {
	aa := new(Int).Mod(a, n)
	bb := new(Int).Mod(b, n)
	result := New()

	for !bb.IsZero() {
		if isOdd(bb) {
			result = AddMod(result, aa, n)
		}
		bb.Rsh(bb, 1)
		aa = dbl(aa, n)
	}

	return new(Int).Mod(result, n)
}

// word pairs a magnitude with a sign, used only inside ModInverse since the
// Euclidean coefficients are signed but Int is unsigned.
type word struct {
	value    *Int
	negative bool
}

// ModInverse returns a^-1 mod n for a in [1, n), via the extended Euclidean
// algorithm tracked with an explicit sign bit. Returns 0 if n <= 1 or a and
// n are not coprime (not expected to occur for the fixed secp256k1 order).
func ModInverse(a, n *Int) *Int {
	if n.Cmp(FromUint64(1)) <= 0 {
		return New()
	}

	aCur := new(Int).Set(a)
	bCur := new(Int).Set(n)
	b0 := new(Int).Set(n)

	x0 := word{value: New(), negative: false}
	x1 := word{value: FromUint64(1), negative: false}

	for aCur.Cmp(FromUint64(1)) > 0 {
		if bCur.IsZero() {
			return New()
		}

		q := new(Int).Div(aCur, bCur)
		rem := new(Int).Mod(aCur, bCur)
		aCur, bCur = bCur, rem

		t := x0
		qx0 := new(Int).Mul(q, x0.value)

		if x0.negative != x1.negative {
			x0 = word{value: new(Int).Add(x1.value, qx0), negative: x1.negative}
		} else if x1.value.Cmp(qx0) > 0 {
			x0 = word{value: new(Int).Sub(x1.value, qx0), negative: x1.negative}
		} else {
			x0 = word{value: new(Int).Sub(qx0, x1.value), negative: !x0.negative}
		}

		x1 = t
	}

	if x1.negative {
		return new(Int).Sub(b0, x1.value)
	}
	return new(Int).Set(x1.value)
}

func one() *Int { return FromUint64(1) }

func subOne(n *Int) *Int {
	return new(Int).Sub(n, one())
}

func isOdd(x *Int) bool {
	return x[0]&1 == 1
}
