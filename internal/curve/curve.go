// Copyright (c) 2013-2014 The btcsuite developers
// Copyright (c) 2015-2022 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package curve implements short Weierstrass elliptic curve point
// addition, doubling, and scalar multiplication in affine coordinates over
// a prime field, parameterized by curve constants. It is deliberately not a
// general-purpose EC library: it only supports the operations the
// signature-exploitation engine needs during precomputation, and its
// preconditions are asserted rather than gracefully handled, matching the
// spec's "fatal on precondition violation" error model.
package curve

import (
	"fmt"
	"math/big"

	"github.com/vanitydid/plcminer/internal/u256"
)

// Point is an affine point (x, y) with 0 <= x, y < p. The point at infinity
// has no representation here: the arithmetic in this package never needs
// to produce it for the inputs the engine uses.
type Point struct {
	X, Y *u256.Int
}

// Curve is an immutable short Weierstrass curve y^2 = x^3 + a*x + b over
// GF(p), with base point G and group order n.
type Curve struct {
	P *u256.Int
	A *u256.Int
	B *u256.Int
	G Point
	N *u256.Int
}

// Secp256k1 returns the fixed curve parameters used throughout this engine:
// p = 2^256 - 2^32 - 977, a = 0, b = 7, with the standard base point and
// group order.
func Secp256k1() Curve {
	return Curve{
		P: hexInt("fffffffffffffffffffffffffffffffffffffffffffffffffffffefffffc2f"),
		A: u256.New(),
		B: u256.FromUint64(7),
		G: Point{
			X: hexInt("79be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"),
			Y: hexInt("483ada7726a3c4655da4fbfc0e1108a8fd17b448a68554199c47d08ffb10d4b8"),
		},
		N: hexInt("fffffffffffffffffffffffffffffffebaaedce6af48a03bbfd25e8cd0364141"),
	}
}

func hexInt(hex string) *u256.Int {
	b, ok := new(big.Int).SetString(hex, 16)
	if !ok {
		panic(fmt.Sprintf("curve: invalid constant %q", hex))
	}
	buf := make([]byte, 32)
	b.FillBytes(buf)
	return u256.FromBytes32(buf)
}

// AddPoints returns p1+p2 on the curve. If the two points share an
// x-coordinate, they must also share a nonzero y-coordinate (i.e. this is a
// doubling of a non-identity point) — opposite points summing to the point
// at infinity is a precondition violation for this engine and is fatal,
// since infinity is never expected or representable here.
func (c Curve) AddPoints(p1, p2 Point) Point {
	var m *u256.Int

	if p1.X.Cmp(p2.X) == 0 {
		if p1.Y.Cmp(p2.Y) != 0 || p1.Y.IsZero() {
			panic("curve: add_points precondition violated (opposite points or zero y)")
		}

		// m = (3*x1^2 + a) * (2*y1)^-1 mod p
		threeX2 := u256.MulMod(u256.MulMod(p1.X, p1.X, c.P), u256.FromUint64(3), c.P)
		num := u256.AddMod(threeX2, c.A, c.P)
		twoY := u256.MulMod(u256.FromUint64(2), p1.Y, c.P)
		den := u256.ModInverse(twoY, c.P)
		m = u256.MulMod(num, den, c.P)
	} else {
		// m = (y2-y1) * (x2-x1)^-1 mod p
		num := u256.SubMod(p2.Y, p1.Y, c.P)
		den := u256.ModInverse(u256.SubMod(p2.X, p1.X, c.P), c.P)
		m = u256.MulMod(num, den, c.P)
	}

	x3 := u256.SubMod(u256.SubMod(u256.MulMod(m, m, c.P), p1.X, c.P), p2.X, c.P)
	y3 := u256.SubMod(u256.MulMod(m, u256.SubMod(p1.X, x3, c.P), c.P), p1.Y, c.P)

	return Point{X: x3, Y: y3}
}

// ScalarMultiply returns k*p via right-to-left (least significant bit first)
// double-and-add. k must be >=
// 1: the zero scalar would require representing the point at infinity,
// which this engine never needs.
func (c Curve) ScalarMultiply(k *u256.Int, p Point) Point {
	if k.IsZero() {
		panic("curve: scalar_multiply precondition violated (k == 0)")
	}

	addend := p
	var result *Point

	kk := new(u256.Int).Set(k)
	for !kk.IsZero() {
		if kk[0]&1 == 1 {
			if result == nil {
				pt := addend
				result = &pt
			} else {
				sum := c.AddPoints(*result, addend)
				result = &sum
			}
		}
		addend = c.AddPoints(addend, addend)
		kk.Rsh(kk, 1)
	}

	return *result
}
