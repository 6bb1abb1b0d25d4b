// Copyright (c) 2013-2014 The btcsuite developers
// Copyright (c) 2015-2022 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package fastsig is the signature-exploitation engine: given the
// degenerate private key 1, it precomputes a table of 256 entries and then
// turns any document buffer into 256 valid, low-s ECDSA signatures with one
// SHA-256 hash, a modular add and a modular doubling per entry — no
// elliptic-curve operation on the hot path.
package fastsig

import (
	"github.com/vanitydid/plcminer/internal/curve"
	"github.com/vanitydid/plcminer/internal/u256"
)

// Entry is one precomputed table row: the x-coordinate r produced by the
// nonce k = (2^i)^-1 mod n, and the product k^-1 * r mod n.
type Entry struct {
	R          *u256.Int
	KInvTimesR *u256.Int
}

// GenerateTable builds the 256-entry precomputed signature table for
// private key 1 on curve c. For i in [0, 256): k_inv = 2^i (unreduced — 2^255
// < n for secp256k1, so no reduction is needed before inverting), k =
// k_inv^-1 mod n, (x, _) = k*G, r = x mod n, entry[i] = (r, k_inv*r mod n).
//
// This is a pure function of the curve: called once at startup, the result
// is read-only and safe to share across every worker goroutine without
// synchronization.
func GenerateTable(c curve.Curve) []Entry {
	table := make([]Entry, 256)

	for i := 0; i < 256; i++ {
		kInv := u256.PowTwo(uint(i))
		k := u256.ModInverse(kInv, c.N)

		point := c.ScalarMultiply(k, c.G)
		r := new(u256.Int).Mod(point.X, c.N)
		if r.IsZero() {
			panic("fastsig: precomputed r is zero, cannot produce a valid signature")
		}

		table[i] = Entry{
			R:          r,
			KInvTimesR: u256.MulMod(kInv, r, c.N),
		}
	}

	return table
}
