// Copyright (c) 2013-2014 The btcsuite developers
// Copyright (c) 2015-2022 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package fastsig

import (
	"crypto/sha256"
	"encoding/base64"

	"github.com/vanitydid/plcminer/internal/curve"
	"github.com/vanitydid/plcminer/internal/u256"
)

// sigEncoding is base64url with no padding, matching the 64-byte r||s wire
// format's 86-character ASCII representation.
var sigEncoding = base64.RawURLEncoding

// GenerateSignatures hashes doc once and, for each table entry, derives a
// valid low-s ECDSA signature under the insecure private key 1 by threading
// a running digest through one modular add and one modular doubling per
// entry — the entire point of the exploit, since it avoids any
// elliptic-curve operation in this loop.
//
// The output is 256 base64url-no-pad-encoded 64-byte signatures, one per
// table entry, in table order.
func GenerateSignatures(doc []byte, table []Entry, c curve.Curve) []string {
	signatures := make([]string, len(table))

	hash := sha256.Sum256(doc)
	digest := u256.FromBytes32(hash[:])

	for i, entry := range table {
		// Reduce before use: the quasi-doubling below requires its input
		// already in [0, n), and the first iteration's hash may not be.
		digest = new(u256.Int).Mod(digest, c.N)

		s := u256.AddMod(digest, entry.KInvTimesR, c.N)
		if s.IsZero() {
			panic("fastsig: signature scalar s is zero")
		}

		half := new(u256.Int).Rsh(c.N, 1)
		if s.Cmp(half) > 0 {
			s = new(u256.Int).Sub(c.N, s)
		}

		signatures[i] = encodeSignature(entry.R, s)

		// Quasi-double digest for the next iteration without reducing mod n
		// first: the reduction happens at the top of the next loop, so what
		// is stored here is allowed to be exactly 2*digest when digest <
		// n-digest (still < n in that branch), matching the contract in
		// spec.md that digest entering the next "reduce" step is congruent
		// to 2^(i+1) * e (mod n).
		complement := new(u256.Int).Sub(c.N, digest)
		if digest.Cmp(complement) < 0 {
			digest = new(u256.Int).Lsh(digest, 1)
		} else {
			digest = new(u256.Int).Sub(digest, complement)
		}
	}

	return signatures
}

func encodeSignature(r, s *u256.Int) string {
	var buf [64]byte
	rb := r.Bytes32()
	sb := s.Bytes32()
	copy(buf[0:32], rb[:])
	copy(buf[32:64], sb[:])
	return sigEncoding.EncodeToString(buf[:])
}
