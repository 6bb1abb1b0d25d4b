// Package plcop models the PLC directory's genesis "create" operation: the
// document whose signature is repeatedly regenerated during the search. The
// core signature engine (internal/fastsig) treats this as an opaque byte
// buffer; this package is the external collaborator that gives it concrete
// shape, encodes it DAG-CBOR-style, and locates the placeholder regions the
// search loop patches on every iteration.
package plcop

import (
	"bytes"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Service is a PLC operation's service endpoint entry (only the
// "did_prefix" placeholder service is used by the miner; arbitrary
// services are supported so the type matches the real document shape).
type Service struct {
	Type     string `cbor:"type" json:"type"`
	Endpoint string `cbor:"endpoint" json:"endpoint"`
}

// UnsignedCreateOp is the genesis PLC operation before signing.
type UnsignedCreateOp struct {
	Type                string             `cbor:"type" json:"type"`
	VerificationMethods map[string]string  `cbor:"verificationMethods" json:"verificationMethods"`
	RotationKeys        []string           `cbor:"rotationKeys" json:"rotationKeys"`
	AlsoKnownAs         []string           `cbor:"alsoKnownAs" json:"alsoKnownAs"`
	Services            map[string]Service `cbor:"services" json:"services"`
	Prev                *string            `cbor:"prev" json:"prev"`
}

// SignedCreateOp is an UnsignedCreateOp plus its signature. The embedded
// struct is flattened into the same CBOR map on encode, matching the
// original Rust implementation's `#[serde(flatten)]`. encoding/json flattens
// embedded structs the same way by default, so the JSON submitted to the
// directory (internal/submit) has the same shape as the CBOR-encoded
// search buffers.
type SignedCreateOp struct {
	UnsignedCreateOp
	Sig string `cbor:"sig" json:"sig"`
}

// ServicePrefixKey is the service map key the miner uses to carry the
// hex counter placeholder; it is patched post-hoc into the winning
// operation's endpoint field for inspection, mirroring
// original_source/main.rs.
const ServicePrefixKey = "did_prefix"

// placeholderHex is 32 ASCII '0' bytes: the counter placeholder patched by
// the search loop before every signing attempt.
const placeholderHex = "00000000000000000000000000000000"

// placeholderSig is 86 bytes of 0x01: the signature-region placeholder,
// long enough that the real base64url-encoded signature (also 86 bytes)
// overwrites it byte-for-byte without changing the buffer's length or the
// CBOR framing around it.
var placeholderSig = bytes.Repeat([]byte{1}, 86)

// canon encodes v with deterministic (map-sorted, canonical) CBOR, the
// closest fxamacker/cbor offers to the DAG-CBOR encoding the real directory
// expects.
var canon = func() cbor.EncMode {
	opts := cbor.CanonicalEncOptions()
	mode, err := opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("plcop: building canonical CBOR encoder: %v", err))
	}
	return mode
}()

// NewGenesisOp builds the unsigned operation template: the caller's secure
// rotation key first, the insecure (private key = 1) rotation key second,
// and a single did_prefix service holding the counter placeholder.
func NewGenesisOp(secureRotationKey, insecureRotationKey string, seed uint64) UnsignedCreateOp {
	return UnsignedCreateOp{
		Type:                "plc_operation",
		VerificationMethods: map[string]string{},
		RotationKeys:        []string{secureRotationKey, insecureRotationKey},
		AlsoKnownAs:         []string{},
		Services: map[string]Service{
			ServicePrefixKey: {
				Type:     fmt.Sprintf(":3_%d", seed),
				Endpoint: placeholderHex,
			},
		},
		Prev: nil,
	}
}

// Buffers holds the encoded unsigned and signed-shaped documents along with
// the byte offsets of their placeholder regions, as required by the
// signature engine's external-collaborator contract (spec.md §4.5/§6):
// each placeholder occupies a contiguous range discoverable by a byte-needle
// search prior to the run.
type Buffers struct {
	Unsigned      []byte
	UnsignedIndex int // offset of the 32-byte hex counter in Unsigned

	Signed       []byte
	SignedIndex  int // offset of the 32-byte hex counter in Signed
	SignedSigIdx int // offset of the 86-byte signature region in Signed

	SignedOp SignedCreateOp
}

// BuildBuffers encodes op (unsigned) and op+placeholder-signature (signed),
// then locates every placeholder region by needle search. It returns a
// fatal error if any needle cannot be found — a startup error per spec.md
// §7, since a missing placeholder means the document shape doesn't match
// what the search loop expects.
func BuildBuffers(op UnsignedCreateOp) (*Buffers, error) {
	unsignedBuf, err := canon.Marshal(op)
	if err != nil {
		return nil, fmt.Errorf("plcop: encoding unsigned operation: %w", err)
	}

	unsignedIdx, err := findNeedle(unsignedBuf, '0', 32)
	if err != nil {
		return nil, fmt.Errorf("plcop: locating counter placeholder in unsigned document: %w", err)
	}

	signedOp := SignedCreateOp{
		UnsignedCreateOp: op,
		Sig:              string(placeholderSig),
	}

	signedBuf, err := canon.Marshal(signedOp)
	if err != nil {
		return nil, fmt.Errorf("plcop: encoding signed operation: %w", err)
	}

	signedIdx, err := findNeedle(signedBuf, '0', 32)
	if err != nil {
		return nil, fmt.Errorf("plcop: locating counter placeholder in signed document: %w", err)
	}
	signedSigIdx, err := findNeedle(signedBuf, 1, 86)
	if err != nil {
		return nil, fmt.Errorf("plcop: locating signature placeholder in signed document: %w", err)
	}

	return &Buffers{
		Unsigned:      unsignedBuf,
		UnsignedIndex: unsignedIdx,
		Signed:        signedBuf,
		SignedIndex:   signedIdx,
		SignedSigIdx:  signedSigIdx,
		SignedOp:      signedOp,
	}, nil
}

// findNeedle returns the index of the first contiguous run of length bytes
// all equal to marker in buf. It panics-free errors rather than panicking
// directly, since BuildBuffers runs once at startup and a missing needle
// there is recoverable enough to report cleanly before any workers spawn.
func findNeedle(buf []byte, marker byte, length int) (int, error) {
	needle := bytes.Repeat([]byte{marker}, length)
	idx := bytes.Index(buf, needle)
	if idx < 0 {
		return 0, fmt.Errorf("needle of %d 0x%02x bytes not found", length, marker)
	}
	return idx, nil
}

// Clone returns an independent copy of b, suitable for handing to a single
// worker goroutine to own and mutate in place.
func (b *Buffers) Clone() *Buffers {
	clone := *b
	clone.Unsigned = append([]byte(nil), b.Unsigned...)
	clone.Signed = append([]byte(nil), b.Signed...)
	return &clone
}
