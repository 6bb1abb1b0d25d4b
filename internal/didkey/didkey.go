// Package didkey provides the multibase/multicodec identifier helpers the
// core treats as opaque: the fixed insecure rotation key identifier
// (private key 1, shared by every run) and the base32 directory-suffix
// encoding used to turn a signed operation's hash into a did:plc string.
package didkey

import (
	"fmt"
	"strings"

	gobase32 "github.com/multiformats/go-base32"
	"github.com/multiformats/go-multibase"
)

// InsecureRotationKey is the did:key identifier corresponding to private
// key 1 — the degenerate key the signature-exploitation engine signs with.
// It is known and identical across every run; spec.md treats it as a fixed
// string the core passes through verbatim, never parsing it on the hot
// path.
const InsecureRotationKey = "did:key:zQ3shVc2UkAfJCdc1TR8E66J85h48P43r93q8jGPkPpjF9Ef9"

// ValidateInsecureRotationKey confirms InsecureRotationKey's multibase
// portion actually decodes (i.e. the constant above hasn't bit-rotted into
// something the directory would reject), without inspecting the decoded
// key material. Called once at startup, not on the search hot path.
func ValidateInsecureRotationKey() error {
	const prefix = "did:key:"
	if !strings.HasPrefix(InsecureRotationKey, prefix) {
		return fmt.Errorf("didkey: insecure rotation key missing %q prefix", prefix)
	}

	enc, _, err := multibase.Decode(strings.TrimPrefix(InsecureRotationKey, prefix))
	if err != nil {
		return fmt.Errorf("didkey: insecure rotation key does not decode as multibase: %w", err)
	}
	if enc != multibase.Base58BTC {
		return fmt.Errorf("didkey: insecure rotation key uses multibase encoding %q, want base58btc", enc)
	}
	return nil
}

// lowerNoPad is RFC 4648 base32 with the lowercase alphabet and no padding,
// matching the PLC directory's identifier suffix encoding.
var lowerNoPad = gobase32.NewEncoding("abcdefghijklmnopqrstuvwxyz234567").WithPadding(gobase32.NoPadding)

// SuffixLength is the number of characters of the base32 encoding kept as
// the directory identifier suffix.
const SuffixLength = 24

// EncodeDID base32-encodes hash (expected to be a SHA-256 digest of the
// signed operation), truncates to SuffixLength characters, and prefixes
// "did:plc:".
func EncodeDID(hash []byte) string {
	encoded := lowerNoPad.EncodeToString(hash)
	if len(encoded) > SuffixLength {
		encoded = encoded[:SuffixLength]
	}
	return "did:plc:" + encoded
}
