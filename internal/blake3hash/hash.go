// Package blake3hash provides the 32-byte content-address and ordering key
// used throughout the tree, replica, and query engines.
package blake3hash

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"lukechampine.com/blake3"
)

// Size is the digest length in bytes.
const Size = 32

// Hash is a 32-byte BLAKE3 digest, used both as a content address and as an
// ordering key.
type Hash [Size]byte

// Zero is the null hash, denoting the empty tree.
var Zero Hash

// Sum returns the BLAKE3 digest of data.
func Sum(data []byte) Hash {
	return Hash(blake3.Sum256(data))
}

// IsZero reports whether h is the null hash.
func (h Hash) IsZero() bool {
	return h == Zero
}

// Bytes returns the digest as a byte slice.
func (h Hash) Bytes() []byte {
	return h[:]
}

// String renders the digest as lowercase hex.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// ShortString renders a hex prefix, used in error messages.
func (h Hash) ShortString() string {
	s := h.String()
	if len(s) > 12 {
		return s[:12]
	}
	return s
}

// Compare orders two hashes lexicographically by digest bytes.
func Compare(a, b Hash) int {
	return bytes.Compare(a[:], b[:])
}

// Less reports whether a sorts before b.
func Less(a, b Hash) bool {
	return Compare(a, b) < 0
}

// FromBytes parses a digest from exactly Size bytes.
func FromBytes(b []byte) (Hash, error) {
	var h Hash
	if len(b) != Size {
		return h, fmt.Errorf("blake3hash: expected %d bytes, got %d", Size, len(b))
	}
	copy(h[:], b)
	return h, nil
}

// FromHex parses a digest from a hex string.
func FromHex(s string) (Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, fmt.Errorf("blake3hash: %w", err)
	}
	return FromBytes(b)
}
