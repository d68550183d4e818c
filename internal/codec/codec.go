// Package codec provides the deterministic (DAG-CBOR-shaped) canonical
// encoding shared by the tree, replica, query, and auth packages.
//
// github.com/fxamacker/cbor/v2's CanonicalEncOptions gives byte-stable
// encoding without hand-rolling a serializer. Structs that must encode
// as a fixed-order sequence (node bodies, canonical revisions, UCAN
// envelopes) use the `cbor:",toarray"` field tag so field order is the
// struct's declaration order, with no map-key sorting ambiguity.
package codec

import "github.com/fxamacker/cbor/v2"

var canonicalEncMode = mustCanonicalEncMode()

func mustCanonicalEncMode() cbor.EncMode {
	mode, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic("codec: failed to build canonical CBOR encoder: " + err.Error())
	}
	return mode
}

// Marshal encodes v using the canonical (deterministic) CBOR encoding.
// Field order and integer encoding are fixed by CanonicalEncOptions; no
// padding, timestamps, or random salt are introduced.
func Marshal(v interface{}) ([]byte, error) {
	return canonicalEncMode.Marshal(v)
}

// Unmarshal decodes CBOR-encoded data into v.
func Unmarshal(data []byte, v interface{}) error {
	return cbor.Unmarshal(data, v)
}
