package query

import (
	"github.com/dialog-db/dialog/internal/blake3hash"
	"github.com/dialog-db/dialog/internal/codec"
)

// Cardinality selects how many winning values a query keeps per
// (attribute, entity) group.
type Cardinality uint8

const (
	// CardinalityOne keeps at most one winning value per (attribute,
	// entity) group.
	CardinalityOne Cardinality = iota
	// CardinalityMany keeps every matching artifact.
	CardinalityMany
)

// Fact is an asserted (entity, attribute, value) triple with provenance.
type Fact struct {
	The   Attribute
	Of    Entity
	Is    Value
	Cause blake3hash.Hash
}

// wireFact is Fact's canonical, fixed-field-order encoding, the preimage
// of Hash.
type wireFact struct {
	_     struct{} `cbor:",toarray"`
	The   string
	Of    string
	Is    []byte
	Cause [blake3hash.Size]byte
}

// Encode produces f's canonical byte form.
func (f Fact) Encode() ([]byte, error) {
	return codec.Marshal(wireFact{
		The:   string(f.The),
		Of:    string(f.Of),
		Is:    f.Is.canonicalBytes(),
		Cause: f.Cause,
	})
}

// Hash returns f's content address, used to deterministically break
// CardinalityOne ties when two candidates have equal cause.
func (f Fact) Hash() blake3hash.Hash {
	data, err := f.Encode()
	if err != nil {
		// Encode only fails on internal invariant violations; no caller
		// can recover from it, so surface it the same way codec panics do.
		panic(err)
	}
	return blake3hash.Sum(data)
}

// Equal reports whether two facts have identical content.
func (f Fact) Equal(o Fact) bool {
	return f.The == o.The && f.Of == o.Of && f.Is.Equal(o.Is) && f.Cause == o.Cause
}

// winner compares f against o under the CardinalityOne rule: higher
// cause wins; on equal cause (including both the zero hash), the higher
// fact hash wins. Returns true if f wins.
func (f Fact) winner(o Fact) bool {
	if cmp := blake3hash.Compare(f.Cause, o.Cause); cmp != 0 {
		return cmp > 0
	}
	return blake3hash.Compare(f.Hash(), o.Hash()) > 0
}
