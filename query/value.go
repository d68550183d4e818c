// Package query implements the datalog-style evaluator: fact and
// relation applications compiled into index-aware scans, CardinalityOne
// winner selection, and provenance-carrying answers.
package query

import (
	"bytes"
	"fmt"

	"github.com/dialog-db/dialog/internal/blake3hash"
	"github.com/dialog-db/dialog/internal/codec"
)

// Entity is a subject identifier.
type Entity string

// Attribute is a namespaced fact name, e.g. "person/name".
type Attribute string

// Name returns the attribute's bare name, stripping any namespace
// prefix.
func (a Attribute) Name() string {
	for i := len(a) - 1; i >= 0; i-- {
		if a[i] == '/' {
			return string(a[i+1:])
		}
	}
	return string(a)
}

// ValueKind discriminates the tagged union of fact values.
type ValueKind uint8

const (
	KindString ValueKind = iota
	KindSignedInt
	KindUnsignedInt
	KindFloat
	KindBool
	KindBytes
	KindEntity
	KindSymbol
)

// Value is the tagged union of value types a fact's `is` position may
// hold. Exactly one field is meaningful, selected by Kind.
type Value struct {
	Kind     ValueKind
	String   string
	Int      int64
	Uint     uint64
	Float    float64
	Bool     bool
	Bytes    []byte
	EntityID Entity
	Symbol   string
}

func StringValue(s string) Value   { return Value{Kind: KindString, String: s} }
func IntValue(i int64) Value       { return Value{Kind: KindSignedInt, Int: i} }
func UintValue(u uint64) Value     { return Value{Kind: KindUnsignedInt, Uint: u} }
func FloatValue(f float64) Value   { return Value{Kind: KindFloat, Float: f} }
func BoolValue(b bool) Value       { return Value{Kind: KindBool, Bool: b} }
func BytesValue(b []byte) Value    { return Value{Kind: KindBytes, Bytes: b} }
func EntityValue(e Entity) Value   { return Value{Kind: KindEntity, EntityID: e} }
func SymbolValue(s string) Value   { return Value{Kind: KindSymbol, Symbol: s} }

// wireValue is the canonical encoding of a Value, used both for the
// value's position in the VAE sort order and for equality/hash
// comparisons independent of Go's struct layout.
type wireValue struct {
	_     struct{} `cbor:",toarray"`
	Kind  uint8
	Bytes []byte
}

func (v Value) canonicalBytes() []byte {
	var payload []byte
	switch v.Kind {
	case KindString:
		payload = []byte(v.String)
	case KindSignedInt:
		payload, _ = codec.Marshal(v.Int)
	case KindUnsignedInt:
		payload, _ = codec.Marshal(v.Uint)
	case KindFloat:
		payload, _ = codec.Marshal(v.Float)
	case KindBool:
		if v.Bool {
			payload = []byte{1}
		} else {
			payload = []byte{0}
		}
	case KindBytes:
		payload = v.Bytes
	case KindEntity:
		payload = []byte(v.EntityID)
	case KindSymbol:
		payload = []byte(v.Symbol)
	}
	data, err := codec.Marshal(wireValue{Kind: uint8(v.Kind), Bytes: payload})
	if err != nil {
		panic(fmt.Sprintf("query: value failed to encode: %v", err))
	}
	return data
}

// Equal reports whether two values carry identical kind and content.
func (v Value) Equal(o Value) bool {
	return bytes.Equal(v.canonicalBytes(), o.canonicalBytes())
}

// Compare orders values by their canonical encoding, giving a total order
// usable as the VAE index's sort key.
func (v Value) Compare(o Value) int {
	return bytes.Compare(v.canonicalBytes(), o.canonicalBytes())
}

// Hash returns the value's content-address: BLAKE3 of its canonical
// encoding. CardinalityOne ties are broken by Fact.Hash, not by this.
func (v Value) Hash() blake3hash.Hash {
	return blake3hash.Sum(v.canonicalBytes())
}
