package tree

import (
	"github.com/dialog-db/dialog/internal/blake3hash"
	"github.com/dialog-db/dialog/internal/codec"
)

// wireEntry/wireLink/wireSegment/wireIndex mirror Entry/Link/Node but with
// the `cbor:",toarray"` tag, which makes fxamacker/cbor encode the struct
// as a CBOR array in field-declaration order instead of a map — giving us
// a fixed field order and integer encoding without needing to hand-roll
// a serializer.
type wireEntry struct {
	_     struct{} `cbor:",toarray"`
	Key   []byte
	Value []byte
}

type wireLink struct {
	_          struct{} `cbor:",toarray"`
	UpperBound []byte
	Child      [blake3hash.Size]byte
}

type wireSegment struct {
	_       struct{} `cbor:",toarray"`
	Entries []wireEntry
}

type wireIndex struct {
	_     struct{} `cbor:",toarray"`
	Links []wireLink
}

// Encode produces the node's on-wire layout: one tag byte (0x00 branch,
// 0x01 segment) followed by the canonical encoding of its body.
func Encode(n *Node) ([]byte, error) {
	var body []byte
	var err error

	switch n.Kind {
	case KindIndexNode:
		if len(n.Links) == 0 {
			return nil, invalidConstruction("cannot encode index with no links")
		}
		w := wireIndex{Links: make([]wireLink, len(n.Links))}
		for i, l := range n.Links {
			w.Links[i] = wireLink{UpperBound: l.UpperBound, Child: l.Child}
		}
		body, err = codec.Marshal(w)
	case KindSegmentNode:
		if len(n.Entries) == 0 {
			return nil, invalidConstruction("cannot encode segment with no entries")
		}
		w := wireSegment{Entries: make([]wireEntry, len(n.Entries))}
		for i, e := range n.Entries {
			w.Entries[i] = wireEntry{Key: e.Key, Value: e.Value}
		}
		body, err = codec.Marshal(w)
	default:
		return nil, unexpectedTreeShape("unknown node kind")
	}
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(body)+1)
	out = append(out, byte(n.Kind))
	out = append(out, body...)
	return out, nil
}

// Decode parses a node from its on-wire layout.
func Decode(data []byte) (*Node, error) {
	if len(data) == 0 {
		return nil, unexpectedTreeShape("empty node buffer")
	}
	tag, body := NodeKind(data[0]), data[1:]

	switch tag {
	case KindIndexNode:
		var w wireIndex
		if err := codec.Unmarshal(body, &w); err != nil {
			return nil, unexpectedTreeShape("malformed index body: " + err.Error())
		}
		if len(w.Links) == 0 {
			return nil, invalidConstruction("decoded index with no links")
		}
		links := make([]Link, len(w.Links))
		for i, l := range w.Links {
			links[i] = Link{UpperBound: l.UpperBound, Child: blake3hash.Hash(l.Child)}
		}
		return &Node{Kind: KindIndexNode, Links: links}, nil
	case KindSegmentNode:
		var w wireSegment
		if err := codec.Unmarshal(body, &w); err != nil {
			return nil, unexpectedTreeShape("malformed segment body: " + err.Error())
		}
		if len(w.Entries) == 0 {
			return nil, invalidConstruction("decoded segment with no entries")
		}
		entries := make([]Entry, len(w.Entries))
		for i, e := range w.Entries {
			entries[i] = Entry{Key: e.Key, Value: e.Value}
		}
		return &Node{Kind: KindSegmentNode, Entries: entries}, nil
	default:
		return nil, incorrectTreeAccess("unknown node tag byte")
	}
}

// HashOf returns the node's content address: BLAKE3 of its canonical
// serialization.
func HashOf(n *Node) (blake3hash.Hash, []byte, error) {
	data, err := Encode(n)
	if err != nil {
		return blake3hash.Hash{}, nil, err
	}
	return blake3hash.Sum(data), data, nil
}
