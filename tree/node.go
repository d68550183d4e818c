package tree

import (
	"bytes"

	"github.com/dialog-db/dialog/internal/blake3hash"
	"github.com/dialog-db/dialog/internal/invariant"
)

// Entry is a {key, value} pair with an ordering relation on keys.
type Entry struct {
	Key   []byte
	Value []byte
}

// Equal reports whether two entries have identical keys and values.
func (e Entry) Equal(o Entry) bool {
	return bytes.Equal(e.Key, o.Key) && bytes.Equal(e.Value, o.Value)
}

// Link is {upper_bound_key, child_hash}, an index node's child reference.
type Link struct {
	UpperBound []byte
	Child      blake3hash.Hash
}

// NodeKind discriminates the two node variants.
type NodeKind uint8

const (
	// KindIndexNode is a branch node: an upper-bound-sorted sequence of links.
	KindIndexNode NodeKind = 0x00
	// KindSegmentNode is a leaf node: a key-sorted sequence of entries.
	KindSegmentNode NodeKind = 0x01
)

// Node is a content-addressed tree unit: either a Segment (leaf) or an
// Index (branch). Exactly one of Entries/Links is populated, selected by
// Kind.
type Node struct {
	Kind    NodeKind
	Entries []Entry // populated iff Kind == KindSegmentNode
	Links   []Link  // populated iff Kind == KindIndexNode
}

// NewSegment builds a leaf node from a non-empty, key-sorted entry slice.
func NewSegment(entries []Entry) (*Node, error) {
	if len(entries) == 0 {
		return nil, invalidConstruction("segment must have at least one entry")
	}
	return &Node{Kind: KindSegmentNode, Entries: entries}, nil
}

// NewIndex builds a branch node from a non-empty, upper-bound-sorted link
// slice.
func NewIndex(links []Link) (*Node, error) {
	if len(links) == 0 {
		return nil, invalidConstruction("index must have at least one link")
	}
	return &Node{Kind: KindIndexNode, Links: links}, nil
}

// IsSegment reports whether n is a leaf node.
func (n *Node) IsSegment() bool { return n.Kind == KindSegmentNode }

// IsIndex reports whether n is a branch node.
func (n *Node) IsIndex() bool { return n.Kind == KindIndexNode }

// UpperBound returns the largest key in n's subtree.
func (n *Node) UpperBound() []byte {
	switch n.Kind {
	case KindSegmentNode:
		invariant.NotEmpty(len(n.Entries), "segment entries")
		return n.Entries[len(n.Entries)-1].Key
	case KindIndexNode:
		invariant.NotEmpty(len(n.Links), "index links")
		return n.Links[len(n.Links)-1].UpperBound
	default:
		panic("tree: node has unknown kind")
	}
}

// segmentEntry returns the index of key within a segment's entries, and
// whether it was found.
func segmentEntry(entries []Entry, key []byte) (int, bool) {
	lo, hi := 0, len(entries)
	for lo < hi {
		mid := (lo + hi) / 2
		switch bytes.Compare(entries[mid].Key, key) {
		case 0:
			return mid, true
		case -1:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return lo, false
}

// firstLinkAtLeast returns the index of the first link whose upper bound
// is >= key, or the last link when no upper bound reaches key.
func firstLinkAtLeast(links []Link, key []byte) int {
	lo, hi := 0, len(links)
	for lo < hi {
		mid := (lo + hi) / 2
		if bytes.Compare(links[mid].UpperBound, key) >= 0 {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	if lo == len(links) {
		return len(links) - 1
	}
	return lo
}

func cloneLinks(links []Link) []Link {
	out := make([]Link, len(links))
	copy(out, links)
	return out
}

func cloneEntries(entries []Entry) []Entry {
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}
