// Package tree implements a ranked, content-addressed search tree:
// persistent, immutable snapshots of sorted key-value pairs with
// structural sharing and fast divergence detection.
package tree

import (
	"bytes"
	"context"

	"github.com/dialog-db/dialog/internal/blake3hash"
	"github.com/dialog-db/dialog/internal/invariant"
)

// MaxDepth is the soft limit guarding against pathological tree shapes.
const MaxDepth = 4096

// Tree is a persistent immutable snapshot identified by its root hash. The
// null-hash root denotes the empty tree. A pending delta accumulates
// unflushed nodes during mutation; Flush drains it into the backing
// BlobStore.
//
// The delta is owned by a single snapshot and is not shared: every
// mutating method returns a new Tree
// whose delta is a shallow copy extended with the newly-written nodes, so
// dropping one snapshot's handle never disturbs another's pending writes.
// The node cache, by contrast, lives on the shared NodeStore and is safe
// to read concurrently across snapshots because nodes are immutable under
// their hash.
type Tree struct {
	root  blake3hash.Hash
	store *NodeStore
	delta map[blake3hash.Hash][]byte
}

// New returns the empty tree backed by store.
func New(store *NodeStore) *Tree {
	return &Tree{root: blake3hash.Zero, store: store, delta: map[blake3hash.Hash][]byte{}}
}

// Open returns a snapshot rooted at an existing hash.
func Open(store *NodeStore, root blake3hash.Hash) *Tree {
	return &Tree{root: root, store: store, delta: map[blake3hash.Hash][]byte{}}
}

// Root returns the snapshot's root hash. The null hash denotes the empty
// tree.
func (t *Tree) Root() blake3hash.Hash {
	return t.root
}

// Flush drains the pending delta into the backing BlobStore.
func (t *Tree) Flush(ctx context.Context) error {
	for hash, data := range t.delta {
		if err := t.store.backend.Put(ctx, hash, data); err != nil {
			return storageFailure(err)
		}
	}
	t.delta = map[blake3hash.Hash][]byte{}
	return nil
}

func (t *Tree) loadNode(ctx context.Context, hash blake3hash.Hash) (*Node, error) {
	invariant.Precondition(!hash.IsZero(), "loadNode called with null hash")

	// Cache is consulted before the delta, before storage.
	if data, ok := t.store.cache.get(hash); ok {
		return Decode(data)
	}
	if data, ok := t.delta[hash]; ok {
		t.store.cache.put(hash, data)
		return Decode(data)
	}
	data, ok, err := t.store.backend.Get(ctx, hash)
	if err != nil {
		return nil, storageFailure(err)
	}
	if !ok {
		return nil, missingBlock(hash)
	}
	t.store.cache.put(hash, data)
	return Decode(data)
}

// putNode encodes and stages n in the pending delta, returning its hash.
func (t *Tree) putNode(n *Node) (blake3hash.Hash, error) {
	hash, data, err := HashOf(n)
	if err != nil {
		return blake3hash.Hash{}, err
	}
	t.delta[hash] = data
	t.store.cache.put(hash, data)
	return hash, nil
}

// cloneDelta returns a shallow copy of t's pending delta, for use by a new
// snapshot derived from t.
func (t *Tree) cloneDelta() map[blake3hash.Hash][]byte {
	out := make(map[blake3hash.Hash][]byte, len(t.delta))
	for k, v := range t.delta {
		out[k] = v
	}
	return out
}

// pathLevel records the sibling links around the chosen descent link at
// one index-node level: the left and right siblings a later rebuild
// concatenates around the replacement links.
type pathLevel struct {
	left  []Link
	right []Link
}

// descend walks from the root to the segment that would contain key,
// recording the path of sibling links at each index level. Returns a nil
// leaf (and nil path) for the empty tree.
func (t *Tree) descend(ctx context.Context, key []byte) ([]pathLevel, *Node, error) {
	if t.root.IsZero() {
		return nil, nil, nil
	}

	var path []pathLevel
	cur := t.root
	for depth := 0; ; depth++ {
		if depth > MaxDepth {
			return nil, nil, unexpectedTreeShape("maximum tree depth exceeded")
		}
		n, err := t.loadNode(ctx, cur)
		if err != nil {
			return nil, nil, err
		}
		if n.IsSegment() {
			return path, n, nil
		}
		if !n.IsIndex() {
			return nil, nil, incorrectTreeAccess("node is neither segment nor index")
		}
		idx := firstLinkAtLeast(n.Links, key)
		path = append(path, pathLevel{
			left:  cloneLinks(n.Links[:idx]),
			right: cloneLinks(n.Links[idx+1:]),
		})
		cur = n.Links[idx].Child
	}
}

// Get returns the value associated with key, or (nil, false) if absent.
func (t *Tree) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	_, leaf, err := t.descend(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if leaf == nil {
		return nil, false, nil
	}
	idx, found := segmentEntry(leaf.Entries, key)
	if !found {
		return nil, false, nil
	}
	return leaf.Entries[idx].Value, true, nil
}

// buildSegments groups entries into one or more segment nodes by rank
// (minimum rank 1 at the leaf level), storing each and returning the
// resulting links.
func (t *Tree) buildSegments(entries []Entry) ([]Link, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	keys := make([][]byte, len(entries))
	for i, e := range entries {
		keys[i] = e.Key
	}
	cuts := splitBoundaries(t.store.rank, keys, 1)

	links := make([]Link, 0, len(cuts))
	start := 0
	for _, end := range cuts {
		node, err := NewSegment(entries[start:end])
		if err != nil {
			return nil, err
		}
		hash, err := t.putNode(node)
		if err != nil {
			return nil, err
		}
		links = append(links, Link{UpperBound: node.UpperBound(), Child: hash})
		start = end
	}
	return links, nil
}

// buildIndexLevel groups links into one or more index nodes by rank, where
// height is this level's height above the leaves.
func (t *Tree) buildIndexLevel(links []Link, height int) ([]Link, error) {
	if len(links) == 0 {
		return nil, nil
	}
	keys := make([][]byte, len(links))
	for i, l := range links {
		keys[i] = l.UpperBound
	}
	cuts := splitBoundaries(t.store.rank, keys, Rank(height+1))

	out := make([]Link, 0, len(cuts))
	start := 0
	for _, end := range cuts {
		node, err := NewIndex(links[start:end])
		if err != nil {
			return nil, err
		}
		hash, err := t.putNode(node)
		if err != nil {
			return nil, err
		}
		out = append(out, Link{UpperBound: node.UpperBound(), Child: hash})
		start = end
	}
	return out, nil
}

// ascend rebuilds every ancestor level above a changed leaf group, given
// the search path recorded by descend, until a single root link remains
// (or the link set empties out entirely, yielding the null tree).
func (t *Tree) ascend(path []pathLevel, links []Link) (blake3hash.Hash, error) {
	height := 0
	for i := len(path) - 1; i >= 0; i-- {
		combined := make([]Link, 0, len(path[i].left)+len(links)+len(path[i].right))
		combined = append(combined, path[i].left...)
		combined = append(combined, links...)
		combined = append(combined, path[i].right...)

		next, err := t.buildIndexLevel(combined, height)
		if err != nil {
			return blake3hash.Hash{}, err
		}
		links = next
		height++
		if height > MaxDepth {
			return blake3hash.Hash{}, unexpectedTreeShape("maximum tree depth exceeded")
		}
	}

	// The path may have ended with more than one surviving link (the
	// original root split); keep wrapping additional index levels until
	// exactly one remains, growing the tree's height.
	for len(links) > 1 {
		next, err := t.buildIndexLevel(links, height)
		if err != nil {
			return blake3hash.Hash{}, err
		}
		links = next
		height++
		if height > MaxDepth {
			return blake3hash.Hash{}, unexpectedTreeShape("maximum tree depth exceeded")
		}
	}

	if len(links) == 0 {
		return blake3hash.Zero, nil
	}
	return links[0].Child, nil
}

// Insert returns a new tree snapshot with key bound to value. If key
// already exists, its value is replaced in place (no duplicate entry).
// The receiver remains valid and unchanged.
func (t *Tree) Insert(ctx context.Context, key, value []byte) (*Tree, error) {
	invariant.NotNil(key, "key")

	next := &Tree{store: t.store, delta: t.cloneDelta()}

	if t.root.IsZero() {
		node, err := NewSegment([]Entry{{Key: key, Value: value}})
		if err != nil {
			return nil, err
		}
		hash, err := next.putNode(node)
		if err != nil {
			return nil, err
		}
		next.root = hash
		return next, nil
	}

	path, leaf, err := t.descend(ctx, key)
	if err != nil {
		return nil, err
	}

	entries := cloneEntries(leaf.Entries)
	idx, found := segmentEntry(entries, key)
	if found {
		if bytes.Equal(entries[idx].Value, value) {
			// No-op: identical value, same tree.
			return t, nil
		}
		entries[idx] = Entry{Key: key, Value: value}
	} else {
		entries = append(entries, Entry{})
		copy(entries[idx+1:], entries[idx:])
		entries[idx] = Entry{Key: key, Value: value}
	}

	links, err := next.buildSegments(entries)
	if err != nil {
		return nil, err
	}

	root, err := next.ascend(path, links)
	if err != nil {
		return nil, err
	}
	next.root = root
	return next, nil
}

// Delete returns a new tree snapshot with key removed. Deleting an absent
// key leaves the root unchanged. Deleting the last
// entry yields the null-hash root.
func (t *Tree) Delete(ctx context.Context, key []byte) (*Tree, error) {
	invariant.NotNil(key, "key")

	if t.root.IsZero() {
		return t, nil
	}

	next := &Tree{store: t.store, delta: t.cloneDelta()}

	path, leaf, err := t.descend(ctx, key)
	if err != nil {
		return nil, err
	}

	idx, found := segmentEntry(leaf.Entries, key)
	if !found {
		return t, nil
	}

	entries := cloneEntries(leaf.Entries)
	entries = append(entries[:idx], entries[idx+1:]...)

	links, err := next.buildSegments(entries)
	if err != nil {
		return nil, err
	}

	root, err := next.ascend(path, links)
	if err != nil {
		return nil, err
	}
	next.root = root
	return next, nil
}
