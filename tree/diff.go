package tree

import (
	"bytes"
	"context"

	"github.com/dialog-db/dialog/internal/blake3hash"
)

// ChangeKind discriminates an Add from a Remove in a differential stream.
type ChangeKind uint8

const (
	ChangeAdd ChangeKind = iota
	ChangeRemove
)

// Change is one element of a differential: Add(entry) or Remove(entry).
type Change struct {
	Kind  ChangeKind
	Entry Entry
}

// viewNode is one element of a sparse view: a node together with its own
// content hash, so the prune step can compare hashes without re-hashing.
type viewNode struct {
	hash blake3hash.Hash
	node *Node
}

// Diff computes the minimal set of changes between two tree snapshots
// without walking either tree in full.
//
// The algorithm maintains two sparse views — vectors of nodes at matching
// depths — and alternates two steps until both sides contain only
// segments:
//
//  1. Prune: a two-cursor walk over the two upper-bound-sorted views.
//     Nodes with equal upper bound AND equal hash are shared subtrees and
//     are dropped from both sides unread; nodes with equal upper bound but
//     different hashes are kept on both sides; nodes with unequal upper
//     bound keep only the smaller one and advance only that side.
//  2. Expand: every surviving branch node is replaced by its children, in
//     order; segments pass through unchanged.
//
// Because identical subtrees are pruned by hash comparison alone, nodes
// whose hash is shared between left and right are never read past the
// depth at which the match is detected.
func Diff(ctx context.Context, left, right *Tree) ([]Change, error) {
	leftView, err := rootView(ctx, left)
	if err != nil {
		return nil, err
	}
	rightView, err := rootView(ctx, right)
	if err != nil {
		return nil, err
	}

	for {
		leftView, rightView = pruneViews(leftView, rightView)
		if allSegments(leftView) && allSegments(rightView) {
			break
		}
		leftView, err = expandView(ctx, left, leftView)
		if err != nil {
			return nil, err
		}
		rightView, err = expandView(ctx, right, rightView)
		if err != nil {
			return nil, err
		}
	}

	return mergeSegments(flattenEntries(leftView), flattenEntries(rightView)), nil
}

func rootView(ctx context.Context, t *Tree) ([]viewNode, error) {
	if t.root.IsZero() {
		return nil, nil
	}
	node, err := t.loadNode(ctx, t.root)
	if err != nil {
		return nil, err
	}
	return []viewNode{{hash: t.root, node: node}}, nil
}

// pruneViews drops matching shared subtrees from both sides (step 1),
// keeping the remaining nodes sorted by upper bound.
func pruneViews(left, right []viewNode) (newLeft, newRight []viewNode) {
	i, j := 0, 0
	for i < len(left) && j < len(right) {
		cmp := bytes.Compare(left[i].node.UpperBound(), right[j].node.UpperBound())
		switch {
		case cmp == 0:
			if left[i].hash == right[j].hash {
				// Shared subtree: drop both without expanding further.
			} else {
				newLeft = append(newLeft, left[i])
				newRight = append(newRight, right[j])
			}
			i++
			j++
		case cmp < 0:
			newLeft = append(newLeft, left[i])
			i++
		default:
			newRight = append(newRight, right[j])
			j++
		}
	}
	newLeft = append(newLeft, left[i:]...)
	newRight = append(newRight, right[j:]...)
	return newLeft, newRight
}

func allSegments(view []viewNode) bool {
	for _, v := range view {
		if !v.node.IsSegment() {
			return false
		}
	}
	return true
}

// expandView replaces every branch node in view with its children, loaded
// from t, in link order. Segments pass through unchanged.
func expandView(ctx context.Context, t *Tree, view []viewNode) ([]viewNode, error) {
	var out []viewNode
	for _, v := range view {
		if v.node.IsSegment() {
			out = append(out, v)
			continue
		}
		for _, link := range v.node.Links {
			child, err := t.loadNode(ctx, link.Child)
			if err != nil {
				return nil, err
			}
			out = append(out, viewNode{hash: link.Child, node: child})
		}
	}
	return out, nil
}

// flattenEntries concatenates the entries of a view of (surviving)
// segments. Because the view is kept sorted by upper bound and segments
// partition the key space without overlap, the concatenation is itself
// sorted by key.
func flattenEntries(view []viewNode) []Entry {
	var out []Entry
	for _, v := range view {
		out = append(out, v.node.Entries...)
	}
	return out
}

// mergeSegments performs the two-cursor stream-diff over the surviving
// segments' entries: Remove(a) when a.key <
// b.key, Add(b) when a.key > b.key, and on equal keys Remove(a)+Add(b) iff
// a.value != b.value. The remainder drains as removes (left) or adds
// (right).
func mergeSegments(left, right []Entry) []Change {
	var changes []Change
	i, j := 0, 0
	for i < len(left) && j < len(right) {
		a, b := left[i], right[j]
		switch bytes.Compare(a.Key, b.Key) {
		case -1:
			changes = append(changes, Change{Kind: ChangeRemove, Entry: a})
			i++
		case 1:
			changes = append(changes, Change{Kind: ChangeAdd, Entry: b})
			j++
		default:
			if !bytes.Equal(a.Value, b.Value) {
				changes = append(changes, Change{Kind: ChangeRemove, Entry: a})
				changes = append(changes, Change{Kind: ChangeAdd, Entry: b})
			}
			i++
			j++
		}
	}
	for ; i < len(left); i++ {
		changes = append(changes, Change{Kind: ChangeRemove, Entry: left[i]})
	}
	for ; j < len(right); j++ {
		changes = append(changes, Change{Kind: ChangeAdd, Entry: right[j]})
	}
	return changes
}
