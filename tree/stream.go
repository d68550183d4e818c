package tree

import (
	"bytes"
	"context"
)

// Range bounds a range scan: Start is inclusive, End is exclusive. A nil
// bound is unbounded on that side.
type Range struct {
	Start []byte
	End   []byte
}

// cursorFrame tracks an index node's remaining, not-yet-visited children
// during a depth-first descent.
type cursorFrame struct {
	links []Link
	next  int
}

// Cursor is a non-restartable lazy sequence over a tree's entries in
// ascending key order.
type Cursor struct {
	ctx     context.Context
	tree    *Tree
	rng     Range
	frames  []cursorFrame
	entries []Entry
	idx     int
	done    bool
}

// Stream returns a cursor over every entry in ascending key order.
func (t *Tree) Stream(ctx context.Context) *Cursor {
	return t.StreamRange(ctx, Range{})
}

// StreamRange returns a cursor over entries whose keys satisfy rng, in
// ascending key order. The scan terminates as soon as a key would exceed
// the range, without visiting the remainder of the tree.
func (t *Tree) StreamRange(ctx context.Context, rng Range) *Cursor {
	c := &Cursor{ctx: ctx, tree: t, rng: rng}
	if !t.root.IsZero() {
		c.frames = []cursorFrame{{links: []Link{{Child: t.root}}}}
	} else {
		c.done = true
	}
	return c
}

// Next advances the cursor and returns the next entry, or ok=false when the
// stream is exhausted (either the tree is fully consumed or the range's
// upper bound has been passed).
func (c *Cursor) Next() (Entry, bool, error) {
	if c.done {
		return Entry{}, false, nil
	}
	for {
		if c.idx < len(c.entries) {
			e := c.entries[c.idx]
			c.idx++

			if c.rng.End != nil && bytes.Compare(e.Key, c.rng.End) >= 0 {
				c.done = true
				c.frames = nil
				c.entries = nil
				return Entry{}, false, nil
			}
			if c.rng.Start != nil && bytes.Compare(e.Key, c.rng.Start) < 0 {
				continue
			}
			return e, true, nil
		}

		if len(c.frames) == 0 {
			c.done = true
			return Entry{}, false, nil
		}
		top := &c.frames[len(c.frames)-1]
		if top.next >= len(top.links) {
			c.frames = c.frames[:len(c.frames)-1]
			continue
		}
		link := top.links[top.next]
		top.next++

		if c.rng.Start != nil && link.UpperBound != nil && bytes.Compare(link.UpperBound, c.rng.Start) < 0 {
			continue
		}

		node, err := c.tree.loadNode(c.ctx, link.Child)
		if err != nil {
			c.done = true
			return Entry{}, false, err
		}
		if node.IsSegment() {
			c.entries = node.Entries
			c.idx = 0
			continue
		}
		c.frames = append(c.frames, cursorFrame{links: node.Links})
	}
}

// Collect drains the cursor into a slice. Intended for tests and small
// trees; production callers should prefer Next in a loop.
func (c *Cursor) Collect() ([]Entry, error) {
	var out []Entry
	for {
		e, ok, err := c.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, e)
	}
}
