package replica

import (
	"bytes"
	"context"

	"github.com/dialog-db/dialog/internal/blake3hash"
	"github.com/dialog-db/dialog/tree"
)

// MaxSyncAttempts bounds Sync's push/pull retry loop.
const MaxSyncAttempts = 10

// Pull fetches upstream's revision and, if its tree differs from b's
// recorded base, integrates the difference into a new local tree and
// resets b to a revision derived from it.
func Pull(ctx context.Context, b *Branch, upstream Upstream, store *tree.NodeStore) error {
	upstreamRev, err := upstream.Fetch(ctx)
	if err != nil {
		return err
	}
	if upstreamRev.Tree == b.Base() {
		return nil
	}

	baseTree := tree.Open(store, b.Base())
	upstreamTree := tree.Open(store, upstreamRev.Tree)
	changes, err := tree.Diff(ctx, baseTree, upstreamTree)
	if err != nil {
		return err
	}

	merged := tree.Open(store, b.Revision().Tree)
	for _, change := range changes {
		switch change.Kind {
		case tree.ChangeAdd:
			merged, err = integrateAssert(ctx, merged, change.Entry)
		case tree.ChangeRemove:
			merged, err = integrateRetract(ctx, merged, change.Entry)
		}
		if err != nil {
			return err
		}
	}
	if err := merged.Flush(ctx); err != nil {
		return storageFailure(err)
	}

	current := b.Revision()
	var period, moment uint64
	if upstreamRev.Issuer != current.Issuer {
		period, moment = upstreamRev.Period+1, 0
	} else {
		period, moment = upstreamRev.Period, upstreamRev.Moment+1
	}
	cause, err := upstreamRev.Edition()
	if err != nil {
		return err
	}
	next := Revision{
		Issuer: current.Issuer,
		Tree:   merged.Root(),
		Cause:  []Edition{cause},
		Period: period,
		Moment: moment,
	}
	return b.Reset(ctx, next, upstreamRev.Tree)
}

// integrateAssert applies an added entry under the conflict-resolution
// rule: when the key is already bound to a different value, the winner is
// the value with the higher BLAKE3 hash.
func integrateAssert(ctx context.Context, t *tree.Tree, e tree.Entry) (*tree.Tree, error) {
	existing, ok, err := t.Get(ctx, e.Key)
	if err != nil {
		return nil, err
	}
	if ok {
		if bytes.Equal(existing, e.Value) {
			return t, nil
		}
		if blake3hash.Compare(blake3hash.Sum(existing), blake3hash.Sum(e.Value)) >= 0 {
			return t, nil
		}
	}
	return t.Insert(ctx, e.Key, e.Value)
}

// integrateRetract applies a removed entry, treating a retraction whose
// expected value no longer matches as a no-op concurrent update.
func integrateRetract(ctx context.Context, t *tree.Tree, e tree.Entry) (*tree.Tree, error) {
	existing, ok, err := t.Get(ctx, e.Key)
	if err != nil {
		return nil, err
	}
	if !ok || !bytes.Equal(existing, e.Value) {
		return t, nil
	}
	return t.Delete(ctx, e.Key)
}

// Push writes b's current revision to upstream.
func Push(ctx context.Context, b *Branch, upstream Upstream) error {
	return upstream.Push(ctx, b.Revision())
}

// Sync pushes, and on a push conflict pulls and retries, up to
// MaxSyncAttempts times; the final failure propagates.
func Sync(ctx context.Context, b *Branch, upstream Upstream, store *tree.NodeStore) error {
	var lastErr error
	for attempt := 0; attempt < MaxSyncAttempts; attempt++ {
		err := Push(ctx, b, upstream)
		if err == nil {
			return nil
		}
		lastErr = err
		if !IsConflict(err) {
			return err
		}
		if err := Pull(ctx, b, upstream, store); err != nil {
			return err
		}
	}
	return lastErr
}
