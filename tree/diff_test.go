package tree_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/dialog-db/dialog/tree"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func applyChanges(t *testing.T, ctx context.Context, base map[string]string, changes []tree.Change) map[string]string {
	t.Helper()
	out := make(map[string]string, len(base))
	for k, v := range base {
		out[k] = v
	}
	for _, c := range changes {
		switch c.Kind {
		case tree.ChangeAdd:
			out[string(c.Entry.Key)] = string(c.Entry.Value)
		case tree.ChangeRemove:
			delete(out, string(c.Entry.Key))
		}
	}
	return out
}

func TestDiffIsEmptyForIdenticalTrees(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	tr := insertAll(t, ctx, store, kv(80))

	changes, err := tree.Diff(ctx, tr, tr)
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestDiffSoundAndComplete(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	left := insertAll(t, ctx, store, kv(100))

	right := left
	var err error
	right, err = right.Delete(ctx, []byte("key-0005"))
	require.NoError(t, err)
	right, err = right.Insert(ctx, []byte("key-0005-replacement"), []byte("new-value"))
	require.NoError(t, err)
	right, err = right.Insert(ctx, []byte("key-0050"), []byte("updated-value"))
	require.NoError(t, err)
	require.NoError(t, right.Flush(ctx))

	changes, err := tree.Diff(ctx, left, right)
	require.NoError(t, err)

	leftEntries, err := left.Stream(ctx).Collect()
	require.NoError(t, err)
	leftState := map[string]string{}
	for _, e := range leftEntries {
		leftState[string(e.Key)] = string(e.Value)
	}

	reconstructed := applyChanges(t, ctx, leftState, changes)

	rightEntries, err := right.Stream(ctx).Collect()
	require.NoError(t, err)
	rightState := map[string]string{}
	for _, e := range rightEntries {
		rightState[string(e.Key)] = string(e.Value)
	}

	assert.Empty(t, cmp.Diff(rightState, reconstructed),
		"applying the differential to the left state must reproduce the right state")
}

func TestDiffAgainstEmptyTreeYieldsAllAdds(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	entries := kv(20)
	populated := insertAll(t, ctx, store, entries)
	empty := tree.New(store)

	changes, err := tree.Diff(ctx, empty, populated)
	require.NoError(t, err)
	require.Len(t, changes, len(entries))
	for _, c := range changes {
		assert.Equal(t, tree.ChangeAdd, c.Kind)
	}
}

func TestDiffMinimalReadsSkipsSharedSubtrees(t *testing.T) {
	ctx := context.Background()
	backend := tree.NewMemoryBlobStore()
	journal := tree.NewJournaledBlobStore(backend)
	store := tree.NewNodeStore(journal)

	base := insertAll(t, ctx, store, kv(500))

	changed, err := base.Insert(ctx, []byte("zzz-only-in-right"), []byte("value"))
	require.NoError(t, err)
	require.NoError(t, changed.Flush(ctx))

	journal.Reset()

	changes, err := tree.Diff(ctx, base, changed)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, tree.ChangeAdd, changes[0].Kind)
	assert.Equal(t, []byte("zzz-only-in-right"), changes[0].Entry.Key)

	reads := journal.Reads()
	assert.Less(t, len(reads), 500, "diff must not re-read every leaf when only one key changed")
}

func TestDiffDetectsValueOnlyChange(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	left := insertAll(t, ctx, store, kv(10))
	right, err := left.Insert(ctx, []byte("key-0003"), []byte("replacement-value"))
	require.NoError(t, err)
	require.NoError(t, right.Flush(ctx))

	changes, err := tree.Diff(ctx, left, right)
	require.NoError(t, err)
	require.Len(t, changes, 2)

	var sawRemove, sawAdd bool
	for _, c := range changes {
		assert.Equal(t, []byte("key-0003"), c.Entry.Key)
		if c.Kind == tree.ChangeRemove {
			sawRemove = true
			assert.Equal(t, fmt.Sprintf("value-%04d", 3), string(c.Entry.Value))
		} else {
			sawAdd = true
			assert.Equal(t, "replacement-value", string(c.Entry.Value))
		}
	}
	assert.True(t, sawRemove)
	assert.True(t, sawAdd)
}
