package replica

import (
	"context"

	"github.com/dialog-db/dialog/internal/blake3hash"
)

// State is the persisted form of a branch: its current revision, the tree
// root it was derived from (for rebase during pull), and an optional
// upstream pointer.
type State struct {
	Revision Revision
	Base     blake3hash.Hash
	Upstream *UpstreamRef
}

// UpstreamRef names the branch a local branch tracks, either locally or on
// a remote.
type UpstreamRef struct {
	ID     string
	Origin string // empty for a local upstream branch
}

// Store persists branch state, keyed by branch id.
type Store interface {
	LoadBranch(ctx context.Context, id string) (State, bool, error)
	SaveBranch(ctx context.Context, id string, state State) error
}

// Branch is a named, mutable pointer to a sequence of tree revisions.
type Branch struct {
	ID    string
	store Store
	state State
}

// Open loads the branch state, or creates a fresh one rooted at
// the zero revision if absent.
func Open(ctx context.Context, store Store, id string, issuer string) (*Branch, error) {
	state, ok, err := store.LoadBranch(ctx, id)
	if err != nil {
		return nil, storageFailure(err)
	}
	if !ok {
		state = State{Revision: Default(issuer), Base: blake3hash.Zero}
		if err := store.SaveBranch(ctx, id, state); err != nil {
			return nil, storageFailure(err)
		}
	}
	return &Branch{ID: id, store: store, state: state}, nil
}

// Load loads an existing branch, failing if absent.
func Load(ctx context.Context, store Store, id string) (*Branch, error) {
	state, ok, err := store.LoadBranch(ctx, id)
	if err != nil {
		return nil, storageFailure(err)
	}
	if !ok {
		return nil, branchNotFound(id)
	}
	return &Branch{ID: id, store: store, state: state}, nil
}

// Revision returns the branch's current revision.
func (b *Branch) Revision() Revision { return b.state.Revision }

// Base returns the tree root the current revision was derived from.
func (b *Branch) Base() blake3hash.Hash { return b.state.Base }

// Upstream returns the branch's tracked upstream, if any.
func (b *Branch) Upstream() *UpstreamRef { return b.state.Upstream }

// Reset replaces the branch's current revision, recording base as the
// tree root that revision was derived from.
func (b *Branch) Reset(ctx context.Context, revision Revision, base blake3hash.Hash) error {
	b.state.Revision = revision
	b.state.Base = base
	if err := b.store.SaveBranch(ctx, b.ID, b.state); err != nil {
		return storageFailure(err)
	}
	return nil
}

// SetUpstream records the branch this branch tracks.
func (b *Branch) SetUpstream(ctx context.Context, ref UpstreamRef) error {
	b.state.Upstream = &ref
	if err := b.store.SaveBranch(ctx, b.ID, b.state); err != nil {
		return storageFailure(err)
	}
	return nil
}
