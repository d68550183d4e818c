package replica

import "context"

// Resolver reads a remote's published revision for a branch.
type Resolver interface {
	Resolve(ctx context.Context, branchID string) (Revision, bool, error)
}

// Publisher writes a revision to a remote under CAS semantics, keyed by
// branch id. Implementations must return PushFailed on an edition mismatch.
type Publisher interface {
	Publish(ctx context.Context, branchID string, revision Revision, expected *Edition) error
}

// RepositoryRemote holds a remote's address and its resolve/publish
// capabilities.
type RepositoryRemote struct {
	Address   string
	Resolver  Resolver
	Publisher Publisher
}

// Resolve reads the remote's current revision for branchID.
func (r *RepositoryRemote) Resolve(ctx context.Context, branchID string) (Revision, bool, error) {
	return r.Resolver.Resolve(ctx, branchID)
}

// Cache persists the last-fetched remote revision under a (remote, branch)
// key.
type Cache interface {
	LoadRemoteRevision(ctx context.Context, remote, branch string) (Revision, bool, error)
	SaveRemoteRevision(ctx context.Context, remote, branch string, rev Revision) error
}

// RemoteBranch is a local handle onto a branch tracked on a remote.
type RemoteBranch struct {
	remote   *RepositoryRemote
	branchID string
	cache    Cache
}

// NewRemoteBranch constructs a RemoteBranch over remote's Address/branchID,
// backed by cache for the last-fetched revision.
func NewRemoteBranch(remote *RepositoryRemote, branchID string, cache Cache) *RemoteBranch {
	return &RemoteBranch{remote: remote, branchID: branchID, cache: cache}
}

// Fetch reads the remote's current revision and caches it under
// (remote, branch).
func (rb *RemoteBranch) Fetch(ctx context.Context) (Revision, error) {
	rev, ok, err := rb.remote.Resolve(ctx, rb.branchID)
	if err != nil {
		return Revision{}, err
	}
	if !ok {
		return Revision{}, branchNotFound(rb.branchID)
	}
	if err := rb.cache.SaveRemoteRevision(ctx, rb.remote.Address, rb.branchID, rev); err != nil {
		return Revision{}, storageFailure(err)
	}
	return rev, nil
}

// CachedRevision returns the last revision Fetch observed for this branch,
// without contacting the remote.
func (rb *RemoteBranch) CachedRevision(ctx context.Context) (Revision, bool, error) {
	rev, ok, err := rb.cache.LoadRemoteRevision(ctx, rb.remote.Address, rb.branchID)
	if err != nil {
		return Revision{}, false, storageFailure(err)
	}
	return rev, ok, nil
}

// Push writes revision to the remote under the given expected edition
// (nil meaning "expect empty"), and updates the cache on success.
func (rb *RemoteBranch) Push(ctx context.Context, revision Revision, expected *Edition) error {
	if err := rb.remote.Publisher.Publish(ctx, rb.branchID, revision, expected); err != nil {
		return err
	}
	return rb.cache.SaveRemoteRevision(ctx, rb.remote.Address, rb.branchID, revision)
}
