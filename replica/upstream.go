package replica

import "context"

// Upstream is the branch's synchronization counterpart: either another
// local branch or a remote one.
type Upstream interface {
	// Fetch returns the upstream's current revision. A local upstream's
	// Fetch is a no-op that returns its branch's current revision
	// directly.
	Fetch(ctx context.Context) (Revision, error)
	// Push writes revision to the upstream, failing with a Conflict-kind
	// error on a CAS mismatch.
	Push(ctx context.Context, revision Revision) error
}

// LocalUpstream adapts a local Branch (typically the branch this one was
// forked from) to the Upstream interface.
type LocalUpstream struct {
	Branch *Branch
}

// Fetch returns the upstream branch's current revision unconditionally.
func (u LocalUpstream) Fetch(ctx context.Context) (Revision, error) {
	return u.Branch.Revision(), nil
}

// Push resets the upstream branch directly to revision.
func (u LocalUpstream) Push(ctx context.Context, revision Revision) error {
	return u.Branch.Reset(ctx, revision, revision.Tree)
}

// RemoteUpstream adapts a RemoteBranch to the Upstream interface, tracking
// the edition observed by the last Fetch/Push so Push can present the
// correct CAS expectation.
type RemoteUpstream struct {
	branch  *RemoteBranch
	edition *Edition
}

// NewRemoteUpstream constructs a RemoteUpstream over branch.
func NewRemoteUpstream(branch *RemoteBranch) *RemoteUpstream {
	return &RemoteUpstream{branch: branch}
}

func (u *RemoteUpstream) Fetch(ctx context.Context) (Revision, error) {
	rev, err := u.branch.Fetch(ctx)
	if err != nil {
		return Revision{}, err
	}
	if edition, err := rev.Edition(); err == nil {
		u.edition = &edition
	}
	return rev, nil
}

func (u *RemoteUpstream) Push(ctx context.Context, revision Revision) error {
	if err := u.branch.Push(ctx, revision, u.edition); err != nil {
		return err
	}
	edition, err := revision.Edition()
	if err != nil {
		return err
	}
	u.edition = &edition
	return nil
}
