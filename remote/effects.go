package remote

import (
	"context"

	"github.com/dialog-db/dialog/internal/blake3hash"
)

// Archive is the content-addressed get/put effect dispatched to a blob
// backend.
type Archive interface {
	Get(ctx context.Context, hash blake3hash.Hash) ([]byte, bool, error)
	// Put is idempotent for the same hash+bytes.
	Put(ctx context.Context, hash blake3hash.Hash, data []byte) error
}

// Publication is a Memory cell's current content and opaque edition.
type Publication struct {
	Content []byte
	Edition string
}

// Memory is the compare-and-swap cell effect dispatched to a mutable
// backend. Editions are opaque strings
// (S3 ETags under the hood).
type Memory interface {
	Resolve(ctx context.Context, key string) (Publication, bool, error)
	// Publish writes content under key, succeeding only if the current
	// edition matches expected (nil meaning "expect empty"); on mismatch
	// it returns EditionMismatch.
	Publish(ctx context.Context, key string, content []byte, expected *string) (string, error)
	// Retract removes key's content, succeeding only if the current
	// edition matches expected.
	Retract(ctx context.Context, key string, expected string) error
}
