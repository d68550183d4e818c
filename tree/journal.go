package tree

import (
	"context"
	"sync"

	"github.com/dialog-db/dialog/internal/blake3hash"
)

// JournaledBlobStore wraps a BlobStore and records every hash it is asked
// to Get, so a test can assert that a differential never reads a node
// beyond the depth at which sharing was detected.
type JournaledBlobStore struct {
	backend BlobStore

	mu   sync.Mutex
	reads []blake3hash.Hash
}

// NewJournaledBlobStore wraps backend with read journaling.
func NewJournaledBlobStore(backend BlobStore) *JournaledBlobStore {
	return &JournaledBlobStore{backend: backend}
}

func (j *JournaledBlobStore) Get(ctx context.Context, hash blake3hash.Hash) ([]byte, bool, error) {
	j.mu.Lock()
	j.reads = append(j.reads, hash)
	j.mu.Unlock()
	return j.backend.Get(ctx, hash)
}

func (j *JournaledBlobStore) Put(ctx context.Context, hash blake3hash.Hash, data []byte) error {
	return j.backend.Put(ctx, hash, data)
}

// Reads returns every hash Get has been called with, in call order. Note
// this only journals reads that miss the NodeStore's cache — repeat reads
// of a hash already resident in cache never reach the backend.
func (j *JournaledBlobStore) Reads() []blake3hash.Hash {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]blake3hash.Hash, len(j.reads))
	copy(out, j.reads)
	return out
}

// Reset clears the recorded reads.
func (j *JournaledBlobStore) Reset() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.reads = nil
}
