package tree

import (
	"context"
	"sync"

	"github.com/dialog-db/dialog/internal/blake3hash"
)

// BlobStore is the storage backend's external interface. Hash equality
// implies byte equality — content-addressed.
type BlobStore interface {
	Get(ctx context.Context, hash blake3hash.Hash) ([]byte, bool, error)
	Put(ctx context.Context, hash blake3hash.Hash, data []byte) error
}

// MemoryBlobStore is an in-memory BlobStore, used by tests and as the
// default local backend.
type MemoryBlobStore struct {
	mu   sync.RWMutex
	data map[blake3hash.Hash][]byte
}

// NewMemoryBlobStore constructs an empty in-memory blob store.
func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{data: make(map[blake3hash.Hash][]byte)}
}

func (m *MemoryBlobStore) Get(_ context.Context, hash blake3hash.Hash) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.data[hash]
	return data, ok, nil
}

func (m *MemoryBlobStore) Put(_ context.Context, hash blake3hash.Hash, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[hash] = data
	return nil
}

// nodeCache maps hash -> buffer, shared across every snapshot drawn from
// the same NodeStore. Nodes are immutable under their hash, so the cache is
// safe to share across concurrent readers.
type nodeCache struct {
	mu   sync.RWMutex
	data map[blake3hash.Hash][]byte
}

func newNodeCache() *nodeCache {
	return &nodeCache{data: make(map[blake3hash.Hash][]byte)}
}

func (c *nodeCache) get(hash blake3hash.Hash) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, ok := c.data[hash]
	return data, ok
}

func (c *nodeCache) put(hash blake3hash.Hash, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[hash] = data
}

// NodeStore pairs a BlobStore with the shared node cache and the rank
// distribution every snapshot drawn from it splits nodes with. One
// NodeStore is typically shared by every Tree snapshot drawn from a single
// replica.
type NodeStore struct {
	backend BlobStore
	cache   *nodeCache
	rank    Distribution
}

// NewNodeStore wraps a BlobStore with a fresh shared node cache and the
// hash-derived KeyRank distribution.
func NewNodeStore(backend BlobStore) *NodeStore {
	return NewNodeStoreWithDistribution(backend, KeyRank)
}

// NewNodeStoreWithDistribution wraps a BlobStore with a fresh shared node
// cache and an explicit rank distribution. Trees compared or diffed
// against each other must use the same distribution.
func NewNodeStoreWithDistribution(backend BlobStore, dist Distribution) *NodeStore {
	return &NodeStore{backend: backend, cache: newNodeCache(), rank: dist}
}
