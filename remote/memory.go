package remote

import (
	"context"
	"sync"

	"github.com/dialog-db/dialog/internal/blake3hash"
)

// MemoryArchive is an in-process Archive, the reference implementation
// exercised by tests in place of an S3 bucket (mirrors tree.MemoryBlobStore
// and query.MemoryArtifactStore's role as in-memory backends alongside
// their production counterparts).
type MemoryArchive struct {
	mu      sync.RWMutex
	objects map[blake3hash.Hash][]byte
}

// NewMemoryArchive constructs an empty MemoryArchive.
func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{objects: map[blake3hash.Hash][]byte{}}
}

func (m *MemoryArchive) Get(_ context.Context, hash blake3hash.Hash) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[hash]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, true, nil
}

func (m *MemoryArchive) Put(_ context.Context, hash blake3hash.Hash, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[hash]; ok {
		return nil
	}
	stored := make([]byte, len(data))
	copy(stored, data)
	m.objects[hash] = stored
	return nil
}

type memoryCell struct {
	content []byte
	edition string
}

// MemoryCells is an in-process Memory, the reference implementation for
// tests. Editions are monotonically increasing lowercase hexadecimal
// strings, standing in for S3 ETags.
type MemoryCells struct {
	mu      sync.Mutex
	cells   map[string]memoryCell
	counter uint64
}

// NewMemoryCells constructs an empty MemoryCells.
func NewMemoryCells() *MemoryCells {
	return &MemoryCells{cells: map[string]memoryCell{}}
}

func (m *MemoryCells) Resolve(_ context.Context, key string) (Publication, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cell, ok := m.cells[key]
	if !ok {
		return Publication{}, false, nil
	}
	return Publication{Content: cell.content, Edition: cell.edition}, true, nil
}

func (m *MemoryCells) Publish(_ context.Context, key string, content []byte, expected *string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cell, exists := m.cells[key]
	current := ""
	if exists {
		current = cell.edition
	}
	if expected == nil {
		if exists {
			return "", EditionMismatch(key)
		}
	} else if *expected != current {
		return "", EditionMismatch(key)
	}

	m.counter++
	edition := formatEdition(m.counter)
	m.cells[key] = memoryCell{content: content, edition: edition}
	return edition, nil
}

func (m *MemoryCells) Retract(_ context.Context, key string, expected string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cell, exists := m.cells[key]
	if !exists || cell.edition != expected {
		return EditionMismatch(key)
	}
	delete(m.cells, key)
	return nil
}

func formatEdition(n uint64) string {
	const hex = "0123456789abcdef"
	if n == 0 {
		return "0"
	}
	var buf [16]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = hex[n%16]
		n /= 16
	}
	return string(buf[i:])
}
