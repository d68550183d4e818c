package query

import (
	"context"
	"sort"
	"sync"
)

// Index names the scan strategy implied by which positions of a selector
// are constrained.
type Index uint8

const (
	IndexEAV Index = iota // (entity, attribute, value) — `of` known
	IndexAEV              // (attribute, entity, value) — `the` known, `of` unknown
	IndexVAE              // (value, attribute, entity) — only `is` known
)

// IndexFor reports which index a selector implies: EAV when the entity
// is known, AEV when only the attribute is, VAE when only the value is.
func IndexFor(s selector) Index {
	if s.of != nil {
		return IndexEAV
	}
	if s.the != nil {
		return IndexAEV
	}
	return IndexVAE
}

// ArtifactStore is the abstract fact store the engine reads through.
// Select emits artifacts sorted consistently with the index implied by
// the constrained positions.
type ArtifactStore interface {
	Select(ctx context.Context, s Selector) ([]Fact, error)
}

// Selector fixes any subset of {the, of, is}.
type Selector struct {
	The *Attribute
	Of  *Entity
	Is  *Value
}

func (s Selector) internal() selector {
	return selector{the: s.The, of: s.Of, is: s.Is}
}

// MemoryArtifactStore is an in-memory ArtifactStore maintaining EAV/AEV/VAE
// sort orders, used by tests and as a reference implementation.
type MemoryArtifactStore struct {
	mu    sync.RWMutex
	facts []Fact
}

// NewMemoryArtifactStore constructs an empty store.
func NewMemoryArtifactStore() *MemoryArtifactStore {
	return &MemoryArtifactStore{}
}

// Assert appends a fact (append-only; a later transaction's fact
// shadows an earlier one only through Cardinality resolution, never by
// mutation in place).
func (s *MemoryArtifactStore) Assert(f Fact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.facts = append(s.facts, f)
}

func (s *MemoryArtifactStore) Select(_ context.Context, sel Selector) ([]Fact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []Fact
	for _, f := range s.facts {
		if sel.The != nil && f.The != *sel.The {
			continue
		}
		if sel.Of != nil && f.Of != *sel.Of {
			continue
		}
		if sel.Is != nil && !f.Is.Equal(*sel.Is) {
			continue
		}
		matched = append(matched, f)
	}

	switch IndexFor(sel.internal()) {
	case IndexEAV:
		sort.SliceStable(matched, func(i, j int) bool {
			if matched[i].Of != matched[j].Of {
				return matched[i].Of < matched[j].Of
			}
			if matched[i].The != matched[j].The {
				return matched[i].The < matched[j].The
			}
			return matched[i].Is.Compare(matched[j].Is) < 0
		})
	case IndexAEV:
		sort.SliceStable(matched, func(i, j int) bool {
			if matched[i].The != matched[j].The {
				return matched[i].The < matched[j].The
			}
			if matched[i].Of != matched[j].Of {
				return matched[i].Of < matched[j].Of
			}
			return matched[i].Is.Compare(matched[j].Is) < 0
		})
	case IndexVAE:
		sort.SliceStable(matched, func(i, j int) bool {
			if c := matched[i].Is.Compare(matched[j].Is); c != 0 {
				return c < 0
			}
			if matched[i].The != matched[j].The {
				return matched[i].The < matched[j].The
			}
			return matched[i].Of < matched[j].Of
		})
	}
	return matched, nil
}
