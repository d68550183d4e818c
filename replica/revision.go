// Package replica implements the branch/revision model: named
// branches whose revisions carry a hybrid logical clock, plus upstream
// tracking for fetch/pull/push/sync.
package replica

import (
	"github.com/dialog-db/dialog/internal/blake3hash"
	"github.com/dialog-db/dialog/internal/codec"
)

// Edition is the BLAKE3 hash of a revision's canonical encoding, used to
// identify a revision for causal references and compare-and-swap.
type Edition = blake3hash.Hash

// wireRevision is the fixed-order, canonically-encoded form of a Revision.
type wireRevision struct {
	_      struct{} `cbor:",toarray"`
	Issuer string
	Tree   [32]byte
	Cause  [][32]byte
	Period uint64
	Moment uint64
}

// Revision is a branch state: tree root plus causal predecessors and HLC
// coordinates.
type Revision struct {
	Issuer string
	Tree   blake3hash.Hash
	Cause  []Edition
	Period uint64
	Moment uint64
}

// Default returns the zero revision: null tree, empty cause, period 0,
// moment 0.
func Default(issuer string) Revision {
	return Revision{Issuer: issuer, Tree: blake3hash.Zero}
}

func (r Revision) toWire() wireRevision {
	w := wireRevision{Issuer: r.Issuer, Tree: r.Tree, Period: r.Period, Moment: r.Moment}
	w.Cause = make([][32]byte, len(r.Cause))
	for i, c := range r.Cause {
		w.Cause[i] = c
	}
	return w
}

// Encode produces the canonical byte form of r, the preimage of its
// Edition.
func (r Revision) Encode() ([]byte, error) {
	return codec.Marshal(r.toWire())
}

// Edition computes r's content-addressed identity.
func (r Revision) Edition() (Edition, error) {
	data, err := r.Encode()
	if err != nil {
		return blake3hash.Hash{}, err
	}
	return blake3hash.Sum(data), nil
}

// NextPeriod computes the HLC period for a revision synchronizing against
// causal revisions, taking the max period among causes from a different
// issuer and adding one.
func NextPeriod(issuer string, causes []Revision) uint64 {
	var maxPeriod uint64
	found := false
	for _, c := range causes {
		if c.Issuer == issuer {
			continue
		}
		if !found || c.Period > maxPeriod {
			maxPeriod = c.Period
			found = true
		}
	}
	if !found {
		return 0
	}
	return maxPeriod + 1
}

// NextMoment computes the HLC moment: one more than the moment of the
// causal revision with the same issuer, or 0 if none.
func NextMoment(issuer string, causes []Revision) uint64 {
	for _, c := range causes {
		if c.Issuer == issuer {
			return c.Moment + 1
		}
	}
	return 0
}
