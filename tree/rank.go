package tree

import "github.com/dialog-db/dialog/internal/blake3hash"

// Rank is the non-negative integer derived deterministically from a key.
// It sets the height at which the key becomes a segment boundary: a key
// promoted to height H is a boundary at every height <= H.
type Rank uint32

// FanoutBits sets the rank granularity: each rank step is FanoutBits
// leading zero bits. Index levels from the second above the segments
// upward have an expected fan-out of 2^FanoutBits (32); segments close on
// keys of rank >= 2 and so average 2^(2*FanoutBits) (1024) entries, and the
// index level directly above the segments holds one link per node.
const FanoutBits = 5

// Distribution maps a key to its rank. Production trees use KeyRank;
// tests that need a deterministic shape substitute EncodedRank, which
// reads the rank out of the key's trailing bytes.
type Distribution func(key []byte) Rank

// KeyRank computes the rank of a key: the number of leading zero bits in
// BLAKE3(key), divided by FanoutBits. This is a geometric distribution over
// the key's hash — P(rank >= k) = (2^-FanoutBits)^k — and depends only on
// the key, independent of insertion order.
func KeyRank(key []byte) Rank {
	digest := blake3hash.Sum(key)
	return Rank(leadingZeroBits(digest[:]) / FanoutBits)
}

func leadingZeroBits(data []byte) int {
	count := 0
	for _, b := range data {
		if b == 0 {
			count += 8
			continue
		}
		for mask := byte(0x80); mask != 0; mask >>= 1 {
			if b&mask != 0 {
				return count
			}
			count++
		}
	}
	return count
}

// isBoundary reports whether key is a segment/index boundary at a level
// whose minimum rank is minRank. A key is a boundary iff its rank exceeds
// the level's minimum rank: at height 0, minRank=1, so a leaf boundary
// requires rank >= 2.
func isBoundary(dist Distribution, key []byte, minRank Rank) bool {
	return dist(key) > minRank
}

// splitBoundaries partitions a sequence of ordered keys into contiguous
// groups, cutting a new group after any key that is a boundary at minRank.
// The final group always closes at the end of the slice, even if its last
// key is not itself a boundary — mirroring a content-defined chunker that
// must close its final chunk when the input runs out.
func splitBoundaries(dist Distribution, keys [][]byte, minRank Rank) []int {
	if len(keys) == 0 {
		return nil
	}
	var cuts []int
	for i, k := range keys {
		if isBoundary(dist, k, minRank) {
			cuts = append(cuts, i+1)
		}
	}
	if len(cuts) == 0 || cuts[len(cuts)-1] != len(keys) {
		cuts = append(cuts, len(keys))
	}
	return cuts
}
