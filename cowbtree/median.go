package cowbtree

import (
	"github.com/btree-query-bench/pagedkv/kverr"
	"github.com/btree-query-bench/pagedkv/node"
)

// findMedianKeyIdx scans cumulative key byte-length and returns the index
// of the first key at which the running sum exceeds half the total (plus
// a one-byte margin). Ported unchanged from the original's
// find_median_key_idx: the cut point is chosen by key-length mass, not by
// key count, so a handful of very long keys still splits evenly by bytes.
func findMedianKeyIdx(keys [][]byte) int {
	total := 0
	for _, k := range keys {
		total += len(k)
	}

	sum := 0
	for idx, k := range keys {
		sum += len(k)
		if sum > total/2+1 {
			return idx
		}
	}
	return 0
}

// splitPairs splits a full leaf's sorted pairs at the byte-length median,
// returning the key promoted to the parent (the last key kept on the left
// half) and the sibling's share of the pairs.
func splitPairs(pairs []node.Pair) ([]byte, []node.Pair, error) {
	total := 0
	for _, p := range pairs {
		total += len(p.Key)
	}

	medianIdx := 0
	sum := 0
	for idx, p := range pairs {
		sum += len(p.Key)
		if sum > total/2+1 {
			medianIdx = idx
			break
		}
	}

	if medianIdx == 0 {
		return nil, nil, kverr.New(kverr.ImpossibleSplit, "cowbtree: split leaf")
	}

	sibling := append([]node.Pair(nil), pairs[medianIdx:]...)
	left := pairs[:medianIdx]
	promoted := left[len(left)-1].Key

	return promoted, sibling, nil
}
