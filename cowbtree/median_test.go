package cowbtree

import (
	"bytes"
	"testing"

	"github.com/btree-query-bench/pagedkv/node"
)

func TestFindMedianKeyIdx(t *testing.T) {
	tests := []struct {
		name string
		keys [][]byte
		want int
	}{
		{"empty", nil, 0},
		{"single key", [][]byte{[]byte("a")}, 0},
		{
			"even split",
			[][]byte{[]byte("aa"), []byte("bb"), []byte("cc"), []byte("dd")},
			2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := findMedianKeyIdx(tt.keys)
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSplitPairsPromotesLastLeftKey(t *testing.T) {
	pairs := []node.Pair{
		{Key: []byte("aa"), Value: 1},
		{Key: []byte("bb"), Value: 2},
		{Key: []byte("cc"), Value: 3},
		{Key: []byte("dd"), Value: 4},
	}
	promoted, sibling, err := splitPairs(pairs)
	if err != nil {
		t.Fatalf("splitPairs: %v", err)
	}
	if len(sibling) == 0 || len(sibling) >= len(pairs) {
		t.Fatalf("expected a proper sibling split, got %d of %d", len(sibling), len(pairs))
	}
	leftCount := len(pairs) - len(sibling)
	wantPromoted := pairs[leftCount-1].Key
	if !bytes.Equal(promoted, wantPromoted) {
		t.Errorf("promoted key = %q, want %q (last key kept on the left half)", promoted, wantPromoted)
	}
}

func TestSplitPairsImpossibleSplit(t *testing.T) {
	pairs := []node.Pair{{Key: []byte("only-one-huge-key"), Value: 1}}
	if _, _, err := splitPairs(pairs); err == nil {
		t.Fatal("expected ImpossibleSplit for a single entry, got nil")
	}
}
