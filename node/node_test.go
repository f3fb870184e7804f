package node

import (
	"bytes"
	"testing"

	"github.com/btree-query-bench/pagedkv/pager"
)

func TestLeafSerializeDeserializeRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		pairs []Pair
		next  pager.Offset
		prev  pager.Offset
	}{
		{"empty leaf", nil, 0, 0},
		{"single pair", []Pair{{Key: []byte("a"), Value: 1}}, 0, 0},
		{
			"multiple pairs",
			[]Pair{
				{Key: []byte("a"), Value: 1},
				{Key: []byte("b"), Value: 2},
				{Key: []byte("c"), Value: 3},
			},
			pager.PageSize * 2,
			pager.PageSize,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &Node{Kind: KindLeaf, Pairs: tt.pairs, Next: tt.next, Previous: tt.prev}
			page := new(pager.Page)
			if err := n.Serialize(page); err != nil {
				t.Fatalf("Serialize: %v", err)
			}
			got, err := Deserialize(page)
			if err != nil {
				t.Fatalf("Deserialize: %v", err)
			}
			if got.Kind != KindLeaf {
				t.Fatalf("got kind %v, want leaf", got.Kind)
			}
			if got.Next != tt.next || got.Previous != tt.prev {
				t.Errorf("got next=%d prev=%d, want next=%d prev=%d", got.Next, got.Previous, tt.next, tt.prev)
			}
			if len(got.Pairs) != len(tt.pairs) {
				t.Fatalf("got %d pairs, want %d", len(got.Pairs), len(tt.pairs))
			}
			for i, p := range tt.pairs {
				if !bytes.Equal(got.Pairs[i].Key, p.Key) || got.Pairs[i].Value != p.Value {
					t.Errorf("pair %d: got %+v, want %+v", i, got.Pairs[i], p)
				}
			}
		})
	}
}

func TestLeafOccupiedSpaceHasLoadBearingMargin(t *testing.T) {
	pairs := []Pair{{Key: []byte("abc"), Value: 1}}
	n := &Node{Kind: KindLeaf, Pairs: pairs}
	page := new(pager.Page)
	if err := n.Serialize(page); err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	got, err := Deserialize(page)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	want := leafHeaderSize + (1 + 3 + ValueSize) + 1
	if got.Occupied != want {
		t.Errorf("got occupied %d, want %d (header + slot + 1-byte margin)", got.Occupied, want)
	}
}

func TestInternalSerializeDeserializeRoundTrip(t *testing.T) {
	keys := [][]byte{[]byte("m"), []byte("z")}
	children := []pager.Offset{pager.PageSize, 2 * pager.PageSize, 3 * pager.PageSize}
	n := NewInternal(false, keys, children)
	page := new(pager.Page)
	if err := n.Serialize(page); err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	got, err := Deserialize(page)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if got.Kind != KindInternal {
		t.Fatalf("got kind %v, want internal", got.Kind)
	}
	if len(got.Children) != len(children) {
		t.Fatalf("got %d children, want %d", len(got.Children), len(children))
	}
	for i, c := range children {
		if got.Children[i] != c {
			t.Errorf("child %d: got %d, want %d", i, got.Children[i], c)
		}
	}
	for i, k := range keys {
		if !bytes.Equal(got.Keys[i], k) {
			t.Errorf("key %d: got %q, want %q", i, got.Keys[i], k)
		}
	}
}

func TestSerializeIsRootByte(t *testing.T) {
	root := NewLeaf(true)
	page := new(pager.Page)
	if err := root.Serialize(page); err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	got, err := Deserialize(page)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if !got.IsRoot {
		t.Error("expected IsRoot to round-trip true")
	}

	nonRoot := NewLeaf(false)
	page2 := new(pager.Page)
	nonRoot.Serialize(page2)
	got2, _ := Deserialize(page2)
	if got2.IsRoot {
		t.Error("expected IsRoot to round-trip false")
	}
}

func TestSerializeRejectsOversizeKey(t *testing.T) {
	oversizeKey := bytes.Repeat([]byte("k"), KeyMaxSize+1)
	n := &Node{Kind: KindLeaf, Pairs: []Pair{{Key: oversizeKey, Value: 1}}}
	page := new(pager.Page)
	if err := n.Serialize(page); err == nil {
		t.Fatal("expected KeyOverflow error, got nil")
	}
}

func TestDeserializeRejectsZeroLengthKey(t *testing.T) {
	page := new(pager.Page)
	page.PutByte(kindOffset, byte(KindLeaf))
	page.PutUint64(leafKeyCountOffset, 1)
	page.PutByte(leafHeaderSize, 0) // zero key length
	if _, err := Deserialize(page); err == nil {
		t.Fatal("expected KeyParseError, got nil")
	}
}

func TestDeserializeRejectsInvalidKind(t *testing.T) {
	page := new(pager.Page)
	page.PutByte(kindOffset, 7)
	if _, err := Deserialize(page); err == nil {
		t.Fatal("expected InvalidNodeKind error, got nil")
	}
}

func TestInternalKeysPrecedeChildrenOnDisk(t *testing.T) {
	// §9 item G: on-disk field order is keys then children.
	keys := [][]byte{[]byte("x")}
	children := []pager.Offset{pager.PageSize, 2 * pager.PageSize}
	n := NewInternal(false, keys, children)
	page := new(pager.Page)
	n.Serialize(page)

	keyLen, _ := page.Byte(internalHeaderSize)
	if int(keyLen) != len("x") {
		t.Fatalf("expected key length byte right after header, got %d", keyLen)
	}
	keyBytes, _ := page.Bytes(internalHeaderSize+1, int(keyLen))
	if string(keyBytes) != "x" {
		t.Fatalf("expected key bytes after length, got %q", keyBytes)
	}
	firstChildOffset := internalHeaderSize + 1 + int(keyLen)
	child, _ := page.Uint64(firstChildOffset)
	if pager.Offset(child) != children[0] {
		t.Errorf("expected first child offset right after keys, got %d want %d", child, children[0])
	}
}
