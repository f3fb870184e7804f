// Package node implements the on-disk codec for B+tree nodes: the byte
// layout of leaf and internal pages, and the occupied-space accounting
// that drives split/underflow decisions. It has no notion of a tree
// shape beyond a single node; cowbtree owns recursion, splitting and
// rebalancing.
package node

import (
	"github.com/btree-query-bench/pagedkv/kverr"
	"github.com/btree-query-bench/pagedkv/pager"
)

// Kind tags which variant a Node is.
type Kind uint8

const (
	KindInternal Kind = 0
	KindLeaf     Kind = 1
)

// Pair is one (key, value) entry of a leaf.
type Pair struct {
	Key   []byte
	Value uint64
}

// Node is the in-memory form of a single page's worth of tree structure.
// A Node is immutable once handed to cowbtree in the sense that mutating
// it never rewrites the page it came from: cowbtree always serializes a
// changed Node to a freshly allocated offset.
type Node struct {
	IsRoot   bool
	Kind     Kind
	Occupied int // derived on Deserialize, set by NewLeaf/NewInternal/RecomputeOccupied; never itself serialized

	// Leaf fields. Next/Previous are reserved: always written as 0 and
	// never followed by cowbtree (see the design note on leaf sibling
	// pointers).
	Next, Previous pager.Offset
	Pairs          []Pair // sorted ascending by Key

	// Internal fields. len(Keys) == len(Children)-1.
	Keys     [][]byte
	Children []pager.Offset
}

// NewLeaf returns an empty leaf node.
func NewLeaf(isRoot bool) *Node {
	n := &Node{IsRoot: isRoot, Kind: KindLeaf}
	n.Occupied = leafHeaderSize + 1
	return n
}

// NewInternal returns an internal node over the given keys and children.
// len(keys) must equal len(children)-1.
func NewInternal(isRoot bool, keys [][]byte, children []pager.Offset) *Node {
	n := &Node{IsRoot: isRoot, Kind: KindInternal, Keys: keys, Children: children}
	n.Occupied = internalOccupiedSpace(keys, children)
	return n
}

func internalOccupiedSpace(keys [][]byte, children []pager.Offset) int {
	sum := internalHeaderSize
	for _, k := range keys {
		sum += 1 + len(k)
	}
	sum += len(children) * PtrSize
	return sum + 1
}

func leafOccupiedSpace(pairs []Pair) int {
	sum := leafHeaderSize
	for _, p := range pairs {
		sum += 1 + len(p.Key) + ValueSize
	}
	// This +1 margin is load-bearing: it is reproduced unchanged from the
	// original accounting and split/underflow thresholds are tuned against
	// it.
	return sum + 1
}

// RecomputeOccupied refreshes Occupied from the current Pairs/Keys+Children.
// cowbtree's insert path calls this on a leaf after adding a pair; the
// delete path instead adjusts Occupied by subtracting the removed entry's
// bytes.
func (n *Node) RecomputeOccupied() {
	if n.Kind == KindLeaf {
		n.Occupied = leafOccupiedSpace(n.Pairs)
	} else {
		n.Occupied = internalOccupiedSpace(n.Keys, n.Children)
	}
}

// Serialize writes n into page in place, per the byte layout in layout.go.
func (n *Node) Serialize(page *pager.Page) error {
	*page = pager.Page{}

	if n.IsRoot {
		page.PutByte(isRootOffset, 1)
	}
	page.PutByte(kindOffset, byte(n.Kind))
	// parentOffset is reserved: always written zero.

	switch n.Kind {
	case KindInternal:
		return n.serializeInternal(page)
	case KindLeaf:
		return n.serializeLeaf(page)
	default:
		return kverr.New(kverr.InvalidNodeKind, "node.Serialize")
	}
}

func (n *Node) serializeInternal(page *pager.Page) error {
	if err := page.PutUint64(internalChildCountOffset, uint64(len(n.Children))); err != nil {
		return err
	}

	offset := internalHeaderSize
	for _, key := range n.Keys {
		if len(key) > KeyMaxSize {
			return kverr.New(kverr.KeyOverflow, "node.Serialize")
		}
		if err := page.PutByte(offset, byte(len(key))); err != nil {
			return kverr.New(kverr.ImpossibleSplit, "node.Serialize")
		}
		offset++
		if err := page.PutBytes(offset, key); err != nil {
			return kverr.New(kverr.ImpossibleSplit, "node.Serialize")
		}
		offset += len(key)
	}

	for _, child := range n.Children {
		if offset+PtrSize >= pager.PageSize {
			return kverr.New(kverr.ImpossibleSplit, "node.Serialize")
		}
		if err := page.PutUint64(offset, uint64(child)); err != nil {
			return err
		}
		offset += PtrSize
	}

	return nil
}

func (n *Node) serializeLeaf(page *pager.Page) error {
	if err := page.PutUint64(leafNextOffset, uint64(n.Next)); err != nil {
		return err
	}
	if err := page.PutUint64(leafPrevOffset, uint64(n.Previous)); err != nil {
		return err
	}
	if err := page.PutUint64(leafKeyCountOffset, uint64(len(n.Pairs))); err != nil {
		return err
	}

	offset := leafHeaderSize
	for _, pair := range n.Pairs {
		if len(pair.Key) > KeyMaxSize {
			return kverr.New(kverr.KeyOverflow, "node.Serialize")
		}
		if offset+len(pair.Key)+1+ValueSize >= pager.PageSize {
			return kverr.New(kverr.ImpossibleSplit, "node.Serialize")
		}
		if err := page.PutByte(offset, byte(len(pair.Key))); err != nil {
			return err
		}
		offset++
		if err := page.PutBytes(offset, pair.Key); err != nil {
			return err
		}
		offset += len(pair.Key)
		if err := page.PutUint64(offset, pair.Value); err != nil {
			return err
		}
		offset += ValueSize
	}

	return nil
}

// Deserialize reads a Node out of page.
func Deserialize(page *pager.Page) (*Node, error) {
	isRootByte, err := page.Byte(isRootOffset)
	if err != nil {
		return nil, err
	}
	kindByte, err := page.Byte(kindOffset)
	if err != nil {
		return nil, err
	}

	n := &Node{IsRoot: isRootByte == 1}

	switch kindByte {
	case byte(KindInternal):
		n.Kind = KindInternal
		return n, n.deserializeInternal(page)
	case byte(KindLeaf):
		n.Kind = KindLeaf
		return n, n.deserializeLeaf(page)
	default:
		return nil, kverr.New(kverr.InvalidNodeKind, "node.Deserialize")
	}
}

func (n *Node) deserializeInternal(page *pager.Page) error {
	childCountU64, err := page.Uint64(internalChildCountOffset)
	if err != nil {
		return err
	}
	childCount := int(childCountU64)

	offset := internalHeaderSize
	keys := make([][]byte, 0, max(childCount-1, 0))
	for i := 1; i < childCount; i++ {
		keyLen, err := page.Byte(offset)
		if err != nil {
			return err
		}
		if keyLen == 0 {
			return kverr.New(kverr.KeyParseError, "node.Deserialize")
		}
		offset++
		key, err := page.Bytes(offset, int(keyLen))
		if err != nil {
			return err
		}
		offset += int(keyLen)
		keys = append(keys, key)
	}

	children := make([]pager.Offset, 0, childCount)
	for i := 0; i < childCount; i++ {
		childU64, err := page.Uint64(offset)
		if err != nil {
			return kverr.Wrap(kverr.UnexpectedError, "node.Deserialize: read child offset", err)
		}
		offset += PtrSize
		children = append(children, pager.Offset(childU64))
	}

	n.Keys = keys
	n.Children = children
	n.Occupied = offset + 1
	return nil
}

func (n *Node) deserializeLeaf(page *pager.Page) error {
	nextU64, err := page.Uint64(leafNextOffset)
	if err != nil {
		return err
	}
	prevU64, err := page.Uint64(leafPrevOffset)
	if err != nil {
		return err
	}
	countU64, err := page.Uint64(leafKeyCountOffset)
	if err != nil {
		return err
	}
	count := int(countU64)

	pairs := make([]Pair, 0, count)
	idx := leafHeaderSize
	for i := 0; i < count; i++ {
		keyLen, err := page.Byte(idx)
		if err != nil {
			return err
		}
		if keyLen == 0 {
			return kverr.New(kverr.KeyParseError, "node.Deserialize")
		}
		key, err := page.Bytes(idx+1, int(keyLen))
		if err != nil {
			return err
		}
		valueOffset := idx + 1 + int(keyLen)
		value, err := page.Uint64(valueOffset)
		if err != nil {
			return kverr.Wrap(kverr.UnexpectedError, "node.Deserialize: read value", err)
		}
		idx = valueOffset + ValueSize
		pairs = append(pairs, Pair{Key: key, Value: value})
	}

	n.Next = pager.Offset(nextU64)
	n.Previous = pager.Offset(prevU64)
	n.Pairs = pairs
	n.Occupied = leafOccupiedSpace(pairs)
	return nil
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
