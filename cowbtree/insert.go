package cowbtree

import (
	"bytes"

	"github.com/btree-query-bench/pagedkv/kverr"
	"github.com/btree-query-bench/pagedkv/node"
	"github.com/btree-query-bench/pagedkv/pager"
)

// insertResult is the outcome of inserting into a subtree: either the
// subtree's root moved to a new offset, or it grew and split in two,
// promoting a separator key to the caller.
type insertResult struct {
	split bool

	offset pager.Offset // valid when !split

	promotedKey    []byte      // valid when split
	first, second  pager.Offset // valid when split
}

// Insert adds key/value to the tree. Inserting a key that already exists
// is rejected with ErrKeyExists (duplicates are not supported — see the
// design note on the duplicate-key open question).
func (t *Tree) Insert(key []byte, value uint64) error {
	if len(key) > node.KeyMaxSize {
		return kverr.New(kverr.KeyOverflow, "cowbtree.Insert")
	}

	fq := pager.NewFreeQueue()

	rootOffset, err := t.rootOffset()
	if err != nil {
		return err
	}
	root, err := t.readNode(rootOffset)
	if err != nil {
		return err
	}

	result, err := t.insertCOW(fq, root, rootOffset, key, value)
	if err != nil {
		return err
	}

	if result.split {
		newRoot := node.NewInternal(true, [][]byte{result.promotedKey}, []pager.Offset{result.first, result.second})
		newRootOffset, err := t.writeNode(newRoot)
		if err != nil {
			return err
		}
		fq.Add(rootOffset)
		if err := t.pg.SetRootPage(newRootOffset); err != nil {
			return err
		}
	} else {
		fq.Add(rootOffset)
		if err := t.pg.SetRootPage(result.offset); err != nil {
			return err
		}
	}

	return t.pg.FreePages(fq)
}

func (t *Tree) insertCOW(fq *pager.FreeQueue, n *node.Node, nodeOffset pager.Offset, key []byte, value uint64) (insertResult, error) {
	if n.Kind == node.KindInternal {
		return t.insertInternal(fq, n, nodeOffset, key, value)
	}
	return t.insertLeaf(fq, n, nodeOffset, key, value)
}

func (t *Tree) insertInternal(fq *pager.FreeQueue, n *node.Node, nodeOffset pager.Offset, key []byte, value uint64) (insertResult, error) {
	idx := lowerBoundKeys(n.Keys, key)
	if idx >= len(n.Children) {
		return insertResult{}, kverr.New(kverr.InternalNodeNoChild, "cowbtree.Insert")
	}

	childOffset := n.Children[idx]
	child, err := t.readNode(childOffset)
	if err != nil {
		return insertResult{}, err
	}

	childResult, err := t.insertCOW(fq, child, childOffset, key, value)
	if err != nil {
		return insertResult{}, err
	}

	keys := append([][]byte(nil), n.Keys...)
	children := append([]pager.Offset(nil), n.Children...)

	if !childResult.split {
		children[idx] = childResult.offset
		updated := node.NewInternal(false, keys, children)
		offset, err := t.writeNode(updated)
		if err != nil {
			return insertResult{}, err
		}
		fq.Add(nodeOffset)
		return insertResult{offset: offset}, nil
	}

	// available space is measured against this node's occupied space
	// before the new key/child are folded in, exactly as the original
	// arithmetic does.
	availableSpace := pager.PageSize - n.Occupied
	requiredSpace := node.PtrSize + len(childResult.promotedKey) + 1 + 1

	children[idx] = childResult.first
	children = append(children[:idx+1], append([]pager.Offset{childResult.second}, children[idx+1:]...)...)
	keys = append(keys[:idx], append([][]byte{childResult.promotedKey}, keys[idx:]...)...)

	if availableSpace < requiredSpace {
		medianIdx := findMedianKeyIdx(keys)
		if medianIdx == 0 {
			return insertResult{}, kverr.New(kverr.ImpossibleSplit, "cowbtree.Insert")
		}

		siblingKeys := append([][]byte(nil), keys[medianIdx:]...)
		leftKeys := append([][]byte(nil), keys[:medianIdx]...)
		newPromotedKey := siblingKeys[0]
		siblingKeys = siblingKeys[1:]

		siblingChildren := append([]pager.Offset(nil), children[medianIdx+1:]...)
		leftChildren := append([]pager.Offset(nil), children[:medianIdx+1]...)

		firstOffset, err := t.writeNode(node.NewInternal(false, leftKeys, leftChildren))
		if err != nil {
			return insertResult{}, err
		}
		secondOffset, err := t.writeNode(node.NewInternal(false, siblingKeys, siblingChildren))
		if err != nil {
			return insertResult{}, err
		}
		fq.Add(nodeOffset)

		return insertResult{split: true, promotedKey: newPromotedKey, first: firstOffset, second: secondOffset}, nil
	}

	updated := node.NewInternal(false, keys, children)
	offset, err := t.writeNode(updated)
	if err != nil {
		return insertResult{}, err
	}
	fq.Add(nodeOffset)
	return insertResult{offset: offset}, nil
}

func (t *Tree) insertLeaf(fq *pager.FreeQueue, n *node.Node, nodeOffset pager.Offset, key []byte, value uint64) (insertResult, error) {
	idx := lowerBoundPairs(n.Pairs, key)
	if idx < len(n.Pairs) && bytes.Equal(n.Pairs[idx].Key, key) {
		return insertResult{}, kverr.New(kverr.KeyExists, "cowbtree.Insert")
	}

	availableSpace := pager.PageSize - n.Occupied
	requiredSpace := 1 + len(key) + node.ValueSize

	pairs := append([]node.Pair(nil), n.Pairs...)

	if availableSpace < requiredSpace {
		promotedKey, siblingPairs, err := splitPairs(pairs)
		if err != nil {
			return insertResult{}, err
		}
		leftPairs := append([]node.Pair(nil), pairs[:len(pairs)-len(siblingPairs)]...)

		if bytes.Compare(key, promotedKey) <= 0 {
			i := lowerBoundPairs(leftPairs, key)
			leftPairs = insertPair(leftPairs, i, node.Pair{Key: key, Value: value})
		} else {
			i := lowerBoundPairs(siblingPairs, key)
			siblingPairs = insertPair(siblingPairs, i, node.Pair{Key: key, Value: value})
		}

		newNodeOffset, err := t.writeNode(&node.Node{Kind: node.KindLeaf, Pairs: leftPairs})
		if err != nil {
			return insertResult{}, err
		}
		fq.Add(nodeOffset)

		siblingOffset, err := t.writeNode(&node.Node{Kind: node.KindLeaf, Pairs: siblingPairs})
		if err != nil {
			return insertResult{}, err
		}

		return insertResult{split: true, promotedKey: promotedKey, first: newNodeOffset, second: siblingOffset}, nil
	}

	pairs = insertPair(pairs, idx, node.Pair{Key: key, Value: value})
	updated := &node.Node{Kind: node.KindLeaf, Pairs: pairs}
	updated.RecomputeOccupied()
	offset, err := t.writeNode(updated)
	if err != nil {
		return insertResult{}, err
	}
	fq.Add(nodeOffset)

	return insertResult{offset: offset}, nil
}

func insertPair(pairs []node.Pair, idx int, p node.Pair) []node.Pair {
	pairs = append(pairs, node.Pair{})
	copy(pairs[idx+1:], pairs[idx:])
	pairs[idx] = p
	return pairs
}
