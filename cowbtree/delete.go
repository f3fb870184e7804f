package cowbtree

import (
	"bytes"

	"github.com/btree-query-bench/pagedkv/kverr"
	"github.com/btree-query-bench/pagedkv/node"
	"github.com/btree-query-bench/pagedkv/pager"
)

// deleteResult is the outcome of deleting from a subtree: either the
// subtree's root moved to a new offset, or it fell below UnderflowSpace
// and must be merged or rebalanced by the caller.
type deleteResult struct {
	underflowed bool
	offset      pager.Offset // valid when !underflowed
	node        *node.Node   // valid when underflowed
}

// Delete removes key and returns its value. A key that is not present
// fails with KeyNotFound, so the boolean is true whenever err is nil.
func (t *Tree) Delete(key []byte) (uint64, bool, error) {
	fq := pager.NewFreeQueue()

	rootOffset, err := t.rootOffset()
	if err != nil {
		return 0, false, err
	}
	root, err := t.readNode(rootOffset)
	if err != nil {
		return 0, false, err
	}

	value, found, result, err := t.deleteCOW(fq, root, rootOffset, key)
	if err != nil {
		return 0, false, err
	}

	if result.underflowed {
		n := result.node
		if n.Kind == node.KindInternal && len(n.Keys) == 0 {
			// The root's only child becomes the new root: the tree shrinks
			// by one level.
			if err := t.pg.SetRootPage(n.Children[0]); err != nil {
				return 0, false, err
			}
			fq.Add(rootOffset)
			if err := t.pg.FreePages(fq); err != nil {
				return 0, false, err
			}
			return value, found, nil
		}

		fq.Add(rootOffset)
		newRootOffset, err := t.writeNode(n)
		if err != nil {
			return 0, false, err
		}
		if err := t.pg.SetRootPage(newRootOffset); err != nil {
			return 0, false, err
		}
	} else {
		fq.Add(rootOffset)
		if err := t.pg.SetRootPage(result.offset); err != nil {
			return 0, false, err
		}
	}

	if err := t.pg.FreePages(fq); err != nil {
		return 0, false, err
	}
	return value, found, nil
}

func (t *Tree) deleteCOW(fq *pager.FreeQueue, n *node.Node, nodeOffset pager.Offset, key []byte) (uint64, bool, deleteResult, error) {
	if n.Kind == node.KindLeaf {
		return t.deleteFromLeaf(fq, n, nodeOffset, key)
	}
	return t.deleteFromInternal(fq, n, nodeOffset, key)
}

func (t *Tree) deleteFromLeaf(fq *pager.FreeQueue, n *node.Node, nodeOffset pager.Offset, key []byte) (uint64, bool, deleteResult, error) {
	idx := lowerBoundPairs(n.Pairs, key)
	if idx >= len(n.Pairs) || !bytes.Equal(n.Pairs[idx].Key, key) {
		return 0, false, deleteResult{}, kverr.New(kverr.KeyNotFound, "cowbtree.Delete")
	}

	removed := n.Pairs[idx]
	pairs := append([]node.Pair(nil), n.Pairs[:idx]...)
	pairs = append(pairs, n.Pairs[idx+1:]...)

	removedSpace := len(removed.Key) + 1 + node.ValueSize
	newOccupied := n.Occupied - removedSpace

	newLeaf := &node.Node{Kind: node.KindLeaf, Pairs: pairs, Occupied: newOccupied}

	if newOccupied < UnderflowSpace {
		return removed.Value, true, deleteResult{underflowed: true, node: newLeaf}, nil
	}

	offset, err := t.writeNode(newLeaf)
	if err != nil {
		return 0, false, deleteResult{}, err
	}
	fq.Add(nodeOffset)
	return removed.Value, true, deleteResult{offset: offset}, nil
}

func (t *Tree) deleteFromInternal(fq *pager.FreeQueue, n *node.Node, nodeOffset pager.Offset, key []byte) (uint64, bool, deleteResult, error) {
	childIdx := lowerBoundKeys(n.Keys, key)
	if childIdx >= len(n.Children) {
		return 0, false, deleteResult{}, kverr.New(kverr.InternalNodeNoChild, "cowbtree.Delete")
	}

	childOffset := n.Children[childIdx]
	child, err := t.readNode(childOffset)
	if err != nil {
		return 0, false, deleteResult{}, err
	}

	value, found, childResult, err := t.deleteCOW(fq, child, childOffset, key)
	if err != nil {
		return 0, false, deleteResult{}, err
	}

	if !childResult.underflowed {
		children := append([]pager.Offset(nil), n.Children...)
		children[childIdx] = childResult.offset
		updated := node.NewInternal(n.IsRoot, n.Keys, children)
		offset, err := t.writeNode(updated)
		if err != nil {
			return 0, false, deleteResult{}, err
		}
		fq.Add(nodeOffset)
		return value, found, deleteResult{offset: offset}, nil
	}

	// The child underflowed: pick a sibling to merge with or split-redistribute
	// against. idx+1 if the underflowing child is the leftmost, else idx-1 —
	// ported unchanged from the original's rebalance rule.
	siblingIdx := childIdx - 1
	if childIdx == 0 {
		siblingIdx = 1
	}
	if siblingIdx >= len(n.Children) {
		return 0, false, deleteResult{}, kverr.New(kverr.UnexpectedError, "cowbtree.Delete: underflow with only one child")
	}

	siblingOffset := n.Children[siblingIdx]
	sibling, err := t.readNode(siblingOffset)
	if err != nil {
		return 0, false, deleteResult{}, err
	}

	child = childResult.node
	minIdx := childIdx
	if siblingIdx < minIdx {
		minIdx = siblingIdx
	}

	if child.Kind == node.KindInternal {
		res, err := t.rebalanceInternal(fq, n, nodeOffset, child, sibling, childOffset, siblingOffset, childIdx, siblingIdx, minIdx)
		return value, found, res, err
	}
	res, err := t.rebalanceLeaf(fq, n, nodeOffset, child, sibling, childOffset, siblingOffset, childIdx, siblingIdx, minIdx)
	return value, found, res, err
}

func (t *Tree) rebalanceInternal(fq *pager.FreeQueue, n *node.Node, nodeOffset pager.Offset, child, sibling *node.Node, childOffset, siblingOffset pager.Offset, childIdx, siblingIdx, minIdx int) (deleteResult, error) {
	childKeys := append([][]byte(nil), child.Keys...)
	childChildren := append([]pager.Offset(nil), child.Children...)
	siblingKeys := append([][]byte(nil), sibling.Keys...)
	siblingChildren := append([]pager.Offset(nil), sibling.Children...)

	if sibling.Occupied+child.Occupied-node.InternalHeaderSize < pager.PageSize {
		var mergedKeys [][]byte
		var mergedChildren []pager.Offset

		if siblingIdx < childIdx {
			siblingKeys = append(siblingKeys, n.Keys[minIdx])
			mergedKeys = append(siblingKeys, childKeys...)
			mergedChildren = append(siblingChildren, childChildren...)
		} else {
			childKeys = append(childKeys, n.Keys[minIdx])
			mergedKeys = append(childKeys, siblingKeys...)
			mergedChildren = append(childChildren, siblingChildren...)
		}

		newChildOffset, err := t.writeNode(node.NewInternal(false, mergedKeys, mergedChildren))
		if err != nil {
			return deleteResult{}, err
		}

		newChildren := append([]pager.Offset(nil), n.Children...)
		newKeys := append([][]byte(nil), n.Keys...)

		newChildren[childIdx] = newChildOffset
		newChildren = removeOffset(newChildren, siblingIdx)
		removedKey := newKeys[minIdx]
		newKeys = removeKey(newKeys, minIdx)

		fq.Add(childOffset)
		fq.Add(siblingOffset)

		newOccupied := n.Occupied - (len(removedKey) + 1 + node.PtrSize)
		newNode := &node.Node{Kind: node.KindInternal, Keys: newKeys, Children: newChildren, Occupied: newOccupied}

		if newOccupied < UnderflowSpace {
			return deleteResult{underflowed: true, node: newNode}, nil
		}

		offset, err := t.writeNode(newNode)
		if err != nil {
			return deleteResult{}, err
		}
		fq.Add(nodeOffset)
		return deleteResult{offset: offset}, nil
	}

	// Split-redistribute: merge both nodes' contents and cut at the median.
	var medianKey []byte
	if childIdx < siblingIdx {
		childKeys = append(childKeys, n.Keys[minIdx])
		childKeys = append(childKeys, siblingKeys...)
		childChildren = append(childChildren, siblingChildren...)

		medianIdx := findMedianKeyIdx(childKeys)
		if medianIdx == 0 {
			return deleteResult{}, kverr.New(kverr.ImpossibleSplit, "cowbtree.Delete")
		}
		siblingKeys = append([][]byte(nil), childKeys[medianIdx:]...)
		childKeys = append([][]byte(nil), childKeys[:medianIdx]...)
		medianKey = siblingKeys[0]
		siblingKeys = siblingKeys[1:]
		siblingChildren = append([]pager.Offset(nil), childChildren[medianIdx+1:]...)
		childChildren = append([]pager.Offset(nil), childChildren[:medianIdx+1]...)
	} else {
		siblingKeys = append(siblingKeys, n.Keys[minIdx])
		siblingKeys = append(siblingKeys, childKeys...)
		siblingChildren = append(siblingChildren, childChildren...)

		medianIdx := findMedianKeyIdx(siblingKeys)
		if medianIdx == 0 {
			return deleteResult{}, kverr.New(kverr.ImpossibleSplit, "cowbtree.Delete")
		}
		childKeys = append([][]byte(nil), siblingKeys[medianIdx:]...)
		siblingKeys = append([][]byte(nil), siblingKeys[:medianIdx]...)
		medianKey = childKeys[0]
		childKeys = childKeys[1:]
		childChildren = append([]pager.Offset(nil), siblingChildren[medianIdx+1:]...)
		siblingChildren = append([]pager.Offset(nil), siblingChildren[:medianIdx+1]...)
	}

	newChildOffset, err := t.writeNode(node.NewInternal(false, childKeys, childChildren))
	if err != nil {
		return deleteResult{}, err
	}
	newSiblingOffset, err := t.writeNode(node.NewInternal(false, siblingKeys, siblingChildren))
	if err != nil {
		return deleteResult{}, err
	}

	newChildren := append([]pager.Offset(nil), n.Children...)
	newKeys := append([][]byte(nil), n.Keys...)
	newChildren[siblingIdx] = newSiblingOffset
	newChildren[childIdx] = newChildOffset
	newKeys[minIdx] = medianKey

	fq.Add(childOffset)
	fq.Add(siblingOffset)

	offset, err := t.writeNode(node.NewInternal(n.IsRoot, newKeys, newChildren))
	if err != nil {
		return deleteResult{}, err
	}
	fq.Add(nodeOffset)
	return deleteResult{offset: offset}, nil
}

func (t *Tree) rebalanceLeaf(fq *pager.FreeQueue, n *node.Node, nodeOffset pager.Offset, child, sibling *node.Node, childOffset, siblingOffset pager.Offset, childIdx, siblingIdx, minIdx int) (deleteResult, error) {
	childPairs := append([]node.Pair(nil), child.Pairs...)
	siblingPairs := append([]node.Pair(nil), sibling.Pairs...)

	if sibling.Occupied+child.Occupied-node.LeafHeaderSize < pager.PageSize {
		var merged []node.Pair
		if siblingIdx < childIdx {
			merged = append(siblingPairs, childPairs...)
		} else {
			merged = append(childPairs, siblingPairs...)
		}

		newChildOffset, err := t.writeNode(&node.Node{Kind: node.KindLeaf, Pairs: merged})
		if err != nil {
			return deleteResult{}, err
		}

		newChildren := append([]pager.Offset(nil), n.Children...)
		newKeys := append([][]byte(nil), n.Keys...)
		newChildren[childIdx] = newChildOffset
		newChildren = removeOffset(newChildren, siblingIdx)
		removedKey := newKeys[minIdx]
		newKeys = removeKey(newKeys, minIdx)

		fq.Add(childOffset)
		fq.Add(siblingOffset)

		newOccupied := n.Occupied - (len(removedKey) + 1 + node.PtrSize)
		newNode := &node.Node{Kind: node.KindInternal, Keys: newKeys, Children: newChildren, Occupied: newOccupied}

		if newOccupied < UnderflowSpace {
			return deleteResult{underflowed: true, node: newNode}, nil
		}

		offset, err := t.writeNode(newNode)
		if err != nil {
			return deleteResult{}, err
		}
		fq.Add(nodeOffset)
		return deleteResult{offset: offset}, nil
	}

	var medianKey []byte
	var err error
	if childIdx < siblingIdx {
		childPairs = append(childPairs, siblingPairs...)
		medianKey, siblingPairs, err = splitPairs(childPairs)
		if err != nil {
			return deleteResult{}, err
		}
		childPairs = childPairs[:len(childPairs)-len(siblingPairs)]
	} else {
		siblingPairs = append(siblingPairs, childPairs...)
		medianKey, childPairs, err = splitPairs(siblingPairs)
		if err != nil {
			return deleteResult{}, err
		}
		siblingPairs = siblingPairs[:len(siblingPairs)-len(childPairs)]
	}

	newChildOffset, err := t.writeNode(&node.Node{Kind: node.KindLeaf, Pairs: childPairs})
	if err != nil {
		return deleteResult{}, err
	}
	newSiblingOffset, err := t.writeNode(&node.Node{Kind: node.KindLeaf, Pairs: siblingPairs})
	if err != nil {
		return deleteResult{}, err
	}

	newChildren := append([]pager.Offset(nil), n.Children...)
	newKeys := append([][]byte(nil), n.Keys...)
	newChildren[siblingIdx] = newSiblingOffset
	newChildren[childIdx] = newChildOffset
	newKeys[minIdx] = medianKey

	fq.Add(childOffset)
	fq.Add(siblingOffset)

	offset, err := t.writeNode(node.NewInternal(n.IsRoot, newKeys, newChildren))
	if err != nil {
		return deleteResult{}, err
	}
	fq.Add(nodeOffset)
	return deleteResult{offset: offset}, nil
}

func removeOffset(s []pager.Offset, idx int) []pager.Offset {
	return append(s[:idx], s[idx+1:]...)
}

func removeKey(s [][]byte, idx int) [][]byte {
	removed := append(s[:idx:idx], s[idx+1:]...)
	return removed
}
