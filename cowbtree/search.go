// Package cowbtree implements a copy-on-write B+tree on top of pager:
// every mutation writes new page versions and swaps the root pointer only
// once all of them have been written, so a crash mid-mutation never
// corrupts the previously committed tree. No fsync is issued, so this
// guarantee rests on write ordering alone.
package cowbtree

import (
	"bytes"
	"sort"

	"github.com/btree-query-bench/pagedkv/kverr"
	"github.com/btree-query-bench/pagedkv/node"
	"github.com/btree-query-bench/pagedkv/pager"
)

// UnderflowSpace is the minimum occupied-space a non-root node must hold;
// falling below it triggers merge-or-redistribute during delete.
const UnderflowSpace = pager.PageSize / 3

// lowerBoundKeys returns the index of the first key >= query, or
// len(keys) if none qualifies. This mirrors the original's
// keys.binary_search(&query).unwrap_or_else(|x| x): Rust's binary_search
// returns either the match index or the insertion point, and since keys
// never repeat those coincide, so a plain lower bound reproduces both
// the search-routing and the child-routing behavior uniformly.
func lowerBoundKeys(keys [][]byte, query []byte) int {
	return sort.Search(len(keys), func(i int) bool {
		return bytes.Compare(keys[i], query) >= 0
	})
}

func lowerBoundPairs(pairs []node.Pair, query []byte) int {
	return sort.Search(len(pairs), func(i int) bool {
		return bytes.Compare(pairs[i].Key, query) >= 0
	})
}

// Tree is the handle onto a pagedkv file.
type Tree struct {
	pg *pager.Pager
}

// Open opens (or creates) the file at path and ensures it has a root
// node: a freshly created file starts with a single empty leaf.
func Open(path string) (*Tree, error) {
	pg, err := pager.Open(path)
	if err != nil {
		return nil, err
	}

	t := &Tree{pg: pg}
	if pg.RootPage() == 0 {
		root := node.NewLeaf(true)
		page := new(pager.Page)
		if err := root.Serialize(page); err != nil {
			return nil, err
		}
		rootOffset, err := pg.WritePage(page)
		if err != nil {
			return nil, err
		}
		if err := pg.SetRootPage(rootOffset); err != nil {
			return nil, err
		}
	}

	return t, nil
}

// Close closes the underlying file.
func (t *Tree) Close() error { return t.pg.Close() }

// FileSize returns the size in bytes of the backing file.
func (t *Tree) FileSize() (int64, error) { return t.pg.FileSize() }

func (t *Tree) rootOffset() (pager.Offset, error) {
	o := t.pg.RootPage()
	if o == 0 {
		return 0, kverr.New(kverr.InvalidRootOffset, "cowbtree: root offset")
	}
	return o, nil
}

func (t *Tree) readNode(offset pager.Offset) (*node.Node, error) {
	page, err := t.pg.GetPage(offset)
	if err != nil {
		return nil, err
	}
	return node.Deserialize(page)
}

func (t *Tree) writeNode(n *node.Node) (pager.Offset, error) {
	page := new(pager.Page)
	if err := n.Serialize(page); err != nil {
		return 0, err
	}
	return t.pg.WritePage(page)
}

// Search returns the value stored for key, and whether it was found.
func (t *Tree) Search(key []byte) (uint64, bool, error) {
	rootOffset, err := t.rootOffset()
	if err != nil {
		return 0, false, err
	}
	root, err := t.readNode(rootOffset)
	if err != nil {
		return 0, false, err
	}
	return t.searchNode(root, key)
}

func (t *Tree) searchNode(n *node.Node, key []byte) (uint64, bool, error) {
	if n.Kind == node.KindInternal {
		idx := lowerBoundKeys(n.Keys, key)
		if idx >= len(n.Children) {
			return 0, false, kverr.New(kverr.InternalNodeNoChild, "cowbtree.Search")
		}
		child, err := t.readNode(n.Children[idx])
		if err != nil {
			return 0, false, err
		}
		return t.searchNode(child, key)
	}

	idx := lowerBoundPairs(n.Pairs, key)
	if idx >= len(n.Pairs) || !bytes.Equal(n.Pairs[idx].Key, key) {
		return 0, false, nil
	}
	return n.Pairs[idx].Value, true, nil
}

// Depth returns the number of levels in the tree, root inclusive.
func (t *Tree) Depth() (int, error) {
	rootOffset, err := t.rootOffset()
	if err != nil {
		return 0, err
	}
	return t.depthSub(rootOffset)
}

func (t *Tree) depthSub(offset pager.Offset) (int, error) {
	n, err := t.readNode(offset)
	if err != nil {
		return 0, err
	}
	if n.Kind != node.KindInternal {
		return 1, nil
	}
	best := 0
	for _, child := range n.Children {
		d, err := t.depthSub(child)
		if err != nil {
			return 0, err
		}
		if d > best {
			best = d
		}
	}
	return best + 1, nil
}

// NodeCount returns the total number of tree nodes (internal + leaf)
// reachable from the root.
func (t *Tree) NodeCount() (int, error) {
	rootOffset, err := t.rootOffset()
	if err != nil {
		return 0, err
	}
	return t.nodeCountSub(rootOffset)
}

func (t *Tree) nodeCountSub(offset pager.Offset) (int, error) {
	n, err := t.readNode(offset)
	if err != nil {
		return 0, err
	}
	if n.Kind != node.KindInternal {
		return 1, nil
	}
	sum := 0
	for _, child := range n.Children {
		c, err := t.nodeCountSub(child)
		if err != nil {
			return 0, err
		}
		sum += c
	}
	return sum + 1, nil
}
