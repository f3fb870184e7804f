package cowbtree

import "github.com/btree-query-bench/pagedkv/pager"

// InsertObject stores an arbitrary byte blob under key: the blob is
// written to its own page via the pager's object layer, and the page's
// offset becomes the value indexed by the tree. Blobs longer than
// PageSize minus the 8-byte length prefix are rejected by the pager with
// ErrBlobTooLarge (see the design note on overflow pages).
func (t *Tree) InsertObject(key []byte, object []byte) error {
	offset, err := t.pg.WriteObject(object)
	if err != nil {
		return err
	}
	return t.Insert(key, uint64(offset))
}

// SearchObject looks up key and, if present, reads back the blob stored
// at the offset it points to.
func (t *Tree) SearchObject(key []byte) ([]byte, bool, error) {
	value, found, err := t.Search(key)
	if err != nil || !found {
		return nil, found, err
	}
	blob, err := t.pg.GetObject(pager.Offset(value))
	if err != nil {
		return nil, false, err
	}
	return blob, true, nil
}

// DeleteObject removes key and reclaims the page holding its blob.
func (t *Tree) DeleteObject(key []byte) error {
	value, found, err := t.Delete(key)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	return t.pg.FreeObject(pager.Offset(value))
}
