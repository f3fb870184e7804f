// Package pager owns the on-disk file: fixed-size page I/O, page
// allocation, the persistent free-list, the config page, and the object
// blob convenience layer. It has no notion of a B+tree; cowbtree is its
// only caller.
package pager

import (
	"fmt"
	"os"

	"github.com/btree-query-bench/pagedkv/kverr"
)

// PtrSize is the on-disk width of an Offset (and of a value / length
// field): 8 bytes, big-endian, matching every other multi-byte integer in
// the format.
const PtrSize = 8

// Pager manages a single file of fixed-size pages.
type Pager struct {
	file   *os.File
	cfg    Config
	cursor Offset // bump allocator, next never-used offset
}

// Open opens (or creates) the file at path. A freshly created (empty)
// file gets a zeroed config page written immediately, so offset 0 is
// always valid to read once Open returns.
func Open(path string) (*Pager, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, kverr.Wrap(kverr.FileSystemError, "pager.Open", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, kverr.Wrap(kverr.FileSystemError, "pager.Open", err)
	}

	p := &Pager{file: f}
	if info.Size() == 0 {
		p.cfg = Config{}
		if err := p.writeConfig(); err != nil {
			f.Close()
			return nil, err
		}
	} else {
		pg, err := p.readPageFromDisk(0)
		if err != nil {
			f.Close()
			return nil, err
		}
		cfg, err := parseConfig(pg)
		if err != nil {
			f.Close()
			return nil, err
		}
		p.cfg = cfg
	}

	info, err = f.Stat()
	if err != nil {
		f.Close()
		return nil, kverr.Wrap(kverr.FileSystemError, "pager.Open", err)
	}
	p.cursor = Offset(info.Size())

	return p, nil
}

// Close closes the underlying file. It does not fsync: durability beyond
// the structural root-swap ordering is out of scope (see §9 of the spec).
func (p *Pager) Close() error {
	if err := p.file.Close(); err != nil {
		return kverr.Wrap(kverr.FileSystemError, "pager.Close", err)
	}
	return nil
}

// FileSize returns the current size of the backing file in bytes.
func (p *Pager) FileSize() (int64, error) {
	info, err := p.file.Stat()
	if err != nil {
		return 0, kverr.Wrap(kverr.FileSystemError, "pager.FileSize", err)
	}
	return info.Size(), nil
}

// RootPage returns the current root offset, or 0 if unset.
func (p *Pager) RootPage() Offset { return p.cfg.RootPage }

// SetRootPage swaps the tree's root pointer in the config page. This is
// the commit point for every mutation: once this write lands, the new
// version of the tree is live.
func (p *Pager) SetRootPage(o Offset) error {
	p.cfg.RootPage = o
	return p.writeConfig()
}

func (p *Pager) writeConfig() error {
	return p.writePageToDisk(0, p.cfg.toPage())
}

// GetPage reads the page at offset.
func (p *Pager) GetPage(offset Offset) (*Page, error) {
	return p.readPageFromDisk(offset)
}

// WritePage allocates a fresh offset and writes page there, returning the
// new offset. Used for every COW rewrite of a tree node.
func (p *Pager) WritePage(page *Page) (Offset, error) {
	offset, err := p.AllocPage()
	if err != nil {
		return 0, err
	}
	if err := p.writePageToDisk(offset, page); err != nil {
		return 0, err
	}
	return offset, nil
}

// WritePageAt writes page at an already-allocated offset. Used only for
// the config page and free-list surgery, which are mutated in place.
func (p *Pager) WritePageAt(offset Offset, page *Page) error {
	return p.writePageToDisk(offset, page)
}

// AllocPage reserves a page offset: popped from the free-list head if one
// is available, otherwise bump-allocated at end of file. The returned
// page's prior contents are not zeroed; callers overwrite it fully before
// it is considered committed.
func (p *Pager) AllocPage() (Offset, error) {
	if p.cfg.FirstFreePage != 0 {
		ffp := p.cfg.FirstFreePage
		next, err := p.readNextPointer(ffp)
		if err != nil {
			return 0, err
		}
		p.cfg.FirstFreePage = next
		if err := p.writeConfig(); err != nil {
			return 0, err
		}
		return ffp, nil
	}

	offset := p.cursor
	p.cursor += PageSize
	return offset, nil
}

// FreePage inserts offset into the free-list, keeping it strictly
// ascending by offset.
func (p *Pager) FreePage(offset Offset) error {
	if p.cfg.FirstFreePage == 0 {
		if err := p.writePageToDisk(offset, new(Page)); err != nil {
			return err
		}
		p.cfg.FirstFreePage = offset
		return p.writeConfig()
	}

	if offset < p.cfg.FirstFreePage {
		freed := new(Page)
		freed.PutUint64(0, uint64(p.cfg.FirstFreePage))
		if err := p.writePageToDisk(offset, freed); err != nil {
			return err
		}
		p.cfg.FirstFreePage = offset
		return p.writeConfig()
	}

	current := p.cfg.FirstFreePage
	for {
		next, err := p.readNextPointer(current)
		if err != nil {
			return err
		}
		if next == 0 {
			if err := p.writeNextPointer(current, offset); err != nil {
				return err
			}
			return p.writePageToDisk(offset, new(Page))
		}
		if next > offset {
			freed := new(Page)
			freed.PutUint64(0, uint64(next))
			if err := p.writePageToDisk(offset, freed); err != nil {
				return err
			}
			return p.writeNextPointer(current, offset)
		}
		current = next
	}
}

// FreePages applies FreePage to every offset drained from q, in ascending
// order.
func (p *Pager) FreePages(q *FreeQueue) error {
	for _, o := range q.Drain() {
		if err := p.FreePage(o); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pager) readNextPointer(o Offset) (Offset, error) {
	pg, err := p.readPageFromDisk(o)
	if err != nil {
		return 0, err
	}
	v, err := pg.Uint64(0)
	if err != nil {
		return 0, err
	}
	return Offset(v), nil
}

func (p *Pager) writeNextPointer(o Offset, next Offset) error {
	pg, err := p.readPageFromDisk(o)
	if err != nil {
		return err
	}
	if err := pg.PutUint64(0, uint64(next)); err != nil {
		return err
	}
	return p.writePageToDisk(o, pg)
}

// ─── object blob convenience layer ─────────────────────────────────────────

// WriteObject writes len(blob) ‖ blob into a freshly allocated page and
// returns its offset. Blobs over PageSize-PtrSize are rejected: there are
// no overflow pages in this format.
func (p *Pager) WriteObject(blob []byte) (Offset, error) {
	if len(blob) > PageSize-PtrSize {
		return 0, kverr.New(kverr.BlobTooLarge, "pager.WriteObject")
	}
	pg := new(Page)
	pg.PutUint64(0, uint64(len(blob)))
	pg.PutBytes(PtrSize, blob)
	return p.WritePage(pg)
}

// GetObject reads the blob written at offset.
func (p *Pager) GetObject(offset Offset) ([]byte, error) {
	pg, err := p.readPageFromDisk(offset)
	if err != nil {
		return nil, err
	}
	length, err := pg.Uint64(0)
	if err != nil {
		return nil, err
	}
	return pg.Bytes(PtrSize, int(length))
}

// FreeObject reclaims the page holding a blob.
func (p *Pager) FreeObject(offset Offset) error {
	return p.FreePage(offset)
}

// ─── raw file I/O ───────────────────────────────────────────────────────────

func (p *Pager) readPageFromDisk(offset Offset) (*Page, error) {
	pg := new(Page)
	n, err := p.file.ReadAt(pg[:], int64(offset))
	if err != nil && n != PageSize {
		return nil, kverr.Wrap(kverr.FileSystemError, fmt.Sprintf("pager: read page %d", offset), err)
	}
	return pg, nil
}

func (p *Pager) writePageToDisk(offset Offset, pg *Page) error {
	if _, err := p.file.WriteAt(pg[:], int64(offset)); err != nil {
		return kverr.Wrap(kverr.FileSystemError, fmt.Sprintf("pager: write page %d", offset), err)
	}
	return nil
}
