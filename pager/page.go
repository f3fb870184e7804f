package pager

import "github.com/btree-query-bench/pagedkv/kverr"

// PageSize is the fixed size of every page in the file, including the
// config page. It is a compile-time constant: changing it changes the file
// format.
const PageSize = 8192

// Offset addresses a page: a byte offset into the file, always a multiple
// of PageSize. Offset 0 is reserved for the config page.
type Offset uint64

// Page is a fixed-size byte buffer, the unit of I/O. It carries no
// semantic interpretation of its own — node.Node and Config are the only
// things that know what the bytes mean.
type Page [PageSize]byte

// Uint64 reads a big-endian 8-byte integer at off.
func (p *Page) Uint64(off int) (uint64, error) {
	if off < 0 || off+8 > PageSize {
		return 0, kverr.New(kverr.OutOfPage, "page.Uint64")
	}
	b := p[off : off+8]
	return uint64(b[0])<<56 | uint64(b[1])<<48 | uint64(b[2])<<40 | uint64(b[3])<<32 |
		uint64(b[4])<<24 | uint64(b[5])<<16 | uint64(b[6])<<8 | uint64(b[7]), nil
}

// PutUint64 writes v as a big-endian 8-byte integer at off.
func (p *Page) PutUint64(off int, v uint64) error {
	if off < 0 || off+8 > PageSize {
		return kverr.New(kverr.OutOfPage, "page.PutUint64")
	}
	b := p[off : off+8]
	b[0] = byte(v >> 56)
	b[1] = byte(v >> 48)
	b[2] = byte(v >> 40)
	b[3] = byte(v >> 32)
	b[4] = byte(v >> 24)
	b[5] = byte(v >> 16)
	b[6] = byte(v >> 8)
	b[7] = byte(v)
	return nil
}

// Byte reads a single byte at off.
func (p *Page) Byte(off int) (byte, error) {
	if off < 0 || off >= PageSize {
		return 0, kverr.New(kverr.OutOfPage, "page.Byte")
	}
	return p[off], nil
}

// PutByte writes a single byte at off.
func (p *Page) PutByte(off int, v byte) error {
	if off < 0 || off >= PageSize {
		return kverr.New(kverr.OutOfPage, "page.PutByte")
	}
	p[off] = v
	return nil
}

// Bytes returns a copy of n bytes starting at off.
func (p *Page) Bytes(off, n int) ([]byte, error) {
	if off < 0 || n < 0 || off+n > PageSize {
		return nil, kverr.New(kverr.OutOfPage, "page.Bytes")
	}
	out := make([]byte, n)
	copy(out, p[off:off+n])
	return out, nil
}

// PutBytes writes b starting at off.
func (p *Page) PutBytes(off int, b []byte) error {
	if off < 0 || off+len(b) > PageSize {
		return kverr.New(kverr.OutOfPage, "page.PutBytes")
	}
	copy(p[off:off+len(b)], b)
	return nil
}
