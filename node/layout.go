package node

// Byte layout of a serialized node, ported field-for-field from the
// original page_layout constants. Every multi-byte field is big-endian.
const (
	isRootOffset = 0
	isRootSize   = 1
	kindOffset   = 1
	kindSize     = 1
	parentOffset = 2
	parentSize   = 8

	headerSize = isRootSize + kindSize + parentSize // 10

	// Leaf layout
	leafNextOffset     = headerSize
	leafNextSize       = 8
	leafPrevOffset     = leafNextOffset + leafNextSize
	leafPrevSize       = 8
	leafKeyCountOffset = leafPrevOffset + leafPrevSize
	leafKeyCountSize   = 8
	leafHeaderSize     = leafKeyCountOffset + leafKeyCountSize // 34

	// Internal layout
	internalChildCountOffset = headerSize
	internalChildCountSize   = 8
	internalHeaderSize       = headerSize + internalChildCountSize // 18

	// KeyMaxSize is the largest key accepted: its length must fit in a
	// single byte on the wire.
	KeyMaxSize = 0xff

	// ValueSize is the width of a leaf value (a raw u64).
	ValueSize = 8

	// PtrSize is the width of a child/sibling offset field.
	PtrSize = 8

	// InternalHeaderSize and LeafHeaderSize are exported so cowbtree's
	// occupied-space arithmetic (merge/split-redistribute thresholds) can
	// match the codec's own formulas exactly.
	InternalHeaderSize = internalHeaderSize
	LeafHeaderSize     = leafHeaderSize
)
