package protocol

// BlockPos is a block position packed on the wire as x:26 | z:26 | y:12.
type BlockPos struct {
	X, Y, Z int32
}

// Pack returns the 64-bit wire form of p.
func (p BlockPos) Pack() uint64 {
	return (uint64(p.X)&0x3FFFFFF)<<38 | (uint64(p.Z)&0x3FFFFFF)<<12 | uint64(p.Y)&0xFFF
}

// UnpackBlockPos decodes the 64-bit wire form of a position.
func UnpackBlockPos(v uint64) BlockPos {
	x := int32(int64(v) >> 38)
	z := int32(int64(v<<26) >> 38)
	y := int32(int64(v<<52) >> 52)
	return BlockPos{X: x, Y: y, Z: z}
}

// BitSet is a growable bit set sent as a length-prefixed long array.
type BitSet []int64

// Set sets bit i.
func (b *BitSet) Set(i int) {
	for len(*b) <= i/64 {
		*b = append(*b, 0)
	}
	(*b)[i/64] |= 1 << (i % 64)
}

// Has reports whether bit i is set.
func (b BitSet) Has(i int) bool {
	if i/64 >= len(b) {
		return false
	}
	return b[i/64]&(1<<(i%64)) != 0
}

// FixedBitSet is a bit set of a known size, sent as ceil(n/8) bytes without a
// length prefix.
type FixedBitSet []byte

// NewFixedBitSet returns a FixedBitSet able to hold n bits.
func NewFixedBitSet(n int) FixedBitSet {
	return make(FixedBitSet, (n+7)/8)
}

// Set sets bit i.
func (b FixedBitSet) Set(i int) { b[i/8] |= 1 << (i % 8) }

// Has reports whether bit i is set.
func (b FixedBitSet) Has(i int) bool { return b[i/8]&(1<<(i%8)) != 0 }
