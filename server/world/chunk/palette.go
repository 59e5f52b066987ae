package chunk

import (
	"fmt"
	"math/bits"

	"github.com/qexed/qexed/server/protocol"
)

// containerKind describes the bit widths used by one kind of paletted
// container.
type containerKind struct {
	volume     int
	minBits    int
	maxBits    int
	directBits int
}

var (
	blockKind = containerKind{volume: SectionVolume, minBits: 4, maxBits: 8, directBits: 15}
	biomeKind = containerKind{volume: BiomeVolume, minBits: 1, maxBits: 3, directBits: 7}
)

// bitsFor returns the storage width for a palette of n entries.
func (k containerKind) bitsFor(n int) int {
	if n <= 1 {
		return 0
	}
	b := bits.Len(uint(n - 1))
	switch {
	case b < k.minBits:
		return k.minBits
	case b <= k.maxBits:
		return b
	}
	return k.directBits
}

// Container is a paletted container of block states or biomes. It is
// single-valued while every entry is the same, indirect while the palette is
// small enough, and direct (global IDs) beyond that.
type Container struct {
	kind    containerKind
	palette []int32
	data    *bitStorage
}

// NewBlockContainer returns a single-valued block state container.
func NewBlockContainer(state int32) *Container {
	return newContainer(blockKind, state)
}

// NewBiomeContainer returns a single-valued biome container.
func NewBiomeContainer(biome int32) *Container {
	return newContainer(biomeKind, biome)
}

func newContainer(kind containerKind, v int32) *Container {
	return &Container{kind: kind, palette: []int32{v}, data: newBitStorage(0, kind.volume)}
}

// Bits returns the width of the stored indices. 0 means single-valued.
func (c *Container) Bits() int { return c.data.bits }

func (c *Container) direct() bool { return c.data.bits == c.kind.directBits }

// Get returns the value at index i.
func (c *Container) Get(i int) int32 {
	if c.direct() {
		return int32(c.data.get(i))
	}
	return c.palette[c.data.get(i)]
}

// Set stores v at index i, growing the palette when v is new.
func (c *Container) Set(i int, v int32) {
	if c.direct() {
		c.data.set(i, int(v))
		return
	}
	idx := c.index(v)
	if idx < 0 {
		c.grow(v)
		if c.direct() {
			c.data.set(i, int(v))
			return
		}
		idx = len(c.palette) - 1
	}
	c.data.set(i, idx)
}

func (c *Container) index(v int32) int {
	for i, p := range c.palette {
		if p == v {
			return i
		}
	}
	return -1
}

// grow adds v to the palette and re-packs the data if the width changes.
func (c *Container) grow(v int32) {
	palette := append(c.palette, v)
	width := c.kind.bitsFor(len(palette))
	if width == c.data.bits {
		c.palette = palette
		return
	}
	old := c
	next := &Container{kind: c.kind, data: newBitStorage(width, c.kind.volume)}
	if width != c.kind.directBits {
		next.palette = palette
	}
	for i := 0; i < c.kind.volume; i++ {
		value := old.Get(i)
		if next.direct() {
			next.data.set(i, int(value))
		} else {
			next.data.set(i, next.index(value))
		}
	}
	*c = *next
}

// Values returns the distinct values in the container. For a direct container
// the values are collected from the data.
func (c *Container) Values() []int32 {
	if !c.direct() {
		return append([]int32(nil), c.palette...)
	}
	seen := map[int32]struct{}{}
	var out []int32
	for i := 0; i < c.kind.volume; i++ {
		v := c.Get(i)
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

// Marshal handles the network form: bits per entry, the palette and the packed
// data. Since 1.21.5 the data carries no length prefix.
func (c *Container) Marshal(io protocol.IO) {
	width := uint8(c.data.bits)
	io.Uint8(&width)
	if io.Reading() {
		b := int(width)
		switch {
		case b == 0:
		case b < c.kind.minBits:
			b = c.kind.minBits
		case b > c.kind.maxBits:
			b = c.kind.directBits
		}
		c.data = newBitStorage(b, c.kind.volume)
	}
	switch {
	case c.data.bits == 0:
		if io.Reading() {
			c.palette = make([]int32, 1)
		}
		io.Varint32(&c.palette[0])
	case c.direct():
		c.palette = nil
	default:
		protocol.Slice(io, &c.palette, io.Varint32)
	}
	for i := range c.data.data {
		v := int64(c.data.data[i])
		io.Int64(&v)
		c.data.data[i] = uint64(v)
	}
}

// palettedForm returns the palette and packed data as stored in Anvil files:
// the data width is derived from the palette size and data is omitted for a
// single entry.
func (c *Container) palettedForm() ([]int32, []int64) {
	palette := c.Values()
	if len(palette) == 1 {
		return palette, nil
	}
	width := max(bits.Len(uint(len(palette)-1)), c.kind.minBits)
	s := newBitStorage(width, c.kind.volume)
	index := make(map[int32]int, len(palette))
	for i, v := range palette {
		index[v] = i
	}
	for i := 0; i < c.kind.volume; i++ {
		s.set(i, index[c.Get(i)])
	}
	return palette, s.longs()
}

// loadPaletted builds a container from the Anvil form.
func loadPaletted(kind containerKind, palette []int32, data []int64) (*Container, error) {
	switch len(palette) {
	case 0:
		return nil, fmt.Errorf("chunk: empty palette")
	case 1:
		return newContainer(kind, palette[0]), nil
	}
	width := max(bits.Len(uint(len(palette)-1)), kind.minBits)
	stored, err := loadBitStorage(width, kind.volume, data)
	if err != nil {
		return nil, err
	}
	c := newContainer(kind, palette[0])
	for i := 0; i < kind.volume; i++ {
		idx := stored.get(i)
		if idx >= len(palette) {
			return nil, fmt.Errorf("chunk: palette index %d out of range %d", idx, len(palette))
		}
		c.Set(i, palette[idx])
	}
	return c, nil
}
