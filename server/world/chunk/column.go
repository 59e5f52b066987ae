package chunk

import (
	"fmt"

	"github.com/qexed/qexed/server/protocol"
	"github.com/qexed/qexed/server/protocol/packet"
)

const (
	// SectionVolume is the number of blocks in a section.
	SectionVolume = 16 * 16 * 16
	// BiomeVolume is the number of 4x4x4 biome cells in a section.
	BiomeVolume = 4 * 4 * 4
	// Sections is the number of sections in an overworld column.
	Sections = 24
	// MinY is the lowest block y of an overworld column.
	MinY = -64
	// MaxY is one past the highest block y of an overworld column.
	MaxY = MinY + Sections*16

	lightSections = Sections + 2
	lightLen      = 2048
)

// Section is a 16x16x16 part of a column.
type Section struct {
	blockCount int16
	Blocks     *Container
	Biomes     *Container
}

// NewSection returns a section filled with air in the given biome.
func NewSection(biome int32) *Section {
	return &Section{Blocks: NewBlockContainer(Air), Biomes: NewBiomeContainer(biome)}
}

// BlockCount returns the number of non-air blocks.
func (s *Section) BlockCount() int { return int(s.blockCount) }

func (s *Section) recount() {
	s.blockCount = 0
	for i := 0; i < SectionVolume; i++ {
		if !IsAir(s.Blocks.Get(i)) {
			s.blockCount++
		}
	}
}

func (s *Section) marshal(io protocol.IO) {
	io.Int16(&s.blockCount)
	s.Blocks.Marshal(io)
	s.Biomes.Marshal(io)
}

func blockIndex(x, y, z int) int { return y<<8 | z<<4 | x }
func biomeIndex(x, y, z int) int { return (y>>2)<<4 | (z>>2)<<2 | x>>2 }

// Column is a 16 block wide chunk column at X, Z.
type Column struct {
	X, Z     int32
	Sections [Sections]*Section
}

// NewColumn returns an empty column in the given biome.
func NewColumn(x, z, biome int32) *Column {
	c := &Column{X: x, Z: z}
	for i := range c.Sections {
		c.Sections[i] = NewSection(biome)
	}
	return c
}

func (c *Column) section(y int) (*Section, error) {
	if y < MinY || y >= MaxY {
		return nil, fmt.Errorf("chunk: y %d outside [%d, %d)", y, MinY, MaxY)
	}
	return c.Sections[(y-MinY)>>4], nil
}

// Block returns the block state at the column relative x, z and world y.
func (c *Column) Block(x, y, z int) int32 {
	s, err := c.section(y)
	if err != nil {
		return Air
	}
	return s.Blocks.Get(blockIndex(x&15, (y-MinY)&15, z&15))
}

// SetBlock places a block state at the column relative x, z and world y.
func (c *Column) SetBlock(x, y, z int, state int32) error {
	s, err := c.section(y)
	if err != nil {
		return err
	}
	i := blockIndex(x&15, (y-MinY)&15, z&15)
	was := s.Blocks.Get(i)
	if was == state {
		return nil
	}
	s.Blocks.Set(i, state)
	switch {
	case IsAir(was) && !IsAir(state):
		s.blockCount++
	case !IsAir(was) && IsAir(state):
		s.blockCount--
	}
	return nil
}

// Biome returns the biome of the cell holding the given block.
func (c *Column) Biome(x, y, z int) int32 {
	s, err := c.section(y)
	if err != nil {
		return 0
	}
	return s.Biomes.Get(biomeIndex(x&15, (y-MinY)&15, z&15))
}

// Fill sets every block from y0 to y1 inclusive to state.
func (c *Column) Fill(y0, y1 int, state int32) error {
	for y := y0; y <= y1; y++ {
		for z := 0; z < 16; z++ {
			for x := 0; x < 16; x++ {
				if err := c.SetBlock(x, y, z, state); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// heightmap returns, per x and z, one above the highest non-air block
// relative to MinY, packed 9 bits per entry.
func (c *Column) heightmap() []int64 {
	s := newBitStorage(9, 256)
	for z := 0; z < 16; z++ {
		for x := 0; x < 16; x++ {
			for y := MaxY - 1; y >= MinY; y-- {
				if !IsAir(c.Block(x, y, z)) {
					s.set(z<<4|x, y-MinY+1)
					break
				}
			}
		}
	}
	return s.longs()
}

// Data returns the network form of the column's sections.
func (c *Column) Data() []byte {
	w := protocol.NewWriter()
	for _, s := range c.Sections {
		s.marshal(w)
	}
	return w.Data()
}

// ReadData replaces the column's sections with their network form.
func (c *Column) ReadData(b []byte) error {
	r := protocol.NewReader(b)
	for i := range c.Sections {
		s := NewSection(0)
		s.marshal(r)
		c.Sections[i] = s
	}
	return r.Finish()
}

// Packet returns the column as a chunk packet. Sky light is full everywhere
// and there is no block light.
func (c *Column) Packet() *packet.LevelChunkWithLight {
	height := c.heightmap()
	pk := &packet.LevelChunkWithLight{
		ChunkX: c.X,
		ChunkZ: c.Z,
		Heightmaps: []packet.Heightmap{
			{Type: packet.HeightmapWorldSurface, Data: height},
			{Type: packet.HeightmapMotionBlocking, Data: height},
		},
		Data:          c.Data(),
		BlockEntities: []packet.BlockEntity{},
	}
	full := make([]byte, lightLen)
	for i := range full {
		full[i] = 0xff
	}
	for i := 0; i < lightSections; i++ {
		pk.SkyLightMask.Set(i)
		pk.EmptyBlockLightMask.Set(i)
		pk.SkyLight = append(pk.SkyLight, full)
	}
	return pk
}
