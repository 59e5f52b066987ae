package packet

import (
	"github.com/qexed/qexed/server/protocol"
)

// Heightmap types.
const (
	HeightmapWorldSurface   = 1
	HeightmapMotionBlocking = 4
)

// Heightmap is one heightmap of a chunk column.
type Heightmap struct {
	Type int32
	Data []int64
}

func (h *Heightmap) Marshal(io protocol.IO) {
	io.Varint32(&h.Type)
	io.Longs(&h.Data)
}

// BlockEntity is a block entity inside a chunk column. XZ packs the section
// relative x and z as x<<4 | z.
type BlockEntity struct {
	XZ   uint8
	Y    int16
	Type int32
	Data map[string]any
}

func (b *BlockEntity) Marshal(io protocol.IO) {
	io.Uint8(&b.XZ)
	io.Int16(&b.Y)
	io.Varint32(&b.Type)
	if io.Reading() {
		io.NBT(&b.Data)
		return
	}
	io.NBT(b.Data)
}

// LevelChunkWithLight sends a full chunk column with its light data. Data
// holds the encoded sections.
type LevelChunkWithLight struct {
	ChunkX, ChunkZ      int32
	Heightmaps          []Heightmap
	Data                []byte
	BlockEntities       []BlockEntity
	SkyLightMask        protocol.BitSet
	BlockLightMask      protocol.BitSet
	EmptySkyLightMask   protocol.BitSet
	EmptyBlockLightMask protocol.BitSet
	SkyLight            [][]byte
	BlockLight          [][]byte
}

func (*LevelChunkWithLight) ID() int32 { return IDLevelChunkWithLight }

func (pk *LevelChunkWithLight) Marshal(io protocol.IO) {
	io.Int32(&pk.ChunkX)
	io.Int32(&pk.ChunkZ)
	protocol.SliceOf(io, &pk.Heightmaps)
	io.ByteSlice(&pk.Data)
	protocol.SliceOf(io, &pk.BlockEntities)
	io.BitSet(&pk.SkyLightMask)
	io.BitSet(&pk.BlockLightMask)
	io.BitSet(&pk.EmptySkyLightMask)
	io.BitSet(&pk.EmptyBlockLightMask)
	protocol.Slice(io, &pk.SkyLight, io.ByteSlice)
	protocol.Slice(io, &pk.BlockLight, io.ByteSlice)
}
