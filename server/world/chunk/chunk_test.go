package chunk

import (
	"testing"

	"github.com/qexed/qexed/server/protocol"
	"github.com/qexed/qexed/server/protocol/packet"
	"github.com/qexed/qexed/server/registry"
)

func TestBitStorageNoStraddle(t *testing.T) {
	s := newBitStorage(5, 4096)
	if len(s.data) != 342 {
		t.Fatalf("expected 342 longs for 4096 5-bit values, got %d", len(s.data))
	}
	for i := 0; i < 4096; i++ {
		s.set(i, i%32)
	}
	for i := 0; i < 4096; i++ {
		if got := s.get(i); got != i%32 {
			t.Fatalf("index %d: expected %d, got %d", i, i%32, got)
		}
	}
	// 12 values per long leave the top 4 bits unused.
	if s.data[0]>>60 != 0 {
		t.Fatalf("value straddled into padding bits: %x", s.data[0])
	}
}

func TestContainerGrowth(t *testing.T) {
	c := NewBlockContainer(Air)
	if c.Bits() != 0 {
		t.Fatalf("expected single-valued container, got %d bits", c.Bits())
	}
	c.Set(0, Stone)
	if c.Bits() != 4 {
		t.Fatalf("expected 4 bits after second value, got %d", c.Bits())
	}
	for i := int32(0); i < 300; i++ {
		c.Set(int(i)+1, i)
	}
	if c.Bits() != 15 {
		t.Fatalf("expected direct palette after 300 values, got %d bits", c.Bits())
	}
	if got := c.Get(0); got != Stone {
		t.Fatalf("value lost while growing: got %d", got)
	}
	for i := int32(0); i < 300; i++ {
		if got := c.Get(int(i) + 1); got != i {
			t.Fatalf("index %d: expected %d, got %d", i+1, i, got)
		}
	}

	b := NewBiomeContainer(0)
	for i := int32(0); i < 8; i++ {
		b.Set(int(i), i)
	}
	if b.Bits() != 3 {
		t.Fatalf("expected 3 bit biome palette, got %d", b.Bits())
	}
	b.Set(8, 8)
	if b.Bits() != 7 {
		t.Fatalf("expected direct biome palette, got %d", b.Bits())
	}
}

func TestContainerNetworkRoundTrip(t *testing.T) {
	for _, n := range []int{1, 2, 17, 400} {
		c := NewBlockContainer(Air)
		for i := 0; i < n; i++ {
			c.Set(i*7%SectionVolume, int32(i))
		}
		w := protocol.NewWriter()
		c.Marshal(w)

		got := NewBlockContainer(Air)
		r := protocol.NewReader(w.Data())
		got.Marshal(r)
		if err := r.Finish(); err != nil {
			t.Fatalf("%d values: decode: %v", n, err)
		}
		for i := 0; i < SectionVolume; i++ {
			if got.Get(i) != c.Get(i) {
				t.Fatalf("%d values: index %d differs: %d != %d", n, i, got.Get(i), c.Get(i))
			}
		}
	}
}

func TestSingleValuedEncoding(t *testing.T) {
	w := protocol.NewWriter()
	NewBlockContainer(Stone).Marshal(w)
	if got := w.Data(); len(got) != 2 || got[0] != 0 || got[1] != 1 {
		t.Fatalf("unexpected single-valued encoding % x", got)
	}
}

func TestColumnBlocks(t *testing.T) {
	plains := registry.MustLookup(registry.Biome, "minecraft:plains")
	c := NewColumn(1, -2, plains)
	if err := c.Fill(MinY, MinY+3, Stone); err != nil {
		t.Fatalf("fill: %v", err)
	}
	if err := c.SetBlock(3, MinY+4, 5, GrassBlock); err != nil {
		t.Fatalf("set block: %v", err)
	}
	if got := c.Sections[0].BlockCount(); got != 4*256+1 {
		t.Fatalf("expected %d blocks, got %d", 4*256+1, got)
	}
	if err := c.SetBlock(3, MinY+4, 5, Air); err != nil {
		t.Fatalf("clear block: %v", err)
	}
	if got := c.Sections[0].BlockCount(); got != 4*256 {
		t.Fatalf("expected %d blocks after clearing, got %d", 4*256, got)
	}
	if err := c.SetBlock(0, MaxY, 0, Stone); err == nil {
		t.Fatalf("expected error placing a block above the column")
	}
	if got := c.Biome(15, 100, 15); got != plains {
		t.Fatalf("expected plains biome, got %d", got)
	}
}

func TestColumnPacket(t *testing.T) {
	c := NewColumn(4, 5, 0)
	if err := c.Fill(MinY, MinY, Stone); err != nil {
		t.Fatalf("fill: %v", err)
	}
	pk := c.Packet()
	if pk.ChunkX != 4 || pk.ChunkZ != 5 {
		t.Fatalf("unexpected chunk position %d %d", pk.ChunkX, pk.ChunkZ)
	}
	if len(pk.Heightmaps) != 2 || len(pk.Heightmaps[0].Data) != 37 {
		t.Fatalf("unexpected heightmaps %+v", pk.Heightmaps)
	}
	if got := pk.Heightmaps[0].Data[0] & 0x1ff; got != 1 {
		t.Fatalf("expected height 1 at 0,0, got %d", got)
	}
	if len(pk.SkyLight) != 26 || !pk.SkyLightMask.Has(25) || pk.SkyLightMask.Has(26) {
		t.Fatalf("unexpected sky light: %d arrays", len(pk.SkyLight))
	}

	data, err := packet.Encode(pk)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := packet.DecodeClientbound(packet.StatePlay, protocol.Frame{ID: pk.ID(), Payload: data})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got := decoded.(*packet.LevelChunkWithLight)
	read := NewColumn(4, 5, 0)
	if err := read.ReadData(got.Data); err != nil {
		t.Fatalf("read data: %v", err)
	}
	if read.Block(7, MinY, 7) != Stone || read.Block(7, MinY+1, 7) != Air {
		t.Fatalf("section data did not survive the packet round trip")
	}
	if read.Sections[0].BlockCount() != 256 {
		t.Fatalf("expected 256 blocks, got %d", read.Sections[0].BlockCount())
	}
}

func TestAnvilRoundTrip(t *testing.T) {
	plains := registry.MustLookup(registry.Biome, "minecraft:plains")
	desert := registry.MustLookup(registry.Biome, "minecraft:desert")
	c := NewColumn(-3, 7, plains)
	for y := MinY; y < MinY+20; y++ {
		if err := c.SetBlock(y&15, y, (y*3)&15, []int32{Stone, Dirt, GrassBlock, Granite, Cobblestone}[y&3]); err != nil {
			t.Fatalf("set block: %v", err)
		}
	}
	c.Sections[2].Biomes.Set(5, desert)

	b, err := Encode(c)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := Decode(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.X != -3 || got.Z != 7 {
		t.Fatalf("unexpected position %d %d", got.X, got.Z)
	}
	for y := MinY; y < MaxY; y++ {
		for z := 0; z < 16; z++ {
			for x := 0; x < 16; x++ {
				if got.Block(x, y, z) != c.Block(x, y, z) {
					t.Fatalf("block %d %d %d differs", x, y, z)
				}
			}
		}
	}
	if got.Sections[2].Biomes.Get(5) != desert {
		t.Fatalf("biome lost in round trip")
	}
	for i := range c.Sections {
		if got.Sections[i].BlockCount() != c.Sections[i].BlockCount() {
			t.Fatalf("section %d block count %d != %d", i, got.Sections[i].BlockCount(), c.Sections[i].BlockCount())
		}
	}
}

func TestStateID(t *testing.T) {
	if id, ok := StateID(BlockState{Name: "minecraft:grass_block"}); !ok || id != GrassBlockSnowy {
		t.Fatalf("expected first grass block state, got %d %v", id, ok)
	}
	if id, ok := StateID(BlockState{Name: "minecraft:grass_block", Properties: map[string]string{"snowy": "false"}}); !ok || id != GrassBlock {
		t.Fatalf("expected snowy=false grass block, got %d %v", id, ok)
	}
	if _, ok := StateID(BlockState{Name: "minecraft:nonexistent"}); ok {
		t.Fatalf("expected unknown state")
	}
}
