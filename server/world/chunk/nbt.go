package chunk

import (
	"fmt"

	"github.com/qexed/qexed/server/registry"
	"github.com/sandertv/gophertunnel/minecraft/nbt"
)

// DataVersion is the data version written to saved chunks.
const DataVersion = 4440

type anvilChunk struct {
	DataVersion   int32            `nbt:"DataVersion"`
	XPos          int32            `nbt:"xPos"`
	ZPos          int32            `nbt:"zPos"`
	YPos          int32            `nbt:"yPos"`
	Status        string           `nbt:"Status"`
	LastUpdate    int64            `nbt:"LastUpdate"`
	InhabitedTime int64            `nbt:"InhabitedTime"`
	Sections      []anvilSection   `nbt:"sections"`
	BlockEntities []map[string]any `nbt:"block_entities"`
}

type anvilSection struct {
	// Y is stored as a signed byte.
	Y           uint8       `nbt:"Y"`
	BlockStates anvilBlocks `nbt:"block_states"`
	Biomes      anvilBiomes `nbt:"biomes"`
}

type anvilBlocks struct {
	Palette []BlockState `nbt:"palette"`
	Data    []int64      `nbt:"data,omitempty"`
}

type anvilBiomes struct {
	Palette []string `nbt:"palette"`
	Data    []int64  `nbt:"data,omitempty"`
}

// Encode returns the column as an uncompressed Anvil chunk compound.
func Encode(c *Column) ([]byte, error) {
	a := anvilChunk{
		DataVersion:   DataVersion,
		XPos:          c.X,
		ZPos:          c.Z,
		YPos:          MinY >> 4,
		Status:        "minecraft:full",
		BlockEntities: []map[string]any{},
	}
	for i, s := range c.Sections {
		sec := anvilSection{Y: uint8(int8(MinY>>4 + i))}

		ids, data := s.Blocks.palettedForm()
		sec.BlockStates.Data = data
		for _, id := range ids {
			state, ok := StateOf(id)
			if !ok {
				return nil, fmt.Errorf("chunk %d %d: unknown block state %d", c.X, c.Z, id)
			}
			sec.BlockStates.Palette = append(sec.BlockStates.Palette, state)
		}

		ids, data = s.Biomes.palettedForm()
		sec.Biomes.Data = data
		for _, id := range ids {
			name, ok := registry.Entry(registry.Biome, id)
			if !ok {
				return nil, fmt.Errorf("chunk %d %d: unknown biome %d", c.X, c.Z, id)
			}
			sec.Biomes.Palette = append(sec.Biomes.Palette, name)
		}
		a.Sections = append(a.Sections, sec)
	}
	return nbt.MarshalEncoding(a, nbt.BigEndian)
}

// Decode reads an uncompressed Anvil chunk compound. Sections outside the
// overworld height are skipped and missing sections stay empty. Block states
// the server does not know become air.
func Decode(b []byte) (*Column, error) {
	var a anvilChunk
	if err := nbt.UnmarshalEncoding(b, &a, nbt.BigEndian); err != nil {
		return nil, fmt.Errorf("decode chunk: %w", err)
	}
	plains := registry.MustLookup(registry.Biome, "minecraft:plains")
	c := NewColumn(a.XPos, a.ZPos, plains)
	for _, sec := range a.Sections {
		i := int(int8(sec.Y)) - MinY>>4
		if i < 0 || i >= Sections || len(sec.BlockStates.Palette) == 0 {
			continue
		}
		ids := make([]int32, len(sec.BlockStates.Palette))
		for j, state := range sec.BlockStates.Palette {
			ids[j], _ = StateID(state)
		}
		blocks, err := loadPaletted(blockKind, ids, sec.BlockStates.Data)
		if err != nil {
			return nil, fmt.Errorf("chunk %d %d section %d blocks: %w", a.XPos, a.ZPos, sec.Y, err)
		}

		biomes := NewBiomeContainer(plains)
		if len(sec.Biomes.Palette) > 0 {
			ids = make([]int32, len(sec.Biomes.Palette))
			for j, name := range sec.Biomes.Palette {
				id, ok := registry.Lookup(registry.Biome, name)
				if !ok {
					id = plains
				}
				ids[j] = id
			}
			if biomes, err = loadPaletted(biomeKind, ids, sec.Biomes.Data); err != nil {
				return nil, fmt.Errorf("chunk %d %d section %d biomes: %w", a.XPos, a.ZPos, sec.Y, err)
			}
		}
		s := &Section{Blocks: blocks, Biomes: biomes}
		s.recount()
		c.Sections[i] = s
	}
	return c, nil
}
