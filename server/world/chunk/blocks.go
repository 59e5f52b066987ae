package chunk

import (
	"maps"
)

// BlockState is a block name and its properties.
type BlockState struct {
	Name       string            `nbt:"Name"`
	Properties map[string]string `nbt:"Properties,omitempty"`
}

// Network IDs of the block states the server places itself.
const (
	Air              int32 = 0
	Stone            int32 = 1
	Granite          int32 = 2
	PolishedGranite  int32 = 3
	Diorite          int32 = 4
	PolishedDiorite  int32 = 5
	Andesite         int32 = 6
	PolishedAndesite int32 = 7
	GrassBlockSnowy  int32 = 8
	GrassBlock       int32 = 9
	Dirt             int32 = 10
	CoarseDirt       int32 = 11
	PodzolSnowy      int32 = 12
	Podzol           int32 = 13
	Cobblestone      int32 = 14
)

var blockStates = []BlockState{
	Air:              {Name: "minecraft:air"},
	Stone:            {Name: "minecraft:stone"},
	Granite:          {Name: "minecraft:granite"},
	PolishedGranite:  {Name: "minecraft:polished_granite"},
	Diorite:          {Name: "minecraft:diorite"},
	PolishedDiorite:  {Name: "minecraft:polished_diorite"},
	Andesite:         {Name: "minecraft:andesite"},
	PolishedAndesite: {Name: "minecraft:polished_andesite"},
	GrassBlockSnowy:  {Name: "minecraft:grass_block", Properties: map[string]string{"snowy": "true"}},
	GrassBlock:       {Name: "minecraft:grass_block", Properties: map[string]string{"snowy": "false"}},
	Dirt:             {Name: "minecraft:dirt"},
	CoarseDirt:       {Name: "minecraft:coarse_dirt"},
	PodzolSnowy:      {Name: "minecraft:podzol", Properties: map[string]string{"snowy": "true"}},
	Podzol:           {Name: "minecraft:podzol", Properties: map[string]string{"snowy": "false"}},
	Cobblestone:      {Name: "minecraft:cobblestone"},
}

// StateOf returns the block state with network ID id.
func StateOf(id int32) (BlockState, bool) {
	if id < 0 || int(id) >= len(blockStates) {
		return BlockState{}, false
	}
	return blockStates[id], true
}

// StateID returns the network ID of s. Properties left out of s take the
// values of the first state with the same name.
func StateID(s BlockState) (int32, bool) {
	for id, known := range blockStates {
		if known.Name != s.Name {
			continue
		}
		if len(s.Properties) == 0 || maps.Equal(known.Properties, s.Properties) {
			return int32(id), true
		}
	}
	return 0, false
}

// IsAir reports whether the state does not count towards a section's block
// count.
func IsAir(id int32) bool { return id == Air }
