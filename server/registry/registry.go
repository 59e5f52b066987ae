// Package registry holds the registry and tag tables sent during
// configuration. Entries carry no data: the client loads them from the
// vanilla core pack it already has.
package registry

import (
	"sync"

	"github.com/qexed/qexed/server/protocol/packet"
)

// Registry is a synchronised registry and its entry names in network ID order.
type Registry struct {
	Name    string
	Entries []string
}

// ID returns the network ID of entry.
func (r Registry) ID(entry string) (int32, bool) {
	for i, e := range r.Entries {
		if e == entry {
			return int32(i), true
		}
	}
	return 0, false
}

// KnownPacks is the data pack the registries are taken from.
var KnownPacks = []packet.KnownPack{{Namespace: "minecraft", PackID: "core", Version: packet.GameVersion}}

// EnabledFeatures lists the feature flags sent in configuration.
var EnabledFeatures = []string{"minecraft:vanilla"}

// Lookup returns the network ID of entry in the registry with the given name.
func Lookup(registry, entry string) (int32, bool) {
	for _, r := range Synchronised {
		if r.Name == registry {
			return r.ID(entry)
		}
	}
	return 0, false
}

// Entry returns the name of the entry with network ID id.
func Entry(registry string, id int32) (string, bool) {
	for _, r := range Synchronised {
		if r.Name == registry {
			if id < 0 || int(id) >= len(r.Entries) {
				return "", false
			}
			return r.Entries[id], true
		}
	}
	return "", false
}

// MustLookup is Lookup for entries known to exist.
func MustLookup(registry, entry string) int32 {
	id, ok := Lookup(registry, entry)
	if !ok {
		panic("registry: unknown entry " + entry + " in " + registry)
	}
	return id
}

var (
	packetsOnce sync.Once
	dataPackets []*packet.RegistryData
	tagsPacket  *packet.UpdateTags
)

func build() {
	for _, r := range Synchronised {
		pk := &packet.RegistryData{Registry: r.Name, Entries: make([]packet.RegistryEntry, len(r.Entries))}
		for i, e := range r.Entries {
			pk.Entries[i] = packet.RegistryEntry{Name: e}
		}
		dataPackets = append(dataPackets, pk)
	}
	tagsPacket = &packet.UpdateTags{}
	for _, group := range tagGroups {
		rt := packet.RegistryTags{Registry: group.registry}
		for _, tag := range group.tags {
			t := packet.Tag{Name: tag.name}
			for _, e := range tag.entries {
				t.Entries = append(t.Entries, MustLookup(group.registry, e))
			}
			rt.Tags = append(rt.Tags, t)
		}
		tagsPacket.Registries = append(tagsPacket.Registries, rt)
	}
}

// DataPackets returns one RegistryData packet per synchronised registry. The
// packets are built once and shared; callers must not modify them.
func DataPackets() []*packet.RegistryData {
	packetsOnce.Do(build)
	return dataPackets
}

// TagsPacket returns the UpdateTags packet. It is built once and shared.
func TagsPacket() *packet.UpdateTags {
	packetsOnce.Do(build)
	return tagsPacket
}

type tag struct {
	name    string
	entries []string
}

type tagGroup struct {
	registry string
	tags     []tag
}

func ns(names ...string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = "minecraft:" + n
	}
	return out
}
