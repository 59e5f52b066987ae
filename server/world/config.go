package world

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/qexed/qexed/server/world/anvil"
)

// EngineMiniLobby serves a fixed map range loaded from region files. Chunks
// missing from the files are created empty.
const EngineMiniLobby = "MiniLobby"

// Config describes one world.
type Config struct {
	// UUID identifies the world and names its directory under Root.
	UUID uuid.UUID
	Name string
	// Namespace is the dimension identifier sent to clients, such as
	// minecraft:overworld.
	Namespace string
	Seed      int64
	// Raid, POI and Entities enable the matching features. POI and Entities
	// also create their directories.
	Raid     bool
	POI      bool
	Entities bool
	// Engine selects how chunks are provided. Only EngineMiniLobby exists.
	Engine string
	// MapRange is the rectangle of chunks served.
	MapRange Range
	// Spawn is where players join.
	Spawn mgl64.Vec3
	// Root is the directory holding every world directory.
	Root string
	// Compression is used for chunks written to region files.
	Compression anvil.Compression
	// Log receives region I/O failures. If nil, slog.Default() is used.
	Log *slog.Logger
}

// Dir returns the directory of the world.
func (conf Config) Dir() string {
	return filepath.Join(conf.Root, conf.UUID.String())
}

// RegionDir returns the directory holding the world's region files.
func (conf Config) RegionDir() string {
	return filepath.Join(conf.Dir(), "region")
}

func (conf Config) validate() error {
	if conf.Engine != EngineMiniLobby {
		return fmt.Errorf("world %s: unknown engine %q", conf.Name, conf.Engine)
	}
	r := conf.MapRange
	if r.MinX > r.MaxX || r.MinZ > r.MaxZ {
		return fmt.Errorf("world %s: empty map range %+v", conf.Name, r)
	}
	return nil
}

// prepare creates the world's directories.
func (conf Config) prepare() error {
	dirs := []string{"region", "data"}
	if conf.POI {
		dirs = append(dirs, "poi")
	}
	if conf.Entities {
		dirs = append(dirs, "entities")
	}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(conf.Dir(), d), 0o755); err != nil {
			return fmt.Errorf("create world directory: %w", err)
		}
	}
	return nil
}
