package server

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/pelletier/go-toml"
	"github.com/qexed/qexed/server/access"
	"github.com/qexed/qexed/server/cmd/builtin"
	"github.com/qexed/qexed/server/entityid"
	"github.com/qexed/qexed/server/heartbeat"
	"github.com/qexed/qexed/server/ingress"
	"github.com/qexed/qexed/server/ping"
	"github.com/qexed/qexed/server/protocol/packet"
	"github.com/qexed/qexed/server/rule"
	"github.com/qexed/qexed/server/status"
	"github.com/qexed/qexed/server/world"
	"github.com/qexed/qexed/server/world/anvil"
)

// Config contains everything needed to start a Server. It is usually obtained
// from a UserConfig.
type Config struct {
	// Log is the Logger every component derives its logger from. If nil, Log
	// is set to slog.Default().
	Log *slog.Logger
	// MaxPlayers is the capacity of the player list.
	MaxPlayers int
	// ViewDistance and SimulationDistance are sent to players in Login.
	ViewDistance       int
	SimulationDistance int

	Ingress   ingress.Config
	Status    status.Config
	Ping      ping.Config
	Heartbeat heartbeat.Config
	Blacklist access.Config
	Whitelist access.Config
	EntityID  entityid.Config
	Rules     rule.Rules
	// Worlds are loaded in order. The world named DefaultWorld becomes the
	// default; if it is empty, the first one does.
	Worlds       []world.Config
	DefaultWorld string
	// QueryAddress enables the UDP query responder when not empty.
	QueryAddress string
	// DisabledCommands are built-in commands that are not registered.
	DisabledCommands []string
	// PlayerPermissions are the command permission nodes every player holds.
	PlayerPermissions []string
}

// UserConfig is the user configuration of a server, one section per file
// under the configuration directory. UserConfig may be serialised and can be
// converted to a Config by calling UserConfig.Config().
type UserConfig struct {
	Server    ServerFile
	Status    StatusFile
	Ping      PingFile
	Heartbeat HeartbeatFile
	Blacklist AccessFile
	Whitelist AccessFile
	World     WorldFile
	EntityID  EntityIDFile
	Query     QueryFile
	Rule      rule.Rules
	Command   CommandFile
}

// ServerFile is server.toml.
type ServerFile struct {
	Address     string `toml:"address"`
	Port        int    `toml:"port"`
	MaxPlayer   int    `toml:"max_player"`
	OnlineMode  bool   `toml:"online_mode"`
	Compression int    `toml:"network_compression_threshold" comment:"Packets of this size and larger are compressed. -1 disables compression."`
	// Proxy expects the forwarding header of ProxyProtocol, which is one of
	// BungeeCord, QTunnel and Victory.
	Proxy              bool   `toml:"proxy"`
	ProxyProtocol      string `toml:"proxy_protocol"`
	ProxyToken         string `toml:"proxy_token"`
	StatusTimeoutSecs  int    `toml:"status_timeout_secs"`
	ViewDistance       int    `toml:"view_distance"`
	SimulationDistance int    `toml:"simulation_distance"`
	LogLevel           string `toml:"log_level" comment:"One of debug, info, warn and error."`
	RateLimit          struct {
		WindowSecs  int `toml:"window_secs"`
		MaxAttempts int `toml:"max_attempts"`
	} `toml:"rate_limit"`
}

// StatusFile is status.toml.
type StatusFile struct {
	MOTD        []string `toml:"motd"`
	Favicon     string   `toml:"favicon" comment:"Path of a 64x64 PNG shown in the server list."`
	CacheSecs   int      `toml:"cache" comment:"Seconds a status response is reused. -1 disables caching."`
	VersionName string   `toml:"version_name"`
}

// PingFile is ping.toml.
type PingFile struct {
	IntervalSecs       int  `toml:"interval"`
	MaxRetries         int  `toml:"max_retries"`
	EnableLatencyLimit bool `toml:"enable_latency_limit"`
	LatencyLimitMs     int  `toml:"latency_limit_ms"`
}

// HeartbeatFile is heartbeat.toml.
type HeartbeatFile struct {
	TimeoutSecs       int `toml:"timeout_secs"`
	CheckIntervalSecs int `toml:"check_interval_secs"`
}

// AccessFile is blacklist.toml or whitelist.toml.
type AccessFile struct {
	Enable        bool   `toml:"enable"`
	StorageEngine string `toml:"storage_engine" comment:"One of Simple, LevelDB and Sqlite."`
	KickMessage   string `toml:"kick_message" comment:"{player} and {uuid} are replaced."`
	Simple        struct {
		PlayerList []string `toml:"player_list"`
		Path       string   `toml:"path"`
	} `toml:"simple"`
	LevelDB struct {
		Path string `toml:"path"`
	} `toml:"leveldb"`
	Sqlite struct {
		Path string `toml:"path"`
	} `toml:"sqlite"`
}

// WorldFile is world.toml.
type WorldFile struct {
	Root    string        `toml:"root"`
	Default string        `toml:"default"`
	Worlds  []WorldConfig `toml:"worlds"`
}

// WorldConfig is one [[worlds]] entry.
type WorldConfig struct {
	UUID      string      `toml:"uuid"`
	Name      string      `toml:"name"`
	Namespace string      `toml:"namespace"`
	Seed      int64       `toml:"seed"`
	Raid      bool        `toml:"raid"`
	POI       bool        `toml:"poi"`
	Entities  bool        `toml:"entities"`
	Engine    string      `toml:"engine"`
	MapRange  world.Range `toml:"map_range"`
	Spawn     []float64   `toml:"spawn" comment:"x, y and z of the spawn point."`
}

// EntityIDFile is entity_id.toml.
type EntityIDFile struct {
	StartID     int32 `toml:"start_id"`
	MaxEntityID int32 `toml:"max_entity_id"`
}

// QueryFile is query.toml.
type QueryFile struct {
	Enable bool `toml:"enable"`
	Port   int  `toml:"port"`
}

// CommandFile is command.toml.
type CommandFile struct {
	Disabled          []string `toml:"disabled" comment:"Built-in commands that are not registered."`
	PlayerPermissions []string `toml:"player_permissions" comment:"Permission nodes every player holds. qexed.* grants all built-in commands."`
}

// DefaultConfig returns a configuration with the default values filled out.
func DefaultConfig() UserConfig {
	c := UserConfig{}
	c.Server.Address = "0.0.0.0"
	c.Server.Port = 25565
	c.Server.MaxPlayer = 20
	c.Server.Compression = 256
	c.Server.ProxyProtocol = string(ingress.BungeeCord)
	c.Server.StatusTimeoutSecs = 5
	c.Server.ViewDistance = 10
	c.Server.SimulationDistance = 10
	c.Server.LogLevel = "info"
	c.Server.RateLimit.WindowSecs = 10
	c.Server.RateLimit.MaxAttempts = 5

	c.Status.MOTD = []string{"§bA Qexed Server"}
	c.Status.CacheSecs = 5
	c.Status.VersionName = "Qexed " + packet.GameVersion

	c.Ping.IntervalSecs = 15
	c.Ping.MaxRetries = 3
	c.Ping.LatencyLimitMs = 1000

	c.Heartbeat.TimeoutSecs = 30
	c.Heartbeat.CheckIntervalSecs = 5

	c.Blacklist = defaultAccessFile(access.Blacklist)
	c.Whitelist = defaultAccessFile(access.Whitelist)

	c.World.Root = "world"
	c.World.Default = "lobby"
	c.World.Worlds = []WorldConfig{{
		UUID:      uuid.NewString(),
		Name:      "lobby",
		Namespace: "minecraft:overworld",
		Engine:    world.EngineMiniLobby,
		MapRange:  world.Range{MinX: -4, MinZ: -4, MaxX: 4, MaxZ: 4},
		Spawn:     []float64{0.5, 64, 0.5},
	}}

	c.EntityID.StartID = 1
	c.EntityID.MaxEntityID = 1<<31 - 1

	c.Query.Port = 25565
	c.Command.PlayerPermissions = slices.Clone(builtin.PlayerPermissions)
	c.Rule = rule.Default()
	return c
}

func defaultAccessFile(k access.Kind) AccessFile {
	f := AccessFile{StorageEngine: string(access.Simple), KickMessage: access.DefaultKickMessage(k)}
	f.Simple.Path = filepath.Join("config", k.String()+"_players.toml")
	f.LevelDB.Path = filepath.Join("data", k.String())
	f.Sqlite.Path = filepath.Join("data", k.String()+".sqlite")
	return f
}

// files maps every configuration file to the section it holds.
func (uc *UserConfig) files() []struct {
	name string
	v    any
} {
	return []struct {
		name string
		v    any
	}{
		{"server.toml", &uc.Server},
		{"status.toml", &uc.Status},
		{"ping.toml", &uc.Ping},
		{"heartbeat.toml", &uc.Heartbeat},
		{"blacklist.toml", &uc.Blacklist},
		{"whitelist.toml", &uc.Whitelist},
		{"world.toml", &uc.World},
		{"entity_id.toml", &uc.EntityID},
		{"query.toml", &uc.Query},
		{"rule.toml", &uc.Rule},
		{"command.toml", &uc.Command},
	}
}

// LoadConfig reads the configuration files in dir on top of DefaultConfig.
// Missing files are created with their defaults.
func LoadConfig(dir string) (UserConfig, error) {
	uc := DefaultConfig()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return uc, fmt.Errorf("create config directory: %w", err)
	}
	for _, f := range uc.files() {
		path := filepath.Join(dir, f.name)
		contents, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			encoded, err := toml.Marshal(f.v)
			if err != nil {
				return uc, fmt.Errorf("encode %v: %w", f.name, err)
			}
			if err := os.WriteFile(path, encoded, 0o644); err != nil {
				return uc, fmt.Errorf("write %v: %w", f.name, err)
			}
			continue
		}
		if err != nil {
			return uc, fmt.Errorf("read %v: %w", f.name, err)
		}
		if err := decodeOver(contents, f.v); err != nil {
			return uc, fmt.Errorf("decode %v: %w", f.name, err)
		}
	}
	return uc, nil
}

// decodeOver decodes contents into v. Keys missing from contents keep the
// value v already holds.
func decodeOver(contents []byte, v any) error {
	tree, err := toml.LoadBytes(contents)
	if err != nil {
		return err
	}
	encoded, err := toml.Marshal(v)
	if err != nil {
		return err
	}
	defaults, err := toml.LoadBytes(encoded)
	if err != nil {
		return err
	}
	fillDefaults(tree, defaults)
	return tree.Unmarshal(v)
}

func fillDefaults(dst, def *toml.Tree) {
	for _, k := range def.Keys() {
		path := []string{k}
		dv := def.GetPath(path)
		if !dst.HasPath(path) {
			dst.SetPath(path, dv)
			continue
		}
		dt, ok := dv.(*toml.Tree)
		if !ok {
			continue
		}
		if st, ok := dst.GetPath(path).(*toml.Tree); ok {
			fillDefaults(st, dt)
		}
	}
}

// Level returns the log level named in server.toml.
func (uc UserConfig) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(uc.Server.LogLevel))); err != nil {
		return l, fmt.Errorf("log level: %w", err)
	}
	return l, nil
}

// Config converts a UserConfig to a Config, so that it may be used for creating
// a Server. An error is returned for values that cannot be used.
func (uc UserConfig) Config(log *slog.Logger) (Config, error) {
	if log == nil {
		log = slog.Default()
	}
	s := uc.Server
	conf := Config{
		Log:                log,
		MaxPlayers:         s.MaxPlayer,
		ViewDistance:       s.ViewDistance,
		SimulationDistance: s.SimulationDistance,
		Ingress: ingress.Config{
			Address:              net.JoinHostPort(s.Address, strconv.Itoa(s.Port)),
			OnlineMode:           s.OnlineMode,
			CompressionThreshold: s.Compression,
			Proxy:                s.Proxy,
			ProxyProtocol:        ingress.ProxyProtocol(s.ProxyProtocol),
			ProxyToken:           s.ProxyToken,
			RateLimit: ingress.RateLimit{
				Window:      seconds(s.RateLimit.WindowSecs),
				MaxAttempts: s.RateLimit.MaxAttempts,
			},
			StatusTimeout: seconds(s.StatusTimeoutSecs),
		},
		Status: status.Config{
			MOTD:        uc.Status.MOTD,
			Favicon:     uc.Status.Favicon,
			Cache:       seconds(uc.Status.CacheSecs),
			VersionName: uc.Status.VersionName,
		},
		Ping: ping.Config{
			Interval:   seconds(uc.Ping.IntervalSecs),
			MaxRetries: uc.Ping.MaxRetries,
		},
		Heartbeat: heartbeat.Config{
			Timeout:       seconds(uc.Heartbeat.TimeoutSecs),
			CheckInterval: seconds(uc.Heartbeat.CheckIntervalSecs),
		},
		EntityID:          entityid.Config{StartID: uc.EntityID.StartID, MaxID: uc.EntityID.MaxEntityID},
		Rules:             uc.Rule,
		DefaultWorld:      uc.World.Default,
		DisabledCommands:  uc.Command.Disabled,
		PlayerPermissions: uc.Command.PlayerPermissions,
	}
	if s.MaxPlayer <= 0 {
		return conf, fmt.Errorf("max_player must be positive, got %d", s.MaxPlayer)
	}
	if s.Proxy {
		switch ingress.ProxyProtocol(s.ProxyProtocol) {
		case ingress.BungeeCord, ingress.QTunnel, ingress.Victory:
		default:
			return conf, fmt.Errorf("unknown proxy_protocol %q", s.ProxyProtocol)
		}
	}
	if uc.Ping.EnableLatencyLimit {
		conf.Ping.LatencyLimit = time.Duration(uc.Ping.LatencyLimitMs) * time.Millisecond
	}
	if uc.EntityID.StartID > uc.EntityID.MaxEntityID {
		return conf, fmt.Errorf("start_id %d is above max_entity_id %d", uc.EntityID.StartID, uc.EntityID.MaxEntityID)
	}
	var err error
	if conf.Blacklist, err = uc.Blacklist.config(); err != nil {
		return conf, fmt.Errorf("blacklist: %w", err)
	}
	if conf.Whitelist, err = uc.Whitelist.config(); err != nil {
		return conf, fmt.Errorf("whitelist: %w", err)
	}
	for _, w := range uc.World.Worlds {
		wc, err := w.config(uc.World.Root)
		if err != nil {
			return conf, err
		}
		conf.Worlds = append(conf.Worlds, wc)
	}
	if uc.Query.Enable {
		conf.QueryAddress = net.JoinHostPort(s.Address, strconv.Itoa(uc.Query.Port))
	}
	return conf, nil
}

func (f AccessFile) config() (access.Config, error) {
	engine := access.Engine(f.StorageEngine)
	switch engine {
	case access.Simple, access.LevelDB, access.Sqlite:
	default:
		return access.Config{}, fmt.Errorf("%w: %q", access.ErrUnknownEngine, f.StorageEngine)
	}
	return access.Config{
		Enable:      f.Enable,
		KickMessage: f.KickMessage,
		Store: access.StoreConfig{
			Engine:      engine,
			Players:     f.Simple.PlayerList,
			SimplePath:  f.Simple.Path,
			LevelDBPath: f.LevelDB.Path,
			SqlitePath:  f.Sqlite.Path,
		},
	}, nil
}

func (w WorldConfig) config(root string) (world.Config, error) {
	id, err := uuid.Parse(w.UUID)
	if err != nil {
		return world.Config{}, fmt.Errorf("world %v: uuid: %w", w.Name, err)
	}
	if len(w.Spawn) != 3 {
		return world.Config{}, fmt.Errorf("world %v: spawn needs 3 coordinates, got %d", w.Name, len(w.Spawn))
	}
	return world.Config{
		UUID:        id,
		Name:        w.Name,
		Namespace:   w.Namespace,
		Seed:        w.Seed,
		Raid:        w.Raid,
		POI:         w.POI,
		Entities:    w.Entities,
		Engine:      w.Engine,
		MapRange:    w.MapRange,
		Spawn:       mgl64.Vec3{w.Spawn[0], w.Spawn[1], w.Spawn[2]},
		Root:        root,
		Compression: anvil.Zlib,
	}, nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
