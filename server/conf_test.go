package server

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/qexed/qexed/server/access"
	"github.com/qexed/qexed/server/ingress"
	"github.com/qexed/qexed/server/rule"
)

func TestLoadConfigWritesDefaults(t *testing.T) {
	dir := t.TempDir()
	uc, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	for _, name := range []string{"server.toml", "status.toml", "world.toml", "rule.toml", "blacklist.toml"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("expected %v to be written: %v", name, err)
		}
	}
	if uc.Server.Port != 25565 || uc.Server.MaxPlayer != 20 {
		t.Fatalf("unexpected defaults: port %d, max %d", uc.Server.Port, uc.Server.MaxPlayer)
	}

	again, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.World.Worlds[0].UUID != uc.World.Worlds[0].UUID {
		t.Fatalf("world uuid changed across loads: %v, %v", uc.World.Worlds[0].UUID, again.World.Worlds[0].UUID)
	}
	if again.Rule != uc.Rule {
		t.Fatalf("rules changed across loads: %+v, %+v", uc.Rule, again.Rule)
	}
}

func TestLoadConfigKeepsDefaultsForMissingKeys(t *testing.T) {
	dir := t.TempDir()
	contents := "port = 30000\nmax_player = 5\n\n[rate_limit]\nmax_attempts = 2\n"
	if err := os.WriteFile(filepath.Join(dir, "server.toml"), []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	uc, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if uc.Server.Port != 30000 || uc.Server.MaxPlayer != 5 {
		t.Fatalf("file values not applied: %+v", uc.Server)
	}
	if uc.Server.Compression != 256 || uc.Server.Address != "0.0.0.0" {
		t.Fatalf("defaults lost: compression %d, address %q", uc.Server.Compression, uc.Server.Address)
	}
	if uc.Server.RateLimit.MaxAttempts != 2 || uc.Server.RateLimit.WindowSecs != 10 {
		t.Fatalf("unexpected rate limit %+v", uc.Server.RateLimit)
	}
}

func TestLoadConfigRejectsBadFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "ping.toml"), []byte("interval = ["), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(dir); err == nil {
		t.Fatalf("expected a decode error")
	}
}

func TestConfigConversion(t *testing.T) {
	uc := DefaultConfig()
	uc.Server.Address = "127.0.0.1"
	uc.Server.Port = 25570
	uc.Ping.EnableLatencyLimit = true
	uc.Query.Enable = true
	uc.Query.Port = 25571
	uc.Rule.GameMode = rule.Creative

	conf, err := uc.Config(discard())
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if conf.Ingress.Address != "127.0.0.1:25570" {
		t.Fatalf("unexpected address %q", conf.Ingress.Address)
	}
	if conf.QueryAddress != "127.0.0.1:25571" {
		t.Fatalf("unexpected query address %q", conf.QueryAddress)
	}
	if conf.Ping.LatencyLimit != time.Second || conf.Ping.Interval != 15*time.Second {
		t.Fatalf("unexpected ping config %+v", conf.Ping)
	}
	if conf.Ingress.ProxyProtocol != ingress.BungeeCord || conf.Ingress.RateLimit.MaxAttempts != 5 {
		t.Fatalf("unexpected ingress config %+v", conf.Ingress)
	}
	if conf.Blacklist.Store.Engine != access.Simple || conf.Blacklist.KickMessage != access.DefaultKickMessage(access.Blacklist) {
		t.Fatalf("unexpected blacklist config %+v", conf.Blacklist)
	}
	if len(conf.Worlds) != 1 || conf.Worlds[0].Spawn.Y() != 64 || conf.Worlds[0].Root != "world" {
		t.Fatalf("unexpected worlds %+v", conf.Worlds)
	}
	if conf.Rules.GameMode != rule.Creative {
		t.Fatalf("rules not carried over")
	}
	if !slices.Contains(conf.PlayerPermissions, "qexed.list") || slices.Contains(conf.PlayerPermissions, "qexed.stop") {
		t.Fatalf("unexpected player permissions %v", conf.PlayerPermissions)
	}
}

func TestConfigRejectsInvalidValues(t *testing.T) {
	for name, edit := range map[string]func(*UserConfig){
		"players":   func(uc *UserConfig) { uc.Server.MaxPlayer = 0 },
		"proxy":     func(uc *UserConfig) { uc.Server.Proxy, uc.Server.ProxyProtocol = true, "Velocity" },
		"entity id": func(uc *UserConfig) { uc.EntityID.StartID, uc.EntityID.MaxEntityID = 10, 5 },
		"uuid":      func(uc *UserConfig) { uc.World.Worlds[0].UUID = "lobby" },
		"spawn":     func(uc *UserConfig) { uc.World.Worlds[0].Spawn = []float64{0, 64} },
	} {
		uc := DefaultConfig()
		edit(&uc)
		if _, err := uc.Config(discard()); err == nil {
			t.Fatalf("%v: expected an error", name)
		}
	}

	uc := DefaultConfig()
	uc.Whitelist.StorageEngine = "Redis"
	if _, err := uc.Config(discard()); !errors.Is(err, access.ErrUnknownEngine) {
		t.Fatalf("expected ErrUnknownEngine, got %v", err)
	}
}

func TestLevel(t *testing.T) {
	uc := DefaultConfig()
	uc.Server.LogLevel = "debug"
	if l, err := uc.Level(); err != nil || l.String() != "DEBUG" {
		t.Fatalf("unexpected level %v, %v", l, err)
	}
	uc.Server.LogLevel = "loud"
	if _, err := uc.Level(); err == nil {
		t.Fatalf("expected an error for an unknown level")
	}
}
