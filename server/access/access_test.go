package access

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func testCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func engines(t *testing.T) map[Engine]StoreConfig {
	dir := t.TempDir()
	return map[Engine]StoreConfig{
		Simple:  {Engine: Simple, SimplePath: filepath.Join(dir, "simple.toml")},
		LevelDB: {Engine: LevelDB, LevelDBPath: filepath.Join(dir, "leveldb")},
		Sqlite:  {Engine: Sqlite, SqlitePath: filepath.Join(dir, "players.db")},
	}
}

func TestStoreEngines(t *testing.T) {
	for engine, conf := range engines(t) {
		t.Run(string(engine), func(t *testing.T) {
			store, err := OpenStore(conf)
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			id := uuid.New()
			if added, err := store.Add(Entry{UUID: id, Name: "Steve"}); err != nil || !added {
				t.Fatalf("add: %v %v", added, err)
			}
			if added, err := store.Add(Entry{Name: "steve"}); err != nil || added {
				t.Fatalf("a case-insensitive duplicate must not be added: %v %v", added, err)
			}
			if added, err := store.Add(Entry{Name: "alex"}); err != nil || !added {
				t.Fatalf("add alex: %v %v", added, err)
			}
			for _, e := range []Entry{{UUID: id}, {Name: "STEVE"}, {Name: "Alex", UUID: uuid.New()}} {
				if ok, err := store.Contains(e); err != nil || !ok {
					t.Fatalf("expected %v to match: %v", e, err)
				}
			}
			if ok, _ := store.Contains(Entry{UUID: uuid.New()}); ok {
				t.Fatalf("unknown uuid must not match")
			}
			entries, err := store.Entries()
			if err != nil || len(entries) != 2 || entries[0].Name != "alex" || entries[1].UUID != id {
				t.Fatalf("unexpected entries %+v %v", entries, err)
			}
			if removed, err := store.Remove(Entry{UUID: id}); err != nil || !removed {
				t.Fatalf("remove: %v %v", removed, err)
			}
			if ok, _ := store.Contains(Entry{Name: "steve"}); ok {
				t.Fatalf("steve must be gone after removal by uuid")
			}
			if err := store.Close(); err != nil {
				t.Fatalf("close: %v", err)
			}

			reopened, err := OpenStore(conf)
			if err != nil {
				t.Fatalf("reopen: %v", err)
			}
			t.Cleanup(func() { _ = reopened.Close() })
			if ok, err := reopened.Contains(Entry{Name: "alex"}); err != nil || !ok {
				t.Fatalf("alex did not persist: %v", err)
			}
		})
	}
}

func TestBlacklistRejectsSimplePlayer(t *testing.T) {
	banned := uuid.New()
	l, err := New(Blacklist, Config{
		Enable:      true,
		KickMessage: "§cBanned: {player}",
		Store:       StoreConfig{Engine: Simple, Players: []string{banned.String(), "griefer"}},
		Log:         discard(),
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	t.Cleanup(l.Close)

	msg, ok, err := l.Allow(testCtx(t), Entry{UUID: banned, Name: "anyone"})
	if err != nil || ok {
		t.Fatalf("banned uuid must be rejected: %v %v", ok, err)
	}
	if msg.Text != "§cBanned: anyone" {
		t.Fatalf("unexpected kick message %q", msg.Text)
	}
	if _, ok, _ := l.Allow(testCtx(t), Entry{UUID: uuid.New(), Name: "Griefer"}); ok {
		t.Fatalf("banned name must be rejected")
	}
	if _, ok, _ := l.Allow(testCtx(t), Entry{UUID: uuid.New(), Name: "friend"}); !ok {
		t.Fatalf("unlisted player must be allowed")
	}
	l.SetEnabled(false)
	if _, ok, _ := l.Allow(testCtx(t), Entry{UUID: banned}); !ok {
		t.Fatalf("a disabled blacklist must allow everyone")
	}
}

func TestWhitelist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "whitelist_players.toml")
	l, err := New(Whitelist, Config{Enable: true, Store: StoreConfig{Engine: Simple, SimplePath: path}, Log: discard()})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	t.Cleanup(l.Close)

	if _, ok, _ := l.Allow(testCtx(t), Entry{Name: "friend"}); ok {
		t.Fatalf("an unlisted player must be rejected by the whitelist")
	}
	if added, err := l.Add(testCtx(t), Entry{Name: "friend"}); err != nil || !added {
		t.Fatalf("add: %v %v", added, err)
	}
	if _, ok, _ := l.Allow(testCtx(t), Entry{Name: "Friend"}); !ok {
		t.Fatalf("a listed player must pass the whitelist")
	}
	if _, err := l.Add(testCtx(t), Entry{}); err != ErrInvalidName {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil || !strings.Contains(string(b), "friend") {
		t.Fatalf("whitelist file not written: %v", err)
	}
}

func TestUnknownEngine(t *testing.T) {
	if _, err := OpenStore(StoreConfig{Engine: "Redis"}); err == nil {
		t.Fatalf("expected an error for an unknown engine")
	}
}
