// Package access decides which players may join. A List is either a blacklist
// or a whitelist, backed by one of three storage engines.
package access

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// Entry identifies a player on a list. Either field may be empty: an entry
// added by name before the player ever joined has no UUID.
type Entry struct {
	UUID uuid.UUID `toml:"uuid"`
	Name string    `toml:"name"`
}

// ParseEntry interprets s as a UUID if it is one and as a player name
// otherwise.
func ParseEntry(s string) (Entry, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Entry{}, ErrInvalidName
	}
	if id, err := uuid.Parse(s); err == nil {
		return Entry{UUID: id}, nil
	}
	return Entry{Name: s}, nil
}

// String returns the name of the entry, or its UUID if it has no name.
func (e Entry) String() string {
	if e.Name != "" {
		return e.Name
	}
	return e.UUID.String()
}

func (e Entry) key() string { return normalizeName(e.Name) }

// Matches reports whether e and other name the same player.
func (e Entry) Matches(other Entry) bool {
	if e.UUID != uuid.Nil && e.UUID == other.UUID {
		return true
	}
	return e.Name != "" && e.key() == other.key()
}

var (
	// ErrInvalidName is returned when an empty player is passed to a list
	// operation.
	ErrInvalidName = errors.New("invalid player name")
	// ErrUnknownEngine is returned for a storage engine that does not exist.
	ErrUnknownEngine = errors.New("unknown storage engine")
)

// Store persists the entries of a list. Implementations need not be safe for
// concurrent use: a List calls its store from one goroutine.
type Store interface {
	// Contains reports whether any stored entry matches e.
	Contains(e Entry) (bool, error)
	// Add stores e. It returns false if a matching entry already exists.
	Add(e Entry) (bool, error)
	// Remove deletes every entry matching e. It returns false if there was
	// none.
	Remove(e Entry) (bool, error)
	// Entries returns every stored entry sorted by name.
	Entries() ([]Entry, error)
	Close() error
}

// Engine names a storage engine.
type Engine string

const (
	Simple  Engine = "Simple"
	LevelDB Engine = "LevelDB"
	Sqlite  Engine = "Sqlite"
)

// StoreConfig selects and configures a storage engine.
type StoreConfig struct {
	Engine Engine
	// Players seeds the Simple engine. Each value is a name or a UUID.
	Players []string
	// SimplePath is where the Simple engine persists changes. If empty,
	// changes are kept in memory only.
	SimplePath  string
	LevelDBPath string
	SqlitePath  string
}

// OpenStore opens the configured storage engine.
func OpenStore(conf StoreConfig) (Store, error) {
	switch conf.Engine {
	case Simple, "":
		return OpenSimple(conf.SimplePath, conf.Players)
	case LevelDB:
		return OpenLevelDB(conf.LevelDBPath)
	case Sqlite:
		return OpenSqlite(conf.SqlitePath)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, conf.Engine)
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func sortEntries(entries []Entry) {
	slices.SortFunc(entries, func(a, b Entry) int {
		lowerA, lowerB := normalizeName(a.String()), normalizeName(b.String())
		if lowerA == lowerB {
			return strings.Compare(a.String(), b.String())
		}
		return strings.Compare(lowerA, lowerB)
	})
}
