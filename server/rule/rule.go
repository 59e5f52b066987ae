// Package rule holds the server wide gameplay rules. The rules live in a
// shared.Shared so that every session keeps its own copy and picks up changes
// made with the rule command when it checks in.
package rule

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"

	"github.com/qexed/qexed/server/shared"
)

// GameMode is the game mode new players start in.
type GameMode uint8

const (
	Survival GameMode = iota
	Creative
	Adventure
	Spectator
)

var gameModes = [...]string{"survival", "creative", "adventure", "spectator"}

func (g GameMode) String() string {
	if int(g) < len(gameModes) {
		return gameModes[g]
	}
	return "survival"
}

// ParseGameMode parses a game mode name.
func ParseGameMode(s string) (GameMode, bool) {
	i := slices.Index(gameModes[:], s)
	if i < 0 {
		return Survival, false
	}
	return GameMode(i), true
}

// MarshalText encodes the game mode name for configuration.
func (g GameMode) MarshalText() ([]byte, error) { return []byte(g.String()), nil }

// UnmarshalText decodes a game mode name from configuration.
func (g *GameMode) UnmarshalText(b []byte) error {
	v, ok := ParseGameMode(string(b))
	if !ok {
		return fmt.Errorf("unknown game mode %q", b)
	}
	*g = v
	return nil
}

// Rules are the gameplay rules.
type Rules struct {
	GameMode            GameMode `toml:"game_mode"`
	Hardcore            bool     `toml:"hardcore"`
	ReducedDebugInfo    bool     `toml:"reduced_debug_info"`
	ImmediateRespawn    bool     `toml:"do_immediate_respawn"`
	LimitedCrafting     bool     `toml:"do_limited_crafting"`
	AnnounceJoins       bool     `toml:"announce_joins"`
	SendCommandFeedback bool     `toml:"send_command_feedback"`
	SpawnRadius         int      `toml:"spawn_radius"`
}

// Default returns the rules of a new server.
func Default() Rules {
	return Rules{AnnounceJoins: true, SendCommandFeedback: true, SpawnRadius: 10}
}

var (
	// ErrUnknownRule is returned for a rule name that does not exist.
	ErrUnknownRule = errors.New("unknown rule")
	// ErrInvalidValue is returned for a value that does not fit the rule.
	ErrInvalidValue = errors.New("invalid rule value")
)

type field struct {
	get func(r *Rules) string
	set func(r *Rules, v string) error
}

func boolField(p func(r *Rules) *bool) field {
	return field{
		get: func(r *Rules) string { return strconv.FormatBool(*p(r)) },
		set: func(r *Rules, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return ErrInvalidValue
			}
			*p(r) = b
			return nil
		},
	}
}

var fields = map[string]field{
	"gameMode": {
		get: func(r *Rules) string { return r.GameMode.String() },
		set: func(r *Rules, v string) error {
			g, ok := ParseGameMode(v)
			if !ok {
				return ErrInvalidValue
			}
			r.GameMode = g
			return nil
		},
	},
	"hardcore":            boolField(func(r *Rules) *bool { return &r.Hardcore }),
	"reducedDebugInfo":    boolField(func(r *Rules) *bool { return &r.ReducedDebugInfo }),
	"doImmediateRespawn":  boolField(func(r *Rules) *bool { return &r.ImmediateRespawn }),
	"doLimitedCrafting":   boolField(func(r *Rules) *bool { return &r.LimitedCrafting }),
	"announceJoins":       boolField(func(r *Rules) *bool { return &r.AnnounceJoins }),
	"sendCommandFeedback": boolField(func(r *Rules) *bool { return &r.SendCommandFeedback }),
	"spawnRadius": {
		get: func(r *Rules) string { return strconv.Itoa(r.SpawnRadius) },
		set: func(r *Rules, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return ErrInvalidValue
			}
			r.SpawnRadius = n
			return nil
		},
	},
}

// Names returns the names of every rule, sorted.
func Names() []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Get returns the value of a rule formatted as text.
func (r *Rules) Get(name string) (string, error) {
	f, ok := fields[name]
	if !ok {
		return "", ErrUnknownRule
	}
	return f.get(r), nil
}

// Set parses value and assigns it to the named rule.
func (r *Rules) Set(name, value string) error {
	f, ok := fields[name]
	if !ok {
		return ErrUnknownRule
	}
	return f.set(r, value)
}

// Handle is a session's view of the rules.
type Handle = shared.Shared[Rules]

// New starts the authority for r and returns the first handle.
func New(r Rules, log *slog.Logger) *Handle {
	return shared.New(r, log)
}
