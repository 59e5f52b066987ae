package access

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml"
)

// SimpleStore keeps entries in memory and mirrors them to a TOML file.
type SimpleStore struct {
	path    string
	entries []Entry
}

type simpleFile struct {
	Players []simpleEntry `toml:"players"`
}

type simpleEntry struct {
	Name string `toml:"name,omitempty"`
	UUID string `toml:"uuid,omitempty"`
}

// OpenSimple returns a store seeded with players and the contents of the
// file at path. A missing file is created on the first change.
func OpenSimple(path string, players []string) (*SimpleStore, error) {
	s := &SimpleStore{path: path}
	for _, p := range players {
		e, err := ParseEntry(p)
		if err != nil {
			continue
		}
		s.add(e)
	}
	if path == "" {
		return s, nil
	}
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("read player list: %w", err)
	}
	var data simpleFile
	if len(contents) != 0 {
		if err := toml.Unmarshal(contents, &data); err != nil {
			return nil, fmt.Errorf("decode player list: %w", err)
		}
	}
	for _, p := range data.Players {
		e := Entry{Name: p.Name}
		if id, err := uuid.Parse(p.UUID); err == nil {
			e.UUID = id
		}
		if e.Name != "" || e.UUID != uuid.Nil {
			s.add(e)
		}
	}
	return s, nil
}

func (s *SimpleStore) add(e Entry) bool {
	if slices.ContainsFunc(s.entries, e.Matches) {
		return false
	}
	s.entries = append(s.entries, e)
	return true
}

// Contains reports whether a matching entry is stored.
func (s *SimpleStore) Contains(e Entry) (bool, error) {
	return slices.ContainsFunc(s.entries, e.Matches), nil
}

// Add stores e and rewrites the file.
func (s *SimpleStore) Add(e Entry) (bool, error) {
	if !s.add(e) {
		return false, nil
	}
	if err := s.write(); err != nil {
		s.entries = s.entries[:len(s.entries)-1]
		return false, err
	}
	return true, nil
}

// Remove deletes every entry matching e and rewrites the file.
func (s *SimpleStore) Remove(e Entry) (bool, error) {
	original := s.entries
	kept := slices.DeleteFunc(slices.Clone(s.entries), e.Matches)
	if len(kept) == len(original) {
		return false, nil
	}
	s.entries = kept
	if err := s.write(); err != nil {
		s.entries = original
		return false, err
	}
	return true, nil
}

func (s *SimpleStore) Entries() ([]Entry, error) {
	entries := slices.Clone(s.entries)
	sortEntries(entries)
	return entries, nil
}

func (s *SimpleStore) Close() error { return nil }

func (s *SimpleStore) write() error {
	if s.path == "" {
		return nil
	}
	if dir := filepath.Dir(s.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0777); err != nil {
			return fmt.Errorf("create player list directory: %w", err)
		}
	}
	entries, _ := s.Entries()
	data := simpleFile{Players: make([]simpleEntry, 0, len(entries))}
	for _, e := range entries {
		p := simpleEntry{Name: e.Name}
		if e.UUID != uuid.Nil {
			p.UUID = e.UUID.String()
		}
		data.Players = append(data.Players, p)
	}
	encoded, err := toml.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode player list: %w", err)
	}
	if err := os.WriteFile(s.path, encoded, 0644); err != nil {
		return fmt.Errorf("write player list: %w", err)
	}
	return nil
}
