package access

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SqliteStore keeps entries in a single table. Rows added by name have an
// empty uuid column and rows added by UUID an empty name column.
type SqliteStore struct {
	db *sql.DB
}

// OpenSqlite opens or creates the database file at path.
func OpenSqlite(path string) (*SqliteStore, error) {
	if path == "" {
		return nil, errors.New("sqlite path must not be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	for _, stmt := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		`CREATE TABLE IF NOT EXISTS players (
			name_key TEXT NOT NULL,
			name TEXT NOT NULL,
			uuid TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_players_name ON players(name_key);`,
		`CREATE INDEX IF NOT EXISTS idx_players_uuid ON players(uuid);`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init player database: %w", err)
		}
	}
	return &SqliteStore{db: db}, nil
}

// match returns a WHERE clause and its arguments selecting rows matching e.
func match(e Entry) (string, []any) {
	name, id := e.key(), ""
	if e.UUID != uuid.Nil {
		id = e.UUID.String()
	}
	return "(name_key != '' AND name_key = ?) OR (uuid != '' AND uuid = ?)", []any{name, id}
}

func (s *SqliteStore) Contains(e Entry) (bool, error) {
	where, args := match(e)
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM players WHERE "+where, args...).Scan(&n); err != nil {
		return false, err
	}
	return n != 0, nil
}

func (s *SqliteStore) Add(e Entry) (bool, error) {
	if ok, err := s.Contains(e); err != nil || ok {
		return false, err
	}
	id := ""
	if e.UUID != uuid.Nil {
		id = e.UUID.String()
	}
	if _, err := s.db.Exec("INSERT INTO players (name_key, name, uuid) VALUES (?, ?, ?)", e.key(), e.Name, id); err != nil {
		return false, fmt.Errorf("insert player: %w", err)
	}
	return true, nil
}

func (s *SqliteStore) Remove(e Entry) (bool, error) {
	where, args := match(e)
	res, err := s.db.Exec("DELETE FROM players WHERE "+where, args...)
	if err != nil {
		return false, fmt.Errorf("delete player: %w", err)
	}
	n, err := res.RowsAffected()
	return n != 0, err
}

func (s *SqliteStore) Entries() ([]Entry, error) {
	rows, err := s.db.Query("SELECT name, uuid FROM players")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var (
			e  Entry
			id string
		)
		if err := rows.Scan(&e.Name, &id); err != nil {
			return nil, err
		}
		if id != "" {
			if e.UUID, err = uuid.Parse(id); err != nil {
				return nil, fmt.Errorf("player %q: %w", e.Name, err)
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortEntries(entries)
	return entries, nil
}

func (s *SqliteStore) Close() error { return s.db.Close() }
