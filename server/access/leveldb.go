package access

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/df-mc/goleveldb/leveldb"
	"github.com/df-mc/goleveldb/leveldb/opt"
	"github.com/df-mc/goleveldb/leveldb/util"
	"github.com/google/uuid"
)

// LevelDBStore keeps one record per entry, keyed by name or UUID, plus a UUID
// index pointing at the record.
type LevelDBStore struct {
	db *leveldb.DB
}

var (
	playerPrefix = []byte("player/")
	uuidPrefix   = []byte("uuid/")
)

// OpenLevelDB opens or creates the database in the directory at path.
func OpenLevelDB(path string) (*LevelDBStore, error) {
	if path == "" {
		return nil, errors.New("leveldb path must not be empty")
	}
	db, err := leveldb.OpenFile(path, &opt.Options{Compression: opt.FlateCompression})
	if err != nil {
		return nil, fmt.Errorf("open player database: %w", err)
	}
	return &LevelDBStore{db: db}, nil
}

func primaryKey(e Entry) []byte {
	if e.Name != "" {
		return append(bytes.Clone(playerPrefix), e.key()...)
	}
	return append(bytes.Clone(playerPrefix), e.UUID.String()...)
}

func uuidKey(id uuid.UUID) []byte {
	return append(bytes.Clone(uuidPrefix), id.String()...)
}

func encodeEntry(e Entry) []byte {
	b := make([]byte, 0, 16+len(e.Name))
	b = append(b, e.UUID[:]...)
	return append(b, e.Name...)
}

func decodeEntry(b []byte) (Entry, error) {
	if len(b) < 16 {
		return Entry{}, fmt.Errorf("player record too short: %v bytes", len(b))
	}
	var e Entry
	copy(e.UUID[:], b[:16])
	e.Name = string(b[16:])
	return e, nil
}

// matching returns the primary keys of every record matching e.
func (s *LevelDBStore) matching(e Entry) ([][]byte, error) {
	var keys [][]byte
	if e.Name != "" {
		k := primaryKey(Entry{Name: e.Name})
		ok, err := s.db.Has(k, nil)
		if err != nil {
			return nil, err
		}
		if ok {
			keys = append(keys, k)
		}
	}
	if e.UUID != uuid.Nil {
		k, err := s.db.Get(uuidKey(e.UUID), nil)
		switch {
		case errors.Is(err, leveldb.ErrNotFound):
		case err != nil:
			return nil, err
		default:
			if len(keys) == 0 || !bytes.Equal(keys[0], k) {
				keys = append(keys, k)
			}
		}
	}
	return keys, nil
}

// Contains reports whether a record or UUID index matches e.
func (s *LevelDBStore) Contains(e Entry) (bool, error) {
	keys, err := s.matching(e)
	return len(keys) != 0, err
}

// Add writes the record of e and its UUID index in one batch.
func (s *LevelDBStore) Add(e Entry) (bool, error) {
	keys, err := s.matching(e)
	if err != nil || len(keys) != 0 {
		return false, err
	}
	batch := new(leveldb.Batch)
	k := primaryKey(e)
	batch.Put(k, encodeEntry(e))
	if e.UUID != uuid.Nil {
		batch.Put(uuidKey(e.UUID), k)
	}
	if err := s.db.Write(batch, nil); err != nil {
		return false, fmt.Errorf("write player record: %w", err)
	}
	return true, nil
}

// Remove deletes the records matching e together with their UUID index.
func (s *LevelDBStore) Remove(e Entry) (bool, error) {
	keys, err := s.matching(e)
	if err != nil || len(keys) == 0 {
		return false, err
	}
	batch := new(leveldb.Batch)
	for _, k := range keys {
		b, err := s.db.Get(k, nil)
		if err != nil {
			return false, fmt.Errorf("read player record: %w", err)
		}
		stored, err := decodeEntry(b)
		if err != nil {
			return false, err
		}
		batch.Delete(k)
		if stored.UUID != uuid.Nil {
			batch.Delete(uuidKey(stored.UUID))
		}
	}
	if err := s.db.Write(batch, nil); err != nil {
		return false, fmt.Errorf("delete player record: %w", err)
	}
	return true, nil
}

func (s *LevelDBStore) Entries() ([]Entry, error) {
	it := s.db.NewIterator(util.BytesPrefix(playerPrefix), nil)
	defer it.Release()
	var entries []Entry
	for it.Next() {
		e, err := decodeEntry(it.Value())
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := it.Error(); err != nil {
		return nil, err
	}
	sortEntries(entries)
	return entries, nil
}

func (s *LevelDBStore) Close() error { return s.db.Close() }
