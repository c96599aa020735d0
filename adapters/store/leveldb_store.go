package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/matenet/pin/core"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
)

// LevelDBStore persists keys in a local LevelDB database
type LevelDBStore struct {
	db     *leveldb.DB
	prefix []byte
}

// OpenLevelDBStore opens (or creates) the database in dir
func OpenLevelDBStore(dir string) (*LevelDBStore, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open leveldb at %s: %w", dir, err)
	}
	return newLevelDBStore(db), nil
}

// OpenLevelDBStorage opens the database on an arbitrary goleveldb storage,
// e.g. storage.NewMemStorage in tests
func OpenLevelDBStorage(stor storage.Storage) (*LevelDBStore, error) {
	db, err := leveldb.Open(stor, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open leveldb: %w", err)
	}
	return newLevelDBStore(db), nil
}

func newLevelDBStore(db *leveldb.DB) *LevelDBStore {
	return &LevelDBStore{db: db, prefix: []byte("pin:")}
}

func (s *LevelDBStore) key(k string) []byte {
	return append(append([]byte{}, s.prefix...), k...)
}

func (s *LevelDBStore) Get(ctx context.Context, key string) (string, error) {
	value, err := s.db.Get(s.key(key), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return "", core.ErrKeyNotFound
		}
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return string(value), nil
}

// Set writes with fsync
func (s *LevelDBStore) Set(ctx context.Context, key, value string) error {
	if err := s.db.Put(s.key(key), []byte(value), &opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (s *LevelDBStore) Delete(ctx context.Context, key string) error {
	if err := s.db.Delete(s.key(key), nil); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Close closes the database
func (s *LevelDBStore) Close() error {
	return s.db.Close()
}
