package repository

import (
	"errors"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
)

// LevelState is a world state persisted in LevelDB, for running the ledger
// outside a Fabric peer. Write sets are applied as a single batch.
type LevelState struct {
	db *leveldb.DB
}

// OpenLevelState opens or creates a LevelDB world state at path
func OpenLevelState(path string) (*LevelState, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &LevelState{db: db}, nil
}

// NewMemLevelState creates a LevelDB world state backed by memory
func NewMemLevelState() (*LevelState, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return &LevelState{db: db}, nil
}

// GetState returns the value for key, or nil when absent
func (l *LevelState) GetState(key string) ([]byte, error) {
	value, err := l.db.Get([]byte(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, nil
	}
	return value, err
}

// PutState stores a single key
func (l *LevelState) PutState(key string, value []byte) error {
	return l.db.Put([]byte(key), value, nil)
}

// DelState deletes a single key
func (l *LevelState) DelState(key string) error {
	return l.db.Delete([]byte(key), nil)
}

// WriteBatch applies puts and deletes atomically
func (l *LevelState) WriteBatch(puts map[string][]byte, deletes []string) error {
	batch := new(leveldb.Batch)
	for key, value := range puts {
		batch.Put([]byte(key), value)
	}
	for _, key := range deletes {
		batch.Delete([]byte(key))
	}
	return l.db.Write(batch, nil)
}

// Snapshot copies every key in the state
func (l *LevelState) Snapshot() (map[string][]byte, error) {
	iter := l.db.NewIterator(nil, nil)
	defer iter.Release()

	out := make(map[string][]byte)
	for iter.Next() {
		out[string(iter.Key())] = copyBytes(iter.Value())
	}
	return out, iter.Error()
}

// Close closes the underlying database
func (l *LevelState) Close() error {
	return l.db.Close()
}
