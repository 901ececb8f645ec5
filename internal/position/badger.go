package position

import (
	"context"
	"errors"
	"strings"

	"github.com/dgraph-io/badger/v3"

	"SignalSentinel/internal/model"
)

const badgerPrefix = "position/"

// BadgerStore persists states in an embedded BadgerDB, one key per instrument.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens (or creates) the database at dir.
func NewBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir)
	// Errors still come back from DB operations.
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerStore{db: db}, nil
}

func badgerKey(instrument string) []byte { return []byte(badgerPrefix + instrument) }

func (s *BadgerStore) Load(ctx context.Context, instrument string) (model.PositionState, bool, error) {
	if err := ctx.Err(); err != nil {
		return model.PositionState{}, false, err
	}
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(instrument))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return model.PositionState{}, false, nil
	}
	if err != nil {
		return model.PositionState{}, false, transient("badger load "+instrument, err)
	}
	state, err := decodeState(instrument, data)
	return state, true, err
}

// Save writes the whole record in a single transaction.
func (s *BadgerStore) Save(ctx context.Context, instrument string, state model.PositionState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encodeState(state)
	if err != nil {
		return err
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKey(instrument), data)
	}); err != nil {
		return transient("badger save "+instrument, err)
	}
	return nil
}

func (s *BadgerStore) Clear(ctx context.Context, instrument string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(badgerKey(instrument))
	}); err != nil {
		return transient("badger clear "+instrument, err)
	}
	return nil
}

// List skips records that fail to decode.
func (s *BadgerStore) List(ctx context.Context) (map[string]model.PositionState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make(map[string]model.PositionState)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(badgerPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			instrument := strings.TrimPrefix(string(item.Key()), badgerPrefix)
			data, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if state, err := decodeState(instrument, data); err == nil {
				out[instrument] = state
			}
		}
		return nil
	})
	if err != nil {
		return nil, transient("badger list", err)
	}
	return out, nil
}

// Close gracefully closes the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
