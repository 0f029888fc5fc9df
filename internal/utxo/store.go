package utxo

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Klingon-tech/klingnet-ledger/internal/storage"
	"github.com/Klingon-tech/klingnet-ledger/pkg/tx"
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

// Key prefixes for the UTXO store.
var (
	prefixUTXO = []byte("u/") // u/<key32> -> output JSON
	prefixMeta = []byte("m/") // m/<name> -> raw metadata
)

// Store implements Set and Committer backed by a storage.DB.
type Store struct {
	db storage.DB
}

// NewStore creates a new UTXO store backed by the given database.
func NewStore(db storage.DB) *Store {
	return &Store{db: db}
}

// utxoKey builds a storage key: "u/" + key(32).
func utxoKey(key types.Hash) []byte {
	out := make([]byte, len(prefixUTXO)+types.HashSize)
	copy(out, prefixUTXO)
	copy(out[len(prefixUTXO):], key[:])
	return out
}

// metaKey builds a metadata key: "m/" + name.
func metaKey(name string) []byte {
	return append(append([]byte{}, prefixMeta...), name...)
}

// Get retrieves the output stored under key.
func (s *Store) Get(key types.Hash) (*tx.Output, error) {
	data, err := s.db.Get(utxoKey(key))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", key.Short(), ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("utxo get: %w", err)
	}
	var out tx.Output
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("utxo unmarshal: %w", err)
	}
	return &out, nil
}

// Has checks if an output exists under key.
func (s *Store) Has(key types.Hash) (bool, error) {
	ok, err := s.db.Has(utxoKey(key))
	if err != nil {
		return false, fmt.Errorf("utxo has: %w", err)
	}
	return ok, nil
}

// Put stores an output under key.
func (s *Store) Put(key types.Hash, out *tx.Output) error {
	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("utxo marshal: %w", err)
	}
	if err := s.db.Put(utxoKey(key), data); err != nil {
		return fmt.Errorf("utxo put: %w", err)
	}
	return nil
}

// Delete removes the output stored under key.
func (s *Store) Delete(key types.Hash) error {
	if err := s.db.Delete(utxoKey(key)); err != nil {
		return fmt.Errorf("utxo delete: %w", err)
	}
	return nil
}

// Commit applies a changeset in one storage batch. Spent keys are removed
// before created outputs are written.
func (s *Store) Commit(cs *Changeset) error {
	var batch storage.Batch
	if b, ok := s.db.(storage.Batcher); ok {
		batch = b.NewBatch()
	} else {
		batch = storage.NewFallbackBatch(s.db)
	}

	for _, key := range cs.Spent {
		if err := batch.Delete(utxoKey(key)); err != nil {
			return fmt.Errorf("batch delete %s: %w", key.Short(), err)
		}
	}
	for _, e := range cs.Created {
		data, err := json.Marshal(&e.Output)
		if err != nil {
			return fmt.Errorf("utxo marshal: %w", err)
		}
		if err := batch.Put(utxoKey(e.Key), data); err != nil {
			return fmt.Errorf("batch put %s: %w", e.Key.Short(), err)
		}
	}
	for name, value := range cs.Meta {
		if err := batch.Put(metaKey(name), value); err != nil {
			return fmt.Errorf("batch put meta %s: %w", name, err)
		}
	}

	if err := batch.Commit(); err != nil {
		return fmt.Errorf("utxo commit: %w", err)
	}
	return nil
}

// GetMeta returns the metadata value stored under name.
func (s *Store) GetMeta(name string) ([]byte, bool, error) {
	data, err := s.db.Get(metaKey(name))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("meta get %s: %w", name, err)
	}
	return data, true, nil
}

// PutMeta stores a metadata value outside of a changeset.
func (s *Store) PutMeta(name string, value []byte) error {
	if err := s.db.Put(metaKey(name), value); err != nil {
		return fmt.Errorf("meta put %s: %w", name, err)
	}
	return nil
}

// ForEach iterates over all unspent outputs in the store.
func (s *Store) ForEach(fn func(Entry) error) error {
	return s.db.ForEach(prefixUTXO, func(key, value []byte) error {
		if len(key) != len(prefixUTXO)+types.HashSize {
			return fmt.Errorf("malformed utxo key %x", key)
		}
		var e Entry
		copy(e.Key[:], key[len(prefixUTXO):])
		if err := json.Unmarshal(value, &e.Output); err != nil {
			return fmt.Errorf("utxo unmarshal: %w", err)
		}
		return fn(e)
	})
}

// Count returns the number of unspent outputs.
func (s *Store) Count() (int, error) {
	n := 0
	err := s.db.ForEach(prefixUTXO, func(_, _ []byte) error {
		n++
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("utxo count: %w", err)
	}
	return n, nil
}

// ClearAll removes every output and all metadata.
func (s *Store) ClearAll() error {
	var keys [][]byte
	for _, prefix := range [][]byte{prefixUTXO, prefixMeta} {
		if err := s.db.ForEach(prefix, func(key, _ []byte) error {
			k := make([]byte, len(key))
			copy(k, key)
			keys = append(keys, k)
			return nil
		}); err != nil {
			return fmt.Errorf("scan prefix %s: %w", prefix, err)
		}
	}
	for _, key := range keys {
		if err := s.db.Delete(key); err != nil {
			return fmt.Errorf("delete utxo key: %w", err)
		}
	}
	return nil
}
