// Package utxo manages the unspent-output set.
package utxo

import (
	"errors"

	"github.com/Klingon-tech/klingnet-ledger/pkg/tx"
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

// ErrNotFound is returned by Set.Get when no output is stored under a key.
var ErrNotFound = errors.New("utxo not found")

// Entry is an unspent output together with its storage key.
type Entry struct {
	Key    types.Hash `json:"key"`
	Output tx.Output  `json:"output"`
}

// Set is the interface for UTXO storage.
type Set interface {
	Get(key types.Hash) (*tx.Output, error)
	Has(key types.Hash) (bool, error)
	Put(key types.Hash, out *tx.Output) error
	Delete(key types.Hash) error
}

// Changeset is every mutation produced by applying one transaction or one
// reward dispersal.
type Changeset struct {
	Spent   []types.Hash
	Created []Entry
	// Meta holds ledger metadata written in the same commit.
	Meta map[string][]byte
}

// Committer is implemented by sets that can apply a changeset atomically.
type Committer interface {
	Commit(cs *Changeset) error
}

// Provider adapts a Set to tx.UTXOProvider.
type Provider struct {
	set Set
}

// NewProvider wraps set for transaction validation.
func NewProvider(set Set) *Provider {
	return &Provider{set: set}
}

// GetUTXO looks up key. A missing key is reported as found=false.
func (p *Provider) GetUTXO(key types.Hash) (tx.Output, bool, error) {
	out, err := p.set.Get(key)
	if errors.Is(err, ErrNotFound) {
		return tx.Output{}, false, nil
	}
	if err != nil {
		return tx.Output{}, false, err
	}
	return *out, true, nil
}

// HasUTXO reports whether key is present.
func (p *Provider) HasUTXO(key types.Hash) (bool, error) {
	return p.set.Has(key)
}
