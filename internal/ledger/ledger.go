// Package ledger applies validated transactions to the unspent-output set
// and distributes the accumulated reward pool to block authorities.
package ledger

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Klingon-tech/klingnet-ledger/internal/log"
	"github.com/Klingon-tech/klingnet-ledger/internal/utxo"
	"github.com/Klingon-tech/klingnet-ledger/pkg/crypto"
	"github.com/Klingon-tech/klingnet-ledger/pkg/tx"
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

// Ledger errors.
var (
	ErrRewardOverflow     = errors.New("reward pool overflow")
	ErrNoAuthorities      = errors.New("no authorities to reward")
	ErrMissingInputs      = errors.New("transaction has unresolved inputs")
	ErrAlreadyInitialized = errors.New("ledger already initialized")
	ErrNotIterable        = errors.New("utxo set cannot be enumerated")
)

// SuccessHandler is called after a transaction is committed by Spend.
type SuccessHandler func(t *tx.Transaction)

// Ledger owns the unspent-output set and the reward pool.
type Ledger struct {
	mu       sync.RWMutex // Validation holds the read lock, mutations the write lock.
	utxos    utxo.Set
	verifier crypto.Verifier

	pool        types.Amount // Fees accumulated since the last dispersal.
	height      uint64       // Last finalized block height.
	initialized bool         // Genesis outputs have been loaded.

	onSuccess SuccessHandler
}

// New creates a ledger over set. When set persists metadata the reward pool,
// height and genesis flag are restored from it.
func New(set utxo.Set, verifier crypto.Verifier) (*Ledger, error) {
	if set == nil {
		return nil, fmt.Errorf("utxo set is nil")
	}
	if verifier == nil {
		return nil, fmt.Errorf("signature verifier is nil")
	}

	l := &Ledger{utxos: set, verifier: verifier}
	if err := l.loadState(); err != nil {
		return nil, fmt.Errorf("recover ledger state: %w", err)
	}
	return l, nil
}

// SetSuccessHandler registers fn to receive committed transactions.
func (l *Ledger) SetSuccessHandler(fn SuccessHandler) {
	l.mu.Lock()
	l.onSuccess = fn
	l.mu.Unlock()
}

// RewardPool returns the current undistributed reward.
func (l *Ledger) RewardPool() types.Amount {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.pool
}

// Height returns the last finalized block height.
func (l *Ledger) Height() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.height
}

// Initialized reports whether genesis outputs have been loaded.
func (l *Ledger) Initialized() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.initialized
}

// StateRoot returns the merkle commitment over the unspent-output set.
func (l *Ledger) StateRoot() (types.Hash, error) {
	it, ok := l.utxos.(utxo.Iterable)
	if !ok {
		return types.Hash{}, ErrNotIterable
	}
	defer log.Benchmark("state root")()
	l.mu.RLock()
	defer l.mu.RUnlock()
	return utxo.Commitment(it)
}

// Validate checks t against the current set without mutating anything.
// The verdict lists missing inputs instead of failing on them.
func (l *Ledger) Validate(t *tx.Transaction) (*tx.Verdict, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return t.ValidateWithUTXOs(utxo.NewProvider(l.utxos), l.verifier)
}

// commit writes cs atomically when the set supports it, otherwise one
// operation at a time. Metadata is dropped for sets without a Committer.
func (l *Ledger) commit(cs *utxo.Changeset) error {
	if c, ok := l.utxos.(utxo.Committer); ok {
		return c.Commit(cs)
	}
	for _, key := range cs.Spent {
		if err := l.utxos.Delete(key); err != nil {
			return fmt.Errorf("remove %s: %w", key.Short(), err)
		}
	}
	for i := range cs.Created {
		e := &cs.Created[i]
		if err := l.utxos.Put(e.Key, &e.Output); err != nil {
			return fmt.Errorf("insert %s: %w", e.Key.Short(), err)
		}
	}
	return nil
}
