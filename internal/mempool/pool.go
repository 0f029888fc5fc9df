// Package mempool holds transactions waiting for block inclusion. A
// transaction whose inputs all resolve is ready; one that spends outputs
// not yet committed waits as pending until its parents are confirmed.
package mempool

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Klingon-tech/klingnet-ledger/internal/log"
	"github.com/Klingon-tech/klingnet-ledger/pkg/tx"
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

// Mempool errors.
var (
	ErrAlreadyExists = errors.New("transaction already in mempool")
	ErrConflict      = errors.New("transaction conflicts with existing mempool entry")
	ErrPoolFull      = errors.New("mempool is full")
	ErrValidation    = errors.New("transaction failed validation")
)

// Validator is the read-only ledger view transactions are checked against.
type Validator interface {
	Validate(t *tx.Transaction) (*tx.Verdict, error)
}

// entry wraps a transaction with its verdict and metadata.
type entry struct {
	tx      *tx.Transaction
	txHash  types.Hash
	seq     uint64 // Submission order.
	size    int    // Encoded bytes.
	reward  types.Amount
	missing map[types.Hash]struct{} // Unresolved outpoints; empty when ready.
	added   time.Time
}

func (e *entry) ready() bool {
	return len(e.missing) == 0
}

// Pool holds unconfirmed transactions.
type Pool struct {
	mu      sync.RWMutex
	txs     map[types.Hash]*entry       // txHash -> entry
	spends  map[types.Hash]types.Hash   // outpoint -> txHash (conflict index)
	waiting map[types.Hash][]types.Hash // missing outpoint -> pending txHashes
	nextSeq uint64
	maxSize int
	workers int
	policy  *Policy
	ledger  Validator
}

// New creates a new mempool validating against ledger.
func New(ledger Validator, maxSize, workers int) *Pool {
	if maxSize <= 0 {
		maxSize = 5000
	}
	if workers <= 0 {
		workers = 1
	}
	return &Pool{
		txs:     make(map[types.Hash]*entry),
		spends:  make(map[types.Hash]types.Hash),
		waiting: make(map[types.Hash][]types.Hash),
		maxSize: maxSize,
		workers: workers,
		policy:  DefaultPolicy(),
		ledger:  ledger,
	}
}

// SetPolicy replaces the acceptance policy.
func (p *Pool) SetPolicy(policy *Policy) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.policy = policy
}

// Add validates and adds a transaction to the mempool.
// Rejects duplicates, double-spend conflicts and hard validation failures.
// Transactions with missing inputs are kept as pending.
func (p *Pool) Add(transaction *tx.Transaction) (*tx.Verdict, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	txHash := transaction.Hash()

	// Reject duplicates.
	if _, exists := p.txs[txHash]; exists {
		return nil, ErrAlreadyExists
	}

	if err := p.policy.Check(transaction); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	// Check for double-spend conflicts.
	for _, in := range transaction.Inputs {
		if conflictHash, exists := p.spends[in.Outpoint]; exists {
			return nil, fmt.Errorf("%w: input %s already spent by %s", ErrConflict, in.Outpoint.Short(), conflictHash.Short())
		}
	}

	verdict, err := p.ledger.Validate(transaction)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	e := &entry{
		tx:      transaction,
		txHash:  txHash,
		size:    len(transaction.Bytes()),
		reward:  verdict.Reward,
		missing: make(map[types.Hash]struct{}, len(verdict.Missing)),
		added:   time.Now(),
	}
	for _, op := range verdict.Missing {
		e.missing[op] = struct{}{}
	}

	// Check pool capacity: evict the cheapest entry if the new tx pays more.
	if len(p.txs) >= p.maxSize {
		victim := p.cheapestLocked()
		if victim == nil || !cheaper(victim, e) {
			return nil, ErrPoolFull
		}
		p.removeLocked(victim.txHash)
	}

	p.insertLocked(e)
	return verdict, nil
}

func (p *Pool) insertLocked(e *entry) {
	e.seq = p.nextSeq
	p.nextSeq++
	p.txs[e.txHash] = e
	for _, in := range e.tx.Inputs {
		p.spends[in.Outpoint] = e.txHash
	}
	for op := range e.missing {
		p.waiting[op] = append(p.waiting[op], e.txHash)
	}
}

// Remove removes a transaction from the mempool by hash.
func (p *Pool) Remove(txHash types.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removeLocked(txHash)
}

func (p *Pool) removeLocked(txHash types.Hash) {
	e, exists := p.txs[txHash]
	if !exists {
		return
	}
	// Clean up spend index.
	for _, in := range e.tx.Inputs {
		if p.spends[in.Outpoint] == txHash {
			delete(p.spends, in.Outpoint)
		}
	}
	for op := range e.missing {
		p.unwaitLocked(op, txHash)
	}
	delete(p.txs, txHash)
}

func (p *Pool) unwaitLocked(op, txHash types.Hash) {
	list := p.waiting[op]
	for i, h := range list {
		if h == txHash {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(p.waiting, op)
	} else {
		p.waiting[op] = list
	}
}

// Confirm removes a committed transaction, drops pool entries that spend
// the same inputs, and re-validates pending transactions waiting on its
// outputs. Returns the hashes promoted to ready.
func (p *Pool) Confirm(committed *tx.Transaction) []types.Hash {
	p.mu.Lock()
	defer p.mu.Unlock()

	txHash := committed.Hash()
	p.removeLocked(txHash)

	// Anything else spending the same inputs can never commit.
	for _, in := range committed.Inputs {
		if other, ok := p.spends[in.Outpoint]; ok {
			p.removeLocked(other)
		}
	}

	var candidates []types.Hash
	for _, key := range committed.OutputKeys() {
		for _, h := range p.waiting[key] {
			if e, ok := p.txs[h]; ok {
				delete(e.missing, key)
				if e.ready() {
					candidates = append(candidates, h)
				}
			}
		}
		delete(p.waiting, key)
	}

	var promoted []types.Hash
	for _, h := range candidates {
		if p.revalidateLocked(h) {
			promoted = append(promoted, h)
		}
	}
	return promoted
}

// revalidateLocked re-checks an entry whose inputs now all resolve. Entries
// that fail are dropped; entries still missing inputs stay pending.
func (p *Pool) revalidateLocked(txHash types.Hash) bool {
	e := p.txs[txHash]
	verdict, err := p.ledger.Validate(e.tx)
	if err != nil {
		log.Mempool.Debug().Err(err).Str("tx", txHash.Short()).Msg("Dropping pending transaction")
		p.removeLocked(txHash)
		return false
	}
	for _, op := range verdict.Missing {
		e.missing[op] = struct{}{}
		p.waiting[op] = append(p.waiting[op], txHash)
	}
	e.reward = verdict.Reward
	return e.ready()
}

// Has checks if a transaction exists in the mempool.
func (p *Pool) Has(txHash types.Hash) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, exists := p.txs[txHash]
	return exists
}

// Get retrieves a transaction from the mempool.
func (p *Pool) Get(txHash types.Hash) *tx.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, exists := p.txs[txHash]
	if !exists {
		return nil
	}
	return e.tx
}

// IsReady reports whether a pooled transaction has all inputs resolved.
func (p *Pool) IsReady(txHash types.Hash) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, exists := p.txs[txHash]
	return exists && e.ready()
}

// GetReward returns the reward a pooled transaction pays (0 if unknown).
func (p *Pool) GetReward(txHash types.Hash) types.Amount {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, exists := p.txs[txHash]
	if !exists {
		return types.Amount{}
	}
	return e.reward
}

// Count returns the number of transactions in the mempool.
func (p *Pool) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.txs)
}

// PendingCount returns the number of transactions waiting for inputs.
func (p *Pool) PendingCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n := 0
	for _, e := range p.txs {
		if !e.ready() {
			n++
		}
	}
	return n
}

// Hashes returns the hashes of all transactions in the mempool.
func (p *Pool) Hashes() []types.Hash {
	p.mu.RLock()
	defer p.mu.RUnlock()
	hashes := make([]types.Hash, 0, len(p.txs))
	for h := range p.txs {
		hashes = append(hashes, h)
	}
	return hashes
}

// SelectForBlock returns ready transactions in submission order, up to
// the given limit.
func (p *Pool) SelectForBlock(limit int) []*tx.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()

	entries := make([]*entry, 0, len(p.txs))
	for _, e := range p.txs {
		if e.ready() {
			entries = append(entries, e)
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].seq < entries[j].seq
	})

	if limit > len(entries) {
		limit = len(entries)
	}

	result := make([]*tx.Transaction, limit)
	for i := 0; i < limit; i++ {
		result[i] = entries[i].tx
	}
	return result
}
