// Package miner produces blocks: it commits ready mempool transactions to
// the ledger in submission order and then disperses the accumulated reward
// pool to the block's authorities.
package miner

import (
	"context"
	"errors"
	"fmt"

	"github.com/Klingon-tech/klingnet-ledger/config"
	"github.com/Klingon-tech/klingnet-ledger/internal/consensus"
	"github.com/Klingon-tech/klingnet-ledger/internal/ledger"
	"github.com/Klingon-tech/klingnet-ledger/internal/log"
	"github.com/Klingon-tech/klingnet-ledger/internal/mempool"
	"github.com/Klingon-tech/klingnet-ledger/pkg/tx"
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

// Ledger is the state a producer commits to.
type Ledger interface {
	Spend(t *tx.Transaction) error
	Finalize(height uint64, authorities []types.PublicKey) (*ledger.Dispersal, error)
	RewardPool() types.Amount
	StateRoot() (types.Hash, error)
}

// MempoolSelector supplies and settles block candidates.
type MempoolSelector interface {
	SelectForBlock(limit int) []*tx.Transaction
	ValidateBatch(ctx context.Context, txs []*tx.Transaction) ([]mempool.BatchResult, error)
	Confirm(t *tx.Transaction) []types.Hash
	Remove(txHash types.Hash)
}

// ContextProvider returns the block context for a height.
type ContextProvider interface {
	Context(height uint64) consensus.BlockContext
}

// Result summarizes one produced block.
type Result struct {
	Height     uint64            `json:"height"`
	Included   []types.Hash      `json:"included"`
	Rejected   []types.Hash      `json:"rejected,omitempty"`
	RewardPool types.Amount      `json:"reward_pool"` // Pool carried to the next block.
	StateRoot  types.Hash        `json:"state_root"`
	Dispersal  *ledger.Dispersal `json:"dispersal"`
}

// Producer builds blocks on top of a ledger.
type Producer struct {
	ledger      Ledger
	pool        MempoolSelector
	contexts    ContextProvider
	tracker     *consensus.AuthorityTracker // nil = no stats
	maxBlockTxs int
}

// New creates a block producer.
func New(l Ledger, pool MempoolSelector, contexts ContextProvider) *Producer {
	return &Producer{
		ledger:      l,
		pool:        pool,
		contexts:    contexts,
		maxBlockTxs: config.MaxBlockTxs,
	}
}

// SetTracker enables per-authority block and reward accounting.
func (p *Producer) SetTracker(t *consensus.AuthorityTracker) {
	p.tracker = t
}

// SetMaxBlockTxs bounds the transactions committed per block.
func (p *Producer) SetMaxBlockTxs(n int) {
	if n > 0 {
		p.maxBlockTxs = n
	}
}

// ProduceBlock commits ready transactions and finalizes the block at height.
// Transactions are validated concurrently, then applied one at a time in
// submission order; any that fail to apply are dropped from the pool.
// A Finalize error is returned and the block is not complete.
func (p *Producer) ProduceBlock(ctx context.Context, height uint64) (*Result, error) {
	res := &Result{Height: height}

	selected := p.pool.SelectForBlock(p.maxBlockTxs)
	checks, err := p.pool.ValidateBatch(ctx, selected)
	if err != nil {
		return nil, fmt.Errorf("validate candidates: %w", err)
	}

	for i, t := range selected {
		txHash := t.Hash()
		if checks[i].Err != nil {
			log.Miner.Debug().Err(checks[i].Err).Str("tx", txHash.Short()).Msg("Dropping invalid transaction")
			p.pool.Remove(txHash)
			res.Rejected = append(res.Rejected, txHash)
			continue
		}
		if err := p.ledger.Spend(t); err != nil {
			// An earlier transaction in this block consumed an input.
			log.Miner.Debug().Err(err).Str("tx", txHash.Short()).Msg("Dropping transaction")
			p.pool.Remove(txHash)
			res.Rejected = append(res.Rejected, txHash)
			continue
		}
		p.pool.Confirm(t)
		res.Included = append(res.Included, txHash)
	}

	bc := p.contexts.Context(height)
	authorities := bc.Authorities()
	dispersal, err := p.ledger.Finalize(height, authorities)
	if err != nil {
		return nil, fmt.Errorf("finalize block %d: %w", height, err)
	}
	res.Dispersal = dispersal
	res.RewardPool = p.ledger.RewardPool()

	root, err := p.ledger.StateRoot()
	switch {
	case err == nil:
		res.StateRoot = root
	case !errors.Is(err, ledger.ErrNotIterable):
		return nil, fmt.Errorf("state root: %w", err)
	}

	if p.tracker != nil {
		for _, pub := range authorities {
			p.tracker.RecordBlock(pub)
		}
		for _, e := range dispersal.Minted {
			p.tracker.RecordReward(e.Output.PubKey, e.Output.Value)
		}
	}

	log.Miner.Info().
		Uint64("height", height).
		Int("txs", len(res.Included)).
		Int("rejected", len(res.Rejected)).
		Str("share", dispersal.Share.String()).
		Str("pool", res.RewardPool.String()).
		Msg("Block produced")
	return res, nil
}
