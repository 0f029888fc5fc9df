// Package node wires storage, the ledger, the mempool and the block
// producer into a running ledger node.
package node

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Klingon-tech/klingnet-ledger/config"
	"github.com/Klingon-tech/klingnet-ledger/internal/consensus"
	"github.com/Klingon-tech/klingnet-ledger/internal/ledger"
	klog "github.com/Klingon-tech/klingnet-ledger/internal/log"
	"github.com/Klingon-tech/klingnet-ledger/internal/mempool"
	"github.com/Klingon-tech/klingnet-ledger/internal/miner"
	"github.com/Klingon-tech/klingnet-ledger/internal/storage"
	"github.com/Klingon-tech/klingnet-ledger/internal/utxo"
	"github.com/Klingon-tech/klingnet-ledger/pkg/crypto"
	"github.com/Klingon-tech/klingnet-ledger/pkg/tx"
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

// Node is a single ledger node.
type Node struct {
	cfg     *config.Config
	genesis *config.Genesis
	logger  zerolog.Logger

	// Core
	db        storage.DB
	utxoStore *utxo.Store
	ledger    *ledger.Ledger
	pool      *mempool.Pool

	// Block production
	authorities  *consensus.AuthoritySet
	tracker      *consensus.AuthorityTracker
	producer     *miner.Producer
	authorityKey *crypto.PrivateKey
	produceMu    sync.Mutex

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates and initializes a new Node. It opens storage, applies the
// genesis allocations on first start and builds the mempool and producer,
// but does NOT start background goroutines. Call Start() for that.
func New(cfg *config.Config) (*Node, error) {
	// ── 1. Genesis ──────────────────────────────────────────────────
	genesis, err := loadGenesis(cfg)
	if err != nil {
		return nil, fmt.Errorf("load genesis: %w", err)
	}
	logger := klog.Node.With().Str("chain_id", genesis.ChainID).Logger()

	logger.Info().
		Str("chain_id", genesis.ChainID).
		Str("network", string(cfg.Network)).
		Int("authorities", len(genesis.Protocol.Authorities)).
		Msg("Starting Klingnet Ledger Node")

	// ── 2. Open storage ─────────────────────────────────────────────
	db, err := storage.Open(cfg.Storage.Backend, cfg.LedgerDir())
	if err != nil {
		return nil, fmt.Errorf("open %s storage at %s: %w", cfg.Storage.Backend, cfg.LedgerDir(), err)
	}
	logger.Info().Str("backend", cfg.Storage.Backend).Str("path", cfg.LedgerDir()).Msg("Database opened")

	n := &Node{
		cfg:     cfg,
		genesis: genesis,
		logger:  logger,
		db:      db,
	}
	if err := n.setup(); err != nil {
		db.Close()
		return nil, err
	}
	n.ctx, n.cancel = context.WithCancel(context.Background())
	return n, nil
}

func (n *Node) setup() error {
	// ── 3. Ledger ───────────────────────────────────────────────────
	n.utxoStore = utxo.NewStore(storage.NewPrefixDB(n.db, storage.ChainPrefix(n.genesis.ChainID)))
	l, err := ledger.New(n.utxoStore, crypto.SchnorrVerifier{})
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	n.ledger = l

	if !l.Initialized() {
		if err := l.InitFromGenesis(genesisOutputs(n.genesis)); err != nil {
			return fmt.Errorf("apply genesis: %w", err)
		}
	}

	// ── 4. Mempool ──────────────────────────────────────────────────
	n.pool = mempool.New(l, n.cfg.Mempool.MaxSize, n.cfg.Mempool.Workers)

	// ── 5. Authorities ──────────────────────────────────────────────
	if len(n.genesis.Protocol.Authorities) == 0 {
		if n.cfg.Block.Produce {
			return fmt.Errorf("block production: %w", consensus.ErrNoAuthorities)
		}
		return nil
	}
	auths, err := consensus.NewAuthoritySet(n.genesis.Protocol.Authorities)
	if err != nil {
		return fmt.Errorf("authority set: %w", err)
	}
	n.authorities = auths

	if n.cfg.Block.KeyFile != "" {
		key, err := loadAuthorityKey(n.cfg.Block.KeyFile)
		if err != nil {
			return fmt.Errorf("load authority key %s: %w", n.cfg.Block.KeyFile, err)
		}
		if err := auths.SetSigner(key); err != nil {
			key.Zero()
			return fmt.Errorf("authority key: %w", err)
		}
		n.authorityKey = key
		pub := key.PublicKey()
		n.logger.Info().Str("pubkey", pub.String()[:16]+"...").Msg("Authority key loaded")
	}

	// ── 6. Block producer ───────────────────────────────────────────
	n.tracker = consensus.NewAuthorityTracker(n.cfg.Block.Interval)
	n.producer = miner.New(l, n.pool, auths)
	n.producer.SetTracker(n.tracker)
	n.producer.SetMaxBlockTxs(n.cfg.Block.MaxTxs)
	return nil
}

// Start launches background goroutines: pending expiry and, when enabled,
// block production.
func (n *Node) Start() error {
	if n.cfg.Block.Produce && n.producer == nil {
		return fmt.Errorf("block production: %w", consensus.ErrNoAuthorities)
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.runExpiry(n.cfg.Mempool.PendingTTL)
	}()

	if n.cfg.Block.Produce {
		n.logger.Info().
			Dur("interval", n.cfg.Block.Interval).
			Int("max_txs", n.cfg.Block.MaxTxs).
			Msg("Block production enabled")

		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			n.runProducer(n.cfg.Block.Interval)
		}()
	}

	n.logger.Info().
		Uint64("height", n.ledger.Height()).
		Str("reward_pool", n.ledger.RewardPool().String()).
		Bool("producing", n.cfg.Block.Produce).
		Msg("Node started successfully")
	return nil
}

// Stop performs graceful shutdown in reverse order.
func (n *Node) Stop() {
	n.cancel()
	n.wg.Wait()

	if n.authorityKey != nil {
		n.authorityKey.Zero()
	}
	if n.db != nil {
		n.db.Close()
	}

	n.logger.Info().Msg("Goodbye!")
}

// SubmitTransaction validates a transaction and adds it to the mempool.
func (n *Node) SubmitTransaction(t *tx.Transaction) (*tx.Verdict, error) {
	v, err := n.pool.Add(t)
	if err != nil {
		return nil, err
	}
	n.logger.Debug().
		Str("tx", t.Hash().Short()).
		Bool("ready", v.Committable()).
		Str("reward", v.Reward.String()).
		Msg("Transaction accepted")
	return v, nil
}

// ProduceBlock produces the next block immediately.
func (n *Node) ProduceBlock(ctx context.Context) (*miner.Result, error) {
	if n.producer == nil {
		return nil, consensus.ErrNoAuthorities
	}
	n.produceMu.Lock()
	defer n.produceMu.Unlock()
	return n.producer.ProduceBlock(ctx, n.ledger.Height()+1)
}

// Height returns the last finalized block height.
func (n *Node) Height() uint64 {
	return n.ledger.Height()
}

// RewardPool returns the value waiting for the next dispersal.
func (n *Node) RewardPool() types.Amount {
	return n.ledger.RewardPool()
}

// StateRoot returns the commitment over the current UTXO set.
func (n *Node) StateRoot() (types.Hash, error) {
	return n.ledger.StateRoot()
}

// Ledger returns the node's ledger.
func (n *Node) Ledger() *ledger.Ledger { return n.ledger }

// Pool returns the node's mempool.
func (n *Node) Pool() *mempool.Pool { return n.pool }

// Tracker returns per-authority statistics, or nil when the chain has no authorities.
func (n *Node) Tracker() *consensus.AuthorityTracker { return n.tracker }

// Genesis returns the genesis the node runs.
func (n *Node) Genesis() *config.Genesis { return n.genesis }

// ── Block production ────────────────────────────────────────────────

func (n *Node) runProducer(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-n.ctx.Done():
			n.logger.Info().Msg("Block production stopped")
			return
		case <-ticker.C:
			if _, err := n.ProduceBlock(n.ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				// A block that cannot finalize leaves the ledger between
				// blocks; production halts until an operator intervenes.
				n.logger.Error().Err(err).Uint64("height", n.ledger.Height()+1).Msg("Failed to produce block, halting production")
				return
			}
		}
	}
}

func (n *Node) runExpiry(ttl time.Duration) {
	interval := ttl / 2
	if interval <= 0 {
		interval = ttl
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-n.ctx.Done():
			return
		case <-ticker.C:
			if expired := n.pool.ExpirePending(ttl); expired > 0 {
				n.logger.Info().Int("count", expired).Msg("Expired pending transactions")
			}
		}
	}
}
