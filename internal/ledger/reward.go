package ledger

import (
	"fmt"

	"github.com/Klingon-tech/klingnet-ledger/internal/log"
	"github.com/Klingon-tech/klingnet-ledger/internal/utxo"
	"github.com/Klingon-tech/klingnet-ledger/pkg/tx"
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

// Dispersal describes one Finalize call.
type Dispersal struct {
	Height    uint64       `json:"height"`
	Taken     types.Amount `json:"taken"`     // Pool drained at the start of the call.
	Share     types.Amount `json:"share"`     // Value minted per authority.
	Remainder types.Amount `json:"remainder"` // Carried over to the next block.
	Minted    []utxo.Entry `json:"minted"`    // Newly inserted reward outputs.
}

// Finalize closes a block: it drains the reward pool and splits it evenly
// across authorities, minting one output per authority keyed by
// RewardKey(output, height). The remainder of the integer division stays in
// the pool. Reward keys already in the set are skipped, so repeating a
// height mints nothing twice.
//
// The drained pool is not restored when the authority list is empty
// (ErrNoAuthorities) or when the per-authority share rounds down to zero.
func (l *Ledger) Finalize(height uint64, authorities []types.PublicKey) (*Dispersal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// The pool is drained up front. In-memory state changes only once the
	// matching commit has succeeded.
	taken := l.pool
	var empty types.Amount
	d := &Dispersal{Height: height, Taken: taken}

	if len(authorities) == 0 {
		if err := l.commit(&utxo.Changeset{Meta: map[string][]byte{metaPool: encodePool(empty)}}); err != nil {
			return nil, fmt.Errorf("finalize %d: %w", height, err)
		}
		l.pool = empty
		log.Ledger.Error().Uint64("height", height).Str("lost", taken.String()).Msg("No authorities, reward pool dropped")
		return nil, fmt.Errorf("finalize %d: %w", height, ErrNoAuthorities)
	}

	n := uint64(len(authorities))
	share := taken.Div(n)
	distributed, ok := share.Mul(n)
	if !ok {
		return nil, fmt.Errorf("finalize %d: share * %d: %w", height, n, ErrRewardOverflow)
	}
	remainder, ok := taken.Sub(distributed)
	if !ok {
		return nil, fmt.Errorf("finalize %d: remainder: %w", height, ErrRewardOverflow)
	}
	d.Share = share

	cs := &utxo.Changeset{Meta: map[string][]byte{metaHeight: encodeHeight(height)}}

	if share.IsZero() {
		cs.Meta[metaPool] = encodePool(empty)
		if err := l.commit(cs); err != nil {
			return nil, fmt.Errorf("finalize %d: %w", height, err)
		}
		l.pool = empty
		l.height = height
		if !taken.IsZero() {
			log.Ledger.Warn().Uint64("height", height).Str("lost", taken.String()).
				Int("authorities", len(authorities)).Msg("Reward share rounds to zero, pool dropped")
		}
		return d, nil
	}

	seen := make(map[types.Hash]struct{}, len(authorities))
	for _, authority := range authorities {
		out := tx.Output{Value: share, PubKey: authority, Header: tx.DefaultHeader}
		key := tx.RewardKey(out, height)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		exists, err := l.utxos.Has(key)
		if err != nil {
			return nil, fmt.Errorf("finalize %d: %w", height, err)
		}
		if exists {
			continue
		}
		cs.Created = append(cs.Created, utxo.Entry{Key: key, Output: out})
	}
	cs.Meta[metaPool] = encodePool(remainder)

	if err := l.commit(cs); err != nil {
		return nil, fmt.Errorf("finalize %d: %w", height, err)
	}
	l.pool = remainder
	l.height = height
	d.Remainder = remainder
	d.Minted = cs.Created

	log.Ledger.Info().
		Uint64("height", height).
		Str("share", share.String()).
		Int("minted", len(cs.Created)).
		Str("remainder", remainder.String()).
		Msg("Block reward dispersed")
	return d, nil
}
