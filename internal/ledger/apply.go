package ledger

import (
	"fmt"

	"github.com/Klingon-tech/klingnet-ledger/internal/log"
	"github.com/Klingon-tech/klingnet-ledger/internal/utxo"
	"github.com/Klingon-tech/klingnet-ledger/pkg/tx"
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

// Apply commits a transaction whose verdict had no missing inputs. The
// reward is added to the pool before the set is touched; an overflow leaves
// both unchanged. On success the registered SuccessHandler receives t.
func (l *Ledger) Apply(t *tx.Transaction, reward types.Amount) error {
	l.mu.Lock()
	if err := l.apply(t, reward); err != nil {
		l.mu.Unlock()
		return err
	}
	handler := l.onSuccess
	l.mu.Unlock()

	if handler != nil {
		handler(t)
	}
	return nil
}

func (l *Ledger) apply(t *tx.Transaction, reward types.Amount) error {
	pool, ok := l.pool.Add(reward)
	if !ok {
		return fmt.Errorf("%w: pool=%s reward=%s", ErrRewardOverflow, l.pool, reward)
	}

	keys := t.OutputKeys()
	cs := &utxo.Changeset{
		Spent:   t.Outpoints(),
		Created: make([]utxo.Entry, len(t.Outputs)),
		Meta:    map[string][]byte{metaPool: encodePool(pool)},
	}
	for i, out := range t.Outputs {
		cs.Created[i] = utxo.Entry{Key: keys[i], Output: out}
	}

	if err := l.commit(cs); err != nil {
		return fmt.Errorf("apply %s: %w", t.Hash().Short(), err)
	}
	l.pool = pool
	return nil
}

// Spend validates t and, if every input resolves, applies it. A transaction
// with unresolved inputs is rejected with ErrMissingInputs and nothing is
// mutated. On success the registered SuccessHandler receives t.
func (l *Ledger) Spend(t *tx.Transaction) error {
	l.mu.Lock()
	verdict, err := t.ValidateWithUTXOs(utxo.NewProvider(l.utxos), l.verifier)
	if err != nil {
		l.mu.Unlock()
		return err
	}
	if !verdict.Committable() {
		l.mu.Unlock()
		return fmt.Errorf("%w: %d missing, first %s",
			ErrMissingInputs, len(verdict.Missing), verdict.Missing[0].Short())
	}
	if err := l.apply(t, verdict.Reward); err != nil {
		l.mu.Unlock()
		return err
	}
	handler := l.onSuccess
	pool := l.pool
	l.mu.Unlock()

	log.Ledger.Debug().
		Str("tx", t.Hash().Short()).
		Int("inputs", len(t.Inputs)).
		Int("outputs", len(t.Outputs)).
		Str("reward", verdict.Reward.String()).
		Str("pool", pool.String()).
		Msg("Transaction committed")

	if handler != nil {
		handler(t)
	}
	return nil
}
