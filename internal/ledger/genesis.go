package ledger

import (
	"fmt"

	"github.com/Klingon-tech/klingnet-ledger/internal/log"
	"github.com/Klingon-tech/klingnet-ledger/internal/utxo"
	"github.com/Klingon-tech/klingnet-ledger/pkg/tx"
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

// InitFromGenesis seeds the set with the initial outputs, each stored under
// GenesisKey(output). It runs once per ledger; later calls return
// ErrAlreadyInitialized.
func (l *Ledger) InitFromGenesis(outputs []tx.Output) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.initialized {
		return ErrAlreadyInitialized
	}

	cs := &utxo.Changeset{
		Created: make([]utxo.Entry, 0, len(outputs)),
		Meta:    map[string][]byte{metaGenesis: {1}},
	}
	seen := make(map[types.Hash]struct{}, len(outputs))
	var total types.Amount
	for i, out := range outputs {
		if out.Value.IsZero() {
			return fmt.Errorf("genesis output %d: %w", i, tx.ErrZeroOutputValue)
		}
		if err := out.Header.Validate(); err != nil {
			return fmt.Errorf("genesis output %d: %w", i, err)
		}
		sum, ok := total.Add(out.Value)
		if !ok {
			return fmt.Errorf("genesis output %d: %w", i, tx.ErrOutputOverflow)
		}
		total = sum

		key := tx.GenesisKey(out)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("genesis output %d: %w", i, tx.ErrDuplicateOutput)
		}
		seen[key] = struct{}{}
		exists, err := l.utxos.Has(key)
		if err != nil {
			return fmt.Errorf("genesis output %d: %w", i, err)
		}
		if exists {
			return fmt.Errorf("genesis output %d (%s): %w", i, key.Short(), tx.ErrOutputCollision)
		}
		cs.Created = append(cs.Created, utxo.Entry{Key: key, Output: out})
	}

	if err := l.commit(cs); err != nil {
		return fmt.Errorf("apply genesis: %w", err)
	}
	l.initialized = true

	log.Ledger.Info().Int("outputs", len(outputs)).Str("supply", total.String()).Msg("Ledger initialized from genesis")
	return nil
}
