package mempool

import (
	"fmt"

	"github.com/Klingon-tech/klingnet-ledger/config"
	"github.com/Klingon-tech/klingnet-ledger/pkg/tx"
)

// DefaultMaxTxSize is the maximum transaction size in bytes (encoded form).
const DefaultMaxTxSize = 256_000

// Policy defines transaction acceptance rules.
type Policy struct {
	MaxTxSize int // Maximum transaction size in encoded bytes.
}

// DefaultPolicy returns a policy with sensible defaults.
func DefaultPolicy() *Policy {
	return &Policy{
		MaxTxSize: DefaultMaxTxSize,
	}
}

// Check validates a transaction against policy rules.
// Policy rules can vary per node; the input and output limits mirror
// ledger validation so oversized transactions are rejected before any
// UTXO lookups.
func (p *Policy) Check(transaction *tx.Transaction) error {
	size := len(transaction.Bytes())
	if p.MaxTxSize > 0 && size > p.MaxTxSize {
		return fmt.Errorf("transaction too large: %d bytes, max %d", size, p.MaxTxSize)
	}
	if len(transaction.Inputs) > config.MaxTxInputs {
		return fmt.Errorf("%w: %d, max %d", tx.ErrTooManyInputs, len(transaction.Inputs), config.MaxTxInputs)
	}
	if len(transaction.Outputs) > config.MaxTxOutputs {
		return fmt.Errorf("%w: %d, max %d", tx.ErrTooManyOutputs, len(transaction.Outputs), config.MaxTxOutputs)
	}
	return nil
}
