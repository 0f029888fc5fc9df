package tx

import (
	"errors"
	"fmt"

	"github.com/Klingon-tech/klingnet-ledger/config"
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

// Structural validation errors.
var (
	ErrNoInputs        = errors.New("transaction has no inputs")
	ErrNoOutputs       = errors.New("transaction has no outputs")
	ErrDuplicateInput  = errors.New("duplicate input")
	ErrDuplicateOutput = errors.New("duplicate output")
	ErrTooManyInputs   = errors.New("too many inputs")
	ErrTooManyOutputs  = errors.New("too many outputs")
)

// Validate checks transaction structure.
// This does NOT consult the UTXO set (see ValidateWithUTXOs).
func (tx *Transaction) Validate() error {
	if len(tx.Inputs) == 0 {
		return ErrNoInputs
	}
	if len(tx.Outputs) == 0 {
		return ErrNoOutputs
	}
	if len(tx.Inputs) > config.MaxTxInputs {
		return fmt.Errorf("%w: %d inputs, max %d", ErrTooManyInputs, len(tx.Inputs), config.MaxTxInputs)
	}
	if len(tx.Outputs) > config.MaxTxOutputs {
		return fmt.Errorf("%w: %d outputs, max %d", ErrTooManyOutputs, len(tx.Outputs), config.MaxTxOutputs)
	}

	// Inputs are keyed by outpoint alone: two inputs naming the same
	// outpoint are duplicates even when their signatures differ.
	seenIn := make(map[types.Hash]struct{}, len(tx.Inputs))
	for i, in := range tx.Inputs {
		if _, dup := seenIn[in.Outpoint]; dup {
			return fmt.Errorf("input %d: %w", i, ErrDuplicateInput)
		}
		seenIn[in.Outpoint] = struct{}{}
	}

	// Outputs are compared field by field.

	seenOut := make(map[Output]struct{}, len(tx.Outputs))
	for i, out := range tx.Outputs {
		if _, dup := seenOut[out]; dup {
			return fmt.Errorf("output %d: %w", i, ErrDuplicateOutput)
		}
		seenOut[out] = struct{}{}
	}

	return nil
}

// Outpoints returns the outpoint of every input, in order.
func (tx *Transaction) Outpoints() []types.Hash {
	ops := make([]types.Hash, len(tx.Inputs))
	for i, in := range tx.Inputs {
		ops[i] = in.Outpoint
	}
	return ops
}
