package tx

import (
	"errors"
	"fmt"

	"github.com/Klingon-tech/klingnet-ledger/pkg/crypto"
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

// UTXO-aware validation errors.
var (
	ErrInvalidSig        = errors.New("invalid signature")
	ErrInputOverflow     = errors.New("input values overflow")
	ErrOutputOverflow    = errors.New("output values overflow")
	ErrZeroOutputValue   = errors.New("output value is zero")
	ErrOutputCollision   = errors.New("output key already exists")
	ErrInsufficientInput = errors.New("outputs exceed inputs")
)

// UTXOProvider provides read-only access to the UTXO set for validation.
// An absent key is reported as found=false with a nil error; errors are
// reserved for storage failures.
type UTXOProvider interface {
	GetUTXO(key types.Hash) (out Output, found bool, err error)
	HasUTXO(key types.Hash) (bool, error)
}

// Verdict is the outcome of validating a transaction against the UTXO set.
type Verdict struct {
	// Reward is TotalInput - TotalOutput. Zero while inputs are missing.
	Reward types.Amount `json:"reward"`
	// Missing lists outpoints not present in the set, in input order.
	Missing []types.Hash `json:"missing,omitempty"`
	// Provides lists the storage keys the outputs will occupy, in order.
	Provides []types.Hash `json:"provides"`

	TotalInput  types.Amount `json:"total_input"`
	TotalOutput types.Amount `json:"total_output"`
}

// Committable reports whether every input resolved.
func (v *Verdict) Committable() bool {
	return len(v.Missing) == 0
}

// ValidateWithUTXOs validates a transaction against the UTXO set without
// mutating it. Inputs absent from the set are not an error: they are listed
// in Verdict.Missing and the transaction is not committable until they
// appear. Every other failure is fatal and returned as an error.
func (tx *Transaction) ValidateWithUTXOs(provider UTXOProvider, verifier crypto.Verifier) (*Verdict, error) {
	if err := tx.Validate(); err != nil {
		return nil, err
	}

	verdict := &Verdict{}
	msg := tx.SigningBytes()

	for i, in := range tx.Inputs {
		prev, found, err := provider.GetUTXO(in.Outpoint)
		if err != nil {
			return nil, fmt.Errorf("input %d (%s): %w", i, in.Outpoint.Short(), err)
		}
		if !found {
			verdict.Missing = append(verdict.Missing, in.Outpoint)
			continue
		}
		if !verifier.Verify(msg, in.SigScript, prev.PubKey) {
			return nil, fmt.Errorf("input %d (%s): %w", i, in.Outpoint.Short(), ErrInvalidSig)
		}
		sum, ok := verdict.TotalInput.Add(prev.Value)
		if !ok {
			return nil, fmt.Errorf("input %d: %w", i, ErrInputOverflow)
		}
		verdict.TotalInput = sum
	}

	encoded := tx.Bytes()
	verdict.Provides = make([]types.Hash, 0, len(tx.Outputs))
	for i, out := range tx.Outputs {
		if out.Value.IsZero() {
			return nil, fmt.Errorf("output %d: %w", i, ErrZeroOutputValue)
		}
		if err := out.Header.Validate(); err != nil {
			return nil, fmt.Errorf("output %d: %w", i, err)
		}
		key := OutputKey(encoded, uint64(i))
		exists, err := provider.HasUTXO(key)
		if err != nil {
			return nil, fmt.Errorf("output %d: %w", i, err)
		}
		if exists {
			return nil, fmt.Errorf("output %d (%s): %w", i, key.Short(), ErrOutputCollision)
		}
		sum, ok := verdict.TotalOutput.Add(out.Value)
		if !ok {
			return nil, fmt.Errorf("output %d: %w", i, ErrOutputOverflow)
		}
		verdict.TotalOutput = sum
		verdict.Provides = append(verdict.Provides, key)
	}

	if verdict.Committable() {
		reward, ok := verdict.TotalInput.Sub(verdict.TotalOutput)
		if !ok {
			return nil, fmt.Errorf("%w: inputs=%s outputs=%s",
				ErrInsufficientInput, verdict.TotalInput, verdict.TotalOutput)
		}
		verdict.Reward = reward
	}

	return verdict, nil
}
