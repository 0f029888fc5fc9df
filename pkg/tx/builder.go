package tx

import (
	"fmt"

	"github.com/Klingon-tech/klingnet-ledger/pkg/crypto"
	"github.com/Klingon-tech/klingnet-ledger/pkg/header"
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

// DefaultHeader tags outputs built without an explicit header:
// Schnorr-locked, MLT value, MLT fee.
var DefaultHeader = header.New(header.SigMethodSchnorr, header.CurrencyMLT, header.CurrencyMLT)

// Builder constructs transactions incrementally.
type Builder struct {
	tx *Transaction
}

// NewBuilder creates a new transaction builder.
func NewBuilder() *Builder {
	return &Builder{tx: &Transaction{}}
}

// AddInput adds an input spending the output stored under outpoint.
func (b *Builder) AddInput(outpoint types.Hash) *Builder {
	b.tx.Inputs = append(b.tx.Inputs, Input{Outpoint: outpoint})
	return b
}

// AddOutput adds an output with DefaultHeader.
func (b *Builder) AddOutput(value types.Amount, pubKey types.PublicKey) *Builder {
	return b.AddOutputWithHeader(value, pubKey, DefaultHeader)
}

// AddOutputWithHeader adds an output with an explicit header.
func (b *Builder) AddOutputWithHeader(value types.Amount, pubKey types.PublicKey, h header.Header) *Builder {
	b.tx.Outputs = append(b.tx.Outputs, Output{Value: value, PubKey: pubKey, Header: h})
	return b
}

// Sign signs all inputs with the provided key.
// Each input gets the same signature (single-key spending).
func (b *Builder) Sign(key crypto.Signer) error {
	sig, err := key.Sign(b.tx.SigningBytes())
	if err != nil {
		return fmt.Errorf("sign tx: %w", err)
	}
	for i := range b.tx.Inputs {
		b.tx.Inputs[i].SigScript = sig
	}
	return nil
}

// SignInput signs a single input, for transactions spending outputs
// locked to different keys. The signing message does not depend on
// other inputs' signatures, so inputs may be signed in any order.
func (b *Builder) SignInput(index int, key crypto.Signer) error {
	if index < 0 || index >= len(b.tx.Inputs) {
		return fmt.Errorf("sign input: index %d out of range [0,%d)", index, len(b.tx.Inputs))
	}
	sig, err := key.Sign(b.tx.SigningBytes())
	if err != nil {
		return fmt.Errorf("sign input %d: %w", index, err)
	}
	b.tx.Inputs[index].SigScript = sig
	return nil
}

// Build returns the constructed transaction.
// Does NOT validate; call tx.Validate() separately.
func (b *Builder) Build() *Transaction {
	return b.tx
}
