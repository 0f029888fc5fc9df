// Package tx defines transaction types, their canonical encoding and
// validation against the unspent-output set.
package tx

import (
	"encoding/binary"
	"fmt"

	"github.com/Klingon-tech/klingnet-ledger/pkg/crypto"
	"github.com/Klingon-tech/klingnet-ledger/pkg/header"
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

// Encoded sizes.
const (
	InputSize  = types.HashSize + types.SignatureSize
	OutputSize = types.AmountSize + types.PublicKeySize + 2
)

// Transaction consumes unspent outputs and creates new ones.
type Transaction struct {
	Inputs  []Input  `json:"inputs"`
	Outputs []Output `json:"outputs"`
}

// Input spends the unspent output stored under Outpoint.
type Input struct {
	Outpoint  types.Hash      `json:"outpoint"`
	SigScript types.Signature `json:"sig_script"`
}

// Output defines a new unspent output locked to PubKey.
type Output struct {
	Value  types.Amount    `json:"value"`
	PubKey types.PublicKey `json:"pub_key"`
	Header header.Header   `json:"header"`
}

// Bytes returns the canonical encoding of the output.
// Format: value(16) | pub_key(32) | header(2)
func (o Output) Bytes() []byte {
	return o.appendBytes(make([]byte, 0, OutputSize))
}

func (o Output) appendBytes(buf []byte) []byte {
	buf = o.Value.AppendBytes(buf)
	buf = append(buf, o.PubKey[:]...)
	return binary.LittleEndian.AppendUint16(buf, uint16(o.Header))
}

// Bytes returns the canonical encoding of the transaction, signatures included.
// Format: input_count(4) | [outpoint(32) | sig_script(64)]... | output_count(4) | [output(50)]...
func (tx *Transaction) Bytes() []byte {
	buf := make([]byte, 0, 8+len(tx.Inputs)*InputSize+len(tx.Outputs)*OutputSize)

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(tx.Inputs)))
	for _, in := range tx.Inputs {
		buf = append(buf, in.Outpoint[:]...)
		buf = append(buf, in.SigScript[:]...)
	}

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(tx.Outputs)))
	for _, out := range tx.Outputs {
		buf = out.appendBytes(buf)
	}
	return buf
}

// SigningBytes returns the message every input signs: the canonical
// encoding with all signatures zeroed.
func (tx *Transaction) SigningBytes() []byte {
	stripped := Transaction{
		Inputs:  make([]Input, len(tx.Inputs)),
		Outputs: tx.Outputs,
	}
	for i, in := range tx.Inputs {
		stripped.Inputs[i] = Input{Outpoint: in.Outpoint}
	}
	return stripped.Bytes()
}

// Hash computes the transaction ID (BLAKE3 hash of the full encoding).
func (tx *Transaction) Hash() types.Hash {
	return crypto.Hash(tx.Bytes())
}

// OutputKeys returns the storage key of every output, in order.
func (tx *Transaction) OutputKeys() []types.Hash {
	encoded := tx.Bytes()
	keys := make([]types.Hash, len(tx.Outputs))
	for i := range tx.Outputs {
		keys[i] = OutputKey(encoded, uint64(i))
	}
	return keys
}

// TotalOutputValue returns the sum of all output values.
// Returns an error if the sum overflows 128 bits.
func (tx *Transaction) TotalOutputValue() (types.Amount, error) {
	var total types.Amount
	for i, out := range tx.Outputs {
		sum, ok := total.Add(out.Value)
		if !ok {
			return types.Amount{}, fmt.Errorf("output %d: %w", i, ErrOutputOverflow)
		}
		total = sum
	}
	return total, nil
}

// OutputKey derives the storage key of output index of the transaction
// whose canonical encoding is txBytes: Hash(txBytes | index_le64).
func OutputKey(txBytes []byte, index uint64) types.Hash {
	buf := make([]byte, 0, len(txBytes)+8)
	buf = append(buf, txBytes...)
	buf = binary.LittleEndian.AppendUint64(buf, index)
	return crypto.Hash(buf)
}

// GenesisKey derives the storage key of a genesis output: Hash(output).
func GenesisKey(out Output) types.Hash {
	return crypto.Hash(out.Bytes())
}

// RewardKey derives the storage key of a reward output minted at height:
// Hash(output | height_le64).
func RewardKey(out Output, height uint64) types.Hash {
	buf := out.appendBytes(make([]byte, 0, OutputSize+8))
	buf = binary.LittleEndian.AppendUint64(buf, height)
	return crypto.Hash(buf)
}
