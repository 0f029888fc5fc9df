package types

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	"github.com/holiman/uint256"
)

// AmountBits is the width of an Amount. Values never exceed 2^128-1.
const AmountBits = 128

// AmountSize is the length of an encoded Amount in bytes.
const AmountSize = AmountBits / 8

// Amount is an unsigned 128-bit quantity of value. All arithmetic is
// checked: operations report ok=false instead of wrapping.
// The zero value is 0 and Amounts are comparable with ==.
type Amount struct {
	v uint256.Int
}

// MaxAmount is the largest representable Amount (2^128-1).
var MaxAmount = Amount{v: uint256.Int{math.MaxUint64, math.MaxUint64, 0, 0}}

// NewAmount returns an Amount holding n.
func NewAmount(n uint64) Amount {
	var a Amount
	a.v.SetUint64(n)
	return a
}

// ParseAmount parses a base-10 string. Values wider than 128 bits are rejected.
func ParseAmount(s string) (Amount, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return Amount{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if v.BitLen() > AmountBits {
		return Amount{}, fmt.Errorf("amount %q exceeds %d bits", s, AmountBits)
	}
	return Amount{v: *v}, nil
}

// IsZero returns true if the amount is 0.
func (a Amount) IsZero() bool {
	return a.v.IsZero()
}

// Cmp compares a and b and returns -1, 0 or +1.
func (a Amount) Cmp(b Amount) int {
	return a.v.Cmp(&b.v)
}

// Add returns a+b, or ok=false if the sum does not fit in 128 bits.
func (a Amount) Add(b Amount) (Amount, bool) {
	var sum uint256.Int
	if _, overflow := sum.AddOverflow(&a.v, &b.v); overflow || sum.BitLen() > AmountBits {
		return Amount{}, false
	}
	return Amount{v: sum}, true
}

// Sub returns a-b, or ok=false if b > a.
func (a Amount) Sub(b Amount) (Amount, bool) {
	var diff uint256.Int
	if _, underflow := diff.SubOverflow(&a.v, &b.v); underflow {
		return Amount{}, false
	}
	return Amount{v: diff}, true
}

// Mul returns a*n, or ok=false if the product does not fit in 128 bits.
func (a Amount) Mul(n uint64) (Amount, bool) {
	var prod uint256.Int
	if _, overflow := prod.MulOverflow(&a.v, uint256.NewInt(n)); overflow || prod.BitLen() > AmountBits {
		return Amount{}, false
	}
	return Amount{v: prod}, true
}

// Div returns floor(a/n). Division by zero yields 0; callers guard n.
func (a Amount) Div(n uint64) Amount {
	var q uint256.Int
	q.Div(&a.v, uint256.NewInt(n))
	return Amount{v: q}
}

// Uint64 returns the amount as a uint64 and whether it fit.
func (a Amount) Uint64() (uint64, bool) {
	return a.v.Uint64(), a.v.IsUint64()
}

// String returns the decimal representation.
func (a Amount) String() string {
	return a.v.Dec()
}

// AppendBytes appends the 16-byte little-endian encoding of a to buf.
func (a Amount) AppendBytes(buf []byte) []byte {
	buf = binary.LittleEndian.AppendUint64(buf, a.v[0])
	return binary.LittleEndian.AppendUint64(buf, a.v[1])
}

// AmountFromBytes decodes a 16-byte little-endian amount.
func AmountFromBytes(b []byte) (Amount, error) {
	if len(b) != AmountSize {
		return Amount{}, fmt.Errorf("amount must be %d bytes, got %d", AmountSize, len(b))
	}
	var a Amount
	a.v[0] = binary.LittleEndian.Uint64(b[:8])
	a.v[1] = binary.LittleEndian.Uint64(b[8:])
	return a, nil
}

// MarshalJSON encodes the amount as a decimal string, since 128-bit values
// do not survive a round trip through JSON numbers.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts either a decimal string or a bare JSON number.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := string(bytes.TrimSpace(data))
	if len(s) > 0 && s[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	}
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
