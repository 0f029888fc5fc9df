// Package header implements the 16-bit output header that tags every
// transaction output with its signature method, value currency and fee
// currency.
//
// Bit layout (bit 0 is least significant):
//
//	bits 0-2   signature method
//	bits 3-8   value currency
//	bits 9-14  fee currency
//	bit  15    unused
package header

import (
	"errors"
	"fmt"
)

// Header is the packed output header word.
type Header uint16

// Field masks.
const (
	SignatureMask   Header = 0x0007
	ValueMask       Header = 0x01F8
	FeeMask         Header = 0x7E00
	feeShift               = 6
	currencyCodeMax        = uint16(ValueMask)
)

var (
	ErrUnsupportedSignatureMethod = errors.New("unsupported signature method")
	ErrUnsupportedCurrency        = errors.New("unsupported currency")
)

// SignatureMethod identifies the signature scheme locking an output.
type SignatureMethod uint8

const (
	SigMethodBLS     SignatureMethod = 0
	SigMethodSchnorr SignatureMethod = 1
	SigMethodZkSnark SignatureMethod = 2
)

// String returns a human-readable name for the signature method.
func (m SignatureMethod) String() string {
	switch m {
	case SigMethodBLS:
		return "BLS"
	case SigMethodSchnorr:
		return "Schnorr"
	case SigMethodZkSnark:
		return "ZkSnark"
	default:
		return fmt.Sprintf("SignatureMethod(%d)", uint8(m))
	}
}

// Currency identifies the currency of an output's value or fee. Codes
// occupy bits 3-8 of the word, so valid codes are multiples of 8.
type Currency uint16

const (
	CurrencyMLT Currency = 0
	CurrencyETH Currency = 8
	CurrencyBTC Currency = 16
)

// String returns the currency ticker.
func (c Currency) String() string {
	switch c {
	case CurrencyMLT:
		return "MLT"
	case CurrencyETH:
		return "ETH"
	case CurrencyBTC:
		return "BTC"
	default:
		return fmt.Sprintf("Currency(%d)", uint16(c))
	}
}

// SignatureMethod decodes bits 0-2.
func (h Header) SignatureMethod() (SignatureMethod, error) {
	switch code := uint8(h & SignatureMask); SignatureMethod(code) {
	case SigMethodBLS, SigMethodSchnorr, SigMethodZkSnark:
		return SignatureMethod(code), nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrUnsupportedSignatureMethod, code)
	}
}

// ValueCurrency decodes bits 3-8.
func (h Header) ValueCurrency() (Currency, error) {
	return decodeCurrency(uint16(h & ValueMask))
}

// FeeCurrency decodes bits 9-14. The word is shifted right by six so the
// fee field lands on the value field's position and shares its decoding.
func (h Header) FeeCurrency() (Currency, error) {
	return decodeCurrency(uint16(h>>feeShift) & currencyCodeMax)
}

func decodeCurrency(code uint16) (Currency, error) {
	switch Currency(code) {
	case CurrencyMLT, CurrencyETH, CurrencyBTC:
		return Currency(code), nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrUnsupportedCurrency, code)
	}
}

// Validate decodes every field in order (signature method, value
// currency, fee currency) and returns the first failure.
func (h Header) Validate() error {
	if _, err := h.SignatureMethod(); err != nil {
		return err
	}
	if _, err := h.ValueCurrency(); err != nil {
		return fmt.Errorf("value: %w", err)
	}
	if _, err := h.FeeCurrency(); err != nil {
		return fmt.Errorf("fee: %w", err)
	}
	return nil
}

// WithSignatureMethod returns h with bits 0-2 replaced by m.
// Other fields are untouched and no validation is performed.
func (h Header) WithSignatureMethod(m SignatureMethod) Header {
	return (h &^ SignatureMask) | (Header(m) & SignatureMask)
}

// WithValueCurrency returns h with bits 3-8 replaced by c.
func (h Header) WithValueCurrency(c Currency) Header {
	return (h &^ ValueMask) | (Header(c) & ValueMask)
}

// WithFeeCurrency returns h with bits 9-14 replaced by c.
func (h Header) WithFeeCurrency(c Currency) Header {
	return (h &^ FeeMask) | ((Header(c) & ValueMask) << feeShift)
}

// New builds a header from its three fields.
func New(m SignatureMethod, value, fee Currency) Header {
	return Header(0).WithSignatureMethod(m).WithValueCurrency(value).WithFeeCurrency(fee)
}

// String formats the header as its decoded fields, or as raw bits when a
// field does not decode.
func (h Header) String() string {
	m, errM := h.SignatureMethod()
	v, errV := h.ValueCurrency()
	f, errF := h.FeeCurrency()
	if errM != nil || errV != nil || errF != nil {
		return fmt.Sprintf("Header(%#04x)", uint16(h))
	}
	return fmt.Sprintf("%s/%s/fee:%s", m, v, f)
}
