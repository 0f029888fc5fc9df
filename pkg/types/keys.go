package types

import (
	"encoding/hex"
	"encoding/json"
)

// Key and signature sizes.
const (
	PublicKeySize = 32 // BIP-340 x-only public key
	SignatureSize = 64 // BIP-340 Schnorr signature
)

// PublicKey is the 256-bit public key that locks an output.
type PublicKey [PublicKeySize]byte

// IsZero returns true if the key is all zeros.
func (p PublicKey) IsZero() bool {
	return p == PublicKey{}
}

// String returns the hex-encoded key.
func (p PublicKey) String() string {
	return hex.EncodeToString(p[:])
}

// MarshalJSON encodes the key as a hex string.
func (p PublicKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON decodes a hex string into a public key.
func (p *PublicKey) UnmarshalJSON(data []byte) error {
	return unmarshalHexJSON(data, p[:], "public key")
}

// HexToPublicKey parses a 64-character hex public key.
func HexToPublicKey(s string) (PublicKey, error) {
	var p PublicKey
	if err := decodeFixedHex(s, p[:], "public key"); err != nil {
		return PublicKey{}, err
	}
	return p, nil
}

// Signature is the 512-bit signature blob carried by an input.
type Signature [SignatureSize]byte

// IsZero returns true if the signature is all zeros.
func (s Signature) IsZero() bool {
	return s == Signature{}
}

// String returns the hex-encoded signature.
func (s Signature) String() string {
	return hex.EncodeToString(s[:])
}

// MarshalJSON encodes the signature as a hex string.
func (s Signature) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a hex string into a signature.
func (s *Signature) UnmarshalJSON(data []byte) error {
	return unmarshalHexJSON(data, s[:], "signature")
}
