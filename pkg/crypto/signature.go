package crypto

import (
	"fmt"

	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// Signer signs messages with a private key using BIP-340 Schnorr.
type Signer interface {
	// Sign produces a Schnorr signature over Hash(message).
	Sign(message []byte) (types.Signature, error)
	// PublicKey returns the 32-byte x-only public key.
	PublicKey() types.PublicKey
}

// Verifier checks signatures over messages.
type Verifier interface {
	// Verify checks sig against Hash(message) and an x-only public key.
	Verify(message []byte, sig types.Signature, pub types.PublicKey) bool
}

// PrivateKey wraps a secp256k1 private key for Schnorr signing.
type PrivateKey struct {
	key *secp256k1.PrivateKey
}

// GenerateKey creates a new random secp256k1 private key.
func GenerateKey() (*PrivateKey, error) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return &PrivateKey{key: key}, nil
}

// PrivateKeyFromBytes creates a PrivateKey from a 32-byte secret.
func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("private key must be 32 bytes, got %d", len(b))
	}
	key := secp256k1.PrivKeyFromBytes(b)
	if key.Key.IsZero() {
		return nil, fmt.Errorf("private key is zero modulo the curve order")
	}
	return &PrivateKey{key: key}, nil
}

// Sign produces a 64-byte Schnorr signature over Hash(message).
// Signing is deterministic for a given key and message.
func (pk *PrivateKey) Sign(message []byte) (types.Signature, error) {
	h := Hash(message)
	sig, err := schnorr.Sign(pk.key, h[:])
	if err != nil {
		return types.Signature{}, fmt.Errorf("schnorr sign: %w", err)
	}
	var out types.Signature
	copy(out[:], sig.Serialize())
	return out, nil
}

// PublicKey returns the 32-byte x-only public key.
func (pk *PrivateKey) PublicKey() types.PublicKey {
	var pub types.PublicKey
	copy(pub[:], schnorr.SerializePubKey(pk.key.PubKey()))
	return pub
}

// Serialize returns the 32-byte private key scalar.
func (pk *PrivateKey) Serialize() []byte {
	return pk.key.Serialize()
}

// Zero securely zeroes the private key memory.
func (pk *PrivateKey) Zero() {
	pk.key.Zero()
}

// VerifySignature checks a Schnorr signature against Hash(message) and an
// x-only public key. Returns false on any error.
func VerifySignature(message []byte, sig types.Signature, pub types.PublicKey) bool {
	pubKey, err := schnorr.ParsePubKey(pub[:])
	if err != nil {
		return false
	}
	s, err := schnorr.ParseSignature(sig[:])
	if err != nil {
		return false
	}
	h := Hash(message)
	return s.Verify(h[:], pubKey)
}

// SchnorrVerifier implements the Verifier interface.
type SchnorrVerifier struct{}

// Verify checks a Schnorr signature against Hash(message) and a public key.
func (v SchnorrVerifier) Verify(message []byte, sig types.Signature, pub types.PublicKey) bool {
	return VerifySignature(message, sig, pub)
}
