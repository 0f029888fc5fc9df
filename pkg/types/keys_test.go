package types

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestHexToPublicKey(t *testing.T) {
	valid := strings.Repeat("ab", PublicKeySize)
	pk, err := HexToPublicKey(valid)
	if err != nil {
		t.Fatalf("HexToPublicKey() error: %v", err)
	}
	if pk.String() != valid {
		t.Errorf("roundtrip: got %s, want %s", pk, valid)
	}

	for _, bad := range []string{"", "abcd", strings.Repeat("zz", PublicKeySize), strings.Repeat("ab", 33)} {
		if _, err := HexToPublicKey(bad); err == nil {
			t.Errorf("HexToPublicKey(%q) should fail", bad)
		}
	}
}

func TestPublicKey_JSON(t *testing.T) {
	pk := PublicKey{0x02, 0x03}
	data, err := json.Marshal(pk)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	var got PublicKey
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if got != pk {
		t.Errorf("roundtrip: got %s, want %s", got, pk)
	}
}

func TestSignature_JSON(t *testing.T) {
	var sig Signature
	if !sig.IsZero() {
		t.Error("zero-value Signature should be zero")
	}
	sig[0], sig[SignatureSize-1] = 0x11, 0x22

	data, err := json.Marshal(sig)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	if len(data) != 2*SignatureSize+2 {
		t.Errorf("Marshal() length = %d, want %d", len(data), 2*SignatureSize+2)
	}
	var got Signature
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if got != sig {
		t.Error("signature roundtrip mismatch")
	}
}
