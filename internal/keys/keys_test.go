package keys

import (
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/Klingon-tech/klingnet-ledger/config"
)

func TestGenerateMnemonic(t *testing.T) {
	m, err := GenerateMnemonic()
	if err != nil {
		t.Fatalf("GenerateMnemonic() error: %v", err)
	}
	if words := len(strings.Fields(m)); words != 24 {
		t.Errorf("word count = %d, want 24", words)
	}
	if !ValidateMnemonic(m) {
		t.Error("generated mnemonic should validate")
	}

	other, err := GenerateMnemonic()
	if err != nil {
		t.Fatalf("GenerateMnemonic() error: %v", err)
	}
	if m == other {
		t.Error("two generated mnemonics should differ")
	}
}

func TestValidateMnemonic(t *testing.T) {
	tests := []struct {
		name     string
		mnemonic string
		want     bool
	}{
		{"testnet", config.TestnetMnemonic, true},
		{"bad checksum", strings.Repeat("abandon ", 23) + "abandon", false},
		{"unknown word", strings.Repeat("abandon ", 23) + "klingon", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateMnemonic(tt.mnemonic); got != tt.want {
				t.Errorf("ValidateMnemonic() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSeedFromMnemonic(t *testing.T) {
	seed, err := SeedFromMnemonic(config.TestnetMnemonic, "")
	if err != nil {
		t.Fatalf("SeedFromMnemonic() error: %v", err)
	}
	if len(seed) != SeedSize {
		t.Errorf("seed length = %d, want %d", len(seed), SeedSize)
	}

	withPass, err := SeedFromMnemonic(config.TestnetMnemonic, "TREZOR")
	if err != nil {
		t.Fatalf("SeedFromMnemonic() error: %v", err)
	}
	if hex.EncodeToString(seed) == hex.EncodeToString(withPass) {
		t.Error("passphrase should change the seed")
	}

	if _, err := SeedFromMnemonic("not a mnemonic", ""); !errors.Is(err, ErrInvalidMnemonic) {
		t.Errorf("SeedFromMnemonic() error = %v, want ErrInvalidMnemonic", err)
	}
}

func TestNewMasterKey_InvalidSeedLength(t *testing.T) {
	for _, n := range []int{0, 32, 128} {
		if _, err := NewMasterKey(make([]byte, n)); err == nil {
			t.Errorf("NewMasterKey(%d bytes) should fail", n)
		}
	}
}

func TestDeriveAccount_Depth(t *testing.T) {
	seed, err := SeedFromMnemonic(config.TestnetMnemonic, "")
	if err != nil {
		t.Fatalf("SeedFromMnemonic() error: %v", err)
	}
	master, err := NewMasterKey(seed)
	if err != nil {
		t.Fatalf("NewMasterKey() error: %v", err)
	}
	if master.Depth() != 0 || !master.IsPrivate() {
		t.Fatalf("master depth = %d, private = %v", master.Depth(), master.IsPrivate())
	}
	child, err := master.DeriveAccount(0, 1)
	if err != nil {
		t.Fatalf("DeriveAccount() error: %v", err)
	}
	if child.Depth() != 5 {
		t.Errorf("child depth = %d, want 5", child.Depth())
	}
}

func TestDeriveAuthorityKey_Testnet(t *testing.T) {
	key, err := DeriveAuthorityKey(config.TestnetMnemonic, 0)
	if err != nil {
		t.Fatalf("DeriveAuthorityKey() error: %v", err)
	}
	if got := hex.EncodeToString(key.Serialize()); got != config.TestnetAuthorityPrivKey {
		t.Errorf("private key = %s, want %s", got, config.TestnetAuthorityPrivKey)
	}

	for i, want := range config.TestnetAuthorityPubKeys {
		key, err := DeriveAuthorityKey(config.TestnetMnemonic, uint32(i))
		if err != nil {
			t.Fatalf("DeriveAuthorityKey(%d) error: %v", i, err)
		}
		pub := key.PublicKey()
		if got := hex.EncodeToString(pub[:]); got != want {
			t.Errorf("index %d pubkey = %s, want %s", i, got, want)
		}
	}
}

func TestDeriveAuthorityKey_InvalidMnemonic(t *testing.T) {
	if _, err := DeriveAuthorityKey("abandon abandon", 0); !errors.Is(err, ErrInvalidMnemonic) {
		t.Errorf("DeriveAuthorityKey() error = %v, want ErrInvalidMnemonic", err)
	}
}
