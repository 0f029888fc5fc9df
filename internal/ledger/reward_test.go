package ledger

import (
	"errors"
	"testing"

	"github.com/Klingon-tech/klingnet-ledger/internal/storage"
	"github.com/Klingon-tech/klingnet-ledger/internal/utxo"
	"github.com/Klingon-tech/klingnet-ledger/pkg/crypto"
	"github.com/Klingon-tech/klingnet-ledger/pkg/tx"
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

func testLedger(t *testing.T) (*Ledger, *utxo.Store) {
	t.Helper()
	store := utxo.NewStore(storage.NewMemory())
	l, err := New(store, crypto.SchnorrVerifier{})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return l, store
}

func authorities(n int) []types.PublicKey {
	out := make([]types.PublicKey, n)
	for i := range out {
		out[i] = types.PublicKey{byte(i + 1), 0xaa}
	}
	return out
}

// Scenario 6: pool 10 across three authorities.
func TestFinalize_SplitsPool(t *testing.T) {
	l, store := testLedger(t)
	l.pool = amount(10)
	auths := authorities(3)

	d, err := l.Finalize(42, auths)
	if err != nil {
		t.Fatalf("Finalize() error: %v", err)
	}
	if d.Share.Cmp(amount(3)) != 0 || d.Remainder.Cmp(amount(1)) != 0 {
		t.Errorf("share = %s remainder = %s, want 3 and 1", d.Share, d.Remainder)
	}
	if got := l.RewardPool(); got.Cmp(amount(1)) != 0 {
		t.Errorf("RewardPool() = %s, want 1", got)
	}
	if l.Height() != 42 {
		t.Errorf("Height() = %d, want 42", l.Height())
	}
	if len(d.Minted) != 3 {
		t.Fatalf("minted %d outputs, want 3", len(d.Minted))
	}

	keys := make(map[types.Hash]bool)
	for i, a := range auths {
		want := tx.Output{Value: amount(3), PubKey: a, Header: tx.DefaultHeader}
		key := tx.RewardKey(want, 42)
		got, err := store.Get(key)
		if err != nil {
			t.Fatalf("reward output %d: Get() error: %v", i, err)
		}
		if *got != want {
			t.Errorf("reward output %d = %+v, want %+v", i, got, want)
		}
		keys[key] = true
	}
	if len(keys) != 3 {
		t.Error("reward keys are not unique")
	}
}

func TestFinalize_KeysDependOnHeight(t *testing.T) {
	l, store := testLedger(t)
	auths := authorities(1)

	l.pool = amount(5)
	l.Finalize(1, auths)
	l.pool = amount(5)
	l.Finalize(2, auths)

	if n, _ := store.Count(); n != 2 {
		t.Errorf("Count() = %d, want 2 distinct reward outputs", n)
	}
}

func TestFinalize_RepeatedHeightIsIdempotent(t *testing.T) {
	l, store := testLedger(t)
	auths := authorities(3)

	l.pool = amount(10)
	if _, err := l.Finalize(9, auths); err != nil {
		t.Fatalf("Finalize() error: %v", err)
	}
	l.pool = amount(10)
	d, err := l.Finalize(9, auths)
	if err != nil {
		t.Fatalf("Finalize() repeat error: %v", err)
	}
	if len(d.Minted) != 0 {
		t.Errorf("repeat minted %d outputs, want 0", len(d.Minted))
	}
	if n, _ := store.Count(); n != 3 {
		t.Errorf("Count() = %d, want 3", n)
	}
	if got := l.RewardPool(); got.Cmp(amount(1)) != 0 {
		t.Errorf("RewardPool() = %s, want remainder 1", got)
	}
}

func TestFinalize_DuplicateAuthority(t *testing.T) {
	l, store := testLedger(t)
	a := authorities(1)[0]
	l.pool = amount(10)

	d, err := l.Finalize(1, []types.PublicKey{a, a})
	if err != nil {
		t.Fatalf("Finalize() error: %v", err)
	}
	if len(d.Minted) != 1 {
		t.Errorf("minted %d outputs, want 1", len(d.Minted))
	}
	if n, _ := store.Count(); n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}
}

func TestFinalize_ShareZeroDropsPool(t *testing.T) {
	l, store := testLedger(t)
	l.pool = amount(2)

	d, err := l.Finalize(3, authorities(3))
	if err != nil {
		t.Fatalf("Finalize() error: %v", err)
	}
	if !d.Share.IsZero() || len(d.Minted) != 0 {
		t.Errorf("dispersal = %+v, want nothing minted", d)
	}
	if !l.RewardPool().IsZero() {
		t.Errorf("RewardPool() = %s, want 0 (pool is dropped)", l.RewardPool())
	}
	if l.Height() != 3 {
		t.Errorf("Height() = %d, want 3", l.Height())
	}
	if n, _ := store.Count(); n != 0 {
		t.Errorf("Count() = %d, want 0", n)
	}
}

func TestFinalize_EmptyPool(t *testing.T) {
	l, _ := testLedger(t)
	d, err := l.Finalize(1, authorities(2))
	if err != nil {
		t.Fatalf("Finalize() error: %v", err)
	}
	if len(d.Minted) != 0 {
		t.Errorf("minted %d outputs from an empty pool", len(d.Minted))
	}
}

func TestFinalize_NoAuthorities(t *testing.T) {
	l, store := testLedger(t)
	l.pool = amount(10)

	_, err := l.Finalize(5, nil)
	if !errors.Is(err, ErrNoAuthorities) {
		t.Fatalf("Finalize() error = %v, want ErrNoAuthorities", err)
	}
	if !l.RewardPool().IsZero() {
		t.Errorf("RewardPool() = %s, want 0 (pool is dropped)", l.RewardPool())
	}
	if l.Height() != 0 {
		t.Errorf("Height() = %d, want 0", l.Height())
	}

	data, ok, err := store.GetMeta(metaPool)
	if err != nil || !ok || string(data) != "0" {
		t.Errorf("persisted pool = %q, %v, %v; want \"0\"", data, ok, err)
	}
}

func TestFinalize_LargePool(t *testing.T) {
	l, _ := testLedger(t)
	l.pool = types.MaxAmount

	d, err := l.Finalize(1, authorities(7))
	if err != nil {
		t.Fatalf("Finalize() error: %v", err)
	}
	total, _ := d.Share.Mul(7)
	total, _ = total.Add(d.Remainder)
	if total != types.MaxAmount {
		t.Errorf("share*7 + remainder = %s, want %s", total, types.MaxAmount)
	}
	if d.Remainder.Cmp(amount(7)) >= 0 {
		t.Errorf("remainder %s not below authority count", d.Remainder)
	}
}
