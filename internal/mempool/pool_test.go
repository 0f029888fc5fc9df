package mempool

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Klingon-tech/klingnet-ledger/internal/ledger"
	"github.com/Klingon-tech/klingnet-ledger/internal/storage"
	"github.com/Klingon-tech/klingnet-ledger/internal/utxo"
	"github.com/Klingon-tech/klingnet-ledger/pkg/crypto"
	"github.com/Klingon-tech/klingnet-ledger/pkg/tx"
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

type testEnv struct {
	ledger *ledger.Ledger
	alice  *crypto.PrivateKey
	bob    *crypto.PrivateKey
	coins  []types.Hash // Genesis outputs owned by alice: 1000, 2000, 3000.
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	l, err := ledger.New(utxo.NewStore(storage.NewMemory()), crypto.SchnorrVerifier{})
	if err != nil {
		t.Fatalf("ledger.New() error: %v", err)
	}
	alice, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}
	bob, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}

	var outs []tx.Output
	var coins []types.Hash
	for _, v := range []uint64{1000, 2000, 3000} {
		out := tx.Output{Value: types.NewAmount(v), PubKey: alice.PublicKey(), Header: tx.DefaultHeader}
		outs = append(outs, out)
		coins = append(coins, tx.GenesisKey(out))
	}
	if err := l.InitFromGenesis(outs); err != nil {
		t.Fatalf("InitFromGenesis() error: %v", err)
	}
	return &testEnv{ledger: l, alice: alice, bob: bob, coins: coins}
}

// buildTx creates a transaction spending prev, signed by key, paying value to bob.
func (e *testEnv) buildTx(t *testing.T, key *crypto.PrivateKey, prev types.Hash, value uint64) *tx.Transaction {
	t.Helper()
	b := tx.NewBuilder().
		AddInput(prev).
		AddOutput(types.NewAmount(value), e.bob.PublicKey())
	if err := b.Sign(key); err != nil {
		t.Fatalf("Sign() error: %v", err)
	}
	return b.Build()
}

func TestPool_Add(t *testing.T) {
	env := newEnv(t)
	pool := New(env.ledger, 100, 2)
	transaction := env.buildTx(t, env.alice, env.coins[0], 900)

	verdict, err := pool.Add(transaction)
	if err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	if verdict.Reward != types.NewAmount(100) {
		t.Errorf("reward = %s, want 100", verdict.Reward)
	}
	if pool.Count() != 1 {
		t.Errorf("Count() = %d, want 1", pool.Count())
	}
	if !pool.Has(transaction.Hash()) {
		t.Error("Has() = false after Add")
	}
	if !pool.IsReady(transaction.Hash()) {
		t.Error("IsReady() = false for a committable transaction")
	}
	if pool.Get(transaction.Hash()) != transaction {
		t.Error("Get() returned a different transaction")
	}
	if pool.GetReward(transaction.Hash()) != types.NewAmount(100) {
		t.Errorf("GetReward() = %s, want 100", pool.GetReward(transaction.Hash()))
	}
}

func TestPool_AddRejects(t *testing.T) {
	env := newEnv(t)
	pool := New(env.ledger, 100, 2)
	first := env.buildTx(t, env.alice, env.coins[0], 900)
	if _, err := pool.Add(first); err != nil {
		t.Fatalf("Add() error: %v", err)
	}

	tests := []struct {
		name    string
		tx      *tx.Transaction
		wantErr error
	}{
		{"duplicate", first, ErrAlreadyExists},
		{"double spend", env.buildTx(t, env.alice, env.coins[0], 800), ErrConflict},
		{"bad signature", env.buildTx(t, env.bob, env.coins[1], 100), ErrValidation},
		{"overspend", env.buildTx(t, env.alice, env.coins[1], 2001), ErrValidation},
		{"no outputs", func() *tx.Transaction {
			b := tx.NewBuilder().AddInput(env.coins[2])
			if err := b.Sign(env.alice); err != nil {
				t.Fatalf("Sign() error: %v", err)
			}
			return b.Build()
		}(), ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := pool.Add(tt.tx)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Add() error = %v, want %v", err, tt.wantErr)
			}
			if v != nil {
				t.Error("verdict should be nil on error")
			}
		})
	}

	if pool.Count() != 1 {
		t.Errorf("Count() = %d, want 1", pool.Count())
	}
}

func TestPool_ValidationWrapsCause(t *testing.T) {
	env := newEnv(t)
	pool := New(env.ledger, 100, 2)

	_, err := pool.Add(env.buildTx(t, env.bob, env.coins[0], 100))
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("Add() error = %v, want ErrValidation", err)
	}
	if !errors.Is(err, tx.ErrInvalidSig) {
		t.Errorf("Add() error = %v, should wrap ErrInvalidSig", err)
	}
}

func TestPool_PendingAndConfirm(t *testing.T) {
	env := newEnv(t)
	pool := New(env.ledger, 100, 2)

	parent := env.buildTx(t, env.alice, env.coins[0], 900)
	child := env.buildTx(t, env.bob, parent.OutputKeys()[0], 850)

	if _, err := pool.Add(parent); err != nil {
		t.Fatalf("Add(parent) error: %v", err)
	}
	verdict, err := pool.Add(child)
	if err != nil {
		t.Fatalf("Add(child) error: %v", err)
	}
	if verdict.Committable() {
		t.Fatal("child should not be committable before its parent")
	}
	if pool.PendingCount() != 1 {
		t.Errorf("PendingCount() = %d, want 1", pool.PendingCount())
	}

	selected := pool.SelectForBlock(10)
	if len(selected) != 1 || selected[0] != parent {
		t.Fatalf("SelectForBlock() = %d txs, want only the parent", len(selected))
	}

	if err := env.ledger.Spend(parent); err != nil {
		t.Fatalf("Spend(parent) error: %v", err)
	}
	promoted := pool.Confirm(parent)
	if len(promoted) != 1 || promoted[0] != child.Hash() {
		t.Fatalf("Confirm() promoted %v, want the child", promoted)
	}
	if pool.Has(parent.Hash()) {
		t.Error("confirmed transaction should leave the pool")
	}
	if pool.PendingCount() != 0 {
		t.Errorf("PendingCount() = %d, want 0", pool.PendingCount())
	}
	if pool.GetReward(child.Hash()) != types.NewAmount(50) {
		t.Errorf("child reward = %s, want 50", pool.GetReward(child.Hash()))
	}

	selected = pool.SelectForBlock(10)
	if len(selected) != 1 || selected[0] != child {
		t.Fatal("SelectForBlock() should return the promoted child")
	}
}

func TestPool_ConfirmDropsInvalidPending(t *testing.T) {
	env := newEnv(t)
	pool := New(env.ledger, 100, 2)

	parent := env.buildTx(t, env.alice, env.coins[0], 900)
	// The parent pays bob, so an alice signature can never satisfy it.
	child := env.buildTx(t, env.alice, parent.OutputKeys()[0], 850)

	if _, err := pool.Add(child); err != nil {
		t.Fatalf("Add(child) error: %v", err)
	}
	if err := env.ledger.Spend(parent); err != nil {
		t.Fatalf("Spend(parent) error: %v", err)
	}
	if promoted := pool.Confirm(parent); len(promoted) != 0 {
		t.Errorf("Confirm() promoted %d, want 0", len(promoted))
	}
	if pool.Count() != 0 {
		t.Errorf("Count() = %d, want 0", pool.Count())
	}
}

func TestPool_ConfirmEvictsConflicts(t *testing.T) {
	env := newEnv(t)
	pool := New(env.ledger, 100, 2)

	pooled := env.buildTx(t, env.alice, env.coins[0], 900)
	if _, err := pool.Add(pooled); err != nil {
		t.Fatalf("Add() error: %v", err)
	}

	// A competing spend of the same coin commits first.
	winner := env.buildTx(t, env.alice, env.coins[0], 500)
	if err := env.ledger.Spend(winner); err != nil {
		t.Fatalf("Spend() error: %v", err)
	}
	pool.Confirm(winner)

	if pool.Has(pooled.Hash()) {
		t.Error("conflicting transaction should be evicted on Confirm")
	}
	// The coin is released from the conflict index, but spending it again
	// can only wait as pending.
	retry := env.buildTx(t, env.alice, env.coins[0], 700)
	if _, err := pool.Add(retry); err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	if pool.IsReady(retry.Hash()) {
		t.Error("spend of a consumed coin should not be ready")
	}
}

func TestPool_SelectForBlockOrder(t *testing.T) {
	env := newEnv(t)
	pool := New(env.ledger, 100, 2)

	var want []*tx.Transaction
	for i := len(env.coins) - 1; i >= 0; i-- {
		transaction := env.buildTx(t, env.alice, env.coins[i], 10)
		if _, err := pool.Add(transaction); err != nil {
			t.Fatalf("Add() error: %v", err)
		}
		want = append(want, transaction)
	}

	got := pool.SelectForBlock(10)
	if len(got) != len(want) {
		t.Fatalf("SelectForBlock() = %d txs, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d holds the wrong transaction", i)
		}
	}

	if limited := pool.SelectForBlock(2); len(limited) != 2 || limited[0] != want[0] {
		t.Errorf("SelectForBlock(2) should return the first two submissions")
	}
}

func TestPool_Full(t *testing.T) {
	env := newEnv(t)
	pool := New(env.ledger, 1, 2)

	// Reward 100.
	first := env.buildTx(t, env.alice, env.coins[0], 900)
	if _, err := pool.Add(first); err != nil {
		t.Fatalf("Add() error: %v", err)
	}

	// Reward 10 does not outbid.
	low := env.buildTx(t, env.alice, env.coins[1], 1990)
	if _, err := pool.Add(low); !errors.Is(err, ErrPoolFull) {
		t.Fatalf("Add(low) error = %v, want ErrPoolFull", err)
	}

	// Reward 500 evicts the first.
	high := env.buildTx(t, env.alice, env.coins[2], 2500)
	if _, err := pool.Add(high); err != nil {
		t.Fatalf("Add(high) error: %v", err)
	}
	if pool.Has(first.Hash()) {
		t.Error("lower paying transaction should be evicted")
	}
	if !pool.Has(high.Hash()) {
		t.Error("higher paying transaction should be pooled")
	}
}

func TestPool_Evict(t *testing.T) {
	env := newEnv(t)
	pool := New(env.ledger, 100, 2)

	rewards := []uint64{100, 10, 500}
	var txs []*tx.Transaction
	for i, coin := range env.coins {
		value := []uint64{1000, 2000, 3000}[i] - rewards[i]
		transaction := env.buildTx(t, env.alice, coin, value)
		if _, err := pool.Add(transaction); err != nil {
			t.Fatalf("Add() error: %v", err)
		}
		txs = append(txs, transaction)
	}

	pool.maxSize = 1
	if n := pool.Evict(); n != 2 {
		t.Fatalf("Evict() = %d, want 2", n)
	}
	if !pool.Has(txs[2].Hash()) {
		t.Error("highest paying transaction should survive eviction")
	}
}

func TestPool_ExpirePending(t *testing.T) {
	env := newEnv(t)
	pool := New(env.ledger, 100, 2)

	ready := env.buildTx(t, env.alice, env.coins[0], 900)
	orphan := env.buildTx(t, env.alice, types.Hash{0xee}, 10)
	for _, transaction := range []*tx.Transaction{ready, orphan} {
		if _, err := pool.Add(transaction); err != nil {
			t.Fatalf("Add() error: %v", err)
		}
	}

	if n := pool.ExpirePending(time.Hour); n != 0 {
		t.Errorf("ExpirePending(1h) = %d, want 0", n)
	}
	if n := pool.expirePending(time.Now().Add(2*time.Hour), time.Hour); n != 1 {
		t.Fatalf("expirePending() = %d, want 1", n)
	}
	if pool.Has(orphan.Hash()) {
		t.Error("expired pending transaction should be removed")
	}
	if !pool.Has(ready.Hash()) {
		t.Error("ready transactions never expire")
	}
	if len(pool.waiting) != 0 {
		t.Errorf("waiting index holds %d entries, want 0", len(pool.waiting))
	}
}

func TestPool_Remove(t *testing.T) {
	env := newEnv(t)
	pool := New(env.ledger, 100, 2)

	transaction := env.buildTx(t, env.alice, env.coins[0], 900)
	if _, err := pool.Add(transaction); err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	pool.Remove(transaction.Hash())
	if pool.Count() != 0 {
		t.Errorf("Count() = %d, want 0", pool.Count())
	}
	// The spend index is released, so a replacement is accepted.
	if _, err := pool.Add(env.buildTx(t, env.alice, env.coins[0], 800)); err != nil {
		t.Errorf("Add() after Remove error: %v", err)
	}
	if len(pool.Hashes()) != 1 {
		t.Errorf("Hashes() = %d, want 1", len(pool.Hashes()))
	}
}

func TestPool_Policy(t *testing.T) {
	env := newEnv(t)
	pool := New(env.ledger, 100, 2)
	pool.SetPolicy(&Policy{MaxTxSize: 10})

	_, err := pool.Add(env.buildTx(t, env.alice, env.coins[0], 900))
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("Add() error = %v, want ErrValidation", err)
	}
}

func TestPool_ValidateBatch(t *testing.T) {
	env := newEnv(t)
	pool := New(env.ledger, 100, 2)

	txs := []*tx.Transaction{
		env.buildTx(t, env.alice, env.coins[0], 900),
		env.buildTx(t, env.bob, env.coins[1], 100),
		env.buildTx(t, env.alice, env.coins[2], 2999),
		env.buildTx(t, env.alice, types.Hash{0x42}, 1),
	}

	results, err := pool.ValidateBatch(context.Background(), txs)
	if err != nil {
		t.Fatalf("ValidateBatch() error: %v", err)
	}
	if len(results) != len(txs) {
		t.Fatalf("got %d results, want %d", len(results), len(txs))
	}
	if results[0].Err != nil || results[0].Verdict.Reward != types.NewAmount(100) {
		t.Errorf("result 0 = %+v, want reward 100", results[0])
	}
	if !errors.Is(results[1].Err, tx.ErrInvalidSig) {
		t.Errorf("result 1 error = %v, want ErrInvalidSig", results[1].Err)
	}
	if results[2].Err != nil || results[2].Verdict.Reward != types.NewAmount(1) {
		t.Errorf("result 2 = %+v, want reward 1", results[2])
	}
	if results[3].Err != nil || results[3].Verdict.Committable() {
		t.Errorf("result 3 = %+v, want a non-committable verdict", results[3])
	}
	if pool.Count() != 0 {
		t.Error("ValidateBatch() must not add to the pool")
	}
}

func TestPool_ValidateBatchCanceled(t *testing.T) {
	env := newEnv(t)
	pool := New(env.ledger, 100, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	txs := []*tx.Transaction{env.buildTx(t, env.alice, env.coins[0], 900)}
	if _, err := pool.ValidateBatch(ctx, txs); !errors.Is(err, context.Canceled) {
		t.Errorf("ValidateBatch() error = %v, want context.Canceled", err)
	}
}
