package node

import (
	"context"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Klingon-tech/klingnet-ledger/config"
	"github.com/Klingon-tech/klingnet-ledger/internal/consensus"
	"github.com/Klingon-tech/klingnet-ledger/internal/keys"
	"github.com/Klingon-tech/klingnet-ledger/internal/mempool"
	"github.com/Klingon-tech/klingnet-ledger/pkg/crypto"
	"github.com/Klingon-tech/klingnet-ledger/pkg/tx"
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir")
	}
	tests := []struct {
		input, want string
	}{
		{"~/foo/bar", filepath.Join(home, "foo/bar")},
		{"~/.klingnet-ledger/key", filepath.Join(home, ".klingnet-ledger/key")},
		{"/absolute/path", "/absolute/path"},
		{"relative/path", "relative/path"},
		{"", ""},
	}
	for _, tt := range tests {
		got := expandHome(tt.input)
		if got != tt.want {
			t.Errorf("expandHome(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestLoadAuthorityKey(t *testing.T) {
	privKey, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}
	keyHex := hex.EncodeToString(privKey.Serialize())
	keyPath := writeKey(t, keyHex+"\n")

	loaded, err := loadAuthorityKey(keyPath)
	if err != nil {
		t.Fatalf("loadAuthorityKey() error: %v", err)
	}
	if hex.EncodeToString(loaded.Serialize()) != keyHex {
		t.Errorf("key mismatch: got %x, want %s", loaded.Serialize(), keyHex)
	}
	loaded.Zero()
}

func TestLoadAuthorityKey_Invalid(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"missing", "/nonexistent/path"},
		{"bad hex", writeKey(t, "not-hex")},
		{"short", writeKey(t, "abcd")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := loadAuthorityKey(tt.path); err == nil {
				t.Error("loadAuthorityKey() should fail")
			}
		})
	}
}

func writeKey(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "authority.key")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return path
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultTestnet()
	cfg.DataDir = t.TempDir()
	cfg.Storage.Backend = config.BackendMemory
	cfg.Block.Produce = false
	cfg.Block.Interval = 10 * time.Millisecond
	return cfg
}

func newNode(t *testing.T, cfg *config.Config) *Node {
	t.Helper()
	n, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return n
}

// spendAlloc builds a transaction moving the testnet allocation back to
// authority 0, leaving reward for the block.
func spendAlloc(t *testing.T, n *Node, reward uint64) *tx.Transaction {
	t.Helper()
	key, err := keys.DeriveAuthorityKey(config.TestnetMnemonic, 0)
	if err != nil {
		t.Fatalf("DeriveAuthorityKey() error: %v", err)
	}
	alloc := genesisOutputs(n.Genesis())[0]
	value, ok := alloc.Value.Sub(types.NewAmount(reward))
	if !ok {
		t.Fatal("reward exceeds allocation")
	}
	b := tx.NewBuilder().
		AddInput(tx.GenesisKey(alloc)).
		AddOutput(value, key.PublicKey())
	if err := b.Sign(key); err != nil {
		t.Fatalf("Sign() error: %v", err)
	}
	return b.Build()
}

func TestNew_Testnet(t *testing.T) {
	n := newNode(t, testConfig(t))
	defer n.Stop()

	if n.Height() != 0 {
		t.Errorf("Height() = %d, want 0", n.Height())
	}
	if !n.RewardPool().IsZero() {
		t.Errorf("RewardPool() = %s, want 0", n.RewardPool())
	}
	root, err := n.StateRoot()
	if err != nil {
		t.Fatalf("StateRoot() error: %v", err)
	}
	if root.IsZero() {
		t.Error("state root should commit to the genesis allocation")
	}
	if !n.Ledger().Initialized() {
		t.Error("ledger should be initialized from genesis")
	}
}

func TestSubmitAndProduce(t *testing.T) {
	n := newNode(t, testConfig(t))
	defer n.Stop()

	transaction := spendAlloc(t, n, 1000)
	verdict, err := n.SubmitTransaction(transaction)
	if err != nil {
		t.Fatalf("SubmitTransaction() error: %v", err)
	}
	if verdict.Reward != types.NewAmount(1000) {
		t.Errorf("reward = %s, want 1000", verdict.Reward)
	}
	if _, err := n.SubmitTransaction(transaction); !errors.Is(err, mempool.ErrAlreadyExists) {
		t.Errorf("resubmit error = %v, want ErrAlreadyExists", err)
	}

	res, err := n.ProduceBlock(context.Background())
	if err != nil {
		t.Fatalf("ProduceBlock() error: %v", err)
	}
	if res.Height != 1 || len(res.Included) != 1 {
		t.Fatalf("result = height %d, %d txs; want height 1, 1 tx", res.Height, len(res.Included))
	}
	// 1000 split over 3 testnet authorities.
	if res.Dispersal.Share != types.NewAmount(333) {
		t.Errorf("share = %s, want 333", res.Dispersal.Share)
	}
	if n.RewardPool() != types.NewAmount(1) {
		t.Errorf("RewardPool() = %s, want 1", n.RewardPool())
	}
	if n.Pool().Count() != 0 {
		t.Errorf("pool Count() = %d, want 0", n.Pool().Count())
	}

	stats := n.Tracker().GetAllStats()
	if len(stats) != 3 {
		t.Errorf("tracked %d authorities, want 3", len(stats))
	}
}

func TestNew_AuthorityKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.Block.KeyFile = writeKey(t, config.TestnetAuthorityPrivKey)

	n := newNode(t, cfg)
	defer n.Stop()
	if n.authorities.Signer() == nil {
		t.Error("authority key should be installed as signer")
	}
}

func TestNew_NotAuthority(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}
	cfg := testConfig(t)
	cfg.Block.KeyFile = writeKey(t, hex.EncodeToString(key.Serialize()))

	if _, err := New(cfg); !errors.Is(err, consensus.ErrNotAuthority) {
		t.Fatalf("New() error = %v, want ErrNotAuthority", err)
	}
}

func TestNew_ProduceWithoutAuthorities(t *testing.T) {
	g := config.TestnetGenesis()
	g.Protocol.Authorities = nil
	path := filepath.Join(t.TempDir(), "genesis.json")
	if err := g.Save(path); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	cfg := testConfig(t)
	cfg.GenesisFile = path
	cfg.Block.Produce = true
	if _, err := New(cfg); !errors.Is(err, consensus.ErrNoAuthorities) {
		t.Fatalf("New() error = %v, want ErrNoAuthorities", err)
	}

	// Without production the node still serves the ledger.
	cfg.Block.Produce = false
	n := newNode(t, cfg)
	defer n.Stop()
	if _, err := n.ProduceBlock(context.Background()); !errors.Is(err, consensus.ErrNoAuthorities) {
		t.Errorf("ProduceBlock() error = %v, want ErrNoAuthorities", err)
	}

	// Start refuses production before launching any background work.
	cfg.Block.Produce = true
	if err := n.Start(); !errors.Is(err, consensus.ErrNoAuthorities) {
		t.Fatalf("Start() error = %v, want ErrNoAuthorities", err)
	}
	cfg.Block.Produce = false
	if err := n.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
}

func TestNode_Persistence(t *testing.T) {
	for _, backend := range []string{config.BackendBadger, config.BackendBolt} {
		t.Run(backend, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Storage.Backend = backend

			n := newNode(t, cfg)
			if _, err := n.SubmitTransaction(spendAlloc(t, n, 10)); err != nil {
				t.Fatalf("SubmitTransaction() error: %v", err)
			}
			if _, err := n.ProduceBlock(context.Background()); err != nil {
				t.Fatalf("ProduceBlock() error: %v", err)
			}
			root, err := n.StateRoot()
			if err != nil {
				t.Fatalf("StateRoot() error: %v", err)
			}
			n.Stop()

			reopened := newNode(t, cfg)
			defer reopened.Stop()
			if reopened.Height() != 1 {
				t.Errorf("Height() = %d, want 1", reopened.Height())
			}
			if reopened.RewardPool() != types.NewAmount(1) {
				t.Errorf("RewardPool() = %s, want 1", reopened.RewardPool())
			}
			got, err := reopened.StateRoot()
			if err != nil {
				t.Fatalf("StateRoot() error: %v", err)
			}
			if got != root {
				t.Error("state root changed across restart")
			}
		})
	}
}

func TestNode_StartProduces(t *testing.T) {
	cfg := testConfig(t)
	cfg.Block.Produce = true

	n := newNode(t, cfg)
	if err := n.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for n.Height() < 2 {
		if time.Now().After(deadline) {
			n.Stop()
			t.Fatalf("Height() = %d after 5s, want >= 2", n.Height())
		}
		time.Sleep(10 * time.Millisecond)
	}
	n.Stop()
}
