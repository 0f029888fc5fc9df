package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Klingon-tech/klingnet-ledger/pkg/crypto"
	"github.com/Klingon-tech/klingnet-ledger/pkg/header"
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

// =============================================================================
// Protocol Rules (immutable, defined in genesis)
// These MUST match across all nodes or consensus breaks.
// =============================================================================

// Denomination constants.
// 1 coin = 10^12 base units. All on-chain values are in base units.
const (
	Decimals  = 12
	Coin      = 1_000_000_000_000 // 10^12 base units per coin
	MilliCoin = 1_000_000_000     // 10^9
	MicroCoin = 1_000_000         // 10^6
)

// Block and transaction size limits (consensus-critical).
const (
	MaxBlockTxs  = 500  // Max transactions per block
	MaxTxInputs  = 2500 // Max inputs per transaction
	MaxTxOutputs = 2500 // Max outputs per transaction
)

// Genesis holds the genesis state and protocol rules.
// This is immutable after chain launch - changes require a hard fork.
type Genesis struct {
	// Chain identity
	ChainID   string `json:"chain_id"`
	ChainName string `json:"chain_name"`
	Symbol    string `json:"symbol,omitempty"`

	Timestamp uint64 `json:"timestamp"`
	ExtraData string `json:"extra_data,omitempty"`

	// Initial unspent outputs, each stored under the hash of its encoding.
	Alloc []GenesisOutput `json:"alloc"`

	// Protocol rules
	Protocol ProtocolConfig `json:"protocol"`
}

// GenesisOutput is one initial allocation.
type GenesisOutput struct {
	Value  types.Amount    `json:"value"`
	PubKey types.PublicKey `json:"pub_key"`
	Header header.Header   `json:"header"`
}

// ProtocolConfig holds consensus-critical rules.
type ProtocolConfig struct {
	// Authorities share the reward pool at every block finalize.
	Authorities []types.PublicKey `json:"authorities"`

	// Target seconds between blocks.
	BlockTime int `json:"block_time"`
}

// =============================================================================
// Testnet Identity
//
// Derived from the well-known BIP-39 test mnemonic (DO NOT use on mainnet):
//
//	abandon abandon abandon abandon abandon abandon abandon abandon
//	abandon abandon abandon abandon abandon abandon abandon abandon
//	abandon abandon abandon abandon abandon abandon abandon art
//
// Derivation path: m/44'/8888'/0'/0/i (no passphrase)
// =============================================================================

const (
	// TestnetMnemonic is the well-known seed phrase for the testnet authorities.
	TestnetMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon art"

	// TestnetAuthorityPrivKey is the private key (hex) at index 0.
	TestnetAuthorityPrivKey = "1f0717e6e34acc6721021f4dfed54558ec8452452b6195545d06dd348b220091"
)

// TestnetAuthorityPubKeys are the x-only public keys (hex) at indices 0-2.
var TestnetAuthorityPubKeys = []string{
	"0bef68f8657df88098a0546da1712c88b459788bea1a6bbe964004166a25144f",
	"ebe5b922a1606d788cab779653e6a11061eb726b9e932a39f6b5f31e8184f0a8",
	"475185fe218a5f70b5bdcabe9c150c1128c2fe626a92155250e7b8eb71045138",
}

// =============================================================================
// Pre-defined genesis configurations
// =============================================================================

// MainnetGenesis returns the mainnet genesis configuration.
func MainnetGenesis() *Genesis {
	authority := mustPubKey("cba4d0ee4c55f5ea620393a6e6e9dafe959bfa6ddff964221126a3e41ad0487d")
	return &Genesis{
		ChainID:   "klingnet-ledger-mainnet-1",
		ChainName: "Klingnet Ledger Mainnet",
		Symbol:    "MLT",
		Timestamp: 1770734103, // 2026-02-10
		ExtraData: "Klingnet Ledger Genesis",
		Alloc: []GenesisOutput{
			{Value: types.NewAmount(100_000 * Coin), PubKey: authority, Header: defaultGenesisHeader},
		},
		Protocol: ProtocolConfig{
			Authorities: []types.PublicKey{authority},
			BlockTime:   3,
		},
	}
}

// TestnetGenesis returns the testnet genesis configuration.
func TestnetGenesis() *Genesis {
	g := MainnetGenesis()
	g.ChainID = "klingnet-ledger-testnet-1"
	g.ChainName = "Klingnet Ledger Testnet"
	g.ExtraData = "Klingnet Ledger Testnet Genesis"

	g.Protocol.Authorities = make([]types.PublicKey, len(TestnetAuthorityPubKeys))
	for i, s := range TestnetAuthorityPubKeys {
		g.Protocol.Authorities[i] = mustPubKey(s)
	}

	// Testnet allocation: 200,000 MLT to the first testnet authority.
	g.Alloc = []GenesisOutput{
		{Value: types.NewAmount(200_000 * Coin), PubKey: g.Protocol.Authorities[0], Header: defaultGenesisHeader},
	}

	return g
}

// GenesisFor returns the genesis config for the given network.
func GenesisFor(network NetworkType) *Genesis {
	switch network {
	case Testnet:
		return TestnetGenesis()
	default:
		return MainnetGenesis()
	}
}

// defaultGenesisHeader tags built-in allocations as Schnorr-locked MLT.
var defaultGenesisHeader = header.New(header.SigMethodSchnorr, header.CurrencyMLT, header.CurrencyMLT)

func mustPubKey(s string) types.PublicKey {
	pk, err := types.HexToPublicKey(s)
	if err != nil {
		panic(fmt.Sprintf("config: bad built-in public key %q: %v", s, err))
	}
	return pk
}

// =============================================================================
// Genesis file I/O
// =============================================================================

// LoadGenesis loads genesis configuration from a file.
func LoadGenesis(path string) (*Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading genesis file: %w", err)
	}

	var g Genesis
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parsing genesis file: %w", err)
	}

	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("invalid genesis: %w", err)
	}

	return &g, nil
}

// Save writes the genesis configuration to a file.
func (g *Genesis) Save(path string) error {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding genesis: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing genesis file: %w", err)
	}

	return nil
}

// Validate checks that the genesis configuration is valid.
func (g *Genesis) Validate() error {
	if g.ChainID == "" {
		return fmt.Errorf("chain_id is required")
	}
	if g.Protocol.BlockTime <= 0 {
		return fmt.Errorf("block_time must be positive")
	}

	// Authorities may be empty (reward dispersal then fails at finalize),
	// but must not repeat.
	seenAuth := make(map[types.PublicKey]struct{}, len(g.Protocol.Authorities))
	for i, a := range g.Protocol.Authorities {
		if a.IsZero() {
			return fmt.Errorf("authority %d is zero", i)
		}
		if _, dup := seenAuth[a]; dup {
			return fmt.Errorf("authority %d (%s) is duplicated", i, a)
		}
		seenAuth[a] = struct{}{}
	}

	// Identical allocations would collide on the same key.
	seenAlloc := make(map[GenesisOutput]struct{}, len(g.Alloc))
	var total types.Amount
	for i, out := range g.Alloc {
		if out.Value.IsZero() {
			return fmt.Errorf("alloc %d: value is zero", i)
		}
		if err := out.Header.Validate(); err != nil {
			return fmt.Errorf("alloc %d: %w", i, err)
		}
		if _, dup := seenAlloc[out]; dup {
			return fmt.Errorf("alloc %d: duplicate allocation", i)
		}
		seenAlloc[out] = struct{}{}

		sum, ok := total.Add(out.Value)
		if !ok {
			return fmt.Errorf("alloc %d: total allocation overflows", i)
		}
		total = sum
	}

	return nil
}

// Hash returns a BLAKE3 hash of the genesis configuration.
// Used to identify the chain and detect genesis mismatches.
func (g *Genesis) Hash() (types.Hash, error) {
	data, err := json.Marshal(g)
	if err != nil {
		return types.Hash{}, err
	}
	return crypto.Hash(data), nil
}
