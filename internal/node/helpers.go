package node

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Klingon-tech/klingnet-ledger/config"
	"github.com/Klingon-tech/klingnet-ledger/pkg/crypto"
	"github.com/Klingon-tech/klingnet-ledger/pkg/tx"
)

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

// loadAuthorityKey reads a hex-encoded 32-byte private key from a file.
func loadAuthorityKey(path string) (*crypto.PrivateKey, error) {
	path = expandHome(path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}

	hexStr := strings.TrimSpace(string(data))
	keyBytes, err := hex.DecodeString(hexStr)
	if err != nil {
		return nil, fmt.Errorf("decode hex: %w", err)
	}

	return crypto.PrivateKeyFromBytes(keyBytes)
}

// loadGenesis returns the genesis file named in cfg, or the built-in
// genesis for the network.
func loadGenesis(cfg *config.Config) (*config.Genesis, error) {
	if cfg.GenesisFile == "" {
		return config.GenesisFor(cfg.Network), nil
	}
	return config.LoadGenesis(expandHome(cfg.GenesisFile))
}

// genesisOutputs converts genesis allocations into ledger outputs.
func genesisOutputs(g *config.Genesis) []tx.Output {
	outs := make([]tx.Output, len(g.Alloc))
	for i, a := range g.Alloc {
		outs[i] = tx.Output{Value: a.Value, PubKey: a.PubKey, Header: a.Header}
	}
	return outs
}
