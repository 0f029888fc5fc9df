// Package config handles application configuration.
//
// Configuration is split into two categories:
//   - Protocol rules: Defined in genesis, immutable, must match across all nodes
//   - Node settings: Runtime configuration, can vary per node
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// NetworkType identifies mainnet or testnet.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Testnet NetworkType = "testnet"
)

// Storage backends.
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
	BackendBolt   = "bolt"
)

// =============================================================================
// Node Configuration (runtime, per-node settings)
// =============================================================================

// Config holds node-specific runtime configuration.
// These settings can vary between nodes without breaking consensus.
//
// Field tags name the keys of the .conf file. Section structs are squashed
// so their dotted keys ("storage.backend") live in one flat namespace.
type Config struct {
	// Core
	Network NetworkType `conf:"network"`
	DataDir string      `conf:"datadir"`

	// Genesis file path (empty = built-in genesis for Network)
	GenesisFile string `conf:"genesis"`

	// Ledger storage
	Storage StorageConfig `conf:",squash"`

	// Block production (operational, not consensus rules)
	Block BlockConfig `conf:",squash"`

	// Transaction pool
	Mempool MempoolConfig `conf:",squash"`

	// Logging
	Log LogConfig `conf:",squash"`
}

// StorageConfig selects the key/value backend holding the UTXO set.
type StorageConfig struct {
	Backend string `conf:"storage.backend"` // memory, badger or bolt
	Path    string `conf:"storage.path"`    // Overrides <datadir>/<network>/ledger
}

// BlockConfig holds block production settings.
type BlockConfig struct {
	Produce  bool          `conf:"block.produce"`
	Interval time.Duration `conf:"block.interval"`
	MaxTxs   int           `conf:"block.maxtxs"`

	// KeyFile holds the hex-encoded authority key this node produces as.
	KeyFile string `conf:"block.keyfile"`
}

// MempoolConfig holds transaction pool settings.
type MempoolConfig struct {
	MaxSize int `conf:"mempool.maxsize"` // Ready + pending transactions
	Workers int `conf:"mempool.workers"` // Concurrent validations per batch

	// PendingTTL bounds how long a transaction may wait for missing inputs.
	PendingTTL time.Duration `conf:"mempool.pendingttl"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// =============================================================================
// Directory helpers
// =============================================================================

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.klingnet-ledger
//	macOS:   ~/Library/Application Support/KlingnetLedger
//	Windows: %APPDATA%\KlingnetLedger
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".klingnet-ledger"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "KlingnetLedger")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "KlingnetLedger")
		}
		return filepath.Join(home, "AppData", "Roaming", "KlingnetLedger")
	default:
		return filepath.Join(home, ".klingnet-ledger")
	}
}

// ChainDataDir returns the chain-specific data directory.
func (c *Config) ChainDataDir() string {
	return filepath.Join(c.DataDir, string(c.Network))
}

// LedgerDir returns the ledger database path.
func (c *Config) LedgerDir() string {
	if c.Storage.Path != "" {
		return c.Storage.Path
	}
	return filepath.Join(c.ChainDataDir(), "ledger")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "klingnet-ledger.conf")
}
