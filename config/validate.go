package config

import (
	"fmt"
	"strings"
)

// Validate checks runtime node config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Network != Mainnet && cfg.Network != Testnet {
		return fmt.Errorf("network must be %q or %q", Mainnet, Testnet)
	}
	if cfg.DataDir == "" {
		return fmt.Errorf("datadir is required")
	}

	cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))
	switch cfg.Storage.Backend {
	case BackendMemory, BackendBadger, BackendBolt:
	default:
		return fmt.Errorf("storage.backend must be %s, %s or %s", BackendMemory, BackendBadger, BackendBolt)
	}

	if cfg.Block.Interval <= 0 {
		return fmt.Errorf("block.interval must be positive")
	}
	if cfg.Block.MaxTxs < 1 || cfg.Block.MaxTxs > MaxBlockTxs {
		return fmt.Errorf("block.maxtxs must be in range [1, %d]", MaxBlockTxs)
	}
	if cfg.Mempool.MaxSize < 1 {
		return fmt.Errorf("mempool.maxsize must be at least 1")
	}
	if cfg.Mempool.Workers < 1 {
		return fmt.Errorf("mempool.workers must be at least 1")
	}
	if cfg.Mempool.PendingTTL <= 0 {
		return fmt.Errorf("mempool.pendingttl must be positive")
	}

	switch strings.ToLower(cfg.Log.Level) {
	case "", "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic":
	default:
		return fmt.Errorf("log.level %q is not a known level", cfg.Log.Level)
	}

	return nil
}
