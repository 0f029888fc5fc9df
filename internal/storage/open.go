package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Klingon-tech/klingnet-ledger/config"
)

// boltFile is the database file name inside a bolt data directory.
const boltFile = "ledger.db"

// Open creates the database for the configured backend. The memory backend
// ignores path.
func Open(backend, path string) (DB, error) {
	switch backend {
	case config.BackendMemory:
		return NewMemory(), nil
	case config.BackendBadger:
		return NewBadger(path)
	case config.BackendBolt:
		if err := os.MkdirAll(path, 0700); err != nil {
			return nil, fmt.Errorf("create bolt dir: %w", err)
		}
		return NewBolt(filepath.Join(path, boltFile))
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}
