package ledger

import (
	"encoding/binary"
	"fmt"

	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

// Metadata keys persisted alongside the set.
const (
	metaPool    = "pool"
	metaHeight  = "height"
	metaGenesis = "genesis"
)

// metaReader is implemented by sets that persist ledger metadata.
type metaReader interface {
	GetMeta(name string) ([]byte, bool, error)
}

func (l *Ledger) loadState() error {
	mr, ok := l.utxos.(metaReader)
	if !ok {
		return nil
	}

	if data, found, err := mr.GetMeta(metaPool); err != nil {
		return err
	} else if found {
		pool, err := types.ParseAmount(string(data))
		if err != nil {
			return fmt.Errorf("decode reward pool: %w", err)
		}
		l.pool = pool
	}

	if data, found, err := mr.GetMeta(metaHeight); err != nil {
		return err
	} else if found {
		if len(data) != 8 {
			return fmt.Errorf("decode height: got %d bytes", len(data))
		}
		l.height = binary.BigEndian.Uint64(data)
	}

	_, found, err := mr.GetMeta(metaGenesis)
	if err != nil {
		return err
	}
	l.initialized = found
	return nil
}

func encodePool(pool types.Amount) []byte {
	return []byte(pool.String())
}

func encodeHeight(height uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, height)
}
