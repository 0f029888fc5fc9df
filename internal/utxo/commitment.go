package utxo

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/Klingon-tech/klingnet-ledger/pkg/crypto"
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

// Iterable is a set whose entries can be enumerated.
type Iterable interface {
	ForEach(fn func(Entry) error) error
}

// Commitment computes a merkle root over all UTXOs in the store.
// Each entry is hashed deterministically, the hashes are sorted, and
// a merkle tree is built from them. Returns a zero hash for an empty set.
func Commitment(store Iterable) (types.Hash, error) {
	var hashes []types.Hash

	err := store.ForEach(func(e Entry) error {
		hashes = append(hashes, hashEntry(e))
		return nil
	})
	if err != nil {
		return types.Hash{}, fmt.Errorf("utxo commitment: %w", err)
	}

	// Sort for deterministic ordering (iteration order varies by backend).
	sort.Slice(hashes, func(i, j int) bool {
		return bytes.Compare(hashes[i][:], hashes[j][:]) < 0
	})

	return ComputeMerkleRoot(hashes), nil
}

// hashEntry produces a deterministic BLAKE3 hash of a UTXO.
// Format: key(32) | value(16) | pub_key(32) | header(2)
func hashEntry(e Entry) types.Hash {
	buf := make([]byte, 0, types.HashSize+64)
	buf = append(buf, e.Key[:]...)
	buf = append(buf, e.Output.Bytes()...)
	return crypto.Hash(buf)
}

// ComputeMerkleRoot calculates the merkle root of a list of hashes.
//
// Algorithm:
//   - 0 hashes: returns zero hash
//   - 1 hash: returns that hash
//   - Otherwise: pairwise hash, duplicating the last element if odd count,
//     then recurse on the resulting layer until one hash remains.
func ComputeMerkleRoot(leaves []types.Hash) types.Hash {
	if len(leaves) == 0 {
		return types.Hash{}
	}
	if len(leaves) == 1 {
		return leaves[0]
	}

	// Work on a copy so we don't mutate the caller's slice.
	level := make([]types.Hash, len(leaves))
	copy(level, leaves)

	for len(level) > 1 {
		// If odd, duplicate the last element.
		if len(level)%2 != 0 {
			level = append(level, level[len(level)-1])
		}

		next := make([]types.Hash, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next[i/2] = crypto.HashConcat(level[i], level[i+1])
		}
		level = next
	}

	return level[0]
}
