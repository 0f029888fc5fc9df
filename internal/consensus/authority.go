// Package consensus provides the proof-of-authority context a ledger needs
// at each block boundary: the ordered authority set and the block height.
package consensus

import (
	"encoding/binary"
	"errors"
	"sync"

	"github.com/Klingon-tech/klingnet-ledger/internal/log"
	"github.com/Klingon-tech/klingnet-ledger/pkg/crypto"
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

// Authority errors.
var (
	ErrNoAuthorities = errors.New("no authorities configured")
	ErrNotAuthority  = errors.New("key is not an authority")
)

// BlockContext supplies the block number and the ordered authority list
// used for reward dispersal.
type BlockContext interface {
	Height() uint64
	Authorities() []types.PublicKey
}

// AuthoritySet is the ordered set of block authorities.
// Authorities take turns proposing blocks.
type AuthoritySet struct {
	mu sync.RWMutex

	authorities []types.PublicKey

	// genesis is the original set from genesis (never removed).
	genesis []types.PublicKey

	// signer is the local authority key (nil if this node is not an authority).
	signer crypto.Signer
}

// NewAuthoritySet creates a set from the genesis authorities. Duplicates
// are dropped, keeping the first occurrence.
func NewAuthoritySet(authorities []types.PublicKey) (*AuthoritySet, error) {
	if len(authorities) == 0 {
		return nil, ErrNoAuthorities
	}
	s := &AuthoritySet{}
	for _, a := range authorities {
		if !s.isAuthority(a) {
			s.authorities = append(s.authorities, a)
		}
	}
	s.genesis = append([]types.PublicKey(nil), s.authorities...)
	return s, nil
}

// SetSigner sets the local authority key used for block production.
func (s *AuthoritySet) SetSigner(key crypto.Signer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isAuthority(key.PublicKey()) {
		return ErrNotAuthority
	}
	s.signer = key
	return nil
}

// Signer returns the local authority key, or nil if not set.
func (s *AuthoritySet) Signer() crypto.Signer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.signer
}

// Authorities returns a copy of the current ordered authority list.
func (s *AuthoritySet) Authorities() []types.PublicKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.PublicKey(nil), s.authorities...)
}

// Len returns the number of authorities.
func (s *AuthoritySet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.authorities)
}

func (s *AuthoritySet) isAuthority(pub types.PublicKey) bool {
	for _, a := range s.authorities {
		if a == pub {
			return true
		}
	}
	return false
}

// IsAuthority checks if the given public key is in the set.
func (s *AuthoritySet) IsAuthority(pub types.PublicKey) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isAuthority(pub)
}

// IsGenesisAuthority checks if the key is in the original genesis set.
func (s *AuthoritySet) IsGenesisAuthority(pub types.PublicKey) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.genesis {
		if a == pub {
			return true
		}
	}
	return false
}

// Add appends a public key to the set if it is not already present.
func (s *AuthoritySet) Add(pub types.PublicKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isAuthority(pub) {
		s.authorities = append(s.authorities, pub)
		log.Consensus.Info().Str("authority", pub.String()).Int("count", len(s.authorities)).Msg("Authority added")
	}
}

// Remove drops a non-genesis authority. Genesis authorities cannot be removed.
func (s *AuthoritySet) Remove(pub types.PublicKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.genesis {
		if a == pub {
			return
		}
	}
	for i, a := range s.authorities {
		if a == pub {
			s.authorities = append(s.authorities[:i], s.authorities[i+1:]...)
			log.Consensus.Info().Str("authority", pub.String()).Int("count", len(s.authorities)).Msg("Authority removed")
			return
		}
	}
}

// Proposer returns the deterministically selected authority for the given
// height and previous state root. Uses BLAKE3(prevRoot || height) as
// entropy to derive an index into the set.
func (s *AuthoritySet) Proposer(height uint64, prevRoot types.Hash) (types.PublicKey, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return selectFromSet(s.authorities, height, prevRoot)
}

func selectFromSet(set []types.PublicKey, height uint64, prevRoot types.Hash) (types.PublicKey, bool) {
	switch len(set) {
	case 0:
		return types.PublicKey{}, false
	case 1:
		return set[0], true
	}

	var buf [types.HashSize + 8]byte
	copy(buf[:types.HashSize], prevRoot[:])
	binary.LittleEndian.PutUint64(buf[types.HashSize:], height)
	seed := crypto.Hash(buf[:])

	idx := binary.LittleEndian.Uint64(seed[:8]) % uint64(len(set))
	return set[idx], true
}

// IsSelected reports whether the local signer is the proposer for the
// given height and previous state root.
func (s *AuthoritySet) IsSelected(height uint64, prevRoot types.Hash) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.signer == nil {
		return false
	}
	selected, ok := selectFromSet(s.authorities, height, prevRoot)
	return ok && selected == s.signer.PublicKey()
}

// Context returns a snapshot of the set for the given block height.
func (s *AuthoritySet) Context(height uint64) BlockContext {
	return &blockContext{height: height, authorities: s.Authorities()}
}

type blockContext struct {
	height      uint64
	authorities []types.PublicKey
}

func (c *blockContext) Height() uint64 { return c.height }

func (c *blockContext) Authorities() []types.PublicKey {
	return append([]types.PublicKey(nil), c.authorities...)
}

// NewBlockContext returns a fixed BlockContext.
func NewBlockContext(height uint64, authorities []types.PublicKey) BlockContext {
	return &blockContext{height: height, authorities: append([]types.PublicKey(nil), authorities...)}
}
