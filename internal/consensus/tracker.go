package consensus

import (
	"sync"
	"time"

	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

// AuthorityStats holds in-memory production statistics for one authority.
// Stats reset on node restart (no persistence).
type AuthorityStats struct {
	PubKey      types.PublicKey `json:"pub_key"`
	LastBlock   time.Time       `json:"last_block"` // zero if never produced
	BlockCount  uint64          `json:"block_count"`
	MissedCount uint64          `json:"missed_count"` // selected but did not produce
	Rewarded    types.Amount    `json:"rewarded"`     // total minted to this authority
}

// AuthorityTracker tracks block production and rewards per authority.
// All data is in-memory only; it has no consensus impact.
type AuthorityTracker struct {
	mu            sync.RWMutex
	stats         map[types.PublicKey]*AuthorityStats
	blockInterval time.Duration
}

// NewAuthorityTracker creates a tracker with the expected block interval.
func NewAuthorityTracker(blockInterval time.Duration) *AuthorityTracker {
	return &AuthorityTracker{
		stats:         make(map[types.PublicKey]*AuthorityStats),
		blockInterval: blockInterval,
	}
}

// RecordBlock records that an authority produced a block.
func (t *AuthorityTracker) RecordBlock(pub types.PublicKey) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.getOrCreate(pub)
	s.LastBlock = time.Now()
	s.BlockCount++
}

// RecordMiss records that an authority was selected but did not produce.
func (t *AuthorityTracker) RecordMiss(pub types.PublicKey) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.getOrCreate(pub).MissedCount++
}

// RecordReward adds a minted reward to an authority's total. Totals
// saturate at the maximum amount.
func (t *AuthorityTracker) RecordReward(pub types.PublicKey, value types.Amount) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.getOrCreate(pub)
	sum, ok := s.Rewarded.Add(value)
	if !ok {
		sum = types.MaxAmount
	}
	s.Rewarded = sum
}

// IsActive returns true if the authority produced a block within 2x the
// expected interval times the number of tracked authorities.
func (t *AuthorityTracker) IsActive(pub types.PublicKey) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, ok := t.stats[pub]
	if !ok || s.LastBlock.IsZero() {
		return false
	}
	window := 2 * t.blockInterval * time.Duration(len(t.stats))
	return time.Since(s.LastBlock) <= window
}

// GetStats returns a copy of stats for an authority, or nil if not tracked.
func (t *AuthorityTracker) GetStats(pub types.PublicKey) *AuthorityStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, ok := t.stats[pub]
	if !ok {
		return nil
	}
	cp := *s
	return &cp
}

// GetAllStats returns copies of all tracked authority stats.
func (t *AuthorityTracker) GetAllStats() []*AuthorityStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]*AuthorityStats, 0, len(t.stats))
	for _, s := range t.stats {
		cp := *s
		out = append(out, &cp)
	}
	return out
}

// BlockInterval returns the configured block interval.
func (t *AuthorityTracker) BlockInterval() time.Duration {
	return t.blockInterval
}

func (t *AuthorityTracker) getOrCreate(pub types.PublicKey) *AuthorityStats {
	s, ok := t.stats[pub]
	if !ok {
		s = &AuthorityStats{PubKey: pub}
		t.stats[pub] = s
	}
	return s
}
