package mempool

import (
	"sort"
	"time"

	"github.com/Klingon-tech/klingnet-ledger/internal/log"
)

// cheaper reports whether a pays a strictly lower reward per byte than b.
// Pending entries carry a zero reward and sort below every ready entry.
func cheaper(a, b *entry) bool {
	left, okL := a.reward.Mul(uint64(b.size))
	right, okR := b.reward.Mul(uint64(a.size))
	switch {
	case !okL:
		return false
	case !okR:
		return true
	}
	return left.Cmp(right) < 0
}

// cheapestLocked returns the entry with the lowest reward rate. Ties go to
// the most recent submission.
func (p *Pool) cheapestLocked() *entry {
	var worst *entry
	for _, e := range p.txs {
		if worst == nil || cheaper(e, worst) || (!cheaper(worst, e) && e.seq > worst.seq) {
			worst = e
		}
	}
	return worst
}

// Evict removes the lowest reward-rate transactions until the pool is at or below maxSize.
func (p *Pool) Evict() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.txs) <= p.maxSize {
		return 0
	}

	// Collect entries and sort by reward rate ascending (lowest first).
	entries := make([]*entry, 0, len(p.txs))
	for _, e := range p.txs {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if cheaper(entries[i], entries[j]) {
			return true
		}
		if cheaper(entries[j], entries[i]) {
			return false
		}
		return entries[i].seq > entries[j].seq
	})

	evicted := 0
	for len(p.txs) > p.maxSize && evicted < len(entries) {
		p.removeLocked(entries[evicted].txHash)
		evicted++
	}
	return evicted
}

// ExpirePending drops pending transactions that have waited longer than
// maxAge for their inputs. Returns the number removed.
func (p *Pool) ExpirePending(maxAge time.Duration) int {
	return p.expirePending(time.Now(), maxAge)
}

func (p *Pool) expirePending(now time.Time, maxAge time.Duration) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	expired := 0
	for h, e := range p.txs {
		if e.ready() || now.Sub(e.added) <= maxAge {
			continue
		}
		p.removeLocked(h)
		expired++
	}
	if expired > 0 {
		log.Mempool.Debug().Int("count", expired).Msg("Expired pending transactions")
	}
	return expired
}
