package mempool

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/Klingon-tech/klingnet-ledger/pkg/tx"
)

// BatchResult is the validation outcome for one transaction of a batch.
type BatchResult struct {
	Verdict *tx.Verdict
	Err     error
}

// ValidateBatch validates txs concurrently against the ledger without
// mutating it. At most the pool's worker count run at once. Results are
// returned in input order. The verdicts are optimistic: they hold for the
// state at validation time, so callers must re-check before committing.
func (p *Pool) ValidateBatch(ctx context.Context, txs []*tx.Transaction) ([]BatchResult, error) {
	results := make([]BatchResult, len(txs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, t := range txs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			v, err := p.ledger.Validate(t)
			results[i] = BatchResult{Verdict: v, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
