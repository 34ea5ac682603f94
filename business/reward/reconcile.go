package reward

import (
	"context"

	"loyaltyHub/business/tier"
	"loyaltyHub/pkg/logger"
	"loyaltyHub/pkg/metrics"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ReconcileAll scans every member and repairs cached balances and tiers that
// have drifted from the ledger fold. Drift should never happen when all
// writes go through the applicator; the scan exists to catch operator
// mistakes and restores the invariant without touching the ledger itself.
func (s *RewardService) ReconcileAll(ctx context.Context, workers, pageSize int) (repaired int64, err error) {
	if workers < 1 {
		workers = 1
	}
	if pageSize < 1 {
		pageSize = 500
	}

	var total int64
	for offset := 0; ; offset += pageSize {
		refs, err := s.store.MemberRefs(ctx, offset, pageSize)
		if err != nil {
			return total, err
		}
		if len(refs) == 0 {
			return total, nil
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		results := make(chan bool, len(refs))
		for _, ref := range refs {
			g.Go(func() error {
				fixed, err := s.ReconcileMember(gctx, ref.BrandID, ref.MemberID)
				if err != nil {
					logger.Error("Reconcile failed",
						"brand_id", ref.BrandID,
						"member_id", ref.MemberID,
						"error", err)
					return err
				}
				results <- fixed
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return total, err
		}
		close(results)
		for fixed := range results {
			if fixed {
				total++
			}
		}
	}
}

// ReconcileMember recomputes one member's ledger fold and tier inside the
// member transaction, overwriting the cached fields on drift. Returns
// whether a repair was needed.
func (s *RewardService) ReconcileMember(ctx context.Context, brandID, memberID uuid.UUID) (bool, error) {
	ladder, err := s.store.Ladder(ctx, brandID)
	if err != nil {
		return false, err
	}

	var repaired bool
	err = s.store.MemberTx(ctx, brandID, memberID, func(tx MemberTx) error {
		m := tx.Member()

		balance, err := tx.Balance()
		if err != nil {
			return err
		}
		t, err := tier.Resolve(ladder, max(balance, 0))
		if err != nil {
			return err
		}

		inSync := m.Balance == balance && m.CurrentTierID != nil && *m.CurrentTierID == t.ID
		if inSync {
			return nil
		}

		logger.Warn("Derived member state drifted from ledger",
			"member_id", memberID,
			"cached_balance", m.Balance,
			"ledger_balance", balance)

		tierID := t.ID
		m.Balance = balance
		m.CurrentTierID = &tierID
		if err := tx.UpdateMember(m); err != nil {
			return err
		}
		repaired = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if repaired {
		metrics.ReconcileRepairs.Inc()
		s.invalidate(ctx, memberID)
	}
	return repaired, nil
}
