package reward

import (
	"context"
	"errors"
	"fmt"
	"time"

	"loyaltyHub/business/ledger"
	"loyaltyHub/business/mission"
	"loyaltyHub/business/tier"
	"loyaltyHub/business/wheel"
	"loyaltyHub/domain"
	"loyaltyHub/pkg/logger"
	"loyaltyHub/pkg/metrics"

	"github.com/google/uuid"
)

// RewardService is the single choke point for every operation that changes a
// member's points. Each write posts exactly one ledger entry (plus one spin
// record for spins), reconciles the cached balance from the ledger fold,
// re-resolves the member's tier, and commits all of it as one atomic unit.
type RewardService struct {
	store    Store
	wheels   *wheel.WheelService
	missions *mission.MissionService
	cache    BalanceCache
	rng      wheel.RandomSource
	now      func() time.Time
}

// NewRewardService builds the applicator. cache may be nil; rng nil means the
// crypto-backed default.
func NewRewardService(store Store, wheels *wheel.WheelService, missions *mission.MissionService, cache BalanceCache, rng wheel.RandomSource) *RewardService {
	if rng == nil {
		rng = wheel.DefaultRNG()
	}
	return &RewardService{
		store:    store,
		wheels:   wheels,
		missions: missions,
		cache:    cache,
		rng:      rng,
		now:      time.Now,
	}
}

type SpinResult struct {
	Segment        domain.WheelSegment `json:"segment"`
	PointsDelta    int64               `json:"points_delta"`
	NewBalance     int64               `json:"new_balance"`
	RemainingSpins int64               `json:"remaining_spins"`
}

type MissionResult struct {
	Reward           int64 `json:"reward"`
	NewBalance       int64 `json:"new_balance"`
	AlreadyCompleted bool  `json:"already_completed"`
}

type AdjustResult struct {
	NewBalance int64 `json:"new_balance"`
}

type ApplyResult struct {
	NewBalance  int64       `json:"new_balance"`
	TierChanged bool        `json:"tier_changed"`
	NewTier     domain.Tier `json:"new_tier"`
}

type TierStatus struct {
	CurrentTier domain.Tier         `json:"current_tier"`
	NextTier    *domain.Tier        `json:"next_tier,omitempty"`
	Progress    domain.TierProgress `json:"progress"`
}

// settle recomputes the ledger fold, overwrites the member's cached balance,
// and re-resolves the tier, updating CurrentTierID only on change. Runs at
// the end of every write transaction.
func (s *RewardService) settle(tx MemberTx, ladder []domain.Tier, m domain.Member) (int64, bool, domain.Tier, error) {
	newBalance, err := tx.Balance()
	if err != nil {
		return 0, false, domain.Tier{}, err
	}

	// an overdrawn balance resolves as the bottom of the ladder
	t, err := tier.Resolve(ladder, max(newBalance, 0))
	if err != nil {
		return 0, false, domain.Tier{}, err
	}

	changed := m.CurrentTierID == nil || *m.CurrentTierID != t.ID
	m.Balance = newBalance
	if changed {
		tierID := t.ID
		m.CurrentTierID = &tierID
	}
	if err := tx.UpdateMember(m); err != nil {
		return 0, false, domain.Tier{}, err
	}
	return newBalance, changed, t, nil
}

func (s *RewardService) invalidate(ctx context.Context, memberID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateBalance(ctx, memberID); err != nil {
		logger.Warn("Failed to invalidate balance cache", "member_id", memberID, "error", err)
	}
}

func activeMember(tx MemberTx) (domain.Member, error) {
	m := tx.Member()
	if !m.IsActive {
		return domain.Member{}, fmt.Errorf("%w: member %s is deactivated", domain.ErrValidation, m.ID)
	}
	return m, nil
}

// SpinWheel charges the spin cost, selects a segment from the wheel's
// probability table, records the spin, and posts the net points movement as
// one wheel ledger entry. Quota check and spin insert share the member
// transaction, so two concurrent spins cannot both observe quota remaining.
func (s *RewardService) SpinWheel(ctx context.Context, brandID, memberID, wheelID uuid.UUID) (SpinResult, error) {
	start := time.Now()
	defer func() {
		metrics.SpinDuration.Observe(time.Since(start).Seconds())
	}()

	w, err := s.store.Wheel(ctx, brandID, wheelID)
	if err != nil {
		return SpinResult{}, err
	}
	if !w.IsSpinnable {
		return SpinResult{}, fmt.Errorf("%w: wheel %s is not spinnable", domain.ErrValidation, w.ID)
	}
	if err := s.wheels.Validate(w); err != nil {
		return SpinResult{}, err
	}

	ladder, err := s.store.Ladder(ctx, brandID)
	if err != nil {
		return SpinResult{}, err
	}

	var result SpinResult
	err = s.store.MemberTx(ctx, brandID, memberID, func(tx MemberTx) error {
		m, err := activeMember(tx)
		if err != nil {
			return err
		}

		now := s.now()
		used, err := tx.CountSpins(w.ID, s.wheels.DayStart(now))
		if err != nil {
			return err
		}
		remaining := w.MaxSpinsPerDay - used
		if remaining <= 0 {
			return fmt.Errorf("%w: %d spins used today", domain.ErrQuotaExceeded, used)
		}

		balance, err := tx.Balance()
		if err != nil {
			return err
		}
		if balance < w.CostToSpin {
			return fmt.Errorf("%w: balance %d, spin costs %d", domain.ErrInsufficientPoints, balance, w.CostToSpin)
		}

		segment, err := wheel.Pick(w.Segments, s.rng.Float64())
		if err != nil {
			return err
		}

		spin := domain.SpinRecord{
			ID:           uuid.New(),
			WheelID:      w.ID,
			MemberID:     memberID,
			SegmentID:    segment.ID,
			PointsUsed:   w.CostToSpin,
			ResultReward: segment.RewardPoints,
			SpunAt:       now,
		}
		if err := tx.InsertSpin(spin); err != nil {
			return err
		}

		entry := domain.LedgerEntry{
			ID:            uuid.New(),
			MemberID:      memberID,
			BrandID:       brandID,
			Kind:          domain.KindWheel,
			PointsDelta:   segment.RewardPoints - w.CostToSpin,
			Description:   fmt.Sprintf("wheel spin: %s", segment.Label),
			CorrelationID: &spin.ID,
			CreatedAt:     now,
		}
		if err := ledger.CheckAppend(entry, balance, false); err != nil {
			return err
		}
		if _, err := tx.Append(entry); err != nil {
			return err
		}

		newBalance, _, _, err := s.settle(tx, ladder, m)
		if err != nil {
			return err
		}

		result = SpinResult{
			Segment:        segment,
			PointsDelta:    entry.PointsDelta,
			NewBalance:     newBalance,
			RemainingSpins: remaining - 1,
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrQuotaExceeded) {
			metrics.SpinQuotaRejections.Inc()
		}
		return SpinResult{}, err
	}

	metrics.SpinsTotal.Inc()
	metrics.LedgerAppends.Inc()
	s.invalidate(ctx, memberID)
	return result, nil
}

// CompleteMission grants the mission reward exactly once. A repeated request
// returns the prior result without touching the ledger.
func (s *RewardService) CompleteMission(ctx context.Context, brandID, memberID, missionID uuid.UUID) (MissionResult, error) {
	m, err := s.store.Mission(ctx, brandID, missionID)
	if err != nil {
		return MissionResult{}, err
	}
	if !m.IsActive {
		return MissionResult{}, fmt.Errorf("%w: mission %s is inactive", domain.ErrNotFound, m.ID)
	}
	if err := s.missions.Validate(m); err != nil {
		return MissionResult{}, err
	}

	ladder, err := s.store.Ladder(ctx, brandID)
	if err != nil {
		return MissionResult{}, err
	}

	var result MissionResult
	var rewarded bool
	err = s.store.MemberTx(ctx, brandID, memberID, func(tx MemberTx) error {
		member, err := activeMember(tx)
		if err != nil {
			return err
		}

		progress, found, err := tx.Progress(missionID)
		if err != nil {
			return err
		}
		if !found {
			progress = domain.MissionProgress{MemberID: memberID, MissionID: missionID}
		}

		if progress.Completed() {
			balance, err := tx.Balance()
			if err != nil {
				return err
			}
			result = MissionResult{
				Reward:           progress.RewardGranted,
				NewBalance:       balance,
				AlreadyCompleted: true,
			}
			return nil
		}

		if err := mission.CheckEligible(progress, m); err != nil {
			return err
		}

		now := s.now()
		balance, err := tx.Balance()
		if err != nil {
			return err
		}

		entry := domain.LedgerEntry{
			ID:            uuid.New(),
			MemberID:      memberID,
			BrandID:       brandID,
			Kind:          domain.KindMission,
			PointsDelta:   m.RewardPoints,
			Description:   fmt.Sprintf("mission completed: %s", m.Name),
			CorrelationID: &m.ID,
			CreatedAt:     now,
		}
		if err := ledger.CheckAppend(entry, balance, false); err != nil {
			return err
		}
		if _, err := tx.Append(entry); err != nil {
			return err
		}

		progress.CompletedAt = &now
		progress.RewardGranted = m.RewardPoints
		if err := tx.SaveProgress(progress); err != nil {
			return err
		}

		newBalance, _, _, err := s.settle(tx, ladder, member)
		if err != nil {
			return err
		}

		result = MissionResult{
			Reward:     m.RewardPoints,
			NewBalance: newBalance,
		}
		rewarded = true
		return nil
	})
	if err != nil {
		return MissionResult{}, err
	}

	if rewarded {
		metrics.MissionCompletions.Inc()
		metrics.LedgerAppends.Inc()
		s.invalidate(ctx, memberID)
	}
	return result, nil
}

// RecordMissionProgress adds delta to the member's mission progress, clamped
// at the mission target. It never posts a ledger entry.
func (s *RewardService) RecordMissionProgress(ctx context.Context, brandID, memberID, missionID uuid.UUID, delta int64) (domain.MissionProgress, error) {
	m, err := s.store.Mission(ctx, brandID, missionID)
	if err != nil {
		return domain.MissionProgress{}, err
	}
	if !m.IsActive {
		return domain.MissionProgress{}, fmt.Errorf("%w: mission %s is inactive", domain.ErrNotFound, m.ID)
	}

	var result domain.MissionProgress
	err = s.store.MemberTx(ctx, brandID, memberID, func(tx MemberTx) error {
		if _, err := activeMember(tx); err != nil {
			return err
		}

		progress, found, err := tx.Progress(missionID)
		if err != nil {
			return err
		}
		if !found {
			progress = domain.MissionProgress{MemberID: memberID, MissionID: missionID}
		}

		progress, err = mission.ApplyProgress(progress, m, delta)
		if err != nil {
			return err
		}
		if err := tx.SaveProgress(progress); err != nil {
			return err
		}
		result = progress
		return nil
	})
	if err != nil {
		return domain.MissionProgress{}, err
	}
	return result, nil
}

// AdjustPoints posts a manual adjustment. A negative delta that would
// overdraw the balance is rejected unless allowOverdraw is set.
func (s *RewardService) AdjustPoints(ctx context.Context, brandID, memberID uuid.UUID, delta int64, reason string, allowOverdraw bool) (AdjustResult, error) {
	ladder, err := s.store.Ladder(ctx, brandID)
	if err != nil {
		return AdjustResult{}, err
	}
	if reason == "" {
		reason = "manual adjustment"
	}

	var result AdjustResult
	err = s.store.MemberTx(ctx, brandID, memberID, func(tx MemberTx) error {
		m, err := activeMember(tx)
		if err != nil {
			return err
		}

		balance, err := tx.Balance()
		if err != nil {
			return err
		}

		entry := domain.LedgerEntry{
			ID:          uuid.New(),
			MemberID:    memberID,
			BrandID:     brandID,
			Kind:        domain.KindAdjustment,
			PointsDelta: delta,
			Description: reason,
			CreatedAt:   s.now(),
		}
		if err := ledger.CheckAppend(entry, balance, allowOverdraw); err != nil {
			return err
		}
		if _, err := tx.Append(entry); err != nil {
			return err
		}

		newBalance, _, _, err := s.settle(tx, ladder, m)
		if err != nil {
			return err
		}
		result = AdjustResult{NewBalance: newBalance}
		return nil
	})
	if err != nil {
		return AdjustResult{}, err
	}

	metrics.LedgerAppends.Inc()
	s.invalidate(ctx, memberID)
	return result, nil
}

// RecordPurchase credits points earned by a purchase and accrues the
// member's lifetime spend.
func (s *RewardService) RecordPurchase(ctx context.Context, brandID, memberID uuid.UUID, points int64, amount float64, description string) (ApplyResult, error) {
	if points <= 0 {
		return ApplyResult{}, fmt.Errorf("%w: purchase must credit points, got %d", domain.ErrValidation, points)
	}
	if amount < 0 {
		return ApplyResult{}, fmt.Errorf("%w: negative purchase amount", domain.ErrValidation)
	}

	ladder, err := s.store.Ladder(ctx, brandID)
	if err != nil {
		return ApplyResult{}, err
	}

	var result ApplyResult
	err = s.store.MemberTx(ctx, brandID, memberID, func(tx MemberTx) error {
		m, err := activeMember(tx)
		if err != nil {
			return err
		}

		balance, err := tx.Balance()
		if err != nil {
			return err
		}

		entry := domain.LedgerEntry{
			ID:             uuid.New(),
			MemberID:       memberID,
			BrandID:        brandID,
			Kind:           domain.KindPurchase,
			PointsDelta:    points,
			MonetaryAmount: &amount,
			Description:    description,
			CreatedAt:      s.now(),
		}
		if err := ledger.CheckAppend(entry, balance, false); err != nil {
			return err
		}
		if _, err := tx.Append(entry); err != nil {
			return err
		}

		m.LifetimeSpend += amount
		newBalance, changed, newTier, err := s.settle(tx, ladder, m)
		if err != nil {
			return err
		}
		result = ApplyResult{NewBalance: newBalance, TierChanged: changed, NewTier: newTier}
		return nil
	})
	if err != nil {
		return ApplyResult{}, err
	}

	metrics.LedgerAppends.Inc()
	if result.TierChanged {
		metrics.TierChanges.Inc()
	}
	s.invalidate(ctx, memberID)
	return result, nil
}

// ReverseEntry corrects a prior entry by posting a new reversal entry with
// the opposite delta, referencing the original via CorrelationID. An entry
// can be reversed at most once; reversals may overdraw.
func (s *RewardService) ReverseEntry(ctx context.Context, brandID, memberID, entryID uuid.UUID, reason string) (AdjustResult, error) {
	ladder, err := s.store.Ladder(ctx, brandID)
	if err != nil {
		return AdjustResult{}, err
	}
	if reason == "" {
		reason = "reversal"
	}

	var result AdjustResult
	err = s.store.MemberTx(ctx, brandID, memberID, func(tx MemberTx) error {
		m, err := activeMember(tx)
		if err != nil {
			return err
		}

		original, err := tx.Entry(entryID)
		if err != nil {
			return err
		}
		if original.Kind == domain.KindReversal {
			return fmt.Errorf("%w: cannot reverse a reversal", domain.ErrValidation)
		}
		reversed, err := tx.HasReversal(entryID)
		if err != nil {
			return err
		}
		if reversed {
			return fmt.Errorf("%w: entry %s already reversed", domain.ErrValidation, entryID)
		}

		balance, err := tx.Balance()
		if err != nil {
			return err
		}

		originalID := original.ID
		entry := domain.LedgerEntry{
			ID:            uuid.New(),
			MemberID:      memberID,
			BrandID:       brandID,
			Kind:          domain.KindReversal,
			PointsDelta:   -original.PointsDelta,
			Description:   reason,
			CorrelationID: &originalID,
			CreatedAt:     s.now(),
		}
		if err := ledger.CheckAppend(entry, balance, true); err != nil {
			return err
		}
		if _, err := tx.Append(entry); err != nil {
			return err
		}

		newBalance, _, _, err := s.settle(tx, ladder, m)
		if err != nil {
			return err
		}
		result = AdjustResult{NewBalance: newBalance}
		return nil
	})
	if err != nil {
		return AdjustResult{}, err
	}

	metrics.LedgerAppends.Inc()
	s.invalidate(ctx, memberID)
	return result, nil
}

// TierStatus reports the member's current tier, the next tier, and progress
// toward it. Point-in-time read; the balance may come from the cache.
func (s *RewardService) TierStatus(ctx context.Context, brandID, memberID uuid.UUID) (TierStatus, error) {
	member, err := s.store.Member(ctx, brandID, memberID)
	if err != nil {
		return TierStatus{}, err
	}

	balance := member.Balance
	if s.cache != nil {
		cached, err := s.cache.GetBalance(ctx, memberID)
		if err == nil {
			balance = cached
		} else {
			if err := s.cache.SetBalance(ctx, memberID, balance); err != nil {
				logger.Warn("Failed to populate balance cache", "member_id", memberID, "error", err)
			}
		}
	}

	ladder, err := s.store.Ladder(ctx, brandID)
	if err != nil {
		return TierStatus{}, err
	}

	current, err := tier.Resolve(ladder, max(balance, 0))
	if err != nil {
		logger.Error("Tier ladder rejected at resolution", "brand_id", brandID, "error", err)
		return TierStatus{}, err
	}

	next := tier.Next(ladder, current)
	return TierStatus{
		CurrentTier: current,
		NextTier:    next,
		Progress:    tier.ComputeProgress(balance, current, next),
	}, nil
}

// LedgerHistory pages the member's entries newest first.
func (s *RewardService) LedgerHistory(ctx context.Context, brandID, memberID uuid.UUID, page, pageSize int) ([]domain.LedgerEntry, domain.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	entries, total, err := s.store.History(ctx, brandID, memberID, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, domain.Pagination{}, err
	}
	return entries, domain.NewPagination(page, pageSize, total), nil
}
