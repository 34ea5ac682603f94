package reward_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"loyaltyHub/business/ledger"
	"loyaltyHub/business/mission"
	"loyaltyHub/business/reward"
	"loyaltyHub/business/wheel"
	"loyaltyHub/domain"
	"loyaltyHub/internal/repository/memory"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func int64Ptr(v int64) *int64 { return &v }

type fixture struct {
	store   *memory.Store
	svc     *reward.RewardService
	brand   uuid.UUID
	member  domain.Member
	wheel   domain.Wheel
	mission domain.Mission
	bronze  domain.Tier
	silver  domain.Tier
	gold    domain.Tier
}

// newFixture seeds a brand with a three-tier ladder, one active member, a
// wheel costing 10 points with up to 3 spins a day, and a mission worth 100
// points at target 5.
func newFixture(t *testing.T, rng wheel.RandomSource) *fixture {
	t.Helper()

	f := &fixture{store: memory.NewStore(), brand: uuid.New()}

	f.bronze = domain.Tier{ID: uuid.New(), BrandID: f.brand, Name: "Bronze", MinPoints: 0, MaxPoints: int64Ptr(99), Position: 0}
	f.silver = domain.Tier{ID: uuid.New(), BrandID: f.brand, Name: "Silver", MinPoints: 100, MaxPoints: int64Ptr(499), Position: 1}
	f.gold = domain.Tier{ID: uuid.New(), BrandID: f.brand, Name: "Gold", MinPoints: 500, MaxPoints: nil, Position: 2}
	f.store.SetLadder(f.brand, []domain.Tier{f.bronze, f.silver, f.gold})

	bronzeID := f.bronze.ID
	f.member = domain.Member{
		ID:            uuid.New(),
		BrandID:       f.brand,
		CurrentTierID: &bronzeID,
		IsActive:      true,
	}
	f.store.AddMember(f.member)

	wheelID := uuid.New()
	f.wheel = domain.Wheel{
		ID:             wheelID,
		BrandID:        f.brand,
		Name:           "daily wheel",
		CostToSpin:     10,
		MaxSpinsPerDay: 3,
		IsSpinnable:    true,
		Segments: []domain.WheelSegment{
			{ID: uuid.New(), WheelID: wheelID, Label: "jackpot", Probability: 0.4, RewardPoints: 50, Position: 0},
			{ID: uuid.New(), WheelID: wheelID, Label: "break even", Probability: 0.3, RewardPoints: 10, Position: 1},
			{ID: uuid.New(), WheelID: wheelID, Label: "nothing", Probability: 0.3, RewardPoints: 0, Position: 2},
		},
	}
	f.store.AddWheel(f.wheel)

	f.mission = domain.Mission{
		ID:           uuid.New(),
		BrandID:      f.brand,
		Name:         "buy five coffees",
		Type:         "purchase_count",
		Target:       5,
		RewardPoints: 100,
		IsActive:     true,
	}
	f.store.AddMission(f.mission)

	f.svc = reward.NewRewardService(f.store, wheel.NewWheelService(nil), mission.NewMissionService(), nil, rng)
	return f
}

// fund credits the member through the ordinary adjustment path.
func (f *fixture) fund(t *testing.T, points int64) {
	t.Helper()
	_, err := f.svc.AdjustPoints(context.Background(), f.brand, f.member.ID, points, "test funding", false)
	require.NoError(t, err)
}

func (f *fixture) balance(t *testing.T) int64 {
	t.Helper()
	m, err := f.store.Member(context.Background(), f.brand, f.member.ID)
	require.NoError(t, err)
	return m.Balance
}

func TestSpinWheel(t *testing.T) {
	f := newFixture(t, wheel.NewFixedDraws(0.0)) // lands on jackpot
	ctx := context.Background()
	f.fund(t, 100)

	res, err := f.svc.SpinWheel(ctx, f.brand, f.member.ID, f.wheel.ID)
	require.NoError(t, err)
	require.Equal(t, "jackpot", res.Segment.Label)
	require.Equal(t, int64(40), res.PointsDelta) // 50 reward - 10 cost
	require.Equal(t, int64(140), res.NewBalance)
	require.Equal(t, int64(2), res.RemainingSpins)
	require.Equal(t, int64(140), f.balance(t))

	entries, meta, err := f.svc.LedgerHistory(ctx, f.brand, f.member.ID, 1, 10)
	require.NoError(t, err)
	require.Equal(t, int64(2), meta.TotalItems)
	require.Equal(t, domain.KindWheel, entries[0].Kind)
	require.NotNil(t, entries[0].CorrelationID)
}

func TestSpinWheelNetZero(t *testing.T) {
	f := newFixture(t, wheel.NewFixedDraws(0.4)) // lands on break even
	ctx := context.Background()
	f.fund(t, 50)

	res, err := f.svc.SpinWheel(ctx, f.brand, f.member.ID, f.wheel.ID)
	require.NoError(t, err)
	require.Equal(t, int64(0), res.PointsDelta)
	require.Equal(t, int64(50), res.NewBalance)

	// the zero-delta spin still left an audit entry
	_, meta, err := f.svc.LedgerHistory(ctx, f.brand, f.member.ID, 1, 10)
	require.NoError(t, err)
	require.Equal(t, int64(2), meta.TotalItems)
}

func TestSpinWheelInsufficientPoints(t *testing.T) {
	f := newFixture(t, wheel.NewFixedDraws(0.0))

	_, err := f.svc.SpinWheel(context.Background(), f.brand, f.member.ID, f.wheel.ID)
	require.ErrorIs(t, err, domain.ErrInsufficientPoints)
	require.Equal(t, int64(0), f.balance(t))
}

func TestSpinWheelQuota(t *testing.T) {
	f := newFixture(t, wheel.NewFixedDraws(0.99)) // always "nothing", -10 each
	ctx := context.Background()
	f.fund(t, 100)

	for i := 0; i < 3; i++ {
		res, err := f.svc.SpinWheel(ctx, f.brand, f.member.ID, f.wheel.ID)
		require.NoError(t, err)
		require.Equal(t, int64(2-i), res.RemainingSpins)
	}

	_, err := f.svc.SpinWheel(ctx, f.brand, f.member.ID, f.wheel.ID)
	require.ErrorIs(t, err, domain.ErrQuotaExceeded)
	require.Equal(t, int64(70), f.balance(t))
}

// Four concurrent spin requests against a quota of three: exactly three may
// succeed, and the loser sees the quota error, never a double-spend.
func TestSpinWheelQuotaConcurrent(t *testing.T) {
	f := newFixture(t, wheel.NewFixedDraws(0.99))
	ctx := context.Background()
	f.fund(t, 1000)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.SpinWheel(ctx, f.brand, f.member.ID, f.wheel.ID)
		}(i)
	}
	wg.Wait()

	var ok, rejected int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		default:
			require.ErrorIs(t, err, domain.ErrQuotaExceeded)
			rejected++
		}
	}
	require.Equal(t, 3, ok)
	require.Equal(t, 1, rejected)
	require.Equal(t, int64(970), f.balance(t))
}

func TestSpinWheelQuotaIgnoresPastDays(t *testing.T) {
	f := newFixture(t, wheel.NewFixedDraws(0.99))
	ctx := context.Background()
	f.fund(t, 100)

	yesterday := time.Now().UTC().Add(-24 * time.Hour)
	for i := 0; i < 3; i++ {
		f.store.AddSpin(domain.SpinRecord{
			ID:       uuid.New(),
			WheelID:  f.wheel.ID,
			MemberID: f.member.ID,
			SpunAt:   yesterday,
		})
	}

	res, err := f.svc.SpinWheel(ctx, f.brand, f.member.ID, f.wheel.ID)
	require.NoError(t, err)
	require.Equal(t, int64(2), res.RemainingSpins)
}

func TestSpinWheelNotSpinnable(t *testing.T) {
	f := newFixture(t, wheel.NewFixedDraws(0.0))
	f.fund(t, 100)

	w := f.wheel
	w.IsSpinnable = false
	f.store.AddWheel(w)

	_, err := f.svc.SpinWheel(context.Background(), f.brand, f.member.ID, f.wheel.ID)
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestSpinWheelBadProbabilityTable(t *testing.T) {
	f := newFixture(t, wheel.NewFixedDraws(0.0))
	f.fund(t, 100)

	w := f.wheel
	w.Segments = make([]domain.WheelSegment, len(f.wheel.Segments))
	copy(w.Segments, f.wheel.Segments)
	w.Segments[2].Probability = 0.27 // table now sums to 0.97
	f.store.AddWheel(w)

	_, err := f.svc.SpinWheel(context.Background(), f.brand, f.member.ID, f.wheel.ID)
	require.ErrorIs(t, err, domain.ErrValidation)
	require.Equal(t, int64(100), f.balance(t))
}

func TestSpinWheelWrongBrand(t *testing.T) {
	f := newFixture(t, wheel.NewFixedDraws(0.0))

	_, err := f.svc.SpinWheel(context.Background(), uuid.New(), f.member.ID, f.wheel.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCompleteMission(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.RecordMissionProgress(ctx, f.brand, f.member.ID, f.mission.ID, 5)
	require.NoError(t, err)

	res, err := f.svc.CompleteMission(ctx, f.brand, f.member.ID, f.mission.ID)
	require.NoError(t, err)
	require.False(t, res.AlreadyCompleted)
	require.Equal(t, int64(100), res.Reward)
	require.Equal(t, int64(100), res.NewBalance)

	// repeat returns the prior result without a second ledger entry
	again, err := f.svc.CompleteMission(ctx, f.brand, f.member.ID, f.mission.ID)
	require.NoError(t, err)
	require.True(t, again.AlreadyCompleted)
	require.Equal(t, int64(100), again.Reward)
	require.Equal(t, int64(100), again.NewBalance)

	_, meta, err := f.svc.LedgerHistory(ctx, f.brand, f.member.ID, 1, 10)
	require.NoError(t, err)
	require.Equal(t, int64(1), meta.TotalItems)
	require.Equal(t, int64(100), f.balance(t))
}

func TestCompleteMissionNotEligible(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.RecordMissionProgress(ctx, f.brand, f.member.ID, f.mission.ID, 4)
	require.NoError(t, err)

	_, err = f.svc.CompleteMission(ctx, f.brand, f.member.ID, f.mission.ID)
	require.ErrorIs(t, err, domain.ErrNotEligible)
	require.Equal(t, int64(0), f.balance(t))
}

func TestCompleteMissionInactive(t *testing.T) {
	f := newFixture(t, nil)

	m := f.mission
	m.IsActive = false
	f.store.AddMission(m)

	_, err := f.svc.CompleteMission(context.Background(), f.brand, f.member.ID, f.mission.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRecordMissionProgressClamp(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	p, err := f.svc.RecordMissionProgress(ctx, f.brand, f.member.ID, f.mission.ID, 3)
	require.NoError(t, err)
	require.Equal(t, int64(3), p.Progress)

	p, err = f.svc.RecordMissionProgress(ctx, f.brand, f.member.ID, f.mission.ID, 100)
	require.NoError(t, err)
	require.Equal(t, f.mission.Target, p.Progress)

	// progress never posts points on its own
	require.Equal(t, int64(0), f.balance(t))
}

func TestRecordMissionProgressFrozenAfterCompletion(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.RecordMissionProgress(ctx, f.brand, f.member.ID, f.mission.ID, 5)
	require.NoError(t, err)
	_, err = f.svc.CompleteMission(ctx, f.brand, f.member.ID, f.mission.ID)
	require.NoError(t, err)

	p, err := f.svc.RecordMissionProgress(ctx, f.brand, f.member.ID, f.mission.ID, 3)
	require.NoError(t, err)
	require.Equal(t, f.mission.Target, p.Progress)
}

func TestAdjustPointsOverdraw(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.fund(t, 30)

	_, err := f.svc.AdjustPoints(ctx, f.brand, f.member.ID, -50, "penalty", false)
	require.ErrorIs(t, err, domain.ErrInsufficientPoints)
	require.Equal(t, int64(30), f.balance(t))

	// no entry was posted for the rejected adjustment
	_, meta, err := f.svc.LedgerHistory(ctx, f.brand, f.member.ID, 1, 10)
	require.NoError(t, err)
	require.Equal(t, int64(1), meta.TotalItems)

	res, err := f.svc.AdjustPoints(ctx, f.brand, f.member.ID, -50, "penalty", true)
	require.NoError(t, err)
	require.Equal(t, int64(-20), res.NewBalance)
	require.Equal(t, int64(-20), f.balance(t))
}

func TestAdjustPointsZeroDelta(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.AdjustPoints(context.Background(), f.brand, f.member.ID, 0, "noop", false)
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestRecordPurchase(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	res, err := f.svc.RecordPurchase(ctx, f.brand, f.member.ID, 150, 42.5, "order #1001")
	require.NoError(t, err)
	require.Equal(t, int64(150), res.NewBalance)
	require.True(t, res.TierChanged)
	require.Equal(t, "Silver", res.NewTier.Name)

	m, err := f.store.Member(ctx, f.brand, f.member.ID)
	require.NoError(t, err)
	require.Equal(t, 42.5, m.LifetimeSpend)
	require.NotNil(t, m.CurrentTierID)
	require.Equal(t, f.silver.ID, *m.CurrentTierID)

	// a second purchase inside the same tier does not report a change
	res, err = f.svc.RecordPurchase(ctx, f.brand, f.member.ID, 10, 5.0, "order #1002")
	require.NoError(t, err)
	require.False(t, res.TierChanged)
	require.Equal(t, 47.5, func() float64 {
		m, _ := f.store.Member(ctx, f.brand, f.member.ID)
		return m.LifetimeSpend
	}())
}

func TestRecordPurchaseRejectsBadInput(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.RecordPurchase(ctx, f.brand, f.member.ID, 0, 10, "zero points")
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.RecordPurchase(ctx, f.brand, f.member.ID, 10, -1, "negative amount")
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestReverseEntry(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.RecordPurchase(ctx, f.brand, f.member.ID, 100, 20, "order #7")
	require.NoError(t, err)

	entries, _, err := f.svc.LedgerHistory(ctx, f.brand, f.member.ID, 1, 10)
	require.NoError(t, err)
	original := entries[0]

	res, err := f.svc.ReverseEntry(ctx, f.brand, f.member.ID, original.ID, "order refunded")
	require.NoError(t, err)
	require.Equal(t, int64(0), res.NewBalance)

	entries, _, err = f.svc.LedgerHistory(ctx, f.brand, f.member.ID, 1, 10)
	require.NoError(t, err)
	reversal := entries[0]
	require.Equal(t, domain.KindReversal, reversal.Kind)
	require.Equal(t, -original.PointsDelta, reversal.PointsDelta)
	require.NotNil(t, reversal.CorrelationID)
	require.Equal(t, original.ID, *reversal.CorrelationID)

	// an entry may be reversed at most once
	_, err = f.svc.ReverseEntry(ctx, f.brand, f.member.ID, original.ID, "again")
	require.ErrorIs(t, err, domain.ErrValidation)

	// and a reversal itself cannot be reversed
	_, err = f.svc.ReverseEntry(ctx, f.brand, f.member.ID, reversal.ID, "undo the undo")
	require.ErrorIs(t, err, domain.ErrValidation)
}

// After any mix of operations, the member's cached balance equals the fold of
// the full ledger history.
func TestBalanceMatchesLedgerFold(t *testing.T) {
	f := newFixture(t, wheel.NewFixedDraws(0.0, 0.5, 0.99))
	ctx := context.Background()

	f.fund(t, 200)
	_, err := f.svc.RecordPurchase(ctx, f.brand, f.member.ID, 75, 12.0, "order #42")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := f.svc.SpinWheel(ctx, f.brand, f.member.ID, f.wheel.ID)
		require.NoError(t, err)
	}
	_, err = f.svc.RecordMissionProgress(ctx, f.brand, f.member.ID, f.mission.ID, 5)
	require.NoError(t, err)
	_, err = f.svc.CompleteMission(ctx, f.brand, f.member.ID, f.mission.ID)
	require.NoError(t, err)
	_, err = f.svc.AdjustPoints(ctx, f.brand, f.member.ID, -37, "correction", false)
	require.NoError(t, err)

	var all []domain.LedgerEntry
	for page := 1; ; page++ {
		entries, meta, err := f.svc.LedgerHistory(ctx, f.brand, f.member.ID, page, 3)
		require.NoError(t, err)
		all = append(all, entries...)
		if page >= meta.TotalPages {
			break
		}
	}

	require.Equal(t, f.balance(t), ledger.Fold(all))
}

func TestLedgerHistoryOrder(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.fund(t, 10)
	_, err := f.svc.RecordPurchase(ctx, f.brand, f.member.ID, 20, 4.0, "order #1")
	require.NoError(t, err)

	entries, meta, err := f.svc.LedgerHistory(ctx, f.brand, f.member.ID, 1, 10)
	require.NoError(t, err)
	require.Equal(t, int64(2), meta.TotalItems)
	// newest first
	require.Equal(t, domain.KindPurchase, entries[0].Kind)
	require.Equal(t, domain.KindAdjustment, entries[1].Kind)
	require.Greater(t, entries[0].Sequence, entries[1].Sequence)
}

func TestTierStatus(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.fund(t, 150)

	status, err := f.svc.TierStatus(ctx, f.brand, f.member.ID)
	require.NoError(t, err)
	require.Equal(t, "Silver", status.CurrentTier.Name)
	require.NotNil(t, status.NextTier)
	require.Equal(t, "Gold", status.NextTier.Name)
	require.Equal(t, int64(350), status.Progress.PointsToNext)
	require.InDelta(t, 0.125, status.Progress.Percentage, 1e-9)

	f.fund(t, 400)
	status, err = f.svc.TierStatus(ctx, f.brand, f.member.ID)
	require.NoError(t, err)
	require.Equal(t, "Gold", status.CurrentTier.Name)
	require.Nil(t, status.NextTier)
	require.Equal(t, 1.0, status.Progress.Percentage)
}

func TestInactiveMemberRejected(t *testing.T) {
	f := newFixture(t, wheel.NewFixedDraws(0.0))
	ctx := context.Background()

	m := f.member
	m.IsActive = false
	f.store.AddMember(m)

	_, err := f.svc.AdjustPoints(ctx, f.brand, f.member.ID, 10, "credit", false)
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.SpinWheel(ctx, f.brand, f.member.ID, f.wheel.ID)
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestReconcileRepairsDrift(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.fund(t, 250)

	// in-sync member needs no repair
	repaired, err := f.svc.ReconcileMember(ctx, f.brand, f.member.ID)
	require.NoError(t, err)
	require.False(t, repaired)

	f.store.SetMemberBalance(f.member.ID, 999_999)

	repaired, err = f.svc.ReconcileMember(ctx, f.brand, f.member.ID)
	require.NoError(t, err)
	require.True(t, repaired)
	require.Equal(t, int64(250), f.balance(t))

	m, err := f.store.Member(ctx, f.brand, f.member.ID)
	require.NoError(t, err)
	require.NotNil(t, m.CurrentTierID)
	require.Equal(t, f.silver.ID, *m.CurrentTierID)
}

func TestReconcileAll(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.fund(t, 50)

	// second member on the same brand, with fabricated drift
	other := domain.Member{ID: uuid.New(), BrandID: f.brand, IsActive: true}
	f.store.AddMember(other)
	_, err := f.svc.AdjustPoints(ctx, f.brand, other.ID, 120, "credit", false)
	require.NoError(t, err)
	f.store.SetMemberBalance(other.ID, 7)

	repaired, err := f.svc.ReconcileAll(ctx, 4, 1)
	require.NoError(t, err)
	require.Equal(t, int64(1), repaired)

	m, err := f.store.Member(ctx, f.brand, other.ID)
	require.NoError(t, err)
	require.Equal(t, int64(120), m.Balance)
}
