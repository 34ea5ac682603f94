package ledger

import (
	"context"
	"testing"

	"loyaltyHub/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeLedgerRepo struct {
	entries []domain.LedgerEntry
}

func (f *fakeLedgerRepo) EntriesByMember(ctx context.Context, brandID, memberID uuid.UUID) ([]domain.LedgerEntry, error) {
	return f.entries, nil
}

func (f *fakeLedgerRepo) Page(ctx context.Context, brandID, memberID uuid.UUID, offset, limit int) ([]domain.LedgerEntry, int64, error) {
	total := int64(len(f.entries))
	if offset >= len(f.entries) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(f.entries) {
		end = len(f.entries)
	}
	return f.entries[offset:end], total, nil
}

func entry(kind domain.EntryKind, delta int64) domain.LedgerEntry {
	return domain.LedgerEntry{
		ID:          uuid.New(),
		Kind:        kind,
		PointsDelta: delta,
	}
}

func TestCheckAppend(t *testing.T) {
	tests := []struct {
		name          string
		entry         domain.LedgerEntry
		balance       int64
		allowOverdraw bool
		wantErr       error
	}{
		{"credit", entry(domain.KindPurchase, 100), 0, false, nil},
		{"covered debit", entry(domain.KindAdjustment, -30), 50, false, nil},
		{"debit to exactly zero", entry(domain.KindAdjustment, -50), 50, false, nil},
		{"unknown kind", entry(domain.EntryKind("bogus"), 10), 0, false, domain.ErrValidation},
		{"zero delta purchase", entry(domain.KindPurchase, 0), 0, false, domain.ErrValidation},
		{"zero delta wheel", entry(domain.KindWheel, 0), 0, false, nil},
		{"overdraw without flag", entry(domain.KindAdjustment, -50), 30, false, domain.ErrInsufficientPoints},
		{"overdraw adjustment with flag", entry(domain.KindAdjustment, -50), 30, true, nil},
		{"overdraw reversal with flag", entry(domain.KindReversal, -50), 30, true, nil},
		{"overdraw purchase with flag", entry(domain.KindPurchase, -50), 30, true, domain.ErrInsufficientPoints},
		{"overdraw wheel with flag", entry(domain.KindWheel, -50), 30, true, domain.ErrInsufficientPoints},
	}

	for _, ts := range tests {
		err := CheckAppend(ts.entry, ts.balance, ts.allowOverdraw)
		if ts.wantErr == nil {
			require.NoError(t, err, ts.name)
		} else {
			require.ErrorIs(t, err, ts.wantErr, ts.name)
		}
	}
}

func TestFold(t *testing.T) {
	require.Equal(t, int64(0), Fold(nil))

	entries := []domain.LedgerEntry{
		entry(domain.KindPurchase, 100),
		entry(domain.KindWheel, -10),
		entry(domain.KindMission, 50),
		entry(domain.KindAdjustment, -40),
	}
	require.Equal(t, int64(100), Fold(entries))
}

func TestBalanceOf(t *testing.T) {
	repo := &fakeLedgerRepo{entries: []domain.LedgerEntry{
		entry(domain.KindPurchase, 70),
		entry(domain.KindReward, 30),
	}}
	svc := NewLedgerService(repo)

	balance, err := svc.BalanceOf(context.Background(), uuid.New(), uuid.New())
	require.NoError(t, err)
	require.Equal(t, int64(100), balance)
}

func TestHistoryPagination(t *testing.T) {
	repo := &fakeLedgerRepo{}
	for i := 0; i < 25; i++ {
		repo.entries = append(repo.entries, entry(domain.KindPurchase, int64(i+1)))
	}
	svc := NewLedgerService(repo)

	page1, meta, err := svc.History(context.Background(), uuid.New(), uuid.New(), 1, 10)
	require.NoError(t, err)
	require.Len(t, page1, 10)
	require.Equal(t, int64(25), meta.TotalItems)
	require.Equal(t, 3, meta.TotalPages)

	page3, meta, err := svc.History(context.Background(), uuid.New(), uuid.New(), 3, 10)
	require.NoError(t, err)
	require.Len(t, page3, 5)
	require.Equal(t, 3, meta.Page)

	// same request over an unchanged ledger returns the same slice
	again, _, err := svc.History(context.Background(), uuid.New(), uuid.New(), 3, 10)
	require.NoError(t, err)
	require.Equal(t, page3, again)

	// out-of-range page is empty, not an error
	empty, _, err := svc.History(context.Background(), uuid.New(), uuid.New(), 9, 10)
	require.NoError(t, err)
	require.Empty(t, empty)

	// bad paging inputs fall back to defaults
	defaulted, meta, err := svc.History(context.Background(), uuid.New(), uuid.New(), 0, 0)
	require.NoError(t, err)
	require.Len(t, defaulted, 20)
	require.Equal(t, 1, meta.Page)
	require.Equal(t, 20, meta.PageSize)
}
