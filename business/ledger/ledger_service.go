package ledger

import (
	"context"
	"fmt"

	"loyaltyHub/domain"

	"github.com/google/uuid"
)

type LedgerRepository interface {
	EntriesByMember(ctx context.Context, brandID, memberID uuid.UUID) ([]domain.LedgerEntry, error)
	Page(ctx context.Context, brandID, memberID uuid.UUID, offset, limit int) ([]domain.LedgerEntry, int64, error)
}

type LedgerService struct {
	ledgerRepo LedgerRepository
}

func NewLedgerService(ledgerRepo LedgerRepository) *LedgerService {
	return &LedgerService{
		ledgerRepo: ledgerRepo,
	}
}

// CheckAppend enforces the append rules against the balance the entry would
// apply to. Kinds other than wheel must move points; a wheel entry may net to
// zero when the reward equals the spin cost. An entry that would drive the
// balance negative is rejected unless the kind may overdraw (adjustment or
// reversal) and the caller set the explicit override flag.
func CheckAppend(e domain.LedgerEntry, balance int64, allowOverdraw bool) error {
	if !e.Kind.Valid() {
		return fmt.Errorf("%w: unknown entry kind %q", domain.ErrValidation, e.Kind)
	}
	if e.PointsDelta == 0 && e.Kind != domain.KindWheel {
		return fmt.Errorf("%w: %s entry must move points", domain.ErrValidation, e.Kind)
	}

	if balance+e.PointsDelta < 0 {
		if allowOverdraw && (e.Kind == domain.KindAdjustment || e.Kind == domain.KindReversal) {
			return nil
		}
		return fmt.Errorf("%w: balance %d cannot absorb %d", domain.ErrInsufficientPoints, balance, e.PointsDelta)
	}
	return nil
}

// Fold sums deltas in sequence order. The result is the member's balance at
// the observation point of the entries slice.
func Fold(entries []domain.LedgerEntry) int64 {
	var balance int64
	for _, e := range entries {
		balance += e.PointsDelta
	}
	return balance
}

// BalanceOf recomputes the balance as the fold over all of the member's
// entries in insertion order.
func (s *LedgerService) BalanceOf(ctx context.Context, brandID, memberID uuid.UUID) (int64, error) {
	entries, err := s.ledgerRepo.EntriesByMember(ctx, brandID, memberID)
	if err != nil {
		return 0, err
	}
	return Fold(entries), nil
}

// History returns the member's entries newest first, with pagination meta.
// The sequence is finite and restartable: the same page request over an
// unchanged ledger returns the same slice.
func (s *LedgerService) History(ctx context.Context, brandID, memberID uuid.UUID, page, pageSize int) ([]domain.LedgerEntry, domain.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	entries, total, err := s.ledgerRepo.Page(ctx, brandID, memberID, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, domain.Pagination{}, err
	}
	return entries, domain.NewPagination(page, pageSize, total), nil
}
