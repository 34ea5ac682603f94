package postgres

import (
	"context"

	"loyaltyHub/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LedgerRepository is the read-side repository behind the ledger service.
type LedgerRepository struct {
	DB *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{DB: db}
}

func (r *LedgerRepository) EntriesByMember(ctx context.Context, brandID, memberID uuid.UUID) ([]domain.LedgerEntry, error) {
	var entries []domain.LedgerEntry
	err := r.DB.WithContext(ctx).
		Where("member_id = ? AND brand_id = ?", memberID, brandID).
		Order("sequence ASC").
		Find(&entries).Error
	if err != nil {
		return nil, mapError(err, "ledger entries")
	}
	return entries, nil
}

func (r *LedgerRepository) Page(ctx context.Context, brandID, memberID uuid.UUID, offset, limit int) ([]domain.LedgerEntry, int64, error) {
	var total int64
	err := r.DB.WithContext(ctx).Model(&domain.LedgerEntry{}).
		Where("member_id = ? AND brand_id = ?", memberID, brandID).
		Count(&total).Error
	if err != nil {
		return nil, 0, mapError(err, "ledger page count")
	}

	var entries []domain.LedgerEntry
	err = r.DB.WithContext(ctx).
		Where("member_id = ? AND brand_id = ?", memberID, brandID).
		Order("sequence DESC").
		Offset(offset).
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, 0, mapError(err, "ledger page")
	}
	return entries, total, nil
}
