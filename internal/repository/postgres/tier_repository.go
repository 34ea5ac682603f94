package postgres

import (
	"context"

	"loyaltyHub/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TierRepository loads brand tier ladders for the tier resolver.
type TierRepository struct {
	DB *gorm.DB
}

func NewTierRepository(db *gorm.DB) *TierRepository {
	return &TierRepository{DB: db}
}

func (r *TierRepository) LadderByBrand(ctx context.Context, brandID uuid.UUID) ([]domain.Tier, error) {
	var ladder []domain.Tier
	err := r.DB.WithContext(ctx).
		Where("brand_id = ?", brandID).
		Order("position ASC").
		Find(&ladder).Error
	if err != nil {
		return nil, mapError(err, "tier ladder")
	}
	return ladder, nil
}
