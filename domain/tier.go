package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Tier is one rung of a brand's tier ladder. Per brand the ladder is totally
// ordered by MinPoints with contiguous, non-overlapping ranges: tier i's
// MaxPoints + 1 equals tier i+1's MinPoints, and only the top tier has a nil
// (unbounded) MaxPoints. Exactly one tier matches any non-negative balance.
type Tier struct {
	ID        uuid.UUID      `gorm:"primaryKey;type:uuid" json:"id"`
	BrandID   uuid.UUID      `gorm:"type:uuid;not null;index:idx_tiers_brand_position,unique,priority:1" json:"brand_id"`
	Name      string         `gorm:"type:varchar(100);not null" json:"name"`
	MinPoints int64          `gorm:"not null" json:"min_points"`
	MaxPoints *int64         `json:"max_points,omitempty"`
	Benefits  datatypes.JSON `json:"benefits,omitempty"`
	Position  int            `gorm:"not null;index:idx_tiers_brand_position,unique,priority:2" json:"position"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (Tier) TableName() string {
	return "tiers"
}

// TierProgress describes how far a balance has climbed inside its current
// tier and how many points remain to the next one.
type TierProgress struct {
	PointsToNext int64   `json:"points_to_next"`
	Percentage   float64 `json:"percentage"`
}
