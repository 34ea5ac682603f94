package domain

import (
	"time"

	"github.com/google/uuid"
)

// Member is a brand's enrolled customer. Balance and CurrentTierID are
// derived caches: the ledger is the source of truth and both fields are
// rewritten from it on every points-affecting write. Members are never
// deleted, only deactivated.
type Member struct {
	ID            uuid.UUID  `gorm:"primaryKey;type:uuid" json:"id"`
	BrandID       uuid.UUID  `gorm:"type:uuid;not null;index" json:"brand_id"`
	CurrentTierID *uuid.UUID `gorm:"type:uuid" json:"current_tier_id,omitempty"`
	Balance       int64      `gorm:"not null;default:0" json:"balance"`
	LifetimeSpend float64    `gorm:"not null;default:0" json:"lifetime_spend"`
	IsActive      bool       `gorm:"not null;default:true" json:"is_active"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (Member) TableName() string {
	return "members"
}
