package domain

import (
	"time"

	"github.com/google/uuid"
)

// Mission is a brand-owned goal template: reach Target, earn RewardPoints
// once.
type Mission struct {
	ID           uuid.UUID `gorm:"primaryKey;type:uuid" json:"id"`
	BrandID      uuid.UUID `gorm:"type:uuid;not null;index" json:"brand_id"`
	Name         string    `gorm:"type:varchar(100);not null" json:"name"`
	Type         string    `gorm:"type:varchar(50);not null" json:"type"`
	Target       int64     `gorm:"not null" json:"target" validate:"gt=0"`
	RewardPoints int64     `gorm:"not null" json:"reward_points" validate:"gte=0"`
	IsActive     bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Mission) TableName() string {
	return "missions"
}

// MissionProgress tracks one member's progress toward one mission. Progress
// never exceeds the mission target. CompletedAt is set at most once; after
// that, completion requests are no-ops returning RewardGranted again.
type MissionProgress struct {
	MemberID      uuid.UUID  `gorm:"primaryKey;type:uuid" json:"member_id"`
	MissionID     uuid.UUID  `gorm:"primaryKey;type:uuid" json:"mission_id"`
	Progress      int64      `gorm:"not null;default:0" json:"progress"`
	RewardGranted int64      `gorm:"not null;default:0" json:"reward_granted"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (MissionProgress) TableName() string {
	return "mission_progress"
}

// Completed reports whether the one-time reward has already been granted.
func (p MissionProgress) Completed() bool {
	return p.CompletedAt != nil
}
