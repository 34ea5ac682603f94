package domain

import (
	"time"

	"github.com/google/uuid"
)

// Wheel is a brand-owned probability wheel template. Segments carry the
// probability table; the table must sum to 1.0 within a small epsilon before
// the wheel may be spun. A wheel failing validation is marked non-spinnable
// rather than deleted, so existing spin history stays valid.
type Wheel struct {
	ID             uuid.UUID      `gorm:"primaryKey;type:uuid" json:"id"`
	BrandID        uuid.UUID      `gorm:"type:uuid;not null;index" json:"brand_id"`
	Name           string         `gorm:"type:varchar(100);not null" json:"name"`
	CostToSpin     int64          `gorm:"not null" json:"cost_to_spin" validate:"gte=0"`
	MaxSpinsPerDay int64          `gorm:"not null" json:"max_spins_per_day" validate:"gte=0"`
	IsSpinnable    bool           `gorm:"not null;default:false" json:"is_spinnable"`
	Segments       []WheelSegment `gorm:"foreignKey:WheelID" json:"segments" validate:"dive"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func (Wheel) TableName() string {
	return "wheels"
}

// WheelSegment is one weighted possible outcome of a spin. Segments are
// ordered by Position; selection maps a draw onto the cumulative-probability
// partition in that order.
type WheelSegment struct {
	ID           uuid.UUID `gorm:"primaryKey;type:uuid" json:"id"`
	WheelID      uuid.UUID `gorm:"type:uuid;not null;index:idx_segments_wheel_position,unique,priority:1" json:"wheel_id"`
	Label        string    `gorm:"type:varchar(100);not null" json:"label"`
	Probability  float64   `gorm:"not null" json:"probability" validate:"gte=0,lte=1"`
	RewardPoints int64     `gorm:"not null" json:"reward_points" validate:"gte=0"`
	Position     int       `gorm:"not null;index:idx_segments_wheel_position,unique,priority:2" json:"position"`
}

func (WheelSegment) TableName() string {
	return "wheel_segments"
}

// SpinRecord is the audit row for one spin. It doubles as the counting
// source for the per-member daily quota, so it must be inserted in the same
// transaction that observed quota remaining.
type SpinRecord struct {
	ID           uuid.UUID `gorm:"primaryKey;type:uuid" json:"id"`
	WheelID      uuid.UUID `gorm:"type:uuid;not null;index:idx_spins_member_wheel,priority:2" json:"wheel_id"`
	MemberID     uuid.UUID `gorm:"type:uuid;not null;index:idx_spins_member_wheel,priority:1" json:"member_id"`
	SegmentID    uuid.UUID `gorm:"type:uuid;not null" json:"segment_id"`
	PointsUsed   int64     `gorm:"not null" json:"points_used"`
	ResultReward int64     `gorm:"not null" json:"result_reward"`
	SpunAt       time.Time `gorm:"not null;index" json:"spun_at"`
}

func (SpinRecord) TableName() string {
	return "spin_records"
}
