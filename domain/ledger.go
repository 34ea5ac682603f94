package domain

import (
	"time"

	"github.com/google/uuid"
)

// EntryKind classifies a points-affecting event.
type EntryKind string

const (
	KindPurchase   EntryKind = "purchase"
	KindReward     EntryKind = "reward"
	KindMission    EntryKind = "mission"
	KindWheel      EntryKind = "wheel"
	KindAdjustment EntryKind = "adjustment"
	KindRefund     EntryKind = "refund"
	KindReversal   EntryKind = "reversal"
)

// Valid reports whether k is a known entry kind.
func (k EntryKind) Valid() bool {
	switch k {
	case KindPurchase, KindReward, KindMission, KindWheel, KindAdjustment, KindRefund, KindReversal:
		return true
	}
	return false
}

// LedgerEntry is one immutable points-affecting event. Entries are never
// updated or deleted; a correction is a new entry of kind reversal whose
// CorrelationID references the original. Sequence is per-member and assigned
// inside the append transaction, so the fold of PointsDelta in Sequence order
// is the member's balance at any observation point.
type LedgerEntry struct {
	ID             uuid.UUID  `gorm:"primaryKey;type:uuid" json:"id"`
	MemberID       uuid.UUID  `gorm:"type:uuid;not null;index:idx_ledger_member_seq,unique,priority:1" json:"member_id"`
	BrandID        uuid.UUID  `gorm:"type:uuid;not null;index" json:"brand_id"`
	Sequence       int64      `gorm:"not null;index:idx_ledger_member_seq,unique,priority:2" json:"sequence"`
	Kind           EntryKind  `gorm:"type:varchar(20);not null" json:"kind"`
	PointsDelta    int64      `gorm:"not null" json:"points_delta"`
	MonetaryAmount *float64   `gorm:"type:decimal(15,2)" json:"monetary_amount,omitempty"`
	Description    string     `gorm:"type:text" json:"description"`
	CorrelationID  *uuid.UUID `gorm:"type:uuid;index" json:"correlation_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func (LedgerEntry) TableName() string {
	return "ledger_entries"
}
