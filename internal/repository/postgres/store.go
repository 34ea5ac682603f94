package postgres

import (
	"context"
	"errors"
	"time"

	"loyaltyHub/business/reward"
	"loyaltyHub/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store implements reward.Store over postgres. MemberTx locks the member row
// with SELECT ... FOR UPDATE, so writes for the same member serialize while
// unrelated members proceed in parallel; everything staged inside the gorm
// transaction commits or rolls back as one unit.
type Store struct {
	DB *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{DB: db}
}

func (s *Store) MemberTx(ctx context.Context, brandID, memberID uuid.UUID, fn func(tx reward.MemberTx) error) error {
	if err := ctx.Err(); err != nil {
		return mapError(err, "member transaction")
	}

	return s.DB.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		var m domain.Member
		err := gtx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND brand_id = ?", memberID, brandID).
			First(&m).Error
		if err != nil {
			return mapError(err, "member")
		}

		return fn(&memberTx{db: gtx, member: m})
	})
}

func (s *Store) Member(ctx context.Context, brandID, memberID uuid.UUID) (domain.Member, error) {
	var m domain.Member
	err := s.DB.WithContext(ctx).
		Where("id = ? AND brand_id = ?", memberID, brandID).
		First(&m).Error
	if err != nil {
		return domain.Member{}, mapError(err, "member")
	}
	return m, nil
}

func (s *Store) Wheel(ctx context.Context, brandID, wheelID uuid.UUID) (domain.Wheel, error) {
	var w domain.Wheel
	err := s.DB.WithContext(ctx).
		Preload("Segments", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("id = ? AND brand_id = ?", wheelID, brandID).
		First(&w).Error
	if err != nil {
		return domain.Wheel{}, mapError(err, "wheel")
	}
	return w, nil
}

func (s *Store) Mission(ctx context.Context, brandID, missionID uuid.UUID) (domain.Mission, error) {
	var m domain.Mission
	err := s.DB.WithContext(ctx).
		Where("id = ? AND brand_id = ?", missionID, brandID).
		First(&m).Error
	if err != nil {
		return domain.Mission{}, mapError(err, "mission")
	}
	return m, nil
}

func (s *Store) Ladder(ctx context.Context, brandID uuid.UUID) ([]domain.Tier, error) {
	var ladder []domain.Tier
	err := s.DB.WithContext(ctx).
		Where("brand_id = ?", brandID).
		Order("position ASC").
		Find(&ladder).Error
	if err != nil {
		return nil, mapError(err, "tier ladder")
	}
	return ladder, nil
}

func (s *Store) Progress(ctx context.Context, memberID, missionID uuid.UUID) (domain.MissionProgress, bool, error) {
	var p domain.MissionProgress
	err := s.DB.WithContext(ctx).
		Where("member_id = ? AND mission_id = ?", memberID, missionID).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.MissionProgress{}, false, nil
	}
	if err != nil {
		return domain.MissionProgress{}, false, mapError(err, "mission progress")
	}
	return p, true, nil
}

func (s *Store) History(ctx context.Context, brandID, memberID uuid.UUID, offset, limit int) ([]domain.LedgerEntry, int64, error) {
	var total int64
	err := s.DB.WithContext(ctx).Model(&domain.LedgerEntry{}).
		Where("member_id = ? AND brand_id = ?", memberID, brandID).
		Count(&total).Error
	if err != nil {
		return nil, 0, mapError(err, "ledger history count")
	}

	var entries []domain.LedgerEntry
	err = s.DB.WithContext(ctx).
		Where("member_id = ? AND brand_id = ?", memberID, brandID).
		Order("sequence DESC").
		Offset(offset).
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, 0, mapError(err, "ledger history")
	}
	return entries, total, nil
}

func (s *Store) MemberRefs(ctx context.Context, offset, limit int) ([]reward.MemberRef, error) {
	var members []domain.Member
	err := s.DB.WithContext(ctx).
		Select("id", "brand_id").
		Order("id ASC").
		Offset(offset).
		Limit(limit).
		Find(&members).Error
	if err != nil {
		return nil, mapError(err, "member refs")
	}

	refs := make([]reward.MemberRef, 0, len(members))
	for _, m := range members {
		refs = append(refs, reward.MemberRef{BrandID: m.BrandID, MemberID: m.ID})
	}
	return refs, nil
}

// memberTx runs against the gorm transaction holding the member row lock.
type memberTx struct {
	db     *gorm.DB
	member domain.Member
}

func (t *memberTx) Member() domain.Member {
	return t.member
}

func (t *memberTx) Balance() (int64, error) {
	var balance int64
	err := t.db.Model(&domain.LedgerEntry{}).
		Where("member_id = ?", t.member.ID).
		Select("COALESCE(SUM(points_delta), 0)").
		Scan(&balance).Error
	if err != nil {
		return 0, mapError(err, "balance fold")
	}
	return balance, nil
}

func (t *memberTx) Append(e domain.LedgerEntry) (domain.LedgerEntry, error) {
	// next per-member sequence; safe under the member row lock
	var last int64
	err := t.db.Model(&domain.LedgerEntry{}).
		Where("member_id = ?", t.member.ID).
		Select("COALESCE(MAX(sequence), 0)").
		Scan(&last).Error
	if err != nil {
		return domain.LedgerEntry{}, mapError(err, "ledger sequence")
	}

	e.Sequence = last + 1
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	if err := t.db.Create(&e).Error; err != nil {
		return domain.LedgerEntry{}, mapError(err, "ledger append")
	}
	return e, nil
}

func (t *memberTx) Entry(entryID uuid.UUID) (domain.LedgerEntry, error) {
	var e domain.LedgerEntry
	err := t.db.
		Where("id = ? AND member_id = ?", entryID, t.member.ID).
		First(&e).Error
	if err != nil {
		return domain.LedgerEntry{}, mapError(err, "ledger entry")
	}
	return e, nil
}

func (t *memberTx) HasReversal(entryID uuid.UUID) (bool, error) {
	var count int64
	err := t.db.Model(&domain.LedgerEntry{}).
		Where("member_id = ? AND kind = ? AND correlation_id = ?", t.member.ID, domain.KindReversal, entryID).
		Count(&count).Error
	if err != nil {
		return false, mapError(err, "reversal lookup")
	}
	return count > 0, nil
}

func (t *memberTx) CountSpins(wheelID uuid.UUID, since time.Time) (int64, error) {
	var count int64
	err := t.db.Model(&domain.SpinRecord{}).
		Where("member_id = ? AND wheel_id = ? AND spun_at >= ?", t.member.ID, wheelID, since).
		Count(&count).Error
	if err != nil {
		return 0, mapError(err, "spin count")
	}
	return count, nil
}

func (t *memberTx) InsertSpin(spin domain.SpinRecord) error {
	if err := t.db.Create(&spin).Error; err != nil {
		return mapError(err, "spin record")
	}
	return nil
}

func (t *memberTx) Progress(missionID uuid.UUID) (domain.MissionProgress, bool, error) {
	var p domain.MissionProgress
	err := t.db.
		Where("member_id = ? AND mission_id = ?", t.member.ID, missionID).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.MissionProgress{}, false, nil
	}
	if err != nil {
		return domain.MissionProgress{}, false, mapError(err, "mission progress")
	}
	return p, true, nil
}

func (t *memberTx) SaveProgress(p domain.MissionProgress) error {
	err := t.db.Clauses(
		clause.OnConflict{
			Columns:   []clause.Column{{Name: "member_id"}, {Name: "mission_id"}},
			UpdateAll: true,
		},
	).Create(&p).Error
	if err != nil {
		return mapError(err, "mission progress upsert")
	}
	return nil
}

func (t *memberTx) UpdateMember(m domain.Member) error {
	err := t.db.Model(&domain.Member{}).
		Where("id = ?", m.ID).
		Updates(map[string]any{
			"balance":         m.Balance,
			"current_tier_id": m.CurrentTierID,
			"lifetime_spend":  m.LifetimeSpend,
		}).Error
	if err != nil {
		return mapError(err, "member update")
	}
	return nil
}
