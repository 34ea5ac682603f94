package reward

import (
	"context"
	"time"

	"loyaltyHub/domain"

	"github.com/google/uuid"
)

// Store is the engine's persistence boundary. Reads are unlocked
// point-in-time snapshots; every write goes through MemberTx, which
// serializes against other writes for the same member and commits or aborts
// as one unit. Implementations exist over postgres (production) and memory
// (tests, embedding).
type Store interface {
	// MemberTx runs fn inside a transaction holding an exclusive claim on
	// the member. If fn returns an error nothing fn staged is visible.
	// Serialization failures surface as domain.ErrConflict; the intent is
	// safe to retry.
	MemberTx(ctx context.Context, brandID, memberID uuid.UUID, fn func(tx MemberTx) error) error

	Member(ctx context.Context, brandID, memberID uuid.UUID) (domain.Member, error)
	Wheel(ctx context.Context, brandID, wheelID uuid.UUID) (domain.Wheel, error)
	Mission(ctx context.Context, brandID, missionID uuid.UUID) (domain.Mission, error)
	Ladder(ctx context.Context, brandID uuid.UUID) ([]domain.Tier, error)
	Progress(ctx context.Context, memberID, missionID uuid.UUID) (domain.MissionProgress, bool, error)
	History(ctx context.Context, brandID, memberID uuid.UUID, offset, limit int) ([]domain.LedgerEntry, int64, error)

	// MemberRefs pages through all members for maintenance scans.
	MemberRefs(ctx context.Context, offset, limit int) ([]MemberRef, error)
}

// MemberTx is the per-member atomic unit. All methods observe writes staged
// earlier in the same transaction.
type MemberTx interface {
	// Member returns the row as locked at transaction start.
	Member() domain.Member

	// Balance folds the member's ledger inside the transaction. Appends
	// staged in this transaction are included.
	Balance() (int64, error)

	// Append stages a ledger entry, assigning the next per-member sequence.
	Append(e domain.LedgerEntry) (domain.LedgerEntry, error)

	// Entry loads one of the member's ledger entries by id.
	Entry(entryID uuid.UUID) (domain.LedgerEntry, error)

	// HasReversal reports whether a reversal referencing entryID exists.
	HasReversal(entryID uuid.UUID) (bool, error)

	CountSpins(wheelID uuid.UUID, since time.Time) (int64, error)
	InsertSpin(s domain.SpinRecord) error

	Progress(missionID uuid.UUID) (domain.MissionProgress, bool, error)
	SaveProgress(p domain.MissionProgress) error

	// UpdateMember overwrites the member's derived fields (balance, tier,
	// lifetime spend). Pure idempotent overwrite, never accumulation.
	UpdateMember(m domain.Member) error
}

// MemberRef identifies a member for maintenance scans.
type MemberRef struct {
	BrandID  uuid.UUID
	MemberID uuid.UUID
}

// BalanceCache is an optional read-side cache for member balances,
// invalidated after every write. A nil cache disables caching.
type BalanceCache interface {
	GetBalance(ctx context.Context, memberID uuid.UUID) (int64, error)
	SetBalance(ctx context.Context, memberID uuid.UUID, balance int64) error
	InvalidateBalance(ctx context.Context, memberID uuid.UUID) error
}
