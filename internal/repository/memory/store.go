// Package memory implements the reward.Store contract entirely in process.
// It backs the engine's tests and lets callers embed the engine without a
// database. Writes serialize per member on a keyed mutex; a transaction
// stages its writes and publishes them only on success, so an aborted unit
// leaves zero partial state.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"loyaltyHub/business/reward"
	"loyaltyHub/domain"

	"github.com/google/uuid"
)

type progressKey struct {
	memberID  uuid.UUID
	missionID uuid.UUID
}

type Store struct {
	mu       sync.RWMutex
	members  map[uuid.UUID]domain.Member
	entries  map[uuid.UUID][]domain.LedgerEntry // per member, insertion order
	spins    map[uuid.UUID][]domain.SpinRecord  // per member
	progress map[progressKey]domain.MissionProgress
	wheels   map[uuid.UUID]domain.Wheel
	missions map[uuid.UUID]domain.Mission
	ladders  map[uuid.UUID][]domain.Tier // per brand, ordered by position

	lockMu      sync.Mutex
	memberLocks map[uuid.UUID]*sync.Mutex
}

func NewStore() *Store {
	return &Store{
		members:     make(map[uuid.UUID]domain.Member),
		entries:     make(map[uuid.UUID][]domain.LedgerEntry),
		spins:       make(map[uuid.UUID][]domain.SpinRecord),
		progress:    make(map[progressKey]domain.MissionProgress),
		wheels:      make(map[uuid.UUID]domain.Wheel),
		missions:    make(map[uuid.UUID]domain.Mission),
		ladders:     make(map[uuid.UUID][]domain.Tier),
		memberLocks: make(map[uuid.UUID]*sync.Mutex),
	}
}

// ---- seeding ----

func (s *Store) AddMember(m domain.Member) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[m.ID] = m
}

func (s *Store) AddWheel(w domain.Wheel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wheels[w.ID] = w
}

func (s *Store) AddMission(m domain.Mission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.missions[m.ID] = m
}

func (s *Store) SetLadder(brandID uuid.UUID, ladder []domain.Tier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sorted := make([]domain.Tier, len(ladder))
	copy(sorted, ladder)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Position < sorted[j].Position })
	s.ladders[brandID] = sorted
}

// AddSpin seeds a committed spin record, bypassing the quota path. Exists so
// tests can place spins on past days.
func (s *Store) AddSpin(spin domain.SpinRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spins[spin.MemberID] = append(s.spins[spin.MemberID], spin)
}

// SetMemberBalance overwrites the cached balance directly, bypassing the
// ledger. Exists so tests can fabricate drift for the reconciler.
func (s *Store) SetMemberBalance(memberID uuid.UUID, balance int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.members[memberID]
	m.Balance = balance
	s.members[memberID] = m
}

// ---- reads ----

func (s *Store) Member(ctx context.Context, brandID, memberID uuid.UUID) (domain.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[memberID]
	if !ok || m.BrandID != brandID {
		return domain.Member{}, fmt.Errorf("%w: member %s", domain.ErrNotFound, memberID)
	}
	return m, nil
}

func (s *Store) Wheel(ctx context.Context, brandID, wheelID uuid.UUID) (domain.Wheel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.wheels[wheelID]
	if !ok || w.BrandID != brandID {
		return domain.Wheel{}, fmt.Errorf("%w: wheel %s", domain.ErrNotFound, wheelID)
	}
	return w, nil
}

func (s *Store) Mission(ctx context.Context, brandID, missionID uuid.UUID) (domain.Mission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.missions[missionID]
	if !ok || m.BrandID != brandID {
		return domain.Mission{}, fmt.Errorf("%w: mission %s", domain.ErrNotFound, missionID)
	}
	return m, nil
}

func (s *Store) Ladder(ctx context.Context, brandID uuid.UUID) ([]domain.Tier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ladder, ok := s.ladders[brandID]
	if !ok {
		return nil, fmt.Errorf("%w: no tier ladder for brand %s", domain.ErrConfiguration, brandID)
	}
	out := make([]domain.Tier, len(ladder))
	copy(out, ladder)
	return out, nil
}

func (s *Store) Progress(ctx context.Context, memberID, missionID uuid.UUID) (domain.MissionProgress, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.progress[progressKey{memberID, missionID}]
	return p, ok, nil
}

func (s *Store) History(ctx context.Context, brandID, memberID uuid.UUID, offset, limit int) ([]domain.LedgerEntry, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if m, ok := s.members[memberID]; !ok || m.BrandID != brandID {
		return nil, 0, fmt.Errorf("%w: member %s", domain.ErrNotFound, memberID)
	}

	all := s.entries[memberID]
	total := int64(len(all))

	// newest first
	reversed := make([]domain.LedgerEntry, len(all))
	for i, e := range all {
		reversed[len(all)-1-i] = e
	}
	if offset >= len(reversed) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(reversed) {
		end = len(reversed)
	}
	return reversed[offset:end], total, nil
}

func (s *Store) MemberRefs(ctx context.Context, offset, limit int) ([]reward.MemberRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	refs := make([]reward.MemberRef, 0, len(s.members))
	for _, m := range s.members {
		refs = append(refs, reward.MemberRef{BrandID: m.BrandID, MemberID: m.ID})
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].MemberID.String() < refs[j].MemberID.String() })
	if offset >= len(refs) {
		return nil, nil
	}
	end := offset + limit
	if end > len(refs) {
		end = len(refs)
	}
	return refs[offset:end], nil
}

// ---- transactions ----

func (s *Store) memberLock(memberID uuid.UUID) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	l, ok := s.memberLocks[memberID]
	if !ok {
		l = &sync.Mutex{}
		s.memberLocks[memberID] = l
	}
	return l
}

func (s *Store) MemberTx(ctx context.Context, brandID, memberID uuid.UUID, fn func(tx reward.MemberTx) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	lock := s.memberLock(memberID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	m, ok := s.members[memberID]
	s.mu.RUnlock()
	if !ok || m.BrandID != brandID {
		return fmt.Errorf("%w: member %s", domain.ErrNotFound, memberID)
	}

	tx := &memberTx{store: s, member: m, progress: make(map[uuid.UUID]domain.MissionProgress)}
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

// memberTx stages writes while the member lock is held and publishes them in
// commit. Reads observe both committed state and staged writes.
type memberTx struct {
	store  *Store
	member domain.Member

	newEntries []domain.LedgerEntry
	newSpins   []domain.SpinRecord
	progress   map[uuid.UUID]domain.MissionProgress
	updated    *domain.Member
}

func (t *memberTx) Member() domain.Member {
	return t.member
}

func (t *memberTx) Balance() (int64, error) {
	t.store.mu.RLock()
	committed := t.store.entries[t.member.ID]
	t.store.mu.RUnlock()

	var balance int64
	for _, e := range committed {
		balance += e.PointsDelta
	}
	for _, e := range t.newEntries {
		balance += e.PointsDelta
	}
	return balance, nil
}

func (t *memberTx) Append(e domain.LedgerEntry) (domain.LedgerEntry, error) {
	t.store.mu.RLock()
	committed := len(t.store.entries[t.member.ID])
	t.store.mu.RUnlock()

	e.Sequence = int64(committed+len(t.newEntries)) + 1
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	t.newEntries = append(t.newEntries, e)
	return e, nil
}

func (t *memberTx) Entry(entryID uuid.UUID) (domain.LedgerEntry, error) {
	for _, e := range t.newEntries {
		if e.ID == entryID {
			return e, nil
		}
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	for _, e := range t.store.entries[t.member.ID] {
		if e.ID == entryID {
			return e, nil
		}
	}
	return domain.LedgerEntry{}, fmt.Errorf("%w: ledger entry %s", domain.ErrNotFound, entryID)
}

func (t *memberTx) HasReversal(entryID uuid.UUID) (bool, error) {
	match := func(e domain.LedgerEntry) bool {
		return e.Kind == domain.KindReversal && e.CorrelationID != nil && *e.CorrelationID == entryID
	}
	for _, e := range t.newEntries {
		if match(e) {
			return true, nil
		}
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	for _, e := range t.store.entries[t.member.ID] {
		if match(e) {
			return true, nil
		}
	}
	return false, nil
}

func (t *memberTx) CountSpins(wheelID uuid.UUID, since time.Time) (int64, error) {
	t.store.mu.RLock()
	committed := t.store.spins[t.member.ID]
	t.store.mu.RUnlock()

	var count int64
	for _, spin := range committed {
		if spin.WheelID == wheelID && !spin.SpunAt.Before(since) {
			count++
		}
	}
	for _, spin := range t.newSpins {
		if spin.WheelID == wheelID && !spin.SpunAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (t *memberTx) InsertSpin(spin domain.SpinRecord) error {
	t.newSpins = append(t.newSpins, spin)
	return nil
}

func (t *memberTx) Progress(missionID uuid.UUID) (domain.MissionProgress, bool, error) {
	if p, ok := t.progress[missionID]; ok {
		return p, true, nil
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	p, ok := t.store.progress[progressKey{t.member.ID, missionID}]
	return p, ok, nil
}

func (t *memberTx) SaveProgress(p domain.MissionProgress) error {
	t.progress[p.MissionID] = p
	return nil
}

func (t *memberTx) UpdateMember(m domain.Member) error {
	m.UpdatedAt = time.Now()
	t.updated = &m
	return nil
}

func (t *memberTx) commit() {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	memberID := t.member.ID
	t.store.entries[memberID] = append(t.store.entries[memberID], t.newEntries...)
	t.store.spins[memberID] = append(t.store.spins[memberID], t.newSpins...)
	for missionID, p := range t.progress {
		t.store.progress[progressKey{memberID, missionID}] = p
	}
	if t.updated != nil {
		t.store.members[memberID] = *t.updated
	}
}
