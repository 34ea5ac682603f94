package tier

import (
	"context"
	"fmt"
	"sort"

	"loyaltyHub/domain"

	"github.com/google/uuid"
)

type TierRepository interface {
	LadderByBrand(ctx context.Context, brandID uuid.UUID) ([]domain.Tier, error)
}

type TierService struct {
	tierRepo TierRepository
}

func NewTierService(tierRepo TierRepository) *TierService {
	return &TierService{
		tierRepo: tierRepo,
	}
}

// ValidateLadder checks a brand's ladder for the contiguity invariant:
// ordered by MinPoints, starting at 0, each tier's MaxPoints+1 equal to the
// next tier's MinPoints, and only the top tier unbounded. The ladder is
// brand-managed data, so this runs defensively at resolution time too.
func ValidateLadder(ladder []domain.Tier) error {
	if len(ladder) == 0 {
		return fmt.Errorf("%w: ladder is empty", domain.ErrConfiguration)
	}
	if ladder[0].MinPoints != 0 {
		return fmt.Errorf("%w: ladder must start at 0, got %d", domain.ErrConfiguration, ladder[0].MinPoints)
	}
	for i, t := range ladder {
		last := i == len(ladder)-1
		if last {
			if t.MaxPoints != nil {
				return fmt.Errorf("%w: top tier %q must be unbounded", domain.ErrConfiguration, t.Name)
			}
			continue
		}
		if t.MaxPoints == nil {
			return fmt.Errorf("%w: tier %q is unbounded but not the top tier", domain.ErrConfiguration, t.Name)
		}
		if *t.MaxPoints < t.MinPoints {
			return fmt.Errorf("%w: tier %q has max %d below min %d", domain.ErrConfiguration, t.Name, *t.MaxPoints, t.MinPoints)
		}
		if next := ladder[i+1]; next.MinPoints != *t.MaxPoints+1 {
			return fmt.Errorf("%w: gap or overlap between %q and %q", domain.ErrConfiguration, t.Name, next.Name)
		}
	}
	return nil
}

// Resolve maps a balance onto the one tier whose range contains it. The
// ladder must be sorted by MinPoints; resolution is a binary search over the
// validated ladder.
func Resolve(ladder []domain.Tier, balance int64) (domain.Tier, error) {
	if balance < 0 {
		return domain.Tier{}, fmt.Errorf("%w: balance %d is negative", domain.ErrValidation, balance)
	}
	if err := ValidateLadder(ladder); err != nil {
		return domain.Tier{}, err
	}

	i := sort.Search(len(ladder), func(i int) bool {
		return ladder[i].MaxPoints == nil || balance <= *ladder[i].MaxPoints
	})
	return ladder[i], nil
}

// Next returns the tier above current, or nil when current is the top.
func Next(ladder []domain.Tier, current domain.Tier) *domain.Tier {
	for i, t := range ladder {
		if t.ID == current.ID && i+1 < len(ladder) {
			next := ladder[i+1]
			return &next
		}
	}
	return nil
}

// ComputeProgress reports points remaining to the next tier and the position
// inside the current range as a fraction clamped to [0,1]. The top tier is
// always complete.
func ComputeProgress(balance int64, current domain.Tier, next *domain.Tier) domain.TierProgress {
	if next == nil || current.MaxPoints == nil {
		return domain.TierProgress{PointsToNext: 0, Percentage: 1}
	}

	toNext := next.MinPoints - balance
	if toNext < 0 {
		toNext = 0
	}

	span := *current.MaxPoints - current.MinPoints + 1
	pct := float64(balance-current.MinPoints) / float64(span)
	if pct < 0 {
		pct = 0
	}
	if pct > 1 {
		pct = 1
	}

	return domain.TierProgress{PointsToNext: toNext, Percentage: pct}
}

// Resolve loads the brand's ladder and resolves balance against it.
func (s *TierService) Resolve(ctx context.Context, brandID uuid.UUID, balance int64) (domain.Tier, error) {
	ladder, err := s.tierRepo.LadderByBrand(ctx, brandID)
	if err != nil {
		return domain.Tier{}, err
	}

	return Resolve(ladder, balance)
}

// Status resolves the current tier together with the next tier and progress.
func (s *TierService) Status(ctx context.Context, brandID uuid.UUID, balance int64) (domain.Tier, *domain.Tier, domain.TierProgress, error) {
	ladder, err := s.tierRepo.LadderByBrand(ctx, brandID)
	if err != nil {
		return domain.Tier{}, nil, domain.TierProgress{}, err
	}

	current, err := Resolve(ladder, balance)
	if err != nil {
		return domain.Tier{}, nil, domain.TierProgress{}, err
	}

	next := Next(ladder, current)
	return current, next, ComputeProgress(balance, current, next), nil
}
