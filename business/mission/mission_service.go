package mission

import (
	"fmt"

	"loyaltyHub/domain"

	"github.com/go-playground/validator/v10"
)

type MissionService struct {
	validate *validator.Validate
}

func NewMissionService() *MissionService {
	return &MissionService{
		validate: validator.New(),
	}
}

// Validate checks a mission template: positive target, non-negative reward.
func (s *MissionService) Validate(m domain.Mission) error {
	if err := s.validate.Struct(&m); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return nil
}

// ApplyProgress adds delta to the member's progress, clamped at the mission
// target. Progress on a completed mission is frozen.
func ApplyProgress(p domain.MissionProgress, m domain.Mission, delta int64) (domain.MissionProgress, error) {
	if delta <= 0 {
		return p, fmt.Errorf("%w: progress delta must be positive, got %d", domain.ErrValidation, delta)
	}
	if p.Completed() {
		return p, nil
	}

	p.Progress += delta
	if p.Progress > m.Target {
		p.Progress = m.Target
	}
	return p, nil
}

// CheckEligible reports whether the member may complete the mission now.
// Already-completed progress is handled by the caller (idempotent no-op),
// not here.
func CheckEligible(p domain.MissionProgress, m domain.Mission) error {
	if p.Progress < m.Target {
		return fmt.Errorf("%w: progress %d of %d", domain.ErrNotEligible, p.Progress, m.Target)
	}
	return nil
}
