package wheel

import (
	"fmt"
	"math"
	"sort"
	"time"

	"loyaltyHub/domain"

	"github.com/go-playground/validator/v10"
)

// ProbabilityEpsilon bounds the tolerated drift between a wheel's probability
// sum and 1.0.
const ProbabilityEpsilon = 1e-6

type WheelService struct {
	validate *validator.Validate
	quotaLoc *time.Location
}

// NewWheelService builds the resolver. quotaLoc is the zone whose calendar
// day bounds the spin quota; nil means UTC.
func NewWheelService(quotaLoc *time.Location) *WheelService {
	if quotaLoc == nil {
		quotaLoc = time.UTC
	}
	return &WheelService{
		validate: validator.New(),
		quotaLoc: quotaLoc,
	}
}

// Validate checks a wheel template before it may be spun: well-formed
// segments and a probability table summing to 1.0 within ProbabilityEpsilon.
// Runs at wheel creation/update, not per spin; a wheel failing it is marked
// non-spinnable rather than rejected, so spin history stays valid.
func (s *WheelService) Validate(w domain.Wheel) error {
	if err := s.validate.Struct(&w); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if len(w.Segments) == 0 {
		return fmt.Errorf("%w: wheel has no segments", domain.ErrValidation)
	}

	var sum float64
	for _, seg := range w.Segments {
		if math.IsNaN(seg.Probability) || math.IsInf(seg.Probability, 0) {
			return fmt.Errorf("%w: segment %q probability is not a number", domain.ErrValidation, seg.Label)
		}
		sum += seg.Probability
	}
	if math.Abs(sum-1.0) > ProbabilityEpsilon {
		return fmt.Errorf("%w: segment probabilities sum to %v, want 1.0", domain.ErrValidation, sum)
	}
	return nil
}

// Pick maps draw onto the cumulative-probability partition
// [0, p1), [p1, p1+p2), ... in segment order and returns the first segment
// whose cumulative upper bound exceeds the draw. If floating-point drift
// leaves the draw at or past the final bound, the last segment wins: a spin
// never ends with no result.
func Pick(segments []domain.WheelSegment, draw float64) (domain.WheelSegment, error) {
	if len(segments) == 0 {
		return domain.WheelSegment{}, fmt.Errorf("%w: wheel has no segments", domain.ErrValidation)
	}
	if math.IsNaN(draw) || draw < 0 || draw >= 1 {
		return domain.WheelSegment{}, fmt.Errorf("%w: draw %v outside [0,1)", domain.ErrValidation, draw)
	}

	ordered := make([]domain.WheelSegment, len(segments))
	copy(ordered, segments)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Position < ordered[j].Position })

	var cumulative float64
	for _, seg := range ordered {
		cumulative += seg.Probability
		if draw < cumulative {
			return seg, nil
		}
	}
	return ordered[len(ordered)-1], nil
}

// DayStart returns the beginning of now's calendar day in the quota zone.
// The quota boundary is the local day, not a rolling 24 hours.
func (s *WheelService) DayStart(now time.Time) time.Time {
	local := now.In(s.quotaLoc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.quotaLoc)
}
