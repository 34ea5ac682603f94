package domain

import "errors"

// Sentinel errors for the engine. Callers classify with errors.Is; business
// outcomes (quota, eligibility, insufficient points) are expected results,
// not system failures.
var (
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("not found")
	ErrQuotaExceeded      = errors.New("daily spin quota exceeded")
	ErrInsufficientPoints = errors.New("insufficient points")
	ErrNotEligible        = errors.New("mission target not reached")
	ErrConfiguration      = errors.New("tier ladder misconfigured")
	ErrConflict           = errors.New("concurrent write conflict")
	ErrStorage            = errors.New("storage failure")
)
