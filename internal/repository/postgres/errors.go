package postgres

import (
	"errors"
	"fmt"

	"loyaltyHub/domain"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// mapError translates driver failures into the engine's error kinds:
// missing rows to ErrNotFound, serialization/deadlock aborts to ErrConflict
// (safe for the caller to retry), everything else to ErrStorage.
func mapError(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, what)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return fmt.Errorf("%w: %s: %v", domain.ErrConflict, what, err)
		}
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrStorage, what, err)
}
