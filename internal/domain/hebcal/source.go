package hebcal

import (
	"context"
	"fmt"
)

// TableSource serves per-year month-length tables. Implementations may compute
// them locally, fetch them from an external calendar service, or layer a cache
// over another source.
type TableSource interface {
	YearTable(ctx context.Context, hebrewYear int) (YearTable, error)
}

// ArithmeticSource computes year tables from the fixed molad arithmetic. It is
// deterministic, needs no network, and serves as the offline fallback.
type ArithmeticSource struct{}

func NewArithmeticSource() *ArithmeticSource { return &ArithmeticSource{} }

func (s *ArithmeticSource) YearTable(_ context.Context, hebrewYear int) (YearTable, error) {
	if hebrewYear < MinYear || hebrewYear > MaxYear {
		return YearTable{}, fmt.Errorf("year %d: %w", hebrewYear, ErrUnsupportedDateRange)
	}
	return computeYearTable(hebrewYear), nil
}
