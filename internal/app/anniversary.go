// internal/app/anniversary.go
package app

import (
	"context"
	"fmt"
	"time"

	"memorial_notification_service/internal/domain/hebcal"
)

// maxRollForward bounds the year-by-year search for the next occurrence.
// One extra year covers an already-passed candidate; an anniversary in the
// intercalary month can skip up to two consecutive common years before the
// next leap year.
const maxRollForward = 4

// AnniversaryService fixes a memorial's recurring Hebrew anniversary and
// resolves its next Gregorian occurrence.
type AnniversaryService struct {
	converter *hebcal.Converter
	// offsetMonths shifts the anniversary from the death date by whole Hebrew
	// months. 0 keeps the death date itself (the conventional annual
	// observance); 11 reproduces the Sephardic first-observance rule.
	offsetMonths int
}

func NewAnniversaryService(converter *hebcal.Converter, offsetMonths int) *AnniversaryService {
	return &AnniversaryService{converter: converter, offsetMonths: offsetMonths}
}

// InitialAnniversary converts the Gregorian death date and fixes the
// recurring Hebrew month/day observed in all future years. The result never
// changes once stored, regardless of later occurrence rollovers.
func (s *AnniversaryService) InitialAnniversary(ctx context.Context, deathGregorian time.Time) (death, anniversary hebcal.Date, err error) {
	death, err = s.converter.FromGregorian(ctx, deathGregorian)
	if err != nil {
		return hebcal.Date{}, hebcal.Date{}, err
	}
	anniversary = death
	if s.offsetMonths != 0 {
		anniversary, err = s.converter.AddMonths(ctx, death, s.offsetMonths)
		if err != nil {
			return hebcal.Date{}, hebcal.Date{}, err
		}
	}
	return death, anniversary, nil
}

// NextOccurrence finds the smallest Gregorian date strictly after `after`
// whose Hebrew month/day equals the anniversary. It starts in the Hebrew year
// containing `after` and rolls forward year by year when the candidate has
// passed or does not exist in that year (the intercalary month is only
// present in leap years; day 30 is clamped to 29 in deficient months).
func (s *AnniversaryService) NextOccurrence(ctx context.Context, anniversary hebcal.Date, after time.Time) (time.Time, error) {
	hAfter, err := s.converter.FromGregorian(ctx, after)
	if err != nil {
		return time.Time{}, err
	}

	for i := 0; i < maxRollForward; i++ {
		year := hAfter.Year + i
		table, err := s.converter.YearInfo(ctx, year)
		if err != nil {
			return time.Time{}, err
		}
		length, ok := table.DaysInMonth(anniversary.Month)
		if !ok {
			continue // month absent this year, try the next
		}
		day := anniversary.Day
		if day > length {
			day = length
		}
		candidate, err := s.converter.ToGregorian(ctx, hebcal.Date{
			Year: year, Month: anniversary.Month, Day: day,
		})
		if err != nil {
			return time.Time{}, err
		}
		if candidate.After(after) {
			return candidate, nil
		}
	}
	return time.Time{}, fmt.Errorf("no occurrence of %s within %d years after %s",
		anniversary, maxRollForward, after.Format("2006-01-02"))
}
