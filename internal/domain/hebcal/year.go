package hebcal

import (
	"fmt"
	"time"
)

// Supported Hebrew year range. Conversions outside it fail with
// ErrUnsupportedDateRange.
const (
	MinYear = 3761 // ~1 CE
	MaxYear = 6000 // ~2240 CE
)

// YearTable describes one Hebrew year: its leap status, the fixed day number
// (R.D., days since 0001-01-01 Gregorian) of 1 Tishrei, and the length of each
// month in civil order. This is the lookup unit served by a TableSource.
type YearTable struct {
	Year         int
	Leap         bool
	FirstDay     int
	MonthLengths []int
}

// DaysInYear is the total year length, one of 353/354/355/383/384/385.
func (t YearTable) DaysInYear() int {
	total := 0
	for _, n := range t.MonthLengths {
		total += n
	}
	return total
}

// MonthsInYear is 12 for common years, 13 for leap years.
func (t YearTable) MonthsInYear() int { return len(t.MonthLengths) }

// DaysInMonth returns the length of the given named month, or false when the
// month does not exist in this year.
func (t YearTable) DaysInMonth(m Month) (int, bool) {
	pos, ok := m.Position(t.Leap)
	if !ok {
		return 0, false
	}
	return t.MonthLengths[pos-1], true
}

// IsLeapYear reports whether a Hebrew year has an intercalary month.
// Seven of every nineteen years are leap years.
func IsLeapYear(year int) bool {
	return (7*year+1)%19 < 7
}

// elapsedDays returns the number of days from the Hebrew epoch to 1 Tishrei
// of the given year, applying the molad and the four postponement rules.
func elapsedDays(year int) int {
	monthsElapsed := 235*((year-1)/19) +
		12*((year-1)%19) +
		(7*((year-1)%19)+1)/19

	partsElapsed := 204 + 793*(monthsElapsed%1080)
	hoursElapsed := 5 + 12*monthsElapsed + 793*(monthsElapsed/1080) + partsElapsed/1080
	day := 1 + 29*monthsElapsed + hoursElapsed/24
	parts := 1080*(hoursElapsed%24) + partsElapsed%1080

	altDay := day
	switch {
	case parts >= 19440:
		altDay++
	case day%7 == 2 && parts >= 9924 && !IsLeapYear(year):
		altDay++
	case day%7 == 1 && parts >= 16789 && IsLeapYear(year-1):
		altDay++
	}
	// Rosh Hashanah may not fall on Sunday, Wednesday or Friday.
	if altDay%7 == 0 || altDay%7 == 3 || altDay%7 == 5 {
		altDay++
	}
	return altDay
}

// hebrewEpoch is the R.D. offset of the Hebrew epoch.
const hebrewEpoch = -1373428

// firstDayOfYear returns the R.D. day number of 1 Tishrei.
func firstDayOfYear(year int) int {
	return hebrewEpoch + elapsedDays(year)
}

// monthLengthsForYear derives the civil-order month lengths from the total
// year length. Only Cheshvan and Kislev vary; a 355/385-day year has a long
// Cheshvan and a 353/383-day year a short Kislev.
func monthLengthsForYear(yearLen int, leap bool) []int {
	cheshvan := 29
	kislev := 30
	if yearLen%10 == 5 {
		cheshvan = 30
	}
	if yearLen%10 == 3 {
		kislev = 29
	}
	if leap {
		return []int{30, cheshvan, kislev, 29, 30, 30, 29, 30, 29, 30, 29, 30, 29}
	}
	return []int{30, cheshvan, kislev, 29, 30, 29, 30, 29, 30, 29, 30, 29}
}

// NewYearTableFromBounds builds a YearTable from externally sourced Gregorian
// dates of 1 Tishrei for the year and the following year. The difference
// between the two bounds fixes the year length, which in turn fixes every
// month length.
func NewYearTableFromBounds(year int, firstTishrei, nextFirstTishrei time.Time) (YearTable, error) {
	if year < MinYear || year > MaxYear {
		return YearTable{}, fmt.Errorf("year %d: %w", year, ErrUnsupportedDateRange)
	}
	first := absFromTime(firstTishrei)
	yearLen := absFromTime(nextFirstTishrei) - first
	leap := IsLeapYear(year)
	switch yearLen {
	case 353, 354, 355:
		if leap {
			return YearTable{}, fmt.Errorf("year %d: common-year length %d for a leap year", year, yearLen)
		}
	case 383, 384, 385:
		if !leap {
			return YearTable{}, fmt.Errorf("year %d: leap-year length %d for a common year", year, yearLen)
		}
	default:
		return YearTable{}, fmt.Errorf("year %d: implausible year length %d", year, yearLen)
	}
	return YearTable{
		Year:         year,
		Leap:         leap,
		FirstDay:     first,
		MonthLengths: monthLengthsForYear(yearLen, leap),
	}, nil
}

// computeYearTable builds a YearTable purely from the molad arithmetic.
func computeYearTable(year int) YearTable {
	first := firstDayOfYear(year)
	yearLen := firstDayOfYear(year+1) - first
	leap := IsLeapYear(year)
	return YearTable{
		Year:         year,
		Leap:         leap,
		FirstDay:     first,
		MonthLengths: monthLengthsForYear(yearLen, leap),
	}
}
