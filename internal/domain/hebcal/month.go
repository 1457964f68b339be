package hebcal

import "fmt"

// Month is a named Hebrew month. The values follow the civil order starting
// at Tishrei. In leap years Adar denotes Adar I (30 days) and AdarII is the
// intercalary month; in common years AdarII does not exist.
type Month int

const (
	Tishrei Month = iota + 1
	Cheshvan
	Kislev
	Tevet
	Shevat
	Adar
	AdarII
	Nisan
	Iyar
	Sivan
	Tamuz
	Av
	Elul
)

var monthNames = map[Month]string{
	Tishrei:  "Tishrei",
	Cheshvan: "Cheshvan",
	Kislev:   "Kislev",
	Tevet:    "Tevet",
	Shevat:   "Shevat",
	Adar:     "Adar",
	AdarII:   "Adar II",
	Nisan:    "Nisan",
	Iyar:     "Iyar",
	Sivan:    "Sivan",
	Tamuz:    "Tamuz",
	Av:       "Av",
	Elul:     "Elul",
}

func (m Month) String() string {
	if name, ok := monthNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Month(%d)", int(m))
}

// MonthFromName parses an English month name as produced by String and by the
// HebCal converter API ("Adar I" is accepted as an alias for Adar).
func MonthFromName(name string) (Month, bool) {
	if name == "Adar I" {
		return Adar, true
	}
	for m, n := range monthNames {
		if n == name {
			return m, true
		}
	}
	return 0, false
}

// Position returns the month's one-based position within the civil year for a
// year of the given leap status, and whether the month exists in such a year.
func (m Month) Position(leap bool) (int, bool) {
	if m < Tishrei || m > Elul {
		return 0, false
	}
	if leap {
		return int(m), true
	}
	if m == AdarII {
		return 0, false
	}
	if m >= Nisan {
		return int(m) - 1, true
	}
	return int(m), true
}

// MonthAtPosition is the inverse of Position.
func MonthAtPosition(pos int, leap bool) (Month, bool) {
	months := 12
	if leap {
		months = 13
	}
	if pos < 1 || pos > months {
		return 0, false
	}
	if leap {
		return Month(pos), true
	}
	if pos >= int(AdarII) {
		return Month(pos + 1), true
	}
	return Month(pos), true
}
