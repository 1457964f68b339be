package hebcal

import "time"

// R.D. (rata die) day numbers: day 1 is 0001-01-01 in the proleptic Gregorian
// calendar. All internal date arithmetic happens on these fixed day numbers.

func isGregorianLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// absFromGregorian converts a Gregorian year/month/day to an R.D. day number.
func absFromGregorian(year, month, day int) int {
	y := year - 1
	abs := 365*y + y/4 - y/100 + y/400 + (367*month-362)/12 + day
	if month > 2 {
		if isGregorianLeap(year) {
			abs--
		} else {
			abs -= 2
		}
	}
	return abs
}

// gregorianFromAbs converts an R.D. day number back to a Gregorian date.
func gregorianFromAbs(abs int) (year, month, day int) {
	d0 := abs - 1
	n400 := d0 / 146097
	d1 := d0 % 146097
	n100 := d1 / 36524
	d2 := d1 % 36524
	n4 := d2 / 1461
	d3 := d2 % 1461
	n1 := d3 / 365

	year = 400*n400 + 100*n100 + 4*n4 + n1
	if n100 != 4 && n1 != 4 {
		year++
	}

	priorDays := abs - absFromGregorian(year, 1, 1)
	correction := 2
	if abs < absFromGregorian(year, 3, 1) {
		correction = 0
	} else if isGregorianLeap(year) {
		correction = 1
	}
	month = (12*(priorDays+correction) + 373) / 367
	day = abs - absFromGregorian(year, month, 1) + 1
	return year, month, day
}

// absFromTime truncates t to its calendar day and returns the R.D. number.
func absFromTime(t time.Time) int {
	return absFromGregorian(t.Year(), int(t.Month()), t.Day())
}

// timeFromAbs returns the midnight UTC time.Time for an R.D. day number.
func timeFromAbs(abs int) time.Time {
	y, m, d := gregorianFromAbs(abs)
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}
