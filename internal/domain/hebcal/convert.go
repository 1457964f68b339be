package hebcal

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Converter converts between Gregorian and Hebrew dates and performs month
// arithmetic. It is a pure function over its TableSource: the same inputs and
// tables always produce the same outputs.
type Converter struct {
	src TableSource
}

func NewConverter(src TableSource) *Converter {
	return &Converter{src: src}
}

func (c *Converter) table(ctx context.Context, year int) (YearTable, error) {
	t, err := c.src.YearTable(ctx, year)
	if err != nil {
		if errors.Is(err, ErrUnsupportedDateRange) {
			return YearTable{}, err
		}
		return YearTable{}, &ComputationError{Op: fmt.Sprintf("year table %d", year), Err: err}
	}
	return t, nil
}

// FromGregorian converts a Gregorian calendar day to its Hebrew date.
func (c *Converter) FromGregorian(ctx context.Context, t time.Time) (Date, error) {
	abs := absFromTime(t)

	// 1 Tishrei falls in September or October, so the Hebrew year is either
	// gregorianYear+3760 or +3761. Near the upper bound the guess may land one
	// year past MaxYear for a date that is itself still supported.
	year := t.Year() + 3761
	if year > MaxYear {
		year = MaxYear
	}
	table, err := c.table(ctx, year)
	if err != nil {
		return Date{}, err
	}
	for table.FirstDay > abs {
		year--
		if table, err = c.table(ctx, year); err != nil {
			return Date{}, err
		}
	}

	offset := abs - table.FirstDay
	if offset >= table.DaysInYear() {
		return Date{}, fmt.Errorf("day %d beyond year %d: %w", abs, year, ErrUnsupportedDateRange)
	}
	for pos, length := range table.MonthLengths {
		if offset < length {
			month, _ := MonthAtPosition(pos+1, table.Leap)
			return Date{Year: year, Month: month, Day: offset + 1}, nil
		}
		offset -= length
	}
	return Date{}, fmt.Errorf("unreachable: year %d table exhausted", year)
}

// ToGregorian converts a Hebrew date to midnight UTC of the Gregorian day.
// ErrNoSuchDate is returned when the month or day does not exist in that year.
func (c *Converter) ToGregorian(ctx context.Context, d Date) (time.Time, error) {
	table, err := c.table(ctx, d.Year)
	if err != nil {
		return time.Time{}, err
	}
	pos, ok := d.Month.Position(table.Leap)
	if !ok {
		return time.Time{}, fmt.Errorf("%s %d: %w", d.Month, d.Year, ErrNoSuchDate)
	}
	length := table.MonthLengths[pos-1]
	if d.Day < 1 || d.Day > length {
		return time.Time{}, fmt.Errorf("day %d of %s %d: %w", d.Day, d.Month, d.Year, ErrNoSuchDate)
	}

	abs := table.FirstDay + d.Day - 1
	for i := 0; i < pos-1; i++ {
		abs += table.MonthLengths[i]
	}
	return timeFromAbs(abs), nil
}

// AddMonths advances a Hebrew date by n months (n may be negative), walking
// the real month tables so that 12- and 13-month years are crossed correctly.
// The day is clamped to the length of the destination month.
func (c *Converter) AddMonths(ctx context.Context, d Date, n int) (Date, error) {
	table, err := c.table(ctx, d.Year)
	if err != nil {
		return Date{}, err
	}
	pos, ok := d.Month.Position(table.Leap)
	if !ok {
		return Date{}, fmt.Errorf("%s %d: %w", d.Month, d.Year, ErrNoSuchDate)
	}

	for n > 0 {
		if step := table.MonthsInYear() - pos; step > 0 {
			if n <= step {
				pos += n
				n = 0
				break
			}
			pos += step
			n -= step
		}
		// Cross into the next year's Tishrei.
		if table, err = c.table(ctx, table.Year+1); err != nil {
			return Date{}, err
		}
		pos = 1
		n--
	}
	for n < 0 {
		if n >= 1-pos {
			pos += n
			n = 0
			break
		}
		n += pos
		if table, err = c.table(ctx, table.Year-1); err != nil {
			return Date{}, err
		}
		pos = table.MonthsInYear()
	}

	month, _ := MonthAtPosition(pos, table.Leap)
	day := d.Day
	if length := table.MonthLengths[pos-1]; day > length {
		day = length
	}
	return Date{Year: table.Year, Month: month, Day: day}, nil
}

// YearInfo exposes the table for a single year (used by anniversary search
// and the admin surface).
func (c *Converter) YearInfo(ctx context.Context, year int) (YearTable, error) {
	return c.table(ctx, year)
}
