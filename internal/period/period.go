// Package period models the calendar-month buckets consumption is keyed by.
package period

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidPeriod = errors.New("invalid_period")

// Period is a calendar month, formatted as YYYY-MM.
type Period struct {
	Year  int
	Month time.Month
}

func New(year int, month time.Month) (Period, error) {
	if year < 2000 || year > 9999 || month < time.January || month > time.December {
		return Period{}, ErrInvalidPeriod
	}
	return Period{Year: year, Month: month}, nil
}

// Of returns the period containing t as observed in loc.
func Of(t time.Time, loc *time.Location) Period {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return Period{Year: local.Year(), Month: local.Month()}
}

func Parse(value string) (Period, error) {
	parsed, err := time.Parse("2006-01", value)
	if err != nil {
		return Period{}, ErrInvalidPeriod
	}
	return Period{Year: parsed.Year(), Month: parsed.Month()}, nil
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

func (p Period) IsZero() bool {
	return p.Year == 0 && p.Month == 0
}

// Start is midnight on the first day of the period in loc.
func (p Period) Start(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, loc)
}

// End is the last instant of the period in loc.
func (p Period) End(loc *time.Location) time.Time {
	return p.Next().Start(loc).Add(-time.Nanosecond)
}

func (p Period) Next() Period {
	next := time.Date(p.Year, p.Month+1, 1, 0, 0, 0, 0, time.UTC)
	return Period{Year: next.Year(), Month: next.Month()}
}

// Contains reports whether t falls inside the period as observed in loc.
func (p Period) Contains(t time.Time, loc *time.Location) bool {
	return Of(t, loc) == p
}
