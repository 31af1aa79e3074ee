package guard

import (
	"errors"
	"time"
)

var ErrNotFirstDayOfMonth = errors.New("not_first_day_of_month")

// EnsureFirstDayOfMonth passes only when now falls on day 1 in loc.
func EnsureFirstDayOfMonth(now time.Time, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	if now.In(loc).Day() != 1 {
		return ErrNotFirstDayOfMonth
	}
	return nil
}
