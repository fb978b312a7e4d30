// Package dates handles the nightly date arithmetic shared by the booking
// pipeline. A stay [check_in, check_out) covers one night per date, with
// check_out exclusive.
package dates

import (
	"time"

	"openbooking/internal/pkg/errs"
)

const Layout = time.DateOnly

// Nights returns the dates covered by a half-open [checkIn, checkOut) stay,
// in ascending order. An empty or inverted range yields nil.
func Nights(checkIn, checkOut time.Time) []time.Time {
	var nights []time.Time
	for d := Truncate(checkIn); d.Before(Truncate(checkOut)); d = d.AddDate(0, 0, 1) {
		nights = append(nights, d)
	}
	return nights
}

// Truncate drops the time-of-day component, keeping the date in UTC.
func Truncate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func Parse(s string) (time.Time, error) {
	t, err := time.ParseInLocation(Layout, s, time.UTC)
	if err != nil {
		return time.Time{}, errs.Wrapf(err, "invalid date %q", s)
	}
	return t, nil
}

func Format(t time.Time) string {
	return t.Format(Layout)
}
