package types

import (
	"fmt"
	"time"
)

// NextBillingDate moves from one billing date to the next for the given frequency.
// Month based cadences clamp to the last day of the target month, so Jan 31 monthly
// lands on Feb 28 (or 29), and stays anchored to that shorter day afterwards.
func NextBillingDate(from time.Time, frequency BillingFrequency) (time.Time, error) {
	switch frequency {
	case BillingFrequencyWeekly:
		return from.AddDate(0, 0, 7), nil
	case BillingFrequencyMonthly:
		return AddClampedDate(from, 0, 1, 0), nil
	case BillingFrequencyQuarterly:
		return AddClampedDate(from, 0, 3, 0), nil
	case BillingFrequencyHalfYearly:
		return AddClampedDate(from, 0, 6, 0), nil
	case BillingFrequencyYearly:
		return AddClampedDate(from, 1, 0, 0), nil
	default:
		return from, fmt.Errorf("billing frequency %q has no next billing date", frequency)
	}
}

// AddClampedDate adds years and months without overflowing into the following month,
// then adds days.
func AddClampedDate(t time.Time, years, months, days int) time.Time {
	y, m, d := t.Date()
	h, min, sec := t.Clock()

	newY := y + years
	newM := time.Month(int(m) + months)

	for newM > 12 {
		newM -= 12
		newY++
	}
	for newM < 1 {
		newM += 12
		newY--
	}

	// last valid day of the target month
	lastDay := time.Date(newY, newM+1, 0, 0, 0, 0, 0, t.Location()).Day()
	if d > lastDay {
		d = lastDay
	}

	return time.Date(newY, newM, d, h, min, sec, t.Nanosecond(), t.Location()).AddDate(0, 0, days)
}
