package ride

import (
	"errors"
	"strings"
	"time"
)

// EarningsRange names a reporting window for fare analytics.
type EarningsRange string

const (
	RangeLast7Days  EarningsRange = "7d"
	RangeLast30Days EarningsRange = "30d"
	RangeThisMonth  EarningsRange = "month"
	RangeThisYear   EarningsRange = "year"
)

var ErrInvalidRange = errors.New("invalid earnings range")

// ParseEarningsRange accepts 7d, 30d, month or year. Empty means 30d.
func ParseEarningsRange(in string) (EarningsRange, error) {
	r := EarningsRange(strings.ToLower(strings.TrimSpace(in)))
	switch r {
	case "":
		return RangeLast30Days, nil
	case RangeLast7Days, RangeLast30Days, RangeThisMonth, RangeThisYear:
		return r, nil
	default:
		return "", ErrInvalidRange
	}
}

// Bounds returns the [from, to] calendar days of the range ending at now.
func (r EarningsRange) Bounds(now time.Time) (from, to time.Time) {
	y, m, d := now.Date()
	to = time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	switch r {
	case RangeLast7Days:
		from = to.AddDate(0, 0, -7)
	case RangeThisMonth:
		from = time.Date(y, m, 1, 0, 0, 0, 0, now.Location())
	case RangeThisYear:
		from = time.Date(y, time.January, 1, 0, 0, 0, 0, now.Location())
	default:
		from = to.AddDate(0, 0, -30)
	}
	return from, to
}
