package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidTimeRange is returned for an unrecognised time range token.
var ErrInvalidTimeRange = errors.New("invalid time range")

// TimeRange limits queries to readings newer than a cut-off.
type TimeRange string

const (
	RangeHour TimeRange = "1h"
	RangeDay  TimeRange = "24h"
	RangeWeek TimeRange = "7d"
	RangeAll  TimeRange = "all"

	rangeHourAlias TimeRange = "hour"
	rangeDayAlias  TimeRange = "day"
)

// ParseTimeRange normalises a query token. An empty token means RangeAll.
func ParseTimeRange(s string) (TimeRange, error) {
	switch TimeRange(strings.ToLower(strings.TrimSpace(s))) {
	case "", RangeAll:
		return RangeAll, nil
	case RangeHour, rangeHourAlias:
		return RangeHour, nil
	case RangeDay, rangeDayAlias:
		return RangeDay, nil
	case RangeWeek:
		return RangeWeek, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidTimeRange, s)
	}
}

// Duration returns the window length, or 0 for RangeAll.
func (r TimeRange) Duration() time.Duration {
	switch r {
	case RangeHour:
		return time.Hour
	case RangeDay:
		return 24 * time.Hour
	case RangeWeek:
		return 7 * 24 * time.Hour
	default:
		return 0
	}
}

// Since returns the cut-off relative to now. The zero time means unbounded.
func (r TimeRange) Since(now time.Time) time.Time {
	d := r.Duration()
	if d == 0 {
		return time.Time{}
	}
	return now.Add(-d)
}
