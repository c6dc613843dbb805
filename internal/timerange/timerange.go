// Package timerange holds the selectable dashboard time windows.
package timerange

import (
	"errors"
	"fmt"
	"time"
)

// Range is a lookback window in hours.
type Range int

// The only ranges the dashboard offers.
const (
	Hour1   Range = 1
	Hours6  Range = 6
	Hours12 Range = 12
	Hours24 Range = 24
	Hours48 Range = 48
	Hours72 Range = 72

	Default = Hours24
)

// ErrInvalid is returned for ranges outside the offered set.
var ErrInvalid = errors.New("timerange: unsupported range")

var all = []Range{Hour1, Hours6, Hours12, Hours24, Hours48, Hours72}

// All lists the offered ranges in ascending order.
func All() []Range {
	out := make([]Range, len(all))
	copy(out, all)
	return out
}

// Parse validates hours against the offered set.
func Parse(hours int) (Range, error) {
	for _, r := range all {
		if int(r) == hours {
			return r, nil
		}
	}
	return 0, fmt.Errorf("%w: %d hours", ErrInvalid, hours)
}

// Hours returns the range length in hours.
func (r Range) Hours() int { return int(r) }

// Duration returns the range length.
func (r Range) Duration() time.Duration { return time.Duration(r) * time.Hour }

// Boundary is the earliest Unix second included in a windowed query.
func (r Range) Boundary(now time.Time) int64 {
	return now.Unix() - int64(r)*3600
}

// ShowsDate reports whether axis labels need day and month in addition to
// the time of day.
func (r Range) ShowsDate() bool { return r > Hours24 }

func (r Range) String() string { return fmt.Sprintf("%dh", int(r)) }
