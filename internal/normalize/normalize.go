// Package normalize turns raw controller records into chart-ready series.
// Every function is pure and tolerates nil input.
package normalize

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"npbc-dashboard/internal/device"
	"npbc-dashboard/internal/timerange"
)

// FeedRateKgPerHour is the pellet mass the feeder moves per hour of running.
const FeedRateKgPerHour = 37

const (
	timeOnlyLayout = "15:04"
	dateTimeLayout = "02/01 15:04"
	monthLayout    = "Jan 2006"
)

var (
	feedRate       = decimal.NewFromInt(FeedRateKgPerHour)
	secondsPerHour = decimal.NewFromInt(3600)
)

// Sample is a history record ready for charting.
type Sample struct {
	Timestamp      int64   `json:"timestamp"`
	FormattedDate  string  `json:"formattedDate"`
	Tset           float64 `json:"Tset"`
	Tboiler        float64 `json:"Tboiler"`
	TDS18          float64 `json:"TDS18"`
	DHW            float64 `json:"DHW"`
	KTYPE          float64 `json:"KTYPE"`
	TBMP           float64 `json:"TBMP"`
	Flame          float64 `json:"Flame"`
	Power          int     `json:"Power"`
	ThermostatStop bool    `json:"ThermostatStop"`
}

// Time returns the sample timestamp.
func (s Sample) Time() time.Time { return time.UnixMilli(s.Timestamp) }

// ConsumptionSample is the fuel burned in one hourly bucket.
type ConsumptionSample struct {
	Timestamp     int64   `json:"timestamp"`
	FormattedDate string  `json:"formattedDate"`
	Consumption   float64 `json:"consumption"`
}

// MonthlySample is the fuel burned in one calendar month.
type MonthlySample struct {
	Month         string `json:"month"`
	FormattedDate string `json:"formattedDate"`
	Consumption   int64  `json:"consumption"`
}

// Status returns the current snapshot: the first record, or nil.
func Status(records []device.StatusRecord) *device.StatusRecord {
	if len(records) == 0 {
		return nil
	}
	current := records[0]
	return &current
}

// History maps raw samples in their original order. Records whose Date does
// not parse are dropped.
func History(records []device.HistoryRecord, r timerange.Range, loc *time.Location) []Sample {
	out := make([]Sample, 0, len(records))
	for _, rec := range records {
		ts, err := ParseTimestamp(rec.Date, loc)
		if err != nil {
			continue
		}
		out = append(out, Sample{
			Timestamp:      ts.UnixMilli(),
			FormattedDate:  FormatDate(ts, r, loc),
			Tset:           rec.Tset,
			Tboiler:        rec.Tboiler,
			TDS18:          rec.TDS18,
			DHW:            rec.DHW,
			KTYPE:          rec.KTYPE,
			TBMP:           rec.TBMP,
			Flame:          rec.Flame,
			Power:          DisplayPower(rec.Power),
			ThermostatStop: bool(rec.ThermostatStop),
		})
	}
	return out
}

// Consumption converts feeder run time per bucket into kilograms, rounded
// to two decimals.
func Consumption(records []device.ConsumptionRecord, r timerange.Range, loc *time.Location) []ConsumptionSample {
	out := make([]ConsumptionSample, 0, len(records))
	for _, rec := range records {
		ts, err := ParseTimestamp(rec.Timestamp, loc)
		if err != nil {
			continue
		}
		out = append(out, ConsumptionSample{
			Timestamp:     ts.UnixMilli(),
			FormattedDate: FormatDate(ts, r, loc),
			Consumption:   FuelMass(rec.FFWorkTime, 2).InexactFloat64(),
		})
	}
	return out
}

// Monthly converts cumulative monthly run time into whole kilograms. Records
// missing either field, or with a month that does not parse, are dropped.
func Monthly(records []device.MonthlyRecord) []MonthlySample {
	out := make([]MonthlySample, 0, len(records))
	for _, rec := range records {
		if rec.YearMonth == nil || rec.FFWork == nil {
			continue
		}
		month, err := parseMonth(*rec.YearMonth)
		if err != nil {
			continue
		}
		out = append(out, MonthlySample{
			Month:         month.Format("2006-01"),
			FormattedDate: month.Format(monthLayout),
			Consumption:   FuelMass(*rec.FFWork, 0).IntPart(),
		})
	}
	return out
}

// DisplayPower collapses the Off (0) and Suspend (1) levels to zero.
func DisplayPower(raw int) int {
	return max(0, raw-1)
}

// FuelMass converts feeder seconds into kilograms rounded to places.
func FuelMass(seconds decimal.Decimal, places int32) decimal.Decimal {
	return seconds.Mul(feedRate).Div(secondsPerHour).Round(places)
}

// FormatDate renders an axis label: time of day for short ranges, day and
// month as well once the range exceeds a day.
func FormatDate(t time.Time, r timerange.Range, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	if r.ShowsDate() {
		return t.Format(dateTimeLayout)
	}
	return t.Format(timeOnlyLayout)
}

var timestampLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
}

// ParseTimestamp accepts RFC 3339 and the zone-less forms the controller
// server emits. Zone-less values are read in loc.
func ParseTimestamp(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("normalize: empty timestamp")
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, nil
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, value, loc); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("normalize: unrecognised timestamp %q", value)
}

// parseMonth anchors a YYYY-MM key at noon UTC on the first day so no
// timezone shift can move it into the neighbouring month.
func parseMonth(key string) (time.Time, error) {
	m, err := time.Parse("2006-01", strings.TrimSpace(key))
	if err != nil {
		return time.Time{}, fmt.Errorf("normalize: month %q: %w", key, err)
	}
	return time.Date(m.Year(), m.Month(), 1, 12, 0, 0, 0, time.UTC), nil
}
