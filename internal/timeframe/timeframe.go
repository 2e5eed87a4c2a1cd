// Package timeframe resolves report periods into UTC day windows.
package timeframe

import (
	"strings"
	"time"
)

// Period selects how many calendar days a report covers.
type Period string

const (
	PeriodLast7Days  Period = "7d"
	PeriodLast30Days Period = "30d"
	PeriodLast90Days Period = "90d"
	PeriodAllTime    Period = "all"
)

// DefaultPeriod is used for empty or unrecognised period values.
const DefaultPeriod = PeriodLast7Days

// DayFormat is the key format of a calendar day.
const DayFormat = "2006-01-02"

// ParsePeriod maps a query value to a Period. Unknown values fall back to
// DefaultPeriod and report false.
func ParsePeriod(raw string) (Period, bool) {
	switch p := Period(strings.ToLower(strings.TrimSpace(raw))); p {
	case PeriodLast7Days, PeriodLast30Days, PeriodLast90Days, PeriodAllTime:
		return p, true
	}
	return DefaultPeriod, false
}

// days returns the length of the window including today, or 0 for all time.
func (p Period) days() int {
	switch p {
	case PeriodLast30Days:
		return 30
	case PeriodLast90Days:
		return 90
	case PeriodAllTime:
		return 0
	}
	return 7
}

type TimeProvider interface {
	Now() time.Time
}

// DefaultTimeProvider reads the system clock.
type DefaultTimeProvider struct{}

func (DefaultTimeProvider) Now() time.Time {
	return time.Now()
}

// TimeFrame is an inclusive window of whole UTC days.
type TimeFrame struct {
	From   time.Time
	To     time.Time
	Period Period
}

// New builds the window for period ending on the UTC day containing now.
// From is midnight of the first day, To is 23:59:59.999 of today.
func New(period Period, now time.Time) TimeFrame {
	today := StartOfDay(now)
	end := today.Add(24*time.Hour - time.Millisecond)

	if period.days() == 0 {
		return TimeFrame{
			From:   time.Unix(0, 0).UTC(),
			To:     end,
			Period: PeriodAllTime,
		}
	}

	return TimeFrame{
		From:   today.AddDate(0, 0, -(period.days() - 1)),
		To:     end,
		Period: period,
	}
}

// StartOfDay truncates t to midnight UTC.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
