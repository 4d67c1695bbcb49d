package stock

import (
	"fmt"
	"time"
)

// Period is the half-open refresh window [Start, End) of width = a section's
// cadence. Boundaries are absolute instants, not bare times of day, so
// periods around midnight compare correctly across calendar days.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// PeriodAt returns the period of the given cadence that contains now.
// Buckets are anchored at local midnight, so for a fixed cadence they tile
// the day with no gaps or overlaps.
func PeriodAt(now time.Time, cadence time.Duration) Period {
	if cadence <= 0 {
		cadence = 30 * time.Minute
	}
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	since := now.Sub(midnight)
	start := midnight.Add(since / cadence * cadence)
	return Period{Start: start, End: start.Add(cadence)}
}

func (p Period) IsZero() bool { return p.Start.IsZero() && p.End.IsZero() }

// Valid reports whether the period is well-formed. Malformed persisted
// periods are treated as expired by callers, never as an error.
func (p Period) Valid() bool { return !p.Start.IsZero() && p.End.After(p.Start) }

func (p Period) Equal(o Period) bool {
	return p.Start.Equal(o.Start) && p.End.Equal(o.End)
}

func (p Period) Contains(t time.Time) bool {
	return p.Valid() && !t.Before(p.Start) && t.Before(p.End)
}

// ExpiredAt reports whether the period is over (or malformed) at instant t.
func (p Period) ExpiredAt(t time.Time) bool {
	return !p.Valid() || !t.Before(p.End)
}

// Label renders the period as "HH:MM-HH:MM" local wall-clock, the format the
// notifier logs and operators read.
func (p Period) Label() string {
	if !p.Valid() {
		return ""
	}
	return fmt.Sprintf("%s-%s", p.Start.Format("15:04"), p.End.Format("15:04"))
}
