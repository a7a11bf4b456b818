package rent

import (
	"fmt"
	"time"
)

// Frequency is how often rent falls due for a property.
type Frequency string

const (
	Weekly      Frequency = "weekly"
	Fortnightly Frequency = "fortnightly"
	Monthly     Frequency = "monthly"
)

// Schedule describes one property's payment rhythm.
// DueDay is 1-7 (Monday..Sunday) for weekly/fortnightly and 1-31 for monthly.
// Anchor fixes the phase of fortnightly schedules; it is the property's
// creation time and is ignored for the other frequencies.
type Schedule struct {
	Frequency Frequency
	DueDay    int
	Anchor    time.Time
}

// Cycle is one payment period, half-open: [Start, End).
// Cycles for a property tile the timeline: End of cycle N is Start of N+1.
type Cycle struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the cycle.
func (c Cycle) Contains(t time.Time) bool {
	return !t.Before(c.Start) && t.Before(c.End)
}

// Validate checks the frequency/due-day pair.
func (s Schedule) Validate() error {
	switch s.Frequency {
	case Weekly, Fortnightly:
		if s.DueDay < 1 || s.DueDay > 7 {
			return fmt.Errorf("%w: due day %d out of range 1-7 for %s rent", ErrInvalidConfiguration, s.DueDay, s.Frequency)
		}
	case Monthly:
		if s.DueDay < 1 || s.DueDay > 31 {
			return fmt.Errorf("%w: due day %d out of range 1-31 for monthly rent", ErrInvalidConfiguration, s.DueDay)
		}
	default:
		return fmt.Errorf("%w: unknown frequency %q", ErrInvalidConfiguration, s.Frequency)
	}
	return nil
}

// CurrentCycle returns the cycle containing asOf. If asOf is exactly a due-day
// boundary, it belongs to the cycle that starts there.
func CurrentCycle(s Schedule, asOf time.Time) (Cycle, error) {
	if err := s.Validate(); err != nil {
		return Cycle{}, err
	}
	day := truncateToDay(asOf)

	switch s.Frequency {
	case Weekly:
		start := mostRecentWeekday(day, s.DueDay)
		return Cycle{Start: start, End: start.AddDate(0, 0, 7)}, nil

	case Fortnightly:
		anchor := mostRecentWeekday(truncateToDay(s.Anchor), s.DueDay)
		// occurrences are anchor + 14k days; floor division keeps cycles
		// contiguous even for asOf before the anchor
		periods := floorDiv(daysBetween(anchor, day), 14)
		start := anchor.AddDate(0, 0, periods*14)
		return Cycle{Start: start, End: start.AddDate(0, 0, 14)}, nil

	case Monthly:
		start := clampedMonthDay(day.Year(), day.Month(), s.DueDay, day.Location())
		if day.Before(start) {
			start = clampedMonthDay(day.Year(), day.Month()-1, s.DueDay, day.Location())
		}
		end := clampedMonthDay(start.Year(), start.Month()+1, s.DueDay, start.Location())
		return Cycle{Start: start, End: end}, nil
	}
	return Cycle{}, fmt.Errorf("%w: unknown frequency %q", ErrInvalidConfiguration, s.Frequency)
}

// NextCycle returns the cycle immediately after c.
func NextCycle(s Schedule, c Cycle) Cycle {
	switch s.Frequency {
	case Monthly:
		return Cycle{
			Start: c.End,
			End:   clampedMonthDay(c.End.Year(), c.End.Month()+1, s.DueDay, c.End.Location()),
		}
	default:
		return Cycle{Start: c.End, End: c.End.Add(c.End.Sub(c.Start))}
	}
}

// ElapsedCycles lists every cycle that has fully closed by asOf, beginning
// with the cycle containing from. Rent falls due once per listed cycle. An
// empty slice means no cycle has closed yet.
func ElapsedCycles(s Schedule, from, asOf time.Time) ([]Cycle, error) {
	c, err := CurrentCycle(s, from)
	if err != nil {
		return nil, err
	}
	var elapsed []Cycle
	for !c.End.After(asOf) {
		elapsed = append(elapsed, c)
		c = NextCycle(s, c)
	}
	return elapsed, nil
}

// PrevCycle returns the cycle immediately before c.
func PrevCycle(s Schedule, c Cycle) Cycle {
	switch s.Frequency {
	case Monthly:
		return Cycle{
			Start: clampedMonthDay(c.Start.Year(), c.Start.Month()-1, s.DueDay, c.Start.Location()),
			End:   c.Start,
		}
	default:
		return Cycle{Start: c.Start.Add(-c.End.Sub(c.Start)), End: c.Start}
	}
}

// truncateToDay drops the time-of-day component.
func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// isoWeekday maps Go's Sunday-based weekday to 1=Monday .. 7=Sunday.
func isoWeekday(t time.Time) int {
	return (int(t.Weekday())+6)%7 + 1
}

// mostRecentWeekday walks back from day (inclusive) to the given ISO weekday.
func mostRecentWeekday(day time.Time, weekday int) time.Time {
	back := (isoWeekday(day) - weekday + 7) % 7
	return day.AddDate(0, 0, -back)
}

// clampedMonthDay builds the due date in the given month, clamping day to the
// month's length (due-day 31 in February becomes Feb 28/29). Month may be
// outside 1-12; time.Date normalizes it.
func clampedMonthDay(year int, month time.Month, day int, loc *time.Location) time.Time {
	firstOfMonth := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	lastDay := firstOfMonth.AddDate(0, 1, -1).Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(firstOfMonth.Year(), firstOfMonth.Month(), day, 0, 0, 0, 0, loc)
}

// daysBetween counts calendar days from one midnight to another. It rebuilds
// both dates in UTC so DST transitions cannot skew the count.
func daysBetween(from, to time.Time) int {
	f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	t := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(t.Sub(f) / (24 * time.Hour))
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
