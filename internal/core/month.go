package core

import (
	"fmt"
	"time"
)

// Month is a year-month at first-of-month granularity, the unit budgets are
// keyed by. The zero value is no month.
type Month struct {
	Year int
	Mon  time.Month
}

func NewMonth(year int, mon time.Month) Month {
	return Month{Year: year, Mon: mon}
}

// ParseMonth parses the YYYY-MM wire form.
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Month{}, fmt.Errorf("%w: %q", ErrInvalidMonth, s)
	}
	return Month{Year: t.Year(), Mon: t.Month()}, nil
}

// MonthOf returns the month a wall-clock instant falls in.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Mon: t.Month()}
}

func CurrentMonth() Month {
	return MonthOf(time.Now())
}

func (m Month) IsZero() bool {
	return m.Year == 0 && m.Mon == 0
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Mon))
}

// Interval returns the half-open [first instant of the month, first instant
// of the next month). A transaction dated exactly at the start of the next
// month belongs to that next month, never to this one.
func (m Month) Interval() (start, end time.Time) {
	start = time.Date(m.Year, m.Mon, 1, 0, 0, 0, 0, time.UTC)
	end = start.AddDate(0, 1, 0)
	return start, end
}

// Contains reports whether t falls inside the month's half-open interval.
// Comparison is on wall-clock fields so instants carrying other locations
// still land in the month they display as.
func (m Month) Contains(t time.Time) bool {
	return t.Year() == m.Year && t.Month() == m.Mon
}

// Prev returns the month before m.
func (m Month) Prev() Month {
	start, _ := m.Interval()
	return MonthOf(start.AddDate(0, -1, 0))
}

// LastMonths returns the n months ending at (and including) m, oldest first.
func LastMonths(m Month, n int) []Month {
	months := make([]Month, n)
	cur := m
	for i := n - 1; i >= 0; i-- {
		months[i] = cur
		cur = cur.Prev()
	}
	return months
}

func (m Month) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Month) UnmarshalText(b []byte) error {
	parsed, err := ParseMonth(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
