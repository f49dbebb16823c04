package roster

import (
	"fmt"
	"time"
)

// TargetDate is one calendar date selected for a roster lookup.
type TargetDate struct {
	Year    int
	Month   time.Month
	Day     int
	Weekday time.Weekday
}

func NewTargetDate(t time.Time) TargetDate {
	return TargetDate{
		Year:    t.Year(),
		Month:   t.Month(),
		Day:     t.Day(),
		Weekday: t.Weekday(),
	}
}

// MonthLabel returns the date's month the way the portal displays it,
// e.g. "October 2024".
func (d TargetDate) MonthLabel() string {
	return fmt.Sprintf("%s %d", d.Month, d.Year)
}

// Slash returns the day/month/year form used in outgoing messages,
// without zero padding, e.g. "4/10/2024".
func (d TargetDate) Slash() string {
	return fmt.Sprintf("%d/%d/%d", d.Day, int(d.Month), d.Year)
}

// ISO returns the date in YYYY-MM-DD form.
func (d TargetDate) ISO() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// DayName returns the full weekday name, e.g. "Friday".
func (d TargetDate) DayName() string {
	return d.Weekday.String()
}

// Plan returns the dates to look up for the given reference date.
// On a Friday the following Saturday and Sunday are both checked so the
// whole weekend goes out in one message; on every other day only the next
// day is checked.
func Plan(ref time.Time) []TargetDate {
	if ref.Weekday() == time.Friday {
		return []TargetDate{
			NewTargetDate(ref.AddDate(0, 0, 1)),
			NewTargetDate(ref.AddDate(0, 0, 2)),
		}
	}
	return []TargetDate{NewTargetDate(ref.AddDate(0, 0, 1))}
}
