package roster

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestPlanFridayCoversWeekend(t *testing.T) {
	// 2024-10-04 is a Friday.
	got := Plan(date(2024, time.October, 4))
	if len(got) != 2 {
		t.Fatalf("expected 2 dates for a Friday, got %d: %v", len(got), got)
	}
	if got[0].Day != 5 || got[0].Weekday != time.Saturday {
		t.Fatalf("expected Saturday the 5th first, got %+v", got[0])
	}
	if got[1].Day != 6 || got[1].Weekday != time.Sunday {
		t.Fatalf("expected Sunday the 6th second, got %+v", got[1])
	}
}

func TestPlanOtherDaysCoverTomorrow(t *testing.T) {
	tests := []struct {
		name    string
		ref     time.Time
		wantDay int
	}{
		{"monday", date(2024, time.October, 7), 8},
		{"thursday", date(2024, time.October, 3), 4},
		{"saturday", date(2024, time.October, 5), 6},
		{"sunday", date(2024, time.October, 6), 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Plan(tt.ref)
			if len(got) != 1 {
				t.Fatalf("expected 1 date, got %d: %v", len(got), got)
			}
			if got[0].Day != tt.wantDay {
				t.Fatalf("expected day %d, got %d", tt.wantDay, got[0].Day)
			}
		})
	}
}

func TestPlanCrossesMonthBoundary(t *testing.T) {
	// Friday 2024-08-30: Saturday is the 31st, Sunday falls into September.
	got := Plan(date(2024, time.August, 30))
	if len(got) != 2 {
		t.Fatalf("expected 2 dates, got %d", len(got))
	}
	if got[1].Month != time.September || got[1].Day != 1 {
		t.Fatalf("expected September 1st, got %+v", got[1])
	}
}

func TestTargetDateFormatting(t *testing.T) {
	d := NewTargetDate(date(2024, time.October, 4))
	if got := d.MonthLabel(); got != "October 2024" {
		t.Fatalf("MonthLabel: got %q", got)
	}
	if got := d.Slash(); got != "4/10/2024" {
		t.Fatalf("Slash: got %q", got)
	}
	if got := d.ISO(); got != "2024-10-04" {
		t.Fatalf("ISO: got %q", got)
	}
	if got := d.DayName(); got != "Friday" {
		t.Fatalf("DayName: got %q", got)
	}
}
