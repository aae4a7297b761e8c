package calendar

import (
	"testing"
	"time"

	"github.com/hitoshi/catsit/internal/model"
)

func TestDaysIn(t *testing.T) {
	tests := []struct {
		year  int
		month time.Month
		want  int
	}{
		{2026, time.January, 31},
		{2026, time.February, 28},
		{2024, time.February, 29},
		{2000, time.February, 29},
		{1900, time.February, 28},
		{2026, time.April, 30},
		{2026, time.July, 31},
		{2026, time.August, 31},
		{2026, time.December, 31},
	}
	for _, tt := range tests {
		if got := DaysIn(tt.year, tt.month); got != tt.want {
			t.Errorf("DaysIn(%d, %s) = %d, want %d", tt.year, tt.month, got, tt.want)
		}
	}
}

func TestProject_July2026(t *testing.T) {
	cal := model.DefaultCalendar()
	m := model.ReservationMap{"2026-07-25": "1", "2026-07-31": "3"}

	v := Project(2026, time.July, cal, m)

	if v.Name != "July" || v.Year != 2026 || v.Month != time.July {
		t.Errorf("header = %s %d", v.Name, v.Year)
	}
	// 2026-07-01 は水曜日
	if v.LeadingBlanks != 3 {
		t.Errorf("LeadingBlanks = %d, want 3", v.LeadingBlanks)
	}
	if len(v.Days) != 31 {
		t.Fatalf("len(Days) = %d, want 31", len(v.Days))
	}

	for _, d := range v.Days {
		wantIn := d.Day >= 25
		if d.InWindow != wantIn {
			t.Errorf("%s InWindow = %v, want %v", d.Date, d.InWindow, wantIn)
		}
	}

	d25 := v.Days[24]
	if d25.Date != "2026-07-25" || d25.Occupant == nil || d25.Occupant.ID != "1" {
		t.Errorf("day 25 = %+v", d25)
	}
	if d25.Weekday != time.Saturday {
		t.Errorf("day 25 weekday = %s, want Saturday", d25.Weekday)
	}
	if v.Days[25].Occupant != nil {
		t.Errorf("day 26 occupant = %+v, want none", v.Days[25].Occupant)
	}
	if v.Days[30].Occupant == nil || v.Days[30].Occupant.ShortName() != "Lidi" {
		t.Errorf("day 31 occupant = %+v", v.Days[30].Occupant)
	}
}

func TestProject_August2026(t *testing.T) {
	v := Project(2026, time.August, model.DefaultCalendar(), nil)

	// 2026-08-01 は土曜日
	if v.LeadingBlanks != 6 {
		t.Errorf("LeadingBlanks = %d, want 6", v.LeadingBlanks)
	}
	in := 0
	for _, d := range v.Days {
		if d.InWindow {
			in++
		}
	}
	if in != 5 {
		t.Errorf("in-window days = %d, want 5", in)
	}
	if !v.Days[4].InWindow || v.Days[5].InWindow {
		t.Errorf("Aug 5 in=%v, Aug 6 in=%v", v.Days[4].InWindow, v.Days[5].InWindow)
	}
}

func TestProject_ArbitraryMonth(t *testing.T) {
	v := Project(2024, time.February, model.DefaultCalendar(), nil)
	if len(v.Days) != 29 {
		t.Errorf("len(Days) = %d, want 29", len(v.Days))
	}
	// 2024-02-01 は木曜日
	if v.LeadingBlanks != 4 {
		t.Errorf("LeadingBlanks = %d, want 4", v.LeadingBlanks)
	}
	for _, d := range v.Days {
		if d.InWindow {
			t.Errorf("%s should be out of window", d.Date)
		}
	}
}

func TestProject_UnknownParticipantHasNoOccupant(t *testing.T) {
	v := Project(2026, time.July, model.DefaultCalendar(), model.ReservationMap{"2026-07-26": "ghost"})
	if v.Days[25].Occupant != nil {
		t.Errorf("occupant = %+v, want nil", v.Days[25].Occupant)
	}
}

func TestProject_DoesNotMutateInput(t *testing.T) {
	m := model.ReservationMap{"2026-07-26": "2"}
	_ = Project(2026, time.July, model.DefaultCalendar(), m)
	_ = Project(2026, time.July, model.DefaultCalendar(), m)
	if len(m) != 1 || m["2026-07-26"] != "2" {
		t.Errorf("input mutated: %v", m)
	}
}

func TestMonthsInWindow(t *testing.T) {
	got := MonthsInWindow(model.DefaultCalendar().Window)
	want := []YearMonth{{2026, time.July}, {2026, time.August}}
	if len(got) != len(want) {
		t.Fatalf("MonthsInWindow() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("MonthsInWindow()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestMonthsInWindow_YearBoundary(t *testing.T) {
	got := MonthsInWindow(model.VacationWindow{Start: "2026-12-20", End: "2027-01-03"})
	if len(got) != 2 || got[0] != (YearMonth{2026, time.December}) || got[1] != (YearMonth{2027, time.January}) {
		t.Errorf("MonthsInWindow() = %v", got)
	}
}

func TestMonthsInWindow_Invalid(t *testing.T) {
	if got := MonthsInWindow(model.VacationWindow{Start: "x", End: "2026-01-01"}); got != nil {
		t.Errorf("MonthsInWindow() = %v, want nil", got)
	}
	if got := MonthsInWindow(model.VacationWindow{Start: "2026-02-01", End: "2026-01-01"}); got != nil {
		t.Errorf("MonthsInWindow() = %v, want nil", got)
	}
}

func TestProjectWindow(t *testing.T) {
	views := ProjectWindow(model.DefaultCalendar(), model.ReservationMap{"2026-08-05": "2"})
	if len(views) != 2 {
		t.Fatalf("len(views) = %d, want 2", len(views))
	}
	if views[1].Days[4].Occupant == nil || views[1].Days[4].Occupant.ID != "2" {
		t.Errorf("Aug 5 occupant = %+v", views[1].Days[4].Occupant)
	}
}
