package app

import (
	"fmt"
	"io"
	"strings"

	"github.com/hitoshi/catsit/internal/calendar"
	"github.com/hitoshi/catsit/internal/model"
	"github.com/hitoshi/catsit/internal/reservation"
	"github.com/hitoshi/catsit/internal/session"
	"github.com/hitoshi/catsit/internal/summary"
)

const weekHeader = " Su  Mo  Tu  We  Th  Fr  Sa"

// renderView はカレンダー、予約一覧、進捗、共有リンクをテキストで出力する。
func renderView(w io.Writer, v session.View) {
	if len(v.Cats) > 0 {
		fmt.Fprintf(w, "Cat sitting for %s\n", strings.Join(v.Cats, ", "))
	}
	fmt.Fprintf(w, "Vacation: %s - %s\n", v.Window.Start, v.Window.End)
	renderProgress(w, v.Progress)
	fmt.Fprintln(w)

	for _, m := range v.Months {
		renderMonth(w, m)
		fmt.Fprintln(w)
	}

	for _, m := range v.Months {
		for _, d := range m.Days {
			if !d.InWindow {
				continue
			}
			holder := "-"
			if d.Occupant != nil {
				holder = displayName(*d.Occupant)
			}
			fmt.Fprintf(w, "%s %s  %s\n", d.Date, d.Weekday.String()[:3], holder)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Share: %s\n", v.ShareURL)
}

// renderMonth は1か月分のグリッドを出力する。
// 休暇期間内の日は予約済みなら'*'、空きなら'.'を日付の後ろに付ける。
func renderMonth(w io.Writer, m calendar.MonthView) {
	fmt.Fprintf(w, "%s %d\n", m.Name, m.Year)
	fmt.Fprintln(w, weekHeader)

	var line strings.Builder
	line.WriteString(strings.Repeat("    ", m.LeadingBlanks))
	col := m.LeadingBlanks
	for _, d := range m.Days {
		mark := " "
		if d.InWindow {
			mark = "."
			if d.Occupant != nil {
				mark = "*"
			}
		}
		fmt.Fprintf(&line, " %2d%s", d.Day, mark)
		col++
		if col == 7 {
			fmt.Fprintln(w, strings.TrimRight(line.String(), " "))
			line.Reset()
			col = 0
		}
	}
	if col > 0 {
		fmt.Fprintln(w, strings.TrimRight(line.String(), " "))
	}
}

func renderProgress(w io.Writer, p reservation.Progress) {
	fmt.Fprintf(w, "Progress: %d/%d days (%d%%)\n", p.Booked, p.Total, p.Percent)
	if p.Complete {
		fmt.Fprintln(w, "All days covered! 🎉")
	}
}

// renderChange はトグル1回分の結果を出力する。
func renderChange(w io.Writer, roster model.Roster, c reservation.Change) {
	switch c.Action {
	case reservation.ActionClaimed:
		fmt.Fprintf(w, "%s claimed by %s\n", c.Date, nameOf(roster, c.Holder))
	case reservation.ActionReleased:
		fmt.Fprintf(w, "%s released by %s\n", c.Date, nameOf(roster, c.Previous))
	case reservation.ActionReassigned:
		fmt.Fprintf(w, "%s reassigned from %s to %s\n", c.Date, nameOf(roster, c.Previous), nameOf(roster, c.Holder))
	}
}

func renderSummary(w io.Writer, v session.SummaryView) {
	switch v.State {
	case summary.StateIdle:
		fmt.Fprintln(w, "No reservations yet.")
	default:
		fmt.Fprintln(w, v.Text)
	}
}

func nameOf(roster model.Roster, id string) string {
	if p, ok := roster.Find(id); ok {
		return displayName(p)
	}
	return id
}

func displayName(p model.Participant) string {
	if p.Emoji != "" {
		return p.Emoji + " " + p.ShortName()
	}
	return p.ShortName()
}
