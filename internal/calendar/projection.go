// Package calendar は休暇期間と予約マップから月ごとの表示用データを組み立てる。
// すべての関数は純粋で、状態を持たない。
package calendar

import (
	"time"

	"github.com/hitoshi/catsit/internal/model"
)

// Day はカレンダーの1日分の表示状態。
type Day struct {
	Date     model.DateKey      `json:"date"`
	Day      int                `json:"day"`
	Weekday  time.Weekday       `json:"weekday"`
	InWindow bool               `json:"in_window"`
	Occupant *model.Participant `json:"occupant,omitempty"`
}

// MonthView は1か月分の表示データ。週は日曜始まり。
type MonthView struct {
	Year          int        `json:"year"`
	Month         time.Month `json:"month"`
	Name          string     `json:"name"`
	LeadingBlanks int        `json:"leading_blanks"`
	Days          []Day      `json:"days"`
}

// YearMonth は年と月の組。
type YearMonth struct {
	Year  int
	Month time.Month
}

// DaysIn はグレゴリオ暦の指定月の日数を返す。
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Project は指定月の各日について、期間内かどうかと予約者を求める。
// 先頭の空白数は1日の曜日（日曜=0）に等しい。
// 名簿にない参加者IDの予約は予約者なしとして扱う。
func Project(year int, month time.Month, cal model.Calendar, m model.ReservationMap) MonthView {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	n := DaysIn(year, month)

	view := MonthView{
		Year:          first.Year(),
		Month:         first.Month(),
		Name:          first.Month().String(),
		LeadingBlanks: int(first.Weekday()),
		Days:          make([]Day, 0, n),
	}

	for d := 1; d <= n; d++ {
		t := first.AddDate(0, 0, d-1)
		key := model.DateKeyOf(t)
		day := Day{
			Date:     key,
			Day:      d,
			Weekday:  t.Weekday(),
			InWindow: cal.Window.Contains(key),
		}
		if id, ok := m[key]; ok {
			if p, found := cal.Participant(id); found {
				day.Occupant = &p
			}
		}
		view.Days = append(view.Days, day)
	}
	return view
}

// MonthsInWindow は休暇期間にかかる月を昇順で返す。
func MonthsInWindow(w model.VacationWindow) []YearMonth {
	if !w.Start.Valid() || !w.End.Valid() {
		return nil
	}
	start, end := w.Start.Time(), w.End.Time()
	if end.Before(start) {
		return nil
	}

	var months []YearMonth
	cur := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !cur.After(last) {
		months = append(months, YearMonth{Year: cur.Year(), Month: cur.Month()})
		cur = cur.AddDate(0, 1, 0)
	}
	return months
}

// ProjectWindow は休暇期間にかかるすべての月を投影する。
func ProjectWindow(cal model.Calendar, m model.ReservationMap) []MonthView {
	months := MonthsInWindow(cal.Window)
	views := make([]MonthView, 0, len(months))
	for _, ym := range months {
		views = append(views, Project(ym.Year, ym.Month, cal, m))
	}
	return views
}
