package model

import (
	"fmt"
	"time"
)

// DateLayout はDateKeyの正規形式。
const DateLayout = "2006-01-02"

// DateKey は YYYY-MM-DD 形式に正規化された暦日。
// 1日を識別する唯一のキーとして使う。
type DateKey string

// NewDateKey は年月日からDateKeyを生成する。
// 範囲外の日や月は time.Date と同様に正規化される。
func NewDateKey(year int, month time.Month, day int) DateKey {
	return DateKeyOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DateKeyOf は時刻の暦日部分からDateKeyを生成する。時刻とタイムゾーンは無視する。
func DateKeyOf(t time.Time) DateKey {
	return DateKey(fmt.Sprintf("%04d-%02d-%02d", t.Year(), int(t.Month()), t.Day()))
}

// ParseDateKey は文字列を厳密にDateKeyとして解析する。
// "2026-7-25" のような非正規形式や存在しない日付はエラーになる。
func ParseDateKey(s string) (DateKey, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return "", fmt.Errorf("invalid date key %q: %w", s, err)
	}
	if t.Format(DateLayout) != s {
		return "", fmt.Errorf("invalid date key %q: not canonical", s)
	}
	return DateKey(s), nil
}

// Valid はDateKeyが正規形式かどうかを返す。
func (d DateKey) Valid() bool {
	_, err := ParseDateKey(string(d))
	return err == nil
}

// Time はDateKeyをUTCの0時として返す。不正な値の場合はゼロ値を返す。
func (d DateKey) Time() time.Time {
	t, err := time.Parse(DateLayout, string(d))
	if err != nil {
		return time.Time{}
	}
	return t
}

func (d DateKey) String() string {
	return string(d)
}

// VacationWindow は両端を含む休暇期間 [Start, End]。
type VacationWindow struct {
	Start DateKey `yaml:"start" json:"start" validate:"required,datekey"`
	End   DateKey `yaml:"end" json:"end" validate:"required,datekey"`
}

// Contains は日付が期間内かどうかを日単位で判定する。
// 不正なDateKeyは常に期間外として扱う。
func (w VacationWindow) Contains(d DateKey) bool {
	if !d.Valid() {
		return false
	}
	t := d.Time()
	return !t.Before(w.Start.Time()) && !t.After(w.End.Time())
}

// Days は期間内の全日付を昇順で返す。
func (w VacationWindow) Days() []DateKey {
	start, end := w.Start.Time(), w.End.Time()
	if !w.Start.Valid() || !w.End.Valid() || end.Before(start) {
		return nil
	}
	var days []DateKey
	for t := start; !t.After(end); t = t.AddDate(0, 0, 1) {
		days = append(days, DateKeyOf(t))
	}
	return days
}

// TotalDays は期間の日数を返す。
func (w VacationWindow) TotalDays() int {
	return len(w.Days())
}
