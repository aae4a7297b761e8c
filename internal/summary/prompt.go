package summary

import (
	"fmt"
	"strings"

	"github.com/hitoshi/catsit/internal/model"
	"github.com/hitoshi/catsit/internal/reservation"
)

// BuildPrompt はスナップショットから要約生成用のプロンプトを組み立てる。
// 予約済みの日は日付の昇順に "YYYY-MM-DD: 名前" の形式で列挙する。
func BuildPrompt(snap reservation.Snapshot, cal model.Calendar) string {
	total := cal.TotalDays()
	booked := 0
	var schedule []string
	for _, date := range snap.Reservations.SortedKeys() {
		id := snap.Reservations[date]
		name := id
		if p, ok := cal.Participant(id); ok {
			name = p.Name
		}
		if cal.Window.Contains(date) {
			booked++
		}
		schedule = append(schedule, fmt.Sprintf("%s: %s", date, name))
	}
	unclaimed := total - booked
	if unclaimed < 0 {
		unclaimed = 0
	}

	var b strings.Builder
	fmt.Fprintf(&b, "I have %s and a summer vacation from %s to %s.\n",
		catCount(len(cal.Cats)),
		cal.Window.Start.Time().Format("January 2"),
		cal.Window.End.Time().Format("Jan 2, 2006"),
	)
	b.WriteString("My friends have signed up for different days to feed the cats.\n")
	b.WriteString("Here is the current schedule:\n")
	if len(schedule) == 0 {
		b.WriteString("(nobody has signed up yet)\n")
	} else {
		b.WriteString(strings.Join(schedule, "\n"))
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Days still unclaimed: %d of %d.\n", unclaimed, total)
	b.WriteString("\n")
	b.WriteString("Please write a short, warm, and funny message to my friends.\n")
	fmt.Fprintf(&b, "Mention if any days are still missing (total should be %d days).\n", total)
	if len(cal.Cats) > 0 {
		fmt.Fprintf(&b, "Keep it brief and cat-themed. Mention the cats (%s).\n", joinNames(cal.Cats))
	} else {
		b.WriteString("Keep it brief and cat-themed.\n")
	}
	b.WriteString("Output just the text, no conversational filler.")
	return b.String()
}

func catCount(n int) string {
	words := []string{"cats", "a cat", "two cats", "three cats", "four cats", "five cats"}
	if n >= 0 && n < len(words) {
		return words[n]
	}
	return fmt.Sprintf("%d cats", n)
}

// joinNames は "A"、"A and B"、"A, B and C" の形式で名前をつなげる。
func joinNames(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	}
	return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
}
