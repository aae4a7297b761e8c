package calendar

import (
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"github.com/hitoshi/catsit/internal/model"
)

// icsNamespace はイベントUIDを決定的に生成するための名前空間。
var icsNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://catsit.local/reservations"))

// ExportICS は予約済みの日を終日イベントとしてiCalendar形式で出力する。
// UIDは日付と予約者から決まるため、再出力しても同じ予定として扱われる。
func ExportICS(cal model.Calendar, m model.ReservationMap, now time.Time) string {
	out := ics.NewCalendar()
	out.SetMethod(ics.MethodPublish)
	out.SetProductId("-//catsit//Cat Sitting Calendar//EN")
	out.SetXWRCalName("Cat sitting")

	for _, date := range m.SortedKeys() {
		if !cal.Window.Contains(date) {
			continue
		}
		p, ok := cal.Participant(m[date])
		if !ok {
			continue
		}

		uid := uuid.NewSHA1(icsNamespace, []byte(string(date)+"/"+p.ID))
		start := date.Time()

		event := out.AddEvent(uid.String() + "@catsit")
		event.SetDtStampTime(now.UTC())
		event.SetAllDayStartAt(start)
		event.SetAllDayEndAt(start.AddDate(0, 0, 1))
		event.SetSummary(fmt.Sprintf("Cat sitting: %s", p.Name))
		event.SetDescription(fmt.Sprintf("%s %s feeds the cats on %s.", p.Emoji, p.Name, date))
	}

	return out.Serialize()
}
