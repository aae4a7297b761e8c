// Package reservation は予約マップと選択中の参加者を保持し、唯一の状態遷移であるトグル操作を提供する。
package reservation

import (
	"sync"

	"github.com/hitoshi/catsit/internal/model"
)

// Action はトグル操作で予約がどう変わったかを表す。
type Action string

const (
	// ActionClaimed は空きの日を予約したことを示す。
	ActionClaimed Action = "claimed"
	// ActionReleased は自分の予約を取り消したことを示す。
	ActionReleased Action = "released"
	// ActionReassigned は他の参加者の予約を自分に付け替えたことを示す。
	ActionReassigned Action = "reassigned"
)

// Change は1回のトグル操作で変化した1日分の内容。
type Change struct {
	Date     model.DateKey
	Action   Action
	Holder   string // 操作後の予約者。取り消しの場合は空
	Previous string // 操作前の予約者。空きだった場合は空
	Version  uint64
}

// Snapshot はある時点の予約マップの不変コピー。
// Versionはトグルが成功するたびに増加する。
type Snapshot struct {
	Version      uint64
	Reservations model.ReservationMap
}

// Progress は予約の進捗を表す。
type Progress struct {
	Booked   int  `json:"booked"`
	Total    int  `json:"total"`
	Complete bool `json:"complete"`
	Percent  int  `json:"percent"`
}

// Listener はトグル成功後に新しいスナップショットを受け取る。
type Listener func(Snapshot)

type subscription struct {
	id int
	fn Listener
}

// Store は予約マップと選択中の参加者を保持する。
// 予約マップの変更はToggleDayのみで行われる。
type Store struct {
	mu           sync.Mutex
	cal          model.Calendar
	reservations model.ReservationMap
	active       string
	version      uint64
	listeners    []subscription
	nextID       int
}

// NewStore は初期マップのコピーを持つStoreを生成する。選択中の参加者はなし。
func NewStore(cal model.Calendar, initial model.ReservationMap) *Store {
	return &Store{
		cal:          cal,
		reservations: initial.Clone(),
	}
}

// Calendar は名簿と休暇期間を返す。
func (s *Store) Calendar() model.Calendar {
	return s.cal
}

// SelectParticipant は選択中の参加者を設定する。名簿にないIDはエラー。
func (s *Store) SelectParticipant(id string) error {
	if _, ok := s.cal.Participant(id); !ok {
		return model.NewUnknownParticipantError(id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = id
	return nil
}

// ClearParticipant は参加者の選択を解除する。
func (s *Store) ClearParticipant() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = ""
}

// Active は選択中の参加者IDを返す。未選択の場合は空文字列。
func (s *Store) Active() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// ToggleDay は選択中の参加者として日付をトグルする。
//
//   - 参加者未選択: NO_ACTIVE_PARTICIPANT エラー。マップは変化しない。
//   - 期間外または不正な日付: OUT_OF_WINDOW エラー。マップは変化しない。
//   - 自分の予約: 取り消す。
//   - 他の参加者の予約: 自分に付け替える（取り消しではない）。
//   - 空き: 自分が予約する。
func (s *Store) ToggleDay(date model.DateKey) (Change, error) {
	s.mu.Lock()

	if s.active == "" {
		s.mu.Unlock()
		return Change{}, model.NewNoActiveParticipantError()
	}
	if !s.cal.Window.Contains(date) {
		s.mu.Unlock()
		return Change{}, model.NewOutOfWindowError(date, s.cal.Window)
	}

	next := s.reservations.Clone()
	change := Change{Date: date, Previous: next[date]}
	switch holder, claimed := next[date]; {
	case claimed && holder == s.active:
		delete(next, date)
		change.Action = ActionReleased
	case claimed:
		next[date] = s.active
		change.Action = ActionReassigned
		change.Holder = s.active
	default:
		next[date] = s.active
		change.Action = ActionClaimed
		change.Holder = s.active
	}

	s.reservations = next
	s.version++
	change.Version = s.version
	snap := s.snapshotLocked()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l.fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
	return change, nil
}

// Snapshot は現在の予約マップのコピーを返す。
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		Version:      s.version,
		Reservations: s.reservations.Clone(),
	}
}

// BookedCount は予約済みの日数を返す。
func (s *Store) BookedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reservations)
}

// TotalDays は休暇期間の日数を返す。
func (s *Store) TotalDays() int {
	return s.cal.TotalDays()
}

// IsComplete は全日程が予約済みかどうかを返す。予約数が期間の日数と一致する場合のみtrue。
func (s *Store) IsComplete() bool {
	return s.BookedCount() == s.TotalDays()
}

// Progress は予約の進捗を返す。
func (s *Store) Progress() Progress {
	return NewProgress(s.BookedCount(), s.TotalDays())
}

// NewProgress は予約数と期間の日数から進捗を計算する。
func NewProgress(booked, total int) Progress {
	p := Progress{
		Booked:   booked,
		Total:    total,
		Complete: booked == total,
	}
	if total > 0 {
		p.Percent = booked * 100 / total
		if p.Percent > 100 {
			p.Percent = 100
		}
	}
	return p
}

// Subscribe はトグル成功時に呼ばれるリスナーを登録する。
// リスナーは登録順に、ロックを保持しない状態で同期的に呼ばれる。
// 戻り値の関数で登録を解除する。
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, subscription{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, l := range s.listeners {
				if l.id == id {
					s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
					return
				}
			}
		})
	}
}
