// Package session は1回分の閲覧セッションを表す。
// 予約ストア、永続化、要約アダプタを所有し、すべての操作を単一のgoroutine上で順番に実行する。
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/catsit/internal/calendar"
	"github.com/hitoshi/catsit/internal/codec"
	"github.com/hitoshi/catsit/internal/location"
	"github.com/hitoshi/catsit/internal/metrics"
	"github.com/hitoshi/catsit/internal/model"
	"github.com/hitoshi/catsit/internal/reservation"
	"github.com/hitoshi/catsit/internal/security"
	"github.com/hitoshi/catsit/internal/storage"
	"github.com/hitoshi/catsit/internal/summary"
)

var (
	// ErrClosed はイベントループが終了した後に操作した場合のエラー。
	ErrClosed = errors.New("session is closed")
	// ErrAlreadyRunning はRunを二重に呼び出した場合のエラー。
	ErrAlreadyRunning = errors.New("session is already running")
)

// Options はSessionの生成パラメータ。
type Options struct {
	Calendar      model.Calendar
	Store         storage.KVStore
	BaseURL       string
	Generator     summary.Generator
	Sanitizer     security.TextSanitizer
	SummaryConfig summary.Config
	Logger        *slog.Logger
	Metrics       metrics.MetricsCollector
	// Now はICS出力のタイムスタンプに使う。nilの場合はtime.Now。
	Now func() time.Time
}

// View は画面表示に必要な状態のコピー。
type View struct {
	SessionID    string               `json:"session_id"`
	Source       codec.Source         `json:"source"`
	Roster       model.Roster         `json:"roster"`
	Active       *model.Participant   `json:"active"`
	Window       model.VacationWindow `json:"window"`
	Cats         []string             `json:"cats,omitempty"`
	Progress     reservation.Progress `json:"progress"`
	Reservations model.ReservationMap `json:"reservations"`
	Version      uint64               `json:"version"`
	ShareURL     string               `json:"share_url"`
	Months       []calendar.MonthView `json:"months"`
}

// SummaryView は要約パネルの表示状態。
type SummaryView struct {
	Visible bool `json:"visible"`
	summary.Result
}

// Session は予約ストアとその周辺を束ねるイベントループ。
type Session struct {
	cal     model.Calendar
	kv      storage.KVStore
	baseURL string
	logger  *slog.Logger
	metrics metrics.MetricsCollector
	now     func() time.Time
	adapter *summary.Adapter

	ops     chan func()
	stopped chan struct{}
	running atomic.Bool

	// 以下はイベントループのgoroutineからのみ触る
	runCtx      context.Context
	id          string
	loc         *location.Location
	store       *reservation.Store
	source      codec.Source
	visible     bool
	unsubscribe []func()
}

// New はSessionを生成し、ベースURLとローカルストアから最初の予約マップを復元する。
// 操作を受け付けるにはRunを別のgoroutineで実行する必要がある。
func New(opts Options) (*Session, error) {
	if err := opts.Calendar.Validate(); err != nil {
		return nil, err
	}
	loc, err := location.New(opts.BaseURL)
	if err != nil {
		return nil, err
	}
	if opts.Store == nil {
		opts.Store = storage.NewMemoryStore()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NopCollector{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Session{
		cal:     opts.Calendar,
		kv:      opts.Store,
		baseURL: opts.BaseURL,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		now:     opts.Now,
		ops:     make(chan func()),
		stopped: make(chan struct{}),
		runCtx:  context.Background(),
	}
	s.adapter = summary.NewAdapter(opts.Generator, opts.Sanitizer, opts.Calendar, opts.SummaryConfig, opts.Logger, opts.Metrics)
	s.adapter.SetDispatcher(s.dispatch)
	s.open(loc)
	return s, nil
}

// Run はイベントループを実行する。ctxがキャンセルされると処理中の要約を破棄して終了する。
func (s *Session) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(s.stopped)
	s.runCtx = ctx

	for {
		select {
		case <-ctx.Done():
			s.adapter.Reset()
			s.logger.Debug("セッションを終了しました", slog.String("session_id", s.id))
			return nil
		case op := <-s.ops:
			op()
		}
	}
}

// dispatch は要約の完了処理をイベントループに投入する。
func (s *Session) dispatch(fn func()) {
	select {
	case s.ops <- fn:
	case <-s.stopped:
	}
}

// do はfnをイベントループ上で実行し、完了を待つ。
func (s *Session) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	op := func() {
		defer close(done)
		fn()
	}
	select {
	case s.ops <- op:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stopped:
		return ErrClosed
	}
	select {
	case <-done:
		return nil
	case <-s.stopped:
		return ErrClosed
	}
}

// open は新しいLocationから予約マップを復元し、ストアを差し替える。
func (s *Session) open(loc *location.Location) {
	for _, unsub := range s.unsubscribe {
		unsub()
	}
	s.adapter.Reset()

	loader := codec.NewLoader(s.cal, loc, s.kv, s.logger, s.metrics)
	m, src := loader.Load()

	persister := codec.NewPersister(loc, s.kv, s.logger, s.metrics)
	persister.Persist(m)

	store := reservation.NewStore(s.cal, m)
	s.unsubscribe = []func(){
		store.Subscribe(func(snap reservation.Snapshot) { persister.Persist(snap.Reservations) }),
		store.Subscribe(s.onChange),
	}

	s.id = uuid.NewString()
	s.loc = loc
	s.store = store
	s.source = src
	s.metrics.SetBookedDays(len(m))

	s.logger.Info("セッションを開始しました",
		slog.String("session_id", s.id),
		slog.String("source", string(src)),
		slog.Int("reservations", len(m)),
	)
	s.refreshSummary(store.Snapshot())
}

// onChange は予約マップの変更を受け取る。
func (s *Session) onChange(snap reservation.Snapshot) {
	s.metrics.SetBookedDays(len(snap.Reservations))
	s.refreshSummary(snap)
}

// refreshSummary は表示中なら要約を依頼し直す。予約が0件になった場合はidleに戻す。
func (s *Session) refreshSummary(snap reservation.Snapshot) {
	if !s.visible {
		return
	}
	if len(snap.Reservations) == 0 {
		s.adapter.Reset()
		return
	}
	s.adapter.Request(s.runCtx, snap)
}

// Open は共有リンクから新しいセッションを開始する。リンクが空の場合はローカルストアから復元する。
func (s *Session) Open(ctx context.Context, link string) (View, error) {
	loc, err := location.Open(s.baseURL, link)
	if err != nil {
		return View{}, err
	}
	var v View
	err = s.do(ctx, func() {
		s.open(loc)
		v = s.view()
	})
	return v, err
}

// SelectParticipant は参加者を選択する。選択中の参加者を再度選んだ場合は選択を解除する。
func (s *Session) SelectParticipant(ctx context.Context, id string) (string, error) {
	var active string
	var opErr error
	err := s.do(ctx, func() {
		if id != "" && id == s.store.Active() {
			s.store.ClearParticipant()
		} else if opErr = s.store.SelectParticipant(id); opErr != nil {
			return
		}
		active = s.store.Active()
	})
	if err != nil {
		return "", err
	}
	return active, opErr
}

// ClearParticipant は参加者の選択を解除する。
func (s *Session) ClearParticipant(ctx context.Context) error {
	return s.do(ctx, func() { s.store.ClearParticipant() })
}

// ToggleDay は選択中の参加者として日付をトグルし、変更を永続化する。
func (s *Session) ToggleDay(ctx context.Context, date model.DateKey) (reservation.Change, error) {
	var change reservation.Change
	var opErr error
	err := s.do(ctx, func() {
		change, opErr = s.store.ToggleDay(date)
	})
	if err != nil {
		return reservation.Change{}, err
	}
	if opErr != nil {
		s.metrics.RecordToggle(metrics.ToggleRejected)
		return reservation.Change{}, opErr
	}
	s.metrics.RecordToggle(string(change.Action))
	s.logger.Debug("予約を更新しました",
		slog.String("date", change.Date.String()),
		slog.String("action", string(change.Action)),
		slog.String("holder", change.Holder),
		slog.Uint64("version", change.Version),
	)
	return change, nil
}

// State は現在の表示状態を返す。
func (s *Session) State(ctx context.Context) (View, error) {
	var v View
	err := s.do(ctx, func() { v = s.view() })
	return v, err
}

func (s *Session) view() View {
	snap := s.store.Snapshot()
	v := View{
		SessionID:    s.id,
		Source:       s.source,
		Roster:       s.cal.Roster,
		Window:       s.cal.Window,
		Cats:         s.cal.Cats,
		Progress:     s.store.Progress(),
		Reservations: snap.Reservations,
		Version:      snap.Version,
		ShareURL:     s.loc.Href(),
		Months:       calendar.ProjectWindow(s.cal, snap.Reservations),
	}
	if p, ok := s.cal.Participant(s.store.Active()); ok {
		v.Active = &p
	}
	return v
}

// ShareURL は現在の予約を含む共有リンクを返す。
func (s *Session) ShareURL(ctx context.Context) (string, error) {
	var href string
	err := s.do(ctx, func() { href = s.loc.Href() })
	return href, err
}

// Summary は要約パネルの状態を返す。
func (s *Session) Summary(ctx context.Context) (SummaryView, error) {
	var v SummaryView
	err := s.do(ctx, func() {
		v = SummaryView{Visible: s.visible, Result: s.adapter.Result()}
	})
	return v, err
}

// SetSummaryVisible は要約パネルの表示を切り替える。
// 表示に切り替えた時点で予約が1件以上あれば要約を依頼する。
func (s *Session) SetSummaryVisible(ctx context.Context, visible bool) (SummaryView, error) {
	var v SummaryView
	err := s.do(ctx, func() {
		s.visible = visible
		s.refreshSummary(s.store.Snapshot())
		v = SummaryView{Visible: s.visible, Result: s.adapter.Result()}
	})
	return v, err
}

// AwaitSummary は発行済みの要約リクエストがすべて完了し、結果が反映されるまで待つ。
func (s *Session) AwaitSummary(ctx context.Context) (SummaryView, error) {
	waited := make(chan struct{})
	go func() {
		s.adapter.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-ctx.Done():
		return SummaryView{}, ctx.Err()
	}
	return s.Summary(ctx)
}

// ExportICS は予約済みの日をiCalendar形式で返す。
func (s *Session) ExportICS(ctx context.Context) (string, error) {
	var out string
	err := s.do(ctx, func() {
		out = calendar.ExportICS(s.cal, s.store.Snapshot().Reservations, s.now())
	})
	return out, err
}
