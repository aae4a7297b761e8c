package codec

import (
	"log/slog"

	"github.com/hitoshi/catsit/internal/metrics"
	"github.com/hitoshi/catsit/internal/model"
	"github.com/hitoshi/catsit/internal/storage"
)

// StorageKey はローカルストアに予約マップを保存するキー。
const StorageKey = "cat_reservations"

// Source は予約マップの復元元を表す。
type Source string

const (
	// SourceURL は共有リンクのフラグメントから復元したことを示す。
	SourceURL Source = "url"
	// SourceLocal はローカルストアから復元したことを示す。
	SourceLocal Source = "local"
	// SourceEmpty はどちらからも復元できず空で開始したことを示す。
	SourceEmpty Source = "empty"
)

// FragmentReader は現在URLのフラグメントを読み取る。
type FragmentReader interface {
	Fragment() string
}

// FragmentWriter は現在URLのフラグメントを履歴を増やさずに置き換える。
type FragmentWriter interface {
	ReplaceFragment(fragment string)
}

// Sanitize は信頼できない入力から、休暇期間外の日付や名簿にない参加者IDを除外する。
// 除外した件数を併せて返す。
func Sanitize(cal model.Calendar, m model.ReservationMap) (model.ReservationMap, int) {
	out := make(model.ReservationMap, len(m))
	dropped := 0
	for date, id := range m {
		if !cal.Window.Contains(date) {
			dropped++
			continue
		}
		if _, ok := cal.Participant(id); !ok {
			dropped++
			continue
		}
		out[date] = id
	}
	return out, dropped
}

// Loader はセッション開始時に予約マップを復元する。
// 優先順位は URLフラグメント → ローカルストア → 空。
type Loader struct {
	cal      model.Calendar
	fragment FragmentReader
	store    storage.KVStore
	logger   *slog.Logger
	metrics  metrics.MetricsCollector
}

// NewLoader はLoaderの新しいインスタンスを生成する。
func NewLoader(cal model.Calendar, fragment FragmentReader, store storage.KVStore, logger *slog.Logger, mc metrics.MetricsCollector) *Loader {
	if mc == nil {
		mc = metrics.NopCollector{}
	}
	return &Loader{
		cal:      cal,
		fragment: fragment,
		store:    store,
		logger:   logger,
		metrics:  mc,
	}
}

// Load は予約マップを復元する。失敗は呼び出し元へ返さず、ログに記録して次の候補へ進む。
func (l *Loader) Load() (model.ReservationMap, Source) {
	if m, ok := l.loadFromFragment(); ok {
		return m, SourceURL
	}
	if m, ok := l.loadFromStore(); ok {
		return m, SourceLocal
	}
	return model.ReservationMap{}, SourceEmpty
}

func (l *Loader) loadFromFragment() (model.ReservationMap, bool) {
	if l.fragment == nil {
		return nil, false
	}
	token := l.fragment.Fragment()
	if token == "" {
		return nil, false
	}

	m, err := DecodeToken(token)
	if err != nil {
		l.logger.Warn("共有リンクのトークンを復元できませんでした",
			slog.String("error", err.Error()),
			slog.Int("token_length", len(token)),
		)
		l.metrics.RecordDecodeFailure(string(SourceURL))
		return nil, false
	}
	return l.sanitize(m, SourceURL), true
}

func (l *Loader) loadFromStore() (model.ReservationMap, bool) {
	if l.store == nil {
		return nil, false
	}
	text, ok, err := l.store.Get(StorageKey)
	if err != nil {
		l.logger.Warn("ローカルストアの読み込みに失敗しました",
			slog.String("error", err.Error()),
		)
		l.metrics.RecordDecodeFailure(string(SourceLocal))
		return nil, false
	}
	if !ok {
		return nil, false
	}

	m, err := Unmarshal(text)
	if err != nil {
		l.logger.Warn("ローカルストアの予約データを復元できませんでした",
			slog.String("error", err.Error()),
		)
		l.metrics.RecordDecodeFailure(string(SourceLocal))
		return nil, false
	}
	return l.sanitize(m, SourceLocal), true
}

func (l *Loader) sanitize(m model.ReservationMap, src Source) model.ReservationMap {
	clean, dropped := Sanitize(l.cal, m)
	if dropped > 0 {
		l.logger.Warn("無効な予約エントリを除外しました",
			slog.String("source", string(src)),
			slog.Int("dropped", dropped),
		)
	}
	return clean
}

// Persister は予約マップをローカルストアとURLフラグメントへ書き込む。
// 書き込みは常に全体上書きで、失敗しても呼び出し元には返さない。
type Persister struct {
	fragment FragmentWriter
	store    storage.KVStore
	logger   *slog.Logger
	metrics  metrics.MetricsCollector
}

// NewPersister はPersisterの新しいインスタンスを生成する。
func NewPersister(fragment FragmentWriter, store storage.KVStore, logger *slog.Logger, mc metrics.MetricsCollector) *Persister {
	if mc == nil {
		mc = metrics.NopCollector{}
	}
	return &Persister{
		fragment: fragment,
		store:    store,
		logger:   logger,
		metrics:  mc,
	}
}

// Persist は予約マップをローカルストアとURLフラグメントに書き込む。
func (p *Persister) Persist(m model.ReservationMap) {
	text, err := Marshal(m)
	if err != nil {
		p.logger.Error("予約データのシリアライズに失敗しました",
			slog.String("error", err.Error()),
		)
		p.metrics.RecordPersistFailure(string(SourceLocal))
		p.metrics.RecordPersistFailure(string(SourceURL))
		return
	}

	if p.store != nil {
		if err := p.store.Set(StorageKey, text); err != nil {
			p.logger.Warn("ローカルストアへの保存に失敗しました",
				slog.String("error", err.Error()),
				slog.Int("reservations", len(m)),
			)
			p.metrics.RecordPersistFailure(string(SourceLocal))
		}
	}

	if p.fragment != nil {
		token, err := EncodeToken(m)
		if err != nil {
			p.logger.Warn("共有リンクのトークン生成に失敗しました",
				slog.String("error", err.Error()),
			)
			p.metrics.RecordPersistFailure(string(SourceURL))
			return
		}
		p.fragment.ReplaceFragment(token)
	}
}
