// Package summary は予約状況の要約を外部のテキスト生成サービスに依頼する。
// 結果は idle / loading / success / error の4状態で公開し、予約マップは変更しない。
package summary

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/hitoshi/catsit/internal/metrics"
	"github.com/hitoshi/catsit/internal/model"
	"github.com/hitoshi/catsit/internal/reservation"
	"github.com/hitoshi/catsit/internal/security"
)

// State は要約リクエストの状態。
type State string

const (
	// StateIdle はリクエストが発行されていない状態。
	StateIdle State = "idle"
	// StateLoading は応答待ちの状態。
	StateLoading State = "loading"
	// StateSuccess は要約テキストを受け取った状態。
	StateSuccess State = "success"
	// StateError は失敗し、既定の文言に置き換えた状態。
	StateError State = "error"
)

const (
	// EmptyText は生成結果が空だった場合に表示する文言。
	EmptyText = "No insights found yet! 🐾"
	// FallbackText は生成に失敗した場合に表示する文言。
	FallbackText = "The cats are speechless (AI error)! But they still need feeding. 🐱"
)

// Result は要約リクエストの現在の結果。
// Versionはリクエストの元になったスナップショットのバージョン。
type Result struct {
	State     State  `json:"state"`
	Text      string `json:"text,omitempty"`
	Version   uint64 `json:"version"`
	RequestID string `json:"request_id,omitempty"`
}

// Config は要約アダプタの設定パラメータ。
type Config struct {
	// Model は生成サービスに渡すモデル識別子。
	Model string
	// Timeout は1リクエストの最大待ち時間。0以下の場合は無制限。
	Timeout time.Duration
	// RatePerMinute は1分あたりの最大リクエスト数。0以下の場合は無制限。
	RatePerMinute int
}

// Dispatcher は完了処理を呼び出し元のイベントループで実行させる。
// 未設定の場合は完了したgoroutine上で直接実行する。
type Dispatcher func(fn func())

// Adapter は要約リクエストを発行し、最新のリクエストの結果だけを保持する。
type Adapter struct {
	generator Generator
	sanitizer security.TextSanitizer
	cal       model.Calendar
	config    Config
	logger    *slog.Logger
	metrics   metrics.MetricsCollector
	limiter   *rate.Limiter

	mu       sync.Mutex
	dispatch Dispatcher
	current  string
	cancel   context.CancelFunc
	result   Result
	inflight sync.WaitGroup
}

// NewAdapter はAdapterの新しいインスタンスを生成する。
func NewAdapter(
	generator Generator,
	sanitizer security.TextSanitizer,
	cal model.Calendar,
	config Config,
	logger *slog.Logger,
	mc metrics.MetricsCollector,
) *Adapter {
	if mc == nil {
		mc = metrics.NopCollector{}
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if config.RatePerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(config.RatePerMinute)/60), config.RatePerMinute)
	}
	return &Adapter{
		generator: generator,
		sanitizer: sanitizer,
		cal:       cal,
		config:    config,
		logger:    logger,
		metrics:   mc,
		limiter:   limiter,
		result:    Result{State: StateIdle},
	}
}

// SetDispatcher は完了処理を実行するディスパッチャーを設定する。
func (a *Adapter) SetDispatcher(d Dispatcher) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.dispatch = d
}

// Request はスナップショットから新しい要約リクエストを発行し、そのIDを返す。
// 処理中の前回リクエストはキャンセルされ、その結果は後から届いても破棄される。
func (a *Adapter) Request(ctx context.Context, snap reservation.Snapshot) string {
	prompt := BuildPrompt(snap, a.cal)
	id := uuid.NewString()

	var reqCtx context.Context
	var cancel context.CancelFunc
	if a.config.Timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, a.config.Timeout)
	} else {
		reqCtx, cancel = context.WithCancel(ctx)
	}

	a.mu.Lock()
	if a.cancel != nil {
		a.cancel()
	}
	a.current = id
	a.cancel = cancel
	a.result = Result{State: StateLoading, Version: snap.Version, RequestID: id}
	dispatch := a.dispatch
	a.inflight.Add(1)
	a.mu.Unlock()

	a.logger.Debug("要約リクエストを発行しました",
		slog.String("request_id", id),
		slog.Uint64("version", snap.Version),
		slog.Int("reservations", len(snap.Reservations)),
	)

	go func() {
		defer a.inflight.Done()
		defer cancel()

		start := time.Now()
		text, err := a.generate(reqCtx, prompt)
		a.metrics.RecordSummaryLatency(time.Since(start))

		complete := func() { a.complete(id, snap.Version, text, err) }
		if dispatch != nil {
			dispatch(complete)
			return
		}
		complete()
	}()

	return id
}

func (a *Adapter) generate(ctx context.Context, prompt string) (string, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return a.generator.Generate(ctx, a.config.Model, prompt)
}

// complete は応答を結果に反映する。現在のリクエストでなければ破棄する。
func (a *Adapter) complete(id string, version uint64, text string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if id != a.current {
		a.metrics.RecordSummaryRequest(metrics.SummaryStale)
		a.logger.Debug("古い要約リクエストの結果を破棄しました",
			slog.String("request_id", id),
			slog.Uint64("version", version),
		)
		return
	}
	a.cancel = nil

	if err != nil {
		a.metrics.RecordSummaryRequest(metrics.SummaryError)
		a.logger.Warn("要約の生成に失敗しました",
			slog.String("request_id", id),
			slog.String("error", err.Error()),
		)
		a.result = Result{State: StateError, Text: FallbackText, Version: version, RequestID: id}
		return
	}

	a.metrics.RecordSummaryRequest(metrics.SummarySuccess)
	if a.sanitizer != nil {
		text = a.sanitizer.Sanitize(text)
	}
	if text == "" {
		text = EmptyText
	}
	a.result = Result{State: StateSuccess, Text: text, Version: version, RequestID: id}
}

// Reset は処理中のリクエストをキャンセルし、状態をidleに戻す。
func (a *Adapter) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.current = ""
	a.result = Result{State: StateIdle}
}

// Result は現在の結果を返す。
func (a *Adapter) Result() Result {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.result
}

// Wait は発行済みのすべてのリクエストの完了処理がディスパッチされるまで待つ。
func (a *Adapter) Wait() {
	a.inflight.Wait()
}
