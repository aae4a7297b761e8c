package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	"github.com/hitoshi/catsit/internal/clipboard"
	"github.com/hitoshi/catsit/internal/config"
	"github.com/hitoshi/catsit/internal/handler"
	"github.com/hitoshi/catsit/internal/location"
	"github.com/hitoshi/catsit/internal/logger"
	"github.com/hitoshi/catsit/internal/metrics"
	"github.com/hitoshi/catsit/internal/middleware"
	"github.com/hitoshi/catsit/internal/model"
	"github.com/hitoshi/catsit/internal/security"
	"github.com/hitoshi/catsit/internal/session"
	"github.com/hitoshi/catsit/internal/storage"
	"github.com/hitoshi/catsit/internal/summary"
)

// App は1回分のコマンド実行に使う入出力をまとめた構造体。
type App struct {
	// Stdout はCLIの表示先。
	Stdout io.Writer
	// Stderr はJSON構造化ログの出力先。
	Stderr io.Writer
	// Clipboard はshareコマンドのコピー先。
	Clipboard clipboard.Writer
}

// Init はアプリケーションの初期化を行う。
// .envと環境変数からConfigを読み込み、LOG_LEVELに従ってJSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, *slog.Logger, error) {
	// 1. .envの読み込み（既存の環境変数は上書きしない）
	if err := config.Init(); err != nil {
		return nil, nil, fmt.Errorf("failed to load .env: %w", err)
	}

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. ログの初期化
	level, err := logger.ParseLevel(cfg.LogLevel)
	log := logger.SetupDefault(w, level)
	if err != nil {
		log.Warn("LOG_LEVELが不正なためinfoを使用します", slog.String("log_level", cfg.LogLevel))
	}

	return cfg, log, nil
}

// Run はアプリケーションのメインエントリーポイント。
// 標準出力とOSのクリップボードを使ってコマンドを実行する。
// argsにはos.Args[1:]を渡す。
func Run(stdout, stderr io.Writer, args []string) error {
	a := &App{Stdout: stdout, Stderr: stderr, Clipboard: clipboard.System{}}
	return a.Run(args)
}

// Run はコマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
func (a *App) Run(args []string) error {
	cmd := ParseCommand(args)
	rest := commandArgs(cmd, args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, log, err := Init(a.Stderr)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	log.Debug("starting application",
		slog.String("command", string(cmd)),
		slog.String("base_url", cfg.BaseURL),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cmd == CommandServe {
		return a.runServe(ctx, cfg, log)
	}
	return a.runOneShot(ctx, cmd, rest, cfg, log)
}

// oneShotFlags はserve以外のコマンドが受け付けるフラグ。
type oneShotFlags struct {
	link  string
	as    string
	dates []string
}

func parseOneShotFlags(cmd Command, args []string, output io.Writer) (oneShotFlags, error) {
	var f oneShotFlags
	fs := flag.NewFlagSet(string(cmd), flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&f.link, "link", "", "shared link to open")
	fs.StringVar(&f.as, "as", "", "participant id to act as (toggle)")
	if err := fs.Parse(args); err != nil {
		return oneShotFlags{}, err
	}
	f.dates = fs.Args()
	return f, nil
}

// components はセッションとその周辺の依存関係。
type components struct {
	session  *session.Session
	registry *prometheus.Registry
}

// buildComponents はカレンダー、ローカルストア、要約クライアントを組み立ててSessionを生成する。
func buildComponents(cfg *config.Config, log *slog.Logger) (*components, error) {
	// 1. カレンダーファイル
	cal, created, err := config.LoadCalendar(cfg.CalendarFile)
	if err != nil {
		return nil, err
	}
	if created {
		log.Info("カレンダーファイルを作成しました", slog.String("path", cfg.CalendarFile))
	}

	// 2. ローカルストア（オリジンごとのファイル）
	origin, err := location.Origin(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	store, err := storage.NewFileStore(cfg.DataDir, origin)
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}

	// 3. メトリクス
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. 要約サービス
	guard := security.NewEndpointGuard()
	if err := guard.ValidateEndpoint(cfg.SummaryEndpoint); err != nil {
		return nil, fmt.Errorf("invalid SUMMARY_ENDPOINT: %w", err)
	}
	if cfg.SummaryAPIKey == "" {
		log.Info("GEMINI_API_KEYが未設定のため、要約は常にフォールバック表示になります")
	}
	generator := summary.NewGeminiClient(guard.NewSafeClient(cfg.SummaryTimeout), log, cfg.SummaryEndpoint, cfg.SummaryAPIKey)

	// 5. セッション
	sess, err := session.New(session.Options{
		Calendar:  cal,
		Store:     store,
		BaseURL:   cfg.BaseURL,
		Generator: generator,
		Sanitizer: security.NewTextSanitizer(),
		SummaryConfig: summary.Config{
			Model:         cfg.SummaryModel,
			Timeout:       cfg.SummaryTimeout,
			RatePerMinute: cfg.SummaryRatePerMin,
		},
		Logger:  log,
		Metrics: collector,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}

	return &components{session: sess, registry: registry}, nil
}

// startSession はセッションのイベントループを起動し、終了を待つ関数を返す。
func startSession(ctx context.Context, sess *session.Session, log *slog.Logger) (context.CancelFunc, func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := sess.Run(ctx); err != nil {
			log.Error("session loop failed", slog.String("error", err.Error()))
		}
	}()
	return cancel, func() { <-done }
}

// runServe はローカルHTTPサーバーモードで起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func (a *App) runServe(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	c, err := buildComponents(cfg, log)
	if err != nil {
		return err
	}
	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	cancel, wait := startSession(ctx, c.session, log)
	defer wait()
	defer cancel()

	// レート制限の設定はreq/min単位なのでreq/secに変換する
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	if cfg.RateLimitGeneral > 0 {
		rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60)
		rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	}
	if cfg.RateLimitWrite > 0 {
		rateLimiterCfg.WriteRate = rate.Limit(float64(cfg.RateLimitWrite) / 60)
		rateLimiterCfg.WriteBurst = cfg.RateLimitWrite
	}
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg, log)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            log,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Session:           c.session,
		Gatherer:          c.registry,
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("API server starting",
			slog.String("addr", server.Addr),
			slog.String("base_url", cfg.BaseURL),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server listen failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	log.Info("shutting down API server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("API server stopped gracefully")
	return nil
}

// runOneShot はserve以外のコマンドを1回だけ実行する。
// 予約の変更はローカルストアに保存され、次回の実行やserveモードに引き継がれる。
func (a *App) runOneShot(ctx context.Context, cmd Command, args []string, cfg *config.Config, log *slog.Logger) error {
	flags, err := parseOneShotFlags(cmd, args, a.Stderr)
	if err != nil {
		return err
	}

	c, err := buildComponents(cfg, log)
	if err != nil {
		return err
	}
	cancel, wait := startSession(ctx, c.session, log)
	defer wait()
	defer cancel()

	if flags.link != "" {
		if _, err := c.session.Open(ctx, flags.link); err != nil {
			return err
		}
	}

	switch cmd {
	case CommandShow:
		return a.show(ctx, c.session)
	case CommandToggle:
		return a.toggle(ctx, c.session, flags)
	case CommandShare:
		return a.share(ctx, c.session, log)
	case CommandSummary:
		return a.summary(ctx, c.session, cfg.SummaryTimeout)
	case CommandExport:
		return a.export(ctx, c.session)
	default:
		return fmt.Errorf("unsupported command: %s", cmd)
	}
}

func (a *App) show(ctx context.Context, sess *session.Session) error {
	v, err := sess.State(ctx)
	if err != nil {
		return err
	}
	renderView(a.Stdout, v)
	return nil
}

// toggle は-asで指定した参加者として日付を順番にトグルする。
// 参加者が未指定の場合は予約を変更せずにエラーを返す。
func (a *App) toggle(ctx context.Context, sess *session.Session, flags oneShotFlags) error {
	if flags.as != "" {
		if _, err := sess.SelectParticipant(ctx, flags.as); err != nil {
			return err
		}
	}
	if len(flags.dates) == 0 {
		return errors.New("no dates given: usage: catsit toggle -as <id> YYYY-MM-DD...")
	}
	before, err := sess.State(ctx)
	if err != nil {
		return err
	}

	for _, raw := range flags.dates {
		date, err := model.ParseDateKey(raw)
		if err != nil {
			return model.NewInvalidDateError(raw)
		}
		change, err := sess.ToggleDay(ctx, date)
		if err != nil {
			var apiErr *model.APIError
			if errors.As(err, &apiErr) && apiErr.Action != "" {
				fmt.Fprintf(a.Stdout, "%s %s\n", apiErr.Message, apiErr.Action)
			}
			return err
		}
		renderChange(a.Stdout, before.Roster, change)
	}

	v, err := sess.State(ctx)
	if err != nil {
		return err
	}
	renderProgress(a.Stdout, v.Progress)
	fmt.Fprintln(a.Stdout, v.ShareURL)
	return nil
}

// share は共有リンクをクリップボードにコピーし、リンクを表示する。
// クリップボードが使えない環境ではリンクの表示のみ行う。
func (a *App) share(ctx context.Context, sess *session.Session, log *slog.Logger) error {
	href, err := sess.ShareURL(ctx)
	if err != nil {
		return err
	}
	if a.Clipboard != nil {
		if err := a.Clipboard.WriteText(href); err != nil {
			log.Warn("クリップボードへのコピーに失敗しました", slog.String("error", err.Error()))
		} else {
			fmt.Fprintln(a.Stdout, "Link Copied!")
		}
	}
	fmt.Fprintln(a.Stdout, href)
	return nil
}

// summary は要約パネルを表示状態にし、要約の完了を待って結果を表示する。
func (a *App) summary(ctx context.Context, sess *session.Session, timeout time.Duration) error {
	if _, err := sess.SetSummaryVisible(ctx, true); err != nil {
		return err
	}

	// 要約サービスのタイムアウトに加えて待ち時間の猶予を持たせる
	waitCtx, cancel := context.WithTimeout(ctx, timeout+5*time.Second)
	defer cancel()

	v, err := sess.AwaitSummary(waitCtx)
	if err != nil {
		return fmt.Errorf("failed to wait for summary: %w", err)
	}
	renderSummary(a.Stdout, v)
	return nil
}

func (a *App) export(ctx context.Context, sess *session.Session) error {
	ics, err := sess.ExportICS(ctx)
	if err != nil {
		return err
	}
	_, err = io.WriteString(a.Stdout, ics)
	return err
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}
