package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Server
	ServerPort string
	BaseURL    string

	// Storage
	DataDir      string
	CalendarFile string

	// Logging
	LogLevel string

	// Summary
	SummaryAPIKey     string
	SummaryEndpoint   string
	SummaryModel      string
	SummaryTimeout    time.Duration
	SummaryRatePerMin int

	// Rate Limit
	RateLimitGeneral int
	RateLimitWrite   int

	// CORS（カンマ区切りで複数指定可）
	CORSAllowedOrigin string
}

// Init は.envファイルを読み込み、未設定の環境変数だけを補完する。
// ファイルが存在しない場合はエラーにしない。
func Init(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// Load は環境変数からConfigを読み込む。
// 数値や期間の値が不正な場合はデフォルト値を使う。BASE_URLが不正な場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.BaseURL = getEnvString("BASE_URL", "http://localhost:8080/")
	cfg.DataDir = getEnvString("CATSIT_DATA_DIR", ".catsit")
	cfg.CalendarFile = getEnvString("CATSIT_CALENDAR_FILE", "catsit.yaml")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.SummaryAPIKey = getEnvString("GEMINI_API_KEY", os.Getenv("API_KEY"))
	cfg.SummaryEndpoint = getEnvString("SUMMARY_ENDPOINT", "https://generativelanguage.googleapis.com/v1beta")
	cfg.SummaryModel = getEnvString("SUMMARY_MODEL", "gemini-3-flash-preview")
	cfg.SummaryTimeout = getEnvDuration("SUMMARY_TIMEOUT", 30*time.Second)
	cfg.SummaryRatePerMin = getEnvInt("SUMMARY_RATE_PER_MIN", 10)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitWrite = getEnvInt("RATE_LIMIT_WRITE", 60)
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	if err := validateBaseURL(cfg.BaseURL); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateBaseURL はBASE_URLが絶対的なhttp(s) URLであることを確認する。
func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("BASE_URL is invalid: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("BASE_URL must be an absolute http(s) URL: %q", raw)
	}
	return nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
