package summary

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

const (
	// DefaultEndpoint はGemini APIのエンドポイント。
	DefaultEndpoint = "https://generativelanguage.googleapis.com/v1beta"
	// DefaultModel は要約生成に使うモデル。
	DefaultModel = "gemini-3-flash-preview"
	// maxResponseSize はレスポンスボディの最大サイズ。
	maxResponseSize = 1 << 20
)

// ErrMissingAPIKey はAPIキーが設定されていない場合のエラー。
var ErrMissingAPIKey = errors.New("summary api key is not configured")

// Generator はプロンプトからテキストを生成する外部サービス。
// テスト時にモックに差し替え可能。
type Generator interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
}

// GeminiClient はGemini APIのgenerateContentを呼び出すクライアント。
type GeminiClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	endpoint   string
	apiKey     string
}

// NewGeminiClient はGeminiClientの新しいインスタンスを生成する。
// endpointが空の場合はDefaultEndpointを使う。
func NewGeminiClient(httpClient *http.Client, logger *slog.Logger, endpoint, apiKey string) *GeminiClient {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &GeminiClient{
		httpClient: httpClient,
		logger:     logger,
		endpoint:   strings.TrimRight(endpoint, "/"),
		apiKey:     apiKey,
	}
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
}

// Generate はプロンプトを送信し、最初の候補のテキストを返す。
// 候補がない場合は空文字列を返す（呼び出し元が既定文言に置き換える）。
func (c *GeminiClient) Generate(ctx context.Context, model, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", ErrMissingAPIKey
	}
	if model == "" {
		model = DefaultModel
	}

	reqURL := fmt.Sprintf("%s/models/%s:generateContent", c.endpoint, url.PathEscape(model))
	body, err := json.Marshal(generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("リクエストJSONの生成に失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)
	req.Header.Set("User-Agent", "Catsit/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("要約APIの呼び出しに失敗しました",
			slog.String("error", err.Error()),
			slog.String("model", model),
		)
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("要約APIがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
			slog.String("model", model),
		)
		return "", fmt.Errorf("要約APIがステータス %d を返しました", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		c.logger.Error("レスポンスボディの読み取りに失敗しました",
			slog.String("error", err.Error()),
		)
		return "", fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var result generateResponse
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Error("要約APIのレスポンスのパースに失敗しました",
			slog.String("error", err.Error()),
		)
		return "", fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	if len(result.Candidates) == 0 {
		return "", nil
	}
	var b strings.Builder
	for _, p := range result.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return b.String(), nil
}
