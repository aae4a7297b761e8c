package security

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// MaxSummaryRunes は要約テキストとして保持する最大文字数。
const MaxSummaryRunes = 2000

// TextSanitizer は外部サービスが生成したテキストを表示用のプレーンテキストに整える。
type TextSanitizer interface {
	Sanitize(text string) string
}

type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はすべてのHTMLタグを除去するTextSanitizerを生成する。
func NewTextSanitizer() TextSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize はタグを除去し、エンティティを元の文字に戻し、前後の空白を取り除く。
// MaxSummaryRunesを超える部分は切り捨てる。
func (s *textSanitizer) Sanitize(text string) string {
	out := html.UnescapeString(s.policy.Sanitize(text))
	out = strings.TrimSpace(out)
	if utf8.RuneCountInString(out) > MaxSummaryRunes {
		out = string([]rune(out)[:MaxSummaryRunes]) + "…"
	}
	return out
}
