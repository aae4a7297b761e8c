// Package location はセッションの現在URL（ベースURLとフラグメント）を保持する。
package location

import (
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/hitoshi/catsit/internal/model"
)

// Location はページURLとそのフラグメントを表す。
// フラグメントの置き換えは履歴エントリを増やさない。
type Location struct {
	mu       sync.RWMutex
	base     string
	fragment string
	history  int
}

// New はフラグメントなしのLocationを生成する。
func New(base string) (*Location, error) {
	b, err := normalizeBase(base)
	if err != nil {
		return nil, err
	}
	return &Location{base: b, history: 1}, nil
}

// Open は共有リンクからLocationを生成する。
// リンクの最初の '#' 以降をフラグメントとして読み取り、ベースURLは設定値を使う。
// リンクが空の場合はフラグメントなしで開く。
func Open(base, link string) (*Location, error) {
	loc, err := New(base)
	if err != nil {
		return nil, err
	}
	link = strings.TrimSpace(link)
	if link == "" {
		return loc, nil
	}
	if strings.HasPrefix(link, "#") {
		loc.fragment = link[1:]
		return loc, nil
	}
	u, err := url.Parse(link)
	if err != nil {
		return nil, model.NewInvalidLinkError(err.Error())
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, model.NewInvalidLinkError(fmt.Sprintf("unsupported scheme %q", u.Scheme))
	}
	if i := strings.IndexByte(link, '#'); i >= 0 {
		loc.fragment = link[i+1:]
	}
	return loc, nil
}

// Fragment は現在のフラグメント（'#' を含まない）を返す。
func (l *Location) Fragment() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.fragment
}

// ReplaceFragment はフラグメントを置き換える。履歴は増えない。
func (l *Location) ReplaceFragment(fragment string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fragment = strings.TrimPrefix(fragment, "#")
}

// Href はフラグメントを含む完全なURLを返す。
func (l *Location) Href() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.fragment == "" {
		return l.base
	}
	return l.base + "#" + l.fragment
}

// HistoryLen は履歴エントリ数を返す。ReplaceFragmentでは変化しない。
func (l *Location) HistoryLen() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.history
}

// Origin はベースURLのスキーム、ホスト、ポートからなるオリジンを返す。
func Origin(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base url %q: %w", base, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid base url %q: scheme and host are required", base)
	}
	return u.Scheme + "://" + u.Host, nil
}

func normalizeBase(base string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return "", fmt.Errorf("invalid base url %q: %w", base, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("invalid base url %q: absolute http(s) url is required", base)
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String(), nil
}
