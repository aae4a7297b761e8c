// Package codec は予約マップの永続化表現（共有リンクのトークンとローカル保存用テキスト）を扱う。
//
// トークン形式は base64(percentEncode(JSON)) で、ブラウザ版の
// btoa(encodeURIComponent(JSON.stringify(m))) と相互に読み書きできる。
package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/hitoshi/catsit/internal/model"
)

// ErrNotObject はJSONのトップレベルがオブジェクトでない場合のエラー。
var ErrNotObject = errors.New("reservation data is not a JSON object")

// Marshal は予約マップを正規テキスト形式（キー昇順のJSON）に変換する。
func Marshal(m model.ReservationMap) (string, error) {
	if m == nil {
		m = model.ReservationMap{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m); err != nil {
		return "", fmt.Errorf("failed to marshal reservations: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// Unmarshal は正規テキスト形式を予約マップに変換する。
// トップレベルがオブジェクトでない場合や値が文字列でない場合はエラーを返す。
func Unmarshal(text string) (model.ReservationMap, error) {
	var raw map[model.DateKey]*string
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse reservations: %w", err)
	}
	if raw == nil {
		return nil, ErrNotObject
	}
	m := make(model.ReservationMap, len(raw))
	for k, v := range raw {
		if v == nil {
			return nil, fmt.Errorf("failed to parse reservations: null value for %s", k)
		}
		m[k] = *v
	}
	return m, nil
}

// EncodeToken は予約マップを共有リンクのフラグメント用トークンに変換する。
func EncodeToken(m model.ReservationMap) (string, error) {
	text, err := Marshal(m)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString([]byte(escapeComponent(text))), nil
}

// DecodeToken はトークンを予約マップに戻す。
// 先頭の '#'、前後の空白、base64のパディング欠落は許容する。
// 不正な入力ではエラーを返し、panicしない。
func DecodeToken(token string) (model.ReservationMap, error) {
	token = strings.TrimPrefix(strings.TrimSpace(token), "#")
	if token == "" {
		return nil, errors.New("token is empty")
	}

	raw, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(token, "="))
	if err != nil {
		return nil, fmt.Errorf("failed to decode token base64: %w", err)
	}

	text, err := url.PathUnescape(string(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to unescape token: %w", err)
	}
	if !utf8.ValidString(text) {
		return nil, errors.New("token is not valid UTF-8")
	}

	return Unmarshal(text)
}

// escapeComponent は encodeURIComponent と同じ規則でパーセントエンコードする。
// 英数字と - _ . ! ~ * ' ( ) 以外のUTF-8バイトを大文字16進の %XX に変換する。
func escapeComponent(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s) * 3)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0F])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	}
	switch c {
	case '-', '_', '.', '!', '~', '*', '\'', '(', ')':
		return true
	}
	return false
}
