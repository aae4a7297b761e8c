// Package clipboard は共有リンクをシステムのクリップボードへ書き込む。
package clipboard

import (
	"errors"
	"fmt"

	"github.com/atotto/clipboard"
)

// ErrUnsupported はクリップボードが利用できない環境の場合のエラー。
var ErrUnsupported = errors.New("clipboard is not available")

// Writer はテキストをクリップボードへ書き込む。
type Writer interface {
	WriteText(text string) error
}

// System はOSのクリップボードを使うWriter。
type System struct{}

// WriteText はtextをクリップボードへ書き込む。
func (System) WriteText(text string) error {
	if clipboard.Unsupported {
		return ErrUnsupported
	}
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("failed to write clipboard: %w", err)
	}
	return nil
}

// Memory はテストやヘッドレス環境向けに最後に書き込まれたテキストを保持するWriter。
type Memory struct {
	Text string
}

// WriteText はtextを保持する。
func (m *Memory) WriteText(text string) error {
	m.Text = text
	return nil
}
