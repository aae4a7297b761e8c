package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: reservation, validation, link, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeNoActiveParticipant = "NO_ACTIVE_PARTICIPANT"
	ErrCodeUnknownParticipant  = "UNKNOWN_PARTICIPANT"
	ErrCodeInvalidDate         = "INVALID_DATE"
	ErrCodeOutOfWindow         = "OUT_OF_WINDOW"
	ErrCodeInvalidLink         = "INVALID_LINK"
)

// SelectParticipantPrompt は参加者未選択のまま日付を操作したときに表示する文言。
const SelectParticipantPrompt = "Please choose who you are first! 🐾"

// NewNoActiveParticipantError は参加者未選択エラーを生成する。
// MessageはそのままユーザーへのプロンプトとしてUIに表示する。
func NewNoActiveParticipantError() *APIError {
	return &APIError{
		Code:     ErrCodeNoActiveParticipant,
		Message:  SelectParticipantPrompt,
		Category: "reservation",
		Action:   "名簿から自分を選択してから日付を選んでください。",
	}
}

// NewUnknownParticipantError は名簿にない参加者IDのエラーを生成する。
func NewUnknownParticipantError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeUnknownParticipant,
		Message:  fmt.Sprintf("指定された参加者が見つかりません: %s", id),
		Category: "validation",
		Action:   "名簿に含まれる参加者IDを指定してください。",
	}
}

// NewInvalidDateError は日付形式が不正な場合のエラーを生成する。
func NewInvalidDateError(date string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidDate,
		Message:  fmt.Sprintf("無効な日付です: %s", date),
		Category: "validation",
		Action:   "日付は YYYY-MM-DD 形式で指定してください。",
	}
}

// NewOutOfWindowError は休暇期間外の日付を操作した場合のエラーを生成する。
func NewOutOfWindowError(date DateKey, window VacationWindow) *APIError {
	return &APIError{
		Code:     ErrCodeOutOfWindow,
		Message:  fmt.Sprintf("休暇期間外の日付です: %s", date),
		Category: "reservation",
		Action:   fmt.Sprintf("%s から %s までの日付を選んでください。", window.Start, window.End),
	}
}

// NewInvalidLinkError は共有リンクのURLが不正な場合のエラーを生成する。
func NewInvalidLinkError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidLink,
		Message:  fmt.Sprintf("無効な共有リンクです: %s", reason),
		Category: "link",
		Action:   "共有されたURLをそのまま貼り付けてください。",
	}
}
