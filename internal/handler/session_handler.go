package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/catsit/internal/middleware"
	"github.com/hitoshi/catsit/internal/model"
	"github.com/hitoshi/catsit/internal/reservation"
	"github.com/hitoshi/catsit/internal/session"
)

// SessionService はセッションハンドラーが必要とするサービスインターフェース。
type SessionService interface {
	// State は現在の表示状態を返す。
	State(ctx context.Context) (session.View, error)
	// Open は共有リンクから新しいセッションを開始する。
	Open(ctx context.Context, link string) (session.View, error)
	// SelectParticipant は参加者を選択する。選択中の参加者なら解除する。
	SelectParticipant(ctx context.Context, id string) (string, error)
	// ClearParticipant は参加者の選択を解除する。
	ClearParticipant(ctx context.Context) error
	// ToggleDay は選択中の参加者として日付をトグルする。
	ToggleDay(ctx context.Context, date model.DateKey) (reservation.Change, error)
	// ShareURL は共有リンクを返す。
	ShareURL(ctx context.Context) (string, error)
	// Summary は要約パネルの状態を返す。
	Summary(ctx context.Context) (session.SummaryView, error)
	// SetSummaryVisible は要約パネルの表示を切り替える。
	SetSummaryVisible(ctx context.Context, visible bool) (session.SummaryView, error)
	// ExportICS は予約済みの日をiCalendar形式で返す。
	ExportICS(ctx context.Context) (string, error)
}

// SessionHandler はカレンダー操作のHTTPハンドラー。
type SessionHandler struct {
	service SessionService
	logger  *slog.Logger
}

// NewSessionHandler はSessionHandlerを生成する。
func NewSessionHandler(service SessionService, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		service: service,
		logger:  logger,
	}
}

// openSessionRequest はセッション開始リクエストのボディ。
type openSessionRequest struct {
	URL string `json:"url"`
}

// participantRequest は参加者選択リクエストのボディ。IDがnullの場合は選択解除。
type participantRequest struct {
	ID *string `json:"id"`
}

// summaryVisibilityRequest は要約パネル表示切り替えリクエストのボディ。
type summaryVisibilityRequest struct {
	Visible bool `json:"visible"`
}

// toggleResponse はトグル結果のAPIレスポンス。
type toggleResponse struct {
	Date     model.DateKey        `json:"date"`
	Action   string               `json:"action"`
	Holder   string               `json:"holder,omitempty"`
	Previous string               `json:"previous,omitempty"`
	Version  uint64               `json:"version"`
	Progress reservation.Progress `json:"progress"`
}

// shareResponse は共有リンクのAPIレスポンス。
type shareResponse struct {
	URL string `json:"url"`
}

// GetState は現在の状態を返す。
// GET /api/state
func (h *SessionHandler) GetState(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.State(r.Context())
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, view)
}

// OpenSession は共有リンクから新しいセッションを開始する。
// ボディが空の場合はローカルストアから復元する。
// POST /api/session
func (h *SessionHandler) OpenSession(w http.ResponseWriter, r *http.Request) {
	var req openSessionRequest
	if !decodeJSONBody(w, r, &req, true) {
		return
	}

	view, err := h.service.Open(r.Context(), req.URL)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, view)
}

// SelectParticipant は参加者を選択または選択解除し、新しい状態を返す。
// PUT /api/participant
func (h *SessionHandler) SelectParticipant(w http.ResponseWriter, r *http.Request) {
	var req participantRequest
	if !decodeJSONBody(w, r, &req, false) {
		return
	}

	var err error
	if req.ID == nil {
		err = h.service.ClearParticipant(r.Context())
	} else {
		_, err = h.service.SelectParticipant(r.Context(), *req.ID)
	}
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.GetState(w, r)
}

// ToggleDay は日付をトグルする。
// POST /api/days/{date}/toggle
func (h *SessionHandler) ToggleDay(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "date")
	date, err := model.ParseDateKey(raw)
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidDateError(raw))
		return
	}

	change, err := h.service.ToggleDay(r.Context(), date)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	view, err := h.service.State(r.Context())
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, toggleResponse{
		Date:     change.Date,
		Action:   string(change.Action),
		Holder:   change.Holder,
		Previous: change.Previous,
		Version:  change.Version,
		Progress: view.Progress,
	})
}

// GetShareURL は共有リンクを返す。
// GET /api/share
func (h *SessionHandler) GetShareURL(w http.ResponseWriter, r *http.Request) {
	href, err := h.service.ShareURL(r.Context())
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, shareResponse{URL: href})
}

// GetSummary は要約パネルの状態を返す。
// GET /api/summary
func (h *SessionHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	sv, err := h.service.Summary(r.Context())
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, sv)
}

// SetSummaryVisibility は要約パネルの表示を切り替える。
// PUT /api/summary
func (h *SessionHandler) SetSummaryVisibility(w http.ResponseWriter, r *http.Request) {
	var req summaryVisibilityRequest
	if !decodeJSONBody(w, r, &req, false) {
		return
	}

	sv, err := h.service.SetSummaryVisible(r.Context(), req.Visible)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, sv)
}

// ExportICS は予約済みの日をiCalendarファイルとして返す。
// GET /api/calendar.ics
func (h *SessionHandler) ExportICS(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.ExportICS(r.Context())
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="catsit.ics"`)
	io.WriteString(w, out)
}

// --- ヘルパー関数 ---

// decodeJSONBody はリクエストボディをvにデコードする。
// allowEmptyがtrueの場合、空のボディはエラーにしない。
// 失敗した場合は400を書き込んでfalseを返す。
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any, allowEmpty bool) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || (allowEmpty && errors.Is(err, io.EOF)) {
		return true
	}
	middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  "The request body could not be parsed.",
		Category: "validation",
		Action:   "Send a valid JSON body.",
	})
	return false
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func (h *SessionHandler) handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	if errors.Is(err, session.ErrClosed) {
		middleware.WriteErrorResponse(w, http.StatusServiceUnavailable, &model.APIError{
			Code:     "SESSION_CLOSED",
			Message:  "The calendar is shutting down.",
			Category: "system",
			Action:   "Please try again in a moment.",
		})
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	h.logger.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeNoActiveParticipant:
		return http.StatusConflict
	case model.ErrCodeUnknownParticipant:
		return http.StatusNotFound
	case model.ErrCodeInvalidDate, model.ErrCodeInvalidLink, "INVALID_REQUEST":
		return http.StatusBadRequest
	case model.ErrCodeOutOfWindow:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
