package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/catsit/internal/codec"
	"github.com/hitoshi/catsit/internal/metrics"
	"github.com/hitoshi/catsit/internal/middleware"
	"github.com/hitoshi/catsit/internal/model"
	"github.com/hitoshi/catsit/internal/session"
	"github.com/hitoshi/catsit/internal/storage"
)

// stubGenerator は常に同じ文言を返すsummary.Generator。
type stubGenerator struct{}

func (stubGenerator) Generate(ctx context.Context, model, prompt string) (string, error) {
	return "Max and Luna say thanks!", nil
}

// newIntegrationServer は実際のSessionを使ったテストサーバーを起動する。
func newIntegrationServer(t *testing.T) (*httptest.Server, *prometheus.Registry) {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()

	s, err := session.New(session.Options{
		Calendar:  model.DefaultCalendar(),
		Store:     storage.NewMemoryStore(),
		BaseURL:   "http://localhost:8080/",
		Generator: stubGenerator{},
		Logger:    logger,
		Metrics:   metrics.NewCollector(reg),
	})
	if err != nil {
		t.Fatalf("session.New がエラーを返した: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()

	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig(), logger)
	server := httptest.NewServer(NewRouter(&RouterDeps{
		Logger:            logger,
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       rl,
		Session:           s,
		Gatherer:          reg,
	}))
	t.Cleanup(func() {
		server.Close()
		rl.Stop()
		cancel()
		<-done
	})
	return server, reg
}

func doRequest(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, r)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestRouter_Health(t *testing.T) {
	server, _ := newIntegrationServer(t)

	resp := doRequest(t, http.MethodGet, server.URL+"/health", "")
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "OK" {
		t.Errorf("GET /health = %d %q", resp.StatusCode, body)
	}
}

func TestRouter_FullFlow(t *testing.T) {
	server, _ := newIntegrationServer(t)

	// 参加者未選択ではトグルできない
	resp := doRequest(t, http.MethodPost, server.URL+"/api/days/2026-07-25/toggle", "")
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("toggle without participant status = %d, want 409", resp.StatusCode)
	}

	resp = doRequest(t, http.MethodPut, server.URL+"/api/participant", `{"id":"2"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PUT /api/participant status = %d", resp.StatusCode)
	}
	var view session.View
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		t.Fatalf("failed to decode state: %v", err)
	}
	if view.Active == nil || view.Active.ID != "2" {
		t.Fatalf("active = %+v, want participant 2", view.Active)
	}

	resp = doRequest(t, http.MethodPost, server.URL+"/api/days/2026-07-25/toggle", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("toggle status = %d, want 200", resp.StatusCode)
	}
	var toggled toggleResponse
	if err := json.NewDecoder(resp.Body).Decode(&toggled); err != nil {
		t.Fatalf("failed to decode toggle: %v", err)
	}
	if toggled.Action != "claimed" || toggled.Progress.Booked != 1 {
		t.Errorf("toggle = %+v", toggled)
	}

	resp = doRequest(t, http.MethodPost, server.URL+"/api/days/2026-08-06/toggle", "")
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("out-of-window toggle status = %d, want 422", resp.StatusCode)
	}
	resp = doRequest(t, http.MethodPost, server.URL+"/api/days/not-a-date/toggle", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid date toggle status = %d, want 400", resp.StatusCode)
	}

	// 共有リンクを別のセッションで開くと同じ予約が復元される
	resp = doRequest(t, http.MethodGet, server.URL+"/api/share", "")
	var share shareResponse
	if err := json.NewDecoder(resp.Body).Decode(&share); err != nil {
		t.Fatalf("failed to decode share: %v", err)
	}
	token, _ := codec.EncodeToken(model.ReservationMap{"2026-07-25": "2"})
	if share.URL != "http://localhost:8080/#"+token {
		t.Errorf("share url = %q", share.URL)
	}

	body, _ := json.Marshal(map[string]string{"url": share.URL})
	resp = doRequest(t, http.MethodPost, server.URL+"/api/session", string(body))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST /api/session status = %d", resp.StatusCode)
	}
	view = session.View{}
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		t.Fatalf("failed to decode state: %v", err)
	}
	if view.Source != codec.SourceURL || view.Reservations["2026-07-25"] != "2" || view.Active != nil {
		t.Errorf("reopened view = %+v", view)
	}

	resp = doRequest(t, http.MethodGet, server.URL+"/api/calendar.ics", "")
	ics, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(ics), "Cat sitting: Oliver") {
		t.Errorf("ICS にイベントが含まれていない:\n%s", ics)
	}
}

func TestRouter_Summary(t *testing.T) {
	server, _ := newIntegrationServer(t)

	doRequest(t, http.MethodPut, server.URL+"/api/participant", `{"id":"1"}`)
	doRequest(t, http.MethodPost, server.URL+"/api/days/2026-07-26/toggle", "")
	resp := doRequest(t, http.MethodPut, server.URL+"/api/summary", `{"visible":true}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PUT /api/summary status = %d", resp.StatusCode)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		resp = doRequest(t, http.MethodGet, server.URL+"/api/summary", "")
		var sv map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&sv); err != nil {
			t.Fatalf("failed to decode summary: %v", err)
		}
		if sv["state"] == "success" {
			if sv["text"] != "Max and Luna say thanks!" {
				t.Errorf("text = %v", sv["text"])
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("summary did not complete: %v", sv)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRouter_Metrics(t *testing.T) {
	server, _ := newIntegrationServer(t)

	doRequest(t, http.MethodPost, server.URL+"/api/days/2026-07-25/toggle", "")

	resp := doRequest(t, http.MethodGet, server.URL+"/metrics", "")
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `catsit_toggles_total{outcome="rejected"} 1`) {
		t.Errorf("metrics にトグル拒否が含まれていない:\n%s", body)
	}
}

func TestRouter_SecurityHeadersAndCORS(t *testing.T) {
	server, _ := newIntegrationServer(t)

	resp := doRequest(t, http.MethodGet, server.URL+"/api/state", "")
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Error("X-Content-Type-Options がない")
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q", resp.Header.Get("Access-Control-Allow-Origin"))
	}
}

func TestRouter_NoMetricsWithoutGatherer(t *testing.T) {
	router := NewRouter(&RouterDeps{Session: &mockSessionService{}})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/state", nil))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}
