package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"log/slog"

	"github.com/gorilla/websocket"
	_ "github.com/mattn/go-sqlite3"
	"github.com/wrongjunior/adminnotify/internal/domain"
	"github.com/wrongjunior/adminnotify/internal/repository"
	eservice "github.com/wrongjunior/adminnotify/internal/service"
)

type stubStore struct {
	mu       sync.Mutex
	logs     []domain.LogEntry
	state    domain.ConnectionState
	clearErr error
	onState  func()
}

func (s *stubStore) Logs() []domain.LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.LogEntry{}, s.logs...)
}

func (s *stubStore) State() domain.ConnectionState {
	s.mu.Lock()
	hook := s.onState
	s.onState = nil
	state := s.state
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	return state
}

func (s *stubStore) ClearLogs() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clearErr != nil {
		return s.clearErr
	}
	s.logs = []domain.LogEntry{}
	return nil
}

func newTestServer(t *testing.T, store *stubStore) (*httptest.Server, *eservice.EventService) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	repo := repository.NewSQLiteRepository(db)
	if err := repo.Init(); err != nil {
		t.Fatal(err)
	}

	es := eservice.NewEventService(logger)
	srv := httptest.NewServer(SetupRouter(NewHandler(store, es, repo, logger), "/ws"))
	t.Cleanup(srv.Close)
	return srv, es
}

func TestStatusAndLogs(t *testing.T) {
	store := &stubStore{
		state: domain.Connected,
		logs: []domain.LogEntry{
			{Type: "USER_WITHDRAWAL", Content: "Bob 发起提现"},
			{Type: "USER_RECHARGE", Content: "Alice 充值 0 USDT"},
		},
	}
	srv, _ := newTestServer(t, store)

	resp, err := http.Get(srv.URL + "/api/notify/status")
	if err != nil {
		t.Fatal(err)
	}
	var status struct {
		State     string `json:"state"`
		Connected bool   `json:"connected"`
	}
	json.NewDecoder(resp.Body).Decode(&status)
	resp.Body.Close()
	if status.State != "connected" || !status.Connected {
		t.Errorf("неожиданный статус %+v", status)
	}

	resp, err = http.Get(srv.URL + "/api/notify/logs")
	if err != nil {
		t.Fatal(err)
	}
	var logs []domain.LogEntry
	json.NewDecoder(resp.Body).Decode(&logs)
	resp.Body.Close()
	if len(logs) != 2 || logs[0].Type != "USER_WITHDRAWAL" {
		t.Errorf("неожиданный журнал %+v", logs)
	}
}

func TestClearLogsEndpoint(t *testing.T) {
	store := &stubStore{logs: []domain.LogEntry{{Type: "USER_RECHARGE"}}}
	srv, _ := newTestServer(t, store)

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/notify/logs", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("ожидался 204, получен %d", resp.StatusCode)
	}
	if len(store.Logs()) != 0 {
		t.Fatal("журнал должен быть очищен")
	}

	store.mu.Lock()
	store.clearErr = errors.New("disk full")
	store.mu.Unlock()
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("ожидался 500, получен %d", resp.StatusCode)
	}
}

func TestTypesAndTheme(t *testing.T) {
	srv, _ := newTestServer(t, &stubStore{})

	resp, err := http.Get(srv.URL + "/api/notify/types")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), `"USER_RECHARGE"`) || !strings.Contains(string(body), "充值通知") {
		t.Errorf("в реестре нет USER_RECHARGE: %s", body)
	}

	resp, err = http.Post(srv.URL+"/api/theme/toggle", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	var theme struct {
		Theme string `json:"theme"`
	}
	json.NewDecoder(resp.Body).Decode(&theme)
	resp.Body.Close()
	if theme.Theme != "light" {
		t.Fatalf("после переключения ожидалась светлая тема, получено %q", theme.Theme)
	}

	resp, err = http.Get(srv.URL + "/api/theme")
	if err != nil {
		t.Fatal(err)
	}
	json.NewDecoder(resp.Body).Decode(&theme)
	resp.Body.Close()
	if theme.Theme != "light" {
		t.Fatalf("тема должна сохраниться, получено %q", theme.Theme)
	}
}

func TestLiveFeed(t *testing.T) {
	srv, es := newTestServer(t, &stubStore{state: domain.Connecting})

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first struct {
		Kind  string `json:"kind"`
		State string `json:"state"`
	}
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatal(err)
	}
	if first.Kind != eservice.FeedState || first.State != "connecting" {
		t.Fatalf("первым ожидался кадр состояния, получено %+v", first)
	}

	es.PublishEntry(domain.LogEntry{Type: "CONTACT_SUPPORT", Content: "Grace 请求人工客服支援"})

	var next struct {
		Kind  string          `json:"kind"`
		Entry domain.LogEntry `json:"entry"`
	}
	if err := conn.ReadJSON(&next); err != nil {
		t.Fatal(err)
	}
	if next.Kind != eservice.FeedEntry || next.Entry.Content != "Grace 请求人工客服支援" {
		t.Fatalf("неожиданный кадр %+v", next)
	}
}

func TestLiveFeedKeepsEntryPublishedDuringSubscribe(t *testing.T) {
	store := &stubStore{state: domain.Connected}
	srv, es := newTestServer(t, store)
	store.mu.Lock()
	store.onState = func() {
		es.PublishEntry(domain.LogEntry{Type: "USER_CONNECTED", Content: "用户 42 已上线"})
	}
	store.mu.Unlock()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var gotEntry, gotState bool
	for i := 0; i < 2; i++ {
		var frame struct {
			Kind  string          `json:"kind"`
			State string          `json:"state"`
			Entry domain.LogEntry `json:"entry"`
		}
		if err := conn.ReadJSON(&frame); err != nil {
			t.Fatal(err)
		}
		switch frame.Kind {
		case eservice.FeedEntry:
			gotEntry = frame.Entry.Content == "用户 42 已上线"
		case eservice.FeedState:
			gotState = frame.State == "connected"
		}
	}
	if !gotEntry || !gotState {
		t.Fatalf("ожидались запись и состояние, entry=%v state=%v", gotEntry, gotState)
	}
}
