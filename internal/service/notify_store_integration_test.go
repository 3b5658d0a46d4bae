package service_test

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/wrongjunior/adminnotify/internal/repository"
	"github.com/wrongjunior/adminnotify/internal/server"
	"github.com/wrongjunior/adminnotify/internal/service"
	transport "github.com/wrongjunior/adminnotify/internal/transport/client"
)

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("таймаут ожидания: %s", what)
}

func TestStoreAgainstMockServer(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	upstream := server.NewServer(logger, 0)
	upstream.Run()
	defer upstream.Shutdown()
	ts := httptest.NewServer(upstream.SetupRouter("/ws/admin/notify"))
	defer ts.Close()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	defer db.Close()
	repo := repository.NewSQLiteRepository(db)
	if err := repo.Init(); err != nil {
		t.Fatal(err)
	}

	store := service.NewNotificationStore(transport.NewWebSocketDialer(logger), repo, nil, nil, logger, service.Options{
		URL:            "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/admin/notify",
		ReconnectDelay: 50 * time.Millisecond,
	})
	store.Start(context.Background())
	defer store.Stop()

	eventually(t, "connected", store.Connected)
	eventually(t, "registered", func() bool { return upstream.Clients() == 1 })

	upstream.Broadcast(server.Frame{ID: "1", Event: "USER_RECHARGE", User: "Alice", Data: map[string]any{"user": "Alice", "amount": 0}})
	eventually(t, "entry", func() bool { return len(store.Logs()) == 1 })

	entry := store.Logs()[0]
	if entry.Content != "Alice 充值 0 USDT" || entry.User != "Alice" || entry.Type != "USER_RECHARGE" {
		t.Fatalf("неожиданная запись %+v", entry)
	}
	persisted, err := repo.LoadLogs()
	if err != nil {
		t.Fatal(err)
	}
	if len(persisted) != 1 || persisted[0].Content != entry.Content {
		t.Fatalf("журнал не сохранён: %+v", persisted)
	}
}
