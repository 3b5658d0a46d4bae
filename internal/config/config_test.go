package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ReconnectDelay() != 3*time.Second {
		t.Errorf("ожидалась задержка 3s, получено %v", cfg.ReconnectDelay())
	}
	if cfg.ClientServerURL != "" {
		t.Errorf("адрес по умолчанию подставляет хранилище, получено %q", cfg.ClientServerURL)
	}
	if cfg.Lock() != "notify.db.lock" {
		t.Errorf("неожиданный файл блокировки %q", cfg.Lock())
	}
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := writeConfig(t, `{"client_server_url":"ws://file/ws","db_path":"file.db","log_level":"DEBUG"}`)
	t.Setenv("NOTIFY_WS_URL", "ws://env/ws/admin/notify")
	t.Setenv("NOTIFY_SPEECH_ENABLED", "false")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ClientServerURL != "ws://env/ws/admin/notify" {
		t.Errorf("переменная окружения должна переопределять файл, получено %q", cfg.ClientServerURL)
	}
	if cfg.DBPath != "file.db" {
		t.Errorf("значение из файла потеряно: %q", cfg.DBPath)
	}
	if cfg.SpeechEnabled {
		t.Error("озвучивание должно быть выключено")
	}
	if cfg.WSPath != "/ws" {
		t.Errorf("незаданное поле должно сохранить значение по умолчанию, получено %q", cfg.WSPath)
	}
	if cfg.Level() != slog.LevelDebug {
		t.Errorf("ожидался DEBUG, получено %v", cfg.Level())
	}
}

func TestLoadConfigErrors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("ожидалась ошибка для отсутствующего файла")
	}
	if _, err := LoadConfig(writeConfig(t, `{broken`)); err == nil {
		t.Error("ожидалась ошибка разбора")
	}
	if _, err := LoadConfig(writeConfig(t, `{"ws_path":"ws"}`)); err == nil {
		t.Error("ожидалась ошибка валидации ws_path")
	}

	t.Setenv("NOTIFY_RECONNECT_DELAY_MS", "soon")
	_, err := LoadConfig("")
	if err == nil || !strings.Contains(err.Error(), "parse env:") {
		t.Errorf("ожидалась ошибка окружения, получено %v", err)
	}
}

func TestLevelFallback(t *testing.T) {
	cfg := &Config{LogLevel: "loud"}
	if cfg.Level() != slog.LevelInfo {
		t.Errorf("неизвестный уровень должен давать INFO, получено %v", cfg.Level())
	}
}
