package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config содержит настройки демона уведомлений и тестового сервера.
type Config struct {
	ServerAddr          string `json:"server_addr" env:"NOTIFY_SERVER_ADDR"`                 // адрес HTTP-сервера консоли (например, ":8090")
	WSPath              string `json:"ws_path" env:"NOTIFY_WS_PATH"`                         // путь живой ленты (например, "/ws")
	DBPath              string `json:"db_path" env:"NOTIFY_DB_PATH"`                         // путь к SQLite БД (например, "notify.db")
	LockPath            string `json:"lock_path" env:"NOTIFY_LOCK_PATH"`                     // файл блокировки единственного экземпляра
	LogLevel            string `json:"log_level" env:"NOTIFY_LOG_LEVEL"`                     // уровень логирования (например, "INFO")
	ClientServerURL     string `json:"client_server_url" env:"NOTIFY_WS_URL"`                // URL сервера уведомлений
	ReconnectDelayMS    int    `json:"reconnect_delay_ms" env:"NOTIFY_RECONNECT_DELAY_MS"`   // задержка переподключения
	MaxReconnectDelayMS int    `json:"max_reconnect_delay_ms" env:"NOTIFY_MAX_RECONNECT_MS"` // 0: без роста задержки
	SpeechEnabled       bool   `json:"speech_enabled" env:"NOTIFY_SPEECH_ENABLED"`           // озвучивать уведомления
	SpeechBinary        string `json:"speech_binary" env:"NOTIFY_SPEECH_BINARY"`             // утилита синтеза речи
	MockAddr            string `json:"mock_addr" env:"NOTIFY_MOCK_ADDR"`                     // адрес тестового сервера уведомлений
	MockIntervalMS      int    `json:"mock_interval_ms" env:"NOTIFY_MOCK_INTERVAL_MS"`       // период генерации событий
}

// Default возвращает конфигурацию по умолчанию.
func Default() *Config {
	return &Config{
		ServerAddr:       ":8090",
		WSPath:           "/ws",
		DBPath:           "notify.db",
		LogLevel:         "INFO",
		ReconnectDelayMS: 3000,
		SpeechEnabled:    true,
		SpeechBinary:     "espeak-ng",
		MockAddr:         ":8056",
		MockIntervalMS:   5000,
	}
}

// LoadConfig загружает конфигурацию из JSON-файла (если путь задан) и
// применяет переопределения из переменных окружения.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer f.Close()

		decoder := json.NewDecoder(f)
		if err := decoder.Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode config %s: %w", path, err)
		}
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет значения, без которых демон не запустится.
// URL сервера уведомлений намеренно не проверяется.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	if !strings.HasPrefix(c.WSPath, "/") {
		return fmt.Errorf("ws_path must start with /: %q", c.WSPath)
	}
	if c.ReconnectDelayMS < 0 || c.MaxReconnectDelayMS < 0 {
		return fmt.Errorf("reconnect delays must not be negative")
	}
	return nil
}

// Level переводит LogLevel в уровень slog; неизвестное значение даёт INFO.
func (c *Config) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func (c *Config) ReconnectDelay() time.Duration {
	return time.Duration(c.ReconnectDelayMS) * time.Millisecond
}

func (c *Config) MaxReconnectDelay() time.Duration {
	return time.Duration(c.MaxReconnectDelayMS) * time.Millisecond
}

func (c *Config) MockInterval() time.Duration {
	return time.Duration(c.MockIntervalMS) * time.Millisecond
}

// Lock возвращает путь файла блокировки: явно заданный или рядом с БД.
func (c *Config) Lock() string {
	if c.LockPath != "" {
		return c.LockPath
	}
	return c.DBPath + ".lock"
}
