package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/wrongjunior/adminnotify/internal/domain"
)

// Ключи долговременного хранилища.
const (
	LogsKey  = "notifyLogs"
	ThemeKey = "sty-admin-theme"
)

// Темы оформления консоли.
const (
	ThemeDark  = "dark"
	ThemeLight = "light"
)

// LogRepository хранит журнал уведомлений целиком под одним ключом.
type LogRepository interface {
	LoadLogs() ([]domain.LogEntry, error)
	SaveLogs(entries []domain.LogEntry) error
}

// ThemeRepository хранит выбранную тему оформления.
type ThemeRepository interface {
	LoadTheme() (string, error)
	SaveTheme(theme string) error
}

// SQLiteRepository реализует хранилище «ключ: JSON-значение» на базе SQLite.
type SQLiteRepository struct {
	DB *sql.DB
}

// NewSQLiteRepository создаёт новый экземпляр репозитория.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{DB: db}
}

// Init создаёт таблицу хранилища, если её ещё нет.
func (repo *SQLiteRepository) Init() error {
	query := `
        CREATE TABLE IF NOT EXISTS local_storage (
            key TEXT PRIMARY KEY,
            value TEXT NOT NULL,
            updated_at DATETIME
        );
    `
	if _, err := repo.DB.Exec(query); err != nil {
		return fmt.Errorf("init local storage: %w", err)
	}
	return nil
}

// Get возвращает значение ключа; ok == false, если ключа нет.
func (repo *SQLiteRepository) Get(key string) (string, bool, error) {
	var value string
	err := repo.DB.QueryRow(`SELECT value FROM local_storage WHERE key = ?;`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

// Set записывает значение ключа, заменяя предыдущее.
func (repo *SQLiteRepository) Set(key, value string) error {
	query := `INSERT INTO local_storage (key, value, updated_at) VALUES (?, ?, ?)
        ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at;`
	if _, err := repo.DB.Exec(query, key, value, time.Now()); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// LoadLogs читает журнал. Отсутствующий ключ даёт пустой журнал без ошибки;
// нечитаемое значение даёт пустой журнал и ошибку для логирования.
func (repo *SQLiteRepository) LoadLogs() ([]domain.LogEntry, error) {
	raw, ok, err := repo.Get(LogsKey)
	if err != nil || !ok {
		return []domain.LogEntry{}, err
	}
	var entries []domain.LogEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return []domain.LogEntry{}, fmt.Errorf("decode %s: %w", LogsKey, err)
	}
	if entries == nil {
		entries = []domain.LogEntry{}
	}
	return entries, nil
}

// SaveLogs сериализует весь журнал под ключом LogsKey.
func (repo *SQLiteRepository) SaveLogs(entries []domain.LogEntry) error {
	if entries == nil {
		entries = []domain.LogEntry{}
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode %s: %w", LogsKey, err)
	}
	return repo.Set(LogsKey, string(raw))
}

// LoadTheme возвращает сохранённую тему, по умолчанию тёмную.
func (repo *SQLiteRepository) LoadTheme() (string, error) {
	theme, ok, err := repo.Get(ThemeKey)
	if err != nil {
		return ThemeDark, err
	}
	if !ok || (theme != ThemeDark && theme != ThemeLight) {
		return ThemeDark, nil
	}
	return theme, nil
}

// SaveTheme сохраняет тему.
func (repo *SQLiteRepository) SaveTheme(theme string) error {
	if theme != ThemeDark && theme != ThemeLight {
		return fmt.Errorf("unknown theme %q", theme)
	}
	return repo.Set(ThemeKey, theme)
}

// ToggleTheme переключает тему и возвращает новое значение.
func ToggleTheme(repo ThemeRepository) (string, error) {
	current, err := repo.LoadTheme()
	if err != nil {
		return "", err
	}
	next := ThemeLight
	if current == ThemeLight {
		next = ThemeDark
	}
	if err := repo.SaveTheme(next); err != nil {
		return "", err
	}
	return next, nil
}
