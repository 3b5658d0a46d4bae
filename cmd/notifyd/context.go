package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/mattn/go-sqlite3"
	"github.com/wrongjunior/adminnotify/internal/config"
	"github.com/wrongjunior/adminnotify/internal/repository"
)

// commandContext лениво загружает конфигурацию и открывает хранилище для подкоманд.
type commandContext struct {
	configFlag *string
	cfg        *config.Config
	logger     *slog.Logger
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	// Файл .env необязателен.
	envErr := godotenv.Load()

	cfg, err := config.LoadConfig(*c.configFlag)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	c.cfg = cfg
	c.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Level(),
	}))
	if envErr != nil {
		c.logger.Debug("No .env file loaded", "error", envErr)
	}
	return cfg, nil
}

// openRepository открывает SQLite-хранилище и создаёт таблицу при необходимости.
func (c *commandContext) openRepository() (*repository.SQLiteRepository, func(), error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	db, err := sql.Open("sqlite3", cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	repo := repository.NewSQLiteRepository(db)
	if err := repo.Init(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("initialize repository: %w", err)
	}
	return repo, func() { db.Close() }, nil
}
