// Package postgres opens the optional run ledger database.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/animus-labs/nativepack/internal/platform/env"
)

type Config struct {
	URL             string
	PingTimeout     time.Duration
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// ConfigFromEnv reads DATABASE_URL and pool knobs. An empty URL means the ledger
// stays in memory.
func ConfigFromEnv() (Config, error) {
	pingTimeout, err := env.Duration("NATIVEPACK_DATABASE_PING_TIMEOUT", 3*time.Second)
	if err != nil {
		return Config{}, err
	}
	maxOpenConns, err := env.Int("NATIVEPACK_DATABASE_MAX_OPEN_CONNS", 2)
	if err != nil {
		return Config{}, err
	}
	connMaxLifetime, err := env.Duration("NATIVEPACK_DATABASE_CONN_MAX_LIFETIME", 10*time.Minute)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		URL:             strings.TrimSpace(env.String("DATABASE_URL", "")),
		PingTimeout:     pingTimeout,
		MaxOpenConns:    maxOpenConns,
		ConnMaxLifetime: connMaxLifetime,
	}
	if !cfg.Enabled() {
		return cfg, nil
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Enabled() bool { return c.URL != "" }

func (c Config) Validate() error {
	if c.URL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if c.PingTimeout <= 0 {
		return errors.New("NATIVEPACK_DATABASE_PING_TIMEOUT must be positive")
	}
	if c.MaxOpenConns < 1 {
		return errors.New("NATIVEPACK_DATABASE_MAX_OPEN_CONNS must be >= 1")
	}
	if c.ConnMaxLifetime < 0 {
		return errors.New("NATIVEPACK_DATABASE_CONN_MAX_LIFETIME must be >= 0")
	}
	return nil
}

func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return db, nil
}
