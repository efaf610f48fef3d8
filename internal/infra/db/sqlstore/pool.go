package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PoolConfig sizes a server-backed connection pool.
type PoolConfig struct {
	MaxOpen     int
	MaxLifetime time.Duration
	// PingAttempts bounds the startup ping; a database container started
	// alongside the service may refuse the first few.
	PingAttempts int
}

func (c PoolConfig) withDefaults() PoolConfig {
	if c.MaxOpen <= 0 {
		c.MaxOpen = 25
	}
	if c.MaxLifetime <= 0 {
		c.MaxLifetime = 30 * time.Minute
	}
	if c.PingAttempts <= 0 {
		c.PingAttempts = 5
	}
	return c
}

// OpenPool opens driver with dsn, applies the pool limits and waits for the
// first successful ping with exponential backoff.
func OpenPool(ctx context.Context, driver, dsn string, cfg PoolConfig) (*sql.DB, error) {
	cfg = cfg.withDefaults()
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MaxOpen)
	db.SetMaxIdleConns(max(cfg.MaxOpen/2, 1))
	db.SetConnMaxLifetime(cfg.MaxLifetime)

	if err := pingBackoff(ctx, db, cfg.PingAttempts); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func pingBackoff(ctx context.Context, db *sql.DB, attempts int) error {
	delay := 200 * time.Millisecond
	var err error
	for i := 1; ; i++ {
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = db.PingContext(pctx)
		cancel()
		if err == nil || i >= attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = min(delay*2, 5*time.Second)
	}
	if err != nil {
		return fmt.Errorf("ping after %d attempts: %w", attempts, err)
	}
	return nil
}
