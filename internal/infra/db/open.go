// Package db opens the configured SQL engine and bundles it with its
// dialect, catalog and migrations.
package db

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/bryanwahyu/leafcheck/internal/infra/db/mysql"
	"github.com/bryanwahyu/leafcheck/internal/infra/db/postgres"
	"github.com/bryanwahyu/leafcheck/internal/infra/db/schema"
	"github.com/bryanwahyu/leafcheck/internal/infra/db/sqlite"
	"github.com/bryanwahyu/leafcheck/internal/infra/db/sqlstore"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

// Config is the connection part of the database configuration.
type Config struct {
	Driver       string
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	Path         string
	SSLMode      string
	MaxOpenConns int
}

// Conn is an open database with everything the stores need.
type Conn struct {
	DB      *sql.DB
	Dialect sqlstore.Dialect
	Catalog schema.Catalog

	migrate func(*zap.Logger) error
}

// Open connects and pings. The DSN is never logged since it carries the password.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*Conn, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.Named("db").With(zap.String("driver", cfg.Driver))

	var c Conn
	switch cfg.Driver {
	case DriverPostgres:
		dsn := postgres.DSN(cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)
		db, err := postgres.Connect(ctx, dsn, cfg.MaxOpenConns)
		if err != nil {
			return nil, fmt.Errorf("connect postgres %s:%d/%s: %w", cfg.Host, cfg.Port, cfg.Name, err)
		}
		c = Conn{DB: db, Dialect: postgres.Dialect{}, Catalog: postgres.NewCatalog(db),
			migrate: func(l *zap.Logger) error { return postgres.Migrate(dsn, l) }}
		log.Info("connected", zap.String("host", cfg.Host), zap.Int("port", cfg.Port), zap.String("database", cfg.Name))

	case DriverMySQL:
		dsn := mysql.DSN(cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name)
		db, err := mysql.Connect(ctx, dsn, cfg.MaxOpenConns)
		if err != nil {
			return nil, fmt.Errorf("connect mysql %s:%d/%s: %w", cfg.Host, cfg.Port, cfg.Name, err)
		}
		c = Conn{DB: db, Dialect: mysql.Dialect{}, Catalog: mysql.NewCatalog(db),
			migrate: func(l *zap.Logger) error { return mysql.Migrate(dsn, l) }}
		log.Info("connected", zap.String("host", cfg.Host), zap.Int("port", cfg.Port), zap.String("database", cfg.Name))

	case DriverSQLite:
		db, err := sqlite.Connect(ctx, cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.Path, err)
		}
		path := cfg.Path
		c = Conn{DB: db, Dialect: sqlite.Dialect{}, Catalog: sqlite.NewCatalog(db),
			migrate: func(l *zap.Logger) error { return sqlite.Migrate(path, l) }}
		log.Info("connected", zap.String("path", cfg.Path))

	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	return &c, nil
}

// Migrate applies the embedded migrations for the engine.
func (c *Conn) Migrate(logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	return c.migrate(logger.Named("migrate"))
}

// Ping implements the readiness check.
func (c *Conn) Ping(ctx context.Context) error { return c.DB.PingContext(ctx) }

func (c *Conn) Close() error { return c.DB.Close() }
