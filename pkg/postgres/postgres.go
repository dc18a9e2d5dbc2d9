package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DefaultNamespace is the schema used when Config.Namespace is empty.
const DefaultNamespace = "scheduler"

const defaultConnectTimeout = 5 * time.Second

// ErrConnect marks failures to reach the database while constructing the handle.
var ErrConnect = errors.New("postgres: connection failed")

// Config holds the configuration for the PostgreSQL database connection.
type Config struct {
	URL             string        `yaml:"url"`
	Namespace       string        `yaml:"namespace"` // Postgres schema holding the scheduler tables
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	ConnMaxLifetime string        `yaml:"conn_max_lifetime"` // e.g., "5m"
	LogLevel        string        `yaml:"log_level"`         // GORM logger level: Silent, Error, Warn, Info
}

// NamespaceOrDefault returns the configured namespace or DefaultNamespace.
func (c Config) NamespaceOrDefault() string {
	if c.Namespace == "" {
		return DefaultNamespace
	}
	return c.Namespace
}

// DB is a wrapper around the gorm.DB client for PostgreSQL. It is created once per process
// and closed once at shutdown.
type DB struct {
	*gorm.DB
	Namespace string

	closeOnce sync.Once
	closeErr  error
}

// NewDB connects eagerly: an unreachable server fails here, wrapped in ErrConnect.
func NewDB(cfg Config, log *logrus.Logger) (*DB, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: empty connection string", ErrConnect)
	}

	pgxCfg, err := pgx.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid postgres connection string: %w", err)
	}

	namespace := cfg.NamespaceOrDefault()
	connectTimeout := cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}
	pgxCfg.ConnectTimeout = connectTimeout
	pgxCfg.RuntimeParams["search_path"] = namespace

	sqlDB := stdlib.OpenDB(*pgxCfg)

	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime != "" {
		duration, err := time.ParseDuration(cfg.ConnMaxLifetime)
		if err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("invalid connection max lifetime format '%s': %w", cfg.ConnMaxLifetime, err)
		}
		sqlDB.SetConnMaxLifetime(duration)
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("%w: ping %s:%d: %v", ErrConnect, pgxCfg.Host, pgxCfg.Port, err)
	}

	if _, err := sqlDB.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+pq.QuoteIdentifier(namespace)); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to create schema %q: %w", namespace, err)
	}

	gormConfig := &gorm.Config{
		Logger: NewGormLogger(log, cfg.LogLevel),
	}

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), gormConfig)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database using GORM: %w", err)
	}

	log.WithFields(logrus.Fields{
		"host":      pgxCfg.Host,
		"database":  pgxCfg.Database,
		"namespace": namespace,
	}).Info("Connected to PostgreSQL")

	return &DB{DB: db, Namespace: namespace}, nil
}

// NewGormLogger routes GORM's log output through logrus.
func NewGormLogger(log *logrus.Logger, level string) gormlogger.Interface {
	var gormLogLevel gormlogger.LogLevel
	switch level {
	case "Silent":
		gormLogLevel = gormlogger.Silent
	case "Error":
		gormLogLevel = gormlogger.Error
	case "Warn":
		gormLogLevel = gormlogger.Warn
	case "Info":
		gormLogLevel = gormlogger.Info
	default:
		gormLogLevel = gormlogger.Warn // Default to Warn
	}

	return gormlogger.New(log, gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  gormLogLevel,
		IgnoreRecordNotFoundError: true,
	})
}

// Close closes the database connection pool. Later calls return the first result.
func (d *DB) Close() error {
	d.closeOnce.Do(func() {
		if d.DB == nil {
			return
		}
		sqlDB, err := d.DB.DB()
		if err != nil {
			d.closeErr = fmt.Errorf("failed to get underlying sql.DB from GORM for closing: %w", err)
			return
		}
		d.closeErr = sqlDB.Close()
	})
	return d.closeErr
}
