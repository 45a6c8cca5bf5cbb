package db

import (
	"fmt"
	"os"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config selects the target database. Zero-valued fields fall back to the
// UUIDSHIFT_DB_TYPE and UUIDSHIFT_DB_DSN environment variables.
type Config struct {
	Type string
	DSN  string
}

func (c *Config) applyEnv() error {
	if c.DSN == "" {
		c.DSN = os.Getenv("UUIDSHIFT_DB_DSN")
		if c.DSN == "" {
			return fmt.Errorf("database DSN is required (use --db-dsn flag or UUIDSHIFT_DB_DSN environment variable)")
		}
	}
	if c.Type == "" {
		c.Type = os.Getenv("UUIDSHIFT_DB_TYPE")
		if c.Type == "" {
			c.Type = "postgres"
		}
	}
	return nil
}

// Connect opens a GORM connection for the configured database type.
func Connect(cfg Config) (*gorm.DB, error) {
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	var dialector gorm.Dialector
	switch cfg.Type {
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	case "sqlite", "sqlite3":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database type %q (expected postgres, mysql, or sqlite)", cfg.Type)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", cfg.Type, err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access connection pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return gdb, nil
}
