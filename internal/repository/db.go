package repository

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	applog "finance-workspace/internal/logger"
)

// busyTimeoutMS is how long SQLite waits on a locked file before failing.
const busyTimeoutMS = 5000

// NewDB opens the SQLite cache at path and runs migrations.
func NewDB(path string, log zerolog.Logger) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("open db: empty path")
	}

	dsn := buildDSN(path)
	if err := ensureDirForSQLite(dsn); err != nil {
		return nil, err
	}

	dbLogger := logger.New(
		applog.PrintfWriter{Log: log, Component: "gorm"},
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: dbLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// PRAGMAs in the DSN are per connection; one connection keeps them honest.
	sqlDB.SetMaxOpenConns(1)

	var fk int
	if err := db.Raw("PRAGMA foreign_keys").Row().Scan(&fk); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("check foreign keys: %w", err)
	}
	if fk != 1 {
		sqlDB.Close()
		return nil, fmt.Errorf("check foreign keys: enforcement is off")
	}

	if err := Migrate(db, log); err != nil {
		sqlDB.Close()
		return nil, err
	}

	return db, nil
}

// buildDSN turns a file path into a go-sqlite3 DSN with the cache's pragmas.
func buildDSN(path string) string {
	if strings.HasPrefix(path, "file:") || strings.Contains(path, "?") {
		return path
	}
	return fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=%d", path, busyTimeoutMS)
}

// ensureDirForSQLite creates parent dir for SQLite file if needed.
func ensureDirForSQLite(dsn string) error {
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		return nil
	}
	clean := strings.TrimPrefix(dsn, "file:")
	clean = strings.Split(clean, "?")[0]
	dir := filepath.Dir(clean)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create db dir %q: %w", dir, err)
	}
	return nil
}
