package gormstore

import (
	"fmt"
	"sync"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DialectorOpener returns a gorm.Dialector for a DSN.
type DialectorOpener = func(string) gorm.Dialector

var (
	registryMu sync.RWMutex
	dialects   = map[string]DialectorOpener{
		"sqlite":   sqlite.Open,
		"postgres": postgres.Open,
		"mysql":    mysql.Open,
	}
)

// Register adds or replaces a SQL dialect.
func Register(name string, opener DialectorOpener) {
	registryMu.Lock()
	defer registryMu.Unlock()
	dialects[name] = opener
}

// Open connects to the database named by dialect and dsn.
func Open(dialect, dsn string) (*gorm.DB, error) {
	registryMu.RLock()
	opener, ok := dialects[dialect]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("gormstore: unknown dialect %q", dialect)
	}

	db, err := gorm.Open(opener(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("gormstore: open %s: %w", dialect, err)
	}
	return db, nil
}
