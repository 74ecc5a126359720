// Package dbtest provides in-memory databases for package tests.
package dbtest

import (
	"testing"

	"github.com/bookstore/catalog/internal/db"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// New returns a migrated in-memory SQLite database. A single connection
// keeps every query on the same in-memory database.
func New(t testing.TB) *db.DB {
	t.Helper()

	database, err := db.Open(sqlite.Open("file::memory:?_foreign_keys=on"), db.PoolConfig{
		MaxIdleConns: 1,
		MaxOpenConns: 1,
	}, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations(database))

	t.Cleanup(func() {
		_ = database.Close()
	})
	return database
}
