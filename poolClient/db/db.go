// Package db opens the SQLite database that holds one contract's sync
// cursor, reconciled events and submitted commands.
package db

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pushchain/push-pool-client/poolClient/store"
)

const (
	// InMemorySQLiteDSN opens an ephemeral database that lives as long as its connection.
	InMemorySQLiteDSN = ":memory:"

	// fileDSNOptions enables WAL so readers do not block the poller's writes.
	fileDSNOptions = "?_journal_mode=WAL&_busy_timeout=5000&mode=rwc"

	dbDirPermissions = 0o750
)

var gormConfig = &gorm.Config{
	Logger: logger.Default.LogMode(logger.Silent),
}

// Models returns the tables owned by the pool client, in migration order.
func Models() []any {
	return []any{
		&store.ChainState{},
		&store.Event{},
		&store.Command{},
	}
}

// DB is an open pool database.
type DB struct {
	client *gorm.DB
	path   string
}

// OpenFileDB opens or creates <dir>/<filename>, creating dir if needed.
// With migrateSchema the pool tables are created or updated.
func OpenFileDB(dir, filename string, migrateSchema bool) (*DB, error) {
	if filename == "" {
		return nil, errors.New("database filename is required")
	}
	if err := os.MkdirAll(dir, dbDirPermissions); err != nil {
		return nil, errors.Wrapf(err, "failed to create database directory %s", dir)
	}

	path := filepath.Join(dir, filename)
	d, err := openSQLite(path+fileDSNOptions, migrateSchema)
	if err != nil {
		return nil, errors.Wrapf(err, "database %s", path)
	}
	d.path = path
	return d, nil
}

// OpenInMemoryDB opens a database that disappears on Close. Tests use it.
func OpenInMemoryDB(migrateSchema bool) (*DB, error) {
	return openSQLite(InMemorySQLiteDSN, migrateSchema)
}

func openSQLite(dsn string, migrateSchema bool) (*DB, error) {
	client, err := gorm.Open(sqlite.Open(dsn), gormConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open SQLite database")
	}

	// one connection: SQLite serializes writers anyway, and an in-memory
	// database only exists on the connection that created it
	sqlDB, err := client.DB()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get underlying sql.DB")
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	if migrateSchema {
		if err := client.AutoMigrate(Models()...); err != nil {
			_ = sqlDB.Close()
			return nil, errors.Wrap(err, "failed to migrate pool schema")
		}
	}

	return &DB{client: client}, nil
}

// Client returns the gorm handle for queries.
func (d *DB) Client() *gorm.DB {
	return d.client
}

// Path returns the database file, or "" for an in-memory database.
func (d *DB) Path() string {
	return d.path
}

// Transaction runs fn in a transaction, rolling back if it returns an error.
func (d *DB) Transaction(fn func(tx *gorm.DB) error) error {
	return d.client.Transaction(fn)
}

// Checkpoint folds the WAL back into the database file and truncates it.
// It is a no-op for in-memory databases.
func (d *DB) Checkpoint() error {
	if d.path == "" {
		return nil
	}
	return errors.Wrap(d.client.Exec("PRAGMA wal_checkpoint(TRUNCATE)").Error, "wal checkpoint")
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	sqlDB, err := d.client.DB()
	if err != nil {
		return errors.Wrap(err, "failed to retrieve native sql.DB")
	}
	return errors.Wrap(sqlDB.Close(), "failed to close database connection")
}
