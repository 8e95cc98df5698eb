package datastore

import (
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"radioval/internal/conf"
	"radioval/internal/errors"
)

// SQLiteStore implements Interface on SQLite.
type SQLiteStore struct {
	DataStore
	Settings *conf.Settings
}

// Open sets up the SQLite database connection and migrates the artifact
// tables.
func (store *SQLiteStore) Open() error {
	path := store.Settings.Output.SQLite.Path
	if path == "" {
		return errors.Newf("sqlite store enabled without a path").
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if path != ":memory:" && !filepath.IsAbs(path) {
		path = filepath.Join(store.Settings.Main.OutputDir, path)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: newGormLogger(store.log)})
	if err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("driver", "sqlite").
			Context("path", path).
			Build()
	}

	store.DB = db
	if err := performAutoMigration(db); err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "migrate").
			Build()
	}
	store.log.Info("opened artifact store", "driver", "sqlite", "path", path)
	return nil
}

// Close closes the underlying connection.
func (store *SQLiteStore) Close() error {
	if store.DB == nil {
		return nil
	}
	sqlDB, err := store.DB.DB()
	if err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return sqlDB.Close()
}
