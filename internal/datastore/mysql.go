package datastore

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"radioval/internal/conf"
	"radioval/internal/errors"
)

// MySQLStore implements Interface on MySQL.
type MySQLStore struct {
	DataStore
	Settings *conf.Settings
}

// Open sets up the MySQL database connection and migrates the artifact
// tables.
func (store *MySQLStore) Open() error {
	cfg := store.Settings.Output.MySQL
	if cfg.Database == "" || cfg.Host == "" {
		return errors.Newf("mysql store enabled without host or database").
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: newGormLogger(store.log)})
	if err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("driver", "mysql").
			Context("host", cfg.Host).
			Context("database", cfg.Database).
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
	store.log.Info("opened artifact store", "driver", "mysql", "host", cfg.Host, "database", cfg.Database)
	return nil
}

// Close closes the underlying connection.
func (store *MySQLStore) Close() error {
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
