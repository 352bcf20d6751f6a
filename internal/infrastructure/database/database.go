package database

import (
	"strings"

	"handyhub-backend/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const sqlitePrefix = "sqlite://"

// Open opens a GORM DB from DSN. Postgres URLs use PreferSimpleProtocol to
// avoid 42P05 ("prepared statement already exists") behind poolers such as
// PgBouncer. A "sqlite://<path>" DSN opens a local sqlite file for development.
func Open(dsn string) (*gorm.DB, error) {
	if strings.HasPrefix(dsn, sqlitePrefix) {
		return OpenSQLite(strings.TrimPrefix(dsn, sqlitePrefix))
	}
	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
}

// OpenSQLite opens a sqlite database limited to a single connection, so
// ":memory:" databases are shared by every caller and writers serialize.
func OpenSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// AutoMigrate runs migrations for the marketplace engine tables. Profiles
// belong to the user directory; they are migrated only for local and test
// databases where no directory service owns the table.
func AutoMigrate(db *gorm.DB, withProfiles bool) error {
	models := []interface{}{
		&domain.Listing{},
		&domain.Bid{},
		&domain.Claim{},
		&domain.Assignment{},
		&domain.ListingEvent{},
	}
	if withProfiles {
		models = append(models, &domain.Profile{})
	}
	return db.AutoMigrate(models...)
}
