package db

import (
	"fmt"
	"time"

	"github.com/surajs41/RideEasy-Rental/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type Options struct {
	MaxOpenConns int
	MaxIdleConns int
}

// Now is the clock used for every persisted timestamp: UTC, truncated to the
// microsecond precision postgres keeps, so values read back compare equal.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func ConnectDatabase(driver, dsn string, opts Options) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		NowFunc:        Now,
		TranslateError: true,
	})

	if err != nil {
		return nil, fmt.Errorf("gorm open: %w", err)
	}

	sqlDB, err := db.DB()

	if err != nil {
		return nil, fmt.Errorf("db.DB(): %w", err)
	}

	if driver == "sqlite" {
		// every connection to an in-memory sqlite database is a separate database
		sqlDB.SetMaxOpenConns(1)
		return db, nil
	}

	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	}

	return db, nil
}

func MigrateDatabase(db *gorm.DB) error {
	models := []interface{}{
		&models.Booking{},
		&models.BookingEvent{},
		&models.Notification{},
	}

	for _, model := range models {
		if err := db.AutoMigrate(model); err != nil {
			return fmt.Errorf("migrate %T: %w", model, err)
		}
	}

	return nil
}

// OpenMemory returns a migrated in-memory sqlite database.
func OpenMemory() (*gorm.DB, error) {
	db, err := ConnectDatabase("sqlite", ":memory:", Options{})

	if err != nil {
		return nil, err
	}

	if err := MigrateDatabase(db); err != nil {
		return nil, err
	}

	return db, nil
}
