package database

import (
	"fmt"
	"strings"

	"github.com/m-barthelemy/placeshare/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to the database configured by DBTYPE and DBDSN.
// Unique constraint violations are reported as gorm.ErrDuplicatedKey.
func Open(config *models.Config) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	}
	if config.Debug {
		gormConfig.Logger = logger.Default.LogMode(logger.Info)
	}

	var db *gorm.DB
	var err error
	switch strings.ToLower(config.DbType) {
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(config.DbDSN), gormConfig)
	case "postgres":
		db, err = gorm.Open(postgres.Open(config.DbDSN), gormConfig)
	case "mysql":
		db, err = gorm.Open(mysql.Open(config.DbDSN), gormConfig)
	default:
		return nil, fmt.Errorf("unknown DbType '%s'", config.DbType)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if strings.ToLower(config.DbType) == "sqlite" {
		// sqlite serializes writers: a single connection avoids "database is locked" inside transactions.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// Migrate creates or updates the schema of every persisted model.
func Migrate(db *gorm.DB) error {
	toMigrate := []interface{}{
		&models.User{},
		&models.Place{},
		&models.UserPlace{},
		&models.Follow{},
		&models.Notification{},
		&models.PushSubscription{},
	}
	for _, model := range toMigrate {
		if err := db.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to run database migrations for %T: %w", model, err)
		}
	}
	log.Debugf("Database: migrated %d models", len(toMigrate))
	return nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
