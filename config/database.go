package config

import (
	"fmt"
	"log"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenDatabase connects gorm to MySQL using the configured credentials.
func OpenDatabase(settings *Settings, appLogger *logrus.Logger) (*gorm.DB, error) {
	// In production, suppress SQL logs unless explicitly re-enabled via DEBUG_SQL=true.
	logLevel := logger.Info
	if settings.IsProduction() && !settings.Database.DebugSQL {
		logLevel = logger.Warn
	}

	gormConfig := &gorm.Config{
		Logger: logger.New(
			log.New(appLogger.WriterLevel(logrus.InfoLevel), "", 0),
			logger.Config{
				LogLevel:                  logLevel,
				SlowThreshold:             500 * time.Millisecond,
				IgnoreRecordNotFoundError: true,
			},
		),
		SkipDefaultTransaction: true,
		TranslateError:         true,
	}

	db, err := gorm.Open(mysql.Open(settings.Database.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access database pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	appLogger.WithField("component", "database").Info("Database connected successfully")
	return db, nil
}
