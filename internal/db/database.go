package db

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/matheuscascao/attendance-registry/config"
	"github.com/matheuscascao/attendance-registry/internal/core/models"

	"github.com/glebarez/sqlite" // pure Go SQLite driver
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Initialize opens the SQLite database and runs migrations.
func Initialize(cfg config.DBConfig) (*gorm.DB, error) {
	if cfg.File != "" {
		dbDir := filepath.Dir(cfg.File)
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	gormLogger := logger.New(
		log.StandardLogger(),
		logger.Config{
			SlowThreshold:             time.Second * 2,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	log.Infof("Connecting to database: %s", cfg.File)
	db, err := gorm.Open(sqlite.Open(cfg.File), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Info("Running database migrations...")
	if err := db.AutoMigrate(
		&models.AttendanceRecord{},
	); err != nil {
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	log.Info("Database initialization complete")
	return db, nil
}
