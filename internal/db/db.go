package db

import (
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/maintrack/internal/models"
)

// Options tunes the connection pool.
type Options struct {
	MaxOpenConns int
	MaxIdleConns int
	Debug        bool
}

// New creates a new GORM database connection using the provided DSN.
func New(dsn string, opts Options, log *zap.Logger) (*gorm.DB, error) {
	level := logger.Warn
	if opts.Debug {
		level = logger.Info
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(level)})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	}

	log.Info("connected to database")
	return db, nil
}

// AutoMigrate creates or updates the tables the board reads and writes.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.Team{}, &models.Technician{}, &models.Equipment{}, &models.MaintenanceRequest{})
}
