package database

import (
	"fmt"
	"time"

	"labdesk/internal/config"
	"labdesk/internal/logger"
	"labdesk/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const maxAttempts = 10

// Open connects with retries (the database container may still be starting)
// and runs migrations.
func Open(cfg *config.Config, log *logger.Logger) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)

	gcfg := &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	}
	if !cfg.IsProduction() {
		gcfg.Logger = gormlogger.Default.LogMode(gormlogger.Warn)
	}

	for i := 1; i <= maxAttempts; i++ {
		log.Info("connecting to database", "driver", cfg.DBDriver, "attempt", i, "max", maxAttempts)

		db, err = gorm.Open(dialector(cfg), gcfg)
		if err == nil {
			break
		}

		log.Warn("database connection failed", "error", err)
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("connect to db after %d attempts: %w", maxAttempts, err)
	}

	if cfg.DBDriver == "sqlite" {
		// one writer at a time; concurrent sqlite connections hit SQLITE_BUSY
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	log.Info("database ready")
	return db, nil
}

func dialector(cfg *config.Config) gorm.Dialector {
	if cfg.DBDriver == "sqlite" {
		return sqlite.Open(cfg.DBDSN)
	}
	return postgres.Open(cfg.DBDSN)
}

// Models lists every table owned by the service.
func Models() []interface{} {
	out := []interface{}{
		&models.User{},
		&models.Client{},
		&models.Project{},
		&models.Test{},
		&models.Sample{},
		&models.SampleSet{},
		&models.SampleTest{},
		&models.AuditLog{},
		&models.Invoice{},
		&models.InvoiceItem{},
		&models.InvoiceSequence{},
		&models.Payment{},
	}
	return append(out, models.LogModels()...)
}

func Migrate(db *gorm.DB) error {
	for _, m := range Models() {
		if err := db.AutoMigrate(m); err != nil {
			return fmt.Errorf("automigrate %T: %w", m, err)
		}
	}
	return nil
}
