package db

import (
	"fmt"
	"log/slog"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"weatherstation-server/internal/config"
	accountstypes "weatherstation-server/internal/modules/accounts/types"
	weathertypes "weatherstation-server/internal/modules/weather/types"
)

// Open connects to the configured database and applies the pool settings.
// Postgres is the production driver; sqlite exists for tests and throwaway
// local runs.
func Open(cfg config.Config, logger *slog.Logger) (*gorm.DB, error) {
	var (
		gdb *gorm.DB
		err error
	)

	gormCfg := &gorm.Config{
		Logger: newSlogLogger(logger),
		// Surfaces unique violations as gorm.ErrDuplicatedKey on both drivers.
		TranslateError: true,
	}

	switch cfg.DB.Driver {
	case "postgres":
		gdb, err = gorm.Open(postgres.Open(cfg.DB.PostgresDSN()), gormCfg)
	case "sqlite":
		dsn := cfg.DB.DSN
		if dsn == "" {
			dsn = "file::memory:?cache=shared"
		}
		gdb, err = gorm.Open(sqlite.Open(dsn), gormCfg)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DB.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("db handle: %w", err)
	}
	if cfg.DB.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	}
	if cfg.DB.MaxIdleConns >= 0 {
		sqlDB.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	}
	if cfg.DB.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)
	}

	// Validate connectivity early
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	return gdb, nil
}

// Migrate applies the schema for every registered model.
func Migrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(
		&accountstypes.User{},
		&accountstypes.AuthToken{},
		&accountstypes.APIKey{},
		&weathertypes.Location{},
		&weathertypes.SensorType{},
		&weathertypes.Sensor{},
		&weathertypes.Measurement{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

func Close(gdb *gorm.DB) error {
	if gdb == nil {
		return nil
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return fmt.Errorf("db handle: %w", err)
	}
	return sqlDB.Close()
}
