// Package postgres provides database connection management and the
// transcript repository backing usage counting.
package postgres

import (
	"context"
	"fmt"
	"time"

	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/scribeflow/gatekeeper/internal/config"
	"github.com/scribeflow/gatekeeper/internal/domain/models"
	"github.com/scribeflow/gatekeeper/pkg/logger"
)

// DBConnection manages the database handle and its pool settings.
type DBConnection struct {
	db     *gorm.DB
	logger logger.Logger
}

// NewDBConnection opens the database, applies pool settings, and verifies
// connectivity.
func NewDBConnection(ctx context.Context, cfg *config.DatabaseConfig, log logger.Logger) (*DBConnection, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration is required")
	}

	db, err := gorm.Open(gormpostgres.Open(cfg.GetDSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("database open failed: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle unavailable: %w", err)
	}

	if cfg.MaxConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MinConns)
	}
	if cfg.MaxConnLifetime > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.MaxConnLifetime) * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	log.Info(ctx, "database connection established",
		logger.String("host", cfg.Host),
		logger.String("database", cfg.Database),
	)

	return &DBConnection{
		db:     db,
		logger: log.WithComponent("db_connection"),
	}, nil
}

// DB returns the underlying gorm handle for repository implementations.
func (c *DBConnection) DB() *gorm.DB {
	return c.db
}

// Migrate creates or updates the schema for the persisted models.
func (c *DBConnection) Migrate() error {
	return c.db.AutoMigrate(&models.Transcript{})
}

// Ping verifies database connectivity.
func (c *DBConnection) Ping(ctx context.Context) error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (c *DBConnection) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
