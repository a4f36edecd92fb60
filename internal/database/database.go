package database

import (
	"context"
	"fmt"
	"time"

	"tenantdb/pkg/config"
	"tenantdb/pkg/logger"

	"gorm.io/gorm"
)

// PoolConfig sizes the sql.DB pool of one connection.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
}

// Opener opens and verifies a connection. Registry uses it for tenant
// databases so tests can substitute their own.
type Opener func(ctx context.Context, p ConnParams) (*gorm.DB, error)

// Open connects with p, sizes the pool and pings within ctx.
func Open(ctx context.Context, p ConnParams, pool PoolConfig) (*gorm.DB, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	dialector, err := p.Dialector()
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:               logger.Gorm(),
		DisableAutomaticPing: true,
		TranslateError:       true,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database %q: %w", p.Driver, p.Name, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	if pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(pool.ConnMaxIdleTime)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping %s database %q: %w", p.Driver, p.Name, err)
	}
	return db, nil
}

// OpenerWithPool adapts Open to the Opener signature.
func OpenerWithPool(pool PoolConfig) Opener {
	return func(ctx context.Context, p ConnParams) (*gorm.DB, error) {
		return Open(ctx, p, pool)
	}
}

// CentralParams returns the central database parameters from cfg.
func CentralParams(cfg *config.Config) ConnParams {
	return ConnParams{
		Driver:   cfg.Database.Driver,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Name:     cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	}
}

// DB is the central database connection.
var DB *gorm.DB

// Initialize opens the central database.
func Initialize(cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Tenancy.ConnectTimeout)
	defer cancel()

	db, err := Open(ctx, CentralParams(cfg), PoolConfig{
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		return err
	}
	DB = db
	logger.GetLogger().Infof("Connected to central %s database %s", cfg.Database.Driver, cfg.Database.DBName)
	return nil
}

// GetDB returns the central database connection.
func GetDB() *gorm.DB {
	return DB
}

// Close closes the central database connection.
func Close() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
