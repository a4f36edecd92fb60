package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	apperrors "tenantdb/pkg/errors"
	"tenantdb/pkg/logger"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// postgres SQLSTATE duplicate_database
const pgDuplicateDatabase = "42P04"

// CreateDatabase creates database name on the server described by p using
// p's credentials. Existing databases are left untouched. Errors wrap
// ErrDatabaseProvision.
func (r *Registry) CreateDatabase(ctx context.Context, p ConnParams, name string) error {
	if err := r.createDatabase(ctx, p, name); err != nil {
		return apperrors.Wrap(apperrors.ErrDatabaseProvision, err)
	}
	logger.GetLogger().Infof("Database %s is ready", name)
	return nil
}

func (r *Registry) createDatabase(ctx context.Context, p ConnParams, name string) error {
	if !ValidDatabaseName(name) {
		return fmt.Errorf("invalid database name %q", name)
	}
	admin := p.WithName("")
	if err := admin.Validate(); err != nil {
		return err
	}
	if p.Driver == DriverSQLite {
		return createSQLiteFile(admin.WithName(name))
	}

	db, err := r.openAdmin(ctx, admin)
	if err != nil {
		return err
	}
	defer closeDB(db)

	return createOn(ctx, db, p.Driver, name)
}

// createOn issues the dialect specific, idempotent CREATE DATABASE.
func createOn(ctx context.Context, db *gorm.DB, driver, name string) error {
	if !ValidDatabaseName(name) {
		return fmt.Errorf("invalid database name %q", name)
	}

	switch driver {
	case DriverPostgres:
		var count int64
		if err := db.WithContext(ctx).Raw("SELECT count(*) FROM pg_database WHERE datname = ?", name).Scan(&count).Error; err != nil {
			return fmt.Errorf("check database %s: %w", name, err)
		}
		if count > 0 {
			return nil
		}
		err := db.WithContext(ctx).Exec("CREATE DATABASE " + quoteIdent(driver, name)).Error
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgDuplicateDatabase {
			return nil
		}
		return err
	case DriverMySQL:
		return db.WithContext(ctx).Exec("CREATE DATABASE IF NOT EXISTS " + quoteIdent(driver, name) +
			" CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci").Error
	default:
		return fmt.Errorf("unsupported driver %q", driver)
	}
}

func createSQLiteFile(p ConnParams) error {
	if err := os.MkdirAll(p.Host, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(p.SQLitePath(), os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return err
	}
	return f.Close()
}

func quoteIdent(driver, name string) string {
	if driver == DriverMySQL {
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
