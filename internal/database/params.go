package database

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"regexp"
	"strconv"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

var databaseNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,63}$`)

// ValidDatabaseName reports whether name is safe to interpolate into DDL.
func ValidDatabaseName(name string) bool {
	return databaseNamePattern.MatchString(name)
}

// ConnParams are plaintext connection parameters for one database.
// For sqlite, Host is the directory holding the database files.
type ConnParams struct {
	Driver   string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// Validate rejects malformed parameters before any network access.
func (p ConnParams) Validate() error {
	switch p.Driver {
	case DriverPostgres, DriverMySQL, DriverSQLite:
	default:
		return fmt.Errorf("unsupported driver %q", p.Driver)
	}
	if p.Name != "" && !ValidDatabaseName(p.Name) {
		return fmt.Errorf("invalid database name %q", p.Name)
	}
	if p.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if p.Driver == DriverSQLite {
		return nil
	}
	if port, err := strconv.Atoi(p.Port); err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("invalid database port %q", p.Port)
	}
	if p.User == "" {
		return fmt.Errorf("database user is required")
	}
	return nil
}

// Fingerprint identifies the parameter set without exposing the password.
func (p ConnParams) Fingerprint() string {
	sum := sha256.Sum256([]byte(p.Driver + "\x00" + p.Host + "\x00" + p.Port + "\x00" +
		p.User + "\x00" + p.Password + "\x00" + p.Name + "\x00" + p.SSLMode))
	return hex.EncodeToString(sum[:])
}

// WithName returns a copy pointing at another database on the same server.
func (p ConnParams) WithName(name string) ConnParams {
	p.Name = name
	return p
}

// SQLitePath is the file backing a sqlite database.
func (p ConnParams) SQLitePath() string {
	return filepath.Join(p.Host, p.Name+".db")
}

// Dialector builds the GORM dialector. An empty Name connects to the server
// without selecting a database (postgres falls back to its maintenance db).
func (p ConnParams) Dialector() (gorm.Dialector, error) {
	switch p.Driver {
	case DriverPostgres:
		name := p.Name
		if name == "" {
			name = "postgres"
		}
		sslMode := p.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		dsn := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(p.User, p.Password),
			Host:     net.JoinHostPort(p.Host, p.Port),
			Path:     "/" + name,
			RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
		}
		return postgres.Open(dsn.String()), nil
	case DriverMySQL:
		cfg := mysqldriver.NewConfig()
		cfg.User = p.User
		cfg.Passwd = p.Password
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(p.Host, p.Port)
		cfg.DBName = p.Name
		cfg.ParseTime = true
		cfg.Collation = "utf8mb4_unicode_ci"
		return mysql.Open(cfg.FormatDSN()), nil
	case DriverSQLite:
		if p.Name == "" {
			return nil, fmt.Errorf("sqlite requires a database name")
		}
		return sqlite.Open(p.SQLitePath() + "?_busy_timeout=5000&_foreign_keys=on"), nil
	default:
		return nil, fmt.Errorf("unsupported driver %q", p.Driver)
	}
}
