package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the whole process configuration.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Tenancy    TenancyConfig
	JWT        JWTConfig
	Log        LogConfig
	Redis      RedisConfig
	Credential CredentialConfig
	CORS       CORSConfig
}

type ServerConfig struct {
	Port string
	Mode string
}

// DatabaseConfig describes the central database. Tenant databases inherit
// Driver and SSLMode, and fall back to Host/Port/User/Password when the
// provisioning command does not override them.
type DatabaseConfig struct {
	Driver       string // postgres, mysql or sqlite
	Host         string // for sqlite: directory holding the database files
	Port         string
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type TenancyConfig struct {
	Header         string        // request header carrying the tenant id
	ConnCacheSize  int           // open tenant connections kept in the registry
	ConnIdleTTL    time.Duration // idle tenant connections older than this are closed
	ConnSweep      string        // cron spec of the idle connection janitor
	ConnectTimeout time.Duration
	CacheTTL       time.Duration // tenant directory cache, 0 disables
}

type JWTConfig struct {
	SecretKey       string
	Issuer          string
	TokenDuration   string // e.g. "1h"
	RefreshDuration string // refresh window counted from issuance, e.g. "14d"
}

type LogConfig struct {
	Level      string
	FilePath   string
	MaxSize    int // MB
	MaxBackups int
	MaxAge     int // days
	Compress   bool
	Format     string // json or text
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	Prefix   string
}

type CredentialConfig struct {
	EncryptionKey string // 32 bytes for AES-256
}

type CORSConfig struct {
	AllowOrigins     []string
	AllowMethods     []string
	AllowHeaders     []string
	ExposeHeaders    []string
	AllowCredentials bool
	MaxAge           int // hours
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true"
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// comma separated, blanks dropped
func getEnvAsStringArray(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return defaultValue
}

// ParseDuration extends time.ParseDuration with a "d" (24h) unit, so values
// such as "7d" or "1d12h" are accepted.
func ParseDuration(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	idx := strings.Index(value, "d")
	if idx < 0 {
		return time.ParseDuration(value)
	}
	days, err := strconv.Atoi(value[:idx])
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", value)
	}
	total := time.Duration(days) * 24 * time.Hour
	if rest := value[idx+1:]; rest != "" {
		d, err := time.ParseDuration(rest)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", value)
		}
		total += d
	}
	return total, nil
}

func defaultPort(driver string) string {
	if driver == "mysql" {
		return "3306"
	}
	return "5432"
}

// LoadConfig reads .env when present and the environment.
func LoadConfig() (*Config, error) {
	// a missing .env is fine, the environment may be set by the runtime
	_ = godotenv.Load()

	driver := getEnv("DB_DRIVER", "postgres")
	switch driver {
	case "postgres", "mysql", "sqlite":
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", driver)
	}

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Mode: getEnv("SERVER_MODE", "debug"),
		},
		Database: DatabaseConfig{
			Driver:       driver,
			Host:         getEnv("DB_HOST", "127.0.0.1"),
			Port:         getEnv("DB_PORT", defaultPort(driver)),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", ""),
			DBName:       getEnv("DB_NAME", "central"),
			SSLMode:      getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		},
		Tenancy: TenancyConfig{
			Header:         getEnv("TENANT_HEADER", "X-Tenant-Id"),
			ConnCacheSize:  getEnvAsInt("TENANT_CONN_CACHE_SIZE", 100),
			ConnIdleTTL:    getEnvAsDuration("TENANT_CONN_IDLE_TTL", 10*time.Minute),
			ConnSweep:      getEnv("TENANT_CONN_SWEEP", "@every 1m"),
			ConnectTimeout: getEnvAsDuration("TENANT_CONNECT_TIMEOUT", 5*time.Second),
			CacheTTL:       getEnvAsDuration("TENANT_CACHE_TTL", 5*time.Minute),
		},
		JWT: JWTConfig{
			SecretKey:       getEnv("JWT_SECRET_KEY", "default-secret-change-me"),
			Issuer:          getEnv("JWT_ISSUER", "tenantdb"),
			TokenDuration:   getEnv("JWT_TOKEN_DURATION", "1h"),
			RefreshDuration: getEnv("JWT_REFRESH_DURATION", "14d"),
		},
		Log: LogConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			FilePath:   getEnv("LOG_FILE_PATH", "logs/app.log"),
			MaxSize:    getEnvAsInt("LOG_MAX_SIZE", 100),
			MaxBackups: getEnvAsInt("LOG_MAX_BACKUPS", 7),
			MaxAge:     getEnvAsInt("LOG_MAX_AGE", 30),
			Compress:   getEnvAsBool("LOG_COMPRESS", true),
			Format:     getEnv("LOG_FORMAT", "json"),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Prefix:   getEnv("REDIS_PREFIX", "tenantdb"),
		},
		Credential: CredentialConfig{
			EncryptionKey: getEnv("CREDENTIAL_ENCRYPTION_KEY", "tenantdb-credential-encryption-k"),
		},
		CORS: CORSConfig{
			AllowOrigins:     getEnvAsStringArray("CORS_ALLOW_ORIGINS", []string{"*"}),
			AllowMethods:     getEnvAsStringArray("CORS_ALLOW_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"}),
			AllowHeaders:     getEnvAsStringArray("CORS_ALLOW_HEADERS", []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With", "X-Tenant-Id"}),
			ExposeHeaders:    getEnvAsStringArray("CORS_EXPOSE_HEADERS", []string{"Content-Length", "Content-Type"}),
			AllowCredentials: getEnvAsBool("CORS_ALLOW_CREDENTIALS", false),
			MaxAge:           getEnvAsInt("CORS_MAX_AGE", 12),
		},
	}

	return config, nil
}
