package logger

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"tenantdb/pkg/config"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
	gormlogger "gorm.io/gorm/logger"
)

// Logger is usable before Initialize so packages and tests never see nil.
var Logger = logrus.New()

// Initialize configures level, format and file rotation from cfg.
func Initialize(cfg *config.Config) error {
	Logger = logrus.New()

	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	Logger.SetLevel(level)

	if cfg.Log.Format == "json" {
		Logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		Logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	if cfg.Log.FilePath != "" {
		logDir := filepath.Dir(cfg.Log.FilePath)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return err
		}

		rotateLogger := &lumberjack.Logger{
			Filename:   cfg.Log.FilePath,
			MaxSize:    cfg.Log.MaxSize,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAge:     cfg.Log.MaxAge,
			Compress:   cfg.Log.Compress,
		}

		Logger.SetOutput(io.MultiWriter(os.Stdout, rotateLogger))
	}

	return nil
}

// GetLogger returns the process logger.
func GetLogger() *logrus.Logger {
	return Logger
}

// WithTenant returns an entry tagged with the tenant id.
func WithTenant(tenantID string) *logrus.Entry {
	return Logger.WithField("tenant_id", tenantID)
}

// Gorm routes GORM's SQL logging into logrus. Slow queries are logged as
// warnings, everything else only at debug level.
func Gorm() gormlogger.Interface {
	level := gormlogger.Warn
	if Logger.IsLevelEnabled(logrus.DebugLevel) {
		level = gormlogger.Info
	}
	return gormlogger.New(Logger, gormlogger.Config{
		SlowThreshold:             500 * time.Millisecond,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
	})
}
