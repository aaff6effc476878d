package sqlstore

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Dialect selects the SQL backend.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

func ParseDialect(s string) (Dialect, error) {
	switch Dialect(strings.ToLower(strings.TrimSpace(s))) {
	case DialectSQLite:
		return DialectSQLite, nil
	case DialectPostgres:
		return DialectPostgres, nil
	}
	return "", fmt.Errorf("unsupported sql dialect %q", s)
}

type Config struct {
	User           string          `env:"POSTGRES_USER,overwrite,default=postgres" toml:"user"`
	Password       string          `env:"POSTGRES_PASSWORD,overwrite,default=postgres" toml:"password"`
	Host           string          `env:"POSTGRES_HOST,overwrite,default=localhost" toml:"host"`
	Port           string          `env:"POSTGRES_PORT,overwrite,default=5432" toml:"port"`
	Database       string          `env:"POSTGRES_DB,overwrite,default=lorequeue" toml:"database"`
	SSLMode        string          `env:"POSTGRES_SSLMODE,overwrite,default=disable" toml:"sslmode"`
	SQLitePath     string          `env:"SQLITE_PATH,overwrite,default=lorequeue.db" toml:"sqlite_path"`
	ConnectTimeout int             `env:"DB_CONNECT_TIMEOUT,overwrite,default=5" toml:"connect_timeout"`
	MaxRetries     int             `env:"DB_MAX_RETRIES,overwrite,default=10" toml:"max_retries"`
	RetryDelay     time.Duration   `env:"DB_RETRY_DELAY,overwrite,default=2s" toml:"-"`
	LogLevelString string          `env:"DB_LOG_LEVEL,overwrite,default=warn" toml:"log_level"`
	LogLevel       logger.LogLevel `toml:"-"`
}

// to help with testing
var envProcess = envconfig.Process

func LoadConfigFromEnv(ctx context.Context, dialect Dialect) (*Config, error) {
	var cfg Config
	if err := envProcess(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}

	if err := validateConfig(dialect, &cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	cfg.LogLevel = ParseLogLevel(cfg.LogLevelString)
	return &cfg, nil
}

// Validate checks the fields the dialect needs.
func (c *Config) Validate(dialect Dialect) error {
	return validateConfig(dialect, c)
}

func validateConfig(dialect Dialect, cfg *Config) error {
	var errors []string

	switch dialect {
	case DialectPostgres:
		if strings.TrimSpace(cfg.User) == "" {
			errors = append(errors, "POSTGRES_USER is required")
		}
		if strings.TrimSpace(cfg.Database) == "" {
			errors = append(errors, "POSTGRES_DB is required")
		}
		if strings.TrimSpace(cfg.Host) == "" {
			errors = append(errors, "POSTGRES_HOST is required")
		}
		if strings.TrimSpace(cfg.Port) == "" {
			errors = append(errors, "POSTGRES_PORT is required")
		} else {
			port, err := strconv.Atoi(cfg.Port)
			if err != nil {
				errors = append(errors, "POSTGRES_PORT must be a valid number")
			} else if port < 1 || port > 65535 {
				errors = append(errors, "POSTGRES_PORT must be between 1 and 65535")
			}
		}
	case DialectSQLite:
		if strings.TrimSpace(cfg.SQLitePath) == "" {
			errors = append(errors, "SQLITE_PATH is required")
		}
	default:
		errors = append(errors, fmt.Sprintf("unsupported sql dialect %q", dialect))
	}

	if cfg.ConnectTimeout < 0 {
		errors = append(errors, "DB_CONNECT_TIMEOUT must be non-negative")
	}

	if cfg.MaxRetries < 0 {
		errors = append(errors, "DB_MAX_RETRIES must be non-negative")
	}

	if cfg.RetryDelay <= 0 {
		errors = append(errors, "DB_RETRY_DELAY must be positive")
	}

	if cfg.RetryDelay > 10*time.Minute {
		errors = append(errors, "DB_RETRY_DELAY must not exceed 10 minutes")
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, "; "))
	}

	return nil
}

// DSN builds the driver connection string for the dialect.
func (c *Config) DSN(dialect Dialect) string {
	if dialect == DialectPostgres {
		sslmode := c.SSLMode
		if sslmode == "" {
			sslmode = "disable"
		}
		dsn := fmt.Sprintf(
			"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
			c.Host, c.User, c.Password, c.Database, c.Port, sslmode,
		)
		if c.ConnectTimeout > 0 {
			dsn += fmt.Sprintf(" connect_timeout=%d", c.ConnectTimeout)
		}
		return dsn
	}
	if isMemoryPath(c.SQLitePath) {
		return "file::memory:?cache=shared&_foreign_keys=on"
	}
	return c.SQLitePath + "?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on&_txlock=immediate"
}

func isMemoryPath(path string) bool {
	return path == ":memory:" || strings.HasPrefix(path, "file::memory:")
}

func dialector(dialect Dialect, dsn string) gorm.Dialector {
	if dialect == DialectPostgres {
		return postgres.Open(dsn)
	}
	return sqlite.Open(dsn)
}

// ConnectDB opens the database and pings it, retrying up to MaxRetries times.
func ConnectDB(ctx context.Context, dialect Dialect, cfg *Config, log *slog.Logger) (*gorm.DB, error) {
	if log == nil {
		log = slog.Default()
	}
	if cfg == nil {
		loaded, err := LoadConfigFromEnv(ctx, dialect)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := validateConfig(dialect, cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	if cfg.LogLevel == 0 {
		cfg.LogLevel = ParseLogLevel(cfg.LogLevelString)
	}

	if dialect == DialectPostgres {
		log.Info("connecting to database", "dialect", dialect, "target",
			fmt.Sprintf("%s@%s:%s/%s", cfg.User, cfg.Host, cfg.Port, cfg.Database))
	} else {
		log.Info("connecting to database", "dialect", dialect, "path", cfg.SQLitePath)
	}

	gormConfig := &gorm.Config{
		Logger:  logger.Default.LogMode(cfg.LogLevel),
		NowFunc: func() time.Time { return time.Now().UTC() },
	}

	attempts := cfg.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("database connection canceled: %w", ctxErr)
		}
		log.Debug("database connect attempt", "attempt", i+1, "of", attempts)

		var gdb *gorm.DB
		gdb, err = gorm.Open(dialector(dialect, cfg.DSN(dialect)), gormConfig)
		if err == nil {
			sqlDB, dbErr := gdb.DB()
			if dbErr == nil {
				pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
				pingErr := sqlDB.PingContext(pingCtx)
				cancel()

				if pingErr == nil {
					if dialect == DialectPostgres {
						sqlDB.SetMaxIdleConns(10)
						sqlDB.SetMaxOpenConns(50)
						sqlDB.SetConnMaxLifetime(time.Hour)
					} else if isMemoryPath(cfg.SQLitePath) {
						sqlDB.SetMaxOpenConns(1)
					}
					log.Info("database connected", "dialect", dialect)
					return gdb, nil
				}
				err = pingErr
				_ = sqlDB.Close()
			} else {
				err = dbErr
			}
		}

		if i == attempts-1 {
			break
		}

		log.Warn("database not ready, retrying",
			"reason", simplifyDBError(err), "retry_in", cfg.RetryDelay)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("database connection canceled: %w", ctx.Err())
		case <-time.After(cfg.RetryDelay):
		}
	}

	return nil, fmt.Errorf("database connection failed after %d attempts: %s", attempts, simplifyDBError(err))
}

// simplifyDBError returns a user-friendly error message
func simplifyDBError(err error) string {
	if err == nil {
		return "database error"
	}
	msg := err.Error()

	switch {
	case strings.Contains(msg, "password authentication failed"):
		return "invalid database credentials"
	case strings.Contains(msg, "unable to open database file"):
		return "cannot open database file"
	case strings.Contains(msg, "database is locked"):
		return "database is locked"
	case strings.Contains(msg, "connect"):
		return "cannot reach database server"
	case strings.Contains(msg, "timeout"):
		return "database connection timed out"
	case strings.Contains(msg, "SASL"):
		return "authentication error"
	}

	return "database error"
}

// Convert string to logger.LogLevel
func ParseLogLevel(levelStr string) logger.LogLevel {
	switch strings.ToLower(levelStr) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "warn":
		return logger.Warn
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}
