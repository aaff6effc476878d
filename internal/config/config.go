package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joshu-sajeev/lorequeue/internal/queue"
	"github.com/joshu-sajeev/lorequeue/internal/storage"
	"github.com/joshu-sajeev/lorequeue/internal/storage/sqlstore"
	"github.com/pelletier/go-toml/v2"
	"github.com/sethvargo/go-envconfig"
)

// Duration accepts Go duration strings ("30s", "168h") from both the
// environment and the config file.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the process configuration shared by the api, worker and
// queuectl binaries. Values come from the optional TOML file first, then the
// environment overrides them.
type Config struct {
	Backend        string   `env:"QUEUE_BACKEND,overwrite,default=sqlite" toml:"backend"`
	SkipMigrations bool     `env:"QUEUE_SKIP_MIGRATIONS,overwrite" toml:"skip_migrations"`
	DisableListen  bool     `env:"QUEUE_DISABLE_LISTEN,overwrite" toml:"disable_listen"`
	LLMBatchSize   int      `env:"LLM_BATCH_SIZE,overwrite,default=4" toml:"llm_batch_size"`
	AssetBatchSize int      `env:"ASSET_BATCH_SIZE,overwrite,default=2" toml:"asset_batch_size"`
	Recovery       Duration `env:"QUEUE_RECOVERY_INTERVAL,overwrite,default=30s" toml:"recovery_interval"`
	SweepInterval  Duration `env:"QUEUE_SWEEP_INTERVAL,overwrite,default=10m" toml:"sweep_interval"`
	Retention      Duration `env:"QUEUE_RETENTION,overwrite,default=168h" toml:"retention"`
	ExpireAfter    Duration `env:"QUEUE_EXPIRE_AFTER,overwrite,default=24h" toml:"expire_after"`
	HTTPAddr       string   `env:"HTTP_ADDR,overwrite,default=:8080" toml:"http_addr"`
	LogLevel       string   `env:"LOG_LEVEL,overwrite,default=info" toml:"log_level"`
	LogFormat      string   `env:"LOG_FORMAT,overwrite,default=auto" toml:"log_format"`

	DB sqlstore.Config `toml:"database"`
}

// to help with testing
var envProcess = envconfig.Process

// Load reads the file named by LOREQUEUE_CONFIG, if any, then the
// environment.
func Load(ctx context.Context) (*Config, error) {
	return LoadFile(ctx, os.Getenv(FileEnv))
}

// LoadFile is Load with an explicit file path. An empty path skips the file;
// a named file that does not exist is an error.
func LoadFile(ctx context.Context, path string) (*Config, error) {
	var cfg Config

	if path = strings.TrimSpace(path); path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	if err := envProcess(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}

	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))
	cfg.DB.LogLevel = sqlstore.ParseLogLevel(cfg.DB.LogLevelString)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config file %s does not exist", path)
		}
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := toml.NewDecoder(file)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []string

	kind, err := storage.ParseKind(c.Backend)
	if err != nil {
		errs = append(errs, "QUEUE_BACKEND must be one of memory, sqlite, postgres")
	} else if kind != storage.KindMemory {
		if err := c.DB.Validate(sqlstore.Dialect(kind)); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if c.LLMBatchSize < 1 {
		errs = append(errs, "LLM_BATCH_SIZE must be at least 1")
	}
	if c.AssetBatchSize < 1 {
		errs = append(errs, "ASSET_BATCH_SIZE must be at least 1")
	}
	if c.Recovery <= 0 {
		errs = append(errs, "QUEUE_RECOVERY_INTERVAL must be positive")
	}
	if c.SweepInterval < 0 {
		errs = append(errs, "QUEUE_SWEEP_INTERVAL must not be negative")
	}
	if c.Retention < 0 {
		errs = append(errs, "QUEUE_RETENTION must not be negative")
	}
	if c.ExpireAfter < 0 {
		errs = append(errs, "QUEUE_EXPIRE_AFTER must not be negative")
	}
	if strings.TrimSpace(c.HTTPAddr) == "" {
		errs = append(errs, "HTTP_ADDR is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// Kind returns the parsed backend. Call after Validate.
func (c *Config) Kind() storage.Kind {
	kind, _ := storage.ParseKind(c.Backend)
	return kind
}

// StorageOptions maps the config onto storage.Open options.
func (c *Config) StorageOptions() storage.Options {
	db := c.DB
	return storage.Options{
		Kind:    c.Kind(),
		DB:      &db,
		Migrate: !c.SkipMigrations,
		Listen:  !c.DisableListen,
	}
}

// BatchSize returns the advisory processing capacity for a queue.
func (c *Config) BatchSize(queueName string) int {
	switch queueName {
	case QueueLLMRequests:
		return c.LLMBatchSize
	case QueueAssetGeneration:
		return c.AssetBatchSize
	default:
		return 1
	}
}

// SweepPolicy is the retention policy the worker janitor and queuectl apply.
func (c *Config) SweepPolicy() queue.SweepPolicy {
	return queue.SweepPolicy{
		ExpireAfter: c.ExpireAfter.Std(),
		Retention:   c.Retention.Std(),
	}
}
