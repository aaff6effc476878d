package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/joshu-sajeev/lorequeue/internal/storage"
	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

func withEnv(t *testing.T, env map[string]string) {
	t.Helper()
	original := envProcess
	t.Cleanup(func() { envProcess = original })

	envProcess = func(ctx context.Context, v any, mus ...envconfig.Mutator) error {
		return envconfig.ProcessWith(ctx, &envconfig.Config{
			Target:   v,
			Lookuper: envconfig.MapLookuper(env),
			Mutators: mus,
		})
	}
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lorequeue.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFile_Defaults(t *testing.T) {
	withEnv(t, map[string]string{})

	cfg, err := LoadFile(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Backend)
	assert.Equal(t, storage.KindSQLite, cfg.Kind())
	assert.Equal(t, 4, cfg.LLMBatchSize)
	assert.Equal(t, 2, cfg.AssetBatchSize)
	assert.Equal(t, 30*time.Second, cfg.Recovery.Std())
	assert.Equal(t, 10*time.Minute, cfg.SweepInterval.Std())
	assert.Equal(t, 168*time.Hour, cfg.Retention.Std())
	assert.Equal(t, 24*time.Hour, cfg.ExpireAfter.Std())
	assert.Equal(t, DefaultHTTPAddr, cfg.HTTPAddr)
	assert.Equal(t, "lorequeue.db", cfg.DB.SQLitePath)
	assert.Equal(t, logger.Warn, cfg.DB.LogLevel)

	opts := cfg.StorageOptions()
	assert.True(t, opts.Migrate)
	assert.True(t, opts.Listen)
}

func TestLoadFile_FileThenEnv(t *testing.T) {
	path := writeFile(t, `
backend = "postgres"
llm_batch_size = 8
retention = "72h"
log_format = "json"

[database]
host = "db.internal"
database = "lore"
user = "lore"
`)
	withEnv(t, map[string]string{
		"LLM_BATCH_SIZE": "16",
		"POSTGRES_PORT":  "6543",
	})

	cfg, err := LoadFile(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, storage.KindPostgres, cfg.Kind())
	assert.Equal(t, 16, cfg.LLMBatchSize, "env wins over file")
	assert.Equal(t, 72*time.Hour, cfg.Retention.Std(), "file wins over default")
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "db.internal", cfg.DB.Host)
	assert.Equal(t, "lore", cfg.DB.Database)
	assert.Equal(t, "6543", cfg.DB.Port)
}

func TestLoad_UsesConfigEnv(t *testing.T) {
	path := writeFile(t, `backend = "memory"`)
	t.Setenv(FileEnv, path)
	withEnv(t, map[string]string{})

	cfg, err := Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, storage.KindMemory, cfg.Kind())
}

func TestLoadFile_Errors(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		env      map[string]string
		contains string
	}{
		{
			name:     "unknown file key",
			file:     `bakend = "sqlite"`,
			contains: "parse config",
		},
		{
			name:     "bad duration in file",
			file:     `retention = "a week"`,
			contains: "parse config",
		},
		{
			name:     "bad env value",
			env:      map[string]string{"LLM_BATCH_SIZE": "many"},
			contains: "failed to process env config",
		},
		{
			name:     "unknown backend",
			env:      map[string]string{"QUEUE_BACKEND": "redis"},
			contains: "QUEUE_BACKEND must be one of",
		},
		{
			name:     "zero batch size",
			env:      map[string]string{"ASSET_BATCH_SIZE": "0"},
			contains: "ASSET_BATCH_SIZE must be at least 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := ""
			if tt.file != "" {
				path = writeFile(t, tt.file)
			}
			withEnv(t, tt.env)

			_, err := LoadFile(context.Background(), path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestLoadFile_MissingFile(t *testing.T) {
	withEnv(t, map[string]string{})

	_, err := LoadFile(context.Background(), filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			Backend:        "memory",
			LLMBatchSize:   1,
			AssetBatchSize: 1,
			Recovery:       Duration(time.Second),
			HTTPAddr:       ":8080",
		}
	}

	tests := []struct {
		name     string
		mutate   func(*Config)
		contains []string
	}{
		{name: "valid memory"},
		{
			name: "postgres checks database fields",
			mutate: func(c *Config) {
				c.Backend = "postgres"
				c.DB.RetryDelay = time.Second
			},
			contains: []string{"POSTGRES_USER is required", "POSTGRES_HOST is required"},
		},
		{
			name: "negative windows",
			mutate: func(c *Config) {
				c.Retention = Duration(-time.Second)
				c.ExpireAfter = Duration(-time.Second)
				c.SweepInterval = Duration(-time.Second)
			},
			contains: []string{"QUEUE_RETENTION", "QUEUE_EXPIRE_AFTER", "QUEUE_SWEEP_INTERVAL"},
		},
		{
			name: "recovery must be positive",
			mutate: func(c *Config) {
				c.Recovery = 0
			},
			contains: []string{"QUEUE_RECOVERY_INTERVAL must be positive"},
		},
		{
			name: "http addr",
			mutate: func(c *Config) {
				c.HTTPAddr = " "
			},
			contains: []string{"HTTP_ADDR is required"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			if tt.mutate != nil {
				tt.mutate(&cfg)
			}
			err := cfg.Validate()
			if len(tt.contains) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, s := range tt.contains {
				assert.Contains(t, err.Error(), s)
			}
		})
	}
}

func TestConfig_BatchSize(t *testing.T) {
	cfg := Config{LLMBatchSize: 4, AssetBatchSize: 2}

	assert.Equal(t, 4, cfg.BatchSize(QueueLLMRequests))
	assert.Equal(t, 2, cfg.BatchSize(QueueAssetGeneration))
	assert.Equal(t, 1, cfg.BatchSize(QueueApprovals))
	assert.Equal(t, 1, cfg.BatchSize(QueuePlayerActions))
}

func TestIsAllowedQueue(t *testing.T) {
	for _, q := range AllowedQueues {
		assert.True(t, IsAllowedQueue(q), q)
	}
	assert.False(t, IsAllowedQueue("default"))
}

func TestDuration_Text(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte(" 90s ")))
	assert.Equal(t, 90*time.Second, d.Std())

	out, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", string(out))

	assert.Error(t, d.UnmarshalText([]byte("soon")))
}
