package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
	"gorm.io/gorm"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrations embed.FS

// DialectOf reports the dialect behind an open gorm handle.
func DialectOf(db *gorm.DB) (Dialect, error) {
	return ParseDialect(db.Dialector.Name())
}

func newProvider(db *sql.DB, dialect Dialect) (*goose.Provider, error) {
	var gooseDialect goose.Dialect
	switch dialect {
	case DialectSQLite:
		gooseDialect = goose.DialectSQLite3
	case DialectPostgres:
		gooseDialect = goose.DialectPostgres
	default:
		return nil, fmt.Errorf("unsupported sql dialect %q", dialect)
	}

	fsys, err := fs.Sub(migrations, "migrations/"+string(dialect))
	if err != nil {
		return nil, fmt.Errorf("open migrations: %w", err)
	}

	provider, err := goose.NewProvider(gooseDialect, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("create migration provider: %w", err)
	}
	return provider, nil
}

// MigrateSQL applies every pending migration for the dialect and returns the
// number applied.
func MigrateSQL(ctx context.Context, db *sql.DB, dialect Dialect) (int, error) {
	provider, err := newProvider(db, dialect)
	if err != nil {
		return 0, err
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return len(results), fmt.Errorf("run migrations: %w", err)
	}
	return len(results), nil
}

// Migrate is MigrateSQL for an open gorm handle.
func Migrate(ctx context.Context, db *gorm.DB) (int, error) {
	dialect, err := DialectOf(db)
	if err != nil {
		return 0, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return 0, fmt.Errorf("get sql db: %w", err)
	}
	return MigrateSQL(ctx, sqlDB, dialect)
}

// MigrationVersion returns the highest applied migration version.
func MigrationVersion(ctx context.Context, db *gorm.DB) (int64, error) {
	dialect, err := DialectOf(db)
	if err != nil {
		return 0, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return 0, fmt.Errorf("get sql db: %w", err)
	}
	provider, err := newProvider(sqlDB, dialect)
	if err != nil {
		return 0, err
	}
	return provider.GetDBVersion(ctx)
}
