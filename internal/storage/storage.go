// Package storage selects and opens the queue backend.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joshu-sajeev/lorequeue/internal/queue"
	"github.com/joshu-sajeev/lorequeue/internal/storage/memory"
	"github.com/joshu-sajeev/lorequeue/internal/storage/pgnotify"
	"github.com/joshu-sajeev/lorequeue/internal/storage/sqlstore"
	"gorm.io/gorm"
)

type Kind string

const (
	KindMemory   Kind = "memory"
	KindSQLite   Kind = "sqlite"
	KindPostgres Kind = "postgres"
)

func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindMemory:
		return KindMemory, nil
	case KindSQLite:
		return KindSQLite, nil
	case KindPostgres:
		return KindPostgres, nil
	}
	return "", fmt.Errorf("unknown queue backend %q (want memory, sqlite or postgres)", s)
}

type Options struct {
	Kind Kind
	DB   *sqlstore.Config
	// Migrate applies pending schema migrations after connecting.
	Migrate bool
	// Listen relays postgres notifications from other processes. Ignored by
	// the other backends.
	Listen bool
}

// Backend is an opened store plus the notifiers bound to it.
type Backend struct {
	Kind Kind
	Repo queue.Repository
	// DB is nil for the memory backend.
	DB *gorm.DB

	hub       *queue.Hub
	publisher *pgnotify.Publisher
	stop      context.CancelFunc
	done      chan struct{}
	logger    *slog.Logger
}

func Open(ctx context.Context, opts Options, logger *slog.Logger) (*Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Backend{Kind: opts.Kind, hub: queue.NewHub(), logger: logger}

	if opts.Kind == KindMemory {
		b.Repo = memory.NewRepository()
		logger.Warn("using in-memory queue backend; items are lost on restart")
		return b, nil
	}

	dialect, err := sqlstore.ParseDialect(string(opts.Kind))
	if err != nil {
		return nil, err
	}

	db, err := sqlstore.ConnectDB(ctx, dialect, opts.DB, logger)
	if err != nil {
		return nil, err
	}
	b.DB = db
	b.Repo = sqlstore.NewQueueRepository(db)

	if opts.Migrate {
		n, err := sqlstore.Migrate(ctx, db)
		if err != nil {
			_ = b.Close()
			return nil, err
		}
		logger.Info("schema migrations applied", "count", n)
	}

	if dialect == sqlstore.DialectPostgres {
		b.publisher = pgnotify.NewPublisher(db, logger)
		if opts.Listen {
			if err := b.listen(opts.DB); err != nil {
				_ = b.Close()
				return nil, err
			}
		}
	}

	return b, nil
}

func (b *Backend) listen(cfg *sqlstore.Config) error {
	if cfg == nil {
		return errors.New("listen requires an explicit database config")
	}
	l, err := pgnotify.NewListener(cfg.DSN(sqlstore.DialectPostgres), b.hub, b.logger)
	if err != nil {
		return fmt.Errorf("start notification listener: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	b.stop = cancel
	b.done = make(chan struct{})
	go func() {
		defer close(b.done)
		l.Run(ctx)
	}()
	return nil
}

// Notifier returns the enqueue hook for a queue: the local broadcaster and,
// on postgres, a pg_notify publisher.
func (b *Backend) Notifier(queueName string) queue.Notifier {
	local := b.hub.For(queueName)
	if b.publisher == nil {
		return local
	}
	return queue.Notifiers{local, b.publisher.For(queueName)}
}

// Waiter returns the broadcaster workers block on for a queue.
func (b *Backend) Waiter(queueName string) *queue.Broadcaster {
	return b.hub.For(queueName)
}

func (b *Backend) Close() error {
	if b.stop != nil {
		b.stop()
		<-b.done
	}
	if b.publisher != nil {
		b.publisher.Wait()
	}
	if b.DB == nil {
		return nil
	}
	sqlDB, err := b.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
