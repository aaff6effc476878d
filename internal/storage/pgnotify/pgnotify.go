// Package pgnotify relays enqueue notifications between processes sharing a
// postgres database using LISTEN/NOTIFY. Delivery is best effort: workers
// still poll on their recovery interval, so a lost notification only delays
// pickup.
package pgnotify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/joshu-sajeev/lorequeue/internal/queue"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Channel is the postgres notification channel. The payload is the queue
// name.
const Channel = "lorequeue_work"

const publishTimeout = 2 * time.Second

// Publisher issues pg_notify for a queue without blocking the caller.
type Publisher struct {
	db     *gorm.DB
	logger *slog.Logger
	wg     sync.WaitGroup
}

func NewPublisher(db *gorm.DB, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Publisher{db: db, logger: logger}
}

// Publish sends the notification in the background.
func (p *Publisher) Publish(queueName string) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()

		if err := p.db.WithContext(ctx).Exec("SELECT pg_notify(?, ?)", Channel, queueName).Error; err != nil {
			p.logger.Warn("pg_notify failed", "queue", queueName, "error", err)
		}
	}()
}

// Wait blocks until in-flight publishes finish.
func (p *Publisher) Wait() { p.wg.Wait() }

// For binds the publisher to one queue as an enqueue notifier.
func (p *Publisher) For(queueName string) QueueNotifier {
	return QueueNotifier{publisher: p, queue: queueName}
}

type QueueNotifier struct {
	publisher *Publisher
	queue     string
}

func (n QueueNotifier) NotifyWorkAvailable() {
	n.publisher.Publish(n.queue)
}

var _ queue.Notifier = QueueNotifier{}

// Listener relays postgres notifications on Channel to the hub's
// per-queue broadcasters.
type Listener struct {
	listener     *pq.Listener
	hub          *queue.Hub
	logger       *slog.Logger
	pingInterval time.Duration
}

// NewListener connects a dedicated LISTEN session using a lib/pq DSN.
func NewListener(dsn string, hub *queue.Hub, logger *slog.Logger) (*Listener, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	events := func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnectionAttemptFailed, pq.ListenerEventDisconnected:
			logger.Warn("notification listener connection problem", "event", ev, "error", err)
		case pq.ListenerEventReconnected:
			logger.Info("notification listener reconnected")
		}
	}

	l := pq.NewListener(dsn, 100*time.Millisecond, 10*time.Second, events)
	if err := l.Listen(Channel); err != nil {
		_ = l.Close()
		return nil, err
	}

	return &Listener{
		listener:     l,
		hub:          hub,
		logger:       logger,
		pingInterval: 90 * time.Second,
	}, nil
}

// Run relays notifications until ctx is done, then closes the session.
func (l *Listener) Run(ctx context.Context) {
	defer l.listener.Close()

	ticker := time.NewTicker(l.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case n := <-l.listener.Notify:
			l.dispatch(n)
		case <-ticker.C:
			if err := l.listener.Ping(); err != nil {
				l.logger.Warn("notification listener ping failed", "error", err)
			}
		}
	}
}

func (l *Listener) dispatch(n *pq.Notification) {
	// A nil notification follows a reconnect; anything may have been missed.
	if n == nil || n.Extra == "" {
		l.hub.NotifyAll()
		return
	}
	l.hub.For(n.Extra).NotifyWorkAvailable()
}
