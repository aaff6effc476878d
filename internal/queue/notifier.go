package queue

import (
	"context"
	"sync"
	"time"
)

// WaitResult reports why WaitForWork returned.
type WaitResult int

const (
	Notified WaitResult = iota
	TimedOut
	Canceled
)

func (r WaitResult) String() string {
	switch r {
	case Notified:
		return "notified"
	case TimedOut:
		return "timed_out"
	case Canceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Broadcaster wakes every waiter at once by closing the current channel and
// installing a fresh one. Waiters that start after a notification do not see
// it, so callers must re-check the queue before waiting.
type Broadcaster struct {
	mu sync.Mutex
	ch chan struct{}
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{ch: make(chan struct{})}
}

// Watch returns a channel that is closed on the next notification.
func (b *Broadcaster) Watch() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ch
}

func (b *Broadcaster) NotifyWorkAvailable() {
	b.mu.Lock()
	close(b.ch)
	b.ch = make(chan struct{})
	b.mu.Unlock()
}

// WaitForWork blocks until a notification, the timeout, or ctx cancellation.
// A non-positive timeout waits for notification or cancellation only.
func (b *Broadcaster) WaitForWork(ctx context.Context, timeout time.Duration) WaitResult {
	return Wait(ctx, b.Watch(), timeout)
}

// Wait blocks on a channel previously returned by Watch. Taking the channel
// before checking the store means a notification sent in between is not lost.
func Wait(ctx context.Context, watch <-chan struct{}, timeout time.Duration) WaitResult {
	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	select {
	case <-watch:
		return Notified
	case <-timer:
		return TimedOut
	case <-ctx.Done():
		return Canceled
	}
}

// Hub hands out one Broadcaster per queue name.
type Hub struct {
	mu    sync.Mutex
	byKey map[string]*Broadcaster
}

func NewHub() *Hub {
	return &Hub{byKey: make(map[string]*Broadcaster)}
}

func (h *Hub) For(queueName string) *Broadcaster {
	h.mu.Lock()
	defer h.mu.Unlock()

	b, ok := h.byKey[queueName]
	if !ok {
		b = NewBroadcaster()
		h.byKey[queueName] = b
	}
	return b
}

// NotifyAll wakes every queue's waiters.
func (h *Hub) NotifyAll() {
	h.mu.Lock()
	all := make([]*Broadcaster, 0, len(h.byKey))
	for _, b := range h.byKey {
		all = append(all, b)
	}
	h.mu.Unlock()

	for _, b := range all {
		b.NotifyWorkAvailable()
	}
}

// Notifiers fans a notification out to several notifiers in order.
type Notifiers []Notifier

func (n Notifiers) NotifyWorkAvailable() {
	for _, notifier := range n {
		if notifier != nil {
			notifier.NotifyWorkAvailable()
		}
	}
}

// Nop discards notifications.
type Nop struct{}

func (Nop) NotifyWorkAvailable() {}

var (
	_ Notifier = (*Broadcaster)(nil)
	_ Notifier = Notifiers(nil)
	_ Notifier = Nop{}
)
