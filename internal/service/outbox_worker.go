package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/iyhunko/dapp-marketplace/internal/sqs"
)

const (
	// DefaultOutboxInterval is how often pending notifications are flushed.
	DefaultOutboxInterval = 5 * time.Second
	// DefaultOutboxAttempts is how many times a notification is published before it is dropped.
	DefaultOutboxAttempts = 3

	outboxBatchSize = 100
)

// NotificationPublisher sends product notifications.
type NotificationPublisher interface {
	PublishProductMessage(ctx context.Context, msg sqs.ProductMessage) error
}

type pendingNotification struct {
	msg      sqs.ProductMessage
	attempts int
}

// Outbox holds product notifications waiting to be published.
// Creations never wait on the queue; the worker delivers them later.
type Outbox struct {
	mu          sync.Mutex
	pending     []pendingNotification
	maxAttempts int
}

// NewOutbox creates an empty outbox. maxAttempts below 1 means DefaultOutboxAttempts.
func NewOutbox(maxAttempts int) *Outbox {
	if maxAttempts < 1 {
		maxAttempts = DefaultOutboxAttempts
	}
	return &Outbox{maxAttempts: maxAttempts}
}

// Enqueue adds msg to the outbox.
func (o *Outbox) Enqueue(msg sqs.ProductMessage) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pending = append(o.pending, pendingNotification{msg: msg})
}

// Len returns the number of pending notifications.
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.pending)
}

func (o *Outbox) take(limit int) []pendingNotification {
	o.mu.Lock()
	defer o.mu.Unlock()
	if limit > len(o.pending) {
		limit = len(o.pending)
	}
	batch := append([]pendingNotification(nil), o.pending[:limit]...)
	o.pending = o.pending[limit:]
	return batch
}

// retry puts n back unless it has used up its attempts.
func (o *Outbox) retry(n pendingNotification) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	n.attempts++
	if n.attempts >= o.maxAttempts {
		return false
	}
	o.pending = append(o.pending, n)
	return true
}

// OutboxWorker periodically publishes pending notifications.
type OutboxWorker struct {
	outbox    *Outbox
	publisher NotificationPublisher
	interval  time.Duration
	stopChan  chan struct{}
	stopOnce  sync.Once
}

// NewOutboxWorker creates a new OutboxWorker
func NewOutboxWorker(outbox *Outbox, publisher NotificationPublisher, interval time.Duration) *OutboxWorker {
	if interval <= 0 {
		interval = DefaultOutboxInterval
	}
	return &OutboxWorker{
		outbox:    outbox,
		publisher: publisher,
		interval:  interval,
		stopChan:  make(chan struct{}),
	}
}

// Start processes the outbox until ctx is done or Stop is called. Pending
// notifications are flushed once more before returning.
func (w *OutboxWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	slog.Info("Outbox worker started", slog.Duration("interval", w.interval))

	for {
		select {
		case <-ctx.Done():
			slog.Info("Outbox worker stopped by context")
			w.Flush(context.WithoutCancel(ctx))
			return
		case <-w.stopChan:
			slog.Info("Outbox worker stopped")
			w.Flush(ctx)
			return
		case <-ticker.C:
			w.Flush(ctx)
		}
	}
}

// Stop stops the outbox worker
func (w *OutboxWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopChan)
	})
}

// Flush publishes one batch of pending notifications.
func (w *OutboxWorker) Flush(ctx context.Context) {
	batch := w.outbox.take(outboxBatchSize)
	if len(batch) == 0 {
		return
	}

	slog.Info("Publishing pending notifications", slog.Int("count", len(batch)))

	for _, n := range batch {
		if err := w.publisher.PublishProductMessage(ctx, n.msg); err != nil {
			slog.Error("Failed to publish notification",
				slog.String("tx_hash", n.msg.TxHash),
				slog.Int("attempt", n.attempts+1),
				slog.Any("err", err))

			if !w.outbox.retry(n) {
				slog.Error("Dropping notification after repeated failures",
					slog.String("tx_hash", n.msg.TxHash))
			}
			continue
		}
		slog.Info("Notification published",
			slog.String("tx_hash", n.msg.TxHash),
			slog.Uint64("product_id", n.msg.ProductID))
	}
}
