// Package worker connects broker change notifications to the refresher.
package worker

import (
	"context"
	"fmt"
	"sync/atomic"

	"sahayak/internal/amqp"
	"sahayak/internal/core"
	"sahayak/internal/log"
)

// Notifier schedules a reload for a change kind.
type Notifier interface {
	Notify(kind core.ChangeKind) error
}

// Consumer delivers change messages until ctx ends.
type Consumer interface {
	Run(ctx context.Context, handler amqp.Handler) error
}

// ChangeWorker forwards change messages to a Notifier.
type ChangeWorker struct {
	notifier Notifier
	logger   *log.Logger

	handled atomic.Int64
	failed  atomic.Int64
}

func NewChangeWorker(notifier Notifier, logger *log.Logger) *ChangeWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &ChangeWorker{
		notifier: notifier,
		logger:   logger.WithComponent(log.ComponentAMQP),
	}
}

// HandleChangeMessage processes a single change message from AMQP
func (w *ChangeWorker) HandleChangeMessage(ctx context.Context, msg *amqp.ChangeMessage) error {
	w.logger.DebugContext(ctx, "Processing change message",
		log.FieldChangeKind, string(msg.Kind),
		"timestamp", msg.Timestamp)

	if err := w.notifier.Notify(msg.Kind); err != nil {
		w.failed.Add(1)
		return fmt.Errorf("notify %s: %w", msg.Kind, err)
	}
	w.handled.Add(1)
	return nil
}

// Run consumes from c until ctx ends.
func (w *ChangeWorker) Run(ctx context.Context, c Consumer) error {
	w.logger.InfoContext(ctx, "Change worker started")
	err := c.Run(ctx, w.HandleChangeMessage)
	w.logger.InfoContext(ctx, "Change worker stopped",
		"handled", w.handled.Load(),
		"failed", w.failed.Load())
	return err
}

// Handled returns the number of messages forwarded successfully.
func (w *ChangeWorker) Handled() int64 { return w.handled.Load() }

// Failed returns the number of messages the notifier rejected.
func (w *ChangeWorker) Failed() int64 { return w.failed.Load() }
