package delivery

import (
	"context"
	"errors"
	"time"

	"github.com/vibe-kanban/webhooks/internal/domain"
	"github.com/vibe-kanban/webhooks/pkg/logger"
)

// Worker drives delivery attempts on a single-threaded polling loop: find
// every record that is ready now, process each sequentially, then sleep
// until the next poll. A single worker instance is assumed; running more
// than one against the same database is not supported.
type Worker struct {
	subscriptions domain.SubscriptionRepository
	deliveries    domain.DeliveryRepository
	engine        *Engine
	log           logger.Logger

	pollInterval    time.Duration
	cleanupInterval time.Duration
	retentionDays   int
	lastCleanup     time.Time
}

// WorkerOption configures optional Worker behavior.
type WorkerOption func(*Worker)

// WithCleanupInterval overrides how often the worker runs its retention
// sweep between polls. Default: one hour.
func WithCleanupInterval(d time.Duration) WorkerOption {
	return func(w *Worker) { w.cleanupInterval = d }
}

// WithRetentionDays overrides how many days of terminal delivery records
// the cleanup sweep keeps. Default: 30.
func WithRetentionDays(days int) WorkerOption {
	return func(w *Worker) { w.retentionDays = days }
}

// NewWorker creates a Worker polling at the given interval.
func NewWorker(subs domain.SubscriptionRepository, dels domain.DeliveryRepository, engine *Engine, log logger.Logger, pollInterval time.Duration, opts ...WorkerOption) *Worker {
	w := &Worker{
		subscriptions:   subs,
		deliveries:      dels,
		engine:          engine,
		log:             log,
		pollInterval:    pollInterval,
		cleanupInterval: time.Hour,
		retentionDays:   30,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run blocks, polling for ready deliveries until ctx is canceled.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("webhook delivery worker started")
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("webhook delivery worker stopping")
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *Worker) tick(ctx context.Context) {
	w.runCleanup(ctx)

	records, err := w.deliveries.FindReadyNow(ctx)
	if err != nil {
		w.log.WithField("error", err.Error()).Error("failed to list ready deliveries")
		return
	}
	if len(records) == 0 {
		return
	}

	w.log.WithField("count", len(records)).Debug("processing webhook deliveries")
	for _, rec := range records {
		select {
		case <-ctx.Done():
			return
		default:
			w.ProcessDelivery(ctx, rec)
		}
	}
}

// ProcessDelivery resolves rec's subscription, attempts delivery if the
// subscription is active, and advances rec's status according to the
// outcome. A missing or inactive subscription fails the record immediately
// without attempting an HTTP call.
func (w *Worker) ProcessDelivery(ctx context.Context, rec *domain.DeliveryRecord) {
	sub, err := w.subscriptions.FindByID(ctx, rec.SubscriptionID)
	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			w.fail(ctx, rec, "Webhook not found")
			return
		}
		w.log.WithFields(map[string]interface{}{
			"delivery_id":     rec.ID,
			"subscription_id": rec.SubscriptionID,
			"error":           err.Error(),
		}).Error("failed to load subscription for delivery")
		return
	}
	if !sub.IsActive {
		w.fail(ctx, rec, "Webhook is inactive")
		return
	}
	// Defensive re-check: the subscription may have been edited to drop this
	// event kind after the record was queued but before this tick.
	if !sub.Subscribes(domain.Event(rec.EventType)) {
		w.fail(ctx, rec, "Webhook no longer subscribes to this event")
		return
	}

	result := w.engine.Deliver(ctx, sub.URL, sub.Secret, rec.EventType, rec.ID, rec.Payload)

	switch {
	case result.Outcome == OutcomeSuccess:
		w.succeed(ctx, rec)
	case result.Retriable():
		w.retry(ctx, rec, result.Detail)
	default:
		w.fail(ctx, rec, result.Detail)
	}
}

func (w *Worker) succeed(ctx context.Context, rec *domain.DeliveryRecord) {
	if err := w.deliveries.MarkSuccess(ctx, rec.ID); err != nil {
		w.log.WithFields(map[string]interface{}{"delivery_id": rec.ID, "error": err.Error()}).Error("failed to mark delivery success")
		return
	}
	w.log.WithField("delivery_id", rec.ID).Info("webhook delivered")
}

func (w *Worker) retry(ctx context.Context, rec *domain.DeliveryRecord, detail string) {
	// The attempt that just failed brings the count to rec.Attempts+1; once
	// that reaches MaxAttempts the record is failed instead of rescheduled.
	if rec.Attempts+1 >= MaxAttempts {
		w.fail(ctx, rec, detail)
		return
	}
	delay, ok := NextRetryDelay(rec.Attempts)
	if !ok {
		w.fail(ctx, rec, detail)
		return
	}
	nextRetryAt := time.Now().UTC().Add(delay)
	if err := w.deliveries.MarkRetrying(ctx, rec.ID, detail, nextRetryAt); err != nil {
		w.log.WithFields(map[string]interface{}{"delivery_id": rec.ID, "error": err.Error()}).Error("failed to mark delivery retrying")
		return
	}
	w.log.WithFields(map[string]interface{}{
		"delivery_id":   rec.ID,
		"next_retry_at": nextRetryAt,
		"reason":        detail,
	}).Warn("webhook delivery failed, scheduled retry")
}

func (w *Worker) fail(ctx context.Context, rec *domain.DeliveryRecord, detail string) {
	if err := w.deliveries.MarkFailed(ctx, rec.ID, detail); err != nil {
		w.log.WithFields(map[string]interface{}{"delivery_id": rec.ID, "error": err.Error()}).Error("failed to mark delivery failed")
		return
	}
	w.log.WithFields(map[string]interface{}{"delivery_id": rec.ID, "reason": detail}).Error("webhook delivery failed permanently")
}

func (w *Worker) runCleanup(ctx context.Context) {
	if time.Since(w.lastCleanup) < w.cleanupInterval {
		return
	}
	w.lastCleanup = time.Now()

	deleted, err := w.deliveries.CleanupOld(ctx, w.retentionDays)
	if err != nil {
		w.log.WithField("error", err.Error()).Error("failed to clean up old deliveries")
		return
	}
	if deleted > 0 {
		w.log.WithField("deleted", deleted).Info("cleaned up old webhook deliveries")
	}
}
