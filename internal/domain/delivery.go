package domain

import (
	"context"
	"time"
)

// Status is the delivery record's lifecycle state.
type Status string

const (
	StatusPending  Status = "pending"
	StatusRetrying Status = "retrying"
	StatusSuccess  Status = "success"
	StatusFailed   Status = "failed"
)

// MaxAttempts is the maximum number of total delivery attempts a record
// may accumulate before it is forced to Failed.
const MaxAttempts = 7

// DeliveryRecord is a durable row tracking the lifecycle of attempts to
// deliver one event to one subscription.
type DeliveryRecord struct {
	ID             string
	SubscriptionID string
	EventType      string
	// Payload is the exact serialized JSON bytes signed and posted,
	// frozen at creation.
	Payload     []byte
	Status      Status
	Attempts    int
	LastError   *string
	NextRetryAt *time.Time
	CreatedAt   time.Time
	DeliveredAt *time.Time
}

// DeliveryRepository is the persistent store of DeliveryRecords. Every
// status-mutating method is listed here explicitly — there is deliberately
// no generic "update status" method: MarkSuccess / MarkRetrying /
// MarkFailed are the only operations allowed to advance a record's state.
type DeliveryRepository interface {
	// Create persists a new Pending delivery record.
	Create(ctx context.Context, rec *DeliveryRecord) error

	FindByID(ctx context.Context, id string) (*DeliveryRecord, error)

	// FindByStatus returns records with the given status, newest first.
	FindByStatus(ctx context.Context, status Status) ([]*DeliveryRecord, error)

	// FindBySubscription returns a page of records for subscriptionID,
	// newest first, plus the total count across all pages.
	FindBySubscription(ctx context.Context, subscriptionID string, limit, offset int) ([]*DeliveryRecord, int, error)

	// FindReadyNow returns records where status = Pending, or status =
	// Retrying with next_retry_at null or in the past, ordered by
	// created_at ascending.
	FindReadyNow(ctx context.Context) ([]*DeliveryRecord, error)

	// MarkSuccess transitions id to Success: delivered_at = now,
	// attempts += 1. Allowed only from Pending or Retrying.
	MarkSuccess(ctx context.Context, id string) error

	// MarkRetrying transitions id to Retrying: last_error, next_retry_at
	// set, attempts += 1. Allowed only from Pending or Retrying. The store
	// does not check the attempts count; callers call MarkFailed instead
	// once the resulting count would reach MaxAttempts.
	MarkRetrying(ctx context.Context, id string, lastError string, nextRetryAt time.Time) error

	// MarkFailed transitions id to Failed: last_error set, attempts += 1.
	// Allowed only from Pending or Retrying.
	MarkFailed(ctx context.Context, id string, lastError string) error

	// DeleteBySubscription removes every delivery record belonging to
	// subscriptionID (used when a subscription is deleted).
	DeleteBySubscription(ctx context.Context, subscriptionID string) error

	// CleanupOld deletes terminal (Success or Failed) records older than
	// daysToKeep days, returning the number of rows removed.
	CleanupOld(ctx context.Context, daysToKeep int) (int64, error)
}

// Envelope is the JSON document placed in the HTTP body:
// { "event", "timestamp", "delivery_id", "data" }.
type Envelope struct {
	Event      string      `json:"event"`
	Timestamp  time.Time   `json:"timestamp"`
	DeliveryID string      `json:"delivery_id"`
	Data       interface{} `json:"data"`
}
