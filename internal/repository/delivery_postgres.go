package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/vibe-kanban/webhooks/internal/domain"
)

const deliveryColumns = "id, subscription_id, event_type, payload, status, attempts, last_error, next_retry_at, created_at, delivered_at"

// deliveryRepository implements domain.DeliveryRepository against a single
// Postgres database. Only MarkSuccess/MarkRetrying/MarkFailed are allowed to
// change a record's status column; every other method reads, inserts, or
// deletes whole rows.
type deliveryRepository struct {
	db *sql.DB
}

// NewDeliveryRepository creates a Postgres-backed DeliveryRepository.
func NewDeliveryRepository(db *sql.DB) domain.DeliveryRepository {
	return &deliveryRepository{db: db}
}

func (r *deliveryRepository) Create(ctx context.Context, rec *domain.DeliveryRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.Status == "" {
		rec.Status = domain.StatusPending
	}

	query, args, err := psql.Insert("webhook_deliveries").
		Columns("id", "subscription_id", "event_type", "payload", "status", "attempts", "created_at").
		Values(rec.ID, rec.SubscriptionID, rec.EventType, rec.Payload, rec.Status, rec.Attempts, rec.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("create delivery: %w", err)
	}
	return nil
}

func (r *deliveryRepository) FindByID(ctx context.Context, id string) (*domain.DeliveryRecord, error) {
	query, args, err := psql.Select(deliveryColumns).
		From("webhook_deliveries").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rec, err := scanDelivery(r.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, &domain.ErrNotFound{Entity: "webhook_delivery", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("find delivery: %w", err)
	}
	return rec, nil
}

func (r *deliveryRepository) FindByStatus(ctx context.Context, status domain.Status) ([]*domain.DeliveryRecord, error) {
	query, args, err := psql.Select(deliveryColumns).
		From("webhook_deliveries").
		Where(sq.Eq{"status": status}).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	return r.queryList(ctx, query, args...)
}

func (r *deliveryRepository) FindBySubscription(ctx context.Context, subscriptionID string, limit, offset int) ([]*domain.DeliveryRecord, int, error) {
	countQuery, countArgs, err := psql.Select("COUNT(*)").
		From("webhook_deliveries").
		Where(sq.Eq{"subscription_id": subscriptionID}).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count: %w", err)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count deliveries: %w", err)
	}

	query, args, err := psql.Select(deliveryColumns).
		From("webhook_deliveries").
		Where(sq.Eq{"subscription_id": subscriptionID}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build select: %w", err)
	}

	records, err := r.queryList(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func (r *deliveryRepository) FindReadyNow(ctx context.Context) ([]*domain.DeliveryRecord, error) {
	now := time.Now().UTC()
	query, args, err := psql.Select(deliveryColumns).
		From("webhook_deliveries").
		Where(sq.Or{
			sq.Eq{"status": domain.StatusPending},
			sq.And{
				sq.Eq{"status": domain.StatusRetrying},
				sq.Or{
					sq.Eq{"next_retry_at": nil},
					sq.LtOrEq{"next_retry_at": now},
				},
			},
		}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	return r.queryList(ctx, query, args...)
}

func (r *deliveryRepository) MarkSuccess(ctx context.Context, id string) error {
	now := time.Now().UTC()
	query, args, err := psql.Update("webhook_deliveries").
		Set("status", domain.StatusSuccess).
		Set("delivered_at", now).
		Set("attempts", sq.Expr("attempts + 1")).
		Where(sq.Eq{"id": id}).
		Where(sq.Eq{"status": []domain.Status{domain.StatusPending, domain.StatusRetrying}}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("mark success: %w", err)
	}
	return requireRowsAffected(result, "webhook_delivery", id)
}

func (r *deliveryRepository) MarkRetrying(ctx context.Context, id string, lastError string, nextRetryAt time.Time) error {
	query, args, err := psql.Update("webhook_deliveries").
		Set("status", domain.StatusRetrying).
		Set("last_error", lastError).
		Set("next_retry_at", nextRetryAt).
		Set("attempts", sq.Expr("attempts + 1")).
		Where(sq.Eq{"id": id}).
		Where(sq.Eq{"status": []domain.Status{domain.StatusPending, domain.StatusRetrying}}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("mark retrying: %w", err)
	}
	return requireRowsAffected(result, "webhook_delivery", id)
}

func (r *deliveryRepository) MarkFailed(ctx context.Context, id string, lastError string) error {
	query, args, err := psql.Update("webhook_deliveries").
		Set("status", domain.StatusFailed).
		Set("last_error", lastError).
		Set("attempts", sq.Expr("attempts + 1")).
		Where(sq.Eq{"id": id}).
		Where(sq.Eq{"status": []domain.Status{domain.StatusPending, domain.StatusRetrying}}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return requireRowsAffected(result, "webhook_delivery", id)
}

func (r *deliveryRepository) DeleteBySubscription(ctx context.Context, subscriptionID string) error {
	query, args, err := psql.Delete("webhook_deliveries").
		Where(sq.Eq{"subscription_id": subscriptionID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete deliveries: %w", err)
	}
	return nil
}

func (r *deliveryRepository) CleanupOld(ctx context.Context, daysToKeep int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -daysToKeep)
	query, args, err := psql.Delete("webhook_deliveries").
		Where(sq.Lt{"created_at": cutoff}).
		Where(sq.Eq{"status": []domain.Status{domain.StatusSuccess, domain.StatusFailed}}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("cleanup old deliveries: %w", err)
	}
	return result.RowsAffected()
}

func (r *deliveryRepository) queryList(ctx context.Context, query string, args ...interface{}) ([]*domain.DeliveryRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query deliveries: %w", err)
	}
	defer rows.Close()

	var out []*domain.DeliveryRecord
	for rows.Next() {
		rec, err := scanDelivery(rows)
		if err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deliveries: %w", err)
	}
	return out, nil
}

func scanDelivery(row rowScanner) (*domain.DeliveryRecord, error) {
	var rec domain.DeliveryRecord
	var lastError sql.NullString
	var nextRetryAt sql.NullTime
	var deliveredAt sql.NullTime

	err := row.Scan(
		&rec.ID,
		&rec.SubscriptionID,
		&rec.EventType,
		&rec.Payload,
		&rec.Status,
		&rec.Attempts,
		&lastError,
		&nextRetryAt,
		&rec.CreatedAt,
		&deliveredAt,
	)
	if err != nil {
		return nil, err
	}

	if lastError.Valid {
		rec.LastError = &lastError.String
	}
	if nextRetryAt.Valid {
		rec.NextRetryAt = &nextRetryAt.Time
	}
	if deliveredAt.Valid {
		rec.DeliveredAt = &deliveredAt.Time
	}
	return &rec, nil
}
