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

const subscriptionColumns = "id, project_id, url, secret, events, is_active, created_at, updated_at"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// subscriptionRepository implements domain.SubscriptionRepository against a
// single Postgres database using squirrel to build queries.
type subscriptionRepository struct {
	db *sql.DB
}

// NewSubscriptionRepository creates a Postgres-backed SubscriptionRepository.
func NewSubscriptionRepository(db *sql.DB) domain.SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

func (r *subscriptionRepository) Create(ctx context.Context, sub *domain.Subscription) error {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	sub.CreatedAt = now
	sub.UpdatedAt = now

	query, args, err := psql.Insert("webhook_subscriptions").
		Columns("id", "project_id", "url", "secret", "events", "is_active", "created_at", "updated_at").
		Values(sub.ID, sub.ProjectID, sub.URL, sub.Secret, sub.Events, sub.IsActive, sub.CreatedAt, sub.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("create subscription: %w", err)
	}
	return nil
}

func (r *subscriptionRepository) FindByID(ctx context.Context, id string) (*domain.Subscription, error) {
	query, args, err := psql.Select(subscriptionColumns).
		From("webhook_subscriptions").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	row := r.db.QueryRowContext(ctx, query, args...)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, &domain.ErrNotFound{Entity: "webhook_subscription", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("find subscription: %w", err)
	}
	return sub, nil
}

func (r *subscriptionRepository) FindByProject(ctx context.Context, projectID string) ([]*domain.Subscription, error) {
	query, args, err := psql.Select(subscriptionColumns).
		From("webhook_subscriptions").
		Where(sq.Eq{"project_id": projectID}).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	return r.queryList(ctx, query, args...)
}

func (r *subscriptionRepository) FindByProjectAndEvent(ctx context.Context, projectID string, event domain.Event) ([]*domain.Subscription, error) {
	needle := "%\"" + string(event) + "\"%"
	query, args, err := psql.Select(subscriptionColumns).
		From("webhook_subscriptions").
		Where(sq.Eq{"project_id": projectID, "is_active": true}).
		Where(sq.Like{"events": needle}).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	return r.queryList(ctx, query, args...)
}

func (r *subscriptionRepository) FindAllByEvent(ctx context.Context, event domain.Event) ([]*domain.Subscription, error) {
	needle := "%\"" + string(event) + "\"%"
	query, args, err := psql.Select(subscriptionColumns).
		From("webhook_subscriptions").
		Where(sq.Eq{"is_active": true}).
		Where(sq.Like{"events": needle}).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	return r.queryList(ctx, query, args...)
}

func (r *subscriptionRepository) Update(ctx context.Context, sub *domain.Subscription) error {
	sub.UpdatedAt = time.Now().UTC()

	query, args, err := psql.Update("webhook_subscriptions").
		Set("url", sub.URL).
		Set("secret", sub.Secret).
		Set("events", sub.Events).
		Set("is_active", sub.IsActive).
		Set("updated_at", sub.UpdatedAt).
		Where(sq.Eq{"id": sub.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	return requireRowsAffected(result, "webhook_subscription", sub.ID)
}

func (r *subscriptionRepository) SetActive(ctx context.Context, id string, active bool) error {
	query, args, err := psql.Update("webhook_subscriptions").
		Set("is_active", active).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("set subscription active: %w", err)
	}
	return requireRowsAffected(result, "webhook_subscription", id)
}

func (r *subscriptionRepository) Delete(ctx context.Context, id string) error {
	query, args, err := psql.Delete("webhook_subscriptions").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	return requireRowsAffected(result, "webhook_subscription", id)
}

func (r *subscriptionRepository) queryList(ctx context.Context, query string, args ...interface{}) ([]*domain.Subscription, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer rows.Close()

	var out []*domain.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscriptions: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSubscription(row rowScanner) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := row.Scan(
		&sub.ID,
		&sub.ProjectID,
		&sub.URL,
		&sub.Secret,
		&sub.Events,
		&sub.IsActive,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func requireRowsAffected(result sql.Result, entity, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return &domain.ErrNotFound{Entity: entity, ID: id}
	}
	return nil
}
