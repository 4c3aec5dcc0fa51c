package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibe-kanban/webhooks/internal/domain"
)

func newMockSubscriptionRepo(t *testing.T) (domain.SubscriptionRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return NewSubscriptionRepository(db), mock, func() { db.Close() }
}

func TestSubscriptionRepository_Create(t *testing.T) {
	repo, mock, cleanup := newMockSubscriptionRepo(t)
	defer cleanup()

	sub := &domain.Subscription{
		ProjectID: "proj-1",
		URL:       "https://example.com/hook",
		Secret:    "s3cr3t",
		Events:    `["task_created"]`,
		IsActive:  true,
	}

	mock.ExpectExec("INSERT INTO webhook_subscriptions").
		WithArgs(sqlmock.AnyArg(), "proj-1", "https://example.com/hook", "s3cr3t", `["task_created"]`, true, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Create(context.Background(), sub)
	require.NoError(t, err)
	assert.NotEmpty(t, sub.ID)
	assert.False(t, sub.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriptionRepository_FindByID(t *testing.T) {
	repo, mock, cleanup := newMockSubscriptionRepo(t)
	defer cleanup()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "project_id", "url", "secret", "events", "is_active", "created_at", "updated_at"}).
		AddRow("sub-1", "proj-1", "https://example.com/hook", "s3cr3t", `["task_created"]`, true, now, now)

	mock.ExpectQuery("SELECT (.+) FROM webhook_subscriptions WHERE id = \\$1").
		WithArgs("sub-1").
		WillReturnRows(rows)

	sub, err := repo.FindByID(context.Background(), "sub-1")
	require.NoError(t, err)
	assert.Equal(t, "sub-1", sub.ID)
	assert.True(t, sub.IsActive)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriptionRepository_FindByID_NotFound(t *testing.T) {
	repo, mock, cleanup := newMockSubscriptionRepo(t)
	defer cleanup()

	mock.ExpectQuery("SELECT (.+) FROM webhook_subscriptions WHERE id = \\$1").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "project_id", "url", "secret", "events", "is_active", "created_at", "updated_at"}))

	_, err := repo.FindByID(context.Background(), "missing")
	require.Error(t, err)
	var notFound *domain.ErrNotFound
	assert.ErrorAs(t, err, &notFound)
}

func TestSubscriptionRepository_FindByProjectAndEvent_UsesLikeContainment(t *testing.T) {
	repo, mock, cleanup := newMockSubscriptionRepo(t)
	defer cleanup()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "project_id", "url", "secret", "events", "is_active", "created_at", "updated_at"}).
		AddRow("sub-1", "proj-1", "https://example.com/hook", "s3cr3t", `["task_created","task_updated"]`, true, now, now)

	mock.ExpectQuery("SELECT (.+) FROM webhook_subscriptions WHERE").
		WithArgs(true, "proj-1", "%\"task_created\"%").
		WillReturnRows(rows)

	subs, err := repo.FindByProjectAndEvent(context.Background(), "proj-1", domain.EventTaskCreated)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriptionRepository_Update(t *testing.T) {
	repo, mock, cleanup := newMockSubscriptionRepo(t)
	defer cleanup()

	sub := &domain.Subscription{
		ID:       "sub-1",
		URL:      "https://example.com/new",
		Secret:   "new-secret",
		Events:   `["task_completed"]`,
		IsActive: false,
	}

	mock.ExpectExec("UPDATE webhook_subscriptions SET").
		WithArgs("https://example.com/new", "new-secret", `["task_completed"]`, false, sqlmock.AnyArg(), "sub-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), sub)
	require.NoError(t, err)
}

func TestSubscriptionRepository_Update_NotFound(t *testing.T) {
	repo, mock, cleanup := newMockSubscriptionRepo(t)
	defer cleanup()

	sub := &domain.Subscription{ID: "missing", Events: "[]"}

	mock.ExpectExec("UPDATE webhook_subscriptions SET").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), sub)
	require.Error(t, err)
	var notFound *domain.ErrNotFound
	assert.ErrorAs(t, err, &notFound)
}

func TestSubscriptionRepository_Delete(t *testing.T) {
	repo, mock, cleanup := newMockSubscriptionRepo(t)
	defer cleanup()

	mock.ExpectExec("DELETE FROM webhook_subscriptions WHERE id = \\$1").
		WithArgs("sub-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Delete(context.Background(), "sub-1")
	require.NoError(t, err)
}
