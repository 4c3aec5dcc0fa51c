package delivery

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"

	"github.com/vibe-kanban/webhooks/internal/domain"
	"github.com/vibe-kanban/webhooks/internal/domain/mocks"
	"github.com/vibe-kanban/webhooks/pkg/logger"
)

func TestWorker_ProcessDelivery_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	subs := mocks.NewMockSubscriptionRepository(ctrl)
	dels := mocks.NewMockDeliveryRepository(ctrl)
	sub := &domain.Subscription{ID: "sub-1", URL: srv.URL, Secret: "s3cr3t", IsActive: true, Events: `["task_created"]`}
	rec := &domain.DeliveryRecord{ID: "d-1", SubscriptionID: "sub-1", EventType: "task_created", Payload: []byte("{}")}

	subs.EXPECT().FindByID(gomock.Any(), "sub-1").Return(sub, nil)
	dels.EXPECT().MarkSuccess(gomock.Any(), "d-1").Return(nil)

	worker := NewWorker(subs, dels, NewEngine(nil, logger.NewTestLogger()), logger.NewTestLogger(), time.Second)
	worker.ProcessDelivery(t.Context(), rec)
}

func TestWorker_ProcessDelivery_MissingSubscriptionFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	subs := mocks.NewMockSubscriptionRepository(ctrl)
	dels := mocks.NewMockDeliveryRepository(ctrl)
	rec := &domain.DeliveryRecord{ID: "d-1", SubscriptionID: "missing", EventType: "task_created", Payload: []byte("{}")}

	subs.EXPECT().FindByID(gomock.Any(), "missing").Return(nil, &domain.ErrNotFound{Entity: "webhook_subscription", ID: "missing"})
	dels.EXPECT().MarkFailed(gomock.Any(), "d-1", "Webhook not found").Return(nil)

	worker := NewWorker(subs, dels, NewEngine(nil, logger.NewTestLogger()), logger.NewTestLogger(), time.Second)
	worker.ProcessDelivery(t.Context(), rec)
}

func TestWorker_ProcessDelivery_InactiveSubscriptionFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	subs := mocks.NewMockSubscriptionRepository(ctrl)
	dels := mocks.NewMockDeliveryRepository(ctrl)
	sub := &domain.Subscription{ID: "sub-1", URL: "https://example.com", IsActive: false}
	rec := &domain.DeliveryRecord{ID: "d-1", SubscriptionID: "sub-1", EventType: "task_created", Payload: []byte("{}")}

	subs.EXPECT().FindByID(gomock.Any(), "sub-1").Return(sub, nil)
	dels.EXPECT().MarkFailed(gomock.Any(), "d-1", "Webhook is inactive").Return(nil)

	worker := NewWorker(subs, dels, NewEngine(nil, logger.NewTestLogger()), logger.NewTestLogger(), time.Second)
	worker.ProcessDelivery(t.Context(), rec)
}

func TestWorker_ProcessDelivery_RetriableFailureSchedulesRetry(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	subs := mocks.NewMockSubscriptionRepository(ctrl)
	dels := mocks.NewMockDeliveryRepository(ctrl)
	sub := &domain.Subscription{ID: "sub-1", URL: srv.URL, Secret: "s3cr3t", IsActive: true, Events: `["task_created"]`}
	rec := &domain.DeliveryRecord{ID: "d-1", SubscriptionID: "sub-1", EventType: "task_created", Payload: []byte("{}"), Attempts: 0}

	subs.EXPECT().FindByID(gomock.Any(), "sub-1").Return(sub, nil)
	dels.EXPECT().MarkRetrying(gomock.Any(), "d-1", gomock.Any(), gomock.Any()).Return(nil)

	worker := NewWorker(subs, dels, NewEngine(nil, logger.NewTestLogger()), logger.NewTestLogger(), time.Second)
	worker.ProcessDelivery(t.Context(), rec)
}

func TestWorker_ProcessDelivery_ExhaustedRetriesFailsPermanently(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	subs := mocks.NewMockSubscriptionRepository(ctrl)
	dels := mocks.NewMockDeliveryRepository(ctrl)
	sub := &domain.Subscription{ID: "sub-1", URL: srv.URL, Secret: "s3cr3t", IsActive: true, Events: `["task_created"]`}
	rec := &domain.DeliveryRecord{ID: "d-1", SubscriptionID: "sub-1", EventType: "task_created", Payload: []byte("{}"), Attempts: domain.MaxAttempts}

	subs.EXPECT().FindByID(gomock.Any(), "sub-1").Return(sub, nil)
	dels.EXPECT().MarkFailed(gomock.Any(), "d-1", gomock.Any()).Return(nil)

	worker := NewWorker(subs, dels, NewEngine(nil, logger.NewTestLogger()), logger.NewTestLogger(), time.Second)
	worker.ProcessDelivery(t.Context(), rec)
}

func TestWorker_ProcessDelivery_UnsubscribedEventFailsWithoutRequest(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	subs := mocks.NewMockSubscriptionRepository(ctrl)
	dels := mocks.NewMockDeliveryRepository(ctrl)
	sub := &domain.Subscription{ID: "sub-1", URL: "https://example.com", Secret: "s3cr3t", IsActive: true, Events: `["task_updated"]`}
	rec := &domain.DeliveryRecord{ID: "d-1", SubscriptionID: "sub-1", EventType: "task_created", Payload: []byte("{}")}

	subs.EXPECT().FindByID(gomock.Any(), "sub-1").Return(sub, nil)
	dels.EXPECT().MarkFailed(gomock.Any(), "d-1", "Webhook no longer subscribes to this event").Return(nil)

	worker := NewWorker(subs, dels, NewEngine(nil, logger.NewTestLogger()), logger.NewTestLogger(), time.Second)
	worker.ProcessDelivery(t.Context(), rec)
}

func TestWorker_RunCleanup_RespectsInterval(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	subs := mocks.NewMockSubscriptionRepository(ctrl)
	dels := mocks.NewMockDeliveryRepository(ctrl)
	dels.EXPECT().CleanupOld(gomock.Any(), 30).Return(int64(2), nil).Times(1)

	worker := NewWorker(subs, dels, NewEngine(nil, logger.NewTestLogger()), logger.NewTestLogger(), time.Second, WithCleanupInterval(time.Hour))
	worker.runCleanup(t.Context())
	worker.runCleanup(t.Context())

	assert.False(t, worker.lastCleanup.IsZero())
}
