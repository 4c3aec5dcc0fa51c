package delivery

import (
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibe-kanban/webhooks/internal/domain"
	"github.com/vibe-kanban/webhooks/internal/domain/mocks"
	"github.com/vibe-kanban/webhooks/pkg/logger"
)

func TestTrigger_TriggerEvent_NoSubscribers(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	subs := mocks.NewMockSubscriptionRepository(ctrl)
	dels := mocks.NewMockDeliveryRepository(ctrl)
	subs.EXPECT().FindByProjectAndEvent(gomock.Any(), "proj-1", domain.EventTaskCreated).Return(nil, nil)

	trigger := NewTrigger(subs, dels, logger.NewTestLogger())
	records, err := trigger.TriggerEvent(t.Context(), "proj-1", domain.EventTaskCreated, map[string]string{"task_id": "t-1"})

	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestTrigger_TriggerEvent_QueuesOnePerSubscription(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	subs := mocks.NewMockSubscriptionRepository(ctrl)
	dels := mocks.NewMockDeliveryRepository(ctrl)

	matching := []*domain.Subscription{
		{ID: "sub-1", ProjectID: "proj-1", IsActive: true},
		{ID: "sub-2", ProjectID: "proj-1", IsActive: true},
	}
	subs.EXPECT().FindByProjectAndEvent(gomock.Any(), "proj-1", domain.EventTaskCreated).Return(matching, nil)
	dels.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil).Times(2)

	trigger := NewTrigger(subs, dels, logger.NewTestLogger())
	records, err := trigger.TriggerEvent(t.Context(), "proj-1", domain.EventTaskCreated, map[string]string{"task_id": "t-1"})

	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "sub-1", records[0].SubscriptionID)
	assert.Equal(t, "sub-2", records[1].SubscriptionID)
	assert.Equal(t, domain.StatusPending, records[0].Status)
}

func TestTrigger_TriggerEvent_PartialFailureReturnsQueued(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	subs := mocks.NewMockSubscriptionRepository(ctrl)
	dels := mocks.NewMockDeliveryRepository(ctrl)

	matching := []*domain.Subscription{
		{ID: "sub-1", ProjectID: "proj-1", IsActive: true},
		{ID: "sub-2", ProjectID: "proj-1", IsActive: true},
	}
	subs.EXPECT().FindByProjectAndEvent(gomock.Any(), "proj-1", domain.EventTaskCreated).Return(matching, nil)
	gomock.InOrder(
		dels.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil),
		dels.EXPECT().Create(gomock.Any(), gomock.Any()).Return(errors.New("db down")),
	)

	trigger := NewTrigger(subs, dels, logger.NewTestLogger())
	records, err := trigger.TriggerEvent(t.Context(), "proj-1", domain.EventTaskCreated, nil)

	require.Error(t, err)
	var partial *domain.PartialTriggerError
	require.ErrorAs(t, err, &partial)
	assert.Len(t, partial.Queued, 1)
	assert.Len(t, records, 1)
}
