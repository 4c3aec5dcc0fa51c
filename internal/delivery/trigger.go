package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vibe-kanban/webhooks/internal/domain"
	"github.com/vibe-kanban/webhooks/pkg/logger"
)

// Trigger fans an application event out to every active subscription that
// wants it, queuing one Pending delivery record per matching subscription.
type Trigger struct {
	subscriptions domain.SubscriptionRepository
	deliveries    domain.DeliveryRepository
	log           logger.Logger
}

// NewTrigger creates a Trigger.
func NewTrigger(subscriptions domain.SubscriptionRepository, deliveries domain.DeliveryRepository, log logger.Logger) *Trigger {
	return &Trigger{subscriptions: subscriptions, deliveries: deliveries, log: log}
}

// TriggerEvent looks up every active subscription for projectID that wants
// event and, for each one, builds and marshals an envelope carrying a fresh
// delivery ID and creates one Pending delivery record. If record creation fails partway through, a
// *domain.PartialTriggerError is returned carrying the records that were
// successfully queued so the caller can decide how to handle the rest.
func (t *Trigger) TriggerEvent(ctx context.Context, projectID string, event domain.Event, data interface{}) ([]*domain.DeliveryRecord, error) {
	subs, err := t.subscriptions.FindByProjectAndEvent(ctx, projectID, event)
	if err != nil {
		return nil, fmt.Errorf("find subscriptions for event %s: %w", event, err)
	}
	if len(subs) == 0 {
		t.log.WithFields(map[string]interface{}{
			"project_id": projectID,
			"event":      string(event),
		}).Debug("no subscriptions registered for event")
		return nil, nil
	}

	queued := make([]*domain.DeliveryRecord, 0, len(subs))
	for _, sub := range subs {
		deliveryID := uuid.NewString()
		payload, err := json.Marshal(domain.Envelope{
			Event:      string(event),
			Timestamp:  time.Now().UTC(),
			DeliveryID: deliveryID,
			Data:       data,
		})
		if err != nil {
			return queued, &domain.PartialTriggerError{Queued: queued, Err: fmt.Errorf("marshal envelope: %w", err)}
		}

		rec := &domain.DeliveryRecord{
			ID:             deliveryID,
			SubscriptionID: sub.ID,
			EventType:      string(event),
			Payload:        payload,
			Status:         domain.StatusPending,
		}
		if err := t.deliveries.Create(ctx, rec); err != nil {
			return queued, &domain.PartialTriggerError{Queued: queued, Err: fmt.Errorf("create delivery record for subscription %s: %w", sub.ID, err)}
		}
		queued = append(queued, rec)
	}

	t.log.WithFields(map[string]interface{}{
		"project_id": projectID,
		"event":      string(event),
		"queued":     len(queued),
	}).Info("queued webhook deliveries")

	return queued, nil
}
