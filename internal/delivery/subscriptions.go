package delivery

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/vibe-kanban/webhooks/internal/domain"
	"github.com/vibe-kanban/webhooks/pkg/logger"
)

// SubscriptionService implements the create/read/update/delete/list
// lifecycle of subscriptions, including input validation and secret
// generation that the management API delegates to.
type SubscriptionService struct {
	subscriptions domain.SubscriptionRepository
	deliveries    domain.DeliveryRepository
	projects      domain.ProjectExistenceChecker
	engine        *Engine
	log           logger.Logger
}

// NewSubscriptionService creates a SubscriptionService.
func NewSubscriptionService(subs domain.SubscriptionRepository, dels domain.DeliveryRepository, projects domain.ProjectExistenceChecker, engine *Engine, log logger.Logger) *SubscriptionService {
	return &SubscriptionService{subscriptions: subs, deliveries: dels, projects: projects, engine: engine, log: log}
}

// Create validates the given URL and event kinds, and persists a new, active
// subscription. If secret is nil or empty, a signing secret is generated
// server-side; otherwise the caller-supplied secret is used as-is.
func (s *SubscriptionService) Create(ctx context.Context, projectID, webhookURL string, events []domain.Event, secret *string) (*domain.Subscription, error) {
	exists, err := s.projects.Exists(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("check project exists: %w", err)
	}
	if !exists {
		return nil, domain.ValidationError{Message: "project does not exist"}
	}
	if err := validateURL(webhookURL); err != nil {
		return nil, err
	}
	if err := validateEvents(events); err != nil {
		return nil, err
	}

	resolvedSecret, err := resolveSecret(secret)
	if err != nil {
		return nil, err
	}

	sub := &domain.Subscription{
		ProjectID: projectID,
		URL:       webhookURL,
		Secret:    resolvedSecret,
		Events:    domain.EncodeEvents(events),
		IsActive:  true,
	}
	if err := s.subscriptions.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}

	s.log.WithFields(map[string]interface{}{"subscription_id": sub.ID, "project_id": projectID}).Info("webhook subscription created")
	return sub, nil
}

// Get returns a subscription by ID.
func (s *SubscriptionService) Get(ctx context.Context, id string) (*domain.Subscription, error) {
	return s.subscriptions.FindByID(ctx, id)
}

// List returns every subscription registered for a project.
func (s *SubscriptionService) List(ctx context.Context, projectID string) ([]*domain.Subscription, error) {
	return s.subscriptions.FindByProject(ctx, projectID)
}

// Update applies a partial update: any zero-value field is left unchanged.
// A non-nil, non-empty secret rotates the subscription's signing secret.
func (s *SubscriptionService) Update(ctx context.Context, id string, webhookURL *string, events []domain.Event, isActive *bool, secret *string) (*domain.Subscription, error) {
	sub, err := s.subscriptions.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if webhookURL != nil {
		if err := validateURL(*webhookURL); err != nil {
			return nil, err
		}
		sub.URL = *webhookURL
	}
	if events != nil {
		if err := validateEvents(events); err != nil {
			return nil, err
		}
		sub.Events = domain.EncodeEvents(events)
	}
	if isActive != nil {
		sub.IsActive = *isActive
	}
	if secret != nil {
		if *secret == "" {
			return nil, domain.ValidationError{Message: "secret must not be empty"}
		}
		sub.Secret = *secret
	}

	if err := s.subscriptions.Update(ctx, sub); err != nil {
		return nil, fmt.Errorf("update subscription: %w", err)
	}
	return sub, nil
}

// Delete removes a subscription and all of its delivery records, deliveries
// first so a concurrent worker never dereferences a dangling subscription.
func (s *SubscriptionService) Delete(ctx context.Context, id string) error {
	if err := s.deliveries.DeleteBySubscription(ctx, id); err != nil {
		return fmt.Errorf("delete deliveries for subscription %s: %w", id, err)
	}
	if err := s.subscriptions.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	return nil
}

// ListDeliveries returns a page of delivery records for a subscription.
func (s *SubscriptionService) ListDeliveries(ctx context.Context, subscriptionID string, limit, offset int) ([]*domain.DeliveryRecord, int, error) {
	return s.deliveries.FindBySubscription(ctx, subscriptionID, limit, offset)
}

// testEventType marks an outbound ping as a test delivery rather than a
// real domain event; it deliberately falls outside domain.EventKinds since
// it is never queued or stored.
const testEventType = "webhook.test"

// SendTest delivers a synthetic ping to id's endpoint synchronously, signed
// the same way real deliveries are, without creating a delivery record.
// It fails with a ValidationError if the subscription is inactive, and
// returns an error if the ping itself could not be delivered successfully.
func (s *SubscriptionService) SendTest(ctx context.Context, id string) error {
	sub, err := s.subscriptions.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !sub.IsActive {
		return domain.ValidationError{Message: "Webhook is inactive"}
	}

	payload, err := json.Marshal(domain.Envelope{
		Event:      testEventType,
		Timestamp:  time.Now().UTC(),
		DeliveryID: uuid.NewString(),
		Data:       map[string]string{"message": "this is a test webhook delivery"},
	})
	if err != nil {
		return fmt.Errorf("marshal test envelope: %w", err)
	}

	result := s.engine.Deliver(ctx, sub.URL, sub.Secret, testEventType, uuid.NewString(), payload)
	if result.Outcome != OutcomeSuccess {
		return fmt.Errorf("test delivery failed: %s", result.Detail)
	}
	return nil
}

func generateSecret() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// resolveSecret returns the caller-supplied secret when one is given and
// non-empty, otherwise generates one server-side.
func resolveSecret(secret *string) (string, error) {
	if secret != nil && *secret != "" {
		return *secret, nil
	}
	generated, err := generateSecret()
	if err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return generated, nil
}

func validateURL(rawURL string) error {
	if rawURL == "" {
		return domain.ValidationError{Message: "url is required"}
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return domain.ValidationError{Message: fmt.Sprintf("invalid url: %v", err)}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return domain.ValidationError{Message: "url must use http or https"}
	}
	if parsed.Host == "" {
		return domain.ValidationError{Message: "url must have a host"}
	}
	return nil
}

func validateEvents(events []domain.Event) error {
	if len(events) == 0 {
		return domain.ValidationError{Message: "at least one event is required"}
	}
	for _, e := range events {
		if !domain.IsValidEvent(string(e)) {
			return domain.ValidationError{Message: fmt.Sprintf("invalid event: %s", e)}
		}
	}
	return nil
}
