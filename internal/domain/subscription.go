// Package domain holds the persistent types and repository contracts of
// the webhook delivery subsystem.
package domain

//go:generate mockgen -destination mocks/mock_subscription_repository.go -package mocks github.com/vibe-kanban/webhooks/internal/domain SubscriptionRepository
//go:generate mockgen -destination mocks/mock_delivery_repository.go -package mocks github.com/vibe-kanban/webhooks/internal/domain DeliveryRepository

import (
	"context"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Event is a domain fact that can trigger a delivery.
type Event string

// The closed set of event kinds a subscription may subscribe to.
const (
	EventTaskCreated      Event = "task_created"
	EventTaskUpdated      Event = "task_updated"
	EventTaskCompleted    Event = "task_completed"
	EventWorkspaceStarted Event = "workspace_started"
)

// EventKinds lists every event kind the subsystem recognizes, in a stable
// order (used for validation and for the management API's introspection).
var EventKinds = []Event{
	EventTaskCreated,
	EventTaskUpdated,
	EventTaskCompleted,
	EventWorkspaceStarted,
}

// IsValidEvent reports whether s names one of EventKinds.
func IsValidEvent(s string) bool {
	for _, e := range EventKinds {
		if string(e) == s {
			return true
		}
	}
	return false
}

// Subscription is a registered receiver endpoint, its signing secret, and
// the set of event kinds it wants delivered.
type Subscription struct {
	ID        string
	ProjectID string
	URL       string
	Secret    string
	// Events holds the subscribed event kinds as a JSON array of
	// snake_case strings, e.g. `["task_created","task_updated"]` — the
	// exact bytes persisted in the `events` column. Use EventList/Subscribes
	// rather than parsing this directly.
	Events    string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EncodeEvents serializes a list of event kinds into the JSON-array form
// stored in Subscription.Events.
func EncodeEvents(events []Event) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, e := range events {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(string(e))
		b.WriteByte('"')
	}
	b.WriteByte(']')
	return b.String()
}

// EventList parses Subscription.Events back into a slice of event kinds.
// Unrecognized tokens are dropped rather than erroring, matching the
// JSON-text storage's tolerant read-path.
func (s *Subscription) EventList() []Event {
	var out []Event
	for _, r := range gjson.Parse(s.Events).Array() {
		str := r.String()
		if IsValidEvent(str) {
			out = append(out, Event(str))
		}
	}
	return out
}

// Subscribes reports whether the subscription is active and its stored
// events array contains the given event. This mirrors the SQL-side
// containment check: a quoted token matching the event name, exact and
// case-sensitive, since event names are unique well-separated tokens
// with embedded quotes.
func (s *Subscription) Subscribes(event Event) bool {
	if !s.IsActive {
		return false
	}
	needle := `"` + string(event) + `"`
	return strings.Contains(s.Events, needle)
}

// SubscriptionRepository is the persistent store of Subscriptions.
type SubscriptionRepository interface {
	// Create persists a new subscription. The caller must have already
	// validated URL/events and generated a secret if none was supplied.
	Create(ctx context.Context, sub *Subscription) error

	FindByID(ctx context.Context, id string) (*Subscription, error)

	// FindByProject returns every subscription owned by projectID,
	// ordered by created_at descending, regardless of active state.
	FindByProject(ctx context.Context, projectID string) ([]*Subscription, error)

	// FindByProjectAndEvent returns the active subscriptions owned by
	// projectID that subscribe to event.
	FindByProjectAndEvent(ctx context.Context, projectID string, event Event) ([]*Subscription, error)

	// FindAllByEvent returns every active subscription, across all
	// projects, that subscribes to event.
	FindAllByEvent(ctx context.Context, event Event) ([]*Subscription, error)

	// Update persists the full current state of sub (URL, secret, events,
	// active flag). Callers apply partial-update semantics before
	// calling Update by merging onto a previously loaded Subscription.
	Update(ctx context.Context, sub *Subscription) error

	SetActive(ctx context.Context, id string, active bool) error

	// Delete removes the subscription. Callers are responsible for
	// deleting its delivery records first: deliveries before
	// subscription is the required cleanup order.
	Delete(ctx context.Context, id string) error
}
