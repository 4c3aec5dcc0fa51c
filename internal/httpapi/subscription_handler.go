package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/vibe-kanban/webhooks/internal/delivery"
	"github.com/vibe-kanban/webhooks/internal/domain"
	"github.com/vibe-kanban/webhooks/pkg/logger"
)

// SubscriptionHandler serves the webhook subscription management endpoints.
type SubscriptionHandler struct {
	subscriptions *delivery.SubscriptionService
	log           logger.Logger
}

// NewSubscriptionHandler creates a SubscriptionHandler.
func NewSubscriptionHandler(subs *delivery.SubscriptionService, log logger.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{subscriptions: subs, log: log}
}

// Register wires this handler's routes onto mux using Go 1.22+ method and
// path-parameter patterns.
func (h *SubscriptionHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/projects/{project_id}/webhooks", h.create)
	mux.HandleFunc("GET /api/projects/{project_id}/webhooks", h.list)
	mux.HandleFunc("GET /api/webhooks/{id}", h.get)
	mux.HandleFunc("PUT /api/webhooks/{id}", h.update)
	mux.HandleFunc("DELETE /api/webhooks/{id}", h.delete)
	mux.HandleFunc("GET /api/webhooks/{id}/deliveries", h.listDeliveries)
	mux.HandleFunc("POST /api/webhooks/{id}/test", h.test)
}

type createSubscriptionRequest struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Secret *string  `json:"secret"`
}

func (h *SubscriptionHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sub, err := h.subscriptions.Create(r.Context(), r.PathValue("project_id"), req.URL, toEvents(req.Events), req.Secret)
	if err != nil {
		writeErr(w, h.log, err)
		return
	}

	// The secret is only ever returned on creation; callers that lose it
	// must delete and recreate the subscription.
	created := subscriptionResponse(sub)
	created.Secret = sub.Secret
	writeData(w, http.StatusCreated, created)
}

func (h *SubscriptionHandler) list(w http.ResponseWriter, r *http.Request) {
	subs, err := h.subscriptions.List(r.Context(), r.PathValue("project_id"))
	if err != nil {
		writeErr(w, h.log, err)
		return
	}

	out := make([]subscriptionView, 0, len(subs))
	for _, s := range subs {
		out = append(out, subscriptionResponse(s))
	}
	writeData(w, http.StatusOK, out)
}

func (h *SubscriptionHandler) get(w http.ResponseWriter, r *http.Request) {
	sub, err := h.subscriptions.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErr(w, h.log, err)
		return
	}
	writeData(w, http.StatusOK, subscriptionResponse(sub))
}

type updateSubscriptionRequest struct {
	URL      *string  `json:"url"`
	Events   []string `json:"events"`
	IsActive *bool    `json:"is_active"`
	Secret   *string  `json:"secret"`
}

func (h *SubscriptionHandler) update(w http.ResponseWriter, r *http.Request) {
	var req updateSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var events []domain.Event
	if req.Events != nil {
		events = toEvents(req.Events)
	}

	sub, err := h.subscriptions.Update(r.Context(), r.PathValue("id"), req.URL, events, req.IsActive, req.Secret)
	if err != nil {
		writeErr(w, h.log, err)
		return
	}
	writeData(w, http.StatusOK, subscriptionResponse(sub))
}

func (h *SubscriptionHandler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.subscriptions.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeErr(w, h.log, err)
		return
	}
	writeData(w, http.StatusOK, nil)
}

// test sends a synthetic ping to the subscription's endpoint synchronously
// and reports the outcome without creating a delivery record.
func (h *SubscriptionHandler) test(w http.ResponseWriter, r *http.Request) {
	if err := h.subscriptions.SendTest(r.Context(), r.PathValue("id")); err != nil {
		writeErr(w, h.log, err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"message": "test webhook delivered successfully"})
}

func (h *SubscriptionHandler) listDeliveries(w http.ResponseWriter, r *http.Request) {
	limit := parseIntDefault(r.URL.Query().Get("limit"), 50)
	offset := parseIntDefault(r.URL.Query().Get("offset"), 0)

	records, total, err := h.subscriptions.ListDeliveries(r.Context(), r.PathValue("id"), limit, offset)
	if err != nil {
		writeErr(w, h.log, err)
		return
	}

	out := make([]deliveryView, 0, len(records))
	for _, rec := range records {
		out = append(out, deliveryResponse(rec))
	}
	writeData(w, http.StatusOK, map[string]interface{}{
		"deliveries": out,
		"total":      total,
		"limit":      limit,
		"offset":     offset,
	})
}

func toEvents(raw []string) []domain.Event {
	out := make([]domain.Event, len(raw))
	for i, s := range raw {
		out[i] = domain.Event(s)
	}
	return out
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}

type subscriptionView struct {
	ID        string   `json:"id"`
	ProjectID string   `json:"project_id"`
	URL       string   `json:"url"`
	Events    []string `json:"events"`
	IsActive  bool     `json:"is_active"`
	CreatedAt string   `json:"created_at"`
	UpdatedAt string   `json:"updated_at"`
	Secret    string   `json:"secret,omitempty"`
}

func subscriptionResponse(sub *domain.Subscription) subscriptionView {
	events := sub.EventList()
	strEvents := make([]string, len(events))
	for i, e := range events {
		strEvents[i] = string(e)
	}
	return subscriptionView{
		ID:        sub.ID,
		ProjectID: sub.ProjectID,
		URL:       sub.URL,
		Events:    strEvents,
		IsActive:  sub.IsActive,
		CreatedAt: sub.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt: sub.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

type deliveryView struct {
	ID          string  `json:"id"`
	EventType   string  `json:"event_type"`
	Status      string  `json:"status"`
	Attempts    int     `json:"attempts"`
	LastError   *string `json:"last_error,omitempty"`
	NextRetryAt *string `json:"next_retry_at,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

func deliveryResponse(rec *domain.DeliveryRecord) deliveryView {
	v := deliveryView{
		ID:        rec.ID,
		EventType: rec.EventType,
		Status:    string(rec.Status),
		Attempts:  rec.Attempts,
		LastError: rec.LastError,
		CreatedAt: rec.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if rec.NextRetryAt != nil {
		s := rec.NextRetryAt.Format("2006-01-02T15:04:05Z07:00")
		v.NextRetryAt = &s
	}
	return v
}
