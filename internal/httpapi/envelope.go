// Package httpapi exposes the webhook subscription management surface over
// HTTP: create, list, update, delete subscriptions, and inspect their
// delivery history.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vibe-kanban/webhooks/internal/domain"
	"github.com/vibe-kanban/webhooks/pkg/logger"
)

// envelope is the uniform JSON response shape every endpoint returns.
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeData(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Success: false, Message: message})
}

// writeErr maps a domain error to the appropriate status code: not-found
// errors become 404, validation errors become 400, anything else is a 500.
func writeErr(w http.ResponseWriter, log logger.Logger, err error) {
	var notFound *domain.ErrNotFound
	if errors.As(err, &notFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	var validation domain.ValidationError
	if errors.As(err, &validation) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	log.WithField("error", err.Error()).Error("unhandled request error")
	writeError(w, http.StatusInternalServerError, "internal server error")
}
