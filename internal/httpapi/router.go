package httpapi

import "net/http"

// NewRouter builds the complete management API mux.
func NewRouter(subs *SubscriptionHandler) http.Handler {
	mux := http.NewServeMux()
	subs.Register(mux)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return mux
}
