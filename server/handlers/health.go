package handlers

import (
	"net/http"

	"github.com/nomis52/rollcall/controller"
)

// StateProvider reports the roster load state.
type StateProvider interface {
	State() controller.State
}

// HealthHandler returns "ok" unless the last roster load failed, in which
// case it answers 503 with the state.
type HealthHandler struct {
	state StateProvider
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(state StateProvider) *HealthHandler {
	return &HealthHandler{state: state}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	if s := h.state.State(); s == controller.StateLoadError {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(s))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
