package handlers

import (
	"net/http"

	"github.com/nomis52/rollcall/logging"
)

// LogsHandler returns captured diagnostics. With ?action=<name> only that
// action's records are returned, otherwise all of them keyed by action.
type LogsHandler struct {
	logs LogProvider
}

// NewLogsHandler creates a new LogsHandler.
func NewLogsHandler(logs LogProvider) *LogsHandler {
	return &LogsHandler{
		logs: logs,
	}
}

// ServeHTTP implements http.Handler.
func (h *LogsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	action := r.URL.Query().Get("action")
	if action == "" {
		writeJSON(w, http.StatusOK, h.logs.GetAllLogs())
		return
	}

	entries := h.logs.GetLogs(action)
	if entries == nil {
		entries = []logging.LogEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
