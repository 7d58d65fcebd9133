package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/nomis52/rollcall/feedback"
)

// ErrorResponse is returned when an error occurs.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse is the JSON form of a feedback message.
type MessageResponse struct {
	Text string        `json:"text"`
	Kind feedback.Kind `json:"kind"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// wantsJSON reports whether the client asked for JSON rather than a page.
func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func currentMessage(p FeedbackProvider) *MessageResponse {
	msg, ok := p.Current()
	if !ok {
		return nil
	}
	return &MessageResponse{Text: msg.Text, Kind: msg.Kind}
}
