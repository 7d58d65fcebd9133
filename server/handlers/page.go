package handlers

import (
	"net/http"
	"time"

	"github.com/nomis52/rollcall/render"
)

// PageResponse is the JSON response for /api/page.
type PageResponse struct {
	Page        render.PageState `json:"page"`
	Message     *MessageResponse `json:"message,omitempty"`
	NextRefresh *time.Time       `json:"next_refresh,omitempty"`
}

// PageHandler returns the roster view as JSON.
type PageHandler struct {
	page     PageProvider
	feedback FeedbackProvider
	schedule ScheduleProvider
}

// NewPageHandler creates a new PageHandler.
func NewPageHandler(page PageProvider, feedback FeedbackProvider, schedule ScheduleProvider) *PageHandler {
	return &PageHandler{
		page:     page,
		feedback: feedback,
		schedule: schedule,
	}
}

// ServeHTTP implements http.Handler.
func (h *PageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, PageResponse{
		Page:        h.page.State(),
		Message:     currentMessage(h.feedback),
		NextRefresh: h.schedule.NextRefresh(),
	})
}
