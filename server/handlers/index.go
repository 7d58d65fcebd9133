package handlers

import (
	"bytes"
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/nomis52/rollcall/feedback"
	"github.com/nomis52/rollcall/render"
)

//go:embed templates/index.html
var templateFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// indexData is what the page template renders.
type indexData struct {
	Page        render.PageState
	Message     *feedback.Message
	EmptyText   string
	NextRefresh *time.Time
}

// IndexHandler renders the roster page.
type IndexHandler struct {
	logger   *slog.Logger
	page     PageProvider
	feedback FeedbackProvider
	schedule ScheduleProvider
}

// NewIndexHandler creates a new IndexHandler.
func NewIndexHandler(logger *slog.Logger, page PageProvider, feedback FeedbackProvider, schedule ScheduleProvider) *IndexHandler {
	return &IndexHandler{
		logger:   logger,
		page:     page,
		feedback: feedback,
		schedule: schedule,
	}
}

// ServeHTTP implements http.Handler.
func (h *IndexHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	data := indexData{
		Page:        h.page.State(),
		EmptyText:   render.EmptyRosterText,
		NextRefresh: h.schedule.NextRefresh(),
	}
	if msg, ok := h.feedback.Current(); ok {
		data.Message = &msg
	}

	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, data); err != nil {
		h.logger.Error("failed to render page", "error", err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Debug("failed to write page", "error", err)
	}
}
