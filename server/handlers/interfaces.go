// Package handlers provides HTTP handlers for the rollcall web UI.
//
// Each handler is in its own file and implements http.Handler.
// Handlers use interfaces to access the roster components, avoiding
// circular imports.
package handlers

import (
	"context"
	"time"

	"github.com/nomis52/rollcall/feedback"
	"github.com/nomis52/rollcall/logging"
	"github.com/nomis52/rollcall/render"
)

// PageProvider provides the current roster view.
type PageProvider interface {
	State() render.PageState
}

// FormRecorder records what the user submitted in the signup form.
type FormRecorder interface {
	SetForm(activity, email string)
}

// FeedbackProvider provides the visible feedback message.
type FeedbackProvider interface {
	Current() (feedback.Message, bool)
}

// Notifier shows feedback messages and provides the visible one.
type Notifier interface {
	FeedbackProvider
	Show(text string, kind feedback.Kind)
}

// LogProvider provides the captured diagnostics of recent actions.
type LogProvider interface {
	GetLogs(action string) []logging.LogEntry
	GetAllLogs() map[string][]logging.LogEntry
}

// Refresher reloads the roster.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Actions runs the roster actions.
type Actions interface {
	Refresher
	Signup(ctx context.Context, activityName, identifier string) error
	Unregister(ctx context.Context, activityName, identifier string) error
}

// ScheduleProvider reports the next scheduled refresh, nil if none.
type ScheduleProvider interface {
	NextRefresh() *time.Time
}
