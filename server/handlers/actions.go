package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/nomis52/rollcall/controller"
	"github.com/nomis52/rollcall/feedback"
)

// MissingFieldsText is shown to browsers that post an action without an
// activity or an email.
const MissingFieldsText = "Please choose an activity and enter an email"

// ActionResponse is the JSON response for the action endpoints.
type ActionResponse struct {
	OK      bool             `json:"ok"`
	Message *MessageResponse `json:"message,omitempty"`
}

// ActionHandler runs one roster action per request.
//
// Browsers post the signup and unregister forms and are redirected back to
// the page, which shows the outcome. Clients that send
// "Accept: application/json" get an ActionResponse instead: 200 when the
// action succeeded, 502 when the backend rejected it or could not be
// reached, 400 when a form field was missing.
type ActionHandler struct {
	logger   *slog.Logger
	run      func(r *http.Request) error
	feedback Notifier
}

// NewSignupHandler handles POST /signup with form fields activity and email.
// The submitted values, even incomplete ones, are recorded in the form so a
// failed signup can be corrected and resubmitted.
func NewSignupHandler(logger *slog.Logger, actions Actions, form FormRecorder, feedback Notifier) *ActionHandler {
	return &ActionHandler{
		logger:   logger,
		feedback: feedback,
		run: func(r *http.Request) error {
			activity, email, err := activityAndEmail(r)
			form.SetForm(activity, email)
			if err != nil {
				return err
			}
			return actions.Signup(r.Context(), activity, email)
		},
	}
}

// NewUnregisterHandler handles POST /unregister with form fields activity and email.
func NewUnregisterHandler(logger *slog.Logger, actions Actions, feedback Notifier) *ActionHandler {
	return &ActionHandler{
		logger:   logger,
		feedback: feedback,
		run: func(r *http.Request) error {
			activity, email, err := activityAndEmail(r)
			if err != nil {
				return err
			}
			return actions.Unregister(r.Context(), activity, email)
		},
	}
}

// NewRefreshHandler handles POST /refresh.
func NewRefreshHandler(logger *slog.Logger, refresher Refresher, feedback Notifier) *ActionHandler {
	return &ActionHandler{
		logger:   logger,
		feedback: feedback,
		run: func(r *http.Request) error {
			return refresher.Refresh(r.Context())
		},
	}
}

// errBadForm is returned when a required form field is missing.
var errBadForm = errors.New("activity and email are required")

func activityAndEmail(r *http.Request) (string, string, error) {
	if err := r.ParseForm(); err != nil {
		return "", "", errBadForm
	}
	activity := r.PostForm.Get("activity")
	email := r.PostForm.Get("email")
	if activity == "" || email == "" {
		return activity, email, errBadForm
	}
	return activity, email, nil
}

// ServeHTTP implements http.Handler.
func (h *ActionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Actions run to completion even if the client disconnects.
	r = r.WithContext(context.WithoutCancel(r.Context()))

	err := h.run(r)
	if errors.Is(err, errBadForm) {
		if wantsJSON(r) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		h.feedback.Show(MissingFieldsText, feedback.KindError)
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if err != nil {
		h.logger.Debug("action did not succeed", "path", r.URL.Path, "error", err)
	}

	if !wantsJSON(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	status := http.StatusOK
	if errors.Is(err, controller.ErrActionFailed) || errors.Is(err, controller.ErrLoadFailed) {
		status = http.StatusBadGateway
	} else if err != nil {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, ActionResponse{
		OK:      err == nil,
		Message: currentMessage(h.feedback),
	})
}
