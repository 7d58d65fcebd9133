// Package controller keeps a local roster in sync with the activities backend.
//
// A Controller runs the three user actions (refresh, signup, unregister).
// Each action makes its backend call without holding any lock and then
// applies the outcome to the store, the renderer and the notifier as one
// step under the controller's mutex. Actions are not ordered relative to
// each other: whichever response resolves last determines what is shown.
//
// Example usage:
//
//	ctrl := controller.New(client, store.New(), page, page, notifier,
//	    controller.WithLogger(logger),
//	)
//	if err := ctrl.Refresh(ctx); err != nil {
//	    // the page already shows the load failure notice
//	}
//	_ = ctrl.Signup(ctx, "Chess Club", "jane@mergington.edu")
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/nomis52/rollcall/displayname"
	"github.com/nomis52/rollcall/feedback"
	"github.com/nomis52/rollcall/logging"
	"github.com/nomis52/rollcall/metrics"
	"github.com/nomis52/rollcall/render"
	"github.com/nomis52/rollcall/roster"
	"github.com/nomis52/rollcall/signupclient"
	"github.com/nomis52/rollcall/store"
)

// Action names used for logging, log capture and metrics.
const (
	ActionRefresh    = "refresh"
	ActionSignup     = "signup"
	ActionUnregister = "unregister"
)

// Feedback texts used when the backend does not supply one.
const (
	SignupRejectedText      = "An error occurred"
	SignupFailedText        = "Failed to sign up. Please try again."
	UnregisterRejectedText  = "Failed to unregister"
	UnregisterFailedText    = "Failed to unregister. Please try again."
	unregisteredDefaultText = "Unregistered %s"
	signedUpDefaultText     = "Signed up %s"
)

var (
	// ErrLoadFailed is returned when the activities list could not be loaded.
	ErrLoadFailed = errors.New("failed to load activities")
	// ErrActionFailed is returned when a signup or unregister did not succeed.
	ErrActionFailed = errors.New("action failed")
)

// State is the load state of the roster.
type State string

const (
	StateIdle      State = "idle"
	StateLoading   State = "loading"
	StateReady     State = "ready"
	StateLoadError State = "load_error"
)

// Backend is the activities API.
type Backend interface {
	ListActivities(ctx context.Context) (roster.Snapshot, error)
	Signup(ctx context.Context, activityName, identifier string) (signupclient.ActionResult, error)
	Unregister(ctx context.Context, activityName, identifier string) (signupclient.ActionResult, error)
}

// Form is the signup input form.
type Form interface {
	Reset()
}

// Notifier shows the outcome of an action.
type Notifier interface {
	Show(text string, kind feedback.Kind)
}

// Controller runs roster actions against a Backend.
// All methods are safe for concurrent use.
type Controller struct {
	backend  Backend
	store    *store.Store
	renderer render.Renderer
	form     Form
	notifier Notifier

	logger                 *slog.Logger
	hook                   logging.LoggerHook
	metrics                *metrics.RosterMetrics
	newID                  func() string
	refreshAfterUnregister bool

	// mu serializes the apply phase of every action.
	mu    sync.Mutex
	state State
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithLoggerHook wraps the logger of every action, e.g. to capture its records.
func WithLoggerHook(hook logging.LoggerHook) Option {
	return func(c *Controller) {
		c.hook = hook
	}
}

// WithMetrics records action outcomes and availability.
func WithMetrics(m *metrics.RosterMetrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// WithRefreshAfterUnregister reloads every activity after a successful
// unregister instead of patching the one affected card.
func WithRefreshAfterUnregister(enabled bool) Option {
	return func(c *Controller) {
		c.refreshAfterUnregister = enabled
	}
}

// WithIDGenerator overrides how action IDs are generated.
func WithIDGenerator(f func() string) Option {
	return func(c *Controller) {
		c.newID = f
	}
}

// New creates a Controller in the idle state.
func New(backend Backend, s *store.Store, renderer render.Renderer, form Form, notifier Notifier, opts ...Option) *Controller {
	c := &Controller{
		backend:  backend,
		store:    s,
		renderer: renderer,
		form:     form,
		notifier: notifier,
		logger:   slog.Default(),
		hook:     logging.PassthroughLoggerHook{},
		newID:    uuid.NewString,
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current load state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Store returns the store the controller writes to.
func (c *Controller) Store() *store.Store {
	return c.store
}

// Refresh reloads every activity and re-renders the roster. On failure the
// roster is replaced with the load failure notice and ErrLoadFailed is
// returned. No retry is scheduled.
func (c *Controller) Refresh(ctx context.Context) error {
	ctx, logger := c.begin(ctx, ActionRefresh)
	return c.refresh(ctx, logger)
}

func (c *Controller) refresh(ctx context.Context, logger *slog.Logger) error {
	c.mu.Lock()
	c.state = StateLoading
	c.mu.Unlock()

	logger.Debug("loading activities")
	snapshot, err := c.backend.ListActivities(ctx)

	// Metrics are recorded after unlocking; a push registry writes over
	// the network.
	c.mu.Lock()
	if err != nil {
		c.state = StateLoadError
		c.renderer.RenderLoadError()
		c.mu.Unlock()

		c.metrics.RecordAction(ActionRefresh, metrics.OutcomeLoadError)
		logger.Error("failed to load activities", "error", err)
		return fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}

	c.store.ReplaceAll(snapshot)
	c.renderer.RenderAll(c.store.Snapshot())
	c.state = StateReady
	c.mu.Unlock()

	c.metrics.RecordAction(ActionRefresh, metrics.OutcomeSuccess)
	c.metrics.SetActivities(len(snapshot.Activities))
	for _, a := range snapshot.Activities {
		c.metrics.SetSpotsLeft(a.Name, a.SpotsLeft())
	}
	logger.Info("activities loaded", "activities", len(snapshot.Activities))
	return nil
}

// Signup registers identifier for an activity. On success the form is
// cleared, the backend's message is shown and every activity is reloaded;
// the returned error is then the reload's. On failure the form keeps its
// contents and the backend's detail, or a fallback, is shown.
func (c *Controller) Signup(ctx context.Context, activityName, identifier string) error {
	ctx, logger := c.begin(ctx, ActionSignup)
	logger = logger.With("activity", activityName, "identifier", identifier)

	logger.Debug("signing up")
	result, err := c.backend.Signup(ctx, activityName, identifier)
	if err != nil {
		c.mu.Lock()
		c.notifier.Show(failureText(err, SignupRejectedText, SignupFailedText), feedback.KindError)
		c.mu.Unlock()
		return c.actionFailed(logger, ActionSignup, err)
	}

	text := result.Message
	if text == "" {
		text = fmt.Sprintf(signedUpDefaultText, displayname.Resolve(identifier))
	}

	c.mu.Lock()
	c.form.Reset()
	c.notifier.Show(text, feedback.KindSuccess)
	c.mu.Unlock()

	c.metrics.RecordAction(ActionSignup, metrics.OutcomeSuccess)
	logger.Info("signed up", "message", result.Message)

	return c.refresh(ctx, logger)
}

// Unregister removes identifier from an activity. On success the first
// matching row is removed and the card's availability patched in place,
// without reloading, unless the controller was built with
// WithRefreshAfterUnregister. On failure nothing but the feedback changes.
func (c *Controller) Unregister(ctx context.Context, activityName, identifier string) error {
	ctx, logger := c.begin(ctx, ActionUnregister)
	logger = logger.With("activity", activityName, "identifier", identifier)

	logger.Debug("unregistering")
	result, err := c.backend.Unregister(ctx, activityName, identifier)
	if err != nil {
		c.mu.Lock()
		c.notifier.Show(failureText(err, UnregisterRejectedText, UnregisterFailedText), feedback.KindError)
		c.mu.Unlock()
		return c.actionFailed(logger, ActionUnregister, err)
	}

	text := result.Message
	if text == "" {
		text = fmt.Sprintf(unregisteredDefaultText, displayname.Resolve(identifier))
	}
	c.metrics.RecordAction(ActionUnregister, metrics.OutcomeSuccess)

	if c.refreshAfterUnregister {
		c.mu.Lock()
		c.notifier.Show(text, feedback.KindSuccess)
		c.mu.Unlock()
		logger.Info("unregistered", "message", result.Message)
		return c.refresh(ctx, logger)
	}

	c.mu.Lock()
	removed := c.store.RemoveParticipant(activityName, identifier)
	c.renderer.RemoveParticipantRow(activityName, identifier)
	spotsLeft, known := c.store.SpotsLeft(activityName)
	if known {
		c.renderer.PatchAvailability(activityName, spotsLeft)
	}
	c.notifier.Show(text, feedback.KindSuccess)
	c.mu.Unlock()

	if known {
		c.metrics.SetSpotsLeft(activityName, spotsLeft)
	}
	logger.Info("unregistered", "message", result.Message, "removed_locally", removed)
	return nil
}

// begin starts one action: it assigns an action ID, sends it to the backend
// as the request ID and tags the action's logger with it.
func (c *Controller) begin(ctx context.Context, action string) (context.Context, *slog.Logger) {
	id := c.newID()
	logger := c.hook.LoggerForAction(c.logger, action).With("action_id", id)
	return signupclient.ContextWithRequestID(ctx, id), logger
}

func (c *Controller) actionFailed(logger *slog.Logger, action string, err error) error {
	var rejected *signupclient.ActionError
	if errors.As(err, &rejected) {
		c.metrics.RecordAction(action, metrics.OutcomeRejected)
		logger.Warn("backend rejected "+action, "status", rejected.StatusCode, "detail", rejected.Detail)
	} else {
		c.metrics.RecordAction(action, metrics.OutcomeNetworkError)
		logger.Warn(action+" request failed", "error", err)
	}
	return fmt.Errorf("%w: %w", ErrActionFailed, err)
}

// failureText picks the feedback for a failed action: the backend's detail
// when it gave one, rejected when it gave none, failed when the request did
// not complete.
func failureText(err error, rejected, failed string) string {
	var actionErr *signupclient.ActionError
	if !errors.As(err, &actionErr) {
		return failed
	}
	if actionErr.Detail != "" {
		return actionErr.Detail
	}
	return rejected
}
