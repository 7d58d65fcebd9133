// Package app is the composition root of rollcall. It builds every roster
// component once from the configuration and wires them together.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/nomis52/rollcall/buildinfo"
	"github.com/nomis52/rollcall/config"
	"github.com/nomis52/rollcall/controller"
	"github.com/nomis52/rollcall/cron"
	"github.com/nomis52/rollcall/feedback"
	"github.com/nomis52/rollcall/logging"
	"github.com/nomis52/rollcall/metrics"
	"github.com/nomis52/rollcall/render"
	"github.com/nomis52/rollcall/signupclient"
	"github.com/nomis52/rollcall/store"
)

// App holds one wired set of roster components.
type App struct {
	Config     config.Config
	Logger     *slog.Logger
	Client     *signupclient.Client
	Store      *store.Store
	Page       *render.Page
	Notifier   *feedback.Notifier
	Controller *controller.Controller
	Logs       *logging.LogCollector
	Metrics    *metrics.RosterMetrics

	schedule  *cron.Set
	refreshes singleflight.Group
}

type options struct {
	registry metrics.Registry
}

// Option configures New.
type Option func(*options)

// WithRegistry records roster metrics in r.
func WithRegistry(r metrics.Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// New builds the components described by cfg.
func New(cfg config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	userAgent := cfg.Backend.UserAgent
	if userAgent == "" {
		userAgent = buildinfo.UserAgent()
	}
	client, err := signupclient.New(cfg.Backend.URL,
		signupclient.WithTimeout(cfg.Backend.Timeout),
		signupclient.WithUserAgent(userAgent),
	)
	if err != nil {
		return nil, fmt.Errorf("creating backend client: %w", err)
	}

	a := &App{
		Config: cfg,
		Logger: logger,
		Client: client,
		Store:  store.New(),
		Page:   render.NewPage(),
		Logs:   logging.NewLogCollector(logging.DefaultMaxEntries),
	}

	a.Notifier = feedback.New(feedback.WithLogger(logger))

	if o.registry != nil {
		a.Metrics, err = metrics.NewRosterMetrics(o.registry)
		if err != nil {
			return nil, err
		}
	}

	a.Controller = controller.New(client, a.Store, a.Page, a.Page, a.Notifier,
		controller.WithLogger(logger),
		controller.WithLoggerHook(logging.NewCapturingLoggerHook(a.Logs)),
		controller.WithMetrics(a.Metrics),
		controller.WithRefreshAfterUnregister(cfg.Behavior.UnregisterPolicy == config.UnregisterRefresh),
	)

	if cfg.Refresh.Schedule != "" {
		a.schedule, err = cron.NewSet(cfg.Refresh.Schedule, a.scheduledRefresh, logger)
		if err != nil {
			return nil, fmt.Errorf("creating refresh schedule: %w", err)
		}
	}

	return a, nil
}

// StartSchedule starts the scheduled refreshes, if any are configured.
// They stop when ctx is cancelled.
func (a *App) StartSchedule(ctx context.Context) {
	if a.schedule == nil {
		return
	}
	a.Logger.Info("starting refresh schedule", "next_run", a.schedule.NextRun())
	a.schedule.Start(ctx)
}

// scheduledRefresh reloads the roster. Schedules that fire together share
// one backend request.
func (a *App) scheduledRefresh(ctx context.Context) error {
	_, err, _ := a.refreshes.Do(controller.ActionRefresh, func() (any, error) {
		return nil, a.Controller.Refresh(ctx)
	})
	return err
}

// NextRefresh returns the next scheduled refresh, or nil if none is configured.
func (a *App) NextRefresh() *time.Time {
	if a.schedule == nil {
		return nil
	}
	next := a.schedule.NextRun()
	return &next
}
