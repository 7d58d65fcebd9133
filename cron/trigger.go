// Package cron runs roster refreshes on a cron schedule.
//
// A Trigger wraps a RunFunc and calls it according to a standard 5 field
// cron spec. A Set holds one trigger per schedule of a multi-schedule spec
// such as "0 8 * * 1-5;30 12 * * 1-5".
//
// Example usage:
//
//	set, err := cron.NewSet("*/15 * * * *", ctrl.Refresh, logger)
//	if err != nil {
//	    return err
//	}
//	set.Start(ctx)  // Returns immediately, runs in background
//	<-ctx.Done()    // Wait for shutdown signal
package cron

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrInvalidCronSpec is returned when the cron specification cannot be parsed.
var ErrInvalidCronSpec = errors.New("invalid cron spec")

// RunFunc is called each time a schedule fires. The context is the one
// passed to Start.
type RunFunc func(ctx context.Context) error

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Trigger executes a RunFunc according to a cron schedule.
type Trigger struct {
	spec     string
	schedule cron.Schedule
	run      RunFunc
	logger   *slog.Logger
}

// NewTrigger creates a new Trigger with the given cron specification.
// The spec follows standard cron format (5 fields: minute, hour, day, month, weekday).
// Returns ErrInvalidCronSpec if the specification cannot be parsed.
func NewTrigger(spec string, run RunFunc, logger *slog.Logger) (*Trigger, error) {
	schedule, err := parser.Parse(spec)
	if err != nil {
		return nil, errors.Join(ErrInvalidCronSpec, err)
	}

	return &Trigger{
		spec:     spec,
		schedule: schedule,
		run:      run,
		logger:   logger.With("schedule", spec),
	}, nil
}

// Spec returns the cron specification the trigger was built from.
func (t *Trigger) Spec() string {
	return t.spec
}

// Start launches a goroutine that triggers runs according to the cron schedule.
// Returns immediately. The goroutine exits when ctx is cancelled.
func (t *Trigger) Start(ctx context.Context) {
	go t.loop(ctx)
}

// NextRun returns the next scheduled run time from now.
func (t *Trigger) NextRun() time.Time {
	return t.NextRunAfter(time.Now())
}

// NextRunAfter returns the first scheduled run time after from.
func (t *Trigger) NextRunAfter(from time.Time) time.Time {
	return t.schedule.Next(from)
}

func (t *Trigger) loop(ctx context.Context) {
	for {
		nextRun := t.schedule.Next(time.Now())
		wait := time.Until(nextRun)

		t.logger.Debug("waiting for next scheduled refresh",
			"next_run", nextRun,
			"wait_duration", wait,
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			t.logger.Debug("cron trigger shutting down")
			return
		case <-timer.C:
			t.execute(ctx)
		}
	}
}

func (t *Trigger) execute(ctx context.Context) {
	t.logger.Info("starting scheduled refresh")

	if err := t.run(ctx); err != nil {
		t.logger.Warn("scheduled refresh completed with error", "error", err)
	} else {
		t.logger.Info("scheduled refresh completed successfully")
	}
}
