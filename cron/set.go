package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const scheduleSeparator = ";"

// ParseSchedules splits a multi-schedule spec into its cron expressions and
// validates each one. Empty entries (e.g. a trailing semicolon) are skipped;
// a repeated expression is an error.
func ParseSchedules(spec string) ([]string, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, errors.New("cron spec cannot be empty")
	}

	var schedules []string
	seen := make(map[string]bool)
	for _, s := range strings.Split(spec, scheduleSeparator) {
		s = strings.Join(strings.Fields(s), " ")
		if s == "" {
			continue
		}
		if seen[s] {
			return nil, fmt.Errorf("duplicate schedule %q", s)
		}
		seen[s] = true

		if _, err := parser.Parse(s); err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrInvalidCronSpec, s, err)
		}
		schedules = append(schedules, s)
	}

	if len(schedules) == 0 {
		return nil, errors.New("no schedules found in cron spec")
	}
	return schedules, nil
}

// Set runs one RunFunc on several schedules.
type Set struct {
	triggers []*Trigger
	logger   *slog.Logger
}

// NewSet creates a trigger for each schedule in spec, all calling run.
func NewSet(spec string, run RunFunc, logger *slog.Logger) (*Set, error) {
	schedules, err := ParseSchedules(spec)
	if err != nil {
		return nil, err
	}

	triggers := make([]*Trigger, 0, len(schedules))
	for _, s := range schedules {
		trigger, err := NewTrigger(s, run, logger)
		if err != nil {
			return nil, fmt.Errorf("creating trigger for %q: %w", s, err)
		}
		triggers = append(triggers, trigger)
	}

	for i, trigger := range triggers {
		logger.Info("refresh schedule registered",
			"index", i,
			"schedule", trigger.Spec(),
			"next_run", trigger.NextRun(),
		)
	}

	return &Set{
		triggers: triggers,
		logger:   logger,
	}, nil
}

// Start launches all triggers. Each trigger runs in its own goroutine.
// Returns immediately. All goroutines exit when ctx is cancelled.
func (s *Set) Start(ctx context.Context) {
	for _, trigger := range s.triggers {
		trigger.Start(ctx)
	}
}

// Len returns the number of schedules in the set.
func (s *Set) Len() int {
	return len(s.triggers)
}

// NextRun returns the earliest scheduled run time across all triggers.
// Returns zero time if there are no triggers.
func (s *Set) NextRun() time.Time {
	return s.NextRunAfter(time.Now())
}

// NextRunAfter returns the earliest run time after from across all triggers.
func (s *Set) NextRunAfter(from time.Time) time.Time {
	var earliest time.Time
	for _, trigger := range s.triggers {
		next := trigger.NextRunAfter(from)
		if earliest.IsZero() || next.Before(earliest) {
			earliest = next
		}
	}
	return earliest
}
