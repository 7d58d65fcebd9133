package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcomes recorded for roster actions.
const (
	OutcomeSuccess      = "success"
	OutcomeRejected     = "rejected"
	OutcomeNetworkError = "network_error"
	OutcomeLoadError    = "load_error"
)

// RosterMetrics is the metric set recorded while keeping a roster in sync.
// A nil *RosterMetrics records nothing.
type RosterMetrics struct {
	actions    CounterVec
	spotsLeft  GaugeVec
	activities Gauge
}

// NewRosterMetrics creates and registers the roster metrics with r.
func NewRosterMetrics(r Registry) (*RosterMetrics, error) {
	actions, err := r.NewCounterVec(prometheus.CounterOpts{
		Name: "roster_actions_total",
		Help: "Roster actions (refresh, signup, unregister) by outcome.",
	}, []string{"action", "outcome"})
	if err != nil {
		return nil, fmt.Errorf("creating actions counter: %w", err)
	}

	spotsLeft, err := r.NewGaugeVec(prometheus.GaugeOpts{
		Name: "roster_activity_spots_left",
		Help: "Spots left per activity as last seen by the client. Negative when over capacity.",
	}, []string{"activity"})
	if err != nil {
		return nil, fmt.Errorf("creating spots left gauge: %w", err)
	}

	activities, err := r.NewGauge(prometheus.GaugeOpts{
		Name: "roster_activities",
		Help: "Number of activities in the last loaded snapshot.",
	})
	if err != nil {
		return nil, fmt.Errorf("creating activities gauge: %w", err)
	}

	return &RosterMetrics{
		actions:    actions,
		spotsLeft:  spotsLeft,
		activities: activities,
	}, nil
}

// RecordAction counts one finished action.
func (m *RosterMetrics) RecordAction(action, outcome string) {
	if m == nil {
		return
	}
	m.actions.With(prometheus.Labels{"action": action, "outcome": outcome}).Inc()
}

// SetSpotsLeft records the spots left for one activity.
func (m *RosterMetrics) SetSpotsLeft(activity string, spotsLeft int) {
	if m == nil {
		return
	}
	m.spotsLeft.With(prometheus.Labels{"activity": activity}).Set(float64(spotsLeft))
}

// SetActivities records the size of the last snapshot.
func (m *RosterMetrics) SetActivities(n int) {
	if m == nil {
		return
	}
	m.activities.Set(float64(n))
}
