// Package feedback shows the transient success or error message reported
// after a user action.
//
// There is a single message slot. Showing a message replaces the current one,
// cancels its pending auto-clear and schedules a new one. Messages clear
// themselves after a fixed duration (DefaultDuration) unless replaced sooner.
//
// Example usage:
//
//	n := feedback.New(feedback.WithLogger(logger))
//	n.Show("Signed up jane@mergington.edu for Chess Club", feedback.KindSuccess)
//	if msg, ok := n.Current(); ok {
//	    fmt.Println(msg.Text)
//	}
package feedback

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultDuration is how long a message stays visible.
const DefaultDuration = 5 * time.Second

// Kind selects the presentation of a message. It does not affect the text.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Message is the currently displayed feedback.
type Message struct {
	Text      string    `json:"text"`
	Kind      Kind      `json:"kind"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Timer is a pending auto-clear.
type Timer interface {
	Stop() bool
}

// Clock schedules auto-clears. The zero configuration uses the wall clock.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

func (wallClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Notifier owns the single feedback message slot.
// All methods are safe for concurrent use.
type Notifier struct {
	mu       sync.Mutex
	logger   *slog.Logger
	clock    Clock
	duration time.Duration
	onHide   func(Message)

	current    Message
	visible    bool
	timer      Timer
	generation uint64
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c Clock) Option {
	return func(n *Notifier) {
		n.clock = c
	}
}

// WithDuration overrides DefaultDuration.
func WithDuration(d time.Duration) Option {
	return func(n *Notifier) {
		if d > 0 {
			n.duration = d
		}
	}
}

// WithLogger sets the logger used to record shown messages.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Notifier) {
		n.logger = logger
	}
}

// WithHideHook registers a function called each time a message is cleared by
// its timer. It is called without internal locks held.
func WithHideHook(f func(Message)) Option {
	return func(n *Notifier) {
		n.onHide = f
	}
}

// New creates a Notifier with no message showing.
func New(opts ...Option) *Notifier {
	n := &Notifier{
		logger:   slog.Default(),
		clock:    wallClock{},
		duration: DefaultDuration,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Show replaces the current message and restarts the auto-clear timer.
func (n *Notifier) Show(text string, kind Kind) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.timer != nil {
		n.timer.Stop()
	}
	n.generation++
	gen := n.generation

	n.current = Message{
		Text:      text,
		Kind:      kind,
		ExpiresAt: n.clock.Now().Add(n.duration),
	}
	n.visible = true
	n.timer = n.clock.AfterFunc(n.duration, func() { n.expire(gen) })

	n.logger.Debug("feedback shown", "kind", string(kind), "text", text)
}

// Current returns the visible message, if any.
func (n *Notifier) Current() (Message, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current, n.visible
}

// expire clears the message shown as generation gen. A timer that lost the
// race with a newer Show finds a different generation and does nothing.
func (n *Notifier) expire(gen uint64) {
	n.mu.Lock()
	if gen != n.generation || !n.visible {
		n.mu.Unlock()
		return
	}
	msg := n.current
	n.visible = false
	n.current = Message{}
	n.timer = nil
	hook := n.onHide
	n.mu.Unlock()

	if hook != nil {
		hook(msg)
	}
}
