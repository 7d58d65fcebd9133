package render

import (
	"slices"
	"sync"

	"github.com/nomis52/rollcall/roster"
)

// Status describes what the roster area currently shows.
type Status string

const (
	StatusLoading   Status = "loading"
	StatusReady     Status = "ready"
	StatusLoadError Status = "error"
)

// Form is the signup form: the selected activity and the typed email.
type Form struct {
	Activity string `json:"activity"`
	Email    string `json:"email"`
}

// PageState is a copy of everything a Page shows.
type PageState struct {
	Status      Status   `json:"status"`
	Notice      string   `json:"notice,omitempty"`
	Cards       []Card   `json:"cards"`
	Placeholder Option   `json:"placeholder"`
	Options     []string `json:"options"`
	Form        Form     `json:"form"`
}

// Page is a retained roster view. It implements Renderer.
// All methods are safe for concurrent use.
type Page struct {
	mu          sync.RWMutex
	status      Status
	cards       []*Card
	placeholder Option
	options     []string
	form        Form
	renders     int
}

var _ Renderer = (*Page)(nil)

// NewPage creates a page that shows the loading notice.
func NewPage() *Page {
	return &Page{
		status:      StatusLoading,
		placeholder: Option{Value: "", Label: PlaceholderLabel},
	}
}

// RenderAll rebuilds every card and the selection options from snapshot.
// The placeholder option is kept in front of the new options.
func (p *Page) RenderAll(snapshot roster.Snapshot) {
	v := Build(snapshot)
	cards := make([]*Card, len(v.Cards))
	for i := range v.Cards {
		cards[i] = &v.Cards[i]
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.cards = cards
	p.options = v.Options
	p.status = StatusReady
	p.renders++
}

// RenderLoadError replaces the roster with LoadErrorText. The selection
// options keep whatever they held before.
func (p *Page) RenderLoadError() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cards = nil
	p.status = StatusLoadError
}

// PatchAvailability sets the spots-left figure of the named card only.
// Unknown names are ignored.
func (p *Page) PatchAvailability(activityName string, spotsLeft int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	c := p.card(activityName)
	if c == nil {
		return
	}
	c.SpotsLeft = spotsLeft
	c.Revision++
}

// RemoveParticipantRow removes the first row for identifier from the named
// card. It does nothing if there is no such row.
func (p *Page) RemoveParticipantRow(activityName, identifier string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	c := p.card(activityName)
	if c == nil {
		return
	}
	i := slices.IndexFunc(c.Rows, func(r Row) bool { return r.Identifier == identifier })
	if i < 0 {
		return
	}
	c.Rows = slices.Delete(c.Rows, i, i+1)
	c.Revision++
}

// SetForm records what the user entered in the signup form.
func (p *Page) SetForm(activity, email string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.form = Form{Activity: activity, Email: email}
}

// Reset clears the signup form.
func (p *Page) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.form = Form{}
}

// Form returns the signup form contents.
func (p *Page) Form() Form {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.form
}

// Card returns a copy of the named card.
func (p *Page) Card(activityName string) (Card, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	c := p.card(activityName)
	if c == nil {
		return Card{}, false
	}
	return c.clone(), true
}

// Renders returns how many times RenderAll has run.
func (p *Page) Renders() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.renders
}

// State returns a copy of the page contents.
func (p *Page) State() PageState {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s := PageState{
		Status:      p.status,
		Cards:       make([]Card, 0, len(p.cards)),
		Placeholder: p.placeholder,
		Options:     slices.Clone(p.options),
		Form:        p.form,
	}
	switch p.status {
	case StatusLoading:
		s.Notice = LoadingText
	case StatusLoadError:
		s.Notice = LoadErrorText
	}
	for _, c := range p.cards {
		s.Cards = append(s.Cards, c.clone())
	}
	return s
}

// card must be called with p.mu held.
func (p *Page) card(name string) *Card {
	for _, c := range p.cards {
		if c.Name == name {
			return c
		}
	}
	return nil
}
