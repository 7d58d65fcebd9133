// Package render turns an activity snapshot into a roster view and keeps a
// retained view (Page) that can be patched in place.
//
// Build is the stateless part: one Card per activity in snapshot order plus
// the names for the activity selection control. Page holds the current view
// and implements Renderer so a controller can either replace everything
// (RenderAll) or make a targeted patch (PatchAvailability,
// RemoveParticipantRow) that leaves every other card untouched.
package render

import (
	"slices"

	"github.com/nomis52/rollcall/displayname"
	"github.com/nomis52/rollcall/roster"
)

const (
	// EmptyRosterText replaces the participant list of an empty activity.
	EmptyRosterText = "No one has signed up yet — be the first!"
	// LoadErrorText replaces the roster when activities could not be loaded.
	LoadErrorText = "Failed to load activities. Please try again later."
	// LoadingText is shown before the first load completes.
	LoadingText = "Loading activities..."
	// PlaceholderLabel is the label of the blank first selection option.
	PlaceholderLabel = "-- Select an activity --"
)

// Renderer is the set of view updates a controller needs.
type Renderer interface {
	// RenderAll replaces the whole roster and the selection options.
	RenderAll(snapshot roster.Snapshot)
	// RenderLoadError replaces the roster with a failure notice.
	RenderLoadError()
	// PatchAvailability updates the spots-left figure of one card.
	PatchAvailability(activityName string, spotsLeft int)
	// RemoveParticipantRow removes one row matching identifier.
	RemoveParticipantRow(activityName, identifier string)
}

// Row is one rendered participant.
type Row struct {
	Identifier  string `json:"identifier"`
	DisplayName string `json:"display_name"`
	Initials    string `json:"initials"`
	RemoveLabel string `json:"remove_label"`
}

// Card is one rendered activity.
type Card struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Schedule    string `json:"schedule"`
	SpotsLeft   int    `json:"spots_left"`
	Rows        []Row  `json:"participants"`
	// Revision counts in-place patches since the card was built.
	Revision int `json:"revision"`
}

// Empty reports whether the card shows the empty roster placeholder.
func (c Card) Empty() bool {
	return len(c.Rows) == 0
}

func (c Card) clone() Card {
	c.Rows = slices.Clone(c.Rows)
	return c
}

// Option is an entry of the activity selection control.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// View is the result of rendering a snapshot.
type View struct {
	Cards   []Card   `json:"cards"`
	Options []string `json:"options"`
}

// Build renders snapshot. It does not modify its input.
func Build(snapshot roster.Snapshot) View {
	v := View{
		Cards:   make([]Card, 0, len(snapshot.Activities)),
		Options: make([]string, 0, len(snapshot.Activities)),
	}
	for _, a := range snapshot.Activities {
		v.Cards = append(v.Cards, BuildCard(a))
		v.Options = append(v.Options, a.Name)
	}
	return v
}

// BuildCard renders a single activity. Participants may be nil.
func BuildCard(a roster.Activity) Card {
	c := Card{
		Name:        a.Name,
		Description: a.Description,
		Schedule:    a.Schedule,
		SpotsLeft:   a.SpotsLeft(),
		Rows:        make([]Row, 0, len(a.Participants)),
	}
	for _, p := range a.Participants {
		c.Rows = append(c.Rows, BuildRow(p))
	}
	return c
}

// BuildRow renders a single participant.
func BuildRow(identifier string) Row {
	name := displayname.Resolve(identifier)
	return Row{
		Identifier:  identifier,
		DisplayName: name,
		Initials:    displayname.Initials(name),
		RemoveLabel: "Unregister " + name,
	}
}
