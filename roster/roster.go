// Package roster defines the activity data exchanged with the signup backend:
// activities with their participants and the ordered snapshot of all of them.
package roster

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
)

// Activity is a scheduled offering with a capacity and a participant roster.
// The name is the key of the activity in the backend response and is not part
// of the JSON body.
type Activity struct {
	Name            string   `json:"-"`
	Description     string   `json:"description"`
	Schedule        string   `json:"schedule"`
	MaxParticipants int      `json:"max_participants"`
	Participants    []string `json:"participants"`
}

// SpotsLeft returns the remaining capacity. It is negative when the backend
// reports more participants than the maximum.
func (a Activity) SpotsLeft() int {
	return a.MaxParticipants - len(a.Participants)
}

// Clone returns a copy that shares no memory with a.
func (a Activity) Clone() Activity {
	a.Participants = slices.Clone(a.Participants)
	if a.Participants == nil {
		a.Participants = []string{}
	}
	return a
}

// Snapshot is the complete set of activities reported by the backend, in the
// order the backend returned them.
type Snapshot struct {
	Activities []Activity
}

// Names returns the activity names in snapshot order.
func (s Snapshot) Names() []string {
	names := make([]string, 0, len(s.Activities))
	for _, a := range s.Activities {
		names = append(names, a.Name)
	}
	return names
}

// Get returns the named activity.
func (s Snapshot) Get(name string) (Activity, bool) {
	for _, a := range s.Activities {
		if a.Name == name {
			return a, true
		}
	}
	return Activity{}, false
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{Activities: make([]Activity, 0, len(s.Activities))}
	for _, a := range s.Activities {
		out.Activities = append(out.Activities, a.Clone())
	}
	return out
}

// UnmarshalJSON decodes the backend's name -> activity object while keeping
// the key order. A repeated key replaces the earlier activity in place and a
// missing or null participants list decodes as empty.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		s.Activities = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected activities object, got %v", tok)
	}

	var activities []Activity
	index := make(map[string]int)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected activity name, got %v", tok)
		}

		var a Activity
		if err := dec.Decode(&a); err != nil {
			return fmt.Errorf("decoding activity %q: %w", name, err)
		}
		a.Name = name
		if a.Participants == nil {
			a.Participants = []string{}
		}

		if i, seen := index[name]; seen {
			activities[i] = a
			continue
		}
		index[name] = len(activities)
		activities = append(activities, a)
	}

	if _, err := dec.Token(); err != nil {
		return err
	}

	s.Activities = activities
	return nil
}

// MarshalJSON encodes the snapshot as a name -> activity object in snapshot
// order.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, a := range s.Activities {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(a.Name)
		if err != nil {
			return nil, err
		}
		if a.Participants == nil {
			a.Participants = []string{}
		}
		body, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("encoding activity %q: %w", a.Name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(body)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
