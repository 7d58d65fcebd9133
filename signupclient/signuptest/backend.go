// Package signuptest provides an in-memory signup backend for tests.
//
// The Backend follows the same contract as the real service: 404 for an
// unknown activity, 400 for a duplicate signup, a full activity or an
// unregister of someone not signed up, and 200 with a message otherwise.
// Tests can override responses, hold requests open and count calls.
package signuptest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"

	"github.com/nomis52/rollcall/roster"
)

// Route names used by Requests, Respond and Hold.
const (
	RouteList       = "list"
	RouteSignup     = "signup"
	RouteUnregister = "unregister"
)

type override struct {
	status int
	body   string
}

// Backend is an http.Handler serving the signup API from memory.
type Backend struct {
	mu         sync.Mutex
	snapshot   roster.Snapshot
	requests   map[string]int
	overrides  map[string]override
	holds      map[string]chan struct{}
	requestIDs []string
	mux        *http.ServeMux
}

// NewBackend creates a Backend seeded with a copy of snapshot.
func NewBackend(snapshot roster.Snapshot) *Backend {
	b := &Backend{
		snapshot:  snapshot.Clone(),
		requests:  make(map[string]int),
		overrides: make(map[string]override),
		holds:     make(map[string]chan struct{}),
		mux:       http.NewServeMux(),
	}
	b.mux.HandleFunc("GET /activities", b.handleList)
	b.mux.HandleFunc("POST /activities/{name}/signup", b.handleSignup)
	b.mux.HandleFunc("POST /activities/{name}/unregister", b.handleUnregister)
	return b
}

// NewServer starts an httptest.Server around a new Backend. The server is
// closed when the test ends.
func NewServer(t testing.TB, snapshot roster.Snapshot) (*httptest.Server, *Backend) {
	t.Helper()
	b := NewBackend(snapshot)
	ts := httptest.NewServer(b)
	t.Cleanup(ts.Close)
	return ts, b
}

// DefaultActivities is the seed data of the school activities backend.
func DefaultActivities() roster.Snapshot {
	return roster.Snapshot{Activities: []roster.Activity{
		{
			Name:            "Chess Club",
			Description:     "Learn strategies and compete in chess tournaments",
			Schedule:        "Fridays, 3:30 PM - 5:00 PM",
			MaxParticipants: 12,
			Participants:    []string{"michael@mergington.edu", "daniel@mergington.edu"},
		},
		{
			Name:            "Programming Class",
			Description:     "Learn programming fundamentals and build software projects",
			Schedule:        "Tuesdays and Thursdays, 3:30 PM - 4:30 PM",
			MaxParticipants: 20,
			Participants:    []string{"emma@mergington.edu", "sophia@mergington.edu"},
		},
		{
			Name:            "Gym Class",
			Description:     "Physical education and sports activities",
			Schedule:        "Mondays, Wednesdays, Fridays, 2:00 PM - 3:00 PM",
			MaxParticipants: 30,
			Participants:    []string{"john@mergington.edu", "olivia@mergington.edu"},
		},
	}}
}

func (b *Backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mux.ServeHTTP(w, r)
}

// Requests returns how many requests the route has received.
func (b *Backend) Requests(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requests[route]
}

// RequestIDs returns the X-Request-ID headers seen so far, in arrival order.
func (b *Backend) RequestIDs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.requestIDs)
}

// Snapshot returns a copy of the backend's current state.
func (b *Backend) Snapshot() roster.Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshot.Clone()
}

// SetSnapshot replaces the backend's state.
func (b *Backend) SetSnapshot(s roster.Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snapshot = s.Clone()
}

// Respond makes the route answer with status and body. For a 2xx status on
// signup or unregister the state change is still applied; any other status
// leaves the state untouched.
func (b *Backend) Respond(route string, status int, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.overrides[route] = override{status: status, body: body}
}

// Reset removes every override set by Respond.
func (b *Backend) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.overrides = make(map[string]override)
}

// Hold makes requests on route block until the returned release function is
// called. Held requests observe the state as of their release.
func (b *Backend) Hold(route string) (release func()) {
	ch := make(chan struct{})
	b.mu.Lock()
	b.holds[route] = ch
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			if b.holds[route] == ch {
				delete(b.holds, route)
			}
			b.mu.Unlock()
			close(ch)
		})
	}
}

// enter records the request and waits on any hold for route.
func (b *Backend) enter(route string, r *http.Request) {
	b.mu.Lock()
	b.requests[route]++
	if id := r.Header.Get("X-Request-ID"); id != "" {
		b.requestIDs = append(b.requestIDs, id)
	}
	hold := b.holds[route]
	b.mu.Unlock()

	if hold != nil {
		select {
		case <-hold:
		case <-r.Context().Done():
		}
	}
}

func (b *Backend) handleList(w http.ResponseWriter, r *http.Request) {
	b.enter(RouteList, r)

	b.mu.Lock()
	o, overridden := b.overrides[RouteList]
	snapshot := b.snapshot.Clone()
	b.mu.Unlock()

	if overridden {
		writeRaw(w, o.status, o.body)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (b *Backend) handleSignup(w http.ResponseWriter, r *http.Request) {
	b.enter(RouteSignup, r)
	name := r.PathValue("name")
	email := r.URL.Query().Get("email")

	b.mu.Lock()
	defer b.mu.Unlock()

	o, overridden := b.overrides[RouteSignup]
	if overridden && o.status/100 != 2 {
		writeRaw(w, o.status, o.body)
		return
	}

	i := b.indexOf(name)
	if i < 0 {
		writeDetail(w, http.StatusNotFound, "Activity not found")
		return
	}
	a := &b.snapshot.Activities[i]
	if slices.Contains(a.Participants, email) {
		writeDetail(w, http.StatusBadRequest, "Student is already signed up")
		return
	}
	if len(a.Participants) >= a.MaxParticipants {
		writeDetail(w, http.StatusBadRequest, "Activity is full")
		return
	}
	a.Participants = append(a.Participants, email)

	if overridden {
		writeRaw(w, o.status, o.body)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": fmt.Sprintf("Signed up %s for %s", email, name)})
}

func (b *Backend) handleUnregister(w http.ResponseWriter, r *http.Request) {
	b.enter(RouteUnregister, r)
	name := r.PathValue("name")
	email := r.URL.Query().Get("email")

	b.mu.Lock()
	defer b.mu.Unlock()

	o, overridden := b.overrides[RouteUnregister]
	if overridden && o.status/100 != 2 {
		writeRaw(w, o.status, o.body)
		return
	}

	i := b.indexOf(name)
	if i < 0 {
		writeDetail(w, http.StatusNotFound, "Activity not found")
		return
	}
	a := &b.snapshot.Activities[i]
	pos := slices.Index(a.Participants, email)
	if pos < 0 {
		writeDetail(w, http.StatusBadRequest, "Student is not signed up for this activity")
		return
	}
	a.Participants = slices.Delete(a.Participants, pos, pos+1)

	if overridden {
		writeRaw(w, o.status, o.body)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": fmt.Sprintf("Unregistered %s from %s", email, name)})
}

func (b *Backend) indexOf(name string) int {
	for i, a := range b.snapshot.Activities {
		if a.Name == name {
			return i
		}
	}
	return -1
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeRaw(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
