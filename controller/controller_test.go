package controller

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nomis52/rollcall/feedback"
	"github.com/nomis52/rollcall/logging"
	"github.com/nomis52/rollcall/metrics"
	"github.com/nomis52/rollcall/render"
	"github.com/nomis52/rollcall/roster"
	"github.com/nomis52/rollcall/signupclient"
	"github.com/nomis52/rollcall/signupclient/signuptest"
	"github.com/nomis52/rollcall/store"
)

type harness struct {
	backend  *signuptest.Backend
	server   *httptest.Server
	store    *store.Store
	page     *render.Page
	notifier *feedback.Notifier
	ctrl     *Controller
}

func newHarness(t *testing.T, snapshot roster.Snapshot, opts ...Option) *harness {
	t.Helper()
	server, backend := signuptest.NewServer(t, snapshot)
	client, err := signupclient.New(server.URL)
	require.NoError(t, err)

	h := &harness{
		backend:  backend,
		server:   server,
		store:    store.New(),
		page:     render.NewPage(),
		notifier: feedback.New(feedback.WithDuration(time.Minute), feedback.WithLogger(logging.Discard())),
	}
	opts = append([]Option{WithLogger(logging.Discard())}, opts...)
	h.ctrl = New(client, h.store, h.page, h.page, h.notifier, opts...)
	return h
}

func (h *harness) message(t *testing.T) feedback.Message {
	t.Helper()
	msg, ok := h.notifier.Current()
	require.True(t, ok, "expected a feedback message")
	return msg
}

func chessClub(participants ...string) roster.Snapshot {
	return roster.Snapshot{Activities: []roster.Activity{
		{
			Name:            "Chess Club",
			Description:     "Learn strategies and compete in chess tournaments",
			Schedule:        "Fridays, 3:30 PM - 5:00 PM",
			MaxParticipants: 5,
			Participants:    participants,
		},
		{
			Name:            "Gym Class",
			Description:     "Physical education and sports activities",
			Schedule:        "Mondays, Wednesdays, Fridays, 2:00 PM - 3:00 PM",
			MaxParticipants: 30,
			Participants:    []string{"john@mergington.edu"},
		},
	}}
}

func spotsLeft(t *testing.T, s *store.Store, name string) int {
	t.Helper()
	n, ok := s.SpotsLeft(name)
	require.True(t, ok)
	return n
}

func TestNew(t *testing.T) {
	h := newHarness(t, chessClub())
	assert.Equal(t, StateIdle, h.ctrl.State())
	assert.Same(t, h.store, h.ctrl.Store())
}

func TestRefresh(t *testing.T) {
	h := newHarness(t, chessClub("a@x.com", "b@x.com"))

	require.NoError(t, h.ctrl.Refresh(context.Background()))

	assert.Equal(t, StateReady, h.ctrl.State())
	assert.Equal(t, []string{"Chess Club", "Gym Class"}, h.store.Snapshot().Names())
	assert.Equal(t, 3, spotsLeft(t, h.store, "Chess Club"))

	state := h.page.State()
	assert.Equal(t, render.StatusReady, state.Status)
	assert.Equal(t, []string{"Chess Club", "Gym Class"}, state.Options)
	require.Len(t, state.Cards, 2)
	assert.Equal(t, 3, state.Cards[0].SpotsLeft)
	assert.Equal(t, 1, h.page.Renders())

	_, shown := h.notifier.Current()
	assert.False(t, shown, "a successful load shows no feedback")
}

func TestRefresh_LoadFailure(t *testing.T) {
	tests := []struct {
		name  string
		setup func(h *harness)
	}{
		{
			name:  "non-2xx status",
			setup: func(h *harness) { h.backend.Respond(signuptest.RouteList, http.StatusInternalServerError, "") },
		},
		{
			name:  "unreadable body",
			setup: func(h *harness) { h.backend.Respond(signuptest.RouteList, http.StatusOK, "<html>") },
		},
		{
			name:  "network failure",
			setup: func(h *harness) { h.server.Close() },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, chessClub("a@x.com"))
			require.NoError(t, h.ctrl.Refresh(context.Background()))

			tt.setup(h)
			err := h.ctrl.Refresh(context.Background())

			require.Error(t, err)
			assert.ErrorIs(t, err, ErrLoadFailed)
			assert.Equal(t, StateLoadError, h.ctrl.State())

			state := h.page.State()
			assert.Equal(t, render.StatusLoadError, state.Status)
			assert.Equal(t, render.LoadErrorText, state.Notice)
			assert.Empty(t, state.Cards)
			assert.Equal(t, []string{"Chess Club", "Gym Class"}, state.Options, "options are left as they were")
		})
	}
}

func TestSignup_Success(t *testing.T) {
	h := newHarness(t, chessClub("a@x.com", "b@x.com"))
	require.NoError(t, h.ctrl.Refresh(context.Background()))
	h.page.SetForm("Chess Club", "new@x.com")
	h.backend.Respond(signuptest.RouteSignup, http.StatusOK, `{"message":"Signed up new@x.com"}`)

	err := h.ctrl.Signup(context.Background(), "Chess Club", "new@x.com")
	require.NoError(t, err)

	assert.Equal(t, 2, h.backend.Requests(signuptest.RouteList), "signup triggers a full refresh")
	assert.Equal(t, 2, spotsLeft(t, h.store, "Chess Club"))

	card, ok := h.page.Card("Chess Club")
	require.True(t, ok)
	assert.Equal(t, 2, card.SpotsLeft)
	require.Len(t, card.Rows, 3)
	assert.Equal(t, "new@x.com", card.Rows[2].Identifier)

	msg := h.message(t)
	assert.Equal(t, "Signed up new@x.com", msg.Text)
	assert.Equal(t, feedback.KindSuccess, msg.Kind)
	assert.Equal(t, render.Form{}, h.page.Form(), "form is cleared")
}

func TestSignup_Failure(t *testing.T) {
	h := newHarness(t, chessClub("a@x.com", "b@x.com"))
	require.NoError(t, h.ctrl.Refresh(context.Background()))
	h.page.SetForm("Chess Club", "new@x.com")
	h.backend.Respond(signuptest.RouteSignup, http.StatusBadRequest, `{"detail":"Activity full"}`)

	err := h.ctrl.Signup(context.Background(), "Chess Club", "new@x.com")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrActionFailed)
	var actionErr *signupclient.ActionError
	require.ErrorAs(t, err, &actionErr)
	assert.Equal(t, http.StatusBadRequest, actionErr.StatusCode)

	assert.Equal(t, 3, spotsLeft(t, h.store, "Chess Club"))
	assert.Equal(t, 1, h.backend.Requests(signuptest.RouteList), "no refresh after a failed signup")

	msg := h.message(t)
	assert.Equal(t, "Activity full", msg.Text)
	assert.Equal(t, feedback.KindError, msg.Kind)
	assert.Equal(t, render.Form{Activity: "Chess Club", Email: "new@x.com"}, h.page.Form(), "form keeps its contents")
}

func TestUnregister_Success(t *testing.T) {
	snapshot := chessClub("a@x.com", "b@x.com")
	snapshot.Activities[0].MaxParticipants = 4
	h := newHarness(t, snapshot)
	require.NoError(t, h.ctrl.Refresh(context.Background()))
	h.backend.Respond(signuptest.RouteUnregister, http.StatusOK, `{"message":"Removed"}`)

	gymBefore, ok := h.page.Card("Gym Class")
	require.True(t, ok)
	chessBefore, ok := h.page.Card("Chess Club")
	require.True(t, ok)

	err := h.ctrl.Unregister(context.Background(), "Chess Club", "a@x.com")
	require.NoError(t, err)

	a, ok := h.store.Activity("Chess Club")
	require.True(t, ok)
	assert.Equal(t, []string{"b@x.com"}, a.Participants)
	assert.Equal(t, 3, spotsLeft(t, h.store, "Chess Club"))

	assert.Equal(t, 1, h.backend.Requests(signuptest.RouteList), "unregister does not refetch")
	assert.Equal(t, 1, h.page.Renders(), "unregister does not re-render")

	chess, ok := h.page.Card("Chess Club")
	require.True(t, ok)
	assert.Equal(t, chessBefore.SpotsLeft+1, chess.SpotsLeft)
	require.Len(t, chess.Rows, 1)
	assert.Equal(t, "b@x.com", chess.Rows[0].Identifier)
	assert.Greater(t, chess.Revision, chessBefore.Revision)

	gym, ok := h.page.Card("Gym Class")
	require.True(t, ok)
	assert.Equal(t, gymBefore, gym, "other cards are untouched")

	msg := h.message(t)
	assert.Equal(t, "Removed", msg.Text)
	assert.Equal(t, feedback.KindSuccess, msg.Kind)
}

func TestUnregister_Failure(t *testing.T) {
	snapshot := chessClub("a@x.com", "b@x.com")
	snapshot.Activities[0].MaxParticipants = 4
	h := newHarness(t, snapshot)
	require.NoError(t, h.ctrl.Refresh(context.Background()))
	h.backend.Respond(signuptest.RouteUnregister, http.StatusNotFound, `{"detail":"Not found"}`)
	before, ok := h.page.Card("Chess Club")
	require.True(t, ok)

	err := h.ctrl.Unregister(context.Background(), "Chess Club", "a@x.com")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrActionFailed)

	a, ok := h.store.Activity("Chess Club")
	require.True(t, ok)
	assert.Equal(t, []string{"a@x.com", "b@x.com"}, a.Participants)

	after, ok := h.page.Card("Chess Club")
	require.True(t, ok)
	assert.Equal(t, before, after)

	msg := h.message(t)
	assert.Equal(t, "Not found", msg.Text)
	assert.Equal(t, feedback.KindError, msg.Kind)
}

func TestUnregister_RefreshPolicy(t *testing.T) {
	h := newHarness(t, chessClub("a@x.com", "b@x.com"), WithRefreshAfterUnregister(true))
	require.NoError(t, h.ctrl.Refresh(context.Background()))

	require.NoError(t, h.ctrl.Unregister(context.Background(), "Chess Club", "a@x.com"))

	assert.Equal(t, 2, h.backend.Requests(signuptest.RouteList))
	assert.Equal(t, 2, h.page.Renders())
	assert.Equal(t, 4, spotsLeft(t, h.store, "Chess Club"))
	assert.Equal(t, "Unregistered a@x.com from Chess Club", h.message(t).Text)
}

func TestFeedbackFallbacks(t *testing.T) {
	tests := []struct {
		name     string
		route    string
		status   int
		body     string
		closed   bool
		wantText string
		wantKind feedback.Kind
		wantErr  bool
	}{
		{
			name:     "signup rejected without detail",
			route:    signuptest.RouteSignup,
			status:   http.StatusBadRequest,
			body:     `{}`,
			wantText: SignupRejectedText,
			wantKind: feedback.KindError,
			wantErr:  true,
		},
		{
			name:     "signup rejected with structured detail",
			route:    signuptest.RouteSignup,
			status:   http.StatusUnprocessableEntity,
			body:     `{"detail":[{"loc":["query","email"],"msg":"field required"}]}`,
			wantText: SignupRejectedText,
			wantKind: feedback.KindError,
			wantErr:  true,
		},
		{
			name:     "signup network failure",
			route:    signuptest.RouteSignup,
			closed:   true,
			wantText: SignupFailedText,
			wantKind: feedback.KindError,
			wantErr:  true,
		},
		{
			name:     "signup success without message",
			route:    signuptest.RouteSignup,
			status:   http.StatusOK,
			body:     `{}`,
			wantText: "Signed up new",
			wantKind: feedback.KindSuccess,
		},
		{
			name:     "unregister rejected without detail",
			route:    signuptest.RouteUnregister,
			status:   http.StatusBadRequest,
			body:     `not json`,
			wantText: UnregisterRejectedText,
			wantKind: feedback.KindError,
			wantErr:  true,
		},
		{
			name:     "unregister network failure",
			route:    signuptest.RouteUnregister,
			closed:   true,
			wantText: UnregisterFailedText,
			wantKind: feedback.KindError,
			wantErr:  true,
		},
		{
			name:     "unregister success without message",
			route:    signuptest.RouteUnregister,
			status:   http.StatusOK,
			body:     `{}`,
			wantText: "Unregistered a",
			wantKind: feedback.KindSuccess,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, chessClub("a@x.com"))
			require.NoError(t, h.ctrl.Refresh(context.Background()))
			if tt.closed {
				h.server.Close()
			} else {
				h.backend.Respond(tt.route, tt.status, tt.body)
			}

			var err error
			if tt.route == signuptest.RouteSignup {
				err = h.ctrl.Signup(context.Background(), "Chess Club", "new@x.com")
			} else {
				err = h.ctrl.Unregister(context.Background(), "Chess Club", "a@x.com")
			}

			if tt.wantErr {
				assert.ErrorIs(t, err, ErrActionFailed)
			} else {
				assert.NoError(t, err)
			}
			msg := h.message(t)
			assert.Equal(t, tt.wantText, msg.Text)
			assert.Equal(t, tt.wantKind, msg.Kind)
		})
	}
}

func TestUnregister_UnknownLocally(t *testing.T) {
	h := newHarness(t, chessClub("a@x.com"))
	require.NoError(t, h.ctrl.Refresh(context.Background()))

	// Someone else signed up after our last load.
	snapshot := h.backend.Snapshot()
	snapshot.Activities[0].Participants = append(snapshot.Activities[0].Participants, "late@x.com")
	h.backend.SetSnapshot(snapshot)

	require.NoError(t, h.ctrl.Unregister(context.Background(), "Chess Club", "late@x.com"))

	a, ok := h.store.Activity("Chess Club")
	require.True(t, ok)
	assert.Equal(t, []string{"a@x.com"}, a.Participants)
	assert.Equal(t, 4, spotsLeft(t, h.store, "Chess Club"))
}

func TestUnregister_Concurrent(t *testing.T) {
	participants := []string{"a@x.com", "b@x.com", "c@x.com", "d@x.com", "e@x.com"}
	snapshot := chessClub(participants...)
	snapshot.Activities[0].MaxParticipants = 10
	h := newHarness(t, snapshot)
	require.NoError(t, h.ctrl.Refresh(context.Background()))
	gymBefore, _ := h.page.Card("Gym Class")

	var wg sync.WaitGroup
	errs := make([]error, len(participants))
	for i, p := range participants {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = h.ctrl.Unregister(context.Background(), "Chess Club", p)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}

	a, ok := h.store.Activity("Chess Club")
	require.True(t, ok)
	assert.Empty(t, a.Participants)
	assert.Equal(t, 10, spotsLeft(t, h.store, "Chess Club"))

	card, _ := h.page.Card("Chess Club")
	assert.Empty(t, card.Rows)
	assert.True(t, card.Empty())
	assert.Equal(t, 10, card.SpotsLeft)

	gym, _ := h.page.Card("Gym Class")
	assert.Equal(t, gymBefore, gym)
	assert.Equal(t, 1, h.page.Renders())
}

func TestRefresh_ResolvingLastWins(t *testing.T) {
	h := newHarness(t, chessClub("a@x.com", "b@x.com"))
	require.NoError(t, h.ctrl.Refresh(context.Background()))

	release := h.backend.Hold(signuptest.RouteList)
	done := make(chan error, 1)
	go func() {
		done <- h.ctrl.Refresh(context.Background())
	}()
	require.Eventually(t, func() bool {
		return h.backend.Requests(signuptest.RouteList) == 2
	}, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, StateLoading, h.ctrl.State())

	// The unregister resolves first and patches the page in place.
	require.NoError(t, h.ctrl.Unregister(context.Background(), "Chess Club", "a@x.com"))
	assert.Equal(t, 1, h.page.Renders())

	// Meanwhile another client fills the activity.
	snapshot := h.backend.Snapshot()
	snapshot.Activities[0].Participants = []string{"b@x.com", "x@x.com", "y@x.com"}
	h.backend.SetSnapshot(snapshot)

	release()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("refresh did not finish")
	}

	assert.Equal(t, StateReady, h.ctrl.State())
	assert.Equal(t, 2, h.page.Renders())
	assert.Equal(t, 2, spotsLeft(t, h.store, "Chess Club"))
	card, _ := h.page.Card("Chess Club")
	assert.Len(t, card.Rows, 3)
}

func TestActionIDs(t *testing.T) {
	var n atomic.Int32
	h := newHarness(t, chessClub("a@x.com"), WithIDGenerator(func() string {
		return fmt.Sprintf("id-%d", n.Add(1))
	}))

	require.NoError(t, h.ctrl.Refresh(context.Background()))
	require.NoError(t, h.ctrl.Signup(context.Background(), "Chess Club", "new@x.com"))

	// The follow-up refresh of a signup reuses the signup's ID.
	assert.Equal(t, []string{"id-1", "id-2", "id-2"}, h.backend.RequestIDs())
}

func TestLogCapture(t *testing.T) {
	collector := logging.NewLogCollector(0)
	h := newHarness(t, chessClub("a@x.com"),
		WithLoggerHook(logging.NewCapturingLoggerHook(collector)),
		WithIDGenerator(func() string { return "fixed" }),
	)

	require.NoError(t, h.ctrl.Refresh(context.Background()))
	h.backend.Respond(signuptest.RouteUnregister, http.StatusBadRequest, `{"detail":"nope"}`)
	require.Error(t, h.ctrl.Unregister(context.Background(), "Chess Club", "a@x.com"))

	refreshLogs := collector.GetLogs(ActionRefresh)
	require.NotEmpty(t, refreshLogs)
	last := refreshLogs[len(refreshLogs)-1]
	assert.Equal(t, "activities loaded", last.Message)
	assert.Equal(t, "fixed", last.Attributes["action_id"])
	assert.Equal(t, ActionRefresh, last.Attributes["action"])

	unregisterLogs := collector.GetLogs(ActionUnregister)
	require.NotEmpty(t, unregisterLogs)
	last = unregisterLogs[len(unregisterLogs)-1]
	assert.Equal(t, "WARN", last.Level)
	assert.Equal(t, "nope", last.Attributes["detail"])
	assert.Equal(t, "a@x.com", last.Attributes["identifier"])
}

func TestMetrics(t *testing.T) {
	registry, err := metrics.NewScrapeRegistry(metrics.WithoutRuntimeCollectors())
	require.NoError(t, err)
	m, err := metrics.NewRosterMetrics(registry)
	require.NoError(t, err)

	h := newHarness(t, chessClub("a@x.com"), WithMetrics(m))
	require.NoError(t, h.ctrl.Refresh(context.Background()))
	require.NoError(t, h.ctrl.Unregister(context.Background(), "Chess Club", "a@x.com"))
	require.Error(t, h.ctrl.Signup(context.Background(), "Nope", "a@x.com"))
	require.Error(t, h.ctrl.Signup(context.Background(), "Nope", "b@x.com"))

	w := httptest.NewRecorder()
	registry.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := w.Body.String()

	assert.Contains(t, body, `roster_actions_total{action="refresh",outcome="success"} 1`)
	assert.Contains(t, body, `roster_actions_total{action="unregister",outcome="success"} 1`)
	assert.Contains(t, body, `roster_actions_total{action="signup",outcome="rejected"} 2`)
	assert.Contains(t, body, `roster_activity_spots_left{activity="Chess Club"} 5`)
	assert.Contains(t, body, "roster_activities 2")
}

func TestRefresh_MetricPushOutsideLock(t *testing.T) {
	arrived := make(chan struct{}, 1)
	release := make(chan struct{})
	push := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case arrived <- struct{}{}:
		default:
		}
		<-release
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(push.Close)
	var once sync.Once
	unblock := func() { once.Do(func() { close(release) }) }
	t.Cleanup(unblock)

	m, err := metrics.NewRosterMetrics(metrics.NewPushRegistry(metrics.PushConfig{
		URL:    push.URL,
		Logger: logging.Discard(),
	}))
	require.NoError(t, err)
	h := newHarness(t, chessClub("a@x.com"), WithMetrics(m))

	done := make(chan error, 1)
	go func() { done <- h.ctrl.Refresh(context.Background()) }()

	select {
	case <-arrived:
	case <-time.After(5 * time.Second):
		t.Fatal("no metric was pushed")
	}

	state := make(chan State, 1)
	go func() { state <- h.ctrl.State() }()
	select {
	case s := <-state:
		assert.Equal(t, StateReady, s)
	case <-time.After(time.Second):
		t.Fatal("State blocked while metrics were being pushed")
	}
	assert.Len(t, h.page.State().Cards, 2)

	unblock()
	require.NoError(t, <-done)
}
