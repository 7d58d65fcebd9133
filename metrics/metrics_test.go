package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang/protobuf/proto"
	"github.com/golang/snappy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/prometheus/prompb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nomis52/rollcall/logging"
)

// remoteWriteServer decodes remote write requests onto a channel.
func remoteWriteServer(t *testing.T, buffer int) (*httptest.Server, chan []prompb.TimeSeries) {
	t.Helper()
	received := make(chan []prompb.TimeSeries, buffer)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/write", r.URL.Path)
		assert.Equal(t, "snappy", r.Header.Get("Content-Encoding"))
		assert.Equal(t, "application/x-protobuf", r.Header.Get("Content-Type"))
		assert.Equal(t, "0.1.0", r.Header.Get("X-Prometheus-Remote-Write-Version"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		decoded, err := snappy.Decode(nil, body)
		require.NoError(t, err)

		var writeReq prompb.WriteRequest
		require.NoError(t, proto.Unmarshal(decoded, &writeReq))

		received <- writeReq.Timeseries
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(server.Close)
	return server, received
}

func findLabel(labels []prompb.Label, name string) string {
	for _, l := range labels {
		if l.Name == name {
			return l.Value
		}
	}
	return ""
}

func receive(t *testing.T, ch chan []prompb.TimeSeries) prompb.TimeSeries {
	t.Helper()
	select {
	case received := <-ch:
		require.Len(t, received, 1)
		return received[0]
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for metrics to be received")
		return prompb.TimeSeries{}
	}
}

func TestNewPushRegistry(t *testing.T) {
	tests := []struct {
		name string
		cfg  PushConfig
	}{
		{name: "minimal config", cfg: PushConfig{URL: "http://localhost:8428"}},
		{
			name: "full config",
			cfg: PushConfig{
				URL:      "http://localhost:8428/",
				Prefix:   "rollcall",
				Job:      "rollcall",
				Instance: "laptop",
				Timeout:  5 * time.Second,
				Logger:   logging.Discard(),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := NewPushRegistry(tt.cfg)
			require.NotNil(t, registry)
			assert.Equal(t, "http://localhost:8428/api/v1/write", registry.pusher.url)
		})
	}
}

func TestPushGauge_Set(t *testing.T) {
	server, received := remoteWriteServer(t, 1)

	registry := NewPushRegistry(PushConfig{
		URL:      server.URL,
		Prefix:   "rollcall",
		Job:      "rollcall",
		Instance: "laptop",
	})
	gauge, err := registry.NewGauge(prometheus.GaugeOpts{Name: "roster_activities", Help: "h"})
	require.NoError(t, err)

	gauge.Set(9)

	ts := receive(t, received)
	assert.Equal(t, "rollcall_roster_activities", findLabel(ts.Labels, "__name__"))
	assert.Equal(t, "rollcall", findLabel(ts.Labels, "job"))
	assert.Equal(t, "laptop", findLabel(ts.Labels, "instance"))
	require.Len(t, ts.Samples, 1)
	assert.Equal(t, 9.0, ts.Samples[0].Value)

	for i := 1; i < len(ts.Labels); i++ {
		assert.Less(t, ts.Labels[i-1].Name, ts.Labels[i].Name, "labels must be sorted")
	}
}

func TestPushGaugeVec_WithLabels(t *testing.T) {
	server, received := remoteWriteServer(t, 1)

	registry := NewPushRegistry(PushConfig{URL: server.URL})
	gaugeVec, err := registry.NewGaugeVec(prometheus.GaugeOpts{Name: "roster_activity_spots_left", Help: "h"}, []string{"activity"})
	require.NoError(t, err)

	gaugeVec.With(prometheus.Labels{"activity": "Chess Club"}).Set(-1)

	ts := receive(t, received)
	assert.Equal(t, "roster_activity_spots_left", findLabel(ts.Labels, "__name__"))
	assert.Equal(t, "Chess Club", findLabel(ts.Labels, "activity"))
	assert.Equal(t, -1.0, ts.Samples[0].Value)
}

func TestPushCounterVec_Accumulates(t *testing.T) {
	server, received := remoteWriteServer(t, 2)

	registry := NewPushRegistry(PushConfig{URL: server.URL})
	counterVec, err := registry.NewCounterVec(prometheus.CounterOpts{Name: "roster_actions_total", Help: "h"}, []string{"action", "outcome"})
	require.NoError(t, err)

	counterVec.With(prometheus.Labels{"action": "signup", "outcome": "success"}).Inc()
	counterVec.With(prometheus.Labels{"outcome": "success", "action": "signup"}).Inc()

	assert.Equal(t, 1.0, receive(t, received).Samples[0].Value)
	assert.Equal(t, 2.0, receive(t, received).Samples[0].Value, "same labels in any order share a counter")
}

func TestPush_FailureIsNotFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	registry := NewPushRegistry(PushConfig{URL: server.URL, Logger: logging.Discard()})
	counterVec, err := registry.NewCounterVec(prometheus.CounterOpts{Name: "c", Help: "h"}, []string{"outcome"})
	require.NoError(t, err)

	counterVec.With(prometheus.Labels{"outcome": "success"}).Inc()
	err = registry.pusher.push("c", 1, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 400")
}

func TestLabelsToKey(t *testing.T) {
	a := labelsToKey(prometheus.Labels{"b": "2", "a": "1"})
	b := labelsToKey(prometheus.Labels{"a": "1", "b": "2"})
	assert.Equal(t, a, b)
	assert.Equal(t, "a=1,b=2,", a)
}

func TestScrapeRegistry(t *testing.T) {
	registry, err := NewScrapeRegistry()
	require.NoError(t, err)

	gauge, err := registry.NewGauge(prometheus.GaugeOpts{Name: "test_gauge", Help: "A test gauge"})
	require.NoError(t, err)
	gauge.Set(42.0)

	counterVec, err := registry.NewCounterVec(prometheus.CounterOpts{Name: "test_counter", Help: "A test counter"}, []string{"outcome"})
	require.NoError(t, err)
	counterVec.With(prometheus.Labels{"outcome": "success"}).Inc()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	registry.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "test_gauge 42")
	assert.Contains(t, body, `test_counter{outcome="success"} 1`)
	assert.Contains(t, body, "go_goroutines")
}

func TestScrapeRegistry_DuplicateRegistration(t *testing.T) {
	registry, err := NewScrapeRegistry(WithoutRuntimeCollectors())
	require.NoError(t, err)

	_, err = registry.NewGauge(prometheus.GaugeOpts{Name: "dup", Help: "h"})
	require.NoError(t, err)
	_, err = registry.NewGauge(prometheus.GaugeOpts{Name: "dup", Help: "h"})
	assert.Error(t, err)
}

func TestRosterMetrics(t *testing.T) {
	registry, err := NewScrapeRegistry(WithoutRuntimeCollectors())
	require.NoError(t, err)

	m, err := NewRosterMetrics(registry)
	require.NoError(t, err)

	m.RecordAction("signup", OutcomeSuccess)
	m.RecordAction("signup", OutcomeSuccess)
	m.RecordAction("unregister", OutcomeRejected)
	m.SetSpotsLeft("Chess Club", 3)
	m.SetActivities(2)

	w := httptest.NewRecorder()
	registry.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := w.Body.String()

	assert.Contains(t, body, `roster_actions_total{action="signup",outcome="success"} 2`)
	assert.Contains(t, body, `roster_actions_total{action="unregister",outcome="rejected"} 1`)
	assert.Contains(t, body, `roster_activity_spots_left{activity="Chess Club"} 3`)
	assert.Contains(t, body, "roster_activities 2")
	assert.NotContains(t, body, "go_goroutines")
}

func TestRosterMetrics_Nil(t *testing.T) {
	var m *RosterMetrics
	assert.NotPanics(t, func() {
		m.RecordAction("refresh", OutcomeLoadError)
		m.SetSpotsLeft("A", 1)
		m.SetActivities(0)
	})
}
