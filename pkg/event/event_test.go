package event

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/etesami/traffic-accident-observer/pkg/monitoring"
	"github.com/etesami/traffic-accident-observer/pkg/observer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	os.Exit(m.Run())
}

func testEvent(id string) *Event {
	return &Event{ID: id, Kind: KindCollision, SourceID: "cam", FrameID: 3, PedestrianID: 1, VehicleID: 2, Timestamp: time.Unix(1700000000, 0).UTC()}
}

func TestFromFrame(t *testing.T) {
	at := time.Unix(1700000000, 0)
	f := &observer.Frame{
		FrameID:    9,
		Collisions: []observer.Collision{{PedestrianID: 1, VehicleID: 2, Point: observer.Point{X: 5, Y: 50}}},
		Alerts:     []observer.DangerAlert{{PedestrianID: 4, Point: observer.Point{X: 7, Y: 8}, Streak: 3}},
	}

	events := FromFrame("cam", f, at)

	require.Len(t, events, 2)
	assert.Equal(t, KindCollision, events[0].Kind)
	assert.Equal(t, 2, events[0].VehicleID)
	assert.Equal(t, int64(9), events[0].FrameID)
	assert.Equal(t, KindDangerZone, events[1].Kind)
	assert.Equal(t, 3, events[1].DangerStreak)
	assert.NotEqual(t, events[0].ID, events[1].ID)
	assert.Len(t, events[0].ID, 36)
}

func TestFileSinkWritesJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "events.jsonl")
	sink, err := NewFileSink(path)
	require.NoError(t, err)

	require.NoError(t, sink.Deliver(context.Background(), testEvent("a")))
	require.NoError(t, sink.Deliver(context.Background(), testEvent("b")))
	require.NoError(t, sink.Close(context.Background()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var decoded Event
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &decoded))
	assert.Equal(t, *testEvent("b"), decoded)
}

func TestNewFileSinkRequiresPath(t *testing.T) {
	_, err := NewFileSink("")
	assert.Error(t, err)
}

func TestWebhookSinkPosts(t *testing.T) {
	var got Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-Token"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink, err := NewWebhookSink(srv.URL, map[string]string{"X-Token": "secret"}, time.Second)
	require.NoError(t, err)
	require.NoError(t, sink.Deliver(context.Background(), testEvent("a")))
	assert.Equal(t, "a", got.ID)
}

func TestWebhookSinkRetriesAndReportsStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("nope"))
	}))
	defer srv.Close()

	sink, err := NewWebhookSink(srv.URL, nil, time.Second)
	require.NoError(t, err)
	sink.backoffs = []time.Duration{time.Millisecond, time.Millisecond}

	err = sink.Deliver(context.Background(), testEvent("a"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 418")
	assert.Equal(t, int32(3), calls.Load())
}

type recordingSink struct {
	mu     sync.Mutex
	events []*Event
	wait   chan struct{}
	closed bool
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Deliver(_ context.Context, ev *Event) error {
	if s.wait != nil {
		<-s.wait
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *recordingSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type countingRecorder struct {
	mu sync.Mutex
	ok map[string]int
}

func (r *countingRecorder) AddEventDelivery(sink string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ok {
		r.ok[sink]++
	}
}

func TestEmitterDeliversAndDrainsOnClose(t *testing.T) {
	sink := &recordingSink{}
	rec := &countingRecorder{ok: map[string]int{}}
	em := NewEmitter(EmitterConfig{QueueSize: 8, Workers: 2}, []Sink{sink}, rec)

	for _, id := range []string{"a", "b", "c"} {
		assert.True(t, em.Emit(testEvent(id)))
	}
	em.Close(context.Background())

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Len(t, sink.events, 3)
	assert.True(t, sink.closed)
	assert.Equal(t, 3, rec.ok["recording"])
	assert.False(t, em.Emit(testEvent("late")))
	assert.Equal(t, uint64(1), em.Dropped())
}

func TestEmitterDropsWhenQueueFull(t *testing.T) {
	wait := make(chan struct{})
	sink := &recordingSink{wait: wait}
	em := NewEmitter(EmitterConfig{QueueSize: 1, Workers: 1, ShutdownTimeout: time.Second}, []Sink{sink}, nil)

	// the worker blocks on the first event, the second fills the queue
	require.True(t, em.Emit(testEvent("1")))
	require.Eventually(t, func() bool { return len(em.queue) == 0 }, time.Second, time.Millisecond)
	require.True(t, em.Emit(testEvent("2")))
	assert.False(t, em.Emit(testEvent("3")))
	assert.Equal(t, uint64(1), em.Dropped())

	close(wait)
	em.Close(context.Background())
}
