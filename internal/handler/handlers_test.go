package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"SafeCircle/internal/models"
	"SafeCircle/internal/reminder"
	"SafeCircle/internal/sos"
	"SafeCircle/internal/store"
	"SafeCircle/pkg/cache"
	"SafeCircle/pkg/notification"
	"SafeCircle/pkg/presence"
	"SafeCircle/pkg/scheduler"
	"SafeCircle/pkg/util"
	pkgws "SafeCircle/pkg/websocket"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type recordSink struct {
	mu    sync.Mutex
	notes []notification.Notification
}

func (s *recordSink) Notify(_ context.Context, n notification.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes = append(s.notes, n)
	return nil
}

func (s *recordSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.notes)
}

type testEnv struct {
	engine   *gin.Engine
	db       *gorm.DB
	sink     *recordSink
	presence *presence.Store
	sched    *scheduler.Scheduler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := util.InitDatabase("", "")
	require.NoError(t, err)
	require.NoError(t, store.AutoMigrate(db))

	c, err := cache.NewCache(cache.Config{Type: "local"})
	require.NoError(t, err)

	hub := pkgws.NewHub(nil)
	t.Cleanup(hub.Close)

	sink := &recordSink{}
	presenceStore := presence.NewStore(c, hub)
	locator := presence.NewLocator(presenceStore, time.Minute)

	sessions := store.NewSessionStore(db)
	friends := store.NewFriendStore(db)
	participants := store.NewParticipantStore(db)

	cfg := sos.Config{CountdownTicks: 1, TickInterval: time.Millisecond, LocationWindow: 20 * time.Millisecond}
	registry := sos.NewRegistry(func(id string) *sos.Coordinator {
		return sos.New(sos.BoundIdentity(id, participants), friends, locator, sessions, presenceStore, sink, cfg)
	})

	var planner *reminder.Planner
	sched := scheduler.New(store.NewJobStore(db), func(ctx context.Context, rec scheduler.JobRecord) {
		planner.HandleFire(ctx, rec)
	})
	planner = reminder.NewPlanner(sched, sink)

	h := NewHandlers(db, registry, presenceStore, planner, hub)
	engine := gin.New()
	h.Register(engine, "/api")

	return &testEnv{engine: engine, db: db, sink: sink, presence: presenceStore, sched: sched}
}

func (env *testEnv) do(t *testing.T, method, path, participant string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if participant != "" {
		req.Header.Set("X-Participant-ID", participant)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	env.engine.ServeHTTP(w, req)
	return w
}

func TestIdentityRequired(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/sos/state", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHealthNeedsNoIdentity(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMetricsExposed(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestSosTriggerFlow(t *testing.T) {
	env := newTestEnv(t)

	// alice trusts bob and has a known position
	w := env.do(t, http.MethodPost, "/api/friends", "alice", gin.H{"friend_id": "bob"})
	require.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, http.MethodPost, "/api/location", "alice", gin.H{"latitude": 48.1, "longitude": 11.5})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/api/sos/trigger", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)

	deadline := time.Now().Add(2 * time.Second)
	for env.sink.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	require.Equal(t, 1, env.sink.count(), "one alert for the single trusted contact")

	w = env.do(t, http.MethodGet, "/api/sos/state", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var envelope struct {
		Data sos.Snapshot `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, sos.Fired, envelope.Data.State)
	require.NotEmpty(t, envelope.Data.SessionID)

	w = env.do(t, http.MethodGet, "/api/sos/sessions/"+envelope.Data.SessionID, "bob", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/api/sos/cancel", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, env.sink.count(), "cancel re-notifies the contact")
}

func TestSosTriggerWithoutFriendsStaysIdle(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/location", "carol", gin.H{"latitude": 1, "longitude": 2})
	require.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, http.MethodPost, "/api/sos/trigger", "carol", nil)
	require.Equal(t, http.StatusOK, w.Code)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		w = env.do(t, http.MethodGet, "/api/sos/state", "carol", nil)
		var envelope struct {
			Data sos.Snapshot `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
		if envelope.Data.State == sos.Idle && envelope.Data.StatusLine != "" {
			assert.Equal(t, "no emergency contacts configured", envelope.Data.StatusLine)
			assert.Zero(t, env.sink.count())
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("coordinator never aborted to idle")
}

func TestSessionNotFound(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/sos/sessions/nope", "alice", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLocationRoundTrip(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/location", "dave", gin.H{"latitude": -33.9, "longitude": 18.4})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/presence/dave", "dave", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var envelope struct {
		Data presence.Record `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, -33.9, envelope.Data.Position.Latitude)

	w = env.do(t, http.MethodGet, "/api/presence/nobody", "dave", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInvalidLocationPayload(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/api/location", bytes.NewBufferString("{broken"))
	req.Header.Set("X-Participant-ID", "dave")
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEventSaveSchedulesReminder(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.sched.Start())
	defer env.sched.Stop()

	occursAt := time.Now().Add(2 * time.Hour).UTC()
	w := env.do(t, http.MethodPost, "/api/events", "alice", gin.H{
		"title":     "Checkup",
		"occurs_at": occursAt.Format(time.RFC3339),
	})
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data models.Event `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotEmpty(t, envelope.Data.ID)

	fireAt, ok := env.sched.Pending(reminder.JobKey(envelope.Data.ID))
	require.True(t, ok, "a reminder job must be pending")
	assert.WithinDuration(t, occursAt.Add(-reminder.LeadTime), fireAt, time.Second)

	// listing re-plans; the single job survives unchanged
	w = env.do(t, http.MethodGet, "/api/events", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	_, ok = env.sched.Pending(reminder.JobKey(envelope.Data.ID))
	assert.True(t, ok)
}

func TestPastEventClearsReminder(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.sched.Start())
	defer env.sched.Stop()

	w := env.do(t, http.MethodPost, "/api/events", "alice", gin.H{
		"id":        "past-1",
		"title":     "Missed",
		"occurs_at": time.Now().Add(-time.Hour).UTC().Format(time.RFC3339),
	})
	require.Equal(t, http.StatusOK, w.Code)

	_, ok := env.sched.Pending(reminder.JobKey("past-1"))
	assert.False(t, ok, "past occurrences never schedule a reminder")
}

func TestFriendSelfRejected(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/api/friends", "alice", gin.H{"friend_id": "alice"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFriendList(t *testing.T) {
	env := newTestEnv(t)
	for _, f := range []string{"bob", "carol"} {
		w := env.do(t, http.MethodPost, "/api/friends", "alice", gin.H{"friend_id": f})
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := env.do(t, http.MethodGet, "/api/friends", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var envelope struct {
		Data []string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.ElementsMatch(t, []string{"bob", "carol"}, envelope.Data)
}

func TestIdempotencyRejectsReplay(t *testing.T) {
	env := newTestEnv(t)

	body := gin.H{"friend_id": "bob"}
	for i, wantCode := range []int{http.StatusOK, http.StatusConflict} {
		var buf bytes.Buffer
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
		req := httptest.NewRequest(http.MethodPost, "/api/friends", &buf)
		req.Header.Set("X-Participant-ID", "alice")
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Idempotency-Key", "add-bob-1")
		w := httptest.NewRecorder()
		env.engine.ServeHTTP(w, req)
		assert.Equal(t, wantCode, w.Code, fmt.Sprintf("request %d", i))
	}
}
