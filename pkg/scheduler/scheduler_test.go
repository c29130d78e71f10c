package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"SafeCircle/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memJobStore struct {
	mu   sync.Mutex
	rows map[string]JobRecord

	failPut bool
}

func newMemJobStore() *memJobStore {
	return &memJobStore{rows: make(map[string]JobRecord)}
}

func (m *memJobStore) Put(_ context.Context, rec JobRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPut {
		return assertAnError
	}
	m.rows[rec.Key] = rec
	return nil
}

func (m *memJobStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, key)
	return nil
}

func (m *memJobStore) Due(_ context.Context, now time.Time) ([]JobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var due []JobRecord
	for _, rec := range m.rows {
		if !rec.FireAt.After(now) {
			due = append(due, rec)
		}
	}
	return due, nil
}

func (m *memJobStore) All(_ context.Context) ([]JobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []JobRecord
	for _, rec := range m.rows {
		all = append(all, rec)
	}
	return all, nil
}

func (m *memJobStore) row(key string) (JobRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.rows[key]
	return rec, ok
}

var assertAnError = errors.New("store write refused")

type fireRecorder struct {
	mu    sync.Mutex
	fired []JobRecord
	ch    chan JobRecord
}

func newFireRecorder() *fireRecorder {
	return &fireRecorder{ch: make(chan JobRecord, 16)}
}

func (f *fireRecorder) fire(_ context.Context, rec JobRecord) {
	f.mu.Lock()
	f.fired = append(f.fired, rec)
	f.mu.Unlock()
	f.ch <- rec
}

func (f *fireRecorder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fired)
}

func TestSchedulePersistsBeforeArming(t *testing.T) {
	store := newMemJobStore()
	rec := newFireRecorder()
	s := New(store, rec.fire)
	defer s.Stop()

	fireAt := time.Now().Add(time.Hour)
	require.NoError(t, s.Schedule(context.Background(), "reminder_for_e1", fireAt, []byte(`{}`)))

	row, ok := store.row("reminder_for_e1")
	require.True(t, ok)
	assert.True(t, row.FireAt.Equal(fireAt))

	got, pending := s.Pending("reminder_for_e1")
	assert.True(t, pending)
	assert.True(t, got.Equal(fireAt))
}

func TestScheduleReplacesExistingKey(t *testing.T) {
	store := newMemJobStore()
	rec := newFireRecorder()
	s := New(store, rec.fire)
	defer s.Stop()

	ctx := context.Background()
	first := time.Now().Add(time.Hour)
	second := time.Now().Add(2 * time.Hour)

	require.NoError(t, s.Schedule(ctx, "k", first, []byte("a")))
	require.NoError(t, s.Schedule(ctx, "k", second, []byte("b")))

	row, ok := store.row("k")
	require.True(t, ok)
	assert.True(t, row.FireAt.Equal(second))
	assert.Equal(t, []byte("b"), row.Payload)

	got, pending := s.Pending("k")
	assert.True(t, pending)
	assert.True(t, got.Equal(second))
}

func TestScheduleInPastCancels(t *testing.T) {
	store := newMemJobStore()
	rec := newFireRecorder()
	s := New(store, rec.fire)
	defer s.Stop()

	ctx := context.Background()
	require.NoError(t, s.Schedule(ctx, "k", time.Now().Add(time.Hour), nil))
	require.NoError(t, s.Schedule(ctx, "k", time.Now().Add(-time.Minute), nil))

	_, ok := store.row("k")
	assert.False(t, ok, "past schedule must clear the pending row")
	_, pending := s.Pending("k")
	assert.False(t, pending)
	assert.Equal(t, 0, rec.count())
}

func TestCancelIsNoOpWithoutJob(t *testing.T) {
	store := newMemJobStore()
	s := New(store, newFireRecorder().fire)
	defer s.Stop()

	assert.NoError(t, s.Cancel(context.Background(), "missing"))
}

func TestJobFiresOnceAndRowIsRemoved(t *testing.T) {
	store := newMemJobStore()
	rec := newFireRecorder()
	s := New(store, rec.fire)
	defer s.Stop()

	require.NoError(t, s.Schedule(context.Background(), "k", time.Now().Add(30*time.Millisecond), []byte("p")))

	select {
	case fired := <-rec.ch:
		assert.Equal(t, "k", fired.Key)
		assert.Equal(t, []byte("p"), fired.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("job never fired")
	}

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, rec.count())
	_, ok := store.row("k")
	assert.False(t, ok)
	_, pending := s.Pending("k")
	assert.False(t, pending)
}

func TestCancelledJobNeverFires(t *testing.T) {
	store := newMemJobStore()
	rec := newFireRecorder()
	s := New(store, rec.fire)
	defer s.Stop()

	ctx := context.Background()
	require.NoError(t, s.Schedule(ctx, "k", time.Now().Add(40*time.Millisecond), nil))
	require.NoError(t, s.Cancel(ctx, "k"))

	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, 0, rec.count())
}

func TestReplacedJobNeverFiresOldPayload(t *testing.T) {
	store := newMemJobStore()
	rec := newFireRecorder()
	s := New(store, rec.fire)
	defer s.Stop()

	ctx := context.Background()
	require.NoError(t, s.Schedule(ctx, "k", time.Now().Add(30*time.Millisecond), []byte("old")))
	require.NoError(t, s.Schedule(ctx, "k", time.Now().Add(80*time.Millisecond), []byte("new")))

	select {
	case fired := <-rec.ch:
		assert.Equal(t, []byte("new"), fired.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("replacement job never fired")
	}
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, rec.count())
}

func TestPersistenceFailureSurfacedAndNotArmed(t *testing.T) {
	store := newMemJobStore()
	store.failPut = true
	rec := newFireRecorder()
	s := New(store, rec.fire)
	defer s.Stop()

	err := s.Schedule(context.Background(), "k", time.Now().Add(time.Hour), nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodePersistenceFailure))

	_, pending := s.Pending("k")
	assert.False(t, pending)
}

func TestStartReArmsPersistedJobs(t *testing.T) {
	store := newMemJobStore()

	// a row persisted by a previous process, already due
	store.rows["k"] = JobRecord{Key: "k", FireAt: time.Now().Add(-time.Minute), Payload: []byte("p")}

	rec := newFireRecorder()
	s := New(store, rec.fire)
	require.NoError(t, s.Start())
	defer s.Stop()

	select {
	case fired := <-rec.ch:
		assert.Equal(t, "k", fired.Key)
	case <-time.After(2 * time.Second):
		t.Fatal("persisted due job was not re-fired after start")
	}
}

func TestSweepReArmsOrphanedRow(t *testing.T) {
	store := newMemJobStore()
	rec := newFireRecorder()
	s := New(store, rec.fire)
	defer s.Stop()

	// a due row with no in-memory timer, as after a crash
	store.rows["k"] = JobRecord{Key: "k", FireAt: time.Now().Add(-time.Second), Payload: []byte("p")}

	s.sweep()

	select {
	case fired := <-rec.ch:
		assert.Equal(t, "k", fired.Key)
	case <-time.After(2 * time.Second):
		t.Fatal("sweep did not re-fire the orphaned job")
	}
}
