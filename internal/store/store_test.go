package store

import (
	"context"
	"testing"
	"time"

	"SafeCircle/internal/models"
	"SafeCircle/pkg/errors"
	"SafeCircle/pkg/scheduler"
	"SafeCircle/pkg/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := util.InitDatabase("", "")
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))
	return db
}

func TestSessionCreateAndGet(t *testing.T) {
	db := testDB(t)
	s := NewSessionStore(db)
	ctx := context.Background()

	session := &models.SosSession{
		ID:            "session-1",
		RequesterID:   "alice",
		RequesterName: "Alice",
		Latitude:      10.0,
		Longitude:     20.0,
		LocatedAt:     time.Now(),
		Status:        models.SosActive,
	}
	session.SetRecipients([]string{"bob", "carol"})

	require.NoError(t, s.Create(ctx, session))

	got, err := s.Get(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.RequesterID)
	assert.Equal(t, models.SosActive, got.Status)
	assert.ElementsMatch(t, []string{"bob", "carol"}, got.Recipients())
}

func TestSessionGetMissing(t *testing.T) {
	db := testDB(t)
	s := NewSessionStore(db)

	_, err := s.Get(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestSessionCancelIsMonotone(t *testing.T) {
	db := testDB(t)
	s := NewSessionStore(db)
	ctx := context.Background()

	session := &models.SosSession{ID: "session-1", RequesterID: "alice", Status: models.SosActive}
	session.SetRecipients([]string{"bob"})
	require.NoError(t, s.Create(ctx, session))

	changed, err := s.Cancel(ctx, "session-1")
	require.NoError(t, err)
	assert.True(t, changed)

	// a second cancel is a no-op, not an error
	changed, err = s.Cancel(ctx, "session-1")
	require.NoError(t, err)
	assert.False(t, changed)

	got, err := s.Get(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, models.SosCancelled, got.Status)
}

func TestSessionCancelMissing(t *testing.T) {
	db := testDB(t)
	s := NewSessionStore(db)

	_, err := s.Cancel(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestSessionRecipientsSurviveRequesterEdits(t *testing.T) {
	db := testDB(t)
	sessions := NewSessionStore(db)
	participants := NewParticipantStore(db)
	ctx := context.Background()

	require.NoError(t, participants.Upsert(ctx, &models.Participant{ID: "alice", Name: "Alice"}))

	session := &models.SosSession{ID: "s1", RequesterID: "alice", RequesterName: "Alice", Status: models.SosActive}
	session.SetRecipients([]string{"bob"})
	require.NoError(t, sessions.Create(ctx, session))

	// renaming the profile must not rewrite the session snapshot
	require.NoError(t, participants.Upsert(ctx, &models.Participant{ID: "alice", Name: "Alicia"}))

	got, err := sessions.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.RequesterName)
	assert.Equal(t, []string{"bob"}, got.Recipients())
}

func TestEventUpsertReplaces(t *testing.T) {
	db := testDB(t)
	s := NewEventStore(db)
	ctx := context.Background()

	at := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	require.NoError(t, s.Upsert(ctx, &models.Event{ID: "e1", OwnerID: "alice", Title: "Team sync", OccursAt: at}))

	moved := at.Add(time.Hour)
	require.NoError(t, s.Upsert(ctx, &models.Event{ID: "e1", OwnerID: "alice", Title: "Team sync", OccursAt: moved}))

	events, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].OccursAt.Equal(moved))
}

func TestJobStoreRoundTrip(t *testing.T) {
	db := testDB(t)
	s := NewJobStore(db)
	ctx := context.Background()

	fireAt := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	require.NoError(t, s.Put(ctx, scheduler.JobRecord{Key: "reminder_for_e1", FireAt: fireAt, Payload: []byte(`{"id":"e1"}`)}))

	all, err := s.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "reminder_for_e1", all[0].Key)
	assert.True(t, all[0].FireAt.Equal(fireAt))

	// Put on the same key replaces, never duplicates
	require.NoError(t, s.Put(ctx, scheduler.JobRecord{Key: "reminder_for_e1", FireAt: fireAt.Add(time.Hour), Payload: nil}))
	all, err = s.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].FireAt.Equal(fireAt.Add(time.Hour)))

	require.NoError(t, s.Delete(ctx, "reminder_for_e1"))
	all, err = s.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestJobStoreDue(t *testing.T) {
	db := testDB(t)
	s := NewJobStore(db)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.Put(ctx, scheduler.JobRecord{Key: "past", FireAt: now.Add(-time.Minute)}))
	require.NoError(t, s.Put(ctx, scheduler.JobRecord{Key: "future", FireAt: now.Add(time.Hour)}))

	due, err := s.Due(ctx, now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "past", due[0].Key)
}

func TestFriendStore(t *testing.T) {
	db := testDB(t)
	s := NewFriendStore(db)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, "alice", "bob"))
	require.NoError(t, s.Add(ctx, "alice", "carol"))
	require.NoError(t, s.Add(ctx, "bob", "alice"))

	ids, err := s.FriendIDs(ctx, "alice")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"bob", "carol"}, ids)

	ids, err = s.FriendIDs(ctx, "dave")
	require.NoError(t, err)
	assert.Empty(t, ids)
}
