package presence

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"SafeCircle/pkg/cache"
	"SafeCircle/pkg/errors"
	"SafeCircle/pkg/logger"
	"SafeCircle/pkg/metrics"
	"SafeCircle/pkg/websocket"

	"go.uber.org/zap"
)

const cacheKeyPrefix = "presence:"

// Position is a raw coordinate pair.
type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Record is a participant's last known position. One live record per
// participant; every update overwrites it.
type Record struct {
	ParticipantID string    `json:"participant_id"`
	Position      Position  `json:"position"`
	ObservedAt    time.Time `json:"observed_at"`
}

// Store keeps the presence projection and pushes every accepted write
// to subscribers. The cache is a write-through copy so presence
// survives a restart; the hub mirror feeds browser clients on the
// "watch:<id>" topic. Both are optional.
type Store struct {
	mu      sync.Mutex
	records map[string]Record
	subs    map[string]map[*Subscription]struct{}

	cache cache.Cache
	hub   *websocket.Hub
}

// NewStore creates a Store, warm-starting from the cache when entries
// exist.
func NewStore(c cache.Cache, hub *websocket.Hub) *Store {
	s := &Store{
		records: make(map[string]Record),
		subs:    make(map[string]map[*Subscription]struct{}),
		cache:   c,
		hub:     hub,
	}
	s.warmStart()
	return s
}

func (s *Store) warmStart() {
	if s.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, key := range s.cache.Keys(ctx, cacheKeyPrefix) {
		raw, ok := s.cache.Get(ctx, key)
		if !ok {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			logger.Warn("discarding bad presence cache entry", zap.String("key", key), zap.Error(err))
			continue
		}
		if rec.ParticipantID != "" {
			s.records[rec.ParticipantID] = rec
		}
	}
	if n := len(s.records); n > 0 {
		logger.Info("presence warm-started from cache", zap.Int("records", n))
	}
}

// Update upserts the participant's record and fans it out. Writes are
// last-write-wins by observedAt: a stale update is dropped, not
// delivered.
func (s *Store) Update(ctx context.Context, participantID string, pos Position, observedAt time.Time) error {
	if participantID == "" {
		return errors.New("participant id required")
	}
	if observedAt.IsZero() {
		observedAt = time.Now()
	}

	rec := Record{ParticipantID: participantID, Position: pos, ObservedAt: observedAt}

	s.mu.Lock()
	if prev, ok := s.records[participantID]; ok && observedAt.Before(prev.ObservedAt) {
		s.mu.Unlock()
		return nil
	}
	s.records[participantID] = rec

	// deliver under the lock so subscribers observe updates in
	// acceptance order
	var dead []*Subscription
	for sub := range s.subs[participantID] {
		select {
		case sub.ch <- rec:
		default:
			dead = append(dead, sub)
		}
	}
	for _, sub := range dead {
		s.detachLocked(sub)
		sub.close(errors.WithCode(errors.CodeSubscriptionClosed, "subscriber fell behind"))
	}
	s.mu.Unlock()

	metrics.PresenceUpdates.Inc()

	if s.cache != nil {
		raw, err := json.Marshal(rec)
		if err == nil {
			if err := s.cache.Set(ctx, cacheKeyPrefix+participantID, string(raw), 0); err != nil {
				logger.Warn("presence cache write failed", zap.String("participant", participantID), zap.Error(err))
			}
		}
	}
	if s.hub != nil {
		s.hub.Publish("watch:"+participantID, &websocket.Message{
			Type: "presence",
			Data: rec,
		})
	}
	return nil
}

// Get returns the current record, if one exists.
func (s *Store) Get(participantID string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[participantID]
	return rec, ok
}

// Subscribe returns a stream of updates for one participant. If a
// record already exists it is delivered immediately.
func (s *Store) Subscribe(participantID string) *Subscription {
	sub := &Subscription{
		store:         s,
		participantID: participantID,
		ch:            make(chan Record, subscriptionBuffer),
	}

	s.mu.Lock()
	if s.subs[participantID] == nil {
		s.subs[participantID] = make(map[*Subscription]struct{})
	}
	s.subs[participantID][sub] = struct{}{}
	if rec, ok := s.records[participantID]; ok {
		sub.ch <- rec
	}
	s.mu.Unlock()

	metrics.PresenceSubscribers.Inc()
	return sub
}

// caller must hold s.mu
func (s *Store) detachLocked(sub *Subscription) {
	set := s.subs[sub.participantID]
	if set == nil {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(s.subs, sub.participantID)
	}
	metrics.PresenceSubscribers.Dec()
}

func (s *Store) detach(sub *Subscription) {
	s.mu.Lock()
	s.detachLocked(sub)
	s.mu.Unlock()
}

const subscriptionBuffer = 32

// Subscription is one consumer's view of a participant's updates. When
// Updates closes, Err reports whether the stream ended by Unsubscribe
// (nil) or by transport failure.
type Subscription struct {
	store         *Store
	participantID string
	ch            chan Record

	once sync.Once

	errMu sync.Mutex
	err   error
}

// Updates yields records in the order the store accepted them.
func (sub *Subscription) Updates() <-chan Record { return sub.ch }

// Err is valid once Updates has closed.
func (sub *Subscription) Err() error {
	sub.errMu.Lock()
	defer sub.errMu.Unlock()
	return sub.err
}

// Unsubscribe stops delivery and releases the stream. Safe to call
// more than once.
func (sub *Subscription) Unsubscribe() {
	sub.store.detach(sub)
	sub.close(nil)
}

func (sub *Subscription) close(err error) {
	sub.once.Do(func() {
		sub.errMu.Lock()
		sub.err = err
		sub.errMu.Unlock()
		close(sub.ch)
	})
}
