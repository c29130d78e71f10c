package scheduler

import (
	"context"
	"sync"
	"time"

	"SafeCircle/pkg/errors"
	"SafeCircle/pkg/logger"
	"SafeCircle/pkg/metrics"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// JobRecord is one pending unit of deferred work, uniquely keyed.
type JobRecord struct {
	Key     string
	FireAt  time.Time
	Payload []byte

	// arm generation; a stopped timer from a replaced arm must not
	// fire the replacement
	seq uint64
}

// JobStore is the durable backing table. Put upserts by key.
type JobStore interface {
	Put(ctx context.Context, rec JobRecord) error
	Delete(ctx context.Context, key string) error
	Due(ctx context.Context, now time.Time) ([]JobRecord, error)
	All(ctx context.Context) ([]JobRecord, error)
}

// FireFunc executes a job. It runs on the scheduler's goroutine pool
// at or after the job's fire time, possibly in a different process
// than the one that scheduled it.
type FireFunc func(ctx context.Context, rec JobRecord)

// Scheduler guarantees at most one pending job per key. Accepted
// schedules survive restarts (the row is written before the timer is
// armed) and fire at-least-once: a periodic sweep re-arms any due row
// whose in-memory timer was lost.
type Scheduler struct {
	store JobStore
	fire  FireFunc

	mu       sync.Mutex
	pending  map[string]JobRecord
	timers   map[string]*time.Timer
	inflight map[string]bool
	nextSeq  uint64

	sweepSpec string
	cron      *cron.Cron
	ctx       context.Context
	cancel    context.CancelFunc
}

// New creates a scheduler. Call Start to load persisted jobs and begin
// the sweep.
func New(store JobStore, fire FireFunc) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		store:     store,
		fire:      fire,
		pending:   make(map[string]JobRecord),
		timers:    make(map[string]*time.Timer),
		inflight:  make(map[string]bool),
		sweepSpec: "@every 1m",
		cron:      cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger))),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start re-arms every persisted job (due ones fire immediately) and
// begins the recovery sweep.
func (s *Scheduler) Start() error {
	recs, err := s.store.All(s.ctx)
	if err != nil {
		return errors.WrapCode(errors.CodePersistenceFailure, err, "loading persisted jobs")
	}

	s.mu.Lock()
	for _, rec := range recs {
		s.armLocked(rec)
	}
	s.mu.Unlock()

	if _, err := s.cron.AddFunc(s.sweepSpec, s.sweep); err != nil {
		return errors.Wrap(err, "registering sweep")
	}
	s.cron.Start()
	return nil
}

// Stop cancels all timers and waits for the sweep to exit. In-flight
// fires are allowed to finish.
func (s *Scheduler) Stop() {
	s.cancel()
	s.mu.Lock()
	for key, t := range s.timers {
		t.Stop()
		delete(s.timers, key)
	}
	s.mu.Unlock()
	stopped := s.cron.Stop()
	<-stopped.Done()
}

// Schedule registers exactly one pending job for key, replacing any
// existing one atomically. A fireAt already in the past is an implicit
// Cancel: stale work is never enqueued.
func (s *Scheduler) Schedule(ctx context.Context, key string, fireAt time.Time, payload []byte) error {
	if key == "" {
		return errors.New("job key required")
	}
	if !fireAt.After(time.Now()) {
		return s.Cancel(ctx, key)
	}

	rec := JobRecord{Key: key, FireAt: fireAt, Payload: payload}

	s.mu.Lock()
	defer s.mu.Unlock()

	// the durable row first; if the write fails nothing changed
	if err := s.store.Put(ctx, rec); err != nil {
		return errors.WrapCode(errors.CodePersistenceFailure, err, "persisting job")
	}
	s.armLocked(rec)
	return nil
}

// Cancel removes any pending job for key. No-op when none exists.
func (s *Scheduler) Cancel(ctx context.Context, key string) error {
	s.mu.Lock()
	s.disarmLocked(key)
	s.mu.Unlock()

	if err := s.store.Delete(ctx, key); err != nil {
		return errors.WrapCode(errors.CodePersistenceFailure, err, "deleting job")
	}
	return nil
}

// Pending reports whether a job is armed for key, and its fire time.
func (s *Scheduler) Pending(key string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.pending[key]
	return rec.FireAt, ok
}

// caller must hold s.mu
func (s *Scheduler) armLocked(rec JobRecord) {
	s.disarmLocked(rec.Key)

	s.nextSeq++
	rec.seq = s.nextSeq
	s.pending[rec.Key] = rec

	delay := time.Until(rec.FireAt)
	if delay < 0 {
		delay = 0
	}
	key, seq := rec.Key, rec.seq
	s.timers[key] = time.AfterFunc(delay, func() { s.fireKey(key, seq) })
	metrics.JobsPending.Set(float64(len(s.pending)))
}

// caller must hold s.mu
func (s *Scheduler) disarmLocked(key string) {
	if t, ok := s.timers[key]; ok {
		t.Stop()
		delete(s.timers, key)
	}
	delete(s.pending, key)
	metrics.JobsPending.Set(float64(len(s.pending)))
}

func (s *Scheduler) fireKey(key string, seq uint64) {
	s.mu.Lock()
	rec, ok := s.pending[key]
	if !ok || rec.seq != seq || s.inflight[key] {
		s.mu.Unlock()
		return
	}
	select {
	case <-s.ctx.Done():
		s.mu.Unlock()
		return
	default:
	}
	s.inflight[key] = true
	s.mu.Unlock()

	// delete the row before executing; a failed delete leaves the row
	// for the sweep, which keeps delivery at-least-once
	if err := s.store.Delete(s.ctx, key); err != nil {
		logger.Warn("job row delete failed, sweep may re-fire", zap.String("key", key), zap.Error(err))
	}

	s.fire(s.ctx, rec)

	s.mu.Lock()
	if cur, ok := s.pending[key]; ok && cur.seq == seq {
		s.disarmLocked(key)
	}
	delete(s.inflight, key)
	s.mu.Unlock()
}

// sweep re-arms due rows that have no in-memory timer. Normal
// operation never hits this; it covers timers lost to a crash between
// Put and fire.
func (s *Scheduler) sweep() {
	recs, err := s.store.Due(s.ctx, time.Now())
	if err != nil {
		logger.Error("job sweep query failed", zap.Error(err))
		return
	}

	s.mu.Lock()
	for _, rec := range recs {
		if _, ok := s.pending[rec.Key]; ok {
			continue
		}
		if s.inflight[rec.Key] {
			continue
		}
		logger.Info("re-arming orphaned job", zap.String("key", rec.Key))
		s.armLocked(rec)
	}
	s.mu.Unlock()
}
