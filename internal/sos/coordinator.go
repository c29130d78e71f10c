package sos

import (
	"context"
	"fmt"
	"sync"
	"time"

	"SafeCircle/internal/models"
	"SafeCircle/pkg/errors"
	"SafeCircle/pkg/logger"
	"SafeCircle/pkg/metrics"
	"SafeCircle/pkg/notification"
	"SafeCircle/pkg/presence"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State is the coordinator's episode machine. Fired keeps a nested
// session sub-machine (Active -> Cancelled) alive underneath it.
type State int

const (
	Idle State = iota
	CountingDown
	Fired
	Cancelled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case CountingDown:
		return "counting_down"
	case Fired:
		return "fired"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Snapshot is what the UI observes: state, ticks left, and a status
// line that distinguishes every failure from success.
type Snapshot struct {
	State         State            `json:"state"`
	Remaining     int              `json:"remaining"`
	SessionID     string           `json:"session_id,omitempty"`
	SessionStatus models.SosStatus `json:"session_status,omitempty"`
	StatusLine    string           `json:"status_line,omitempty"`
}

// Profile is the requester snapshot frozen onto a session at creation.
type Profile struct {
	ID     string
	Name   string
	Avatar string
}

// IdentityProvider resolves the signed-in participant.
type IdentityProvider interface {
	Current(ctx context.Context) (Profile, error)
}

// FriendProvider reads the trusted-contact graph.
type FriendProvider interface {
	FriendIDs(ctx context.Context, participantID string) ([]string, error)
}

// Locator resolves a current position, bounded by ctx.
type Locator interface {
	FetchOnce(ctx context.Context, participantID string) (presence.Position, time.Time, error)
}

// SessionStore persists episodes. Cancel reports whether the status
// actually changed, so a repeated cancel never re-notifies.
type SessionStore interface {
	Create(ctx context.Context, session *models.SosSession) error
	Cancel(ctx context.Context, id string) (changed bool, err error)
}

// Config tunes the countdown and the location capture window.
type Config struct {
	CountdownTicks int
	TickInterval   time.Duration
	LocationWindow time.Duration
}

const (
	defaultCountdownTicks = 10
	defaultTickInterval   = time.Second
	defaultLocationWindow = 5 * time.Second
)

func (c *Config) fill() {
	if c.CountdownTicks <= 0 {
		c.CountdownTicks = defaultCountdownTicks
	}
	if c.TickInterval <= 0 {
		c.TickInterval = defaultTickInterval
	}
	if c.LocationWindow <= 0 {
		c.LocationWindow = defaultLocationWindow
	}
}

// Coordinator owns the SOS episode state machine: countdown,
// cancellation, location capture, persistence and recipient fan-out.
type Coordinator struct {
	identity IdentityProvider
	friends  FriendProvider
	locator  Locator
	sessions SessionStore
	presence *presence.Store // optional republish on fire
	sink     notification.Sink
	cfg      Config

	mu              sync.Mutex
	state           State
	remaining       int
	statusLine      string
	session         *models.SosSession
	cancelCountdown context.CancelFunc
	firing          bool
	pendingCancel   bool
	watchers        map[chan Snapshot]struct{}
}

// New wires a coordinator. presenceStore may be nil.
func New(identity IdentityProvider, friends FriendProvider, locator Locator,
	sessions SessionStore, presenceStore *presence.Store, sink notification.Sink, cfg Config) *Coordinator {
	cfg.fill()
	return &Coordinator{
		identity: identity,
		friends:  friends,
		locator:  locator,
		sessions: sessions,
		presence: presenceStore,
		sink:     sink,
		cfg:      cfg,
		state:    Idle,
		watchers: make(map[chan Snapshot]struct{}),
	}
}

// Trigger starts the countdown. A trigger while a countdown is already
// running is a no-op; so is one while a fired session is still active.
func (c *Coordinator) Trigger(ctx context.Context) error {
	prof, err := c.identity.Current(ctx)
	if err != nil {
		return errors.Wrap(err, "no signed-in participant")
	}

	c.mu.Lock()
	if !c.canTriggerLocked() {
		c.mu.Unlock()
		return nil
	}

	c.state = CountingDown
	c.remaining = c.cfg.CountdownTicks
	c.statusLine = ""
	c.session = nil
	c.firing = false
	c.pendingCancel = false

	cctx, cancel := context.WithCancel(context.Background())
	c.cancelCountdown = cancel
	c.publishLocked()
	c.mu.Unlock()

	metrics.SosTriggered.Inc()
	logger.Info("sos countdown started", zap.String("requester", prof.ID))

	go c.countdown(cctx, prof)
	return nil
}

// caller must hold c.mu
func (c *Coordinator) canTriggerLocked() bool {
	switch c.state {
	case Idle, Cancelled:
		return true
	case Fired:
		// a cancelled episode may be followed by a new one; an
		// active session blocks re-triggering
		return c.session != nil && c.session.Status == models.SosCancelled
	default:
		return false
	}
}

// Cancel is the single cancellation entry point, valid at any moment.
// Before firing it stops the countdown; after firing it degrades to a
// session status update and never retracts delivered alerts.
func (c *Coordinator) Cancel(ctx context.Context) error {
	c.mu.Lock()

	switch {
	case c.state == CountingDown && c.firing:
		// the countdown already handed off to the firing procedure;
		// apply the cancel to the session once it exists
		c.pendingCancel = true
		c.mu.Unlock()
		return nil

	case c.state == CountingDown:
		c.cancelCountdown()
		c.state = Cancelled
		c.statusLine = "cancelled"
		c.publishLocked()
		c.mu.Unlock()
		metrics.SosCancelled.Inc()
		logger.Info("sos countdown cancelled")
		return nil

	case c.state == Fired && c.session != nil:
		session := c.session
		c.mu.Unlock()
		return c.cancelSession(ctx, session)

	default:
		c.mu.Unlock()
		return nil
	}
}

func (c *Coordinator) cancelSession(ctx context.Context, session *models.SosSession) error {
	changed, err := c.sessions.Cancel(ctx, session.ID)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	c.mu.Lock()
	session.Status = models.SosCancelled
	c.statusLine = "marked safe"
	c.publishLocked()
	c.mu.Unlock()

	metrics.SosCancelled.Inc()
	logger.Info("sos session cancelled", zap.String("session", session.ID))

	// same tag and key as the alert, so the visible notification is
	// replaced rather than duplicated
	for _, recipient := range session.Recipients() {
		n := notification.Notification{
			Tag:   notification.TagSosAlert,
			Key:   session.ID,
			To:    recipient,
			Title: "SOS cancelled",
			Body:  fmt.Sprintf("%s is safe now", session.RequesterName),
			Extras: map[string]string{
				"session_id":   session.ID,
				"requester_id": session.RequesterID,
				"status":       string(models.SosCancelled),
			},
		}
		if err := c.sink.Notify(ctx, n); err != nil {
			logger.Warn("cancel notice delivery failed",
				zap.String("session", session.ID), zap.String("recipient", recipient), zap.Error(err))
		}
	}
	return nil
}

func (c *Coordinator) countdown(ctx context.Context, prof Profile) {
	ticker := time.NewTicker(c.cfg.TickInterval)
	defer ticker.Stop()

	for i := c.cfg.CountdownTicks; i > 0; i-- {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			if c.state != CountingDown {
				c.mu.Unlock()
				return
			}
			c.remaining = i - 1
			c.publishLocked()
			c.mu.Unlock()
		}
	}

	// hand off to the firing procedure; from here Cancel targets the
	// session record, not the timer
	c.mu.Lock()
	if c.state != CountingDown {
		c.mu.Unlock()
		return
	}
	select {
	case <-ctx.Done():
		c.mu.Unlock()
		return
	default:
	}
	c.firing = true
	c.mu.Unlock()

	c.fire(prof)
}

func (c *Coordinator) fire(prof Profile) {
	ctx := context.Background()

	recipients, err := c.friends.FriendIDs(ctx, prof.ID)
	if err != nil {
		c.abort("could not read emergency contacts", "friends", err)
		return
	}
	if len(recipients) == 0 {
		c.abort("no emergency contacts configured", "no_recipients",
			errors.WithCode(errors.CodeNoRecipients, "empty friend list"))
		return
	}

	lctx, cancel := context.WithTimeout(ctx, c.cfg.LocationWindow)
	pos, observedAt, err := c.locator.FetchOnce(lctx, prof.ID)
	cancel()
	if err != nil {
		c.abort("current location unavailable", "location", err)
		return
	}

	session := &models.SosSession{
		ID:              uuid.NewString(),
		RequesterID:     prof.ID,
		RequesterName:   prof.Name,
		RequesterAvatar: prof.Avatar,
		Latitude:        pos.Latitude,
		Longitude:       pos.Longitude,
		LocatedAt:       observedAt,
		Status:          models.SosActive,
	}
	session.SetRecipients(recipients)

	// the session row must exist before any recipient hears about it
	if err := c.sessions.Create(ctx, session); err != nil {
		c.abort("could not record the alert", "persist", err)
		return
	}

	c.mu.Lock()
	c.state = Fired
	c.firing = false
	c.session = session
	c.statusLine = "help requested"
	pendingCancel := c.pendingCancel
	c.pendingCancel = false
	c.publishLocked()
	c.mu.Unlock()

	metrics.SosFired.Inc()
	logger.Info("sos session fired",
		zap.String("session", session.ID),
		zap.String("requester", prof.ID),
		zap.Int("recipients", len(recipients)))

	if c.presence != nil {
		// contacts opening the map see the requester immediately
		if err := c.presence.Update(ctx, prof.ID, pos, observedAt); err != nil {
			logger.Warn("presence republish failed", zap.Error(err))
		}
	}

	for _, recipient := range recipients {
		n := notification.Notification{
			Tag:   notification.TagSosAlert,
			Key:   session.ID,
			To:    recipient,
			Title: "SOS",
			Body:  fmt.Sprintf("%s needs help", prof.Name),
			Extras: map[string]string{
				"session_id":   session.ID,
				"requester_id": prof.ID,
				"latitude":     fmt.Sprintf("%f", pos.Latitude),
				"longitude":    fmt.Sprintf("%f", pos.Longitude),
			},
		}
		if err := c.sink.Notify(ctx, n); err != nil {
			logger.Warn("sos alert delivery failed",
				zap.String("session", session.ID), zap.String("recipient", recipient), zap.Error(err))
		}
	}

	if pendingCancel {
		if err := c.Cancel(ctx); err != nil {
			logger.Error("deferred cancel failed", zap.String("session", session.ID), zap.Error(err))
		}
	}
}

// abort returns the coordinator to Idle with a status line the UI can
// show; a failed firing must never look like a summoned alert.
func (c *Coordinator) abort(status, reason string, err error) {
	c.mu.Lock()
	c.state = Idle
	c.firing = false
	c.pendingCancel = false
	c.session = nil
	c.statusLine = status
	c.publishLocked()
	c.mu.Unlock()

	metrics.SosAborted.WithLabelValues(reason).Inc()
	logger.Warn("sos firing aborted", zap.String("reason", reason), zap.Error(err))
}

// Snapshot returns the current observable state.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Session returns the current episode's session, if one was fired.
func (c *Coordinator) Session() (*models.SosSession, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil, false
	}
	copied := *c.session
	return &copied, true
}

// Watch streams snapshots, one per state or tick change. The returned
// stop function releases the stream and is safe to call repeatedly.
func (c *Coordinator) Watch() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 16)

	c.mu.Lock()
	c.watchers[ch] = struct{}{}
	ch <- c.snapshotLocked()
	c.mu.Unlock()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.watchers, ch)
			c.mu.Unlock()
			close(ch)
		})
	}
	return ch, stop
}

// caller must hold c.mu
func (c *Coordinator) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:      c.state,
		Remaining:  c.remaining,
		StatusLine: c.statusLine,
	}
	if c.session != nil {
		snap.SessionID = c.session.ID
		snap.SessionStatus = c.session.Status
	}
	return snap
}

// caller must hold c.mu
func (c *Coordinator) publishLocked() {
	snap := c.snapshotLocked()
	for ch := range c.watchers {
		select {
		case ch <- snap:
		default:
		}
	}
}
