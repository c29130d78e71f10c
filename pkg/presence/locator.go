package presence

import (
	"context"
	"time"

	"SafeCircle/pkg/errors"
)

// Locator answers "where is this participant right now" from the
// device-reported presence projection. A record older than maxAge is
// treated as no location at all.
type Locator struct {
	store  *Store
	maxAge time.Duration
}

const defaultMaxAge = 2 * time.Minute

func NewLocator(store *Store, maxAge time.Duration) *Locator {
	if maxAge <= 0 {
		maxAge = defaultMaxAge
	}
	return &Locator{store: store, maxAge: maxAge}
}

// FetchOnce returns the participant's current position. The ctx bounds
// the wait: if no fresh record exists yet, FetchOnce watches the
// stream until one arrives or the ctx expires.
func (l *Locator) FetchOnce(ctx context.Context, participantID string) (Position, time.Time, error) {
	if rec, ok := l.store.Get(participantID); ok && time.Since(rec.ObservedAt) <= l.maxAge {
		return rec.Position, rec.ObservedAt, nil
	}

	sub := l.store.Subscribe(participantID)
	defer sub.Unsubscribe()

	for {
		select {
		case rec, ok := <-sub.Updates():
			if !ok {
				return Position{}, time.Time{}, errors.WithCode(errors.CodeLocationUnavailable, "location stream closed")
			}
			if time.Since(rec.ObservedAt) <= l.maxAge {
				return rec.Position, rec.ObservedAt, nil
			}
		case <-ctx.Done():
			return Position{}, time.Time{}, errors.WrapCode(errors.CodeLocationUnavailable, ctx.Err(), "no current location for participant")
		}
	}
}
