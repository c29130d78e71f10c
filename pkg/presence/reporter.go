package presence

import (
	"context"
	"time"

	"SafeCircle/pkg/logger"

	"go.uber.org/zap"
)

// PositionSource is a device's continuous location feed.
type PositionSource interface {
	SubscribeContinuous(ctx context.Context) (<-chan Position, error)
}

// Reporter pumps one participant's position stream into the store. It
// only ever writes its own participant's record.
type Reporter struct {
	store         *Store
	source        PositionSource
	participantID string
}

func NewReporter(store *Store, source PositionSource, participantID string) *Reporter {
	return &Reporter{store: store, source: source, participantID: participantID}
}

// Run forwards samples until ctx is cancelled or the source closes.
// A failed store write skips that sample and keeps the stream alive.
func (r *Reporter) Run(ctx context.Context) error {
	stream, err := r.source.SubscribeContinuous(ctx)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case pos, ok := <-stream:
			if !ok {
				return nil
			}
			if err := r.store.Update(ctx, r.participantID, pos, time.Now()); err != nil {
				logger.Warn("presence sample dropped",
					zap.String("participant", r.participantID), zap.Error(err))
			}
		}
	}
}
