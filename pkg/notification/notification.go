package notification

import (
	"context"

	"SafeCircle/pkg/metrics"
)

// Tags discriminate the two notification families.
const (
	TagSosAlert = "sos-alert"
	TagReminder = "reminder"
)

// Notification is one rendered alert for one recipient. Key is the
// stable per-entity identifier (session id, event id): redelivery with
// the same DedupKey updates the visible notification instead of
// stacking a duplicate.
type Notification struct {
	Tag    string            `json:"tag"`
	Key    string            `json:"key"`
	To     string            `json:"to,omitempty"`
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	Extras map[string]string `json:"extras,omitempty"`
}

// DedupKey is the identity the delivery surface collapses on.
func (n Notification) DedupKey() string { return n.Tag + ":" + n.Key }

// Sink delivers a notification to a device surface.
type Sink interface {
	Notify(ctx context.Context, n Notification) error
}

// MultiSink fans one notification into several sinks. Delivery is best
// effort per sink; the first error is returned after all sinks ran.
type MultiSink []Sink

func (m MultiSink) Notify(ctx context.Context, n Notification) error {
	var first error
	for _, s := range m {
		if err := s.Notify(ctx, n); err != nil && first == nil {
			first = err
		}
	}
	if first == nil {
		metrics.NotificationsDispatched.WithLabelValues(n.Tag).Inc()
	}
	return first
}
