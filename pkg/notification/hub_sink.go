package notification

import (
	"context"

	"SafeCircle/pkg/websocket"
)

// HubSink delivers notifications over the websocket hub to every live
// connection of the recipient.
type HubSink struct {
	hub *websocket.Hub
}

func NewHubSink(hub *websocket.Hub) *HubSink { return &HubSink{hub: hub} }

func (s *HubSink) Notify(_ context.Context, n Notification) error {
	msg := &websocket.Message{
		Type: "notification",
		Data: n,
	}
	if n.To != "" {
		s.hub.SendToUser(n.To, msg)
		return nil
	}
	// no explicit recipient: surface on the entity's own topic
	s.hub.Publish(n.Tag+":"+n.Key, msg)
	return nil
}
