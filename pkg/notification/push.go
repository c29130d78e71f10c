package notification

import (
	"context"

	"SafeCircle/pkg/errors"
)

// PushConfig identifies the app at the push provider.
type PushConfig struct {
	AppKey       string
	MasterSecret string
}

// PushClient is the provider transport. Audience selects devices by
// alias (participant id); extras travel opaque to the device.
type PushClient interface {
	Push(ctx context.Context, title, content string, audience map[string]interface{}, extras map[string]interface{}) error
}

// PushSink delivers notifications through a mobile push provider so
// recipients whose app is backgrounded still get the alert.
type PushSink struct {
	cfg PushConfig
	cli PushClient
}

func NewPushSink(cfg PushConfig, cli PushClient) *PushSink { return &PushSink{cfg: cfg, cli: cli} }

func (p *PushSink) Notify(ctx context.Context, n Notification) error {
	if p.cli == nil {
		return errors.New("push client not configured")
	}

	extras := map[string]interface{}{
		"tag":       n.Tag,
		"dedup_key": n.DedupKey(),
	}
	for k, v := range n.Extras {
		extras[k] = v
	}

	aud := map[string]interface{}{"all": true}
	if n.To != "" {
		aud = map[string]interface{}{"alias": []string{n.To}}
	}
	return p.cli.Push(ctx, n.Title, n.Body, aud, extras)
}
