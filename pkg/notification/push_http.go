package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"SafeCircle/pkg/errors"
)

// HTTPPushClient talks to a JPush-compatible REST endpoint.
type HTTPPushClient struct {
	endpoint string
	cfg      PushConfig
	http     *http.Client
}

func NewHTTPPushClient(endpoint string, cfg PushConfig) *HTTPPushClient {
	return &HTTPPushClient{
		endpoint: endpoint,
		cfg:      cfg,
		http:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *HTTPPushClient) Push(ctx context.Context, title, content string, audience map[string]interface{}, extras map[string]interface{}) error {
	payload := map[string]interface{}{
		"platform": "all",
		"audience": audience,
		"notification": map[string]interface{}{
			"alert": content,
			"android": map[string]interface{}{
				"title":  title,
				"extras": extras,
			},
			"ios": map[string]interface{}{
				"alert":  map[string]string{"title": title, "body": content},
				"extras": extras,
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "encoding push payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "building push request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.cfg.AppKey, c.cfg.MasterSecret)

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "push request failed")
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return errors.Errorf("push provider returned %d", resp.StatusCode)
	}
	return nil
}
