package swarm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"nhooyr.io/websocket"
)

// Notification represents an async event pushed by the daemon.
type Notification struct {
	Method string              `json:"method"`
	Params []NotificationEvent `json:"params"`
}

// NotificationEvent contains the transfer a notification refers to.
type NotificationEvent struct {
	GID string `json:"gid"`
}

const (
	notifyComplete = "aria2.onDownloadComplete"
	notifyError    = "aria2.onDownloadError"
	notifyStop     = "aria2.onDownloadStop"
)

// Notifications connects to the daemon's WebSocket endpoint and streams
// async notifications. The returned channel is closed when the connection
// terminates or the context is cancelled.
func (c *Client) Notifications(ctx context.Context) (<-chan Notification, error) {
	wsURL := *c.baseURL
	switch wsURL.Scheme {
	case "http":
		wsURL.Scheme = "ws"
	case "https":
		wsURL.Scheme = "wss"
	default:
		return nil, fmt.Errorf("unsupported scheme: %s", wsURL.Scheme)
	}
	conn, _, err := websocket.Dial(ctx, wsURL.String(), nil)
	if err != nil {
		return nil, err
	}
	ch := make(chan Notification, 8)
	go func() {
		defer close(ch)
		defer func() { _ = conn.Close(websocket.StatusNormalClosure, "done") }()
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			// The daemon may send newline-delimited JSON; trim before decode.
			data = []byte(strings.TrimSpace(string(data)))
			var n Notification
			if err := json.Unmarshal(data, &n); err != nil {
				continue
			}
			// An undrained consumer must not wedge the reader past cancel.
			select {
			case ch <- n:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}
