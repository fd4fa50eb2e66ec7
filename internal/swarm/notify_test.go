package swarm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"nhooyr.io/websocket"
)

func TestNotificationsDeliver(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")
		msg, _ := json.Marshal(Notification{Method: notifyComplete, Params: []NotificationEvent{{GID: "g1"}}})
		if err := conn.Write(r.Context(), websocket.MessageText, msg); err != nil {
			return
		}
		<-r.Context().Done()
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "", 0)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ch, err := c.Notifications(ctx)
	if err != nil {
		t.Fatalf("Notifications: %v", err)
	}
	select {
	case n := <-ch:
		if n.Method != notifyComplete || len(n.Params) != 1 || n.Params[0].GID != "g1" {
			t.Fatalf("notification = %+v", n)
		}
	case <-ctx.Done():
		t.Fatal("no notification before deadline")
	}
}

func TestNotificationsCloseOnCancelWithFullBuffer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")
		msg, _ := json.Marshal(Notification{Method: notifyStop, Params: []NotificationEvent{{GID: "g"}}})
		// More messages than the channel buffers; the consumer never drains.
		for i := 0; i < 64; i++ {
			if err := conn.Write(r.Context(), websocket.MessageText, msg); err != nil {
				return
			}
		}
		<-r.Context().Done()
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "", 0)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := c.Notifications(ctx)
	if err != nil {
		t.Fatalf("Notifications: %v", err)
	}

	// Let the reader fill the buffer and block on the next send.
	time.Sleep(100 * time.Millisecond)
	cancel()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("notification channel still open after cancel")
		}
	}
}
