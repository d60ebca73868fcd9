package push

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type testHub struct {
	t        *testing.T
	server   *httptest.Server
	upgrader websocket.Upgrader

	mu       sync.Mutex
	conns    []*websocket.Conn
	invoked  []frame
	failNext bool
}

func newTestHub(t *testing.T) *testHub {
	t.Helper()
	h := &testHub{t: t}
	h.server = httptest.NewServer(http.HandlerFunc(h.handle))
	t.Cleanup(h.server.Close)
	return h
}

func (h *testHub) url() string {
	return "ws" + strings.TrimPrefix(h.server.URL, "http")
}

func (h *testHub) handle(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
		http.Error(w, "missing credential", http.StatusUnauthorized)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	h.mu.Lock()
	h.conns = append(h.conns, conn)
	h.mu.Unlock()

	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			return
		}
		if f.Type != frameInvocation {
			continue
		}
		h.mu.Lock()
		h.invoked = append(h.invoked, f)
		fail := h.failNext
		h.failNext = false
		h.mu.Unlock()

		ack := frame{Type: frameAck, ID: f.ID}
		if fail {
			ack.Error = "group join rejected"
		}
		if err := conn.WriteJSON(ack); err != nil {
			return
		}
	}
}

func (h *testHub) emit(t *testing.T, target string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.conns) == 0 {
		t.Fatal("no hub connection to emit on")
	}
	conn := h.conns[len(h.conns)-1]
	if err := conn.WriteJSON(frame{Type: frameEvent, Target: target, Payload: raw}); err != nil {
		t.Fatalf("emit event: %v", err)
	}
}

func (h *testHub) dropConnections() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, conn := range h.conns {
		_ = conn.Close()
	}
	h.conns = nil
}

func newTestChannel(t *testing.T, hub *testHub) *Channel {
	t.Helper()
	ch := New(Config{
		URL:        hub.url(),
		Token:      func() (string, bool) { return "test-token", true },
		MinBackoff: 20 * time.Millisecond,
		MaxBackoff: 100 * time.Millisecond,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	t.Cleanup(ch.Stop)
	return ch
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestEventsDispatchInArrivalOrder(t *testing.T) {
	hub := newTestHub(t)
	ch := newTestChannel(t, hub)

	var mu sync.Mutex
	var got []string
	ch.On("TicketListUpdated", func(payload json.RawMessage) {
		mu.Lock()
		got = append(got, string(payload))
		mu.Unlock()
	})

	ch.Start()
	waitFor(t, 2*time.Second, ch.IsConnected)

	for i := 0; i < 5; i++ {
		hub.emit(t, "TicketListUpdated", i)
	}
	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 5
	})

	mu.Lock()
	defer mu.Unlock()
	for i, raw := range got {
		if raw != string(rune('0'+i)) {
			t.Fatalf("event %d delivered out of order: %q", i, raw)
		}
	}
}

func TestOffStopsDelivery(t *testing.T) {
	hub := newTestHub(t)
	ch := newTestChannel(t, hub)

	var mu sync.Mutex
	count := 0
	sub := ch.On("ReceiveNotification", func(json.RawMessage) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	ch.Start()
	waitFor(t, 2*time.Second, ch.IsConnected)

	hub.emit(t, "ReceiveNotification", map[string]string{"id": "n1"})
	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 1
	})

	ch.Off(sub)
	hub.emit(t, "ReceiveNotification", map[string]string{"id": "n2"})
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Fatalf("handler ran after Off: %d deliveries", count)
	}
}

func TestInvokeAckRoundTrip(t *testing.T) {
	hub := newTestHub(t)
	ch := newTestChannel(t, hub)
	ch.Start()
	waitFor(t, 2*time.Second, ch.IsConnected)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := ch.Invoke(ctx, "JoinTicketGroup", "5"); err != nil {
		t.Fatalf("invoke: %v", err)
	}

	hub.mu.Lock()
	defer hub.mu.Unlock()
	if len(hub.invoked) != 1 || hub.invoked[0].Target != "JoinTicketGroup" {
		t.Fatalf("unexpected invocations %+v", hub.invoked)
	}
	if len(hub.invoked[0].Args) != 1 || hub.invoked[0].Args[0] != "5" {
		t.Fatalf("unexpected args %v", hub.invoked[0].Args)
	}
}

func TestInvokeFailureReportedToCaller(t *testing.T) {
	hub := newTestHub(t)
	ch := newTestChannel(t, hub)
	ch.Start()
	waitFor(t, 2*time.Second, ch.IsConnected)

	hub.mu.Lock()
	hub.failNext = true
	hub.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := ch.Invoke(ctx, "JoinTicketGroup", "5")
	if err == nil || !strings.Contains(err.Error(), "group join rejected") {
		t.Fatalf("expected rejected invoke error, got %v", err)
	}
}

func TestInvokeWhileDisconnected(t *testing.T) {
	hub := newTestHub(t)
	ch := newTestChannel(t, hub)
	err := ch.Invoke(context.Background(), "JoinTicketGroup", "5")
	if err != ErrNotConnected {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestReconnectAfterConnectionLoss(t *testing.T) {
	hub := newTestHub(t)
	ch := newTestChannel(t, hub)

	var mu sync.Mutex
	connects := 0
	ch.OnConnect(func() {
		mu.Lock()
		connects++
		mu.Unlock()
	})

	ch.Start()
	waitFor(t, 2*time.Second, ch.IsConnected)

	hub.dropConnections()
	waitFor(t, 5*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return connects >= 2
	})
	waitFor(t, 2*time.Second, ch.IsConnected)
}

func TestStopDoesNotReconnect(t *testing.T) {
	hub := newTestHub(t)
	ch := newTestChannel(t, hub)
	ch.Start()
	waitFor(t, 2*time.Second, ch.IsConnected)

	ch.Stop()
	if ch.IsConnected() {
		t.Fatal("expected disconnected state after Stop")
	}
	time.Sleep(200 * time.Millisecond)
	if ch.IsConnected() {
		t.Fatal("channel reconnected after Stop")
	}
	ch.Stop() // idempotent
}
