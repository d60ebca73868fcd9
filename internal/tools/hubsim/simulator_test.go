package hubsim

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialSimulator(t *testing.T, s *Simulator) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(s.handleWS))
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("dial simulator: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	return f
}

func TestSimulatorAcksInvocations(t *testing.T) {
	s := New(Config{Seed: 1, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	conn := dialSimulator(t, s)

	if err := conn.WriteJSON(frame{Type: "invocation", ID: "inv-1", Target: "JoinTicketGroup", Args: []string{"7"}}); err != nil {
		t.Fatalf("write invocation: %v", err)
	}
	f := readFrame(t, conn)
	if f.Type != "ack" || f.ID != "inv-1" {
		t.Fatalf("expected ack for inv-1, got %+v", f)
	}
}

func TestSimulatorBroadcastsWellFormedEvents(t *testing.T) {
	s := New(Config{Seed: 42, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	conn := dialSimulator(t, s)

	s.emitNotification()
	f := readFrame(t, conn)
	if f.Type != "event" || f.Target != "ReceiveNotification" {
		t.Fatalf("unexpected frame: %+v", f)
	}
	var payload struct {
		ID      string `json:"id"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(f.Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.ID == "" || payload.Message == "" {
		t.Fatalf("notification payload incomplete: %+v", payload)
	}

	s.emitNewTicket()
	f = readFrame(t, conn)
	if f.Target != "NewTicketAdded" {
		t.Fatalf("expected NewTicketAdded, got %+v", f)
	}
	var ticket struct {
		TicketID int `json:"ticketId"`
	}
	if err := json.Unmarshal(f.Payload, &ticket); err != nil {
		t.Fatalf("decode ticket payload: %v", err)
	}
	if ticket.TicketID == 0 {
		t.Fatalf("ticket payload missing id")
	}
}
