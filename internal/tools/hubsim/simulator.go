// Package hubsim runs a local stand-in for the ticket hub so the sync
// client can be exercised without the real backend. It accepts any bearer
// token, acks every invocation, and emits a randomized stream of the three
// event kinds the client reconciles.
package hubsim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type frame struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Target  string          `json:"target,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Args    []string        `json:"args,omitempty"`
	Error   string          `json:"error,omitempty"`
}

type Config struct {
	ListenAddr string
	Path       string
	Interval   time.Duration
	Seed       int64
	Logger     *slog.Logger
}

type Simulator struct {
	cfg      Config
	logger   *slog.Logger
	upgrader websocket.Upgrader
	rng      *rand.Rand

	mu         sync.Mutex
	conns      map[*websocket.Conn]*sync.Mutex
	nextTicket int
	nextNotif  int
}

func New(cfg Config) *Simulator {
	if cfg.Path == "" {
		cfg.Path = "/ticketHub"
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	return &Simulator{
		cfg:        cfg,
		logger:     cfg.Logger,
		rng:        rand.New(rand.NewSource(cfg.Seed)),
		conns:      make(map[*websocket.Conn]*sync.Mutex),
		nextTicket: 1000,
	}
}

// Run serves the hub endpoint and broadcasts events until ctx is cancelled.
func (s *Simulator) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.Path, s.handleWS)
	server := &http.Server{Addr: s.cfg.ListenAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("hub simulator listening", "addr", s.cfg.ListenAddr, "path", s.cfg.Path)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		case err := <-errCh:
			return fmt.Errorf("hub simulator server: %w", err)
		case <-ticker.C:
			s.emitRandom()
		}
	}
}

func (s *Simulator) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	writeMu := &sync.Mutex{}
	s.mu.Lock()
	s.conns[conn] = writeMu
	s.mu.Unlock()
	s.logger.Info("client connected", "remote", conn.RemoteAddr().String())

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		_ = conn.Close()
		s.logger.Info("client disconnected", "remote", conn.RemoteAddr().String())
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			continue
		}
		switch f.Type {
		case "invocation":
			s.logger.Info("invocation", "target", f.Target, "args", f.Args)
			s.writeTo(conn, writeMu, frame{Type: "ack", ID: f.ID})
		case "pong":
		}
	}
}

func (s *Simulator) emitRandom() {
	switch n := s.rng.Intn(100); {
	case n < 55:
		s.emitNotification()
	case n < 80:
		s.emitNewTicket()
	default:
		s.broadcast(frame{Type: "event", Target: "TicketListUpdated"})
	}
}

func (s *Simulator) emitNotification() {
	s.mu.Lock()
	s.nextNotif++
	seq := s.nextNotif
	s.mu.Unlock()
	kinds := []string{"info", "success", "warning", "error"}
	payload, _ := json.Marshal(map[string]any{
		"id":          uuid.NewString(),
		"message":     fmt.Sprintf("Simulated update #%d", seq),
		"link":        fmt.Sprintf("/tickets/%d", 1000+s.rng.Intn(50)),
		"timestamp":   time.Now().UTC(),
		"type":        kinds[s.rng.Intn(len(kinds))],
		"isHighlight": s.rng.Intn(5) == 0,
	})
	s.broadcast(frame{Type: "event", Target: "ReceiveNotification", Payload: payload})
}

func (s *Simulator) emitNewTicket() {
	s.mu.Lock()
	s.nextTicket++
	id := s.nextTicket
	s.mu.Unlock()
	priorities := []string{"Low", "Medium", "High"}
	payload, _ := json.Marshal(map[string]any{
		"ticketId":  id,
		"title":     fmt.Sprintf("Simulated ticket %d", id),
		"priority":  priorities[s.rng.Intn(len(priorities))],
		"status":    map[string]any{"statusId": 1, "name": "Open"},
		"customer":  map[string]any{"userId": 1, "displayName": "Sim Customer"},
		"createdAt": time.Now().UTC(),
		"updatedAt": time.Now().UTC(),
	})
	s.broadcast(frame{Type: "event", Target: "NewTicketAdded", Payload: payload})
}

func (s *Simulator) broadcast(f frame) {
	s.mu.Lock()
	conns := make(map[*websocket.Conn]*sync.Mutex, len(s.conns))
	for c, mu := range s.conns {
		conns[c] = mu
	}
	s.mu.Unlock()
	for conn, writeMu := range conns {
		s.writeTo(conn, writeMu, f)
	}
}

func (s *Simulator) writeTo(conn *websocket.Conn, writeMu *sync.Mutex, f frame) {
	writeMu.Lock()
	defer writeMu.Unlock()
	if err := conn.WriteJSON(f); err != nil {
		s.logger.Debug("write to client failed", "error", err)
	}
}
