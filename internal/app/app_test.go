package app

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/supportdesk/ticketsync/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		HubURL:              "ws://localhost:7194/ticketHub",
		HTTPListenAddr:      "127.0.0.1:0",
		TokenStoreBackend:   config.StoreBackendMemory,
		InboxStoreBackend:   config.StoreBackendMemory,
		InboxCap:            50,
		HighlightTTL:        5 * time.Second,
		ReconnectMinBackoff: time.Second,
		ReconnectMaxBackoff: 30 * time.Second,
	}
}

func TestNewWiresComponentsForMemoryBackends(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := New(testConfig(), logger, nil)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	if a.Sessions == nil || a.Inbox == nil || a.Highlights == nil || a.Tickets == nil {
		t.Fatal("expected state components to be wired")
	}
	if a.Channel == nil || a.Reconciler == nil || a.Server == nil {
		t.Fatal("expected channel, reconciler and server to be wired")
	}
	if a.redis != nil {
		t.Fatal("memory backends must not build a redis client")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := a.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestNewRejectsUnknownBackends(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := testConfig()
	cfg.TokenStoreBackend = "vault"
	if _, err := New(cfg, logger, nil); err == nil {
		t.Fatal("expected error for unknown token store backend")
	}

	cfg = testConfig()
	cfg.InboxStoreBackend = "dynamo"
	if _, err := New(cfg, logger, nil); err == nil {
		t.Fatal("expected error for unknown inbox store backend")
	}
}
