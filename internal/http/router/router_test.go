package router

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/supportdesk/ticketsync/internal/domain"
	"github.com/supportdesk/ticketsync/internal/highlight"
	"github.com/supportdesk/ticketsync/internal/http/handler"
	"github.com/supportdesk/ticketsync/internal/inbox"
	"github.com/supportdesk/ticketsync/internal/push"
	"github.com/supportdesk/ticketsync/internal/querycache"
	"github.com/supportdesk/ticketsync/internal/reconciler"
	"github.com/supportdesk/ticketsync/internal/session"
)

// stubChannel satisfies the reconciler's channel seam without a hub.
type stubChannel struct{}

func (stubChannel) Start()                                      {}
func (stubChannel) Stop()                                       {}
func (stubChannel) On(string, push.Handler) push.Subscription   { return push.Subscription{} }
func (stubChannel) Off(push.Subscription)                       {}
func (stubChannel) OnConnect(func()) string                     { return "" }
func (stubChannel) OnDisconnect(func()) string                  { return "" }
func (stubChannel) Invoke(context.Context, string, ...string) error { return nil }
func (stubChannel) IsConnected() bool                           { return false }

type routerFixture struct {
	handler  http.Handler
	sessions *session.Manager
	inbox    *inbox.Inbox
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sessions := session.NewManager(session.NewInMemoryTokenStore(), logger)
	box := inbox.New(inbox.NewInMemoryStore(), inbox.DefaultCap, logger)
	highlights := highlight.New(highlight.DefaultTTL)
	t.Cleanup(highlights.Stop)
	tickets := querycache.New[domain.PagedResult]()
	rec := reconciler.New(sessions, stubChannel{}, box, highlights, tickets, nil, logger)

	h := NewRouter(Dependencies{
		Sessions:      sessions,
		Notifications: handler.NewNotificationHandler(box),
		Status:        handler.NewStatusHandler(sessions, rec, box, highlights),
		Highlights:    handler.NewHighlightHandler(highlights),
		Topics:        handler.NewTopicHandler(rec),
		Logger:        logger,
	})
	return &routerFixture{handler: h, sessions: sessions, inbox: box}
}

func (fx *routerFixture) login(t *testing.T, permissions ...string) {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":         "agent-9",
		"displayName": "Agent Nine",
		"permissions": permissions,
		"exp":         time.Now().Add(time.Hour).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if err := fx.sessions.Login(context.Background(), signed); err != nil {
		t.Fatalf("login: %v", err)
	}
}

func perform(h http.Handler, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealthLive(t *testing.T) {
	fx := newRouterFixture(t)
	rr := perform(fx.handler, http.MethodGet, "/health/live")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestNotificationsRequireSession(t *testing.T) {
	fx := newRouterFixture(t)
	rr := perform(fx.handler, http.MethodGet, "/api/v1/notifications")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestNotificationsRequireReadPermission(t *testing.T) {
	fx := newRouterFixture(t)
	fx.login(t, "tickets:read")
	rr := perform(fx.handler, http.MethodGet, "/api/v1/notifications")
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestNotificationsListAndBadge(t *testing.T) {
	fx := newRouterFixture(t)
	fx.login(t, PermNotificationsRead)
	fx.inbox.Add(context.Background(), domain.Notification{ID: "n-1", Message: "hello"})

	rr := perform(fx.handler, http.MethodGet, "/api/v1/notifications")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body struct {
		Data struct {
			Items       []domain.Notification `json:"items"`
			UnreadCount int                   `json:"unreadCount"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Data.Items) != 1 || body.Data.Items[0].ID != "n-1" {
		t.Fatalf("unexpected items: %+v", body.Data.Items)
	}
	if body.Data.UnreadCount != 1 {
		t.Fatalf("unreadCount = %d, want 1", body.Data.UnreadCount)
	}
}

func TestMarkReadUnknownIDIs404(t *testing.T) {
	fx := newRouterFixture(t)
	fx.login(t, PermNotificationsWrite)
	rr := perform(fx.handler, http.MethodPost, "/api/v1/notifications/ghost/read")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestMarkReadAndReadAll(t *testing.T) {
	fx := newRouterFixture(t)
	fx.login(t, PermNotificationsRead, PermNotificationsWrite)
	fx.inbox.Add(context.Background(), domain.Notification{ID: "n-1"})
	fx.inbox.Add(context.Background(), domain.Notification{ID: "n-2"})

	rr := perform(fx.handler, http.MethodPost, "/api/v1/notifications/n-1/read")
	if rr.Code != http.StatusOK {
		t.Fatalf("mark read: expected 200, got %d", rr.Code)
	}
	if got := fx.inbox.UnreadCount(); got != 1 {
		t.Fatalf("unread after mark read = %d, want 1", got)
	}

	rr = perform(fx.handler, http.MethodPost, "/api/v1/notifications/read-all")
	if rr.Code != http.StatusOK {
		t.Fatalf("read-all: expected 200, got %d", rr.Code)
	}
	if got := fx.inbox.UnreadCount(); got != 0 {
		t.Fatalf("unread after read-all = %d, want 0", got)
	}
}

func TestStatusIsOpenAndReflectsSession(t *testing.T) {
	fx := newRouterFixture(t)

	rr := perform(fx.handler, http.MethodGet, "/api/v1/status")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"authenticated":false`) {
		t.Fatalf("expected logged-out status, got %s", rr.Body.String())
	}

	fx.login(t, PermNotificationsRead)
	rr = perform(fx.handler, http.MethodGet, "/api/v1/status")
	if !strings.Contains(rr.Body.String(), `"displayName":"Agent Nine"`) {
		t.Fatalf("expected identity in status, got %s", rr.Body.String())
	}
}

func TestHighlightDismiss(t *testing.T) {
	fx := newRouterFixture(t)
	fx.login(t)
	rr := perform(fx.handler, http.MethodDelete, "/api/v1/highlights/42")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
}

func TestTopicJoinWhileOffline(t *testing.T) {
	fx := newRouterFixture(t)
	fx.login(t)
	rr := perform(fx.handler, http.MethodPost, "/api/v1/topics/7/join")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	rr = perform(fx.handler, http.MethodPost, "/api/v1/topics/7/leave")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}
