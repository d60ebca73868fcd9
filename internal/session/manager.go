package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/supportdesk/ticketsync/internal/observability"
	"github.com/supportdesk/ticketsync/internal/security"
)

var ErrInvalidToken = errors.New("invalid session token")

type Identity struct {
	SubjectID   string
	DisplayName string
	Roles       []string
	Permissions []string
}

type EventType string

const (
	EventLoggedIn  EventType = "logged_in"
	EventLoggedOut EventType = "logged_out"
)

type Event struct {
	Type   EventType
	Reason string
}

type Listener func(Event)

// Manager owns the authenticated session: the raw token, the identity
// derived from it, and the expiry timer. Token and identity are swapped
// under one lock so no reader can observe one without the other.
type Manager struct {
	store  TokenStore
	logger *slog.Logger
	now    func() time.Time

	mu          sync.RWMutex
	token       string
	identity    *Identity
	expiry      time.Time
	expiryTimer *time.Timer

	listenerMu sync.Mutex
	listeners  map[string]Listener
}

func NewManager(store TokenStore, logger *slog.Logger) *Manager {
	if store == nil {
		store = NewInMemoryTokenStore()
	}
	return &Manager{
		store:     store,
		logger:    logger,
		now:       time.Now,
		listeners: make(map[string]Listener),
	}
}

// Restore loads the persisted token, if any, and logs in when it is still
// valid. A stale or malformed persisted token is cleared and ignored.
func (m *Manager) Restore(ctx context.Context) error {
	raw, err := m.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load persisted token: %w", err)
	}
	if raw == "" {
		return nil
	}
	if err := m.Login(ctx, raw); err != nil {
		m.logger.Info("discarding persisted token", "reason", err)
		return nil
	}
	return nil
}

// Login validates the token, persists it, and swaps token plus identity in
// one critical section. An invalid token behaves as Logout.
func (m *Manager) Login(ctx context.Context, raw string) error {
	claims, err := security.Decode(raw)
	if err != nil {
		m.logout(ctx, "invalid_token")
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if err := claims.ValidAt(m.now()); err != nil {
		m.logout(ctx, "expired_token")
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if err := m.store.Save(ctx, raw); err != nil {
		return fmt.Errorf("persist token: %w", err)
	}

	identity := &Identity{
		SubjectID:   claims.Subject,
		DisplayName: claims.DisplayName,
		Roles:       append([]string(nil), claims.Roles...),
		Permissions: append([]string(nil), claims.Permissions...),
	}
	expiry := claims.ExpiresAt.Time

	m.mu.Lock()
	m.token = raw
	m.identity = identity
	m.expiry = expiry
	m.armExpiryLocked(expiry)
	m.mu.Unlock()

	observability.RecordSessionTransition("login")
	m.logger.Info("session established", "subject", identity.SubjectID, "expires_at", expiry)
	m.notify(Event{Type: EventLoggedIn})
	return nil
}

// Logout clears the persisted token and in-memory identity.
func (m *Manager) Logout(ctx context.Context) {
	m.logout(ctx, "user_logout")
}

// ForceLogout is the path collaborators use when they detect authorization
// loss, such as a 401 from the backend or local expiry.
func (m *Manager) ForceLogout(ctx context.Context, reason string) {
	m.logout(ctx, reason)
}

func (m *Manager) logout(ctx context.Context, reason string) {
	if err := m.store.Clear(ctx); err != nil {
		m.logger.Warn("clear persisted token", "error", err)
	}

	m.mu.Lock()
	wasAuthenticated := m.identity != nil
	m.token = ""
	m.identity = nil
	m.expiry = time.Time{}
	if m.expiryTimer != nil {
		m.expiryTimer.Stop()
		m.expiryTimer = nil
	}
	m.mu.Unlock()

	if !wasAuthenticated {
		return
	}
	observability.RecordSessionTransition("logout")
	m.logger.Info("session cleared", "reason", reason)
	m.notify(Event{Type: EventLoggedOut, Reason: reason})
}

func (m *Manager) armExpiryLocked(expiry time.Time) {
	if m.expiryTimer != nil {
		m.expiryTimer.Stop()
	}
	until := expiry.Sub(m.now())
	m.expiryTimer = time.AfterFunc(until, func() {
		m.logout(context.Background(), "token_expired")
	})
}

// HasPermission implements OR semantics across the required set: any one
// match grants access, and an empty requirement is trivially satisfied.
func (m *Manager) HasPermission(required ...string) bool {
	m.mu.RLock()
	identity := m.identity
	m.mu.RUnlock()
	if identity == nil {
		return false
	}
	if len(required) == 0 {
		return true
	}
	for _, want := range required {
		for _, have := range identity.Permissions {
			if have == want {
				return true
			}
		}
	}
	return false
}

func (m *Manager) Authenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.identity != nil
}

func (m *Manager) Token() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token, m.identity != nil
}

func (m *Manager) Identity() (Identity, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.identity == nil {
		return Identity{}, false
	}
	return *m.identity, true
}

// Subscribe registers a transition listener and returns the id to pass to
// Unsubscribe. Listeners run synchronously at the end of each transition,
// after state is fully swapped.
func (m *Manager) Subscribe(fn Listener) string {
	id := uuid.NewString()
	m.listenerMu.Lock()
	m.listeners[id] = fn
	m.listenerMu.Unlock()
	return id
}

func (m *Manager) Unsubscribe(id string) {
	m.listenerMu.Lock()
	delete(m.listeners, id)
	m.listenerMu.Unlock()
}

func (m *Manager) notify(ev Event) {
	m.listenerMu.Lock()
	fns := make([]Listener, 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.listenerMu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}
