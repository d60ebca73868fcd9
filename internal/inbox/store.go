package inbox

import (
	"context"
	"sync"

	"github.com/supportdesk/ticketsync/internal/domain"
)

// Store persists inbox entries. Load returns them newest first, exactly as
// saved; read flags travel with the entries, unread counts never do.
type Store interface {
	Load(ctx context.Context) ([]domain.Notification, error)
	Save(ctx context.Context, entries []domain.Notification) error
}

type NoopStore struct{}

func NewNoopStore() *NoopStore { return &NoopStore{} }

func (s *NoopStore) Load(context.Context) ([]domain.Notification, error) { return nil, nil }

func (s *NoopStore) Save(context.Context, []domain.Notification) error { return nil }

type InMemoryStore struct {
	mu      sync.Mutex
	entries []domain.Notification
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Load(context.Context) ([]domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Notification(nil), s.entries...), nil
}

func (s *InMemoryStore) Save(_ context.Context, entries []domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append([]domain.Notification(nil), entries...)
	return nil
}
