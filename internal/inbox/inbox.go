package inbox

import (
	"context"
	"log/slog"
	"sync"

	"github.com/supportdesk/ticketsync/internal/domain"
	"github.com/supportdesk/ticketsync/internal/observability"
)

// DefaultCap bounds the inbox; the oldest entries fall off the tail
// regardless of read state.
const DefaultCap = 50

// Inbox is the durable notification list, newest first. Entries are the
// persisted representation; the unread count is always derived from them.
// Add does not deduplicate — the event reconciler owns idempotence.
type Inbox struct {
	store  Store
	logger *slog.Logger
	cap    int

	mu      sync.RWMutex
	entries []domain.Notification
	unread  int

	// persistMu orders store writes: the snapshot is taken under it, so a
	// later save can never carry an older state than an earlier one.
	persistMu sync.Mutex
}

func New(store Store, capacity int, logger *slog.Logger) *Inbox {
	if store == nil {
		store = NewNoopStore()
	}
	if capacity <= 0 {
		capacity = DefaultCap
	}
	return &Inbox{store: store, logger: logger, cap: capacity}
}

// Load replaces in-memory state with the persisted entries and recomputes
// the unread count from their read flags; a stored count is never trusted.
func (b *Inbox) Load(ctx context.Context) error {
	entries, err := b.store.Load(ctx)
	if err != nil {
		return err
	}
	if len(entries) > b.cap {
		entries = entries[:b.cap]
	}
	unread := 0
	for _, n := range entries {
		if !n.IsRead {
			unread++
		}
	}
	b.mu.Lock()
	b.entries = entries
	b.unread = unread
	b.mu.Unlock()
	return nil
}

// Add prepends an unread entry and trims the tail past the cap.
func (b *Inbox) Add(ctx context.Context, n domain.Notification) {
	n.IsRead = false
	b.mu.Lock()
	entries := make([]domain.Notification, 0, len(b.entries)+1)
	entries = append(entries, n)
	entries = append(entries, b.entries...)
	if len(entries) > b.cap {
		for _, evicted := range entries[b.cap:] {
			if !evicted.IsRead {
				b.unread--
			}
		}
		entries = entries[:b.cap]
	}
	b.entries = entries
	b.unread++
	b.mu.Unlock()

	observability.RecordInboxMutation("add")
	b.persist(ctx)
}

// MarkRead flips a single entry and decrements unread only when the entry
// existed and was unread. Marking an absent or already-read id is a no-op.
func (b *Inbox) MarkRead(ctx context.Context, id string) bool {
	b.mu.Lock()
	changed := false
	for i := range b.entries {
		if b.entries[i].ID == id {
			if !b.entries[i].IsRead {
				b.entries[i].IsRead = true
				b.unread--
				changed = true
			}
			break
		}
	}
	b.mu.Unlock()

	if changed {
		observability.RecordInboxMutation("mark_read")
		b.persist(ctx)
	}
	return changed
}

func (b *Inbox) MarkAllRead(ctx context.Context) {
	b.mu.Lock()
	for i := range b.entries {
		b.entries[i].IsRead = true
	}
	b.unread = 0
	b.mu.Unlock()

	observability.RecordInboxMutation("mark_all_read")
	b.persist(ctx)
}

func (b *Inbox) Contains(id string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, n := range b.entries {
		if n.ID == id {
			return true
		}
	}
	return false
}

func (b *Inbox) Snapshot() []domain.Notification {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]domain.Notification(nil), b.entries...)
}

func (b *Inbox) UnreadCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.unread
}

func (b *Inbox) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

// persist writes the current entries through the store. Persistence failure
// degrades durability, not correctness, so it is logged and swallowed.
func (b *Inbox) persist(ctx context.Context) {
	b.persistMu.Lock()
	defer b.persistMu.Unlock()
	b.mu.RLock()
	entries := append([]domain.Notification(nil), b.entries...)
	b.mu.RUnlock()
	if err := b.store.Save(ctx, entries); err != nil {
		b.logger.Warn("persist inbox", "error", err, "entries", len(entries))
	}
}
