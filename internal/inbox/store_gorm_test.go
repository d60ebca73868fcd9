package inbox

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/supportdesk/ticketsync/internal/domain"
)

func newGormStoreForTest(t *testing.T) *GormStore {
	t.Helper()

	db, err := OpenSQLite(filepath.Join(t.TempDir(), "inbox.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	store, err := NewGormStore(db)
	if err != nil {
		t.Fatalf("create gorm store: %v", err)
	}
	return store
}

func TestGormStoreRoundTrip(t *testing.T) {
	store := newGormStoreForTest(t)
	ctx := context.Background()

	entries, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load empty store: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty table, got %d entries", len(entries))
	}

	want := []domain.Notification{
		{ID: "n3", Message: "three", Link: "/tickets/3", Timestamp: time.Now().UTC().Truncate(time.Second)},
		{ID: "n2", Message: "two", Link: "/tickets/2", Timestamp: time.Now().UTC().Truncate(time.Second), IsRead: true},
		{ID: "n1", Message: "one", Link: "/tickets/1", Timestamp: time.Now().UTC().Truncate(time.Second)},
	}
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("save entries: %v", err)
	}

	entries, err = store.Load(ctx)
	if err != nil {
		t.Fatalf("load entries: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i, id := range []string{"n3", "n2", "n1"} {
		if entries[i].ID != id {
			t.Fatalf("position %d: expected %q got %q", i, id, entries[i].ID)
		}
	}
	if !entries[1].IsRead {
		t.Fatal("read flag not preserved")
	}
}

func TestGormStoreSaveReplacesPreviousSnapshot(t *testing.T) {
	store := newGormStoreForTest(t)
	ctx := context.Background()

	if err := store.Save(ctx, []domain.Notification{{ID: "old"}}); err != nil {
		t.Fatalf("save first snapshot: %v", err)
	}
	if err := store.Save(ctx, []domain.Notification{{ID: "new"}}); err != nil {
		t.Fatalf("save second snapshot: %v", err)
	}

	entries, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load entries: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "new" {
		t.Fatalf("expected replaced snapshot, got %+v", entries)
	}

	if err := store.Save(ctx, nil); err != nil {
		t.Fatalf("save empty snapshot: %v", err)
	}
	entries, err = store.Load(ctx)
	if err != nil {
		t.Fatalf("load after empty save: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty table, got %d entries", len(entries))
	}
}
