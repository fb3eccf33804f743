package memory

import (
	"context"
	"testing"
	"time"

	"warp-quiz-server/internal/domain"
)

func TestResultStoreRecordListClear(t *testing.T) {
	ctx := context.Background()
	store := NewResultStore()

	first := domain.LeaderboardEntry{Name: "Alice", Score: 3, Total: 5, Elapsed: 2 * time.Minute}
	if err := store.Record(ctx, first); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := store.Record(ctx, domain.LeaderboardEntry{Name: "Bob", Score: 4, Total: 5}); err != nil {
		t.Fatalf("record: %v", err)
	}

	entries, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 || entries[0].Name != "Alice" {
		t.Fatalf("expected submission order, got %+v", entries)
	}

	// Re-recording a name replaces instead of appending.
	first.Score = 5
	if err := store.Record(ctx, first); err != nil {
		t.Fatalf("re-record: %v", err)
	}
	entries, _ = store.List(ctx)
	if len(entries) != 2 || entries[0].Score != 5 {
		t.Fatalf("expected replaced entry, got %+v", entries)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	entries, _ = store.List(ctx)
	if len(entries) != 0 {
		t.Fatalf("expected empty store, got %+v", entries)
	}
}
