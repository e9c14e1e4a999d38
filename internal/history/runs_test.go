package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecordAndList(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	ingestID, err := store.Record(ctx, Run{
		Kind:       KindIngest,
		APIBase:    "http://localhost:3000",
		StartedAt:  base,
		FinishedAt: base.Add(time.Minute),
		Requests:   2,
		Failures:   1,
		Total:      12,
		Pages: []Page{
			{Query: "go", Page: 1, Status: 200, Count: 12},
			{Query: "go", Page: 2, Status: 500, Error: "HTTP 500: boom"},
		},
	})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if ingestID == "" {
		t.Fatalf("Record() returned empty id")
	}

	if _, err := store.Record(ctx, Run{
		Kind:       KindExpire,
		APIBase:    "http://localhost:3000",
		StartedAt:  base.Add(time.Hour),
		FinishedAt: base.Add(time.Hour),
		Total:      3,
		DryRun:     true,
	}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	runs, err := store.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("len(runs) = %d, want 2", len(runs))
	}
	if runs[0].Kind != KindExpire || !runs[0].DryRun {
		t.Fatalf("runs[0] = %+v, want newest expire dry run first", runs[0])
	}
	if !runs[1].StartedAt.Equal(base) || runs[1].Total != 12 || runs[1].Failures != 1 {
		t.Fatalf("runs[1] = %+v", runs[1])
	}

	ingestOnly, err := store.List(ctx, ListOptions{Kind: KindIngest, Limit: 5})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(ingestOnly) != 1 || ingestOnly[0].ID != ingestID {
		t.Fatalf("List(kind=ingest) = %+v", ingestOnly)
	}

	pages, err := store.Pages(ctx, ingestID)
	if err != nil {
		t.Fatalf("Pages() error = %v", err)
	}
	if len(pages) != 2 || pages[1].Status != 500 || pages[1].Error == "" {
		t.Fatalf("Pages() = %+v", pages)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	for i := 0; i < 2; i++ {
		store, err := Open(path)
		if err != nil {
			t.Fatalf("Open() #%d error = %v", i, err)
		}
		if err := store.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}
	}
}
