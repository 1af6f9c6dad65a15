package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/kensaku-io/kensaku/internal/models"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	store, err := NewSQLiteStorage(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStorage_Templates(t *testing.T) {
	store := newTestStorage(t)

	tpl := &models.SearchTemplate{
		Name:        "recent-videos",
		Description: "videos from the last week",
		Criteria: models.SearchCriteria{
			FieldFilters: map[string]models.FieldPredicate{
				"filetype": {Op: models.OpContains, Value: "video"},
			},
			SortBy: "date", SortOrder: "desc",
		},
		CreatedAt: time.Now(),
	}
	if err := store.SaveTemplate(tpl); err != nil {
		t.Fatal(err)
	}

	tpls, err := store.LoadTemplates()
	if err != nil {
		t.Fatal(err)
	}
	if len(tpls) != 1 {
		t.Fatalf("expected 1 template, got %d", len(tpls))
	}
	got := tpls[0]
	if got.Name != "recent-videos" || got.Description != tpl.Description {
		t.Errorf("got %+v", got)
	}
	if got.Criteria.FieldFilters["filetype"].Value != "video" {
		t.Errorf("criteria did not survive roundtrip: %+v", got.Criteria)
	}

	// Saving the same name replaces the row.
	tpl.Description = "updated"
	if err := store.SaveTemplate(tpl); err != nil {
		t.Fatal(err)
	}
	tpls, _ = store.LoadTemplates()
	if len(tpls) != 1 || tpls[0].Description != "updated" {
		t.Errorf("expected single updated template, got %+v", tpls)
	}

	if err := store.DeleteTemplate("recent-videos"); err != nil {
		t.Fatal(err)
	}
	tpls, _ = store.LoadTemplates()
	if len(tpls) != 0 {
		t.Errorf("expected empty store, got %d templates", len(tpls))
	}
}

func TestSQLiteStorage_History(t *testing.T) {
	store := newTestStorage(t)

	queries := []string{"happy taipei", "rain videos", "calm music"}
	for _, q := range queries {
		if err := store.AppendHistory(q); err != nil {
			t.Fatal(err)
		}
	}

	recent, err := store.RecentHistory(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(recent))
	}

	if err := store.PruneHistory(1); err != nil {
		t.Fatal(err)
	}
	recent, _ = store.RecentHistory(10)
	if len(recent) != 1 {
		t.Errorf("expected 1 entry after prune, got %d", len(recent))
	}
}

func TestDiskUsageBytes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")
	store, err := NewSQLiteStorage(path)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	n, err := DiskUsageBytes(dir)
	if err != nil {
		t.Fatal(err)
	}
	if n <= 0 {
		t.Errorf("expected positive usage, got %d", n)
	}

	// Missing paths contribute nothing.
	n2, err := DiskUsageBytes(dir, filepath.Join(dir, "missing"))
	if err != nil {
		t.Fatal(err)
	}
	if n2 != n {
		t.Errorf("missing path changed usage: %d != %d", n2, n)
	}
}
