package template

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kensaku-io/kensaku/internal/models"
)

func videoCriteria() models.SearchCriteria {
	return models.SearchCriteria{
		FieldFilters: map[string]models.FieldPredicate{
			"filetype": {Op: models.OpContains, Value: "video"},
		},
		SortBy: "date", SortOrder: "desc",
	}
}

func TestStoreCreateGetDelete(t *testing.T) {
	store := NewStore(nil, zap.NewNop())

	created, err := store.Create("recent-videos", "videos by date", videoCriteria(), false)
	if err != nil {
		t.Fatal(err)
	}
	if created.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}

	got, err := store.Get("recent-videos")
	if err != nil {
		t.Fatal(err)
	}
	if got.Criteria.FieldFilters["filetype"].Value != "video" {
		t.Errorf("criteria: got %+v", got.Criteria)
	}
	if got.LastUsedAt.IsZero() {
		t.Error("Get should touch LastUsedAt")
	}

	if err := store.Delete("recent-videos"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get("recent-videos"); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
	if err := store.Delete("recent-videos"); !errors.Is(err, ErrNotFound) {
		t.Errorf("double delete: got %v, want ErrNotFound", err)
	}
}

func TestStoreCreateConflict(t *testing.T) {
	store := NewStore(nil, zap.NewNop())

	if _, err := store.Create("t", "", videoCriteria(), false); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Create("t", "", videoCriteria(), false); !errors.Is(err, ErrConflict) {
		t.Errorf("got %v, want ErrConflict", err)
	}
	if _, err := store.Create("t", "replaced", videoCriteria(), true); err != nil {
		t.Errorf("overwrite failed: %v", err)
	}
	got, _ := store.Get("t")
	if got.Description != "replaced" {
		t.Errorf("description: got %q, want replaced", got.Description)
	}
}

func TestStoreUpdate(t *testing.T) {
	store := NewStore(nil, zap.NewNop())

	if _, err := store.Update("missing", "", videoCriteria()); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}

	if _, err := store.Create("t", "old", videoCriteria(), false); err != nil {
		t.Fatal(err)
	}
	criteria := videoCriteria()
	criteria.Terms = []string{"harbor"}
	updated, err := store.Update("t", "new", criteria)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Description != "new" || len(updated.Criteria.Terms) != 1 {
		t.Errorf("got %+v", updated)
	}
}

func TestStoreListSorted(t *testing.T) {
	store := NewStore(nil, zap.NewNop())
	for _, name := range []string{"zulu", "alpha", "mike"} {
		if _, err := store.Create(name, "", videoCriteria(), false); err != nil {
			t.Fatal(err)
		}
	}
	list := store.List()
	if len(list) != 3 {
		t.Fatalf("expected 3 templates, got %d", len(list))
	}
	for i, want := range []string{"alpha", "mike", "zulu"} {
		if list[i].Name != want {
			t.Errorf("list[%d] = %q, want %q", i, list[i].Name, want)
		}
	}
}

func TestStoreReturnsCopies(t *testing.T) {
	store := NewStore(nil, zap.NewNop())
	if _, err := store.Create("t", "", videoCriteria(), false); err != nil {
		t.Fatal(err)
	}

	got, _ := store.Get("t")
	got.Criteria.FieldFilters["filetype"] = models.FieldPredicate{Op: models.OpContains, Value: "audio"}
	got.Criteria.Terms = append(got.Criteria.Terms, "mutated")

	again, _ := store.Get("t")
	if again.Criteria.FieldFilters["filetype"].Value != "video" {
		t.Error("mutating a returned template leaked into the store")
	}
	if len(again.Criteria.Terms) != 0 {
		t.Error("mutating returned terms leaked into the store")
	}
}

type failingPersistence struct{}

func (failingPersistence) SaveTemplate(*models.SearchTemplate) error { return errors.New("disk full") }
func (failingPersistence) DeleteTemplate(string) error               { return errors.New("disk full") }
func (failingPersistence) LoadTemplates() ([]*models.SearchTemplate, error) {
	return nil, errors.New("disk full")
}

func TestStorePersistenceFailureSurfaces(t *testing.T) {
	// A failing load leaves the store usable but empty.
	store := NewStore(failingPersistence{}, zap.NewNop())
	if len(store.List()) != 0 {
		t.Fatal("expected empty store after failed load")
	}
	if _, err := store.Create("t", "", videoCriteria(), false); err == nil {
		t.Error("expected create to surface persistence failure")
	}
}

type memPersistence struct {
	saved map[string]*models.SearchTemplate
}

func (m *memPersistence) SaveTemplate(tpl *models.SearchTemplate) error {
	cp := *tpl
	m.saved[tpl.Name] = &cp
	return nil
}
func (m *memPersistence) DeleteTemplate(name string) error {
	delete(m.saved, name)
	return nil
}
func (m *memPersistence) LoadTemplates() ([]*models.SearchTemplate, error) {
	var out []*models.SearchTemplate
	for _, tpl := range m.saved {
		out = append(out, tpl)
	}
	return out, nil
}

func TestStoreLoadsPersisted(t *testing.T) {
	persist := &memPersistence{saved: map[string]*models.SearchTemplate{
		"saved": {Name: "saved", Criteria: videoCriteria(), CreatedAt: time.Now()},
	}}
	store := NewStore(persist, zap.NewNop())
	if _, err := store.Get("saved"); err != nil {
		t.Errorf("persisted template not loaded: %v", err)
	}
}
