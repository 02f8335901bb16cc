package sources

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/romangod6/big-sitemap/internal/models"
	"github.com/romangod6/big-sitemap/internal/sitemap"
	"github.com/romangod6/big-sitemap/internal/storage"
)

func newStore(t *testing.T) storage.Store {
	t.Helper()

	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "sources.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.Initialize(); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}
	return store
}

func TestPagesSourceEntries(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	created := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	updated := created.Add(48 * time.Hour)
	priority := 0.9

	crawled := models.NewPage()
	crawled.Slug = "guides"
	crawled.URL = "https://docs.example.com/guides"
	crawled.CreatedAt = created
	crawled.UpdatedAt = &updated
	crawled.ChangeFreq = "daily"
	crawled.Priority = &priority

	imported := models.NewPage()
	imported.Slug = "faq"
	imported.CreatedAt = created.Add(time.Hour)

	for _, p := range []*models.Page{crawled, imported} {
		if err := store.UpsertPage(ctx, p); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	defaultPriority := 0.5
	src, err := Build(KindPages, models.SourceSpec{
		Name:       "sitemap_pages",
		Path:       "docs",
		ChangeFreq: "weekly",
		Priority:   &defaultPriority,
	}, store)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	count, err := src.Count(ctx)
	if err != nil || count != 2 {
		t.Fatalf("expected 2 records, got %d (%v)", count, err)
	}

	entries, err := src.Entries(ctx, "https://example.com", 0, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	first := entries[0]
	if first.Loc != "https://docs.example.com/guides" {
		t.Errorf("expected absolute URL to be kept, got %s", first.Loc)
	}
	if first.LastMod == nil || !first.LastMod.Equal(updated) {
		t.Errorf("expected lastmod from update time, got %v", first.LastMod)
	}
	if first.ChangeFreq != "daily" || first.Priority == nil || *first.Priority != 0.9 {
		t.Errorf("expected per-page overrides, got %q %v", first.ChangeFreq, first.Priority)
	}

	second := entries[1]
	if second.Loc != "https://example.com/docs/faq" {
		t.Errorf("expected slug under the source path, got %s", second.Loc)
	}
	if second.LastMod == nil || !second.LastMod.Equal(imported.CreatedAt) {
		t.Errorf("expected lastmod from creation time, got %v", second.LastMod)
	}
	if second.ChangeFreq != "weekly" || second.Priority == nil || *second.Priority != 0.5 {
		t.Errorf("expected source defaults, got %q %v", second.ChangeFreq, second.Priority)
	}
}

func TestCategoriesSourceUsesSlug(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	category := models.NewCategory()
	category.Name = "Guides"
	category.Slug = "guides"
	if err := store.UpsertCategory(ctx, category); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	src, err := Build(KindCategories, models.SourceSpec{Name: "sitemap_categories", Path: "c"}, store)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entries, err := src.Entries(ctx, "https://example.com/", 0, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 || entries[0].Loc != "https://example.com/c/guides" {
		t.Fatalf("unexpected entries %+v", entries)
	}
}

func TestBuildRejectsBadSources(t *testing.T) {
	store := newStore(t)

	tests := map[string]struct {
		kind string
		spec models.SourceSpec
	}{
		"unknown kind":        {kind: "products", spec: models.SourceSpec{Name: "sitemap_products"}},
		"missing name":        {kind: KindPages},
		"video on categories": {kind: KindCategories, spec: models.SourceSpec{Name: "sitemap_categories", Video: true}},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Build(tc.kind, tc.spec, store)
			if !errors.Is(err, sitemap.ErrConfig) {
				t.Fatalf("expected ErrConfig, got %v", err)
			}
		})
	}
}
