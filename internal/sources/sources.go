// Package sources adapts stored records to sitemap record sources.
package sources

import (
	"context"
	"fmt"
	"time"

	"github.com/romangod6/big-sitemap/internal/models"
	"github.com/romangod6/big-sitemap/internal/sitemap"
	"github.com/romangod6/big-sitemap/internal/storage"
)

const (
	KindPages      = "pages"
	KindCategories = "categories"
)

// PageRecords pages through the stored pages in creation order.
type PageRecords struct {
	Store storage.Store
}

func (r PageRecords) Count(ctx context.Context) (int, error) {
	return r.Store.CountPages(ctx)
}

func (r PageRecords) FetchPage(ctx context.Context, offset, limit int) ([]*models.Page, error) {
	return r.Store.ListPages(ctx, limit, offset)
}

type CategoryRecords struct {
	Store storage.Store
}

func (r CategoryRecords) Count(ctx context.Context) (int, error) {
	return r.Store.CountCategories(ctx)
}

func (r CategoryRecords) FetchPage(ctx context.Context, offset, limit int) ([]*models.Category, error) {
	return r.Store.ListCategories(ctx, limit, offset)
}

// PageFields maps a page to a sitemap entry. Crawled pages carry their
// absolute URL; imported pages without one fall back to their slug.
var PageFields = sitemap.FieldMapping[*models.Page]{
	Identifier: func(p *models.Page) string {
		if p.URL != "" {
			return p.URL
		}
		return p.Slug
	},
	UpdatedAt:  func(p *models.Page) *time.Time { return p.UpdatedAt },
	CreatedAt:  func(p *models.Page) *time.Time { return &p.CreatedAt },
	ChangeFreq: func(p *models.Page) string { return p.ChangeFreq },
	Priority:   func(p *models.Page) *float64 { return p.Priority },
	Video:      func(p *models.Page) *models.Video { return p.Video },
}

var CategoryFields = sitemap.FieldMapping[*models.Category]{
	Identifier: func(c *models.Category) string { return c.Slug },
	UpdatedAt:  func(c *models.Category) *time.Time { return c.UpdatedAt },
	CreatedAt:  func(c *models.Category) *time.Time { return &c.CreatedAt },
}

// Build returns the sitemap source of the given kind backed by store.
func Build(kind string, spec models.SourceSpec, store storage.Store) (sitemap.Source, error) {
	switch kind {
	case KindPages, "":
		return sitemap.NewSource(spec, PageRecords{Store: store}, PageFields)
	case KindCategories:
		if spec.Video {
			return nil, fmt.Errorf("%w: source %q: categories have no video data", sitemap.ErrConfig, spec.Name)
		}
		return sitemap.NewSource(spec, CategoryRecords{Store: store}, CategoryFields)
	default:
		return nil, fmt.Errorf("%w: unknown source kind %q", sitemap.ErrConfig, kind)
	}
}
