package sitemap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/romangod6/big-sitemap/internal/models"
)

// RecordSource is the data store side of a source: a record count and
// offset/limit pages in a stable order.
type RecordSource[R any] interface {
	Count(ctx context.Context) (int, error)
	FetchPage(ctx context.Context, offset, limit int) ([]R, error)
}

// FieldMapping tells the generator how to read one record type. Identifier
// is required; every other accessor is optional.
type FieldMapping[R any] struct {
	// Identifier returns an absolute URL or a path relative to the
	// source's URL path.
	Identifier func(R) string
	UpdatedAt  func(R) *time.Time
	CreatedAt  func(R) *time.Time
	ChangeFreq func(R) string
	Priority   func(R) *float64
	Video      func(R) *models.Video
}

// Source is a record source bound to its spec and field mapping.
type Source interface {
	Spec() models.SourceSpec
	Count(ctx context.Context) (int, error)
	// Entries fetches one batch and maps it to sitemap entries.
	Entries(ctx context.Context, baseURL string, offset, limit int) ([]models.SitemapEntry, error)
}

type mappedSource[R any] struct {
	spec    models.SourceSpec
	records RecordSource[R]
	fields  FieldMapping[R]
}

// NewSource binds records to spec through fields.
func NewSource[R any](spec models.SourceSpec, records RecordSource[R], fields FieldMapping[R]) (Source, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("%w: source name is required", ErrConfig)
	}
	if records == nil {
		return nil, fmt.Errorf("%w: source %q has no record source", ErrConfig, spec.Name)
	}
	if fields.Identifier == nil {
		return nil, fmt.Errorf("%w: source %q: %w", ErrConfig, spec.Name, ErrMissingIdentifier)
	}
	return &mappedSource[R]{spec: spec, records: records, fields: fields}, nil
}

func (s *mappedSource[R]) Spec() models.SourceSpec { return s.spec }

func (s *mappedSource[R]) Count(ctx context.Context) (int, error) {
	return s.records.Count(ctx)
}

func (s *mappedSource[R]) Entries(ctx context.Context, baseURL string, offset, limit int) ([]models.SitemapEntry, error) {
	records, err := s.records.FetchPage(ctx, offset, limit)
	if err != nil {
		return nil, err
	}
	if len(records) > limit {
		records = records[:limit]
	}

	entries := make([]models.SitemapEntry, 0, len(records))
	for i, r := range records {
		entry, err := s.entry(baseURL, r)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", offset+i, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *mappedSource[R]) entry(baseURL string, r R) (models.SitemapEntry, error) {
	id := strings.TrimSpace(s.fields.Identifier(r))
	if id == "" {
		return models.SitemapEntry{}, ErrMissingIdentifier
	}

	entry := models.SitemapEntry{
		Loc:        resolveLoc(baseURL, s.spec.Path, id),
		LastMod:    s.lastMod(r),
		ChangeFreq: s.spec.ChangeFreq,
		Priority:   s.spec.Priority,
	}
	if s.fields.ChangeFreq != nil {
		if freq := s.fields.ChangeFreq(r); freq != "" {
			entry.ChangeFreq = freq
		}
	}
	if s.fields.Priority != nil {
		if p := s.fields.Priority(r); p != nil {
			entry.Priority = p
		}
	}
	if s.fields.Video != nil && s.spec.Video {
		entry.Video = s.fields.Video(r)
	}
	return entry, nil
}

// lastMod prefers the update time over the creation time. A record with
// neither gets no lastmod.
func (s *mappedSource[R]) lastMod(r R) *time.Time {
	for _, field := range []func(R) *time.Time{s.fields.UpdatedAt, s.fields.CreatedAt} {
		if field == nil {
			continue
		}
		if t := field(r); t != nil && !t.IsZero() {
			return t
		}
	}
	return nil
}

func resolveLoc(baseURL, path, id string) string {
	if strings.Contains(id, "://") {
		return id
	}
	parts := []string{strings.TrimRight(baseURL, "/")}
	if p := strings.Trim(path, "/"); p != "" {
		parts = append(parts, p)
	}
	parts = append(parts, strings.TrimLeft(id, "/"))
	return strings.Join(parts, "/")
}
