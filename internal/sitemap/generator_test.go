package sitemap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/romangod6/big-sitemap/internal/models"
	"go.uber.org/zap/zaptest"
)

type item struct {
	id        string
	updatedAt *time.Time
	createdAt *time.Time
	priority  *float64
}

type fakeRecords struct {
	items   []item
	fetches []models.BatchRange
	err     error
}

func (f *fakeRecords) Count(context.Context) (int, error) { return len(f.items), nil }

func (f *fakeRecords) FetchPage(_ context.Context, offset, limit int) ([]item, error) {
	f.fetches = append(f.fetches, models.BatchRange{Offset: offset, Limit: limit})
	if f.err != nil {
		return nil, f.err
	}
	end := min(offset+limit, len(f.items))
	return f.items[offset:end], nil
}

var itemFields = FieldMapping[item]{
	Identifier: func(i item) string { return i.id },
	UpdatedAt:  func(i item) *time.Time { return i.updatedAt },
	CreatedAt:  func(i item) *time.Time { return i.createdAt },
	Priority:   func(i item) *float64 { return i.priority },
}

func makeItems(n int) []item {
	items := make([]item, n)
	for i := range items {
		items[i] = item{id: fmt.Sprintf("item-%02d", i)}
	}
	return items
}

func newTestGenerator(t *testing.T, opts Options) *Generator {
	t.Helper()
	if opts.BaseURL == "" {
		opts.BaseURL = "https://example.com"
	}
	if opts.DocumentRoot == "" {
		opts.DocumentRoot = t.TempDir()
	}
	g, err := New(opts, zaptest.NewLogger(t).Sugar())
	if err != nil {
		t.Fatalf("unexpected error creating generator: %v", err)
	}
	return g
}

func addItems(t *testing.T, g *Generator, spec models.SourceSpec, records *fakeRecords) {
	t.Helper()
	src, err := NewSource[item](spec, records, itemFields)
	if err != nil {
		t.Fatalf("unexpected error creating source: %v", err)
	}
	if err := g.Add(src); err != nil {
		t.Fatalf("unexpected error adding source: %v", err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open %s: %v", path, err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		zr, err := gzip.NewReader(f)
		if err != nil {
			t.Fatalf("%s is not gzip: %v", path, err)
		}
		defer zr.Close()
		r = zr
	}
	b, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return string(b)
}

func TestGenerateFollowsBatchPlan(t *testing.T) {
	root := t.TempDir()
	g := newTestGenerator(t, Options{DocumentRoot: root, Indent: 2})
	records := &fakeRecords{items: makeItems(10)}
	addItems(t, g, models.SourceSpec{Name: "sitemap_items", Path: "items", MaxPerFile: 4, BatchSize: 3, ChangeFreq: "weekly"}, records)

	result, err := g.Generate(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantFetches := []models.BatchRange{{Offset: 0, Limit: 3}, {Offset: 3, Limit: 1}, {Offset: 4, Limit: 3}, {Offset: 7, Limit: 3}}
	if fmt.Sprint(records.fetches) != fmt.Sprint(wantFetches) {
		t.Fatalf("unexpected fetches %v, want %v", records.fetches, wantFetches)
	}

	if len(result.Files) != 3 {
		t.Fatalf("expected 3 sitemap files, got %d", len(result.Files))
	}
	dir := filepath.Join(root, "sitemaps")
	for i, want := range []struct {
		name string
		urls int
	}{{"sitemap_items.xml", 4}, {"sitemap_items_1.xml", 3}, {"sitemap_items_2.xml", 3}} {
		f := result.Files[i]
		if f.Path != filepath.Join(dir, want.name) || f.URLCount != want.urls || f.Part != i {
			t.Fatalf("file %d: unexpected record %+v", i, f)
		}
		if f.ModTime.IsZero() {
			t.Fatalf("file %d: modification time not captured", i)
		}
	}

	var locs []string
	for _, f := range result.Files {
		for _, u := range parseURLSet(t, readFile(t, f.Path)).URLs {
			locs = append(locs, u.Loc)
			if u.ChangeFreq != "weekly" {
				t.Fatalf("expected default change frequency, got %q", u.ChangeFreq)
			}
		}
	}
	if len(locs) != 10 || locs[0] != "https://example.com/items/item-00" || locs[9] != "https://example.com/items/item-09" {
		t.Fatalf("unexpected locations %v", locs)
	}

	if result.IndexURL != "https://example.com/sitemaps/sitemap_index.xml" {
		t.Fatalf("unexpected index URL %q", result.IndexURL)
	}
	index := readFile(t, result.Index[0].Path)
	for _, name := range []string{"sitemap_items.xml", "sitemap_items_1.xml", "sitemap_items_2.xml"} {
		if !strings.Contains(index, "<loc>https://example.com/sitemaps/"+name+"</loc>") {
			t.Fatalf("index is missing %s:\n%s", name, index)
		}
	}
	if strings.Count(index, "<lastmod>") != 3 {
		t.Fatalf("expected a lastmod per sitemap:\n%s", index)
	}
	if strings.Contains(index, "sitemap_index.xml") {
		t.Fatalf("index must not reference itself:\n%s", index)
	}
}

func TestGenerateResolvesTimestamps(t *testing.T) {
	root := t.TempDir()
	g := newTestGenerator(t, Options{DocumentRoot: root})
	updated := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	created := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	records := &fakeRecords{items: []item{
		{id: "both", updatedAt: &updated, createdAt: &created},
		{id: "created", createdAt: &created},
		{id: "none"},
		{id: "https://other.example.org/absolute", priority: floatPtr(0.9)},
	}}
	addItems(t, g, models.SourceSpec{Name: "sitemap_items", Path: "items"}, records)

	result, err := g.Generate(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	set := parseURLSet(t, readFile(t, result.Files[0].Path))
	want := []struct{ loc, lastmod string }{
		{"https://example.com/items/both", "2024-05-06T07:08:09+00:00"},
		{"https://example.com/items/created", "2020-01-01T00:00:00+00:00"},
		{"https://example.com/items/none", ""},
		{"https://other.example.org/absolute", ""},
	}
	for i, w := range want {
		if set.URLs[i].Loc != w.loc || set.URLs[i].LastMod != w.lastmod {
			t.Fatalf("entry %d: got %+v, want %+v", i, set.URLs[i], w)
		}
	}
	if doc := readFile(t, result.Files[0].Path); !strings.Contains(doc, "<priority>0.9</priority>") {
		t.Fatalf("per-record priority missing:\n%s", doc)
	}
}

func TestGenerateCompressed(t *testing.T) {
	root := t.TempDir()
	g := newTestGenerator(t, Options{DocumentRoot: root, Gzip: true})
	addItems(t, g, models.SourceSpec{Name: "sitemap_items", MaxPerFile: 2, BatchSize: 2}, &fakeRecords{items: makeItems(3)})

	result, err := g.Generate(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Files) != 2 || !strings.HasSuffix(result.Files[1].Path, "sitemap_items_1.xml.gz") {
		t.Fatalf("unexpected files %+v", result.Files)
	}
	if !strings.HasSuffix(result.IndexURL, "/sitemaps/sitemap_index.xml.gz") {
		t.Fatalf("unexpected index URL %q", result.IndexURL)
	}
	if got := len(parseURLSet(t, readFile(t, result.Files[1].Path)).URLs); got != 1 {
		t.Fatalf("expected 1 url in the second part, got %d", got)
	}
}

func TestGenerateSkipsEmptySource(t *testing.T) {
	g := newTestGenerator(t, Options{})
	addItems(t, g, models.SourceSpec{Name: "sitemap_empty"}, &fakeRecords{})
	addItems(t, g, models.SourceSpec{Name: "sitemap_items"}, &fakeRecords{items: makeItems(1)})

	result, err := g.Generate(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Files) != 1 || !strings.HasSuffix(result.Files[0].Path, "sitemap_items.xml") {
		t.Fatalf("expected only the non-empty source, got %+v", result.Files)
	}
	if _, err := os.Stat(filepath.Join(g.OutputDir(), "sitemap_empty.xml")); !os.IsNotExist(err) {
		t.Fatalf("empty source must not produce a file, stat err %v", err)
	}
}

func TestGenerateAbortsOnMissingIdentifier(t *testing.T) {
	root := t.TempDir()
	g := newTestGenerator(t, Options{DocumentRoot: root})
	items := makeItems(10)
	items[5].id = ""
	addItems(t, g, models.SourceSpec{Name: "sitemap_items", MaxPerFile: 4, BatchSize: 2}, &fakeRecords{items: items})

	_, err := g.Generate(context.Background())
	if !errors.Is(err, ErrMissingIdentifier) {
		t.Fatalf("expected ErrMissingIdentifier, got %v", err)
	}

	dir := filepath.Join(root, "sitemaps")
	if got := len(parseURLSet(t, readFile(t, filepath.Join(dir, "sitemap_items.xml"))).URLs); got != 4 {
		t.Fatalf("expected the completed first part to keep 4 urls, got %d", got)
	}
	second := readFile(t, filepath.Join(dir, "sitemap_items_1.xml"))
	if !strings.HasSuffix(second, "</urlset>") {
		t.Fatalf("in-flight part was not closed cleanly:\n%s", second)
	}
	parseURLSet(t, second)
	if _, err := os.Stat(filepath.Join(dir, "sitemap_index.xml")); !os.IsNotExist(err) {
		t.Fatalf("no index should be written after a failure, stat err %v", err)
	}
}

func TestGeneratePropagatesFetchErrors(t *testing.T) {
	g := newTestGenerator(t, Options{})
	boom := errors.New("connection reset")
	addItems(t, g, models.SourceSpec{Name: "sitemap_items"}, &fakeRecords{items: makeItems(3), err: boom})

	if _, err := g.Generate(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected fetch error, got %v", err)
	}
}

func TestGenerateStopsWhenCancelled(t *testing.T) {
	g := newTestGenerator(t, Options{})
	addItems(t, g, models.SourceSpec{Name: "sitemap_items"}, &fakeRecords{items: makeItems(3)})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := g.Generate(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

type fakeNotifier struct {
	urls []string
	errs []error
}

func (n *fakeNotifier) Notify(_ context.Context, sitemapURL string) []error {
	n.urls = append(n.urls, sitemapURL)
	return n.errs
}

func TestGenerateKeepsResultWhenNotificationFails(t *testing.T) {
	notifier := &fakeNotifier{errs: []error{errors.New("google: 503 Service Unavailable")}}
	g := newTestGenerator(t, Options{}).WithNotifier(notifier)
	addItems(t, g, models.SourceSpec{Name: "sitemap_items"}, &fakeRecords{items: makeItems(2)})

	result, err := g.Generate(context.Background())
	if err != nil {
		t.Fatalf("notification failure must not fail generation, got %v", err)
	}
	if len(notifier.urls) != 1 || notifier.urls[0] != result.IndexURL {
		t.Fatalf("notifier called with %v, want %s", notifier.urls, result.IndexURL)
	}
	if len(result.Warnings) != 1 || len(result.Files) != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestGenerateIndexLimitIsIndependentOfFileLimit(t *testing.T) {
	notifier := &fakeNotifier{}
	g := newTestGenerator(t, Options{MaxPerFile: 2, BatchSize: 2}).WithNotifier(notifier)
	addItems(t, g, models.SourceSpec{Name: "p"}, &fakeRecords{items: makeItems(5)})

	result, err := g.Generate(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Files) != 3 {
		t.Fatalf("expected 3 sitemap files, got %d", len(result.Files))
	}
	if len(result.Index) != 1 || len(result.IndexURLs) != 1 {
		t.Fatalf("expected a single index part, got %+v", result.Index)
	}
	index := readFile(t, result.Index[0].Path)
	for _, name := range []string{"p.xml", "p_1.xml", "p_2.xml"} {
		if !strings.Contains(index, "<loc>https://example.com/sitemaps/"+name+"</loc>") {
			t.Fatalf("index is missing %s:\n%s", name, index)
		}
	}
	if len(result.Warnings) != 0 {
		t.Fatalf("unexpected warnings %v", result.Warnings)
	}
	if len(notifier.urls) != 1 || notifier.urls[0] != result.IndexURL {
		t.Fatalf("notifier called with %v", notifier.urls)
	}
}

func TestGenerateNotifiesEveryIndexPart(t *testing.T) {
	notifier := &fakeNotifier{}
	g := newTestGenerator(t, Options{MaxPerFile: 2, BatchSize: 2, IndexMaxPerFile: 2}).WithNotifier(notifier)
	addItems(t, g, models.SourceSpec{Name: "p"}, &fakeRecords{items: makeItems(5)})

	result, err := g.Generate(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{
		"https://example.com/sitemaps/sitemap_index.xml",
		"https://example.com/sitemaps/sitemap_index_1.xml",
	}
	if fmt.Sprint(result.IndexURLs) != fmt.Sprint(want) || result.IndexURL != want[0] {
		t.Fatalf("unexpected index URLs %v (first %q)", result.IndexURLs, result.IndexURL)
	}
	if fmt.Sprint(notifier.urls) != fmt.Sprint(want) {
		t.Fatalf("notifier called with %v, want %v", notifier.urls, want)
	}
	if len(result.Warnings) != 1 || !strings.Contains(result.Warnings[0], "2 parts") {
		t.Fatalf("expected a split index warning, got %v", result.Warnings)
	}
	if got := strings.Count(readFile(t, result.Index[1].Path), "<sitemap>"); got != 1 {
		t.Fatalf("expected 1 sitemap in the second index part, got %d", got)
	}
}

func TestGeneratorRejectsBadConfiguration(t *testing.T) {
	if _, err := New(Options{DocumentRoot: t.TempDir()}, nil); !errors.Is(err, ErrConfig) {
		t.Fatalf("missing base URL: expected ErrConfig, got %v", err)
	}
	if _, err := New(Options{BaseURL: "example.com", DocumentRoot: t.TempDir()}, nil); !errors.Is(err, ErrConfig) {
		t.Fatalf("relative base URL: expected ErrConfig, got %v", err)
	}
	if _, err := New(Options{BaseURL: "https://example.com"}, nil); !errors.Is(err, ErrConfig) {
		t.Fatalf("missing document root: expected ErrConfig, got %v", err)
	}
	if _, err := New(Options{BaseURL: "https://example.com", DocumentRoot: t.TempDir(), MaxPerFile: 10, BatchSize: 11}, nil); !errors.Is(err, ErrConfig) {
		t.Fatalf("batch larger than file: expected ErrConfig, got %v", err)
	}
}

func TestAddRejectsBadSources(t *testing.T) {
	root := t.TempDir()
	g := newTestGenerator(t, Options{DocumentRoot: root})

	src, _ := NewSource[item](models.SourceSpec{Name: "sitemap_items", MaxPerFile: 5, BatchSize: 6}, &fakeRecords{}, itemFields)
	if err := g.Add(src); !errors.Is(err, ErrConfig) || !errors.Is(err, ErrInvalidPlan) {
		t.Fatalf("expected configuration error, got %v", err)
	}

	_, err := NewSource[item](models.SourceSpec{Name: "sitemap_items"}, &fakeRecords{}, FieldMapping[item]{})
	if !errors.Is(err, ErrMissingIdentifier) || !errors.Is(err, ErrConfig) {
		t.Fatalf("expected missing identifier configuration error, got %v", err)
	}

	first, _ := NewSource[item](models.SourceSpec{Name: "sitemap_items"}, &fakeRecords{}, itemFields)
	if err := g.Add(first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := g.Add(first); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected duplicate source error, got %v", err)
	}

	if _, err := os.Stat(filepath.Join(root, "sitemaps")); !os.IsNotExist(err) {
		t.Fatalf("configuration errors must not create output, stat err %v", err)
	}
}

func TestClean(t *testing.T) {
	g := newTestGenerator(t, Options{})
	addItems(t, g, models.SourceSpec{Name: "sitemap_items"}, &fakeRecords{items: makeItems(1)})
	if _, err := g.Generate(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := g.Clean(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(g.OutputDir()); !os.IsNotExist(err) {
		t.Fatalf("expected output directory to be removed, stat err %v", err)
	}
}

func TestURLFor(t *testing.T) {
	g := newTestGenerator(t, Options{BaseURL: "https://example.com/", DocumentRoot: "/srv/www"})

	got, err := g.URLFor("/srv/www/sitemaps/sitemap_pages_2.xml.gz")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "https://example.com/sitemaps/sitemap_pages_2.xml.gz" {
		t.Fatalf("unexpected URL %q", got)
	}
	if _, err := g.URLFor("/etc/passwd"); err == nil {
		t.Fatal("expected an error for a path outside the document root")
	}
}
