package sitemap

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/romangod6/big-sitemap/internal/models"
	"go.uber.org/zap"
)

const (
	DefaultBatchSize = 1001
	DefaultPath      = "sitemaps"
	DefaultIndexName = "sitemap_index"
)

type Options struct {
	// BaseURL is the public URL that DocumentRoot is served under.
	BaseURL      string
	DocumentRoot string
	// Path is the directory below DocumentRoot that receives the files.
	Path       string
	IndexName  string
	MaxPerFile int
	// IndexMaxPerFile is the number of sitemaps per index part. Zero means
	// DefaultMaxPerFile.
	IndexMaxPerFile int
	BatchSize       int
	Gzip            bool
	Indent          int
}

// Notifier is told about the index URL after a successful generation.
// Returned errors are reported as warnings only.
type Notifier interface {
	Notify(ctx context.Context, sitemapURL string) []error
}

type Result struct {
	Files []models.GeneratedFile
	Index []models.GeneratedFile
	// IndexURL is the first index part; IndexURLs lists every part.
	IndexURL  string
	IndexURLs []string
	Warnings  []string
}

// Generator writes the sitemap files of all registered sources, one source
// and one batch at a time, followed by the index.
type Generator struct {
	opts     Options
	sources  []Source
	specs    []models.SourceSpec
	notifier Notifier
	logger   *zap.SugaredLogger
}

func New(opts Options, logger *zap.SugaredLogger) (*Generator, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("%w: base URL must be specified", ErrConfig)
	}
	u, err := url.Parse(opts.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("%w: base URL %q must be an absolute http(s) URL", ErrConfig, opts.BaseURL)
	}
	if opts.DocumentRoot == "" {
		return nil, fmt.Errorf("%w: document root must be specified", ErrConfig)
	}
	if opts.Path == "" {
		opts.Path = DefaultPath
	}
	if opts.IndexName == "" {
		opts.IndexName = DefaultIndexName
	}
	if opts.MaxPerFile <= 0 {
		opts.MaxPerFile = DefaultMaxPerFile
	}
	if opts.IndexMaxPerFile <= 0 {
		opts.IndexMaxPerFile = DefaultMaxPerFile
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.BatchSize > opts.MaxPerFile {
		return nil, fmt.Errorf("%w: batch size %d must not exceed max per sitemap %d", ErrConfig, opts.BatchSize, opts.MaxPerFile)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Generator{opts: opts, logger: logger}, nil
}

func (g *Generator) WithNotifier(n Notifier) *Generator {
	g.notifier = n
	return g
}

// Add registers a source. Missing batch size and file limits fall back to
// the generator's options.
func (g *Generator) Add(src Source) error {
	if src == nil {
		return fmt.Errorf("%w: nil source", ErrConfig)
	}
	spec := src.Spec()
	if spec.MaxPerFile <= 0 {
		spec.MaxPerFile = g.opts.MaxPerFile
	}
	if spec.BatchSize <= 0 {
		spec.BatchSize = min(g.opts.BatchSize, spec.MaxPerFile)
	}
	if _, err := PlanBatches(0, spec.MaxPerFile, spec.BatchSize); err != nil {
		return fmt.Errorf("%w: source %q: %w", ErrConfig, spec.Name, err)
	}
	if spec.Name == g.opts.IndexName {
		return fmt.Errorf("%w: source %q collides with the index name", ErrConfig, spec.Name)
	}
	for _, s := range g.specs {
		if s.Name == spec.Name {
			return fmt.Errorf("%w: duplicate source %q", ErrConfig, spec.Name)
		}
	}

	g.sources = append(g.sources, src)
	g.specs = append(g.specs, spec)
	return nil
}

// OutputDir is the directory the sitemap files are written to.
func (g *Generator) OutputDir() string {
	return filepath.Join(g.opts.DocumentRoot, g.opts.Path)
}

// URLFor maps a file below the document root to its public URL.
func (g *Generator) URLFor(path string) (string, error) {
	rel, err := filepath.Rel(g.opts.DocumentRoot, path)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside the document root", path)
	}
	return strings.TrimRight(g.opts.BaseURL, "/") + "/" + filepath.ToSlash(rel), nil
}

// Generate writes every source in registration order and then the index.
// Files closed before a failure stay on disk.
func (g *Generator) Generate(ctx context.Context) (*Result, error) {
	result := &Result{}

	for i, src := range g.sources {
		files, err := g.generateSource(ctx, src, g.specs[i])
		if err != nil {
			return nil, err
		}
		result.Files = append(result.Files, files...)
	}

	index, err := BuildIndex(g.target(g.opts.IndexName), result.Files, g.URLFor, IndexOptions{
		MaxPerFile: g.opts.IndexMaxPerFile,
		Indent:     g.opts.Indent,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build sitemap index: %w", err)
	}
	result.Index = index
	for _, f := range index {
		u, err := g.URLFor(f.Path)
		if err != nil {
			return nil, err
		}
		result.IndexURLs = append(result.IndexURLs, u)
	}
	result.IndexURL = result.IndexURLs[0]
	g.logger.Infow("sitemap index written",
		"path", index[0].Path,
		"parts", len(index),
		"sitemaps", len(result.Files))

	if len(index) > 1 {
		msg := fmt.Sprintf("sitemap index split into %d parts of at most %d sitemaps; every part is submitted separately",
			len(index), g.opts.IndexMaxPerFile)
		g.logger.Warnw(msg, "urls", result.IndexURLs)
		result.Warnings = append(result.Warnings, msg)
	}

	if g.notifier != nil {
		for _, u := range result.IndexURLs {
			for _, err := range g.notifier.Notify(ctx, u) {
				g.logger.Warnw("search engine notification failed", "sitemap", u, "error", err)
				result.Warnings = append(result.Warnings, err.Error())
			}
		}
	}

	return result, nil
}

func (g *Generator) generateSource(ctx context.Context, src Source, spec models.SourceSpec) ([]models.GeneratedFile, error) {
	total, err := src.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("source %q: failed to count records: %w", spec.Name, err)
	}
	plan, err := PlanBatches(total, spec.MaxPerFile, spec.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("source %q: %w", spec.Name, err)
	}
	if plan.Files == 0 {
		g.logger.Infow("source is empty, no sitemap written", "source", spec.Name)
		return nil, nil
	}

	g.logger.Infow("generating sitemaps",
		"source", spec.Name,
		"records", total,
		"files", plan.Files,
		"batches", len(plan.Ranges))

	w := NewWriter(g.target(spec.Name), WriterOptions{
		Mode:       URLSet,
		MaxPerFile: spec.MaxPerFile,
		Video:      spec.Video,
		Indent:     g.opts.Indent,
	})
	if err := g.writeBatches(ctx, w, src, plan); err != nil {
		return nil, fmt.Errorf("source %q: %w", spec.Name, errors.Join(err, w.Close()))
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("source %q: %w", spec.Name, err)
	}

	files := w.Files()
	for _, f := range files {
		g.logger.Debugw("sitemap written", "path", f.Path, "urls", f.URLCount)
	}
	return files, nil
}

func (g *Generator) writeBatches(ctx context.Context, w *Writer, src Source, plan *Plan) error {
	if err := w.Open(); err != nil {
		return err
	}

	file := 0
	for _, r := range plan.Ranges {
		if err := ctx.Err(); err != nil {
			return err
		}
		if r.File != file {
			if err := w.Rotate(); err != nil {
				return err
			}
			file = r.File
		}

		entries, err := src.Entries(ctx, g.opts.BaseURL, r.Offset, r.Limit)
		if err != nil {
			return fmt.Errorf("batch at offset %d: %w", r.Offset, err)
		}
		for i := range entries {
			if err := w.AddEntry(&entries[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

// Clean removes the output directory and everything in it.
func (g *Generator) Clean() error {
	dir := filepath.Clean(g.OutputDir())
	if dir == filepath.Clean(g.opts.DocumentRoot) {
		return fmt.Errorf("refusing to remove the document root %s", dir)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to clean %s: %w", dir, err)
	}
	return nil
}

func (g *Generator) target(prefix string) Target {
	return &FileTarget{Dir: g.OutputDir(), Prefix: prefix, Gzip: g.opts.Gzip}
}
