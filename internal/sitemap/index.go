package sitemap

import (
	"errors"
	"fmt"

	"github.com/romangod6/big-sitemap/internal/models"
)

// URLFunc maps a generated file path to its public URL.
type URLFunc func(path string) (string, error)

type IndexOptions struct {
	MaxPerFile int
	Indent     int
}

// BuildIndex writes a sitemap index referencing every file, in order. A
// file's lastmod is written only when its modification time is known.
// The index parts themselves are returned.
func BuildIndex(target Target, files []models.GeneratedFile, urlFor URLFunc, opts IndexOptions) ([]models.GeneratedFile, error) {
	w := NewWriter(target, WriterOptions{
		Mode:       Index,
		MaxPerFile: opts.MaxPerFile,
		Indent:     opts.Indent,
	})
	if err := w.Open(); err != nil {
		return nil, err
	}

	for _, f := range files {
		loc, err := urlFor(f.Path)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("failed to resolve URL for %s: %w", f.Path, err), w.Close())
		}
		entry := &models.SitemapEntry{Loc: loc}
		if !f.ModTime.IsZero() {
			modTime := f.ModTime
			entry.LastMod = &modTime
		}
		if err := w.AddEntry(entry); err != nil {
			return nil, errors.Join(err, w.Close())
		}
	}

	if err := w.Close(); err != nil {
		return nil, err
	}
	return w.Files(), nil
}
