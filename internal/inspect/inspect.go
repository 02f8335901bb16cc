// Package inspect reads a published sitemap index back and reports on the
// files it references.
package inspect

import (
	"bufio"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
)

type URLSet struct {
	XMLName xml.Name `xml:"urlset"`
	URLs    []URL    `xml:"url"`
}

type URL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod,omitempty"`
	ChangeFreq string `xml:"changefreq,omitempty"`
	Priority   string `xml:"priority,omitempty"`
}

type Index struct {
	XMLName  xml.Name     `xml:"sitemapindex"`
	Sitemaps []IndexEntry `xml:"sitemap"`
}

type IndexEntry struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

// Opener returns the raw (possibly gzip-compressed) content at loc.
type Opener func(ctx context.Context, loc string) (io.ReadCloser, error)

// HTTPOpener fetches locations over HTTP.
func HTTPOpener(client *http.Client) Opener {
	if client == nil {
		client = http.DefaultClient
	}
	return func(ctx context.Context, loc string) (io.ReadCloser, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, loc, nil)
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("unexpected status %s fetching %s", resp.Status, loc)
		}
		return resp.Body, nil
	}
}

// DirOpener maps locations below baseURL to files below root, so a
// generated tree can be checked before it is published.
func DirOpener(baseURL, root string) Opener {
	prefix := strings.TrimRight(baseURL, "/") + "/"
	return func(_ context.Context, loc string) (io.ReadCloser, error) {
		if !strings.HasPrefix(loc, prefix) {
			return nil, fmt.Errorf("%s is not below %s", loc, prefix)
		}
		return os.Open(filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(loc, prefix))))
	}
}

type FileReport struct {
	Loc  string
	URLs int
}

type Report struct {
	Index    string
	Files    []FileReport
	Problems []string
}

func (r *Report) URLCount() int {
	total := 0
	for _, f := range r.Files {
		total += f.URLs
	}
	return total
}

// OK reports whether no problems were found.
func (r *Report) OK() bool {
	return len(r.Problems) == 0
}

// Inspect reads the index at indexLoc and every sitemap it references.
// Files over maxPerFile URLs, empty files and locations listed twice are
// reported as problems; unreadable files are errors.
func Inspect(ctx context.Context, open Opener, indexLoc string, maxPerFile int) (*Report, error) {
	var index Index
	if err := decode(ctx, open, indexLoc, &index); err != nil {
		return nil, fmt.Errorf("failed to read index: %w", err)
	}

	report := &Report{Index: indexLoc}
	seen := make(map[string]string)
	for _, entry := range index.Sitemaps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.Loc == indexLoc {
			report.Problems = append(report.Problems, "index references itself")
			continue
		}

		var set URLSet
		if err := decode(ctx, open, entry.Loc, &set); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", entry.Loc, err)
		}
		report.Files = append(report.Files, FileReport{Loc: entry.Loc, URLs: len(set.URLs)})

		if len(set.URLs) == 0 {
			report.Problems = append(report.Problems, fmt.Sprintf("%s has no urls", entry.Loc))
		}
		if maxPerFile > 0 && len(set.URLs) > maxPerFile {
			report.Problems = append(report.Problems,
				fmt.Sprintf("%s has %d urls, limit is %d", entry.Loc, len(set.URLs), maxPerFile))
		}
		for _, u := range set.URLs {
			if first, dup := seen[u.Loc]; dup {
				report.Problems = append(report.Problems,
					fmt.Sprintf("%s listed in %s and %s", u.Loc, first, entry.Loc))
				continue
			}
			seen[u.Loc] = entry.Loc
		}
	}
	return report, nil
}

func decode(ctx context.Context, open Opener, loc string, v interface{}) error {
	rc, err := open(ctx, loc)
	if err != nil {
		return err
	}
	defer rc.Close()

	r, err := maybeGunzip(bufio.NewReader(rc))
	if err != nil {
		return err
	}
	return xml.NewDecoder(r).Decode(v)
}

func maybeGunzip(r *bufio.Reader) (io.Reader, error) {
	magic, err := r.Peek(2)
	if err != nil && err != io.EOF {
		return nil, err
	}
	if bytes.Equal(magic, []byte{0x1f, 0x8b}) {
		return gzip.NewReader(r)
	}
	return r, nil
}
