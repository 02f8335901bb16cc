package sitemap

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"
)

// Sink is a byte destination with optional gzip compression. Close must be
// called exactly once the document is complete; after it returns every byte
// has reached the underlying destination.
type Sink struct {
	dst    io.WriteCloser
	gz     *gzip.Writer
	buf    *bufio.Writer
	closed bool
}

func NewSink(dst io.WriteCloser, compress bool) *Sink {
	s := &Sink{dst: dst}
	var w io.Writer = dst
	if compress {
		s.gz = gzip.NewWriter(dst)
		w = s.gz
	}
	s.buf = bufio.NewWriter(w)
	return s
}

func (s *Sink) Write(p []byte) (int, error) {
	if s.closed {
		return 0, ErrClosed
	}
	return s.buf.Write(p)
}

func (s *Sink) WriteString(str string) (int, error) {
	if s.closed {
		return 0, ErrClosed
	}
	return s.buf.WriteString(str)
}

// Close flushes buffered bytes, terminates the gzip stream and closes the
// destination. The destination is closed even when flushing fails.
func (s *Sink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if err := s.buf.Flush(); err != nil {
		errs = append(errs, fmt.Errorf("failed to flush sink: %w", err))
	}
	if s.gz != nil {
		if err := s.gz.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to finish gzip stream: %w", err))
		}
	}
	if err := s.dst.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close destination: %w", err))
	}
	return errors.Join(errs...)
}

// Target hands out one destination per document part.
type Target interface {
	// Create opens the destination for part and returns its path.
	Create(part int) (io.WriteCloser, string, error)
	// ModTime reports the modification time of a closed part, or the zero
	// time when it is not known.
	ModTime(path string) time.Time
	Compressed() bool
}

// PartName returns the file name of a part: prefix.xml for part 0 and
// prefix_N.xml afterwards, with .gz appended when compressed.
func PartName(prefix string, part int, compressed bool) string {
	name := prefix
	if part > 0 {
		name = fmt.Sprintf("%s_%d", prefix, part)
	}
	name += ".xml"
	if compressed {
		name += ".gz"
	}
	return name
}

// FileTarget writes parts as files in Dir.
type FileTarget struct {
	Dir    string
	Prefix string
	Gzip   bool
}

func (t *FileTarget) Create(part int) (io.WriteCloser, string, error) {
	if err := os.MkdirAll(t.Dir, 0755); err != nil {
		return nil, "", fmt.Errorf("failed to create sitemap directory: %w", err)
	}
	path := filepath.Join(t.Dir, PartName(t.Prefix, part, t.Gzip))
	f, err := os.Create(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	return f, path, nil
}

func (t *FileTarget) ModTime(path string) time.Time {
	fi, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return fi.ModTime()
}

func (t *FileTarget) Compressed() bool { return t.Gzip }

// MemoryTarget keeps every part in memory. Parts have no modification time.
type MemoryTarget struct {
	Prefix string
	Gzip   bool

	parts []*bytes.Buffer
}

func (t *MemoryTarget) Create(part int) (io.WriteCloser, string, error) {
	for len(t.parts) <= part {
		t.parts = append(t.parts, nil)
	}
	buf := &bytes.Buffer{}
	t.parts[part] = buf
	return nopCloser{buf}, PartName(t.Prefix, part, t.Gzip), nil
}

func (t *MemoryTarget) ModTime(string) time.Time { return time.Time{} }

func (t *MemoryTarget) Compressed() bool { return t.Gzip }

// Parts returns the number of parts created so far.
func (t *MemoryTarget) Parts() int { return len(t.parts) }

// Bytes returns the raw (possibly compressed) content of part.
func (t *MemoryTarget) Bytes(part int) []byte {
	if part >= len(t.parts) || t.parts[part] == nil {
		return nil
	}
	return t.parts[part].Bytes()
}

// String returns part as text, decompressing it when needed.
func (t *MemoryTarget) String(part int) (string, error) {
	raw := t.Bytes(part)
	if !t.Gzip {
		return string(raw), nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
