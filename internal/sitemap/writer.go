package sitemap

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/romangod6/big-sitemap/internal/models"
)

const (
	SitemapNamespace = "http://www.sitemaps.org/schemas/sitemap/0.9"
	VideoNamespace   = "http://www.google.com/schemas/sitemap-video/1.1"

	// DefaultMaxPerFile is the protocol limit of URLs per sitemap file.
	DefaultMaxPerFile = 50000

	xmlDeclaration = `<?xml version="1.0" encoding="UTF-8"?>`
)

// Mode selects the document type a Writer produces.
type Mode int

const (
	URLSet Mode = iota
	Index
)

func (m Mode) rootTag() string {
	if m == Index {
		return "sitemapindex"
	}
	return "urlset"
}

func (m Mode) entryTag() string {
	if m == Index {
		return "sitemap"
	}
	return "url"
}

func (m Mode) String() string { return m.rootTag() }

type Attr struct {
	Name  string
	Value string
}

type WriterOptions struct {
	Mode Mode
	// MaxPerFile is the entry count that triggers rotation. Zero means
	// DefaultMaxPerFile.
	MaxPerFile int
	// Video declares the video namespace on url set roots and allows
	// entries with a video block.
	Video bool
	// Indent is the number of spaces per nesting level. Zero writes
	// compact output without line breaks.
	Indent int
}

// element is an open tag and the attributes it was opened with.
type element struct {
	name  string
	attrs []Attr
}

type writerState int

const (
	unopened writerState = iota
	open
	closed
)

// Writer streams a sitemap document into parts produced by a Target,
// rotating to a new part whenever MaxPerFile entries have been written.
// Open tags are tracked on a stack so Close always leaves well-formed XML.
type Writer struct {
	target Target
	opts   WriterOptions

	state     writerState
	sink      *Sink
	path      string
	part      int
	count     int
	level     int
	tags      []element
	rootAttrs []Attr
	err       error

	files []models.GeneratedFile
}

func NewWriter(target Target, opts WriterOptions) *Writer {
	if opts.MaxPerFile <= 0 {
		opts.MaxPerFile = DefaultMaxPerFile
	}
	return &Writer{target: target, opts: opts}
}

// Open writes the XML declaration and the root element of the first part.
func (w *Writer) Open(attrs ...Attr) error {
	switch {
	case w.state == closed:
		return ErrClosed
	case w.state == open, w.sink != nil:
		return ErrAlreadyOpen
	}

	if err := w.acquire(); err != nil {
		return err
	}
	w.rootAttrs = attrs
	w.state = open
	w.startDocument()
	return w.check()
}

// AddEntry writes one entry, rotating to a new part first when the current
// one is full. An unopened writer is opened implicitly.
func (w *Writer) AddEntry(e *models.SitemapEntry) error {
	if w.state == closed {
		return ErrClosed
	}
	if err := w.validate(e); err != nil {
		return err
	}
	if w.state == unopened {
		if err := w.Open(); err != nil {
			return err
		}
	}
	if w.count >= w.opts.MaxPerFile {
		if err := w.Rotate(); err != nil {
			return err
		}
	}

	w.writeEntry(e)
	w.count++
	return w.check()
}

// Rotate closes the current part and continues in a new numbered part.
func (w *Writer) Rotate() error {
	switch w.state {
	case closed:
		return ErrClosed
	case unopened:
		return w.Open()
	}

	// Elements opened inside the root continue in the new part.
	var nested []element
	if len(w.tags) > 1 {
		nested = append(nested, w.tags[1:]...)
	}

	if err := w.finishPart(); err != nil {
		w.state = closed
		return err
	}
	w.part++
	if err := w.acquire(); err != nil {
		w.state = closed
		return err
	}
	w.startDocument()
	for _, e := range nested {
		w.openTag(e.name, e.attrs)
	}
	return w.check()
}

// OpenTag opens an arbitrary element and leaves it on the stack until the
// matching CloseTag or Close.
func (w *Writer) OpenTag(name string, attrs ...Attr) error {
	if w.state == closed {
		return ErrClosed
	}
	if err := w.acquire(); err != nil {
		return err
	}
	w.openTag(name, attrs)
	return w.check()
}

// CloseTag closes name, which must be the innermost open element.
func (w *Writer) CloseTag(name string) error {
	if w.state == closed {
		return ErrClosed
	}
	if len(w.tags) == 0 || w.tags[len(w.tags)-1].name != name {
		return fmt.Errorf("%w: %q", ErrTagMismatch, name)
	}
	// The root of an open document is only closed by Close or Rotate.
	if w.state == open && len(w.tags) == 1 {
		return fmt.Errorf("%w: %q is the document root", ErrTagMismatch, name)
	}
	w.closeTag()
	return w.check()
}

// Element writes a complete element with escaped text content.
func (w *Writer) Element(name, text string, attrs ...Attr) error {
	if w.state == closed {
		return ErrClosed
	}
	if err := w.acquire(); err != nil {
		return err
	}
	w.element(name, text, attrs)
	return w.check()
}

// Close closes every open element, innermost first, and finalizes the
// current part. Calling Close again is a no-op.
func (w *Writer) Close() error {
	if w.state == closed {
		return nil
	}
	w.state = closed
	if w.sink == nil {
		return nil
	}
	return w.finishPart()
}

// Files returns the parts closed so far, in order.
func (w *Writer) Files() []models.GeneratedFile {
	out := make([]models.GeneratedFile, len(w.files))
	copy(out, w.files)
	return out
}

// Count is the number of entries in the current part.
func (w *Writer) Count() int { return w.count }

func (w *Writer) acquire() error {
	if w.sink != nil {
		return nil
	}
	dst, path, err := w.target.Create(w.part)
	if err != nil {
		return err
	}
	w.sink = NewSink(dst, w.target.Compressed())
	w.path = path
	w.count = 0
	w.level = 0
	w.tags = w.tags[:0]
	w.err = nil
	return nil
}

func (w *Writer) startDocument() {
	w.write(xmlDeclaration)
	w.newline()

	attrs := []Attr{{Name: "xmlns", Value: SitemapNamespace}}
	if w.opts.Video && w.opts.Mode == URLSet {
		attrs = append(attrs, Attr{Name: "xmlns:video", Value: VideoNamespace})
	}
	attrs = append(attrs, w.rootAttrs...)
	w.openTag(w.opts.Mode.rootTag(), attrs)
}

func (w *Writer) finishPart() error {
	for len(w.tags) > 0 {
		w.closeTag()
	}
	err := w.err
	if cerr := w.sink.Close(); cerr != nil {
		err = errors.Join(err, cerr)
	}
	w.sink = nil
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", w.path, err)
	}

	w.files = append(w.files, models.GeneratedFile{
		Path:     w.path,
		Part:     w.part,
		URLCount: w.count,
		ModTime:  w.target.ModTime(w.path),
	})
	return nil
}

// check turns a pending write error into a terminal failure: the current
// sink is released and the writer is closed.
func (w *Writer) check() error {
	if w.err == nil {
		return nil
	}
	err := fmt.Errorf("failed to write %s: %w", w.path, w.err)
	if w.sink != nil {
		if cerr := w.sink.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
		w.sink = nil
	}
	w.state = closed
	return err
}

func (w *Writer) validate(e *models.SitemapEntry) error {
	switch {
	case e == nil || e.Loc == "":
		return fmt.Errorf("%w: location is required", ErrInvalidEntry)
	case e.Priority != nil && (*e.Priority < 0 || *e.Priority > 1):
		return fmt.Errorf("%w: priority %v outside [0,1] for %s", ErrInvalidEntry, *e.Priority, e.Loc)
	case w.opts.Mode == Index && (e.ChangeFreq != "" || e.Priority != nil || e.Video != nil):
		return fmt.Errorf("%w: index entries carry only location and lastmod (%s)", ErrInvalidEntry, e.Loc)
	case e.Video != nil && !w.opts.Video:
		return fmt.Errorf("%w: video block on a writer without video support (%s)", ErrInvalidEntry, e.Loc)
	}
	return nil
}

func (w *Writer) writeEntry(e *models.SitemapEntry) {
	tag := w.opts.Mode.entryTag()
	w.openTag(tag, nil)
	w.element("loc", e.Loc, nil)
	if e.LastMod != nil && !e.LastMod.IsZero() {
		w.element("lastmod", FormatTimestamp(*e.LastMod), nil)
	}
	if e.ChangeFreq != "" {
		w.element("changefreq", e.ChangeFreq, nil)
	}
	if e.Priority != nil {
		w.element("priority", formatFloat(*e.Priority), nil)
	}
	if e.Video != nil {
		w.writeVideo(e.Video)
	}
	w.closeTag()
}

func (w *Writer) writeVideo(v *models.Video) {
	w.openTag("video:video", nil)
	if v.ContentURL != "" {
		w.element("video:content_loc", v.ContentURL, nil)
	}
	if v.PlayerURL != "" {
		w.element("video:player_loc", v.PlayerURL, []Attr{{Name: "allow_embed", Value: yesNo(v.AllowEmbed)}})
	}
	if v.ThumbnailURL != "" {
		w.element("video:thumbnail_loc", v.ThumbnailURL, nil)
	}
	if v.Title != "" {
		w.element("video:title", v.Title, nil)
	}
	if v.Description != "" {
		w.element("video:description", v.Description, nil)
	}
	if v.Rating != nil {
		w.element("video:rating", formatFloat(*v.Rating), nil)
	}
	if v.ViewCount != nil {
		w.element("video:view_count", strconv.FormatInt(*v.ViewCount, 10), nil)
	}
	if v.PublishedAt != nil && !v.PublishedAt.IsZero() {
		w.element("video:publication_date", FormatTimestamp(*v.PublishedAt), nil)
	}
	if v.Duration != nil {
		w.element("video:duration", strconv.Itoa(*v.Duration), nil)
	}
	for _, tag := range v.Tags {
		w.element("video:tag", tag, nil)
	}
	if v.FamilyFriendly != nil {
		w.element("video:family_friendly", yesNo(*v.FamilyFriendly), nil)
	}
	if v.Category != "" {
		w.element("video:category", v.Category, nil)
	}
	w.closeTag()
}

func (w *Writer) openTag(name string, attrs []Attr) {
	w.indent()
	w.startTag(name, attrs)
	w.newline()
	w.level++
	w.tags = append(w.tags, element{name: name, attrs: attrs})
}

// closeTag closes the innermost open element.
func (w *Writer) closeTag() {
	name := w.tags[len(w.tags)-1].name
	w.tags = w.tags[:len(w.tags)-1]
	w.level--
	w.indent()
	w.write("</" + name + ">")
	w.newline()
}

func (w *Writer) element(name, text string, attrs []Attr) {
	w.indent()
	w.startTag(name, attrs)
	w.write(escape(text))
	w.write("</" + name + ">")
	w.newline()
}

func (w *Writer) startTag(name string, attrs []Attr) {
	var b strings.Builder
	b.WriteString("<")
	b.WriteString(name)
	for _, a := range attrs {
		b.WriteString(" ")
		b.WriteString(a.Name)
		b.WriteString(`="`)
		b.WriteString(escape(a.Value))
		b.WriteString(`"`)
	}
	b.WriteString(">")
	w.write(b.String())
}

func (w *Writer) indent() {
	if w.opts.Indent > 0 && w.level > 0 {
		w.write(strings.Repeat(" ", w.level*w.opts.Indent))
	}
}

func (w *Writer) newline() {
	if w.opts.Indent > 0 {
		w.write("\n")
	}
}

// write keeps the first error, like bufio.Writer; callers report it via check.
func (w *Writer) write(s string) {
	if w.err != nil || w.sink == nil {
		return
	}
	_, w.err = w.sink.WriteString(s)
}

func escape(s string) string {
	var b strings.Builder
	// strings.Builder never fails.
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
