// internal/crawler/parser.go
package crawler

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/romangod6/big-sitemap/internal/models"
	"golang.org/x/net/html"
)

var changeFrequencies = map[string]bool{
	"always": true, "hourly": true, "daily": true, "weekly": true,
	"monthly": true, "yearly": true, "never": true,
}

// ParsedPage holds the sitemap-relevant metadata of an HTML page.
type ParsedPage struct {
	Title      string
	Canonical  string
	ModifiedAt *time.Time
	ChangeFreq string
	Priority   *float64
	Video      *models.Video
	NoIndex    bool
}

// ParseHTMLContent parses a raw HTML document and extracts its metadata.
func ParseHTMLContent(content string) (*ParsedPage, error) {
	root, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("error parsing HTML: %w", err)
	}
	stripNodes(root)

	doc := goquery.NewDocumentFromNode(root)
	return extractPage(doc.Selection), nil
}

// stripNodes removes script, style and comment nodes so that text
// extraction only sees visible content.
func stripNodes(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.CommentNode || (c.Type == html.ElementNode && (c.Data == "script" || c.Data == "style")) {
			n.RemoveChild(c)
		} else {
			stripNodes(c)
		}
		c = next
	}
}

func extractPage(doc *goquery.Selection) *ParsedPage {
	parsed := &ParsedPage{}

	parsed.Title = metaProperty(doc, "og:title")
	if parsed.Title == "" {
		parsed.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	if parsed.Title == "" {
		parsed.Title = strings.TrimSpace(doc.Find("h1").First().Text())
	}

	if href, ok := doc.Find("link[rel='canonical']").First().Attr("href"); ok {
		parsed.Canonical = strings.TrimSpace(href)
	}

	for _, property := range []string{"article:modified_time", "og:updated_time", "article:published_time"} {
		if t := parseTime(metaProperty(doc, property)); t != nil {
			parsed.ModifiedAt = t
			break
		}
	}

	if freq := strings.ToLower(metaName(doc, "sitemap:changefreq")); changeFrequencies[freq] {
		parsed.ChangeFreq = freq
	}
	if p, err := strconv.ParseFloat(metaName(doc, "sitemap:priority"), 64); err == nil && p >= 0 && p <= 1 {
		parsed.Priority = &p
	}

	parsed.NoIndex = strings.Contains(strings.ToLower(metaName(doc, "robots")), "noindex")
	parsed.Video = extractVideo(doc, parsed.Title)

	return parsed
}

// extractVideo reads the Open Graph video block. Pages without og:video
// have no video.
func extractVideo(doc *goquery.Selection, title string) *models.Video {
	content := metaProperty(doc, "og:video:secure_url")
	if content == "" {
		content = metaProperty(doc, "og:video:url")
	}
	if content == "" {
		content = metaProperty(doc, "og:video")
	}
	if content == "" {
		return nil
	}

	video := &models.Video{
		ContentURL:   content,
		ThumbnailURL: metaProperty(doc, "og:image"),
		Title:        title,
		Description:  metaProperty(doc, "og:description"),
	}
	if video.Description == "" {
		video.Description = metaName(doc, "description")
	}
	if d, err := strconv.Atoi(metaProperty(doc, "video:duration")); err == nil && d > 0 {
		video.Duration = &d
	}
	video.PublishedAt = parseTime(metaProperty(doc, "video:release_date"))

	doc.Find("meta[property='video:tag']").Each(func(_ int, s *goquery.Selection) {
		if tag := strings.TrimSpace(s.AttrOr("content", "")); tag != "" {
			video.Tags = append(video.Tags, tag)
		}
	})
	return video
}

func metaProperty(doc *goquery.Selection, property string) string {
	return strings.TrimSpace(doc.Find(fmt.Sprintf("meta[property='%s']", property)).First().AttrOr("content", ""))
}

func metaName(doc *goquery.Selection, name string) string {
	return strings.TrimSpace(doc.Find(fmt.Sprintf("meta[name='%s']", name)).First().AttrOr("content", ""))
}

func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
