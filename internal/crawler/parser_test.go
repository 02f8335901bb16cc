package crawler

import (
	"testing"
	"time"
)

const videoPage = `<!DOCTYPE html>
<html>
<head>
  <title>Fallback title</title>
  <meta property="og:title" content="Installing the agent">
  <meta property="og:description" content="A short walkthrough.">
  <meta property="og:image" content="https://example.com/thumb.jpg">
  <meta property="og:video" content="https://example.com/install.mp4">
  <meta property="video:duration" content="95">
  <meta property="video:tag" content="install">
  <meta property="video:tag" content="agent">
  <meta property="article:modified_time" content="2024-05-06T07:08:09Z">
  <meta name="sitemap:changefreq" content="Weekly">
  <meta name="sitemap:priority" content="0.7">
  <link rel="canonical" href="/guides/install">
  <script>var tracking = "<title>not me</title>";</script>
</head>
<body><h1>Install</h1></body>
</html>`

func TestParseHTMLContentMetadata(t *testing.T) {
	parsed, err := ParseHTMLContent(videoPage)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if parsed.Title != "Installing the agent" {
		t.Errorf("expected og:title, got %q", parsed.Title)
	}
	if parsed.Canonical != "/guides/install" {
		t.Errorf("unexpected canonical %q", parsed.Canonical)
	}
	want := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	if parsed.ModifiedAt == nil || !parsed.ModifiedAt.Equal(want) {
		t.Errorf("unexpected modified time %v", parsed.ModifiedAt)
	}
	if parsed.ChangeFreq != "weekly" {
		t.Errorf("expected normalised change frequency, got %q", parsed.ChangeFreq)
	}
	if parsed.Priority == nil || *parsed.Priority != 0.7 {
		t.Errorf("unexpected priority %v", parsed.Priority)
	}
	if parsed.NoIndex {
		t.Error("page should be indexable")
	}

	video := parsed.Video
	if video == nil {
		t.Fatal("expected video metadata")
	}
	if video.ContentURL != "https://example.com/install.mp4" || video.ThumbnailURL != "https://example.com/thumb.jpg" {
		t.Errorf("unexpected video URLs %+v", video)
	}
	if video.Title != "Installing the agent" || video.Description != "A short walkthrough." {
		t.Errorf("unexpected video text %+v", video)
	}
	if video.Duration == nil || *video.Duration != 95 {
		t.Errorf("unexpected duration %v", video.Duration)
	}
	if len(video.Tags) != 2 || video.Tags[0] != "install" || video.Tags[1] != "agent" {
		t.Errorf("unexpected tags %v", video.Tags)
	}
}

func TestParseHTMLContentFallbacks(t *testing.T) {
	tests := map[string]struct {
		html       string
		title      string
		changeFreq string
		noIndex    bool
		hasPrio    bool
	}{
		"title element": {
			html:  `<html><head><title> Release notes </title></head><body></body></html>`,
			title: "Release notes",
		},
		"heading when no title": {
			html:  `<html><body><h1>FAQ</h1></body></html>`,
			title: "FAQ",
		},
		"invalid sitemap hints are ignored": {
			html:  `<html><head><title>x</title><meta name="sitemap:changefreq" content="sometimes"><meta name="sitemap:priority" content="1.5"></head></html>`,
			title: "x",
		},
		"noindex": {
			html:    `<html><head><title>Draft</title><meta name="robots" content="NOINDEX, follow"></head></html>`,
			title:   "Draft",
			noIndex: true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			parsed, err := ParseHTMLContent(tc.html)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if parsed.Title != tc.title {
				t.Errorf("expected title %q, got %q", tc.title, parsed.Title)
			}
			if parsed.ChangeFreq != tc.changeFreq {
				t.Errorf("expected change frequency %q, got %q", tc.changeFreq, parsed.ChangeFreq)
			}
			if parsed.NoIndex != tc.noIndex {
				t.Errorf("expected noindex %v", tc.noIndex)
			}
			if (parsed.Priority != nil) != tc.hasPrio {
				t.Errorf("unexpected priority %v", parsed.Priority)
			}
			if parsed.Video != nil {
				t.Errorf("expected no video, got %+v", parsed.Video)
			}
		})
	}
}
