// internal/models/sitemap.go
package models

import "time"

// SitemapEntry is one <url> element of a url set, or one <sitemap> element
// of an index when only Loc and LastMod are set.
type SitemapEntry struct {
	Loc        string
	LastMod    *time.Time
	ChangeFreq string
	Priority   *float64
	Video      *Video
}

// Video is the Google video sitemap extension block.
type Video struct {
	ContentURL     string     `json:"content_url,omitempty"`
	PlayerURL      string     `json:"player_url,omitempty"`
	AllowEmbed     bool       `json:"allow_embed,omitempty"`
	ThumbnailURL   string     `json:"thumbnail_url,omitempty"`
	Title          string     `json:"title,omitempty"`
	Description    string     `json:"description,omitempty"`
	Rating         *float64   `json:"rating,omitempty"`
	ViewCount      *int64     `json:"view_count,omitempty"`
	PublishedAt    *time.Time `json:"published_at,omitempty"`
	Duration       *int       `json:"duration,omitempty"`
	Tags           []string   `json:"tags,omitempty"`
	FamilyFriendly *bool      `json:"family_friendly,omitempty"`
	Category       string     `json:"category,omitempty"`
}

// SourceSpec describes how one record source is turned into sitemap files.
type SourceSpec struct {
	// Name is the file name prefix, e.g. "sitemap_pages".
	Name string
	// Path is the URL path segment placed between the base URL and a
	// record identifier.
	Path       string
	BatchSize  int
	MaxPerFile int
	ChangeFreq string
	Priority   *float64
	Video      bool
}

// BatchRange is one fetch window of a source and the file it is written to.
type BatchRange struct {
	Offset int
	Limit  int
	File   int
}

// GeneratedFile describes a closed sitemap part.
type GeneratedFile struct {
	Path     string    `json:"path"`
	Part     int       `json:"part"`
	URLCount int       `json:"url_count"`
	ModTime  time.Time `json:"mod_time"`
}
