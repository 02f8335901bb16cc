package models

import (
	"time"

	"github.com/google/uuid"
)

type Category struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Slug        string     `json:"slug"`
	Description string     `json:"description,omitempty"`
	ParentID    *uuid.UUID `json:"parent_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// Page is a crawled or imported document that ends up as one sitemap entry.
type Page struct {
	ID         uuid.UUID  `json:"id"`
	CategoryID *uuid.UUID `json:"category_id,omitempty"`
	Slug       string     `json:"slug"`
	URL        string     `json:"url"`
	Title      string     `json:"title"`
	ChangeFreq string     `json:"change_freq,omitempty"`
	Priority   *float64   `json:"priority,omitempty"`
	Video      *Video     `json:"video,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
}

// GenerationRun records the outcome of one sitemap generation.
type GenerationRun struct {
	ID         uuid.UUID       `json:"id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Files      []GeneratedFile `json:"files"`
	Index      []GeneratedFile `json:"index"`
	IndexURL   string          `json:"index_url"`
	Warnings   []string        `json:"warnings,omitempty"`
}

// URLCount is the number of entries written across all sitemap files of the run.
func (r *GenerationRun) URLCount() int {
	total := 0
	for _, f := range r.Files {
		total += f.URLCount
	}
	return total
}
