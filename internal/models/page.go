package models

import (
	"time"

	"github.com/google/uuid"
)

// NewPage creates a new page with generated UUID and creation time
func NewPage() *Page {
	return &Page{
		ID:        uuid.New(),
		CreatedAt: time.Now(),
	}
}
