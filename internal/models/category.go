package models

import (
	"time"

	"github.com/google/uuid"
)

// NewCategory creates a new category with generated UUID and creation time
func NewCategory() *Category {
	return &Category{
		ID:        uuid.New(),
		CreatedAt: time.Now(),
	}
}

// IsRoot returns true if the category has no parent
func (c *Category) IsRoot() bool {
	return c.ParentID == nil
}
