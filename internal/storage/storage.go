package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/romangod6/big-sitemap/internal/models"
)

type Store interface {
	Initialize() error
	Close() error

	// Category operations
	UpsertCategory(ctx context.Context, category *models.Category) error
	GetCategory(ctx context.Context, id uuid.UUID) (*models.Category, error)
	GetCategoryBySlug(ctx context.Context, slug string) (*models.Category, error)
	CountCategories(ctx context.Context) (int, error)
	ListCategories(ctx context.Context, limit, offset int) ([]*models.Category, error)

	// Page operations
	UpsertPage(ctx context.Context, page *models.Page) error
	GetPage(ctx context.Context, id uuid.UUID) (*models.Page, error)
	CountPages(ctx context.Context) (int, error)
	ListPages(ctx context.Context, limit, offset int) ([]*models.Page, error)

	// Generation runs
	SaveGenerationRun(ctx context.Context, run *models.GenerationRun) error
	LatestGenerationRun(ctx context.Context) (*models.GenerationRun, error)
}

// New opens the store for driver ("postgres" or "sqlite3").
func New(driver, url string) (Store, error) {
	switch driver {
	case "postgres", "":
		return NewPostgresStore(url)
	case "sqlite3", "sqlite":
		return NewSQLiteStore(url)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func nullTime(t *time.Time) interface{} {
	if t == nil || t.IsZero() {
		return nil
	}
	return *t
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullFloat(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

func nullUUID(id *uuid.UUID) interface{} {
	if id == nil {
		return nil
	}
	return id.String()
}

func uuidPtr(s sql.NullString) *uuid.UUID {
	if !s.Valid {
		return nil
	}
	id, err := uuid.Parse(s.String)
	if err != nil {
		return nil
	}
	return &id
}

func marshalVideo(v *models.Video) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode video metadata: %w", err)
	}
	return string(b), nil
}

func unmarshalVideo(s sql.NullString) (*models.Video, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var v models.Video
	if err := json.Unmarshal([]byte(s.String), &v); err != nil {
		return nil, fmt.Errorf("failed to decode video metadata: %w", err)
	}
	return &v, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPage(row rowScanner) (*models.Page, error) {
	var (
		page       models.Page
		idStr      string
		categoryID sql.NullString
		priority   sql.NullFloat64
		video      sql.NullString
		changeFreq sql.NullString
		title      sql.NullString
		updatedAt  sql.NullTime
	)

	err := row.Scan(
		&idStr,
		&categoryID,
		&page.Slug,
		&page.URL,
		&title,
		&changeFreq,
		&priority,
		&video,
		&page.CreatedAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	page.ID, _ = uuid.Parse(idStr)
	page.CategoryID = uuidPtr(categoryID)
	page.Title = title.String
	page.ChangeFreq = changeFreq.String
	page.Priority = floatPtr(priority)
	page.UpdatedAt = timePtr(updatedAt)
	if page.Video, err = unmarshalVideo(video); err != nil {
		return nil, err
	}
	return &page, nil
}

func scanCategory(row rowScanner) (*models.Category, error) {
	var (
		category    models.Category
		idStr       string
		description sql.NullString
		parentID    sql.NullString
		updatedAt   sql.NullTime
	)

	err := row.Scan(
		&idStr,
		&category.Name,
		&category.Slug,
		&description,
		&parentID,
		&category.CreatedAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	category.ID, _ = uuid.Parse(idStr)
	category.Description = description.String
	category.ParentID = uuidPtr(parentID)
	category.UpdatedAt = timePtr(updatedAt)
	return &category, nil
}

func collectPages(rows *sql.Rows) ([]*models.Page, error) {
	defer rows.Close()

	var pages []*models.Page
	for rows.Next() {
		page, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}
	return pages, rows.Err()
}

func collectCategories(rows *sql.Rows) ([]*models.Category, error) {
	defer rows.Close()

	var categories []*models.Category
	for rows.Next() {
		category, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, category)
	}
	return categories, rows.Err()
}
