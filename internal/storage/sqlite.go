package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/romangod6/big-sitemap/internal/models"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Initialize() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS categories (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            slug TEXT UNIQUE NOT NULL,
            description TEXT,
            parent_id TEXT,
            created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME,
            FOREIGN KEY(parent_id) REFERENCES categories(id)
        )`,
		`CREATE TABLE IF NOT EXISTS pages (
            id TEXT PRIMARY KEY,
            category_id TEXT,
            slug TEXT UNIQUE NOT NULL,
            url TEXT NOT NULL,
            title TEXT,
            change_freq TEXT,
            priority REAL,
            video TEXT,
            created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME,
            FOREIGN KEY(category_id) REFERENCES categories(id)
        )`,
		`CREATE TABLE IF NOT EXISTS generation_runs (
            id TEXT PRIMARY KEY,
            started_at DATETIME NOT NULL,
            finished_at DATETIME NOT NULL,
            files TEXT NOT NULL,
            index_files TEXT NOT NULL,
            index_url TEXT NOT NULL,
            warnings TEXT
        )`,
		`CREATE INDEX IF NOT EXISTS idx_pages_created_at ON pages(created_at, id)`,
		`CREATE INDEX IF NOT EXISTS idx_categories_created_at ON categories(created_at, id)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}

	return nil
}

func (s *SQLiteStore) UpsertCategory(ctx context.Context, category *models.Category) error {
	query := `
        INSERT INTO categories (id, name, slug, description, parent_id, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(slug) DO UPDATE SET
            name = excluded.name,
            description = excluded.description,
            parent_id = excluded.parent_id,
            updated_at = excluded.updated_at
    `

	_, err := s.db.ExecContext(ctx, query,
		category.ID.String(),
		category.Name,
		category.Slug,
		category.Description,
		nullUUID(category.ParentID),
		category.CreatedAt,
		nullTime(category.UpdatedAt),
	)

	return err
}

func (s *SQLiteStore) GetCategory(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	query := `
        SELECT id, name, slug, description, parent_id, created_at, updated_at
        FROM categories
        WHERE id = ?
    `

	category, err := scanCategory(s.db.QueryRowContext(ctx, query, id.String()))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return category, nil
}

func (s *SQLiteStore) GetCategoryBySlug(ctx context.Context, slug string) (*models.Category, error) {
	query := `
        SELECT id, name, slug, description, parent_id, created_at, updated_at
        FROM categories
        WHERE slug = ?
    `

	category, err := scanCategory(s.db.QueryRowContext(ctx, query, slug))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return category, nil
}

func (s *SQLiteStore) CountCategories(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories`).Scan(&count)
	return count, err
}

func (s *SQLiteStore) ListCategories(ctx context.Context, limit, offset int) ([]*models.Category, error) {
	query := `
        SELECT id, name, slug, description, parent_id, created_at, updated_at
        FROM categories
        ORDER BY created_at, id
        LIMIT ? OFFSET ?
    `

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectCategories(rows)
}

func (s *SQLiteStore) UpsertPage(ctx context.Context, page *models.Page) error {
	query := `
        INSERT INTO pages (id, category_id, slug, url, title, change_freq, priority, video, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(slug) DO UPDATE SET
            category_id = excluded.category_id,
            url = excluded.url,
            title = excluded.title,
            change_freq = excluded.change_freq,
            priority = excluded.priority,
            video = excluded.video,
            updated_at = excluded.updated_at
    `

	video, err := marshalVideo(page.Video)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, query,
		page.ID.String(),
		nullUUID(page.CategoryID),
		page.Slug,
		page.URL,
		page.Title,
		page.ChangeFreq,
		nullFloat(page.Priority),
		video,
		page.CreatedAt,
		nullTime(page.UpdatedAt),
	)

	return err
}

func (s *SQLiteStore) GetPage(ctx context.Context, id uuid.UUID) (*models.Page, error) {
	query := `
        SELECT id, category_id, slug, url, title, change_freq, priority, video, created_at, updated_at
        FROM pages
        WHERE id = ?
    `

	page, err := scanPage(s.db.QueryRowContext(ctx, query, id.String()))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return page, nil
}

func (s *SQLiteStore) CountPages(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pages`).Scan(&count)
	return count, err
}

// ListPages returns pages in creation order so that offset pagination is
// stable across batches.
func (s *SQLiteStore) ListPages(ctx context.Context, limit, offset int) ([]*models.Page, error) {
	query := `
        SELECT id, category_id, slug, url, title, change_freq, priority, video, created_at, updated_at
        FROM pages
        ORDER BY created_at, id
        LIMIT ? OFFSET ?
    `

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectPages(rows)
}

func (s *SQLiteStore) SaveGenerationRun(ctx context.Context, run *models.GenerationRun) error {
	query := `
        INSERT INTO generation_runs (id, started_at, finished_at, files, index_files, index_url, warnings)
        VALUES (?, ?, ?, ?, ?, ?, ?)
    `

	files, err := json.Marshal(run.Files)
	if err != nil {
		return err
	}
	index, err := json.Marshal(run.Index)
	if err != nil {
		return err
	}
	warnings, err := json.Marshal(run.Warnings)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, query,
		run.ID.String(),
		run.StartedAt,
		run.FinishedAt,
		string(files),
		string(index),
		run.IndexURL,
		string(warnings),
	)

	return err
}

func (s *SQLiteStore) LatestGenerationRun(ctx context.Context) (*models.GenerationRun, error) {
	query := `
        SELECT id, started_at, finished_at, files, index_files, index_url, warnings
        FROM generation_runs
        ORDER BY finished_at DESC
        LIMIT 1
    `

	var (
		run                 models.GenerationRun
		idStr, files, index string
		warnings            sql.NullString
	)
	err := s.db.QueryRowContext(ctx, query).Scan(
		&idStr,
		&run.StartedAt,
		&run.FinishedAt,
		&files,
		&index,
		&run.IndexURL,
		&warnings,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	run.ID, _ = uuid.Parse(idStr)
	if err := json.Unmarshal([]byte(files), &run.Files); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(index), &run.Index); err != nil {
		return nil, err
	}
	if warnings.Valid {
		json.Unmarshal([]byte(warnings.String), &run.Warnings)
	}

	return &run, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
