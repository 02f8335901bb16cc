package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/romangod6/big-sitemap/internal/models"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Initialize() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS categories (
            id UUID PRIMARY KEY,
            name VARCHAR(255) NOT NULL,
            slug VARCHAR(1024) UNIQUE NOT NULL,
            description TEXT,
            parent_id UUID REFERENCES categories(id),
            created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMPTZ
        )`,
		`CREATE TABLE IF NOT EXISTS pages (
            id UUID PRIMARY KEY,
            category_id UUID REFERENCES categories(id),
            slug VARCHAR(2048) UNIQUE NOT NULL,
            url VARCHAR(2048) NOT NULL,
            title TEXT,
            change_freq VARCHAR(16),
            priority DOUBLE PRECISION,
            video JSONB,
            created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMPTZ
        )`,
		`CREATE TABLE IF NOT EXISTS generation_runs (
            id UUID PRIMARY KEY,
            started_at TIMESTAMPTZ NOT NULL,
            finished_at TIMESTAMPTZ NOT NULL,
            files JSONB NOT NULL,
            index_files JSONB NOT NULL,
            index_url TEXT NOT NULL,
            warnings TEXT[]
        )`,
		`CREATE INDEX IF NOT EXISTS idx_pages_created_at ON pages(created_at, id)`,
		`CREATE INDEX IF NOT EXISTS idx_categories_created_at ON categories(created_at, id)`,
		`CREATE INDEX IF NOT EXISTS idx_generation_runs_finished_at ON generation_runs(finished_at)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}

	return nil
}

func (s *PostgresStore) UpsertCategory(ctx context.Context, category *models.Category) error {
	query := `
        INSERT INTO categories (id, name, slug, description, parent_id, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (slug) DO UPDATE SET
            name = EXCLUDED.name,
            description = EXCLUDED.description,
            parent_id = EXCLUDED.parent_id,
            updated_at = EXCLUDED.updated_at
    `

	_, err := s.db.ExecContext(ctx, query,
		category.ID,
		category.Name,
		category.Slug,
		category.Description,
		nullUUID(category.ParentID),
		category.CreatedAt,
		nullTime(category.UpdatedAt),
	)

	return err
}

func (s *PostgresStore) GetCategory(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	query := `
        SELECT id, name, slug, description, parent_id, created_at, updated_at
        FROM categories
        WHERE id = $1
    `

	category, err := scanCategory(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return category, nil
}

func (s *PostgresStore) GetCategoryBySlug(ctx context.Context, slug string) (*models.Category, error) {
	query := `
        SELECT id, name, slug, description, parent_id, created_at, updated_at
        FROM categories
        WHERE slug = $1
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

func (s *PostgresStore) CountCategories(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories`).Scan(&count)
	return count, err
}

func (s *PostgresStore) ListCategories(ctx context.Context, limit, offset int) ([]*models.Category, error) {
	query := `
        SELECT id, name, slug, description, parent_id, created_at, updated_at
        FROM categories
        ORDER BY created_at, id
        LIMIT $1 OFFSET $2
    `

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectCategories(rows)
}

func (s *PostgresStore) UpsertPage(ctx context.Context, page *models.Page) error {
	query := `
        INSERT INTO pages (id, category_id, slug, url, title, change_freq, priority, video, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        ON CONFLICT (slug) DO UPDATE SET
            category_id = EXCLUDED.category_id,
            url = EXCLUDED.url,
            title = EXCLUDED.title,
            change_freq = EXCLUDED.change_freq,
            priority = EXCLUDED.priority,
            video = EXCLUDED.video,
            updated_at = EXCLUDED.updated_at
    `

	video, err := marshalVideo(page.Video)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, query,
		page.ID,
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

func (s *PostgresStore) GetPage(ctx context.Context, id uuid.UUID) (*models.Page, error) {
	query := `
        SELECT id, category_id, slug, url, title, change_freq, priority, video, created_at, updated_at
        FROM pages
        WHERE id = $1
    `

	page, err := scanPage(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return page, nil
}

func (s *PostgresStore) CountPages(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pages`).Scan(&count)
	return count, err
}

func (s *PostgresStore) ListPages(ctx context.Context, limit, offset int) ([]*models.Page, error) {
	query := `
        SELECT id, category_id, slug, url, title, change_freq, priority, video, created_at, updated_at
        FROM pages
        ORDER BY created_at, id
        LIMIT $1 OFFSET $2
    `

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectPages(rows)
}

func (s *PostgresStore) SaveGenerationRun(ctx context.Context, run *models.GenerationRun) error {
	query := `
        INSERT INTO generation_runs (id, started_at, finished_at, files, index_files, index_url, warnings)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `

	files, err := json.Marshal(run.Files)
	if err != nil {
		return err
	}
	index, err := json.Marshal(run.Index)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, query,
		run.ID,
		run.StartedAt,
		run.FinishedAt,
		string(files),
		string(index),
		run.IndexURL,
		pq.Array(run.Warnings),
	)

	return err
}

func (s *PostgresStore) LatestGenerationRun(ctx context.Context) (*models.GenerationRun, error) {
	query := `
        SELECT id, started_at, finished_at, files, index_files, index_url, warnings
        FROM generation_runs
        ORDER BY finished_at DESC
        LIMIT 1
    `

	var (
		run          models.GenerationRun
		files, index []byte
	)
	err := s.db.QueryRowContext(ctx, query).Scan(
		&run.ID,
		&run.StartedAt,
		&run.FinishedAt,
		&files,
		&index,
		&run.IndexURL,
		pq.Array(&run.Warnings),
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(files, &run.Files); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(index, &run.Index); err != nil {
		return nil, err
	}

	return &run, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
