package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/romangod6/big-sitemap/internal/app"
	"github.com/romangod6/big-sitemap/internal/models"
	"github.com/romangod6/big-sitemap/internal/storage"
	"go.uber.org/zap"
)

// Runner starts background crawls and generations. Both return
// app.ErrBusy while another run is in progress.
type Runner interface {
	StartGenerate(ctx context.Context) error
	StartCrawl(ctx context.Context) error
}

type Handler struct {
	store  storage.Store
	runner Runner
	logger *zap.SugaredLogger
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type PaginationResponse struct {
	Data       interface{} `json:"data"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	TotalCount int         `json:"total_count,omitempty"`
}

func NewHandler(store storage.Store, runner Runner, logger *zap.SugaredLogger) *Handler {
	return &Handler{store: store, runner: runner, logger: logger}
}

func (h *Handler) ListPages(c *gin.Context) {
	page, limit := getPaginationParams(c)
	offset := (page - 1) * limit
	ctx := c.Request.Context()

	pages, err := h.store.ListPages(ctx, limit, offset)
	if err != nil {
		h.logger.Errorw("failed to list pages", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to fetch pages"})
		return
	}
	total, err := h.store.CountPages(ctx)
	if err != nil {
		h.logger.Errorw("failed to count pages", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to fetch pages"})
		return
	}

	if pages == nil {
		pages = []*models.Page{}
	}
	c.JSON(http.StatusOK, PaginationResponse{
		Data:       pages,
		Page:       page,
		Limit:      limit,
		TotalCount: total,
	})
}

func (h *Handler) GetPage(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid page ID"})
		return
	}

	page, err := h.store.GetPage(c.Request.Context(), id)
	if err != nil {
		h.logger.Errorw("failed to fetch page", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to fetch page"})
		return
	}

	if page == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Page not found"})
		return
	}

	c.JSON(http.StatusOK, page)
}

func (h *Handler) ListCategories(c *gin.Context) {
	page, limit := getPaginationParams(c)
	offset := (page - 1) * limit

	categories, err := h.store.ListCategories(c.Request.Context(), limit, offset)
	if err != nil {
		h.logger.Errorw("failed to list categories", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to fetch categories"})
		return
	}

	// roots=true keeps only the top-level categories of the requested page.
	if c.Query("roots") == "true" {
		roots := categories[:0]
		for _, category := range categories {
			if category.IsRoot() {
				roots = append(roots, category)
			}
		}
		categories = roots
	}

	if categories == nil {
		categories = []*models.Category{}
	}
	c.JSON(http.StatusOK, PaginationResponse{
		Data:  categories,
		Page:  page,
		Limit: limit,
	})
}

func (h *Handler) StartGenerate(c *gin.Context) {
	h.start(c, "generation", h.runner.StartGenerate)
}

func (h *Handler) StartCrawl(c *gin.Context) {
	h.start(c, "crawl", h.runner.StartCrawl)
}

// start launches a background run detached from the request lifetime.
func (h *Handler) start(c *gin.Context, kind string, run func(context.Context) error) {
	err := run(context.WithoutCancel(c.Request.Context()))
	if errors.Is(err, app.ErrBusy) {
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		h.logger.Errorw("failed to start run", "kind", kind, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to start " + kind})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "started", "kind": kind})
}

func (h *Handler) LatestRun(c *gin.Context) {
	run, err := h.store.LatestGenerationRun(c.Request.Context())
	if err != nil {
		h.logger.Errorw("failed to fetch latest run", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to fetch latest generation"})
		return
	}

	if run == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "No sitemaps generated yet"})
		return
	}

	c.JSON(http.StatusOK, run)
}

// Utility functions
func getPaginationParams(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "10"))

	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}

	return page, limit
}
