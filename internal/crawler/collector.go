package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/romangod6/big-sitemap/internal/models"
	"github.com/romangod6/big-sitemap/internal/storage"
	"go.uber.org/zap"
)

// Crawler discovers pages on a site and stores them as sitemap records.
type Crawler struct {
	store  storage.Store
	config *CrawlerConfig
	logger *zap.SugaredLogger
}

type CrawlerConfig struct {
	// StartURL and SitemapURL seed the crawl; at least one is required.
	StartURL   string
	SitemapURL string
	UserAgent  string
	MaxDepth   int
	// AllowedDomains defaults to the hosts of the seed URLs.
	AllowedDomains []string
	Delay          time.Duration
	Parallelism    int
}

// CategoryStructure caches the categories created during one crawl, keyed
// by slug.
type CategoryStructure struct {
	categories map[string]*models.Category
	mutex      sync.RWMutex
}

func NewCategoryStructure() *CategoryStructure {
	return &CategoryStructure{
		categories: make(map[string]*models.Category),
	}
}

func (cs *CategoryStructure) AddCategory(slug string, category *models.Category) {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()
	cs.categories[slug] = category
}

func (cs *CategoryStructure) GetCategory(slug string) (*models.Category, bool) {
	cs.mutex.RLock()
	defer cs.mutex.RUnlock()
	cat, exists := cs.categories[slug]
	return cat, exists
}

func NewCrawler(store storage.Store, config *CrawlerConfig, logger *zap.SugaredLogger) *Crawler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Crawler{
		store:  store,
		config: config,
		logger: logger,
	}
}

// Crawl visits the seed URLs and every reachable page and upserts one Page
// per HTML document. It returns the number of pages stored.
func (c *Crawler) Crawl(ctx context.Context) (int, error) {
	seeds := make([]string, 0, 2)
	for _, s := range []string{c.config.SitemapURL, c.config.StartURL} {
		if s != "" {
			seeds = append(seeds, s)
		}
	}
	if len(seeds) == 0 {
		return 0, fmt.Errorf("crawler needs a start URL or a sitemap URL")
	}

	allowed, err := c.allowedHosts(seeds)
	if err != nil {
		return 0, err
	}

	var saved atomic.Int64
	collector := c.newCollector()
	c.setupHandlers(ctx, collector, allowed, NewCategoryStructure(), &saved)

	for _, seed := range seeds {
		if err := collector.Visit(seed); err != nil {
			c.logger.Errorw("failed to visit seed", "url", seed, "error", err)
		}
	}
	collector.Wait()

	if err := ctx.Err(); err != nil {
		return int(saved.Load()), err
	}
	c.logger.Infow("crawl finished", "pages", saved.Load())
	return int(saved.Load()), nil
}

func (c *Crawler) newCollector() *colly.Collector {
	options := []colly.CollectorOption{
		colly.Async(true),
		colly.MaxDepth(c.config.MaxDepth),
	}
	if c.config.UserAgent != "" {
		options = append(options, colly.UserAgent(c.config.UserAgent))
	}
	if len(c.config.AllowedDomains) > 0 {
		options = append(options, colly.AllowedDomains(c.config.AllowedDomains...))
	}
	collector := colly.NewCollector(options...)

	parallelism := c.config.Parallelism
	if parallelism <= 0 {
		parallelism = 2
	}
	collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: parallelism,
		Delay:       c.config.Delay,
	})
	return collector
}

// allowedHosts returns the host:port pairs the crawl is limited to when no
// domains are configured.
func (c *Crawler) allowedHosts(seeds []string) (map[string]bool, error) {
	if len(c.config.AllowedDomains) > 0 {
		return nil, nil
	}
	hosts := make(map[string]bool)
	for _, seed := range seeds {
		u, err := url.Parse(seed)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("invalid seed URL %q", seed)
		}
		hosts[u.Host] = true
	}
	return hosts, nil
}

func (c *Crawler) setupHandlers(ctx context.Context, collector *colly.Collector, allowed map[string]bool, cs *CategoryStructure, saved *atomic.Int64) {
	collector.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			return
		}
		if allowed != nil && !allowed[r.URL.Host] {
			r.Abort()
		}
	})

	collector.OnError(func(r *colly.Response, err error) {
		c.logger.Warnw("request failed", "url", r.Request.URL.String(), "status", r.StatusCode, "error", err)
	})

	// Existing sitemaps seed the crawl.
	collector.OnXML("//urlset/url/loc", func(e *colly.XMLElement) {
		if loc := strings.TrimSpace(e.Text); loc != "" {
			_ = e.Request.Visit(loc)
		}
	})
	collector.OnXML("//sitemapindex/sitemap/loc", func(e *colly.XMLElement) {
		if loc := strings.TrimSpace(e.Text); loc != "" {
			_ = e.Request.Visit(loc)
		}
	})

	collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
		_ = e.Request.Visit(e.Attr("href"))
	})

	collector.OnHTML("html", func(e *colly.HTMLElement) {
		pageURL := e.Request.URL.String()
		parsed := extractPage(e.DOM)
		if parsed.NoIndex {
			c.logger.Debugw("skipping noindex page", "url", pageURL)
			return
		}

		page, err := c.buildPage(ctx, e, parsed, cs)
		if err != nil {
			c.logger.Errorw("failed to prepare page", "url", pageURL, "error", err)
			return
		}
		if err := c.store.UpsertPage(ctx, page); err != nil {
			c.logger.Errorw("failed to save page", "url", pageURL, "error", err)
			return
		}
		saved.Add(1)
		c.logger.Debugw("page saved", "url", page.URL, "slug", page.Slug)
	})
}

func (c *Crawler) buildPage(ctx context.Context, e *colly.HTMLElement, parsed *ParsedPage, cs *CategoryStructure) (*models.Page, error) {
	pageURL := *e.Request.URL
	pageURL.Fragment = ""
	if parsed.Canonical != "" {
		if canonical, err := url.Parse(e.Request.AbsoluteURL(parsed.Canonical)); err == nil && canonical.Host == pageURL.Host {
			pageURL = *canonical
		}
	}

	page := models.NewPage()
	page.URL = pageURL.String()
	page.Slug = pageSlug(&pageURL)
	page.Title = parsed.Title
	page.ChangeFreq = parsed.ChangeFreq
	page.Priority = parsed.Priority
	page.Video = parsed.Video
	page.UpdatedAt = parsed.ModifiedAt
	if page.UpdatedAt == nil {
		if t, err := http.ParseTime(e.Response.Headers.Get("Last-Modified")); err == nil {
			page.UpdatedAt = &t
		}
	}

	if section := sectionSlug(page.Slug); section != "" {
		category, err := c.category(ctx, section, cs)
		if err != nil {
			return nil, err
		}
		page.CategoryID = &category.ID
	}
	return page, nil
}

// category returns the category for the first path segment, creating it on
// first sight.
func (c *Crawler) category(ctx context.Context, slug string, cs *CategoryStructure) (*models.Category, error) {
	if cat, exists := cs.GetCategory(slug); exists {
		return cat, nil
	}

	cat := models.NewCategory()
	cat.Slug = slug
	cat.Name = strings.ReplaceAll(slug, "-", " ")
	if err := c.store.UpsertCategory(ctx, cat); err != nil {
		return nil, fmt.Errorf("failed to create category %s: %w", slug, err)
	}
	// The slug may already exist from an earlier crawl; read back its id.
	stored, err := c.store.GetCategoryBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("category %s not found after upsert", slug)
	}
	cs.AddCategory(slug, stored)
	return stored, nil
}

func pageSlug(u *url.URL) string {
	slug := strings.Trim(u.Path, "/")
	if slug == "" {
		slug = "index"
	}
	if u.RawQuery != "" {
		slug += "?" + u.RawQuery
	}
	return slug
}

func sectionSlug(slug string) string {
	section, _, found := strings.Cut(slug, "/")
	if !found {
		return ""
	}
	return section
}
