// Package app wires configuration, storage, the crawler and the sitemap
// generator into the operations exposed by the binary and the API.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/romangod6/big-sitemap/config"
	"github.com/romangod6/big-sitemap/internal/crawler"
	"github.com/romangod6/big-sitemap/internal/models"
	"github.com/romangod6/big-sitemap/internal/notify"
	"github.com/romangod6/big-sitemap/internal/sitemap"
	"github.com/romangod6/big-sitemap/internal/sources"
	"github.com/romangod6/big-sitemap/internal/storage"
	"go.uber.org/zap"
)

// ErrBusy is returned when a crawl or generation is already running.
var ErrBusy = errors.New("a crawl or generation is already running")

// Service runs at most one crawl or generation at a time.
type Service struct {
	cfg    *config.Config
	store  storage.Store
	logger *zap.SugaredLogger

	mu sync.Mutex
	wg sync.WaitGroup
}

func NewService(cfg *config.Config, store storage.Store, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{cfg: cfg, store: store, logger: logger}
}

// NewGenerator builds a generator with every configured source registered.
func (s *Service) NewGenerator() (*sitemap.Generator, error) {
	sm := s.cfg.Sitemap
	gen, err := sitemap.New(sitemap.Options{
		BaseURL:         sm.BaseURL,
		DocumentRoot:    sm.DocumentRoot,
		Path:            sm.Path,
		IndexName:       sm.IndexName,
		MaxPerFile:      sm.MaxPerSitemap,
		IndexMaxPerFile: sm.IndexMaxPerSitemap,
		BatchSize:       sm.BatchSize,
		Gzip:            sm.Gzip,
		Indent:          sm.Indent,
	}, s.logger.Named("generator"))
	if err != nil {
		return nil, err
	}

	for _, sc := range s.cfg.Sources {
		src, err := sources.Build(sc.Kind, models.SourceSpec{
			Name:       sc.Name,
			Path:       sc.Path,
			BatchSize:  sc.BatchSize,
			MaxPerFile: sc.MaxPerSitemap,
			ChangeFreq: sc.ChangeFreq,
			Priority:   sc.Priority,
			Video:      sc.Video,
		}, s.store)
		if err != nil {
			return nil, err
		}
		if err := gen.Add(src); err != nil {
			return nil, err
		}
	}

	ping := s.cfg.Ping
	engines := notify.Engines(notify.Options{
		Google:     ping.Google,
		Yahoo:      ping.Yahoo,
		YahooAppID: ping.YahooAppID,
		Bing:       ping.Bing,
		Ask:        ping.Ask,
	})
	return gen.WithNotifier(notify.NewPinger(engines, s.cfg.GetPingTimeout(), s.logger.Named("notify"))), nil
}

// Generate writes all sitemaps and the index and records the run.
func (s *Service) Generate(ctx context.Context) (*models.GenerationRun, error) {
	if !s.mu.TryLock() {
		return nil, ErrBusy
	}
	defer s.mu.Unlock()
	return s.generate(ctx)
}

// StartGenerate runs Generate in the background.
func (s *Service) StartGenerate(ctx context.Context) error {
	if !s.mu.TryLock() {
		return ErrBusy
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.mu.Unlock()
		if _, err := s.generate(ctx); err != nil {
			s.logger.Errorw("sitemap generation failed", "error", err)
		}
	}()
	return nil
}

func (s *Service) generate(ctx context.Context) (*models.GenerationRun, error) {
	run := &models.GenerationRun{ID: uuid.New(), StartedAt: time.Now()}
	s.logger.Infow("starting sitemap generation", "run", run.ID)

	gen, err := s.NewGenerator()
	if err != nil {
		return nil, err
	}
	result, err := gen.Generate(ctx)
	if err != nil {
		return nil, err
	}

	run.FinishedAt = time.Now()
	run.Files = result.Files
	run.Index = result.Index
	run.IndexURL = result.IndexURL
	run.Warnings = result.Warnings
	if err := s.store.SaveGenerationRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to save generation run: %w", err)
	}

	s.logger.Infow("sitemap generation finished",
		"run", run.ID,
		"sitemaps", len(run.Files),
		"urls", run.URLCount(),
		"index", run.IndexURL,
		"warnings", len(run.Warnings),
		"duration", run.FinishedAt.Sub(run.StartedAt))
	return run, nil
}

// Crawl ingests pages from the configured site.
func (s *Service) Crawl(ctx context.Context) (int, error) {
	if !s.mu.TryLock() {
		return 0, ErrBusy
	}
	defer s.mu.Unlock()
	return s.crawl(ctx)
}

// StartCrawl runs Crawl in the background.
func (s *Service) StartCrawl(ctx context.Context) error {
	if !s.mu.TryLock() {
		return ErrBusy
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.mu.Unlock()
		if _, err := s.crawl(ctx); err != nil {
			s.logger.Errorw("crawl failed", "error", err)
		}
	}()
	return nil
}

func (s *Service) crawl(ctx context.Context) (int, error) {
	cc := s.cfg.Crawler
	c := crawler.NewCrawler(s.store, &crawler.CrawlerConfig{
		StartURL:       cc.StartURL,
		SitemapURL:     cc.SitemapURL,
		UserAgent:      cc.UserAgent,
		MaxDepth:       cc.MaxDepth,
		AllowedDomains: cc.AllowedDomains,
		Delay:          s.cfg.GetCrawlDelay(),
		Parallelism:    cc.Parallelism,
	}, s.logger.Named("crawler"))

	s.logger.Infow("starting crawl", "start", cc.StartURL, "sitemap", cc.SitemapURL)
	return c.Crawl(ctx)
}

// Clean removes the generated sitemap directory.
func (s *Service) Clean() error {
	if !s.mu.TryLock() {
		return ErrBusy
	}
	defer s.mu.Unlock()

	gen, err := s.NewGenerator()
	if err != nil {
		return err
	}
	return gen.Clean()
}

// Wait blocks until background runs have finished.
func (s *Service) Wait() {
	s.wg.Wait()
}
