package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/romangod6/big-sitemap/config"
	"github.com/romangod6/big-sitemap/internal/api"
	"github.com/romangod6/big-sitemap/internal/app"
	"github.com/romangod6/big-sitemap/internal/storage"
	"github.com/romangod6/big-sitemap/internal/utils"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := pflag.String("config", "", "path to config.yaml (default: ./config.yaml or ./config/config.yaml)")
	once := pflag.Bool("once", false, "generate the sitemaps once and exit")
	crawl := pflag.Bool("crawl", false, "crawl the configured site before generating")
	clean := pflag.Bool("clean", false, "remove the generated sitemap directory and exit")
	pflag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, closeLog, err := utils.NewLogger("sitemapgen", cfg.Log.Dir, cfg.Log.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	if err := run(cfg, logger, *once, *crawl, *clean); err != nil {
		logger.Errorw("sitemapgen failed", "error", err)
		closeLog()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.SugaredLogger, once, crawl, clean bool) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Initialize storage
	store, err := storage.New(cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	if err := store.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize database tables: %w", err)
	}

	svc := app.NewService(cfg, store, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if clean {
		return svc.Clean()
	}

	if crawl {
		pages, err := svc.Crawl(ctx)
		if err != nil {
			return fmt.Errorf("crawl failed: %w", err)
		}
		logger.Infow("crawl completed", "pages", pages)
	}

	if once {
		_, err := svc.Generate(ctx)
		return err
	}

	return serve(ctx, cfg, store, svc, logger)
}

// serve runs the API server and the periodic generation until ctx is done.
func serve(ctx context.Context, cfg *config.Config, store storage.Store, svc *app.Service, logger *zap.SugaredLogger) error {
	server := api.NewServer(cfg.Server.Port, store, svc, api.StaticFiles{
		Prefix: cfg.Sitemap.Path,
		Dir:    filepath.Join(cfg.Sitemap.DocumentRoot, cfg.Sitemap.Path),
	}, logger.Named("api"))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("API server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(cfg.GetInterval())
		defer ticker.Stop()

		generate := func() {
			_, err := svc.Generate(gctx)
			switch {
			case err == nil, errors.Is(err, context.Canceled):
			case errors.Is(err, app.ErrBusy):
				logger.Infow("skipping periodic generation, another run is in progress")
			default:
				logger.Errorw("periodic generation failed", "error", err)
			}
		}
		generate()

		for {
			select {
			case <-ticker.C:
				logger.Info("starting periodic generation")
				generate()
			case <-gctx.Done():
				return nil
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Errorw("error shutting down server", "error", err)
		}
		svc.Wait()
		return nil
	})

	return g.Wait()
}
