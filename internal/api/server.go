package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/romangod6/big-sitemap/internal/storage"
	"go.uber.org/zap"
)

type Server struct {
	router *gin.Engine
	port   int
	server *http.Server
	logger *zap.SugaredLogger
}

// StaticFiles maps a URL prefix to the directory holding generated sitemaps.
type StaticFiles struct {
	Prefix string
	Dir    string
}

func NewServer(port int, store storage.Store, runner Runner, static StaticFiles, logger *zap.SugaredLogger) *Server {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	// Setup CORS
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	handler := NewHandler(store, runner, logger)

	api := router.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "healthy"})
		})

		pages := api.Group("/pages")
		{
			pages.GET("", handler.ListPages)
			pages.GET("/:id", handler.GetPage)
		}

		api.GET("/categories", handler.ListCategories)

		api.POST("/generate", handler.StartGenerate)
		api.POST("/crawl", handler.StartCrawl)
		api.GET("/sitemaps/latest", handler.LatestRun)
	}

	if static.Dir != "" {
		prefix := "/" + strings.Trim(static.Prefix, "/")
		router.Static(prefix, static.Dir)
	}

	return &Server{
		router: router,
		port:   port,
		logger: logger,
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.logger.Infow("starting API server", "port", s.port)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func requestLogger(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Debugw("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client", c.ClientIP())
	}
}
