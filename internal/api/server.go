// Package api serves the published timeline documents over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"timeline_sync/internal/publish"
)

type Config struct {
	Addr         string
	PublicDir    string
	MediaDir     string
	MediaPrefix  string
	CacheMaxAge  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Handler serves the files written by the publish pass.
type Handler struct {
	publicDir    string
	cacheControl string
	logger       *slog.Logger
}

// NewHandler creates handlers serving files from publicDir.
func NewHandler(publicDir string, cacheMaxAge time.Duration, logger *slog.Logger) *Handler {
	return &Handler{
		publicDir:    publicDir,
		cacheControl: fmt.Sprintf("public, max-age=%d", int(cacheMaxAge.Seconds())),
		logger:       logger,
	}
}

// Timeline serves the plain entry array.
func (h *Handler) Timeline(c *gin.Context) {
	h.serve(c, publish.TimelineFile, "application/json; charset=utf-8")
}

// APITimeline serves the meta document with items.
func (h *Handler) APITimeline(c *gin.Context) {
	h.serve(c, publish.APIFile, "application/json; charset=utf-8")
}

// RSS serves the RSS feed.
func (h *Handler) RSS(c *gin.Context) {
	h.serve(c, publish.RSSFile, "application/rss+xml; charset=utf-8")
}

// Health reports whether the timeline has been published.
func (h *Handler) Health(c *gin.Context) {
	status := "ok"
	if _, err := os.Stat(filepath.Join(h.publicDir, publish.TimelineFile)); err != nil {
		status = "unpublished"
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

func (h *Handler) serve(c *gin.Context, name, contentType string) {
	data, err := os.ReadFile(filepath.Join(h.publicDir, filepath.FromSlash(name)))
	if errors.Is(err, os.ErrNotExist) {
		c.JSON(http.StatusNotFound, gin.H{"error": name + " has not been published"})
		return
	}
	if err != nil {
		h.logger.Error("read published document", "file", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.Header("Cache-Control", h.cacheControl)
	c.Data(http.StatusOK, contentType, data)
}

// NewEngine wires routes and middleware.
func NewEngine(cfg Config, handler *Handler, logger *slog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(requestLogger(logger))
	r.Use(gin.Recovery())
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	r.GET("/timeline.json", handler.Timeline)
	r.GET("/api/timeline.json", handler.APITimeline)
	r.GET("/rss.xml", handler.RSS)
	r.GET("/health", handler.Health)
	if cfg.MediaDir != "" && cfg.MediaPrefix != "" {
		r.Static(cfg.MediaPrefix, cfg.MediaDir)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return r
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// Serve runs the HTTP server until ctx is cancelled.
func Serve(ctx context.Context, cfg Config, logger *slog.Logger) error {
	handler := NewHandler(cfg.PublicDir, cfg.CacheMaxAge, logger)
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      NewEngine(cfg, handler, logger),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	logger.Info("http server stopped")
	return nil
}
