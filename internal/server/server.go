// Package server exposes run progress and persisted results over HTTP so a
// browser can watch a batch run and open the generated artifacts.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/go-coders/modelbench/internal/engine"
	"github.com/go-coders/modelbench/pkg/logger"
)

// Config holds the server settings.
type Config struct {
	Port       int
	Debug      bool
	ResultsDir string
}

// Server serves the status API and the results directory.
type Server struct {
	cfg        Config
	router     *gin.Engine
	httpServer *http.Server
	status     *Status
	ready      chan struct{}
}

// New creates a new server instance
func New(cfg Config, status *Status) *Server {
	gin.SetMode(gin.ReleaseMode)
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	if cfg.Debug {
		router.Use(gin.Logger(), gin.Recovery())
	} else {
		router.Use(gin.Recovery())
	}

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "HEAD", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type"}
	router.Use(cors.New(corsConfig))

	if status == nil {
		status = NewStatus()
	}
	s := &Server{
		cfg:    cfg,
		router: router,
		status: status,
		ready:  make(chan struct{}),
	}
	s.setupRoutes()
	return s
}

// Start runs the server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.Port),
		Handler: s.router,
	}
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	close(s.ready)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown() error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(context.Background())
	}
	return nil
}

// Ready returns the ready channel
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Router exposes the handler, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRoutes configures the server routes
func (s *Server) setupRoutes() {
	s.router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := s.router.Group("/api")
	api.GET("/progress", s.handleProgress)
	api.GET("/summary", s.handleSummary)
	api.GET("/stats/:category", s.handleStats)
	api.GET("/results/:category", s.handleResults)

	// Raw artifacts: generated HTML pages and images open straight from
	// the browser.
	s.router.Static("/results", s.cfg.ResultsDir)
}

func (s *Server) handleProgress(c *gin.Context) {
	running, progress, logs := s.status.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"running":  running,
		"progress": progress,
		"logs":     logs,
	})
}

func (s *Server) handleSummary(c *gin.Context) {
	s.serveJSONFile(c, filepath.Join(s.cfg.ResultsDir, "_summary_stats.json"))
}

func (s *Server) handleStats(c *gin.Context) {
	category, ok := s.category(c)
	if !ok {
		return
	}
	s.serveJSONFile(c, filepath.Join(s.cfg.ResultsDir, category, "_stats.json"))
}

// handleResults merges a category's per-case records into one array, sorted
// by case id.
func (s *Server) handleResults(c *gin.Context) {
	category, ok := s.category(c)
	if !ok {
		return
	}
	dir := filepath.Join(s.cfg.ResultsDir, category)
	entries, err := os.ReadDir(dir)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("no results for %s", category)})
		return
	}

	results := make([]engine.CaseResult, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, "_") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logger.Debug("reading %s: %v", name, err)
			continue
		}
		var res engine.CaseResult
		if err := json.Unmarshal(data, &res); err != nil {
			logger.Debug("decoding %s: %v", name, err)
			continue
		}
		results = append(results, res)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })
	c.JSON(http.StatusOK, results)
}

func (s *Server) category(c *gin.Context) (string, bool) {
	category := c.Param("category")
	switch engine.Category(category) {
	case engine.CategoryCode, engine.CategoryWriting, engine.CategoryImage:
		return category, true
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown category %q", category)})
	return "", false
}

func (s *Server) serveJSONFile(c *gin.Context, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not available yet"})
		return
	}
	c.Data(http.StatusOK, "application/json", data)
}
