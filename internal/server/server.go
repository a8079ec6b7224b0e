// file: internal/server/server.go
// version: 1.4.0
// guid: 9e2f4b61-0c83-47ad-b5f2-6d9ab1c04e77

package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lumina-reads/lumina/internal/database"
	"github.com/lumina-reads/lumina/internal/library"
	"github.com/lumina-reads/lumina/internal/metrics"
	"github.com/lumina-reads/lumina/internal/progress"
	"github.com/lumina-reads/lumina/internal/server/middleware"
	"github.com/lumina-reads/lumina/internal/suggest"
)

// maxUploadBytes caps a single PDF upload.
const maxUploadBytes = 100 << 20 // 100MB

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *gin.Engine
	store      database.Store
	session    *library.Session
	librarian  *suggest.Librarian
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// NewServer creates a new server instance
func NewServer(store database.Store, session *library.Session, librarian *suggest.Librarian, suggestionsRPM int) *Server {
	router := gin.Default()

	// Set up middleware
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.MaxMultipartMemory = maxUploadBytes

	// Register metrics (idempotent)
	metrics.Register()

	server := &Server{
		router:    router,
		store:     store,
		session:   session,
		librarian: librarian,
	}

	server.setupRoutes(suggestionsRPM)

	return server
}

// Start starts the HTTP server and blocks until SIGINT/SIGTERM.
func (s *Server) Start(cfg ServerConfig) error {
	s.httpServer = &http.Server{
		Addr:           cfg.Addr,
		Handler:        s.router,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting server on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Heartbeat: refresh the library gauges while running
	ticker := time.NewTicker(30 * time.Second)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if s.store != nil {
					if count, err := s.store.CountBooks(); err == nil {
						metrics.SetBooks(count)
					} else {
						log.Printf("[DEBUG] Heartbeat: failed to count books: %v", err)
					}
				}
				if s.session != nil {
					metrics.SetStreak(s.session.Streak())
				}
			case <-quit:
				return
			}
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	<-quit

	log.Println("Shutting down server...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("Server exited")
	return nil
}

// setupRoutes configures all the routes
func (s *Server) setupRoutes(suggestionsRPM int) {
	// Prometheus metrics endpoint (standard path)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health check endpoint
	s.router.GET("/api/health", s.healthCheck)

	api := s.router.Group("/api")
	{
		// Book routes
		api.GET("/books", s.listBooks)
		api.POST("/books", s.uploadBook)
		api.GET("/books/:id", s.getBook)
		api.DELETE("/books/:id", s.deleteBook)
		api.GET("/books/:id/file", s.getBookFile)
		api.POST("/books/:id/open", s.openBook)
		api.PUT("/books/:id/page", s.changePage)
		api.POST("/books/:id/bookmarks", s.toggleBookmark)

		// Streak and preference routes
		api.GET("/streak", s.getStreak)
		api.GET("/preferences/dark-mode", s.getDarkMode)
		api.PUT("/preferences/dark-mode", s.setDarkMode)

		// Suggestion route, rate limited per client IP
		limiter := middleware.NewIPRateLimiter(suggestionsRPM, 3)
		api.POST("/suggestions", limiter.Middleware(), s.getSuggestions)
	}
}

// corsMiddleware adds CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	// Gather basic metrics; tolerate errors (don't fail health entirely)
	var bookCount int
	var dbErr error
	if s.store != nil {
		if count, err := s.store.CountBooks(); err == nil {
			bookCount = count
		} else {
			dbErr = err
		}
	}
	streakDays := 0
	if s.session != nil {
		streakDays = s.session.Streak()
	}
	resp := gin.H{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
		"version":   "1.1.0",
		"metrics": gin.H{
			"books":  bookCount,
			"streak": streakDays,
		},
	}
	if dbErr != nil {
		resp["partial_error"] = dbErr.Error()
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) listBooks(c *gin.Context) {
	if s.session == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "library not initialized"})
		return
	}

	search := c.Query("search")

	// Initialize as empty slice to ensure JSON returns [] instead of null
	books := []database.Book{}
	if search != "" {
		books = append(books, s.session.Search(search)...)
	} else {
		books = append(books, s.session.Books()...)
	}

	c.JSON(http.StatusOK, gin.H{"items": books, "count": len(books)})
}

func (s *Server) uploadBook(c *gin.Context) {
	if s.session == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "library not initialized"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file field"})
		return
	}

	if !strings.EqualFold(filepath.Ext(fileHeader.Filename), ".pdf") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "only .pdf files are supported"})
		return
	}

	if fileHeader.Size > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	book, err := s.session.Upload(fileHeader.Filename, data)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	metrics.IncUpload()
	metrics.SetBooks(len(s.session.Books()))

	c.JSON(http.StatusCreated, book)
}

func (s *Server) getBook(c *gin.Context) {
	if s.session == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "library not initialized"})
		return
	}
	id := c.Param("id") // ULID string

	book := s.session.Get(id)
	if book == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "book not found"})
		return
	}
	c.JSON(http.StatusOK, book)
}

func (s *Server) getBookFile(c *gin.Context) {
	if s.session == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "library not initialized"})
		return
	}
	id := c.Param("id")

	data, err := s.session.File(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if data == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "book not found"})
		return
	}
	c.Data(http.StatusOK, "application/pdf", data)
}

func (s *Server) openBook(c *gin.Context) {
	if s.session == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "library not initialized"})
		return
	}
	id := c.Param("id")

	book, err := s.session.Open(id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "book not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	metrics.IncOpen()
	metrics.SetStreak(s.session.Streak())

	c.JSON(http.StatusOK, gin.H{"book": book, "streak": s.session.Streak()})
}

func (s *Server) changePage(c *gin.Context) {
	if s.session == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "library not initialized"})
		return
	}
	id := c.Param("id")

	var req struct {
		Page       int `json:"page" binding:"required"`
		TotalPages int `json:"total_pages"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	book, err := s.session.ChangePage(id, req.Page, req.TotalPages)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "book not found"})
			return
		}
		if errors.Is(err, progress.ErrPageCountMismatch) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	metrics.IncPageTurn()
	metrics.SetStreak(s.session.Streak())

	c.JSON(http.StatusOK, gin.H{"book": book, "streak": s.session.Streak()})
}

func (s *Server) toggleBookmark(c *gin.Context) {
	if s.session == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "library not initialized"})
		return
	}
	id := c.Param("id")

	var req struct {
		Page int `json:"page" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	bookmarks, err := s.session.ToggleBookmark(id, req.Page)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "book not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// Ensure we never return null - always return empty array
	if bookmarks == nil {
		bookmarks = []int{}
	}

	c.JSON(http.StatusOK, gin.H{"bookmarks": bookmarks})
}

func (s *Server) deleteBook(c *gin.Context) {
	if s.session == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "library not initialized"})
		return
	}
	id := c.Param("id")

	if s.session.Get(id) == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "book not found"})
		return
	}

	if err := s.session.Delete(id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	metrics.IncDelete()
	metrics.SetBooks(len(s.session.Books()))

	c.JSON(http.StatusOK, gin.H{"message": "book deleted"})
}

func (s *Server) getStreak(c *gin.Context) {
	if s.session == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "library not initialized"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"streak": s.session.Streak()})
}

func (s *Server) getDarkMode(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database not initialized"})
		return
	}
	enabled := database.GetBoolSetting(s.store, database.SettingDarkMode, false)
	c.JSON(http.StatusOK, gin.H{"dark_mode": enabled})
}

func (s *Server) setDarkMode(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database not initialized"})
		return
	}

	var req struct {
		DarkMode *bool `json:"dark_mode" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := database.SetBoolSetting(s.store, database.SettingDarkMode, *req.DarkMode); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"dark_mode": *req.DarkMode})
}

func (s *Server) getSuggestions(c *gin.Context) {
	if s.session == nil || s.librarian == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "library not initialized"})
		return
	}

	var req struct {
		Query string `json:"query" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	titles := make([]string, 0)
	for _, book := range s.session.Books() {
		titles = append(titles, book.Title)
	}

	message := s.librarian.Suggest(c.Request.Context(), req.Query, titles)

	switch message {
	case suggest.FallbackMessage:
		metrics.IncSuggestion("fallback")
	case suggest.EmptyMessage:
		metrics.IncSuggestion("empty")
	default:
		metrics.IncSuggestion("ok")
	}

	c.JSON(http.StatusOK, gin.H{"message": message})
}
