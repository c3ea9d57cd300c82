// Package devserver is a small stand-in for the production item backend.
// It serves the same login, refresh, item and file endpoints the SDK
// talks to, backed by gorm, so the client stack can be developed and
// integration-tested without the real deployment.
package devserver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// DefaultTokenTTL is how long issued access tokens stay valid.
const DefaultTokenTTL = 15 * time.Minute

// refreshTokenTTL bounds how long a refresh token can sit unused.
const refreshTokenTTL = 7 * 24 * time.Hour

// Server owns the router and the signing secret.
type Server struct {
	db       *gorm.DB
	router   *gin.Engine
	secret   []byte
	tokenTTL time.Duration
}

// Opts holds parameters for creating a Server.
type Opts struct {
	DB       *gorm.DB
	Secret   string        // JWT signing secret; required
	TokenTTL time.Duration // defaults to DefaultTokenTTL
}

// New creates a Server and registers its routes.
func New(opts Opts) (*Server, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("devserver: db is required")
	}
	if opts.Secret == "" {
		return nil, fmt.Errorf("devserver: signing secret is required")
	}
	ttl := opts.TokenTTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		db:       opts.DB,
		router:   router,
		secret:   []byte(opts.Secret),
		tokenTTL: ttl,
	}

	router.POST("/custom-login", s.handleLogin)
	router.POST("/auth/refresh", s.handleRefresh)

	authed := router.Group("/", s.requireAuth)
	authed.GET("/items/:collection", s.handleListItems)
	authed.POST("/items/:collection", s.handleCreateItem)
	authed.GET("/items/:collection/:id", s.handleGetItem)
	authed.PATCH("/items/:collection/:id", s.handlePatchItem)
	authed.POST("/files", s.handleUpload)

	return s, nil
}

// Router exposes the handler for tests and embedding.
func (s *Server) Router() http.Handler {
	return s.router
}

// StartOpts holds configuration for running the server standalone.
type StartOpts struct {
	DB       *gorm.DB
	Port     int
	Secret   string
	TokenTTL time.Duration
	Out      io.Writer
}

// Start launches the dev server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Port <= 0 {
		opts.Port = 8055
	}
	s, err := New(Opts{DB: opts.DB, Secret: opts.Secret, TokenTTL: opts.TokenTTL})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: s.router,
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Dev server running at http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("devserver: %w", err)
	}
	return nil
}

// dataJSON writes a success envelope.
func dataJSON(c *gin.Context, status int, v any) {
	c.JSON(status, gin.H{"data": v})
}

// errorJSON writes a backend-style error envelope.
func errorJSON(c *gin.Context, status int, message, code string) {
	c.JSON(status, gin.H{
		"errors": []gin.H{{
			"message":    message,
			"extensions": gin.H{"code": code},
		}},
	})
}
