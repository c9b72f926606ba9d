package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/rest/logger"
	"github.com/go-pkgz/routegroup"

	"github.com/italyre/casafeed/pkg/domain"
)

// Aggregator runs aggregation passes for the read and batch paths
type Aggregator interface {
	Collect(ctx context.Context, limit int, category string) *domain.AggregationResult
	Refresh(ctx context.Context) (*domain.RefreshReport, error)
}

// FeedStore lists configured sources and toggles them for the admin surface
type FeedStore interface {
	GetFeeds(ctx context.Context) ([]domain.FeedSource, error)
	UpdateFeedStatus(ctx context.Context, feedID int64, enabled bool) error
}

// BannerStore provides banner CRUD, reordering and analytics
type BannerStore interface {
	CreateBanner(ctx context.Context, banner *domain.Banner) error
	GetBanner(ctx context.Context, id int64) (*domain.Banner, error)
	GetBanners(ctx context.Context, position string, activeOnly bool) ([]domain.Banner, error)
	UpdateBanner(ctx context.Context, banner *domain.Banner) error
	DeleteBanner(ctx context.Context, id int64) error
	ReorderBanners(ctx context.Context, ids []int64) error
	TrackEvent(ctx context.Context, bannerID int64, eventType string) error
	GetBannerStats(ctx context.Context) ([]domain.BannerStats, error)
}

// Responder answers chat messages
type Responder interface {
	Reply(message string) string
}

// Config holds server dependencies and settings
type Config struct {
	Listen      string
	Timeout     time.Duration
	AdminSecret string
	Version     string
	Debug       bool

	Aggregator Aggregator
	Feeds      FeedStore
	Banners    BannerStore
	Chat       Responder
}

// Server represents HTTP server instance
type Server struct {
	Config

	lock       sync.Mutex
	httpServer *http.Server
	router     *routegroup.Bundle
}

// New initializes a new server instance
func New(cfg Config) *Server {
	s := &Server{
		Config: cfg,
		router: routegroup.New(http.NewServeMux()),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Run starts the HTTP server and handles graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	log.Printf("[INFO] starting server on %s", s.Listen)

	s.lock.Lock()
	s.httpServer = &http.Server{
		Addr:         s.Listen,
		Handler:      s.router,
		ReadTimeout:  s.Timeout,
		WriteTimeout: s.Timeout,
	}
	s.lock.Unlock()

	go func() {
		<-ctx.Done()
		log.Printf("[INFO] shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("[WARN] server shutdown error: %v", err)
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}

	return nil
}

// setupMiddleware configures standard middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(rest.AppInfo("casafeed", "italyre", s.Version))
	s.router.Use(rest.Ping)

	if s.Debug {
		s.router.Use(logger.New(logger.Log(lgr.Default()), logger.Prefix("[DEBUG]")).Handler)
	}

	s.router.Use(rest.Recoverer(lgr.Default()))
	s.router.Use(rest.Throttle(100))
	s.router.Use(rest.SizeLimit(1024 * 1024)) // 1MB
}

// setupRoutes configures application routes
func (s *Server) setupRoutes() {
	s.router.Mount("/api/v1").Route(func(r *routegroup.Bundle) {
		r.HandleFunc("GET /status", s.statusHandler)

		// read path, degrades to cache/fallback instead of erroring
		r.HandleFunc("GET /news", s.newsHandler)
		r.HandleFunc("GET /feeds", s.feedsHandler)

		// public banner surfaces
		r.HandleFunc("GET /banners", s.listBannersHandler)
		r.HandleFunc("POST /banners/{id}/track", s.trackBannerHandler)

		// chat widget
		r.HandleFunc("POST /chat", s.chatHandler)

		// admin mutations behind the shared-secret guard
		r.With(s.adminOnly).Route(func(admin *routegroup.Bundle) {
			admin.HandleFunc("POST /news/refresh", s.refreshHandler)
			admin.HandleFunc("PUT /feeds/{id}/status", s.feedStatusHandler)
			admin.HandleFunc("POST /banners", s.createBannerHandler)
			admin.HandleFunc("PUT /banners/reorder", s.reorderBannersHandler)
			admin.HandleFunc("PUT /banners/{id}", s.updateBannerHandler)
			admin.HandleFunc("DELETE /banners/{id}", s.deleteBannerHandler)
			admin.HandleFunc("GET /analytics/banners", s.bannerStatsHandler)
		})
	})
}

// adminOnly rejects requests without the configured shared secret. The guard
// is disabled when no secret is configured, identity itself is external.
func (s *Server) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.AdminSecret != "" && r.Header.Get("X-Admin-Secret") != s.AdminSecret {
			renderError(w, r, fmt.Errorf("unauthorized"), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusHandler returns server status
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":  "ok",
		"version": s.Version,
		"time":    time.Now().UTC(),
	}
	renderJSON(w, r, http.StatusOK, status)
}

// renderJSON sends JSON response
func renderJSON(w http.ResponseWriter, _ *http.Request, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("[ERROR] can't encode response to JSON: %v", err)
		}
	}
}

// renderError sends error response as JSON
func renderError(w http.ResponseWriter, r *http.Request, err error, code int) {
	errMsg := "unknown error"
	if err != nil {
		errMsg = err.Error()
	}
	renderJSON(w, r, code, map[string]string{"error": errMsg})
}
