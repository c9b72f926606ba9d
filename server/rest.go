package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/italyre/casafeed/pkg/domain"
	"github.com/italyre/casafeed/pkg/repository"
)

// newsHandler serves the aggregated news read path. It never fails hard:
// degraded aggregation falls back to cached or curated content inside Collect.
func (s *Server) newsHandler(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			renderError(w, r, fmt.Errorf("invalid limit"), http.StatusBadRequest)
			return
		}
		limit = parsed
	}
	category := r.URL.Query().Get("category")

	result := s.Aggregator.Collect(r.Context(), limit, category)
	renderJSON(w, r, http.StatusOK, result)
}

// refreshHandler runs the batch ingestion pass on demand
func (s *Server) refreshHandler(w http.ResponseWriter, r *http.Request) {
	report, err := s.Aggregator.Refresh(r.Context())
	if err != nil {
		log.Printf("[ERROR] refresh failed: %v", err)
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}
	renderJSON(w, r, http.StatusOK, report)
}

// feedSourceInfo is the JSON shape of one configured source
type feedSourceInfo struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	URL         string     `json:"url"`
	Category    string     `json:"category"`
	Enabled     bool       `json:"enabled"`
	LastSuccess *time.Time `json:"last_success,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
}

// feedsHandler lists configured sources with their fetch bookkeeping
func (s *Server) feedsHandler(w http.ResponseWriter, r *http.Request) {
	feeds, err := s.Feeds.GetFeeds(r.Context())
	if err != nil {
		log.Printf("[ERROR] can't list feeds: %v", err)
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}

	infos := make([]feedSourceInfo, len(feeds))
	for i, f := range feeds {
		infos[i] = feedSourceInfo{
			ID:          f.ID,
			Name:        f.Name,
			URL:         f.URL,
			Category:    f.Category,
			Enabled:     f.Enabled,
			LastSuccess: f.LastSuccess,
			LastError:   f.LastError,
		}
	}
	renderJSON(w, r, http.StatusOK, infos)
}

// feedStatusHandler enables or disables one configured source
func (s *Server) feedStatusHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		renderError(w, r, fmt.Errorf("invalid feed ID"), http.StatusBadRequest)
		return
	}

	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
		renderError(w, r, fmt.Errorf("enabled is required"), http.StatusBadRequest)
		return
	}

	if err := s.Feeds.UpdateFeedStatus(r.Context(), id, *req.Enabled); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			renderError(w, r, err, http.StatusNotFound)
			return
		}
		log.Printf("[ERROR] can't update feed %d status: %v", id, err)
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}
	renderJSON(w, r, http.StatusOK, map[string]string{"result": "updated"})
}

// listBannersHandler returns banners, optionally filtered by position.
// Public callers get active banners only; admins can pass all=true.
func (s *Server) listBannersHandler(w http.ResponseWriter, r *http.Request) {
	position := r.URL.Query().Get("position")
	activeOnly := r.URL.Query().Get("all") != "true"

	banners, err := s.Banners.GetBanners(r.Context(), position, activeOnly)
	if err != nil {
		log.Printf("[ERROR] can't list banners: %v", err)
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}
	renderJSON(w, r, http.StatusOK, banners)
}

// bannerRequest is the JSON body for banner create/update
type bannerRequest struct {
	Title     string `json:"title"`
	Subtitle  string `json:"subtitle"`
	ImageURL  string `json:"image_url"`
	TargetURL string `json:"target_url"`
	Position  string `json:"position"`
	Active    *bool  `json:"active"`
}

func (s *Server) createBannerHandler(w http.ResponseWriter, r *http.Request) {
	var req bannerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, r, fmt.Errorf("invalid request body"), http.StatusBadRequest)
		return
	}
	if req.Title == "" {
		renderError(w, r, fmt.Errorf("title is required"), http.StatusBadRequest)
		return
	}
	if req.Position == "" {
		req.Position = "homepage"
	}

	banner := domain.Banner{
		Title:     req.Title,
		Subtitle:  req.Subtitle,
		ImageURL:  req.ImageURL,
		TargetURL: req.TargetURL,
		Position:  req.Position,
		Active:    req.Active == nil || *req.Active,
	}
	if err := s.Banners.CreateBanner(r.Context(), &banner); err != nil {
		log.Printf("[ERROR] can't create banner: %v", err)
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}
	renderJSON(w, r, http.StatusCreated, banner)
}

func (s *Server) updateBannerHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		renderError(w, r, fmt.Errorf("invalid banner ID"), http.StatusBadRequest)
		return
	}

	banner, err := s.Banners.GetBanner(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			renderError(w, r, err, http.StatusNotFound)
			return
		}
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}

	var req bannerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, r, fmt.Errorf("invalid request body"), http.StatusBadRequest)
		return
	}

	if req.Title != "" {
		banner.Title = req.Title
	}
	if req.Subtitle != "" {
		banner.Subtitle = req.Subtitle
	}
	if req.ImageURL != "" {
		banner.ImageURL = req.ImageURL
	}
	if req.TargetURL != "" {
		banner.TargetURL = req.TargetURL
	}
	if req.Position != "" {
		banner.Position = req.Position
	}
	if req.Active != nil {
		banner.Active = *req.Active
	}

	if err := s.Banners.UpdateBanner(r.Context(), banner); err != nil {
		log.Printf("[ERROR] can't update banner %d: %v", id, err)
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}
	renderJSON(w, r, http.StatusOK, banner)
}

func (s *Server) deleteBannerHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		renderError(w, r, fmt.Errorf("invalid banner ID"), http.StatusBadRequest)
		return
	}

	if err := s.Banners.DeleteBanner(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			renderError(w, r, err, http.StatusNotFound)
			return
		}
		log.Printf("[ERROR] can't delete banner %d: %v", id, err)
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}
	renderJSON(w, r, http.StatusOK, map[string]string{"result": "deleted"})
}

// reorderBannersHandler applies a new display order from the drag-and-drop UI
func (s *Server) reorderBannersHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []int64 `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.IDs) == 0 {
		renderError(w, r, fmt.Errorf("invalid request body"), http.StatusBadRequest)
		return
	}

	if err := s.Banners.ReorderBanners(r.Context(), req.IDs); err != nil {
		log.Printf("[ERROR] can't reorder banners: %v", err)
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}
	renderJSON(w, r, http.StatusOK, map[string]string{"result": "reordered"})
}

// trackBannerHandler records a view or click event
func (s *Server) trackBannerHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		renderError(w, r, fmt.Errorf("invalid banner ID"), http.StatusBadRequest)
		return
	}

	var req struct {
		EventType string `json:"event_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, r, fmt.Errorf("invalid request body"), http.StatusBadRequest)
		return
	}
	if req.EventType != domain.BannerEventView && req.EventType != domain.BannerEventClick {
		renderError(w, r, fmt.Errorf("event_type must be view or click"), http.StatusBadRequest)
		return
	}

	if err := s.Banners.TrackEvent(r.Context(), id, req.EventType); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			renderError(w, r, err, http.StatusNotFound)
			return
		}
		log.Printf("[ERROR] can't track banner event: %v", err)
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}
	renderJSON(w, r, http.StatusOK, map[string]string{"result": "tracked"})
}

// bannerStatsHandler returns per-banner analytics
func (s *Server) bannerStatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := s.Banners.GetBannerStats(r.Context())
	if err != nil {
		log.Printf("[ERROR] can't load banner stats: %v", err)
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}

	var totalViews, totalClicks int64
	for _, st := range stats {
		totalViews += st.Views
		totalClicks += st.Clicks
	}

	renderJSON(w, r, http.StatusOK, map[string]interface{}{
		"banners":      stats,
		"total_views":  totalViews,
		"total_clicks": totalClicks,
	})
}

// chatHandler answers a message from the scripted rule table
func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		renderError(w, r, fmt.Errorf("message is required"), http.StatusBadRequest)
		return
	}

	renderJSON(w, r, http.StatusOK, map[string]string{"reply": s.Chat.Reply(req.Message)})
}
