// Package server is the collaborator boundary: the surrounding bot
// framework calls these endpoints with parsed references and renders the
// plain JSON results as chat messages.
package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"repowatch/internal/config"
	"repowatch/internal/github"
	"repowatch/internal/httpx"
	"repowatch/internal/state"
	"repowatch/internal/watch"
)

type Server struct {
	router   *chi.Mux
	cfg      config.Config
	store    *state.Store
	reviewer *watch.Reviewer
	poller   *watch.Poller
	logger   *zap.Logger
}

func NewServer(cfg config.Config, store *state.Store, reviewer *watch.Reviewer, poller *watch.Poller, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{cfg.AllowedOrigin},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		MaxAge:         300,
	}))

	s := &Server{
		router:   r,
		cfg:      cfg,
		store:    store,
		reviewer: reviewer,
		poller:   poller,
		logger:   logger,
	}
	s.routes()
	return s
}

func (s *Server) Router() http.Handler { return s.router }

func (s *Server) routes() {
	s.router.Get("/api/health", s.handleHealth)
	s.router.Post("/api/review", s.handleReview)
	s.router.Get("/api/feeds", s.handleListFeeds)
	s.router.Post("/api/feeds", s.handleTrack)
	s.router.Delete("/api/feeds/*", s.handleUntrackPath)
	s.router.Post("/api/feeds/untrack", s.handleUntrack)
	s.router.Get("/api/stats", s.handleStats)
	s.router.Get("/api/stats/{author}", s.handleContributor)
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the error taxonomy onto status codes: user-correctable
// references are 400, upstream and exhausted-retry failures are 502.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var invalid *github.ErrInvalidReference
	if errors.As(err, &invalid) {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: invalid.Error()})
		return
	}
	var upstream *github.UpstreamError
	if errors.As(err, &upstream) {
		s.writeJSON(w, http.StatusBadGateway, errorResponse{Error: "upstream unavailable: " + upstream.Error()})
		return
	}
	var exhausted *httpx.ExhaustedError
	if errors.As(err, &exhausted) {
		s.writeJSON(w, http.StatusBadGateway, errorResponse{Error: "request kept failing, try again later"})
		return
	}
	s.logger.Error("request failed", zap.Error(err))
	s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type reviewRequest struct {
	URL    string `json:"url,omitempty"`
	Repo   string `json:"repo,omitempty"`
	Number int    `json:"number,omitempty"`
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	var (
		result *watch.PRReview
		err    error
	)
	switch {
	case req.URL != "":
		result, err = s.reviewer.ReviewURL(r.Context(), req.URL)
	case req.Repo != "" && req.Number > 0:
		var repo string
		repo, err = github.NormalizeRepo(req.Repo, s.cfg.GitHubHost, s.cfg.DefaultRepoOwner)
		if err == nil {
			result, err = s.reviewer.ReviewPR(r.Context(), repo, req.Number)
		}
	default:
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "provide either url or repo+number"})
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

type trackRequest struct {
	Repo      string `json:"repo"`
	ChannelID string `json:"channel_id"`
}

func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	var req trackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Repo == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "repo is required"})
		return
	}
	key, err := s.poller.Track(r.Context(), req.Repo, req.ChannelID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"tracked": key})
}

func (s *Server) handleUntrack(w http.ResponseWriter, r *http.Request) {
	var req trackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Repo == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "repo is required"})
		return
	}
	s.untrack(w, req.Repo)
}

// handleUntrackPath serves the DELETE form, with the repo key as the
// remainder of the path: DELETE /api/feeds/org/repo.
func (s *Server) handleUntrackPath(w http.ResponseWriter, r *http.Request) {
	repo := chi.URLParam(r, "*")
	if repo == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "repo is required"})
		return
	}
	s.untrack(w, repo)
}

func (s *Server) untrack(w http.ResponseWriter, repo string) {
	key, ok, err := s.poller.Untrack(repo)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !ok {
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "repository is not tracked: " + key})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"untracked": key})
}

func (s *Server) handleListFeeds(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.store.Feeds())
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.store.Contributors())
}

func (s *Server) handleContributor(w http.ResponseWriter, r *http.Request) {
	author := chi.URLParam(r, "author")
	stats, ok := s.store.Contributor(author)
	if !ok {
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "no stats recorded for " + author})
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}
