package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/DeafMist/media-aggregator/internal/config"
	"github.com/DeafMist/media-aggregator/internal/elasticsearch"
	"github.com/DeafMist/media-aggregator/internal/telemetry"
)

const maxFrom = 10_000

type searcher interface {
	Health(ctx context.Context) error
	Search(ctx context.Context, params elasticsearch.SearchParams) (*elasticsearch.SearchResult, error)
}

type server struct {
	log     *slog.Logger
	cfg     *config.API
	es      searcher
	metrics *telemetry.Metrics
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/health", s.handleHealth)
	r.Get("/search", s.handleSearch)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	return r
}

// observe records request counts and latency per route pattern.
func (s *server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.ObserveRequest(route, status, time.Since(start))
	})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.es.Health(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	q := r.URL.Query()
	indices := parseCSV(q.Get("index"))
	if len(indices) == 0 {
		indices = s.cfg.DefaultIndices
	}

	params := elasticsearch.SearchParams{
		Indices: indices,
		Query:   strings.TrimSpace(q.Get("q")),
		Source:  strings.TrimSpace(q.Get("source")),
		From:    clampInt(q.Get("from"), 0, maxFrom),
		Size:    clampInt(q.Get("size"), s.cfg.DefaultPage, s.cfg.MaxPage),
		Sort:    strings.TrimSpace(q.Get("sort")),
		Start:   parseTime(q.Get("start")),
		End:     parseTime(q.Get("end")),
	}

	result, err := s.es.Search(ctx, params)
	if err != nil {
		s.log.Warn("search failed", slog.Any("err", err), slog.String("request_id", middleware.GetReqID(r.Context())))
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func parseTime(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return &ts
	}
	if ts, err := time.Parse(time.DateOnly, raw); err == nil {
		return &ts
	}
	return nil
}

func parseCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func clampInt(raw string, fallback, limit int) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value <= 0 {
		return fallback
	}
	if value > limit {
		return limit
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
