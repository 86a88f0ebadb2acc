package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/renderinc/review-queue/internal/record"
	"github.com/renderinc/review-queue/internal/review"
	"github.com/renderinc/review-queue/internal/search"
)

// maxBodyBytes caps decide request bodies.
const maxBodyBytes = 1 << 20

// Pinger reports storage liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	svc            *review.Service
	db             Pinger
	idx            *search.Index // nil disables knowledge search
	metrics        http.Handler  // nil disables /metrics
	allowedOrigins []string
	logger         *zap.Logger
}

// Config collects the server's collaborators.
type Config struct {
	Service        *review.Service
	DB             Pinger
	Index          *search.Index
	Metrics        http.Handler
	AllowedOrigins []string
	Logger         *zap.Logger
}

type DecideRequest struct {
	ID       string `json:"id"`
	Decision string `json:"decision"` // "yes" or "no"
}

type DecideResponse struct {
	OK       bool   `json:"ok"`
	Decision string `json:"decision,omitempty"`
	Message  string `json:"message,omitempty"`
}

type ErrorResponse struct {
	Detail string `json:"detail"`
	Code   string `json:"code,omitempty"`
}

type SearchResponse struct {
	Results []*search.SearchResult `json:"results"`
	Query   string                 `json:"query"`
	Count   int                    `json:"count"`
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.Service == nil {
		return nil, errors.New("review service is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		svc:            cfg.Service,
		db:             cfg.DB,
		idx:            cfg.Index,
		metrics:        cfg.Metrics,
		allowedOrigins: cfg.AllowedOrigins,
		logger:         logger,
	}, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Routes
	mux.HandleFunc("GET /api/queue", s.handleQueue)
	mux.HandleFunc("POST /api/decide", s.handleDecide)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/knowledge/search", s.handleSearch)
	mux.HandleFunc("GET /health", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}

	origins := make([]string, 0, len(s.allowedOrigins))
	for _, o := range s.allowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowCredentials: true,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
	})

	return c.Handler(mux)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("Encode response failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, detail string) {
	s.writeJSON(w, status, ErrorResponse{Detail: detail})
}

// writeReviewError maps pipeline errors onto HTTP statuses.
func (s *Server) writeReviewError(w http.ResponseWriter, err error) {
	code := review.Code(err)
	status := http.StatusInternalServerError
	detail := "internal error"

	switch code {
	case review.CodeInvalidID:
		status, detail = http.StatusBadRequest, "invalid id"
	case review.CodeNotFound:
		status, detail = http.StatusNotFound, "not found"
	case review.CodeNormalizeFailed:
		status, detail = http.StatusUnprocessableEntity, err.Error()
	case review.CodeStoreUnavailable:
		status, detail = http.StatusServiceUnavailable, "store unavailable, retry later"
	default:
		s.logger.Error("Request failed", zap.Error(err))
	}

	s.writeJSON(w, status, ErrorResponse{Detail: detail, Code: code})
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	limit := review.DefaultQueueLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil {
			s.writeError(w, http.StatusUnprocessableEntity, "limit must be an integer")
			return
		}
		limit = l
	}

	items, err := s.svc.ListQueue(r.Context(), limit)
	if err != nil {
		s.writeReviewError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleDecide(w http.ResponseWriter, r *http.Request) {
	var req DecideRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	verdict := record.Verdict(req.Decision)
	if !verdict.Valid() {
		s.writeError(w, http.StatusUnprocessableEntity, `decision must be "yes" or "no"`)
		return
	}

	res, err := s.svc.Decide(r.Context(), req.ID, verdict)
	if err != nil {
		s.writeReviewError(w, err)
		return
	}

	if res.AlreadyDecided {
		s.writeJSON(w, http.StatusOK, DecideResponse{OK: true, Message: res.Message()})
		return
	}
	s.writeJSON(w, http.StatusOK, DecideResponse{OK: true, Decision: string(res.Verdict)})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	snap, err := s.svc.Stats(r.Context())
	if err != nil {
		s.writeReviewError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.idx == nil {
		s.writeError(w, http.StatusServiceUnavailable, "knowledge search not available")
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		s.writeError(w, http.StatusBadRequest, "missing q parameter")
		return
	}

	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}

	results, err := s.idx.Search(query, limit)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("search failed: %v", err))
		return
	}

	s.writeJSON(w, http.StatusOK, SearchResponse{Results: results, Query: query, Count: len(results)})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]any{
		"status":       "ok",
		"policy":       s.svc.Policy().Name(),
		"search_ready": s.idx != nil,
	}

	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["db_error"] = err.Error()
		}
	}
	if s.idx != nil {
		if n, err := s.idx.Count(); err == nil {
			body["records_in_index"] = n
		}
	}

	s.writeJSON(w, status, body)
}
