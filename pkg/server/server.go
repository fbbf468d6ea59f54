// Package server exposes the paperchat HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	cachepkg "github.com/giraffeguru/paperchat/pkg/cache/sqlite"
	"github.com/giraffeguru/paperchat/pkg/chat"
	"github.com/giraffeguru/paperchat/pkg/config"
	"github.com/giraffeguru/paperchat/pkg/ingest"
	"github.com/giraffeguru/paperchat/pkg/models"
	"github.com/giraffeguru/paperchat/pkg/papers"
	"github.com/giraffeguru/paperchat/pkg/search"
)

// Server is the paperchat HTTP server.
type Server struct {
	cfg      *config.Config
	chat     *chat.Service
	ingester *ingest.Ingester
	cache    *cachepkg.Cache
	search   *search.Builder
	mux      *http.ServeMux
}

// New creates a Server wired with all dependencies.
func New(cfg *config.Config, chatSvc *chat.Service, ing *ingest.Ingester, cache *cachepkg.Cache, searcher *search.Builder) *Server {
	s := &Server{
		cfg:      cfg,
		chat:     chatSvc,
		ingester: ing,
		cache:    cache,
		search:   searcher,
		mux:      http.NewServeMux(),
	}
	s.mux.HandleFunc("/api/papers/chat", s.handleChat)
	s.mux.HandleFunc("/api/pdf-proxy", s.handlePDFProxy)
	s.mux.HandleFunc("/api/search-query", s.handleSearchQuery)
	s.mux.HandleFunc("/api/cache/stats", s.handleCacheStats)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID := r.Header.Get("X-Request-ID")
	if reqID == "" {
		reqID = uuid.NewString()
	}
	w.Header().Set("X-Request-ID", reqID)

	start := time.Now()
	s.mux.ServeHTTP(w, r)
	log.Printf("%s %s %s (%s)", reqID, r.Method, r.URL.Path, time.Since(start))
}

// ListenAndServe starts the server with graceful shutdown support.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Listen,
		Handler: s,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("paperchat listening on %s", s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if len(req.Messages) == 0 || req.PaperID == "" || req.Source == "" {
		writeJSONError(w, http.StatusBadRequest, "messages, paperId and source are required", "")
		return
	}

	structured, err := s.chat.Respond(r.Context(), req)
	if err != nil {
		status, msg := classifyChatError(err)
		writeJSONError(w, status, msg, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, models.ChatAPIResponse{
		Response:   structured.Content,
		Structured: structured,
	})
}

// classifyChatError maps service errors onto statuses so a deployment
// layer can decide retryability without parsing messages.
func classifyChatError(err error) (int, string) {
	switch {
	case errors.Is(err, chat.ErrValidation):
		return http.StatusBadRequest, "invalid request"
	case errors.Is(err, ingest.ErrUpstreamData):
		return http.StatusBadGateway, "paper source returned unusable data"
	case errors.Is(err, chat.ErrContractViolation):
		return http.StatusBadGateway, "failed to generate response"
	default:
		return http.StatusInternalServerError, "failed to generate response"
	}
}

var corsHeaders = map[string]string{
	"Access-Control-Allow-Origin":   "*",
	"Access-Control-Allow-Methods":  "GET, HEAD, OPTIONS",
	"Access-Control-Allow-Headers":  "Range",
	"Access-Control-Expose-Headers": "Accept-Ranges, Content-Length, Content-Range, Content-Encoding",
}

// handlePDFProxy streams the paper's PDF with CORS and caching headers
// so a browser-side viewer can render it without hitting the origin
// source directly.
func (s *Server) handlePDFProxy(w http.ResponseWriter, r *http.Request) {
	for k, v := range corsHeaders {
		w.Header().Set(k, v)
	}

	switch r.Method {
	case http.MethodOptions:
		w.Header().Set("Access-Control-Max-Age", "86400")
		w.WriteHeader(http.StatusOK)
		return
	case http.MethodGet, http.MethodHead:
	default:
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}

	id := r.URL.Query().Get("id")
	source := r.URL.Query().Get("source")
	if id == "" || source == "" {
		writeJSONError(w, http.StatusBadRequest, "missing paper id or source", "")
		return
	}

	ref, err := papers.Parse(id, papers.Source(source))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s paper id format: %s", source, id), "")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Accept-Ranges", "bytes")

	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}

	data, err := s.ingester.Download(r.Context(), ref)
	if err != nil {
		if errors.Is(err, ingest.ErrUpstreamData) {
			writeJSONError(w, http.StatusBadGateway, "failed to fetch a valid pdf", err.Error())
			return
		}
		writeJSONError(w, http.StatusBadGateway, "failed to fetch pdf", err.Error())
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", ref.BlobName()+".pdf"))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleSearchQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}

	var in search.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if in.Keywords == "" {
		writeJSONError(w, http.StatusBadRequest, "keywords are required", "")
		return
	}

	out, err := s.search.BuildQuery(r.Context(), in)
	if err != nil {
		writeJSONError(w, http.StatusBadGateway, "failed to build query", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}

	stats, err := s.cache.Stats()
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to read cache stats", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, models.APIError{Error: message, Details: details})
}
