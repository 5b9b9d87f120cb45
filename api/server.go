// Package api exposes the flash pipeline over a JSON HTTP API.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zombar/flash"
	"github.com/zombar/flash/db"
	"github.com/zombar/flash/models"
	"github.com/zombar/flash/oracle"
	"github.com/zombar/flash/search"
	"github.com/zombar/flash/storage"
)

// Store is the subset of database operations the HTTP layer uses directly.
type Store interface {
	Count() (int, error)
	ListExecutions(postID string, limit int) ([]models.ExecutionLogRecord, error)
	Close() error
}

// Server represents the API server
type Server struct {
	engine      *flash.Engine
	store       Store
	addr        string
	server      *http.Server
	mux         *http.ServeMux
	corsEnabled bool
}

// Config contains server configuration
type Config struct {
	Addr         string
	DBConfig     db.Config
	EngineConfig flash.Config
	OracleConfig oracle.Config
	SearchURL    string
	StoragePath  string
	S3Config     *storage.S3Config // when set, snapshots go to object storage
	CORSEnabled  bool
}

// DefaultConfig returns default server configuration
func DefaultConfig() Config {
	return Config{
		Addr:         ":8080",
		EngineConfig: flash.DefaultConfig(),
		StoragePath:  storage.DefaultConfig().BasePath,
		CORSEnabled:  true,
	}
}

// NewServer creates a new API server wired to Postgres, snapshot storage,
// and (when configured) the oracle and search backends. Oracle and search
// are optional: without them the pipeline runs its deterministic paths.
func NewServer(config Config) (*Server, error) {
	database, err := db.New(config.DBConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	var snapshots flash.Snapshots
	if config.S3Config != nil {
		snapshots, err = storage.NewS3Storage(context.Background(), *config.S3Config)
	} else {
		snapshots, err = storage.New(storage.Config{BasePath: config.StoragePath})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	var oracleClient oracle.Client
	if config.OracleConfig.APIKey != "" {
		oracleClient, err = oracle.NewOpenAI(config.OracleConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize oracle client: %w", err)
		}
	}

	var searcher search.Searcher
	if config.SearchURL != "" {
		searcher, err = search.NewHTTP(search.Config{
			BaseURL: config.SearchURL,
			Timeout: config.EngineConfig.SearchTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize searcher: %w", err)
		}
	}

	engine := flash.New(config.EngineConfig, oracleClient, searcher, database, snapshots)

	return newServer(engine, database, config.Addr, config.CORSEnabled), nil
}

// newServer wires routes around an already-built engine and store.
func newServer(engine *flash.Engine, store Store, addr string, corsEnabled bool) *Server {
	s := &Server{
		engine:      engine,
		store:       store,
		addr:        addr,
		mux:         http.NewServeMux(),
		corsEnabled: corsEnabled,
	}

	s.registerRoutes()

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.middleware(s.mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute, // oracle calls dominate request time
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// registerRoutes sets up all API routes
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/api/flash/clean-html", s.handleCleanHTML)
	s.mux.HandleFunc("/api/flash/faq", s.handleFAQ)
	s.mux.HandleFunc("/api/flash/citations", s.handleCitations)
	s.mux.HandleFunc("/api/flash/internal-links", s.handleInternalLinks)
	s.mux.HandleFunc("/api/flash/suggest-images", s.handlePlaceholders(flash.KindImage))
	s.mux.HandleFunc("/api/flash/suggest-videos", s.handlePlaceholders(flash.KindVideo))
	s.mux.HandleFunc("/api/flash/suggest-opinions", s.handlePlaceholders(flash.KindOpinion))
	s.mux.HandleFunc("/api/flash/suggest-product", s.handlePlaceholders(flash.KindProduct))
	s.mux.HandleFunc("/api/flash/log", s.handleLog)
}

// Start starts the API server
func (s *Server) Start() error {
	log.Printf("Starting API server on %s", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down API server...")
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	return s.store.Close()
}

// middleware applies common middleware to all routes
func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// CORS headers
		if s.corsEnabled {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
		}

		// Logging (skip health checks to reduce noise)
		start := time.Now()
		if r.URL.Path != "/health" {
			log.Printf("%s %s", r.Method, r.URL.Path)
		}

		next.ServeHTTP(w, r)

		if r.URL.Path != "/health" {
			log.Printf("%s %s - completed in %v", r.Method, r.URL.Path, time.Since(start))
		}
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}

	count, err := s.store.Count()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get count", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "healthy",
		"executions": count,
		"time":       time.Now(),
	})
}

// decodeFlashRequest parses and validates the shared request body. A nil
// return means the error response has already been written.
func decodeFlashRequest(w http.ResponseWriter, r *http.Request) *models.FlashRequest {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return nil
	}

	var req models.FlashRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return nil
	}

	if req.PostID == "" {
		respondError(w, http.StatusBadRequest, "postId is required", "")
		return nil
	}
	if req.Content == "" {
		respondError(w, http.StatusBadRequest, "content is required", "")
		return nil
	}

	return &req
}

// handleCleanHTML runs the deterministic markup repair pass.
func (s *Server) handleCleanHTML(w http.ResponseWriter, r *http.Request) {
	req := decodeFlashRequest(w, r)
	if req == nil {
		return
	}

	result, err := s.engine.CleanHTML(r.Context(), *req)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "clean-html failed", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":        true,
		"updatedContent": result.UpdatedContent,
		"issues":         result.Issues,
		"issuesFixed":    result.IssuesFixed,
	})
}

// handleFAQ generates and inserts an FAQ section.
func (s *Server) handleFAQ(w http.ResponseWriter, r *http.Request) {
	req := decodeFlashRequest(w, r)
	if req == nil {
		return
	}

	result, err := s.engine.FAQ(r.Context(), *req)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "faq generation failed", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":        true,
		"updatedContent": result.UpdatedContent,
		"suggestions":    result.Suggestions,
		"tokensUsed":     result.TokensUsed,
		"message":        result.Message,
	})
}

// handleCitations appends a sources section.
func (s *Server) handleCitations(w http.ResponseWriter, r *http.Request) {
	req := decodeFlashRequest(w, r)
	if req == nil {
		return
	}

	result, err := s.engine.Citations(r.Context(), *req)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "citation generation failed", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":        true,
		"updatedContent": result.UpdatedContent,
		"citations":      result.Citations,
		"searchUsed":     result.SearchUsed,
		"tokensUsed":     result.TokensUsed,
		"message":        result.Message,
	})
}

// handleInternalLinks wraps relevant phrases in links to the tenant's
// other published posts.
func (s *Server) handleInternalLinks(w http.ResponseWriter, r *http.Request) {
	req := decodeFlashRequest(w, r)
	if req == nil {
		return
	}

	result, err := s.engine.InternalLinks(r.Context(), *req)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal linking failed", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":        true,
		"updatedContent": result.UpdatedContent,
		"linksAdded":     result.LinksAdded,
		"tokensUsed":     result.TokensUsed,
		"message":        result.Message,
	})
}

// handlePlaceholders returns a handler for one placeholder kind.
func (s *Server) handlePlaceholders(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := decodeFlashRequest(w, r)
		if req == nil {
			return
		}

		result, err := s.engine.SuggestPlaceholders(r.Context(), kind, *req)
		if err != nil {
			respondError(w, http.StatusInternalServerError, fmt.Sprintf("suggest-%s failed", kind), err.Error())
			return
		}

		respondJSON(w, http.StatusOK, map[string]interface{}{
			"success":             true,
			"updatedContent":      result.UpdatedContent,
			"placeholders":        result.Fragments,
			"placeholdersCreated": result.PlaceholdersCreated,
			"tokensUsed":          result.TokensUsed,
			"message":             result.Message,
		})
	}
}

// handleLog returns execution log rows, optionally filtered by postId.
func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		fmt.Sscanf(limitStr, "%d", &limit)
	}
	if limit < 1 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	postID := strings.TrimSpace(r.URL.Query().Get("postId"))

	records, err := s.store.ListExecutions(postID, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to read execution log", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"records": records,
		"count":   len(records),
	})
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, message, details string) {
	body := map[string]interface{}{
		"success": false,
		"error":   message,
	}
	if details != "" {
		body["details"] = details
	}
	respondJSON(w, status, body)
}
