package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/docutag/linkaudit"
	"github.com/docutag/linkaudit/metrics"
	"github.com/docutag/linkaudit/models"
	"github.com/docutag/linkaudit/report"
	"github.com/docutag/linkaudit/slug"
	"github.com/docutag/linkaudit/storage"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Server represents the API server
type Server struct {
	auditor     *linkaudit.Auditor
	sink        storage.Sink
	metrics     *metrics.Metrics
	registry    *prometheus.Registry
	logger      *slog.Logger
	addr        string
	server      *http.Server
	mux         *http.ServeMux
	corsEnabled bool
	timeout     time.Duration
}

// Config contains server configuration
type Config struct {
	Addr           string
	CORSEnabled    bool
	RequestTimeout time.Duration // Upper bound for one audit request
}

// DefaultConfig returns default server configuration
func DefaultConfig() Config {
	return Config{
		Addr:           ":8080",
		CORSEnabled:    true,
		RequestTimeout: 10 * time.Minute,
	}
}

// Deps are the collaborators the server is built from. Sink, Registry and Logger are optional:
// without a sink results logs cannot be saved, without a registry /metrics is not served.
type Deps struct {
	Auditor  *linkaudit.Auditor
	Sink     storage.Sink
	Registry *prometheus.Registry
	Logger   *slog.Logger
}

// NewServer creates a new API server
func NewServer(config Config, deps Deps) (*Server, error) {
	if deps.Auditor == nil {
		return nil, errors.New("auditor is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = DefaultConfig().RequestTimeout
	}

	s := &Server{
		auditor:     deps.Auditor,
		sink:        deps.Sink,
		registry:    deps.Registry,
		logger:      deps.Logger,
		addr:        config.Addr,
		mux:         http.NewServeMux(),
		corsEnabled: config.CORSEnabled,
		timeout:     config.RequestTimeout,
	}
	if deps.Registry != nil {
		s.metrics = metrics.New(deps.Registry, "linkaudit")
		s.auditor.Subscribe(s.metrics)
	}

	// Register routes
	s.registerRoutes()

	// Create HTTP server
	s.server = &http.Server{
		Addr:         config.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: config.RequestTimeout + 30*time.Second, // Allow time for slow vendor sites
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// registerRoutes sets up all API routes
func (s *Server) registerRoutes() {
	s.handle("/health", s.handleHealth)
	s.handle("/api/validate", s.handleValidate)
	s.handle("/api/extract-links", s.handleExtractLinks)
	s.handle("/api/check", s.handleCheck)
	s.handle("/api/repair", s.handleRepair)
	s.handle("/api/analyze", s.handleAnalyze)
	s.handle("/api/reports/", s.handleReport) // Handles /api/reports/{key}
	if s.registry != nil {
		s.mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}
}

// handle registers a handler, instrumented when metrics are enabled
func (s *Server) handle(pattern string, h http.HandlerFunc) {
	if s.metrics != nil {
		s.mux.Handle(pattern, s.metrics.Middleware(pattern, h))
		return
	}
	s.mux.Handle(pattern, h)
}

// Handler returns the complete handler chain: tracing, CORS and logging around the routes
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.middleware(s.mux), "linkaudit-api")
}

// Start starts the API server
func (s *Server) Start() error {
	s.logger.Info("starting API server", "addr", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	return s.server.Shutdown(ctx)
}

// middleware applies common middleware to all routes
func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// CORS headers
		if s.corsEnabled {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
		}

		// Logging (skip health checks and metrics scrapes)
		start := time.Now()
		quiet := r.URL.Path == "/health" || r.URL.Path == "/metrics"
		if !quiet {
			s.logger.Debug("request started", "method", r.Method, "path", r.URL.Path)
		}

		next.ServeHTTP(w, r)

		if !quiet {
			s.logger.Info("request completed", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
		}
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	respondJSON(w, http.StatusOK, models.HealthResponse{
		Status:    "healthy",
		Time:      time.Now(),
		Completer: s.auditor.HasCompleter(),
	})
}

// handleValidate classifies a single URL
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req models.ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.URL) == "" {
		respondError(w, http.StatusBadRequest, "url is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	start := time.Now()
	outcome := s.auditor.Validate(ctx, req.URL)

	respondJSON(w, http.StatusOK, models.ValidateResponse{
		ID:         uuid.New().String(),
		URL:        req.URL,
		Reachable:  outcome.Reachable,
		Label:      outcome.Label,
		Class:      string(outcome.Class),
		StatusCode: outcome.StatusCode,
		Duration:   time.Since(start).Seconds(),
	})
}

// handleExtractLinks fetches a page and lists its links
func (s *Server) handleExtractLinks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req models.ExtractLinksRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.URL) == "" {
		respondError(w, http.StatusBadRequest, "url is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	links, ok := s.auditor.ExtractLinks(ctx, req.URL)
	if !ok {
		respondError(w, http.StatusBadGateway, fmt.Sprintf("content unavailable: %s", req.URL))
		return
	}
	if links == nil {
		links = []string{}
	}

	respondJSON(w, http.StatusOK, models.ExtractLinksResponse{
		URL:   req.URL,
		Links: links,
		Count: len(links),
	})
}

// handleCheck validates every link of a tool
func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	record, ok := decodeRecord(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	result := s.auditor.Check(ctx, record)

	resp := models.CheckResponse{
		ID:       uuid.New().String(),
		Tool:     record.Name(),
		Outcomes: []models.FieldOutcome{},
		Broken:   result.Broken(),
	}
	for _, f := range linkaudit.Fields {
		o, ok := result.Outcome(f)
		if !ok {
			continue
		}
		resp.Outcomes = append(resp.Outcomes, models.FieldOutcome{
			Field:      f.Column(),
			URL:        record.Link(f),
			Reachable:  o.Reachable,
			Label:      o.Label,
			StatusCode: o.StatusCode,
		})
	}

	respondJSON(w, http.StatusOK, resp)
}

// handleRepair repairs the links of a tool and optionally stores the results log
func (s *Server) handleRepair(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req models.RepairRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	record, err := toRecord(req.RecordRequest)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.SaveReport && s.sink == nil {
		respondError(w, http.StatusServiceUnavailable, "report storage not configured")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	result := s.auditor.Repair(ctx, record)

	resp := models.RepairResponse{
		ID:      uuid.New().String(),
		Tool:    record.Name(),
		Changed: result.Changed,
		Summary: result.Summary,
		Details: result.Details,
		Record:  recordValues(result.Record),
	}
	for _, c := range result.Changes {
		resp.Changes = append(resp.Changes, models.FieldChange{
			Field:    c.Field.Column(),
			OldValue: c.Old,
			NewValue: c.New,
		})
	}

	if req.SaveReport {
		logger := report.NewLogger()
		logger.LogResult(1, record.Name(), result)
		saved, err := logger.Save(ctx, s.sink, slug.FromToolName(record.Name(), 1))
		if err != nil {
			s.logger.Error("failed to save results log", "tool", record.Name(), "error", err)
			respondError(w, http.StatusInternalServerError, "failed to save results log")
			return
		}
		resp.Report = saved.JSONKey
	}

	respondJSON(w, http.StatusOK, resp)
}

// handleAnalyze asks the language model about the content behind every link of a tool
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if !s.auditor.HasCompleter() {
		respondError(w, http.StatusServiceUnavailable, "content analysis not configured")
		return
	}

	record, ok := decodeRecord(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	result := s.auditor.Analyze(ctx, record)

	resp := models.AnalyzeResponse{
		ID:   uuid.New().String(),
		Tool: record.Name(),
	}
	for _, f := range linkaudit.Fields {
		resp.Verdicts = append(resp.Verdicts, models.FieldVerdict{
			Field:   f.Column(),
			URL:     record.Link(f),
			Verdict: string(result.Verdict(f)),
		})
	}

	respondJSON(w, http.StatusOK, resp)
}

// handleReport serves (GET) or removes (DELETE) a stored results log
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodDelete {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.sink == nil {
		respondError(w, http.StatusServiceUnavailable, "report storage not configured")
		return
	}

	key := strings.TrimPrefix(r.URL.Path, "/api/reports/")
	if key == "" {
		respondError(w, http.StatusBadRequest, "key is required")
		return
	}
	if escapesBase(key) {
		respondError(w, http.StatusBadRequest, "invalid key")
		return
	}

	if r.Method == http.MethodDelete {
		if err := s.sink.Delete(r.Context(), key); err != nil {
			if errors.Is(err, storage.ErrInvalidName) {
				respondError(w, http.StatusBadRequest, "invalid key")
				return
			}
			s.logger.Error("failed to delete report", "key", key, "error", err)
			respondError(w, http.StatusInternalServerError, "failed to delete report")
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	data, err := s.sink.Read(r.Context(), key)
	if errors.Is(err, storage.ErrInvalidName) {
		respondError(w, http.StatusBadRequest, "invalid key")
		return
	}
	if err != nil {
		respondError(w, http.StatusNotFound, "report not found")
		return
	}

	switch path.Ext(key) {
	case ".json":
		w.Header().Set("Content-Type", "application/json")
	default:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	}
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// escapesBase reports whether a report key has a parent-directory segment.
// The key comes from the decoded path, so "..%2f" arrives here as "../".
func escapesBase(key string) bool {
	for _, seg := range strings.Split(strings.ReplaceAll(key, "\\", "/"), "/") {
		if seg == ".." {
			return true
		}
	}
	return false
}

// decodeRecord reads a RecordRequest from a POST body, answering the request itself on failure
func decodeRecord(w http.ResponseWriter, r *http.Request) (*linkaudit.ToolRecord, bool) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return nil, false
	}

	var req models.RecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}

	record, err := toRecord(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return record, true
}

// toRecord builds a ToolRecord. Without explicit columns the name columns present come
// first, then the five link columns, then any other keys in alphabetical order.
func toRecord(req models.RecordRequest) (*linkaudit.ToolRecord, error) {
	if len(req.Values) == 0 {
		return nil, errors.New("values are required")
	}

	columns := req.Columns
	if len(columns) == 0 {
		seen := make(map[string]bool)
		add := func(c string) {
			if !seen[c] {
				seen[c] = true
				columns = append(columns, c)
			}
		}
		for _, c := range linkaudit.NameColumns {
			if _, ok := req.Values[c]; ok {
				add(c)
			}
		}
		for _, f := range linkaudit.Fields {
			add(f.Column())
		}
		var rest []string
		for c := range req.Values {
			if !seen[c] {
				rest = append(rest, c)
			}
		}
		sort.Strings(rest)
		for _, c := range rest {
			add(c)
		}
	}

	return linkaudit.NewToolRecord(columns, req.Values), nil
}

func recordValues(record *linkaudit.ToolRecord) map[string]string {
	out := make(map[string]string)
	for _, c := range record.Columns() {
		out[c] = record.Get(c)
	}
	return out
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError writes an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, models.ErrorResponse{Error: message})
}
