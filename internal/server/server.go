package server

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/yourorg/apitestgen/internal/config"
	"github.com/yourorg/apitestgen/internal/generator"
	"github.com/yourorg/apitestgen/internal/spec"
	"github.com/yourorg/apitestgen/internal/store"
	"github.com/yourorg/apitestgen/pkg/types"
)

var (
	//go:embed ui.html
	uiHTML string

	uiTemplate = template.Must(template.New("ui").Parse(uiHTML))
)

// Server wraps the upload UI and API handlers.
type Server struct {
	cfg    *config.Config
	svc    *generator.Service
	store  store.Store
	logger *slog.Logger
	mux    *http.ServeMux
}

type uiData struct {
	Model       string
	MaxUploadMB int64
}

// New constructs a new Server with routes registered.
func New(cfg *config.Config, svc *generator.Service, st store.Store, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if svc == nil {
		return nil, errors.New("service is nil")
	}
	if st == nil {
		return nil, errors.New("store is nil")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	srv := &Server{
		cfg:    cfg,
		svc:    svc,
		store:  st,
		logger: logger,
		mux:    http.NewServeMux(),
	}
	srv.registerRoutes()
	return srv, nil
}

// Handler returns the http handler with request logging applied.
func (s *Server) Handler() http.Handler {
	return s.logRequests(s.mux)
}

// HTTPServer returns an http.Server for addr. Write timeouts are left to the
// gateway client since a generation can take minutes.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func (s *Server) registerRoutes() {
	// UI routes.
	s.mux.HandleFunc("/", s.handleIndex)

	// Generation routes.
	s.mux.HandleFunc("/generate", s.handleGenerate)
	s.mux.HandleFunc("/regenerate", s.handleRegenerate)
	s.mux.HandleFunc("/download/", s.handleDownload)
	s.mux.HandleFunc("/health", s.handleHealth)

	// API routes.
	s.mux.HandleFunc("/api/artifacts", s.handleArtifacts)
	s.mux.HandleFunc("/api/artifacts/", s.handleArtifactDetail)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeError(w, http.StatusNotFound, CodeNotFound, "not found", "")
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_ = uiTemplate.Execute(w, uiData{Model: s.cfg.LLM.Model, MaxUploadMB: s.cfg.Server.MaxUploadBytes >> 20})
}

type generateResponse struct {
	Success        bool     `json:"success"`
	TestCases      string   `json:"test_cases"`
	Filename       string   `json:"filename"`
	APITitle       string   `json:"api_title"`
	EndpointsCount int      `json:"endpoints_count"`
	Revision       int      `json:"revision"`
	Warnings       []string `json:"warnings"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	setCORS(w, s.cfg.Server.CORSOrigin)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := s.cfg.Server.MaxUploadBytes
	if r.ContentLength > limit {
		writeError(w, http.StatusRequestEntityTooLarge, CodeInvalidRequest,
			fmt.Sprintf("File too large. Maximum size is %d MB.", limit>>20), "")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, CodeInvalidRequest,
				fmt.Sprintf("File too large. Maximum size is %d MB.", limit>>20), "")
			return
		}
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "No file provided", err.Error())
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "No file provided", "")
		return
	}
	defer file.Close()
	if header.Filename == "" {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "No file selected", "")
		return
	}
	if !spec.IsSupportedFormat(spec.FormatFromFilename(header.Filename)) {
		writeError(w, http.StatusBadRequest, CodeUnsupportedFormat,
			"Invalid file type. Please upload JSON, YAML, or YML files.", "")
		return
	}
	content, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "read upload: "+err.Error(), "")
		return
	}

	res, err := s.svc.Generate(r.Context(), sanitizeFilename(header.Filename), content)
	if err != nil {
		s.writeServiceError(w, "Failed to generate tests", err)
		return
	}
	writeJSON(w, http.StatusOK, generateResponse{
		Success:        true,
		TestCases:      res.Code,
		Filename:       res.Filename,
		APITitle:       res.Title,
		EndpointsCount: res.EndpointsCount,
		Revision:       res.Revision,
		Warnings:       res.Warnings,
	})
}

type regenerateResponse struct {
	Success             bool   `json:"success"`
	TestCases           string `json:"test_cases"`
	Filename            string `json:"filename"`
	Message             string `json:"message"`
	ImprovementsApplied string `json:"improvements_applied"`
	APITitle            string `json:"api_title"`
	Revision            int    `json:"revision"`
}

func (s *Server) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	setCORS(w, s.cfg.Server.CORSOrigin)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Filename    string `json:"filename"`
		Suggestions string `json:"suggestions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid json", err.Error())
		return
	}

	res, err := s.svc.Refine(r.Context(), req.Filename, req.Suggestions)
	if err != nil {
		s.writeServiceError(w, "Failed to regenerate tests", err)
		return
	}
	writeJSON(w, http.StatusOK, regenerateResponse{
		Success:             true,
		TestCases:           res.Code,
		Filename:            res.Filename,
		Message:             "Test cases regenerated successfully",
		ImprovementsApplied: res.Feedback,
		APITitle:            res.Title,
		Revision:            res.Revision,
	})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	name, tail, ok := splitPath(r.URL.Path, "/download/")
	if !ok || tail != "" {
		writeError(w, http.StatusNotFound, CodeNotFound, "File not found", "")
		return
	}
	artifact, err := s.store.GetArtifact(name)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, CodeNotFound, "File not found: "+name, "")
		return
	}
	if err != nil {
		s.writeServiceError(w, "Failed to load file", err)
		return
	}
	w.Header().Set("Content-Type", "text/x-java-source; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", artifact.Filename))
	_, _ = io.WriteString(w, artifact.Content)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	reply, err := s.svc.Health(r.Context())
	if err != nil {
		s.logger.Warn("health check failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":        "healthy",
		"model":         s.cfg.LLM.Model,
		"test_response": reply,
	})
}

func (s *Server) handleArtifacts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	artifacts, err := s.store.ListArtifacts()
	if err != nil {
		s.writeServiceError(w, "Failed to list artifacts", err)
		return
	}
	writeJSON(w, http.StatusOK, artifacts)
}

func (s *Server) handleArtifactDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	name, tail, ok := splitPath(r.URL.Path, "/api/artifacts/")
	if !ok || tail != "" {
		writeError(w, http.StatusNotFound, CodeNotFound, "not found", "")
		return
	}
	artifact, err := s.store.GetArtifact(name)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, CodeNotFound, "artifact not found: "+name, "")
		return
	}
	if err != nil {
		s.writeServiceError(w, "Failed to load artifact", err)
		return
	}
	refinements, err := s.store.ListRefinements(name)
	if err != nil {
		s.writeServiceError(w, "Failed to load refinements", err)
		return
	}
	resp := struct {
		Artifact    *types.Artifact    `json:"artifact"`
		Refinements []types.Refinement `json:"refinements"`
	}{
		Artifact:    artifact,
		Refinements: refinements,
	}
	writeJSON(w, http.StatusOK, resp)
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// sanitizeFilename keeps the base name, replaces whitespace with underscores
// and drops anything outside [A-Za-z0-9._-]. The extension always survives.
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	ext := strings.ToLower(filepath.Ext(name))
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	name = strings.Trim(name, "._")
	if name == "" || strings.ToLower(filepath.Ext(name)) != ext {
		return "upload" + ext
	}
	return name
}

func splitPath(fullPath, prefix string) (string, string, bool) {
	if !strings.HasPrefix(fullPath, prefix) {
		return "", "", false
	}
	rest := strings.TrimPrefix(fullPath, prefix)
	rest = strings.Trim(rest, "/")
	if rest == "" {
		return "", "", false
	}
	parts := strings.Split(rest, "/")
	id := parts[0]
	tail := ""
	if len(parts) > 1 {
		tail = strings.Join(parts[1:], "/")
	}
	return id, tail, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func setCORS(w http.ResponseWriter, origin string) {
	if origin == "" {
		return
	}
	w.Header().Set("Access-Control-Allow-Origin", origin)
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}
