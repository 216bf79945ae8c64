package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/IshaanNene/lbcscraper/internal/config"
	"github.com/IshaanNene/lbcscraper/internal/observability"
	"github.com/IshaanNene/lbcscraper/internal/stats"
	"github.com/IshaanNene/lbcscraper/internal/storage"
)

var safeName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*\.json$`)

// FileInfo describes one output file.
type FileInfo struct {
	Name         string  `json:"name"`
	Size         int64   `json:"size"`
	SizeMB       float64 `json:"size_mb"`
	LastModified string  `json:"last_modified"`
}

// Server serves the JSON output directory read-only.
type Server struct {
	router  *mux.Router
	cfg     *config.Config
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewServer creates a new API server over cfg.Storage.OutputDir.
func NewServer(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		cfg:     cfg,
		metrics: metrics,
		logger:  logger.With("component", "api_server"),
	}

	s.registerRoutes()
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.API.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("API server starting", "addr", srv.Addr, "dir", s.cfg.Storage.OutputDir)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("API server stopping")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.router.Use(s.cors, s.logRequests)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/files", s.handleListFiles).Methods(http.MethodGet)
	api.HandleFunc("/file/{name}", s.handleGetFile).Methods(http.MethodGet)
	api.HandleFunc("/files/multiple", s.handleMultipleFiles).Methods(http.MethodPost)
	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	api.PathPrefix("/").HandlerFunc(s.handlePreflight).Methods(http.MethodOptions)

	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	}
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.jsonError(w, http.StatusNotFound, "not_found", fmt.Sprintf("route %s not found", r.URL.Path))
	})
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func (s *Server) handlePreflight(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"message": "OK"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": config.Version,
	})
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(s.cfg.Storage.OutputDir)
	if err != nil && !os.IsNotExist(err) {
		s.jsonError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	files := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{
			Name:         e.Name(),
			Size:         info.Size(),
			SizeMB:       math.Round(float64(info.Size())/(1024*1024)*100) / 100,
			LastModified: info.ModTime().UTC().Format(time.RFC3339),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"success": true,
		"files":   files,
		"count":   len(files),
	})
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	content, size, err := s.readFile(name)
	if err != nil {
		s.fileError(w, name, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"success":    true,
		"filename":   name,
		"content":    content,
		"size_bytes": size,
	})
}

func (s *Server) handleMultipleFiles(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Files []string `json:"files"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&body); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid_json", "invalid JSON body")
		return
	}

	type fileResult struct {
		Filename string          `json:"filename"`
		Success  bool            `json:"success"`
		Content  json.RawMessage `json:"content,omitempty"`
		Error    string          `json:"error,omitempty"`
	}
	results := make([]fileResult, 0, len(body.Files))
	failures := make([]fileResult, 0)
	for _, name := range body.Files {
		content, _, err := s.readFile(name)
		if err != nil {
			failures = append(failures, fileResult{Filename: name, Error: err.Error()})
			continue
		}
		results = append(results, fileResult{Filename: name, Success: true, Content: content})
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"success":       true,
		"results":       results,
		"errors":        failures,
		"total":         len(body.Files),
		"success_count": len(results),
		"error_count":   len(failures),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	sales, err := storage.ReadListings(s.cfg.SalesPath(), s.logger)
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	rentals, err := storage.ReadListings(s.cfg.RentalsPath(), s.logger)
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	resp := map[string]any{
		"success":       true,
		"sales":         stats.Sales(sales),
		"sales_rooms":   stats.ByRooms(sales),
		"rentals":       stats.Rentals(rentals),
		"rentals_rooms": stats.ByRooms(rentals),
	}
	if s.metrics != nil {
		resp["metrics"] = s.metrics.Snapshot()
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

var errUnsafeName = errors.New("invalid file name")

// readFile returns the raw JSON of a file in the output directory.
func (s *Server) readFile(name string) (json.RawMessage, int, error) {
	if !safeName.MatchString(name) || strings.Contains(name, "..") {
		return nil, 0, errUnsafeName
	}
	data, err := os.ReadFile(filepath.Join(s.cfg.Storage.OutputDir, name))
	if err != nil {
		return nil, 0, err
	}
	if !json.Valid(data) {
		return nil, 0, fmt.Errorf("%s is not valid JSON", name)
	}
	return json.RawMessage(data), len(data), nil
}

func (s *Server) fileError(w http.ResponseWriter, name string, err error) {
	switch {
	case errors.Is(err, errUnsafeName):
		s.jsonError(w, http.StatusBadRequest, "invalid_name", err.Error())
	case os.IsNotExist(err):
		s.jsonError(w, http.StatusNotFound, "NoSuchKey", fmt.Sprintf("file %s not found", name))
	default:
		s.jsonError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func (s *Server) jsonError(w http.ResponseWriter, status int, code, message string) {
	s.jsonResponse(w, status, map[string]any{
		"success": false,
		"error":   code,
		"message": message,
	})
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("response encode failed", "error", err)
	}
}
