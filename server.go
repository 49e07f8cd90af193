package fitmetrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/streamingfast/shutter"
	"go.uber.org/zap"
)

// refreshSuccessMessage is part of the API contract, S3 wording included.
const refreshSuccessMessage = "Data files refreshed from S3."

var indexTemplate = template.Must(template.New("index").Parse(indexHTML))

// statusResponse is the envelope all non-record API responses use.
type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func errorResponse(message string) statusResponse {
	return statusResponse{Status: "error", Message: message}
}

// Server serves the metrics query API over the local data directory.
// The consolidated frame is loaded lazily on the first query and cached
// until a refresh invalidates it.
type Server struct {
	*shutter.Shutter

	config *Config
	store  ObjectStore
	syncer *Syncer
	httpd  *http.Server

	mu    sync.RWMutex
	frame *Frame
}

// NewServer creates a server over the configured data directory. The store
// may be nil, in which case refreshing and upload URLs are unavailable and
// the respective endpoints report an error.
func NewServer(config *Config, store ObjectStore) *Server {
	server := &Server{
		Shutter: shutter.New(),
		config:  config,
		store:   store,
	}
	if store != nil {
		server.syncer = NewSyncer(store, config.DataDir, config.SyncWorkers)
	}
	return server
}

// Handler returns the API's HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /metrics", s.handleListMetrics)
	mux.HandleFunc("GET /metrics/{name}", s.handleMetricQuery)
	mux.HandleFunc("POST /refresh-metrics", s.handleRefresh)
	mux.HandleFunc("POST /upload-url", s.handleUploadURL)
	return loggingMiddleware(mux)
}

// Run serves the API until Shutdown is called. In-flight requests get the
// configured grace period to finish.
func (s *Server) Run() {
	s.httpd = &http.Server{
		Addr:              s.config.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.OnTerminating(func(err error) {
		zlog.Info("shutting down HTTP server", zap.Error(err))
		ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownGrace())
		defer cancel()
		if err := s.httpd.Shutdown(ctx); err != nil {
			zlog.Warn("HTTP server shutdown did not complete cleanly", zap.Error(err))
		}
	})

	zlog.Info("serving metrics API",
		zap.String("listen", s.config.Listen),
		zap.String("data_dir", s.config.DataDir))

	err := s.httpd.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.Shutdown(fmt.Errorf("http server failed: %w", err))
		return
	}
	s.Shutdown(nil)
}

func (s *Server) scanCatalog() (*Catalog, error) {
	return ScanDir(s.config.DataDir, s.config.Descriptions)
}

// currentFrame returns the cached consolidated frame, loading it from the
// data directory when no cache is present.
func (s *Server) currentFrame(ctx context.Context) (*Frame, error) {
	s.mu.RLock()
	frame := s.frame
	s.mu.RUnlock()
	if frame != nil {
		return frame, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frame != nil {
		return s.frame, nil
	}

	catalog, err := s.scanCatalog()
	if err != nil {
		return nil, err
	}
	frame, err = LoadAll(ctx, catalog, s.config.SyncWorkers)
	if err != nil {
		return nil, err
	}
	s.frame = frame
	return frame, nil
}

func (s *Server) invalidateFrame() {
	s.mu.Lock()
	s.frame = nil
	s.mu.Unlock()
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	catalog, err := s.scanCatalog()
	if err != nil {
		zlog.Warn("failed to scan data directory for index page", zap.Error(err))
		http.Error(w, "failed to load metrics", http.StatusInternalServerError)
		return
	}

	type indexMetric struct {
		Name        string
		Description string
	}
	var metrics []indexMetric
	for _, name := range catalog.Metrics() {
		metrics = append(metrics, indexMetric{Name: name, Description: catalog.Description(name)})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, struct{ Metrics []indexMetric }{metrics}); err != nil {
		zlog.Warn("failed to render index page", zap.Error(err))
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Status string `json:"status"`
	}{"ok"})
}

func (s *Server) handleListMetrics(w http.ResponseWriter, r *http.Request) {
	catalog, err := s.scanCatalog()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse(err.Error()))
		return
	}

	type metricInfo struct {
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
	}
	metrics := []metricInfo{}
	for _, name := range catalog.Metrics() {
		metrics = append(metrics, metricInfo{Name: name, Description: catalog.Description(name)})
	}

	writeJSON(w, http.StatusOK, struct {
		Metrics []metricInfo `json:"metrics"`
	}{metrics})
}

func (s *Server) handleMetricQuery(w http.ResponseWriter, r *http.Request) {
	frame, err := s.currentFrame(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse(err.Error()))
		return
	}

	query := r.URL.Query()
	params := QueryParams{
		Entities:  SplitEntities(query.Get("entity")),
		Metric:    r.PathValue("name"),
		StartDate: query.Get("start_date"),
		EndDate:   query.Get("end_date"),
	}

	points, err := RunQuery(frame, params)
	if err != nil {
		var queryErr *QueryError
		if errors.As(err, &queryErr) {
			writeJSON(w, queryErr.Status, errorResponse(queryErr.Message))
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse(err.Error()))
		return
	}

	data, err := EncodeRecords(points)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse(err.Error()))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.syncer == nil {
		writeJSON(w, http.StatusInternalServerError,
			errorResponse("no object store configured, data files cannot be refreshed"))
		return
	}

	if _, err := s.syncer.Sync(r.Context()); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse(err.Error()))
		return
	}
	s.invalidateFrame()

	writeJSON(w, http.StatusOK, statusResponse{Status: "success", Message: refreshSuccessMessage})
}

func (s *Server) handleUploadURL(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusInternalServerError,
			errorResponse("no object store configured, upload URLs cannot be generated"))
		return
	}

	var request struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeJSON(w, http.StatusBadRequest,
			errorResponse("invalid request body: expected JSON with a \"name\" field"))
		return
	}
	if request.Name == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse("file name must not be empty"))
		return
	}
	if strings.ContainsAny(request.Name, `/\`) || strings.Contains(request.Name, "..") {
		writeJSON(w, http.StatusBadRequest, errorResponse("file name must not contain path separators"))
		return
	}

	upload, err := s.store.PresignUpload(r.Context(), request.Name, s.config.PresignExpiry())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Status string     `json:"status"`
		Upload *UploadURL `json:"upload"`
	}{"success", upload})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		zlog.Error("failed to encode response", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
	w.Write([]byte("\n"))
}

// statusRecorder captures the response status for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		defer func() {
			if p := recover(); p != nil {
				zlog.Error("handler panicked", zap.Any("panic", p), zap.Stack("stack"))
				writeJSON(recorder, http.StatusInternalServerError, errorResponse("internal server error"))
			}
			zlog.Info("handled request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", recorder.status),
				zap.Duration("took", time.Since(start)))
		}()

		next.ServeHTTP(recorder, r)
	})
}
