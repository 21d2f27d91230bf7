package rest

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/rinikerlab/cnncluster/internal/runner"
	"github.com/rinikerlab/cnncluster/pkg/api/rest/middleware"
	"github.com/rinikerlab/cnncluster/pkg/observability"
)

// Config holds the REST server configuration.
type Config struct {
	Host        string
	Port        int
	CORSEnabled bool
	CORSOrigins []string
	Auth        middleware.AuthConfig
	RateLimit   middleware.RateLimitConfig
}

// Server represents the REST API server, backed directly by the
// clustering runner rather than a separate backend process.
type Server struct {
	config     Config
	handler    *Handler
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *observability.Logger
}

// NewServer creates a new REST API server over the given runner.
func NewServer(config Config, r *runner.Runner) *Server {
	server := &Server{
		config:  config,
		handler: NewHandler(r),
		mux:     http.NewServeMux(),
		logger:  r.Logger,
	}

	server.setupRoutes()

	// h2c lets batch clients (e.g. a pipeline orchestrator reusing one
	// connection for many sequential run requests) speak HTTP/2 without
	// TLS termination in front of the server.
	h2s := &http2.Server{}
	handler := h2c.NewHandler(server.withMiddleware(server.mux), h2s)

	server.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/v1/health", s.handler.HealthCheck)
	s.mux.HandleFunc("/v1/stats", s.handler.GetStats)

	s.mux.HandleFunc("/v1/datasets", s.routeDatasets)
	s.mux.HandleFunc("/v1/datasets/", s.handler.routeDatasetByName)

	s.mux.HandleFunc("/v1/cluster", s.handler.Cluster)
	s.mux.HandleFunc("/v1/batch/cluster", s.handler.BatchCluster)
	s.mux.HandleFunc("/v1/hierarchic", s.handler.Hierarchic)
	s.mux.HandleFunc("/v1/scan", s.handler.Scan)
	s.mux.HandleFunc("/v1/mapping", s.handler.Mapping)
	s.mux.HandleFunc("/v1/dtrajs", s.handler.Dtrajs)
}

// routeDatasets handles /v1/datasets: GET lists, POST creates.
func (s *Server) routeDatasets(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handler.ListDatasets(w, r)
	case http.MethodPost:
		s.handler.CreateDataset(w, r)
	default:
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// withMiddleware wraps the mux with the full middleware chain. Each wrap
// goes outside the previous one, so a request passes auth first, then rate
// limiting, CORS (if enabled), gzip and request logging before the mux.
func (s *Server) withMiddleware(handler http.Handler) http.Handler {
	handler = s.loggingMiddleware(handler)
	handler = compressMiddleware(handler)

	if s.config.CORSEnabled {
		handler = corsMiddleware(s.config.CORSOrigins)(handler)
	}

	rateLimiter := middleware.NewRateLimiter(s.config.RateLimit)
	handler = middleware.RateLimitMiddleware(rateLimiter)(handler)

	handler = middleware.AuthMiddleware(s.config.Auth)(handler)

	return handler
}

// Start starts the REST API server.
func (s *Server) Start() error {
	s.logger.Info("starting REST API server", map[string]interface{}{"addr": s.httpServer.Addr})

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully stops the server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("shutting down REST API server", nil)
	return s.httpServer.Shutdown(ctx)
}

// loggingMiddleware logs every HTTP request through the runner's logger.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		s.logger.Info("request handled", map[string]interface{}{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   wrapped.statusCode,
			"duration": time.Since(start),
		})
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// gzipResponseWriter wraps http.ResponseWriter, routing the body through a
// gzip.Writer so large cluster/dtrajs payloads go over the wire
// compressed.
type gzipResponseWriter struct {
	http.ResponseWriter
	gz *gzip.Writer
}

func (w *gzipResponseWriter) Write(b []byte) (int, error) {
	return w.gz.Write(b)
}

// compressMiddleware gzip-compresses responses for clients advertising
// support for it, via Accept-Encoding. Cluster and discretized-trajectory
// payloads can run into megabytes of integer arrays, which compress well.
func compressMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Add("Vary", "Accept-Encoding")

		gz := gzip.NewWriter(w)
		defer gz.Close()

		next.ServeHTTP(&gzipResponseWriter{ResponseWriter: w, gz: gz}, r)
	})
}

// corsMiddleware adds CORS headers.
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowed := false
			if len(allowedOrigins) == 0 || (len(allowedOrigins) == 1 && allowedOrigins[0] == "*") {
				allowed = true
				origin = "*"
			} else {
				for _, allowedOrigin := range allowedOrigins {
					if allowedOrigin == origin {
						allowed = true
						break
					}
				}
			}

			if allowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				w.Header().Set("Access-Control-Max-Age", "3600")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
