// Package server provides the HTTP server that exposes shimmy's
// OpenAI- and Anthropic-compatible API surface.
//
// It follows the same shape as a typical local inference gateway: a
// lightweight net/http server with CORS, structured request logging, panic
// recovery, and basic request metrics, fronting a small fixed set of
// routes. Route handling itself lives in pkg/protocol; this package only
// owns the listener lifecycle and middleware chain.
//
// Example Usage:
//
//	cfg := server.DefaultConfig()
//	cfg.Port = 11435
//
//	srv, err := server.New(handler, cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := srv.Start(); err != nil {
//		log.Fatal(err)
//	}
//	defer srv.Stop(context.Background())
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/localforge/shimmy/pkg/protocol"
)

// ErrServerClosed is returned by Start once the server has already been
// shut down. Stop on an already-stopped server returns nil.
var ErrServerClosed = fmt.Errorf("server: already closed")

// Config holds HTTP server settings.
type Config struct {
	// Address to bind to (default: "0.0.0.0").
	Address string
	// Port to listen on (default: 11435).
	Port int
	// ReadTimeout for requests.
	ReadTimeout time.Duration
	// WriteTimeout for responses. Kept generous, since generation can run
	// well past typical HTTP defaults; it also applies to streaming
	// responses, so a stream still open when it expires is cut off.
	WriteTimeout time.Duration
	// IdleTimeout for keep-alive connections.
	IdleTimeout time.Duration
	// EnableCORS for cross-origin requests, so a browser-based client can
	// call this server directly.
	EnableCORS bool
	// CORSOrigins allowed (default: "*").
	CORSOrigins []string
	// WorkerPoolSize bounds concurrent blocking generation calls (default:
	// GOMAXPROCS). 0 leaves the default in place; negative disables pooling
	// entirely (generation runs directly on the request goroutine).
	WorkerPoolSize int
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Address:      "0.0.0.0",
		Port:         11435,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
		EnableCORS:   true,
		CORSOrigins:  []string{"*"},
	}
}

// Server owns the listener and the middleware chain wrapped around a
// protocol.Handler.
type Server struct {
	config  *Config
	handler *protocol.Handler

	httpServer *http.Server
	listener   net.Listener

	closed  atomic.Bool
	started time.Time

	requestCount   atomic.Int64
	errorCount     atomic.Int64
	activeRequests atomic.Int64

	rescan    func() int
	pool      *Pool
	portAlloc PortAllocator
}

// New creates a server bound to handler. The server is created but not
// started; call Start to begin accepting connections.
func New(handler *protocol.Handler, config *Config) (*Server, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if handler == nil {
		return nil, fmt.Errorf("server: handler required")
	}
	srv := &Server{config: config, handler: handler, portAlloc: defaultPortAllocator{}}
	if config.WorkerPoolSize >= 0 {
		srv.pool = NewPool(config.WorkerPoolSize)
	}
	return srv, nil
}

// Start begins listening for HTTP connections on the configured address and
// port. It returns once the listener is bound; serving happens in a
// background goroutine.
func (s *Server) Start() error {
	if s.closed.Load() {
		return ErrServerClosed
	}

	listener, err := s.portAlloc.Allocate(s.config.Address, s.config.Port)
	if err != nil {
		return fmt.Errorf("failed to listen on %s:%d: %w", s.config.Address, s.config.Port, err)
	}

	s.listener = listener
	s.started = time.Now()

	s.httpServer = &http.Server{
		Handler:      s.buildRouter(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			fmt.Printf("HTTP server error: %v\n", err)
		}
	}()

	return nil
}

// Stop gracefully shuts the server down, waiting for in-flight requests
// (including open SSE streams) to finish or for ctx to expire.
func (s *Server) Stop(ctx context.Context) error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// Stats reports current server runtime metrics.
type Stats struct {
	Uptime         time.Duration `json:"uptime"`
	RequestCount   int64         `json:"request_count"`
	ErrorCount     int64         `json:"error_count"`
	ActiveRequests int64         `json:"active_requests"`
}

// Stats returns current server runtime statistics.
func (s *Server) Stats() Stats {
	return Stats{
		Uptime:         time.Since(s.started),
		RequestCount:   s.requestCount.Load(),
		ErrorCount:     s.errorCount.Load(),
		ActiveRequests: s.activeRequests.Load(),
	}
}

func (s *Server) buildRouter() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/chat/completions", s.workerPoolMiddleware(s.handler.ChatCompletions))
	mux.HandleFunc("/v1/messages", s.workerPoolMiddleware(s.handler.Messages))
	mux.HandleFunc("/v1/models", s.handler.ModelsList)
	mux.HandleFunc("/api/generate", s.workerPoolMiddleware(s.handler.NativeGenerate))
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/admin/models", s.handleAdminModels)
	mux.HandleFunc("/admin/rescan", s.handleAdminRescan)

	handler := s.corsMiddleware(mux)
	handler = s.loggingMiddleware(handler)
	handler = s.recoveryMiddleware(handler)
	handler = s.metricsMiddleware(handler)
	return handler
}

// handleHealth reports liveness plus the richer operational detail
// SPEC_FULL.md's expanded /health adds over a bare 200: model count,
// cache hit rate, and recent usage totals.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.started).String(),
		"models": len(s.handler.Registry.ListAllAvailable()),
	}
	if s.handler.Cache != nil {
		resp["cache"] = s.handler.Cache.Stats()
	}
	if s.handler.Usage != nil {
		resp["usage"] = s.handler.Usage.Summarize()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleAdminModels lists every catalog entry with its resolved spec, for
// operators inspecting what discovery actually found.
func (s *Server) handleAdminModels(w http.ResponseWriter, r *http.Request) {
	names := s.handler.Registry.ListAllAvailable()
	out := make([]map[string]any, 0, len(names))
	for _, name := range names {
		spec, ok := s.handler.Registry.ToSpec(name)
		if !ok {
			continue
		}
		out = append(out, map[string]any{
			"name":           spec.Name,
			"base_path":      spec.BasePath,
			"adapter_path":   spec.AdapterPath,
			"template":       spec.Template,
			"context_length": spec.ContextLength,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": out})
}

// handleAdminRescan is registered for the /admin/rescan surface; the actual
// discovery re-run is wired by cmd/shimmy, which owns the roots and the
// Ollama path and re-runs discovery.Scan against this same Registry.
func (s *Server) handleAdminRescan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "POST required"})
		return
	}
	if s.rescan == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "rescan not configured"})
		return
	}
	count := s.rescan()
	writeJSON(w, http.StatusOK, map[string]any{"rescanned": true, "models_found": count})
}

// SetRescanFunc wires a rescan callback invoked by POST /admin/rescan. It is
// optional; without it the endpoint reports 501.
func (s *Server) SetRescanFunc(fn func() int) {
	s.rescan = fn
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.config.EnableCORS {
			origin := r.Header.Get("Origin")
			if origin == "" {
				origin = "*"
			}
			allowed := false
			for _, o := range s.config.CORSOrigins {
				if o == "*" || o == origin {
					allowed = true
					break
				}
			}
			if allowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type")
				w.Header().Set("Access-Control-Max-Age", "86400")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		if r.URL.Path != "/health" {
			fmt.Printf("%s %s %d %s\n", r.Method, r.URL.Path, wrapped.status, time.Since(start))
		}
	})
}

func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				buf := make([]byte, 4096)
				n := runtime.Stack(buf, false)
				fmt.Printf("PANIC: %v\n%s\n", err, buf[:n])
				s.errorCount.Add(1)
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requestCount.Add(1)
		s.activeRequests.Add(1)
		defer s.activeRequests.Add(-1)
		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code
// written, for the logging middleware.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

// Flush forwards to the wrapped ResponseWriter's Flusher, if it has one, so
// middleware wrapping doesn't break SSE streaming further down the chain
// (pkg/protocol's newSSEWriter type-asserts http.Flusher on the writer it
// is given).
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
