package handlers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"webenv/internal/envconfig"
)

// Server represents the HTTP server
type Server struct {
	httpServer     *http.Server
	config         *envconfig.Config
	handlers       *Handlers
	metricsHandler http.Handler
	logger         envconfig.Logger
	metrics        envconfig.Metrics
}

// NewServer creates a new HTTP server. metricsHandler is mounted at the
// configured metrics path when metrics are enabled.
func NewServer(config *envconfig.Config, handlers *Handlers, metricsHandler http.Handler, logger envconfig.Logger, metrics envconfig.Metrics) *Server {
	return &Server{
		config:         config,
		handlers:       handlers,
		metricsHandler: metricsHandler,
		logger:         logger.With("component", "server"),
		metrics:        metrics,
	}
}

// Router builds the chi router with every route and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(s.withSecurityHeaders)
	r.Use(s.withCORS)
	r.Use(s.withMetrics)
	r.Use(s.withLogging)
	r.Use(middleware.GetHead)

	r.Get("/env-config.js", s.handlers.ScriptHandler)
	r.Get("/env-config.json", s.handlers.ConfigJSONHandler)
	r.Group(func(r chi.Router) {
		if s.config.Server.RateLimit > 0 {
			r.Use(s.withRateLimit(s.config.Server.RateLimit, time.Minute))
		}
		r.Post("/verify", s.handlers.VerifyHandler)
		r.Post("/reload", s.handlers.ReloadHandler)
	})
	r.Get("/health", s.handlers.HealthCheckHandler)

	if s.config.Metrics.Enabled && s.metricsHandler != nil {
		r.Method(http.MethodGet, s.config.Metrics.Path, s.metricsHandler)
	}

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.config.Server.Host, s.config.Server.Port)
	s.httpServer = &http.Server{
		Addr:           addr,
		Handler:        s.Router(),
		ReadTimeout:    s.config.Server.ReadTimeout,
		WriteTimeout:   s.config.Server.WriteTimeout,
		IdleTimeout:    s.config.Server.IdleTimeout,
		MaxHeaderBytes: s.config.Server.MaxHeaderBytes,
	}

	s.logger.Info("starting HTTP server", "address", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("graceful shutdown failed, forcing close", "error", err)
			if closeErr := s.httpServer.Close(); closeErr != nil {
				s.logger.Error("force close failed", "error", closeErr)
				return closeErr
			}
			return err
		}
		s.logger.Info("HTTP server stopped successfully")
	}

	return nil
}

// withLogging adds request logging middleware
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		s.logger.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapper.statusCode,
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
			"user_agent", r.UserAgent(),
			"remote_addr", r.RemoteAddr)
	})
}

// withMetrics records request counts and latency by route pattern
func (s *Server) withMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		// Route patterns keep label cardinality bounded.
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		s.metrics.ObserveHTTPRequest(route, wrapper.statusCode, time.Since(start))
	})
}

// withRateLimit limits requests per client IP over a sliding window.
func (s *Server) withRateLimit(limit int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		limit,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			s.logger.Warn("rate limit exceeded", "path", r.URL.Path, "remote_addr", r.RemoteAddr)
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"code":"RATE_LIMITED","message":"Too many requests"}` + "\n"))
		}),
	)
}

// withCORS adds CORS headers. With no allowed origins configured any origin
// may load the config, since the browser bundle is usually served elsewhere.
func (s *Server) withCORS(next http.Handler) http.Handler {
	allowed := make(map[string]bool, len(s.config.Server.AllowedOrigins))
	for _, origin := range s.config.Server.AllowedOrigins {
		allowed[origin] = true
	}
	allowAll := len(allowed) == 0 || allowed["*"]

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case allowAll:
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && allowed[origin]:
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, If-None-Match")
		w.Header().Set("Access-Control-Expose-Headers", "ETag")

		// Handle preflight requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withSecurityHeaders adds security headers
func (s *Server) withSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		w.Header().Set("Cache-Control", "no-store")

		next.ServeHTTP(w, r)
	})
}

// responseWrapper wraps http.ResponseWriter to capture status code
type responseWrapper struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (w *responseWrapper) WriteHeader(code int) {
	if !w.wroteHeader {
		w.statusCode = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseWrapper) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.wroteHeader = true
	}
	return w.ResponseWriter.Write(b)
}
