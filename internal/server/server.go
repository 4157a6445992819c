// Package server provides the HTTP API for detection, scoring and contact
// resolution.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/saadbelcaidx/connector-os/internal/config"
	"github.com/saadbelcaidx/connector-os/internal/contact"
	"github.com/saadbelcaidx/connector-os/internal/events"
	"github.com/saadbelcaidx/connector-os/internal/metrics"
	"github.com/saadbelcaidx/connector-os/internal/pipeline"
	"github.com/saadbelcaidx/connector-os/internal/registry"
	"github.com/saadbelcaidx/connector-os/internal/server/middleware"
	"github.com/saadbelcaidx/connector-os/internal/server/ratelimit"
	"github.com/saadbelcaidx/connector-os/internal/types"
)

// maxBodyBytes bounds request bodies. Datasets are posted whole.
const maxBodyBytes = 32 << 20

// Config holds server configuration
type Config struct {
	Port       int
	Threshold  int // Default score threshold when a request sets none
	ResolveTop int // Upper bound on resolve_top in score requests
}

// Deps are the collaborators the handlers use. Only Registry is required;
// endpoints whose collaborator is missing answer 503.
type Deps struct {
	Registry  *registry.Registry
	Profile   *types.CapabilityProfile // Used when a score request carries none
	Resolver  *contact.Resolver
	Charges   contact.ChargeGuard
	Store     pipeline.Store
	Publisher events.Publisher
	JWT       *config.JWTConfig // Nil disables auth
	RateLimit *ratelimit.Config // Nil means ratelimit.LoadConfig()
	Logger    *zap.Logger
}

// Server represents the HTTP server
type Server struct {
	cfg         Config
	deps        Deps
	handler     http.Handler
	rateLimiter *ratelimit.Limiter
	jwtService  *JWTService
	log         *zap.Logger
}

// New creates a new server instance
func New(cfg Config, deps Deps) (*Server, error) {
	if deps.Registry == nil {
		return nil, fmt.Errorf("schema registry is required")
	}
	if deps.Profile != nil {
		if err := deps.Profile.Validate(); err != nil {
			return nil, fmt.Errorf("invalid default profile: %w", err)
		}
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	s := &Server{cfg: cfg, deps: deps, log: log.Named("server")}

	rlConfig := deps.RateLimit
	if rlConfig == nil {
		rlConfig = ratelimit.LoadConfig()
	}
	s.rateLimiter = ratelimit.NewLimiter(rlConfig)

	if deps.JWT != nil {
		s.jwtService = NewJWTService(deps.JWT)
	}

	mux := http.NewServeMux()
	s.route(mux, "GET /health", false, s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	s.route(mux, "POST /detect", true, s.handleDetect)
	s.route(mux, "POST /score", true, s.handleScore)
	s.route(mux, "POST /score/stream", true, s.handleScoreStream)
	s.route(mux, "POST /resolve", true, s.handleResolve)
	s.route(mux, "POST /charges", true, s.handleRecordCharge)

	s.handler = s.withRateLimit(s.withLogging(s.withCORS(mux)))
	return s, nil
}

// route registers a handler instrumented under its pattern. Protected
// routes require a bearer token when auth is enabled.
func (s *Server) route(mux *http.ServeMux, pattern string, protected bool, h http.HandlerFunc) {
	var handler http.Handler = h
	if protected && s.jwtService != nil {
		handler = middleware.AuthMiddleware(s.jwtService.AsTokenValidator())(handler)
	}
	mux.Handle(pattern, s.instrument(pattern, handler))
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves on the configured port until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Start(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second, // Long timeout for streamed scoring
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server starting", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.rateLimiter.Stop()
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.rateLimiter.Stop()
	s.log.Info("server stopped")
	return nil
}

// Close releases background resources when Start was never called.
func (s *Server) Close() {
	s.rateLimiter.Stop()
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.rateLimiter.Allow(s.extractClientID(r), r.URL.Path, r.Method)
		s.setRateLimitHeaders(w, info)
		if !allowed {
			metrics.RateLimitHits.WithLabelValues(info.Tier).Inc()
			s.rateLimitResponse(w, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// Flush keeps SSE working through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		s.log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote", r.RemoteAddr),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}

// instrument counts requests per route pattern.
func (s *Server) instrument(pattern string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		metrics.HTTPRequestsTotal.WithLabelValues(pattern, strconv.Itoa(rec.status)).Inc()
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Warn("failed to encode JSON response", zap.Error(err))
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// writeError maps err to a status and writes it. Internal errors are
// logged and hidden from the client.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", zap.Error(err))
		s.errorResponse(w, status, "internal error")
		return
	}
	s.errorResponse(w, status, err.Error())
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return &ErrValidation{Field: "body", Message: err.Error()}
	}
	return nil
}

// extractClientID extracts the client identifier from the request.
// This uses the IP address from RemoteAddr.
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, info ratelimit.Info) {
	response := map[string]any{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"tier":      info.Tier,
		"limit":     info.Limit,
		"remaining": info.Remaining,
	}
	if !info.ResetTime.IsZero() {
		response["reset_at"] = info.ResetTime.Format(time.RFC3339)
	}
	if info.RetryAfter > 0 {
		secs := int(info.RetryAfter.Round(time.Second).Seconds())
		response["retry_after"] = secs
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}

	s.log.Warn("rate limit exceeded", zap.String("tier", info.Tier), zap.Int("limit", info.Limit))
	s.jsonResponse(w, http.StatusTooManyRequests, response)
}
