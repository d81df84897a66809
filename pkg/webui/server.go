// Package webui serves the research API: a WebSocket chat endpoint, a JSON
// API, logs, usage and Prometheus metrics.
package webui

import (
	"context"
	"crypto/subtle"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	llmmetrics "github.com/ntclick/ai-research-roma/pkg/agent/middleware/metrics"
	"github.com/ntclick/ai-research-roma/pkg/logx"
	"github.com/ntclick/ai-research-roma/pkg/metrics"
	"github.com/ntclick/ai-research-roma/pkg/persistence"
	"github.com/ntclick/ai-research-roma/pkg/session"
	"github.com/ntclick/ai-research-roma/pkg/version"
)

//go:embed web/index.html
var indexHTML []byte

// authUser is the fixed basic-auth user name.
const authUser = "roma"

// maxRequestBytes bounds JSON request bodies and WebSocket frames.
const maxRequestBytes = 64 << 10

// Sessions answers research requests.
type Sessions interface {
	Handle(ctx context.Context, req session.Request) session.Envelope
	History(ctx context.Context, user string) []persistence.Turn
	ClearHistory(ctx context.Context, user string) (int64, error)
}

// UsageSource reports LLM usage for a session.
type UsageSource interface {
	GetSessionUsage(ctx context.Context, sessionID string) (*metrics.Usage, error)
}

// Options configures optional server features.
type Options struct {
	// Password enables basic auth when non-empty.
	Password string
	// Gatherer backs /metrics. Nil means the default registry.
	Gatherer prometheus.Gatherer
	// Usage answers /api/usage from Prometheus.
	Usage UsageSource
	// InternalUsage answers /api/usage when Usage is nil.
	InternalUsage *llmmetrics.InternalRecorder
	// AllowedOrigins restricts WebSocket origins. Empty allows any origin.
	AllowedOrigins []string
}

// Server is the HTTP front end.
type Server struct {
	sessions Sessions
	opts     Options
	logger   *logx.Logger
	upgrader websocket.Upgrader
	clients  atomic.Int64
}

// NewServer creates a server over sessions.
func NewServer(sessions Sessions, opts Options) *Server {
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		sessions: sessions,
		opts:     opts,
		logger:   logx.NewLogger("webui"),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, allowed := range s.opts.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	s.logger.Warn("Rejected WebSocket origin %q", origin)
	return false
}

// requireAuth wraps a handler with basic auth when a password is configured.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	if s.opts.Password == "" {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok || username != authUser ||
			subtle.ConstantTimeCompare([]byte(password), []byte(s.opts.Password)) != 1 {
			if ok {
				s.logger.Warn("Failed authentication attempt from %s (username: %s)", r.RemoteAddr, username)
			}
			w.Header().Set("WWW-Authenticate", `Basic realm="ROMA"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// RegisterRoutes sets up HTTP routes. Health and metrics stay open.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/", s.requireAuth(s.handleIndex))
	mux.HandleFunc("/ws", s.requireAuth(s.handleWebSocket))
	mux.HandleFunc("/api/research", s.requireAuth(s.handleResearch))
	mux.HandleFunc("/api/history", s.requireAuth(s.handleHistory))
	mux.HandleFunc("/api/logs", s.requireAuth(s.handleLogs))
	mux.HandleFunc("/api/usage", s.requireAuth(s.handleUsage))
	mux.HandleFunc("/api/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return mux
}

// StartServer listens on host:port and serves until ctx is cancelled, then
// shuts down gracefully. It returns once the listener is closed.
func (s *Server) StartServer(ctx context.Context, host string, port int, readTimeout time.Duration) error {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       readTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting ROMA server on %s", addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down ROMA server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	//nolint:contextcheck // parent context is cancelled; shutdown needs a fresh one
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexHTML)
}

// handleHealth implements GET /api/healthz.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": version.Version,
		"clients": s.clients.Load(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response: %v", err)
	}
}
