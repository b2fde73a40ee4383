package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/szaher/infraagent/internal/auth"
	"github.com/szaher/infraagent/internal/telemetry"
)

const maxBodyBytes = 1 << 20

// Agent answers one chat request. *loop.Agent satisfies it.
type Agent interface {
	ProcessRequest(ctx context.Context, text string, maxIterations int) string
}

// Server is the HTTP chat service.
type Server struct {
	agent          Agent
	mux            *http.ServeMux
	server         *http.Server
	logger         *slog.Logger
	metrics        http.Handler
	apiKey         string
	limiter        *auth.RateLimiter
	requestTimeout time.Duration
	maxIterations  int
	startTime      time.Time
}

// ServerOption configures the Server.
type ServerOption func(*Server)

// WithAPIKey sets the API key for authentication.
func WithAPIKey(key string) ServerOption {
	return func(s *Server) { s.apiKey = key }
}

// WithRateLimiter limits chat requests per client and blocks clients that
// repeatedly fail authentication.
func WithRateLimiter(rl *auth.RateLimiter) ServerOption {
	return func(s *Server) { s.limiter = rl }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = logger }
}

// WithMetricsHandler serves h on GET /metrics.
func WithMetricsHandler(h http.Handler) ServerOption {
	return func(s *Server) { s.metrics = h }
}

// WithRequestTimeout bounds each chat request.
func WithRequestTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.requestTimeout = d }
}

// WithMaxIterations sets the iteration budget passed to the agent. Zero
// leaves the agent default.
func WithMaxIterations(n int) ServerOption {
	return func(s *Server) { s.maxIterations = n }
}

// NewServer creates the HTTP chat service.
func NewServer(agent Agent, opts ...ServerOption) *Server {
	s := &Server{
		agent:          agent,
		logger:         slog.Default(),
		requestTimeout: DefaultRequestTimeout,
		startTime:      time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	var chat http.Handler = http.HandlerFunc(s.handleChat)
	if s.limiter != nil {
		chat = s.limiter.Middleware(auth.ClientIPKeyFunc)(chat)
	}
	mux.Handle("POST /chat", chat)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}

	s.mux = mux
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler for use with httptest or custom servers.
func (s *Server) Handler() http.Handler {
	return auth.Middleware(s.apiKey, []string{"/health"}, s.limiter)(s.mux)
}

// ListenAndServe listens on addr and serves until Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln. It returns nil after Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("chat server starting", "addr", ln.Addr().String())
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server. A server shut down before Serve
// never accepts connections.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "infra-agent",
		"uptime":  time.Since(s.startTime).Round(time.Second).String(),
	})
}

type chatRequest struct {
	Message string `json:"message"`
	UserID  string `json:"user_id"`
}

type chatResponse struct {
	Response string `json:"response"`
	Status   string `json:"status"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "message is required")
		return
	}
	if req.UserID == "" {
		req.UserID = "default"
	}

	ctx := telemetry.WithCorrelationID(r.Context(), r.Header.Get("X-Request-ID"))
	if s.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.requestTimeout)
		defer cancel()
	}
	w.Header().Set("X-Request-ID", telemetry.CorrelationID(ctx))

	logger := telemetry.RequestLogger(s.logger, ctx, "server")
	start := time.Now()
	reply := s.agent.ProcessRequest(ctx, req.Message, s.maxIterations)
	logger.Info("chat request handled", "user_id", req.UserID, "duration", time.Since(start))

	writeJSON(w, http.StatusOK, chatResponse{Response: reply, Status: "success"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	auth.WriteError(w, status, code, message)
}
