package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/masc-dev/masc/internal/dispatch"
	"github.com/masc-dev/masc/internal/room"
	"github.com/masc-dev/masc/internal/tools"
)

// Config holds every dependency the HTTP surface needs. Populated in
// main.go once the Dispatcher, Store, and Bus are constructed,
// mirroring the teacher's RouterConfig in internal/api/router.go.
type Config struct {
	Dispatcher     *dispatch.Dispatcher
	Store          *room.Store
	Registry       *tools.Registry
	SSE            *SSEHub
	Logger         *zap.Logger
	MetricsHandler http.HandlerFunc
}

// NewRouter builds the fully configured Chi router: POST /mcp for
// JSON-RPC tool calls, GET /sse for notifications, GET /api/v1/* for
// the read-only REST mirror, plus /health, /metrics, and
// /.well-known/agent-card.json. Grounded on
// internal/api/router.go's middleware stack and route-per-resource
// layout, translated from auth-gated CRUD resources to MASC's mostly
// public, read-heavy surface (auth, where enabled, is enforced inside
// the Dispatcher itself per spec.md §4.3, not by router middleware).
func NewRouter(cfg Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)

	mcpHandler := &mcpHandler{dispatcher: cfg.Dispatcher}
	restHandler := &restHandler{store: cfg.Store}

	r.Post("/mcp", mcpHandler.ServeHTTP)
	r.Get("/sse", cfg.SSE.ServeHTTP)

	r.Get("/health", healthHandler(cfg.Store))
	if cfg.MetricsHandler != nil {
		r.Get("/metrics", cfg.MetricsHandler)
	}
	r.Get("/.well-known/agent-card.json", agentCardHandler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", restHandler.Status)
		r.Get("/tasks", restHandler.Tasks)
		r.Get("/agents", restHandler.Agents)
		r.Get("/messages", restHandler.Messages)
		r.Get("/credits", restHandler.Credits)
	})

	return r
}

// RequestLogger mirrors internal/api/middleware.go's RequestLogger:
// wraps the ResponseWriter to capture status/bytes, logs once per
// request after the handler returns.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("remote_addr", r.RemoteAddr),
			)
		})
	}
}
