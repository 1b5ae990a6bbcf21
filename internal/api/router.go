// Package api exposes the assistant over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"marketing-analyst/internal/common/config"
	"marketing-analyst/internal/common/logger"
	"marketing-analyst/internal/common/metrics"
	"marketing-analyst/internal/models"
)

const maxBodyBytes = 1 << 20

// Chatter answers chat requests. It never fails.
type Chatter interface {
	Chat(ctx context.Context, req models.ChatRequest) *models.ChatResponse
}

// TemplateRunner executes a named query template.
type TemplateRunner interface {
	RunTemplate(ctx context.Context, name string, filters models.Filters) (*models.QueryResult, error)
}

// Pinger is a dependency pinged by /ready.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type Server struct {
	chat   Chatter
	runner TemplateRunner
	checks map[string]Pinger
	server config.ServerConfig
	agent  config.AgentConfig
	log    logger.Logger
}

// NewServer wires the handlers. checks maps a dependency name to its Pinger;
// nil entries are skipped.
func NewServer(chat Chatter, runner TemplateRunner, checks map[string]Pinger, cfg *config.Config, log logger.Logger) *Server {
	return &Server{
		chat:   chat,
		runner: runner,
		checks: checks,
		server: cfg.Server,
		agent:  cfg.Agent,
		log:    logger.ForComponent(log, "api"),
	}
}

// Router builds the chi router with the middleware stack.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.allowedOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/chat", s.handleChat)
	r.Post("/kpi", s.handleTemplate(models.TemplateKPISummary))
	r.Post("/channel-performance", s.handleTemplate(models.TemplateChannelPerformance))

	return r
}

func (s *Server) allowedOrigins() []string {
	if len(s.server.AllowedOrigins) == 0 {
		return []string{"*"}
	}
	return s.server.AllowedOrigins
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info("HTTP request", map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"bytes":       ww.BytesWritten(),
			"request_id":  middleware.GetReqID(r.Context()),
			"duration_ms": time.Since(start).Milliseconds(),
		})
	})
}
