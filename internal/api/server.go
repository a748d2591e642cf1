package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"insight-agents/internal/common/logger"
	"insight-agents/internal/models"
)

// QueryProcessor answers one query. *orchestratequery.Handler satisfies it.
type QueryProcessor interface {
	ProcessQuery(ctx context.Context, q models.Query) models.OrchestratorResponse
}

// Pinger is a dependency checked by /ready.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Dependencies struct {
	Orchestrator QueryProcessor
	// Readiness maps a dependency name to its check. Empty means always ready.
	Readiness map[string]Pinger
}

type Config struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
	Dependencies    Dependencies
}

type WebAPI struct {
	router *chi.Mux
	logger logger.Logger
	server *http.Server
	config Config
}

func NewWebAPI(log logger.Logger, config Config) *WebAPI {
	h := &handler{
		orchestrator: config.Dependencies.Orchestrator,
		readiness:    config.Dependencies.Readiness,
		logger:       log,
		now:          time.Now,
	}

	router := chi.NewRouter()
	router.Use(RequestID)
	router.Use(Logger(log))
	router.Use(middleware.Recoverer)
	router.Use(cors.New(cors.Options{
		AllowedOrigins: config.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader},
	}).Handler)

	router.Post("/query", h.Query)
	router.Get("/health", h.Health)
	router.Get("/ready", h.Ready)
	router.Handle("/metrics", promhttp.Handler())

	return &WebAPI{
		router: router,
		logger: log,
		config: config,
		server: &http.Server{
			Addr:         config.Addr,
			Handler:      router,
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
		},
	}
}

// Handler exposes the router for tests.
func (w *WebAPI) Handler() http.Handler {
	return w.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (w *WebAPI) Start(ctx context.Context) error {
	serverErrors := make(chan error, 1)

	go func() {
		w.logger.Info("starting server", map[string]interface{}{"addr": w.server.Addr})
		serverErrors <- w.server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		w.logger.Info("shutdown initiated", nil)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), w.config.ShutdownTimeout)
		defer cancel()

		if err := w.server.Shutdown(shutdownCtx); err != nil {
			w.logger.Error("graceful shutdown failed", map[string]interface{}{"error": err.Error()})
			return w.server.Close()
		}
	}
	return nil
}
