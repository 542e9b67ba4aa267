package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/raaihank/mail-sentinel/internal/config"
	"github.com/raaihank/mail-sentinel/internal/logger"
	"github.com/raaihank/mail-sentinel/internal/observability"
	"github.com/raaihank/mail-sentinel/internal/privacy"
	"github.com/raaihank/mail-sentinel/internal/security"
	"github.com/raaihank/mail-sentinel/internal/store"
	"github.com/raaihank/mail-sentinel/internal/web"
	"github.com/raaihank/mail-sentinel/internal/websocket"
)

// Classifier predicts the category of a masked email
type Classifier interface {
	Predict(text string) (string, error)
	Classes() []string
}

// ResultCache stores predictions keyed by masked text
type ResultCache interface {
	Get(ctx context.Context, maskedText string) (string, bool)
	Set(ctx context.Context, maskedText, category string) error
	Ping(ctx context.Context) error
}

// AuditStore records classifications
type AuditStore interface {
	InsertClassification(ctx context.Context, c *store.Classification) error
	Ping(ctx context.Context) error
}

// Deps are the collaborators the server is built from. Cache, Store and Hub are optional.
type Deps struct {
	Masker     *privacy.Masker
	Classifier Classifier
	Cache      ResultCache
	Store      AuditStore
	Hub        *websocket.Hub
	Metrics    *observability.Metrics
	Version    string
}

// Server is the email classification API
type Server struct {
	config     *config.Config
	logger     *logger.Logger
	masker     *privacy.Masker
	classifier Classifier
	cache      ResultCache
	store      AuditStore
	wsHub      *websocket.Hub
	metrics    *observability.Metrics
	limiter    *security.RateLimiter
	router     *mux.Router
	server     *http.Server
	version    string
	startTime  time.Time
}

// New creates a new server instance
func New(cfg *config.Config, log *logger.Logger, deps Deps) (*Server, error) {
	if deps.Masker == nil {
		return nil, errors.New("server requires a masker")
	}
	if deps.Classifier == nil {
		return nil, errors.New("server requires a classifier")
	}
	if deps.Metrics == nil {
		deps.Metrics = observability.NewMetrics("mail_sentinel")
	}

	s := &Server{
		config:     cfg,
		logger:     log.WithComponent("server"),
		masker:     deps.Masker,
		classifier: deps.Classifier,
		cache:      deps.Cache,
		store:      deps.Store,
		wsHub:      deps.Hub,
		metrics:    deps.Metrics,
		limiter:    security.NewRateLimiter(cfg.Security.RateLimit),
		router:     mux.NewRouter(),
		version:    deps.Version,
		startTime:  time.Now(),
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.recoveryMiddleware)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/info", s.handleInfo).Methods(http.MethodGet)
	s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	if s.wsHub != nil {
		s.router.HandleFunc(s.config.WebSocket.Path, s.wsHub.HandleWebSocket).Methods(http.MethodGet)
		s.router.Handle("/dashboard", s.wsHub.RequireAuth(web.DashboardHandler(s.config.WebSocket.Path))).Methods(http.MethodGet)
	}

	api := s.router.NewRoute().Subrouter()
	api.Use(s.rateLimitMiddleware)
	api.Use(s.bodyLimitMiddleware)
	api.HandleFunc("/", s.handleClassify).Methods(http.MethodPost)
	api.HandleFunc("/mask", s.handleMask).Methods(http.MethodPost)
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the background workers and serves HTTP until the server is stopped
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting mail-sentinel server",
		zap.Int("port", s.config.Server.Port),
		zap.Bool("privacy_enabled", s.masker.Enabled()),
		zap.Strings("categories", s.masker.Categories()),
		zap.Bool("cache_enabled", s.cache != nil),
		zap.Bool("storage_enabled", s.store != nil),
		zap.Bool("websocket_enabled", s.wsHub != nil),
	)

	if s.wsHub != nil {
		go s.wsHub.Run(ctx)
	}
	s.limiter.StartCleanupRoutine(ctx, 30*time.Minute)

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping mail-sentinel server")
	return s.server.Shutdown(ctx)
}
