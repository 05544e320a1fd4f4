package api

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"cosmossdk.io/log"
	"github.com/gin-gonic/gin"

	"github.com/greenmesh/greenmesh/app"
	"github.com/greenmesh/greenmesh/app/health"
)

// Server represents the main API server
type Server struct {
	router      *gin.Engine
	app         *app.App
	config      *Config
	logger      log.Logger
	wsHub       *WebSocketHub
	authService *AuthService
	health      *health.Checker
	metrics     *APIMetrics
}

// Config holds server configuration
type Config struct {
	Host            string
	Port            string
	JWTSecret       []byte
	TokenTTL        time.Duration
	CORSOrigins     []string
	RateLimitRPS    int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	TLSEnabled      bool
	TLSCertFile     string
	TLSKeyFile      string
}

// DefaultConfig returns default server configuration
func DefaultConfig() *Config {
	return &Config{
		Host:            "0.0.0.0",
		Port:            "1317",
		TokenTTL:        24 * time.Hour,
		CORSOrigins:     []string{"http://localhost:3000"},
		RateLimitRPS:    100,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    15 * time.Second,
		RequestTimeout:  30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// NewServer creates a new API server over a.
func NewServer(a *app.App, config *Config, logger log.Logger) (*Server, error) {
	if config == nil {
		config = DefaultConfig()
	}
	logger = logger.With("module", "api")

	if len(config.JWTSecret) == 0 {
		secret := make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("failed to generate JWT secret: %w", err)
		}
		config.JWTSecret = secret
		logger.Warn("JWT secret generated randomly; tokens will not survive a restart")
	}

	checker, err := health.NewChecker(logger, health.DefaultConfig(), a)
	if err != nil {
		return nil, err
	}

	server := &Server{
		app:         a,
		config:      config,
		logger:      logger,
		wsHub:       NewWebSocketHub(logger),
		authService: NewAuthService(config.JWTSecret, config.TokenTTL),
		health:      checker,
		metrics:     NewAPIMetrics(),
	}
	server.setupRouter()
	return server, nil
}

// setupRouter configures the Gin router with all routes and middleware
func (s *Server) setupRouter() {
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()

	// Global middleware - ORDER MATTERS!
	// 1. Recovery (must be first to catch panics)
	s.router.Use(RecoveryMiddleware(s.logger))

	// 2. Security headers (set early)
	s.router.Use(SecurityHeadersMiddleware())

	// 3. Request size limiting
	s.router.Use(RequestSizeLimitMiddleware(MaxRequestSize))

	// 4. Request ID (for tracing)
	s.router.Use(RequestIDMiddleware())

	// 5. Logging and metrics
	s.router.Use(LoggerMiddleware(s.logger))
	s.router.Use(MetricsMiddleware(s.metrics))

	// 6. CORS (before auth)
	s.router.Use(s.CORSMiddleware())

	// 7. Rate limiting (before expensive operations)
	s.router.Use(RateLimitMiddleware(s.config.RateLimitRPS))

	// 8. Timeout
	s.router.Use(TimeoutMiddleware(s.config.RequestTimeout))

	s.health.RegisterRoutes(s.router)
	s.registerRoutes()
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the websocket hub. It doubles as an event sink.
func (s *Server) Hub() *WebSocketHub {
	return s.wsHub
}

// Auth returns the token service.
func (s *Server) Auth() *AuthService {
	return s.authService
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	go s.wsHub.Run()
	defer s.wsHub.Close()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:           s.router,
		ReadTimeout:       s.config.ReadTimeout,
		ReadHeaderTimeout: s.config.ReadTimeout,
		WriteTimeout:      s.config.WriteTimeout,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}
	if s.config.TLSEnabled {
		srv.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS13}
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if s.config.TLSEnabled {
			s.logger.Info("starting API server (TLS)", "addr", srv.Addr)
			err = srv.ListenAndServeTLS(s.config.TLSCertFile, s.config.TLSKeyFile)
		} else {
			s.logger.Info("starting API server", "addr", srv.Addr)
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}
